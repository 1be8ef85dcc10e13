// Package config provides configuration management for the legacyscan CLI.
package config

import (
	"time"

	"github.com/leapstack-labs/legacyscan/internal/scan"
	"github.com/leapstack-labs/legacyscan/pkg/views"
)

// Config holds all CLI configuration options.
type Config struct {
	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot  string      `koanf:"-"`
	Root         string      `koanf:"root"`
	Dictionary   []string    `koanf:"dictionary"`
	StatePath    string      `koanf:"state_path"`
	Verbose      bool        `koanf:"verbose"`
	OutputFormat string      `koanf:"output"`
	Scan         ScanConfig  `koanf:"scan"`
	Views        ViewsConfig `koanf:"views"`
}

// ScanConfig controls discovery and the scan worker pool.
type ScanConfig struct {
	Workers       int           `koanf:"workers"`
	MaxFileSize   int64         `koanf:"max_file_size"`
	Exclude       []string      `koanf:"exclude"`
	Save          bool          `koanf:"save"`
	WatchDebounce time.Duration `koanf:"watch_debounce"`
}

// ViewsConfig holds view projection defaults.
type ViewsConfig struct {
	MaxNodes  int `koanf:"max_nodes"`
	Hops      int `koanf:"hops"`
	CacheSize int `koanf:"cache_size"`
}

// Default configuration values.
const (
	DefaultRoot        = "."
	DefaultStateFile   = ".legacyscan/state.db"
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultMaxFileSize = 10 << 20
)

// Default returns a configuration holding only default values.
func Default() *Config {
	return &Config{
		Root:         DefaultRoot,
		StatePath:    DefaultStateFile,
		OutputFormat: DefaultOutput,
		Scan: ScanConfig{
			MaxFileSize:   DefaultMaxFileSize,
			WatchDebounce: scan.DefaultDebounce,
		},
		Views: ViewsConfig{
			MaxNodes:  views.DefaultMaxNodes,
			Hops:      views.DefaultHops,
			CacheSize: views.DefaultCacheSize,
		},
	}
}

// defaults returns the lowest-precedence configuration layer.
func defaults() map[string]interface{} {
	return map[string]interface{}{
		"root":                "",
		"dictionary":          []string{},
		"state_path":          DefaultStateFile,
		"verbose":             false,
		"output":              DefaultOutput,
		"scan.workers":        0,
		"scan.max_file_size":  DefaultMaxFileSize,
		"scan.exclude":        []string{},
		"scan.save":           false,
		"scan.watch_debounce": scan.DefaultDebounce.String(),
		"views.max_nodes":     views.DefaultMaxNodes,
		"views.hops":          views.DefaultHops,
		"views.cache_size":    views.DefaultCacheSize,
	}
}
