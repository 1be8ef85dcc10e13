package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "LEGACYSCAN_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// configNames are the config file names searched for, in order.
var configNames = []string{"legacyscan.yaml", "legacyscan.yml"}

// flagKeys maps flag names to config keys where they differ.
var flagKeys = map[string]string{
	"state":         "state_path",
	"workers":       "scan.workers",
	"max-file-size": "scan.max_file_size",
	"exclude":       "scan.exclude",
	"save":          "scan.save",
	"debounce":      "scan.watch_debounce",
	"max-nodes":     "views.max_nodes",
	"hops":          "views.hops",
	"cache-size":    "views.cache_size",
}

// sections are the nested config groups reachable from env vars.
var sections = []string{"scan", "views"}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// configExistsIn returns the config file in dir, or "".
func configExistsIn(dir string) string {
	for _, name := range configNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root.
// Priority:
//  1. Directory of an explicit config file
//  2. Search upward from CWD for legacyscan.yaml
//  3. Current working directory
func inferProjectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
	}
	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return "."
	}
	if root := findProjectRootUpward(cwd); root != "" {
		return root
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty, absolute, a URL or :memory:.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || strings.Contains(path, "://") || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// absPath makes a path absolute against CWD, leaving :memory: and URLs alone.
func absPath(p string) string {
	if p == ":memory:" || strings.Contains(p, "://") {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// envKey maps LEGACYSCAN_SCAN_MAX_FILE_SIZE to scan.max_file_size.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range sections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

// flagKey maps a flag name to its config key.
func flagKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	return strings.ReplaceAll(name, "-", "_")
}

// LoadConfig loads configuration from defaults, the config file, a .env
// file, environment variables and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")
	projectRoot := inferProjectRoot(cfgFile)

	// Paths given as flags are relative to CWD, not to the project root.
	flagPaths := make(map[string]string)
	var flagDicts []string
	if flags != nil {
		for _, name := range []string{"state", "root"} {
			if f := flags.Lookup(name); f != nil && f.Changed && f.Value.String() != "" {
				flagPaths[name] = absPath(f.Value.String())
			}
		}
		if f := flags.Lookup("dictionary"); f != nil && f.Changed {
			dicts, _ := flags.GetStringSlice("dictionary")
			for _, d := range dicts {
				flagDicts = append(flagDicts, absPath(d))
			}
		}
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	if cfgFile == "" {
		cfgFile = configExistsIn(projectRoot)
	}
	configFileUsed = cfgFile
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables, with .env in the project root filling
	// in any that are unset.
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Resolve relative paths against the project root
	cfg.ProjectRoot = projectRoot
	if cfg.Root == "" {
		cfg.Root = DefaultRoot
	}
	cfg.Root = resolvePathRelativeTo(cfg.Root, projectRoot)
	cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)
	for i, d := range cfg.Dictionary {
		cfg.Dictionary[i] = resolvePathRelativeTo(d, projectRoot)
	}
	if v, ok := flagPaths["root"]; ok {
		cfg.Root = v
	}
	if v, ok := flagPaths["state"]; ok {
		cfg.StatePath = v
	}
	if flagDicts != nil {
		cfg.Dictionary = flagDicts
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// SetRoot overrides the scan root with a path given on the command line.
func (c *Config) SetRoot(root string) {
	if root == "" {
		return
	}
	c.Root = absPath(root)
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
