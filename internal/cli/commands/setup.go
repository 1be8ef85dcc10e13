package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/legacyscan/internal/cli/config"
	"github.com/leapstack-labs/legacyscan/internal/cli/output"
	"github.com/leapstack-labs/legacyscan/internal/scan"
	"github.com/leapstack-labs/legacyscan/internal/source"
	"github.com/leapstack-labs/legacyscan/internal/state"
	"github.com/leapstack-labs/legacyscan/pkg/core"
	"github.com/leapstack-labs/legacyscan/pkg/dictionary"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext. A non-empty root overrides
// the configured source root for this command only.
func NewCommandContext(cmd *cobra.Command, root string) *CommandContext {
	cfg := *getConfig()
	cfg.SetRoot(root)

	mode := output.Mode(cfg.OutputFormat)
	return &CommandContext{
		Cfg:      &cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}
}

// getConfig returns the current configuration, or defaults when no
// configuration was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

// addScanFlags registers the flags of every command that scans.
func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().Int("workers", 0, "Files analyzed at once (0 = number of CPUs)")
	cmd.Flags().Int64("max-file-size", 0, "Skip files larger than this many bytes (0 = no limit)")
	cmd.Flags().StringSlice("exclude", nil, "Glob patterns of paths to skip (supports **)")
}

// Dictionary loads the configured dictionary files.
func (c *CommandContext) Dictionary() ([]core.DictionaryEntry, error) {
	if len(c.Cfg.Dictionary) == 0 {
		c.Logger.Debug("no dictionary configured; only lineage is computed")
		return nil, nil
	}
	entries, err := dictionary.LoadFiles(c.Cfg.Dictionary...)
	if err != nil {
		return nil, fmt.Errorf("failed to load dictionary: %w", err)
	}
	c.Logger.Debug("loaded dictionary",
		slog.Int("files", len(c.Cfg.Dictionary)),
		slog.Int("entries", len(entries)))
	return entries, nil
}

// Scanner creates a scanner for the configured dictionary, reporting
// progress through the renderer.
func (c *CommandContext) Scanner() (*scan.Scanner, error) {
	entries, err := c.Dictionary()
	if err != nil {
		return nil, err
	}
	return scan.New(scan.Options{
		Dictionary: entries,
		Workers:    c.Cfg.Scan.Workers,
		Logger:     c.Logger,
		Progress: func(fraction float64) {
			c.Renderer.Progress("Scanning", fraction)
		},
	}), nil
}

// LoadSources reads the Source Set under the configured root.
func (c *CommandContext) LoadSources(ctx context.Context) (*source.Set, error) {
	if !isURL(c.Cfg.Root) {
		if err := c.Cfg.ValidateRoot(); err != nil {
			return nil, err
		}
	}
	loader := source.NewLoader(source.Options{
		Exclude:     c.Cfg.Scan.Exclude,
		MaxFileSize: c.Cfg.Scan.MaxFileSize,
		Logger:      c.Logger,
	})
	set, err := loader.Load(ctx, c.Cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	return set, nil
}

// RunScan loads the sources and scans them with s.
func (c *CommandContext) RunScan(ctx context.Context, s *scan.Scanner) (*scan.Result, *source.Set, error) {
	set, err := c.LoadSources(ctx)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.ScanSet(ctx, set)
	c.Renderer.ProgressDone()
	switch {
	case errors.Is(err, scan.ErrEmptySourceSet):
		return nil, set, fmt.Errorf("no supported source files under %s", c.Cfg.Root)
	case err != nil:
		return res, set, err
	}
	return res, set, nil
}

// Scan is RunScan with a scanner built from the configuration.
func (c *CommandContext) Scan(ctx context.Context) (*scan.Result, *source.Set, error) {
	s, err := c.Scanner()
	if err != nil {
		return nil, nil, err
	}
	return c.RunScan(ctx, s)
}

// OpenStore opens the state database, creating its directory.
// Returns the store and a cleanup function that must be called (typically via defer).
func (c *CommandContext) OpenStore(ctx context.Context) (*state.SQLiteStore, func(), error) {
	path := c.Cfg.StatePath
	if path == "" {
		return nil, nil, fmt.Errorf("no state database configured")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	store := state.NewSQLiteStore(c.Logger)
	if err := store.Open(ctx, path); err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func isURL(p string) bool {
	return strings.Contains(p, "://")
}
