package config

import (
	"fmt"
	"os"
	"slices"

	"github.com/leapstack-labs/legacyscan/internal/source"
)

// validOutputs are the accepted values of the output key.
var validOutputs = []string{"auto", "text", "markdown", "json"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !slices.Contains(validOutputs, c.OutputFormat) {
		return fmt.Errorf("invalid output %q (want one of %v)", c.OutputFormat, validOutputs)
	}
	if c.Scan.Workers < 0 {
		return fmt.Errorf("scan.workers must not be negative")
	}
	if c.Scan.MaxFileSize < 0 {
		return fmt.Errorf("scan.max_file_size must not be negative")
	}
	if c.Views.MaxNodes < 0 || c.Views.Hops < 0 || c.Views.CacheSize < 0 {
		return fmt.Errorf("views settings must not be negative")
	}
	for _, p := range c.Scan.Exclude {
		if err := source.ValidatePattern(p); err != nil {
			return fmt.Errorf("invalid scan.exclude pattern %q: %w", p, err)
		}
	}
	return nil
}

// ValidateRoot checks that the scan root exists and is a directory.
func (c *Config) ValidateRoot() error {
	info, err := os.Stat(c.Root)
	if os.IsNotExist(err) {
		return fmt.Errorf("source root does not exist: %s\nHint: pass the root as an argument or set root in legacyscan.yaml", c.Root)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("source root is not a directory: %s", c.Root)
	}
	return nil
}
