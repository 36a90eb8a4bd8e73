package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory when
// no path is given.
const DefaultPath = "sdfgen.yaml"

// Load loads configuration with priority: defaults < file < flags. A nil
// flags value applies no overrides.
func Load(flags *Flags) (*Config, error) {
	cfg := Default()
	path := ""
	if flags != nil {
		path = flags.ConfigPath
	}
	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}
	if flags != nil {
		flags.apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile merges the YAML file at path into cfg.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.ExactBand < 0 {
		errs = append(errs, fmt.Errorf("engine.exact_band must not be negative, got %d", c.Engine.ExactBand))
	}
	if c.Engine.Threads < 0 {
		errs = append(errs, fmt.Errorf("engine.threads must not be negative, got %d", c.Engine.Threads))
	}
	switch c.Engine.Backend {
	case "", "auto", "cpu", "gpu":
	default:
		errs = append(errs, fmt.Errorf("engine.backend must be auto, cpu or gpu, got %q", c.Engine.Backend))
	}
	if c.Grid.CellSize < 0 {
		errs = append(errs, fmt.Errorf("grid.cell_size must be positive, got %g", c.Grid.CellSize))
	}
	if n := len(c.Grid.Resolution); n != 0 && n != 1 && n != 3 {
		errs = append(errs, fmt.Errorf("grid.resolution needs 1 or 3 values, got %d", n))
	}
	if c.Mesh.WeldTolerance < 0 {
		errs = append(errs, fmt.Errorf("mesh.weld_tolerance must not be negative, got %g", c.Mesh.WeldTolerance))
	}
	return errors.Join(errs...)
}
