// Package config handles loading the generator settings.
package config

import "github.com/meet-brad-ch/SDFGenFast/sweep"

// Config holds all generator settings.
type Config struct {
	Grid    GridConfig    `yaml:"grid"`
	Engine  EngineConfig  `yaml:"engine"`
	Mesh    MeshConfig    `yaml:"mesh"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// GridConfig holds grid sizing settings. CellSize is used for OBJ input,
// Resolution for STL input: one value for proportional sizing or three
// for explicit dimensions.
type GridConfig struct {
	CellSize   float32 `yaml:"cell_size"`
	Resolution []int   `yaml:"resolution"`
	Padding    int     `yaml:"padding"`
}

// EngineConfig holds generation settings.
type EngineConfig struct {
	ExactBand int     `yaml:"exact_band"`
	Backend   string  `yaml:"backend"` // auto, cpu or gpu
	Threads   int     `yaml:"threads"` // 0 uses every hardware thread
	MaxPasses int     `yaml:"max_passes"`
	Tolerance float32 `yaml:"tolerance"`
}

// MeshConfig holds mesh loading settings.
type MeshConfig struct {
	WeldTolerance float32 `yaml:"weld_tolerance"`
}

// OutputConfig holds output settings.
type OutputConfig struct {
	Path string `yaml:"path"` // derived from the input name when empty
	Iso  string `yaml:"iso"`  // optional STL of the zero level set
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a Config with the default values.
func Default() *Config {
	return &Config{
		Grid: GridConfig{
			Padding: 1,
		},
		Engine: EngineConfig{
			ExactBand: 1,
			Backend:   "auto",
			MaxPasses: sweep.DefaultMaxPasses,
			Tolerance: sweep.DefaultTolerance,
		},
		Mesh: MeshConfig{
			WeldTolerance: 1e-5,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
	}
}
