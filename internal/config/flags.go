package config

import (
	"flag"
	"strconv"
)

// Flags holds the command line overrides. Zero values leave the loaded
// configuration untouched.
type Flags struct {
	ConfigPath string
	CPU        bool
	GPU        bool
	Threads    int
	Padding    int
	ExactBand  int
	bandSet    bool
	Output     string
	Iso        string
	Debug      bool
	LogFile    string
}

// Register adds the flags to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", "", "Path to config file")
	fs.BoolVar(&f.CPU, "cpu", false, "Force the CPU backend")
	fs.BoolVar(&f.GPU, "gpu", false, "Require the GPU backend")
	fs.IntVar(&f.Threads, "threads", 0, "CPU worker count (0 = all hardware threads)")
	fs.IntVar(&f.Threads, "t", 0, "Shorthand for -threads")
	fs.IntVar(&f.Padding, "padding", 0, "Padding cells around the mesh")
	fs.IntVar(&f.Padding, "p", 0, "Shorthand for -padding")
	fs.Func("band", "Exact band width in cells", func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		f.ExactBand, f.bandSet = n, true
		return nil
	})
	fs.StringVar(&f.Output, "o", "", "Output file")
	fs.StringVar(&f.Iso, "iso", "", "Also write the zero level set as STL to this file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogFile, "log", "", "Log file path")
}

// apply applies the flag overrides to cfg.
func (f *Flags) apply(cfg *Config) {
	if f.CPU {
		cfg.Engine.Backend = "cpu"
	}
	if f.GPU {
		cfg.Engine.Backend = "gpu"
	}
	if f.Threads > 0 {
		cfg.Engine.Threads = f.Threads
	}
	if f.Padding > 0 {
		cfg.Grid.Padding = f.Padding
	}
	if f.bandSet {
		cfg.Engine.ExactBand = f.ExactBand
	}
	if f.Output != "" {
		cfg.Output.Path = f.Output
	}
	if f.Iso != "" {
		cfg.Output.Iso = f.Iso
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.File = f.LogFile
	}
}
