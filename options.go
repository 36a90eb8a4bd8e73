package sdfgen

import (
	"fmt"

	"github.com/meet-brad-ch/SDFGenFast/internal/logger"
	"github.com/meet-brad-ch/SDFGenFast/sweep"
	"go.uber.org/zap"
)

// DefaultExactBand is the default number of cells the exact band extends
// past each triangle's bounding box.
const DefaultExactBand = 1

// Options configures generation. The zero value is valid and uses an exact
// band of 0 cells; start from [DefaultOptions] for the usual settings.
type Options struct {
	// ExactBand is the number of cells around each triangle's bounding box
	// whose distance is computed exactly. Must not be negative.
	ExactBand int
	// Backend selects where generation runs.
	Backend Backend
	// Threads is the CPU worker count. 0 uses every hardware thread.
	Threads int
	// MaxPasses caps propagation passes. 0 means sweep.DefaultMaxPasses.
	MaxPasses int
	// Tolerance is the convergence threshold relative to the cell size.
	// 0 means sweep.DefaultTolerance.
	Tolerance float32
	// Logger receives progress messages. nil uses the global logger.
	Logger *zap.Logger
}

// DefaultOptions returns the options used by the command line tool.
func DefaultOptions() Options {
	return Options{
		ExactBand: DefaultExactBand,
		Backend:   BackendAuto,
		MaxPasses: sweep.DefaultMaxPasses,
		Tolerance: sweep.DefaultTolerance,
	}
}

func (opts Options) validate() error {
	switch {
	case opts.ExactBand < 0:
		return fmt.Errorf("%w: negative exact band %d", ErrInvalidOptions, opts.ExactBand)
	case opts.Threads < 0:
		return fmt.Errorf("%w: negative thread count %d", ErrInvalidOptions, opts.Threads)
	case opts.MaxPasses < 0:
		return fmt.Errorf("%w: negative pass cap %d", ErrInvalidOptions, opts.MaxPasses)
	case opts.Tolerance < 0:
		return fmt.Errorf("%w: negative tolerance %g", ErrInvalidOptions, opts.Tolerance)
	case opts.Backend > BackendGPU:
		return fmt.Errorf("%w: unknown backend %d", ErrInvalidOptions, int(opts.Backend))
	}
	return nil
}

func (opts Options) logger() *zap.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return logger.L()
}

func (opts Options) sweepConfig() sweep.Config {
	return sweep.Config{
		MaxPasses: opts.MaxPasses,
		Tolerance: opts.Tolerance,
		Logger:    opts.logger(),
	}
}
