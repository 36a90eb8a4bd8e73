package sdfgen

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// Generate computes the signed distance field of mesh sampled on grid.
//
// Validation failures wrap [ErrInvalidMesh], [ErrInvalidGrid] or
// [ErrInvalidOptions]. Requesting [BackendGPU] without a usable device
// fails with [ErrBackendUnavailable]. With [BackendAuto] a failing GPU run
// is retried on the CPU.
//
// Propagation that hits the pass cap is not an error: the returned field
// has Approximate set.
func Generate(mesh Mesh, grid Grid, opts Options) (*Field, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	log := opts.logger()
	st, err := NewStrategy(opts.Backend, log)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	field, err := st.Run(mesh, grid, opts)
	if err != nil && opts.Backend == BackendAuto && st.Backend() == BackendGPU && !isValidationError(err) {
		log.Warn("gpu backend failed, falling back to cpu", zap.Error(err))
		st = cpuStrategy{}
		field, err = st.Run(mesh, grid, opts)
	}
	if err != nil {
		return nil, err
	}
	log.Info("signed distance field generated",
		zap.Stringer("backend", field.Backend),
		zap.Stringer("grid", field.Grid),
		zap.Int("passes", field.Passes),
		zap.Bool("approximate", field.Approximate),
		zap.Duration("elapsed", time.Since(start)),
	)
	return field, nil
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrInvalidMesh) || errors.Is(err, ErrInvalidGrid) || errors.Is(err, ErrInvalidOptions)
}
