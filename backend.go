package sdfgen

import (
	"fmt"
	"strings"

	"github.com/meet-brad-ch/SDFGenFast/glsdf"
	"go.uber.org/zap"
)

// Backend selects the hardware generation runs on.
type Backend uint8

const (
	// BackendAuto uses the GPU when [GPUAvailable] reports a device and
	// falls back to the CPU otherwise.
	BackendAuto Backend = iota
	// BackendCPU runs on a worker pool.
	BackendCPU
	// BackendGPU runs OpenGL compute kernels. Generation fails with
	// [ErrBackendUnavailable] when no device can be used.
	BackendGPU
)

func (b Backend) String() string {
	switch b {
	case BackendAuto:
		return "auto"
	case BackendCPU:
		return "cpu"
	case BackendGPU:
		return "gpu"
	}
	return fmt.Sprintf("Backend(%d)", uint8(b))
}

// ParseBackend parses a backend name. The "-only" suffixed forms are accepted.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return BackendAuto, nil
	case "cpu", "cpu-only":
		return BackendCPU, nil
	case "gpu", "gpu-only":
		return BackendGPU, nil
	}
	return 0, fmt.Errorf("%w: unknown backend %q", ErrInvalidOptions, s)
}

// GPUAvailable reports whether an OpenGL compute device can be used. The
// probe runs once per process; see [ReprobeGPU].
func GPUAvailable() bool { return glsdf.Available() }

// ReprobeGPU discards the cached result of [GPUAvailable] and probes again.
func ReprobeGPU() bool { return glsdf.Reprobe() }

// Strategy generates a field on one kind of hardware. Implementations
// produce the same values for the same input up to floating point
// rounding differences of the device.
type Strategy interface {
	Backend() Backend
	Run(mesh Mesh, grid Grid, opts Options) (*Field, error)
}

// NewStrategy returns the strategy for b. BackendAuto is resolved by probing
// the GPU; the choice is logged to log.
func NewStrategy(b Backend, log *zap.Logger) (Strategy, error) {
	switch b {
	case BackendCPU:
		return cpuStrategy{}, nil
	case BackendGPU:
		if !GPUAvailable() {
			return nil, fmt.Errorf("%w: no OpenGL compute device: %v", ErrBackendUnavailable, glsdf.ProbeError())
		}
		return gpuStrategy{}, nil
	case BackendAuto:
		if GPUAvailable() {
			log.Info("backend selected", zap.Stringer("backend", BackendGPU), zap.String("gl", glsdf.Version()))
			return gpuStrategy{}, nil
		}
		log.Info("backend selected", zap.Stringer("backend", BackendCPU), zap.NamedError("gpu", glsdf.ProbeError()))
		return cpuStrategy{}, nil
	}
	return nil, fmt.Errorf("%w: unknown backend %d", ErrInvalidOptions, int(b))
}
