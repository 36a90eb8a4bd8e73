package sdfgen

import (
	"fmt"

	"github.com/meet-brad-ch/SDFGenFast/glsdf"
	"github.com/meet-brad-ch/SDFGenFast/sweep"
)

type gpuStrategy struct{}

func (gpuStrategy) Backend() Backend { return BackendGPU }

func (gpuStrategy) Run(mesh Mesh, grid Grid, opts Options) (*Field, error) {
	pb, err := prepare(mesh, grid, opts)
	if err != nil {
		return nil, err
	}
	cfg := opts.sweepConfig()
	out, err := glsdf.Run(glsdf.Job{
		Vertices:  mesh.Vertices,
		Triangles: mesh.Triangles,
		BVH:       pb.bvh,
		Surface:   pb.orient,
		Band:      pb.band,
		Origin:    grid.Origin,
		Dx:        grid.Dx,
		Dims:      pb.dims(),
		MaxPasses: cfg.MaxPasses,
		Tolerance: cfg.Tolerance,
		Logger:    pb.log,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu generation: %w", err)
	}
	return pb.field(out.Values, sweep.Result{
		Passes:    out.Passes,
		MaxChange: out.MaxChange,
		Converged: out.Converged,
	}, BackendGPU), nil
}
