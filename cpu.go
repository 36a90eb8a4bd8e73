package sdfgen

import (
	"github.com/meet-brad-ch/SDFGenFast/internal/parallel"
	"github.com/meet-brad-ch/SDFGenFast/sweep"
	"go.uber.org/zap"
)

// bandChunk is the smallest number of band cells handed to a worker.
const bandChunk = 64

type cpuStrategy struct{}

func (cpuStrategy) Backend() Backend { return BackendCPU }

func (cpuStrategy) Run(mesh Mesh, grid Grid, opts Options) (*Field, error) {
	pb, err := prepare(mesh, grid, opts)
	if err != nil {
		return nil, err
	}
	pool := parallel.New(opts.Threads)
	defer pool.Close()
	pb.log.Debug("cpu backend", zap.Int("workers", pool.Workers()))

	vals := make([]float32, grid.Len())
	for i := range vals {
		vals[i] = sweep.Sentinel
	}
	frozen := make([]bool, grid.Len())
	pb.evaluateBand(vals, frozen, pool)
	res := sweep.Propagate(vals, frozen, pb.dims(), grid.Dx, opts.sweepConfig(), pool)
	return pb.field(vals, res, BackendCPU), nil
}

// evaluateBand stores the exact signed distance of every band cell and
// freezes it. Each worker writes a disjoint range of cells.
func (pb *problem) evaluateBand(vals []float32, frozen []bool, pool *parallel.Pool) {
	for _, c := range pb.band {
		frozen[c] = true
	}
	pool.For(len(pb.band), bandChunk, func(_, lo, hi int) {
		var scratch []int32
		for _, c := range pb.band[lo:hi] {
			p := pb.grid.Pos(pb.grid.Cell(int(c)))
			hit, s, ok := pb.bvh.Nearest(p, pb.grid.Dx, scratch)
			scratch = s
			if !ok {
				continue
			}
			vals[c] = pb.orient.Sign(p, hit) * hit.Dist()
		}
	})
}
