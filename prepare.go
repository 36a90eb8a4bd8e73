package sdfgen

import (
	"github.com/chewxy/math32"
	"github.com/meet-brad-ch/SDFGenFast/index"
	"github.com/meet-brad-ch/SDFGenFast/internal/d3"
	"github.com/meet-brad-ch/SDFGenFast/surface"
	"github.com/meet-brad-ch/SDFGenFast/sweep"
	"go.uber.org/zap"
)

// problem is a validated generation request with the mesh acceleration
// data shared by both backends.
type problem struct {
	mesh   Mesh
	grid   Grid
	opts   Options
	log    *zap.Logger
	bvh    *index.BVH
	orient *surface.Orientation
	// band lists the exact band cells in ascending index order.
	band []int32
}

func prepare(mesh Mesh, grid Grid, opts Options) (*problem, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	pb := &problem{
		mesh: mesh,
		grid: grid,
		opts: opts,
		log:  opts.logger(),
	}
	pb.bvh = index.Build(mesh.Vertices, mesh.Triangles)
	pb.log.Debug("triangle index built",
		zap.Int("triangles", pb.bvh.Len()),
		zap.Int("nodes", len(pb.bvh.Nodes())),
		zap.Int("leaves", pb.bvh.Leaves()),
		zap.Int("depth", pb.bvh.Depth()),
	)
	pb.orient = surface.Build(mesh.Vertices, mesh.Triangles)
	if !pb.orient.Closed() {
		pb.log.Warn("mesh is not closed, signs near its holes may be wrong",
			zap.Int("boundaryEdges", pb.orient.BoundaryEdges),
			zap.Int("openComponents", pb.orient.OpenComponents),
			zap.Int("components", pb.orient.Components),
		)
	}
	if pb.orient.ExteriorComponents > 0 {
		pb.log.Warn("open components enclosing no volume are treated as exterior",
			zap.Int("components", pb.orient.ExteriorComponents))
	}
	if pb.orient.NonManifoldEdges > 0 {
		pb.log.Warn("mesh has non-manifold edges", zap.Int("edges", pb.orient.NonManifoldEdges))
	}
	pb.band = bandCells(mesh, grid, opts.ExactBand)
	pb.log.Debug("exact band", zap.Int("cells", len(pb.band)), zap.Int("width", opts.ExactBand))
	return pb, nil
}

func (pb *problem) dims() sweep.Dims {
	return sweep.Dims{Nx: pb.grid.Nx, Ny: pb.grid.Ny, Nz: pb.grid.Nz}
}

// field assembles the result and reports non-convergence.
func (pb *problem) field(vals []float32, res sweep.Result, b Backend) *Field {
	if !res.Converged {
		pb.log.Warn("propagation did not converge, field is approximate",
			zap.Int("passes", res.Passes),
			zap.Float32("maxChange", res.MaxChange),
		)
	}
	return &Field{
		Grid:        pb.grid,
		Values:      vals,
		Approximate: !res.Converged,
		Passes:      res.Passes,
		Backend:     b,
	}
}

// bandCells returns the cells within band cells of any triangle's bounding
// box. Ranges are clamped to the grid so triangles outside of it still seed
// the nearest boundary cells.
func bandCells(mesh Mesh, grid Grid, band int) []int32 {
	mark := make([]bool, grid.Len())
	count := 0
	for _, tri := range mesh.Triangles {
		bb := d3.TriangleBox(mesh.Vertices[tri[0]], mesh.Vertices[tri[1]], mesh.Vertices[tri[2]])
		i0, i1 := cellRange(bb.Min.X, bb.Max.X, grid.Origin.X, grid.Dx, band, grid.Nx)
		j0, j1 := cellRange(bb.Min.Y, bb.Max.Y, grid.Origin.Y, grid.Dx, band, grid.Ny)
		k0, k1 := cellRange(bb.Min.Z, bb.Max.Z, grid.Origin.Z, grid.Dx, band, grid.Nz)
		for k := k0; k <= k1; k++ {
			for j := j0; j <= j1; j++ {
				row := grid.Index(0, j, k)
				for i := i0; i <= i1; i++ {
					if !mark[row+i] {
						mark[row+i] = true
						count++
					}
				}
			}
		}
	}
	cells := make([]int32, 0, count)
	for idx, m := range mark {
		if m {
			cells = append(cells, int32(idx))
		}
	}
	return cells
}

func cellRange(lo, hi, origin, dx float32, band, n int) (int, int) {
	return clampCell(math32.Floor((lo-origin)/dx), -band, n), clampCell(math32.Ceil((hi-origin)/dx), band, n)
}

func clampCell(f float32, offset, n int) int {
	if f < -1 {
		f = -1
	} else if f > float32(n) {
		f = float32(n)
	}
	c := int(f) + offset
	if c < 0 {
		return 0
	}
	if c > n-1 {
		return n - 1
	}
	return c
}
