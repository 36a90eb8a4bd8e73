// Package sdfgen builds signed distance fields from triangle meshes.
//
// A field is sampled on a regular grid. Cells close to the surface receive
// the exact distance to the nearest triangle; the rest of the grid is filled
// by fast sweeping from those cells. Values are negative inside the surface.
// Generation runs either on a CPU worker pool or on an OpenGL 4.3+ compute
// device, see [Backend].
package sdfgen

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/meet-brad-ch/SDFGenFast/internal/d3"
	"github.com/soypat/glgl/math/ms3"
)

// Mesh is a triangle mesh. Triangles index into Vertices and are expected
// to be wound counter clockwise when viewed from outside.
type Mesh struct {
	Vertices  []ms3.Vec
	Triangles [][3]int
}

// Bounds returns the bounding box of the mesh vertices.
func (m Mesh) Bounds() ms3.Box {
	bb := d3.EmptyBox()
	for _, v := range m.Vertices {
		bb = d3.Include(bb, v)
	}
	return bb
}

// Validate checks the mesh can be processed. Returned errors wrap [ErrInvalidMesh].
func (m Mesh) Validate() error {
	switch {
	case len(m.Vertices) == 0:
		return fmt.Errorf("%w: no vertices", ErrInvalidMesh)
	case len(m.Triangles) == 0:
		return fmt.Errorf("%w: no triangles", ErrInvalidMesh)
	case len(m.Vertices) > math.MaxInt32 || len(m.Triangles) > math.MaxInt32:
		return fmt.Errorf("%w: too many elements", ErrInvalidMesh)
	}
	for i, v := range m.Vertices {
		if !d3.IsFinite(v) {
			return fmt.Errorf("%w: vertex %d is not finite: %v", ErrInvalidMesh, i, v)
		}
	}
	nv := len(m.Vertices)
	for i, tri := range m.Triangles {
		for _, vi := range tri {
			if vi < 0 || vi >= nv {
				return fmt.Errorf("%w: triangle %d references vertex %d of %d", ErrInvalidMesh, i, vi, nv)
			}
		}
	}
	return nil
}

// Grid describes a regular sampling grid. Cell (i,j,k) is located at
// Origin + Dx*(i,j,k).
type Grid struct {
	Origin     ms3.Vec
	Dx         float32
	Nx, Ny, Nz int
}

// Len returns the number of cells in the grid.
func (g Grid) Len() int { return g.Nx * g.Ny * g.Nz }

// Index returns the position of cell (i,j,k) in the value array. x varies fastest.
func (g Grid) Index(i, j, k int) int { return i + g.Nx*(j+g.Ny*k) }

// Cell is the inverse of Index.
func (g Grid) Cell(idx int) (i, j, k int) {
	i = idx % g.Nx
	idx /= g.Nx
	return i, idx % g.Ny, idx / g.Ny
}

// Pos returns the world position of cell (i,j,k).
func (g Grid) Pos(i, j, k int) ms3.Vec {
	return ms3.Add(g.Origin, ms3.Vec{X: g.Dx * float32(i), Y: g.Dx * float32(j), Z: g.Dx * float32(k)})
}

// Bounds returns the box spanned by the cell positions.
func (g Grid) Bounds() ms3.Box {
	return ms3.Box{Min: g.Origin, Max: g.Pos(g.Nx-1, g.Ny-1, g.Nz-1)}
}

// Validate checks the grid can be allocated. Returned errors wrap [ErrInvalidGrid].
func (g Grid) Validate() error {
	if !(g.Dx > 0) || math32.IsInf(g.Dx, 1) {
		return fmt.Errorf("%w: cell size %g", ErrInvalidGrid, g.Dx)
	}
	if g.Nx <= 0 || g.Ny <= 0 || g.Nz <= 0 {
		return fmt.Errorf("%w: dimensions %dx%dx%d", ErrInvalidGrid, g.Nx, g.Ny, g.Nz)
	}
	if !d3.IsFinite(g.Origin) {
		return fmt.Errorf("%w: origin %v", ErrInvalidGrid, g.Origin)
	}
	n := int64(g.Nx) * int64(g.Ny)
	if n > math.MaxInt32 || n*int64(g.Nz) > math.MaxInt32 {
		return fmt.Errorf("%w: %dx%dx%d cells exceed the addressable size", ErrInvalidGrid, g.Nx, g.Ny, g.Nz)
	}
	return nil
}

func (g Grid) String() string {
	return fmt.Sprintf("%dx%dx%d dx=%g origin=(%g,%g,%g)", g.Nx, g.Ny, g.Nz, g.Dx, g.Origin.X, g.Origin.Y, g.Origin.Z)
}

// Field is a generated signed distance field.
type Field struct {
	Grid
	// Values holds one signed distance per cell in Grid.Index order.
	Values []float32
	// Approximate is set when propagation stopped at the pass cap before
	// converging. Values are still usable.
	Approximate bool
	// Passes is the number of propagation passes run.
	Passes int
	// Backend is the backend that produced the field.
	Backend Backend
}

// At returns the value of cell (i,j,k).
func (f *Field) At(i, j, k int) float32 { return f.Values[f.Index(i, j, k)] }
