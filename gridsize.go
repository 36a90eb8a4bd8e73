package sdfgen

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/meet-brad-ch/SDFGenFast/internal/d3"
	"github.com/soypat/glgl/math/ms3"
)

// MinPadding is the smallest number of cells left between the mesh bounds
// and the grid boundary by the grid sizing helpers.
const MinPadding = 1

// GridFromCellSize returns a grid with cell size dx covering bounds plus
// padding cells on every side. The grid origin is the padded box minimum.
// Each axis holds ceil(size/dx)+2*padding+1 samples, so the last sample
// lies at or past the padded maximum. Truncating (size+2*padding*dx)/dx
// instead would give one or two samples fewer and could stop short of it.
func GridFromCellSize(bounds ms3.Box, dx float32, padding int) (Grid, error) {
	padding = max(padding, MinPadding)
	if err := checkBounds(bounds); err != nil {
		return Grid{}, err
	}
	if !(dx > 0) {
		return Grid{}, fmt.Errorf("%w: cell size %g", ErrInvalidGrid, dx)
	}
	size := bounds.Size()
	pad := float32(padding) * dx
	g := Grid{
		Origin: ms3.Sub(bounds.Min, d3.Elem(pad)),
		Dx:     dx,
		Nx:     int(math32.Ceil(size.X/dx)) + 2*padding + 1,
		Ny:     int(math32.Ceil(size.Y/dx)) + 2*padding + 1,
		Nz:     int(math32.Ceil(size.Z/dx)) + 2*padding + 1,
	}
	return g, g.Validate()
}

// GridFromResolution returns a grid nx cells wide along x whose y and z
// dimensions follow the aspect ratio of bounds. The cell size fits the
// mesh width into nx-2*padding cells and the mesh is centred in the grid.
func GridFromResolution(bounds ms3.Box, nx, padding int) (Grid, error) {
	padding = max(padding, MinPadding)
	if err := checkBounds(bounds); err != nil {
		return Grid{}, err
	}
	if nx-2*padding <= 0 {
		return Grid{}, fmt.Errorf("%w: %d cells cannot hold %d padding cells per side", ErrInvalidGrid, nx, padding)
	}
	size := bounds.Size()
	dx := size.X / float32(nx-2*padding)
	if !(dx > 0) {
		return Grid{}, fmt.Errorf("%w: mesh has no extent along x", ErrInvalidGrid)
	}
	ny := int(size.Y/dx+0.5) + 2*padding
	nz := int(size.Z/dx+0.5) + 2*padding
	return centredGrid(bounds, dx, nx, ny, nz)
}

// GridFromDims returns an nx*ny*nz grid with the smallest cell size that
// fits bounds with padding cells on every side. The mesh is centred.
func GridFromDims(bounds ms3.Box, nx, ny, nz, padding int) (Grid, error) {
	padding = max(padding, MinPadding)
	if err := checkBounds(bounds); err != nil {
		return Grid{}, err
	}
	if min(nx, ny, nz)-2*padding <= 0 {
		return Grid{}, fmt.Errorf("%w: %dx%dx%d cells cannot hold %d padding cells per side", ErrInvalidGrid, nx, ny, nz, padding)
	}
	size := bounds.Size()
	dx := math32.Max(size.X/float32(nx-2*padding), math32.Max(size.Y/float32(ny-2*padding), size.Z/float32(nz-2*padding)))
	if !(dx > 0) {
		return Grid{}, fmt.Errorf("%w: mesh has no extent", ErrInvalidGrid)
	}
	return centredGrid(bounds, dx, nx, ny, nz)
}

func centredGrid(bounds ms3.Box, dx float32, nx, ny, nz int) (Grid, error) {
	half := ms3.Scale(0.5*dx, ms3.Vec{X: float32(nx - 1), Y: float32(ny - 1), Z: float32(nz - 1)})
	g := Grid{
		Origin: ms3.Sub(d3.Center(bounds), half),
		Dx:     dx,
		Nx:     nx,
		Ny:     ny,
		Nz:     nz,
	}
	return g, g.Validate()
}

func checkBounds(bounds ms3.Box) error {
	if d3.IsEmpty(bounds) || !d3.IsFinite(bounds.Min) || !d3.IsFinite(bounds.Max) {
		return fmt.Errorf("%w: mesh bounds %v", ErrInvalidMesh, bounds)
	}
	return nil
}
