package sdfgen

import (
	"github.com/chewxy/math32"
	"github.com/meet-brad-ch/SDFGenFast/internal/d3"
	"github.com/soypat/glgl/math/ms3"
)

// Stats summarizes the values of a field.
type Stats struct {
	Total  int
	Inside int
	Min    float32
	Max    float32
}

// InsideFraction returns the fraction of cells with a negative value.
func (s Stats) InsideFraction() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Inside) / float64(s.Total)
}

// Stats computes the value summary of the field.
func (f *Field) Stats() Stats {
	s := Stats{Total: len(f.Values), Min: math32.MaxFloat32, Max: -math32.MaxFloat32}
	for _, v := range f.Values {
		if v < 0 {
			s.Inside++
		}
		s.Min = math32.Min(s.Min, v)
		s.Max = math32.Max(s.Max, v)
	}
	return s
}

// ZeroCrossings returns the indices of cells that are zero or have a face
// neighbour of opposite sign, in ascending order.
func (f *Field) ZeroCrossings() []int {
	var cells []int
	nx, nxy := f.Nx, f.Nx*f.Ny
	for k := 0; k < f.Nz; k++ {
		for j := 0; j < f.Ny; j++ {
			for i := 0; i < f.Nx; i++ {
				idx := f.Index(i, j, k)
				v := f.Values[idx]
				crosses := v == 0 ||
					(i > 0 && opposite(v, f.Values[idx-1])) || (i < f.Nx-1 && opposite(v, f.Values[idx+1])) ||
					(j > 0 && opposite(v, f.Values[idx-nx])) || (j < f.Ny-1 && opposite(v, f.Values[idx+nx])) ||
					(k > 0 && opposite(v, f.Values[idx-nxy])) || (k < f.Nz-1 && opposite(v, f.Values[idx+nxy]))
				if crosses {
					cells = append(cells, idx)
				}
			}
		}
	}
	return cells
}

func opposite(a, b float32) bool { return (a < 0) != (b < 0) }

// ZeroCrossingBounds returns the world space box spanned by the zero
// crossing cells. ok is false when the field has none.
func (f *Field) ZeroCrossingBounds() (bb ms3.Box, ok bool) {
	bb = d3.EmptyBox()
	for _, idx := range f.ZeroCrossings() {
		bb = d3.Include(bb, f.Pos(f.Cell(idx)))
		ok = true
	}
	return bb, ok
}

// Sample returns the trilinear interpolation of the field at p. Points
// outside the grid are clamped to its boundary.
func (f *Field) Sample(p ms3.Vec) float32 {
	rel := ms3.Scale(1/f.Dx, ms3.Sub(p, f.Origin))
	i, tx := sampleAxis(rel.X, f.Nx)
	j, ty := sampleAxis(rel.Y, f.Ny)
	k, tz := sampleAxis(rel.Z, f.Nz)
	i1, j1, k1 := min(i+1, f.Nx-1), min(j+1, f.Ny-1), min(k+1, f.Nz-1)
	lerp := func(a, b, t float32) float32 { return a + t*(b-a) }
	c00 := lerp(f.At(i, j, k), f.At(i1, j, k), tx)
	c10 := lerp(f.At(i, j1, k), f.At(i1, j1, k), tx)
	c01 := lerp(f.At(i, j, k1), f.At(i1, j, k1), tx)
	c11 := lerp(f.At(i, j1, k1), f.At(i1, j1, k1), tx)
	return lerp(lerp(c00, c10, ty), lerp(c01, c11, ty), tz)
}

// sampleAxis splits a continuous cell coordinate into a cell and a fraction.
func sampleAxis(x float32, n int) (int, float32) {
	if !(x > 0) {
		return 0, 0
	}
	if x >= float32(n-1) {
		return n - 1, 0
	}
	c := math32.Floor(x)
	return int(c), x - c
}
