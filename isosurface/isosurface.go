// Package isosurface triangulates the zero level set of a generated field.
// The mesh is intended for inspecting a field next to its source mesh.
package isosurface

import (
	"errors"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	sdfgen "github.com/meet-brad-ch/SDFGenFast"
	"github.com/meet-brad-ch/SDFGenFast/meshio"
	"github.com/soypat/glgl/math/ms3"
)

var _ sdf.SDF3 = fieldSDF{}

// fieldSDF evaluates a field by trilinear interpolation.
type fieldSDF struct {
	f  *sdfgen.Field
	bb sdf.Box3
}

func (s fieldSDF) Evaluate(p v3.Vec) float64 {
	return float64(s.f.Sample(ms3.Vec{X: float32(p.X), Y: float32(p.Y), Z: float32(p.Z)}))
}

func (s fieldSDF) BoundingBox() sdf.Box3 { return s.bb }

// Extract runs marching cubes over the field with cells cubes along the
// longest grid axis and welds the result. A non-positive cells uses the
// grid resolution.
func Extract(f *sdfgen.Field, cells int) (sdfgen.Mesh, error) {
	if err := f.Grid.Validate(); err != nil {
		return sdfgen.Mesh{}, err
	}
	if len(f.Values) != f.Len() {
		return sdfgen.Mesh{}, errors.New("field values do not match its grid")
	}
	if cells <= 0 {
		cells = max(f.Nx, f.Ny, f.Nz)
	}
	b := f.Bounds()
	s := fieldSDF{f: f, bb: sdf.Box3{
		Min: v3.Vec{X: float64(b.Min.X), Y: float64(b.Min.Y), Z: float64(b.Min.Z)},
		Max: v3.Vec{X: float64(b.Max.X), Y: float64(b.Max.Y), Z: float64(b.Max.Z)},
	}}
	var soup sdfgen.Mesh
	for _, tri := range render.ToTriangles(s, render.NewMarchingCubesUniform(cells)) {
		base := len(soup.Vertices)
		for j := 0; j < 3; j++ {
			v := tri[j]
			soup.Vertices = append(soup.Vertices, ms3.Vec{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)})
		}
		soup.Triangles = append(soup.Triangles, [3]int{base, base + 1, base + 2})
	}
	if len(soup.Triangles) == 0 {
		return sdfgen.Mesh{}, errors.New("field has no zero crossing")
	}
	// Vertices shared by neighbouring cubes are computed identically.
	mesh, _, err := meshio.Weld(soup, 1e-4*f.Dx)
	return mesh, err
}
