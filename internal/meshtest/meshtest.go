// Package meshtest provides reference meshes and brute force oracles shared by tests.
package meshtest

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"
)

// Cube returns the 8 vertex, 12 triangle box [min,max] with outward winding.
func Cube(min, max ms3.Vec) ([]ms3.Vec, [][3]int) {
	verts := []ms3.Vec{
		{X: min.X, Y: min.Y, Z: min.Z},
		{X: max.X, Y: min.Y, Z: min.Z},
		{X: max.X, Y: max.Y, Z: min.Z},
		{X: min.X, Y: max.Y, Z: min.Z},
		{X: min.X, Y: min.Y, Z: max.Z},
		{X: max.X, Y: min.Y, Z: max.Z},
		{X: max.X, Y: max.Y, Z: max.Z},
		{X: min.X, Y: max.Y, Z: max.Z},
	}
	tris := [][3]int{
		{0, 2, 1}, {0, 3, 2}, // z=min
		{4, 5, 6}, {4, 6, 7}, // z=max
		{0, 1, 5}, {0, 5, 4}, // y=min
		{2, 3, 7}, {2, 7, 6}, // y=max
		{0, 4, 7}, {0, 7, 3}, // x=min
		{1, 2, 6}, {1, 6, 5}, // x=max
	}
	return verts, tris
}

// Tetrahedron returns a closed outward-wound tetrahedron.
func Tetrahedron() ([]ms3.Vec, [][3]int) {
	verts := []ms3.Vec{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1},
	}
	tris := [][3]int{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}}
	return verts, tris
}

// Icosphere returns a sphere of the given radius and center built by
// subdividing an icosahedron. Winding is outward.
func Icosphere(center ms3.Vec, radius float32, subdivisions int) ([]ms3.Vec, [][3]int) {
	t := float32((1 + math.Sqrt(5)) / 2)
	verts := []ms3.Vec{
		{X: -1, Y: t}, {X: 1, Y: t}, {X: -1, Y: -t}, {X: 1, Y: -t},
		{Y: -1, Z: t}, {Y: 1, Z: t}, {Y: -1, Z: -t}, {Y: 1, Z: -t},
		{X: t, Z: -1}, {X: t, Z: 1}, {X: -t, Z: -1}, {X: -t, Z: 1},
	}
	tris := [][3]int{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}
	for i := range verts {
		verts[i] = ms3.Unit(verts[i])
	}
	for s := 0; s < subdivisions; s++ {
		mid := make(map[[2]int]int)
		midpoint := func(a, b int) int {
			key := [2]int{a, b}
			if a > b {
				key = [2]int{b, a}
			}
			if idx, ok := mid[key]; ok {
				return idx
			}
			verts = append(verts, ms3.Unit(ms3.Scale(0.5, ms3.Add(verts[a], verts[b]))))
			mid[key] = len(verts) - 1
			return len(verts) - 1
		}
		next := make([][3]int, 0, 4*len(tris))
		for _, tri := range tris {
			a := midpoint(tri[0], tri[1])
			b := midpoint(tri[1], tri[2])
			c := midpoint(tri[2], tri[0])
			next = append(next,
				[3]int{tri[0], a, c},
				[3]int{tri[1], b, a},
				[3]int{tri[2], c, b},
				[3]int{a, b, c},
			)
		}
		tris = next
	}
	for i := range verts {
		verts[i] = ms3.Add(center, ms3.Scale(radius, verts[i]))
	}
	return verts, tris
}

// Inside reports whether p is inside the closed mesh by counting ray crossings.
// The ray direction is fixed and chosen to avoid axis aligned degeneracies.
func Inside(p ms3.Vec, verts []ms3.Vec, tris [][3]int) bool {
	dir := [3]float64{-0.40475415, 0.86174632, -0.30588783}
	o := [3]float64{float64(p.X), float64(p.Y), float64(p.Z)}
	crossings := 0
	for _, tri := range tris {
		if rayHitsTriangle(o, dir, vec64(verts[tri[0]]), vec64(verts[tri[1]]), vec64(verts[tri[2]])) {
			crossings++
		}
	}
	return crossings%2 == 1
}

func vec64(v ms3.Vec) [3]float64 {
	return [3]float64{float64(v.X), float64(v.Y), float64(v.Z)}
}

func sub64(a, b [3]float64) [3]float64 { return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func dot64(a, b [3]float64) float64  { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
func cross64(a, b [3]float64) [3]float64 {
	return [3]float64{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
}

// rayHitsTriangle is the Möller-Trumbore intersection test.
func rayHitsTriangle(o, dir, a, b, c [3]float64) bool {
	const eps = 1e-12
	e1 := sub64(b, a)
	e2 := sub64(c, a)
	h := cross64(dir, e2)
	det := dot64(e1, h)
	if math.Abs(det) < eps {
		return false
	}
	f := 1 / det
	s := sub64(o, a)
	u := f * dot64(s, h)
	if u < 0 || u > 1 {
		return false
	}
	q := cross64(s, e1)
	v := f * dot64(dir, q)
	if v < 0 || u+v > 1 {
		return false
	}
	return f*dot64(e2, q) > eps
}

// BoxSurfaceDistance returns the exact unsigned distance from p to the surface of box [min,max].
func BoxSurfaceDistance(p, min, max ms3.Vec) float32 {
	c := ms3.Scale(0.5, ms3.Add(min, max))
	h := ms3.Scale(0.5, ms3.Sub(max, min))
	q := ms3.Sub(ms3.AbsElem(ms3.Sub(p, c)), h)
	outside := ms3.Norm(ms3.MaxElem(q, ms3.Vec{}))
	inside := math32.Min(math32.Max(q.X, math32.Max(q.Y, q.Z)), 0)
	return math32.Abs(outside + inside)
}
