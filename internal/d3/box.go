package d3

import (
	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"
)

// EmptyBox returns an inverted box that any Include call turns into a valid one.
func EmptyBox() ms3.Box {
	return ms3.Box{
		Min: Elem(math32.MaxFloat32),
		Max: Elem(-math32.MaxFloat32),
	}
}

// Include enlarges a 3d box to include a point.
func Include(b ms3.Box, v ms3.Vec) ms3.Box {
	return ms3.Box{
		Min: MinElem(b.Min, v),
		Max: MaxElem(b.Max, v),
	}
}

// Extend returns a box enclosing two 3d boxes.
func Extend(a, b ms3.Box) ms3.Box {
	return ms3.Box{
		Min: MinElem(a.Min, b.Min),
		Max: MaxElem(a.Max, b.Max),
	}
}

// IsEmpty reports whether the box has Min greater than Max on any axis.
func IsEmpty(b ms3.Box) bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// TriangleBox returns the bounding box of the triangle a,b,c.
func TriangleBox(a, b, c ms3.Vec) ms3.Box {
	return ms3.Box{
		Min: MinElem(a, MinElem(b, c)),
		Max: MaxElem(a, MaxElem(b, c)),
	}
}

// BoxDist2 returns the squared distance from p to the closest point of b.
// It is zero when p lies inside the box.
func BoxDist2(p ms3.Vec, b ms3.Box) float32 {
	// https://math.stackexchange.com/questions/2133217/minimal-distance-to-a-cube-in-2d-and-3d-from-a-point-lying-outside
	dx := math32.Max(0, math32.Max(p.X-b.Max.X, b.Min.X-p.X))
	dy := math32.Max(0, math32.Max(p.Y-b.Max.Y, b.Min.Y-p.Y))
	dz := math32.Max(0, math32.Max(p.Z-b.Max.Z, b.Min.Z-p.Z))
	return dx*dx + dy*dy + dz*dz
}

// Center returns the center of a 3d box.
func Center(b ms3.Box) ms3.Vec {
	return ms3.Scale(0.5, ms3.Add(b.Min, b.Max))
}
