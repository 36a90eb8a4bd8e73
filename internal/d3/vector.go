package d3

import (
	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"
)

// float32 vector routines missing from ms3 that the distance
// and orientation code leans on.

func Elem(side float32) ms3.Vec {
	return ms3.Vec{X: side, Y: side, Z: side}
}

func Dot(a, b ms3.Vec) float32 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

// Norm2 returns the squared euclidean norm of a.
func Norm2(a ms3.Vec) float32 {
	return a.X*a.X + a.Y*a.Y + a.Z*a.Z
}

// Dist2 returns the squared distance between a and b.
func Dist2(a, b ms3.Vec) float32 {
	return Norm2(ms3.Sub(a, b))
}

// MinElem return a vector with the minimum components of two vectors.
func MinElem(a, b ms3.Vec) ms3.Vec {
	return ms3.Vec{X: math32.Min(a.X, b.X), Y: math32.Min(a.Y, b.Y), Z: math32.Min(a.Z, b.Z)}
}

// MaxElem return a vector with the maximum components of two vectors.
func MaxElem(a, b ms3.Vec) ms3.Vec {
	return ms3.Vec{X: math32.Max(a.X, b.X), Y: math32.Max(a.Y, b.Y), Z: math32.Max(a.Z, b.Z)}
}

// Comp returns the axis component of a. axis must be 0, 1 or 2.
func Comp(a ms3.Vec, axis int) float32 {
	switch axis {
	case 0:
		return a.X
	case 1:
		return a.Y
	case 2:
		return a.Z
	}
	panic("d3: bad axis")
}

// LongestAxis returns the index of the largest component of a, preferring x then y on ties.
func LongestAxis(a ms3.Vec) int {
	if a.X >= a.Y && a.X >= a.Z {
		return 0
	} else if a.Y >= a.Z {
		return 1
	}
	return 2
}

// IsFinite reports whether all components of a are neither NaN nor infinite.
func IsFinite(a ms3.Vec) bool {
	return !(math32.IsNaN(a.X) || math32.IsInf(a.X, 0) ||
		math32.IsNaN(a.Y) || math32.IsInf(a.Y, 0) ||
		math32.IsNaN(a.Z) || math32.IsInf(a.Z, 0))
}

// SafeUnit normalizes a. A zero length vector is returned unchanged.
func SafeUnit(a ms3.Vec) ms3.Vec {
	n := ms3.Norm(a)
	if n == 0 {
		return ms3.Vec{}
	}
	return ms3.Scale(1/n, a)
}
