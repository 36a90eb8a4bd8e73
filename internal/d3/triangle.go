package d3

import (
	"github.com/soypat/glgl/math/ms3"
)

// Feature identifies the Voronoi region of a triangle that contains
// the closest point to a query.
type Feature uint8

const (
	FeatureV0 Feature = iota
	FeatureV1
	FeatureV2
	FeatureE0 // edge v0-v1
	FeatureE1 // edge v1-v2
	FeatureE2 // edge v2-v0
	FeatureFace
)

// IsVertex reports whether f is one of the three vertex regions.
func (f Feature) IsVertex() bool { return f <= FeatureV2 }

// IsEdge reports whether f is one of the three edge regions.
func (f Feature) IsEdge() bool { return f >= FeatureE0 && f <= FeatureE2 }

func (f Feature) String() string {
	switch {
	case f.IsVertex():
		return "vertex"
	case f.IsEdge():
		return "edge"
	case f == FeatureFace:
		return "face"
	}
	return "invalid"
}

// ClosestOnTriangle returns the point of the solid triangle a,b,c closest to p
// and the region it lies in. Based on Ericson's Real-Time Collision Detection 5.1.5.
// Degenerate triangles never report FeatureFace.
//
// The operation order here is mirrored by the GLSL band kernel; keep them in sync.
func ClosestOnTriangle(p, a, b, c ms3.Vec) (ms3.Vec, Feature) {
	ab := ms3.Sub(b, a)
	ac := ms3.Sub(c, a)
	ap := ms3.Sub(p, a)
	d1 := Dot(ab, ap)
	d2 := Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a, FeatureV0
	}

	bp := ms3.Sub(p, b)
	d3 := Dot(ab, bp)
	d4 := Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b, FeatureV1
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		den := d1 - d3
		if den <= 0 {
			return a, FeatureV0
		}
		v := d1 / den
		return ms3.Add(a, ms3.Scale(v, ab)), FeatureE0
	}

	cp := ms3.Sub(p, c)
	d5 := Dot(ab, cp)
	d6 := Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c, FeatureV2
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		den := d2 - d6
		if den <= 0 {
			return a, FeatureV0
		}
		w := d2 / den
		return ms3.Add(a, ms3.Scale(w, ac)), FeatureE2
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		den := (d4 - d3) + (d5 - d6)
		if den <= 0 {
			return b, FeatureV1
		}
		w := (d4 - d3) / den
		return ms3.Add(b, ms3.Scale(w, ms3.Sub(c, b))), FeatureE1
	}

	denom := va + vb + vc
	if denom <= 0 {
		return closestOnEdges(p, a, b, c)
	}
	inv := 1 / denom
	v := vb * inv
	w := vc * inv
	return ms3.Add(a, ms3.Add(ms3.Scale(v, ab), ms3.Scale(w, ac))), FeatureFace
}

// closestOnEdges handles zero area triangles where the face region is empty.
func closestOnEdges(p, a, b, c ms3.Vec) (ms3.Vec, Feature) {
	best, bestFeat := ClosestOnSegment(p, a, b), FeatureE0
	bestD := Dist2(p, best)
	if q := ClosestOnSegment(p, b, c); Dist2(p, q) < bestD {
		best, bestFeat, bestD = q, FeatureE1, Dist2(p, q)
	}
	if q := ClosestOnSegment(p, c, a); Dist2(p, q) < bestD {
		best, bestFeat = q, FeatureE2
	}
	return best, bestFeat
}

// ClosestOnSegment returns the point of segment a-b closest to p.
func ClosestOnSegment(p, a, b ms3.Vec) ms3.Vec {
	ab := ms3.Sub(b, a)
	den := Norm2(ab)
	if den == 0 {
		return a
	}
	t := Dot(ms3.Sub(p, a), ab) / den
	if t <= 0 {
		return a
	} else if t >= 1 {
		return b
	}
	return ms3.Add(a, ms3.Scale(t, ab))
}

// TriangleNormal returns the unnormalized normal (b-a)x(c-a). Its length is twice the area.
func TriangleNormal(a, b, c ms3.Vec) ms3.Vec {
	return ms3.Cross(ms3.Sub(b, a), ms3.Sub(c, a))
}
