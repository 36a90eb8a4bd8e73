// Package surface computes the orientation data used to decide on which
// side of a triangle mesh a point lies: face normals and angle weighted
// pseudonormals for edges and vertices (Bærentzen and Aanæs, 2005), plus
// the edge connectivity needed to detect open surfaces.
package surface

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/meet-brad-ch/SDFGenFast/index"
	"github.com/meet-brad-ch/SDFGenFast/internal/d3"
	"github.com/soypat/glgl/math/ms3"
)

// Orientation holds per-feature normals of a mesh. It is read-only after Build.
type Orientation struct {
	tris [][3]int
	// FaceN is the unit normal of each triangle, zero for degenerate triangles.
	FaceN []ms3.Vec
	// EdgeN holds 3 pseudonormals per triangle in the order
	// v0-v1, v1-v2, v2-v0. They are the sum of the unit normals of
	// every face sharing the edge.
	EdgeN []ms3.Vec
	// VertN is the angle weighted pseudonormal of each vertex.
	VertN []ms3.Vec
	// Exterior marks triangles of open components that enclose no volume,
	// such as loose sheets. Points closest to them are always outside.
	// Open components that still wrap a volume keep the pseudonormal test
	// and only get wrong signs near their holes.
	Exterior []bool

	BoundaryEdges      int
	NonManifoldEdges   int
	Components         int
	OpenComponents     int
	ExteriorComponents int
	Degenerate         int
}

// flatVolume is the enclosed volume, relative to the cube of the bounding
// box diagonal, below which an open component counts as a sheet.
const flatVolume = 1e-3

type edgeKey [2]int

func makeEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

type edgeInfo struct {
	count int32
	first int32 // first triangle found using this edge
	n     ms3.Vec
}

// Build computes the orientation data of the mesh. Triangle indices must be valid.
func Build(verts []ms3.Vec, tris [][3]int) *Orientation {
	o := &Orientation{
		tris:     tris,
		FaceN:    make([]ms3.Vec, len(tris)),
		EdgeN:    make([]ms3.Vec, 3*len(tris)),
		VertN:    make([]ms3.Vec, len(verts)),
		Exterior: make([]bool, len(tris)),
	}
	uf := newUnionFind(len(tris))
	edges := make(map[edgeKey]*edgeInfo, 3*len(tris)/2)
	for i, tri := range tris {
		a, b, c := verts[tri[0]], verts[tri[1]], verts[tri[2]]
		n := d3.SafeUnit(d3.TriangleNormal(a, b, c))
		o.FaceN[i] = n
		if n == (ms3.Vec{}) {
			o.Degenerate++
		}
		for j := 0; j < 3; j++ {
			key := makeEdgeKey(tri[j], tri[(j+1)%3])
			e, ok := edges[key]
			if !ok {
				e = &edgeInfo{first: int32(i)}
				edges[key] = e
			} else {
				uf.union(int(e.first), i)
			}
			e.count++
			e.n = ms3.Add(e.n, n)
		}
		// Angle weighted vertex normals.
		for j := 0; j < 3; j++ {
			if n == (ms3.Vec{}) {
				break
			}
			v := verts[tri[j]]
			alpha := angle(ms3.Sub(verts[tri[(j+1)%3]], v), ms3.Sub(verts[tri[(j+2)%3]], v))
			o.VertN[tri[j]] = ms3.Add(o.VertN[tri[j]], ms3.Scale(alpha, n))
		}
	}

	openRoot := make(map[int]bool)
	for _, e := range edges {
		switch {
		case e.count == 1:
			o.BoundaryEdges++
			openRoot[uf.find(int(e.first))] = true
		case e.count > 2:
			o.NonManifoldEdges++
		}
	}
	for i, tri := range tris {
		for j := 0; j < 3; j++ {
			o.EdgeN[3*i+j] = edges[makeEdgeKey(tri[j], tri[(j+1)%3])].n
		}
	}
	roots := make(map[int]struct{})
	for i := range tris {
		roots[uf.find(i)] = struct{}{}
	}
	o.Components = len(roots)
	o.OpenComponents = len(openRoot)

	flat := flatComponents(verts, tris, uf, openRoot)
	o.ExteriorComponents = len(flat)
	for i := range tris {
		o.Exterior[i] = flat[uf.find(i)]
	}
	return o
}

// component accumulates the geometry of one edge-connected component.
type component struct {
	area     float64
	centroid [3]float64 // area weighted sum of triangle centroids
	bb       ms3.Box
	volume   float64
}

// flatComponents returns the roots of the open components whose signed
// volume, taken about their area weighted centroid, is negligible.
func flatComponents(verts []ms3.Vec, tris [][3]int, uf *unionFind, open map[int]bool) map[int]bool {
	comps := make(map[int]*component, len(open))
	for i, tri := range tris {
		root := uf.find(i)
		if !open[root] {
			continue
		}
		c := comps[root]
		if c == nil {
			c = &component{bb: d3.EmptyBox()}
			comps[root] = c
		}
		a, b, v := verts[tri[0]], verts[tri[1]], verts[tri[2]]
		area := float64(ms3.Norm(d3.TriangleNormal(a, b, v))) / 2
		c.area += area
		for ax := 0; ax < 3; ax++ {
			c.centroid[ax] += area * float64(d3.Comp(a, ax)+d3.Comp(b, ax)+d3.Comp(v, ax)) / 3
		}
		c.bb = d3.Include(d3.Include(d3.Include(c.bb, a), b), v)
	}
	for _, c := range comps {
		if c.area > 0 {
			for ax := range c.centroid {
				c.centroid[ax] /= c.area
			}
		}
	}
	for i, tri := range tris {
		c := comps[uf.find(i)]
		if c == nil {
			continue
		}
		a := sub64(verts[tri[0]], c.centroid)
		b := sub64(verts[tri[1]], c.centroid)
		v := sub64(verts[tri[2]], c.centroid)
		c.volume += (a[0]*(b[1]*v[2]-b[2]*v[1]) +
			a[1]*(b[2]*v[0]-b[0]*v[2]) +
			a[2]*(b[0]*v[1]-b[1]*v[0])) / 6
	}
	flat := make(map[int]bool, len(comps))
	for root, c := range comps {
		diag := float64(ms3.Norm(c.bb.Size()))
		if math.Abs(c.volume) <= flatVolume*diag*diag*diag {
			flat[root] = true
		}
	}
	return flat
}

func sub64(p ms3.Vec, c [3]float64) [3]float64 {
	return [3]float64{float64(p.X) - c[0], float64(p.Y) - c[1], float64(p.Z) - c[2]}
}

// angle returns the angle between u and v, zero if either is zero.
func angle(u, v ms3.Vec) float32 {
	nu, nv := ms3.Norm(u), ms3.Norm(v)
	if nu == 0 || nv == 0 {
		return 0
	}
	cos := d3.Dot(u, v) / (nu * nv)
	return math32.Acos(math32.Max(-1, math32.Min(1, cos)))
}

// Normal returns the pseudonormal of the feature of triangle tri.
func (o *Orientation) Normal(tri int32, f d3.Feature) ms3.Vec {
	switch {
	case f.IsVertex():
		return o.VertN[o.tris[tri][f]]
	case f.IsEdge():
		return o.EdgeN[3*int(tri)+int(f-d3.FeatureE0)]
	}
	return o.FaceN[tri]
}

// Sign returns -1 if p lies inside the surface according to the closest
// point record h, else +1. Points on the surface, points closest to
// components enclosing no volume and points whose pseudonormal is
// degenerate are exterior.
func (o *Orientation) Sign(p ms3.Vec, h index.Hit) float32 {
	if h.Tri < 0 || o.Exterior[h.Tri] {
		return 1
	}
	if d3.Dot(ms3.Sub(p, h.Point), o.Normal(h.Tri, h.Feature)) < 0 {
		return -1
	}
	return 1
}

// Closed reports whether no triangle belongs to an open component.
func (o *Orientation) Closed() bool { return o.OpenComponents == 0 }

type unionFind struct {
	parent []int32
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int32, n)}
	for i := range uf.parent {
		uf.parent[i] = int32(i)
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for int(uf.parent[i]) != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = int(uf.parent[i])
	}
	return i
}

// union joins the sets of a and b keeping the lowest root so results do not
// depend on map iteration order.
func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		uf.parent[rb] = int32(ra)
	} else {
		uf.parent[ra] = int32(rb)
	}
}
