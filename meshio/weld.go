package meshio

import (
	sdfgen "github.com/meet-brad-ch/SDFGenFast"
	"github.com/meet-brad-ch/SDFGenFast/internal/d3"
	"github.com/soypat/glgl/math/ms3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// DefaultWeldTolerance is the merge distance used by the command line tool.
const DefaultWeldTolerance = 1e-5

var (
	_ kdtree.Interface  = weldPoints{}
	_ kdtree.Comparable = weldPoint{}
	_ kdtree.SortSlicer = weldPlane{}
)

// Weld merges vertices closer than tol. Vertices are visited in index
// order; each one not yet merged survives and absorbs every later
// unmerged vertex within tol of it, so merging never chains. Triangles
// that collapse onto fewer than three distinct vertices are removed.
// The number of merged vertices is returned. A non-positive tol
// returns the mesh unchanged.
func Weld(mesh sdfgen.Mesh, tol float32) (sdfgen.Mesh, int, error) {
	if err := mesh.Validate(); err != nil {
		return sdfgen.Mesh{}, 0, err
	}
	if !(tol > 0) {
		return mesh, 0, nil
	}
	n := len(mesh.Vertices)
	pts := make(weldPoints, n)
	for i, v := range mesh.Vertices {
		pts[i] = weldPoint{p: v, idx: i}
	}
	// kdtree.New reorders pts in place; idx keeps the original order.
	tree := kdtree.New(pts, false)

	tol2 := float64(tol) * float64(tol)
	rep := make([]int, n)
	for i := range rep {
		rep[i] = -1
	}
	newID := make([]int, n)
	var verts []ms3.Vec
	for i, v := range mesh.Vertices {
		if rep[i] >= 0 {
			continue
		}
		rep[i] = i
		newID[i] = len(verts)
		verts = append(verts, v)
		keep := kdtree.NewDistKeeper(tol2)
		tree.NearestSet(keep, weldPoint{p: v, idx: i})
		for _, c := range keep.Heap {
			if c.Comparable == nil || !(c.Dist < tol2) {
				continue // sentinel or exactly on the tolerance
			}
			if j := c.Comparable.(weldPoint).idx; rep[j] < 0 {
				rep[j] = i
			}
		}
	}

	tris := make([][3]int, 0, len(mesh.Triangles))
	for _, t := range mesh.Triangles {
		a, b, c := newID[rep[t[0]]], newID[rep[t[1]]], newID[rep[t[2]]]
		if a == b || b == c || c == a {
			continue
		}
		tris = append(tris, [3]int{a, b, c})
	}
	return sdfgen.Mesh{Vertices: verts, Triangles: tris}, n - len(verts), nil
}

type weldPoint struct {
	p   ms3.Vec
	idx int
}

// Compare returns the signed distance of a from the plane passing through
// b and perpendicular to the dimension d.
func (a weldPoint) Compare(b kdtree.Comparable, d kdtree.Dim) float64 {
	return float64(d3.Comp(a.p, int(d))) - float64(d3.Comp(b.(weldPoint).p, int(d)))
}

func (a weldPoint) Dims() int { return 3 }

// Distance returns the squared euclidean distance between a and b.
func (a weldPoint) Distance(b kdtree.Comparable) float64 {
	q := b.(weldPoint).p
	dx := float64(a.p.X) - float64(q.X)
	dy := float64(a.p.Y) - float64(q.Y)
	dz := float64(a.p.Z) - float64(q.Z)
	return dx*dx + dy*dy + dz*dz
}

type weldPoints []weldPoint

func (k weldPoints) Index(i int) kdtree.Comparable { return k[i] }

func (k weldPoints) Len() int { return len(k) }

// Pivot partitions the list based on the dimension specified.
func (k weldPoints) Pivot(d kdtree.Dim) int {
	p := weldPlane{dim: int(d), points: k}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

func (k weldPoints) Slice(start, end int) kdtree.Interface { return k[start:end] }

type weldPlane struct {
	dim    int
	points weldPoints
}

func (p weldPlane) Less(i, j int) bool {
	return d3.Comp(p.points[i].p, p.dim) < d3.Comp(p.points[j].p, p.dim)
}

func (p weldPlane) Swap(i, j int) { p.points[i], p.points[j] = p.points[j], p.points[i] }

func (p weldPlane) Len() int { return len(p.points) }

func (p weldPlane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
