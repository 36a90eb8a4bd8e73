// Package index implements a bounding volume hierarchy over mesh triangles
// for closest point queries. The tree is stored flattened in depth first
// order with escape indices so it can be walked without a stack, which is
// how the GPU kernels traverse it as well.
package index

import (
	"sort"

	"github.com/chewxy/math32"
	"github.com/meet-brad-ch/SDFGenFast/internal/d3"
	"github.com/soypat/glgl/math/ms3"
)

// LeafSize is the maximum number of triangles stored in a leaf.
const LeafSize = 4

// Node is a flattened BVH node. Its memory layout matches the std430
// Node struct of the GLSL kernels (48 bytes).
type Node struct {
	Min ms3.Vec
	// Start is the first entry in the triangle order belonging to this
	// node if it is a leaf. Internal nodes have Start=-1 and their left
	// child immediately follows them.
	Start int32
	Max   ms3.Vec
	Count int32
	// Escape is the index of the node visited after this node's subtree.
	// It equals len(nodes) for the last subtree.
	Escape int32
	_      [3]int32
}

// IsLeaf reports whether the node stores triangles.
func (n *Node) IsLeaf() bool { return n.Start >= 0 }

// Box returns the node's bounding box.
func (n *Node) Box() ms3.Box { return ms3.Box{Min: n.Min, Max: n.Max} }

// BVH is a read-only triangle index. It is safe for concurrent use once built.
type BVH struct {
	verts    []ms3.Vec
	tris     [][3]int
	triBoxes []ms3.Box
	nodes    []Node
	order    []int32
	depth    int
	leaves   int
}

// Build constructs the index. The vertex and triangle slices are retained
// and must not be modified afterwards. Triangle indices must be valid.
// An empty triangle list yields an index that reports no candidates.
func Build(verts []ms3.Vec, tris [][3]int) *BVH {
	bvh := &BVH{
		verts:    verts,
		tris:     tris,
		triBoxes: make([]ms3.Box, len(tris)),
		order:    make([]int32, len(tris)),
	}
	if len(tris) == 0 {
		return bvh
	}
	centroids := make([]ms3.Vec, len(tris))
	for i, tri := range tris {
		a, b, c := verts[tri[0]], verts[tri[1]], verts[tri[2]]
		bvh.triBoxes[i] = d3.TriangleBox(a, b, c)
		centroids[i] = ms3.Scale(1./3., ms3.Add(ms3.Add(a, b), c))
		bvh.order[i] = int32(i)
	}
	// A balanced binary tree over n leaves has fewer than 2n nodes.
	bvh.nodes = make([]Node, 0, 2*(len(tris)/LeafSize+1))
	bvh.subdivide(0, len(tris), centroids, 1)
	return bvh
}

// subdivide appends the subtree for order[lo:hi] and returns its root index.
func (bvh *BVH) subdivide(lo, hi int, centroids []ms3.Vec, depth int) int {
	idx := len(bvh.nodes)
	bb := d3.EmptyBox()
	for _, ti := range bvh.order[lo:hi] {
		bb = d3.Extend(bb, bvh.triBoxes[ti])
	}
	bvh.nodes = append(bvh.nodes, Node{Min: bb.Min, Max: bb.Max, Start: -1})
	if depth > bvh.depth {
		bvh.depth = depth
	}
	if hi-lo <= LeafSize {
		bvh.nodes[idx].Start = int32(lo)
		bvh.nodes[idx].Count = int32(hi - lo)
		bvh.nodes[idx].Escape = int32(len(bvh.nodes))
		bvh.leaves++
		return idx
	}

	// Classical heuristic: split the longest axis of the centroid bounds at the median.
	cb := d3.EmptyBox()
	for _, ti := range bvh.order[lo:hi] {
		cb = d3.Include(cb, centroids[ti])
	}
	axis := d3.LongestAxis(ms3.Sub(cb.Max, cb.Min))
	sub := bvh.order[lo:hi]
	sort.Slice(sub, func(i, j int) bool {
		ci := d3.Comp(centroids[sub[i]], axis)
		cj := d3.Comp(centroids[sub[j]], axis)
		if ci != cj {
			return ci < cj
		}
		return sub[i] < sub[j]
	})
	mid := lo + (hi-lo)/2
	bvh.subdivide(lo, mid, centroids, depth+1)
	bvh.subdivide(mid, hi, centroids, depth+1)
	bvh.nodes[idx].Escape = int32(len(bvh.nodes))
	return idx
}

// Len returns the number of indexed triangles.
func (bvh *BVH) Len() int { return len(bvh.tris) }

// Nodes returns the flattened tree. The returned slice must not be modified.
func (bvh *BVH) Nodes() []Node { return bvh.nodes }

// Order returns the triangle permutation referenced by leaf nodes.
func (bvh *BVH) Order() []int32 { return bvh.order }

// Depth returns the depth of the tree. An empty tree has depth 0.
func (bvh *BVH) Depth() int { return bvh.depth }

// Leaves returns the number of leaf nodes.
func (bvh *BVH) Leaves() int { return bvh.leaves }

// Bounds returns the bounding box of all triangles. It is inverted (empty) for an empty index.
func (bvh *BVH) Bounds() ms3.Box {
	if len(bvh.nodes) == 0 {
		return d3.EmptyBox()
	}
	return bvh.nodes[0].Box()
}

// Nearby appends to dst the indices of triangles whose bounding box lies
// within distance r of p and returns the extended slice. Any triangle not
// returned is farther than r from p.
func (bvh *BVH) Nearby(p ms3.Vec, r float32, dst []int32) []int32 {
	if r < 0 {
		return dst
	}
	r2 := r * r
	n := int32(len(bvh.nodes))
	for i := int32(0); i < n; {
		node := &bvh.nodes[i]
		if d3.BoxDist2(p, node.Box()) > r2 {
			i = node.Escape
			continue
		}
		if !node.IsLeaf() {
			i++
			continue
		}
		for _, ti := range bvh.order[node.Start : node.Start+node.Count] {
			if d3.BoxDist2(p, bvh.triBoxes[ti]) <= r2 {
				dst = append(dst, ti)
			}
		}
		i = node.Escape
	}
	return dst
}

// marginSq is the squared safety factor the search radius must exceed the
// best distance by before the search stops.
const marginSq = 1.1 * 1.1

// Hit is the result of a closest point query.
type Hit struct {
	// Tri is the index of the closest triangle in the mesh.
	Tri int32
	// Dist2 is the squared distance from the query point to Point.
	Dist2 float32
	// Point is the closest point on the mesh surface.
	Point ms3.Vec
	// Feature is the triangle region Point lies in.
	Feature d3.Feature
}

// Dist returns the unsigned distance of the hit.
func (h Hit) Dist() float32 { return math32.Sqrt(h.Dist2) }

// Closest computes the closest point on triangle ti to p.
func (bvh *BVH) Closest(p ms3.Vec, ti int32) Hit {
	tri := bvh.tris[ti]
	q, feat := d3.ClosestOnTriangle(p, bvh.verts[tri[0]], bvh.verts[tri[1]], bvh.verts[tri[2]])
	return Hit{Tri: ti, Dist2: d3.Dist2(p, q), Point: q, Feature: feat}
}

// better reports whether a beats b: closer, or as close with a lower triangle index.
func better(a, b Hit) bool {
	return a.Dist2 < b.Dist2 || (a.Dist2 == b.Dist2 && a.Tri < b.Tri)
}

// Nearest returns the closest point on the mesh to p. The search starts with
// radius r0 and doubles it until a triangle is found within the radius, so no
// triangle is discarded before its bounding box is proven farther than the
// best candidate. Ties resolve to the lowest triangle index. ok is false only
// for an empty index.
//
// scratch is an optional candidate buffer reused across calls; the grown
// buffer is returned for reuse.
func (bvh *BVH) Nearest(p ms3.Vec, r0 float32, scratch []int32) (hit Hit, scratchOut []int32, ok bool) {
	if len(bvh.nodes) == 0 {
		return Hit{Tri: -1}, scratch, false
	}
	root := bvh.nodes[0].Box()
	// Past this radius every triangle is a candidate.
	rmax := math32.Sqrt(d3.BoxDist2(p, root)) + ms3.Norm(ms3.Sub(root.Max, root.Min))
	r := r0
	if !(r > 0) {
		r = rmax / 64
	}
	if !(r > 0) {
		r = 1
	}
	for {
		scratch = bvh.Nearby(p, r, scratch[:0])
		for _, ti := range scratch {
			h := bvh.Closest(p, ti)
			if !ok || better(h, hit) {
				hit, ok = h, true
			}
		}
		if ok && (hit.Dist2*marginSq <= r*r || r >= rmax) {
			return hit, scratch, true
		}
		if r >= rmax {
			// Unreachable unless coordinates are not finite.
			return Hit{Tri: -1}, scratch, false
		}
		r *= 2
		ok = false
	}
}
