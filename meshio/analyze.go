package meshio

import (
	"fmt"
	"sort"
)

// Analysis summarises the edge topology of a triangle mesh.
type Analysis struct {
	Triangles        int
	Degenerate       int // triangles repeating a vertex index; excluded from edge counts
	Edges            int
	BoundaryEdges    int // edges used by exactly one triangle
	NonManifoldEdges int // edges used by more than two triangles
	Holes            int // closed boundary loops of at least three vertices
}

// Manifold reports whether every edge is shared by at most two triangles.
func (a Analysis) Manifold() bool { return a.NonManifoldEdges == 0 }

// Watertight reports whether every edge is shared by exactly two triangles.
func (a Analysis) Watertight() bool { return a.BoundaryEdges == 0 && a.Manifold() }

func (a Analysis) String() string {
	return fmt.Sprintf("%d triangles (%d degenerate), %d edges, %d boundary, %d non-manifold, %d holes",
		a.Triangles, a.Degenerate, a.Edges, a.BoundaryEdges, a.NonManifoldEdges, a.Holes)
}

type edge [2]int

func makeEdge(a, b int) edge {
	if a > b {
		a, b = b, a
	}
	return edge{a, b}
}

// Analyze classifies the edges of tris and counts boundary loops.
func Analyze(tris [][3]int) Analysis {
	an := Analysis{Triangles: len(tris)}
	uses := make(map[edge]int, 3*len(tris)/2)
	for _, t := range tris {
		if t[0] == t[1] || t[1] == t[2] || t[2] == t[0] {
			an.Degenerate++
			continue
		}
		uses[makeEdge(t[0], t[1])]++
		uses[makeEdge(t[1], t[2])]++
		uses[makeEdge(t[2], t[0])]++
	}
	an.Edges = len(uses)
	var boundary []edge
	for e, n := range uses {
		switch {
		case n == 1:
			boundary = append(boundary, e)
		case n > 2:
			an.NonManifoldEdges++
		}
	}
	an.BoundaryEdges = len(boundary)
	an.Holes = countLoops(boundary)
	return an
}

// countLoops walks the boundary graph from its lowest unvisited vertex,
// always stepping to an unvisited neighbour, and counts the walks that
// cover at least three vertices.
func countLoops(boundary []edge) int {
	if len(boundary) == 0 {
		return 0
	}
	sort.Slice(boundary, func(i, j int) bool {
		if boundary[i][0] != boundary[j][0] {
			return boundary[i][0] < boundary[j][0]
		}
		return boundary[i][1] < boundary[j][1]
	})
	adj := make(map[int][]int)
	var verts []int
	for _, e := range boundary {
		for k, v := range e {
			if _, ok := adj[v]; !ok {
				verts = append(verts, v)
			}
			adj[v] = append(adj[v], e[1-k])
		}
	}
	sort.Ints(verts)

	visited := make(map[int]bool, len(verts))
	loops := 0
	for _, start := range verts {
		if visited[start] {
			continue
		}
		length := 0
		prev, cur := -1, start
		for {
			visited[cur] = true
			length++
			next := -1
			for _, v := range adj[cur] {
				if v != prev && (!visited[v] || v == start) {
					next = v
					break
				}
			}
			if next < 0 || next == start {
				break
			}
			prev, cur = cur, next
		}
		if length >= 3 {
			loops++
		}
	}
	return loops
}
