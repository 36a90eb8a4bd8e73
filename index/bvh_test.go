package index

import (
	"math/rand"
	"testing"

	"github.com/meet-brad-ch/SDFGenFast/internal/d3"
	"github.com/soypat/glgl/math/ms3"
)

func randomSoup(rng *rand.Rand, nt int) ([]ms3.Vec, [][3]int) {
	verts := make([]ms3.Vec, 0, 3*nt)
	tris := make([][3]int, nt)
	for i := range tris {
		center := ms3.Vec{X: rng.Float32()*4 - 2, Y: rng.Float32()*4 - 2, Z: rng.Float32()*4 - 2}
		for j := 0; j < 3; j++ {
			off := ms3.Vec{X: rng.Float32()*0.4 - 0.2, Y: rng.Float32()*0.4 - 0.2, Z: rng.Float32()*0.4 - 0.2}
			tris[i][j] = len(verts)
			verts = append(verts, ms3.Add(center, off))
		}
	}
	return verts, tris
}

func bruteNearest(p ms3.Vec, verts []ms3.Vec, tris [][3]int) (best float32, bestTri int32) {
	bestTri = -1
	for i, tri := range tris {
		q, _ := d3.ClosestOnTriangle(p, verts[tri[0]], verts[tri[1]], verts[tri[2]])
		d2 := d3.Dist2(p, q)
		if bestTri < 0 || d2 < best {
			best, bestTri = d2, int32(i)
		}
	}
	return best, bestTri
}

func TestNearestMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	verts, tris := randomSoup(rng, 300)
	bvh := Build(verts, tris)
	var scratch []int32
	for i := 0; i < 500; i++ {
		p := ms3.Vec{X: rng.Float32()*8 - 4, Y: rng.Float32()*8 - 4, Z: rng.Float32()*8 - 4}
		wantD2, wantTri := bruteNearest(p, verts, tris)
		var hit Hit
		var ok bool
		hit, scratch, ok = bvh.Nearest(p, 0.05, scratch)
		if !ok {
			t.Fatal("expected a hit on non-empty index")
		}
		if hit.Dist2 != wantD2 {
			t.Errorf("p=%+v expected dist2 %g (tri %d), got %g (tri %d)", p, wantD2, wantTri, hit.Dist2, hit.Tri)
		}
	}
}

func TestNearbyIsConservative(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	verts, tris := randomSoup(rng, 200)
	bvh := Build(verts, tris)
	for i := 0; i < 100; i++ {
		p := ms3.Vec{X: rng.Float32()*6 - 3, Y: rng.Float32()*6 - 3, Z: rng.Float32()*6 - 3}
		const r = 0.6
		got := make(map[int32]bool)
		for _, ti := range bvh.Nearby(p, r, nil) {
			if got[ti] {
				t.Fatalf("triangle %d returned twice", ti)
			}
			got[ti] = true
		}
		for ti := range tris {
			h := bvh.Closest(p, int32(ti))
			if h.Dist2 <= r*r && !got[int32(ti)] {
				t.Errorf("p=%+v triangle %d at distance %g missing from candidates", p, ti, h.Dist())
			}
		}
	}
}

func TestNearestTieBreak(t *testing.T) {
	// Two copies of the same triangle: the lower index must win.
	verts := []ms3.Vec{{X: 0}, {X: 1}, {Y: 1}}
	tris := [][3]int{{0, 1, 2}, {0, 1, 2}}
	bvh := Build(verts, tris)
	hit, _, ok := bvh.Nearest(ms3.Vec{X: 0.2, Y: 0.2, Z: 1}, 0.1, nil)
	if !ok {
		t.Fatal("expected hit")
	}
	if hit.Tri != 0 {
		t.Errorf("expected tie to resolve to triangle 0, got %d", hit.Tri)
	}
	if hit.Feature != d3.FeatureFace {
		t.Errorf("expected face region, got %s", hit.Feature)
	}
}

func TestEmptyIndex(t *testing.T) {
	bvh := Build(nil, nil)
	if got := bvh.Nearby(ms3.Vec{}, 1e9, nil); len(got) != 0 {
		t.Errorf("expected no candidates, got %d", len(got))
	}
	if _, _, ok := bvh.Nearest(ms3.Vec{}, 1, nil); ok {
		t.Error("expected no hit from empty index")
	}
	if !d3.IsEmpty(bvh.Bounds()) {
		t.Error("expected empty bounds")
	}
}

func TestFlattenedLayout(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	verts, tris := randomSoup(rng, 137)
	bvh := Build(verts, tris)
	nodes := bvh.Nodes()
	if int(nodes[0].Escape) != len(nodes) {
		t.Fatalf("root escape should end traversal: got %d, want %d", nodes[0].Escape, len(nodes))
	}
	seen := make([]int, len(tris))
	for i := range nodes {
		n := &nodes[i]
		if int(n.Escape) <= i || int(n.Escape) > len(nodes) {
			t.Fatalf("node %d has bad escape %d", i, n.Escape)
		}
		if !n.IsLeaf() {
			continue
		}
		if n.Count <= 0 || n.Count > LeafSize {
			t.Errorf("leaf %d has %d triangles", i, n.Count)
		}
		for _, ti := range bvh.Order()[n.Start : n.Start+n.Count] {
			seen[ti]++
			tb := d3.TriangleBox(verts[tris[ti][0]], verts[tris[ti][1]], verts[tris[ti][2]])
			if d3.Extend(n.Box(), tb) != n.Box() {
				t.Errorf("leaf %d box does not contain triangle %d", i, ti)
			}
		}
	}
	for ti, c := range seen {
		if c != 1 {
			t.Errorf("triangle %d referenced by %d leaves", ti, c)
		}
	}
	if bvh.Leaves() == 0 || bvh.Depth() < 2 {
		t.Errorf("unexpected tree shape: leaves=%d depth=%d", bvh.Leaves(), bvh.Depth())
	}
}
