package sdfgen

import (
	"errors"
	"math"
	"testing"

	"github.com/chewxy/math32"
	"github.com/meet-brad-ch/SDFGenFast/internal/d3"
	"github.com/meet-brad-ch/SDFGenFast/internal/meshtest"
	"github.com/meet-brad-ch/SDFGenFast/sweep"
	"github.com/soypat/glgl/math/ms3"
	"go.uber.org/zap"
)

// cubeHalf places the cube faces between grid planes of the 30^3 test grid.
const cubeHalf = 9.5 / 30.

var (
	cubeMin = ms3.Vec{X: -cubeHalf, Y: -cubeHalf, Z: -cubeHalf}
	cubeMax = ms3.Vec{X: cubeHalf, Y: cubeHalf, Z: cubeHalf}
)

func cubeMesh() Mesh {
	verts, tris := meshtest.Cube(cubeMin, cubeMax)
	return Mesh{Vertices: verts, Triangles: tris}
}

func cubeGrid() Grid {
	return Grid{Origin: ms3.Vec{X: -0.5, Y: -0.5, Z: -0.5}, Dx: 1. / 30, Nx: 30, Ny: 30, Nz: 30}
}

func cpuOptions(threads int) Options {
	opts := DefaultOptions()
	opts.Backend = BackendCPU
	opts.Threads = threads
	opts.Logger = zap.NewNop()
	return opts
}

func mustGenerate(t *testing.T, mesh Mesh, grid Grid, opts Options) *Field {
	t.Helper()
	field, err := Generate(mesh, grid, opts)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	return field
}

func TestCubeCenterAndCorners(t *testing.T) {
	grid := cubeGrid()
	field := mustGenerate(t, cubeMesh(), grid, cpuOptions(0))
	if v := field.At(15, 15, 15); !(v < 0) {
		t.Errorf("expected negative center value, got %g", v)
	}
	for _, c := range [8][3]int{
		{0, 0, 0}, {29, 0, 0}, {0, 29, 0}, {29, 29, 0},
		{0, 0, 29}, {29, 0, 29}, {0, 29, 29}, {29, 29, 29},
	} {
		if v := field.At(c[0], c[1], c[2]); !(v > 0) {
			t.Errorf("expected positive corner %v, got %g", c, v)
		}
	}
	if field.Approximate {
		t.Errorf("expected convergence, ran %d passes", field.Passes)
	}
	if field.Backend != BackendCPU {
		t.Errorf("expected cpu backend, got %v", field.Backend)
	}
}

func TestSignMatchesRayParity(t *testing.T) {
	for name, mesh := range map[string]Mesh{
		"cube": cubeMesh(),
		"icosphere": func() Mesh {
			verts, tris := meshtest.Icosphere(ms3.Vec{X: 0.02, Y: -0.01}, 0.35, 2)
			return Mesh{Vertices: verts, Triangles: tris}
		}(),
	} {
		t.Run(name, func(t *testing.T) {
			grid := cubeGrid()
			field := mustGenerate(t, mesh, grid, cpuOptions(0))
			mismatches := 0
			for idx, v := range field.Values {
				p := grid.Pos(grid.Cell(idx))
				if math32.Abs(v) < 1e-6 {
					continue
				}
				if inside := meshtest.Inside(p, mesh.Vertices, mesh.Triangles); inside != (v < 0) {
					mismatches++
					if mismatches < 5 {
						t.Errorf("cell %v: ray parity inside=%v, field %g", p, inside, v)
					}
				}
			}
			if mismatches > 0 {
				t.Errorf("%d sign mismatches", mismatches)
			}
		})
	}
}

func TestExactBandDistances(t *testing.T) {
	mesh, grid := cubeMesh(), cubeGrid()
	field := mustGenerate(t, mesh, grid, cpuOptions(0))
	band := bandCells(mesh, grid, DefaultExactBand)
	if len(band) == 0 {
		t.Fatal("empty exact band")
	}
	for _, c := range band {
		p := grid.Pos(grid.Cell(int(c)))
		want := meshtest.BoxSurfaceDistance(p, cubeMin, cubeMax)
		if got := math32.Abs(field.Values[c]); math32.Abs(got-want) > 1e-5 {
			t.Errorf("band cell %v: expected distance %g, got %g", p, want, got)
		}
	}
}

func TestMonotonicOutsideConvexMesh(t *testing.T) {
	grid := cubeGrid()
	field := mustGenerate(t, cubeMesh(), grid, cpuOptions(0))
	for j := 0; j < grid.Ny; j++ {
		for k := 0; k < grid.Nz; k++ {
			for i := 16; i < grid.Nx-1; i++ {
				a, b := field.At(i, j, k), field.At(i+1, j, k)
				if a > 0 && b < a-1e-5 {
					t.Fatalf("distance decreases outward at (%d,%d,%d): %g then %g", i, j, k, a, b)
				}
			}
			for i := 14; i > 0; i-- {
				a, b := field.At(i, j, k), field.At(i-1, j, k)
				if a > 0 && b < a-1e-5 {
					t.Fatalf("distance decreases outward at (%d,%d,%d): %g then %g", i, j, k, a, b)
				}
			}
		}
	}
}

func TestPropagatedDistanceAccuracy(t *testing.T) {
	grid := cubeGrid()
	field := mustGenerate(t, cubeMesh(), grid, cpuOptions(0))
	for idx, v := range field.Values {
		p := grid.Pos(grid.Cell(idx))
		want := meshtest.BoxSurfaceDistance(p, cubeMin, cubeMax)
		// First order sweeping overestimates around convex corners and
		// underestimates on the medial planes inside.
		if got := math32.Abs(v); got < want-0.75*grid.Dx || got > want*1.25+grid.Dx {
			t.Errorf("cell %v: expected about %g, got %g", p, want, got)
		}
	}
}

func TestThreadCountDeterminism(t *testing.T) {
	verts, tris := meshtest.Icosphere(ms3.Vec{}, 0.3, 2)
	mesh := Mesh{Vertices: verts, Triangles: tris}
	grid := Grid{Origin: ms3.Vec{X: -0.45, Y: -0.4, Z: -0.42}, Dx: 0.9 / 40, Nx: 41, Ny: 37, Nz: 39}
	ref := mustGenerate(t, mesh, grid, cpuOptions(1))
	for _, threads := range []int{2, 3, 8} {
		field := mustGenerate(t, mesh, grid, cpuOptions(threads))
		for i := range ref.Values {
			if math.Float32bits(ref.Values[i]) != math.Float32bits(field.Values[i]) {
				t.Fatalf("threads=%d: cell %d differs: %g vs %g", threads, i, field.Values[i], ref.Values[i])
			}
		}
		if field.Passes != ref.Passes {
			t.Errorf("threads=%d: expected %d passes, got %d", threads, ref.Passes, field.Passes)
		}
	}
}

func TestSingleTriangleIsExterior(t *testing.T) {
	mesh := Mesh{
		Vertices:  []ms3.Vec{{X: -0.2, Y: -0.2}, {X: 0.3, Y: -0.1, Z: 0.05}, {X: 0, Y: 0.25, Z: -0.05}},
		Triangles: [][3]int{{0, 1, 2}},
	}
	field := mustGenerate(t, mesh, cubeGrid(), cpuOptions(0))
	for i, v := range field.Values {
		if v < 0 {
			t.Fatalf("cell %d: expected non-negative value, got %g", i, v)
		}
		if v >= sweep.Sentinel {
			t.Fatalf("cell %d: left at sentinel", i)
		}
	}
}

func TestHoledSphereKeepsInterior(t *testing.T) {
	const radius = 0.35
	verts, tris := meshtest.Icosphere(ms3.Vec{}, radius, 2)
	grid := cubeGrid()
	closed := mustGenerate(t, Mesh{Vertices: verts, Triangles: tris}, grid, cpuOptions(0))
	hole := tris[0]
	holeCenter := ms3.Scale(1./3, ms3.Add(verts[hole[0]], ms3.Add(verts[hole[1]], verts[hole[2]])))
	holed := mustGenerate(t, Mesh{Vertices: verts, Triangles: tris[1:]}, grid, cpuOptions(0))

	if v := holed.Sample(ms3.Vec{}); !(v < -0.25) {
		t.Errorf("expected negative center value near -%g, got %g", radius, v)
	}
	var closedInside, holedInside, mismatches int
	for k := 0; k < grid.Nz; k++ {
		for j := 0; j < grid.Ny; j++ {
			for i := 0; i < grid.Nx; i++ {
				c, h := closed.At(i, j, k), holed.At(i, j, k)
				if c < 0 {
					closedInside++
				}
				if h < 0 {
					holedInside++
				}
				p := grid.Pos(i, j, k)
				if ms3.Norm(ms3.Sub(p, holeCenter)) < 0.25 || math32.Abs(c) < grid.Dx/2 {
					continue
				}
				if (c < 0) != (h < 0) {
					mismatches++
				}
			}
		}
	}
	if mismatches > 0 {
		t.Errorf("%d cells away from the hole changed sign", mismatches)
	}
	if float64(holedInside) < 0.9*float64(closedInside) {
		t.Errorf("expected most of the %d interior cells to stay inside, got %d", closedInside, holedInside)
	}
}

func TestMeshOutsideGridStillSeeds(t *testing.T) {
	verts, tris := meshtest.Cube(ms3.Vec{X: 2, Y: 2, Z: 2}, ms3.Vec{X: 3, Y: 3, Z: 3})
	field := mustGenerate(t, Mesh{Vertices: verts, Triangles: tris}, cubeGrid(), cpuOptions(2))
	for i, v := range field.Values {
		if !(v > 0) || v >= sweep.Sentinel {
			t.Fatalf("cell %d: expected finite positive value, got %g", i, v)
		}
	}
}

func TestZeroCrossingsEncloseMesh(t *testing.T) {
	mesh := cubeMesh()
	field := mustGenerate(t, mesh, cubeGrid(), cpuOptions(0))
	bb, ok := field.ZeroCrossingBounds()
	if !ok {
		t.Fatal("no zero crossings")
	}
	mb := mesh.Bounds()
	if bb.Min.X > mb.Min.X || bb.Min.Y > mb.Min.Y || bb.Min.Z > mb.Min.Z ||
		bb.Max.X < mb.Max.X || bb.Max.Y < mb.Max.Y || bb.Max.Z < mb.Max.Z {
		t.Errorf("zero crossing bounds %v do not enclose mesh bounds %v", bb, mb)
	}
}

func TestGenerateErrors(t *testing.T) {
	mesh, grid := cubeMesh(), cubeGrid()
	bad := Mesh{Vertices: mesh.Vertices, Triangles: [][3]int{{0, 1, 8}}}
	nanMesh := Mesh{Vertices: append([]ms3.Vec{{X: math32.NaN()}}, mesh.Vertices...), Triangles: mesh.Triangles}
	for _, test := range []struct {
		name string
		mesh Mesh
		grid Grid
		opts func(*Options)
		want error
	}{
		{name: "no vertices", mesh: Mesh{Triangles: mesh.Triangles}, grid: grid, want: ErrInvalidMesh},
		{name: "no triangles", mesh: Mesh{Vertices: mesh.Vertices}, grid: grid, want: ErrInvalidMesh},
		{name: "index out of range", mesh: bad, grid: grid, want: ErrInvalidMesh},
		{name: "nan vertex", mesh: nanMesh, grid: grid, want: ErrInvalidMesh},
		{name: "zero dx", mesh: mesh, grid: Grid{Dx: 0, Nx: 2, Ny: 2, Nz: 2}, want: ErrInvalidGrid},
		{name: "negative dx", mesh: mesh, grid: Grid{Dx: -1, Nx: 2, Ny: 2, Nz: 2}, want: ErrInvalidGrid},
		{name: "zero dimension", mesh: mesh, grid: Grid{Dx: 1, Nx: 2, Ny: 0, Nz: 2}, want: ErrInvalidGrid},
		{name: "too many cells", mesh: mesh, grid: Grid{Dx: 1, Nx: 1 << 11, Ny: 1 << 11, Nz: 1 << 11}, want: ErrInvalidGrid},
		{name: "negative band", mesh: mesh, grid: grid, opts: func(o *Options) { o.ExactBand = -1 }, want: ErrInvalidOptions},
		{name: "unknown backend", mesh: mesh, grid: grid, opts: func(o *Options) { o.Backend = 7 }, want: ErrInvalidOptions},
		{name: "gpu with empty mesh", mesh: Mesh{}, grid: grid, opts: func(o *Options) { o.Backend = BackendGPU }, want: ErrInvalidMesh},
		{name: "gpu with bad grid", mesh: mesh, grid: Grid{Dx: 1, Nx: 2, Ny: 2}, opts: func(o *Options) { o.Backend = BackendGPU }, want: ErrInvalidGrid},
		{name: "auto with bad mesh", mesh: bad, grid: grid, opts: func(o *Options) { o.Backend = BackendAuto }, want: ErrInvalidMesh},
	} {
		opts := cpuOptions(1)
		if test.opts != nil {
			test.opts(&opts)
		}
		_, err := Generate(test.mesh, test.grid, opts)
		if !errors.Is(err, test.want) {
			t.Errorf("%s: expected %v, got %v", test.name, test.want, err)
		}
	}
}

func TestExplicitGPUWithoutDevice(t *testing.T) {
	if GPUAvailable() {
		t.Skip("GPU available")
	}
	opts := cpuOptions(1)
	opts.Backend = BackendGPU
	_, err := Generate(cubeMesh(), cubeGrid(), opts)
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
	opts.Backend = BackendAuto
	field, err := Generate(cubeMesh(), cubeGrid(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if field.Backend != BackendCPU {
		t.Errorf("expected auto to fall back to cpu, got %v", field.Backend)
	}
}

func TestPassCapFlagsApproximate(t *testing.T) {
	opts := cpuOptions(1)
	opts.MaxPasses = 1
	field := mustGenerate(t, cubeMesh(), cubeGrid(), opts)
	if !field.Approximate || field.Passes != 1 {
		t.Errorf("expected approximate single pass field, got approximate=%v passes=%d", field.Approximate, field.Passes)
	}
	for i, v := range field.Values {
		if math32.Abs(v) >= sweep.Sentinel {
			t.Fatalf("cell %d left at sentinel after one pass", i)
		}
	}
}

func TestBandCells(t *testing.T) {
	grid := Grid{Dx: 1, Nx: 10, Ny: 10, Nz: 10}
	mesh := Mesh{
		Vertices:  []ms3.Vec{{X: 2.5, Y: 2.5, Z: 2.5}, {X: 3.5, Y: 2.5, Z: 2.5}, {X: 2.5, Y: 3.5, Z: 2.5}},
		Triangles: [][3]int{{0, 1, 2}},
	}
	for band, want := range map[int]int{0: 3 * 3 * 2, 1: 5 * 5 * 4, 2: 7 * 7 * 6} {
		cells := bandCells(mesh, grid, band)
		if len(cells) != want {
			t.Errorf("band %d: expected %d cells, got %d", band, want, len(cells))
		}
		for i := 1; i < len(cells); i++ {
			if cells[i] <= cells[i-1] {
				t.Fatalf("band %d: cells not in ascending order", band)
			}
		}
	}
}

func TestParseBackend(t *testing.T) {
	for in, want := range map[string]Backend{
		"": BackendAuto, "auto": BackendAuto, "CPU": BackendCPU, "cpu-only": BackendCPU, "gpu": BackendGPU, "gpu-only": BackendGPU,
	} {
		got, err := ParseBackend(in)
		if err != nil || got != want {
			t.Errorf("ParseBackend(%q): expected %v, got %v (%v)", in, want, got, err)
		}
	}
	if _, err := ParseBackend("tpu"); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("expected ErrInvalidOptions, got %v", err)
	}
}

func TestGridIndexing(t *testing.T) {
	g := Grid{Origin: ms3.Vec{X: 1, Y: 2, Z: 3}, Dx: 0.5, Nx: 4, Ny: 3, Nz: 2}
	for idx := 0; idx < g.Len(); idx++ {
		i, j, k := g.Cell(idx)
		if g.Index(i, j, k) != idx {
			t.Fatalf("Cell/Index mismatch at %d", idx)
		}
	}
	if p := g.Pos(3, 2, 1); p != (ms3.Vec{X: 2.5, Y: 3, Z: 3.5}) {
		t.Errorf("unexpected position %v", p)
	}
	if b := g.Bounds(); b.Max != g.Pos(3, 2, 1) || b.Min != g.Origin {
		t.Errorf("unexpected bounds %v", b)
	}
}

func TestFieldUtilities(t *testing.T) {
	g := Grid{Dx: 1, Nx: 3, Ny: 2, Nz: 2}
	f := &Field{Grid: g, Values: make([]float32, g.Len())}
	for idx := range f.Values {
		i, j, k := g.Cell(idx)
		f.Values[idx] = float32(i) - 0.5 + float32(j) + 2*float32(k)
	}
	s := f.Stats()
	if s.Total != 12 || s.Inside != 1 || s.Min != -0.5 || s.Max != 4.5 {
		t.Errorf("unexpected stats %+v", s)
	}
	if got := f.Sample(ms3.Vec{X: 0.5, Y: 0.5, Z: 0.5}); math32.Abs(got-1.5) > 1e-6 {
		t.Errorf("expected trilinear sample 1.5, got %g", got)
	}
	if got := f.Sample(ms3.Vec{X: -3, Y: -3, Z: -3}); got != f.At(0, 0, 0) {
		t.Errorf("expected clamped sample %g, got %g", f.At(0, 0, 0), got)
	}
	if got := f.Sample(ms3.Vec{X: 9, Y: 9, Z: 9}); got != f.At(2, 1, 1) {
		t.Errorf("expected clamped sample %g, got %g", f.At(2, 1, 1), got)
	}
	zc := f.ZeroCrossings()
	want := []int{g.Index(0, 0, 0), g.Index(1, 0, 0), g.Index(0, 1, 0), g.Index(0, 0, 1)}
	if len(zc) != len(want) {
		t.Fatalf("expected zero crossings %v, got %v", want, zc)
	}
	for i := range want {
		if zc[i] != want[i] {
			t.Errorf("expected zero crossings %v, got %v", want, zc)
		}
	}
}

func TestGridSizing(t *testing.T) {
	bounds := ms3.Box{Min: ms3.Vec{X: -1, Y: 0, Z: 1}, Max: ms3.Vec{X: 1, Y: 1, Z: 1.5}}
	g, err := GridFromCellSize(bounds, 0.1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if g.Nx != 25 || g.Ny != 15 || g.Nz != 10 {
		t.Errorf("unexpected cell size grid %v", g)
	}
	if !containsBox(g.Bounds(), bounds) {
		t.Errorf("grid %v does not contain %v", g.Bounds(), bounds)
	}

	g, err = GridFromResolution(bounds, 42, 1)
	if err != nil {
		t.Fatal(err)
	}
	if g.Nx != 42 || g.Ny != 22 || g.Nz != 12 || math32.Abs(g.Dx-0.05) > 1e-7 {
		t.Errorf("unexpected proportional grid %v", g)
	}
	assertCentred(t, g, bounds)

	g, err = GridFromDims(bounds, 30, 30, 30, 0)
	if err != nil {
		t.Fatal(err)
	}
	if g.Nx != 30 || math32.Abs(g.Dx-2./28) > 1e-7 {
		t.Errorf("unexpected manual grid %v", g)
	}
	assertCentred(t, g, bounds)
	if !containsBox(g.Bounds(), bounds) {
		t.Errorf("grid %v does not contain %v", g.Bounds(), bounds)
	}

	if _, err := GridFromResolution(bounds, 2, 1); !errors.Is(err, ErrInvalidGrid) {
		t.Errorf("expected ErrInvalidGrid for tiny resolution, got %v", err)
	}
	if _, err := GridFromCellSize(d3.EmptyBox(), 1, 1); !errors.Is(err, ErrInvalidMesh) {
		t.Errorf("expected ErrInvalidMesh for empty bounds, got %v", err)
	}
}

func containsBox(outer, inner ms3.Box) bool {
	return outer.Min.X <= inner.Min.X && outer.Min.Y <= inner.Min.Y && outer.Min.Z <= inner.Min.Z &&
		outer.Max.X >= inner.Max.X && outer.Max.Y >= inner.Max.Y && outer.Max.Z >= inner.Max.Z
}

func assertCentred(t *testing.T, g Grid, bounds ms3.Box) {
	t.Helper()
	gc, mc := d3.Center(g.Bounds()), d3.Center(bounds)
	if d3.Dist2(gc, mc) > 1e-10 {
		t.Errorf("grid centre %v differs from mesh centre %v", gc, mc)
	}
}
