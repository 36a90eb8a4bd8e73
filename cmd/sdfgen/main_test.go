package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdfgen "github.com/meet-brad-ch/SDFGenFast"
	"github.com/meet-brad-ch/SDFGenFast/internal/config"
	"github.com/meet-brad-ch/SDFGenFast/internal/meshtest"
	"github.com/meet-brad-ch/SDFGenFast/meshio"
	"github.com/meet-brad-ch/SDFGenFast/sdffile"
	"github.com/soypat/glgl/math/ms3"
)

func writeCubeOBJ(t *testing.T, dir string) string {
	t.Helper()
	verts, tris := meshtest.Cube(ms3.Vec{X: -1, Y: -1, Z: -1}, ms3.Vec{X: 1, Y: 1, Z: 1})
	var sb strings.Builder
	for _, v := range verts {
		fmt.Fprintf(&sb, "v %g %g %g\n", v.X, v.Y, v.Z)
	}
	for _, t := range tris {
		fmt.Fprintf(&sb, "f %d %d %d\n", t[0]+1, t[1]+1, t[2]+1)
	}
	path := filepath.Join(dir, "cube.obj")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeCubeSTL(t *testing.T, dir string) string {
	t.Helper()
	verts, tris := meshtest.Cube(ms3.Vec{X: -1, Y: -1, Z: -1}, ms3.Vec{X: 1, Y: 1, Z: 1})
	path := filepath.Join(dir, "cube.stl")
	if err := meshio.Save(path, sdfgen.Mesh{Vertices: verts, Triangles: tris}); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunOBJ(t *testing.T) {
	dir := t.TempDir()
	in := writeCubeOBJ(t, dir)
	var stdout bytes.Buffer
	if err := run([]string{"-cpu", in, "0.25", "-p", "2"}, &stdout); err != nil {
		t.Fatal(err)
	}
	field, err := sdffile.Load(filepath.Join(dir, "cube.sdf"))
	if err != nil {
		t.Fatal(err)
	}
	// 2/0.25 cells plus 2 padding cells a side plus the closing sample.
	if field.Nx != 13 || field.Ny != 13 || field.Nz != 13 || field.Dx != 0.25 {
		t.Fatalf("unexpected grid %v", field.Grid)
	}
	if v := field.At(6, 6, 6); !(v < 0) {
		t.Errorf("center value %g should be inside", v)
	}
	iso := filepath.Join(dir, "iso.stl")
	if err := run([]string{"-cpu", "-iso", iso, in, "0.25"}, &stdout); err != nil {
		t.Fatal(err)
	}
	isoMesh, _, err := meshio.Load(iso)
	if err != nil {
		t.Fatal(err)
	}
	if len(isoMesh.Triangles) == 0 {
		t.Error("empty isosurface")
	}
	out := stdout.String()
	for _, want := range []string{"Watertight:         yes", "Backend:     cpu", "cube.sdf"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunSTLNaming(t *testing.T) {
	dir := t.TempDir()
	in := writeCubeSTL(t, dir)
	var stdout bytes.Buffer
	if err := run([]string{"-cpu", "-t", "2", in, "16"}, &stdout); err != nil {
		t.Fatal(err)
	}
	field, err := sdffile.Load(filepath.Join(dir, "cube_sdf_16x16x16.sdf"))
	if err != nil {
		t.Fatal(err)
	}
	if field.Len() != 16*16*16 {
		t.Fatalf("unexpected grid %v", field.Grid)
	}

	out := filepath.Join(dir, "explicit.sdf")
	if err := run([]string{"-cpu", "-o", out, in, "20", "12", "10", "1"}, &stdout); err != nil {
		t.Fatal(err)
	}
	field, err = sdffile.Load(out)
	if err != nil {
		t.Fatal(err)
	}
	if field.Nx != 20 || field.Ny != 12 || field.Nz != 10 {
		t.Fatalf("unexpected grid %v", field.Grid)
	}
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	obj := writeCubeOBJ(t, dir)
	stl := writeCubeSTL(t, dir)
	for _, args := range [][]string{
		{},
		{obj},
		{obj, "-1"},
		{stl},
		{stl, "16", "40"},
		{stl, "16", "16"},
		{filepath.Join(dir, "cube.ply"), "16"},
		{filepath.Join(dir, "missing.obj"), "0.1"},
		{"-band", "x", obj, "0.1"},
	} {
		var stdout bytes.Buffer
		if err := run(append([]string{"-cpu"}, args...), &stdout); err == nil {
			t.Errorf("run %q: expected error", args)
		}
	}
}

func TestParseInterspersed(t *testing.T) {
	for _, test := range []struct {
		args    []string
		wantPos []string
		wantOut string
	}{
		{args: []string{"-o", "a.sdf", "m.obj", "0.1"}, wantPos: []string{"m.obj", "0.1"}, wantOut: "a.sdf"},
		{args: []string{"m.obj", "-o", "a.sdf", "0.1"}, wantPos: []string{"m.obj", "0.1"}, wantOut: "a.sdf"},
		{args: []string{"m.stl", "16", "-o", "a.sdf"}, wantPos: []string{"m.stl", "16"}, wantOut: "a.sdf"},
		{args: []string{"-o", "a.sdf", "--", "-m.obj", "-o"}, wantPos: []string{"-m.obj", "-o"}, wantOut: "a.sdf"},
		{args: []string{"m.obj", "--", "-0.1"}, wantPos: []string{"m.obj", "-0.1"}},
	} {
		var flags config.Flags
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		flags.Register(fs)
		pos, err := parseInterspersed(fs, test.args)
		if err != nil {
			t.Errorf("%q: %v", test.args, err)
			continue
		}
		if strings.Join(pos, " ") != strings.Join(test.wantPos, " ") {
			t.Errorf("%q: expected positional %q, got %q", test.args, test.wantPos, pos)
		}
		if flags.Output != test.wantOut {
			t.Errorf("%q: expected output %q, got %q", test.args, test.wantOut, flags.Output)
		}
	}
}

func TestParseSizing(t *testing.T) {
	gc := config.Default().Grid
	s, err := parseSizing(meshio.FormatSTL, []string{"64", "3"}, gc)
	if err != nil || len(s.dims) != 1 || s.dims[0] != 64 || s.padding != 3 {
		t.Errorf("proportional with padding: %+v %v", s, err)
	}
	s, err = parseSizing(meshio.FormatSTL, []string{"8", "9", "10"}, gc)
	if err != nil || len(s.dims) != 3 || s.padding != 1 {
		t.Errorf("explicit: %+v %v", s, err)
	}
	gc.Resolution = []int{32}
	s, err = parseSizing(meshio.FormatSTL, nil, gc)
	if err != nil || s.dims[0] != 32 {
		t.Errorf("resolution from config: %+v %v", s, err)
	}
	gc.CellSize = 0.5
	s, err = parseSizing(meshio.FormatOBJ, nil, gc)
	if err != nil || s.cellSize != 0.5 {
		t.Errorf("cell size from config: %+v %v", s, err)
	}
	gc.Padding = 0
	s, _ = parseSizing(meshio.FormatOBJ, []string{"0.1"}, gc)
	if s.padding != sdfgen.MinPadding {
		t.Errorf("padding not raised to minimum: %d", s.padding)
	}
}

func TestOutputName(t *testing.T) {
	g := sdfgen.Grid{Nx: 615, Ny: 615, Nz: 113}
	if got := outputName("data/hill.stl", meshio.FormatSTL, g); got != "data/hill_sdf_615x615x113.sdf" {
		t.Errorf("got %q", got)
	}
	if got := outputName("bunny.OBJ", meshio.FormatOBJ, g); got != "bunny.sdf" {
		t.Errorf("got %q", got)
	}
}
