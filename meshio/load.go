// Package meshio reads and writes the triangle meshes consumed by the
// signed distance generator and checks their topology.
package meshio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sdfgen "github.com/meet-brad-ch/SDFGenFast"
	"github.com/meet-brad-ch/SDFGenFast/internal/logger"
	"github.com/soypat/glgl/math/ms3"
	"go.uber.org/zap"
)

// Format identifies a mesh file format.
type Format int

const (
	FormatUnknown Format = iota
	FormatOBJ
	FormatSTL
)

func (f Format) String() string {
	switch f {
	case FormatOBJ:
		return "obj"
	case FormatSTL:
		return "stl"
	}
	return "unknown"
}

// FormatOf returns the mesh format implied by the extension of path.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return FormatOBJ
	case ".stl":
		return FormatSTL
	}
	return FormatUnknown
}

// Load reads the OBJ or STL file at path and returns the mesh with its bounds.
// STL facets are returned unwelded.
func Load(path string) (sdfgen.Mesh, ms3.Box, error) {
	format := FormatOf(path)
	if format == FormatUnknown {
		return sdfgen.Mesh{}, ms3.Box{}, fmt.Errorf("%s: unsupported mesh extension %q", path, filepath.Ext(path))
	}
	fp, err := os.Open(path)
	if err != nil {
		return sdfgen.Mesh{}, ms3.Box{}, err
	}
	defer fp.Close()

	var mesh sdfgen.Mesh
	switch format {
	case FormatOBJ:
		mesh, err = ReadOBJ(fp)
	case FormatSTL:
		var mismatches int
		mesh, mismatches, err = ReadSTL(fp)
		if err == nil && mismatches > 0 {
			logger.L().Warn("STL normals disagree with vertex winding",
				zap.String("file", path), zap.Int("triangles", mismatches))
		}
	}
	if err != nil {
		return sdfgen.Mesh{}, ms3.Box{}, fmt.Errorf("%s: %w", path, err)
	}
	logger.L().Debug("mesh loaded", zap.String("file", path), zap.Stringer("format", format),
		zap.Int("vertices", len(mesh.Vertices)), zap.Int("triangles", len(mesh.Triangles)))
	return mesh, mesh.Bounds(), nil
}

// Save writes mesh as a binary STL file.
func Save(path string, mesh sdfgen.Mesh) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSTL(fp, mesh); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}
