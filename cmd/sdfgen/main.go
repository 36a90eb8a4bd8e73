// sdfgen converts an OBJ or STL triangle mesh into a binary signed distance field.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	sdfgen "github.com/meet-brad-ch/SDFGenFast"
	"github.com/meet-brad-ch/SDFGenFast/internal/config"
	"github.com/meet-brad-ch/SDFGenFast/internal/logger"
	"github.com/meet-brad-ch/SDFGenFast/isosurface"
	"github.com/meet-brad-ch/SDFGenFast/meshio"
	"github.com/meet-brad-ch/SDFGenFast/sdffile"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

const usage = `sdfgen - signed distance field generator

Usage:
  sdfgen [flags] <mesh.obj> <dx> [padding]
  sdfgen [flags] <mesh.stl> <Nx> [padding]
  sdfgen [flags] <mesh.stl> <Nx> <Ny> <Nz> [padding]

OBJ input is sampled with cell size dx. STL input is sized to Nx cells
along x with the other axes proportional, or fitted into Nx x Ny x Nz.

Flags:`

func run(args []string, stdout io.Writer) error {
	var flags config.Flags
	fs := flag.NewFlagSet("sdfgen", flag.ContinueOnError)
	flags.Register(fs)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), usage)
		fs.PrintDefaults()
	}
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(pos) == 0 {
		fs.Usage()
		return errors.New("missing input mesh")
	}
	input := pos[0]

	cfg, err := config.Load(&flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := initLogger(cfg); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	format := meshio.FormatOf(input)
	if format == meshio.FormatUnknown {
		return fmt.Errorf("%s: input must be .obj or .stl", input)
	}
	size, err := parseSizing(format, pos[1:], cfg.Grid)
	if err != nil {
		return err
	}
	backend, err := sdfgen.ParseBackend(cfg.Engine.Backend)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Input: %s (%s)\n", input, format)
	mesh, _, err := meshio.Load(input)
	if err != nil {
		return err
	}
	mesh, merged, err := meshio.Weld(mesh, cfg.Mesh.WeldTolerance)
	if err != nil {
		return err
	}
	if merged > 0 {
		logger.Info("welded duplicate vertices", zap.Int("merged", merged),
			zap.Int("vertices", len(mesh.Vertices)), zap.Int("triangles", len(mesh.Triangles)))
	}
	analysis := meshio.Analyze(mesh.Triangles)
	printAnalysis(stdout, analysis)
	if !analysis.Watertight() {
		logger.Warn("mesh is not watertight, signs near open boundaries may be wrong",
			zap.Int("boundary_edges", analysis.BoundaryEdges),
			zap.Int("non_manifold_edges", analysis.NonManifoldEdges),
			zap.Int("holes", analysis.Holes))
	}

	grid, err := size.grid(mesh)
	if err != nil {
		return err
	}
	opts := sdfgen.Options{
		ExactBand: cfg.Engine.ExactBand,
		Backend:   backend,
		Threads:   cfg.Engine.Threads,
		MaxPasses: cfg.Engine.MaxPasses,
		Tolerance: cfg.Engine.Tolerance,
		Logger:    logger.L(),
	}
	fmt.Fprintf(stdout, "Grid: %s\n", grid)
	field, err := sdfgen.Generate(mesh, grid, opts)
	if err != nil {
		return err
	}

	out := cfg.Output.Path
	if out == "" {
		out = outputName(input, format, field.Grid)
	}
	if err := sdffile.Save(out, field); err != nil {
		return err
	}
	printSummary(stdout, out, field)

	if cfg.Output.Iso != "" {
		iso, err := isosurface.Extract(field, 0)
		if err != nil {
			return fmt.Errorf("isosurface: %w", err)
		}
		if err := meshio.Save(cfg.Output.Iso, iso); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Isosurface: %s (%d triangles)\n", cfg.Output.Iso, len(iso.Triangles))
	}
	return nil
}

// parseInterspersed parses flags appearing before, between or after the
// positional arguments and returns the positional arguments in order.
// Everything after a "--" terminator is positional.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return pos, nil
		}
		// Parse consumes the terminator, so it is the last argument taken.
		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			return append(pos, rest...), nil
		}
		pos = append(pos, rest[0])
		args = rest[1:]
	}
}

func initLogger(cfg *config.Config) error {
	return logger.InitWithFileConfig(cfg.Logging.Level, logger.FileConfig{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}, os.Stderr)
}

// sizing is the grid request assembled from the configuration and the
// positional arguments.
type sizing struct {
	cellSize float32 // OBJ input
	dims     []int   // STL input, one or three values
	padding  int
}

func (s sizing) grid(mesh sdfgen.Mesh) (sdfgen.Grid, error) {
	bounds := mesh.Bounds()
	switch {
	case s.cellSize > 0:
		return sdfgen.GridFromCellSize(bounds, s.cellSize, s.padding)
	case len(s.dims) == 1:
		return sdfgen.GridFromResolution(bounds, s.dims[0], s.padding)
	case len(s.dims) == 3:
		return sdfgen.GridFromDims(bounds, s.dims[0], s.dims[1], s.dims[2], s.padding)
	}
	return sdfgen.Grid{}, errors.New("no grid size given")
}

// maxPositionalPadding separates a trailing padding value from a grid
// dimension in the two argument STL form.
const maxPositionalPadding = 20

func parseSizing(format meshio.Format, args []string, gc config.GridConfig) (sizing, error) {
	s := sizing{padding: gc.Padding}
	switch format {
	case meshio.FormatOBJ:
		s.cellSize = gc.CellSize
		switch len(args) {
		case 0:
		case 1, 2:
			dx, err := strconv.ParseFloat(args[0], 32)
			if err != nil || !(dx > 0) {
				return s, fmt.Errorf("cell size must be a positive number, got %q", args[0])
			}
			s.cellSize = float32(dx)
			if len(args) == 2 {
				if s.padding, err = parseCount(args[1], "padding"); err != nil {
					return s, err
				}
			}
		default:
			return s, errors.New("OBJ input takes <dx> [padding]")
		}
		if !(s.cellSize > 0) {
			return s, errors.New("OBJ input needs a cell size: sdfgen mesh.obj <dx> [padding]")
		}
	case meshio.FormatSTL:
		s.dims = gc.Resolution
		var err error
		switch len(args) {
		case 0:
		case 1, 2:
			s.dims = make([]int, 1)
			if s.dims[0], err = parseCount(args[0], "Nx"); err != nil {
				return s, err
			}
			if len(args) == 2 {
				if s.padding, err = parseCount(args[1], "padding"); err != nil {
					return s, err
				}
				if s.padding >= maxPositionalPadding {
					return s, fmt.Errorf("padding %d too large; for explicit dimensions use <Nx> <Ny> <Nz>", s.padding)
				}
			}
		case 3, 4:
			s.dims = make([]int, 3)
			for i := range s.dims {
				if s.dims[i], err = parseCount(args[i], "grid dimension"); err != nil {
					return s, err
				}
			}
			if len(args) == 4 {
				if s.padding, err = parseCount(args[3], "padding"); err != nil {
					return s, err
				}
			}
		default:
			return s, errors.New("STL input takes <Nx> [padding] or <Nx> <Ny> <Nz> [padding]")
		}
		if len(s.dims) == 0 {
			return s, errors.New("STL input needs grid dimensions: sdfgen mesh.stl <Nx> [Ny Nz] [padding]")
		}
	}
	s.padding = max(s.padding, sdfgen.MinPadding)
	return s, nil
}

func parseCount(arg, what string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", what, arg)
	}
	return n, nil
}

// outputName derives the .sdf path from the input path. Dimension-sized
// STL grids carry their dimensions in the name.
func outputName(input string, format meshio.Format, g sdfgen.Grid) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	if format == meshio.FormatSTL {
		return fmt.Sprintf("%s_sdf_%dx%dx%d.sdf", base, g.Nx, g.Ny, g.Nz)
	}
	return base + ".sdf"
}

func printAnalysis(w io.Writer, a meshio.Analysis) {
	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "NO"
	}
	fmt.Fprintf(w, `Mesh analysis:
  Triangles:          %d (%d degenerate)
  Edges:              %d
  Boundary edges:     %d
  Non-manifold edges: %d
  Holes:              %d
  Manifold:           %s
  Watertight:         %s
`, a.Triangles, a.Degenerate, a.Edges, a.BoundaryEdges, a.NonManifoldEdges, a.Holes,
		yesNo(a.Manifold()), yesNo(a.Watertight()))
}

func printSummary(w io.Writer, path string, f *sdfgen.Field) {
	st := f.Stats()
	b := f.Bounds()
	var sizeMB float64
	if fi, err := os.Stat(path); err == nil {
		sizeMB = float64(fi.Size()) / (1 << 20)
	}
	fmt.Fprintf(w, `Output summary:
  File:        %s
  Dimensions:  %d x %d x %d
  Cell size:   %g
  Bounds:      (%g, %g, %g) to (%g, %g, %g)
  Inside:      %d / %d (%.2f%%)
  Range:       [%g, %g]
  File size:   %.2f MB
  Backend:     %s
  Approximate: %t (%d passes)
`, path, f.Nx, f.Ny, f.Nz, f.Dx,
		b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z,
		st.Inside, st.Total, 100*st.InsideFraction(), st.Min, st.Max,
		sizeMB, f.Backend, f.Approximate, f.Passes)
}
