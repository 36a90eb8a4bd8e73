// Package sdffile reads and writes signed distance fields in the .sdf
// binary format.
//
// All values are little endian. The file starts with a 36 byte header
//
//	int32   nx, ny, nz
//	float32 origin x, y, z
//	float32 dx
//	uint32  flags     bit 0 set when the field is approximate
//	uint32  reserved
//
// followed by nx*ny*nz float32 values with x varying fastest.
package sdffile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	sdfgen "github.com/meet-brad-ch/SDFGenFast"
	"github.com/soypat/glgl/math/ms3"
)

// HeaderSize is the size in bytes of the file header.
const HeaderSize = 36

const (
	flagApproximate uint32 = 1 << iota
)

// values are streamed in chunks of this many cells.
const chunkCells = 1 << 14

type header struct {
	Nx, Ny, Nz int32
	Origin     [3]float32
	Dx         float32
	Flags      uint32
	_          uint32 // reserved
}

// Size returns the size in bytes of the encoded grid.
func Size(g sdfgen.Grid) int64 { return HeaderSize + 4*int64(g.Len()) }

// Write encodes f to w.
func Write(w io.Writer, f *sdfgen.Field) error {
	if err := f.Grid.Validate(); err != nil {
		return err
	}
	if len(f.Values) != f.Len() {
		return fmt.Errorf("field has %d values for %d cells", len(f.Values), f.Len())
	}
	h := header{
		Nx:     int32(f.Nx),
		Ny:     int32(f.Ny),
		Nz:     int32(f.Nz),
		Origin: [3]float32{f.Origin.X, f.Origin.Y, f.Origin.Z},
		Dx:     f.Dx,
	}
	if f.Approximate {
		h.Flags |= flagApproximate
	}
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, &h); err != nil {
		return err
	}
	buf := make([]byte, 4*min(chunkCells, len(f.Values)))
	for vals := f.Values; len(vals) > 0; {
		n := min(chunkCells, len(vals))
		for i, v := range vals[:n] {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
		}
		if _, err := bw.Write(buf[:4*n]); err != nil {
			return err
		}
		vals = vals[n:]
	}
	return bw.Flush()
}

// Read decodes a field from r. Passes and Backend of the returned field
// are not stored in the file and are left zero.
func Read(r io.Reader) (*sdfgen.Field, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.New("encountered EOF while reading SDF header")
		}
		return nil, fmt.Errorf("SDF header read failed: %w", err)
	}
	if h.Flags&^flagApproximate != 0 {
		return nil, fmt.Errorf("unknown SDF header flags %#x", h.Flags)
	}
	grid := sdfgen.Grid{
		Origin: ms3.Vec{X: h.Origin[0], Y: h.Origin[1], Z: h.Origin[2]},
		Dx:     h.Dx,
		Nx:     int(h.Nx),
		Ny:     int(h.Ny),
		Nz:     int(h.Nz),
	}
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("bad SDF header: %w", err)
	}
	// Grow with the data read, the header is untrusted.
	total := grid.Len()
	vals := make([]float32, 0, min(total, 64*chunkCells))
	buf := make([]byte, 4*min(chunkCells, total))
	for len(vals) < total {
		n := min(chunkCells, total-len(vals))
		if _, err := io.ReadFull(r, buf[:4*n]); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("%d/%d SDF values read: %w", len(vals), total, err)
		}
		for i := 0; i < n; i++ {
			vals = append(vals, math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:])))
		}
	}
	f := &sdfgen.Field{
		Grid:        grid,
		Values:      vals,
		Approximate: h.Flags&flagApproximate != 0,
	}
	return f, nil
}

// Save writes f to the file at path, replacing it if present.
func Save(path string, f *sdfgen.Field) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(fp, f); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}

// Load reads the field stored at path.
func Load(path string) (*sdfgen.Field, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	f, err := Read(bufio.NewReader(fp))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}
