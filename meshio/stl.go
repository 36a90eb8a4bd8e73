package meshio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	sdfgen "github.com/meet-brad-ch/SDFGenFast"
	"github.com/soypat/glgl/math/ms3"
)

const (
	stlHeaderSize   = 84
	stlTriangleSize = 50
	// Files declaring more mismatched normals than this are rejected.
	maxNormalMismatches = 10_000
)

// ReadSTL reads a binary or ASCII STL stream. Each facet contributes
// three fresh vertices; use Weld to recover shared connectivity.
// The number of facets whose stored normal disagrees with the winding
// of its vertices is returned alongside the mesh.
func ReadSTL(r io.Reader) (mesh sdfgen.Mesh, normalMismatches int, err error) {
	br := bufio.NewReader(r)
	ascii, err := isASCIISTL(br)
	if err != nil {
		return sdfgen.Mesh{}, 0, err
	}
	var rd stlDecoder
	if ascii {
		err = rd.readASCII(br)
	} else {
		err = rd.readBinary(br)
	}
	if err != nil {
		return sdfgen.Mesh{}, rd.mismatches, err
	}
	return rd.mesh, rd.mismatches, nil
}

// isASCIISTL peeks at the stream. Binary headers may also begin with
// "solid", so a facet keyword is required close to the start.
func isASCIISTL(br *bufio.Reader) (bool, error) {
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return false, fmt.Errorf("STL header read failed: %w", err)
	}
	if len(head) == 0 {
		return false, errors.New("empty STL stream")
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("solid")) {
		return false, nil
	}
	return bytes.Contains(trimmed, []byte("facet")) || bytes.Contains(trimmed, []byte("endsolid")), nil
}

type stlDecoder struct {
	mesh       sdfgen.Mesh
	mismatches int
}

func (rd *stlDecoder) add(t stlTriangle) error {
	if err := t.validate(); err != nil {
		if !errors.Is(err, errNormalMismatch) {
			return err
		}
		rd.mismatches++
		if rd.mismatches > maxNormalMismatches {
			return fmt.Errorf("got too many normal vector mismatches (%d)", rd.mismatches)
		}
	}
	base := len(rd.mesh.Vertices)
	rd.mesh.Vertices = append(rd.mesh.Vertices, vec(t.Vertex1), vec(t.Vertex2), vec(t.Vertex3))
	rd.mesh.Triangles = append(rd.mesh.Triangles, [3]int{base, base + 1, base + 2})
	return nil
}

func (rd *stlDecoder) readBinary(r io.Reader) (readErr error) {
	var header stlHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return errors.New("encountered EOF while reading STL header")
		}
		return errors.New("STL header read failed: " + err.Error())
	}
	if header.Count == 0 {
		return errors.New("STL header indicates 0 triangles present")
	}
	var (
		buf [stlTriangleSize]byte
		d   stlTriangle
		i   int
	)
	defer func() {
		if readErr != nil {
			readErr = fmt.Errorf("%d/%d STL triangles read: %w", i+1, header.Count, readErr)
		}
	}()
	for i = 0; i < int(header.Count); i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return err
		}
		d.get(buf[:])
		if err := rd.add(d); err != nil {
			return err
		}
	}
	return nil
}

func (rd *stlDecoder) readASCII(r io.Reader) error {
	var (
		d      stlTriangle
		nv     int
		inLoop bool
		line   int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		var err error
		switch fields[0] {
		case "solid", "endsolid", "endloop":
		case "facet":
			if len(fields) != 5 || fields[1] != "normal" {
				return fmt.Errorf("STL line %d: malformed facet", line)
			}
			d = stlTriangle{}
			nv = 0
			d.Normal, err = parse3F32(fields[2:])
		case "outer":
			inLoop = true
		case "vertex":
			if !inLoop || nv == 3 || len(fields) != 4 {
				return fmt.Errorf("STL line %d: unexpected vertex", line)
			}
			var v [3]float32
			v, err = parse3F32(fields[1:])
			switch nv {
			case 0:
				d.Vertex1 = v
			case 1:
				d.Vertex2 = v
			case 2:
				d.Vertex3 = v
			}
			nv++
		case "endfacet":
			if nv != 3 {
				return fmt.Errorf("STL line %d: facet has %d vertices", line, nv)
			}
			inLoop = false
			err = rd.add(d)
		default:
			return fmt.Errorf("STL line %d: unknown keyword %q", line, fields[0])
		}
		if err != nil {
			return fmt.Errorf("STL line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if len(rd.mesh.Triangles) == 0 {
		return errors.New("ASCII STL contains no facets")
	}
	return nil
}

func parse3F32(s []string) (f [3]float32, err error) {
	for i := range f {
		v, err := strconv.ParseFloat(s[i], 32)
		if err != nil {
			return f, err
		}
		f[i] = float32(v)
	}
	return f, nil
}

// WriteSTL writes the mesh in binary STL format. Facet normals are
// computed from the vertex winding.
func WriteSTL(w io.Writer, mesh sdfgen.Mesh) error {
	if len(mesh.Triangles) == 0 {
		return errors.New("empty triangle slice")
	}
	if uint64(len(mesh.Triangles)) > math.MaxUint32 {
		return errors.New("too many triangles for STL")
	}
	bw := bufio.NewWriter(w)
	header := stlHeader{Count: uint32(len(mesh.Triangles))}
	if err := binary.Write(bw, binary.LittleEndian, &header); err != nil {
		return err
	}
	var (
		b [stlTriangleSize]byte
		d stlTriangle
	)
	for i, t := range mesh.Triangles {
		for _, vi := range t {
			if vi < 0 || vi >= len(mesh.Vertices) {
				return fmt.Errorf("triangle %d: vertex index %d out of range", i, vi)
			}
		}
		d.Vertex1 = arr(mesh.Vertices[t[0]])
		d.Vertex2 = arr(mesh.Vertices[t[1]])
		d.Vertex3 = arr(mesh.Vertices[t[2]])
		d.Normal = d.normalFromVertices()
		d.put(b[:])
		if _, err := bw.Write(b[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// stlHeader defines the STL file header.
type stlHeader struct {
	_     [80]uint8 // Header
	Count uint32    // Number of triangles
}

// stlTriangle defines the triangle data within an STL file.
type stlTriangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
	_       uint16 // Attribute byte count
}

func (t stlTriangle) put(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to marshal stlTriangle")
	}
	put3F32(b, t.Normal)
	put3F32(b[12:], t.Vertex1)
	put3F32(b[24:], t.Vertex2)
	put3F32(b[36:], t.Vertex3)
	binary.LittleEndian.PutUint16(b[48:], 0)
}

func (t *stlTriangle) get(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to unmarshal stlTriangle")
	}
	get3F32(b, &t.Normal)
	get3F32(b[12:], &t.Vertex1)
	get3F32(b[24:], &t.Vertex2)
	get3F32(b[36:], &t.Vertex3)
	// attribute bytes ignored.
}

func put3F32(b []byte, f [3]float32) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(f[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(f[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(f[2]))
}

func get3F32(b []byte, f *[3]float32) {
	_ = b[11] // early bounds check
	f[0] = math.Float32frombits(binary.LittleEndian.Uint32(b))
	f[1] = math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
	f[2] = math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))
}

func bad3F32(f [3]float32) bool {
	return math32.IsNaN(f[0]) || math32.IsInf(f[0], 0) ||
		math32.IsNaN(f[1]) || math32.IsInf(f[1], 0) ||
		math32.IsNaN(f[2]) || math32.IsInf(f[2], 0)
}

var errNormalMismatch = errors.New("stored STL normal disagrees with vertex winding")

func (t stlTriangle) validate() error {
	const epsilon = 1e-12
	const normTol = 5e-2
	if bad3F32(t.Normal) {
		return errors.New("inf/NaN STL triangle normal")
	}
	if bad3F32(t.Vertex1) || bad3F32(t.Vertex2) || bad3F32(t.Vertex3) {
		return errors.New("inf/NaN STL triangle vertex")
	}
	if t.degenerate(epsilon) {
		return errors.New("triangle is degenerate")
	}
	if t.Normal == [3]float32{} {
		// Many exporters leave the normal zeroed.
		return nil
	}
	calc := t.normalFromVertices()
	if !equalWithin3F32(calc, t.Normal, normTol) {
		return errNormalMismatch
	}
	return nil
}

func (t stlTriangle) normalFromVertices() [3]float32 {
	v1, v2, v3 := vec(t.Vertex1), vec(t.Vertex2), vec(t.Vertex3)
	n := ms3.Cross(ms3.Sub(v2, v1), ms3.Sub(v3, v1))
	if l := ms3.Norm(n); l > 0 {
		n = ms3.Scale(1/l, n)
	}
	return arr(n)
}

// degenerate reports whether two vertices coincide.
func (t stlTriangle) degenerate(tol float32) bool {
	return equalWithin3F32(t.Vertex1, t.Vertex2, tol) ||
		equalWithin3F32(t.Vertex2, t.Vertex3, tol) ||
		equalWithin3F32(t.Vertex3, t.Vertex1, tol)
}

func equalWithin3F32(a, b [3]float32, tol float32) bool {
	return math32.Abs(a[0]-b[0]) <= tol &&
		math32.Abs(a[1]-b[1]) <= tol &&
		math32.Abs(a[2]-b[2]) <= tol
}

func vec(f [3]float32) ms3.Vec { return ms3.Vec{X: f[0], Y: f[1], Z: f[2]} }

func arr(v ms3.Vec) [3]float32 { return [3]float32{v.X, v.Y, v.Z} }
