package meshio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	sdfgen "github.com/meet-brad-ch/SDFGenFast"
	"github.com/soypat/glgl/math/ms3"
)

// ReadOBJ reads the geometry of a Wavefront OBJ stream. Only vertex
// positions (v) and faces (f) are used; polygons are fan triangulated
// around their first corner. Face corners may use the v, v/vt, v//vn
// and v/vt/vn forms with 1-based or negative (relative) indices.
func ReadOBJ(r io.Reader) (sdfgen.Mesh, error) {
	var (
		mesh    sdfgen.Mesh
		corners []int
		line    int
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return sdfgen.Mesh{}, fmt.Errorf("OBJ line %d: vertex needs 3 coordinates, found %d", line, len(fields)-1)
			}
			f, err := parse3F32(fields[1:4])
			if err != nil {
				return sdfgen.Mesh{}, fmt.Errorf("OBJ line %d: %w", line, err)
			}
			mesh.Vertices = append(mesh.Vertices, ms3.Vec{X: f[0], Y: f[1], Z: f[2]})
		case "f":
			if len(fields) < 4 {
				return sdfgen.Mesh{}, fmt.Errorf("OBJ line %d: face needs at least 3 corners, found %d", line, len(fields)-1)
			}
			corners = corners[:0]
			for _, c := range fields[1:] {
				idx, err := faceIndex(c, len(mesh.Vertices))
				if err != nil {
					return sdfgen.Mesh{}, fmt.Errorf("OBJ line %d: %w", line, err)
				}
				corners = append(corners, idx)
			}
			for j := 1; j+1 < len(corners); j++ {
				mesh.Triangles = append(mesh.Triangles, [3]int{corners[0], corners[j], corners[j+1]})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return sdfgen.Mesh{}, err
	}
	if len(mesh.Triangles) == 0 {
		return sdfgen.Mesh{}, errors.New("OBJ contains no faces")
	}
	return mesh, nil
}

// faceIndex resolves the position index of a face corner against the
// nv vertices read so far.
func faceIndex(corner string, nv int) (int, error) {
	s, _, _ := strings.Cut(corner, "/")
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad face index %q", corner)
	}
	switch {
	case i > 0:
		i--
	case i < 0:
		i += nv
	default:
		return 0, errors.New("0 vertex index")
	}
	if i < 0 || i >= nv {
		return 0, fmt.Errorf("face index %s out of range (%d vertices)", s, nv)
	}
	return i, nil
}
