// Package glsdf runs signed distance field generation as OpenGL compute
// kernels. All GL calls are made from one goroutine locked to its OS
// thread, which owns a hidden window and its context.
//
// The kernels evaluate the same formulas as the CPU packages index,
// surface and sweep in float32, so both paths agree to within rounding of
// the device's square root.
package glsdf

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/meet-brad-ch/SDFGenFast/index"
	"github.com/meet-brad-ch/SDFGenFast/surface"
	"github.com/meet-brad-ch/SDFGenFast/sweep"
	"github.com/soypat/glgl/math/ms3"
	"go.uber.org/zap"
)

// ErrUnavailable is returned by Run when no OpenGL 4.3 compute context
// can be created.
var ErrUnavailable = errors.New("glsdf: no OpenGL compute device")

//go:embed shaders/*.glsl
var shaderFS embed.FS

// Job is the input of one generation. Slices are read but not retained.
type Job struct {
	Vertices  []ms3.Vec
	Triangles [][3]int
	BVH       *index.BVH
	Surface   *surface.Orientation
	// Band lists the cells whose distance is computed exactly.
	Band      []int32
	Origin    ms3.Vec
	Dx        float32
	Dims      sweep.Dims
	MaxPasses int
	Tolerance float32
	Logger    *zap.Logger
}

// Output is the result of Run.
type Output struct {
	Values    []float32
	Passes    int
	MaxChange float32
	Converged bool
}

func (job *Job) validate() error {
	switch {
	case job.BVH == nil || job.Surface == nil:
		return errors.New("glsdf: job without index or surface data")
	case job.BVH.Len() != len(job.Triangles) || len(job.Surface.FaceN) != len(job.Triangles):
		return errors.New("glsdf: index or surface data does not match the triangles")
	case len(job.Triangles) == 0 || len(job.Band) == 0:
		return errors.New("glsdf: empty mesh or exact band")
	case job.Dims.Len() <= 0 || !(job.Dx > 0):
		return fmt.Errorf("glsdf: invalid grid %+v dx=%g", job.Dims, job.Dx)
	}
	if job.MaxPasses <= 0 {
		job.MaxPasses = sweep.DefaultMaxPasses
	}
	if job.Tolerance <= 0 {
		job.Tolerance = sweep.DefaultTolerance
	}
	if job.Logger == nil {
		job.Logger = zap.NewNop()
	}
	return nil
}

// params is the std430 Params block shared by the kernels.
type params struct {
	Origin    [3]float32
	Dx        float32
	Nx        int32
	Ny        int32
	Nz        int32
	NumBand   int32
	Level     levelParams
	NumTris   int32
	NumNodes  int32
	MaxChange uint32
	_         [3]uint32
}

// levelParams is the part of params rewritten before every sweep launch.
type levelParams struct {
	Dir   [3]int32
	Level int32
	Kmin  int32
	Rows  int32
}

const (
	paramsLevelOffset     = 32
	paramsLevelSize       = 24
	paramsMaxChangeOffset = 64
	paramsSize            = 80
)

// Buffer binding points of the kernels.
const (
	bindParams = iota
	bindVertices
	bindTriangles
	bindNodes
	bindOrder
	bindNormals
	bindBand
	bindValues
	bindFrozen
	numBindings
)

const workGroupSize = 64

// normalsPerTri is the number of vec4 normals stored per triangle:
// face, three edges, three vertices.
const normalsPerTri = 7

// buffers is the host side content of the kernel buffers.
type buffers struct {
	params    params
	vertices  [][4]float32
	triangles [][4]int32
	nodes     []index.Node
	order     []int32
	normals   [][4]float32
	band      []int32
	values    []float32
	frozen    []uint32
}

func pack(job *Job) *buffers {
	b := &buffers{
		params: params{
			Origin:   [3]float32{job.Origin.X, job.Origin.Y, job.Origin.Z},
			Dx:       job.Dx,
			Nx:       int32(job.Dims.Nx),
			Ny:       int32(job.Dims.Ny),
			Nz:       int32(job.Dims.Nz),
			NumBand:  int32(len(job.Band)),
			NumTris:  int32(len(job.Triangles)),
			NumNodes: int32(len(job.BVH.Nodes())),
		},
		vertices:  make([][4]float32, len(job.Vertices)),
		triangles: make([][4]int32, len(job.Triangles)),
		nodes:     job.BVH.Nodes(),
		order:     job.BVH.Order(),
		normals:   make([][4]float32, normalsPerTri*len(job.Triangles)),
		band:      job.Band,
		values:    make([]float32, job.Dims.Len()),
		frozen:    make([]uint32, job.Dims.Len()),
	}
	for i, v := range job.Vertices {
		b.vertices[i] = vec4(v)
	}
	s := job.Surface
	for i, tri := range job.Triangles {
		var exterior int32
		if s.Exterior[i] {
			exterior = 1
		}
		b.triangles[i] = [4]int32{int32(tri[0]), int32(tri[1]), int32(tri[2]), exterior}
		n := b.normals[normalsPerTri*i : normalsPerTri*(i+1)]
		n[0] = vec4(s.FaceN[i])
		for e := 0; e < 3; e++ {
			n[1+e] = vec4(s.EdgeN[3*i+e])
			n[4+e] = vec4(s.VertN[tri[e]])
		}
	}
	for i := range b.values {
		b.values[i] = sweep.Sentinel
	}
	for _, c := range job.Band {
		b.frozen[c] = 1
	}
	return b
}

func vec4(v ms3.Vec) [4]float32 { return [4]float32{v.X, v.Y, v.Z, 0} }

// levelFor returns the launch parameters of hyperplane L of direction dir.
func levelFor(dims sweep.Dims, dir [3]int, L int) levelParams {
	kmin, kmax := dims.LevelRows(L)
	return levelParams{
		Dir:   [3]int32{int32(dir[0]), int32(dir[1]), int32(dir[2])},
		Level: int32(L),
		Kmin:  int32(kmin),
		Rows:  int32(max(kmax-kmin+1, 0)),
	}
}

// workGroups returns the 2D work group count covering n invocations.
func workGroups(n int) (x, y int) {
	const maxGroups = 65535
	groups := (n + workGroupSize - 1) / workGroupSize
	if groups <= maxGroups {
		return max(groups, 1), 1
	}
	return maxGroups, (groups + maxGroups - 1) / maxGroups
}

// kernelSource returns the combined glgl source of the named kernel.
func kernelSource(name string) (io.Reader, error) {
	common, err := shaderFS.ReadFile("shaders/common.glsl")
	if err != nil {
		return nil, err
	}
	body, err := shaderFS.ReadFile("shaders/" + name + ".glsl")
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	sb.WriteString("#shader compute\n")
	sb.Write(common)
	sb.WriteByte('\n')
	sb.Write(body)
	return strings.NewReader(sb.String()), nil
}
