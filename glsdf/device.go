//go:build !nogl

package glsdf

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/go-gl/gl/all-core/gl"
	"github.com/meet-brad-ch/SDFGenFast/sweep"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"go.uber.org/zap"
)

var errDeviceClosed = errors.New("glsdf: device closed")

// device owns a GL context bound to a single locked OS thread.
type device struct {
	calls   chan func()
	quit    chan struct{}
	done    chan struct{}
	version string
	// Accessed only from the GL thread.
	band, sweep *glgl.Program
}

type probeState struct {
	once sync.Once
	dev  *device
	err  error
}

var (
	probeMu sync.Mutex
	probe   = &probeState{}
)

func currentDevice() (*device, error) {
	probeMu.Lock()
	s := probe
	probeMu.Unlock()
	s.once.Do(func() {
		s.dev, s.err = startDevice()
	})
	return s.dev, s.err
}

// Available reports whether an OpenGL 4.3 compute context could be
// created. The first call probes the device; later calls return the
// cached result.
func Available() bool {
	dev, _ := currentDevice()
	return dev != nil
}

// Reprobe releases the current context, if any, and probes again.
func Reprobe() bool {
	probeMu.Lock()
	old := probe
	probe = &probeState{}
	probeMu.Unlock()
	old.once.Do(func() {})
	if old.dev != nil {
		old.dev.close()
	}
	return Available()
}

// ProbeError returns why the device is unavailable, or nil.
func ProbeError() error {
	_, err := currentDevice()
	return err
}

// Version returns the GL version string of the device, empty if unavailable.
func Version() string {
	dev, _ := currentDevice()
	if dev == nil {
		return ""
	}
	return dev.version
}

func startDevice() (*device, error) {
	d := &device{
		calls: make(chan func()),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	errc := make(chan error, 1)
	go d.loop(errc)
	if err := <-errc; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return d, nil
}

func (d *device) loop(errc chan<- error) {
	runtime.LockOSThread()
	defer close(d.done)
	terminate, err := d.init()
	errc <- err
	if err != nil {
		return
	}
	defer terminate()
	for {
		select {
		case fn := <-d.calls:
			fn()
		case <-d.quit:
			return
		}
	}
}

func (d *device) init() (terminate func(), err error) {
	defer func() {
		// Window system failures may panic inside the bindings.
		if r := recover(); r != nil {
			err = fmt.Errorf("gl init: %v", r)
		}
	}()
	_, terminate, err = glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:   "sdfgen",
		Version: [2]int{4, 3},
		Width:   1,
		Height:  1,
	})
	if err != nil {
		return nil, err
	}
	var major, minor int32
	gl.GetIntegerv(gl.MAJOR_VERSION, &major)
	gl.GetIntegerv(gl.MINOR_VERSION, &minor)
	if major < 4 || (major == 4 && minor < 3) {
		terminate()
		return nil, fmt.Errorf("compute shaders need OpenGL 4.3, got %d.%d", major, minor)
	}
	d.version = gl.GoStr(gl.GetString(gl.VERSION))
	return terminate, nil
}

// do runs fn on the GL thread and returns its error.
func (d *device) do(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case d.calls <- func() { errc <- fn() }:
	case <-d.done:
		return errDeviceClosed
	}
	return <-errc
}

func (d *device) close() {
	close(d.quit)
	<-d.done
}

// Run generates the field described by job on the GPU.
func Run(job Job) (Output, error) {
	if err := job.validate(); err != nil {
		return Output{}, err
	}
	dev, err := currentDevice()
	if err != nil {
		return Output{}, err
	}
	bufs := pack(&job)
	var out Output
	err = dev.do(func() error {
		var err error
		out, err = dev.run(&job, bufs)
		return err
	})
	return out, err
}

func (d *device) compile() error {
	if d.band != nil {
		return nil
	}
	band, err := compileKernel("band")
	if err != nil {
		return err
	}
	sweepProg, err := compileKernel("sweep")
	if err != nil {
		return err
	}
	d.band, d.sweep = &band, &sweepProg
	return nil
}

func compileKernel(name string) (glgl.Program, error) {
	src, err := kernelSource(name)
	if err != nil {
		return glgl.Program{}, err
	}
	combined, err := glgl.ParseCombined(src)
	if err != nil {
		return glgl.Program{}, fmt.Errorf("%s kernel: %w", name, err)
	}
	prog, err := glgl.CompileProgram(combined)
	if err != nil {
		return glgl.Program{}, fmt.Errorf("%s kernel: %w\n%s", name, err, combined.Compute)
	}
	return prog, nil
}

func (d *device) run(job *Job, b *buffers) (Output, error) {
	if err := d.compile(); err != nil {
		return Output{}, err
	}
	var maxBlock int64
	gl.GetInteger64v(gl.MAX_SHADER_STORAGE_BLOCK_SIZE, &maxBlock)
	if need := int64(len(b.values)) * 4; maxBlock > 0 && need > maxBlock {
		return Output{}, fmt.Errorf("glsdf: grid needs %d byte buffers, device allows %d", need, maxBlock)
	}

	var ids [numBindings]uint32
	gl.GenBuffers(numBindings, &ids[0])
	defer gl.DeleteBuffers(numBindings, &ids[0])
	upload(ids[bindParams], bindParams, unsafe.Pointer(&b.params), paramsSize)
	upload(ids[bindVertices], bindVertices, slicePtr(b.vertices), len(b.vertices)*16)
	upload(ids[bindTriangles], bindTriangles, slicePtr(b.triangles), len(b.triangles)*16)
	upload(ids[bindNodes], bindNodes, slicePtr(b.nodes), len(b.nodes)*int(unsafe.Sizeof(b.nodes[0])))
	upload(ids[bindOrder], bindOrder, slicePtr(b.order), len(b.order)*4)
	upload(ids[bindNormals], bindNormals, slicePtr(b.normals), len(b.normals)*16)
	upload(ids[bindBand], bindBand, slicePtr(b.band), len(b.band)*4)
	upload(ids[bindValues], bindValues, slicePtr(b.values), len(b.values)*4)
	upload(ids[bindFrozen], bindFrozen, slicePtr(b.frozen), len(b.frozen)*4)
	if err := glError("upload"); err != nil {
		return Output{}, err
	}

	d.band.Bind()
	gx, gy := workGroups(len(b.band))
	if err := d.band.RunCompute(gx, gy, 1); err != nil {
		return Output{}, fmt.Errorf("band kernel: %w", err)
	}
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)

	out := Output{}
	tol := job.Tolerance * job.Dx
	dims := job.Dims
	d.sweep.Bind()
	for out.Passes < job.MaxPasses {
		out.Passes++
		var zero uint32
		gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ids[bindParams])
		gl.BufferSubData(gl.SHADER_STORAGE_BUFFER, paramsMaxChangeOffset, 4, unsafe.Pointer(&zero))
		for _, dir := range sweep.Directions {
			for L := 0; L < dims.Levels(); L++ {
				lp := levelFor(dims, dir, L)
				if lp.Rows == 0 {
					continue
				}
				gl.BufferSubData(gl.SHADER_STORAGE_BUFFER, paramsLevelOffset, paramsLevelSize, unsafe.Pointer(&lp))
				gx, gy := workGroups(int(lp.Rows) * dims.Ny)
				if err := d.sweep.RunCompute(gx, gy, 1); err != nil {
					return Output{}, fmt.Errorf("sweep kernel: %w", err)
				}
				gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)
			}
		}
		var bits uint32
		gl.GetBufferSubData(gl.SHADER_STORAGE_BUFFER, paramsMaxChangeOffset, 4, unsafe.Pointer(&bits))
		out.MaxChange = math32.Float32frombits(bits)
		job.Logger.Debug("gpu sweep pass",
			zap.Int("pass", out.Passes),
			zap.Float32("maxChange", out.MaxChange),
		)
		if out.MaxChange <= tol {
			out.Converged = true
			break
		}
	}
	if err := glError("sweep"); err != nil {
		return Output{}, err
	}

	out.Values = b.values
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ids[bindValues])
	gl.GetBufferSubData(gl.SHADER_STORAGE_BUFFER, 0, len(out.Values)*4, slicePtr(out.Values))
	return out, glError("readback")
}

func upload(id, binding uint32, data unsafe.Pointer, size int) {
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, id)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, size, data, gl.DYNAMIC_COPY)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, binding, id)
}

func slicePtr[T any](s []T) unsafe.Pointer {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Pointer(&s[0])
}

func glError(stage string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("glsdf: %s: GL error 0x%x", stage, code)
	}
	return nil
}
