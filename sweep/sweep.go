// Package sweep propagates distances from a set of seeded grid cells to the
// rest of a regular grid by fast sweeping a first order discretization of
// the Eikonal equation |grad u| = 1.
//
// Each of the 8 sweep directions is processed as a sequence of hyperplanes
// i'+j'+k' = L in the direction's reflected coordinates. Cells of one
// hyperplane are never axis neighbours of each other, so they are relaxed in
// parallel and in place while producing exactly the same values as a
// sequential Gauss-Seidel sweep. Results do not depend on the worker count.
package sweep

import (
	"github.com/chewxy/math32"
	"github.com/meet-brad-ch/SDFGenFast/internal/parallel"
	"go.uber.org/zap"
)

// Sentinel is the distance of cells no seed has reached.
const Sentinel = math32.MaxFloat32

const (
	DefaultMaxPasses = 16
	// DefaultTolerance is the convergence threshold relative to the cell size.
	DefaultTolerance = 1e-4
	// DefaultMinParallel is the number of cells in a hyperplane below which it is relaxed inline.
	DefaultMinParallel = 2048
)

// Dims is the grid size. Cell (i,j,k) lives at index i + Nx*(j + Ny*k).
type Dims struct {
	Nx, Ny, Nz int
}

// Len returns the number of cells.
func (d Dims) Len() int { return d.Nx * d.Ny * d.Nz }

// Levels returns the number of hyperplanes per sweep.
func (d Dims) Levels() int { return d.Nx + d.Ny + d.Nz - 2 }

// Config controls convergence. Zero values select the defaults.
type Config struct {
	MaxPasses   int
	Tolerance   float32
	MinParallel int
	Logger      *zap.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.MaxPasses <= 0 {
		cfg.MaxPasses = DefaultMaxPasses
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.MinParallel <= 0 {
		cfg.MinParallel = DefaultMinParallel
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

// Result reports how propagation ended.
type Result struct {
	// Passes is the number of full 8-direction passes run.
	Passes int
	// MaxChange is the largest decrease of any cell in the last pass.
	MaxChange float32
	// Converged is false when the pass cap was reached first.
	Converged bool
}

// Directions lists the sweep orderings as axis signs, x varying fastest.
var Directions = [8][3]int{
	{+1, +1, +1}, {-1, +1, +1}, {+1, -1, +1}, {-1, -1, +1},
	{+1, +1, -1}, {-1, +1, -1}, {+1, -1, -1}, {-1, -1, -1},
}

// Propagate relaxes every cell not marked frozen until the field converges
// or cfg.MaxPasses is reached. vals holds signed distances with Sentinel in
// cells not yet reached. Distances only decrease; a relaxed cell takes the
// sign of its smallest magnitude neighbour. h is the cell size.
func Propagate(vals []float32, frozen []bool, dims Dims, h float32, cfg Config, pool *parallel.Pool) Result {
	cfg = cfg.withDefaults()
	if len(vals) != dims.Len() || len(frozen) != dims.Len() {
		panic("sweep: buffer length does not match grid dimensions")
	}
	var res Result
	tol := cfg.Tolerance * h
	maxPerChunk := make([]float32, pool.Workers())
	for res.Passes < cfg.MaxPasses {
		res.Passes++
		res.MaxChange = 0
		for _, dir := range Directions {
			for L := 0; L < dims.Levels(); L++ {
				change := sweepLevel(vals, frozen, dims, h, dir, L, cfg.MinParallel, pool, maxPerChunk)
				res.MaxChange = math32.Max(res.MaxChange, change)
			}
		}
		cfg.Logger.Debug("sweep pass",
			zap.Int("pass", res.Passes),
			zap.Float32("maxChange", res.MaxChange),
		)
		if res.MaxChange <= tol {
			res.Converged = true
			break
		}
	}
	return res
}

// LevelRows returns the range of reflected z rows k' intersecting hyperplane L.
func (d Dims) LevelRows(L int) (kmin, kmax int) {
	kmin = L - (d.Nx - 1) - (d.Ny - 1)
	if kmin < 0 {
		kmin = 0
	}
	kmax = L
	if kmax > d.Nz-1 {
		kmax = d.Nz - 1
	}
	return kmin, kmax
}

func sweepLevel(vals []float32, frozen []bool, dims Dims, h float32, dir [3]int, L, minParallel int, pool *parallel.Pool, maxPerChunk []float32) float32 {
	kmin, kmax := dims.LevelRows(L)
	rows := kmax - kmin + 1
	if rows <= 0 {
		return 0
	}
	for i := range maxPerChunk {
		maxPerChunk[i] = 0
	}
	minRows := minParallel / dims.Ny
	pool.For(rows, minRows, func(chunk, lo, hi int) {
		var maxChange float32
		for kr := kmin + lo; kr < kmin+hi; kr++ {
			jmin := L - kr - (dims.Nx - 1)
			if jmin < 0 {
				jmin = 0
			}
			jmax := L - kr
			if jmax > dims.Ny-1 {
				jmax = dims.Ny - 1
			}
			k := reflect(kr, dims.Nz, dir[2])
			for jr := jmin; jr <= jmax; jr++ {
				j := reflect(jr, dims.Ny, dir[1])
				i := reflect(L-kr-jr, dims.Nx, dir[0])
				idx := i + dims.Nx*(j+dims.Ny*k)
				if frozen[idx] {
					continue
				}
				if c := relax(vals, dims, idx, i, j, k, h); c > maxChange {
					maxChange = c
				}
			}
		}
		maxPerChunk[chunk] = maxChange
	})
	var maxChange float32
	for _, c := range maxPerChunk {
		maxChange = math32.Max(maxChange, c)
	}
	return maxChange
}

func reflect(r, n, sign int) int {
	if sign > 0 {
		return r
	}
	return n - 1 - r
}

// relax performs one Eikonal update of cell idx and returns how much its
// magnitude decreased. Cells reached for the first time report +Inf.
func relax(vals []float32, dims Dims, idx, i, j, k int, h float32) float32 {
	var (
		best    float32 = Sentinel
		bestNeg bool
		axis    [3]float32
	)
	// consider scans neighbours in x-,x+,y-,y+,z-,z+ order keeping the first strict minimum.
	consider := func(ax int, v float32) {
		a := math32.Abs(v)
		if a < axis[ax] {
			axis[ax] = a
		}
		if a < best {
			best = a
			bestNeg = math32.Signbit(v)
		}
	}
	axis = [3]float32{Sentinel, Sentinel, Sentinel}
	nx, nxy := dims.Nx, dims.Nx*dims.Ny
	if i > 0 {
		consider(0, vals[idx-1])
	}
	if i < dims.Nx-1 {
		consider(0, vals[idx+1])
	}
	if j > 0 {
		consider(1, vals[idx-nx])
	}
	if j < dims.Ny-1 {
		consider(1, vals[idx+nx])
	}
	if k > 0 {
		consider(2, vals[idx-nxy])
	}
	if k < dims.Nz-1 {
		consider(2, vals[idx+nxy])
	}
	if best >= Sentinel {
		return 0
	}
	u := Update(axis[0], axis[1], axis[2], h)
	cur := math32.Abs(vals[idx])
	if !(u < cur) {
		return 0
	}
	if bestNeg {
		vals[idx] = -u
	} else {
		vals[idx] = u
	}
	if cur >= Sentinel {
		return math32.Inf(1)
	}
	return cur - u
}

// Update solves the first order upwind Eikonal discretization for a cell
// whose smallest neighbour magnitudes along each axis are a, b and c.
// It uses the single axis solution while it does not exceed the second
// smallest value, then the two axis root, then the three axis root when it
// is real. Neighbour values equal to Sentinel are never squared.
//
// The GLSL sweep kernel implements the same operation sequence.
func Update(a, b, c, h float32) float32 {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		a, b = b, a
	}
	u := a + h
	if u <= b {
		return u
	}
	d := a - b
	u = 0.5 * (a + b + math32.Sqrt(2*h*h-d*d))
	if u <= c {
		return u
	}
	s := a + b + c
	disc := s*s - 3*(a*a+b*b+c*c-h*h)
	if disc < 0 {
		return u
	}
	return (s + math32.Sqrt(disc)) / 3
}
