// Package parallel provides the fixed size worker pool used by the CPU backend.
package parallel

import (
	"runtime"
	"sync"
)

type task struct {
	fn     func(chunk, lo, hi int)
	chunk  int
	lo, hi int
	wg     *sync.WaitGroup
}

// Pool runs data-parallel loops over a fixed set of goroutines.
// For calls must not be made concurrently.
type Pool struct {
	workers int
	tasks   chan task
	closed  bool
	wg      sync.WaitGroup
}

// New starts a pool of the given size. A size of zero or less uses one
// worker per available hardware thread.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Pool{
		workers: workers,
		tasks:   make(chan task, workers),
	}
	// The goroutine calling For runs the first chunk itself.
	for i := 1; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	for t := range p.tasks {
		t.fn(t.chunk, t.lo, t.hi)
		t.wg.Done()
	}
}

// Workers returns the number of chunks a For call may be split into.
func (p *Pool) Workers() int { return p.workers }

// For splits [0,n) into at most Workers contiguous chunks of at least
// minChunk elements and calls fn for each. It returns once every chunk is
// done, which makes each call a barrier. Chunk numbers are in [0,Workers).
func (p *Pool) For(n, minChunk int, fn func(chunk, lo, hi int)) {
	if n <= 0 {
		return
	}
	if minChunk < 1 {
		minChunk = 1
	}
	chunks := (n + minChunk - 1) / minChunk
	if chunks > p.workers {
		chunks = p.workers
	}
	if chunks <= 1 || p.closed {
		fn(0, 0, n)
		return
	}
	size := n / chunks
	rem := n % chunks
	p.wg.Add(chunks - 1)
	lo := 0
	var first [2]int
	for c := 0; c < chunks; c++ {
		hi := lo + size
		if c < rem {
			hi++
		}
		if c == 0 {
			first = [2]int{lo, hi}
		} else {
			p.tasks <- task{fn: fn, chunk: c, lo: lo, hi: hi, wg: &p.wg}
		}
		lo = hi
	}
	fn(0, first[0], first[1])
	p.wg.Wait()
}

// Close stops the worker goroutines. Subsequent For calls run inline.
func (p *Pool) Close() {
	if p.closed {
		return
	}
	p.closed = true
	close(p.tasks)
}
