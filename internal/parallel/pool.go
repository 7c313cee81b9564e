// Package parallel provides the fixed-size worker pool that runs every
// data-parallel task of a reorder, match or connectivity call.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool manages a fixed set of goroutines executing submitted closures.
//
// Tasks are pure functions over disjoint slices of a shared buffer; the
// pool itself never inspects them.
type Pool struct {
	numWorkers int
	workCh     chan func()
	wg         sync.WaitGroup
	closed     atomic.Bool
	submitMu   sync.RWMutex
}

// NewPool creates a pool with numWorkers goroutines.
// numWorkers <= 0 selects runtime.GOMAXPROCS(0).
func NewPool(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		numWorkers: numWorkers,
		workCh:     make(chan func(), numWorkers*2), // 2x buffer for pipelining
	}

	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.workCh {
		task()
	}
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.numWorkers
}

// trySubmit enqueues task without blocking. It reports false when the
// queue is full or the pool is closed; the caller then runs task inline.
func (p *Pool) trySubmit(task func()) bool {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.closed.Load() {
		return false
	}

	select {
	case p.workCh <- task:
		return true
	default:
		return false
	}
}

// Run executes fn(0) .. fn(n-1) on the pool and returns when all are done.
func (p *Pool) Run(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if n == 1 {
		fn(0)
		return
	}

	g := p.Group()
	for i := 1; i < n; i++ {
		g.Go(func() { fn(i) })
	}
	fn(0)
	g.Wait()
}

// Close stops the workers after the queue drains. It is idempotent.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	p.submitMu.Lock()
	close(p.workCh)
	p.submitMu.Unlock()

	p.wg.Wait()
}
