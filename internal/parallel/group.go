package parallel

import "sync/atomic"

// Group is a join point for tasks submitted to a Pool.
//
// Go never blocks: when the queue is full the task runs on the calling
// goroutine. Wait executes queued tasks (of any group) while it waits, so
// tasks may themselves fan out and wait without exhausting the workers.
type Group struct {
	pool    *Pool
	pending atomic.Int64
	done    chan struct{}
}

// Group creates a new join group on the pool.
func (p *Pool) Group() *Group {
	g := &Group{
		pool: p,
		done: make(chan struct{}),
	}
	// The owner holds one token until Wait.
	g.pending.Store(1)
	return g
}

// Go schedules task on the pool.
func (g *Group) Go(task func()) {
	g.pending.Add(1)
	run := func() {
		defer g.release()
		task()
	}
	if !g.pool.trySubmit(run) {
		run()
	}
}

func (g *Group) release() {
	if g.pending.Add(-1) == 0 {
		close(g.done)
	}
}

// Wait blocks until every task started with Go has returned.
// It must be called exactly once.
func (g *Group) Wait() {
	g.release()
	for {
		select {
		case <-g.done:
			return
		case task, ok := <-g.pool.workCh:
			if !ok {
				<-g.done
				return
			}
			task()
		}
	}
}
