package molgeo

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/molgeo/internal/bvh"
	"github.com/hupe1980/molgeo/internal/connectivity"
	"github.com/hupe1980/molgeo/internal/match"
	"github.com/hupe1980/molgeo/internal/parallel"
	"github.com/hupe1980/molgeo/internal/reorder"
	"github.com/hupe1980/molgeo/internal/resource"
	"github.com/hupe1980/molgeo/internal/simd"
)

// MaxNeighborsLimit is the exclusive upper bound of the maxNeighbors
// argument of Match.
const MaxNeighborsLimit = match.MaxNeighborsLimit

// Engine runs reorder, match and connectivity calls on a shared worker
// pool. All methods are safe for concurrent use. Every call is
// all-or-nothing and keeps no state between calls.
type Engine struct {
	cfg     Config
	pool    *parallel.Pool
	sorter  *reorder.Sorter
	matcher *match.Matcher
	bonds   *connectivity.Builder
	scratch *resource.Controller
	logger  *Logger
	metrics MetricsCollector
	closed  atomic.Bool
}

// New creates an Engine.
func New(optFns ...Option) (*Engine, error) {
	o := applyOptions(optFns)
	if err := o.config.Validate(); err != nil {
		return nil, err
	}

	pool := parallel.NewPool(o.config.Workers)
	e := &Engine{
		cfg:     o.config,
		pool:    pool,
		sorter:  reorder.NewSorter(o.config.reorderConfig(), pool),
		matcher: match.NewMatcher(pool),
		bonds:   connectivity.NewBuilder(pool, o.config.BondChunkSize),
		scratch: resource.NewController(resource.Config{MemoryLimitBytes: o.config.ScratchMemoryLimit}),
		logger:  o.logger,
		metrics: o.metricsCollector,
	}

	e.logger.Debug("engine started",
		"workers", pool.Workers(),
		"simd", simd.ActiveISA().String(),
		"reorder_policy", o.config.ReorderPolicy.String(),
	)
	return e, nil
}

// Config returns the configuration the engine runs with.
func (e *Engine) Config() Config { return e.cfg }

// Workers returns the size of the worker pool.
func (e *Engine) Workers() int { return e.pool.Workers() }

// PeakScratchMemory returns the highest scratch memory, in bytes, held by
// in-flight calls at once.
func (e *Engine) PeakScratchMemory() int64 { return e.scratch.PeakMemoryUsage() }

// Close stops the worker pool. Calls after Close fail with ErrClosed.
// Close is idempotent.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.pool.Close()
	e.logger.Debug("engine closed")
	return nil
}

// acquire reserves scratch memory for one call and returns its release.
func (e *Engine) acquire(bytes int64) (func(), error) {
	if err := e.scratch.AcquireMemory(bytes); err != nil {
		return nil, err
	}
	return func() { e.scratch.ReleaseMemory(bytes) }, nil
}

// Reorder returns a permutation that places atoms close in space close in
// order: perm[original] = new.
func (e *Engine) Reorder(positions []Position) (Permutation, error) {
	start := time.Now()
	grid := e.sorter.UsesGrid(len(positions))

	perm, err := e.reorder(positions)

	e.logger.LogReorder(len(positions), grid, time.Since(start), err)
	e.metrics.RecordReorder(len(positions), grid, time.Since(start), err)
	return perm, err
}

func (e *Engine) reorder(positions []Position) (Permutation, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	xs, ys, zs, err := positionColumns(positions)
	if err != nil {
		return nil, err
	}

	release, err := e.acquire(reorder.ScratchBytes(len(positions)))
	if err != nil {
		return nil, err
	}
	defer release()

	order := e.sorter.Sort(xs, ys, zs)
	perm := make(Permutation, len(order))
	for newIdx, orig := range order {
		perm[orig] = uint32(newIdx)
	}
	return perm, nil
}

// ReorderAtoms is Reorder over the positions of atoms.
func (e *Engine) ReorderAtoms(atoms []Atom) (Permutation, error) {
	positions := make([]Position, len(atoms))
	for i := range atoms {
		positions[i] = atoms[i].Position
	}
	return e.Reorder(positions)
}

// Match returns, for every lhs atom, the rhs atoms within the cutoff,
// sorted by ascending distance and capped at maxNeighbors entries. A nil
// rhs, or rhs sharing lhs's backing array and length, matches lhs against
// itself, and no atom lists itself.
//
// maxNeighbors must be positive. Values of MaxNeighborsLimit or more
// panic.
func (e *Engine) Match(lhs, rhs []Atom, cutoff Cutoff, maxNeighbors int) (*MatchResult, error) {
	if maxNeighbors >= MaxNeighborsLimit {
		panic(fmt.Sprintf("molgeo: maxNeighbors %d must be below %d", maxNeighbors, MaxNeighborsLimit))
	}

	start := time.Now()
	res, err := e.match(lhs, rhs, cutoff, maxNeighbors)

	rhsLen := len(rhs)
	if rhs == nil {
		rhsLen = len(lhs)
	}
	pairs, truncated := 0, 0
	if res != nil {
		pairs, truncated = res.Pairs(), int(res.Truncated.GetCardinality())
	}
	e.logger.LogMatch(len(lhs), rhsLen, maxNeighbors, pairs, truncated, time.Since(start), err)
	e.metrics.RecordMatch(len(lhs), rhsLen, pairs, truncated, time.Since(start), err)
	return res, err
}

func (e *Engine) match(lhs, rhs []Atom, cutoff Cutoff, maxNeighbors int) (*MatchResult, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if maxNeighbors <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxNeighbors, maxNeighbors)
	}
	if err := cutoff.Validate(); err != nil {
		return nil, err
	}

	self := isSelfMatch(lhs, rhs)
	lc, err := atomCloud(lhs, cutoff)
	if err != nil {
		return nil, err
	}
	rc := lc
	if !self {
		if rc, err = atomCloud(rhs, cutoff); err != nil {
			return nil, err
		}
	}

	if len(lhs) == 0 || len(rc.xs) == 0 {
		return newMatchResult(&match.Result{Ranges: make([]match.Range, len(lhs))}), nil
	}

	bytes := matchScratchBytes(len(lhs), maxNeighbors, e.pool.Workers())
	if !self {
		bytes += matchScratchBytes(len(rc.xs), 0, 0)
	}
	release, err := e.acquire(bytes)
	if err != nil {
		return nil, err
	}
	defer release()

	var lorder, rorder []uint32
	if self {
		lorder = e.sorter.Sort(lc.xs, lc.ys, lc.zs)
		rorder = lorder
	} else {
		g := e.pool.Group()
		g.Go(func() { rorder = e.sorter.Sort(rc.xs, rc.ys, rc.zs) })
		lorder = e.sorter.Sort(lc.xs, lc.ys, lc.zs)
		g.Wait()
	}

	lop := bvh.Build(lc.xs, lc.ys, lc.zs, lc.rs, lorder, e.pool)
	rop := lop
	if !self {
		rop = bvh.Build(rc.xs, rc.ys, rc.zs, rc.rs, rorder, e.pool)
	}

	res := e.matcher.Run(match.Request{
		LHS:          lop,
		RHS:          rop,
		LHSOrder:     lorder,
		RHSOrder:     rorder,
		Self:         self,
		MaxNeighbors: maxNeighbors,
	})
	return newMatchResult(res), nil
}

// isSelfMatch reports whether rhs is absent or the same atoms as lhs.
func isSelfMatch(lhs, rhs []Atom) bool {
	if rhs == nil {
		return true
	}
	return len(lhs) > 0 && len(lhs) == len(rhs) && &lhs[0] == &rhs[0]
}

// matchScratchBytes estimates the scratch memory of reordering and
// indexing n atoms, plus the slot buffers of workers match tasks.
func matchScratchBytes(n, maxNeighbors, workers int) int64 {
	padded := int64(bvh.PaddedLen(n))
	operand := padded*4*4 + padded/bvh.GroupAtoms*4*4*2
	slots := int64(workers) * bvh.SuperAtoms * int64(maxNeighbors+1) * 8
	return reorder.ScratchBytes(n) + operand + slots
}

// BuildConnectivityMap returns the bonded neighbors of every atom.
//
// An invalid bond fails the call with an *ErrInvalidBond wrapping
// ErrBondOutOfRange or ErrSelfBond.
func (e *Engine) BuildConnectivityMap(atomCount int, bonds []Bond) (*ConnectivityMap, error) {
	start := time.Now()
	cm, err := e.buildConnectivityMap(atomCount, bonds)

	overflowed := 0
	if cm != nil {
		overflowed = int(cm.Overflowed().GetCardinality())
	}
	e.logger.LogConnectivity(atomCount, len(bonds), overflowed, time.Since(start), err)
	e.metrics.RecordConnectivity(atomCount, len(bonds), overflowed, time.Since(start), err)
	return cm, err
}

func (e *Engine) buildConnectivityMap(atomCount int, bonds []Bond) (*ConnectivityMap, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if atomCount < 0 {
		return nil, fmt.Errorf("molgeo: atom count %d must not be negative", atomCount)
	}

	release, err := e.acquire(int64(atomCount) * 4)
	if err != nil {
		return nil, err
	}
	defer release()

	sets, err := e.bonds.Build(atomCount, bonds)
	if err != nil {
		return nil, translateError(err)
	}
	return &ConnectivityMap{Sets: sets}, nil
}

// cloud is a set of atoms in column form.
type cloud struct {
	xs, ys, zs, rs []float32
}

func positionColumns(positions []Position) (xs, ys, zs []float32, err error) {
	n := len(positions)
	buf := make([]float32, 3*n)
	xs, ys, zs = buf[:n:n], buf[n:2*n:2*n], buf[2*n:]
	for i, p := range positions {
		if !p.Finite() {
			return nil, nil, nil, &ErrInvalidAtom{Index: i, cause: ErrInvalidPosition}
		}
		xs[i], ys[i], zs[i] = p[0], p[1], p[2]
	}
	return xs, ys, zs, nil
}

func atomCloud(atoms []Atom, cutoff Cutoff) (cloud, error) {
	n := len(atoms)
	buf := make([]float32, 4*n)
	c := cloud{xs: buf[:n:n], ys: buf[n : 2*n : 2*n], zs: buf[2*n : 3*n : 3*n], rs: buf[3*n:]}
	for i := range atoms {
		a := &atoms[i]
		if !a.Position.Finite() {
			return cloud{}, &ErrInvalidAtom{Index: i, cause: ErrInvalidPosition}
		}
		r, err := cutoff.Radius(a.Element)
		if err != nil {
			return cloud{}, &ErrInvalidAtom{Index: i, cause: err}
		}
		c.xs[i], c.ys[i], c.zs[i], c.rs[i] = a.Position[0], a.Position[1], a.Position[2], r
	}
	return c, nil
}
