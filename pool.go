package reactor

import (
	"log"
	"sync"
	"sync/atomic"
)

// ThreadHandle identifies one of a Pool's driver goroutines, returned by
// [Pool.Spawn] and accepted by [Pool.AcquireByThread].
type ThreadHandle int32

// driverThread is one goroutine calling a reactor's Poll in a loop, plus the
// atomic load counter acquisition/release maintain for it.
type driverThread struct {
	handle  ThreadHandle
	reactor *Reactor
	load    atomic.Int64
	stop    chan struct{}
	done    chan struct{}
}

// Pool holds a slice of reactors plus a slice of driver threads, and
// implements the three acquisition strategies for "which reactor should
// own this new socket": by thread handle, by thread index, and
// least-loaded. Under dynamic load balancing every thread drives the
// same single reactor, making least-loaded acquisition trivial; under
// static load balancing each thread drives its own reactor and sockets
// are pinned to whichever reactor acquired them for their lifetime.
type Pool struct {
	cfg PoolConfig

	mu          sync.Mutex
	threads     []*driverThread
	nextHandle  ThreadHandle
	sharedReact *Reactor // non-nil only when cfg.DynamicLoadBalancing

	reservedHandles atomic.Int64

	// diagLimiter bounds how often an overload diagnostic may fire per
	// category, so a sustained overload condition logs once per window
	// instead of once per failed acquisition.
	diagLimiter *CategoryLimiter
}

// NewPool constructs a Pool and spawns cfg.MinThreads driver goroutines,
// each with its own Reactor (static balancing) or all sharing one
// Reactor (dynamic balancing, the default).
func NewPool(opts ...PoolOption) (*Pool, error) {
	cfg := resolvePoolOptions(opts)
	p := &Pool{
		cfg:         cfg,
		diagLimiter: NewCategoryLimiter(),
	}
	if cfg.DynamicLoadBalancing {
		r, err := NewReactor()
		if err != nil {
			return nil, err
		}
		p.sharedReact = r
	}
	for i := 0; i < cfg.MinThreads; i++ {
		if _, err := p.spawnLocked(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Pool) spawnLocked() (*driverThread, error) {
	var r *Reactor
	if p.cfg.DynamicLoadBalancing {
		if p.sharedReact == nil {
			shared, err := NewReactor()
			if err != nil {
				return nil, err
			}
			p.sharedReact = shared
		}
		r = p.sharedReact
	} else {
		var err error
		r, err = NewReactor()
		if err != nil {
			return nil, err
		}
	}
	t := &driverThread{
		handle:  p.nextHandle,
		reactor: r,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	p.nextHandle++
	p.threads = append(p.threads, t)
	go p.driverLoop(t)
	return t, nil
}

// driverLoop repeatedly polls t's reactor until t.stop is closed. Unlike
// [Reactor.Run], this does not take exclusive ownership of the
// reactor's run-state machine, since under dynamic load balancing every
// thread in the pool polls the same shared reactor concurrently --
// exactly the scenario Reactor.waitMu and its wakeup source exist to
// support.
func (p *Pool) driverLoop(t *driverThread) {
	defer close(t.done)
	for {
		select {
		case <-t.stop:
			return
		default:
		}
		if _, err := t.reactor.Poll(); err != nil {
			p.diagLimiter.Allow(DiagPollError)
			return
		}
	}
}

// Spawn adds one more driver thread to the pool, up to MaxThreads,
// returning its handle. Fails with [Invalid] if the pool is already at
// MaxThreads.
func (p *Pool) Spawn() (ThreadHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.threads) >= p.cfg.MaxThreads {
		return 0, New(Invalid, "pool is already at MaxThreads")
	}
	t, err := p.spawnLocked()
	if err != nil {
		return 0, err
	}
	return t.handle, nil
}

// ThreadCount reports the number of currently-spawned driver threads.
func (p *Pool) ThreadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.threads)
}

// AcquireByThread returns the reactor driven by the thread identified by
// handle, incrementing its load by weight. ok is false if no such
// thread exists.
func (p *Pool) AcquireByThread(handle ThreadHandle, weight int64) (*Reactor, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.threads {
		if t.handle == handle {
			t.load.Add(weight)
			return t.reactor, true
		}
	}
	return nil, false
}

// AcquireByIndex returns the reactor driven by the thread at position
// index modulo the current thread count, incrementing its load by
// weight. ok is false if the pool has no threads.
func (p *Pool) AcquireByIndex(index int, weight int64) (*Reactor, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.threads)
	if n == 0 {
		return nil, false
	}
	if index < 0 {
		index = -index
	}
	t := p.threads[index%n]
	t.load.Add(weight)
	return t.reactor, true
}

// AcquireLeastLoaded scans the pool's reactors and returns the one with
// the lowest load counter, incrementing it by weight. If every reactor's
// load already exceeds ThreadLoadFactor and the thread count is below
// MaxThreads, a new thread (and, under static balancing, a new reactor)
// is spawned first and returned directly.
func (p *Pool) AcquireLeastLoaded(weight int64) (*Reactor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.threads) == 0 {
		t, err := p.spawnLocked()
		if err != nil {
			return nil, err
		}
		t.load.Add(weight)
		return t.reactor, nil
	}

	var best *driverThread
	var bestLoad int64
	allOverloaded := true
	for _, t := range p.threads {
		l := t.load.Load()
		if best == nil || l < bestLoad {
			best = t
			bestLoad = l
		}
		if l <= int64(p.cfg.ThreadLoadFactor) {
			allOverloaded = false
		}
	}

	if allOverloaded && len(p.threads) < p.cfg.MaxThreads {
		t, err := p.spawnLocked()
		if err != nil {
			if p.diagLimiter.Allow(DiagSpawnFailed) {
				log.Printf("reactor: pool: failed to spawn a driver thread: %v", err)
			}
			return nil, err
		}
		t.load.Add(weight)
		return t.reactor, nil
	}

	if allOverloaded && p.diagLimiter.Allow(DiagPoolOverloaded) {
		log.Printf("reactor: pool: every reactor is over its load factor and the pool is at MaxThreads (%d)", p.cfg.MaxThreads)
	}
	best.load.Add(weight)
	return best.reactor, nil
}

// Release decrements the load counter of whichever thread drives r by
// weight. If r is driven by more than one thread (dynamic balancing),
// the decrement is applied to the first thread found; load is a
// diagnostic signal for acquisition, not a precise per-thread ledger,
// under dynamic balancing where all threads share one reactor.
func (p *Pool) Release(r *Reactor, weight int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.threads {
		if t.reactor == r {
			t.load.Add(-weight)
			return
		}
	}
}

// AcquireHandleReservation reserves one handle slot against
// MaxConnections, returning false without reserving if the cap would be
// exceeded. MaxConnections of zero means unlimited. Callers must call
// this before opening a socket and [Pool.ReleaseHandleReservation] after
// it closes.
func (p *Pool) AcquireHandleReservation() bool {
	if p.cfg.MaxConnections <= 0 {
		p.reservedHandles.Add(1)
		return true
	}
	for {
		cur := p.reservedHandles.Load()
		if cur >= int64(p.cfg.MaxConnections) {
			return false
		}
		if p.reservedHandles.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// ReleaseHandleReservation releases one handle slot reserved by
// [Pool.AcquireHandleReservation].
func (p *Pool) ReleaseHandleReservation() {
	p.reservedHandles.Add(-1)
}

// Stop signals every driver thread's loop to exit and waits for each to
// do so, interrupting each distinct reactor's blocking poll wait so a
// thread parked there notices promptly rather than waiting out a full
// poll timeout.
func (p *Pool) Stop() {
	p.mu.Lock()
	threads := append([]*driverThread(nil), p.threads...)
	p.mu.Unlock()

	for _, t := range threads {
		close(t.stop)
	}
	seen := make(map[*Reactor]bool, len(threads))
	for _, t := range threads {
		if !seen[t.reactor] {
			_ = t.reactor.InterruptOne()
			seen[t.reactor] = true
		}
	}
	for _, t := range threads {
		<-t.done
	}
}

// Close stops the pool and closes every distinct reactor's OS resources.
func (p *Pool) Close() error {
	p.Stop()

	p.mu.Lock()
	threads := p.threads
	p.mu.Unlock()

	seen := make(map[*Reactor]bool, len(threads))
	var firstErr error
	for _, t := range threads {
		if seen[t.reactor] {
			continue
		}
		seen[t.reactor] = true
		if err := t.reactor.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
