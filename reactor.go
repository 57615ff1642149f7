package reactor

import (
	"sync"
	"sync/atomic"
	"time"
)

// ShowOptions configures a single show* registration: which strand
// serializes the callback, and which authorization token gates it.
// Both are optional.
type ShowOptions struct {
	Strand        *Strand
	Authorization *Authorization
}

// Reactor is a single event-demultiplexing core: one OS poller, one
// Chronology, one InterestSet, one registry, driven by one or more
// driver goroutines calling [Reactor.Run] or [Reactor.Poll].
//
// Shared state (InterestSet, registry) is guarded by mu; the Chronology
// guards itself. At most one of those mutexes is ever held at a time,
// and callbacks are always invoked with none of them held -- the same
// locking discipline used throughout this runtime.
type Reactor struct {
	cfg ReactorConfig

	mu        sync.Mutex
	interests *InterestSet
	registry  *registry

	chron *Chronology
	poll  poller
	wake  wakeupSource

	deferredMu    sync.Mutex
	deferred      *deferredQueue
	deferredEmpty atomic.Bool

	state *fastState

	// activeWaiters counts goroutines currently parked in Run/Poll's
	// blocking wait. Nothing reads it to decide how many interrupts to
	// send: Stop sends a single signal via interruptAll.
	activeWaiters atomic.Int32

	// waitMu serializes the actual OS wait call and the translation of
	// its results into eventsOut. Under dynamic load balancing, a Pool
	// may drive one Reactor from several goroutines at once; the
	// underlying poller's event buffer and eventsOut are not safe for
	// concurrent use, so only one goroutine at a time may be inside the
	// wait-and-translate section of Poll. Dispatch itself still happens
	// outside this mutex, so other driver threads are never blocked
	// waiting for a slow callback -- only for the OS wait call itself.
	waitMu    sync.Mutex
	eventsOut *EventSet

	metrics *Metrics
}

// NewReactor constructs a Reactor and its platform poller.
func NewReactor(opts ...ReactorOption) (*Reactor, error) {
	cfg := resolveReactorOptions(opts)

	p, err := newPoller(cfg.MaxEventsPerWait)
	if err != nil {
		return nil, err
	}
	wake, err := newWakeupSource(p)
	if err != nil {
		_ = p.close()
		return nil, err
	}
	if wake.handle().Valid() {
		if err := p.add(wake.handle(), Readable); err != nil {
			_ = wake.close()
			_ = p.close()
			return nil, err
		}
	}

	r := &Reactor{
		cfg:       cfg,
		interests: NewInterestSet(),
		registry:  newRegistry(),
		chron:     NewChronology(),
		poll:      p,
		wake:      wake,
		deferred:  newDeferredQueue(),
		state:     newFastState(),
		eventsOut: NewEventSet(),
	}
	r.deferredEmpty.Store(true)
	if cfg.EnableMetrics {
		r.metrics = NewMetrics()
	}
	return r, nil
}

// Chronology returns the reactor's timer subsystem, for creating and
// scheduling timers.
func (r *Reactor) Chronology() *Chronology { return r.chron }

// Metrics returns the reactor's metrics collector, or nil if
// [WithMetrics] was not enabled at construction.
func (r *Reactor) Metrics() *Metrics { return r.metrics }

// Execute enqueues fn to run on a driver goroutine during the next poll
// iteration's deferred-function drain, waking a blocked waiter if the
// reactor is running.
func (r *Reactor) Execute(fn func()) {
	r.deferredMu.Lock()
	r.deferred.Push(fn)
	r.deferredEmpty.Store(false)
	r.deferredMu.Unlock()
	_ = r.wake.signal()
}

// Attach registers sock with the reactor's InterestSet with no interest
// yet shown. Fails with [Invalid] if already attached.
func (r *Reactor) Attach(sock Socket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attachLocked(sock)
}

func (r *Reactor) attachLocked(sock Socket) error {
	h := sock.Handle()
	if err := r.interests.Attach(h); err != nil {
		return err
	}
	r.registry.add(&registryEntry{handle: h, sock: sock})
	return nil
}

// showKind distinguishes which callback slot a show*/hide* call targets.
type showKind uint8

const (
	showReadable showKind = iota
	showWritable
	showErrors
)

func (r *Reactor) show(sock Socket, kind showKind, opts ShowOptions, cb func(Event)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := sock.Handle()
	if !r.interests.Contains(h) {
		if !r.cfg.AutoAttach {
			return New(Invalid, "handle not attached")
		}
		if err := r.attachLocked(sock); err != nil {
			return err
		}
	}

	entry, ok := r.registry.get(h)
	if !ok {
		entry = &registryEntry{handle: h, sock: sock}
		r.registry.add(entry)
	}
	entry.strand = opts.Strand
	entry.auth = opts.Authorization
	switch kind {
	case showReadable:
		entry.readable = cb
		_ = r.interests.ShowReadable(h)
	case showWritable:
		entry.writable = cb
		_ = r.interests.ShowWritable(h)
	case showErrors:
		entry.errorCB = cb
	}
	if kind != showErrors {
		_ = r.interests.SetTrigger(h, r.cfg.DefaultTrigger)
		_ = r.interests.SetShot(h, r.cfg.DefaultShot)
		i, _ := r.interests.Get(h)
		return r.syncInterestLocked(i)
	}
	return nil
}

func (r *Reactor) hide(sock Socket, kind showKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := sock.Handle()
	if !r.interests.Contains(h) {
		return New(Invalid, "handle not attached")
	}
	switch kind {
	case showReadable:
		_ = r.interests.HideReadable(h)
	case showWritable:
		_ = r.interests.HideWritable(h)
	case showErrors:
		if entry, ok := r.registry.get(h); ok {
			entry.errorCB = nil
		}
	}
	i, _ := r.interests.Get(h)
	if err := r.syncInterestLocked(i); err != nil {
		return err
	}
	if r.cfg.AutoDetach && i.Empty() {
		return r.detachLocked(sock, nil)
	}
	return nil
}

// syncInterestLocked pushes i's want-flags to the OS poller, adding a new
// registration if this is the handle's first non-empty interest.
func (r *Reactor) syncInterestLocked(i Interest) error {
	var bits State
	if i.WantReadable {
		bits |= Readable
	}
	if i.WantWritable {
		bits |= Writable
	}

	entry, ok := r.registry.get(i.Handle)
	registered := ok && entry.polledBits != 0
	if bits == 0 {
		if registered {
			entry.polledBits = 0
			return r.poll.remove(i.Handle)
		}
		return nil
	}
	if !registered {
		if entry != nil {
			entry.polledBits = bits
		}
		return r.poll.add(i.Handle, bits)
	}
	entry.polledBits = bits
	return r.poll.modify(i.Handle, bits)
}

// ShowReadable arms the readable interest for sock's handle.
func (r *Reactor) ShowReadable(sock Socket, opts ShowOptions, cb func(Event)) error {
	return r.show(sock, showReadable, opts, cb)
}

// ShowWritable arms the writable interest for sock's handle.
func (r *Reactor) ShowWritable(sock Socket, opts ShowOptions, cb func(Event)) error {
	return r.show(sock, showWritable, opts, cb)
}

// ShowError installs the error callback for sock's handle. Error
// delivery has no separate OS-level interest; it rides on whichever
// direction is already armed.
func (r *Reactor) ShowError(sock Socket, opts ShowOptions, cb func(Event)) error {
	return r.show(sock, showErrors, opts, cb)
}

// HideReadable clears the readable interest for sock's handle.
func (r *Reactor) HideReadable(sock Socket) error { return r.hide(sock, showReadable) }

// HideWritable clears the writable interest for sock's handle.
func (r *Reactor) HideWritable(sock Socket) error { return r.hide(sock, showWritable) }

// HideError removes the error callback for sock's handle.
func (r *Reactor) HideError(sock Socket) error { return r.hide(sock, showErrors) }

// Detach asynchronously removes sock from the reactor. If a dispatch for
// this handle is currently in flight on another driver goroutine, the
// registry entry is marked detaching and the actual removal -- including
// onDetached -- happens when that dispatch finishes instead of inline.
func (r *Reactor) Detach(sock Socket, onDetached func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detachLocked(sock, onDetached)
}

func (r *Reactor) detachLocked(sock Socket, onDetached func()) error {
	h := sock.Handle()
	entry, ok := r.registry.get(h)
	if !ok {
		return New(Invalid, "handle not attached")
	}
	_ = r.poll.remove(h)
	_ = r.interests.Detach(h)

	if entry.inFlight > 0 {
		entry.detaching = true
		entry.onDetached = onDetached
		return nil
	}
	r.registry.remove(h)
	if onDetached != nil {
		onDetached()
	}
	return nil
}

// dispatchOne runs every callback whose direction is set in ev.Bits,
// respecting in-flight refcounting so a concurrent Detach cannot free
// the registry entry out from under a callback. A coalesced event (e.g.
// a socket armed for both directions becoming simultaneously readable
// and writable) runs both the readable and the writable callback, not
// just the first match.
func (r *Reactor) dispatchOne(ev Event) {
	r.mu.Lock()
	entry, ok := r.registry.get(ev.Handle)
	if !ok {
		r.mu.Unlock()
		return
	}
	invocations := entry.callbacksFor(ev.Bits)
	if len(invocations) == 0 {
		r.mu.Unlock()
		return
	}
	entry.inFlight++
	strand := entry.strand
	auth := entry.auth
	sock := entry.sock
	shot := Persistent
	if i, ok := r.interests.Get(ev.Handle); ok {
		shot = i.Shot
	}
	r.mu.Unlock()

	if sock != nil {
		sock.Retain()
	}
	var ranBits State
	if auth == nil || !auth.Revoked() {
		for _, inv := range invocations {
			start := time.Now()
			strand.Run(func() {
				defer func() {
					if rec := recover(); rec != nil {
						r.metrics.recordPanic()
						logPanic("reactor", rec)
					}
				}()
				inv.cb(ev)
			})
			r.metrics.recordDispatch(time.Since(start))
			ranBits |= inv.clearBits
		}
	}
	if sock != nil {
		sock.Release()
	}

	r.mu.Lock()
	entry.inFlight--
	finishDetach := entry.inFlight == 0 && entry.detaching
	var onDetached func()
	if finishDetach {
		r.registry.remove(ev.Handle)
		onDetached = entry.onDetached
	} else if shot == OneShot {
		// Only the directions whose callback actually ran lose their
		// one-shot arming; a direction skipped this round (a revoked
		// Authorization, or simply no event for it) stays armed.
		if ranBits&Readable != 0 {
			_ = r.interests.HideReadable(ev.Handle)
		}
		if ranBits&Writable != 0 {
			_ = r.interests.HideWritable(ev.Handle)
		}
		if i, ok := r.interests.Get(ev.Handle); ok {
			_ = r.syncInterestLocked(i)
		}
	}
	r.mu.Unlock()

	if onDetached != nil {
		onDetached()
	}
}

// Run drives the reactor until Stop is called (or stop is closed),
// looping: drain deferred functions, compute the poll timeout from the
// nearest timer deadline, OS-poll, dispatch events in ascending-handle
// order, then announce due timers.
func (r *Reactor) Run(stop <-chan struct{}) error {
	if !r.state.TransitionAny([]RunState{StateStopped}, StateRunning) {
		return New(Invalid, "reactor is already running")
	}
	for {
		select {
		case <-stop:
			r.state.Store(StateStopped)
			return nil
		default:
		}
		if r.state.Load() != StateRunning {
			r.state.Store(StateStopped)
			return nil
		}
		if _, err := r.Poll(); err != nil {
			r.state.Store(StateStopped)
			return err
		}
	}
}

// Poll runs the dispatch loop described on [Run]: drain deferred
// functions, OS-poll, dispatch events, announce due timers. It repeats
// this internally for up to cfg.MaxCyclesPerWait cycles before
// returning, so that work which becomes ready as a direct result of
// this call's own dispatch (a still-ready level-triggered descriptor,
// freshly-queued deferred functions, a timer armed from inside another
// timer's callback) is absorbed without waiting for the caller to
// invoke Poll again. Only the first cycle blocks for up to
// MaxPollTimeout (clamped to the nearest timer deadline); every
// subsequent cycle in the same call polls with a zero timeout, and the
// loop stops early once a cycle dispatches nothing, fires no timers,
// and runs no deferred functions. Returns the total events dispatched
// across every cycle.
func (r *Reactor) Poll() (int, error) {
	cycles := r.cfg.MaxCyclesPerWait
	if cycles < 1 {
		cycles = 1
	}

	var totalDispatched, totalTimersFired, totalDeferredRun int
	for cycle := 0; cycle < cycles; cycle++ {
		r.deferredMu.Lock()
		deferredRun := r.deferred.DrainAll()
		r.deferredEmpty.Store(r.deferred.Empty())
		r.deferredMu.Unlock()
		totalDeferredRun += deferredRun

		timeout := time.Duration(0)
		if cycle == 0 {
			timeout = r.cfg.MaxPollTimeout
		}
		if dl, ok := r.chron.EarliestDeadline(); ok {
			if d := time.Until(dl); d < timeout {
				if d < 0 {
					d = 0
				}
				timeout = d
			}
		}

		r.activeWaiters.Add(1)
		r.waitMu.Lock()
		r.eventsOut.Reset()
		_, err := r.poll.wait(timeout, r.eventsOut)
		var events []Event
		if err == nil {
			events = make([]Event, 0, r.eventsOut.Len())
			r.eventsOut.Range(func(ev Event) bool {
				events = append(events, ev)
				return true
			})
		}
		r.waitMu.Unlock()
		r.activeWaiters.Add(-1)
		if err != nil {
			logPollError(err)
			r.metrics.recordPoll(totalDispatched, totalTimersFired, totalDeferredRun)
			return totalDispatched, err
		}

		dispatched := 0
		for _, ev := range events {
			if r.wake.handle().Valid() && ev.Handle == r.wake.handle() {
				r.wake.drain()
				continue
			}
			r.dispatchOne(ev)
			dispatched++
		}
		totalDispatched += dispatched

		_, timersFired := r.chron.Announce(false, time.Now())
		totalTimersFired += timersFired

		if dispatched == 0 && timersFired == 0 && deferredRun == 0 {
			break
		}
	}

	r.metrics.recordPoll(totalDispatched, totalTimersFired, totalDeferredRun)
	return totalDispatched, nil
}

// Stop transitions the reactor out of Running, waking every driver
// goroutine currently blocked in Poll's OS wait so it observes the new
// state promptly.
func (r *Reactor) Stop() {
	if !r.state.TransitionAny([]RunState{StateRunning}, StateStopping) {
		return
	}
	r.interruptAll()
	r.state.Store(StateStopped)
}

// Restart moves a Stopping reactor to Stopped, the state from which Run
// may be called again. It is a no-op in any other state; since Stop
// itself finishes at Stopped, a reactor stopped by Stop needs no Restart.
func (r *Reactor) Restart() {
	r.state.TransitionAny([]RunState{StateStopping}, StateStopped)
}

// InterruptOne wakes exactly one driver goroutine currently parked in
// the OS wait, without changing the run state.
func (r *Reactor) InterruptOne() error {
	return r.wake.signal()
}

// interruptAll wakes every currently-parked waiter. A single wakeup
// write is visible to every driver goroutine blocked on the shared
// poller, so one signal suffices regardless of how many waiters are
// currently parked; wake.signal's own pending flag coalesces redundant
// calls until the next drain.
func (r *Reactor) interruptAll() {
	_ = r.wake.signal()
}

// Close releases the reactor's OS poller and wakeup resources. The
// reactor must not be running.
func (r *Reactor) Close() error {
	werr := r.wake.close()
	perr := r.poll.close()
	if werr != nil {
		return werr
	}
	return perr
}
