package reactor

// registryEntry holds everything the Reactor needs to dispatch and
// eventually detach one handle: the readiness callback, its strand and
// authorization, the socket (for lifetime extension), and detach
// bookkeeping.
//
// Concurrency with detach: inFlight counts dispatches currently
// executing this entry's callback. detach sets detaching and,
// if inFlight is zero, completes immediately; otherwise the last
// dispatch to finish (inFlight reaching zero while detaching is set)
// completes the detach instead.
type registryEntry struct {
	handle Handle
	sock   Socket

	readable func(Event)
	writable func(Event)
	errorCB  func(Event)
	strand   *Strand
	auth     *Authorization

	inFlight   int
	detaching  bool
	onDetached func()

	// polledBits is the State mask currently registered with the OS
	// poller for this handle (0 if not registered at all), so the
	// Reactor can tell an add from a modify/remove when syncing.
	polledBits State
}

// registry is the Reactor's per-handle callback table. Every mutation
// happens under the owning Reactor's mutex; registry itself performs no
// locking of its own, matching InterestSet.
//
// Compaction: grounded on the ambient event loop's weak-pointer promise
// registry (registry.go), whose batched, cursor-based Scavenge avoids a
// full-map rebuild on every operation. This registry holds strong
// references (sockets, not the registry, own the lifetime-extension
// relationship), but keeps the same "compact once load
// factor drops" idea so a burst of attach/detach churn doesn't leave a
// permanently bloated map.
type registry struct {
	entries map[Handle]*registryEntry
	// deletesSinceCompaction tracks how much churn has happened since
	// the map was last rebuilt, for the same load-factor-triggered
	// compaction the ambient registry performs.
	deletesSinceCompaction int
}

func newRegistry() *registry {
	return &registry{entries: make(map[Handle]*registryEntry)}
}

func (r *registry) add(e *registryEntry) {
	r.entries[e.handle] = e
}

func (r *registry) get(h Handle) (*registryEntry, bool) {
	e, ok := r.entries[h]
	return e, ok
}

func (r *registry) remove(h Handle) {
	if _, ok := r.entries[h]; !ok {
		return
	}
	delete(r.entries, h)
	r.deletesSinceCompaction++
	r.maybeCompact()
}

// maybeCompact rebuilds the backing map once enough deletes have
// accumulated relative to its size, bounding long-run memory growth from
// Go's map implementation not shrinking on delete.
func (r *registry) maybeCompact() {
	if len(r.entries) == 0 {
		return
	}
	if r.deletesSinceCompaction < len(r.entries)/4 && r.deletesSinceCompaction < 256 {
		return
	}
	fresh := make(map[Handle]*registryEntry, len(r.entries))
	for h, e := range r.entries {
		fresh[h] = e
	}
	r.entries = fresh
	r.deletesSinceCompaction = 0
}

func (r *registry) len() int { return len(r.entries) }

// callbacksFor resolves every callback that should run for a coalesced
// readiness bitmask. A socket armed for both directions that becomes
// simultaneously readable and writable reports both bits in one Event,
// so this returns both callbacks rather than only the first match --
// each paired with the interest bit a one-shot registration should drop
// once that specific callback has run.
func (e *registryEntry) callbacksFor(bits State) []callbackInvocation {
	var invocations []callbackInvocation
	if bits&(Readable|Hangup|Shutdown) != 0 && e.readable != nil {
		invocations = append(invocations, callbackInvocation{e.readable, Readable})
	}
	if bits&Writable != 0 && e.writable != nil {
		invocations = append(invocations, callbackInvocation{e.writable, Writable})
	}
	if bits&(Exceptional|StateError) != 0 && e.errorCB != nil {
		invocations = append(invocations, callbackInvocation{e.errorCB, 0})
	}
	return invocations
}

// callbackInvocation is one callback resolved by callbacksFor, paired
// with the interest bit to drop after it runs (0 for the error callback).
type callbackInvocation struct {
	cb        func(Event)
	clearBits State
}
