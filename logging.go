package reactor

import "log"

// OnPanic, if non-nil, is invoked whenever a callback dispatched by this
// package recovers from a panic, in place of the default
// log.Printf-based reporting. This mirrors the ambient event loop's
// OnOverload hook: the core library itself never depends on a structured
// logging framework (see DESIGN.md for why), but it gives callers an
// escape hatch to route these events into their own logger.
//
// OnPanic is called without any internal mutex held, but may be called
// concurrently from multiple driver goroutines; it must be safe for
// concurrent use.
var OnPanic func(component string, recovered any)

// OnPollError is invoked when an OS poll syscall fails in a way that is
// not transient (not EINTR). Reactor.Poll logs via this hook, or via
// log.Printf if it is nil, and then returns the error: Reactor.Run
// stops the reactor and returns it, and a Pool driver goroutine exits.
var OnPollError func(err error)

func logPanic(component string, recovered any) {
	if OnPanic != nil {
		OnPanic(component, recovered)
		return
	}
	log.Printf("reactor: %s: recovered panic: %v", component, recovered)
}

func logPollError(err error) {
	if OnPollError != nil {
		OnPollError(err)
		return
	}
	log.Printf("reactor: poll error: %v", err)
}
