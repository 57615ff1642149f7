package reactor

// wakeupSource lets a driver thread blocked in poller.wait be woken
// early by another thread: Reactor.Execute signals it after enqueueing
// a deferred function, as do InterruptOne and Stop. On
// POSIX platforms it is backed by an fd registered with the poller like
// any other handle; on Windows, IOCP completion ports already support
// posting an artificial completion, so no fd is needed.
type wakeupSource interface {
	// handle returns the fd to register with the poller as Readable
	// interest, or InvalidHandle if this platform's wakeup mechanism
	// does not need a registered fd.
	handle() Handle
	// signal wakes one blocked wait call. Safe to call concurrently and
	// from any goroutine, including from inside a dispatched callback.
	signal() error
	// drain consumes whatever the poller reported for handle() so the
	// next wait does not immediately return spuriously. No-op when
	// handle() is InvalidHandle.
	drain()
	close() error
}
