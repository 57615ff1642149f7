// Package reactor implements the core asynchronous I/O runtime of a
// networking toolkit: a reactor-based event demultiplexer, a companion
// chronology of timers and deferred work, a dual leaky-bucket rate
// limiter, and the socket-handle interest tracking that binds them
// together.
//
// # Core pieces
//
//   - [Error] / [Category]: a categorical error value with a numeric
//     system-error carrier, translated to and from POSIX errno / Windows
//     WSA and system error codes.
//   - [Event] / [EventSet]: per-handle readiness bitsets and an ordered
//     collection of them.
//   - [Interest] / [InterestSet]: per-handle subscription bookkeeping the
//     [Reactor] uses to program the OS poller.
//   - [Chronology]: a deferred-function FIFO plus a timer priority queue,
//     one owned by each [Reactor].
//   - [Reactor]: the readiness-based event demultiplexer bound to one OS
//     polling mechanism (epoll, kqueue, IOCP, or a portable poll(2)
//     fallback).
//   - [Pool]: owns N reactors and M >= N driver goroutines, routing new
//     sockets to a reactor by thread handle, thread index, or least load.
//   - [RateLimiter]: a dual leaky bucket (peak plus sustained) used by
//     throttled I/O paths.
//
// # Concurrency model
//
// Reactors are driven by one or more goroutines blocked inside the OS
// poll syscall ("waiters"). Every other operation -- attach, show, hide,
// detach, schedule, cancel -- either takes a short-lived internal mutex
// or defers to a driver goroutine via the deferred-function queue; none
// of them block beyond that. Callbacks are always invoked without any
// internal mutex held.
package reactor
