//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package reactor

import "golang.org/x/sys/unix"

// categoryToErrno and errnoToCategory are the bidirectional POSIX errno
// translation tables. errnoToCategory is the exact inverse of
// categoryToErrno minus the zero entry, so translating a category to an
// errno and back round-trips for every category with a nonzero errno.
// [Eof] maps to 0, and 0 translates back to [Ok], not [Eof].
var categoryToErrno = map[Category]unix.Errno{
	WouldBlock:        unix.EAGAIN,
	Interrupted:       unix.EINTR,
	Invalid:           unix.EINVAL,
	Eof:               unix.Errno(0), // EOF has no errno; represented by a zero-length read, not an error code
	Limit:             unix.EMFILE,
	AddressInUse:      unix.EADDRINUSE,
	ConnectionTimeout: unix.ETIMEDOUT,
	ConnectionRefused: unix.ECONNREFUSED,
	ConnectionReset:   unix.ECONNRESET,
	ConnectionDead:    unix.EPIPE,
	Unreachable:       unix.EHOSTUNREACH,
	NotAuthorized:     unix.EACCES,
	NotImplemented:    unix.ENOSYS,
	NotOpen:           unix.EBADF,
	NotSocket:         unix.ENOTSOCK,
}

var errnoToCategory = func() map[unix.Errno]Category {
	m := make(map[unix.Errno]Category, len(categoryToErrno))
	for category, errno := range categoryToErrno {
		if errno == 0 {
			continue
		}
		m[errno] = category
	}
	return m
}()

// TranslateErrno maps a raw POSIX errno to a [Category], returning [Ok]
// for 0 and [Unknown] for any other value not present in the table.
func TranslateErrno(errno int) Category {
	if category, ok := errnoToCategory[unix.Errno(errno)]; ok {
		return category
	}
	if errno == 0 {
		return Ok
	}
	return Unknown
}

// TranslateCategory maps a [Category] back to its representative POSIX
// errno, returning 0 if the category has no native errno representation
// (e.g. [Ok], [Pending], [Cancelled], which are runtime-level states, not
// OS error conditions).
func TranslateCategory(category Category) int {
	if errno, ok := categoryToErrno[category]; ok {
		return int(errno)
	}
	return 0
}

// errorFromErrno builds an Error from a raw POSIX errno, translating it
// to the nearest Category and retaining the original errno for
// diagnostics.
func errorFromErrno(errno unix.Errno) Error {
	return FromErrno(TranslateErrno(int(errno)), int(errno))
}

// wrapErrno turns a raw syscall error into a categorized Error, labelling
// it with the syscall that produced it for diagnostics. Shared by every
// POSIX poller backend.
func wrapErrno(op string, err error) error {
	if err == nil {
		return nil
	}
	errno, ok := err.(unix.Errno)
	if !ok {
		return Wrap(Unknown, op, err)
	}
	return Wrap(TranslateErrno(int(errno)), op, errorFromErrno(errno))
}
