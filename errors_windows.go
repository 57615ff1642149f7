//go:build windows

package reactor

import "golang.org/x/sys/windows"

// categoryToWinError and winErrorToCategory are the Windows analogue of
// errors_posix.go's translation tables: WSA* for socket-specific
// conditions, ERROR_* for general system conditions.
var categoryToWinError = map[Category]windows.Errno{
	WouldBlock:        windows.WSAEWOULDBLOCK,
	Interrupted:       windows.WSAEINTR,
	Invalid:           windows.ERROR_INVALID_PARAMETER,
	Limit:             windows.WSAEMFILE,
	AddressInUse:      windows.WSAEADDRINUSE,
	ConnectionTimeout: windows.WSAETIMEDOUT,
	ConnectionRefused: windows.WSAECONNREFUSED,
	ConnectionReset:   windows.WSAECONNRESET,
	ConnectionDead:    windows.ERROR_BROKEN_PIPE,
	Unreachable:       windows.WSAEHOSTUNREACH,
	NotAuthorized:     windows.WSAEACCES,
	NotImplemented:    windows.ERROR_CALL_NOT_IMPLEMENTED,
	NotOpen:           windows.ERROR_INVALID_HANDLE,
	NotSocket:         windows.WSAENOTSOCK,
}

var winErrorToCategory = func() map[windows.Errno]Category {
	m := make(map[windows.Errno]Category, len(categoryToWinError))
	for category, code := range categoryToWinError {
		m[code] = category
	}
	return m
}()

// TranslateWinError maps a raw Windows system/WSA error code to a
// [Category], returning [Unknown] for any value not present in the
// table and [Ok] for zero.
func TranslateWinError(code int) Category {
	if code == 0 {
		return Ok
	}
	if category, ok := winErrorToCategory[windows.Errno(code)]; ok {
		return category
	}
	return Unknown
}

// TranslateCategory maps a [Category] back to its representative Windows
// error code, returning 0 if the category has no native representation.
func TranslateCategory(category Category) int {
	if code, ok := categoryToWinError[category]; ok {
		return int(code)
	}
	return 0
}

func errorFromWinError(code windows.Errno) Error {
	return FromErrno(TranslateWinError(int(code)), int(code))
}
