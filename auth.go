package reactor

import "sync"

// Authorization is a cancellable token checked before a callback fires.
// It is the reactor-domain counterpart of a DOM AbortSignal: read-only,
// subscribable, and abortable at most once by its paired
// [AuthController].
type Authorization struct {
	mu       sync.RWMutex
	handlers []func(reason any)
	reason   any
	revoked  bool
}

func newAuthorization() *Authorization {
	return &Authorization{}
}

// Revoked reports whether the token has been revoked.
func (a *Authorization) Revoked() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.revoked
}

// Reason returns the value passed to Revoke, or nil if not yet revoked.
func (a *Authorization) Reason() any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.reason
}

// OnRevoke registers handler to run when the token is revoked. If the
// token is already revoked, handler runs immediately (synchronously, on
// the calling goroutine).
func (a *Authorization) OnRevoke(handler func(reason any)) {
	a.mu.Lock()
	if a.revoked {
		reason := a.reason
		a.mu.Unlock()
		handler(reason)
		return
	}
	a.handlers = append(a.handlers, handler)
	a.mu.Unlock()
}

func (a *Authorization) revoke(reason any) {
	a.mu.Lock()
	if a.revoked {
		a.mu.Unlock()
		return
	}
	a.revoked = true
	a.reason = reason
	handlers := a.handlers
	a.handlers = nil
	a.mu.Unlock()

	// handlers run outside the lock, matching the locking discipline
	// used throughout this runtime: no callback runs with an internal
	// mutex held.
	for _, h := range handlers {
		h(reason)
	}
}

// AuthController owns an [Authorization] and can revoke it exactly once.
type AuthController struct {
	auth *Authorization
}

// NewAuthController creates a fresh, unrevoked Authorization under the
// caller's control.
func NewAuthController() *AuthController {
	return &AuthController{auth: newAuthorization()}
}

// Authorization returns the read-only token callbacks should check.
func (c *AuthController) Authorization() *Authorization { return c.auth }

// Revoke cancels the token, running any registered OnRevoke handlers.
// Subsequent calls are no-ops.
func (c *AuthController) Revoke(reason any) { c.auth.revoke(reason) }

// AnyAuthorization returns an Authorization that is revoked as soon as
// any of the given tokens is revoked, with the reason of whichever
// revoked first. Passing no tokens returns a token that never revokes.
func AnyAuthorization(tokens ...*Authorization) *Authorization {
	composite := newAuthorization()
	var once sync.Once
	for _, t := range tokens {
		t.OnRevoke(func(reason any) {
			once.Do(func() { composite.revoke(reason) })
		})
	}
	return composite
}
