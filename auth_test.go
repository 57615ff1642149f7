package reactor

import (
	"sync"
	"testing"
)

func TestAuthorizationInitialState(t *testing.T) {
	c := NewAuthController()
	auth := c.Authorization()
	if auth.Revoked() {
		t.Error("fresh Authorization should not be revoked")
	}
	if auth.Reason() != nil {
		t.Errorf("Reason() = %v, want nil", auth.Reason())
	}
}

func TestAuthorizationRevoke(t *testing.T) {
	c := NewAuthController()
	auth := c.Authorization()

	c.Revoke("shutting down")
	if !auth.Revoked() {
		t.Error("Revoked() = false after Revoke")
	}
	if auth.Reason() != "shutting down" {
		t.Errorf("Reason() = %v, want %q", auth.Reason(), "shutting down")
	}
}

func TestAuthorizationRevokeOnce(t *testing.T) {
	c := NewAuthController()
	auth := c.Authorization()

	var fired int
	auth.OnRevoke(func(reason any) { fired++ })

	c.Revoke("first")
	c.Revoke("second") // must be a no-op

	if fired != 1 {
		t.Errorf("OnRevoke handler fired %d times, want 1", fired)
	}
	if auth.Reason() != "first" {
		t.Errorf("Reason() = %v, want %q (first revoke wins)", auth.Reason(), "first")
	}
}

func TestAuthorizationOnRevokeAfterAlreadyRevoked(t *testing.T) {
	c := NewAuthController()
	auth := c.Authorization()
	c.Revoke("done")

	var got any
	auth.OnRevoke(func(reason any) { got = reason })
	if got != "done" {
		t.Errorf("late OnRevoke handler ran with reason %v, want %q", got, "done")
	}
}

func TestAuthorizationOnRevokeMultipleHandlers(t *testing.T) {
	c := NewAuthController()
	auth := c.Authorization()

	var order []int
	auth.OnRevoke(func(any) { order = append(order, 1) })
	auth.OnRevoke(func(any) { order = append(order, 2) })
	auth.OnRevoke(func(any) { order = append(order, 3) })

	c.Revoke(nil)
	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %d, want %d", i, order[i], want[i])
		}
	}
}

func TestAnyAuthorizationFiresOnFirstRevoke(t *testing.T) {
	a := NewAuthController()
	b := NewAuthController()
	composite := AnyAuthorization(a.Authorization(), b.Authorization())

	if composite.Revoked() {
		t.Error("composite should not be revoked before either source revokes")
	}

	b.Revoke("b revoked")
	if !composite.Revoked() {
		t.Error("composite should be revoked after b revokes")
	}
	if composite.Reason() != "b revoked" {
		t.Errorf("composite.Reason() = %v, want %q", composite.Reason(), "b revoked")
	}

	a.Revoke("a revoked") // should not change the composite's reason
	if composite.Reason() != "b revoked" {
		t.Errorf("composite.Reason() changed to %v after second source revoked", composite.Reason())
	}
}

func TestAnyAuthorizationNoTokens(t *testing.T) {
	composite := AnyAuthorization()
	if composite.Revoked() {
		t.Error("AnyAuthorization() with no tokens should never revoke")
	}
}

func TestAuthorizationConcurrentOnRevoke(t *testing.T) {
	c := NewAuthController()
	auth := c.Authorization()

	const n = 100
	var wg sync.WaitGroup
	var count int
	var mu sync.Mutex
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			auth.OnRevoke(func(any) {
				mu.Lock()
				count++
				mu.Unlock()
			})
		}()
	}
	wg.Wait()
	c.Revoke("go")
	if count != n {
		t.Errorf("count = %d, want %d", count, n)
	}
}
