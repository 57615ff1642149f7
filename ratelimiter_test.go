package reactor

import (
	"testing"
	"time"
)

func newTestRateLimiter(t *testing.T) *RateLimiter {
	t.Helper()
	rl, err := NewRateLimiter(RateLimiterConfig{
		SustainedRateBytesPerSecond: 100,
		SustainedWindow:             time.Second,
		PeakRateBytesPerSecond:      1000,
		PeakWindow:                  time.Second,
	})
	if err != nil {
		t.Fatalf("NewRateLimiter error: %v", err)
	}
	return rl
}

func TestRateLimiterInvalidConfig(t *testing.T) {
	if _, err := NewRateLimiter(RateLimiterConfig{}); err == nil {
		t.Error("NewRateLimiter with zero rates/windows should fail")
	}
}

func TestRateLimiterWouldExceedBandwidthSustainedBinds(t *testing.T) {
	rl := newTestRateLimiter(t)
	now := time.Now()

	rl.Submit(now, 100) // fills the sustained bucket (capacity 100), peak has room (capacity 1000)
	if !rl.WouldExceedBandwidth(now) {
		t.Error("sustained bucket is full, WouldExceedBandwidth should be true")
	}
}

func TestRateLimiterSubmitAffectsBothBuckets(t *testing.T) {
	rl := newTestRateLimiter(t)
	now := time.Now()
	rl.Submit(now, 50)

	if rl.PeakBucket().UnitsInBucket() != 50 {
		t.Errorf("peak UnitsInBucket = %d, want 50", rl.PeakBucket().UnitsInBucket())
	}
	if rl.SustainedBucket().UnitsInBucket() != 50 {
		t.Errorf("sustained UnitsInBucket = %d, want 50", rl.SustainedBucket().UnitsInBucket())
	}
}

func TestRateLimiterCalculateTimeToSubmitTakesMax(t *testing.T) {
	rl := newTestRateLimiter(t)
	now := time.Now()
	rl.Submit(now, 100) // sustained bucket full (drains at 100/s), peak has lots of headroom (1000 cap, 1000/s rate)

	d := rl.CalculateTimeToSubmit(now)
	if d <= 0 {
		t.Error("CalculateTimeToSubmit should be positive once the sustained bucket is full")
	}
}

func TestRateLimiterReserveRollsBackOnPartialFailure(t *testing.T) {
	rl := newTestRateLimiter(t)
	now := time.Now()

	// sustained bucket capacity is 100; reserving 100 succeeds once, a
	// second reservation of any size should fail and leave the peak
	// bucket's reservation rolled back to its prior value.
	if err := rl.Reserve(now, 100); err != nil {
		t.Fatalf("first Reserve(100) error: %v", err)
	}
	if err := rl.Reserve(now, 1); err == nil {
		t.Fatal("second Reserve should fail: sustained bucket is already fully reserved")
	}
	if got := rl.PeakBucket().UnitsReserved(); got != 100 {
		t.Errorf("peak UnitsReserved = %d, want 100 (rolled back to pre-failed-attempt value)", got)
	}
}

func TestRateLimiterSubmitReserved(t *testing.T) {
	rl := newTestRateLimiter(t)
	now := time.Now()
	_ = rl.Reserve(now, 30)

	rl.SubmitReserved(now, 30)
	if rl.PeakBucket().UnitsReserved() != 0 || rl.SustainedBucket().UnitsReserved() != 0 {
		t.Error("SubmitReserved should clear reservations on both buckets")
	}
	if rl.PeakBucket().UnitsInBucket() != 30 || rl.SustainedBucket().UnitsInBucket() != 30 {
		t.Error("SubmitReserved should move units into both buckets' drained count")
	}
}

func TestRateLimiterReset(t *testing.T) {
	rl := newTestRateLimiter(t)
	now := time.Now()
	rl.Submit(now, 50)
	_ = rl.Reserve(now, 10)

	rl.Reset()
	if rl.PeakBucket().UnitsInBucket() != 0 || rl.PeakBucket().UnitsReserved() != 0 {
		t.Error("Reset should clear the peak bucket")
	}
	if rl.SustainedBucket().UnitsInBucket() != 0 || rl.SustainedBucket().UnitsReserved() != 0 {
		t.Error("Reset should clear the sustained bucket")
	}
}
