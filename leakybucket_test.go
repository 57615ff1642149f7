package reactor

import (
	"testing"
	"time"
)

func TestNewLeakyBucketRejectsZero(t *testing.T) {
	if _, err := NewLeakyBucket(0, 100); err == nil {
		t.Error("NewLeakyBucket with zero rate should fail")
	}
	if _, err := NewLeakyBucket(100, 0); err == nil {
		t.Error("NewLeakyBucket with zero capacity should fail")
	}
}

func TestLeakyBucketSubmitAndOverflow(t *testing.T) {
	b, err := NewLeakyBucket(10, 100)
	if err != nil {
		t.Fatalf("NewLeakyBucket error: %v", err)
	}
	now := time.Now()

	if b.WouldOverflow(now) {
		t.Error("empty bucket should not overflow on first unit")
	}
	b.Submit(now, 100)
	if b.UnitsInBucket() != 100 {
		t.Fatalf("UnitsInBucket() = %d, want 100", b.UnitsInBucket())
	}
	if !b.WouldOverflow(now) {
		t.Error("full bucket should overflow on one more unit")
	}
}

func TestLeakyBucketDrainsOverTime(t *testing.T) {
	b, _ := NewLeakyBucket(10, 100) // 10 units/sec
	now := time.Now()
	b.Submit(now, 100)

	later := now.Add(5 * time.Second)
	if b.WouldOverflow(later) {
		t.Error("bucket should have drained 50 units after 5 seconds at 10/sec")
	}
	if got := b.UnitsInBucket(); got > 51 || got < 49 {
		t.Errorf("UnitsInBucket() = %d, want ~50", got)
	}
}

func TestLeakyBucketDrainsToZeroNotNegative(t *testing.T) {
	b, _ := NewLeakyBucket(10, 100)
	now := time.Now()
	b.Submit(now, 5)

	muchLater := now.Add(time.Hour)
	b.updateState(muchLater)
	if b.UnitsInBucket() != 0 {
		t.Errorf("UnitsInBucket() = %d, want 0 (cannot go negative)", b.UnitsInBucket())
	}
}

func TestLeakyBucketReserveAndCancel(t *testing.T) {
	b, _ := NewLeakyBucket(10, 100)
	now := time.Now()

	if err := b.Reserve(now, 60); err != nil {
		t.Fatalf("Reserve(60) error: %v", err)
	}
	if b.UnitsReserved() != 60 {
		t.Fatalf("UnitsReserved() = %d, want 60", b.UnitsReserved())
	}
	if err := b.Reserve(now, 50); err == nil {
		t.Error("Reserve(50) should fail: 60+50 > 100 capacity")
	}

	b.CancelReserved(20)
	if b.UnitsReserved() != 40 {
		t.Errorf("UnitsReserved() = %d, want 40", b.UnitsReserved())
	}

	b.CancelReserved(1000) // clamp, not underflow
	if b.UnitsReserved() != 0 {
		t.Errorf("UnitsReserved() = %d after over-cancel, want 0", b.UnitsReserved())
	}
}

func TestLeakyBucketSubmitReserved(t *testing.T) {
	b, _ := NewLeakyBucket(10, 100)
	now := time.Now()
	_ = b.Reserve(now, 30)

	b.SubmitReserved(now, 20)
	if b.UnitsReserved() != 10 {
		t.Errorf("UnitsReserved() = %d, want 10", b.UnitsReserved())
	}
	if b.UnitsInBucket() != 20 {
		t.Errorf("UnitsInBucket() = %d, want 20", b.UnitsInBucket())
	}
}

func TestLeakyBucketCalculateTimeToSubmit(t *testing.T) {
	b, _ := NewLeakyBucket(10, 100)
	now := time.Now()

	if d := b.CalculateTimeToSubmit(now); d != 0 {
		t.Errorf("CalculateTimeToSubmit on empty bucket = %v, want 0", d)
	}

	b.Submit(now, 100)
	d := b.CalculateTimeToSubmit(now)
	if d <= 0 {
		t.Errorf("CalculateTimeToSubmit on full bucket = %v, want > 0", d)
	}
	// one unit needs to drain at 10/sec => ~100ms
	if d < 50*time.Millisecond || d > 200*time.Millisecond {
		t.Errorf("CalculateTimeToSubmit = %v, want ~100ms", d)
	}
}

func TestLeakyBucketReset(t *testing.T) {
	b, _ := NewLeakyBucket(10, 100)
	now := time.Now()
	b.Submit(now, 50)
	_ = b.Reserve(now, 10)

	b.Reset()
	if b.UnitsInBucket() != 0 || b.UnitsReserved() != 0 {
		t.Errorf("after Reset: UnitsInBucket=%d UnitsReserved=%d, want 0, 0", b.UnitsInBucket(), b.UnitsReserved())
	}
}

func TestLeakyBucketSetRateAndCapacity(t *testing.T) {
	b, _ := NewLeakyBucket(10, 100)
	if err := b.SetRateAndCapacity(20, 200); err != nil {
		t.Fatalf("SetRateAndCapacity error: %v", err)
	}
	if b.DrainRate() != 20 || b.Capacity() != 200 {
		t.Errorf("DrainRate=%d Capacity=%d, want 20, 200", b.DrainRate(), b.Capacity())
	}
	if err := b.SetRateAndCapacity(0, 200); err == nil {
		t.Error("SetRateAndCapacity with zero rate should fail")
	}
}

func TestLeakyBucketStatistics(t *testing.T) {
	b, _ := NewLeakyBucket(10, 1000)
	now := time.Now()
	b.Submit(now, 5)
	b.Submit(now, 7)

	stats := b.GetStatistics()
	if stats.SubmittedUnits != 12 {
		t.Errorf("SubmittedUnits = %d, want 12", stats.SubmittedUnits)
	}

	b.ResetStatistics(now)
	stats = b.GetStatistics()
	if stats.SubmittedUnits != 0 {
		t.Errorf("SubmittedUnits after reset = %d, want 0", stats.SubmittedUnits)
	}
}

func TestCalculateCapacityAndDrainTime(t *testing.T) {
	cap, ok := CalculateCapacity(10, time.Second)
	if !ok || cap != 10 {
		t.Errorf("CalculateCapacity(10, 1s) = %d, %v; want 10, true", cap, ok)
	}
	if _, ok := CalculateCapacity(10, 0); ok {
		t.Error("CalculateCapacity with zero window should fail")
	}

	d := CalculateDrainTime(100, 10)
	if d != 10*time.Second {
		t.Errorf("CalculateDrainTime(100, 10) = %v, want 10s", d)
	}
	if d := CalculateDrainTime(100, 0); d != 0 {
		t.Errorf("CalculateDrainTime with zero rate = %v, want 0", d)
	}
}

func TestNewLeakyBucketFromWindow(t *testing.T) {
	b, err := NewLeakyBucketFromWindow(10, time.Second)
	if err != nil {
		t.Fatalf("NewLeakyBucketFromWindow error: %v", err)
	}
	if b.Capacity() != 10 || b.DrainRate() != 10 {
		t.Errorf("Capacity=%d DrainRate=%d, want 10, 10", b.Capacity(), b.DrainRate())
	}

	if _, err := NewLeakyBucketFromWindow(10, 0); err == nil {
		t.Error("NewLeakyBucketFromWindow with zero window should fail")
	}
}
