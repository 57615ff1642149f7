package reactor

import (
	"sync"
	"time"
)

// RateLimiter composes a peak and a sustained [LeakyBucket], protected
// by a single lock. WouldExceedBandwidth is the OR of the two buckets'
// overflow checks; CalculateTimeToSubmit is the MAX. Submit submits to
// both.
type RateLimiter struct {
	mu        sync.Mutex
	peak      *LeakyBucket
	sustained *LeakyBucket
}

// RateLimiterConfig configures both buckets via the (rate, window)
// convenience constructor form.
type RateLimiterConfig struct {
	SustainedRateBytesPerSecond uint64
	SustainedWindow             time.Duration
	PeakRateBytesPerSecond      uint64
	PeakWindow                  time.Duration
}

// NewRateLimiter builds a RateLimiter from explicit rate/window pairs
// for each bucket.
func NewRateLimiter(cfg RateLimiterConfig) (*RateLimiter, error) {
	sustained, err := NewLeakyBucketFromWindow(cfg.SustainedRateBytesPerSecond, cfg.SustainedWindow)
	if err != nil {
		return nil, Wrap(Invalid, "rate limiter: invalid sustained bucket", err)
	}
	peak, err := NewLeakyBucketFromWindow(cfg.PeakRateBytesPerSecond, cfg.PeakWindow)
	if err != nil {
		return nil, Wrap(Invalid, "rate limiter: invalid peak bucket", err)
	}
	return &RateLimiter{peak: peak, sustained: sustained}, nil
}

// WouldExceedBandwidth reports whether submitting one more unit at now
// would overflow either bucket.
func (r *RateLimiter) WouldExceedBandwidth(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	peakOverflow := r.peak.WouldOverflow(now)
	sustainedOverflow := r.sustained.WouldOverflow(now)
	return peakOverflow || sustainedOverflow
}

// Submit adds n units to both buckets.
func (r *RateLimiter) Submit(now time.Time, n uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peak.Submit(now, n)
	r.sustained.Submit(now, n)
}

// CalculateTimeToSubmit returns the larger of the two buckets' required
// wait durations.
func (r *RateLimiter) CalculateTimeToSubmit(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	peakWait := r.peak.CalculateTimeToSubmit(now)
	sustainedWait := r.sustained.CalculateTimeToSubmit(now)
	if peakWait > sustainedWait {
		return peakWait
	}
	return sustainedWait
}

// Reserve claims n units of future capacity in both buckets. If either
// reservation fails, any already-made reservation on the other bucket is
// rolled back so the pair stays consistent.
func (r *RateLimiter) Reserve(now time.Time, n uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.peak.Reserve(now, n); err != nil {
		return err
	}
	if err := r.sustained.Reserve(now, n); err != nil {
		r.peak.CancelReserved(n)
		return err
	}
	return nil
}

// CancelReserved releases n units from both buckets' reservations.
func (r *RateLimiter) CancelReserved(n uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peak.CancelReserved(n)
	r.sustained.CancelReserved(n)
}

// SubmitReserved consumes n previously reserved units from both
// buckets.
func (r *RateLimiter) SubmitReserved(now time.Time, n uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peak.SubmitReserved(now, n)
	r.sustained.SubmitReserved(now, n)
}

// Reset clears both buckets' held/reserved units.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peak.Reset()
	r.sustained.Reset()
}

// PeakBucket exposes the peak bucket for diagnostics.
func (r *RateLimiter) PeakBucket() *LeakyBucket { return r.peak }

// SustainedBucket exposes the sustained bucket for diagnostics.
func (r *RateLimiter) SustainedBucket() *LeakyBucket { return r.sustained }
