package reactor

import (
	"math/big"
	"time"
)

// defaultMaxUpdateInterval bounds how much elapsed time a single
// updateState call will account for, so that a very long pause between
// submissions (process suspended, clock jump) does not require
// iterating a huge number of virtual drain steps; the bucket simply
// drains to (at most) empty, which is observably identical to draining
// it one nanosecond at a time for that long.
const defaultMaxUpdateInterval = time.Hour

// LeakyBucket is a single rate-limiting primitive: units drain at a
// configured rate, down to zero; a submission overflows if the unit
// count would exceed capacity. Ported field-for-field and
// method-for-method from the source's ntcs::LeakyBucket (see
// DESIGN.md), with the fractional residue kept as an exact big.Rat
// instead of a raw nanosecond counter, so repeated small submissions
// never accumulate floating-point drift.
type LeakyBucket struct {
	drainRate uint64 // units per second
	capacity  uint64 // units

	unitsReserved uint64
	unitsInBucket uint64
	// fractionalDrained is the fractional unit already drained, carried
	// in the half-open interval [0, 1) units, as an exact rational.
	fractionalDrained *big.Rat

	lastUpdate        time.Time
	maxUpdateInterval time.Duration

	statSubmittedUnits         uint64
	statSubmittedUnitsAtUpdate uint64
	statisticsCollectionStart  time.Time
}

// CalculateDrainTime returns the duration required to drain `units` at
// `rate` units/second.
func CalculateDrainTime(units, rate uint64) time.Duration {
	if rate == 0 {
		return 0
	}
	return time.Duration(float64(units) / float64(rate) * float64(time.Second))
}

// CalculateTimeWindow returns the duration window in which `rate` units
// at `rate` units/second would be submitted -- i.e. one second, scaled
// by nothing; provided for symmetry with the source's convenience
// constructors, which take (rate, window) pairs and derive capacity.
func CalculateTimeWindow(rate uint64) time.Duration {
	return CalculateDrainTime(rate, rate)
}

// CalculateCapacity returns the capacity, in units, that a bucket
// draining at rate units/second needs to hold exactly one window's worth
// of submissions without overflowing.
func CalculateCapacity(rate uint64, window time.Duration) (uint64, bool) {
	if window <= 0 {
		return 0, false
	}
	// rate * window in whole units, computed exactly; invalid if the
	// result does not fit uint64.
	product := new(big.Int).Mul(new(big.Int).SetUint64(rate), big.NewInt(int64(window)))
	product.Quo(product, big.NewInt(int64(time.Second)))
	if !product.IsUint64() {
		return 0, false
	}
	return product.Uint64(), true
}

// NewLeakyBucket constructs a bucket with the given drain rate and
// capacity, both of which must be positive.
func NewLeakyBucket(drainRate, capacity uint64) (*LeakyBucket, error) {
	if drainRate == 0 || capacity == 0 {
		return nil, New(Invalid, "leaky bucket: drain rate and capacity must be positive")
	}
	return &LeakyBucket{
		drainRate:                 drainRate,
		capacity:                  capacity,
		fractionalDrained:         new(big.Rat),
		maxUpdateInterval:         defaultMaxUpdateInterval,
		statisticsCollectionStart: time.Now(),
	}, nil
}

// NewLeakyBucketFromWindow constructs a bucket sized so that `rate`
// units can be submitted over `window` without overflowing.
func NewLeakyBucketFromWindow(rate uint64, window time.Duration) (*LeakyBucket, error) {
	capacity, ok := CalculateCapacity(rate, window)
	if !ok || capacity == 0 {
		return nil, New(Invalid, "leaky bucket: rate * window does not fit a valid capacity")
	}
	return NewLeakyBucket(rate, capacity)
}

// SetMaxUpdateInterval overrides the default cap on elapsed-time
// accounting per updateState call.
func (b *LeakyBucket) SetMaxUpdateInterval(d time.Duration) { b.maxUpdateInterval = d }

// updateState subtracts the units drained since lastUpdate, capped at
// zero, and advances lastUpdate to now. Must be called before any
// capacity check so the check observes current state.
func (b *LeakyBucket) updateState(now time.Time) {
	if b.lastUpdate.IsZero() {
		b.lastUpdate = now
		return
	}
	elapsed := now.Sub(b.lastUpdate)
	if elapsed <= 0 {
		return
	}
	if elapsed > b.maxUpdateInterval {
		elapsed = b.maxUpdateInterval
	}
	b.lastUpdate = now

	// drained = elapsed.Seconds() * drainRate, computed as an exact
	// rational so the fractional residue survives across updates.
	drained := new(big.Rat).Mul(
		new(big.Rat).SetFrac64(int64(elapsed), int64(time.Second)),
		new(big.Rat).SetUint64(b.drainRate),
	)
	drained.Add(drained, b.fractionalDrained)

	wholeUnits := new(big.Int).Quo(drained.Num(), drained.Denom())
	whole := wholeUnits.Uint64()

	frac := new(big.Rat).Sub(drained, new(big.Rat).SetInt(wholeUnits))
	b.fractionalDrained = frac

	if whole >= b.unitsInBucket {
		b.unitsInBucket = 0
		b.fractionalDrained.SetInt64(0)
	} else {
		b.unitsInBucket -= whole
	}
}

// WouldOverflow updates state for `now` and reports whether adding one
// more unit would exceed capacity.
func (b *LeakyBucket) WouldOverflow(now time.Time) bool {
	b.updateState(now)
	return b.unitsInBucket+b.unitsReserved+1 > b.capacity
}

// Submit adds n units to the bucket, updating drain state first. It
// does not itself check for overflow; callers that want admission
// control call WouldOverflow first.
func (b *LeakyBucket) Submit(now time.Time, n uint64) {
	b.updateState(now)
	b.unitsInBucket += n
	b.statSubmittedUnits += n
}

// Reserve claims n units of future capacity without draining them,
// counting them against capacity immediately. Fails with Limit if the
// reservation would overflow the bucket.
func (b *LeakyBucket) Reserve(now time.Time, n uint64) error {
	b.updateState(now)
	if b.unitsInBucket+b.unitsReserved+n > b.capacity {
		return New(Limit, "leaky bucket: reservation would overflow capacity")
	}
	b.unitsReserved += n
	return nil
}

// CancelReserved releases a previously reserved n units without
// consuming them.
func (b *LeakyBucket) CancelReserved(n uint64) {
	if n > b.unitsReserved {
		n = b.unitsReserved
	}
	b.unitsReserved -= n
}

// SubmitReserved consumes n previously reserved units, moving them from
// reserved into the drained bucket.
func (b *LeakyBucket) SubmitReserved(now time.Time, n uint64) {
	if n > b.unitsReserved {
		n = b.unitsReserved
	}
	b.unitsReserved -= n
	b.Submit(now, n)
}

// CalculateTimeToSubmit returns the smallest d >= 0 such that a
// submission of one unit at now+d would not overflow, rounded up to
// whole nanoseconds so the caller does not busy-wake.
func (b *LeakyBucket) CalculateTimeToSubmit(now time.Time) time.Duration {
	b.updateState(now)
	total := b.unitsInBucket + b.unitsReserved
	if total+1 <= b.capacity {
		return 0
	}
	overflowBy := total + 1 - b.capacity
	seconds := new(big.Rat).Quo(new(big.Rat).SetUint64(overflowBy), new(big.Rat).SetUint64(b.drainRate))
	nanosRat := new(big.Rat).Mul(seconds, new(big.Rat).SetInt64(int64(time.Second)))
	nanos := ceilRat(nanosRat)
	return time.Duration(nanos)
}

// ceilRat rounds r up to the nearest integer.
func ceilRat(r *big.Rat) int64 {
	q := new(big.Int).Quo(r.Num(), r.Denom())
	rem := new(big.Int).Rem(r.Num(), r.Denom())
	if rem.Sign() != 0 && r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Int64()
}

// Reset clears unitsInBucket, unitsReserved, and the fractional residue,
// without touching statistics or configuration.
func (b *LeakyBucket) Reset() {
	b.unitsInBucket = 0
	b.unitsReserved = 0
	b.fractionalDrained.SetInt64(0)
	b.lastUpdate = time.Time{}
}

// ResetStatistics zeros the submitted-unit counters and restarts the
// statistics collection window at now.
func (b *LeakyBucket) ResetStatistics(now time.Time) {
	b.statSubmittedUnits = 0
	b.statSubmittedUnitsAtUpdate = 0
	b.statisticsCollectionStart = now
}

// SetRateAndCapacity updates the drain rate and capacity. Both must be
// positive.
func (b *LeakyBucket) SetRateAndCapacity(drainRate, capacity uint64) error {
	if drainRate == 0 || capacity == 0 {
		return New(Invalid, "leaky bucket: drain rate and capacity must be positive")
	}
	b.drainRate = drainRate
	b.capacity = capacity
	return nil
}

// Capacity reports the configured capacity.
func (b *LeakyBucket) Capacity() uint64 { return b.capacity }

// DrainRate reports the configured drain rate.
func (b *LeakyBucket) DrainRate() uint64 { return b.drainRate }

// UnitsInBucket reports the currently held (drained-adjusted, as of the
// last update) unit count.
func (b *LeakyBucket) UnitsInBucket() uint64 { return b.unitsInBucket }

// UnitsReserved reports the currently reserved unit count.
func (b *LeakyBucket) UnitsReserved() uint64 { return b.unitsReserved }

// LastUpdateTime reports the time of the most recent updateState call.
func (b *LeakyBucket) LastUpdateTime() time.Time { return b.lastUpdate }

// StatisticsCollectionStartTime reports when the current statistics
// window began.
func (b *LeakyBucket) StatisticsCollectionStartTime() time.Time { return b.statisticsCollectionStart }

// BucketStatistics reports cumulative submitted-unit counters.
type BucketStatistics struct {
	SubmittedUnits            uint64
	SubmittedUnitsAtLastCheck uint64
	CollectionStart           time.Time
}

// GetStatistics returns a snapshot of the bucket's submission
// statistics.
func (b *LeakyBucket) GetStatistics() BucketStatistics {
	return BucketStatistics{
		SubmittedUnits:            b.statSubmittedUnits,
		SubmittedUnitsAtLastCheck: b.statSubmittedUnitsAtUpdate,
		CollectionStart:           b.statisticsCollectionStart,
	}
}
