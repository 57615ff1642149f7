package reactor

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slices"
)

// DiagCategory identifies a class of diagnostic condition whose log
// frequency [CategoryLimiter] bounds. Unlike the byte-rate RateLimiter,
// this limiter governs how often a given diagnostic may fire, not how
// much data may flow.
type DiagCategory int

const (
	// DiagPoolOverloaded fires when every reactor in a Pool exceeds its
	// load factor and the thread count is already at MaxThreads.
	DiagPoolOverloaded DiagCategory = iota
	// DiagSpawnFailed fires when a Pool fails to spawn a new driver
	// thread/reactor while trying to relieve an overloaded pool.
	DiagSpawnFailed
	// DiagPollError fires when a driver thread's poll call returns an
	// error and the thread gives up.
	DiagPollError
	diagCategoryCount
)

// diagRing is a sorted ring buffer of event timestamps (UnixNano),
// narrowed to the one element type this runtime needs.
type diagRing struct {
	s    []int64
	r, w uint
}

func newDiagRing(size int) *diagRing {
	if size <= 0 || size&(size-1) != 0 {
		panic("reactor: diagRing: size must be a power of 2")
	}
	return &diagRing{s: make([]int64, size)}
}

func (x *diagRing) mask(v uint) uint { return v & (uint(len(x.s)) - 1) }

func (x *diagRing) Len() int { return int(x.w - x.r) }

func (x *diagRing) Get(i int) int64 {
	if i < 0 || i >= x.Len() {
		panic("reactor: diagRing: get: index out of range")
	}
	return x.s[x.mask(x.r+uint(i))]
}

func (x *diagRing) Search(value int64) int {
	return sort.Search(x.Len(), func(i int) bool { return x.Get(i) >= value })
}

func (x *diagRing) RemoveBefore(index int) {
	if index < 0 || index > x.Len() {
		panic("reactor: diagRing: remove before: index out of range")
	}
	x.r += uint(index)
}

// Insert keeps the ring sorted by inserting value at index, doubling
// the backing slice if full. This runtime's diagnostic categories see
// bursty but low-volume traffic, so the simpler always-linear-shift
// insert is used in place of a wrap-optimized variant -- correctness
// over micro-optimization for a buffer that is rarely more than a
// handful of elements deep.
func (x *diagRing) Insert(index int, value int64) {
	l := x.Len()
	if index < 0 || index > l {
		panic("reactor: diagRing: insert: index out of range")
	}
	if l == len(x.s) {
		fresh := make([]int64, len(x.s)<<1)
		for i := 0; i < l; i++ {
			fresh[i] = x.Get(i)
		}
		x.s = fresh
		x.r = 0
		x.w = uint(l)
	}
	for i := l; i > index; i-- {
		x.s[x.mask(x.r+uint(i))] = x.s[x.mask(x.r+uint(i-1))]
	}
	x.s[x.mask(x.r+uint(index))] = value
	x.w++
}

// filterDiagEvents discards events older than every configured rate's
// window and reports the remaining backoff, if any rate is currently
// saturated.
func filterDiagEvents(now time.Time, rates map[time.Duration]int, events *diagRing) (remaining time.Duration) {
	indexFirstRelevant := events.Len()
	for rate, limit := range rates {
		if limit <= 0 || rate <= 0 {
			continue
		}
		boundary := now.Add(-rate)
		index := events.Search(boundary.UnixNano() + 1)
		if index < indexFirstRelevant {
			indexFirstRelevant = index
		}
		if limit <= events.Len()-index {
			offset := time.Unix(0, events.Get(events.Len()-limit)).Sub(boundary)
			if offset > remaining {
				remaining = offset
			}
		}
	}
	events.RemoveBefore(indexFirstRelevant)
	return remaining
}

// parseDiagRates validates a set of rate limits: every duration/count
// must be positive, and rates must be monotonic (a longer window allows
// strictly more events, at a strictly lower effective per-second rate,
// than any shorter one).
func parseDiagRates(rates map[time.Duration]int) bool {
	if len(rates) == 0 {
		return false
	}
	durations := make([]time.Duration, 0, len(rates))
	for d := range rates {
		durations = append(durations, d)
	}
	slices.Sort(durations)
	for i, d := range durations {
		rate := rates[d]
		if rate <= 0 || d <= 0 {
			return false
		}
		if i < len(durations)-1 && rate >= rates[durations[i+1]] {
			return false
		}
		if i > 0 && float64(rate)/float64(d) >= float64(rates[durations[i-1]])/float64(durations[i-1]) {
			return false
		}
	}
	return true
}

type diagCategoryData struct {
	mu     sync.Mutex
	next   atomic.Int64 // UnixNano of next allowed event, or 0 for "none"
	events *diagRing
}

// CategoryLimiter bounds how often each [DiagCategory] may log, so a
// sustained overload or error condition produces one diagnostic per
// window instead of one per occurrence. This is the log-noise analogue
// of [RateLimiter], but uses a different algorithm: a sliding window over
// a sorted ring of event timestamps, counting diagnostic events rather
// than draining bytes through a leaky bucket. It is adapted
// from the ambient category rate limiter's fixed small category set
// instead of its arbitrary-key sync.Map (this runtime only ever limits
// the handful of DiagCategory values above, so a plain array indexed by
// category replaces the general-purpose map).
type CategoryLimiter struct {
	rates      map[time.Duration]int
	categories [diagCategoryCount]diagCategoryData
}

// defaultDiagRates permits at most one diagnostic per category per
// second, and 20 per 5 minutes, bounding both bursts and sustained spam.
func defaultDiagRates() map[time.Duration]int {
	return map[time.Duration]int{
		time.Second:     1,
		5 * time.Minute: 20,
	}
}

// NewCategoryLimiter constructs a limiter using the default rates. Use
// [NewCategoryLimiterWithRates] to override them.
func NewCategoryLimiter() *CategoryLimiter {
	l, err := NewCategoryLimiterWithRates(defaultDiagRates())
	if err != nil {
		panic(err)
	}
	return l
}

// NewCategoryLimiterWithRates constructs a limiter with custom rates,
// validated by parseDiagRates: every duration and count positive, and
// monotonic across window sizes.
func NewCategoryLimiterWithRates(rates map[time.Duration]int) (*CategoryLimiter, error) {
	if !parseDiagRates(rates) {
		return nil, New(Invalid, "diagnostic rates must be positive and monotonic")
	}
	l := &CategoryLimiter{rates: rates}
	for i := range l.categories {
		l.categories[i].events = newDiagRing(8)
	}
	return l, nil
}

// Allow reports whether a diagnostic in category may fire now,
// registering the attempt if so. Safe for concurrent use.
func (l *CategoryLimiter) Allow(category DiagCategory) bool {
	if l == nil || category < 0 || int(category) >= len(l.categories) {
		return true
	}
	data := &l.categories[category]

	now := time.Now()
	nowNano := now.UnixNano()
	if next := data.next.Load(); next != 0 && nowNano < next {
		return false
	}

	data.mu.Lock()
	defer data.mu.Unlock()

	if next := data.next.Load(); next != 0 && nowNano < next {
		return false
	}

	data.events.Insert(data.events.Search(nowNano), nowNano)
	remaining := filterDiagEvents(now, l.rates, data.events)
	if remaining <= 0 {
		data.next.Store(0)
		return true
	}
	data.next.Store(now.Add(remaining).UnixNano())
	return true
}
