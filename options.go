package reactor

import "time"

// ReactorConfig is the flat configuration struct backing a single
// Reactor. Construct via [NewReactor] with [ReactorOption] values
// rather than populating this directly.
type ReactorConfig struct {
	AutoAttach       bool
	AutoDetach       bool
	DefaultShot      Shot
	DefaultTrigger   Trigger
	MaxEventsPerWait int
	MaxCyclesPerWait int
	MaxPollTimeout   time.Duration
	EnableMetrics    bool
}

func defaultReactorConfig() ReactorConfig {
	return ReactorConfig{
		AutoAttach:       true,
		AutoDetach:       true,
		DefaultShot:      OneShot,
		DefaultTrigger:   LevelTriggered,
		MaxEventsPerWait: 256,
		MaxCyclesPerWait: 1,
		MaxPollTimeout:   10 * time.Second,
	}
}

// ReactorOption configures a Reactor at construction, following the
// standard functional-options shape: each option mutates a config
// struct through an unexported apply method.
type ReactorOption interface {
	applyReactor(*ReactorConfig)
}

type reactorOptionFunc func(*ReactorConfig)

func (f reactorOptionFunc) applyReactor(c *ReactorConfig) { f(c) }

// WithAutoAttach controls whether the first show* on a handle implicitly
// attaches it.
func WithAutoAttach(enabled bool) ReactorOption {
	return reactorOptionFunc(func(c *ReactorConfig) { c.AutoAttach = enabled })
}

// WithAutoDetach controls whether the last hide* that leaves interest
// empty implicitly detaches the handle.
func WithAutoDetach(enabled bool) ReactorOption {
	return reactorOptionFunc(func(c *ReactorConfig) { c.AutoDetach = enabled })
}

// WithDefaultShot sets the default shot mode for newly-registered
// interests.
func WithDefaultShot(shot Shot) ReactorOption {
	return reactorOptionFunc(func(c *ReactorConfig) { c.DefaultShot = shot })
}

// WithDefaultTrigger sets the default trigger mode for newly-registered
// interests.
func WithDefaultTrigger(trigger Trigger) ReactorOption {
	return reactorOptionFunc(func(c *ReactorConfig) { c.DefaultTrigger = trigger })
}

// WithMaxEventsPerWait bounds how many events a single OS poll call may
// return.
func WithMaxEventsPerWait(n int) ReactorOption {
	return reactorOptionFunc(func(c *ReactorConfig) {
		if n > 0 {
			c.MaxEventsPerWait = n
		}
	})
}

// WithMaxCyclesPerWait bounds how many internal dispatch cycles run per
// OS poll.
func WithMaxCyclesPerWait(n int) ReactorOption {
	return reactorOptionFunc(func(c *ReactorConfig) {
		if n > 0 {
			c.MaxCyclesPerWait = n
		}
	})
}

// WithMaxPollTimeout caps the computed poll timeout even when the
// nearest timer deadline is further away (or there is none).
func WithMaxPollTimeout(d time.Duration) ReactorOption {
	return reactorOptionFunc(func(c *ReactorConfig) {
		if d > 0 {
			c.MaxPollTimeout = d
		}
	})
}

// WithMetrics attaches a [Metrics] collector to the reactor, recording
// poll/dispatch/timer counters and per-callback dispatch latency.
// Disabled by default since the bookkeeping, while cheap, is not free.
func WithMetrics(enabled bool) ReactorOption {
	return reactorOptionFunc(func(c *ReactorConfig) { c.EnableMetrics = enabled })
}

func resolveReactorOptions(opts []ReactorOption) ReactorConfig {
	cfg := defaultReactorConfig()
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.applyReactor(&cfg)
	}
	return cfg
}

// PoolConfig is the flat configuration struct backing a [Pool].
type PoolConfig struct {
	MinThreads           int
	MaxThreads           int
	ThreadLoadFactor     int
	ThreadStackSize      int // advisory only; Go goroutines have no fixed stack size
	MaxConnections       int
	DynamicLoadBalancing bool
}

func defaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinThreads:           1,
		MaxThreads:           1,
		ThreadLoadFactor:     1000,
		MaxConnections:       0, // 0 means unlimited
		DynamicLoadBalancing: true,
	}
}

// PoolOption configures a Pool at construction.
type PoolOption interface {
	applyPool(*PoolConfig)
}

type poolOptionFunc func(*PoolConfig)

func (f poolOptionFunc) applyPool(c *PoolConfig) { f(c) }

// WithMinThreads sets the minimum number of driver goroutines.
func WithMinThreads(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		if n > 0 {
			c.MinThreads = n
		}
	})
}

// WithMaxThreads sets the maximum number of driver goroutines.
func WithMaxThreads(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		if n > 0 {
			c.MaxThreads = n
		}
	})
}

// WithThreadLoadFactor sets the per-reactor load threshold that triggers
// auto-expansion under least-loaded acquisition.
func WithThreadLoadFactor(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		if n > 0 {
			c.ThreadLoadFactor = n
		}
	})
}

// WithThreadStackSize is retained for configuration-surface parity with
// pool implementations that do size their worker stacks; Go goroutines
// do not take an explicit stack size, so this is a documented no-op,
// stored only so it round-trips through diagnostics.
func WithThreadStackSize(bytes int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) { c.ThreadStackSize = bytes })
}

// WithMaxConnections sets the process-wide handle reservation cap. Zero
// means unlimited.
func WithMaxConnections(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) { c.MaxConnections = n })
}

// WithDynamicLoadBalancing selects a single shared reactor driven by all
// threads (true, the default) versus one reactor per thread with
// pinned-for-life sockets (false).
func WithDynamicLoadBalancing(enabled bool) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) { c.DynamicLoadBalancing = enabled })
}

func resolvePoolOptions(opts []PoolOption) PoolConfig {
	cfg := defaultPoolConfig()
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.applyPool(&cfg)
	}
	if cfg.MaxThreads < cfg.MinThreads {
		cfg.MaxThreads = cfg.MinThreads
	}
	return cfg
}
