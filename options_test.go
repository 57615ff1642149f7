package reactor

import (
	"testing"
	"time"
)

func TestDefaultReactorConfig(t *testing.T) {
	cfg := resolveReactorOptions(nil)
	want := defaultReactorConfig()
	if cfg != want {
		t.Errorf("resolveReactorOptions(nil) = %+v, want %+v", cfg, want)
	}
}

func TestReactorOptionsApply(t *testing.T) {
	cfg := resolveReactorOptions([]ReactorOption{
		WithAutoAttach(false),
		WithAutoDetach(false),
		WithDefaultShot(Persistent),
		WithDefaultTrigger(EdgeTriggered),
		WithMaxEventsPerWait(64),
		WithMaxCyclesPerWait(4),
		WithMaxPollTimeout(time.Second),
		WithMetrics(true),
	})

	if cfg.AutoAttach || cfg.AutoDetach {
		t.Error("AutoAttach/AutoDetach should both be false")
	}
	if cfg.DefaultShot != Persistent {
		t.Errorf("DefaultShot = %v, want Persistent", cfg.DefaultShot)
	}
	if cfg.DefaultTrigger != EdgeTriggered {
		t.Errorf("DefaultTrigger = %v, want EdgeTriggered", cfg.DefaultTrigger)
	}
	if cfg.MaxEventsPerWait != 64 {
		t.Errorf("MaxEventsPerWait = %d, want 64", cfg.MaxEventsPerWait)
	}
	if cfg.MaxCyclesPerWait != 4 {
		t.Errorf("MaxCyclesPerWait = %d, want 4", cfg.MaxCyclesPerWait)
	}
	if cfg.MaxPollTimeout != time.Second {
		t.Errorf("MaxPollTimeout = %v, want 1s", cfg.MaxPollTimeout)
	}
	if !cfg.EnableMetrics {
		t.Error("EnableMetrics = false, want true")
	}
}

func TestReactorOptionsIgnoreNonPositive(t *testing.T) {
	cfg := resolveReactorOptions([]ReactorOption{
		WithMaxEventsPerWait(0),
		WithMaxCyclesPerWait(-1),
		WithMaxPollTimeout(0),
	})
	want := defaultReactorConfig()
	if cfg.MaxEventsPerWait != want.MaxEventsPerWait {
		t.Errorf("MaxEventsPerWait = %d, want unchanged default %d", cfg.MaxEventsPerWait, want.MaxEventsPerWait)
	}
	if cfg.MaxCyclesPerWait != want.MaxCyclesPerWait {
		t.Errorf("MaxCyclesPerWait = %d, want unchanged default %d", cfg.MaxCyclesPerWait, want.MaxCyclesPerWait)
	}
	if cfg.MaxPollTimeout != want.MaxPollTimeout {
		t.Errorf("MaxPollTimeout = %v, want unchanged default %v", cfg.MaxPollTimeout, want.MaxPollTimeout)
	}
}

func TestReactorOptionsIgnoreNil(t *testing.T) {
	cfg := resolveReactorOptions([]ReactorOption{nil, WithAutoAttach(false), nil})
	if cfg.AutoAttach {
		t.Error("AutoAttach should be false")
	}
}

func TestDefaultPoolConfig(t *testing.T) {
	cfg := resolvePoolOptions(nil)
	want := defaultPoolConfig()
	if cfg != want {
		t.Errorf("resolvePoolOptions(nil) = %+v, want %+v", cfg, want)
	}
}

func TestPoolOptionsApply(t *testing.T) {
	cfg := resolvePoolOptions([]PoolOption{
		WithMinThreads(2),
		WithMaxThreads(8),
		WithThreadLoadFactor(500),
		WithThreadStackSize(65536),
		WithMaxConnections(100),
		WithDynamicLoadBalancing(false),
	})
	if cfg.MinThreads != 2 {
		t.Errorf("MinThreads = %d, want 2", cfg.MinThreads)
	}
	if cfg.MaxThreads != 8 {
		t.Errorf("MaxThreads = %d, want 8", cfg.MaxThreads)
	}
	if cfg.ThreadLoadFactor != 500 {
		t.Errorf("ThreadLoadFactor = %d, want 500", cfg.ThreadLoadFactor)
	}
	if cfg.ThreadStackSize != 65536 {
		t.Errorf("ThreadStackSize = %d, want 65536", cfg.ThreadStackSize)
	}
	if cfg.MaxConnections != 100 {
		t.Errorf("MaxConnections = %d, want 100", cfg.MaxConnections)
	}
	if cfg.DynamicLoadBalancing {
		t.Error("DynamicLoadBalancing should be false")
	}
}

func TestPoolOptionsMaxThreadsClampedToMinThreads(t *testing.T) {
	cfg := resolvePoolOptions([]PoolOption{
		WithMinThreads(10),
		WithMaxThreads(2),
	})
	if cfg.MaxThreads != 10 {
		t.Errorf("MaxThreads = %d, want clamped up to MinThreads (10)", cfg.MaxThreads)
	}
}

func TestPoolOptionsIgnoreNonPositive(t *testing.T) {
	cfg := resolvePoolOptions([]PoolOption{
		WithMinThreads(0),
		WithMaxThreads(-1),
		WithThreadLoadFactor(0),
	})
	want := defaultPoolConfig()
	if cfg.MinThreads != want.MinThreads {
		t.Errorf("MinThreads = %d, want unchanged default %d", cfg.MinThreads, want.MinThreads)
	}
	if cfg.ThreadLoadFactor != want.ThreadLoadFactor {
		t.Errorf("ThreadLoadFactor = %d, want unchanged default %d", cfg.ThreadLoadFactor, want.ThreadLoadFactor)
	}
}
