package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/izerui/mysql-migration-monitor/internal/aggregate"
	"github.com/izerui/mysql-migration-monitor/internal/resolver"
	"github.com/izerui/mysql-migration-monitor/internal/snapshot"
	"github.com/izerui/mysql-migration-monitor/pkg/types"
)

// fakeCollector counts invocations and can be made slow to hold its
// in-flight slot across ticks.
type fakeCollector struct {
	endpoint types.Endpoint
	delay    time.Duration
	calls    atomic.Int64
	inFlight atomic.Int64
	maxSeen  atomic.Int64
	resets   atomic.Int64
}

func (f *fakeCollector) Collect(ctx context.Context) []types.RawSample {
	f.calls.Add(1)
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxSeen.Load()
		if cur <= prev || f.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil
		}
	}
	return []types.RawSample{{
		Endpoint:  f.endpoint,
		Schema:    "erp",
		RawName:   "orders",
		RowCount:  1,
		SampledAt: time.Now(),
	}}
}

func (f *fakeCollector) ResetEstimate() { f.resets.Add(1) }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(sink{})
	return log
}

type sink struct{}

func (sink) Write(p []byte) (int, error) { return len(p), nil }

func newTestScheduler(cfg Config, target, source *fakeCollector) (*Scheduler, *snapshot.Store) {
	log := quietLogger()
	store := snapshot.NewStore(time.Now())
	agg := aggregate.New(resolver.Resolve, log)
	return New(cfg, target, source, agg, store, log), store
}

func runFor(t *testing.T, s *Scheduler, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d + 2*time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
}

func TestCadenceArithmetic(t *testing.T) {
	target := &fakeCollector{endpoint: types.EndpointTarget}
	source := &fakeCollector{endpoint: types.EndpointSource}
	s, store := newTestScheduler(Config{
		Period:         10 * time.Millisecond,
		SourceInterval: 3,
		Grace:          time.Second,
	}, target, source)

	// Run long enough for at least 10 ticks.
	runFor(t, s, 150*time.Millisecond)

	snap := store.Load()
	if snap.TargetTicks < 10 {
		t.Fatalf("only %d target ticks elapsed, test run too short", snap.TargetTicks)
	}
	want := snap.TargetTicks / 3
	if snap.SourceTicks != want {
		t.Errorf("source ticks = %d over %d target ticks, want %d",
			snap.SourceTicks, snap.TargetTicks, want)
	}
	if source.maxSeen.Load() > 1 {
		t.Errorf("source collections overlapped: max in flight %d", source.maxSeen.Load())
	}
}

func TestSlowSourceSkippedNotQueued(t *testing.T) {
	target := &fakeCollector{endpoint: types.EndpointTarget}
	// One source poll outlasts the whole run, so every later due trigger
	// must be shed.
	source := &fakeCollector{endpoint: types.EndpointSource, delay: 2 * time.Second}
	s, store := newTestScheduler(Config{
		Period:         10 * time.Millisecond,
		SourceInterval: 2,
		Grace:          time.Second,
	}, target, source)

	runFor(t, s, 200*time.Millisecond)

	if got := source.maxSeen.Load(); got > 1 {
		t.Errorf("source collections overlapped: max in flight %d", got)
	}
	if got := source.calls.Load(); got != 1 {
		t.Errorf("skipped triggers were queued: %d source collections, want 1", got)
	}
	if !store.Load().SourceStale {
		t.Error("snapshot not marked source-stale while triggers were dropped")
	}
}

func TestSlowTargetBoundedToOneInFlight(t *testing.T) {
	target := &fakeCollector{endpoint: types.EndpointTarget, delay: 100 * time.Millisecond}
	source := &fakeCollector{endpoint: types.EndpointSource}
	s, _ := newTestScheduler(Config{
		Period:         10 * time.Millisecond,
		SourceInterval: 1000,
		Grace:          time.Second,
	}, target, source)

	runFor(t, s, 200*time.Millisecond)

	if got := target.maxSeen.Load(); got > 1 {
		t.Errorf("target collections overlapped: max in flight %d", got)
	}
}

func TestTargetAndSourceRunConcurrently(t *testing.T) {
	// Both sides slow: each side stays bounded to one in-flight but the
	// two sides must not serialize against each other.
	target := &fakeCollector{endpoint: types.EndpointTarget, delay: 80 * time.Millisecond}
	source := &fakeCollector{endpoint: types.EndpointSource, delay: 80 * time.Millisecond}
	s, _ := newTestScheduler(Config{
		Period:         10 * time.Millisecond,
		SourceInterval: 1,
		Grace:          time.Second,
	}, target, source)

	runFor(t, s, 200*time.Millisecond)

	if target.calls.Load() == 0 || source.calls.Load() == 0 {
		t.Fatal("expected both endpoints to be collected")
	}
	if target.maxSeen.Load() > 1 || source.maxSeen.Load() > 1 {
		t.Error("per-endpoint in-flight bound violated")
	}
}

func TestPauseStopsTicking(t *testing.T) {
	target := &fakeCollector{endpoint: types.EndpointTarget}
	source := &fakeCollector{endpoint: types.EndpointSource}
	s, store := newTestScheduler(Config{
		Period:         10 * time.Millisecond,
		SourceInterval: 1,
		Grace:          time.Second,
	}, target, source)

	if !s.TogglePause() {
		t.Fatal("TogglePause should report paused")
	}
	runFor(t, s, 100*time.Millisecond)

	if ticks := store.Load().TargetTicks; ticks != 0 {
		t.Errorf("paused scheduler still ticked %d times", ticks)
	}
}

func TestBootstrapCollectsBothSidesImmediately(t *testing.T) {
	target := &fakeCollector{endpoint: types.EndpointTarget}
	source := &fakeCollector{endpoint: types.EndpointSource}
	s, store := newTestScheduler(Config{
		Period:         time.Hour, // ticker must not fire during the test
		SourceInterval: 3,
		Grace:          time.Second,
		Bootstrap:      true,
	}, target, source)

	runFor(t, s, 100*time.Millisecond)

	if target.calls.Load() != 1 || source.calls.Load() != 1 {
		t.Fatalf("bootstrap collected target=%d source=%d times, want 1 and 1",
			target.calls.Load(), source.calls.Load())
	}
	snap := store.Load()
	if len(snap.Records) == 0 {
		t.Fatal("bootstrap cycle did not publish")
	}
}

func TestForceRefreshResetsBothCollectors(t *testing.T) {
	target := &fakeCollector{endpoint: types.EndpointTarget}
	source := &fakeCollector{endpoint: types.EndpointSource}
	s, _ := newTestScheduler(Config{Period: time.Hour, SourceInterval: 1, Grace: time.Second}, target, source)

	s.ForceRefresh()
	if target.resets.Load() != 1 || source.resets.Load() != 1 {
		t.Error("ForceRefresh must reset both endpoints to estimate mode")
	}
}

func TestPublishesAreWholeGenerations(t *testing.T) {
	target := &fakeCollector{endpoint: types.EndpointTarget}
	source := &fakeCollector{endpoint: types.EndpointSource}
	s, store := newTestScheduler(Config{
		Period:         5 * time.Millisecond,
		SourceInterval: 1,
		Grace:          time.Second,
	}, target, source)

	var mu sync.Mutex
	var seen []*aggregate.Snapshot
	store.Subscribe(func(snap *aggregate.Snapshot) {
		mu.Lock()
		seen = append(seen, snap)
		mu.Unlock()
	})

	runFor(t, s, 100*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatal("no snapshots published")
	}
	// The fakes never fail, so every published record's status must agree
	// with the consistency equation; a torn fold would break that.
	for _, snap := range seen {
		for _, rec := range snap.Records {
			wantConsistent := rec.TargetCount() == rec.SourceSum()
			gotConsistent := rec.Status == aggregate.StatusConsistent
			if wantConsistent != gotConsistent {
				t.Fatalf("torn publish: %s status %v with target %d, source sum %d",
					rec.Canonical, rec.Status, rec.TargetCount(), rec.SourceSum())
			}
		}
	}
}
