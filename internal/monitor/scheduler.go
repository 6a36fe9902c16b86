// Package monitor drives the polling cadence for both endpoints and
// publishes aggregated snapshots.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/izerui/mysql-migration-monitor/internal/aggregate"
	"github.com/izerui/mysql-migration-monitor/internal/snapshot"
	"github.com/izerui/mysql-migration-monitor/pkg/types"
)

// Collector is one endpoint's sampling side, satisfied by
// source/mysql.Collector.
type Collector interface {
	Collect(ctx context.Context) []types.RawSample
	ResetEstimate()
}

// Config carries the scheduler's cadence parameters.
type Config struct {
	// Period is the target refresh interval; one tick per period.
	Period time.Duration
	// SourceInterval is the number of target ticks per source tick.
	SourceInterval int
	// Grace bounds how long in-flight collections may run after shutdown.
	Grace time.Duration
	// Bootstrap runs one immediate collection of both endpoints before
	// the ticker starts, so the dashboard fills quickly from estimates.
	Bootstrap bool
}

// Scheduler drives two logical timers from a single clock: the target
// endpoint is collected on every tick, the source endpoint on every
// SourceInterval-th tick. Each endpoint holds a single in-flight slot;
// when a trigger fires while the slot is taken the trigger is skipped
// outright, never queued.
type Scheduler struct {
	cfg    Config
	target Collector
	source Collector
	agg    *aggregate.Aggregator
	store  *snapshot.Store
	log    *logrus.Entry

	targetBusy  atomic.Bool
	sourceBusy  atomic.Bool
	paused      atomic.Bool
	sourceStale atomic.Bool
	targetTicks atomic.Uint64
	sourceTicks atomic.Uint64

	// foldMu serializes fold+publish so each publish is one total,
	// self-contained generation even when both endpoints finish at once.
	foldMu sync.Mutex
	wg     sync.WaitGroup
}

// New wires a scheduler over the two collectors, the aggregator and the
// snapshot store.
func New(cfg Config, target, source Collector, agg *aggregate.Aggregator, store *snapshot.Store, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		target: target,
		source: source,
		agg:    agg,
		store:  store,
		log:    log.WithField("component", "monitor"),
	}
}

// Run ticks until ctx is cancelled, then gives in-flight collections a
// grace period before cancelling them. It never blocks on a collection:
// ticks fire on wall-clock boundaries regardless of what is in flight.
func (s *Scheduler) Run(ctx context.Context) {
	collectCtx, cancelCollect := context.WithCancel(context.Background())
	defer cancelCollect()

	if s.cfg.Bootstrap {
		s.launch(collectCtx, types.EndpointTarget, s.target, &s.targetBusy)
		s.launch(collectCtx, types.EndpointSource, s.source, &s.sourceBusy)
	}

	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(collectCtx)
		case <-ctx.Done():
			s.shutdown(cancelCollect)
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.paused.Load() {
		return
	}

	tick := s.targetTicks.Add(1)

	if !s.launch(ctx, types.EndpointTarget, s.target, &s.targetBusy) {
		s.log.WithField("tick", tick).Debug("target collection still in flight, tick skipped")
	}

	if tick%uint64(s.cfg.SourceInterval) != 0 {
		return
	}
	if s.launch(ctx, types.EndpointSource, s.source, &s.sourceBusy) {
		s.sourceTicks.Add(1)
	} else {
		// No queuing: a slow source poll sheds triggers and the view is
		// marked stale instead of erroring.
		s.sourceStale.Store(true)
		s.log.WithField("tick", tick).Warn("source collection still in flight, trigger dropped")
	}
}

// launch tries to take the endpoint's single in-flight slot and start a
// collection. Returns false when the slot is already taken.
func (s *Scheduler) launch(ctx context.Context, endpoint types.Endpoint, col Collector, busy *atomic.Bool) bool {
	if !busy.CompareAndSwap(false, true) {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer busy.Store(false)

		samples := col.Collect(ctx)
		if ctx.Err() != nil {
			// Shutdown beat the collection; publishing a torn cycle is
			// worse than dropping it.
			return
		}
		s.publish(endpoint, samples)
	}()
	return true
}

func (s *Scheduler) publish(endpoint types.Endpoint, samples []types.RawSample) {
	s.foldMu.Lock()
	defer s.foldMu.Unlock()

	prev := s.store.Load()
	var next *aggregate.Snapshot
	if endpoint == types.EndpointTarget {
		next = s.agg.Fold(prev, samples, nil)
	} else {
		next = s.agg.Fold(prev, nil, samples)
		s.sourceStale.Store(false)
	}
	next.TargetTicks = s.targetTicks.Load()
	next.SourceTicks = s.sourceTicks.Load()
	next.SourceStale = s.sourceStale.Load()
	s.store.Publish(next)
}

func (s *Scheduler) shutdown(cancelCollect context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.Grace):
		s.log.Warn("grace period elapsed, cancelling in-flight collections")
		cancelCollect()
		<-done
	}
}

// Paused reports whether ticking is suspended.
func (s *Scheduler) Paused() bool {
	return s.paused.Load()
}

// TogglePause flips the pause state and returns the new value.
func (s *Scheduler) TogglePause() bool {
	for {
		old := s.paused.Load()
		if s.paused.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// ForceRefresh drops both endpoints back to estimate mode so the next
// cycles are fast full re-scans.
func (s *Scheduler) ForceRefresh() {
	s.target.ResetEstimate()
	s.source.ResetEstimate()
	s.log.Info("manual refresh requested, endpoints reset to estimate mode")
}
