package aggregate

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/izerui/mysql-migration-monitor/internal/resolver"
	"github.com/izerui/mysql-migration-monitor/pkg/types"
)

// Aggregator folds fresh endpoint samples over the previous snapshot.
type Aggregator struct {
	resolve resolver.Func
	log     *logrus.Entry
}

// New builds an aggregator. A nil resolve function falls back to identity
// mapping.
func New(resolve resolver.Func, log *logrus.Logger) *Aggregator {
	if resolve == nil {
		resolve = resolver.Identity
	}
	return &Aggregator{
		resolve: resolve,
		log:     log.WithField("component", "aggregate"),
	}
}

// Fold builds the next snapshot from the previous one plus whatever samples
// this cycle produced. Either sample slice may be nil; an absent side
// carries the previous side's samples forward unchanged. The previous
// snapshot is never modified.
func (a *Aggregator) Fold(prev *Snapshot, targetSamples, sourceSamples []types.RawSample) *Snapshot {
	next := &Snapshot{
		Records:      make(map[Key]*Record, len(prev.Records)),
		TargetTicks:  prev.TargetTicks,
		SourceTicks:  prev.SourceTicks,
		SourceStale:  prev.SourceStale,
		StartedAt:    prev.StartedAt,
		UpdatedAt:    prev.UpdatedAt,
		LastTargetAt: prev.LastTargetAt,
		LastSourceAt: prev.LastSourceAt,
	}
	for k, r := range prev.Records {
		next.Records[k] = r
	}

	touched := make(map[Key]bool)

	for _, s := range targetSamples {
		// Target names are not suffix-mangled; identity resolution.
		key := Key{Schema: s.Schema, Canonical: s.RawName}
		rec := next.mutable(key, touched)

		if rec.Target != nil && !rec.Target.Failed() {
			rec.PreviousTargetCount = rec.Target.RowCount
			rec.HasPrevious = true
		}
		sample := s
		rec.Target = &sample
		if sample.SampledAt.After(next.LastTargetAt) {
			next.LastTargetAt = sample.SampledAt
		}
	}

	for _, s := range sourceSamples {
		key := Key{Schema: s.Schema, Canonical: a.resolve(s.RawName)}
		rec := next.mutable(key, touched)

		replaced := false
		for i := range rec.Sources {
			if rec.Sources[i].RawName == s.RawName {
				rec.Sources[i] = s
				replaced = true
				break
			}
		}
		if !replaced {
			rec.Sources = append(rec.Sources, s)
			if len(rec.Sources) > 1 {
				a.log.WithFields(logrus.Fields{
					"schema":    key.Schema,
					"canonical": key.Canonical,
					"sources":   len(rec.Sources),
				}).Debug("multiple source tables map onto one target")
			}
		}
		if s.SampledAt.After(next.LastSourceAt) {
			next.LastSourceAt = s.SampledAt
		}
	}

	for key := range touched {
		rec := next.Records[key]
		rec.Status = statusOf(rec)
		if ts := rec.updatedAt(); ts.After(next.UpdatedAt) {
			next.UpdatedAt = ts
		}
	}
	return next
}

// mutable returns a copy-on-write record for key, creating it on first
// touch. Untouched records stay shared with the previous snapshot.
func (s *Snapshot) mutable(key Key, touched map[Key]bool) *Record {
	if touched[key] {
		return s.Records[key]
	}
	touched[key] = true

	old, ok := s.Records[key]
	if !ok {
		rec := &Record{Schema: key.Schema, Canonical: key.Canonical}
		s.Records[key] = rec
		return rec
	}
	clone := *old
	clone.Sources = append([]types.RawSample(nil), old.Sources...)
	s.Records[key] = &clone
	return &clone
}

func (r *Record) updatedAt() (latest time.Time) {
	if r.Target != nil {
		latest = r.Target.SampledAt
	}
	for _, s := range r.Sources {
		if s.SampledAt.After(latest) {
			latest = s.SampledAt
		}
	}
	return latest
}

func statusOf(r *Record) Status {
	if r.Target != nil && r.Target.Failed() {
		return StatusError
	}
	for _, s := range r.Sources {
		if s.Failed() {
			return StatusError
		}
	}
	if r.TargetCount() == r.SourceSum() {
		return StatusConsistent
	}
	return StatusInconsistent
}

// statusRank orders statuses for presentation: failures first, then
// mismatches, consistent records last.
func statusRank(s Status) int {
	switch s {
	case StatusError:
		return 0
	case StatusInconsistent:
		return 1
	default:
		return 2
	}
}

// Sorted returns the snapshot's records in presentation order: ERROR, then
// INCONSISTENT, then CONSISTENT; within each group by descending target
// row count, ties by canonical name then schema.
func (s *Snapshot) Sorted() []*Record {
	records := make([]*Record, 0, len(s.Records))
	for _, r := range s.Records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if ra, rb := statusRank(a.Status), statusRank(b.Status); ra != rb {
			return ra < rb
		}
		if a.TargetCount() != b.TargetCount() {
			return a.TargetCount() > b.TargetCount()
		}
		if a.Canonical != b.Canonical {
			return a.Canonical < b.Canonical
		}
		return a.Schema < b.Schema
	})
	return records
}
