// Package aggregate folds raw endpoint samples into immutable report
// snapshots keyed by canonical table identity.
package aggregate

import (
	"time"

	"github.com/izerui/mysql-migration-monitor/pkg/types"
)

// Status classifies one aggregated record.
type Status int

const (
	StatusConsistent Status = iota
	StatusInconsistent
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusConsistent:
		return "CONSISTENT"
	case StatusInconsistent:
		return "INCONSISTENT"
	default:
		return "ERROR"
	}
}

// Key identifies one logical table across both endpoints.
type Key struct {
	Schema    string
	Canonical string
}

// Record is one row of the report: the target table plus every source
// table that resolves onto it. Records are rebuilt wholesale each fold,
// never mutated in place.
type Record struct {
	Schema    string
	Canonical string

	// Target is the latest target-side sample, nil while the target
	// table has not been observed.
	Target *types.RawSample
	// Sources holds one sample per contributing raw source table, in
	// resolver discovery order.
	Sources []types.RawSample

	PreviousTargetCount int64
	// HasPrevious guards Delta: the first observation has no trend.
	HasPrevious bool

	Status Status
}

// Key returns the record's map key.
func (r *Record) Key() Key {
	return Key{Schema: r.Schema, Canonical: r.Canonical}
}

// TargetCount is the target row count, zero when the target table is
// absent or its sample failed.
func (r *Record) TargetCount() int64 {
	if r.Target == nil || r.Target.Failed() {
		return 0
	}
	return r.Target.RowCount
}

// SourceSum is the summed row count over all contributing source tables.
func (r *Record) SourceSum() int64 {
	var sum int64
	for _, s := range r.Sources {
		sum += s.RowCount
	}
	return sum
}

// SourceCount is the number of raw source tables feeding this record.
func (r *Record) SourceCount() int {
	return len(r.Sources)
}

// Diff is the signed difference target minus source sum; positive means
// the target holds more rows than the sources.
func (r *Record) Diff() int64 {
	return r.TargetCount() - r.SourceSum()
}

// Delta is the signed change of the target count since the previous fold
// that touched it, zero on first observation.
func (r *Record) Delta() int64 {
	if !r.HasPrevious {
		return 0
	}
	return r.TargetCount() - r.PreviousTargetCount
}

// Snapshot is one complete aggregated view. It is exclusively owned by the
// snapshot store and replaced, never mutated, on publish.
type Snapshot struct {
	Records map[Key]*Record

	TargetTicks uint64
	SourceTicks uint64
	// SourceStale is set when the latest due source poll was skipped
	// because the previous one was still in flight.
	SourceStale bool

	StartedAt    time.Time
	UpdatedAt    time.Time
	LastTargetAt time.Time
	LastSourceAt time.Time
}

// NewSnapshot returns an empty snapshot anchored at the process start time.
func NewSnapshot(startedAt time.Time) *Snapshot {
	return &Snapshot{
		Records:   make(map[Key]*Record),
		StartedAt: startedAt,
	}
}
