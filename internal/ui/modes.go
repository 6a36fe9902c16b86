package ui

import (
	"sort"

	"github.com/izerui/mysql-migration-monitor/internal/aggregate"
)

// sortMode cycles through the dashboard sort orders.
type sortMode int

const (
	sortStatus sortMode = iota // the snapshot's presentation order
	sortDiff
	sortTargetRows
	sortName
	sortModeCount
)

func (m sortMode) next() sortMode { return (m + 1) % sortModeCount }

func (m sortMode) String() string {
	switch m {
	case sortStatus:
		return "status"
	case sortDiff:
		return "diff"
	case sortTargetRows:
		return "target"
	default:
		return "name"
	}
}

// filterMode cycles through the dashboard row filters.
type filterMode int

const (
	filterAll filterMode = iota
	filterInconsistent
	filterConsistent
	filterError
	filterModeCount
)

func (m filterMode) next() filterMode { return (m + 1) % filterModeCount }

func (m filterMode) String() string {
	switch m {
	case filterAll:
		return "all"
	case filterInconsistent:
		return "drift"
	case filterConsistent:
		return "ok"
	default:
		return "error"
	}
}

func applyFilter(records []*aggregate.Record, mode filterMode) []*aggregate.Record {
	if mode == filterAll {
		return records
	}
	var want aggregate.Status
	switch mode {
	case filterInconsistent:
		want = aggregate.StatusInconsistent
	case filterConsistent:
		want = aggregate.StatusConsistent
	default:
		want = aggregate.StatusError
	}
	kept := make([]*aggregate.Record, 0, len(records))
	for _, r := range records {
		if r.Status == want {
			kept = append(kept, r)
		}
	}
	return kept
}

// applySort reorders records in place. sortStatus keeps the order the
// snapshot already provides.
func applySort(records []*aggregate.Record, mode sortMode) {
	switch mode {
	case sortDiff:
		sort.SliceStable(records, func(i, j int) bool {
			return abs(records[i].Diff()) > abs(records[j].Diff())
		})
	case sortTargetRows:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].TargetCount() > records[j].TargetCount()
		})
	case sortName:
		sort.SliceStable(records, func(i, j int) bool {
			if records[i].Schema != records[j].Schema {
				return records[i].Schema < records[j].Schema
			}
			return records[i].Canonical < records[j].Canonical
		})
	}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
