// Package stats derives presentation-level summaries from aggregated
// snapshots: totals, consistency rate, migration speed and remaining time.
package stats

import (
	"fmt"
	"time"

	"github.com/izerui/mysql-migration-monitor/internal/aggregate"
)

// Summary condenses one snapshot for the dashboard header.
type Summary struct {
	TotalTables   int
	ValidTables   int
	ErrorTables   int
	Consistent    int
	Inconsistent  int
	TotalTarget   int64
	TotalSource   int64
	TotalDiff     int64
	ChangedTables int
	TotalChange   int64
}

// Summarize folds the snapshot's records into header totals. Row totals
// are computed over valid (non-ERROR) records only, so a broken table
// cannot distort the aggregate difference.
func Summarize(records []*aggregate.Record) Summary {
	var s Summary
	s.TotalTables = len(records)
	for _, r := range records {
		switch r.Status {
		case aggregate.StatusError:
			s.ErrorTables++
			continue
		case aggregate.StatusConsistent:
			s.Consistent++
		case aggregate.StatusInconsistent:
			s.Inconsistent++
		}
		s.ValidTables++
		s.TotalTarget += r.TargetCount()
		s.TotalSource += r.SourceSum()
		if d := r.Delta(); d != 0 {
			s.ChangedTables++
			s.TotalChange += d
		}
	}
	s.TotalDiff = s.TotalTarget - s.TotalSource
	return s
}

// ConsistencyRate is the share of consistent tables, in percent.
func (s Summary) ConsistencyRate() float64 {
	if s.TotalTables == 0 {
		return 0
	}
	return float64(s.Consistent) / float64(s.TotalTables) * 100
}

// FormatDuration renders a duration in the largest two natural units,
// e.g. "42s", "3m12s", "2h05m", "1d4h".
func FormatDuration(d time.Duration) string {
	seconds := int64(d.Seconds())
	if seconds < 0 {
		seconds = 0
	}
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm%02ds", seconds/60, seconds%60)
	case seconds < 86400:
		return fmt.Sprintf("%dh%02dm", seconds/3600, (seconds%3600)/60)
	default:
		return fmt.Sprintf("%dd%dh", seconds/86400, (seconds%86400)/3600)
	}
}
