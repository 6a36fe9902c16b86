package ui

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/izerui/mysql-migration-monitor/internal/aggregate"
	"github.com/izerui/mysql-migration-monitor/internal/stats"
)

// WriteReport prints a one-shot plain-text consistency report, in the
// snapshot's presentation order. Used by the check subcommand.
func WriteReport(w io.Writer, snap *aggregate.Snapshot) error {
	records := snap.Sorted()
	summary := stats.Summarize(records)

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tSCHEMA\tTABLE\tTARGET\tSOURCE\tDIFF\tSRCS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%+d\t%d\n",
			r.Status,
			r.Schema,
			r.Canonical,
			countText(r.Target != nil && r.Target.Failed(), r.TargetCount(), r.Target != nil && r.Target.IsEstimated),
			sourceText(r),
			r.Diff(),
			r.SourceCount(),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d tables: %d consistent, %d inconsistent, %d error (%.1f%% consistent)\ntarget %s rows, source %s rows, diff %+d\n",
		summary.TotalTables, summary.Consistent, summary.Inconsistent, summary.ErrorTables,
		summary.ConsistencyRate(),
		humanize.Comma(summary.TotalTarget), humanize.Comma(summary.TotalSource), summary.TotalDiff)
	return err
}

func countText(failed bool, count int64, estimated bool) string {
	if failed {
		return "ERROR"
	}
	if estimated {
		return "~" + humanize.Comma(count)
	}
	return humanize.Comma(count)
}

func sourceText(r *aggregate.Record) string {
	if len(r.Sources) == 0 {
		return "-"
	}
	failed, estimated := false, false
	for _, s := range r.Sources {
		if s.Failed() {
			failed = true
		}
		if s.IsEstimated {
			estimated = true
		}
	}
	return countText(failed, r.SourceSum(), estimated)
}
