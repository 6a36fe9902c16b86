// Package ui renders the live terminal dashboard and the one-shot text
// report over published snapshots.
package ui

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/izerui/mysql-migration-monitor/internal/aggregate"
	"github.com/izerui/mysql-migration-monitor/internal/snapshot"
	"github.com/izerui/mysql-migration-monitor/internal/stats"
)

// Controls is what the dashboard needs from the scheduler; satisfied by
// monitor.Scheduler.
type Controls interface {
	TogglePause() bool
	Paused() bool
	ForceRefresh()
}

// Dashboard is the interactive terminal view: a stats header plus the
// aggregated table list, refreshed on every snapshot publish.
type Dashboard struct {
	app      *tview.Application
	header   *tview.TextView
	table    *tview.Table
	footer   *tview.TextView
	store    *snapshot.Store
	controls Controls
	progress *stats.Progress
	maxRows  int

	sortMode   sortMode
	filterMode filterMode
	events     chan struct{}
}

// NewDashboard builds the dashboard over a snapshot store. maxRows caps
// how many records are rendered; the counts in the header always cover
// everything.
func NewDashboard(store *snapshot.Store, controls Controls, maxRows int) *Dashboard {
	header := tview.NewTextView().SetDynamicColors(true).SetWrap(false)

	table := tview.NewTable().
		SetFixed(1, 0).
		SetSelectable(true, false)
	table.SetBorder(true).SetTitle(" tables ").SetTitleAlign(tview.AlignLeft)

	footer := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	footer.SetText("[gray]q[white] quit  [gray]p[white] pause  [gray]s[white] sort  [gray]f[white] filter  [gray]r[white] re-scan")

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, 4, 0, false).
		AddItem(table, 0, 1, true).
		AddItem(footer, 1, 0, false)

	d := &Dashboard{
		app:      tview.NewApplication().SetRoot(layout, true).EnableMouse(false),
		header:   header,
		table:    table,
		footer:   footer,
		store:    store,
		controls: controls,
		progress: &stats.Progress{},
		maxRows:  maxRows,
		events:   make(chan struct{}, 1),
	}
	d.app.SetInputCapture(d.handleKey)
	return d
}

// Run blocks until the user quits or the terminal is torn down.
func (d *Dashboard) Run() error {
	d.store.Subscribe(func(*aggregate.Snapshot) {
		select {
		case d.events <- struct{}{}:
		default:
		}
	})

	go func() {
		// Redraw at least once a second so the runtime clock and relative
		// ages move even when no new snapshot lands.
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-d.events:
			case <-ticker.C:
			}
			d.app.QueueUpdateDraw(d.render)
		}
	}()

	d.render()
	return d.app.Run()
}

// Stop tears the terminal down; safe to call from any goroutine.
func (d *Dashboard) Stop() {
	d.app.Stop()
}

func (d *Dashboard) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	switch ev.Rune() {
	case 'q', 'Q':
		d.app.Stop()
		return nil
	case 'p', 'P':
		d.controls.TogglePause()
		d.render()
		return nil
	case 's', 'S':
		d.sortMode = d.sortMode.next()
		d.render()
		return nil
	case 'f', 'F':
		d.filterMode = d.filterMode.next()
		d.render()
		return nil
	case 'r', 'R':
		d.controls.ForceRefresh()
		return nil
	}
	if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
		d.app.Stop()
		return nil
	}
	return ev
}

func (d *Dashboard) render() {
	snap := d.store.Load()
	records := snap.Sorted()
	summary := stats.Summarize(records)

	d.progress.Observe(time.Now(), summary.TotalTarget)
	d.renderHeader(snap, summary)
	d.renderTable(records)
}

func (d *Dashboard) renderHeader(snap *aggregate.Snapshot, s stats.Summary) {
	runtime := stats.FormatDuration(time.Since(snap.StartedAt))
	speed := d.progress.Speed()

	line1 := fmt.Sprintf("[white]tables [yellow]%d[white] (ok [green]%d[white] drift [orange]%d[white] err [red]%d[white])  consistency [yellow]%.1f%%[white]  runtime %s",
		s.TotalTables, s.Consistent, s.Inconsistent, s.ErrorTables, s.ConsistencyRate(), runtime)

	line2 := fmt.Sprintf("[white]target [aqua]%s[white]  source [green]%s[white]  diff [yellow]%+d[white]  ticks t:%d s:%d",
		humanize.Comma(s.TotalTarget), humanize.Comma(s.TotalSource), s.TotalDiff,
		snap.TargetTicks, snap.SourceTicks)

	line3 := fmt.Sprintf("[white]sort [aqua]%s[white]  filter [aqua]%s[white]", d.sortMode, d.filterMode)
	if speed > 0 {
		line3 += fmt.Sprintf("  speed [green]%.1f rows/s[white]", speed)
		if eta, ok := stats.EstimateRemaining(s.TotalDiff, speed); ok {
			line3 += fmt.Sprintf("  eta [yellow]%s[white]", stats.FormatDuration(eta))
		}
	}
	if snap.SourceStale {
		line3 += "  [orange]source stale[white]"
	}
	if d.controls.Paused() {
		line3 += "  [red]PAUSED[white]"
	}

	d.header.SetText(line1 + "\n" + line2 + "\n" + line3)
}

var columns = []string{"#", "SCHEMA", "TABLE", "ST", "TARGET", "SOURCE", "DIFF", "CHANGE", "TGT AGE", "SRC AGE", "SRCS"}

func (d *Dashboard) renderTable(records []*aggregate.Record) {
	records = applyFilter(records, d.filterMode)
	applySort(records, d.sortMode)
	if d.maxRows > 0 && len(records) > d.maxRows {
		records = records[:d.maxRows]
	}

	d.table.Clear()
	for col, name := range columns {
		cell := tview.NewTableCell("[::b]" + name).
			SetSelectable(false).
			SetExpansion(expansionFor(col))
		d.table.SetCell(0, col, cell)
	}

	now := time.Now()
	for i, r := range records {
		row := i + 1
		cells := []string{
			fmt.Sprintf("[gray]%d", row),
			"[mediumpurple]" + clip(r.Schema, 15),
			"[dodgerblue]" + clip(r.Canonical, 38),
			statusCell(r),
			targetCell(r),
			sourceCell(r),
			diffCell(r),
			changeCell(r),
			ageCell(targetAge(r, now)),
			ageCell(sourceAge(r, now)),
			fanInCell(r),
		}
		for col, text := range cells {
			d.table.SetCell(row, col, tview.NewTableCell(text).SetExpansion(expansionFor(col)))
		}
	}
}

func expansionFor(col int) int {
	// Let the table name column soak up the spare width.
	if col == 2 {
		return 1
	}
	return 0
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func statusCell(r *aggregate.Record) string {
	switch r.Status {
	case aggregate.StatusConsistent:
		return "[green]OK"
	case aggregate.StatusInconsistent:
		return "[orange]DRIFT"
	default:
		return "[red]ERR"
	}
}

func targetCell(r *aggregate.Record) string {
	if r.Target == nil {
		return "[gray]-"
	}
	if r.Target.Failed() {
		return "[red]ERROR"
	}
	if r.Target.IsEstimated {
		return "[blue]~" + humanize.Comma(r.Target.RowCount)
	}
	return "[aqua]" + humanize.Comma(r.Target.RowCount)
}

func sourceCell(r *aggregate.Record) string {
	if len(r.Sources) == 0 {
		return "[gray]-"
	}
	for _, s := range r.Sources {
		if s.Failed() {
			return "[red]ERROR"
		}
	}
	estimated := false
	for _, s := range r.Sources {
		if s.IsEstimated {
			estimated = true
			break
		}
	}
	if estimated {
		return "[green]~" + humanize.Comma(r.SourceSum())
	}
	return "[green]" + humanize.Comma(r.SourceSum())
}

func diffCell(r *aggregate.Record) string {
	if r.Status == aggregate.StatusError {
		return "[red]ERROR"
	}
	switch diff := r.Diff(); {
	case diff > 0:
		return fmt.Sprintf("[green]%+d", diff)
	case diff < 0:
		return fmt.Sprintf("[orange]%+d", diff)
	default:
		return "[gray]0"
	}
}

func changeCell(r *aggregate.Record) string {
	switch delta := r.Delta(); {
	case delta > 0:
		return fmt.Sprintf("[green]+%s", humanize.Comma(delta))
	case delta < 0:
		return fmt.Sprintf("[orange]%s", humanize.Comma(delta))
	default:
		return "[gray]0"
	}
}

func targetAge(r *aggregate.Record, now time.Time) (time.Duration, bool) {
	if r.Target == nil {
		return 0, false
	}
	return now.Sub(r.Target.SampledAt), true
}

func sourceAge(r *aggregate.Record, now time.Time) (time.Duration, bool) {
	if len(r.Sources) == 0 {
		return 0, false
	}
	oldest := r.Sources[0].SampledAt
	for _, s := range r.Sources[1:] {
		if s.SampledAt.Before(oldest) {
			oldest = s.SampledAt
		}
	}
	return now.Sub(oldest), true
}

func ageCell(age time.Duration, ok bool) string {
	if !ok {
		return "[gray]-"
	}
	switch {
	case age < time.Minute:
		return "[green]" + stats.FormatDuration(age)
	case age < time.Hour:
		return "[aqua]" + stats.FormatDuration(age)
	default:
		return "[orange]" + stats.FormatDuration(age)
	}
}

func fanInCell(r *aggregate.Record) string {
	n := r.SourceCount()
	switch {
	case n >= 5:
		return fmt.Sprintf("[orange]%d", n)
	case n >= 2:
		return fmt.Sprintf("[aqua]%d", n)
	default:
		return fmt.Sprintf("[gray]%d", n)
	}
}
