package stats

import (
	"sync"
	"time"
)

const maxHistoryPoints = 20

type point struct {
	at    time.Time
	total int64
}

// Progress tracks recent target row totals to derive a migration speed.
// Safe for one writer and concurrent readers.
type Progress struct {
	mu     sync.Mutex
	points []point
}

// Observe records the current total target row count.
func (p *Progress) Observe(at time.Time, totalTarget int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.points = append(p.points, point{at: at, total: totalTarget})
	if len(p.points) > maxHistoryPoints {
		p.points = p.points[len(p.points)-maxHistoryPoints:]
	}
}

// Speed returns rows per second over the recorded window. Only positive
// deltas count: a table being re-estimated downwards is not migration
// progress. Returns 0 until two points exist.
func (p *Progress) Speed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.points) < 2 {
		return 0
	}
	var gained int64
	for i := 1; i < len(p.points); i++ {
		if d := p.points[i].total - p.points[i-1].total; d > 0 {
			gained += d
		}
	}
	window := p.points[len(p.points)-1].at.Sub(p.points[0].at).Seconds()
	if window <= 0 || gained == 0 {
		return 0
	}
	return float64(gained) / window
}

// EstimateRemaining converts an outstanding row difference and a speed
// into a completion estimate. ok is false while no estimate is possible.
func EstimateRemaining(diff int64, speed float64) (time.Duration, bool) {
	if diff < 0 {
		diff = -diff
	}
	if diff == 0 || speed <= 0 {
		return 0, false
	}
	return time.Duration(float64(diff)/speed) * time.Second, true
}
