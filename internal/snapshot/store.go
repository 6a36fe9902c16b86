// Package snapshot holds the current aggregated view and hands it to
// readers without locking.
package snapshot

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/izerui/mysql-migration-monitor/internal/aggregate"
)

// Store owns the latest snapshot generation. Publish swaps the pointer
// atomically, so readers always observe a complete prior generation and
// the read path takes no locks.
type Store struct {
	current atomic.Pointer[aggregate.Snapshot]

	mu        sync.Mutex
	listeners []func(*aggregate.Snapshot)
}

// NewStore seeds a store with an empty snapshot anchored at startedAt.
func NewStore(startedAt time.Time) *Store {
	s := &Store{}
	s.current.Store(aggregate.NewSnapshot(startedAt))
	return s
}

// Load returns the current snapshot. The returned value is immutable and
// must not be modified.
func (s *Store) Load() *aggregate.Snapshot {
	return s.current.Load()
}

// Publish installs the next generation and notifies subscribers.
func (s *Store) Publish(next *aggregate.Snapshot) {
	s.current.Store(next)

	s.mu.Lock()
	listeners := s.listeners
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(next)
	}
}

// Subscribe registers a callback invoked on every publish, from the
// publisher's goroutine. Callbacks must be fast and must not call Publish.
func (s *Store) Subscribe(fn func(*aggregate.Snapshot)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}
