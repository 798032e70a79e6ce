package state

import (
	"sync"
	"time"
)

// Store coordinates concurrent access to the latest snapshot. The zero value
// is ready to use.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	seq      uint64
	changed  chan struct{}
}

// Publish replaces the stored snapshot wholesale. Seq is assigned by the
// store and UpdatedAt defaults to now. The stored copy is returned.
func (s *Store) Publish(snap Snapshot) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishLocked(snap.clone())
}

func (s *Store) publishLocked(snap Snapshot) Snapshot {
	s.seq++
	snap.Seq = s.seq
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now()
	}
	s.snapshot = snap
	if s.changed != nil {
		close(s.changed)
		s.changed = nil
	}
	return snap.clone()
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.clone()
}

// Updated returns a channel that is closed by the next publish. Bursts of
// publishes between two receives are coalesced into one wake-up.
func (s *Store) Updated() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.changed == nil {
		s.changed = make(chan struct{})
	}
	return s.changed
}
