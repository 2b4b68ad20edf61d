package dashboard

import (
	"sync"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
)

// LocalStore is the in-process copy of the latest snapshot.
type LocalStore struct {
	mu      sync.RWMutex
	snap    *incident.Snapshot
	summary incident.SnapshotSummary
}

func NewLocalStore() *LocalStore { return &LocalStore{} }

// Set replaces the held snapshot.
func (s *LocalStore) Set(snap *incident.Snapshot, summary incident.SnapshotSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.summary = summary
}

// Get returns the held snapshot, if any.
func (s *LocalStore) Get() (*incident.Snapshot, incident.SnapshotSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.summary, s.snap != nil
}
