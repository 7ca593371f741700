package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
	"github.com/JakeFAU/nepjol-importer/internal/status"
)

// StatusStore keeps the status record in a single TTL-bound slot.
type StatusStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	clock   nepjol.Clock
	st      status.Status
	expires time.Time
	set     bool
}

// NewStatusStore constructs a StatusStore. A non-positive ttl keeps the record
// forever.
func NewStatusStore(ttl time.Duration, clock nepjol.Clock) *StatusStore {
	return &StatusStore{ttl: ttl, clock: clock}
}

// Load returns the stored record, or the zero Status once it has expired.
func (s *StatusStore) Load(_ context.Context) (status.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.live() {
		return status.Status{}, nil
	}
	return s.st, nil
}

// Save replaces the record and renews its TTL.
func (s *StatusStore) Save(_ context.Context, st status.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(st)
	return nil
}

// SaveIfIdle stores st unless a live record is marked running.
func (s *StatusStore) SaveIfIdle(_ context.Context, st status.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live() && s.st.IsRunning {
		return false, nil
	}
	s.put(st)
	return true, nil
}

func (s *StatusStore) put(st status.Status) {
	s.st = st
	s.set = true
	if s.ttl > 0 {
		s.expires = s.clock.Now().Add(s.ttl)
	}
}

func (s *StatusStore) live() bool {
	if !s.set {
		return false
	}
	return s.ttl <= 0 || s.clock.Now().Before(s.expires)
}
