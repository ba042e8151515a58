// Package interview owns the interview session state machine: question
// selection, answer scoring, result accumulation, and the final assessment.
package interview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/safarprep/interview-coach/internal/domain"
)

// sessionState is the orchestrator-private state of one active session.
type sessionState struct {
	mu sync.Mutex

	session     domain.Session
	questions   []domain.Question
	cursor      int
	lastTouched time.Time
}

// Store holds active sessions in memory. It is an explicit object with a
// lifecycle (constructed at startup, injected into the service, swept
// periodically) rather than package-level state, so tests get isolated
// stores.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState
	ttl      time.Duration

	now func() time.Time
}

// NewStore builds a Store whose sessions expire after ttl of inactivity.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*sessionState),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *Store) put(st *sessionState) {
	s.mu.Lock()
	s.sessions[st.session.ID] = st
	s.mu.Unlock()
}

func (s *Store) get(id string) (*sessionState, bool) {
	s.mu.RLock()
	st, ok := s.sessions[id]
	s.mu.RUnlock()
	return st, ok
}

func (s *Store) remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len reports the number of active sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle past the ttl and returns how many were
// dropped. Swept sessions become unreachable; later calls for them fail with
// a not-found error.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, st := range s.sessions {
		if st.lastTouched.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps on the given interval until ctx is done. Fire-and-forget
// maintenance, not part of the request path.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(); n > 0 {
				slog.Info("swept abandoned interview sessions", slog.Int("removed", n))
			}
		}
	}
}
