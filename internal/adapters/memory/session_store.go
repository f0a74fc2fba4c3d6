// Package memory holds the in-process state shared by request handlers and
// the background evictor.
package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

// SessionStore implements ports.SessionStore with a single RWMutex.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.Session)}
}

// Upsert replaces the session's entry with p observed at now.
func (s *SessionStore) Upsert(id string, p domain.GeoPoint, now time.Time) error {
	if id == "" {
		return domain.ErrMissingSessionID
	}
	if !p.Finite() {
		return fmt.Errorf("%w: non-finite position", domain.ErrInvalidCoordinateFormat)
	}

	// Callers may hand in views of reused request buffers.
	id = strings.Clone(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = domain.Session{ID: id, Position: p, LastSeen: now}
	return nil
}

// Get returns a copy of the session.
func (s *SessionStore) Get(id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return sess, nil
}

// ListIDs returns the ids present at call time, sorted.
func (s *SessionStore) ListIDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Snapshot returns every session sorted by id.
func (s *SessionStore) Snapshot() []domain.Session {
	s.mu.RLock()
	out := make([]domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RemoveStale deletes ids that are still stale or invalid at removal time.
// A session seen at or after cutoff survives.
func (s *SessionStore) RemoveStale(ids []string, cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		sess, ok := s.sessions[id]
		if !ok {
			continue
		}
		if sess.Valid() && !sess.LastSeen.Before(cutoff) {
			continue
		}
		delete(s.sessions, id)
		removed = append(removed, id)
	}
	return removed
}

// Len returns the number of sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
