package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samirrijal/signalmap/internal/core/domain"
	"github.com/samirrijal/signalmap/internal/core/ports"
)

// TestRegistry implements ports.TestIdentityRegistry.
type TestRegistry struct {
	mu    sync.RWMutex
	ids   map[string]domain.TestIdentity
	idgen ports.IDGenerator
}

// NewTestRegistry creates a registry drawing ids from gen.
func NewTestRegistry(gen ports.IDGenerator) *TestRegistry {
	if gen == nil {
		gen = NewRandomGenerator()
	}
	return &TestRegistry{ids: make(map[string]domain.TestIdentity), idgen: gen}
}

// Issue generates a fresh id for the session, replacing any previous one.
func (r *TestRegistry) Issue(sessionID string, now time.Time) (int64, error) {
	if sessionID == "" {
		return 0, domain.ErrMissingSessionID
	}
	id, err := r.idgen.Next()
	if err != nil {
		return 0, fmt.Errorf("generate test id: %w", err)
	}

	sessionID = strings.Clone(sessionID)

	r.mu.Lock()
	r.ids[sessionID] = domain.TestIdentity{SessionID: sessionID, TestID: id, IssuedAt: now}
	r.mu.Unlock()
	return id, nil
}

// Lookup returns the session's current test id.
func (r *TestRegistry) Lookup(sessionID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ti, ok := r.ids[sessionID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrNoActiveTestForSession, sessionID)
	}
	return ti.TestID, nil
}

// Remove drops the identities of the given sessions.
func (r *TestRegistry) Remove(sessionIDs ...string) int {
	if len(sessionIDs) == 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range sessionIDs {
		if _, ok := r.ids[id]; ok {
			delete(r.ids, id)
			n++
		}
	}
	return n
}

// RemoveIssuedBefore drops identities issued before cutoff whose
// session keep does not claim. keep must not call back into the registry.
func (r *TestRegistry) RemoveIssuedBefore(cutoff time.Time, keep func(sessionID string) bool) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for id, ti := range r.ids {
		if !ti.IssuedAt.Before(cutoff) {
			continue
		}
		if keep != nil && keep(id) {
			continue
		}
		delete(r.ids, id)
		removed = append(removed, id)
	}
	return removed
}

// Len returns the number of live identities.
func (r *TestRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}
