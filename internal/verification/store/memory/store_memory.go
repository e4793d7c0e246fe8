package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"kycflow/internal/verification/models"
	id "kycflow/pkg/domain"
	"kycflow/pkg/platform/sentinel"
)

// InMemorySessionStore keeps sessions in process. Suitable for development,
// tests and single-instance deployments.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
}

func New() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[id.SessionID]*models.Session)}
}

func (s *InMemorySessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session %s: %w", session.ID, sentinel.ErrConflict)
	}
	session.Version = 1
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *InMemorySessionStore) Load(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return stored.Clone(), nil
}

// Save replaces the stored session if its version still matches, then bumps
// the caller's Version.
func (s *InMemorySessionStore) Save(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[session.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != session.Version {
		return fmt.Errorf("session %s at version %d, have %d: %w", session.ID, stored.Version, session.Version, sentinel.ErrConflict)
	}
	session.Version++
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *InMemorySessionStore) ListBySubject(_ context.Context, subjectID id.SubjectID) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Session
	for _, stored := range s.sessions {
		if stored.Subject.ID == subjectID {
			out = append(out, stored.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.Session) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// ListIdle returns in-progress sessions whose last activity is before cutoff,
// oldest first.
func (s *InMemorySessionStore) ListIdle(_ context.Context, cutoff time.Time, limit int) ([]id.SessionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var idle []*models.Session
	for _, stored := range s.sessions {
		if stored.Status == models.SessionInProgress && stored.LastActivityAt.Before(cutoff) {
			idle = append(idle, stored)
		}
	}
	slices.SortFunc(idle, func(a, b *models.Session) int {
		return a.LastActivityAt.Compare(b.LastActivityAt)
	})
	if limit > 0 && len(idle) > limit {
		idle = idle[:limit]
	}
	ids := make([]id.SessionID, len(idle))
	for i, st := range idle {
		ids[i] = st.ID
	}
	return ids, nil
}
