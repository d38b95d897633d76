package memory

import (
	"context"
	"sync"
	"time"

	"github.com/PabloGalante/chat-relay/internal/domain"
)

type record struct {
	turns     domain.Conversation
	updatedAt time.Time
}

// SessionStore is an in-process domain.SessionStore.
// It does not survive restarts and is suited to development / single-instance mode.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.Identity]*record
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.Identity]*record),
		now:      time.Now,
	}
}

// WithClock overrides the store's clock. Used by tests.
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

func (s *SessionStore) Load(_ context.Context, id domain.Identity) (domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[id]
	if !ok {
		return domain.Conversation{}, nil
	}
	return rec.turns.Clone(), nil
}

func (s *SessionStore) Save(_ context.Context, id domain.Identity, conv domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = &record{
		turns:     conv.Clone(),
		updatedAt: s.now(),
	}
	return nil
}

func (s *SessionStore) Expire(_ context.Context, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

func (s *SessionStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.sessions {
		if rec.updatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored conversations.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) Close() error { return nil }
