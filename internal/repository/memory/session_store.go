package memory

import (
	"context"
	"sync"

	"github.com/investkaps/investkaps-dev-sub000/internal/models"
	"github.com/investkaps/investkaps-dev-sub000/internal/repository"
)

// SessionStore is the single-process session store: a plain map guarded by a
// mutex. Expired entries are not swept in the background — expiry is detected
// lazily on Verify and replaced wholesale on Issue, and entries are short-lived
// by construction.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.OTPSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*models.OTPSession),
	}
}

func (s *SessionStore) Get(ctx context.Context, key string) (*models.OTPSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, nil
	}
	// Copy out so callers never mutate shared state without going through Put.
	copied := *sess
	return &copied, nil
}

func (s *SessionStore) Put(ctx context.Context, session *models.OTPSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	s.sessions[session.Key] = &copied
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, key)
	return nil
}

func (s *SessionStore) IncrementAttempts(ctx context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return 0, repository.ErrSessionNotFound
	}
	sess.Attempts++
	return sess.Attempts, nil
}

// Len reports the number of live sessions, for stats endpoints.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
