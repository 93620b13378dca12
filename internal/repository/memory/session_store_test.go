package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/investkaps/investkaps-dev-sub000/internal/models"
	"github.com/investkaps/investkaps-dev-sub000/internal/repository"
)

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	newSession := func(key string) *models.OTPSession {
		return &models.OTPSession{
			Key:        key,
			LastSentAt: now,
			ExpiresAt:  now.Add(10 * time.Minute),
		}
	}

	t.Run("get on absent key returns nil without error", func(t *testing.T) {
		s := NewSessionStore()

		session, err := s.Get(ctx, "missing")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if session != nil {
			t.Errorf("session = %+v, want nil", session)
		}
	})

	t.Run("put then get round-trips", func(t *testing.T) {
		s := NewSessionStore()

		if err := s.Put(ctx, newSession("k")); err != nil {
			t.Fatalf("Put: %v", err)
		}

		session, err := s.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if session == nil || !session.LastSentAt.Equal(now) || session.Attempts != 0 {
			t.Errorf("unexpected session: %+v", session)
		}
	})

	t.Run("get returns a copy", func(t *testing.T) {
		s := NewSessionStore()
		s.Put(ctx, newSession("k"))

		first, _ := s.Get(ctx, "k")
		first.Attempts = 99

		second, _ := s.Get(ctx, "k")
		if second.Attempts != 0 {
			t.Errorf("mutation through Get leaked into the store")
		}
	})

	t.Run("put replaces wholesale", func(t *testing.T) {
		s := NewSessionStore()
		s.Put(ctx, newSession("k"))
		s.IncrementAttempts(ctx, "k")

		s.Put(ctx, newSession("k"))

		session, _ := s.Get(ctx, "k")
		if session.Attempts != 0 {
			t.Errorf("attempts = %d, want 0 after replacement", session.Attempts)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := NewSessionStore()
		s.Put(ctx, newSession("k"))

		if err := s.Delete(ctx, "k"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := s.Delete(ctx, "k"); err != nil {
			t.Fatalf("second Delete: %v", err)
		}

		session, _ := s.Get(ctx, "k")
		if session != nil {
			t.Error("session survived delete")
		}
	})

	t.Run("increment on absent key", func(t *testing.T) {
		s := NewSessionStore()

		if _, err := s.IncrementAttempts(ctx, "missing"); !errors.Is(err, repository.ErrSessionNotFound) {
			t.Fatalf("IncrementAttempts = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("concurrent increments never lose updates", func(t *testing.T) {
		s := NewSessionStore()
		s.Put(ctx, newSession("k"))

		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.IncrementAttempts(ctx, "k"); err != nil {
					t.Errorf("IncrementAttempts: %v", err)
				}
			}()
		}
		wg.Wait()

		session, _ := s.Get(ctx, "k")
		if session.Attempts != 100 {
			t.Errorf("attempts = %d, want 100", session.Attempts)
		}
	})

	t.Run("len tracks live sessions", func(t *testing.T) {
		s := NewSessionStore()
		s.Put(ctx, newSession("a"))
		s.Put(ctx, newSession("b"))
		s.Delete(ctx, "a")

		if got := s.Len(); got != 1 {
			t.Errorf("Len = %d, want 1", got)
		}
	})
}
