package bucketing

import (
	"testing"
	"time"

	"github.com/investkaps/investkaps-dev-sub000/internal/config"
)

func newTestManager() *Manager {
	return NewManager(&config.Config{
		Bucketing: config.BucketingConfig{UserBuckets: 64, EventBuckets: 16},
	})
}

func TestBuckets(t *testing.T) {
	m := newTestManager()

	t.Run("stable assignment", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			if m.UserBucket("user-1") != m.UserBucket("user-1") {
				t.Fatal("user bucket assignment is not stable")
			}
		}
	})

	t.Run("within range", func(t *testing.T) {
		ids := []string{"a", "b", "user-42", "f81d4fae-7dec-11d0-a765-00a0c91e6bf6"}
		for _, id := range ids {
			if b := m.UserBucket(id); b < 0 || b >= 64 {
				t.Errorf("UserBucket(%q) = %d, out of range", id, b)
			}
			if b := m.EventBucket(id); b < 0 || b >= 16 {
				t.Errorf("EventBucket(%q) = %d, out of range", id, b)
			}
		}
	})

	t.Run("zero buckets falls back to zero", func(t *testing.T) {
		m := NewManager(&config.Config{})
		if b := m.UserBucket("anything"); b != 0 {
			t.Errorf("UserBucket = %d, want 0", b)
		}
	})
}

func TestDateBucket(t *testing.T) {
	m := newTestManager()

	at := time.Date(2025, 6, 1, 23, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	if got := m.DateBucket(at); got != "2025-06-01" {
		t.Errorf("DateBucket = %s, want 2025-06-01", got)
	}
}
