package hashing

import (
	"testing"

	"github.com/investkaps/investkaps-dev-sub000/internal/config"
)

func newTestHasher(pepper string) *Hasher {
	return NewHasher(&config.Config{
		Hashing: config.HashingConfig{PhonePepper: pepper},
	})
}

func TestHashPhone(t *testing.T) {
	h := newTestHasher("pepper-a")

	t.Run("deterministic", func(t *testing.T) {
		first := h.HashPhone("919876543210")
		second := h.HashPhone("919876543210")
		if first != second {
			t.Errorf("same input hashed differently: %s vs %s", first, second)
		}
	})

	t.Run("distinct inputs diverge", func(t *testing.T) {
		if h.HashPhone("919876543210") == h.HashPhone("919876543211") {
			t.Error("different phones produced the same hash")
		}
	})

	t.Run("pepper changes the digest", func(t *testing.T) {
		other := newTestHasher("pepper-b")
		if h.HashPhone("919876543210") == other.HashPhone("919876543210") {
			t.Error("different peppers produced the same hash")
		}
	})
}

func TestVerifyPhone(t *testing.T) {
	h := newTestHasher("pepper-a")
	hash := h.HashPhone("919876543210")

	if !h.VerifyPhone("919876543210", hash) {
		t.Error("VerifyPhone rejected a matching pair")
	}
	if h.VerifyPhone("919876543211", hash) {
		t.Error("VerifyPhone accepted a non-matching phone")
	}
}
