package encryption

import (
	"context"
	"errors"
	"testing"

	"github.com/investkaps/investkaps-dev-sub000/internal/config"
)

func newLocalManager() *Manager {
	return NewManager(&config.Config{}, nil)
}

func TestEncryptDecryptPhone(t *testing.T) {
	ctx := context.Background()
	m := newLocalManager()

	t.Run("round trip", func(t *testing.T) {
		envelope, err := m.EncryptPhone(ctx, "919876543210")
		if err != nil {
			t.Fatalf("EncryptPhone: %v", err)
		}
		if len(envelope.Ciphertext) == 0 || envelope.EncryptedDEK == "" || envelope.KeyID == "" {
			t.Fatalf("incomplete envelope: %+v", envelope)
		}

		phone, err := m.DecryptPhone(ctx, envelope)
		if err != nil {
			t.Fatalf("DecryptPhone: %v", err)
		}
		if phone != "919876543210" {
			t.Errorf("decrypted %q, want 919876543210", phone)
		}
	})

	t.Run("fresh data key per envelope", func(t *testing.T) {
		a, err := m.EncryptPhone(ctx, "919876543210")
		if err != nil {
			t.Fatalf("EncryptPhone: %v", err)
		}
		b, err := m.EncryptPhone(ctx, "919876543210")
		if err != nil {
			t.Fatalf("EncryptPhone: %v", err)
		}
		if a.EncryptedDEK == b.EncryptedDEK {
			t.Error("two envelopes share a data key")
		}
		if string(a.Ciphertext) == string(b.Ciphertext) {
			t.Error("two envelopes share ciphertext")
		}
	})

	t.Run("decrypts after cache clear", func(t *testing.T) {
		envelope, err := m.EncryptPhone(ctx, "919876543210")
		if err != nil {
			t.Fatalf("EncryptPhone: %v", err)
		}

		m.ClearCache()

		phone, err := m.DecryptPhone(ctx, envelope)
		if err != nil {
			t.Fatalf("DecryptPhone after ClearCache: %v", err)
		}
		if phone != "919876543210" {
			t.Errorf("decrypted %q, want 919876543210", phone)
		}
	})

	t.Run("tampered ciphertext fails", func(t *testing.T) {
		envelope, err := m.EncryptPhone(ctx, "919876543210")
		if err != nil {
			t.Fatalf("EncryptPhone: %v", err)
		}
		envelope.Ciphertext[len(envelope.Ciphertext)-1] ^= 0xff

		if _, err := m.DecryptPhone(ctx, envelope); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("DecryptPhone = %v, want ErrDecryptionFailed", err)
		}
	})

	t.Run("truncated ciphertext fails", func(t *testing.T) {
		envelope, err := m.EncryptPhone(ctx, "919876543210")
		if err != nil {
			t.Fatalf("EncryptPhone: %v", err)
		}
		envelope.Ciphertext = envelope.Ciphertext[:4]
		m.ClearCache()

		if _, err := m.DecryptPhone(ctx, envelope); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("DecryptPhone = %v, want ErrDecryptionFailed", err)
		}
	})

	t.Run("garbage DEK fails", func(t *testing.T) {
		envelope, err := m.EncryptPhone(ctx, "919876543210")
		if err != nil {
			t.Fatalf("EncryptPhone: %v", err)
		}
		envelope.EncryptedDEK = "%%%not-base64%%%"
		m.ClearCache()

		if _, err := m.DecryptPhone(ctx, envelope); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("DecryptPhone = %v, want ErrDecryptionFailed", err)
		}
	})
}
