package hashing

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/investkaps/investkaps-dev-sub000/internal/config"
)

// Hasher produces the deterministic phone digest used as the directory index
// key. Determinism is the point: the same number must always map to the same
// phone_hash so lookups work without storing the raw number. The keyed HMAC
// (pepper from config) stops offline enumeration of the 10-digit space from a
// leaked table.
type Hasher struct {
	pepper []byte
}

func NewHasher(cfg *config.Config) *Hasher {
	return &Hasher{
		pepper: []byte(cfg.Hashing.PhonePepper),
	}
}

// HashPhone digests a normalized phone key (country code + national number).
func (h *Hasher) HashPhone(phoneKey string) string {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(phoneKey))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyPhone reports whether phoneKey digests to hash, in constant time.
func (h *Hasher) VerifyPhone(phoneKey, hash string) bool {
	computed := h.HashPhone(phoneKey)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}
