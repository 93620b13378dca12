package models

import "time"

// OTPSession tracks the outstanding one-time code for a single phone key.
// At most one live session exists per key; a re-issuance replaces the session
// wholesale. The code itself is never held here — the SMS aggregator is the
// source of truth for code correctness.
type OTPSession struct {
	Key        string    `json:"key"`
	LastSentAt time.Time `json:"last_sent_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Attempts   int       `json:"attempts"`
}

// Expired reports whether the session's code is past its TTL at the given
// instant.
func (s *OTPSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
