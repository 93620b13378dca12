package repository

import (
	"context"
	"errors"

	"github.com/investkaps/investkaps-dev-sub000/internal/models"
)

// ErrSessionNotFound is returned by IncrementAttempts when the session vanished
// between lookup and update.
var ErrSessionNotFound = errors.New("otp session not found")

// SessionStore holds the live OTP session per normalized phone key. Put
// replaces any prior session wholesale. IncrementAttempts must be atomic:
// concurrent failed verifications for one key may never lose an increment.
type SessionStore interface {
	Get(ctx context.Context, key string) (*models.OTPSession, error)
	Put(ctx context.Context, session *models.OTPSession) error
	Delete(ctx context.Context, key string) error

	// IncrementAttempts bumps the failed-attempt counter and returns the new
	// value, or ErrSessionNotFound if no session exists for the key.
	IncrementAttempts(ctx context.Context, key string) (int, error)
}
