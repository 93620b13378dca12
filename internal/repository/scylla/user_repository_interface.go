package scylla

import (
	"context"
	"errors"
	"time"

	"github.com/investkaps/investkaps-dev-sub000/internal/models"
)

// ErrUserNotFound is returned when no directory record exists for the lookup.
var ErrUserNotFound = errors.New("user not found")

// UserRepository is the account directory: registration records plus the
// phone-hash index used for already-verified checks and verification
// write-back.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByPhoneHash(ctx context.Context, phoneHash string) (*models.User, error)

	// MarkPhoneVerified flips the verified flag and persists the phone
	// material carried on user. previousPhoneHash, when different from the
	// new hash, names the stale index row to drop.
	MarkPhoneVerified(ctx context.Context, user *models.User, previousPhoneHash string, verifiedAt time.Time) error

	HealthCheck(ctx context.Context) error
}
