package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/investkaps/investkaps-dev-sub000/internal/config"
	"github.com/investkaps/investkaps-dev-sub000/internal/encryption"
	"github.com/investkaps/investkaps-dev-sub000/internal/hashing"
	"github.com/investkaps/investkaps-dev-sub000/internal/models"
	"github.com/investkaps/investkaps-dev-sub000/internal/repository/scylla"
	"github.com/investkaps/investkaps-dev-sub000/internal/util"
)

// ErrUserAlreadyExists is returned when a registration collides with an
// existing directory record for the same phone.
var ErrUserAlreadyExists = errors.New("user already exists")

const userCacheTTL = 5 * time.Minute

// UserService fronts the directory: registration, lookups with a small
// in-process cache, and the verified write-back. Concurrent lookups for the
// same phone collapse into one directory round trip.
type UserService struct {
	repo        scylla.UserRepository
	hasher      *hashing.Hasher
	encryption  *encryption.Manager
	countryCode string

	cache   sync.Map // user_id -> *cachedUser
	lookups singleflight.Group
}

type cachedUser struct {
	user      models.User
	expiresAt time.Time
}

func NewUserService(cfg *config.Config, repo scylla.UserRepository, hasher *hashing.Hasher, encryptionMgr *encryption.Manager) *UserService {
	return &UserService{
		repo:        repo,
		hasher:      hasher,
		encryption:  encryptionMgr,
		countryCode: cfg.SMS.CountryCode,
	}
}

// RegisterUser creates an unverified directory record for phone.
func (s *UserService) RegisterUser(ctx context.Context, phone string) (*models.User, error) {
	if err := util.ValidatePhoneNumber(phone); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	phoneKey := util.NormalizePhoneKey(s.countryCode, phone)
	phoneHash := s.hasher.HashPhone(phoneKey)

	if _, err := s.repo.GetUserByPhoneHash(ctx, phoneHash); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, scylla.ErrUserNotFound) {
		return nil, fmt.Errorf("directory lookup failed: %w", err)
	}

	envelope, err := s.encryption.EncryptPhone(ctx, phoneKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt phone: %w", err)
	}

	user := &models.User{
		PhoneHash:      phoneHash,
		PhoneEncrypted: envelope.Ciphertext,
		PhoneDEK:       envelope.EncryptedDEK,
		PhoneKeyID:     envelope.KeyID,
		PhoneVerified:  false,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	user.Phone = phoneKey
	s.cachePut(user)

	return user, nil
}

// GetUserByID returns the directory record with the phone decrypted for
// display.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	if cached := s.cacheGet(userID); cached != nil {
		return cached, nil
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.decryptPhone(ctx, user)
	s.cachePut(user)

	return user, nil
}

// GetUserByPhone resolves a normalized phone key through the hash index.
// Concurrent calls for the same phone share one directory read.
func (s *UserService) GetUserByPhone(ctx context.Context, phoneKey string) (*models.User, error) {
	phoneHash := s.hasher.HashPhone(phoneKey)

	result, err, _ := s.lookups.Do(phoneHash, func() (interface{}, error) {
		return s.repo.GetUserByPhoneHash(ctx, phoneHash)
	})
	if err != nil {
		return nil, err
	}

	// The singleflight result is shared; hand each caller its own copy.
	shared := result.(*models.User)
	user := *shared
	user.Phone = phoneKey

	return &user, nil
}

// MarkPhoneVerified flips the verified flag on the user's record and stores
// the verified phone material.
func (s *UserService) MarkPhoneVerified(ctx context.Context, userID, phoneKey string, verifiedAt time.Time) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	previousHash := user.PhoneHash

	envelope, err := s.encryption.EncryptPhone(ctx, phoneKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt phone: %w", err)
	}

	user.PhoneHash = s.hasher.HashPhone(phoneKey)
	user.PhoneEncrypted = envelope.Ciphertext
	user.PhoneDEK = envelope.EncryptedDEK
	user.PhoneKeyID = envelope.KeyID

	if err := s.repo.MarkPhoneVerified(ctx, user, previousHash, verifiedAt); err != nil {
		return err
	}

	user.Phone = phoneKey
	s.cachePut(user)

	return nil
}

func (s *UserService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}

func (s *UserService) decryptPhone(ctx context.Context, user *models.User) {
	if len(user.PhoneEncrypted) == 0 {
		return
	}
	phone, err := s.encryption.DecryptPhone(ctx, &encryption.EncryptedPhone{
		Ciphertext:   user.PhoneEncrypted,
		EncryptedDEK: user.PhoneDEK,
		KeyID:        user.PhoneKeyID,
	})
	if err != nil {
		// Display-only field; the record is still usable without it.
		util.Warn("Failed to decrypt phone for display",
			zap.String("user_id", user.UserID),
			zap.Error(err))
		return
	}
	user.Phone = phone
}

func (s *UserService) cacheGet(userID string) *models.User {
	value, ok := s.cache.Load(userID)
	if !ok {
		return nil
	}
	entry := value.(*cachedUser)
	if time.Now().After(entry.expiresAt) {
		s.cache.Delete(userID)
		return nil
	}
	user := entry.user
	return &user
}

func (s *UserService) cachePut(user *models.User) {
	s.cache.Store(user.UserID, &cachedUser{
		user:      *user,
		expiresAt: time.Now().Add(userCacheTTL),
	})
}
