package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/investkaps/investkaps-dev-sub000/internal/config"
	"github.com/investkaps/investkaps-dev-sub000/internal/encryption"
	"github.com/investkaps/investkaps-dev-sub000/internal/hashing"
	"github.com/investkaps/investkaps-dev-sub000/internal/models"
	"github.com/investkaps/investkaps-dev-sub000/internal/repository/scylla"
)

type fakeUserRepo struct {
	mu           sync.Mutex
	byID         map[string]*models.User
	byPhoneHash  map[string]*models.User
	getByIDCalls int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:        make(map[string]*models.User),
		byPhoneHash: make(map[string]*models.User),
	}
}

func (r *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	user.CreatedAt = time.Now().UTC()
	copied := *user
	r.byID[user.UserID] = &copied
	r.byPhoneHash[user.PhoneHash] = &copied
	return nil
}

func (r *fakeUserRepo) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getByIDCalls++
	user, ok := r.byID[userID]
	if !ok {
		return nil, scylla.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetUserByPhoneHash(ctx context.Context, phoneHash string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byPhoneHash[phoneHash]
	if !ok {
		return nil, scylla.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) MarkPhoneVerified(ctx context.Context, user *models.User, previousPhoneHash string, verifiedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[user.UserID]
	if !ok {
		return scylla.ErrUserNotFound
	}
	if previousPhoneHash != "" && previousPhoneHash != user.PhoneHash {
		delete(r.byPhoneHash, previousPhoneHash)
	}
	stored.PhoneHash = user.PhoneHash
	stored.PhoneEncrypted = user.PhoneEncrypted
	stored.PhoneDEK = user.PhoneDEK
	stored.PhoneKeyID = user.PhoneKeyID
	stored.PhoneVerified = true
	stored.VerifiedAt = &verifiedAt
	r.byPhoneHash[user.PhoneHash] = stored
	return nil
}

func (r *fakeUserRepo) HealthCheck(ctx context.Context) error { return nil }

func newUserServiceFixture() (*UserService, *fakeUserRepo) {
	cfg := &config.Config{
		Hashing: config.HashingConfig{PhonePepper: "test-pepper"},
		SMS:     config.SMSConfig{CountryCode: "91"},
	}
	repo := newFakeUserRepo()
	svc := NewUserService(cfg, repo, hashing.NewHasher(cfg), encryption.NewManager(cfg, nil))
	return svc, repo
}

func TestRegisterUser(t *testing.T) {
	ctx := context.Background()

	t.Run("stores hash and envelope, never the raw phone", func(t *testing.T) {
		svc, repo := newUserServiceFixture()

		user, err := svc.RegisterUser(ctx, testPhone)
		if err != nil {
			t.Fatalf("RegisterUser: %v", err)
		}
		if user.UserID == "" {
			t.Error("user ID not assigned")
		}
		if user.Phone != testKey {
			t.Errorf("Phone = %q, want %q", user.Phone, testKey)
		}

		stored := repo.byID[user.UserID]
		if stored.Phone != "" {
			t.Error("raw phone persisted")
		}
		if stored.PhoneHash == "" || len(stored.PhoneEncrypted) == 0 || stored.PhoneDEK == "" {
			t.Errorf("phone material incomplete: %+v", stored)
		}
		if stored.PhoneVerified {
			t.Error("new record must start unverified")
		}
	})

	t.Run("rejects malformed phone", func(t *testing.T) {
		svc, _ := newUserServiceFixture()

		if _, err := svc.RegisterUser(ctx, "123"); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("RegisterUser = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("rejects duplicate phone", func(t *testing.T) {
		svc, _ := newUserServiceFixture()

		if _, err := svc.RegisterUser(ctx, testPhone); err != nil {
			t.Fatalf("first RegisterUser: %v", err)
		}
		if _, err := svc.RegisterUser(ctx, testPhone); !errors.Is(err, ErrUserAlreadyExists) {
			t.Fatalf("second RegisterUser = %v, want ErrUserAlreadyExists", err)
		}
	})
}

func TestGetUserByID(t *testing.T) {
	ctx := context.Background()

	t.Run("decrypts phone for display", func(t *testing.T) {
		svc, _ := newUserServiceFixture()
		created, _ := svc.RegisterUser(ctx, testPhone)

		user, err := svc.GetUserByID(ctx, created.UserID)
		if err != nil {
			t.Fatalf("GetUserByID: %v", err)
		}
		if user.Phone != testKey {
			t.Errorf("Phone = %q, want %q", user.Phone, testKey)
		}
	})

	t.Run("caches repeated lookups", func(t *testing.T) {
		svc, repo := newUserServiceFixture()
		created, _ := svc.RegisterUser(ctx, testPhone)

		repo.getByIDCalls = 0
		for i := 0; i < 5; i++ {
			if _, err := svc.GetUserByID(ctx, created.UserID); err != nil {
				t.Fatalf("GetUserByID: %v", err)
			}
		}
		if repo.getByIDCalls > 1 {
			t.Errorf("repo hit %d times, want at most 1", repo.getByIDCalls)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, _ := newUserServiceFixture()

		if _, err := svc.GetUserByID(ctx, "ghost"); !errors.Is(err, scylla.ErrUserNotFound) {
			t.Fatalf("GetUserByID = %v, want ErrUserNotFound", err)
		}
	})
}

func TestGetUserByPhone(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves through the hash index", func(t *testing.T) {
		svc, _ := newUserServiceFixture()
		created, _ := svc.RegisterUser(ctx, testPhone)

		user, err := svc.GetUserByPhone(ctx, testKey)
		if err != nil {
			t.Fatalf("GetUserByPhone: %v", err)
		}
		if user.UserID != created.UserID {
			t.Errorf("resolved %q, want %q", user.UserID, created.UserID)
		}
	})

	t.Run("unknown phone", func(t *testing.T) {
		svc, _ := newUserServiceFixture()

		if _, err := svc.GetUserByPhone(ctx, "910000000000"); !errors.Is(err, scylla.ErrUserNotFound) {
			t.Fatalf("GetUserByPhone = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("callers get independent copies", func(t *testing.T) {
		svc, _ := newUserServiceFixture()
		svc.RegisterUser(ctx, testPhone)

		first, err := svc.GetUserByPhone(ctx, testKey)
		if err != nil {
			t.Fatalf("GetUserByPhone: %v", err)
		}
		first.PhoneVerified = true

		second, err := svc.GetUserByPhone(ctx, testKey)
		if err != nil {
			t.Fatalf("GetUserByPhone: %v", err)
		}
		if second.PhoneVerified {
			t.Error("mutation leaked between callers")
		}
	})
}

func TestMarkPhoneVerified(t *testing.T) {
	ctx := context.Background()

	t.Run("flips the flag and reindexes", func(t *testing.T) {
		svc, repo := newUserServiceFixture()
		created, _ := svc.RegisterUser(ctx, testPhone)

		verifiedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		if err := svc.MarkPhoneVerified(ctx, created.UserID, testKey, verifiedAt); err != nil {
			t.Fatalf("MarkPhoneVerified: %v", err)
		}

		stored := repo.byID[created.UserID]
		if !stored.PhoneVerified {
			t.Error("record not marked verified")
		}
		if stored.VerifiedAt == nil || !stored.VerifiedAt.Equal(verifiedAt) {
			t.Errorf("VerifiedAt = %v, want %v", stored.VerifiedAt, verifiedAt)
		}

		user, err := svc.GetUserByPhone(ctx, testKey)
		if err != nil {
			t.Fatalf("GetUserByPhone after verify: %v", err)
		}
		if !user.PhoneVerified {
			t.Error("phone index did not pick up the verified record")
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, _ := newUserServiceFixture()

		err := svc.MarkPhoneVerified(ctx, "ghost", testKey, time.Now())
		if !errors.Is(err, scylla.ErrUserNotFound) {
			t.Fatalf("MarkPhoneVerified = %v, want ErrUserNotFound", err)
		}
	})
}
