package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/investkaps/investkaps-dev-sub000/internal/bucketing"
	"github.com/investkaps/investkaps-dev-sub000/internal/models"
	"github.com/investkaps/investkaps-dev-sub000/internal/util"
)

type userRepository struct {
	client    *ScyllaClient
	bucketing *bucketing.Manager
}

func NewUserRepository(client *ScyllaClient, bucketManager *bucketing.Manager) UserRepository {
	return &userRepository{
		client:    client,
		bucketing: bucketManager,
	}
}

func (r *userRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	user.UserBucket = r.bucketing.UserBucket(user.UserID)

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = &now

	// Logged batch keeps the directory row and the phone index in step.
	batch := r.client.Batch(gocql.LoggedBatch).WithContext(ctx)

	batch.Query(r.client.Prepared.CreateUser.Statement(),
		user.UserBucket, user.UserID, user.PhoneHash, user.PhoneEncrypted,
		user.PhoneDEK, user.PhoneKeyID, user.PhoneVerified, time.Time{},
		user.CreatedAt, now)

	batch.Query(r.client.Prepared.CreatePhoneIndex.Statement(),
		user.PhoneHash, user.UserBucket, user.UserID, user.CreatedAt)

	if err := r.client.ExecuteBatch(batch); err != nil {
		util.Error("Failed to create user",
			zap.String("user_id", user.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	util.Info("User created",
		zap.String("user_id", user.UserID),
		zap.Int("user_bucket", user.UserBucket))

	return nil
}

func (r *userRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	bucket := r.bucketing.UserBucket(userID)

	user, err := r.scanUser(r.client.Prepared.GetUserByID.Bind(bucket, userID).WithContext(ctx))
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrUserNotFound
		}
		util.Error("Failed to get user by ID",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

func (r *userRepository) GetUserByPhoneHash(ctx context.Context, phoneHash string) (*models.User, error) {
	var (
		bucket int
		userID string
	)
	err := r.client.ScanWithRetry(
		r.client.Prepared.GetPhoneIndex.Bind(phoneHash).WithContext(ctx),
		&bucket, &userID)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrUserNotFound
		}
		util.Error("Failed to resolve phone index", zap.Error(err))
		return nil, fmt.Errorf("failed to resolve phone index: %w", err)
	}

	user, err := r.scanUser(r.client.Prepared.GetUserByID.Bind(bucket, userID).WithContext(ctx))
	if err != nil {
		if err == gocql.ErrNotFound {
			// Index row outlived the user row. Treat as absent.
			return nil, ErrUserNotFound
		}
		util.Error("Failed to get user by phone hash",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user by phone hash: %w", err)
	}

	return user, nil
}

func (r *userRepository) MarkPhoneVerified(ctx context.Context, user *models.User, previousPhoneHash string, verifiedAt time.Time) error {
	bucket := r.bucketing.UserBucket(user.UserID)
	now := time.Now().UTC()

	user.UserBucket = bucket
	user.PhoneVerified = true
	user.VerifiedAt = &verifiedAt
	user.UpdatedAt = &now

	batch := r.client.Batch(gocql.LoggedBatch).WithContext(ctx)

	batch.Query(r.client.Prepared.MarkPhoneVerified.Statement(),
		user.PhoneHash, user.PhoneEncrypted, user.PhoneDEK, user.PhoneKeyID,
		true, verifiedAt, now, bucket, user.UserID)

	if previousPhoneHash != "" && previousPhoneHash != user.PhoneHash {
		batch.Query(r.client.Prepared.DeletePhoneIndex.Statement(), previousPhoneHash)
		batch.Query(r.client.Prepared.CreatePhoneIndex.Statement(),
			user.PhoneHash, bucket, user.UserID, now)
	}

	if err := r.client.ExecuteBatch(batch); err != nil {
		util.Error("Failed to mark phone verified",
			zap.String("user_id", user.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to mark phone verified: %w", err)
	}

	util.Info("Phone marked verified",
		zap.String("user_id", user.UserID),
		zap.Time("verified_at", verifiedAt))

	return nil
}

func (r *userRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck()
}

func (r *userRepository) scanUser(query *gocql.Query) (*models.User, error) {
	user := &models.User{}
	// gocql scans NULL timestamps as the zero time, so read into locals and
	// only set the optional fields when present.
	var verifiedAt, updatedAt time.Time
	err := r.client.ScanWithRetry(query,
		&user.UserBucket, &user.UserID, &user.PhoneHash, &user.PhoneEncrypted,
		&user.PhoneDEK, &user.PhoneKeyID, &user.PhoneVerified, &verifiedAt,
		&user.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if !verifiedAt.IsZero() {
		user.VerifiedAt = &verifiedAt
	}
	if !updatedAt.IsZero() {
		user.UpdatedAt = &updatedAt
	}
	return user, nil
}
