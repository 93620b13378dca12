package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/investkaps/investkaps-dev-sub000/internal/client"
	"github.com/investkaps/investkaps-dev-sub000/internal/models"
	"github.com/investkaps/investkaps-dev-sub000/internal/repository"
	"github.com/investkaps/investkaps-dev-sub000/internal/util"
)

const sessionPrefix = "otp_session:"

// incrAttemptsScript bumps the attempt counter only while the session hash
// still exists, so the read-modify-write cannot be lost to a concurrent
// delete or replacement.
const incrAttemptsScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return redis.call("HINCRBY", KEYS[1], "attempts", 1)
end
return -1
`

// SessionStore keeps OTP sessions in Redis, one hash per phone key, with the
// hash TTL pinned to the session expiry. Suitable for multi-instance
// deployments where the in-memory store would fragment state.
type SessionStore struct {
	client *client.RedisClient
}

func NewSessionStore(client *client.RedisClient) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Get(ctx context.Context, key string) (*models.OTPSession, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, sessionPrefix+key)
	if err != nil {
		util.Error("Failed to read OTP session",
			zap.String("phone", util.MaskPhone(key)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read otp session: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	lastSent, err := strconv.ParseInt(fields["last_sent_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt otp session for key %s: %w", key, err)
	}
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt otp session for key %s: %w", key, err)
	}
	attempts, err := strconv.Atoi(fields["attempts"])
	if err != nil {
		return nil, fmt.Errorf("corrupt otp session for key %s: %w", key, err)
	}

	return &models.OTPSession{
		Key:        key,
		LastSentAt: time.Unix(0, lastSent),
		ExpiresAt:  time.Unix(0, expires),
		Attempts:   attempts,
	}, nil
}

func (s *SessionStore) Put(ctx context.Context, session *models.OTPSession) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := sessionPrefix + session.Key
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"last_sent_at", session.LastSentAt.UnixNano(),
		"expires_at", session.ExpiresAt.UnixNano(),
		"attempts", session.Attempts,
	)
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("Failed to store OTP session",
			zap.String("phone", util.MaskPhone(session.Key)),
			zap.Error(err))
		return fmt.Errorf("failed to store otp session: %w", err)
	}

	return nil
}

func (s *SessionStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.client.Del(ctx, sessionPrefix+key); err != nil {
		util.Error("Failed to delete OTP session",
			zap.String("phone", util.MaskPhone(key)),
			zap.Error(err))
		return fmt.Errorf("failed to delete otp session: %w", err)
	}
	return nil
}

func (s *SessionStore) IncrementAttempts(ctx context.Context, key string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := s.client.Eval(ctx, incrAttemptsScript, []string{sessionPrefix + key})
	if err != nil {
		util.Error("Failed to increment OTP attempts",
			zap.String("phone", util.MaskPhone(key)),
			zap.Error(err))
		return 0, fmt.Errorf("failed to increment otp attempts: %w", err)
	}

	count, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected redis reply type %T", result)
	}
	if count < 0 {
		return 0, repository.ErrSessionNotFound
	}

	return int(count), nil
}
