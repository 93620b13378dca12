package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/investkaps/investkaps-dev-sub000/internal/audit"
	"github.com/investkaps/investkaps-dev-sub000/internal/client"
	"github.com/investkaps/investkaps-dev-sub000/internal/config"
	"github.com/investkaps/investkaps-dev-sub000/internal/hashing"
	"github.com/investkaps/investkaps-dev-sub000/internal/models"
	"github.com/investkaps/investkaps-dev-sub000/internal/repository"
	"github.com/investkaps/investkaps-dev-sub000/internal/repository/scylla"
	"github.com/investkaps/investkaps-dev-sub000/internal/util"
)

// UserDirectory is the slice of the user service the OTP flow needs: the
// already-verified guard, the verified write-back, and the status read.
type UserDirectory interface {
	GetUserByPhone(ctx context.Context, phoneKey string) (*models.User, error)
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	MarkPhoneVerified(ctx context.Context, userID, phoneKey string, verifiedAt time.Time) error
}

// VerifyResult is the outcome of a successful code verification.
type VerifyResult struct {
	Verified bool
	User     *models.User
}

// OTPService owns the verification session lifecycle: a session is created on
// send, consumed on successful verify, and destroyed on expiry or attempt
// exhaustion. The code itself lives at the aggregator; this service only
// tracks session timing and the failed-attempt budget.
type OTPService struct {
	store    repository.SessionStore
	gateway  client.SMSGateway
	users    UserDirectory
	recorder audit.EventRecorder
	hasher   *hashing.Hasher

	countryCode string
	cooldown    time.Duration
	ttl         time.Duration
	maxAttempts int

	// now is swappable in tests.
	now func() time.Time

	locks keyedMutex
}

func NewOTPService(cfg *config.Config, store repository.SessionStore, gateway client.SMSGateway, users UserDirectory, recorder audit.EventRecorder, hasher *hashing.Hasher) *OTPService {
	return &OTPService{
		store:       store,
		gateway:     gateway,
		users:       users,
		recorder:    recorder,
		hasher:      hasher,
		countryCode: cfg.SMS.CountryCode,
		cooldown:    cfg.OTP.CooldownWindow,
		ttl:         cfg.OTP.TTL,
		maxAttempts: cfg.OTP.MaxAttempts,
		now:         time.Now,
	}
}

// Issue dispatches a fresh code to phone and opens (or replaces) the session.
// Guards run in order: already-verified, gateway configured, resend cooldown.
// No guard failure and no dispatch failure ever mutates the session.
func (s *OTPService) Issue(ctx context.Context, phone string) error {
	if err := util.ValidatePhoneNumber(phone); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	key := util.NormalizePhoneKey(s.countryCode, phone)

	unlock := s.locks.lock(key)
	defer unlock()

	now := s.now()

	if user, err := s.users.GetUserByPhone(ctx, key); err == nil {
		if user.PhoneVerified {
			return ErrAlreadyVerified
		}
	} else if !errors.Is(err, scylla.ErrUserNotFound) {
		// Directory trouble must not block issuing codes; the guard only
		// exists to skip pointless sends.
		util.Warn("Directory lookup failed during issue",
			zap.String("phone", util.MaskPhone(key)),
			zap.Error(err))
	}

	if !s.gateway.Configured() {
		return ErrGatewayUnavailable
	}

	session, err := s.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("session lookup failed: %w", err)
	}
	if session != nil {
		elapsed := now.Sub(session.LastSentAt)
		if elapsed < s.cooldown {
			remaining := s.cooldown - elapsed
			wait := int((remaining + time.Second - 1) / time.Second)
			return &CooldownError{WaitSeconds: wait}
		}
	}

	if err := s.gateway.SendCode(ctx, key); err != nil {
		s.record(ctx, models.EventSendFailed, key, "", 0, err.Error())
		return fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}

	session = &models.OTPSession{
		Key:        key,
		LastSentAt: now,
		ExpiresAt:  now.Add(s.ttl),
		Attempts:   0,
	}
	if err := s.store.Put(ctx, session); err != nil {
		return fmt.Errorf("session store failed: %w", err)
	}

	s.record(ctx, models.EventOTPSent, key, "", 0, "")

	util.Info("OTP issued",
		zap.String("phone", util.MaskPhone(key)),
		zap.Time("expires_at", session.ExpiresAt))

	return nil
}

// Verify submits code for phone. The aggregator is the source of truth for
// code correctness; this method enforces session liveness and the attempt
// budget around it. userID, when present, receives the verified write-back.
func (s *OTPService) Verify(ctx context.Context, phone, code, userID string) (*VerifyResult, error) {
	if err := util.ValidatePhoneNumber(phone); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := util.ValidateOTPCode(code); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	key := util.NormalizePhoneKey(s.countryCode, phone)

	unlock := s.locks.lock(key)
	defer unlock()

	now := s.now()

	session, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}
	if session == nil || session.Expired(now) {
		if session != nil {
			if err := s.store.Delete(ctx, key); err != nil {
				util.Warn("Failed to delete expired session", zap.Error(err))
			}
			s.record(ctx, models.EventOTPExpired, key, userID, session.Attempts, "")
		}
		return nil, ErrOTPExpired
	}
	if session.Attempts >= s.maxAttempts {
		if err := s.store.Delete(ctx, key); err != nil {
			util.Warn("Failed to delete exhausted session", zap.Error(err))
		}
		s.record(ctx, models.EventOTPExhausted, key, userID, session.Attempts, "")
		return nil, ErrTooManyAttempts
	}

	verifyErr := s.gateway.VerifyCode(ctx, key, code)
	if verifyErr == nil {
		return s.completeVerification(ctx, key, userID, now)
	}

	// Wrong code and gateway trouble both consume an attempt: an unverifiable
	// submission is a failed submission.
	count, incErr := s.store.IncrementAttempts(ctx, key)
	if incErr != nil {
		if errors.Is(incErr, repository.ErrSessionNotFound) {
			return nil, ErrOTPExpired
		}
		return nil, fmt.Errorf("attempt increment failed: %w", incErr)
	}

	attemptsLeft := s.maxAttempts - count
	if attemptsLeft <= 0 {
		attemptsLeft = 0
		// Terminal: drop the session now so the next submission sees no
		// session rather than a fourth attempt.
		if err := s.store.Delete(ctx, key); err != nil {
			util.Warn("Failed to delete exhausted session", zap.Error(err))
		}
		s.record(ctx, models.EventOTPExhausted, key, userID, count, verifyDetail(verifyErr))
	} else {
		s.record(ctx, models.EventOTPRejected, key, userID, count, verifyDetail(verifyErr))
	}

	util.Debug("OTP rejected",
		zap.String("phone", util.MaskPhone(key)),
		zap.Int("attempts", count),
		zap.Int("attempts_left", attemptsLeft))

	return nil, &InvalidOTPError{AttemptsLeft: attemptsLeft}
}

func (s *OTPService) completeVerification(ctx context.Context, key, userID string, now time.Time) (*VerifyResult, error) {
	if err := s.store.Delete(ctx, key); err != nil {
		util.Warn("Failed to delete verified session", zap.Error(err))
	}

	result := &VerifyResult{Verified: true}

	if userID != "" {
		// Best effort: a directory hiccup must not downgrade a successful
		// verification.
		if err := s.users.MarkPhoneVerified(ctx, userID, key, now); err != nil {
			util.Error("Verified write-back failed",
				zap.String("user_id", userID),
				zap.Error(err))
		} else if user, err := s.users.GetUserByID(ctx, userID); err == nil {
			result.User = user
		}
	}

	s.record(ctx, models.EventOTPVerified, key, userID, 0, "")

	util.Info("OTP verified",
		zap.String("phone", util.MaskPhone(key)),
		zap.String("user_id", userID))

	return result, nil
}

// Status reports the verification state of the caller's directory record.
func (s *OTPService) Status(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	return s.users.GetUserByID(ctx, userID)
}

func (s *OTPService) record(ctx context.Context, eventType, phoneKey, userID string, attempts int, detail string) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(ctx, &models.OTPEvent{
		EventType: eventType,
		PhoneHash: s.hasher.HashPhone(phoneKey),
		UserID:    userID,
		Attempts:  attempts,
		Detail:    detail,
		EventTime: s.now().UTC(),
	})
}

func verifyDetail(err error) string {
	if errors.Is(err, client.ErrCodeMismatch) {
		return "code mismatch"
	}
	return "gateway error"
}

// keyedMutex serializes the read-modify-write per phone key. Entries are
// refcounted and dropped once the last holder unlocks, so the map does not
// grow with the phone space.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*lockEntry)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
