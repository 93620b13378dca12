package service

import (
	"errors"
	"fmt"
)

// Sentinel errors for the verification flow. Handlers map these to HTTP
// statuses; callers match with errors.Is.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrAlreadyVerified    = errors.New("phone already verified")
	ErrTooManyRequests    = errors.New("resend cooldown active")
	ErrGatewayUnavailable = errors.New("sms gateway not configured")
	ErrGatewayFailure     = errors.New("sms gateway failure")
	ErrOTPExpired         = errors.New("otp expired or not issued")
	ErrTooManyAttempts    = errors.New("too many failed attempts")
	ErrInvalidOTP         = errors.New("invalid otp")
	ErrUnauthorized       = errors.New("caller identity required")
)

// CooldownError reports how long the caller must wait before the next send.
// Matches ErrTooManyRequests under errors.Is.
type CooldownError struct {
	WaitSeconds int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("resend cooldown active, retry in %ds", e.WaitSeconds)
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrTooManyRequests
}

// InvalidOTPError reports a rejected code along with the attempts remaining.
// Matches ErrInvalidOTP under errors.Is.
type InvalidOTPError struct {
	AttemptsLeft int
}

func (e *InvalidOTPError) Error() string {
	return fmt.Sprintf("invalid otp, %d attempts left", e.AttemptsLeft)
}

func (e *InvalidOTPError) Is(target error) bool {
	return target == ErrInvalidOTP
}
