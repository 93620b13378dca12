package models

import "time"

// OTP event types recorded on every issuance/verification outcome.
const (
	EventOTPSent      = "otp_sent"
	EventOTPVerified  = "otp_verified"
	EventOTPRejected  = "otp_rejected"
	EventOTPExpired   = "otp_expired"
	EventOTPExhausted = "otp_exhausted"
	EventSendFailed   = "otp_send_failed"
)

// OTPEvent is the audit record published to the event stream and the
// analytics store. Phone numbers appear only as hashes.
type OTPEvent struct {
	EventBucket int       `json:"event_bucket"`
	EventType   string    `json:"event_type"`
	PhoneHash   string    `json:"phone_hash"`
	UserID      string    `json:"user_id,omitempty"`
	Attempts    int       `json:"attempts"`
	Detail      string    `json:"detail,omitempty"`
	EventTime   time.Time `json:"event_time"`
}
