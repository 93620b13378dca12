package models

import "time"

// User is a directory record for a registered account. The raw phone number is
// never stored: lookups go through the deterministic PhoneHash and display
// goes through the envelope-encrypted copy.
type User struct {
	UserBucket     int        `json:"-" db:"user_bucket"`
	UserID         string     `json:"user_id" db:"user_id"`
	PhoneHash      string     `json:"-" db:"phone_hash"`
	PhoneEncrypted []byte     `json:"-" db:"phone_encrypted"`
	PhoneDEK       string     `json:"-" db:"phone_dek"`
	PhoneKeyID     string     `json:"-" db:"phone_key_id"`
	PhoneVerified  bool       `json:"phone_verified" db:"phone_verified"`
	VerifiedAt     *time.Time `json:"verified_at,omitempty" db:"verified_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty" db:"updated_at"`

	// Phone carries the decrypted number on read paths. Never persisted.
	Phone string `json:"phone,omitempty" db:"-"`
}
