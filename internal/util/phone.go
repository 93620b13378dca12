package util

import (
	"errors"
	"strings"
)

var (
	ErrInvalidPhoneNumber = errors.New("phone number must be exactly 10 digits")
	ErrInvalidOTPCode     = errors.New("otp must be exactly 4 digits")
)

// ValidatePhoneNumber checks that the subscriber number is exactly 10 decimal
// digits. No separators, no country code.
func ValidatePhoneNumber(phone string) error {
	if !isDigits(phone, 10) {
		return ErrInvalidPhoneNumber
	}
	return nil
}

// ValidateOTPCode checks that the submitted code is exactly 4 decimal digits.
func ValidateOTPCode(code string) error {
	if !isDigits(code, 4) {
		return ErrInvalidOTPCode
	}
	return nil
}

// NormalizePhoneKey builds the session/gateway key: country code followed by
// the 10-digit subscriber number, digits only.
func NormalizePhoneKey(countryCode, phone string) string {
	cc := strings.TrimPrefix(countryCode, "+")
	return cc + phone
}

// MaskPhone hides all but the last 4 digits for log output.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

func isDigits(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
