package util

import (
	"errors"
	"testing"
)

func TestValidatePhoneNumber(t *testing.T) {
	valid := []string{"9876543210", "0000000000", "1234567890"}
	for _, phone := range valid {
		if err := ValidatePhoneNumber(phone); err != nil {
			t.Errorf("ValidatePhoneNumber(%q) = %v, want nil", phone, err)
		}
	}

	invalid := []string{"", "123456789", "12345678901", "98765-4321", "abcdefghij", " 987654321"}
	for _, phone := range invalid {
		if err := ValidatePhoneNumber(phone); !errors.Is(err, ErrInvalidPhoneNumber) {
			t.Errorf("ValidatePhoneNumber(%q) = %v, want ErrInvalidPhoneNumber", phone, err)
		}
	}
}

func TestValidateOTPCode(t *testing.T) {
	valid := []string{"0000", "1234", "9999"}
	for _, code := range valid {
		if err := ValidateOTPCode(code); err != nil {
			t.Errorf("ValidateOTPCode(%q) = %v, want nil", code, err)
		}
	}

	invalid := []string{"", "123", "12345", "12a4", "12 4"}
	for _, code := range invalid {
		if err := ValidateOTPCode(code); !errors.Is(err, ErrInvalidOTPCode) {
			t.Errorf("ValidateOTPCode(%q) = %v, want ErrInvalidOTPCode", code, err)
		}
	}
}

func TestNormalizePhoneKey(t *testing.T) {
	cases := []struct {
		countryCode, phone, want string
	}{
		{"91", "9876543210", "919876543210"},
		{"+91", "9876543210", "919876543210"},
		{"1", "5551234567", "15551234567"},
	}
	for _, tc := range cases {
		if got := NormalizePhoneKey(tc.countryCode, tc.phone); got != tc.want {
			t.Errorf("NormalizePhoneKey(%q, %q) = %q, want %q", tc.countryCode, tc.phone, got, tc.want)
		}
	}
}

func TestMaskPhone(t *testing.T) {
	cases := []struct{ in, want string }{
		{"919876543210", "********3210"},
		{"1234", "1234"},
		{"12", "12"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := MaskPhone(tc.in); got != tc.want {
			t.Errorf("MaskPhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
