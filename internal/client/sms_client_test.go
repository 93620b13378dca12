package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/investkaps/investkaps-dev-sub000/internal/config"
)

func newTestSMSClient(t *testing.T, handler http.HandlerFunc) (*SMSClient, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		SMS: config.SMSConfig{
			BaseURL:  server.URL,
			APIKey:   "real-key-123",
			Template: "OTPTEMPLATE",
			Timeout:  2 * time.Second,
		},
	}

	return NewSMSClient(cfg, nil), server
}

func TestSMSClientConfigured(t *testing.T) {
	cases := []struct {
		key  string
		want bool
	}{
		{"", false},
		{"changeme", false},
		{"your-api-key", false},
		{"YOUR_API_KEY", false},
		{"a1b2c3d4-real", true},
	}

	for _, tc := range cases {
		cfg := &config.Config{SMS: config.SMSConfig{APIKey: tc.key, Timeout: time.Second}}
		c := NewSMSClient(cfg, nil)
		if got := c.Configured(); got != tc.want {
			t.Errorf("Configured(%q) = %v, want %v", tc.key, got, tc.want)
		}
	}
}

func TestSMSClientSendCode(t *testing.T) {
	t.Run("success hits the AUTOGEN path", func(t *testing.T) {
		var gotPath string
		c, _ := newTestSMSClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			fmt.Fprint(w, `{"Status":"Success","Details":"session-id"}`)
		})

		if err := c.SendCode(context.Background(), "919876543210"); err != nil {
			t.Fatalf("SendCode: %v", err)
		}

		want := "/real-key-123/SMS/919876543210/AUTOGEN/OTPTEMPLATE"
		if gotPath != want {
			t.Errorf("path = %s, want %s", gotPath, want)
		}
	})

	t.Run("gateway rejection surfaces the details", func(t *testing.T) {
		c, _ := newTestSMSClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"Status":"Error","Details":"Invalid phone number"}`)
		})

		err := c.SendCode(context.Background(), "919876543210")
		if err == nil {
			t.Fatal("expected error on rejected dispatch")
		}
	})

	t.Run("malformed body is a transport error", func(t *testing.T) {
		c, _ := newTestSMSClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `not json`)
		})

		if err := c.SendCode(context.Background(), "919876543210"); err == nil {
			t.Fatal("expected error on malformed response")
		}
	})

	t.Run("unreachable gateway is a transport error", func(t *testing.T) {
		c, server := newTestSMSClient(t, func(w http.ResponseWriter, r *http.Request) {})
		server.Close()

		if err := c.SendCode(context.Background(), "919876543210"); err == nil {
			t.Fatal("expected error when gateway is unreachable")
		}
	})
}

func TestSMSClientVerifyCode(t *testing.T) {
	t.Run("success hits the VERIFY path", func(t *testing.T) {
		var gotPath string
		c, _ := newTestSMSClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			fmt.Fprint(w, `{"Status":"Success","Details":"OTP Matched"}`)
		})

		if err := c.VerifyCode(context.Background(), "919876543210", "1234"); err != nil {
			t.Fatalf("VerifyCode: %v", err)
		}

		want := "/real-key-123/SMS/VERIFY/919876543210/1234"
		if gotPath != want {
			t.Errorf("path = %s, want %s", gotPath, want)
		}
	})

	t.Run("rejected code maps to ErrCodeMismatch", func(t *testing.T) {
		c, _ := newTestSMSClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"Status":"Error","Details":"OTP Mismatch"}`)
		})

		err := c.VerifyCode(context.Background(), "919876543210", "0000")
		if !errors.Is(err, ErrCodeMismatch) {
			t.Fatalf("VerifyCode = %v, want ErrCodeMismatch", err)
		}
	})

	t.Run("transport failure is not a mismatch", func(t *testing.T) {
		c, server := newTestSMSClient(t, func(w http.ResponseWriter, r *http.Request) {})
		server.Close()

		err := c.VerifyCode(context.Background(), "919876543210", "1234")
		if err == nil {
			t.Fatal("expected error when gateway is unreachable")
		}
		if errors.Is(err, ErrCodeMismatch) {
			t.Error("transport failure must not look like a code mismatch")
		}
	})

	t.Run("slow gateway times out", func(t *testing.T) {
		c, _ := newTestSMSClient(t, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			fmt.Fprint(w, `{"Status":"Success","Details":"OTP Matched"}`)
		})
		c.httpClient.Timeout = 50 * time.Millisecond

		if err := c.VerifyCode(context.Background(), "919876543210", "1234"); err == nil {
			t.Fatal("expected timeout error")
		}
	})
}
