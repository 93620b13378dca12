package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/investkaps/investkaps-dev-sub000/internal/config"
	"github.com/investkaps/investkaps-dev-sub000/internal/util"
)

// ErrCodeMismatch is returned by VerifyCode when the aggregator rejects the
// submitted code. Distinguishes a wrong code from a transport failure.
var ErrCodeMismatch = errors.New("otp code mismatch")

// Known placeholder values that mean "no real key was configured".
var placeholderAPIKeys = map[string]bool{
	"":                 true,
	"changeme":         true,
	"your-api-key":     true,
	"YOUR_API_KEY":     true,
	"xxxx-xxxx-xxxx":   true,
	"test-placeholder": true,
}

// SMSGateway dispatches one-time codes through a telecom aggregator and
// verifies submissions against it. The code itself never passes through this
// service.
type SMSGateway interface {
	Configured() bool
	SendCode(ctx context.Context, phoneKey string) error
	VerifyCode(ctx context.Context, phoneKey, code string) error
}

// gatewayResponse is the aggregator's wire shape, decoded exactly once at this
// boundary. Status is "Success" or an error marker; Details carries the reason
// (or the session id on success).
type gatewayResponse struct {
	Status  string `json:"Status"`
	Details string `json:"Details"`
}

// SMSClient talks to a 2factor-style aggregator over HTTPS. The API key is a
// static path segment:
//
//	GET {base}/{key}/SMS/{phone}/AUTOGEN/{template}   -> dispatch
//	GET {base}/{key}/SMS/VERIFY/{phone}/{code}        -> verify
type SMSClient struct {
	baseURL    string
	apiKey     string
	template   string
	httpClient *http.Client
}

func NewSMSClient(cfg *config.Config, logger *zap.Logger) *SMSClient {
	return &SMSClient{
		baseURL:  strings.TrimRight(cfg.SMS.BaseURL, "/"),
		apiKey:   cfg.SMS.APIKey,
		template: cfg.SMS.Template,
		httpClient: &http.Client{
			Timeout: cfg.SMS.Timeout,
		},
	}
}

// Configured reports whether a usable API key is present.
func (c *SMSClient) Configured() bool {
	return !placeholderAPIKeys[c.apiKey]
}

// SendCode asks the aggregator to generate and deliver a fresh code.
func (c *SMSClient) SendCode(ctx context.Context, phoneKey string) error {
	url := fmt.Sprintf("%s/%s/SMS/%s/AUTOGEN/%s", c.baseURL, c.apiKey, phoneKey, c.template)

	resp, err := c.call(ctx, url)
	if err != nil {
		util.Error("SMS dispatch request failed",
			zap.String("phone", util.MaskPhone(phoneKey)),
			zap.Error(err))
		return fmt.Errorf("sms dispatch failed: %w", err)
	}

	if resp.Status != "Success" {
		util.Warn("SMS gateway rejected dispatch",
			zap.String("phone", util.MaskPhone(phoneKey)),
			zap.String("status", resp.Status),
			zap.String("details", resp.Details))
		return fmt.Errorf("sms gateway rejected dispatch: %s", resp.Details)
	}

	util.Debug("OTP dispatched", zap.String("phone", util.MaskPhone(phoneKey)))
	return nil
}

// VerifyCode submits the caller's code to the aggregator, which is the source
// of truth for correctness. Returns ErrCodeMismatch on a rejected code and a
// wrapped transport error when the aggregator could not be reached.
func (c *SMSClient) VerifyCode(ctx context.Context, phoneKey, code string) error {
	url := fmt.Sprintf("%s/%s/SMS/VERIFY/%s/%s", c.baseURL, c.apiKey, phoneKey, code)

	resp, err := c.call(ctx, url)
	if err != nil {
		util.Error("SMS verify request failed",
			zap.String("phone", util.MaskPhone(phoneKey)),
			zap.Error(err))
		return fmt.Errorf("sms verify failed: %w", err)
	}

	if resp.Status != "Success" {
		return fmt.Errorf("%w: %s", ErrCodeMismatch, resp.Details)
	}

	return nil
}

func (c *SMSClient) call(ctx context.Context, url string) (*gatewayResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer httpResp.Body.Close()

	var resp gatewayResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return &resp, nil
}
