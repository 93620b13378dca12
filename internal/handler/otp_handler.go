package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/investkaps/investkaps-dev-sub000/internal/repository/scylla"
	"github.com/investkaps/investkaps-dev-sub000/internal/service"
)

// userIDHeader carries the caller identity, set by the upstream auth layer.
const userIDHeader = "X-User-ID"

// OTPHandler handles HTTP requests for the verification flow.
type OTPHandler struct {
	otpService *service.OTPService
	logger     *zap.Logger
}

func NewOTPHandler(otpService *service.OTPService, logger *zap.Logger) *OTPHandler {
	return &OTPHandler{
		otpService: otpService,
		logger:     logger,
	}
}

type sendOTPRequest struct {
	Phone string `json:"phone"`
}

type verifyOTPRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

type verifyOTPResponse struct {
	Verified bool        `json:"verified"`
	User     interface{} `json:"user,omitempty"`
}

type statusResponse struct {
	Phone         string `json:"phone"`
	PhoneVerified bool   `json:"phone_verified"`
}

// RegisterRoutes registers all verification routes.
func (h *OTPHandler) RegisterRoutes(router chi.Router) {
	router.Route("/otp", func(r chi.Router) {
		r.Post("/send", h.SendOTP)
		r.Post("/verify", h.VerifyOTP)
		r.Get("/status", h.Status)
	})
}

// SendOTP dispatches a one-time code to the requested phone.
func (h *OTPHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := h.otpService.Issue(ctx, req.Phone); err != nil {
		h.respondWithOTPError(w, err, "Failed to send OTP")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(nil, "OTP sent successfully"))
}

// VerifyOTP checks the submitted code against the live session.
func (h *OTPHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	userID := r.Header.Get(userIDHeader)

	result, err := h.otpService.Verify(ctx, req.Phone, req.OTP, userID)
	if err != nil {
		h.respondWithOTPError(w, err, "Failed to verify OTP")
		return
	}

	resp := verifyOTPResponse{Verified: result.Verified}
	if result.User != nil {
		resp.User = result.User
	}

	respondWithJSON(w, http.StatusOK, successResponse(resp, "Phone verified successfully"))
}

// Status reports the verification state of the calling identity.
func (h *OTPHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.Header.Get(userIDHeader)

	user, err := h.otpService.Status(ctx, userID)
	if err != nil {
		h.respondWithOTPError(w, err, "Failed to get verification status")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(statusResponse{
		Phone:         user.Phone,
		PhoneVerified: user.PhoneVerified,
	}, "Status retrieved successfully"))
}

// respondWithOTPError maps a service error to its status code and attaches
// the numeric hints (wait_seconds, attempts_left) the flow exposes.
func (h *OTPHandler) respondWithOTPError(w http.ResponseWriter, err error, message string) {
	resp := errorResponse(err, message)

	var cooldown *service.CooldownError
	if errors.As(err, &cooldown) {
		resp.Data = map[string]int{"wait_seconds": cooldown.WaitSeconds}
	}
	var invalid *service.InvalidOTPError
	if errors.As(err, &invalid) {
		resp.Data = map[string]int{"attempts_left": invalid.AttemptsLeft}
	}

	respondWithJSON(w, h.getStatusCode(err), resp)
}

func (h *OTPHandler) getStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAlreadyVerified):
		return http.StatusConflict
	case errors.Is(err, service.ErrTooManyRequests):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrGatewayFailure):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrOTPExpired),
		errors.Is(err, service.ErrTooManyAttempts),
		errors.Is(err, service.ErrInvalidOTP):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, scylla.ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
