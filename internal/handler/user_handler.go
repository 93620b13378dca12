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

// UserHandler handles HTTP requests for directory records.
type UserHandler struct {
	userService *service.UserService
	logger      *zap.Logger
}

func NewUserHandler(userService *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

type createUserRequest struct {
	Phone string `json:"phone"`
}

// RegisterRoutes registers all user routes.
func (h *UserHandler) RegisterRoutes(router chi.Router) {
	router.Route("/users", func(r chi.Router) {
		r.Post("/", h.CreateUser)
		r.Get("/health", h.HealthCheck)
		r.Get("/{userID}", h.GetUserByID)
	})
}

// CreateUser registers an unverified directory record.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	user, err := h.userService.RegisterUser(ctx, req.Phone)
	if err != nil {
		respondWithError(w, h.getStatusCode(err), err, "Failed to create user")
		return
	}

	respondWithJSON(w, http.StatusCreated, successResponse(user, "User created successfully"))
}

// GetUserByID returns one directory record.
func (h *UserHandler) GetUserByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, errors.New("user ID is required"), "User ID is required")
		return
	}

	user, err := h.userService.GetUserByID(ctx, userID)
	if err != nil {
		respondWithError(w, h.getStatusCode(err), err, "Failed to get user")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(user, "User retrieved successfully"))
}

// HealthCheck reports directory connectivity.
func (h *UserHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.userService.HealthCheck(ctx); err != nil {
		respondWithError(w, http.StatusServiceUnavailable, err, "Service unhealthy")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(nil, "Service is healthy"))
}

func (h *UserHandler) getStatusCode(err error) int {
	switch {
	case errors.Is(err, scylla.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUserAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
