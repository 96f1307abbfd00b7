package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/api/middleware"
	"github.com/memoria-app/backend/internal/modules/subscription"
	"github.com/memoria-app/backend/internal/modules/user"
)

// UserHandler handles the admin user list and the current-user profile
type UserHandler struct {
	users  *user.Service
	subs   *subscription.Service
	logger *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *user.Service, subs *subscription.Service, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		subs:   subs,
		logger: logger,
	}
}

// GetMe returns the current user's profile with tier and media limits
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUser(r.Context())
	if u == nil || u.IsAnonymous() {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	sub, err := h.subs.GetOrCreateUserProfile(r.Context(), u.ID)
	if err != nil {
		h.logger.Error("Failed to get user profile", zap.Error(err))
		http.Error(w, "failed to get profile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sub)
}

// List returns all users with tier and memorial count (admin)
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list users", zap.Error(err))
		http.Error(w, "failed to list users", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}

// SetTierRequest represents an admin tier override
type SetTierRequest struct {
	Tier string `json:"tier"`
}

// SetTier overrides a user's tier without a payment (admin)
func (h *UserHandler) SetTier(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		http.Error(w, "user id required", http.StatusBadRequest)
		return
	}

	var req SetTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.users.SetTier(r.Context(), userID, req.Tier); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
