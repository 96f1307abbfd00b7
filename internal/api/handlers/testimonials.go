package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/modules/testimonial"
)

// TestimonialHandler handles landing-page testimonials
type TestimonialHandler struct {
	testimonials *testimonial.Service
	logger       *zap.Logger
}

// NewTestimonialHandler creates a new testimonial handler
func NewTestimonialHandler(testimonials *testimonial.Service, logger *zap.Logger) *TestimonialHandler {
	return &TestimonialHandler{
		testimonials: testimonials,
		logger:       logger,
	}
}

// List returns approved testimonials. Admins pass ?all=true to include
// pending submissions.
func (h *TestimonialHandler) List(w http.ResponseWriter, r *http.Request) {
	approvedOnly := r.URL.Query().Get("all") != "true"

	items, err := h.testimonials.List(r.Context(), approvedOnly)
	if err != nil {
		h.logger.Error("Failed to list testimonials", zap.Error(err))
		http.Error(w, "failed to list testimonials", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

// SubmitRequest represents a testimonial submission
type SubmitRequest struct {
	AuthorName string `json:"authorName"`
	Quote      string `json:"quote"`
}

// Submit accepts a testimonial, pending approval
func (h *TestimonialHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AuthorName == "" || req.Quote == "" {
		http.Error(w, "authorName and quote are required", http.StatusBadRequest)
		return
	}

	created, err := h.testimonials.Submit(r.Context(), req.AuthorName, req.Quote)
	if err != nil {
		h.logger.Error("Failed to submit testimonial", zap.Error(err))
		http.Error(w, "failed to submit testimonial", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// Approve publishes a testimonial (admin)
func (h *TestimonialHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "testimonial id required", http.StatusBadRequest)
		return
	}

	approved, err := h.testimonials.Approve(r.Context(), id)
	if err != nil {
		if errors.Is(err, testimonial.ErrTestimonialNotFound) {
			http.Error(w, "testimonial not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to approve testimonial", zap.Error(err))
		http.Error(w, "failed to approve testimonial", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(approved)
}

// Delete removes a testimonial (admin)
func (h *TestimonialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "testimonial id required", http.StatusBadRequest)
		return
	}

	if err := h.testimonials.Delete(r.Context(), id); err != nil {
		if errors.Is(err, testimonial.ErrTestimonialNotFound) {
			http.Error(w, "testimonial not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to delete testimonial", zap.Error(err))
		http.Error(w, "failed to delete testimonial", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
