package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/modules/plan"
)

// PlanHandler serves the subscription plan catalog
type PlanHandler struct {
	plans  *plan.Service
	logger *zap.Logger
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(plans *plan.Service, logger *zap.Logger) *PlanHandler {
	return &PlanHandler{
		plans:  plans,
		logger: logger,
	}
}

// GetSubscription returns the active plans for the pricing page, as
// a bare array: the frontend maps over it to render the plan cards.
func (h *PlanHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.List(r.Context(), true)
	if err != nil {
		h.logger.Error("Failed to list plans", zap.Error(err))
		http.Error(w, "failed to load plans", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(plans)
}

// ListAll returns every plan, active or not (admin)
func (h *PlanHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.List(r.Context(), false)
	if err != nil {
		h.logger.Error("Failed to list plans", zap.Error(err))
		http.Error(w, "failed to load plans", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(plans)
}

// CreatePlanRequest represents the request to create a plan
type CreatePlanRequest struct {
	Name        string         `json:"name"`
	PlanType    string         `json:"planType"`
	Description string         `json:"description"`
	BasePrice   int64          `json:"basePrice"`
	Currency    string         `json:"currency"`
	Features    []plan.Feature `json:"featureList"`
	Popular     bool           `json:"isPopular"`
	SortIndex   int            `json:"sortIndex"`
}

// Create adds a new plan to the catalog (admin)
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.PlanType == "" {
		http.Error(w, "name and planType are required", http.StatusBadRequest)
		return
	}

	created, err := h.plans.Create(r.Context(), &plan.Plan{
		Name:        req.Name,
		Type:        req.PlanType,
		Description: req.Description,
		PriceMinor:  req.BasePrice,
		Currency:    req.Currency,
		Features:    req.Features,
		Active:      true,
		Popular:     req.Popular,
		SortIndex:   req.SortIndex,
	})
	if err != nil {
		h.logger.Error("Failed to create plan", zap.Error(err))
		http.Error(w, "failed to create plan", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// UpdatePlanRequest represents a partial plan update
type UpdatePlanRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	BasePrice   *int64          `json:"basePrice"`
	Features    *[]plan.Feature `json:"featureList"`
	Active      *bool           `json:"isActive"`
	Popular     *bool           `json:"isPopular"`
	SortIndex   *int            `json:"sortIndex"`
}

// Update modifies a plan (admin)
func (h *PlanHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "plan id required", http.StatusBadRequest)
		return
	}

	var req UpdatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.plans.Update(r.Context(), id, plan.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		PriceMinor:  req.BasePrice,
		Features:    req.Features,
		Active:      req.Active,
		Popular:     req.Popular,
		SortIndex:   req.SortIndex,
	})
	if err != nil {
		if errors.Is(err, plan.ErrPlanNotFound) {
			http.Error(w, "plan not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to update plan", zap.Error(err))
		http.Error(w, "failed to update plan", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// Delete retires a plan from the catalog (admin)
func (h *PlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "plan id required", http.StatusBadRequest)
		return
	}

	if err := h.plans.Delete(r.Context(), id); err != nil {
		if errors.Is(err, plan.ErrPlanNotFound) {
			http.Error(w, "plan not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to delete plan", zap.Error(err))
		http.Error(w, "failed to delete plan", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
