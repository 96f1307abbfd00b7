package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/modules/plan"
	"github.com/memoria-app/backend/internal/modules/pricing"
	"github.com/memoria-app/backend/internal/modules/promo"
)

// PromoHandler handles promo code validation and admin management
type PromoHandler struct {
	promos *promo.Service
	logger *zap.Logger
}

// NewPromoHandler creates a new promo handler
func NewPromoHandler(promos *promo.Service, logger *zap.Logger) *PromoHandler {
	return &PromoHandler{
		promos: promos,
		logger: logger,
	}
}

// ValidatePromoRequest represents the request to validate a promo code
// against one plan card
type ValidatePromoRequest struct {
	PromoCode  string `json:"promoCode"`
	MemorialID string `json:"memorialId"`
	PlanID     string `json:"planId"`
}

// ValidatePromoResponse represents the validation outcome. An invalid
// code is a 200 with IsValid=false and a message, not an error status:
// the frontend renders it inline on the plan card.
type ValidatePromoResponse struct {
	IsValid         bool    `json:"isValid"`
	DiscountType    string  `json:"discountType,omitempty"`
	DiscountValue   float64 `json:"discountValue,omitempty"`
	AppliesToPlan   bool    `json:"appliesToPlan"`
	OriginalPrice   int64   `json:"originalPrice,omitempty"`
	DiscountedPrice int64   `json:"discountedPrice,omitempty"`
	Message         string  `json:"message,omitempty"`
}

// ValidatePromo validates a code against a plan and, when valid,
// stores the applied state for that (memorial, plan) card
func (h *PromoHandler) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	var req ValidatePromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PromoCode == "" || req.MemorialID == "" || req.PlanID == "" {
		http.Error(w, "promoCode, memorialId and planId are required", http.StatusBadRequest)
		return
	}

	app, err := h.promos.Apply(r.Context(), req.MemorialID, req.PromoCode, req.PlanID)
	if err != nil {
		resp := ValidatePromoResponse{IsValid: false}
		switch {
		case errors.Is(err, promo.ErrPromoInvalid):
			resp.Message = promo.ErrPromoInvalid.Error()
		case errors.Is(err, promo.ErrPromoExhausted):
			resp.Message = promo.ErrPromoExhausted.Error()
		case errors.Is(err, promo.ErrPromoInapplicable):
			resp.Message = promo.ErrPromoInapplicable.Error()
		case errors.Is(err, plan.ErrPlanNotFound):
			http.Error(w, "plan not found", http.StatusNotFound)
			return
		default:
			h.logger.Error("Promo validation failed", zap.Error(err))
			http.Error(w, "failed to validate promo code", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ValidatePromoResponse{
		IsValid:         true,
		DiscountType:    string(app.Discount.Type),
		DiscountValue:   app.Discount.Value,
		AppliesToPlan:   true,
		OriginalPrice:   app.OriginalPrice,
		DiscountedPrice: app.DiscountedPrice,
	})
}

// RemovePromoRequest represents the request to clear an applied promo
type RemovePromoRequest struct {
	MemorialID string `json:"memorialId"`
	PlanID     string `json:"planId"`
}

// RemovePromo clears the applied promo state for one plan card. Other
// plan cards of the same memorial keep their state.
func (h *PromoHandler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	var req RemovePromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.MemorialID == "" || req.PlanID == "" {
		http.Error(w, "memorialId and planId are required", http.StatusBadRequest)
		return
	}

	if err := h.promos.Remove(r.Context(), req.MemorialID, req.PlanID); err != nil {
		h.logger.Error("Failed to remove promo", zap.Error(err))
		http.Error(w, "failed to remove promo code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"removed": true})
}

// CreatePromoRequest represents the request to create a promo code (admin)
type CreatePromoRequest struct {
	Code            string     `json:"code"`
	DiscountType    string     `json:"discountType"`
	DiscountValue   float64    `json:"discountValue"`
	AppliesToPlanID *string    `json:"appliesToPlanId"`
	MaxUses         int        `json:"maxUses"`
	ExpiresAt       *time.Time `json:"expiresAt"`
}

// Create adds a new promo code (admin)
func (h *PromoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Code == "" {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}

	created, err := h.promos.Create(r.Context(), &promo.PromoCode{
		Code: req.Code,
		Discount: pricing.Discount{
			Type:  pricing.DiscountType(req.DiscountType),
			Value: req.DiscountValue,
		},
		AppliesToPlanID: req.AppliesToPlanID,
		MaxUses:         req.MaxUses,
		Active:          true,
		ExpiresAt:       req.ExpiresAt,
	})
	if err != nil {
		h.logger.Error("Failed to create promo code", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// List returns all promo codes (admin)
func (h *PromoHandler) List(w http.ResponseWriter, r *http.Request) {
	codes, err := h.promos.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list promo codes", zap.Error(err))
		http.Error(w, "failed to list promo codes", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(codes)
}

// Deactivate disables a promo code (admin)
func (h *PromoHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "promo id required", http.StatusBadRequest)
		return
	}

	if err := h.promos.Deactivate(r.Context(), id); err != nil {
		h.logger.Error("Failed to deactivate promo code", zap.Error(err))
		http.Error(w, "failed to deactivate promo code", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
