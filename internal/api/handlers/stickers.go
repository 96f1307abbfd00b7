package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/api/middleware"
	"github.com/memoria-app/backend/internal/modules/sticker"
)

// StickerHandler handles QR sticker options and orders
type StickerHandler struct {
	stickers *sticker.Service
	logger   *zap.Logger
}

// NewStickerHandler creates a new sticker handler
func NewStickerHandler(stickers *sticker.Service, logger *zap.Logger) *StickerHandler {
	return &StickerHandler{
		stickers: stickers,
		logger:   logger,
	}
}

// ListOptions returns the active sticker options
func (h *StickerHandler) ListOptions(w http.ResponseWriter, r *http.Request) {
	options, err := h.stickers.ListOptions(r.Context(), true)
	if err != nil {
		h.logger.Error("Failed to list sticker options", zap.Error(err))
		http.Error(w, "failed to list sticker options", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(options)
}

// CreateOptionRequest represents the request to add a sticker option
type CreateOptionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceMinor  int64  `json:"priceMinor"`
}

// CreateOption adds a sticker option (admin)
func (h *StickerHandler) CreateOption(w http.ResponseWriter, r *http.Request) {
	var req CreateOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	created, err := h.stickers.CreateOption(r.Context(), &sticker.Option{
		Name:        req.Name,
		Description: req.Description,
		PriceMinor:  req.PriceMinor,
		Active:      true,
	})
	if err != nil {
		h.logger.Error("Failed to create sticker option", zap.Error(err))
		http.Error(w, "failed to create sticker option", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// DeactivateOption retires a sticker option (admin)
func (h *StickerHandler) DeactivateOption(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "option id required", http.StatusBadRequest)
		return
	}

	if err := h.stickers.DeactivateOption(r.Context(), id); err != nil {
		h.logger.Error("Failed to deactivate sticker option", zap.Error(err))
		http.Error(w, "failed to deactivate sticker option", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PlaceOrderRequest represents the request to order stickers
type PlaceOrderRequest struct {
	StickerID       string `json:"stickerId"`
	MemorialID      string `json:"memorialId"`
	Quantity        int    `json:"quantity"`
	ShippingAddress string `json:"shippingAddress"`
}

// PlaceOrder creates a sticker order for a memorial
func (h *StickerHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil || user.IsAnonymous() {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.StickerID == "" || req.MemorialID == "" || req.ShippingAddress == "" {
		http.Error(w, "stickerId, memorialId and shippingAddress are required", http.StatusBadRequest)
		return
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	order, err := h.stickers.PlaceOrder(r.Context(), req.StickerID, req.MemorialID, user.ID, req.ShippingAddress, req.Quantity)
	if err != nil {
		if errors.Is(err, sticker.ErrStickerNotFound) {
			http.Error(w, "sticker option not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to place sticker order", zap.Error(err))
		http.Error(w, "failed to place order", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(order)
}

// ListOrders returns sticker orders, optionally filtered by status (admin)
func (h *StickerHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.stickers.ListOrders(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.logger.Error("Failed to list sticker orders", zap.Error(err))
		http.Error(w, "failed to list orders", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

// UpdateOrderStatusRequest represents an order status change
type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus moves an order through the fulfilment pipeline (admin)
func (h *StickerHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "order id required", http.StatusBadRequest)
		return
	}

	var req UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.stickers.UpdateOrderStatus(r.Context(), id, req.Status); err != nil {
		if errors.Is(err, sticker.ErrInvalidStatus) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if errors.Is(err, sticker.ErrOrderNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to update order status", zap.Error(err))
		http.Error(w, "failed to update order", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
