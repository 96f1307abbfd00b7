package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/api/middleware"
	"github.com/memoria-app/backend/internal/modules/checkout"
	"github.com/memoria-app/backend/internal/modules/plan"
	"github.com/memoria-app/backend/internal/modules/promo"
)

// PaymentHandler handles memorial payment initiation and Stripe webhooks
type PaymentHandler struct {
	checkout      *checkout.Service
	promos        *promo.Service
	webhookSecret string
	logger        *zap.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(checkoutSvc *checkout.Service, promos *promo.Service, webhookSecret string, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		checkout:      checkoutSvc,
		promos:        promos,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// InitiatePaymentRequest represents the request to start a memorial
// plan checkout
type InitiatePaymentRequest struct {
	PlanID     string `json:"planId"`
	MemorialID string `json:"memorialId"`
	PromoCode  string `json:"promoCode,omitempty"`
}

// InitiatePaymentResponse carries the Stripe Checkout redirect URL
type InitiatePaymentResponse struct {
	RedirectURL string `json:"redirectUrl"`
}

// InitiateMemorialPayment creates a Stripe Checkout session for
// upgrading a memorial's plan
func (h *PaymentHandler) InitiateMemorialPayment(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil || user.IsAnonymous() {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req InitiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PlanID == "" || req.MemorialID == "" {
		http.Error(w, "planId and memorialId are required", http.StatusBadRequest)
		return
	}

	// A code sent with the initiation is applied to the card first, so
	// the session prices from the same state the frontend displayed
	if req.PromoCode != "" {
		if _, err := h.promos.Apply(r.Context(), req.MemorialID, req.PromoCode, req.PlanID); err != nil {
			switch {
			case errors.Is(err, promo.ErrPromoInvalid),
				errors.Is(err, promo.ErrPromoExhausted),
				errors.Is(err, promo.ErrPromoInapplicable):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				h.logger.Error("Failed to apply promo at checkout", zap.Error(err))
				http.Error(w, "failed to apply promo code", http.StatusInternalServerError)
			}
			return
		}
	}

	session, err := h.checkout.InitiateMemorialPayment(r.Context(), user.ID, req.MemorialID, req.PlanID)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrCheckoutInProgress):
			http.Error(w, "a checkout for this plan is already in progress", http.StatusConflict)
		case errors.Is(err, checkout.ErrFreePlan):
			http.Error(w, "the free plan does not require payment", http.StatusBadRequest)
		case errors.Is(err, plan.ErrPlanNotFound):
			http.Error(w, "plan not found", http.StatusNotFound)
		case errors.Is(err, checkout.ErrStripeNotConfigured):
			http.Error(w, "payments are not configured", http.StatusServiceUnavailable)
		default:
			h.logger.Error("Failed to initiate payment",
				zap.String("memorial_id", req.MemorialID),
				zap.String("plan_id", req.PlanID),
				zap.Error(err),
			)
			http.Error(w, "failed to initiate payment", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(InitiatePaymentResponse{RedirectURL: session.URL})
}

// HandleWebhook processes Stripe webhook events
func (h *PaymentHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret == "" {
		h.logger.Warn("Stripe webhook secret not configured")
		http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("Failed to read webhook body", zap.Error(err))
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		r.Header.Get("Stripe-Signature"),
		h.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true, // Allow Stripe CLI with different API versions
		},
	)
	if err != nil {
		h.logger.Error("Webhook signature verification failed", zap.Error(err))
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(ctx, event)
	case "checkout.session.expired":
		h.handleCheckoutExpired(ctx, event)
	default:
		h.logger.Debug("Unhandled webhook event", zap.String("type", string(event.Type)))
	}

	w.WriteHeader(http.StatusOK)
}

func (h *PaymentHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		h.logger.Error("Failed to parse checkout session", zap.Error(err))
		return
	}

	meta := sess.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	if sess.Customer != nil && meta["stripe_customer_id"] == "" {
		meta["stripe_customer_id"] = sess.Customer.ID
	}

	if err := h.checkout.CompletePayment(ctx, sess.ID, meta); err != nil {
		h.logger.Error("Failed to complete payment",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		return
	}

	h.logger.Info("Checkout completed",
		zap.String("session_id", sess.ID),
		zap.String("memorial_id", sess.Metadata["memorial_id"]),
		zap.String("plan_id", sess.Metadata["plan_id"]),
	)
}

func (h *PaymentHandler) handleCheckoutExpired(ctx context.Context, event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		h.logger.Error("Failed to parse checkout session", zap.Error(err))
		return
	}

	if err := h.checkout.CancelPayment(ctx, sess.ID, sess.Metadata); err != nil {
		h.logger.Error("Failed to cancel payment",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		return
	}

	h.logger.Info("Checkout expired",
		zap.String("session_id", sess.ID),
		zap.String("memorial_id", sess.Metadata["memorial_id"]),
	)
}
