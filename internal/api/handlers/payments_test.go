package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/api/middleware"
)

func TestNewPaymentHandler(t *testing.T) {
	logger := zap.NewNop()

	t.Run("creates handler with configuration", func(t *testing.T) {
		handler := NewPaymentHandler(nil, nil, "whsec_123", logger)

		assert.NotNil(t, handler)
		assert.Equal(t, "whsec_123", handler.webhookSecret)
	})
}

func TestHandleWebhookRejectsWhenUnconfigured(t *testing.T) {
	handler := NewPaymentHandler(nil, nil, "", zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhooks/stripe", strings.NewReader("{}"))
	rec := httptest.NewRecorder()

	handler.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	handler := NewPaymentHandler(nil, nil, "whsec_test", zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhooks/stripe", strings.NewReader(`{"type":"checkout.session.completed"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=bogus")
	rec := httptest.NewRecorder()

	handler.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInitiateMemorialPaymentValidation(t *testing.T) {
	handler := NewPaymentHandler(nil, nil, "", zap.NewNop())

	t.Run("rejects anonymous users", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/initiate-memorial-payment", strings.NewReader(`{"planId":"p","memorialId":"m"}`))
		rec := httptest.NewRecorder()

		handler.InitiateMemorialPayment(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	tests := []struct {
		name string
		body string
	}{
		{"missing body", ""},
		{"missing planId", `{"memorialId":"mem-1"}`},
		{"missing memorialId", `{"planId":"plan-1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/payments/initiate-memorial-payment", strings.NewReader(tt.body))
			req = req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, &middleware.User{ID: "user_1", Tier: "free"}))
			rec := httptest.NewRecorder()

			handler.InitiateMemorialPayment(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
