package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestValidatePromoRequestValidation(t *testing.T) {
	handler := NewPromoHandler(nil, zap.NewNop())

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"missing promoCode", `{"memorialId":"mem-1","planId":"plan-1"}`},
		{"missing memorialId", `{"promoCode":"SAVE20","planId":"plan-1"}`},
		{"missing planId", `{"promoCode":"SAVE20","memorialId":"mem-1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/validate-promo", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler.ValidatePromo(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRemovePromoRequestValidation(t *testing.T) {
	handler := NewPromoHandler(nil, zap.NewNop())

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"missing memorialId", `{"planId":"plan-1"}`},
		{"missing planId", `{"memorialId":"mem-1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/remove-promo", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler.RemovePromo(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
