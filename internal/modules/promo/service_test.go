package promo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/memoria-app/backend/internal/modules/pricing"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"WELCOME10", "WELCOME10"},
		{"welcome10", "WELCOME10"},
		{"  Welcome10  ", "WELCOME10"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeCode(tt.input))
	}
}

func TestRedeemableAt(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	base := PromoCode{
		ID:       "promo-1",
		Code:     "WELCOME10",
		Discount: pricing.Discount{Type: pricing.DiscountPercentage, Value: 10},
		Active:   true,
	}

	tests := []struct {
		name    string
		mutate  func(*PromoCode)
		wantErr error
	}{
		{
			name:    "active unlimited code is redeemable",
			mutate:  func(p *PromoCode) {},
			wantErr: nil,
		},
		{
			name:    "inactive code is invalid",
			mutate:  func(p *PromoCode) { p.Active = false },
			wantErr: ErrPromoInvalid,
		},
		{
			name:    "expired code is invalid",
			mutate:  func(p *PromoCode) { p.ExpiresAt = &past },
			wantErr: ErrPromoInvalid,
		},
		{
			name:    "future expiry is redeemable",
			mutate:  func(p *PromoCode) { p.ExpiresAt = &future },
			wantErr: nil,
		},
		{
			name: "exhausted code",
			mutate: func(p *PromoCode) {
				p.MaxUses = 5
				p.Uses = 5
			},
			wantErr: ErrPromoExhausted,
		},
		{
			name: "uses remaining",
			mutate: func(p *PromoCode) {
				p.MaxUses = 5
				p.Uses = 4
			},
			wantErr: nil,
		},
		{
			name: "zero max uses means unlimited",
			mutate: func(p *PromoCode) {
				p.MaxUses = 0
				p.Uses = 10000
			},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)

			err := p.RedeemableAt(now)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestApplicationKeyIsolation(t *testing.T) {
	t.Run("different plans for the same memorial get distinct keys", func(t *testing.T) {
		plusKey := applicationKey("memorial-1", "plan-plus")
		premiumKey := applicationKey("memorial-1", "plan-premium")
		assert.NotEqual(t, plusKey, premiumKey)
	})

	t.Run("different memorials for the same plan get distinct keys", func(t *testing.T) {
		assert.NotEqual(t,
			applicationKey("memorial-1", "plan-plus"),
			applicationKey("memorial-2", "plan-plus"))
	})
}
