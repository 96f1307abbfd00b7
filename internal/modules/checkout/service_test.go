package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/memoria-app/backend/internal/modules/plan"
	"github.com/memoria-app/backend/internal/modules/promo"
)

func TestProcessingKeyIsolation(t *testing.T) {
	t.Run("each plan card is guarded independently", func(t *testing.T) {
		assert.NotEqual(t,
			processingKey("memorial-1", "plan-plus"),
			processingKey("memorial-1", "plan-premium"))
	})

	t.Run("guards do not leak across memorials", func(t *testing.T) {
		assert.NotEqual(t,
			processingKey("memorial-1", "plan-plus"),
			processingKey("memorial-2", "plan-plus"))
	})

	t.Run("key is stable for the same card", func(t *testing.T) {
		assert.Equal(t,
			processingKey("memorial-1", "plan-plus"),
			processingKey("memorial-1", "plan-plus"))
	})
}

func TestResolveCharge(t *testing.T) {
	premium := &plan.Plan{ID: "plan-premium", Type: "premium", PriceMinor: 9900}

	tests := []struct {
		name     string
		applied  *promo.Application
		expected charge
	}{
		{
			name:     "no promo bills the base price",
			applied:  nil,
			expected: charge{Amount: 9900},
		},
		{
			name: "percentage promo bills the discounted price",
			applied: &promo.Application{
				PromoID:         "promo-1",
				Code:            "REMEMBER20",
				PlanID:          "plan-premium",
				OriginalPrice:   9900,
				DiscountedPrice: 7920,
			},
			expected: charge{Amount: 7920, PromoID: "promo-1", PromoCode: "REMEMBER20"},
		},
		{
			name: "free promo settles without billing",
			applied: &promo.Application{
				PromoID:         "promo-2",
				Code:            "GIFTED",
				PlanID:          "plan-premium",
				OriginalPrice:   9900,
				DiscountedPrice: 0,
			},
			expected: charge{PromoID: "promo-2", PromoCode: "GIFTED", Settled: true},
		},
		{
			name: "over-discounted price still settles",
			applied: &promo.Application{
				PromoID:         "promo-3",
				Code:            "TOOMUCH",
				PlanID:          "plan-premium",
				OriginalPrice:   9900,
				DiscountedPrice: -100,
			},
			expected: charge{Amount: -100, PromoID: "promo-3", PromoCode: "TOOMUCH", Settled: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveCharge(premium, tt.applied))
		})
	}
}
