package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		name     string
		price    int64
		discount Discount
		expected int64
	}{
		{
			name:     "20 percent off",
			price:    2900, // 29.00
			discount: Discount{Type: DiscountPercentage, Value: 20},
			expected: 2320,
		},
		{
			name:     "100 percent off prices to zero",
			price:    2900,
			discount: Discount{Type: DiscountPercentage, Value: 100},
			expected: 0,
		},
		{
			name:     "zero percent leaves price unchanged",
			price:    2900,
			discount: Discount{Type: DiscountPercentage, Value: 0},
			expected: 2900,
		},
		{
			name:     "percentage result rounds to nearest minor unit",
			price:    999,
			discount: Discount{Type: DiscountPercentage, Value: 33},
			expected: 669, // 999 * 0.67 = 669.33
		},
		{
			name:     "percentage over 100 is not clamped",
			price:    1000,
			discount: Discount{Type: DiscountPercentage, Value: 150},
			expected: -500,
		},
		{
			name:     "fixed amount off",
			price:    2900,
			discount: Discount{Type: DiscountFixed, Value: 500},
			expected: 2400,
		},
		{
			name:     "fixed amount larger than price floors at zero",
			price:    500,
			discount: Discount{Type: DiscountFixed, Value: 2900},
			expected: 0,
		},
		{
			name:     "fixed amount equal to price",
			price:    2900,
			discount: Discount{Type: DiscountFixed, Value: 2900},
			expected: 0,
		},
		{
			name:     "free plan always prices to zero",
			price:    0,
			discount: Discount{Type: DiscountPercentage, Value: 50},
			expected: 0,
		},
		{
			name:     "free plan with fixed discount",
			price:    0,
			discount: Discount{Type: DiscountFixed, Value: 100},
			expected: 0,
		},
		{
			name:     "free discount prices to zero regardless of value",
			price:    2900,
			discount: Discount{Type: DiscountFree, Value: 0},
			expected: 0,
		},
		{
			name:     "unknown discount type leaves price unchanged",
			price:    2900,
			discount: Discount{Type: "loyalty", Value: 50},
			expected: 2900,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ApplyDiscount(tt.price, tt.discount))
		})
	}
}

func TestSavings(t *testing.T) {
	tests := []struct {
		name     string
		price    int64
		discount Discount
		expected int64
	}{
		{
			name:     "percentage savings",
			price:    2900,
			discount: Discount{Type: DiscountPercentage, Value: 20},
			expected: 580,
		},
		{
			name:     "fixed savings capped at the full price",
			price:    500,
			discount: Discount{Type: DiscountFixed, Value: 2900},
			expected: 500,
		},
		{
			name:     "no savings on a free plan",
			price:    0,
			discount: Discount{Type: DiscountPercentage, Value: 50},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Savings(tt.price, tt.discount))
		})
	}
}
