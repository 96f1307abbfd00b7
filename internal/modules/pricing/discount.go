package pricing

import "math"

// DiscountType identifies how a promo discount is computed
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
	DiscountFree       DiscountType = "free"
)

// Discount describes a promo code's effect on a plan price.
// For percentage discounts Value is a percentage (0-100 in practice);
// for fixed discounts Value is an amount in minor currency units.
type Discount struct {
	Type  DiscountType `json:"type"`
	Value float64      `json:"value"`
}

// ApplyDiscount returns the discounted price in minor currency units.
//
// A free plan (zero or negative price) always prices to zero. Fixed
// discounts floor at zero so an oversized coupon never produces a
// negative charge. Percentage discounts are applied as-is: values over
// 100 are a configuration error surfaced at charge time, not silently
// clamped here.
func ApplyDiscount(priceMinor int64, d Discount) int64 {
	if priceMinor <= 0 {
		return 0
	}

	switch d.Type {
	case DiscountPercentage:
		discounted := float64(priceMinor) * (1 - d.Value/100)
		return int64(math.Round(discounted))
	case DiscountFixed:
		discounted := priceMinor - int64(math.Round(d.Value))
		if discounted < 0 {
			return 0
		}
		return discounted
	case DiscountFree:
		return 0
	default:
		return priceMinor
	}
}

// Savings returns how much the discount takes off the original price
func Savings(priceMinor int64, d Discount) int64 {
	return priceMinor - ApplyDiscount(priceMinor, d)
}
