package promo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/modules/plan"
	"github.com/memoria-app/backend/internal/modules/pricing"
	"github.com/memoria-app/backend/internal/shared/database"
	"github.com/memoria-app/backend/internal/shared/metrics"
)

// Sentinel errors surfaced to the API layer
var (
	ErrPromoInvalid      = errors.New("promo code is invalid or expired")
	ErrPromoExhausted    = errors.New("promo code has no uses remaining")
	ErrPromoInapplicable = errors.New("promo code cannot be applied to this plan")
)

// PromoCode represents a stored promo code
type PromoCode struct {
	ID              string           `json:"id"`
	Code            string           `json:"code"`
	Discount        pricing.Discount `json:"discount"`
	AppliesToPlanID *string          `json:"appliesToPlanId,omitempty"` // nil means any paid plan
	MaxUses         int              `json:"maxUses"`                   // 0 means unlimited
	Uses            int              `json:"uses"`
	Active          bool             `json:"active"`
	ExpiresAt       *time.Time       `json:"expiresAt,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// Application is a promo successfully applied to one plan card. It is
// what the frontend renders as the "applied" state and what checkout
// reads to price the session.
type Application struct {
	PromoID         string           `json:"promoId"`
	Code            string           `json:"code"`
	PlanID          string           `json:"planId"`
	Discount        pricing.Discount `json:"discount"`
	OriginalPrice   int64            `json:"originalPrice"`
	DiscountedPrice int64            `json:"discountedPrice"`
	Savings         int64            `json:"savings"`
}

// RedeemableAt reports whether the code can still be redeemed at the
// given time
func (p *PromoCode) RedeemableAt(now time.Time) error {
	if !p.Active {
		return ErrPromoInvalid
	}
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return ErrPromoInvalid
	}
	if p.MaxUses > 0 && p.Uses >= p.MaxUses {
		return ErrPromoExhausted
	}
	return nil
}

// applicationTTL bounds how long an applied promo survives without a
// checkout. Stripe sessions expire well before this.
const applicationTTL = 30 * time.Minute

// Service handles promo code validation, application state, and
// redemption accounting
type Service struct {
	db      *database.Postgres
	redis   *database.Redis
	plans   *plan.Service
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewService creates a new promo service
func NewService(db *database.Postgres, redis *database.Redis, plans *plan.Service, logger *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		db:      db,
		redis:   redis,
		plans:   plans,
		logger:  logger,
		metrics: m,
	}
}

// NormalizeCode canonicalizes user input before lookup
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GetByCode looks up a promo code. Returns ErrPromoInvalid when the
// code does not exist.
func (s *Service) GetByCode(ctx context.Context, code string) (*PromoCode, error) {
	row := s.db.Pool.QueryRow(ctx, `
		SELECT id, code, discount_type, discount_value, applies_to_plan_id, max_uses, uses, active, expires_at, created_at
		FROM promo_codes
		WHERE code = $1
	`, NormalizeCode(code))

	var p PromoCode
	err := row.Scan(&p.ID, &p.Code, &p.Discount.Type, &p.Discount.Value,
		&p.AppliesToPlanID, &p.MaxUses, &p.Uses, &p.Active, &p.ExpiresAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPromoInvalid
		}
		return nil, fmt.Errorf("failed to look up promo code: %w", err)
	}
	return &p, nil
}

// Validate checks a code against a plan and computes the discounted
// price. It does not consume a use or store any state.
func (s *Service) Validate(ctx context.Context, code, planID string) (*Application, error) {
	target, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if target.IsFree() {
		s.recordValidation("inapplicable")
		return nil, ErrPromoInapplicable
	}

	promo, err := s.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrPromoInvalid) {
			s.recordValidation("invalid")
		}
		return nil, err
	}

	if promo.AppliesToPlanID != nil && *promo.AppliesToPlanID != target.ID {
		s.recordValidation("inapplicable")
		return nil, ErrPromoInapplicable
	}

	if err := promo.RedeemableAt(time.Now()); err != nil {
		if errors.Is(err, ErrPromoExhausted) {
			s.recordValidation("exhausted")
		} else {
			s.recordValidation("invalid")
		}
		return nil, err
	}

	s.recordValidation("valid")
	return &Application{
		PromoID:         promo.ID,
		Code:            promo.Code,
		PlanID:          target.ID,
		Discount:        promo.Discount,
		OriginalPrice:   target.PriceMinor,
		DiscountedPrice: pricing.ApplyDiscount(target.PriceMinor, promo.Discount),
		Savings:         pricing.Savings(target.PriceMinor, promo.Discount),
	}, nil
}

// applicationKey scopes applied state to one memorial and one plan
// card, so applying a code to one plan never touches another
func applicationKey(memorialID, planID string) string {
	return fmt.Sprintf("promo:%s:%s", memorialID, planID)
}

// Apply validates a code and stores the application for the memorial's
// plan card
func (s *Service) Apply(ctx context.Context, memorialID, code, planID string) (*Application, error) {
	app, err := s.Validate(ctx, code, planID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(app)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal promo application: %w", err)
	}
	if err := s.redis.Set(ctx, applicationKey(memorialID, planID), data, applicationTTL); err != nil {
		return nil, fmt.Errorf("failed to store promo application: %w", err)
	}

	s.logger.Info("promo applied",
		zap.String("memorial_id", memorialID),
		zap.String("plan_id", planID),
		zap.String("code", app.Code))
	return app, nil
}

// Remove clears an applied promo from the memorial's plan card.
// Removing a promo that was never applied is a no-op.
func (s *Service) Remove(ctx context.Context, memorialID, planID string) error {
	return s.redis.Delete(ctx, applicationKey(memorialID, planID))
}

// GetApplied returns the promo currently applied to the memorial's
// plan card, or nil when none is applied
func (s *Service) GetApplied(ctx context.Context, memorialID, planID string) (*Application, error) {
	data, err := s.redis.Get(ctx, applicationKey(memorialID, planID))
	if err != nil || data == "" {
		return nil, nil
	}

	var app Application
	if err := json.Unmarshal([]byte(data), &app); err != nil {
		// Stale or corrupt state: drop it rather than block checkout
		s.redis.Delete(ctx, applicationKey(memorialID, planID))
		return nil, nil
	}
	return &app, nil
}

// Redeem consumes one use of a promo code. The guard in the UPDATE
// keeps concurrent checkouts from overspending a limited code.
func (s *Service) Redeem(ctx context.Context, promoID string) error {
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE promo_codes
		SET uses = uses + 1
		WHERE id = $1 AND active = true AND (max_uses = 0 OR uses < max_uses)
	`, promoID)
	if err != nil {
		return fmt.Errorf("failed to redeem promo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPromoExhausted
	}
	return nil
}

// Create inserts a new promo code
func (s *Service) Create(ctx context.Context, p *PromoCode) (*PromoCode, error) {
	code := NormalizeCode(p.Code)
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}
	switch p.Discount.Type {
	case pricing.DiscountPercentage, pricing.DiscountFixed, pricing.DiscountFree:
	default:
		return nil, fmt.Errorf("unknown discount type: %s", p.Discount.Type)
	}
	if p.Discount.Value < 0 {
		return nil, fmt.Errorf("discount value cannot be negative")
	}

	row := s.db.Pool.QueryRow(ctx, `
		INSERT INTO promo_codes (code, discount_type, discount_value, applies_to_plan_id, max_uses, uses, active, expires_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7)
		RETURNING id, code, discount_type, discount_value, applies_to_plan_id, max_uses, uses, active, expires_at, created_at
	`, code, p.Discount.Type, p.Discount.Value, p.AppliesToPlanID, p.MaxUses, p.Active, p.ExpiresAt)

	var created PromoCode
	err := row.Scan(&created.ID, &created.Code, &created.Discount.Type, &created.Discount.Value,
		&created.AppliesToPlanID, &created.MaxUses, &created.Uses, &created.Active, &created.ExpiresAt, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create promo code: %w", err)
	}
	return &created, nil
}

// List returns all promo codes, newest first
func (s *Service) List(ctx context.Context) ([]PromoCode, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, code, discount_type, discount_value, applies_to_plan_id, max_uses, uses, active, expires_at, created_at
		FROM promo_codes
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list promo codes: %w", err)
	}
	defer rows.Close()

	var promos []PromoCode
	for rows.Next() {
		var p PromoCode
		if err := rows.Scan(&p.ID, &p.Code, &p.Discount.Type, &p.Discount.Value,
			&p.AppliesToPlanID, &p.MaxUses, &p.Uses, &p.Active, &p.ExpiresAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan promo code: %w", err)
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

// Deactivate turns a code off without losing its redemption history
func (s *Service) Deactivate(ctx context.Context, id string) error {
	tag, err := s.db.Pool.Exec(ctx, `UPDATE promo_codes SET active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate promo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPromoInvalid
	}
	return nil
}

func (s *Service) recordValidation(result string) {
	if s.metrics != nil {
		s.metrics.RecordPromoValidation(result)
	}
}
