package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/memoria-app/backend/internal/modules/entitlement"
	"github.com/memoria-app/backend/internal/shared/database"
)

// UserSubscription represents a user's current plan and media allowances
type UserSubscription struct {
	UserID           string                                          `json:"userId"`
	Tier             string                                          `json:"tier"`
	Limits           map[entitlement.MediaKind]entitlement.MediaLimits `json:"limits"`
	StripeCustomerID string                                          `json:"stripeCustomerId,omitempty"`
	PeriodStart      time.Time                                       `json:"periodStart"`
	PeriodEnd        time.Time                                       `json:"periodEnd"`
}

// Service handles subscription state for users and their memorials
type Service struct {
	db *database.Postgres
}

// NewService creates a new subscription service
func NewService(db *database.Postgres) *Service {
	return &Service{db: db}
}

// GetOrCreateUserProfile ensures a user profile exists and returns it
func (s *Service) GetOrCreateUserProfile(ctx context.Context, userID string) (*UserSubscription, error) {
	sub, err := s.GetUserSubscription(ctx, userID)
	if err == nil {
		return sub, nil
	}
	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO user_profiles (user_id, tier, period_start)
		VALUES ($1, 'free', date_trunc('month', NOW()))
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create user profile: %w", err)
	}
	return s.GetUserSubscription(ctx, userID)
}

// GetUserSubscription returns the user's subscription with the media
// limits their tier grants
func (s *Service) GetUserSubscription(ctx context.Context, userID string) (*UserSubscription, error) {
	var tier string
	var periodStart time.Time
	var stripeCustomerID *string

	err := s.db.Pool.QueryRow(ctx, `
		SELECT tier, COALESCE(period_start, date_trunc('month', NOW())), stripe_customer_id
		FROM user_profiles
		WHERE user_id = $1
	`, userID).Scan(&tier, &periodStart, &stripeCustomerID)
	if err != nil {
		return nil, err
	}

	sub := &UserSubscription{
		UserID: userID,
		Tier:   tier,
		Limits: map[entitlement.MediaKind]entitlement.MediaLimits{
			entitlement.KindPhoto:    entitlement.GetMediaLimits(tier, entitlement.KindPhoto),
			entitlement.KindVideo:    entitlement.GetMediaLimits(tier, entitlement.KindVideo),
			entitlement.KindDocument: entitlement.GetMediaLimits(tier, entitlement.KindDocument),
		},
		PeriodStart: periodStart,
		PeriodEnd:   periodStart.AddDate(0, 1, 0),
	}
	if stripeCustomerID != nil {
		sub.StripeCustomerID = *stripeCustomerID
	}
	return sub, nil
}

// GetTier returns the user's tier. Returns "free" if the user has no
// profile yet.
func (s *Service) GetTier(ctx context.Context, userID string) string {
	sub, err := s.GetUserSubscription(ctx, userID)
	if err != nil || sub.Tier == "" {
		return entitlement.TierFree
	}
	return sub.Tier
}

// UpdateUserTier sets the user's tier after a successful payment
func (s *Service) UpdateUserTier(ctx context.Context, userID, tier string, stripeCustomerID *string) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO user_profiles (user_id, tier, stripe_customer_id, period_start, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, user_profiles.stripe_customer_id),
			period_start = NOW(),
			updated_at = NOW()
	`, userID, tier, stripeCustomerID)
	return err
}

// UpdateMemorialPlan upgrades a memorial to the tier purchased for it
func (s *Service) UpdateMemorialPlan(ctx context.Context, memorialID, tier string) error {
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE memorials
		SET tier = $1, updated_at = NOW()
		WHERE id = $2
	`, tier, memorialID)
	if err != nil {
		return fmt.Errorf("failed to update memorial plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("memorial not found: %s", memorialID)
	}
	return nil
}

// GetUserIDByStripeCustomerID looks up a user from their Stripe
// customer id, used as a webhook fallback when metadata is missing
func (s *Service) GetUserIDByStripeCustomerID(ctx context.Context, stripeCustomerID string) (string, error) {
	var userID string
	err := s.db.Pool.QueryRow(ctx,
		`SELECT user_id FROM user_profiles WHERE stripe_customer_id = $1`, stripeCustomerID).Scan(&userID)
	return userID, err
}
