package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/customer"
	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/modules/entitlement"
	"github.com/memoria-app/backend/internal/modules/plan"
	"github.com/memoria-app/backend/internal/modules/promo"
	"github.com/memoria-app/backend/internal/modules/subscription"
	"github.com/memoria-app/backend/internal/shared/database"
	"github.com/memoria-app/backend/internal/shared/metrics"
)

// Sentinel errors surfaced to the API layer
var (
	ErrCheckoutInProgress  = errors.New("a payment for this plan is already being processed")
	ErrFreePlan            = errors.New("the free plan does not require payment")
	ErrStripeNotConfigured = errors.New("payments are not configured")
)

// processingTTL bounds the double-submission guard so an abandoned
// checkout never locks the plan card permanently
const processingTTL = 2 * time.Minute

// Session is the handoff to the external payment page
type Session struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// Config holds Stripe and redirect settings for checkout
type Config struct {
	SecretKey  string
	Currency   string
	SuccessURL string
	CancelURL  string
}

// Service drives the memorial payment flow: it guards against double
// submission, folds in any applied promo, and hands the user off to
// Stripe Checkout
type Service struct {
	db      *database.Postgres
	redis   *database.Redis
	plans   *plan.Service
	promos  *promo.Service
	subs    *subscription.Service
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewService creates a new checkout service
func NewService(db *database.Postgres, redis *database.Redis, plans *plan.Service, promos *promo.Service, subs *subscription.Service, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		db:      db,
		redis:   redis,
		plans:   plans,
		promos:  promos,
		subs:    subs,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// processingKey scopes the in-flight guard to one memorial and one
// plan, so paying for one plan never blocks another card
func processingKey(memorialID, planID string) string {
	return fmt.Sprintf("checkout:processing:%s:%s", memorialID, planID)
}

// InitiateMemorialPayment creates a Stripe Checkout session for the
// given memorial and plan. Any promo applied to the plan card is
// priced in. The returned session URL sends the user to Stripe; state
// is resolved later by the webhook.
func (s *Service) InitiateMemorialPayment(ctx context.Context, userID, memorialID, planID string) (*Session, error) {
	if s.cfg.SecretKey == "" {
		return nil, ErrStripeNotConfigured
	}

	target, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if target.IsFree() {
		return nil, ErrFreePlan
	}

	// Double-submission guard, keyed per plan so each card is
	// independent
	acquired, err := s.redis.Client.SetNX(ctx, processingKey(memorialID, planID), userID, processingTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire checkout guard: %w", err)
	}
	if !acquired {
		return nil, ErrCheckoutInProgress
	}

	sess, err := s.createStripeSession(ctx, userID, memorialID, target)
	if err != nil {
		// Recoverable failure: release the guard so the user can retry
		s.ReleaseGuard(ctx, memorialID, planID)
		s.recordCheckout(target.Type, false)
		return nil, err
	}

	s.recordCheckout(target.Type, true)
	return sess, nil
}

// charge is what a checkout session will bill after folding in the
// promo applied to the plan card
type charge struct {
	Amount    int64
	PromoID   string
	PromoCode string
	Settled   bool // nothing left to bill; skip Stripe entirely
}

// resolveCharge folds the card's applied promo into the plan's base
// price. A fully discounted price settles without a Stripe round trip,
// since Stripe rejects zero-amount sessions.
func resolveCharge(target *plan.Plan, applied *promo.Application) charge {
	c := charge{Amount: target.PriceMinor}
	if applied != nil {
		c.Amount = applied.DiscountedPrice
		c.PromoID = applied.PromoID
		c.PromoCode = applied.Code
	}
	c.Settled = c.Amount <= 0
	return c
}

func (s *Service) createStripeSession(ctx context.Context, userID, memorialID string, target *plan.Plan) (*Session, error) {
	applied, err := s.promos.GetApplied(ctx, memorialID, target.ID)
	if err != nil {
		applied = nil
	}
	bill := resolveCharge(target, applied)
	amount, promoID, promoCode := bill.Amount, bill.PromoID, bill.PromoCode

	if bill.Settled {
		if err := s.completeFreeCheckout(ctx, userID, memorialID, target, promoID); err != nil {
			return nil, err
		}
		return &Session{URL: s.cfg.SuccessURL}, nil
	}

	stripe.Key = s.cfg.SecretKey

	custID, err := s.getOrCreateCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(custID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(s.cfg.Currency),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(target.Name),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.cfg.SuccessURL),
		CancelURL:  stripe.String(s.cfg.CancelURL),
		Metadata: map[string]string{
			"user_id":            userID,
			"memorial_id":        memorialID,
			"plan_id":            target.ID,
			"tier":               entitlement.TierForPlanType(target.Type),
			"promo_id":           promoID,
			"promo_code":         promoCode,
			"stripe_customer_id": custID,
		},
	}

	sess, err := session.New(params)
	if err != nil {
		s.logger.Error("failed to create checkout session",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("plan_id", target.ID))
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	if err := s.recordPayment(ctx, sess.ID, userID, memorialID, target, amount, promoID); err != nil {
		s.logger.Error("failed to record pending payment", zap.Error(err), zap.String("session_id", sess.ID))
	}

	s.logger.Info("checkout session created",
		zap.String("user_id", userID),
		zap.String("memorial_id", memorialID),
		zap.String("plan_id", target.ID),
		zap.Int64("amount_minor", amount))

	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

func (s *Service) getOrCreateCustomer(ctx context.Context, userID string) (string, error) {
	sub, err := s.subs.GetOrCreateUserProfile(ctx, userID)
	if err == nil && sub.StripeCustomerID != "" {
		return sub.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{}
	params.AddMetadata("user_id", userID)
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe customer: %w", err)
	}
	return c.ID, nil
}

func (s *Service) recordPayment(ctx context.Context, sessionID, userID, memorialID string, target *plan.Plan, amount int64, promoID string) error {
	var promoRef *string
	if promoID != "" {
		promoRef = &promoID
	}
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO payments (stripe_session_id, user_id, memorial_id, plan_id, promo_id, amount_minor, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
	`, sessionID, userID, memorialID, target.ID, promoRef, amount, s.cfg.Currency)
	return err
}

// completeFreeCheckout settles a fully-discounted purchase without a
// Stripe round trip
func (s *Service) completeFreeCheckout(ctx context.Context, userID, memorialID string, target *plan.Plan, promoID string) error {
	if promoID != "" {
		if err := s.promos.Redeem(ctx, promoID); err != nil {
			s.ReleaseGuard(ctx, memorialID, target.ID)
			return err
		}
	}
	tier := entitlement.TierForPlanType(target.Type)
	if err := s.subs.UpdateUserTier(ctx, userID, tier, nil); err != nil {
		s.ReleaseGuard(ctx, memorialID, target.ID)
		return err
	}
	if err := s.subs.UpdateMemorialPlan(ctx, memorialID, tier); err != nil {
		s.logger.Error("failed to upgrade memorial after free checkout", zap.Error(err))
	}
	s.promos.Remove(ctx, memorialID, target.ID)
	s.ReleaseGuard(ctx, memorialID, target.ID)

	s.logger.Info("fully discounted checkout completed without payment",
		zap.String("user_id", userID),
		zap.String("plan_id", target.ID))
	return nil
}

// CompletePayment settles a paid Stripe session: mark the payment,
// upgrade user and memorial, consume the promo, and clear transient
// state. Called from the webhook handler.
func (s *Service) CompletePayment(ctx context.Context, sessionID string, meta map[string]string) error {
	userID := meta["user_id"]
	memorialID := meta["memorial_id"]
	planID := meta["plan_id"]
	tier := meta["tier"]
	promoID := meta["promo_id"]
	customerID := meta["stripe_customer_id"]

	if userID == "" && customerID != "" {
		// Stripe occasionally redelivers events with stripped metadata;
		// the customer id still identifies the buyer
		recovered, err := s.subs.GetUserIDByStripeCustomerID(ctx, customerID)
		if err == nil {
			userID = recovered
		}
	}
	if userID == "" || planID == "" {
		return fmt.Errorf("checkout session %s missing metadata", sessionID)
	}

	_, err := s.db.Pool.Exec(ctx, `
		UPDATE payments SET status = 'paid', paid_at = NOW() WHERE stripe_session_id = $1
	`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to mark payment paid: %w", err)
	}

	var custRef *string
	if customerID != "" {
		custRef = &customerID
	}
	if err := s.subs.UpdateUserTier(ctx, userID, tier, custRef); err != nil {
		return fmt.Errorf("failed to update user tier: %w", err)
	}
	if memorialID != "" {
		if err := s.subs.UpdateMemorialPlan(ctx, memorialID, tier); err != nil {
			s.logger.Error("failed to upgrade memorial after payment", zap.Error(err),
				zap.String("memorial_id", memorialID))
		}
	}

	if promoID != "" {
		if err := s.promos.Redeem(ctx, promoID); err != nil {
			// The charge already happened; log instead of failing the webhook
			s.logger.Warn("failed to redeem promo after payment",
				zap.Error(err), zap.String("promo_id", promoID))
		}
	}

	s.promos.Remove(ctx, memorialID, planID)
	s.ReleaseGuard(ctx, memorialID, planID)

	s.logger.Info("payment completed",
		zap.String("user_id", userID),
		zap.String("memorial_id", memorialID),
		zap.String("tier", tier))
	return nil
}

// CancelPayment releases transient state after an expired or abandoned
// session so the plan card returns to its idle state
func (s *Service) CancelPayment(ctx context.Context, sessionID string, meta map[string]string) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE payments SET status = 'cancelled' WHERE stripe_session_id = $1 AND status = 'pending'
	`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to mark payment cancelled: %w", err)
	}

	memorialID := meta["memorial_id"]
	planID := meta["plan_id"]
	if memorialID != "" && planID != "" {
		s.ReleaseGuard(ctx, memorialID, planID)
	}
	return nil
}

// ReleaseGuard clears the double-submission guard for a plan card
func (s *Service) ReleaseGuard(ctx context.Context, memorialID, planID string) {
	if err := s.redis.Delete(ctx, processingKey(memorialID, planID)); err != nil {
		s.logger.Warn("failed to release checkout guard",
			zap.Error(err),
			zap.String("memorial_id", memorialID),
			zap.String("plan_id", planID))
	}
}

func (s *Service) recordCheckout(planType string, success bool) {
	if s.metrics != nil {
		s.metrics.RecordCheckout(planType, success)
	}
}
