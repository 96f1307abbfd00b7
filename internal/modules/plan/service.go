package plan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/memoria-app/backend/internal/modules/entitlement"
	"github.com/memoria-app/backend/internal/shared/database"
)

// ErrPlanNotFound is returned when a plan id or type has no match
var ErrPlanNotFound = errors.New("plan not found")

// Feature is one line of a plan card's feature list. Included=false
// lines render struck through.
type Feature struct {
	Text     string `json:"text"`
	Included bool   `json:"included"`
}

// Plan represents a subscription plan offered on the pricing page
type Plan struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"planType"`
	Description string    `json:"description"`
	PriceMinor  int64     `json:"basePrice"`
	Currency    string    `json:"currency"`
	Features    []Feature `json:"featureList"`
	Active      bool      `json:"isActive"`
	Popular     bool      `json:"isPopular"`
	SortIndex   int       `json:"sortIndex"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsFree reports whether the plan costs nothing
func (p *Plan) IsFree() bool {
	return p.PriceMinor <= 0
}

// UpdateInput carries optional plan fields; nil fields are left unchanged
type UpdateInput struct {
	Name        *string
	Description *string
	PriceMinor  *int64
	Currency    *string
	Features    *[]Feature
	Active      *bool
	Popular     *bool
	SortIndex   *int
}

// Service handles plan catalog logic
type Service struct {
	db *database.Postgres
}

// NewService creates a new plan service
func NewService(db *database.Postgres) *Service {
	return &Service{db: db}
}

const planColumns = `id, name, plan_type, description, price_minor, currency, features, active, popular, sort_index, created_at, updated_at`

func scanPlan(row pgx.Row) (*Plan, error) {
	var p Plan
	err := row.Scan(&p.ID, &p.Name, &p.Type, &p.Description, &p.PriceMinor, &p.Currency,
		&p.Features, &p.Active, &p.Popular, &p.SortIndex, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &p, nil
}

// List returns plans ordered for display. When activeOnly is set,
// retired plans are excluded.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans`
	if activeOnly {
		query += ` WHERE active = true`
	}
	query += ` ORDER BY sort_index, price_minor`

	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []Plan
	for rows.Next() {
		var p Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.Description, &p.PriceMinor, &p.Currency,
			&p.Features, &p.Active, &p.Popular, &p.SortIndex, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// GetByID returns a single plan
func (s *Service) GetByID(ctx context.Context, id string) (*Plan, error) {
	row := s.db.Pool.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id)
	return scanPlan(row)
}

// Create inserts a new plan
func (s *Service) Create(ctx context.Context, p *Plan) (*Plan, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	switch p.Type {
	case entitlement.PlanTypeMinimal, entitlement.PlanTypeMedium, entitlement.PlanTypePremium:
	default:
		return nil, fmt.Errorf("unknown plan type: %s", p.Type)
	}
	if p.PriceMinor < 0 {
		return nil, fmt.Errorf("price cannot be negative")
	}

	row := s.db.Pool.QueryRow(ctx, `
		INSERT INTO plans (name, plan_type, description, price_minor, currency, features, active, popular, sort_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+planColumns,
		p.Name, p.Type, p.Description, p.PriceMinor, p.Currency, p.Features, p.Active, p.Popular, p.SortIndex)
	return scanPlan(row)
}

// Update applies the non-nil fields of input to an existing plan
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*Plan, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil && *input.Name != "" {
		existing.Name = *input.Name
	}
	if input.Description != nil {
		existing.Description = *input.Description
	}
	if input.PriceMinor != nil && *input.PriceMinor >= 0 {
		existing.PriceMinor = *input.PriceMinor
	}
	if input.Currency != nil && *input.Currency != "" {
		existing.Currency = *input.Currency
	}
	if input.Features != nil {
		existing.Features = *input.Features
	}
	if input.Active != nil {
		existing.Active = *input.Active
	}
	if input.Popular != nil {
		existing.Popular = *input.Popular
	}
	if input.SortIndex != nil {
		existing.SortIndex = *input.SortIndex
	}

	row := s.db.Pool.QueryRow(ctx, `
		UPDATE plans
		SET name = $1, description = $2, price_minor = $3, currency = $4,
		    features = $5, active = $6, popular = $7, sort_index = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING `+planColumns,
		existing.Name, existing.Description, existing.PriceMinor, existing.Currency,
		existing.Features, existing.Active, existing.Popular, existing.SortIndex, id)
	return scanPlan(row)
}

// Delete retires a plan. Plans referenced by past payments are kept in
// the table, so this is a soft delete.
func (s *Service) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Pool.Exec(ctx, `UPDATE plans SET active = false, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}
