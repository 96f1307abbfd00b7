package user

import (
	"context"
	"fmt"
	"time"

	"github.com/memoria-app/backend/internal/modules/entitlement"
	"github.com/memoria-app/backend/internal/shared/database"
)

// User is the admin view of a platform user
type User struct {
	UserID        string    `json:"userId"`
	Tier          string    `json:"tier"`
	MemorialCount int       `json:"memorialCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Service provides admin user management
type Service struct {
	db *database.Postgres
}

// NewService creates a new user service
func NewService(db *database.Postgres) *Service {
	return &Service{db: db}
}

// List returns all users with their tier and memorial count
func (s *Service) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT p.user_id, p.tier, COUNT(m.id), p.created_at
		FROM user_profiles p
		LEFT JOIN memorials m ON m.owner_id = p.user_id
		GROUP BY p.user_id, p.tier, p.created_at
		ORDER BY p.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.UserID, &u.Tier, &u.MemorialCount, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetTier overrides a user's tier (admin action, no payment involved)
func (s *Service) SetTier(ctx context.Context, userID, tier string) error {
	switch tier {
	case entitlement.TierFree, entitlement.TierPlus, entitlement.TierPremium:
	default:
		return fmt.Errorf("unknown tier: %s", tier)
	}

	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE user_profiles SET tier = $1, updated_at = NOW() WHERE user_id = $2
	`, tier, userID)
	if err != nil {
		return fmt.Errorf("failed to set tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}
