package testimonial

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/memoria-app/backend/internal/shared/database"
)

// ErrTestimonialNotFound is returned when the id has no match
var ErrTestimonialNotFound = errors.New("testimonial not found")

// Testimonial is a visitor-submitted review shown on the landing page
// once approved
type Testimonial struct {
	ID         string    `json:"id"`
	AuthorName string    `json:"authorName"`
	Quote      string    `json:"quote"`
	Approved   bool      `json:"approved"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Service handles testimonial moderation
type Service struct {
	db *database.Postgres
}

// NewService creates a new testimonial service
func NewService(db *database.Postgres) *Service {
	return &Service{db: db}
}

// Submit stores a new testimonial awaiting approval
func (s *Service) Submit(ctx context.Context, authorName, quote string) (*Testimonial, error) {
	if authorName == "" || quote == "" {
		return nil, fmt.Errorf("author name and quote are required")
	}

	var t Testimonial
	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO testimonials (author_name, quote, approved)
		VALUES ($1, $2, false)
		RETURNING id, author_name, quote, approved, created_at
	`, authorName, quote).Scan(&t.ID, &t.AuthorName, &t.Quote, &t.Approved, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to submit testimonial: %w", err)
	}
	return &t, nil
}

// List returns testimonials, optionally only approved ones
func (s *Service) List(ctx context.Context, approvedOnly bool) ([]Testimonial, error) {
	query := `SELECT id, author_name, quote, approved, created_at FROM testimonials`
	if approvedOnly {
		query += ` WHERE approved = true`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list testimonials: %w", err)
	}
	defer rows.Close()

	var testimonials []Testimonial
	for rows.Next() {
		var t Testimonial
		if err := rows.Scan(&t.ID, &t.AuthorName, &t.Quote, &t.Approved, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan testimonial: %w", err)
		}
		testimonials = append(testimonials, t)
	}
	return testimonials, rows.Err()
}

// Approve publishes a testimonial
func (s *Service) Approve(ctx context.Context, id string) (*Testimonial, error) {
	var t Testimonial
	err := s.db.Pool.QueryRow(ctx, `
		UPDATE testimonials SET approved = true WHERE id = $1
		RETURNING id, author_name, quote, approved, created_at
	`, id).Scan(&t.ID, &t.AuthorName, &t.Quote, &t.Approved, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestimonialNotFound
		}
		return nil, fmt.Errorf("failed to approve testimonial: %w", err)
	}
	return &t, nil
}

// Delete removes a testimonial
func (s *Service) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM testimonials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete testimonial: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTestimonialNotFound
	}
	return nil
}
