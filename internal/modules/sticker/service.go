package sticker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/memoria-app/backend/internal/shared/database"
)

// Sentinel errors surfaced to the API layer
var (
	ErrStickerNotFound = errors.New("sticker option not found")
	ErrOrderNotFound   = errors.New("sticker order not found")
	ErrInvalidStatus   = errors.New("unknown order status")
)

// Shipping statuses for sticker orders
const (
	StatusPending   = "pending"
	StatusPrinted   = "printed"
	StatusShipped   = "shipped"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// Option is a physical QR sticker product linking to a memorial page
type Option struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceMinor  int64     `json:"priceMinor"`
	Active      bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Order is a placed sticker order with its shipping state
type Order struct {
	ID              string    `json:"id"`
	StickerID       string    `json:"stickerId"`
	MemorialID      string    `json:"memorialId"`
	UserID          string    `json:"userId"`
	Quantity        int       `json:"quantity"`
	ShippingAddress string    `json:"shippingAddress"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Service handles the sticker catalog and orders
type Service struct {
	db *database.Postgres
}

// NewService creates a new sticker service
func NewService(db *database.Postgres) *Service {
	return &Service{db: db}
}

// ListOptions returns sticker options, optionally only active ones
func (s *Service) ListOptions(ctx context.Context, activeOnly bool) ([]Option, error) {
	query := `SELECT id, name, description, price_minor, active, created_at FROM sticker_options`
	if activeOnly {
		query += ` WHERE active = true`
	}
	query += ` ORDER BY price_minor`

	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sticker options: %w", err)
	}
	defer rows.Close()

	var options []Option
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.Name, &o.Description, &o.PriceMinor, &o.Active, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sticker option: %w", err)
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

// CreateOption adds a sticker product to the catalog
func (s *Service) CreateOption(ctx context.Context, o *Option) (*Option, error) {
	if o.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if o.PriceMinor < 0 {
		return nil, fmt.Errorf("price cannot be negative")
	}

	var created Option
	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO sticker_options (name, description, price_minor, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, description, price_minor, active, created_at
	`, o.Name, o.Description, o.PriceMinor, o.Active).
		Scan(&created.ID, &created.Name, &created.Description, &created.PriceMinor, &created.Active, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create sticker option: %w", err)
	}
	return &created, nil
}

// DeactivateOption retires a sticker product without breaking old orders
func (s *Service) DeactivateOption(ctx context.Context, id string) error {
	tag, err := s.db.Pool.Exec(ctx, `UPDATE sticker_options SET active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate sticker option: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStickerNotFound
	}
	return nil
}

// PlaceOrder creates a sticker order in pending state
func (s *Service) PlaceOrder(ctx context.Context, stickerID, memorialID, userID, shippingAddress string, quantity int) (*Order, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}
	if shippingAddress == "" {
		return nil, fmt.Errorf("shipping address is required")
	}

	var active bool
	err := s.db.Pool.QueryRow(ctx, `SELECT active FROM sticker_options WHERE id = $1`, stickerID).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStickerNotFound
		}
		return nil, err
	}
	if !active {
		return nil, ErrStickerNotFound
	}

	var o Order
	err = s.db.Pool.QueryRow(ctx, `
		INSERT INTO sticker_orders (sticker_id, memorial_id, user_id, quantity, shipping_address, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING id, sticker_id, memorial_id, user_id, quantity, shipping_address, status, created_at, updated_at
	`, stickerID, memorialID, userID, quantity, shippingAddress).
		Scan(&o.ID, &o.StickerID, &o.MemorialID, &o.UserID, &o.Quantity, &o.ShippingAddress, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to place sticker order: %w", err)
	}
	return &o, nil
}

// ListOrders returns orders, newest first. An empty status lists all.
func (s *Service) ListOrders(ctx context.Context, status string) ([]Order, error) {
	query := `SELECT id, sticker_id, memorial_id, user_id, quantity, shipping_address, status, created_at, updated_at
		FROM sticker_orders`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sticker orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.StickerID, &o.MemorialID, &o.UserID, &o.Quantity,
			&o.ShippingAddress, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sticker order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpdateOrderStatus moves an order through the shipping pipeline
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	switch status {
	case StatusPending, StatusPrinted, StatusShipped, StatusDelivered, StatusCancelled:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE sticker_orders SET status = $1, updated_at = NOW() WHERE id = $2
	`, status, orderID)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
