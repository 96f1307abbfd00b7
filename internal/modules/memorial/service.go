package memorial

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/modules/entitlement"
	"github.com/memoria-app/backend/internal/modules/jobs"
	"github.com/memoria-app/backend/internal/modules/media"
	"github.com/memoria-app/backend/internal/shared/database"
	"github.com/memoria-app/backend/internal/shared/metrics"
	"github.com/memoria-app/backend/internal/shared/storage"
)

// Sentinel errors surfaced to the API layer
var (
	ErrMemorialNotFound = errors.New("memorial not found")
	ErrMediaNotFound    = errors.New("media item not found")
	ErrNotOwner         = errors.New("memorial belongs to another user")
)

// Memorial represents a memorial page
type Memorial struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"ownerId"`
	Slug      string     `json:"slug"`
	FullName  string     `json:"fullName"`
	BirthDate *time.Time `json:"birthDate,omitempty"`
	DeathDate *time.Time `json:"deathDate,omitempty"`
	Epitaph   string     `json:"epitaph,omitempty"`
	Biography string     `json:"biography,omitempty"`
	Tier      string     `json:"tier"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`

	Media []MediaItem `json:"media,omitempty"`
}

// MediaItem is a photo, video or document attached to a memorial.
// SortIndex orders photos for the slideshow shown after a QR scan.
type MediaItem struct {
	ID              string                `json:"id"`
	MemorialID      string                `json:"memorialId"`
	Kind            entitlement.MediaKind `json:"kind"`
	FileName        string                `json:"fileName"`
	StoragePath     string                `json:"storagePath"`
	ThumbnailPath   *string               `json:"thumbnailPath,omitempty"`
	MimeType        string                `json:"mimeType"`
	SizeBytes       int64                 `json:"sizeBytes"`
	DurationSeconds *float64              `json:"durationSeconds,omitempty"`
	SortIndex       int                   `json:"sortIndex"`
	CreatedAt       time.Time             `json:"createdAt"`
}

// UpdateInput carries optional memorial fields; nil fields are left
// unchanged
type UpdateInput struct {
	FullName  *string
	BirthDate *time.Time
	DeathDate *time.Time
	Epitaph   *string
	Biography *string
}

// Upload is a file already staged in the upload zone, awaiting
// validation
type Upload struct {
	FileName   string
	MimeType   string
	SizeBytes  int64
	StagedPath string
}

// AttachResult reports the outcome of a media batch
type AttachResult struct {
	Validation entitlement.ValidationResult `json:"validation"`
	Items      []MediaItem                  `json:"items,omitempty"`
}

// Service handles memorial pages and their media collections
type Service struct {
	db      *database.Postgres
	storage *storage.Service
	prober  *media.Prober
	queue   *jobs.QueueClient
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewService creates a new memorial service
func NewService(db *database.Postgres, store *storage.Service, prober *media.Prober, queue *jobs.QueueClient, logger *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		db:      db,
		storage: store,
		prober:  prober,
		queue:   queue,
		logger:  logger,
		metrics: m,
	}
}

const memorialColumns = `id, owner_id, slug, full_name, birth_date, death_date, epitaph, biography, tier, created_at, updated_at`

func scanMemorial(row pgx.Row) (*Memorial, error) {
	var m Memorial
	err := row.Scan(&m.ID, &m.OwnerID, &m.Slug, &m.FullName, &m.BirthDate, &m.DeathDate,
		&m.Epitaph, &m.Biography, &m.Tier, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemorialNotFound
		}
		return nil, err
	}
	return &m, nil
}

// slugify builds a URL slug from the memorial's name plus a short
// random suffix to keep slugs unique without a retry loop
func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "memorial"
	}
	return slug + "-" + uuid.New().String()[:8]
}

// Create inserts a new memorial on the free tier
func (s *Service) Create(ctx context.Context, ownerID, fullName string, input UpdateInput) (*Memorial, error) {
	if fullName == "" {
		return nil, fmt.Errorf("full name is required")
	}

	m := &Memorial{
		OwnerID:  ownerID,
		FullName: fullName,
		Tier:     entitlement.TierFree,
	}
	if input.BirthDate != nil {
		m.BirthDate = input.BirthDate
	}
	if input.DeathDate != nil {
		m.DeathDate = input.DeathDate
	}
	if input.Epitaph != nil {
		m.Epitaph = *input.Epitaph
	}
	if input.Biography != nil {
		m.Biography = *input.Biography
	}

	row := s.db.Pool.QueryRow(ctx, `
		INSERT INTO memorials (owner_id, slug, full_name, birth_date, death_date, epitaph, biography, tier)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+memorialColumns,
		ownerID, slugify(fullName), m.FullName, m.BirthDate, m.DeathDate, m.Epitaph, m.Biography, m.Tier)

	created, err := scanMemorial(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create memorial: %w", err)
	}

	s.logger.Info("memorial created",
		zap.String("memorial_id", created.ID),
		zap.String("owner_id", ownerID))
	return created, nil
}

// GetByID returns a memorial with its media collection
func (s *Service) GetByID(ctx context.Context, id string) (*Memorial, error) {
	row := s.db.Pool.QueryRow(ctx, `SELECT `+memorialColumns+` FROM memorials WHERE id = $1`, id)
	m, err := scanMemorial(row)
	if err != nil {
		return nil, err
	}

	m.Media, err = s.ListMedia(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetBySlug returns the public view of a memorial
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Memorial, error) {
	row := s.db.Pool.QueryRow(ctx, `SELECT `+memorialColumns+` FROM memorials WHERE slug = $1`, slug)
	m, err := scanMemorial(row)
	if err != nil {
		return nil, err
	}

	m.Media, err = s.ListMedia(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListByOwner returns the user's memorials without media collections
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]Memorial, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+memorialColumns+` FROM memorials WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memorials: %w", err)
	}
	defer rows.Close()

	var memorials []Memorial
	for rows.Next() {
		var m Memorial
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Slug, &m.FullName, &m.BirthDate, &m.DeathDate,
			&m.Epitaph, &m.Biography, &m.Tier, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan memorial: %w", err)
		}
		memorials = append(memorials, m)
	}
	return memorials, rows.Err()
}

// Update applies the non-nil fields of input
func (s *Service) Update(ctx context.Context, id, ownerID string, input UpdateInput) (*Memorial, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != ownerID {
		return nil, ErrNotOwner
	}

	if input.FullName != nil && *input.FullName != "" {
		existing.FullName = *input.FullName
	}
	if input.BirthDate != nil {
		existing.BirthDate = input.BirthDate
	}
	if input.DeathDate != nil {
		existing.DeathDate = input.DeathDate
	}
	if input.Epitaph != nil {
		existing.Epitaph = *input.Epitaph
	}
	if input.Biography != nil {
		existing.Biography = *input.Biography
	}

	row := s.db.Pool.QueryRow(ctx, `
		UPDATE memorials
		SET full_name = $1, birth_date = $2, death_date = $3, epitaph = $4, biography = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING `+memorialColumns,
		existing.FullName, existing.BirthDate, existing.DeathDate, existing.Epitaph, existing.Biography, id)
	updated, err := scanMemorial(row)
	if err != nil {
		return nil, err
	}
	updated.Media = existing.Media
	return updated, nil
}

// Delete removes a memorial, its media rows, and its stored files
func (s *Service) Delete(ctx context.Context, id, ownerID string) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.OwnerID != ownerID {
		return ErrNotOwner
	}

	for _, item := range existing.Media {
		if err := s.storage.Delete(ctx, item.StoragePath); err != nil {
			s.logger.Warn("failed to delete media file", zap.Error(err), zap.String("path", item.StoragePath))
		}
		if item.ThumbnailPath != nil {
			s.storage.Delete(ctx, *item.ThumbnailPath)
		}
	}

	_, err = s.db.Pool.Exec(ctx, `DELETE FROM memorials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete memorial: %w", err)
	}
	return nil
}

// CountMedia returns how many items of a kind the memorial already has
func (s *Service) CountMedia(ctx context.Context, memorialID string, kind entitlement.MediaKind) (int, error) {
	var count int
	err := s.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM memorial_media WHERE memorial_id = $1 AND kind = $2`,
		memorialID, kind).Scan(&count)
	return count, err
}

// ListMedia returns a memorial's media, photos in slideshow order
func (s *Service) ListMedia(ctx context.Context, memorialID string) ([]MediaItem, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, memorial_id, kind, file_name, storage_path, thumbnail_path, mime_type, size_bytes, duration_seconds, sort_index, created_at
		FROM memorial_media
		WHERE memorial_id = $1
		ORDER BY kind, sort_index, created_at
	`, memorialID)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	defer rows.Close()

	var items []MediaItem
	for rows.Next() {
		var item MediaItem
		if err := rows.Scan(&item.ID, &item.MemorialID, &item.Kind, &item.FileName, &item.StoragePath,
			&item.ThumbnailPath, &item.MimeType, &item.SizeBytes, &item.DurationSeconds,
			&item.SortIndex, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan media item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// AttachMedia validates a staged batch against the memorial's tier and,
// when the whole batch passes, promotes the files into the media zone
// and queues thumbnail generation. A rejected batch leaves the
// memorial untouched and the staged files are discarded.
func (s *Service) AttachMedia(ctx context.Context, memorialID string, kind entitlement.MediaKind, uploads []Upload) (*AttachResult, error) {
	m, err := s.GetByID(ctx, memorialID)
	if err != nil {
		return nil, err
	}

	currentCount, err := s.CountMedia(ctx, memorialID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to count media: %w", err)
	}

	// Probe video durations up front; failures fall back rather than
	// rejecting the batch
	durations := map[string]float64{}
	if kind == entitlement.KindVideo {
		paths := make([]string, 0, len(uploads))
		for _, u := range uploads {
			paths = append(paths, u.StagedPath)
		}
		durations = s.prober.ResolveDurations(ctx, paths)
	}

	files := make([]entitlement.FileMeta, 0, len(uploads))
	for _, u := range uploads {
		files = append(files, entitlement.FileMeta{
			Name:            u.FileName,
			Size:            u.SizeBytes,
			MimeType:        u.MimeType,
			DurationSeconds: durations[u.StagedPath],
		})
	}

	result := entitlement.ValidateBatch(files, kind, m.Tier, currentCount)
	if s.metrics != nil {
		s.metrics.RecordMediaBatch(string(kind), m.Tier, result.Valid)
		for _, reason := range result.Reasons {
			s.metrics.RecordFileRejection(string(kind), reason)
		}
	}
	if !result.Valid {
		s.discardStaged(ctx, uploads)
		s.logger.Info("media batch rejected",
			zap.String("memorial_id", memorialID),
			zap.String("kind", string(kind)),
			zap.Strings("errors", result.Errors))
		return &AttachResult{Validation: result}, nil
	}

	items := make([]MediaItem, 0, len(uploads))
	for i, u := range uploads {
		info, err := s.storage.Move(ctx, u.StagedPath, storage.ZoneMedia, u.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to promote %s: %w", u.FileName, err)
		}

		var duration *float64
		if kind == entitlement.KindVideo {
			d := durations[u.StagedPath]
			duration = &d
		}

		var item MediaItem
		err = s.db.Pool.QueryRow(ctx, `
			INSERT INTO memorial_media (memorial_id, kind, file_name, storage_path, mime_type, size_bytes, duration_seconds, sort_index)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, memorial_id, kind, file_name, storage_path, thumbnail_path, mime_type, size_bytes, duration_seconds, sort_index, created_at
		`, memorialID, kind, u.FileName, info.Path, u.MimeType, info.Size, duration, currentCount+i).
			Scan(&item.ID, &item.MemorialID, &item.Kind, &item.FileName, &item.StoragePath,
				&item.ThumbnailPath, &item.MimeType, &item.SizeBytes, &item.DurationSeconds,
				&item.SortIndex, &item.CreatedAt)
		if err != nil {
			s.storage.Delete(ctx, info.Path)
			return nil, fmt.Errorf("failed to record media item: %w", err)
		}

		if kind != entitlement.KindDocument {
			if _, err := s.queue.EnqueueThumbnail(jobs.ThumbnailPayload{
				MediaID:     item.ID,
				MemorialID:  memorialID,
				Kind:        string(kind),
				StoragePath: item.StoragePath,
			}); err != nil {
				s.logger.Warn("failed to enqueue thumbnail job", zap.Error(err), zap.String("media_id", item.ID))
			}
		}

		items = append(items, item)
	}

	s.logger.Info("media batch attached",
		zap.String("memorial_id", memorialID),
		zap.String("kind", string(kind)),
		zap.Int("count", len(items)))
	return &AttachResult{Validation: result, Items: items}, nil
}

func (s *Service) discardStaged(ctx context.Context, uploads []Upload) {
	for _, u := range uploads {
		if err := s.storage.Delete(ctx, u.StagedPath); err != nil {
			s.logger.Warn("failed to discard staged file", zap.Error(err), zap.String("path", u.StagedPath))
		}
	}
}

// ReorderPhotos persists the slideshow order for a memorial's photos
func (s *Service) ReorderPhotos(ctx context.Context, memorialID string, orderedIDs []string) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i, mediaID := range orderedIDs {
		tag, err := tx.Exec(ctx, `
			UPDATE memorial_media SET sort_index = $1
			WHERE id = $2 AND memorial_id = $3 AND kind = 'photo'
		`, i, mediaID, memorialID)
		if err != nil {
			return fmt.Errorf("failed to reorder photos: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrMediaNotFound
		}
	}
	return tx.Commit(ctx)
}

// RemoveMedia deletes one media item and its stored files
func (s *Service) RemoveMedia(ctx context.Context, memorialID, mediaID string) error {
	var storagePath string
	var thumbnailPath *string
	err := s.db.Pool.QueryRow(ctx, `
		SELECT storage_path, thumbnail_path FROM memorial_media WHERE id = $1 AND memorial_id = $2
	`, mediaID, memorialID).Scan(&storagePath, &thumbnailPath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMediaNotFound
		}
		return err
	}

	if _, err := s.db.Pool.Exec(ctx, `DELETE FROM memorial_media WHERE id = $1`, mediaID); err != nil {
		return fmt.Errorf("failed to delete media item: %w", err)
	}

	if err := s.storage.Delete(ctx, storagePath); err != nil {
		s.logger.Warn("failed to delete media file", zap.Error(err), zap.String("path", storagePath))
	}
	if thumbnailPath != nil {
		s.storage.Delete(ctx, *thumbnailPath)
	}
	return nil
}
