package handlers

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/api/middleware"
	"github.com/memoria-app/backend/internal/modules/entitlement"
	"github.com/memoria-app/backend/internal/modules/memorial"
	"github.com/memoria-app/backend/internal/shared/storage"
)

// Multipart form keys for each media kind
var mediaFormKeys = map[string]entitlement.MediaKind{
	"photos":    entitlement.KindPhoto,
	"videos":    entitlement.KindVideo,
	"documents": entitlement.KindDocument,
}

// MemorialHandler handles memorial pages and their media
type MemorialHandler struct {
	memorials *memorial.Service
	storage   *storage.Service
	maxUpload int64
	logger    *zap.Logger
}

// NewMemorialHandler creates a new memorial handler
func NewMemorialHandler(memorials *memorial.Service, store *storage.Service, maxUpload int64, logger *zap.Logger) *MemorialHandler {
	return &MemorialHandler{
		memorials: memorials,
		storage:   store,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// Create creates a memorial page. Accepts multipart/form-data so the
// initial photo/video/document batch can ride along with the fields.
func (h *MemorialHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil || user.IsAnonymous() {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	fullName := r.FormValue("fullName")
	if fullName == "" {
		http.Error(w, "fullName is required", http.StatusBadRequest)
		return
	}

	input, err := memorialFieldsFromForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m, err := h.memorials.Create(r.Context(), user.ID, fullName, input)
	if err != nil {
		h.logger.Error("Failed to create memorial", zap.Error(err))
		http.Error(w, "failed to create memorial", http.StatusInternalServerError)
		return
	}

	results, status, err := h.attachFromForm(r, m)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	m, err = h.memorials.GetByID(r.Context(), m.ID)
	if err != nil {
		h.logger.Error("Failed to reload memorial", zap.Error(err))
		http.Error(w, "failed to load memorial", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"memorial": m,
		"media":    results,
	})
}

// Get returns a memorial with its media collection
func (h *MemorialHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "memorial id required", http.StatusBadRequest)
		return
	}

	m, err := h.memorials.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, memorial.ErrMemorialNotFound) {
			http.Error(w, "memorial not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to get memorial", zap.Error(err))
		http.Error(w, "failed to get memorial", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m)
}

// GetBySlug returns a memorial by its public slug. This is the QR scan
// landing route, open to anonymous visitors.
func (h *MemorialHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		http.Error(w, "slug required", http.StatusBadRequest)
		return
	}

	m, err := h.memorials.GetBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, memorial.ErrMemorialNotFound) {
			http.Error(w, "memorial not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to get memorial", zap.Error(err))
		http.Error(w, "failed to get memorial", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m)
}

// ListMine returns the current user's memorials
func (h *MemorialHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil || user.IsAnonymous() {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	memorials, err := h.memorials.ListByOwner(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("Failed to list memorials", zap.Error(err))
		http.Error(w, "failed to list memorials", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(memorials)
}

// Update modifies a memorial and optionally attaches a new media
// batch from the same multipart form
func (h *MemorialHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil || user.IsAnonymous() {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "memorial id required", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	input, err := memorialFieldsFromForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if name := r.FormValue("fullName"); name != "" {
		input.FullName = &name
	}

	m, err := h.memorials.Update(r.Context(), id, user.ID, input)
	if err != nil {
		switch {
		case errors.Is(err, memorial.ErrMemorialNotFound):
			http.Error(w, "memorial not found", http.StatusNotFound)
		case errors.Is(err, memorial.ErrNotOwner):
			http.Error(w, "you do not own this memorial", http.StatusForbidden)
		default:
			h.logger.Error("Failed to update memorial", zap.Error(err))
			http.Error(w, "failed to update memorial", http.StatusInternalServerError)
		}
		return
	}

	results, status, err := h.attachFromForm(r, m)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	m, err = h.memorials.GetByID(r.Context(), m.ID)
	if err != nil {
		h.logger.Error("Failed to reload memorial", zap.Error(err))
		http.Error(w, "failed to load memorial", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"memorial": m,
		"media":    results,
	})
}

// Delete removes a memorial and its stored media
func (h *MemorialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil || user.IsAnonymous() {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "memorial id required", http.StatusBadRequest)
		return
	}

	if err := h.memorials.Delete(r.Context(), id, user.ID); err != nil {
		switch {
		case errors.Is(err, memorial.ErrMemorialNotFound):
			http.Error(w, "memorial not found", http.StatusNotFound)
		case errors.Is(err, memorial.ErrNotOwner):
			http.Error(w, "you do not own this memorial", http.StatusForbidden)
		default:
			h.logger.Error("Failed to delete memorial", zap.Error(err))
			http.Error(w, "failed to delete memorial", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadMedia attaches a media batch to an existing memorial. Either
// every file in the batch is accepted or none of them are.
func (h *MemorialHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil || user.IsAnonymous() {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "memorial id required", http.StatusBadRequest)
		return
	}

	m, err := h.memorials.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, memorial.ErrMemorialNotFound) {
			http.Error(w, "memorial not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to get memorial", zap.Error(err))
		http.Error(w, "failed to get memorial", http.StatusInternalServerError)
		return
	}
	if m.OwnerID != user.ID {
		http.Error(w, "you do not own this memorial", http.StatusForbidden)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	results, status, err := h.attachFromForm(r, m)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	if len(results) == 0 {
		http.Error(w, "no files in request", http.StatusBadRequest)
		return
	}

	accepted := true
	for _, res := range results {
		if !res.Validation.Valid {
			accepted = false
		}
	}

	statusCode := http.StatusCreated
	if !accepted {
		// Rejected batches return the validation errors for inline display
		statusCode = http.StatusUnprocessableEntity
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(results)
}

// ReorderRequest carries the new slideshow order of photo IDs
type ReorderRequest struct {
	Order []string `json:"order"`
}

// ReorderPhotos persists the slideshow order of a memorial's photos
func (h *MemorialHandler) ReorderPhotos(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil || user.IsAnonymous() {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	id := chi.URLParam(r, "id")
	m, err := h.memorials.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, memorial.ErrMemorialNotFound) {
			http.Error(w, "memorial not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to get memorial", zap.Error(err))
		http.Error(w, "failed to get memorial", http.StatusInternalServerError)
		return
	}
	if m.OwnerID != user.ID {
		http.Error(w, "you do not own this memorial", http.StatusForbidden)
		return
	}

	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Order) == 0 {
		http.Error(w, "order is required", http.StatusBadRequest)
		return
	}

	if err := h.memorials.ReorderPhotos(r.Context(), id, req.Order); err != nil {
		h.logger.Error("Failed to reorder photos", zap.Error(err))
		http.Error(w, "failed to reorder photos", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveMedia deletes one media item from a memorial
func (h *MemorialHandler) RemoveMedia(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil || user.IsAnonymous() {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	id := chi.URLParam(r, "id")
	mediaID := chi.URLParam(r, "mediaId")

	m, err := h.memorials.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, memorial.ErrMemorialNotFound) {
			http.Error(w, "memorial not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to get memorial", zap.Error(err))
		http.Error(w, "failed to get memorial", http.StatusInternalServerError)
		return
	}
	if m.OwnerID != user.ID {
		http.Error(w, "you do not own this memorial", http.StatusForbidden)
		return
	}

	if err := h.memorials.RemoveMedia(r.Context(), id, mediaID); err != nil {
		if errors.Is(err, memorial.ErrMediaNotFound) {
			http.Error(w, "media not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to remove media", zap.Error(err))
		http.Error(w, "failed to remove media", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// attachFromForm stages each uploaded file and runs one validated
// batch per media kind present in the form. Returns a map of kind to
// attach result; an empty form yields an empty map.
func (h *MemorialHandler) attachFromForm(r *http.Request, m *memorial.Memorial) (map[string]*memorial.AttachResult, int, error) {
	results := make(map[string]*memorial.AttachResult)

	if r.MultipartForm == nil || r.MultipartForm.File == nil {
		return results, 0, nil
	}

	for formKey, kind := range mediaFormKeys {
		headers := r.MultipartForm.File[formKey]
		if len(headers) == 0 {
			continue
		}

		uploads, err := h.stageFiles(r, headers)
		if err != nil {
			h.logger.Error("Failed to stage uploads", zap.Error(err))
			return nil, http.StatusInternalServerError, errors.New("failed to store uploaded files")
		}

		result, err := h.memorials.AttachMedia(r.Context(), m.ID, kind, uploads)
		if err != nil {
			h.logger.Error("Failed to attach media",
				zap.String("memorial_id", m.ID),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			return nil, http.StatusInternalServerError, errors.New("failed to attach media")
		}

		results[formKey] = result
	}

	return results, 0, nil
}

// stageFiles copies multipart files into the upload zone so the
// validator and prober can work from disk
func (h *MemorialHandler) stageFiles(r *http.Request, headers []*multipart.FileHeader) ([]memorial.Upload, error) {
	uploads := make([]memorial.Upload, 0, len(headers))
	for _, header := range headers {
		upload, err := h.stageFile(r, header)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

func (h *MemorialHandler) stageFile(r *http.Request, header *multipart.FileHeader) (memorial.Upload, error) {
	file, err := header.Open()
	if err != nil {
		return memorial.Upload{}, err
	}
	defer file.Close()

	info, err := h.storage.Store(r.Context(), storage.ZoneUpload, header.Filename, file)
	if err != nil {
		return memorial.Upload{}, err
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return memorial.Upload{
		FileName:   header.Filename,
		MimeType:   mimeType,
		SizeBytes:  header.Size,
		StagedPath: info.Path,
	}, nil
}

// memorialFieldsFromForm extracts the optional memorial fields. Dates
// use the 2006-01-02 form.
func memorialFieldsFromForm(r *http.Request) (memorial.UpdateInput, error) {
	var input memorial.UpdateInput

	if v := r.FormValue("epitaph"); v != "" {
		input.Epitaph = &v
	}
	if v := r.FormValue("biography"); v != "" {
		input.Biography = &v
	}
	if v := r.FormValue("birthDate"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return input, errors.New("invalid birthDate, expected YYYY-MM-DD")
		}
		input.BirthDate = &t
	}
	if v := r.FormValue("deathDate"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return input, errors.New("invalid deathDate, expected YYYY-MM-DD")
		}
		input.DeathDate = &t
	}

	return input, nil
}
