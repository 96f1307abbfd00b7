package entitlement

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateBatch(t *testing.T) {
	jpeg := func(name string, sizeMB int64) FileMeta {
		return FileMeta{Name: name, Size: sizeMB * 1024 * 1024, MimeType: "image/jpeg"}
	}

	tests := []struct {
		name         string
		files        []FileMeta
		kind         MediaKind
		tier         string
		currentCount int
		wantValid    bool
		wantErrors   []string
	}{
		{
			name:       "empty batch is valid",
			files:      nil,
			kind:       KindPhoto,
			tier:       "free",
			wantValid:  true,
			wantErrors: nil,
		},
		{
			name:      "valid photo batch",
			files:     []FileMeta{jpeg("grandma.jpg", 2), jpeg("garden.jpg", 4)},
			kind:      KindPhoto,
			tier:      "free",
			wantValid: true,
		},
		{
			name:         "batch over count limit",
			files:        []FileMeta{jpeg("a.jpg", 1), jpeg("b.jpg", 1)},
			kind:         KindPhoto,
			tier:         "free",
			currentCount: 9,
			wantValid:    false,
			wantErrors: []string{
				"adding 2 file(s) exceeds the free plan limit of 10 photos (9 already uploaded)",
			},
		},
		{
			name:      "unsupported mime type",
			files:     []FileMeta{{Name: "scan.tiff", Size: 1024, MimeType: "image/tiff"}},
			kind:      KindPhoto,
			tier:      "premium",
			wantValid: false,
			wantErrors: []string{
				"unsupported file type: scan.tiff",
			},
		},
		{
			name:      "oversized photo",
			files:     []FileMeta{jpeg("huge.jpg", 6)},
			kind:      KindPhoto,
			tier:      "free",
			wantValid: false,
			wantErrors: []string{
				"huge.jpg exceeds the maximum size of 5MB",
			},
		},
		{
			name: "errors accumulate across files",
			files: []FileMeta{
				{Name: "clip.avi", Size: 1024, MimeType: "video/x-msvideo"},
				jpeg("huge.jpg", 10),
				jpeg("fine.jpg", 1),
			},
			kind:      KindPhoto,
			tier:      "free",
			wantValid: false,
			wantErrors: []string{
				"unsupported file type: clip.avi",
				"huge.jpg exceeds the maximum size of 5MB",
			},
		},
		{
			name: "one file can fail multiple checks",
			files: []FileMeta{
				{Name: "raw.bmp", Size: 30 * 1024 * 1024, MimeType: "image/bmp"},
			},
			kind:      KindPhoto,
			tier:      "free",
			wantValid: false,
			wantErrors: []string{
				"unsupported file type: raw.bmp",
				"raw.bmp exceeds the maximum size of 5MB",
			},
		},
		{
			name: "count error and file errors combine",
			files: []FileMeta{
				jpeg("a.jpg", 1),
				{Name: "b.gifv", Size: 1024, MimeType: "image/gifv"},
			},
			kind:         KindPhoto,
			tier:         "free",
			currentCount: 10,
			wantValid:    false,
			wantErrors: []string{
				"adding 2 file(s) exceeds the free plan limit of 10 photos (10 already uploaded)",
				"unsupported file type: b.gifv",
			},
		},
		{
			name: "video over duration limit",
			files: []FileMeta{
				{Name: "eulogy.mp4", Size: 10 * 1024 * 1024, MimeType: "video/mp4", DurationSeconds: 45},
			},
			kind:      KindVideo,
			tier:      "free",
			wantValid: false,
			wantErrors: []string{
				"eulogy.mp4 exceeds the maximum duration of 30 seconds",
			},
		},
		{
			name: "video within duration limit",
			files: []FileMeta{
				{Name: "eulogy.mp4", Size: 10 * 1024 * 1024, MimeType: "video/mp4", DurationSeconds: 45},
			},
			kind:      KindVideo,
			tier:      "plus",
			wantValid: true,
		},
		{
			name: "documents rejected on free without file inspection",
			files: []FileMeta{
				{Name: "will.exe", Size: 999 * 1024 * 1024, MimeType: "application/x-executable"},
			},
			kind:      KindDocument,
			tier:      "free",
			wantValid: false,
			wantErrors: []string{
				"documents are available on the premium plan only",
			},
		},
		{
			name: "documents rejected on plus",
			files: []FileMeta{
				{Name: "obituary.pdf", Size: 1024, MimeType: "application/pdf"},
			},
			kind:      KindDocument,
			tier:      "plus",
			wantValid: false,
			wantErrors: []string{
				"documents are available on the premium plan only",
			},
		},
		{
			name: "documents accepted on premium",
			files: []FileMeta{
				{Name: "obituary.pdf", Size: 1024 * 1024, MimeType: "application/pdf"},
			},
			kind:      KindDocument,
			tier:      "premium",
			wantValid: true,
		},
		{
			name:      "unknown tier validated against free limits",
			files:     []FileMeta{jpeg("big.jpg", 8)},
			kind:      KindPhoto,
			tier:      "enterprise",
			wantValid: false,
			wantErrors: []string{
				"big.jpg exceeds the maximum size of 5MB",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateBatch(tt.files, tt.kind, tt.tier, tt.currentCount)

			assert.Equal(t, tt.wantValid, result.Valid)
			if tt.wantErrors != nil {
				assert.Equal(t, tt.wantErrors, result.Errors)
			}
			if tt.wantValid {
				assert.Empty(t, result.Errors)
			}
		})
	}
}

func TestValidateBatchAllOrNothing(t *testing.T) {
	t.Run("a single bad file invalidates the whole batch", func(t *testing.T) {
		files := make([]FileMeta, 0, 5)
		for i := 0; i < 4; i++ {
			files = append(files, FileMeta{
				Name:     fmt.Sprintf("photo-%d.jpg", i),
				Size:     1024 * 1024,
				MimeType: "image/jpeg",
			})
		}
		files = append(files, FileMeta{Name: "notes.txt", Size: 128, MimeType: "text/plain"})

		result := ValidateBatch(files, KindPhoto, "premium", 0)

		assert.False(t, result.Valid)
		assert.Equal(t, []string{"unsupported file type: notes.txt"}, result.Errors)
	})
}

func TestValidateBatchReasons(t *testing.T) {
	t.Run("one reason label per error", func(t *testing.T) {
		files := []FileMeta{{Name: "scan.tiff", Size: 100 * 1024 * 1024, MimeType: "image/tiff"}}

		result := ValidateBatch(files, KindPhoto, "free", 0)
		assert.False(t, result.Valid)
		assert.Equal(t, []string{"unsupported_type", "size_limit"}, result.Reasons)
		assert.Len(t, result.Reasons, len(result.Errors))
	})

	t.Run("document tier gate", func(t *testing.T) {
		files := []FileMeta{{Name: "will.pdf", Size: 1024, MimeType: "application/pdf"}}

		result := ValidateBatch(files, KindDocument, "free", 0)
		assert.Equal(t, []string{"tier_gate"}, result.Reasons)
	})

	t.Run("valid batch has no reasons", func(t *testing.T) {
		files := []FileMeta{{Name: "portrait.jpg", Size: 1024, MimeType: "image/jpeg"}}

		result := ValidateBatch(files, KindPhoto, "free", 0)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Reasons)
	})
}
