package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetMediaLimits(t *testing.T) {
	tests := []struct {
		name     string
		tier     string
		kind     MediaKind
		expected MediaLimits
	}{
		{
			name: "free photos",
			tier: "free",
			kind: KindPhoto,
			expected: MediaLimits{
				MaxCount:         10,
				MaxSizeBytes:     5 * 1024 * 1024,
				AllowedMimeTypes: photoMimeTypes,
			},
		},
		{
			name: "plus photos",
			tier: "plus",
			kind: KindPhoto,
			expected: MediaLimits{
				MaxCount:         30,
				MaxSizeBytes:     15 * 1024 * 1024,
				AllowedMimeTypes: photoMimeTypes,
			},
		},
		{
			name: "premium photos",
			tier: "premium",
			kind: KindPhoto,
			expected: MediaLimits{
				MaxCount:         100,
				MaxSizeBytes:     25 * 1024 * 1024,
				AllowedMimeTypes: photoMimeTypes,
			},
		},
		{
			name: "free videos",
			tier: "free",
			kind: KindVideo,
			expected: MediaLimits{
				MaxCount:           1,
				MaxSizeBytes:       50 * 1024 * 1024,
				MaxDurationSeconds: 30,
				AllowedMimeTypes:   videoMimeTypes,
			},
		},
		{
			name: "plus videos",
			tier: "plus",
			kind: KindVideo,
			expected: MediaLimits{
				MaxCount:           3,
				MaxSizeBytes:       200 * 1024 * 1024,
				MaxDurationSeconds: 120,
				AllowedMimeTypes:   videoMimeTypes,
			},
		},
		{
			name: "premium videos",
			tier: "premium",
			kind: KindVideo,
			expected: MediaLimits{
				MaxCount:           10,
				MaxSizeBytes:       1024 * 1024 * 1024,
				MaxDurationSeconds: 600,
				AllowedMimeTypes:   videoMimeTypes,
			},
		},
		{
			name: "premium documents",
			tier: "premium",
			kind: KindDocument,
			expected: MediaLimits{
				MaxCount:         10,
				MaxSizeBytes:     20 * 1024 * 1024,
				AllowedMimeTypes: documentMimeTypes,
			},
		},
		{
			name: "unknown tier defaults to free",
			tier: "enterprise",
			kind: KindPhoto,
			expected: MediaLimits{
				MaxCount:         10,
				MaxSizeBytes:     5 * 1024 * 1024,
				AllowedMimeTypes: photoMimeTypes,
			},
		},
		{
			name: "empty tier defaults to free",
			tier: "",
			kind: KindVideo,
			expected: MediaLimits{
				MaxCount:           1,
				MaxSizeBytes:       50 * 1024 * 1024,
				MaxDurationSeconds: 30,
				AllowedMimeTypes:   videoMimeTypes,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetMediaLimits(tt.tier, tt.kind)
			assert.Equal(t, tt.expected.MaxCount, result.MaxCount)
			assert.Equal(t, tt.expected.MaxSizeBytes, result.MaxSizeBytes)
			assert.Equal(t, tt.expected.MaxDurationSeconds, result.MaxDurationSeconds)
			assert.Equal(t, tt.expected.AllowedMimeTypes, result.AllowedMimeTypes)
		})
	}
}

func TestDocumentsArePremiumOnly(t *testing.T) {
	t.Run("only premium tier can store documents", func(t *testing.T) {
		assert.Equal(t, 0, GetMediaLimits("free", KindDocument).MaxCount)
		assert.Equal(t, 0, GetMediaLimits("plus", KindDocument).MaxCount)
		assert.Equal(t, 10, GetMediaLimits("premium", KindDocument).MaxCount)
	})
}

func TestLimitsNeverDecreaseWithTier(t *testing.T) {
	tiers := []string{"free", "plus", "premium"}
	kinds := []MediaKind{KindPhoto, KindVideo, KindDocument}

	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			for i := 1; i < len(tiers); i++ {
				lower := GetMediaLimits(tiers[i-1], kind)
				higher := GetMediaLimits(tiers[i], kind)

				assert.GreaterOrEqual(t, higher.MaxCount, lower.MaxCount,
					"%s should allow at least as many %ss as %s", tiers[i], kind, tiers[i-1])
				assert.GreaterOrEqual(t, higher.MaxSizeBytes, lower.MaxSizeBytes,
					"%s should allow at least as large %ss as %s", tiers[i], kind, tiers[i-1])
				assert.GreaterOrEqual(t, higher.MaxDurationSeconds, lower.MaxDurationSeconds,
					"%s should allow at least as long %ss as %s", tiers[i], kind, tiers[i-1])
			}
		})
	}
}

func TestAllowsMimeType(t *testing.T) {
	limits := GetMediaLimits("free", KindPhoto)

	assert.True(t, limits.AllowsMimeType("image/jpeg"))
	assert.True(t, limits.AllowsMimeType("image/webp"))
	assert.False(t, limits.AllowsMimeType("image/tiff"))
	assert.False(t, limits.AllowsMimeType("video/mp4"))
	assert.False(t, limits.AllowsMimeType(""))
}

func TestTierForPlanType(t *testing.T) {
	assert.Equal(t, TierFree, TierForPlanType("minimal"))
	assert.Equal(t, TierPlus, TierForPlanType("medium"))
	assert.Equal(t, TierPremium, TierForPlanType("premium"))
	assert.Equal(t, TierFree, TierForPlanType("enterprise"))
	assert.Equal(t, TierFree, TierForPlanType(""))
}
