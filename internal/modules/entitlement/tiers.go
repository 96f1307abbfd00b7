package entitlement

// MediaKind identifies a category of memorial media
type MediaKind string

const (
	KindPhoto    MediaKind = "photo"
	KindVideo    MediaKind = "video"
	KindDocument MediaKind = "document"
)

// Subscription tiers, from lowest to highest
const (
	TierFree    = "free"
	TierPlus    = "plus"
	TierPremium = "premium"
)

// Plan catalog types. The catalog calls the mid tier "medium" while
// entitlements call it "plus".
const (
	PlanTypeMinimal = "minimal"
	PlanTypeMedium  = "medium"
	PlanTypePremium = "premium"
)

// TierForPlanType maps a catalog plan type onto the entitlement tier it
// grants. Unknown types grant nothing beyond free.
func TierForPlanType(planType string) string {
	switch planType {
	case PlanTypeMinimal:
		return TierFree
	case PlanTypeMedium:
		return TierPlus
	case PlanTypePremium:
		return TierPremium
	default:
		return TierFree
	}
}

// MediaLimits defines per-kind limits for a subscription tier
type MediaLimits struct {
	MaxCount           int
	MaxSizeBytes       int64
	MaxDurationSeconds int // videos only, 0 means no duration cap
	AllowedMimeTypes   []string
}

var photoMimeTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}
var videoMimeTypes = []string{"video/mp4", "video/quicktime", "video/webm"}
var documentMimeTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// Media limits from plan
var mediaLimits = map[string]map[MediaKind]MediaLimits{
	TierFree: {
		KindPhoto: {
			MaxCount:         10,
			MaxSizeBytes:     5 * 1024 * 1024, // 5MB
			AllowedMimeTypes: photoMimeTypes,
		},
		KindVideo: {
			MaxCount:           1,
			MaxSizeBytes:       50 * 1024 * 1024, // 50MB
			MaxDurationSeconds: 30,
			AllowedMimeTypes:   videoMimeTypes,
		},
		KindDocument: {
			MaxCount:         0,
			MaxSizeBytes:     0,
			AllowedMimeTypes: documentMimeTypes,
		},
	},
	TierPlus: {
		KindPhoto: {
			MaxCount:         30,
			MaxSizeBytes:     15 * 1024 * 1024, // 15MB
			AllowedMimeTypes: photoMimeTypes,
		},
		KindVideo: {
			MaxCount:           3,
			MaxSizeBytes:       200 * 1024 * 1024, // 200MB
			MaxDurationSeconds: 120,
			AllowedMimeTypes:   videoMimeTypes,
		},
		KindDocument: {
			MaxCount:         0,
			MaxSizeBytes:     0,
			AllowedMimeTypes: documentMimeTypes,
		},
	},
	TierPremium: {
		KindPhoto: {
			MaxCount:         100,
			MaxSizeBytes:     25 * 1024 * 1024, // 25MB
			AllowedMimeTypes: photoMimeTypes,
		},
		KindVideo: {
			MaxCount:           10,
			MaxSizeBytes:       1024 * 1024 * 1024, // 1GB
			MaxDurationSeconds: 600,
			AllowedMimeTypes:   videoMimeTypes,
		},
		KindDocument: {
			MaxCount:         10,
			MaxSizeBytes:     20 * 1024 * 1024, // 20MB
			AllowedMimeTypes: documentMimeTypes,
		},
	},
}

// GetMediaLimits returns limits for a tier and kind (defaults to free if the tier is unknown)
func GetMediaLimits(tier string, kind MediaKind) MediaLimits {
	if byKind, ok := mediaLimits[tier]; ok {
		return byKind[kind]
	}
	return mediaLimits[TierFree][kind]
}

// AllowsMimeType reports whether the kind accepts the given MIME type
func (l MediaLimits) AllowsMimeType(mimeType string) bool {
	for _, allowed := range l.AllowedMimeTypes {
		if allowed == mimeType {
			return true
		}
	}
	return false
}
