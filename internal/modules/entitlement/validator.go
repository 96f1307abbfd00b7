package entitlement

import "fmt"

// FileMeta describes a candidate upload
type FileMeta struct {
	Name            string
	Size            int64
	MimeType        string
	DurationSeconds float64 // videos only, 0 means not probed
}

// ValidationResult is the outcome of validating a batch of files.
// A batch is accepted only when every file passes every check.
// Reasons holds one machine-readable label per error, for metrics.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Errors  []string `json:"errors"`
	Reasons []string `json:"-"`
}

// ValidateBatch checks a batch of candidate uploads against the tier's
// limits for the given kind. currentCount is the number of files of
// that kind already attached to the memorial.
//
// Documents on a non-premium tier are rejected outright without
// inspecting individual files. For other kinds the count check runs
// first, then every file is checked for MIME type and size so the
// caller gets the full list of problems in one pass.
func ValidateBatch(files []FileMeta, kind MediaKind, tier string, currentCount int) ValidationResult {
	if kind == KindDocument && tier != TierPremium {
		return ValidationResult{
			Valid:   false,
			Errors:  []string{"documents are available on the premium plan only"},
			Reasons: []string{"tier_gate"},
		}
	}

	limits := GetMediaLimits(tier, kind)
	var errs, reasons []string
	reject := func(reason, format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
		reasons = append(reasons, reason)
	}

	if currentCount+len(files) > limits.MaxCount {
		reject("count_limit",
			"adding %d file(s) exceeds the %s plan limit of %d %ss (%d already uploaded)",
			len(files), normalizeTier(tier), limits.MaxCount, kind, currentCount,
		)
	}

	for _, f := range files {
		if !limits.AllowsMimeType(f.MimeType) {
			reject("unsupported_type", "unsupported file type: %s", f.Name)
		}
		if f.Size > limits.MaxSizeBytes {
			reject("size_limit",
				"%s exceeds the maximum size of %dMB",
				f.Name, limits.MaxSizeBytes/(1024*1024),
			)
		}
		if kind == KindVideo && limits.MaxDurationSeconds > 0 && f.DurationSeconds > float64(limits.MaxDurationSeconds) {
			reject("duration_limit",
				"%s exceeds the maximum duration of %d seconds",
				f.Name, limits.MaxDurationSeconds,
			)
		}
	}

	return ValidationResult{
		Valid:   len(errs) == 0,
		Errors:  errs,
		Reasons: reasons,
	}
}

// normalizeTier maps unknown tiers to free for user-facing messages,
// matching the limit lookup behavior
func normalizeTier(tier string) string {
	if _, ok := mediaLimits[tier]; ok {
		return tier
	}
	return TierFree
}
