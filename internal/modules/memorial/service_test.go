package memorial

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		prefix string
	}{
		{"simple name", "Nino Beridze", "nino-beridze-"},
		{"mixed case", "GIORGI Maisuradze", "giorgi-maisuradze-"},
		{"extra whitespace", "  Ana  Kalandadze ", "ana--kalandadze-"},
		{"non-latin characters dropped", "ნინო ბერიძე", "memorial-"},
		{"empty name", "", "memorial-"},
		{"digits kept", "Levan 1950", "levan-1950-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slug := slugify(tt.input)
			assert.True(t, strings.HasPrefix(slug, tt.prefix),
				"slug %q should start with %q", slug, tt.prefix)
			// 8 hex chars of uniqueness suffix
			assert.Len(t, slug, len(tt.prefix)+8)
		})
	}

	t.Run("slugs are unique per call", func(t *testing.T) {
		assert.NotEqual(t, slugify("Nino Beridze"), slugify("Nino Beridze"))
	})
}
