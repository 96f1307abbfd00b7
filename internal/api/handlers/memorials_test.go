package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formRequest(t *testing.T, values url.Values) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "/api/memorials", strings.NewReader(values.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestMemorialFieldsFromForm(t *testing.T) {
	t.Run("parses all fields", func(t *testing.T) {
		req := formRequest(t, url.Values{
			"epitaph":   {"Forever in our hearts"},
			"biography": {"A long life, well lived."},
			"birthDate": {"1941-03-12"},
			"deathDate": {"2023-11-02"},
		})

		input, err := memorialFieldsFromForm(req)
		require.NoError(t, err)

		require.NotNil(t, input.Epitaph)
		assert.Equal(t, "Forever in our hearts", *input.Epitaph)
		require.NotNil(t, input.Biography)
		require.NotNil(t, input.BirthDate)
		assert.Equal(t, time.Date(1941, 3, 12, 0, 0, 0, 0, time.UTC), *input.BirthDate)
		require.NotNil(t, input.DeathDate)
	})

	t.Run("empty form leaves everything nil", func(t *testing.T) {
		req := formRequest(t, url.Values{})

		input, err := memorialFieldsFromForm(req)
		require.NoError(t, err)

		assert.Nil(t, input.Epitaph)
		assert.Nil(t, input.Biography)
		assert.Nil(t, input.BirthDate)
		assert.Nil(t, input.DeathDate)
	})

	t.Run("rejects malformed birthDate", func(t *testing.T) {
		req := formRequest(t, url.Values{"birthDate": {"12/03/1941"}})

		_, err := memorialFieldsFromForm(req)
		assert.Error(t, err)
	})

	t.Run("rejects malformed deathDate", func(t *testing.T) {
		req := formRequest(t, url.Values{"deathDate": {"not-a-date"}})

		_, err := memorialFieldsFromForm(req)
		assert.Error(t, err)
	})
}

func TestMediaFormKeys(t *testing.T) {
	// One form key per media kind, matching the frontend field names
	assert.Len(t, mediaFormKeys, 3)
	assert.Contains(t, mediaFormKeys, "photos")
	assert.Contains(t, mediaFormKeys, "videos")
	assert.Contains(t, mediaFormKeys, "documents")
}
