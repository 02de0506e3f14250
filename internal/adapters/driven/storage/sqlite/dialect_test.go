package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimmerhq/glimmer/internal/core/domain"
)

func TestTranslateScript(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "positional placeholders",
			in:   "SELECT * FROM artworks WHERE id = $1 AND model = $2",
			want: "SELECT * FROM artworks WHERE id = ? AND model = ?",
		},
		{
			name: "now function",
			in:   "UPDATE artworks SET updated_at = NOW()",
			want: "UPDATE artworks SET updated_at = CURRENT_TIMESTAMP",
		},
		{
			name: "column types",
			in:   "CREATE TABLE t (flag BOOLEAN, at TIMESTAMPTZ, n BIGINT, id BIGSERIAL)",
			want: "CREATE TABLE t (flag INTEGER, at TEXT, n INTEGER, id INTEGER)",
		},
		{
			name: "boolean literals",
			in:   "UPDATE artworks SET favorite = TRUE WHERE is_deleted = FALSE",
			want: "UPDATE artworks SET favorite = 1 WHERE is_deleted = 0",
		},
		{
			name: "identifiers containing keywords untouched",
			in:   "SELECT true_positive FROM nowhere",
			want: "SELECT true_positive FROM nowhere",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, translateScript(tc.in))
		})
	}
}

func TestTranslateCatalog(t *testing.T) {
	catalog := []domain.Migration{{
		Version:     1,
		Description: "test",
		Up:          []string{"CREATE TABLE t (flag BOOLEAN DEFAULT FALSE, at TIMESTAMPTZ DEFAULT NOW())"},
		Down:        []string{"DROP TABLE t"},
	}}

	out := translateCatalog(catalog)
	require.Len(t, out, 1)
	assert.Equal(t,
		"CREATE TABLE t (flag INTEGER DEFAULT 0, at TEXT DEFAULT CURRENT_TIMESTAMP)",
		out[0].Up[0])
	assert.Equal(t, "DROP TABLE t", out[0].Down[0])

	// The canonical catalog stays untouched.
	assert.Contains(t, catalog[0].Up[0], "BOOLEAN")
}

func TestBoolToInt(t *testing.T) {
	assert.Equal(t, 1, boolToInt(true))
	assert.Equal(t, 0, boolToInt(false))
}

func TestISOTimeRoundTrip(t *testing.T) {
	in := time.Date(2026, 3, 14, 9, 30, 15, 123456789, time.UTC)
	got, err := parseISOTime(isoTime(in))
	require.NoError(t, err)
	assert.True(t, got.Equal(in))
}

func TestParseISOTime(t *testing.T) {
	t.Run("empty is zero", func(t *testing.T) {
		got, err := parseISOTime("")
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("engine default format", func(t *testing.T) {
		got, err := parseISOTime("2026-03-14 09:30:15")
		require.NoError(t, err)
		assert.Equal(t, 2026, got.Year())
		assert.Equal(t, time.UTC, got.Location())
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := parseISOTime("last tuesday")
		assert.Error(t, err)
	})
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%koi%", likePattern("koi"))
	assert.Equal(t, `%50\%%`, likePattern("50%"))
	assert.Equal(t, `%snake\_case%`, likePattern("snake_case"))
	assert.Equal(t, `%back\\slash%`, likePattern(`back\slash`))
}
