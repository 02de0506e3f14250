package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ConfigStore {
	t.Helper()
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestConfigStoreGetSet(t *testing.T) {
	store := newTestStore(t)

	_, ok := store.Get("backend")
	assert.False(t, ok)
	assert.Empty(t, store.GetString("backend"))
	assert.Zero(t, store.GetInt("networked.port"))
	assert.False(t, store.GetBool("verbose"))

	require.NoError(t, store.Set("backend", "embedded"))
	require.NoError(t, store.Set("networked.port", 5433))
	require.NoError(t, store.Set("verbose", true))

	assert.Equal(t, "embedded", store.GetString("backend"))
	assert.Equal(t, 5433, store.GetInt("networked.port"))
	assert.True(t, store.GetBool("verbose"))

	// Wrong-typed reads degrade to zero values.
	assert.Zero(t, store.GetInt("backend"))
	assert.Empty(t, store.GetString("networked.port"))
}

func TestConfigStorePersistence(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("backend", "networked"))
	require.NoError(t, store.Set("networked.host", "db.internal"))
	require.NoError(t, store.Set("networked.port", 5432))

	// A fresh store re-reads the same file, dot keys intact.
	reopened, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "networked", reopened.GetString("backend"))
	assert.Equal(t, "db.internal", reopened.GetString("networked.host"))
	assert.Equal(t, 5432, reopened.GetInt("networked.port"))
}

func TestConfigStoreFilePermissions(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("networked.password", "hunter2"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStoreDelete(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("verbose", true))
	require.NoError(t, store.Delete("verbose"))
	require.NoError(t, store.Delete("never-existed"))

	_, ok := store.Get("verbose")
	assert.False(t, ok)
}

func TestConfigStoreAll(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("backend", "embedded"))
	require.NoError(t, store.Set("embedded.path", "/var/lib/glimmer"))

	all := store.All()
	assert.Len(t, all, 2)

	// Mutating the copy leaves the store untouched.
	all["backend"] = "networked"
	assert.Equal(t, "embedded", store.GetString("backend"))
}

func TestConfigStoreLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not = [valid"), 0600))

	_, err := NewConfigStore(dir)
	assert.Error(t, err)
}

func TestFlattenUnflattenRoundTrip(t *testing.T) {
	nested := map[string]any{
		"backend": "networked",
		"networked": map[string]any{
			"host": "db.internal",
			"port": int64(5432),
		},
	}

	flat := flattenMap(nested, "")
	assert.Equal(t, "db.internal", flat["networked.host"])

	back := unflattenMap(flat)
	inner, ok := back["networked"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "db.internal", inner["host"])
}
