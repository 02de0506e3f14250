package file

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimmerhq/glimmer/internal/core/domain"
	"github.com/glimmerhq/glimmer/internal/crypto"
)

func TestSettingsDefaults(t *testing.T) {
	store := newTestStore(t)

	settings := store.Settings()
	assert.Equal(t, domain.BackendEmbedded, settings.Connection.Backend)
	assert.Equal(t, filepath.Join(filepath.Dir(store.Path()), "data"), settings.Connection.Path)
	assert.Equal(t, 3, settings.RetryMaxAttempts)
	assert.Equal(t, 200*time.Millisecond, settings.RetryBaseDelay)
	assert.Equal(t, 5*time.Second, settings.RetryMaxDelay)
	assert.Equal(t, 30*time.Second, settings.MonitorInterval)
	assert.Equal(t, 30, settings.OperationLogRetentionDays)
	assert.False(t, settings.Verbose)
}

func TestSettingsFromFile(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set(KeyBackend, "networked"))
	require.NoError(t, store.Set(KeyNetworkedHost, "db.internal"))
	require.NoError(t, store.Set(KeyNetworkedPort, 5433))
	require.NoError(t, store.Set(KeyNetworkedUser, "glimmer"))
	require.NoError(t, store.Set(KeyNetworkedPassword, "hunter2"))
	require.NoError(t, store.Set(KeyNetworkedDatabase, "glimmer"))
	require.NoError(t, store.Set(KeyNetworkedTLS, true))
	require.NoError(t, store.Set(KeyRetryMaxAttempts, 5))
	require.NoError(t, store.Set(KeyMonitorIntervalS, 10))

	settings := store.Settings()
	assert.Equal(t, domain.BackendNetworked, settings.Connection.Backend)
	assert.Equal(t, "db.internal", settings.Connection.Host)
	assert.Equal(t, 5433, settings.Connection.Port)
	assert.True(t, settings.Connection.TLS)
	assert.Equal(t, 5, settings.RetryMaxAttempts)
	assert.Equal(t, 10*time.Second, settings.MonitorInterval)
	require.NoError(t, settings.Connection.Validate())
}

func TestSettingsEnvOverrides(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set(KeyBackend, "embedded"))
	require.NoError(t, store.Set(KeyNetworkedHost, "from-file"))

	t.Setenv("GLIMMER_BACKEND", "networked")
	t.Setenv("GLIMMER_NETWORKED_HOST", "from-env")
	t.Setenv("GLIMMER_NETWORKED_PORT", "6543")
	t.Setenv("GLIMMER_NETWORKED_TLS", "true")

	settings := store.Settings()
	assert.Equal(t, domain.BackendNetworked, settings.Connection.Backend)
	assert.Equal(t, "from-env", settings.Connection.Host)
	assert.Equal(t, 6543, settings.Connection.Port)
	assert.True(t, settings.Connection.TLS)
}

func TestSettingsEncryptionKeyEnvOverridesFile(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set(KeyEncryptionKey, "from-file"))

	settings := store.Settings()
	assert.Equal(t, "from-file", settings.EncryptionPassphrase)

	t.Setenv(crypto.EnvKey, "from-env")
	settings = store.Settings()
	assert.Equal(t, "from-env", settings.EncryptionPassphrase)
}

func TestSettingsInvalidBackendFallsBack(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set(KeyBackend, "cloud"))

	settings := store.Settings()
	assert.Equal(t, domain.BackendEmbedded, settings.Connection.Backend)
}

func TestRedactedKeys(t *testing.T) {
	redacted := RedactedKeys()
	assert.True(t, redacted[KeyNetworkedPassword])
	assert.True(t, redacted[KeyEncryptionKey])
	assert.False(t, redacted[KeyNetworkedHost])
}
