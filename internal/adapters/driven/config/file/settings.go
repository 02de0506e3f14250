package file

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/glimmerhq/glimmer/internal/core/domain"
	"github.com/glimmerhq/glimmer/internal/crypto"
)

// Settings keys. Nested tables in the TOML file arrive flattened, so
// these are the exact keys operators set.
const (
	KeyBackend           = "backend"
	KeyVerbose           = "verbose"
	KeyEmbeddedPath      = "embedded.path"
	KeyNetworkedHost     = "networked.host"
	KeyNetworkedPort     = "networked.port"
	KeyNetworkedUser     = "networked.user"
	KeyNetworkedPassword = "networked.password"
	KeyNetworkedDatabase = "networked.database"
	KeyNetworkedTLS      = "networked.tls"
	KeyRetryMaxAttempts  = "retry.max_attempts"
	KeyRetryBaseDelayMs  = "retry.base_delay_ms"
	KeyRetryMaxDelayMs   = "retry.max_delay_ms"
	KeyMonitorIntervalS  = "monitor.interval_seconds"
	KeyOpLogRetentionD   = "retention.operation_log_days"
	KeyEncryptionKey     = "encryption.passphrase"
)

// Settings defaults.
const (
	defaultPort             = 5432
	defaultRetryAttempts    = 3
	defaultRetryBaseDelayMs = 200
	defaultRetryMaxDelayMs  = 5000
	defaultMonitorIntervalS = 30
	defaultOpLogRetentionD  = 30
)

// Settings is the typed view of the settings file after defaults and
// environment overrides are applied.
type Settings struct {
	Connection domain.ConnectionConfig
	Verbose    bool

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	MonitorInterval  time.Duration

	OperationLogRetentionDays int

	// EncryptionPassphrase resolves GLIMMER_ENCRYPTION_KEY over the
	// file value; empty when neither is set.
	EncryptionPassphrase string
}

// Settings derives the typed settings. Precedence per value: GLIMMER_*
// environment variable, then the file, then the built-in default.
func (s *ConfigStore) Settings() Settings {
	out := Settings{
		Verbose:                   s.GetBool(KeyVerbose),
		RetryMaxAttempts:          intOr(s, KeyRetryMaxAttempts, defaultRetryAttempts),
		RetryBaseDelay:            time.Duration(intOr(s, KeyRetryBaseDelayMs, defaultRetryBaseDelayMs)) * time.Millisecond,
		RetryMaxDelay:             time.Duration(intOr(s, KeyRetryMaxDelayMs, defaultRetryMaxDelayMs)) * time.Millisecond,
		MonitorInterval:           time.Duration(intOr(s, KeyMonitorIntervalS, defaultMonitorIntervalS)) * time.Second,
		OperationLogRetentionDays: intOr(s, KeyOpLogRetentionD, defaultOpLogRetentionD),
		EncryptionPassphrase:      envOr(crypto.EnvKey, s.GetString(KeyEncryptionKey)),
	}

	backend := domain.Backend(envOr("GLIMMER_BACKEND", s.GetString(KeyBackend)))
	if !backend.IsValid() {
		backend = domain.BackendEmbedded
	}

	path := envOr("GLIMMER_EMBEDDED_PATH", s.GetString(KeyEmbeddedPath))
	if path == "" {
		path = filepath.Join(filepath.Dir(s.Path()), "data")
	}

	port := intOr(s, KeyNetworkedPort, defaultPort)
	if v := os.Getenv("GLIMMER_NETWORKED_PORT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			port = parsed
		}
	}

	tls := s.GetBool(KeyNetworkedTLS)
	if v := os.Getenv("GLIMMER_NETWORKED_TLS"); v != "" {
		tls = v == "1" || v == "true"
	}

	out.Connection = domain.ConnectionConfig{
		Backend:  backend,
		Path:     path,
		Host:     envOr("GLIMMER_NETWORKED_HOST", s.GetString(KeyNetworkedHost)),
		Port:     port,
		User:     envOr("GLIMMER_NETWORKED_USER", s.GetString(KeyNetworkedUser)),
		Password: envOr("GLIMMER_NETWORKED_PASSWORD", s.GetString(KeyNetworkedPassword)),
		Database: envOr("GLIMMER_NETWORKED_DATABASE", s.GetString(KeyNetworkedDatabase)),
		TLS:      tls,
		Enabled:  true,
	}
	return out
}

// RedactedKeys lists the settings whose values must be masked in any
// operator-facing listing.
func RedactedKeys() map[string]bool {
	return map[string]bool{
		KeyNetworkedPassword: true,
		KeyEncryptionKey:     true,
	}
}

func intOr(s *ConfigStore, key string, fallback int) int {
	if _, ok := s.Get(key); !ok {
		return fallback
	}
	return s.GetInt(key)
}

func envOr(env, fileValue string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	return fileValue
}
