package driven

// SettingsStore is the application settings contract: flat dot-notation
// keys backed by a user-editable file. It holds operator preferences
// and connection targets, never artwork data.
type SettingsStore interface {
	// Get retrieves a raw value by key.
	Get(key string) (any, bool)

	// GetString retrieves a string value, or "" when absent.
	GetString(key string) string

	// GetInt retrieves an integer value, or 0 when absent.
	GetInt(key string) int

	// GetBool retrieves a boolean value, or false when absent.
	GetBool(key string) bool

	// Set stores a value and persists immediately.
	Set(key string, value any) error

	// Delete removes a key and persists immediately.
	Delete(key string) error

	// All returns a copy of every stored key.
	All() map[string]any

	// Load re-reads the backing file.
	Load() error

	// Path returns the backing file path.
	Path() string
}
