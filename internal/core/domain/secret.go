package domain

// TenantID is the fixed single-tenant identifier used to key the
// configuration table.
const TenantID = "default"

// SecretKind identifies one class of stored credentials.
type SecretKind string

// Credential kinds the application stores.
const (
	// SecretKindImageGen holds image-generation API credentials.
	SecretKindImageGen SecretKind = "image_generation"

	// SecretKindStorage holds object-storage credentials.
	SecretKindStorage SecretKind = "object_storage"

	// SecretKindSMTP holds outbound mail credentials.
	SecretKindSMTP SecretKind = "smtp"
)

// IsValid returns true if the kind is recognised.
func (k SecretKind) IsValid() bool {
	switch k {
	case SecretKindImageGen, SecretKindStorage, SecretKindSMTP:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k SecretKind) String() string {
	return string(k)
}

// SecretConfig is one credential blob as seen by callers. Values are
// encrypted before storage and only decrypted in memory on read.
type SecretConfig map[string]string

// Redacted returns a copy safe for operator display.
func (c SecretConfig) Redacted() SecretConfig {
	out := make(SecretConfig, len(c))
	for k, v := range c {
		out[k] = MaskSecret(v)
	}
	return out
}
