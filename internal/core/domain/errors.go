package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors, which are classified
// separately (see internal/dberr).
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Connection Errors.

	// ErrNotConnected indicates no backend connection is established.
	ErrNotConnected = errors.New("not connected")

	// ErrConnectInProgress indicates a connect attempt is already running.
	// Overlapping connect calls are short-circuited rather than raced.
	ErrConnectInProgress = errors.New("connect already in progress")

	// ErrInvalidConfig indicates the connection configuration is incomplete
	// or out of range.
	ErrInvalidConfig = errors.New("invalid connection configuration")

	// Encryption Errors.

	// ErrEmptyPlaintext indicates an encrypt call with nothing to encrypt.
	ErrEmptyPlaintext = errors.New("plaintext is empty")

	// ErrMalformedBlob indicates an encrypted blob that is not three
	// colon-separated hex parts.
	ErrMalformedBlob = errors.New("malformed encrypted blob")

	// ErrDecryptFailed indicates decryption produced no valid plaintext,
	// usually because the passphrase is wrong.
	ErrDecryptFailed = errors.New("decryption failed")

	// Migration Errors.

	// ErrUnknownVersion indicates a migration version not present in the catalog.
	ErrUnknownVersion = errors.New("unknown migration version")

	// ErrNoRollbackScript indicates a version that cannot be rolled back.
	ErrNoRollbackScript = errors.New("no rollback script for version")
)
