// Package domain defines the core business entities for Glimmer's
// persistence layer.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Artwork: A generated image and its metadata
//   - ConnectionConfig / ConnectionStatus: One backend target and its health
//   - OperationLogEntry: The append-only operation audit trail
//   - ConflictInfo: A detected concurrent-update divergence
//   - Migration / MigrationRecord: Versioned schema changes
//   - SecretConfig: Credential blobs, encrypted at rest
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
