// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and the storage adapters
// (sqlite, postgres) implement them.
//
// # Required Interfaces
//
//   - Store: The uniform backend contract - lifecycle, artwork CRUD,
//     encrypted configuration blobs, operation log, statistics, and the
//     migration operations. Exactly one implementation is selected at
//     startup and used for the whole process lifetime.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
