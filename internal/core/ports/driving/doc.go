// Package driving defines the interfaces through which the outside
// world drives the persistence core.
//
// These are the "driving" or "primary" ports in hexagonal architecture.
// Route handlers, CLI commands, and other collaborators consume the
// Persistence interface; the services.Manager facade implements it.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or service package
package driving
