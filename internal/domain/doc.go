// Package domain defines core data models and interfaces shared across the app.
// It contains plain types (wire/state) and contracts (interfaces) only.
//
// Types live in the types subpackage and contracts in the interfaces
// subpackage; both are re-exported here as aliases so callers import a single
// package.
package domain
