// Package dbforensic wires together the catalog model, the SQL reference
// extractor, relationship inference, the dependency graph, issue detectors,
// the health scorer and the diff engine into a single analysis pipeline, and
// provides the configuration loader shared by every CLI command.
package dbforensic

import "errors"

// Sentinel errors used throughout the dbforensic package.
var (
	// ErrConfigValidation is returned when configuration validation fails.
	ErrConfigValidation = errors.New("configuration validation failed")
	// ErrUnknownProvider indicates a configured provider is neither sqlserver nor postgres.
	ErrUnknownProvider = errors.New("unknown database provider")
	// ErrNoConnectionConfigured indicates a scan was requested without a usable connection.
	ErrNoConnectionConfigured = errors.New("no database connection configured")
	// ErrObjectNotFound indicates an --table/--routine argument named an object absent from the catalog.
	ErrObjectNotFound = errors.New("object not found in catalog")
)
