// Package connector extracts a catalog.Catalog from a live SQL Server or
// PostgreSQL connection via database/sql, and loads/saves catalog snapshots
// to YAML for environments where a live connection is unavailable (§4.9).
package connector

import (
	"errors"
	"fmt"

	"github.com/dbforensic/dbforensic/catalog"
)

// Sentinel errors for connector-level failures, mirroring the catalog
// package's own sentinel-error style.
var (
	// ErrUnsupportedProvider indicates a catalog.Provider with no connector implementation.
	ErrUnsupportedProvider = errors.New("connector: unsupported provider")
	// ErrEmptySnapshot indicates a snapshot document with no tables at all.
	ErrEmptySnapshot = errors.New("connector: snapshot contains no tables")
)

// ConnectionError wraps a database/sql failure encountered while extracting
// a catalog from a live connection, distinguishing it from a
// CatalogIntegrityError raised once the extracted rows reach
// catalog.Builder.Build — the CLI maps the two to different exit codes.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connector: connection failure: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func isCatalogIntegrityError(err error) bool {
	for _, sentinel := range []error{
		catalog.ErrDuplicateFQN,
		catalog.ErrUnknownFKColumn,
		catalog.ErrUnknownPKColumn,
		catalog.ErrUnknownUniqueColumn,
		catalog.ErrUnknownIndexColumn,
		catalog.ErrForeignKeyColumnCountMismatch,
		catalog.ErrForeignKeyUnknownTable,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
