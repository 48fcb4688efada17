package catalog

import "errors"

// Sentinel errors for catalog construction failures. A CatalogIntegrityError
// (see errors below) is fatal for the analysis run that raised it; the
// offending FQN is carried in the wrapping fmt.Errorf, not a custom type.
var (
	// ErrDuplicateFQN indicates two objects of the same kind share an FQN.
	ErrDuplicateFQN = errors.New("duplicate fully-qualified name in catalog")
	// ErrUnknownFKColumn indicates a foreign key references a column absent from its own table.
	ErrUnknownFKColumn = errors.New("foreign key column does not exist in table")
	// ErrUnknownPKColumn indicates a primary key names a column absent from its table.
	ErrUnknownPKColumn = errors.New("primary key column does not exist in table")
	// ErrUnknownUniqueColumn indicates a unique constraint names a column absent from its table.
	ErrUnknownUniqueColumn = errors.New("unique constraint column does not exist in table")
	// ErrUnknownIndexColumn indicates an index names a column absent from its table.
	ErrUnknownIndexColumn = errors.New("index column does not exist in table")
	// ErrForeignKeyColumnCountMismatch indicates a FK's local and referenced column counts differ.
	ErrForeignKeyColumnCountMismatch = errors.New("foreign key local and referenced column counts differ")
	// ErrForeignKeyUnknownTable indicates a FK references a table not present in the catalog.
	ErrForeignKeyUnknownTable = errors.New("foreign key references a table not present in the catalog")
)
