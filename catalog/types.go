package catalog

import "time"

// Provider identifies the source database engine a Catalog was extracted
// from. Non-goal: anything beyond these two at the catalog-query level.
type Provider string

const (
	ProviderSqlServer Provider = "sqlserver"
	ProviderPostgres  Provider = "postgres"
)

// ColumnKind is the normalized, provider-independent shape of a column's
// declared type, used by relationship inference and diff classification.
type ColumnKind string

const (
	KindInteger  ColumnKind = "integer"
	KindFloat    ColumnKind = "float"
	KindDecimal  ColumnKind = "decimal"
	KindString   ColumnKind = "string"
	KindBoolean  ColumnKind = "boolean"
	KindDateTime ColumnKind = "datetime"
	KindBinary   ColumnKind = "binary"
	KindJSON     ColumnKind = "json"
	KindUUID     ColumnKind = "uuid"
	KindOther    ColumnKind = "other"
)

// NormalizedType is the provider-independent shape of a declared column type.
type NormalizedType struct {
	Kind      ColumnKind
	Length    *int // character/byte length, if applicable
	Precision *int // numeric precision, if applicable
	Scale     *int // numeric scale, if applicable
}

// Column describes a single table column.
type Column struct {
	Name         string
	Ordinal      int
	RawType      string // provider's raw type string, e.g. "varchar(50)"
	Normalized   NormalizedType
	Nullable     bool
	DefaultExpr  string // empty if no default
	IsIdentity   bool
	IsComputed   bool
}

// ForeignKey describes a foreign-key constraint. LocalColumns and
// ReferencedColumns are positionally paired and must have equal length.
type ForeignKey struct {
	Name              string
	LocalColumns      []string
	ReferencedTable   FQN
	ReferencedColumns []string
	OnDeleteCascade   bool
	OnUpdateCascade   bool
}

// UniqueConstraint describes a UNIQUE constraint over one or more columns.
type UniqueConstraint struct {
	Name    string
	Columns []string
}

// IndexDirection is the sort direction of a single index key column.
type IndexDirection string

const (
	Ascending  IndexDirection = "asc"
	Descending IndexDirection = "desc"
)

// IndexColumn pairs a column name with its direction within an index key.
type IndexColumn struct {
	Name      string
	Direction IndexDirection
}

// Index describes a table index, including optional usage statistics that a
// connector may be unable to supply (nil/zero means "unknown", not "unused").
type Index struct {
	Name              string
	Columns           []IndexColumn
	IsUnique          bool
	IsClustered       bool
	IncludedColumns   []string
	FilterPredicate   string
	LastUsed          *time.Time // nil if unknown/unavailable (e.g. PostgreSQL)
	UsageSeeks        *uint64
	UsageScans        *uint64
	UsageUpdates      *uint64
}

// LeadingColumn returns the first key column's name, or "" if the index has
// no key columns (can happen for INCLUDE-only indexes, which never occurs in
// a valid index but is defended against defensively by callers).
func (i Index) LeadingColumn() string {
	if len(i.Columns) == 0 {
		return ""
	}
	return i.Columns[0].Name
}

// Table is a fully assembled table definition.
type Table struct {
	FQN               FQN
	Columns           []Column
	PrimaryKey        []string // column names, empty if the table has no PK
	ForeignKeys       []ForeignKey
	UniqueConstraints []UniqueConstraint
	Indexes           []Index
	RowCount          uint64
	SizeBytes         *uint64
	IsTemporary       bool // staging/temp table, exempted from MissingPK
}

// Column looks up a column by case-insensitive name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if equalFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// View is a fully assembled view definition.
type View struct {
	FQN  FQN
	Body string
	// References holds the resolved underlying table FQNs computed by the
	// extractor; populated by the builder, not by the connector.
	References []FQN
	// ColumnRefs mirrors Routine.ColumnRefs: every alias/table.column pair
	// the view's defining query touches.
	ColumnRefs map[string]map[string]bool
}

// RoutineKind distinguishes stored procedures from functions.
type RoutineKind string

const (
	RoutineProcedure RoutineKind = "procedure"
	RoutineFunction  RoutineKind = "function"
)

// Parameter describes a single routine parameter.
type Parameter struct {
	Name     string
	RawType  string
	IsOutput bool
}

// CrudFlags records which CRUD operations a routine performs against a
// particular table, as a bitset.
type CrudFlags uint8

const (
	CrudRead CrudFlags = 1 << iota
	CrudCreate
	CrudUpdate
	CrudDelete
)

func (f CrudFlags) Has(flag CrudFlags) bool { return f&flag != 0 }

// AntiPattern enumerates the anti-pattern categories the extractor detects.
type AntiPattern string

const (
	AntiPatternSelectStar   AntiPattern = "select_star"
	AntiPatternNolock       AntiPattern = "nolock"
	AntiPatternCursor       AntiPattern = "cursor"
	AntiPatternDynamicSQL   AntiPattern = "dynamic_sql"
	AntiPatternGlobalTemp   AntiPattern = "global_temp_table"
)

// ComplexityCategory buckets a routine's numeric complexity score.
type ComplexityCategory string

const (
	ComplexitySimple  ComplexityCategory = "simple"
	ComplexityMedium  ComplexityCategory = "medium"
	ComplexityComplex ComplexityCategory = "complex"
)

// Routine is a fully assembled stored-procedure or function definition,
// including the computed artifacts produced by the extractor and scorer.
type Routine struct {
	FQN        FQN
	Kind       RoutineKind
	Body       string
	Parameters []Parameter

	// Computed artifacts, populated by the builder from extractor/scorer output.
	ComplexityScore    float64
	ComplexityCategory ComplexityCategory
	ReferencedTables   []FQN
	Joins              [][2]FQN
	Crud               map[string]CrudFlags // keyed by FQN.String() of referenced table
	CalledRoutines     []FQN
	AntiPatterns       []AntiPattern
	// ColumnRefs records every alias/table.column pair the body touches,
	// keyed by FQN.String() of the owning table then lowercase column name.
	ColumnRefs map[string]map[string]bool
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
