package connector

import (
	"io"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/dbforensic/dbforensic/catalog"
)

// yamlSnapshot is the on-disk shape of a catalog snapshot, grounded on the
// same flattened, yaml-tagged style used elsewhere for the tbls-adjacent
// schema import document. Only structure and view/routine bodies are
// stored; computed fields (complexity, referenced tables, anti-patterns)
// are not, and are derived again when the snapshot is loaded.
type yamlSnapshot struct {
	Provider      string             `yaml:"provider"`
	DefaultSchema string             `yaml:"default_schema"`
	ExtractedAt   time.Time          `yaml:"extracted_at"`
	Tables        []yamlTable        `yaml:"tables"`
	Views         []yamlView         `yaml:"views,omitempty"`
	Routines      []yamlRoutine      `yaml:"routines,omitempty"`
}

type yamlColumn struct {
	Name        string `yaml:"name"`
	Ordinal     int    `yaml:"ordinal"`
	RawType     string `yaml:"raw_type"`
	Nullable    bool   `yaml:"nullable"`
	DefaultExpr string `yaml:"default_expr,omitempty"`
	IsIdentity  bool   `yaml:"is_identity,omitempty"`
	IsComputed  bool   `yaml:"is_computed,omitempty"`
}

type yamlForeignKey struct {
	Name              string   `yaml:"name"`
	LocalColumns      []string `yaml:"local_columns"`
	ReferencedTable   string   `yaml:"referenced_table"`
	ReferencedColumns []string `yaml:"referenced_columns"`
	OnDeleteCascade   bool     `yaml:"on_delete_cascade,omitempty"`
	OnUpdateCascade   bool     `yaml:"on_update_cascade,omitempty"`
}

type yamlUnique struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
}

type yamlIndex struct {
	Name            string   `yaml:"name"`
	Columns         []string `yaml:"columns"`
	IsUnique        bool     `yaml:"is_unique"`
	IsClustered     bool     `yaml:"is_clustered,omitempty"`
	IncludedColumns []string `yaml:"included_columns,omitempty"`
}

type yamlTable struct {
	Schema      string           `yaml:"schema"`
	Name        string           `yaml:"name"`
	Columns     []yamlColumn     `yaml:"columns"`
	PrimaryKey  []string         `yaml:"primary_key,omitempty"`
	ForeignKeys []yamlForeignKey `yaml:"foreign_keys,omitempty"`
	Unique      []yamlUnique     `yaml:"unique_constraints,omitempty"`
	Indexes     []yamlIndex      `yaml:"indexes,omitempty"`
	RowCount    uint64           `yaml:"row_count"`
	IsTemporary bool             `yaml:"is_temporary,omitempty"`
}

type yamlView struct {
	Schema string `yaml:"schema"`
	Name   string `yaml:"name"`
	Body   string `yaml:"body"`
}

type yamlRoutine struct {
	Schema string `yaml:"schema"`
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`
	Body   string `yaml:"body"`
}

// SaveSnapshot serializes cat to YAML. Computed artifacts (joins, CRUD,
// complexity) are intentionally not persisted: LoadSnapshot re-derives them
// via the same extractor/scorer pipeline a live connector uses, so a
// snapshot stays a pure structural capture.
func SaveSnapshot(w io.Writer, cat *catalog.Catalog, extractedAt time.Time) error {
	snap := yamlSnapshot{
		Provider:      string(cat.Provider()),
		DefaultSchema: cat.DefaultSchema(),
		ExtractedAt:   extractedAt,
	}

	for _, t := range cat.Tables() {
		snap.Tables = append(snap.Tables, toYAMLTable(t))
	}
	for _, v := range cat.Views() {
		snap.Views = append(snap.Views, yamlView{Schema: v.FQN.Schema, Name: v.FQN.Name, Body: v.Body})
	}
	for _, r := range cat.Routines() {
		snap.Routines = append(snap.Routines, yamlRoutine{
			Schema: r.FQN.Schema,
			Name:   r.FQN.Name,
			Kind:   string(r.Kind),
			Body:   r.Body,
		})
	}

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(snap)
}

// LoadSnapshot parses a YAML snapshot and rebuilds a catalog.Catalog,
// re-running the SQL reference extractor and complexity scorer over the
// persisted view/routine bodies exactly as a live connector would.
func LoadSnapshot(r io.Reader) (*catalog.Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var snap yamlSnapshot
	if err := yaml.UnmarshalWithOptions(data, &snap, yaml.Strict()); err != nil {
		return nil, err
	}
	if len(snap.Tables) == 0 {
		return nil, ErrEmptySnapshot
	}

	tables := make([]catalog.Table, 0, len(snap.Tables))
	for _, t := range snap.Tables {
		tables = append(tables, fromYAMLTable(t, catalog.Provider(snap.Provider)))
	}

	var views []RawView
	for _, v := range snap.Views {
		views = append(views, RawView{FQN: catalog.NewFQN(v.Schema, v.Name), Body: v.Body})
	}

	var routines []RawRoutine
	for _, r := range snap.Routines {
		kind := catalog.RoutineProcedure
		if r.Kind == string(catalog.RoutineFunction) {
			kind = catalog.RoutineFunction
		}
		routines = append(routines, RawRoutine{FQN: catalog.NewFQN(r.Schema, r.Name), Kind: kind, Body: r.Body})
	}

	return AssembleCatalog(catalog.Provider(snap.Provider), snap.DefaultSchema, tables, views, routines)
}

func toYAMLTable(t catalog.Table) yamlTable {
	out := yamlTable{
		Schema:      t.FQN.Schema,
		Name:        t.FQN.Name,
		PrimaryKey:  t.PrimaryKey,
		RowCount:    t.RowCount,
		IsTemporary: t.IsTemporary,
	}
	for _, c := range t.Columns {
		out.Columns = append(out.Columns, yamlColumn{
			Name:        c.Name,
			Ordinal:     c.Ordinal,
			RawType:     c.RawType,
			Nullable:    c.Nullable,
			DefaultExpr: c.DefaultExpr,
			IsIdentity:  c.IsIdentity,
			IsComputed:  c.IsComputed,
		})
	}
	for _, fk := range t.ForeignKeys {
		out.ForeignKeys = append(out.ForeignKeys, yamlForeignKey{
			Name:              fk.Name,
			LocalColumns:      fk.LocalColumns,
			ReferencedTable:   fk.ReferencedTable.String(),
			ReferencedColumns: fk.ReferencedColumns,
			OnDeleteCascade:   fk.OnDeleteCascade,
			OnUpdateCascade:   fk.OnUpdateCascade,
		})
	}
	for _, uq := range t.UniqueConstraints {
		out.Unique = append(out.Unique, yamlUnique{Name: uq.Name, Columns: uq.Columns})
	}
	for _, idx := range t.Indexes {
		yidx := yamlIndex{
			Name:            idx.Name,
			IsUnique:        idx.IsUnique,
			IsClustered:     idx.IsClustered,
			IncludedColumns: idx.IncludedColumns,
		}
		for _, c := range idx.Columns {
			yidx.Columns = append(yidx.Columns, c.Name)
		}
		out.Indexes = append(out.Indexes, yidx)
	}
	return out
}

func fromYAMLTable(y yamlTable, provider catalog.Provider) catalog.Table {
	t := catalog.Table{
		FQN:         catalog.NewFQN(y.Schema, y.Name),
		PrimaryKey:  y.PrimaryKey,
		RowCount:    y.RowCount,
		IsTemporary: y.IsTemporary,
	}
	for _, c := range y.Columns {
		t.Columns = append(t.Columns, catalog.Column{
			Name:        c.Name,
			Ordinal:     c.Ordinal,
			RawType:     c.RawType,
			Normalized:  NormalizeRawType(provider, c.RawType),
			Nullable:    c.Nullable,
			DefaultExpr: c.DefaultExpr,
			IsIdentity:  c.IsIdentity,
			IsComputed:  c.IsComputed,
		})
	}
	for _, fk := range y.ForeignKeys {
		schema, name := splitFQN(fk.ReferencedTable)
		t.ForeignKeys = append(t.ForeignKeys, catalog.ForeignKey{
			Name:              fk.Name,
			LocalColumns:      fk.LocalColumns,
			ReferencedTable:   catalog.NewFQN(schema, name),
			ReferencedColumns: fk.ReferencedColumns,
			OnDeleteCascade:   fk.OnDeleteCascade,
			OnUpdateCascade:   fk.OnUpdateCascade,
		})
	}
	for _, uq := range y.Unique {
		t.UniqueConstraints = append(t.UniqueConstraints, catalog.UniqueConstraint{Name: uq.Name, Columns: uq.Columns})
	}
	for _, idx := range y.Indexes {
		ci := catalog.Index{
			Name:            idx.Name,
			IsUnique:        idx.IsUnique,
			IsClustered:     idx.IsClustered,
			IncludedColumns: idx.IncludedColumns,
		}
		for _, name := range idx.Columns {
			ci.Columns = append(ci.Columns, catalog.IndexColumn{Name: name, Direction: catalog.Ascending})
		}
		t.Indexes = append(t.Indexes, ci)
	}
	return t
}

func splitFQN(s string) (schema, name string) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[:i], s[i+1:]
		}
	}
	return "", s
}
