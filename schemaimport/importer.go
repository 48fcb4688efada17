package schemaimport

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tblsschema "github.com/k1LoW/tbls/schema"

	"github.com/dbforensic/dbforensic/catalog"
	"github.com/dbforensic/dbforensic/connector"
)

// Importer orchestrates loading a tbls schema JSON document and converting
// it into a catalog.Catalog.
type Importer struct {
	cfg          *Config
	schema       *tblsschema.Schema
	schemaLoaded bool
}

// NewImporter constructs an Importer from a Config.
func NewImporter(cfg Config) *Importer {
	copyCfg := cfg
	return &Importer{cfg: &copyCfg}
}

// Config returns the resolved configuration backing the importer.
func (i *Importer) Config() *Config {
	if i == nil {
		return nil
	}

	return i.cfg
}

// LoadSchemaJSON loads the tbls JSON artefact into memory ready for conversion.
func (i *Importer) LoadSchemaJSON(ctx context.Context) error {
	if i == nil {
		return ErrImporterNil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if i.cfg == nil {
		return ErrImporterConfigNil
	}

	path := i.cfg.SchemaJSONPath
	if strings.TrimSpace(path) == "" {
		return ErrSchemaJSONPathMissing
	}

	if !filepath.IsAbs(path) {
		base := i.cfg.WorkingDir
		if base == "" {
			base = "."
		}

		path = filepath.Join(base, path)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("schemaimport: open schema JSON %q: %w", path, err)
	}
	defer file.Close()

	schema, err := decodeSchemaJSON(file)
	if err != nil {
		return fmt.Errorf("schemaimport: decode schema JSON %q: %w", path, err)
	}

	if err := validateSchema(schema); err != nil {
		return fmt.Errorf("schemaimport: invalid schema JSON %q: %w", path, err)
	}

	i.logf("Loaded schema JSON (%s) tables=%d", schema.Driver.Name, len(schema.Tables))

	if err := ctx.Err(); err != nil {
		return err
	}

	i.schema = schema
	i.schemaLoaded = true

	return nil
}

// Convert transforms the loaded tbls schema into a catalog.Catalog, running
// the SQL reference extractor and complexity scorer over view bodies the
// same way a live connector does. tbls never captures routine bodies, row
// counts, or index usage stats, so a catalog built this way always has an
// empty Routines() set and every Index carries nil usage-stat pointers;
// detectors that key off those fields skip silently rather than erroring.
func (i *Importer) Convert(ctx context.Context) (*catalog.Catalog, error) {
	if i == nil {
		return nil, ErrImporterNil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !i.schemaLoaded || i.schema == nil {
		return nil, ErrSchemaNotLoaded
	}

	provider, err := providerFromDriver(i.schema.Driver.Name)
	if err != nil {
		return nil, err
	}

	defaultSchema := defaultSchemaFor(provider, i.schema.Driver)

	i.logf("Converting schema for driver=%s provider=%s tables=%d", i.schema.Driver.Name, provider, len(i.schema.Tables))

	var tables []catalog.Table
	var views []connector.RawView

	for _, tbl := range i.schema.Tables {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if tbl == nil {
			continue
		}

		schemaName, tableName := splitSchemaAndName(tbl.Name, i.schema.Driver)
		if schemaName == "" {
			schemaName = defaultSchema
		}
		fqn := catalog.NewFQN(schemaName, tableName)

		if strings.ToUpper(tbl.Type) == "VIEW" {
			views = append(views, connector.RawView{FQN: fqn, Body: tbl.Def})
			continue
		}

		tables = append(tables, convertTable(tbl, fqn, provider, defaultSchema))
	}

	i.logf("Converted schema JSON -> tables=%d views=%d", len(tables), len(views))

	return connector.AssembleCatalog(provider, defaultSchema, tables, views, nil)
}

// hasLoadedSchema reports whether a schema JSON payload has been loaded.
func (i *Importer) hasLoadedSchema() bool {
	if i == nil {
		return false
	}

	return i.schemaLoaded
}

func decodeSchemaJSON(r io.Reader) (*tblsschema.Schema, error) {
	dec := json.NewDecoder(r)

	var schema tblsschema.Schema
	if err := dec.Decode(&schema); err != nil {
		return nil, err
	}

	return &schema, nil
}

func validateSchema(s *tblsschema.Schema) error {
	if s == nil {
		return ErrSchemaPayloadNil
	}

	if s.Driver == nil {
		return ErrDriverMetadataMissing
	}

	if strings.TrimSpace(s.Driver.Name) == "" {
		return ErrDriverNameEmpty
	}

	if len(s.Tables) == 0 {
		return ErrSchemaTablesEmpty
	}

	return nil
}

func (i *Importer) logf(format string, args ...any) {
	if i == nil || i.cfg == nil {
		return
	}

	i.cfg.logf(format, args...)
}

func providerFromDriver(driver string) (catalog.Provider, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pgx":
		return catalog.ProviderPostgres, nil
	case "mssql", "sqlserver", "sqlserver+mssql":
		return catalog.ProviderSqlServer, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

func defaultSchemaFor(provider catalog.Provider, driver *tblsschema.Driver) string {
	if driver != nil && driver.Meta != nil && driver.Meta.CurrentSchema != "" {
		return driver.Meta.CurrentSchema
	}

	if provider == catalog.ProviderSqlServer {
		return "dbo"
	}

	return "public"
}

func convertTable(tbl *tblsschema.Table, fqn catalog.FQN, provider catalog.Provider, defaultSchema string) catalog.Table {
	columns := make([]catalog.Column, 0, len(tbl.Columns))
	pkFromColumns := make(map[string]bool)

	for idx, col := range tbl.Columns {
		if col == nil {
			continue
		}

		if col.PK {
			pkFromColumns[col.Name] = true
		}

		columns = append(columns, catalog.Column{
			Name:        col.Name,
			Ordinal:     idx + 1,
			RawType:     col.Type,
			Normalized:  connector.NormalizeRawType(provider, col.Type),
			Nullable:    col.Nullable,
			DefaultExpr: nullStringValue(col.Default),
			IsIdentity:  false,
			IsComputed:  false,
		})
	}

	var primaryKey []string
	var foreignKeys []catalog.ForeignKey
	var unique []catalog.UniqueConstraint

	for _, c := range tbl.Constraints {
		if c == nil {
			continue
		}

		switch strings.ToUpper(c.Type) {
		case "PRIMARY KEY":
			primaryKey = append(primaryKey, c.Columns...)
		case "FOREIGN KEY":
			foreignKeys = append(foreignKeys, convertForeignKey(c, defaultSchema))
		case "UNIQUE":
			unique = append(unique, catalog.UniqueConstraint{
				Name:    c.Name,
				Columns: append([]string(nil), c.Columns...),
			})
		}
	}

	if len(primaryKey) == 0 {
		for _, col := range columns {
			if pkFromColumns[col.Name] {
				primaryKey = append(primaryKey, col.Name)
			}
		}
	}

	return catalog.Table{
		FQN:               fqn,
		Columns:           columns,
		PrimaryKey:        primaryKey,
		ForeignKeys:       foreignKeys,
		UniqueConstraints: unique,
		Indexes:           convertIndexes(tbl),
	}
}

func convertForeignKey(c *tblsschema.Constraint, defaultSchema string) catalog.ForeignKey {
	refSchema, refTable := defaultSchema, ""
	if c.ReferencedTable != nil {
		if schema, table := splitReferencedTable(*c.ReferencedTable); schema != "" {
			refSchema, refTable = schema, table
		} else {
			refTable = table
		}
	}

	def := strings.ToUpper(c.Def)

	return catalog.ForeignKey{
		Name:              c.Name,
		LocalColumns:      append([]string(nil), c.Columns...),
		ReferencedTable:   catalog.NewFQN(refSchema, refTable),
		ReferencedColumns: append([]string(nil), c.ReferencedColumns...),
		OnDeleteCascade:   strings.Contains(def, "ON DELETE CASCADE"),
		OnUpdateCascade:   strings.Contains(def, "ON UPDATE CASCADE"),
	}
}

func splitReferencedTable(fullName string) (string, string) {
	if idx := strings.Index(fullName, "."); idx >= 0 {
		return fullName[:idx], fullName[idx+1:]
	}

	return "", fullName
}

func convertIndexes(tbl *tblsschema.Table) []catalog.Index {
	indexes := make([]catalog.Index, 0, len(tbl.Indexes))

	for _, idx := range tbl.Indexes {
		if idx == nil {
			continue
		}

		if parseIndexType(idx) == "PRIMARY" {
			continue
		}

		ci := catalog.Index{
			Name:     idx.Name,
			IsUnique: isUniqueIndex(idx),
		}
		for _, col := range idx.Columns {
			ci.Columns = append(ci.Columns, catalog.IndexColumn{Name: col, Direction: catalog.Ascending})
		}

		indexes = append(indexes, ci)
	}

	return indexes
}

func splitSchemaAndName(fullName string, driver *tblsschema.Driver) (string, string) {
	schemaName := ""
	tableName := fullName

	if idx := strings.Index(fullName, "."); idx >= 0 {
		schemaName = fullName[:idx]
		tableName = fullName[idx+1:]
	} else if driver != nil && driver.Meta != nil && driver.Meta.CurrentSchema != "" {
		schemaName = driver.Meta.CurrentSchema
	}

	return schemaName, tableName
}

func nullStringValue(v sql.NullString) string {
	if v.Valid {
		return v.String
	}

	return ""
}

func isUniqueIndex(idx *tblsschema.Index) bool {
	if idx == nil {
		return false
	}

	def := strings.ToUpper(idx.Def)

	return strings.Contains(def, "UNIQUE")
}

func parseIndexType(idx *tblsschema.Index) string {
	if idx == nil {
		return ""
	}

	def := strings.ToUpper(idx.Def)
	switch {
	case strings.Contains(def, "PRIMARY"):
		return "PRIMARY"
	case strings.Contains(def, "UNIQUE"):
		return "UNIQUE"
	default:
		return ""
	}
}

