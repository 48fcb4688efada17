// Package migrate renders a diff.ChangeSet into a provider-specific,
// transaction-wrapped SQL script (§6's "Migration SQL output format"). It
// never talks to a database and never reads a catalog directly: every
// statement is derived solely from the Change values the diff engine already
// classified.
package migrate

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dbforensic/dbforensic/catalog"
	"github.com/dbforensic/dbforensic/diff"
)

type ddlData struct {
	Table       string
	Schema      string
	Name        string
	Column      string
	Index       string
	FK          string
	Detail      string
	Provider    string
	NewType     string
	OrphanCheck string
}

// Emit partitions cs into the eight ordered sections, renders each Change as
// a guarded DDL fragment (or a commented manifest line for routine/view
// changes), wraps the result in a single transaction, and appends a
// best-effort commented rollback script.
func Emit(cs diff.ChangeSet, provider catalog.Provider) (string, error) {
	var (
		newTables      []string
		newColumns     []string
		modifiedCols   []string
		newIndexes     []string
		newForeignKeys []string
		manifest       []string
		removedIndexes []string
		removedCols    []string
	)

	for _, c := range cs.Changes {
		stmt, section, err := render(provider, c)
		if err != nil {
			return "", fmt.Errorf("migrate: render %s: %w", c.Kind, err)
		}
		if stmt == "" {
			continue
		}
		if needsManualReview(c) {
			stmt = manualReviewBlock(c, stmt)
		}
		switch section {
		case sectionNewTables:
			newTables = append(newTables, stmt)
		case sectionNewColumns:
			newColumns = append(newColumns, stmt)
		case sectionModifiedColumns:
			modifiedCols = append(modifiedCols, stmt)
		case sectionNewIndexes:
			newIndexes = append(newIndexes, stmt)
		case sectionNewForeignKeys:
			newForeignKeys = append(newForeignKeys, stmt)
		case sectionManifest:
			manifest = append(manifest, stmt)
		case sectionRemovedIndexes:
			removedIndexes = append(removedIndexes, stmt)
		case sectionRemovedColumns:
			removedCols = append(removedCols, stmt)
		}
	}

	var buf bytes.Buffer
	writeHeader(&buf, provider, cs)

	sections := []struct {
		title string
		stmts []string
	}{
		{"New tables", newTables},
		{"New columns", newColumns},
		{"Modified columns", modifiedCols},
		{"New indexes", newIndexes},
		{"New foreign keys", newForeignKeys},
		{"Routine and view changes (review manually; bodies are not generated)", manifest},
		{"Removed indexes", removedIndexes},
		{"Removed tables and columns", removedCols},
	}

	for _, s := range sections {
		if len(s.stmts) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "-- %s\n", s.title)
		for _, stmt := range s.stmts {
			buf.WriteString(stmt)
			buf.WriteString("\n\n")
		}
	}

	writeFooter(&buf, provider)
	writeRollback(&buf, provider, cs)

	return buf.String(), nil
}

type section int

const (
	sectionNone section = iota
	sectionNewTables
	sectionNewColumns
	sectionModifiedColumns
	sectionNewIndexes
	sectionNewForeignKeys
	sectionManifest
	sectionRemovedIndexes
	sectionRemovedColumns
)

func render(provider catalog.Provider, c diff.Change) (string, section, error) {
	switch c.Kind {
	case diff.TableAdded:
		s, err := execTemplate(provider, "create_table", baseData(provider, c))
		return s, sectionNewTables, err
	case diff.TableRemoved:
		s, err := execTemplate(provider, "drop_table", baseData(provider, c))
		return s, sectionRemovedColumns, err
	case diff.ColumnAdded:
		s, err := execTemplate(provider, "add_column", baseData(provider, c))
		return s, sectionNewColumns, err
	case diff.ColumnRemoved:
		s, err := execTemplate(provider, "drop_column", baseData(provider, c))
		return s, sectionRemovedColumns, err
	case diff.ColumnModified:
		s, err := columnModifiedStatement(provider, c)
		return s, sectionModifiedColumns, err
	case diff.IndexAdded:
		d := baseData(provider, c)
		d.Index = c.Column
		s, err := execTemplate(provider, "create_index", d)
		return s, sectionNewIndexes, err
	case diff.IndexRemoved:
		d := baseData(provider, c)
		d.Index = c.Column
		s, err := execTemplate(provider, "drop_index", d)
		return s, sectionRemovedIndexes, err
	case diff.UniqueAdded:
		d := baseData(provider, c)
		d.Index = c.Column
		s, err := execTemplate(provider, "add_unique", d)
		return s, sectionNewIndexes, err
	case diff.UniqueRemoved:
		d := baseData(provider, c)
		d.Index = c.Column
		s, err := execTemplate(provider, "drop_unique", d)
		return s, sectionRemovedIndexes, err
	case diff.ForeignKeyAdded:
		d := baseData(provider, c)
		d.FK = c.Column
		s, err := execTemplate(provider, "add_fk", d)
		return s, sectionNewForeignKeys, err
	case diff.ForeignKeyRemoved:
		d := baseData(provider, c)
		d.FK = c.Column
		s, err := execTemplate(provider, "drop_fk", d)
		return s, sectionNewForeignKeys, err
	case diff.RoutineAdded, diff.RoutineRemoved, diff.RoutineBodyChanged,
		diff.ViewAdded, diff.ViewRemoved, diff.ViewBodyChanged:
		return manifestLine(c), sectionManifest, nil
	default:
		return "", sectionNone, nil
	}
}

func baseData(provider catalog.Provider, c diff.Change) ddlData {
	return ddlData{
		Table:       c.Table.String(),
		Schema:      c.Table.Schema,
		Name:        c.Table.Name,
		Column:      c.Column,
		Detail:      c.Detail,
		Provider:    string(provider),
		OrphanCheck: c.OrphanCheck,
	}
}

func columnModifiedStatement(provider catalog.Provider, c diff.Change) (string, error) {
	d := baseData(provider, c)
	if c.Field != diff.FieldType {
		return execTemplateName("alter_column_comment", d)
	}
	d.NewType = newTypeFromDetail(c.Detail)
	if d.NewType == "" {
		return execTemplateName("alter_column_comment", d)
	}
	return execTemplateName("alter_column_type", d)
}

// newTypeFromDetail extracts the trailing raw type name from a
// diffColumnFields-generated Detail string of the form
// "type changed from <old> to <new>".
func newTypeFromDetail(detail string) string {
	idx := strings.LastIndex(detail, " to ")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(detail[idx+len(" to "):])
}

func manifestLine(c diff.Change) string {
	object := c.Table.String()
	if c.Object != (catalog.ObjectRef{}) {
		object = c.Object.String()
	}
	line := fmt.Sprintf("-- %s %s [risk=%s] %s", c.Kind, object, c.Risk, c.Detail)
	if c.Kind == diff.RoutineRemoved || c.Kind == diff.ViewRemoved {
		for _, a := range c.Affected {
			line += fmt.Sprintf("\n--   affects %s", a)
		}
	}
	return line
}

// needsManualReview implements §4.11's Critical-drop rule: column/table
// removal, or an FK addition whose orphan-check is non-empty (the emitter
// has no row-count visibility, so any non-empty orphan check is treated as
// "could be a non-empty table").
func needsManualReview(c diff.Change) bool {
	switch c.Kind {
	case diff.TableRemoved:
		return true
	case diff.ColumnRemoved:
		return c.Risk == diff.RiskCritical
	case diff.ForeignKeyAdded:
		return c.OrphanCheck != ""
	default:
		return false
	}
}

func manualReviewBlock(c diff.Change, stmt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- [MANUAL REVIEW] %s (risk=%s)\n", c.Detail, c.Risk)
	for _, a := range c.Affected {
		fmt.Fprintf(&b, "--   affects %s\n", a)
	}
	for _, line := range strings.Split(stmt, "\n") {
		b.WriteString("-- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func execTemplate(provider catalog.Provider, name string, data ddlData) (string, error) {
	prefix := "pg"
	if provider == catalog.ProviderSqlServer {
		prefix = "mssql"
	}
	return execTemplateName(prefix+"_"+name, data)
}

func execTemplateName(name string, data ddlData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeHeader(buf *bytes.Buffer, provider catalog.Provider, cs diff.ChangeSet) {
	fmt.Fprintf(buf, "-- Generated migration script (%s)\n", provider)
	fmt.Fprintf(buf, "-- %d change(s), overall risk: %s\n\n", len(cs.Changes), cs.Summary.OverallRisk)
	if provider == catalog.ProviderSqlServer {
		buf.WriteString("SET XACT_ABORT ON;\nBEGIN TRANSACTION;\n\n")
		return
	}
	buf.WriteString("BEGIN;\n\n")
}

func writeFooter(buf *bytes.Buffer, provider catalog.Provider) {
	buf.WriteString("COMMIT;\n")
}

func writeRollback(buf *bytes.Buffer, provider catalog.Provider, cs diff.ChangeSet) {
	buf.WriteString("\n-- Rollback script (manual review required; apply in reverse order)\n")
	if provider == catalog.ProviderSqlServer {
		buf.WriteString("-- SET XACT_ABORT ON;\n-- BEGIN TRANSACTION;\n")
	} else {
		buf.WriteString("-- BEGIN;\n")
	}
	for i := len(cs.Changes) - 1; i >= 0; i-- {
		c := cs.Changes[i]
		object := c.Table.String()
		if c.Object != (catalog.ObjectRef{}) {
			object = c.Object.String()
		}
		fmt.Fprintf(buf, "-- would reverse: %s %s (%s)\n", c.Kind, object, c.Detail)
	}
	buf.WriteString("-- COMMIT;\n")
}
