package connector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbforensic/dbforensic/catalog"
)

// SqlServer extracts a catalog.Catalog from a live SQL Server connection.
// db is expected to be opened against a driver registered under the name
// the caller's config names (e.g. "sqlserver"); this function only issues
// read-only queries against sys.* catalog views, never against user data.
// Any database/sql failure is returned as a *ConnectionError; a rejected
// catalog is returned unwrapped so the caller can match it against the
// catalog package's own sentinel errors.
func SqlServer(ctx context.Context, db *sql.DB, defaultSchema string) (*catalog.Catalog, error) {
	cat, err := sqlServerExtract(ctx, db, defaultSchema)
	if err == nil || isCatalogIntegrityError(err) {
		return cat, err
	}
	return nil, &ConnectionError{Err: err}
}

func sqlServerExtract(ctx context.Context, db *sql.DB, defaultSchema string) (*catalog.Catalog, error) {
	tableRows, err := sqlServerTableList(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("connector: list sqlserver tables: %w", err)
	}

	tables := make([]catalog.Table, 0, len(tableRows))
	for _, tr := range tableRows {
		cols, err := sqlServerColumns(ctx, db, tr.fqn)
		if err != nil {
			return nil, fmt.Errorf("connector: columns for %s: %w", tr.fqn, err)
		}
		pk, err := sqlServerPrimaryKey(ctx, db, tr.fqn)
		if err != nil {
			return nil, fmt.Errorf("connector: primary key for %s: %w", tr.fqn, err)
		}
		fks, err := sqlServerForeignKeys(ctx, db, tr.fqn)
		if err != nil {
			return nil, fmt.Errorf("connector: foreign keys for %s: %w", tr.fqn, err)
		}
		uqs, err := sqlServerUniqueConstraints(ctx, db, tr.fqn)
		if err != nil {
			return nil, fmt.Errorf("connector: unique constraints for %s: %w", tr.fqn, err)
		}
		idxs, err := sqlServerIndexes(ctx, db, tr.fqn)
		if err != nil {
			return nil, fmt.Errorf("connector: indexes for %s: %w", tr.fqn, err)
		}

		tables = append(tables, catalog.Table{
			FQN:               tr.fqn,
			Columns:           cols,
			PrimaryKey:        pk,
			ForeignKeys:       fks,
			UniqueConstraints: uqs,
			Indexes:           idxs,
			RowCount:          tr.rowCount,
			IsTemporary:       false,
		})
	}

	views, err := sqlServerViews(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("connector: views: %w", err)
	}
	routines, err := sqlServerRoutines(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("connector: routines: %w", err)
	}

	return AssembleCatalog(catalog.ProviderSqlServer, defaultSchema, tables, views, routines)
}

type sqlServerTableRow struct {
	fqn      catalog.FQN
	rowCount uint64
}

func sqlServerTableList(ctx context.Context, db *sql.DB) ([]sqlServerTableRow, error) {
	const q = `
SELECT s.name, t.name, ISNULL(SUM(p.rows), 0) AS row_count
FROM sys.tables t
JOIN sys.schemas s ON s.schema_id = t.schema_id
LEFT JOIN sys.partitions p ON p.object_id = t.object_id AND p.index_id IN (0, 1)
GROUP BY s.name, t.name
ORDER BY s.name, t.name`

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sqlServerTableRow
	for rows.Next() {
		var schema, name string
		var rowCount uint64
		if err := rows.Scan(&schema, &name, &rowCount); err != nil {
			return nil, err
		}
		out = append(out, sqlServerTableRow{fqn: catalog.NewFQN(schema, name), rowCount: rowCount})
	}
	return out, rows.Err()
}

const sqlServerColumnsQuery = `
SELECT c.name, c.column_id, ty.name, c.max_length, c.precision, c.scale,
       c.is_nullable, c.is_identity, c.is_computed, ISNULL(dc.definition, '')
FROM sys.columns c
JOIN sys.tables t ON t.object_id = c.object_id
JOIN sys.schemas s ON s.schema_id = t.schema_id
JOIN sys.types ty ON ty.user_type_id = c.user_type_id
LEFT JOIN sys.default_constraints dc ON dc.object_id = c.default_object_id
WHERE s.name = @p1 AND t.name = @p2
ORDER BY c.column_id`

func sqlServerColumns(ctx context.Context, db *sql.DB, fqn catalog.FQN) ([]catalog.Column, error) {
	rows, err := db.QueryContext(ctx, sqlServerColumnsQuery, fqn.Schema, fqn.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Column
	for rows.Next() {
		var name, typeName, defaultExpr string
		var ordinal, maxLength, precision, scale int
		var nullable, identity, computed bool
		if err := rows.Scan(&name, &ordinal, &typeName, &maxLength, &precision, &scale,
			&nullable, &identity, &computed, &defaultExpr); err != nil {
			return nil, err
		}
		out = append(out, catalog.Column{
			Name:        name,
			Ordinal:     ordinal,
			RawType:     typeName,
			Normalized:  NormalizeSqlServerType(typeName, maxLength, precision, scale),
			Nullable:    nullable,
			DefaultExpr: defaultExpr,
			IsIdentity:  identity,
			IsComputed:  computed,
		})
	}
	return out, rows.Err()
}

func sqlServerPrimaryKey(ctx context.Context, db *sql.DB, fqn catalog.FQN) ([]string, error) {
	const q = `
SELECT c.name
FROM sys.key_constraints kc
JOIN sys.tables t ON t.object_id = kc.parent_object_id
JOIN sys.schemas s ON s.schema_id = t.schema_id
JOIN sys.index_columns ic ON ic.object_id = kc.parent_object_id AND ic.index_id = kc.unique_index_id
JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
WHERE kc.type = 'PK' AND s.name = @p1 AND t.name = @p2
ORDER BY ic.key_ordinal`

	rows, err := db.QueryContext(ctx, q, fqn.Schema, fqn.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func sqlServerForeignKeys(ctx context.Context, db *sql.DB, fqn catalog.FQN) ([]catalog.ForeignKey, error) {
	const q = `
SELECT fk.name, rs.name, rt.name, pc.name, fc.name, fk.delete_referential_action, fk.update_referential_action
FROM sys.foreign_keys fk
JOIN sys.tables t ON t.object_id = fk.parent_object_id
JOIN sys.schemas s ON s.schema_id = t.schema_id
JOIN sys.tables rt ON rt.object_id = fk.referenced_object_id
JOIN sys.schemas rs ON rs.schema_id = rt.schema_id
JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
JOIN sys.columns pc ON pc.object_id = fkc.parent_object_id AND pc.column_id = fkc.parent_column_id
JOIN sys.columns fc ON fc.object_id = fkc.referenced_object_id AND fc.column_id = fkc.referenced_column_id
WHERE s.name = @p1 AND t.name = @p2
ORDER BY fk.name, fkc.constraint_column_id`

	rows, err := db.QueryContext(ctx, q, fqn.Schema, fqn.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := make(map[string]*catalog.ForeignKey)
	var order []string
	for rows.Next() {
		var name, refSchema, refTable, localCol, refCol string
		var deleteAction, updateAction int
		if err := rows.Scan(&name, &refSchema, &refTable, &localCol, &refCol, &deleteAction, &updateAction); err != nil {
			return nil, err
		}
		fk, ok := byName[name]
		if !ok {
			fk = &catalog.ForeignKey{
				Name:            name,
				ReferencedTable: catalog.NewFQN(refSchema, refTable),
				OnDeleteCascade: deleteAction == 1,
				OnUpdateCascade: updateAction == 1,
			}
			byName[name] = fk
			order = append(order, name)
		}
		fk.LocalColumns = append(fk.LocalColumns, localCol)
		fk.ReferencedColumns = append(fk.ReferencedColumns, refCol)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]catalog.ForeignKey, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}

func sqlServerUniqueConstraints(ctx context.Context, db *sql.DB, fqn catalog.FQN) ([]catalog.UniqueConstraint, error) {
	const q = `
SELECT kc.name, c.name
FROM sys.key_constraints kc
JOIN sys.tables t ON t.object_id = kc.parent_object_id
JOIN sys.schemas s ON s.schema_id = t.schema_id
JOIN sys.index_columns ic ON ic.object_id = kc.parent_object_id AND ic.index_id = kc.unique_index_id
JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
WHERE kc.type = 'UQ' AND s.name = @p1 AND t.name = @p2
ORDER BY kc.name, ic.key_ordinal`

	rows, err := db.QueryContext(ctx, q, fqn.Schema, fqn.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := make(map[string]*catalog.UniqueConstraint)
	var order []string
	for rows.Next() {
		var name, col string
		if err := rows.Scan(&name, &col); err != nil {
			return nil, err
		}
		uq, ok := byName[name]
		if !ok {
			uq = &catalog.UniqueConstraint{Name: name}
			byName[name] = uq
			order = append(order, name)
		}
		uq.Columns = append(uq.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]catalog.UniqueConstraint, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}

const sqlServerIndexesQuery = `
SELECT i.name, i.is_unique, i.type_desc, c.name, ic.is_descending_key, ic.is_included_column,
       us.last_user_seek, us.last_user_scan, us.user_seeks, us.user_scans, us.user_updates
FROM sys.indexes i
JOIN sys.tables t ON t.object_id = i.object_id
JOIN sys.schemas s ON s.schema_id = t.schema_id
JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
LEFT JOIN sys.dm_db_index_usage_stats us ON us.object_id = i.object_id AND us.index_id = i.index_id
WHERE i.is_primary_key = 0 AND s.name = @p1 AND t.name = @p2
ORDER BY i.name, ic.key_ordinal`

func sqlServerIndexes(ctx context.Context, db *sql.DB, fqn catalog.FQN) ([]catalog.Index, error) {
	rows, err := db.QueryContext(ctx, sqlServerIndexesQuery, fqn.Schema, fqn.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := make(map[string]*catalog.Index)
	var order []string
	for rows.Next() {
		var name, typeDesc, colName string
		var isUnique, descending, included bool
		var lastSeek, lastScan sql.NullTime
		var seeks, scans, updates sql.NullInt64
		if err := rows.Scan(&name, &isUnique, &typeDesc, &colName, &descending, &included,
			&lastSeek, &lastScan, &seeks, &scans, &updates); err != nil {
			return nil, err
		}
		idx, ok := byName[name]
		if !ok {
			idx = &catalog.Index{
				Name:        name,
				IsUnique:    isUnique,
				IsClustered: typeDesc == "CLUSTERED",
			}
			if seeks.Valid {
				v := uint64(seeks.Int64)
				idx.UsageSeeks = &v
			}
			if scans.Valid {
				v := uint64(scans.Int64)
				idx.UsageScans = &v
			}
			if updates.Valid {
				v := uint64(updates.Int64)
				idx.UsageUpdates = &v
			}
			if lastSeek.Valid && (idx.LastUsed == nil || lastSeek.Time.After(*idx.LastUsed)) {
				t := lastSeek.Time
				idx.LastUsed = &t
			}
			if lastScan.Valid && (idx.LastUsed == nil || lastScan.Time.After(*idx.LastUsed)) {
				t := lastScan.Time
				idx.LastUsed = &t
			}
			byName[name] = idx
			order = append(order, name)
		}
		if included {
			idx.IncludedColumns = append(idx.IncludedColumns, colName)
			continue
		}
		dir := catalog.Ascending
		if descending {
			dir = catalog.Descending
		}
		idx.Columns = append(idx.Columns, catalog.IndexColumn{Name: colName, Direction: dir})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]catalog.Index, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}

func sqlServerViews(ctx context.Context, db *sql.DB) ([]RawView, error) {
	const q = `
SELECT s.name, v.name, ISNULL(m.definition, '')
FROM sys.views v
JOIN sys.schemas s ON s.schema_id = v.schema_id
LEFT JOIN sys.sql_modules m ON m.object_id = v.object_id
ORDER BY s.name, v.name`

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RawView
	for rows.Next() {
		var schema, name, body string
		if err := rows.Scan(&schema, &name, &body); err != nil {
			return nil, err
		}
		out = append(out, RawView{FQN: catalog.NewFQN(schema, name), Body: body})
	}
	return out, rows.Err()
}

func sqlServerRoutines(ctx context.Context, db *sql.DB) ([]RawRoutine, error) {
	const q = `
SELECT s.name, o.name, o.type, ISNULL(m.definition, '')
FROM sys.objects o
JOIN sys.schemas s ON s.schema_id = o.schema_id
LEFT JOIN sys.sql_modules m ON m.object_id = o.object_id
WHERE o.type IN ('P', 'FN', 'IF', 'TF')
ORDER BY s.name, o.name`

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RawRoutine
	for rows.Next() {
		var schema, name, objType, body string
		if err := rows.Scan(&schema, &name, &objType, &body); err != nil {
			return nil, err
		}
		kind := catalog.RoutineProcedure
		if objType != "P" {
			kind = catalog.RoutineFunction
		}
		params, err := sqlServerParameters(ctx, db, catalog.NewFQN(schema, name))
		if err != nil {
			return nil, err
		}
		out = append(out, RawRoutine{
			FQN:        catalog.NewFQN(schema, name),
			Kind:       kind,
			Body:       body,
			Parameters: params,
		})
	}
	return out, rows.Err()
}

func sqlServerParameters(ctx context.Context, db *sql.DB, fqn catalog.FQN) ([]catalog.Parameter, error) {
	const q = `
SELECT p.name, ty.name, p.is_output
FROM sys.parameters p
JOIN sys.objects o ON o.object_id = p.object_id
JOIN sys.schemas s ON s.schema_id = o.schema_id
JOIN sys.types ty ON ty.user_type_id = p.user_type_id
WHERE s.name = @p1 AND o.name = @p2
ORDER BY p.parameter_id`

	rows, err := db.QueryContext(ctx, q, fqn.Schema, fqn.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Parameter
	for rows.Next() {
		var name, typeName string
		var isOutput bool
		if err := rows.Scan(&name, &typeName, &isOutput); err != nil {
			return nil, err
		}
		out = append(out, catalog.Parameter{Name: name, RawType: typeName, IsOutput: isOutput})
	}
	return out, rows.Err()
}
