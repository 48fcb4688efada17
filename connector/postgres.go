package connector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbforensic/dbforensic/catalog"
)

// Postgres extracts a catalog.Catalog from a live PostgreSQL connection,
// restricted to the given schema. Only information_schema and pg_catalog
// views are queried; no user data is ever read. Any database/sql failure is
// returned as a *ConnectionError; a rejected catalog (duplicate FQN, dangling
// foreign key, ...) is returned unwrapped so the caller can match it against
// the catalog package's own sentinel errors.
func Postgres(ctx context.Context, db *sql.DB, defaultSchema string) (*catalog.Catalog, error) {
	cat, err := postgresExtract(ctx, db, defaultSchema)
	if err == nil || isCatalogIntegrityError(err) {
		return cat, err
	}
	return nil, &ConnectionError{Err: err}
}

func postgresExtract(ctx context.Context, db *sql.DB, defaultSchema string) (*catalog.Catalog, error) {
	tableNames, err := postgresTableNames(ctx, db, defaultSchema)
	if err != nil {
		return nil, fmt.Errorf("connector: list postgres tables: %w", err)
	}

	tables := make([]catalog.Table, 0, len(tableNames))
	for _, name := range tableNames {
		fqn := catalog.NewFQN(defaultSchema, name)
		cols, err := postgresColumns(ctx, db, defaultSchema, name)
		if err != nil {
			return nil, fmt.Errorf("connector: columns for %s: %w", fqn, err)
		}
		pk, err := postgresPrimaryKey(ctx, db, defaultSchema, name)
		if err != nil {
			return nil, fmt.Errorf("connector: primary key for %s: %w", fqn, err)
		}
		fks, err := postgresForeignKeys(ctx, db, defaultSchema, name)
		if err != nil {
			return nil, fmt.Errorf("connector: foreign keys for %s: %w", fqn, err)
		}
		uqs, err := postgresUniqueConstraints(ctx, db, defaultSchema, name)
		if err != nil {
			return nil, fmt.Errorf("connector: unique constraints for %s: %w", fqn, err)
		}
		idxs, err := postgresIndexes(ctx, db, defaultSchema, name)
		if err != nil {
			return nil, fmt.Errorf("connector: indexes for %s: %w", fqn, err)
		}
		rowCount, err := postgresRowEstimate(ctx, db, defaultSchema, name)
		if err != nil {
			return nil, fmt.Errorf("connector: row estimate for %s: %w", fqn, err)
		}

		tables = append(tables, catalog.Table{
			FQN:               fqn,
			Columns:           cols,
			PrimaryKey:        pk,
			ForeignKeys:       fks,
			UniqueConstraints: uqs,
			Indexes:           idxs,
			RowCount:          rowCount,
		})
	}

	views, err := postgresViews(ctx, db, defaultSchema)
	if err != nil {
		return nil, fmt.Errorf("connector: views: %w", err)
	}
	routines, err := postgresRoutines(ctx, db, defaultSchema)
	if err != nil {
		return nil, fmt.Errorf("connector: routines: %w", err)
	}

	return AssembleCatalog(catalog.ProviderPostgres, defaultSchema, tables, views, routines)
}

func postgresTableNames(ctx context.Context, db *sql.DB, schema string) ([]string, error) {
	const q = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`

	rows, err := db.QueryContext(ctx, q, schema)
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

func postgresColumns(ctx context.Context, db *sql.DB, schema, table string) ([]catalog.Column, error) {
	const q = `
SELECT column_name, ordinal_position, data_type, is_nullable,
       COALESCE(column_default, ''), COALESCE(column_default LIKE 'nextval(%', false)
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

	rows, err := db.QueryContext(ctx, q, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Column
	for rows.Next() {
		var name, rawType, isNullable, defaultExpr string
		var ordinal int
		var isIdentity bool
		if err := rows.Scan(&name, &ordinal, &rawType, &isNullable, &defaultExpr, &isIdentity); err != nil {
			return nil, err
		}
		out = append(out, catalog.Column{
			Name:        name,
			Ordinal:     ordinal,
			RawType:     rawType,
			Normalized:  NormalizePostgresType(rawType),
			Nullable:    isNullable == "YES",
			DefaultExpr: defaultExpr,
			IsIdentity:  isIdentity,
		})
	}
	return out, rows.Err()
}

func postgresPrimaryKey(ctx context.Context, db *sql.DB, schema, table string) ([]string, error) {
	const q = `
SELECT a.attname
FROM pg_constraint c
JOIN pg_class t ON t.oid = c.conrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN unnest(c.conkey) WITH ORDINALITY AS k(attnum, ord) ON true
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
WHERE c.contype = 'p' AND n.nspname = $1 AND t.relname = $2
ORDER BY k.ord`

	rows, err := db.QueryContext(ctx, q, schema, table)
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

const postgresForeignKeysQuery = `
SELECT c.conname, rn.nspname, rt.relname,
       a.attname, ra.attname,
       c.confdeltype, c.confupdtype
FROM pg_constraint c
JOIN pg_class t ON t.oid = c.conrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN pg_class rt ON rt.oid = c.confrelid
JOIN pg_namespace rn ON rn.oid = rt.relnamespace
JOIN unnest(c.conkey, c.confkey) WITH ORDINALITY AS k(attnum, confattnum, ord) ON true
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
JOIN pg_attribute ra ON ra.attrelid = rt.oid AND ra.attnum = k.confattnum
WHERE c.contype = 'f' AND n.nspname = $1 AND t.relname = $2
ORDER BY c.conname, k.ord`

func postgresForeignKeys(ctx context.Context, db *sql.DB, schema, table string) ([]catalog.ForeignKey, error) {
	rows, err := db.QueryContext(ctx, postgresForeignKeysQuery, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := make(map[string]*catalog.ForeignKey)
	var order []string
	for rows.Next() {
		var name, refSchema, refTable, localCol, refCol, deleteAction, updateAction string
		if err := rows.Scan(&name, &refSchema, &refTable, &localCol, &refCol, &deleteAction, &updateAction); err != nil {
			return nil, err
		}
		fk, ok := byName[name]
		if !ok {
			fk = &catalog.ForeignKey{
				Name:            name,
				ReferencedTable: catalog.NewFQN(refSchema, refTable),
				OnDeleteCascade: deleteAction == "c",
				OnUpdateCascade: updateAction == "c",
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

func postgresUniqueConstraints(ctx context.Context, db *sql.DB, schema, table string) ([]catalog.UniqueConstraint, error) {
	const q = `
SELECT tc.constraint_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type = 'UNIQUE' AND tc.table_schema = $1 AND tc.table_name = $2
ORDER BY tc.constraint_name, kcu.ordinal_position`

	rows, err := db.QueryContext(ctx, q, schema, table)
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

const postgresIndexesQuery = `
SELECT i.relname, a.attname, ix.indisunique, am.amname, ix.indoption[k.ord-1] & 1 = 1,
       s.idx_scan
FROM pg_class t
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN pg_index ix ON t.oid = ix.indrelid
JOIN pg_class i ON i.oid = ix.indexrelid
JOIN pg_am am ON i.relam = am.oid
JOIN unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
LEFT JOIN pg_stat_user_indexes s ON s.indexrelid = i.oid
WHERE NOT ix.indisprimary AND n.nspname = $1 AND t.relname = $2
ORDER BY i.relname, k.ord`

func postgresIndexes(ctx context.Context, db *sql.DB, schema, table string) ([]catalog.Index, error) {
	rows, err := db.QueryContext(ctx, postgresIndexesQuery, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := make(map[string]*catalog.Index)
	var order []string
	for rows.Next() {
		var name, colName, amName string
		var isUnique, descending bool
		var idxScan sql.NullInt64
		if err := rows.Scan(&name, &colName, &isUnique, &amName, &descending, &idxScan); err != nil {
			return nil, err
		}
		idx, ok := byName[name]
		if !ok {
			idx = &catalog.Index{Name: name, IsUnique: isUnique}
			if idxScan.Valid {
				v := uint64(idxScan.Int64)
				idx.UsageScans = &v
			}
			byName[name] = idx
			order = append(order, name)
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

func postgresRowEstimate(ctx context.Context, db *sql.DB, schema, table string) (uint64, error) {
	const q = `
SELECT GREATEST(c.reltuples, 0)
FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1 AND c.relname = $2`

	var estimate float64
	if err := db.QueryRowContext(ctx, q, schema, table).Scan(&estimate); err != nil {
		return 0, err
	}
	return uint64(estimate), nil
}

func postgresViews(ctx context.Context, db *sql.DB, schema string) ([]RawView, error) {
	const q = `
SELECT table_name, view_definition
FROM information_schema.views
WHERE table_schema = $1
ORDER BY table_name`

	rows, err := db.QueryContext(ctx, q, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RawView
	for rows.Next() {
		var name, body string
		if err := rows.Scan(&name, &body); err != nil {
			return nil, err
		}
		out = append(out, RawView{FQN: catalog.NewFQN(schema, name), Body: body})
	}
	return out, rows.Err()
}

func postgresRoutines(ctx context.Context, db *sql.DB, schema string) ([]RawRoutine, error) {
	const q = `
SELECT routine_name, routine_type, COALESCE(routine_definition, '')
FROM information_schema.routines
WHERE routine_schema = $1
ORDER BY routine_name`

	rows, err := db.QueryContext(ctx, q, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RawRoutine
	for rows.Next() {
		var name, routineType, body string
		if err := rows.Scan(&name, &routineType, &body); err != nil {
			return nil, err
		}
		kind := catalog.RoutineFunction
		if routineType == "PROCEDURE" {
			kind = catalog.RoutineProcedure
		}
		params, err := postgresParameters(ctx, db, schema, name)
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

func postgresParameters(ctx context.Context, db *sql.DB, schema, routine string) ([]catalog.Parameter, error) {
	const q = `
SELECT parameter_name, data_type, parameter_mode
FROM information_schema.parameters
WHERE specific_schema = $1 AND specific_name LIKE $2 || '\_%'
ORDER BY ordinal_position`

	rows, err := db.QueryContext(ctx, q, schema, routine)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Parameter
	for rows.Next() {
		var name sql.NullString
		var rawType, mode string
		if err := rows.Scan(&name, &rawType, &mode); err != nil {
			return nil, err
		}
		out = append(out, catalog.Parameter{
			Name:     name.String,
			RawType:  rawType,
			IsOutput: mode == "OUT" || mode == "INOUT",
		})
	}
	return out, rows.Err()
}
