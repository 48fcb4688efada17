package migrate

import "text/template"

// tmpl holds every provider-specific DDL fragment the emitter assembles a
// script from. Change carries only what the diff engine classified (names,
// risk, a human Detail string) and never the full column/constraint
// definition a source catalog would have, so every "added" fragment below is
// a guarded skeleton marked for completion rather than runnable DDL: the
// emitter's job is to tell an operator exactly what changed and where to
// fill in the type/column list, not to invent one.
var tmpl = template.Must(template.New("migrate").Parse(`
{{define "pg_create_table"}}CREATE TABLE IF NOT EXISTS {{.Table}} (
    -- TODO: define columns for {{.Table}} ({{.Detail}})
);{{end}}

{{define "mssql_create_table"}}IF NOT EXISTS (SELECT 1 FROM sys.tables t JOIN sys.schemas s ON t.schema_id = s.schema_id WHERE s.name = '{{.Schema}}' AND t.name = '{{.Name}}')
BEGIN
    -- TODO: define columns for {{.Table}} ({{.Detail}})
    CREATE TABLE {{.Table}} (
        /* columns */
    );
END{{end}}

{{define "pg_drop_table"}}DROP TABLE IF EXISTS {{.Table}};{{end}}
{{define "mssql_drop_table"}}IF EXISTS (SELECT 1 FROM sys.tables t JOIN sys.schemas s ON t.schema_id = s.schema_id WHERE s.name = '{{.Schema}}' AND t.name = '{{.Name}}')
    DROP TABLE {{.Table}};{{end}}

{{define "pg_add_column"}}ALTER TABLE {{.Table}} ADD COLUMN IF NOT EXISTS {{.Column}} /* TODO: type */; -- {{.Detail}}{{end}}
{{define "mssql_add_column"}}IF NOT EXISTS (SELECT 1 FROM sys.columns WHERE object_id = OBJECT_ID('{{.Table}}') AND name = '{{.Column}}')
    ALTER TABLE {{.Table}} ADD {{.Column}} /* TODO: type */; -- {{.Detail}}{{end}}

{{define "pg_drop_column"}}ALTER TABLE {{.Table}} DROP COLUMN IF EXISTS {{.Column}};{{end}}
{{define "mssql_drop_column"}}IF EXISTS (SELECT 1 FROM sys.columns WHERE object_id = OBJECT_ID('{{.Table}}') AND name = '{{.Column}}')
    ALTER TABLE {{.Table}} DROP COLUMN {{.Column}};{{end}}

{{define "alter_column_type"}}ALTER TABLE {{.Table}} ALTER COLUMN {{.Column}} {{if eq .Provider "sqlserver"}}{{.NewType}}{{else}}TYPE {{.NewType}}{{end}}; -- {{.Detail}}{{end}}
{{define "alter_column_comment"}}-- TODO ({{.Table}}.{{.Column}}): {{.Detail}}{{end}}

{{define "pg_create_index"}}CREATE INDEX IF NOT EXISTS {{.Index}} ON {{.Table}} (/* TODO: columns */); -- {{.Detail}}{{end}}
{{define "mssql_create_index"}}IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE object_id = OBJECT_ID('{{.Table}}') AND name = '{{.Index}}')
    CREATE INDEX {{.Index}} ON {{.Table}} (/* TODO: columns */); -- {{.Detail}}{{end}}

{{define "pg_drop_index"}}DROP INDEX IF EXISTS {{.Index}};{{end}}
{{define "mssql_drop_index"}}IF EXISTS (SELECT 1 FROM sys.indexes WHERE object_id = OBJECT_ID('{{.Table}}') AND name = '{{.Index}}')
    DROP INDEX {{.Index}} ON {{.Table}};{{end}}

{{define "pg_add_unique"}}ALTER TABLE {{.Table}} ADD CONSTRAINT {{.Index}} UNIQUE (/* TODO: columns */); -- unique constraint, {{.Detail}}{{end}}
{{define "mssql_add_unique"}}IF NOT EXISTS (SELECT 1 FROM sys.key_constraints WHERE name = '{{.Index}}')
    ALTER TABLE {{.Table}} ADD CONSTRAINT {{.Index}} UNIQUE (/* TODO: columns */); -- {{.Detail}}{{end}}

{{define "pg_drop_unique"}}ALTER TABLE {{.Table}} DROP CONSTRAINT IF EXISTS {{.Index}};{{end}}
{{define "mssql_drop_unique"}}IF EXISTS (SELECT 1 FROM sys.key_constraints WHERE name = '{{.Index}}')
    ALTER TABLE {{.Table}} DROP CONSTRAINT {{.Index}};{{end}}

{{define "pg_add_fk"}}-- TODO: FOREIGN KEY (...) REFERENCES ...(...) -- {{.Detail}}
{{if .OrphanCheck}}-- orphan check before applying: {{.OrphanCheck}}
{{end}}DO $$ BEGIN
    IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '{{.FK}}') THEN
        -- ALTER TABLE {{.Table}} ADD CONSTRAINT {{.FK}} FOREIGN KEY (...) REFERENCES ...(...);
        NULL;
    END IF;
END $$;{{end}}

{{define "mssql_add_fk"}}-- TODO: FOREIGN KEY (...) REFERENCES ...(...) -- {{.Detail}}
{{if .OrphanCheck}}-- orphan check before applying: {{.OrphanCheck}}
{{end}}IF NOT EXISTS (SELECT 1 FROM sys.foreign_keys WHERE name = '{{.FK}}')
BEGIN
    -- ALTER TABLE {{.Table}} ADD CONSTRAINT {{.FK}} FOREIGN KEY (...) REFERENCES ...(...);
END{{end}}

{{define "pg_drop_fk"}}ALTER TABLE {{.Table}} DROP CONSTRAINT IF EXISTS {{.FK}};{{end}}
{{define "mssql_drop_fk"}}IF EXISTS (SELECT 1 FROM sys.foreign_keys WHERE name = '{{.FK}}')
    ALTER TABLE {{.Table}} DROP CONSTRAINT {{.FK}};{{end}}
`))
