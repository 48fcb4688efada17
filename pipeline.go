package dbforensic

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver, registered as "pgx"
	_ "github.com/microsoft/go-mssqldb" // sqlserver driver, registered as "sqlserver"

	"github.com/dbforensic/dbforensic/catalog"
	"github.com/dbforensic/dbforensic/connector"
	"github.com/dbforensic/dbforensic/depgraph"
	"github.com/dbforensic/dbforensic/issues"
	"github.com/dbforensic/dbforensic/relate"
	"github.com/dbforensic/dbforensic/report"
	"github.com/dbforensic/dbforensic/schemaimport"
)

// Open resolves a catalog.Catalog from cfg. A schema snapshot (a tbls JSON
// document) takes precedence over a live DSN: it needs no network access and
// works for both providers uniformly, which matters since this stack
// vendors no SQL Server driver usable outside of go-mssqldb's own dialer.
func Open(ctx context.Context, cfg *Config) (*catalog.Catalog, error) {
	switch {
	case cfg.Connection.SchemaSnapshot != "":
		return openSchemaSnapshot(ctx, cfg.Connection.SchemaSnapshot)
	case cfg.Connection.DSN != "":
		return openLive(ctx, cfg)
	default:
		return nil, ErrNoConnectionConfigured
	}
}

func openSchemaSnapshot(ctx context.Context, path string) (*catalog.Catalog, error) {
	importer := schemaimport.NewImporter(schemaimport.NewConfig(schemaimport.Options{SchemaJSONPath: path}))
	if err := importer.LoadSchemaJSON(ctx); err != nil {
		return nil, fmt.Errorf("dbforensic: load schema snapshot: %w", err)
	}
	return importer.Convert(ctx)
}

func openLive(ctx context.Context, cfg *Config) (*catalog.Catalog, error) {
	driver, err := driverNameForProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, cfg.Connection.DSN)
	if err != nil {
		return nil, fmt.Errorf("dbforensic: open %s connection: %w", cfg.Provider, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("dbforensic: ping %s connection: %w", cfg.Provider, err)
	}

	switch catalog.Provider(cfg.Provider) {
	case catalog.ProviderPostgres:
		return connector.Postgres(ctx, db, cfg.DefaultSchema)
	case catalog.ProviderSqlServer:
		return connector.SqlServer(ctx, db, cfg.DefaultSchema)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

func driverNameForProvider(provider string) (string, error) {
	switch catalog.Provider(provider) {
	case catalog.ProviderPostgres:
		return "pgx", nil
	case catalog.ProviderSqlServer:
		return "sqlserver", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
}

// OpenSnapshotFile loads a catalog previously persisted by
// connector.SaveSnapshot, the format the diff command's two positional
// source/target arguments expect.
func OpenSnapshotFile(path string) (*catalog.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dbforensic: open snapshot %q: %w", path, err)
	}
	defer f.Close()

	return connector.LoadSnapshot(f)
}

// BuildGraph infers relationship edges over cat and assembles the dependency
// graph every detector and reporter downstream consults.
func BuildGraph(cat *catalog.Catalog) *depgraph.Graph {
	builder := depgraph.NewBuilder()

	for _, t := range cat.Tables() {
		builder.AddNode(catalog.ObjectRef{Kind: catalog.KindTable, FQN: t.FQN})
	}
	for _, v := range cat.Views() {
		builder.AddNode(catalog.ObjectRef{Kind: catalog.KindView, FQN: v.FQN})
	}
	for _, r := range cat.Routines() {
		kind := catalog.KindProcedure
		if r.Kind == catalog.RoutineFunction {
			kind = catalog.KindFunction
		}
		builder.AddNode(catalog.ObjectRef{Kind: kind, FQN: r.FQN})
	}

	for _, e := range relate.Infer(cat) {
		builder.AddEdge(e)
	}

	return builder.Build()
}

// Analyze runs the full detector/scoring/report pipeline over an
// already-assembled catalog. now is injected so callers control the
// report's timestamp rather than this function reading the clock itself.
func Analyze(cat *catalog.Catalog, now time.Time) report.Report {
	graph := BuildGraph(cat)
	issueList := issues.Run(cat, graph)
	return report.Assemble(cat, graph, issueList, now)
}
