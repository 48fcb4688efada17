// Command dbforensic is the CLI entry point wired to the analysis pipeline
// in the root dbforensic package (§4.12). Every subcommand loads a
// dbforensic.Config, resolves a catalog through dbforensic.Open or
// dbforensic.OpenSnapshotFile, and renders a slice of the assembled report.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/dbforensic/dbforensic"
	"github.com/dbforensic/dbforensic/catalog"
	"github.com/dbforensic/dbforensic/connector"
)

// Context carries global flags into every subcommand's Run method, mirroring
// the teacher's own single shared-context kong pattern.
type Context struct {
	Config  string
	Verbose bool
	Quiet   bool
	logger  *slog.Logger
}

func (c *Context) logf(format string, args ...any) {
	if c.Quiet {
		return
	}
	fmt.Printf(format+"\n", args...)
}

func (c *Context) vlogf(format string, args ...any) {
	if c.Quiet || !c.Verbose {
		return
	}
	fmt.Printf(format+"\n", args...)
}

func (c *Context) loadConfig() (*dbforensic.Config, error) {
	return dbforensic.LoadConfig(c.Config)
}

func (c *Context) openCatalog(ctx context.Context, cfg *dbforensic.Config) (*catalog.Catalog, error) {
	return dbforensic.Open(ctx, cfg)
}

// CLI is the full command surface (§4.12): scan, schema, relationships,
// procedures, indexes, deadcode, graph, impact, health, diff.
var CLI struct {
	Config  string `help:"Configuration file path" default:"dbforensic.yaml"`
	Verbose bool   `help:"Enable verbose output" short:"v"`
	Quiet   bool   `help:"Suppress informational output" short:"q"`

	Scan          ScanCmd          `cmd:"" help:"Run the full analysis pipeline and print a summary"`
	Schema        SchemaCmd        `cmd:"" help:"Dump table, view and routine definitions"`
	Relationships RelationshipsCmd `cmd:"" help:"Dump inferred relationship edges"`
	Procedures    ProceduresCmd    `cmd:"" help:"Dump stored procedure and function stats"`
	Indexes       IndexesCmd       `cmd:"" help:"Dump index-related issues"`
	Deadcode      DeadcodeCmd      `cmd:"" help:"Dump dead table and routine issues only"`
	Graph         GraphCmd         `cmd:"" help:"Dump the dependency graph, optionally as DOT"`
	Impact        ImpactCmd        `cmd:"" help:"Look up the precomputed impact set for an object"`
	Health        HealthCmd        `cmd:"" help:"Print the health score and band"`
	Diff          DiffCmd          `cmd:"" help:"Compare two catalog snapshots"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("dbforensic"),
		kong.Description("Structural analysis and migration tooling for SQL Server and PostgreSQL schemas."),
	)

	appCtx := &Context{
		Config:  CLI.Config,
		Verbose: CLI.Verbose,
		Quiet:   CLI.Quiet,
		logger:  slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}

	err := kctx.Run(appCtx)
	exitCode := 0
	if err != nil {
		exitCode = exitCodeFor(err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	appCtx.logger.Debug("command finished",
		slog.String("command", kctx.Command()),
		slog.Int("exit_code", exitCode),
	)

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// errThresholdExceeded is returned by HealthCmd/ScanCmd when the health score
// falls under --fail-under, and by DiffCmd when the overall risk meets or
// exceeds --fail-under; both map to exit code 4.
var errThresholdExceeded = errors.New("threshold exceeded")

func exitCodeFor(err error) int {
	var connErr *connector.ConnectionError
	switch {
	case errors.Is(err, errThresholdExceeded):
		return 4
	case errors.Is(err, dbforensic.ErrNoConnectionConfigured), errors.As(err, &connErr):
		return 2
	case isCatalogIntegrityError(err):
		return 3
	default:
		return 1
	}
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
