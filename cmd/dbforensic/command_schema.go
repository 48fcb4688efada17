package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
)

// SchemaCmd dumps every table, view and routine definition known to the
// catalog, restricted to --table/--routine if given.
type SchemaCmd struct {
	Table   string `help:"Restrict output to a single table, by unqualified or schema-qualified name"`
	Routine string `help:"Restrict output to a single routine"`
}

func (cmd *SchemaCmd) Run(appCtx *Context) error {
	ctx := context.Background()

	cfg, err := appCtx.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cat, err := appCtx.openCatalog(ctx, cfg)
	if err != nil {
		return err
	}

	for _, t := range cat.Tables() {
		if cmd.Table != "" && t.FQN.Name != cmd.Table && t.FQN.String() != cmd.Table {
			continue
		}
		color.Blue("TABLE %s", t.FQN)
		for _, c := range t.Columns {
			nullable := "NOT NULL"
			if c.Nullable {
				nullable = "NULL"
			}
			fmt.Printf("  %-24s %-24s %s\n", c.Name, c.RawType, nullable)
		}
		if len(t.PrimaryKey) > 0 {
			fmt.Printf("  PRIMARY KEY (%v)\n", t.PrimaryKey)
		}
		for _, fk := range t.ForeignKeys {
			fmt.Printf("  FOREIGN KEY %s (%v) REFERENCES %s (%v)\n", fk.Name, fk.LocalColumns, fk.ReferencedTable, fk.ReferencedColumns)
		}
		for _, idx := range t.Indexes {
			fmt.Printf("  INDEX %s (leading: %s, unique: %t)\n", idx.Name, idx.LeadingColumn(), idx.IsUnique)
		}
	}

	if cmd.Table == "" {
		for _, v := range cat.Views() {
			color.Blue("VIEW %s", v.FQN)
			fmt.Printf("  references: %v\n", v.References)
		}
	}

	for _, r := range cat.Routines() {
		if cmd.Routine != "" && r.FQN.Name != cmd.Routine && r.FQN.String() != cmd.Routine {
			continue
		}
		if cmd.Table != "" {
			continue
		}
		color.Blue("%s %s", routineLabel(r.Kind), r.FQN)
		fmt.Printf("  complexity: %.1f (%s)\n", r.ComplexityScore, r.ComplexityCategory)
	}

	return nil
}
