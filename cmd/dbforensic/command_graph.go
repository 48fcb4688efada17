package main

import (
	"context"
	"fmt"

	"github.com/dbforensic/dbforensic"
)

// GraphCmd dumps the dependency graph as plain edges or, with --dot, as a
// Graphviz DOT document suitable for piping into `dot -Tpng`.
type GraphCmd struct {
	Dot bool `help:"Render as a Graphviz DOT document instead of plain edges"`
}

func (cmd *GraphCmd) Run(appCtx *Context) error {
	ctx := context.Background()

	cfg, err := appCtx.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cat, err := appCtx.openCatalog(ctx, cfg)
	if err != nil {
		return err
	}

	graph := dbforensic.BuildGraph(cat)

	if !cmd.Dot {
		for _, e := range graph.Edges() {
			fmt.Printf("%s -> %s [%s]\n", e.Source, e.Target, e.Kind)
		}
		return nil
	}

	fmt.Println("digraph dbforensic {")
	for _, n := range graph.Nodes() {
		fmt.Printf("  %q [shape=box];\n", n.String())
	}
	for _, e := range graph.Edges() {
		fmt.Printf("  %q -> %q [label=%q];\n", e.Source.String(), e.Target.String(), string(e.Kind))
	}
	fmt.Println("}")

	return nil
}
