package main

import (
	"context"
	"fmt"

	"github.com/dbforensic/dbforensic"
)

// RelationshipsCmd dumps every edge relate.Infer found, annotated with its
// origin and confidence so an operator can tell an explicit foreign key from
// a naming-heuristic guess.
type RelationshipsCmd struct{}

func (cmd *RelationshipsCmd) Run(appCtx *Context) error {
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
	for _, e := range graph.Edges() {
		fmt.Printf("%s -> %s [%s/%s, confidence=%d]\n", e.Source, e.Target, e.Kind, e.Origin, e.Confidence)
	}

	return nil
}
