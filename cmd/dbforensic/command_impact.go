package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbforensic/dbforensic"
)

// ImpactCmd answers "what does changing --table affect" as a cache lookup
// against Report.ImpactCache, per §4.12.
type ImpactCmd struct {
	Table string `help:"Object name to look up, schema-qualified (e.g. public.orders)" required:""`
}

func (cmd *ImpactCmd) Run(appCtx *Context) error {
	ctx := context.Background()

	cfg, err := appCtx.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cat, err := appCtx.openCatalog(ctx, cfg)
	if err != nil {
		return err
	}

	rep := dbforensic.Analyze(cat, timeNow())
	for _, entry := range rep.ImpactCache {
		if entry.Object != cmd.Table && !strings.HasSuffix(entry.Object, ":"+cmd.Table) {
			continue
		}
		fmt.Printf("%s affects %d object(s):\n", entry.Object, entry.Count)
		for _, a := range entry.Affected {
			fmt.Printf("  %s\n", a)
		}
		return nil
	}

	return fmt.Errorf("%w: %s", dbforensic.ErrObjectNotFound, cmd.Table)
}
