package main

import (
	"context"
	"fmt"

	"github.com/dbforensic/dbforensic"
)

// ProceduresCmd dumps the per-routine complexity rollup report.Assemble
// already computes.
type ProceduresCmd struct {
	Complex bool `help:"Only show routines classified as complex"`
}

func (cmd *ProceduresCmd) Run(appCtx *Context) error {
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
	for _, r := range rep.RoutineStats {
		if cmd.Complex && r.ComplexityCategory != "complex" {
			continue
		}
		fmt.Printf("%-10s %-40s score=%-6.1f %-8s anti-patterns=%v\n", r.Kind, r.FQN, r.ComplexityScore, r.ComplexityCategory, r.AntiPatterns)
	}

	return nil
}
