package main

import (
	"context"
	"fmt"

	"github.com/dbforensic/dbforensic"
	"github.com/dbforensic/dbforensic/issues"
)

// DeadcodeCmd dumps only dead-table and dead-routine issues, a narrower view
// than `scan` for cleanup-focused passes.
type DeadcodeCmd struct{}

var deadCodeCategories = map[issues.Category]bool{
	issues.CategoryDeadTable:   true,
	issues.CategoryDeadRoutine: true,
}

func (cmd *DeadcodeCmd) Run(appCtx *Context) error {
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
	printIssueList(filterBySeverityAndCategory(rep.Issues, deadCodeCategories))

	return nil
}
