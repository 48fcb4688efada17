package main

import (
	"context"
	"fmt"

	"github.com/dbforensic/dbforensic"
	"github.com/dbforensic/dbforensic/issues"
)

// IndexesCmd dumps index-related findings: missing FK index, unused index,
// duplicate index.
type IndexesCmd struct{}

var indexCategories = map[issues.Category]bool{
	issues.CategoryMissingFKIndex: true,
	issues.CategoryUnusedIndex:    true,
	issues.CategoryDuplicateIndex: true,
}

func (cmd *IndexesCmd) Run(appCtx *Context) error {
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
	printIssueList(filterBySeverityAndCategory(rep.Issues, indexCategories))

	return nil
}
