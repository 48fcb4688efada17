package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/dbforensic/dbforensic"
)

// ScanCmd runs the full pipeline (catalog load, graph build, detectors,
// health score) and prints a one-screen summary, the way `pull` prints its
// completion summary in the teacher's own CLI.
type ScanCmd struct {
	FailUnder int `help:"Exit with code 4 if the health score falls below this value" default:"0"`
}

func (cmd *ScanCmd) Run(appCtx *Context) error {
	ctx := context.Background()

	cfg, err := appCtx.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	appCtx.vlogf("Opening catalog for provider %s", cfg.Provider)
	cat, err := appCtx.openCatalog(ctx, cfg)
	if err != nil {
		return err
	}

	rep := dbforensic.Analyze(cat, timeNow())

	color.Green("✓ Analysis complete")
	color.Green("  Provider: %s", rep.CatalogSummary.Provider)
	color.Green("  Tables: %d  Views: %d  Routines: %d", rep.CatalogSummary.TableCount, rep.CatalogSummary.ViewCount, rep.CatalogSummary.RoutineCount)
	color.Green("  Health: %d (%s)", rep.Health.Score, rep.Health.Band)
	color.Cyan("  Issues: %d", len(rep.Issues))

	printIssueCounts(rep.Issues)

	failUnder := cmd.FailUnder
	if failUnder == 0 {
		failUnder = cfg.Health.FailUnder
	}
	if failUnder > 0 && rep.Health.Score < failUnder {
		return fmt.Errorf("%w: score %d < %d", errThresholdExceeded, rep.Health.Score, failUnder)
	}

	return nil
}

// timeNow exists so every command stamps its report the same way, a single
// call site to change if report generation ever needs to be deterministic
// for a test harness.
func timeNow() time.Time {
	return time.Now()
}
