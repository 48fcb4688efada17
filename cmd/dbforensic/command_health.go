package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/dbforensic/dbforensic"
)

// HealthCmd prints the health score and band, failing with exit code 4 when
// --fail-under is set and the score falls short.
type HealthCmd struct {
	FailUnder int `help:"Exit with code 4 if the health score falls below this value" default:"0"`
}

func (cmd *HealthCmd) Run(appCtx *Context) error {
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

	printer := color.Green
	if rep.Health.Score < 50 {
		printer = color.Red
	} else if rep.Health.Score < 80 {
		printer = color.Yellow
	}
	printer("Health score: %d (%s)", rep.Health.Score, rep.Health.Band)
	fmt.Printf("  penalty: %.1f  bonus: %.1f\n", rep.Health.Penalty, rep.Health.Bonus)

	failUnder := cmd.FailUnder
	if failUnder == 0 {
		failUnder = cfg.Health.FailUnder
	}
	if failUnder > 0 && rep.Health.Score < failUnder {
		return fmt.Errorf("%w: score %d < %d", errThresholdExceeded, rep.Health.Score, failUnder)
	}

	return nil
}
