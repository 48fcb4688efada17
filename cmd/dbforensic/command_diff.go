package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dbforensic/dbforensic"
	"github.com/dbforensic/dbforensic/diff"
	"github.com/dbforensic/dbforensic/migrate"
	"github.com/dbforensic/dbforensic/report"
)

// DiffCmd compares two catalog snapshots (files previously written by
// `connector.SaveSnapshot`, e.g. via a scheduled schema export) and prints
// either a JSON diff report or a runnable SQL migration script.
type DiffCmd struct {
	Source    string `arg:"" help:"Path to the source snapshot YAML file"`
	Target    string `arg:"" help:"Path to the target snapshot YAML file"`
	Format    string `help:"Output format: json or sql" enum:"json,sql" default:"json"`
	FailUnder int    `help:"Exit with code 4 if the change set's overall risk is at least this many levels above none (1=low..4=critical)" default:"0"`
}

func (cmd *DiffCmd) Run(appCtx *Context) error {
	source, err := dbforensic.OpenSnapshotFile(cmd.Source)
	if err != nil {
		return fmt.Errorf("open source snapshot: %w", err)
	}
	target, err := dbforensic.OpenSnapshotFile(cmd.Target)
	if err != nil {
		return fmt.Errorf("open target snapshot: %w", err)
	}

	targetGraph := dbforensic.BuildGraph(target)
	changeSet := diff.Diff(source, target, targetGraph)

	switch cmd.Format {
	case "sql":
		sql, err := migrate.Emit(changeSet, target.Provider())
		if err != nil {
			return fmt.Errorf("emit migration sql: %w", err)
		}
		fmt.Print(sql)
	default:
		rep := report.AssembleDiff(source, target, changeSet, timeNow())
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("encode diff report: %w", err)
		}
	}

	if cmd.FailUnder > 0 && int(changeSet.Summary.OverallRisk) >= cmd.FailUnder {
		return fmt.Errorf("%w: overall risk %s", errThresholdExceeded, changeSet.Summary.OverallRisk)
	}

	return nil
}
