package main

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/dbforensic/dbforensic/catalog"
	"github.com/dbforensic/dbforensic/issues"
)

func routineLabel(kind catalog.RoutineKind) string {
	if kind == catalog.RoutineFunction {
		return "FUNCTION"
	}
	return "PROCEDURE"
}

// printIssueCounts renders a one-line-per-severity rollup, colored by
// severity the way the teacher colors its own pull summary (green for good
// news, escalating colors for attention-worthy counts).
func printIssueCounts(issueList []issues.Issue) {
	var low, medium, high, critical int
	for _, iss := range issueList {
		switch iss.Severity {
		case issues.SeverityCritical:
			critical++
		case issues.SeverityHigh:
			high++
		case issues.SeverityMedium:
			medium++
		default:
			low++
		}
	}
	if critical > 0 {
		color.New(color.FgRed, color.Bold).Printf("  Critical: %d\n", critical)
	}
	if high > 0 {
		color.Red("  High: %d", high)
	}
	if medium > 0 {
		color.Yellow("  Medium: %d", medium)
	}
	if low > 0 {
		color.Cyan("  Low: %d", low)
	}
}

// printIssueList renders every issue with its severity color, affected
// object list and remediation hint.
func printIssueList(issueList []issues.Issue) {
	for _, iss := range issueList {
		severityColor := color.New(color.FgCyan)
		switch iss.Severity {
		case issues.SeverityCritical:
			severityColor = color.New(color.FgRed, color.Bold)
		case issues.SeverityHigh:
			severityColor = color.New(color.FgRed)
		case issues.SeverityMedium:
			severityColor = color.New(color.FgYellow)
		}
		severityColor.Printf("[%s] %s: %s\n", iss.Severity, iss.Category, iss.Message)
		for _, a := range iss.Affected {
			fmt.Printf("    affects %s\n", a)
		}
		if iss.Remediation != "" {
			fmt.Printf("    remediation: %s\n", iss.Remediation)
		}
	}
}

func filterBySeverityAndCategory(issueList []issues.Issue, categories map[issues.Category]bool) []issues.Issue {
	var out []issues.Issue
	for _, iss := range issueList {
		if categories[iss.Category] {
			out = append(out, iss)
		}
	}
	return out
}
