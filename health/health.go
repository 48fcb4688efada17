// Package health implements the health scorer (§4.6): a pinned weighted
// penalty/bonus formula over a detector run, clamped to [0, 100] and banded
// into a human-readable label.
package health

import (
	"math"
	"strings"

	"github.com/dbforensic/dbforensic/catalog"
	"github.com/dbforensic/dbforensic/issues"
)

// Penalty weights, pinned exactly as specified.
const (
	penaltyMissingPK          = 5.0
	penaltyMissingFKIndex     = 2.0
	penaltyDeadRoutine        = 1.0
	penaltyCircularDependency = 10.0
	penaltyComplexRoutine     = 2.0
	penaltyDuplicateIndex     = 1.0
	penaltyAntiPatterns       = 0.5
	penaltyDeadTable          = 2.0

	bonusGoodFKCoverage     = 5.0
	bonusNamingConsistency  = 3.0
	goodFKCoverageThreshold = 0.8
	namingConsistencyThresh = 0.9
)

// Band labels the final score into one of five bands (§4.6).
type Band string

const (
	BandCritical  Band = "critical"
	BandPoor      Band = "poor"
	BandFair      Band = "fair"
	BandGood      Band = "good"
	BandExcellent Band = "excellent"
)

func bandFor(score int) Band {
	switch {
	case score < 40:
		return BandCritical
	case score < 60:
		return BandPoor
	case score < 75:
		return BandFair
	case score < 90:
		return BandGood
	default:
		return BandExcellent
	}
}

// Score is the computed health score plus its contributing breakdown, kept
// for report rendering and for testing the formula in isolation.
type Score struct {
	Value   int
	Band    Band
	Penalty float64
	Bonus   float64
}

// Compute runs the penalty/bonus formula over a completed issue list and the
// catalog it was derived from (needed for the FK-coverage and
// naming-consistency bonus ratios, which are not themselves issues).
func Compute(cat *catalog.Catalog, issueList []issues.Issue) Score {
	penalty := 0.0
	for _, is := range issueList {
		switch is.Category {
		case issues.CategoryMissingPK:
			penalty += penaltyMissingPK
		case issues.CategoryMissingFKIndex:
			penalty += penaltyMissingFKIndex
		case issues.CategoryDeadRoutine:
			penalty += penaltyDeadRoutine
		case issues.CategoryCircularDependency:
			penalty += penaltyCircularDependency
		case issues.CategoryComplexRoutine:
			penalty += penaltyComplexRoutine
		case issues.CategoryDuplicateIndex:
			penalty += penaltyDuplicateIndex
		case issues.CategoryAntiPatterns:
			penalty += penaltyAntiPatterns
		case issues.CategoryDeadTable:
			penalty += penaltyDeadTable
		}
	}
	penalty = math.Round(penalty*10) / 10 // AntiPatterns is fractional; round at end per §4.6

	bonus := 0.0
	if fkCoverage(cat) >= goodFKCoverageThreshold {
		bonus += bonusGoodFKCoverage
	}
	if namingConsistency(cat) >= namingConsistencyThresh {
		bonus += bonusNamingConsistency
	}

	raw := 100 + bonus - penalty
	clamped := math.Max(0, math.Min(100, raw))
	value := int(math.Round(clamped))

	return Score{Value: value, Band: bandFor(value), Penalty: penalty, Bonus: bonus}
}

// fkCoverage is fks_defined / expected_fks_from_naming: of every column that
// looks like an FK candidate (matches the <Stem>Id naming shape and has a
// plausible target table), the fraction that actually carries an explicit FK.
func fkCoverage(cat *catalog.Catalog) float64 {
	candidates, defined := 0, 0
	for _, t := range cat.Tables() {
		for _, c := range t.Columns {
			if !looksLikeIDColumn(c.Name) {
				continue
			}
			if isPrimaryKeyColumn(t, c.Name) {
				continue
			}
			candidates++
			if hasExplicitFK(t, c.Name) {
				defined++
			}
		}
	}
	if candidates == 0 {
		return 0 // no FK-shaped columns at all: no coverage to reward
	}
	return float64(defined) / float64(candidates)
}

// namingConsistency is the fraction of FK-candidate columns that follow the
// <Stem>Id pattern exactly (PascalCase, no underscore, Id suffix).
func namingConsistency(cat *catalog.Catalog) float64 {
	total, consistent := 0, 0
	for _, t := range cat.Tables() {
		for _, c := range t.Columns {
			if !looksLikeIDColumn(c.Name) {
				continue
			}
			total++
			if strings.HasSuffix(c.Name, "Id") && !strings.Contains(c.Name, "_") {
				consistent++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(consistent) / float64(total)
}

func looksLikeIDColumn(name string) bool {
	for _, suffix := range []string{"_id", "Id", "ID"} {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return true
		}
	}
	return false
}

func isPrimaryKeyColumn(t catalog.Table, column string) bool {
	for _, pk := range t.PrimaryKey {
		if strings.EqualFold(pk, column) {
			return true
		}
	}
	return false
}

func hasExplicitFK(t catalog.Table, column string) bool {
	for _, fk := range t.ForeignKeys {
		for _, c := range fk.LocalColumns {
			if strings.EqualFold(c, column) {
				return true
			}
		}
	}
	return false
}
