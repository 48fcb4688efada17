package health

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/dbforensic/dbforensic/catalog"
	"github.com/dbforensic/dbforensic/issues"
)

func emptyCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.NewBuilder(catalog.ProviderSqlServer, "dbo").Build()
	assert.NoError(t, err)
	return cat
}

func refOf(name string) catalog.ObjectRef {
	return catalog.ObjectRef{Kind: catalog.KindTable, FQN: catalog.NewFQN("dbo", name)}
}

// Scenario F: 2 MissingPK, 5 MissingFKIndex, 1 CircularDependency SCC,
// 3 ComplexRoutine. Penalty = 2*5 + 5*2 + 1*10 + 3*2 = 36. Score = 64, Fair.
func TestScenarioFHealthComposition(t *testing.T) {
	var issueList []issues.Issue
	for i := 0; i < 2; i++ {
		issueList = append(issueList, issues.Issue{Category: issues.CategoryMissingPK, Severity: issues.SeverityHigh, Affected: []catalog.ObjectRef{refOf("T")}})
	}
	for i := 0; i < 5; i++ {
		issueList = append(issueList, issues.Issue{Category: issues.CategoryMissingFKIndex, Severity: issues.SeverityHigh, Affected: []catalog.ObjectRef{refOf("T")}})
	}
	issueList = append(issueList, issues.Issue{Category: issues.CategoryCircularDependency, Severity: issues.SeverityHigh, Affected: []catalog.ObjectRef{refOf("T")}})
	for i := 0; i < 3; i++ {
		issueList = append(issueList, issues.Issue{Category: issues.CategoryComplexRoutine, Severity: issues.SeverityMedium, Affected: []catalog.ObjectRef{refOf("T")}})
	}

	score := Compute(emptyCatalog(t), issueList)
	assert.Equal(t, 36.0, score.Penalty)
	assert.Equal(t, 64, score.Value)
	assert.Equal(t, BandFair, score.Band)
}

func TestScoreClampsAtZero(t *testing.T) {
	var issueList []issues.Issue
	for i := 0; i < 20; i++ {
		issueList = append(issueList, issues.Issue{Category: issues.CategoryCircularDependency})
	}
	score := Compute(emptyCatalog(t), issueList)
	assert.Equal(t, 0, score.Value)
	assert.Equal(t, BandCritical, score.Band)
}

func TestScoreIsHundredWithNoIssues(t *testing.T) {
	score := Compute(emptyCatalog(t), nil)
	assert.Equal(t, 100, score.Value)
	assert.Equal(t, BandExcellent, score.Band)
}

func TestAntiPatternPenaltyIsFractionalRoundedAtEnd(t *testing.T) {
	issueList := []issues.Issue{
		{Category: issues.CategoryAntiPatterns},
		{Category: issues.CategoryAntiPatterns},
		{Category: issues.CategoryAntiPatterns},
	}
	score := Compute(emptyCatalog(t), issueList)
	assert.Equal(t, 1.5, score.Penalty)
	assert.Equal(t, 99, score.Value)
}

func TestBandBoundaries(t *testing.T) {
	assert.Equal(t, BandCritical, bandFor(39))
	assert.Equal(t, BandPoor, bandFor(40))
	assert.Equal(t, BandPoor, bandFor(59))
	assert.Equal(t, BandFair, bandFor(60))
	assert.Equal(t, BandFair, bandFor(74))
	assert.Equal(t, BandGood, bandFor(75))
	assert.Equal(t, BandGood, bandFor(89))
	assert.Equal(t, BandExcellent, bandFor(90))
}

func TestFKCoverageBonus(t *testing.T) {
	owner := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "Owners"),
		Columns:    []catalog.Column{{Name: "OwnerId", Normalized: catalog.NormalizedType{Kind: catalog.KindInteger}}},
		PrimaryKey: []string{"OwnerId"},
	}
	pets := catalog.Table{
		FQN: catalog.NewFQN("dbo", "Pets"),
		Columns: []catalog.Column{
			{Name: "PetId", Normalized: catalog.NormalizedType{Kind: catalog.KindInteger}},
			{Name: "OwnerId", Normalized: catalog.NormalizedType{Kind: catalog.KindInteger}},
		},
		PrimaryKey: []string{"PetId"},
		ForeignKeys: []catalog.ForeignKey{
			{Name: "FK_Pets_Owners", LocalColumns: []string{"OwnerId"}, ReferencedTable: catalog.NewFQN("dbo", "Owners"), ReferencedColumns: []string{"OwnerId"}},
		},
	}
	b := catalog.NewBuilder(catalog.ProviderSqlServer, "dbo")
	assert.NoError(t, b.AddTable(owner))
	assert.NoError(t, b.AddTable(pets))
	cat, err := b.Build()
	assert.NoError(t, err)

	assert.Equal(t, 1.0, fkCoverage(cat))
	assert.Equal(t, 1.0, namingConsistency(cat))

	score := Compute(cat, nil)
	assert.Equal(t, 100, score.Value) // bonuses clamp, can't exceed 100
}
