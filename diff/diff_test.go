package diff

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/dbforensic/dbforensic/catalog"
	"github.com/dbforensic/dbforensic/depgraph"
)

func intCol(name string) catalog.Column {
	return catalog.Column{Name: name, Normalized: catalog.NormalizedType{Kind: catalog.KindInteger}}
}

func buildCatalog(t *testing.T, tables []catalog.Table, routines []catalog.Routine, views []catalog.View) *catalog.Catalog {
	t.Helper()
	b := catalog.NewBuilder(catalog.ProviderSqlServer, "dbo")
	for _, tbl := range tables {
		assert.NoError(t, b.AddTable(tbl))
	}
	for _, r := range routines {
		assert.NoError(t, b.AddRoutine(r))
	}
	for _, v := range views {
		assert.NoError(t, b.AddView(v))
	}
	cat, err := b.Build()
	assert.NoError(t, err)
	return cat
}

func countChanges(changes []Change, kind ChangeKind) int {
	n := 0
	for _, c := range changes {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// property #6: diff(C, C) is empty.
func TestDiffOfCatalogWithItselfIsEmpty(t *testing.T) {
	students := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "Students"),
		Columns:    []catalog.Column{intCol("StudentId"), {Name: "Name", Normalized: catalog.NormalizedType{Kind: catalog.KindString}}},
		PrimaryKey: []string{"StudentId"},
	}
	cat := buildCatalog(t, []catalog.Table{students}, nil, nil)
	g := depgraph.NewBuilder().Build()

	cs := Diff(cat, cat, g)
	assert.Equal(t, 0, len(cs.Changes))
	assert.Equal(t, RiskNone, cs.Summary.OverallRisk)
}

func TestTableAddedAndRemoved(t *testing.T) {
	kept := catalog.Table{FQN: catalog.NewFQN("dbo", "Kept"), Columns: []catalog.Column{intCol("Id")}, PrimaryKey: []string{"Id"}}
	newTable := catalog.Table{FQN: catalog.NewFQN("dbo", "New"), Columns: []catalog.Column{intCol("Id")}, PrimaryKey: []string{"Id"}}
	oldTable := catalog.Table{FQN: catalog.NewFQN("dbo", "Old"), Columns: []catalog.Column{intCol("Id")}, PrimaryKey: []string{"Id"}}

	source := buildCatalog(t, []catalog.Table{kept, newTable}, nil, nil)
	target := buildCatalog(t, []catalog.Table{kept, oldTable}, nil, nil)
	g := depgraph.NewBuilder().Build()

	cs := Diff(source, target, g)
	assert.Equal(t, 1, countChanges(cs.Changes, TableAdded))
	assert.Equal(t, 1, countChanges(cs.Changes, TableRemoved))

	for _, c := range cs.Changes {
		if c.Kind == TableRemoved {
			assert.Equal(t, RiskCritical, c.Risk)
		}
		if c.Kind == TableAdded {
			assert.Equal(t, RiskNone, c.Risk)
		}
	}
	assert.Equal(t, RiskCritical, cs.Summary.OverallRisk)
}

// Scenario E: source lacks Students.LegacyCode; target has it, referenced by
// two routines and one view. Expect ColumnRemoved, risk Critical, 3 affected.
func TestScenarioEColumnRemovalRisk(t *testing.T) {
	sourceStudents := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "Students"),
		Columns:    []catalog.Column{intCol("StudentId")},
		PrimaryKey: []string{"StudentId"},
	}
	targetStudents := catalog.Table{
		FQN: catalog.NewFQN("dbo", "Students"),
		Columns: []catalog.Column{
			intCol("StudentId"),
			{Name: "LegacyCode", Normalized: catalog.NormalizedType{Kind: catalog.KindString}},
		},
		PrimaryKey: []string{"StudentId"},
	}

	search := catalog.Routine{
		FQN: catalog.NewFQN("dbo", "sp_SearchStudents"), Kind: catalog.RoutineProcedure,
		ColumnRefs: map[string]map[string]bool{"dbo.Students": {"legacycode": true}},
	}
	migrate := catalog.Routine{
		FQN: catalog.NewFQN("dbo", "sp_MigrateLegacyCodes"), Kind: catalog.RoutineProcedure,
		ColumnRefs: map[string]map[string]bool{"dbo.Students": {"legacycode": true}},
	}
	overview := catalog.View{
		FQN:        catalog.NewFQN("dbo", "vw_StudentOverview"),
		ColumnRefs: map[string]map[string]bool{"dbo.Students": {"legacycode": true}},
	}

	source := buildCatalog(t, []catalog.Table{sourceStudents}, nil, nil)
	target := buildCatalog(t, []catalog.Table{targetStudents}, []catalog.Routine{search, migrate}, []catalog.View{overview})
	g := depgraph.NewBuilder().Build()

	cs := Diff(source, target, g)
	var removal Change
	found := false
	for _, c := range cs.Changes {
		if c.Kind == ColumnRemoved && c.Column == "LegacyCode" {
			removal = c
			found = true
		}
	}
	assert.True(t, found)
	assert.Equal(t, RiskCritical, removal.Risk)
	assert.Equal(t, 3, len(removal.Affected))
}

func TestColumnAddedNotNullNoDefaultOnNonEmptyTableIsHighRisk(t *testing.T) {
	sourceTable := catalog.Table{
		FQN: catalog.NewFQN("dbo", "T"),
		Columns: []catalog.Column{
			intCol("Id"),
			{Name: "Required", Normalized: catalog.NormalizedType{Kind: catalog.KindInteger}, Nullable: false},
		},
		PrimaryKey: []string{"Id"},
	}
	targetTable := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "T"),
		Columns:    []catalog.Column{intCol("Id")},
		PrimaryKey: []string{"Id"},
		RowCount:   100,
	}
	source := buildCatalog(t, []catalog.Table{sourceTable}, nil, nil)
	target := buildCatalog(t, []catalog.Table{targetTable}, nil, nil)
	g := depgraph.NewBuilder().Build()

	cs := Diff(source, target, g)
	found := false
	for _, c := range cs.Changes {
		if c.Kind == ColumnAdded && c.Column == "Required" {
			assert.Equal(t, RiskHigh, c.Risk)
			found = true
		}
	}
	assert.True(t, found)
}

func TestColumnAddedNullableIsNoRisk(t *testing.T) {
	sourceTable := catalog.Table{
		FQN: catalog.NewFQN("dbo", "T"),
		Columns: []catalog.Column{
			intCol("Id"),
			{Name: "Optional", Normalized: catalog.NormalizedType{Kind: catalog.KindInteger}, Nullable: true},
		},
		PrimaryKey: []string{"Id"},
	}
	targetTable := catalog.Table{FQN: catalog.NewFQN("dbo", "T"), Columns: []catalog.Column{intCol("Id")}, PrimaryKey: []string{"Id"}, RowCount: 100}
	source := buildCatalog(t, []catalog.Table{sourceTable}, nil, nil)
	target := buildCatalog(t, []catalog.Table{targetTable}, nil, nil)
	g := depgraph.NewBuilder().Build()

	cs := Diff(source, target, g)
	for _, c := range cs.Changes {
		if c.Kind == ColumnAdded {
			assert.Equal(t, RiskNone, c.Risk)
		}
	}
}

func lenPtr(v int) *int { return &v }

func TestColumnWideningIsLowRisk(t *testing.T) {
	sourceTable := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "T"),
		Columns:    []catalog.Column{intCol("Id"), {Name: "Name", Normalized: catalog.NormalizedType{Kind: catalog.KindString, Length: lenPtr(100)}}},
		PrimaryKey: []string{"Id"},
	}
	targetTable := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "T"),
		Columns:    []catalog.Column{intCol("Id"), {Name: "Name", Normalized: catalog.NormalizedType{Kind: catalog.KindString, Length: lenPtr(50)}}},
		PrimaryKey: []string{"Id"},
	}
	source := buildCatalog(t, []catalog.Table{sourceTable}, nil, nil)
	target := buildCatalog(t, []catalog.Table{targetTable}, nil, nil)
	g := depgraph.NewBuilder().Build()

	cs := Diff(source, target, g)
	found := false
	for _, c := range cs.Changes {
		if c.Kind == ColumnModified && c.Field == FieldType {
			assert.Equal(t, Widening, c.TypeChange)
			assert.Equal(t, RiskLow, c.Risk)
			found = true
		}
	}
	assert.True(t, found)
}

func TestColumnKindChangeIsHighRisk(t *testing.T) {
	sourceTable := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "T"),
		Columns:    []catalog.Column{intCol("Id"), {Name: "X", Normalized: catalog.NormalizedType{Kind: catalog.KindString}}},
		PrimaryKey: []string{"Id"},
	}
	targetTable := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "T"),
		Columns:    []catalog.Column{intCol("Id"), {Name: "X", Normalized: catalog.NormalizedType{Kind: catalog.KindInteger}}},
		PrimaryKey: []string{"Id"},
	}
	source := buildCatalog(t, []catalog.Table{sourceTable}, nil, nil)
	target := buildCatalog(t, []catalog.Table{targetTable}, nil, nil)
	g := depgraph.NewBuilder().Build()

	cs := Diff(source, target, g)
	found := false
	for _, c := range cs.Changes {
		if c.Kind == ColumnModified && c.Field == FieldType {
			assert.Equal(t, KindChange, c.TypeChange)
			assert.Equal(t, RiskHigh, c.Risk)
			found = true
		}
	}
	assert.True(t, found)
}

func TestNullabilityChangeRisk(t *testing.T) {
	sourceTable := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "T"),
		Columns:    []catalog.Column{intCol("Id"), {Name: "X", Normalized: catalog.NormalizedType{Kind: catalog.KindInteger}, Nullable: false}},
		PrimaryKey: []string{"Id"},
	}
	targetTable := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "T"),
		Columns:    []catalog.Column{intCol("Id"), {Name: "X", Normalized: catalog.NormalizedType{Kind: catalog.KindInteger}, Nullable: true}},
		PrimaryKey: []string{"Id"},
	}
	source := buildCatalog(t, []catalog.Table{sourceTable}, nil, nil)
	target := buildCatalog(t, []catalog.Table{targetTable}, nil, nil)
	g := depgraph.NewBuilder().Build()

	cs := Diff(source, target, g)
	found := false
	for _, c := range cs.Changes {
		if c.Kind == ColumnModified && c.Field == FieldNullability {
			assert.Equal(t, RiskHigh, c.Risk) // NULL -> NOT NULL
			found = true
		}
	}
	assert.True(t, found)
}

func TestRoutineBodyChangedRiskDependsOnImpact(t *testing.T) {
	r := catalog.Routine{FQN: catalog.NewFQN("dbo", "P"), Kind: catalog.RoutineProcedure, Body: "select 1"}
	rChanged := catalog.Routine{FQN: catalog.NewFQN("dbo", "P"), Kind: catalog.RoutineProcedure, Body: "select 2"}

	source := buildCatalog(t, nil, []catalog.Routine{rChanged}, nil)
	target := buildCatalog(t, nil, []catalog.Routine{r}, nil)

	b := depgraph.NewBuilder()
	b.AddEdge(depgraph.Edge{
		Source:     catalog.ObjectRef{Kind: catalog.KindProcedure, FQN: catalog.NewFQN("dbo", "Caller")},
		Target:     catalog.ObjectRef{Kind: catalog.KindProcedure, FQN: catalog.NewFQN("dbo", "P")},
		Kind:       depgraph.EdgeCalls, Origin: depgraph.OriginBodyCall, Confidence: 90,
	})
	g := b.Build()

	cs := Diff(source, target, g)
	assert.Equal(t, 1, countChanges(cs.Changes, RoutineBodyChanged))
	for _, c := range cs.Changes {
		if c.Kind == RoutineBodyChanged {
			assert.Equal(t, RiskMedium, c.Risk)
		}
	}
}

func TestNormalizeBodyIgnoresCommentsAndWhitespace(t *testing.T) {
	a := "SELECT  *  -- comment\nFROM T"
	bBody := "select * from t /* block */"
	assert.Equal(t, normalizeBody(a), normalizeBody(bBody))
}

func TestIndexRemovedLowRiskWhenColumnAlsoRemoved(t *testing.T) {
	sourceTable := catalog.Table{FQN: catalog.NewFQN("dbo", "T"), Columns: []catalog.Column{intCol("Id")}, PrimaryKey: []string{"Id"}}
	targetTable := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "T"),
		Columns:    []catalog.Column{intCol("Id"), intCol("X")},
		PrimaryKey: []string{"Id"},
		Indexes:    []catalog.Index{{Name: "IX_X", Columns: []catalog.IndexColumn{{Name: "X"}}}},
	}
	source := buildCatalog(t, []catalog.Table{sourceTable}, nil, nil)
	target := buildCatalog(t, []catalog.Table{targetTable}, nil, nil)
	g := depgraph.NewBuilder().Build()

	cs := Diff(source, target, g)
	for _, c := range cs.Changes {
		if c.Kind == IndexRemoved {
			assert.Equal(t, RiskLow, c.Risk)
		}
	}
}
