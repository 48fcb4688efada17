package issues

import (
	"encoding/json"
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

func emptyGraph() *depgraph.Graph {
	return depgraph.NewBuilder().Build()
}

func hasCategory(issues []Issue, cat Category) bool {
	for _, i := range issues {
		if i.Category == cat {
			return true
		}
	}
	return false
}

func TestDetectMissingPKSkipsTemporaryTables(t *testing.T) {
	staging := catalog.Table{FQN: catalog.NewFQN("dbo", "Staging"), IsTemporary: true}
	real := catalog.Table{FQN: catalog.NewFQN("dbo", "Real")}
	cat := buildCatalog(t, []catalog.Table{staging, real}, nil, nil)

	out := DetectMissingPK(cat, emptyGraph())
	assert.Equal(t, 1, len(out))
	assert.Equal(t, SeverityHigh, out[0].Severity)
	assert.Equal(t, "Real", out[0].Affected[0].FQN.Name)
}

func TestDetectMissingFKIndex(t *testing.T) {
	students := catalog.Table{FQN: catalog.NewFQN("dbo", "Students"), Columns: []catalog.Column{intCol("StudentId")}, PrimaryKey: []string{"StudentId"}}
	enroll := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "Enrollments"),
		Columns:    []catalog.Column{intCol("EnrollmentId"), intCol("StudentId")},
		PrimaryKey: []string{"EnrollmentId"},
		ForeignKeys: []catalog.ForeignKey{
			{Name: "FK_Enroll_Student", LocalColumns: []string{"StudentId"}, ReferencedTable: catalog.NewFQN("dbo", "Students"), ReferencedColumns: []string{"StudentId"}},
		},
	}
	cat := buildCatalog(t, []catalog.Table{students, enroll}, nil, nil)

	out := DetectMissingFKIndex(cat, emptyGraph())
	assert.Equal(t, 1, len(out))
	assert.Equal(t, SeverityHigh, out[0].Severity)
}

func TestDetectMissingFKIndexSatisfiedByLeadingColumnIndex(t *testing.T) {
	students := catalog.Table{FQN: catalog.NewFQN("dbo", "Students"), Columns: []catalog.Column{intCol("StudentId")}, PrimaryKey: []string{"StudentId"}}
	enroll := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "Enrollments"),
		Columns:    []catalog.Column{intCol("EnrollmentId"), intCol("StudentId")},
		PrimaryKey: []string{"EnrollmentId"},
		ForeignKeys: []catalog.ForeignKey{
			{Name: "FK_Enroll_Student", LocalColumns: []string{"StudentId"}, ReferencedTable: catalog.NewFQN("dbo", "Students"), ReferencedColumns: []string{"StudentId"}},
		},
		Indexes: []catalog.Index{
			{Name: "IX_StudentId", Columns: []catalog.IndexColumn{{Name: "StudentId"}}},
		},
	}
	cat := buildCatalog(t, []catalog.Table{students, enroll}, nil, nil)

	out := DetectMissingFKIndex(cat, emptyGraph())
	assert.Equal(t, 0, len(out))
}

func u64(v uint64) *uint64 { return &v }

func TestDetectUnusedIndexSkipsUnknownStats(t *testing.T) {
	t1 := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "T"),
		Columns:    []catalog.Column{intCol("Id"), intCol("X")},
		PrimaryKey: []string{"Id"},
		Indexes: []catalog.Index{
			{Name: "IX_X_unknown", Columns: []catalog.IndexColumn{{Name: "X"}}},
		},
	}
	cat := buildCatalog(t, []catalog.Table{t1}, nil, nil)
	out := DetectUnusedIndex(cat, emptyGraph())
	assert.Equal(t, 0, len(out))
}

func TestDetectUnusedIndexFlagsZeroUsage(t *testing.T) {
	t1 := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "T"),
		Columns:    []catalog.Column{intCol("Id"), intCol("X")},
		PrimaryKey: []string{"Id"},
		Indexes: []catalog.Index{
			{Name: "IX_X", Columns: []catalog.IndexColumn{{Name: "X"}}, UsageSeeks: u64(0), UsageScans: u64(0)},
		},
	}
	cat := buildCatalog(t, []catalog.Table{t1}, nil, nil)
	out := DetectUnusedIndex(cat, emptyGraph())
	assert.Equal(t, 1, len(out))
	assert.Equal(t, SeverityMedium, out[0].Severity)
}

func TestDetectDuplicateIndex(t *testing.T) {
	t1 := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "T"),
		Columns:    []catalog.Column{intCol("Id"), intCol("X"), intCol("Y")},
		PrimaryKey: []string{"Id"},
		Indexes: []catalog.Index{
			{Name: "IX_X_1", Columns: []catalog.IndexColumn{{Name: "X"}, {Name: "Y"}}},
			{Name: "IX_X_2", Columns: []catalog.IndexColumn{{Name: "X"}}},
		},
	}
	cat := buildCatalog(t, []catalog.Table{t1}, nil, nil)
	out := DetectDuplicateIndex(cat, emptyGraph())
	assert.Equal(t, 1, len(out))
}

func TestDetectDeadTable(t *testing.T) {
	dead := catalog.Table{FQN: catalog.NewFQN("dbo", "Dead"), Columns: []catalog.Column{intCol("Id")}, PrimaryKey: []string{"Id"}}
	alive := catalog.Table{FQN: catalog.NewFQN("dbo", "Alive"), Columns: []catalog.Column{intCol("Id")}, PrimaryKey: []string{"Id"}}
	cat := buildCatalog(t, []catalog.Table{dead, alive}, nil, nil)

	b := depgraph.NewBuilder()
	b.AddEdge(depgraph.Edge{
		Source:     catalog.ObjectRef{Kind: catalog.KindProcedure, FQN: catalog.NewFQN("dbo", "P")},
		Target:     catalog.ObjectRef{Kind: catalog.KindTable, FQN: catalog.NewFQN("dbo", "Alive")},
		Kind:       depgraph.EdgeReferences,
		Origin:     depgraph.OriginBodyReference,
		Confidence: 70,
	})
	g := b.Build()

	out := DetectDeadTable(cat, g)
	assert.Equal(t, 1, len(out))
	assert.Equal(t, "Dead", out[0].Affected[0].FQN.Name)
}

func TestDetectDeadRoutine(t *testing.T) {
	uncalled := catalog.Routine{FQN: catalog.NewFQN("dbo", "Uncalled"), Kind: catalog.RoutineProcedure}
	called := catalog.Routine{FQN: catalog.NewFQN("dbo", "Called"), Kind: catalog.RoutineProcedure}
	cat := buildCatalog(t, nil, []catalog.Routine{uncalled, called}, nil)

	b := depgraph.NewBuilder()
	b.AddEdge(depgraph.Edge{
		Source:     catalog.ObjectRef{Kind: catalog.KindProcedure, FQN: catalog.NewFQN("dbo", "Outer")},
		Target:     catalog.ObjectRef{Kind: catalog.KindProcedure, FQN: catalog.NewFQN("dbo", "Called")},
		Kind:       depgraph.EdgeCalls,
		Origin:     depgraph.OriginBodyCall,
		Confidence: 90,
	})
	g := b.Build()

	out := DetectDeadRoutine(cat, g)
	assert.Equal(t, 1, len(out))
	assert.Equal(t, "Uncalled", out[0].Affected[0].FQN.Name)
}

func TestDetectOrphanColumn(t *testing.T) {
	t1 := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "Students"),
		Columns:    []catalog.Column{intCol("StudentId"), intCol("HomeroomId")},
		PrimaryKey: []string{"StudentId"},
	}
	r := catalog.Routine{
		FQN:  catalog.NewFQN("dbo", "GetStudent"),
		Kind: catalog.RoutineProcedure,
		Crud: map[string]catalog.CrudFlags{"dbo.Students": catalog.CrudRead},
		ColumnRefs: map[string]map[string]bool{
			"dbo.Students": {"studentid": true},
		},
	}
	cat := buildCatalog(t, []catalog.Table{t1}, []catalog.Routine{r}, nil)

	out := DetectOrphanColumn(cat, emptyGraph())
	assert.Equal(t, 1, len(out))
	assert.True(t, hasCategory(out, CategoryOrphanColumn))
}

func TestDetectEmptyTable(t *testing.T) {
	t1 := catalog.Table{FQN: catalog.NewFQN("dbo", "Empty"), RowCount: 0}
	t2 := catalog.Table{FQN: catalog.NewFQN("dbo", "Full"), RowCount: 10}
	cat := buildCatalog(t, []catalog.Table{t1, t2}, nil, nil)

	out := DetectEmptyTable(cat, emptyGraph())
	assert.Equal(t, 1, len(out))
	assert.Equal(t, "Empty", out[0].Affected[0].FQN.Name)
}

// Scenario D: A -> B -> C -> A should surface one CircularDependency issue.
func TestDetectCircularDependency(t *testing.T) {
	cat := buildCatalog(t, nil, nil, nil)
	b := depgraph.NewBuilder()
	a := catalog.ObjectRef{Kind: catalog.KindProcedure, FQN: catalog.NewFQN("dbo", "A")}
	bb := catalog.ObjectRef{Kind: catalog.KindProcedure, FQN: catalog.NewFQN("dbo", "B")}
	c := catalog.ObjectRef{Kind: catalog.KindProcedure, FQN: catalog.NewFQN("dbo", "C")}
	b.AddEdge(depgraph.Edge{Source: a, Target: bb, Kind: depgraph.EdgeCalls, Origin: depgraph.OriginBodyCall, Confidence: 90})
	b.AddEdge(depgraph.Edge{Source: bb, Target: c, Kind: depgraph.EdgeCalls, Origin: depgraph.OriginBodyCall, Confidence: 90})
	b.AddEdge(depgraph.Edge{Source: c, Target: a, Kind: depgraph.EdgeCalls, Origin: depgraph.OriginBodyCall, Confidence: 90})
	g := b.Build()

	out := DetectCircularDependency(cat, g)
	assert.Equal(t, 1, len(out))
	assert.Equal(t, SeverityHigh, out[0].Severity)
	assert.Equal(t, 3, len(out[0].Affected))
}

func TestDetectComplexRoutine(t *testing.T) {
	simple := catalog.Routine{FQN: catalog.NewFQN("dbo", "Simple"), Kind: catalog.RoutineProcedure, ComplexityScore: 10}
	complex := catalog.Routine{FQN: catalog.NewFQN("dbo", "Complex"), Kind: catalog.RoutineProcedure, ComplexityScore: 75}
	cat := buildCatalog(t, nil, []catalog.Routine{simple, complex}, nil)

	out := DetectComplexRoutine(cat, emptyGraph())
	assert.Equal(t, 1, len(out))
	assert.Equal(t, "Complex", out[0].Affected[0].FQN.Name)
}

func TestDetectAntiPatterns(t *testing.T) {
	clean := catalog.Routine{FQN: catalog.NewFQN("dbo", "Clean"), Kind: catalog.RoutineProcedure}
	dirty := catalog.Routine{FQN: catalog.NewFQN("dbo", "Dirty"), Kind: catalog.RoutineProcedure, AntiPatterns: []catalog.AntiPattern{catalog.AntiPatternNolock}}
	cat := buildCatalog(t, nil, []catalog.Routine{clean, dirty}, nil)

	out := DetectAntiPatterns(cat, emptyGraph())
	assert.Equal(t, 1, len(out))
	assert.Equal(t, SeverityLow, out[0].Severity)
}

func TestDetectInconsistentNaming(t *testing.T) {
	students := catalog.Table{FQN: catalog.NewFQN("dbo", "Students"), Columns: []catalog.Column{intCol("StudentId")}}
	grades := catalog.Table{FQN: catalog.NewFQN("dbo", "Grades"), Columns: []catalog.Column{intCol("student_id")}}
	cat := buildCatalog(t, []catalog.Table{students, grades}, nil, nil)

	out := DetectInconsistentNaming(cat, emptyGraph())
	assert.Equal(t, 2, len(out))
}

func TestDetectInconsistentNamingIsConsistentWhenUniform(t *testing.T) {
	students := catalog.Table{FQN: catalog.NewFQN("dbo", "Students"), Columns: []catalog.Column{intCol("StudentId")}}
	grades := catalog.Table{FQN: catalog.NewFQN("dbo", "Grades"), Columns: []catalog.Column{intCol("StudentId")}}
	cat := buildCatalog(t, []catalog.Table{students, grades}, nil, nil)

	out := DetectInconsistentNaming(cat, emptyGraph())
	assert.Equal(t, 0, len(out))
}

func TestSeverityCriticalRoundTripsThroughJSON(t *testing.T) {
	data, err := json.Marshal(SeverityCritical)
	assert.NoError(t, err)
	assert.Equal(t, `"critical"`, string(data))

	var out Severity
	assert.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, SeverityCritical, out)
	assert.True(t, SeverityCritical > SeverityHigh)
}

func TestRunOrdersBySeverityDescThenID(t *testing.T) {
	t1 := catalog.Table{FQN: catalog.NewFQN("dbo", "NoRows"), Columns: []catalog.Column{intCol("Id")}, PrimaryKey: []string{"Id"}}
	t2 := catalog.Table{FQN: catalog.NewFQN("dbo", "NoPK")}
	cat := buildCatalog(t, []catalog.Table{t1, t2}, nil, nil)

	out := Run(cat, emptyGraph())
	assert.True(t, len(out) >= 2)
	for i := 1; i < len(out); i++ {
		assert.True(t, out[i-1].Severity > out[i].Severity ||
			(out[i-1].Severity == out[i].Severity && out[i-1].ID <= out[i].ID))
	}
}
