package relate

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

func findEdge(edges []depgraph.Edge, kind depgraph.EdgeKind, sourceName, targetName string) (depgraph.Edge, bool) {
	for _, e := range edges {
		if e.Kind == kind && e.Source.FQN.Name == sourceName && e.Target.FQN.Name == targetName {
			return e, true
		}
	}
	return depgraph.Edge{}, false
}

// Scenario C: dbo.Attendance.StudentId with no FK, dbo.Students PK StudentId
// INT. Expected: one NamingImplied edge Attendance -> Students, confidence 95.
func TestScenarioCNamingHeuristic(t *testing.T) {
	students := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "Students"),
		Columns:    []catalog.Column{intCol("StudentId")},
		PrimaryKey: []string{"StudentId"},
	}
	attendance := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "Attendance"),
		Columns:    []catalog.Column{intCol("AttendanceId"), intCol("StudentId")},
		PrimaryKey: []string{"AttendanceId"},
	}
	cat := buildCatalog(t, []catalog.Table{students, attendance}, nil, nil)

	edges := Infer(cat)
	e, ok := findEdge(edges, depgraph.EdgeNamingImplied, "Attendance", "Students")
	assert.True(t, ok)
	assert.Equal(t, uint8(95), e.Confidence)

	naming := 0
	for _, e := range edges {
		if e.Kind == depgraph.EdgeNamingImplied {
			naming++
		}
	}
	assert.Equal(t, 1, naming)
}

func TestExplicitForeignKeySuppressesNamingHeuristic(t *testing.T) {
	students := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "Students"),
		Columns:    []catalog.Column{intCol("StudentId")},
		PrimaryKey: []string{"StudentId"},
	}
	attendance := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "Attendance"),
		Columns:    []catalog.Column{intCol("AttendanceId"), intCol("StudentId")},
		PrimaryKey: []string{"AttendanceId"},
		ForeignKeys: []catalog.ForeignKey{
			{Name: "FK_Attendance_Students", LocalColumns: []string{"StudentId"}, ReferencedTable: catalog.NewFQN("dbo", "Students"), ReferencedColumns: []string{"StudentId"}},
		},
	}
	cat := buildCatalog(t, []catalog.Table{students, attendance}, nil, nil)

	edges := Infer(cat)
	_, hasNaming := findEdge(edges, depgraph.EdgeNamingImplied, "Attendance", "Students")
	assert.False(t, hasNaming)

	fk, hasFK := findEdge(edges, depgraph.EdgeForeignKey, "Attendance", "Students")
	assert.True(t, hasFK)
	assert.Equal(t, uint8(100), fk.Confidence)
}

func TestPluralTableNameIsWeakerMatch(t *testing.T) {
	teachers := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "Teachers"),
		Columns:    []catalog.Column{intCol("TeacherId")},
		PrimaryKey: []string{"TeacherId"},
	}
	classes := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "Classes"),
		Columns:    []catalog.Column{intCol("ClassId"), intCol("TeacherId")},
		PrimaryKey: []string{"ClassId"},
	}
	cat := buildCatalog(t, []catalog.Table{teachers, classes}, nil, nil)

	edges := Infer(cat)
	e, ok := findEdge(edges, depgraph.EdgeNamingImplied, "Classes", "Teachers")
	assert.True(t, ok)
	assert.Equal(t, uint8(60), e.Confidence)
}

func TestAmbiguousNamingCandidatesProduceNoEdge(t *testing.T) {
	ownerA := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "Owner"),
		Columns:    []catalog.Column{intCol("OwnerId")},
		PrimaryKey: []string{"OwnerId"},
	}
	ownerB := catalog.Table{
		FQN:        catalog.NewFQN("archive", "Owner"),
		Columns:    []catalog.Column{intCol("OwnerId")},
		PrimaryKey: []string{"OwnerId"},
	}
	pets := catalog.Table{
		FQN:        catalog.NewFQN("dbo", "Pets"),
		Columns:    []catalog.Column{intCol("PetId"), intCol("OwnerId")},
		PrimaryKey: []string{"PetId"},
	}
	cat := buildCatalog(t, []catalog.Table{ownerA, ownerB, pets}, nil, nil)

	edges := Infer(cat)
	_, ok := findEdge(edges, depgraph.EdgeNamingImplied, "Pets", "Owner")
	assert.False(t, ok)
}

func TestJoinEdgeIsSymmetricAndAnnotated(t *testing.T) {
	students := catalog.Table{FQN: catalog.NewFQN("dbo", "Students"), Columns: []catalog.Column{intCol("StudentId")}, PrimaryKey: []string{"StudentId"}}
	enrollments := catalog.Table{FQN: catalog.NewFQN("dbo", "Enrollments"), Columns: []catalog.Column{intCol("EnrollmentId")}, PrimaryKey: []string{"EnrollmentId"}}
	proc := catalog.Routine{
		FQN:  catalog.NewFQN("dbo", "GetRoster"),
		Kind: catalog.RoutineProcedure,
		Joins: [][2]catalog.FQN{
			{catalog.NewFQN("dbo", "Enrollments"), catalog.NewFQN("dbo", "Students")},
		},
	}
	cat := buildCatalog(t, []catalog.Table{students, enrollments}, []catalog.Routine{proc}, nil)

	edges := Infer(cat)
	forward, ok1 := findEdge(edges, depgraph.EdgeJoins, "Enrollments", "Students")
	backward, ok2 := findEdge(edges, depgraph.EdgeJoins, "Students", "Enrollments")
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, uint8(80), forward.Confidence)
	assert.Equal(t, "dbo.GetRoster", forward.Annotation)
	assert.Equal(t, uint8(80), backward.Confidence)
}

func TestCallEdgeBetweenRoutines(t *testing.T) {
	inner := catalog.Routine{FQN: catalog.NewFQN("dbo", "Inner"), Kind: catalog.RoutineProcedure}
	outer := catalog.Routine{FQN: catalog.NewFQN("dbo", "Outer"), Kind: catalog.RoutineProcedure, CalledRoutines: []catalog.FQN{catalog.NewFQN("dbo", "Inner")}}
	cat := buildCatalog(t, nil, []catalog.Routine{inner, outer}, nil)

	edges := Infer(cat)
	e, ok := findEdge(edges, depgraph.EdgeCalls, "Outer", "Inner")
	assert.True(t, ok)
	assert.Equal(t, uint8(90), e.Confidence)
}

func TestReferenceEdgeSkippedWhenAlreadyAJoin(t *testing.T) {
	students := catalog.Table{FQN: catalog.NewFQN("dbo", "Students"), Columns: []catalog.Column{intCol("StudentId")}, PrimaryKey: []string{"StudentId"}}
	enrollments := catalog.Table{FQN: catalog.NewFQN("dbo", "Enrollments"), Columns: []catalog.Column{intCol("EnrollmentId")}, PrimaryKey: []string{"EnrollmentId"}}
	proc := catalog.Routine{
		FQN:              catalog.NewFQN("dbo", "GetRoster"),
		Kind:             catalog.RoutineProcedure,
		ReferencedTables: []catalog.FQN{catalog.NewFQN("dbo", "Students"), catalog.NewFQN("dbo", "Enrollments")},
		Joins:            [][2]catalog.FQN{{catalog.NewFQN("dbo", "Enrollments"), catalog.NewFQN("dbo", "Students")}},
	}
	cat := buildCatalog(t, []catalog.Table{students, enrollments}, []catalog.Routine{proc}, nil)

	edges := Infer(cat)
	_, refOk := findEdge(edges, depgraph.EdgeReferences, "GetRoster", "Students")
	assert.False(t, refOk)
}

func TestViewReferenceEdge(t *testing.T) {
	students := catalog.Table{FQN: catalog.NewFQN("dbo", "Students"), Columns: []catalog.Column{intCol("StudentId")}, PrimaryKey: []string{"StudentId"}}
	v := catalog.View{FQN: catalog.NewFQN("dbo", "ActiveStudents"), References: []catalog.FQN{catalog.NewFQN("dbo", "Students")}}
	cat := buildCatalog(t, []catalog.Table{students}, nil, []catalog.View{v})

	edges := Infer(cat)
	e, ok := findEdge(edges, depgraph.EdgeReferences, "ActiveStudents", "Students")
	assert.True(t, ok)
	assert.Equal(t, uint8(70), e.Confidence)
}
