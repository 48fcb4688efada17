package extractor

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/dbforensic/dbforensic/catalog"
)

type fakeResolver struct {
	known map[string]catalog.FQN // lowercase name -> fqn
}

func (r fakeResolver) ResolveFQN(schema, name string) (catalog.FQN, bool, bool) {
	key := name
	if schema != "" {
		key = schema + "." + name
	}
	for k, v := range r.known {
		if equalFold(k, key) || (schema == "" && equalFold(k, "dbo."+name)) {
			return v, true, false
		}
	}
	return catalog.FQN{}, false, false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 32
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 32
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func newFakeResolver() fakeResolver {
	return fakeResolver{known: map[string]catalog.FQN{
		"dbo.students":    catalog.NewFQN("dbo", "Students"),
		"dbo.enrollments": catalog.NewFQN("dbo", "Enrollments"),
		"dbo.users":       catalog.NewFQN("dbo", "Users"),
		"dbo.attendance":  catalog.NewFQN("dbo", "Attendance"),
	}}
}

// Scenario A from the dependency-graph contract: join extraction.
func TestScenarioAJoinExtraction(t *testing.T) {
	body := `SELECT s.Name FROM dbo.Students s INNER JOIN dbo.Enrollments e ON s.StudentId = e.StudentId WHERE s.Active = 1`
	res := Extract(body, "dbo", newFakeResolver())

	assert.Equal(t, 2, len(res.Referenced))
	_, hasStudents := res.Referenced["dbo.Students"]
	_, hasEnrollments := res.Referenced["dbo.Enrollments"]
	assert.True(t, hasStudents)
	assert.True(t, hasEnrollments)

	assert.Equal(t, 1, len(res.Joins))
	// canonical order: Enrollments < Students lexicographically
	assert.Equal(t, "dbo.Enrollments", res.Joins[0][0].String())
	assert.Equal(t, "dbo.Students", res.Joins[0][1].String())

	assert.True(t, res.Crud["dbo.Students"].Has(catalog.CrudRead))
	assert.True(t, res.Crud["dbo.Enrollments"].Has(catalog.CrudRead))
	assert.Equal(t, 0, len(res.AntiPatterns))
}

// Scenario B: anti-pattern detection.
func TestScenarioBAntiPatternDetection(t *testing.T) {
	body := `SELECT * FROM dbo.Users WITH (NOLOCK)`
	res := Extract(body, "dbo", newFakeResolver())

	assert.True(t, res.AntiPatterns[catalog.AntiPatternSelectStar])
	assert.True(t, res.AntiPatterns[catalog.AntiPatternNolock])
	assert.Equal(t, 1, len(res.Referenced))
	_, hasUsers := res.Referenced["dbo.Users"]
	assert.True(t, hasUsers)
}

func TestStringLiteralNeverContributesAReference(t *testing.T) {
	body := `SELECT * FROM dbo.Users WHERE Name = 'FROM dbo.Enrollments'`
	res := Extract(body, "dbo", newFakeResolver())

	_, hasEnrollments := res.Referenced["dbo.Enrollments"]
	assert.False(t, hasEnrollments)
	_, hasUsers := res.Referenced["dbo.Users"]
	assert.True(t, hasUsers)
}

func TestCommentContentNeverContributesAReference(t *testing.T) {
	body := "SELECT * FROM dbo.Users -- FROM dbo.Enrollments\n/* FROM dbo.Attendance */"
	res := Extract(body, "dbo", newFakeResolver())

	_, hasEnrollments := res.Referenced["dbo.Enrollments"]
	_, hasAttendance := res.Referenced["dbo.Attendance"]
	assert.False(t, hasEnrollments)
	assert.False(t, hasAttendance)
}

func TestExtractionIsIdempotent(t *testing.T) {
	body := `SELECT s.Name FROM dbo.Students s INNER JOIN dbo.Enrollments e ON s.StudentId = e.StudentId`
	r1 := Extract(body, "dbo", newFakeResolver())
	r2 := Extract(body, "dbo", newFakeResolver())
	assert.Equal(t, len(r1.Referenced), len(r2.Referenced))
	assert.Equal(t, len(r1.Joins), len(r2.Joins))
}

func TestInsertIntoRecordsCreate(t *testing.T) {
	body := `INSERT INTO dbo.Users (Name) VALUES ('x')`
	res := Extract(body, "dbo", newFakeResolver())
	assert.True(t, res.Crud["dbo.Users"].Has(catalog.CrudCreate))
}

func TestDeleteFromRecordsDelete(t *testing.T) {
	body := `DELETE FROM dbo.Users WHERE 1=1`
	res := Extract(body, "dbo", newFakeResolver())
	assert.True(t, res.Crud["dbo.Users"].Has(catalog.CrudDelete))
}

func TestTempTableExcludedFromReferences(t *testing.T) {
	body := `SELECT * INTO #staging FROM dbo.Users`
	res := Extract(body, "dbo", newFakeResolver())
	assert.Equal(t, 1, len(res.Referenced))
}

func TestCalledRoutineRecorded(t *testing.T) {
	body := `EXEC dbo.sp_DoThing @x = 1`
	resolver := fakeResolver{known: map[string]catalog.FQN{
		"dbo.sp_dothing": catalog.NewFQN("dbo", "sp_DoThing"),
	}}
	res := Extract(body, "dbo", resolver)
	_, called := res.CalledRoutines["dbo.sp_DoThing"]
	assert.True(t, called)
}

func TestAmbiguousReferenceProducesWarningNotReference(t *testing.T) {
	resolver := ambiguousResolver{}
	body := `SELECT * FROM Users`
	res := Extract(body, "dbo", resolver)
	assert.Equal(t, 0, len(res.Referenced))
	assert.Equal(t, 1, len(res.Warnings))
}

type ambiguousResolver struct{}

func (ambiguousResolver) ResolveFQN(schema, name string) (catalog.FQN, bool, bool) {
	return catalog.FQN{}, false, true
}
