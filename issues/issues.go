// Package issues implements the built-in issue detectors (§4.5): pure
// functions over a (Catalog, Graph) snapshot that surface structural and
// hygiene problems for the health scorer and reports to consume.
package issues

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dbforensic/dbforensic/catalog"
	"github.com/dbforensic/dbforensic/depgraph"
)

// Severity ranks an issue's urgency; higher is more severe.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// MarshalJSON renders Severity as its lowercase name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses Severity back from its lowercase name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "critical":
		*s = SeverityCritical
	case "high":
		*s = SeverityHigh
	case "medium":
		*s = SeverityMedium
	case "low":
		*s = SeverityLow
	default:
		return fmt.Errorf("issues: unknown severity %q", str)
	}
	return nil
}

// Category names the detector family an issue came from.
type Category string

const (
	CategoryMissingPK          Category = "missing_pk"
	CategoryMissingFKIndex     Category = "missing_fk_index"
	CategoryUnusedIndex        Category = "unused_index"
	CategoryDuplicateIndex     Category = "duplicate_index"
	CategoryDeadTable          Category = "dead_table"
	CategoryDeadRoutine        Category = "dead_routine"
	CategoryOrphanColumn       Category = "orphan_column"
	CategoryEmptyTable         Category = "empty_table"
	CategoryCircularDependency Category = "circular_dependency"
	CategoryComplexRoutine     Category = "complex_routine"
	CategoryAntiPatterns       Category = "anti_patterns"
	CategoryInconsistentNaming Category = "inconsistent_naming"
)

// Issue is one detector finding.
type Issue struct {
	ID          string               `json:"id"`
	Category    Category             `json:"category"`
	Severity    Severity             `json:"severity"`
	Message     string               `json:"message"`
	Affected    []catalog.ObjectRef  `json:"affected"`
	Remediation string               `json:"remediation,omitempty"`
}

// Detector is a pure (Catalog, Graph) -> []Issue function. Detectors never
// mutate their inputs and may run in any order.
type Detector func(cat *catalog.Catalog, graph *depgraph.Graph) []Issue

// All is the registered list of built-in detectors, in no particular order
// (output ordering is imposed by Run, not by registration order).
var All = []Detector{
	DetectMissingPK,
	DetectMissingFKIndex,
	DetectUnusedIndex,
	DetectDuplicateIndex,
	DetectDeadTable,
	DetectDeadRoutine,
	DetectOrphanColumn,
	DetectEmptyTable,
	DetectCircularDependency,
	DetectComplexRoutine,
	DetectAntiPatterns,
	DetectInconsistentNaming,
}

// Run executes every registered detector and returns the combined issue
// list ordered by (severity desc, id asc), per §5's ordering guarantee.
func Run(cat *catalog.Catalog, graph *depgraph.Graph) []Issue {
	var out []Issue
	for _, d := range All {
		out = append(out, d(cat, graph)...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// issueID derives a stable id from (detector_name, primary_affected_object).
func issueID(detector string, primary catalog.ObjectRef) string {
	sum := sha1.Sum([]byte(detector + "|" + primary.Key()))
	return detector + "-" + hex.EncodeToString(sum[:])[:10]
}

func tableRef(fqn catalog.FQN) catalog.ObjectRef {
	return catalog.ObjectRef{Kind: catalog.KindTable, FQN: fqn}
}

func routineRefOf(r catalog.Routine) catalog.ObjectRef {
	kind := catalog.KindProcedure
	if r.Kind == catalog.RoutineFunction {
		kind = catalog.KindFunction
	}
	return catalog.ObjectRef{Kind: kind, FQN: r.FQN}
}

// DetectMissingPK flags non-temporary tables without a primary key.
func DetectMissingPK(cat *catalog.Catalog, graph *depgraph.Graph) []Issue {
	var out []Issue
	for _, t := range cat.Tables() {
		if t.IsTemporary || len(t.PrimaryKey) > 0 {
			continue
		}
		ref := tableRef(t.FQN)
		out = append(out, Issue{
			ID:          issueID(string(CategoryMissingPK), ref),
			Category:    CategoryMissingPK,
			Severity:    SeverityHigh,
			Message:     fmt.Sprintf("table %s has no primary key", t.FQN),
			Affected:    []catalog.ObjectRef{ref},
			Remediation: fmt.Sprintf("add a primary key to %s", t.FQN),
		})
	}
	return out
}

// DetectMissingFKIndex flags FK columns with no leading-column index.
func DetectMissingFKIndex(cat *catalog.Catalog, graph *depgraph.Graph) []Issue {
	var out []Issue
	for _, t := range cat.Tables() {
		leading := make(map[string]bool)
		for _, idx := range t.Indexes {
			if col := idx.LeadingColumn(); col != "" {
				leading[strings.ToLower(col)] = true
			}
		}
		for _, fk := range t.ForeignKeys {
			if len(fk.LocalColumns) == 0 {
				continue
			}
			if leading[strings.ToLower(fk.LocalColumns[0])] {
				continue
			}
			ref := tableRef(t.FQN)
			out = append(out, Issue{
				ID:          issueID(string(CategoryMissingFKIndex), ref),
				Category:    CategoryMissingFKIndex,
				Severity:    SeverityHigh,
				Message:     fmt.Sprintf("foreign key %s.%s has no leading-column index", t.FQN, fk.Name),
				Affected:    []catalog.ObjectRef{ref},
				Remediation: fmt.Sprintf("create an index on %s(%s)", t.FQN, fk.LocalColumns[0]),
			})
		}
	}
	return out
}

// DetectUnusedIndex flags non-PK indexes with zero seeks/scans, when usage
// stats were supplied by the connector (nil means unknown, skip silently).
func DetectUnusedIndex(cat *catalog.Catalog, graph *depgraph.Graph) []Issue {
	var out []Issue
	for _, t := range cat.Tables() {
		for _, idx := range t.Indexes {
			if isPrimaryKeyIndex(t, idx) {
				continue
			}
			if idx.UsageSeeks == nil || idx.UsageScans == nil {
				continue
			}
			if *idx.UsageSeeks != 0 || *idx.UsageScans != 0 {
				continue
			}
			ref := tableRef(t.FQN)
			out = append(out, Issue{
				ID:          issueID(string(CategoryUnusedIndex), ref),
				Category:    CategoryUnusedIndex,
				Severity:    SeverityMedium,
				Message:     fmt.Sprintf("index %s on %s has zero seeks/scans in the sampling window", idx.Name, t.FQN),
				Affected:    []catalog.ObjectRef{ref},
				Remediation: fmt.Sprintf("consider dropping index %s", idx.Name),
			})
		}
	}
	return out
}

func isPrimaryKeyIndex(t catalog.Table, idx catalog.Index) bool {
	if len(t.PrimaryKey) == 0 || len(idx.Columns) != len(t.PrimaryKey) {
		return false
	}
	for i, pk := range t.PrimaryKey {
		if !strings.EqualFold(pk, idx.Columns[i].Name) {
			return false
		}
	}
	return true
}

// DetectDuplicateIndex flags indexes on the same table sharing a leading
// column prefix.
func DetectDuplicateIndex(cat *catalog.Catalog, graph *depgraph.Graph) []Issue {
	var out []Issue
	for _, t := range cat.Tables() {
		seen := make(map[string]string) // leading column -> first index name
		for _, idx := range t.Indexes {
			col := strings.ToLower(idx.LeadingColumn())
			if col == "" {
				continue
			}
			if first, ok := seen[col]; ok {
				ref := tableRef(t.FQN)
				out = append(out, Issue{
					ID:          issueID(string(CategoryDuplicateIndex), ref),
					Category:    CategoryDuplicateIndex,
					Severity:    SeverityMedium,
					Message:     fmt.Sprintf("indexes %s and %s on %s share leading column %s", first, idx.Name, t.FQN, idx.LeadingColumn()),
					Affected:    []catalog.ObjectRef{ref},
					Remediation: fmt.Sprintf("drop one of %s, %s", first, idx.Name),
				})
				continue
			}
			seen[col] = idx.Name
		}
	}
	return out
}

// DetectDeadTable flags tables with zero in-edges from routines/views and no
// outgoing FKs referencing them.
func DetectDeadTable(cat *catalog.Catalog, graph *depgraph.Graph) []Issue {
	var out []Issue
	for _, t := range cat.Tables() {
		ref := tableRef(t.FQN)
		hasIncoming := false
		for _, e := range graph.NeighborsIn(ref) {
			if e.Source.Kind == catalog.KindProcedure || e.Source.Kind == catalog.KindFunction || e.Source.Kind == catalog.KindView {
				hasIncoming = true
				break
			}
			if e.Kind == depgraph.EdgeForeignKey {
				hasIncoming = true
				break
			}
		}
		if hasIncoming {
			continue
		}
		out = append(out, Issue{
			ID:          issueID(string(CategoryDeadTable), ref),
			Category:    CategoryDeadTable,
			Severity:    SeverityMedium,
			Message:     fmt.Sprintf("table %s has no referencing routines, views or foreign keys", t.FQN),
			Affected:    []catalog.ObjectRef{ref},
			Remediation: fmt.Sprintf("confirm %s is still needed", t.FQN),
		})
	}
	return out
}

// DetectDeadRoutine flags routines with zero incoming Calls edges. References
// from view bodies are not considered.
func DetectDeadRoutine(cat *catalog.Catalog, graph *depgraph.Graph) []Issue {
	var out []Issue
	for _, r := range cat.Routines() {
		ref := routineRefOf(r)
		called := false
		for _, e := range graph.NeighborsIn(ref) {
			if e.Kind == depgraph.EdgeCalls {
				called = true
				break
			}
		}
		if called {
			continue
		}
		out = append(out, Issue{
			ID:          issueID(string(CategoryDeadRoutine), ref),
			Category:    CategoryDeadRoutine,
			Severity:    SeverityMedium,
			Message:     fmt.Sprintf("routine %s has no callers", r.FQN),
			Affected:    []catalog.ObjectRef{ref},
			Remediation: fmt.Sprintf("confirm %s is still invoked externally", r.FQN),
		})
	}
	return out
}

// DetectOrphanColumn flags columns never referenced by any routine body.
func DetectOrphanColumn(cat *catalog.Catalog, graph *depgraph.Graph) []Issue {
	referenced := make(map[string]map[string]bool) // table FQN string -> column (lower) -> true
	touched := make(map[string]bool)                // table FQN string -> referenced by at least one routine
	for _, r := range cat.Routines() {
		for tableFQN := range r.Crud {
			touched[tableFQN] = true
		}
		for tableFQN, cols := range r.ColumnRefs {
			if referenced[tableFQN] == nil {
				referenced[tableFQN] = make(map[string]bool)
			}
			for col := range cols {
				referenced[tableFQN][col] = true
			}
		}
	}

	var out []Issue
	for _, t := range cat.Tables() {
		if !touched[t.FQN.String()] {
			// No routine references this table at all; OrphanColumn only
			// applies per-column when the table itself is referenced, so skip.
			continue
		}
		cols := referenced[t.FQN.String()]
		for _, c := range t.Columns {
			if cols[strings.ToLower(c.Name)] {
				continue
			}
			ref := tableRef(t.FQN)
			out = append(out, Issue{
				ID:          issueID(string(CategoryOrphanColumn)+":"+c.Name, ref),
				Category:    CategoryOrphanColumn,
				Severity:    SeverityLow,
				Message:     fmt.Sprintf("column %s.%s is never referenced by any routine body", t.FQN, c.Name),
				Affected:    []catalog.ObjectRef{ref},
				Remediation: fmt.Sprintf("confirm %s.%s is still needed", t.FQN, c.Name),
			})
		}
	}
	return out
}

// DetectEmptyTable flags tables with a row count of zero.
func DetectEmptyTable(cat *catalog.Catalog, graph *depgraph.Graph) []Issue {
	var out []Issue
	for _, t := range cat.Tables() {
		if t.RowCount != 0 {
			continue
		}
		ref := tableRef(t.FQN)
		out = append(out, Issue{
			ID:          issueID(string(CategoryEmptyTable), ref),
			Category:    CategoryEmptyTable,
			Severity:    SeverityLow,
			Message:     fmt.Sprintf("table %s has zero rows", t.FQN),
			Affected:    []catalog.ObjectRef{ref},
			Remediation: fmt.Sprintf("confirm %s is populated by the expected process", t.FQN),
		})
	}
	return out
}

// DetectCircularDependency raises one issue per SCC returned by graph.Cycles().
func DetectCircularDependency(cat *catalog.Catalog, graph *depgraph.Graph) []Issue {
	var out []Issue
	for _, c := range graph.Cycles() {
		names := make([]string, len(c.Nodes))
		for i, n := range c.Nodes {
			names[i] = n.String()
		}
		out = append(out, Issue{
			ID:          issueID(string(CategoryCircularDependency), c.Nodes[0]),
			Category:    CategoryCircularDependency,
			Severity:    SeverityHigh,
			Message:     fmt.Sprintf("circular dependency: %s", strings.Join(names, " -> ")),
			Affected:    c.Nodes,
			Remediation: "break the cycle by introducing an intermediate abstraction or removing one dependency",
		})
	}
	return out
}

// DetectComplexRoutine flags routines with a complexity score above 50.
func DetectComplexRoutine(cat *catalog.Catalog, graph *depgraph.Graph) []Issue {
	var out []Issue
	for _, r := range cat.Routines() {
		if r.ComplexityScore <= 50 {
			continue
		}
		ref := routineRefOf(r)
		out = append(out, Issue{
			ID:          issueID(string(CategoryComplexRoutine), ref),
			Category:    CategoryComplexRoutine,
			Severity:    SeverityMedium,
			Message:     fmt.Sprintf("routine %s has complexity score %.1f", r.FQN, r.ComplexityScore),
			Affected:    []catalog.ObjectRef{ref},
			Remediation: fmt.Sprintf("consider decomposing %s into smaller routines", r.FQN),
		})
	}
	return out
}

// DetectAntiPatterns flags routines carrying any anti-pattern flag.
func DetectAntiPatterns(cat *catalog.Catalog, graph *depgraph.Graph) []Issue {
	var out []Issue
	for _, r := range cat.Routines() {
		if len(r.AntiPatterns) == 0 {
			continue
		}
		ref := routineRefOf(r)
		names := make([]string, len(r.AntiPatterns))
		for i, p := range r.AntiPatterns {
			names[i] = string(p)
		}
		out = append(out, Issue{
			ID:          issueID(string(CategoryAntiPatterns), ref),
			Category:    CategoryAntiPatterns,
			Severity:    SeverityLow,
			Message:     fmt.Sprintf("routine %s uses anti-patterns: %s", r.FQN, strings.Join(names, ", ")),
			Affected:    []catalog.ObjectRef{ref},
			Remediation: fmt.Sprintf("review %s for SELECT *, NOLOCK, cursors, dynamic SQL or global temp tables", r.FQN),
		})
	}
	return out
}

var idColumnPattern = regexp.MustCompile(`(?i)^(.*?)(_?id)$`)

// DetectInconsistentNaming flags columns with the same semantic stem whose
// naming convention (PascalCase vs snake_case) disagrees within the
// database, e.g. StudentId vs student_id.
func DetectInconsistentNaming(cat *catalog.Catalog, graph *depgraph.Graph) []Issue {
	stems := make(map[string]map[string]bool) // lowercase stem -> set of raw forms
	for _, t := range cat.Tables() {
		for _, c := range t.Columns {
			m := idColumnPattern.FindStringSubmatch(c.Name)
			if m == nil || m[1] == "" {
				continue
			}
			stem := strings.ToLower(m[1])
			if stems[stem] == nil {
				stems[stem] = make(map[string]bool)
			}
			stems[stem][namingStyle(c.Name)] = true
		}
	}

	var inconsistentStems []string
	for stem, styles := range stems {
		if len(styles) > 1 {
			inconsistentStems = append(inconsistentStems, stem)
		}
	}
	sort.Strings(inconsistentStems)

	var out []Issue
	for _, t := range cat.Tables() {
		for _, c := range t.Columns {
			m := idColumnPattern.FindStringSubmatch(c.Name)
			if m == nil || m[1] == "" {
				continue
			}
			stem := strings.ToLower(m[1])
			if len(stems[stem]) <= 1 {
				continue
			}
			ref := tableRef(t.FQN)
			out = append(out, Issue{
				ID:          issueID(string(CategoryInconsistentNaming)+":"+c.Name, ref),
				Category:    CategoryInconsistentNaming,
				Severity:    SeverityLow,
				Message:     fmt.Sprintf("column %s.%s uses an inconsistent naming style for the %q role", t.FQN, c.Name, stem),
				Affected:    []catalog.ObjectRef{ref},
				Remediation: fmt.Sprintf("standardize all %q-role columns on a single naming style", stem),
			})
		}
	}
	return out
}

// namingStyle classifies a column name as "snake" (student_id) if it
// contains an underscore, and as "pascal" (StudentId) otherwise.
func namingStyle(name string) string {
	if strings.Contains(name, "_") {
		return "snake"
	}
	return "pascal"
}
