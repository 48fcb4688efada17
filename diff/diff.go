// Package diff implements the structural two-way catalog comparison engine
// (§4.7): it compares a desired "source" snapshot against the current
// "target" snapshot, producing a typed, risk-annotated ChangeSet by
// consulting the target's dependency graph for impact-based risk.
package diff

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dbforensic/dbforensic/catalog"
	"github.com/dbforensic/dbforensic/depgraph"
)

// ChangeKind enumerates every change variant the engine can produce.
type ChangeKind string

const (
	TableAdded         ChangeKind = "table_added"
	TableRemoved       ChangeKind = "table_removed"
	ColumnAdded        ChangeKind = "column_added"
	ColumnRemoved      ChangeKind = "column_removed"
	ColumnModified     ChangeKind = "column_modified"
	IndexAdded         ChangeKind = "index_added"
	IndexRemoved       ChangeKind = "index_removed"
	ForeignKeyAdded    ChangeKind = "foreign_key_added"
	ForeignKeyRemoved  ChangeKind = "foreign_key_removed"
	UniqueAdded        ChangeKind = "unique_constraint_added"
	UniqueRemoved      ChangeKind = "unique_constraint_removed"
	RoutineAdded       ChangeKind = "routine_added"
	RoutineRemoved     ChangeKind = "routine_removed"
	RoutineBodyChanged ChangeKind = "routine_body_changed"
	ViewAdded          ChangeKind = "view_added"
	ViewRemoved        ChangeKind = "view_removed"
	ViewBodyChanged    ChangeKind = "view_body_changed"
)

// Risk ranks how dangerous applying a change is. Ordered for max-aggregation.
type Risk int

const (
	RiskNone Risk = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r Risk) String() string {
	switch r {
	case RiskCritical:
		return "critical"
	case RiskHigh:
		return "high"
	case RiskMedium:
		return "medium"
	case RiskLow:
		return "low"
	default:
		return "none"
	}
}

// MarshalJSON renders Risk as its lowercase name, per the report schema's
// "enum values in lowercase" rule.
func (r Risk) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON parses Risk back from its lowercase name.
func (r *Risk) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "none":
		*r = RiskNone
	case "low":
		*r = RiskLow
	case "medium":
		*r = RiskMedium
	case "high":
		*r = RiskHigh
	case "critical":
		*r = RiskCritical
	default:
		return fmt.Errorf("diff: unknown risk %q", s)
	}
	return nil
}

// ColumnField names which column attribute a ColumnModified change covers.
type ColumnField string

const (
	FieldType        ColumnField = "type"
	FieldNullability ColumnField = "nullability"
	FieldDefault     ColumnField = "default"
	FieldIdentity    ColumnField = "identity"
)

// TypeChangeClass sub-classifies a FieldType ColumnModified change.
type TypeChangeClass string

const (
	Widening  TypeChangeClass = "widening"
	Narrowing TypeChangeClass = "narrowing"
	KindChange TypeChangeClass = "kind_change"
)

// Change is a single detected difference between source and target.
type Change struct {
	Kind        ChangeKind
	Table       catalog.FQN // the owning table, zero value for routine/view-level changes
	Object      catalog.ObjectRef
	Column      string
	Field       ColumnField
	TypeChange  TypeChangeClass
	Risk        Risk
	Detail      string
	Affected    []catalog.ObjectRef // populated for impact-driven risk
	OrphanCheck string               // FKAdded: the orphan-row predicate to verify before applying
	ManualReview bool                 // DiffMismatchWarning: engine couldn't classify confidently
}

// ChangeSummary aggregates counts and the overall risk across a ChangeSet.
type ChangeSummary struct {
	CountsByKind map[ChangeKind]int
	OverallRisk  Risk
}

// ChangeSet is the full output of a Diff run.
type ChangeSet struct {
	Changes []Change
	Summary ChangeSummary
}

// Diff compares source (desired) against target (current), consulting
// targetGraph for impact-based risk assignment.
func Diff(source, target *catalog.Catalog, targetGraph *depgraph.Graph) ChangeSet {
	var changes []Change

	changes = append(changes, diffTables(source, target)...)
	changes = append(changes, diffRoutines(source, target, targetGraph)...)
	changes = append(changes, diffViews(source, target, targetGraph)...)

	summary := summarize(changes)
	return ChangeSet{Changes: changes, Summary: summary}
}

func summarize(changes []Change) ChangeSummary {
	counts := make(map[ChangeKind]int)
	overall := RiskNone
	for _, c := range changes {
		counts[c.Kind]++
		if c.Risk > overall {
			overall = c.Risk
		}
	}
	return ChangeSummary{CountsByKind: counts, OverallRisk: overall}
}

func diffTables(source, target *catalog.Catalog) []Change {
	var changes []Change

	sourceTables := indexTables(source)
	targetTables := indexTables(target)

	var sourceKeys, targetKeys []string
	for k := range sourceTables {
		sourceKeys = append(sourceKeys, k)
	}
	for k := range targetTables {
		targetKeys = append(targetKeys, k)
	}
	sort.Strings(sourceKeys)
	sort.Strings(targetKeys)

	for _, k := range sourceKeys {
		st := sourceTables[k]
		if _, ok := targetTables[k]; !ok {
			changes = append(changes, Change{Kind: TableAdded, Table: st.FQN, Risk: RiskNone, Detail: "table present in source only"})
		}
	}
	for _, k := range targetKeys {
		tt := targetTables[k]
		if _, ok := sourceTables[k]; !ok {
			changes = append(changes, Change{Kind: TableRemoved, Table: tt.FQN, Risk: RiskCritical, Detail: "table present in target only"})
		}
	}

	for _, k := range sourceKeys {
		st, ok1 := sourceTables[k]
		tt, ok2 := targetTables[k]
		if !ok1 || !ok2 {
			continue
		}
		changes = append(changes, diffColumns(st, tt, target)...)
		changes = append(changes, diffIndexes(st, tt)...)
		changes = append(changes, diffForeignKeys(st, tt, target)...)
		changes = append(changes, diffUniqueConstraints(st, tt)...)
	}

	return changes
}

func indexTables(cat *catalog.Catalog) map[string]catalog.Table {
	out := make(map[string]catalog.Table)
	for _, t := range cat.Tables() {
		out[strings.ToLower(t.FQN.Schema)+"."+strings.ToLower(t.FQN.Name)] = t
	}
	return out
}

func diffColumns(source, target catalog.Table, targetCatalog *catalog.Catalog) []Change {
	var changes []Change

	sourceCols := make(map[string]catalog.Column)
	targetCols := make(map[string]catalog.Column)
	for _, c := range source.Columns {
		sourceCols[strings.ToLower(c.Name)] = c
	}
	for _, c := range target.Columns {
		targetCols[strings.ToLower(c.Name)] = c
	}

	var sourceNames, targetNames []string
	for k := range sourceCols {
		sourceNames = append(sourceNames, k)
	}
	for k := range targetCols {
		targetNames = append(targetNames, k)
	}
	sort.Strings(sourceNames)
	sort.Strings(targetNames)

	for _, name := range sourceNames {
		c := sourceCols[name]
		if _, ok := targetCols[name]; ok {
			continue
		}
		risk := RiskNone
		if !c.Nullable && c.DefaultExpr == "" && target.RowCount > 0 {
			risk = RiskHigh
		}
		changes = append(changes, Change{Kind: ColumnAdded, Table: target.FQN, Column: c.Name, Risk: risk, Detail: "column present in source only"})
	}

	for _, name := range targetNames {
		c := targetCols[name]
		if _, ok := sourceCols[name]; ok {
			continue
		}
		affected := affectedByColumn(targetCatalog, target.FQN, c.Name)
		changes = append(changes, Change{
			Kind:     ColumnRemoved,
			Table:    target.FQN,
			Column:   c.Name,
			Risk:     columnRemovalRisk(affected),
			Affected: affected,
			Detail:   "column present in target only",
		})
	}

	for _, name := range sourceNames {
		sc, ok := sourceCols[name]
		if !ok {
			continue
		}
		tc, ok := targetCols[name]
		if !ok {
			continue
		}
		changes = append(changes, diffColumnFields(target.FQN, sc, tc)...)
	}

	return changes
}

func diffColumnFields(table catalog.FQN, source, target catalog.Column) []Change {
	var changes []Change

	if !normalizedTypeEqual(source.Normalized, target.Normalized) {
		class, uncertain := classifyTypeChange(source.Normalized, target.Normalized)
		risk := RiskLow
		if class == Narrowing || class == KindChange {
			risk = RiskHigh
		}
		changes = append(changes, Change{
			Kind: ColumnModified, Table: table, Column: source.Name, Field: FieldType,
			TypeChange: class, Risk: risk, ManualReview: uncertain,
			Detail: "type changed from " + target.RawType + " to " + source.RawType,
		})
	}

	if source.Nullable != target.Nullable {
		risk := RiskLow // NOT NULL -> NULL
		if source.Nullable == false && target.Nullable == true {
			risk = RiskHigh // NULL -> NOT NULL
		}
		changes = append(changes, Change{
			Kind: ColumnModified, Table: table, Column: source.Name, Field: FieldNullability,
			Risk: risk, Detail: "nullability changed",
		})
	}

	if source.DefaultExpr != target.DefaultExpr {
		changes = append(changes, Change{
			Kind: ColumnModified, Table: table, Column: source.Name, Field: FieldDefault,
			Risk: RiskLow, Detail: "default expression changed",
		})
	}

	if source.IsIdentity != target.IsIdentity {
		changes = append(changes, Change{
			Kind: ColumnModified, Table: table, Column: source.Name, Field: FieldIdentity,
			Risk: RiskLow, Detail: "identity attribute changed",
		})
	}

	return changes
}

// classifyTypeChange sub-classifies a type change per §4.7 step 1. uncertain
// reports a DiffMismatchWarning: the engine could not confidently tell
// widening from narrowing (emitted anyway, flagged for manual review).
func classifyTypeChange(source, target catalog.NormalizedType) (class TypeChangeClass, uncertain bool) {
	if source.Kind != target.Kind {
		return KindChange, false
	}
	sLen, tLen := ptrOrZero(source.Length), ptrOrZero(target.Length)
	sPrec, tPrec := ptrOrZero(source.Precision), ptrOrZero(target.Precision)
	switch {
	case sLen > tLen || sPrec > tPrec:
		return Widening, false
	case sLen < tLen || sPrec < tPrec:
		return Narrowing, false
	default:
		return Widening, true // same kind, no measurable length/precision difference
	}
}

func normalizedTypeEqual(a, b catalog.NormalizedType) bool {
	return a.Kind == b.Kind &&
		ptrOrZero(a.Length) == ptrOrZero(b.Length) &&
		ptrOrZero(a.Precision) == ptrOrZero(b.Precision) &&
		ptrOrZero(a.Scale) == ptrOrZero(b.Scale)
}

func ptrOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func columnRemovalRisk(affected []catalog.ObjectRef) Risk {
	if len(affected) >= 3 {
		return RiskCritical
	}
	for _, a := range affected {
		if a.Kind == catalog.KindView {
			return RiskCritical
		}
	}
	switch len(affected) {
	case 0:
		return RiskLow
	default:
		return RiskHigh
	}
}

// affectedByColumn finds every routine/view in the target catalog whose
// tracked ColumnRefs touch table.column (§4.7 ColumnRemoved risk rule).
func affectedByColumn(targetCatalog *catalog.Catalog, table catalog.FQN, column string) []catalog.ObjectRef {
	var out []catalog.ObjectRef
	col := strings.ToLower(column)
	key := table.String()

	for _, r := range targetCatalog.Routines() {
		if r.ColumnRefs[key][col] {
			out = append(out, refOfRoutine(r))
		}
	}
	for _, v := range targetCatalog.Views() {
		if v.ColumnRefs[key][col] {
			out = append(out, catalog.ObjectRef{Kind: catalog.KindView, FQN: v.FQN})
		}
	}
	return out
}

func diffIndexes(source, target catalog.Table) []Change {
	var changes []Change
	sourceIdx := indexByName(source.Indexes)
	targetIdx := indexByName(target.Indexes)

	removingCols := make(map[string]bool)
	for _, c := range columnsRemoved(source, target) {
		removingCols[strings.ToLower(c)] = true
	}

	for name, idx := range sourceIdx {
		if _, ok := targetIdx[name]; !ok {
			changes = append(changes, Change{Kind: IndexAdded, Table: target.FQN, Column: idx.Name, Risk: RiskLow, Detail: "index present in source only"})
		}
	}
	for name, idx := range targetIdx {
		if _, ok := sourceIdx[name]; !ok {
			risk := RiskMedium
			if removingCols[strings.ToLower(idx.LeadingColumn())] {
				risk = RiskLow
			}
			changes = append(changes, Change{Kind: IndexRemoved, Table: target.FQN, Column: idx.Name, Risk: risk, Detail: "index present in target only"})
		}
	}
	return changes
}

func columnsRemoved(source, target catalog.Table) []string {
	sourceCols := make(map[string]bool)
	for _, c := range source.Columns {
		sourceCols[strings.ToLower(c.Name)] = true
	}
	var removed []string
	for _, c := range target.Columns {
		if !sourceCols[strings.ToLower(c.Name)] {
			removed = append(removed, c.Name)
		}
	}
	return removed
}

func indexByName(indexes []catalog.Index) map[string]catalog.Index {
	out := make(map[string]catalog.Index)
	for _, idx := range indexes {
		out[strings.ToLower(idx.Name)] = idx
	}
	return out
}

func diffForeignKeys(source, target catalog.Table, targetCatalog *catalog.Catalog) []Change {
	var changes []Change
	sourceFKs := fkByName(source.ForeignKeys)
	targetFKs := fkByName(target.ForeignKeys)

	for name, fk := range sourceFKs {
		if _, ok := targetFKs[name]; !ok {
			changes = append(changes, Change{
				Kind: ForeignKeyAdded, Table: target.FQN, Column: fk.Name, Risk: RiskLow,
				OrphanCheck: orphanCheckPredicate(target.FQN, fk),
				Detail:      "foreign key present in source only",
			})
		}
	}
	for name, fk := range targetFKs {
		if _, ok := sourceFKs[name]; !ok {
			changes = append(changes, Change{Kind: ForeignKeyRemoved, Table: target.FQN, Column: fk.Name, Risk: RiskLow, Detail: "foreign key present in target only"})
		}
	}
	return changes
}

func orphanCheckPredicate(table catalog.FQN, fk catalog.ForeignKey) string {
	var conds []string
	for i, col := range fk.LocalColumns {
		ref := fk.ReferencedColumns[i]
		conds = append(conds, col+" NOT IN (SELECT "+ref+" FROM "+fk.ReferencedTable.String()+")")
	}
	return "SELECT 1 FROM " + table.String() + " WHERE " + strings.Join(conds, " OR ")
}

func fkByName(fks []catalog.ForeignKey) map[string]catalog.ForeignKey {
	out := make(map[string]catalog.ForeignKey)
	for _, fk := range fks {
		out[strings.ToLower(fk.Name)] = fk
	}
	return out
}

func diffUniqueConstraints(source, target catalog.Table) []Change {
	var changes []Change
	sourceU := uniqueByName(source.UniqueConstraints)
	targetU := uniqueByName(target.UniqueConstraints)

	for name, u := range sourceU {
		if _, ok := targetU[name]; !ok {
			changes = append(changes, Change{Kind: UniqueAdded, Table: target.FQN, Column: u.Name, Risk: RiskLow, Detail: "unique constraint present in source only"})
		}
	}
	for name, u := range targetU {
		if _, ok := sourceU[name]; !ok {
			changes = append(changes, Change{Kind: UniqueRemoved, Table: target.FQN, Column: u.Name, Risk: RiskLow, Detail: "unique constraint present in target only"})
		}
	}
	return changes
}

func uniqueByName(cs []catalog.UniqueConstraint) map[string]catalog.UniqueConstraint {
	out := make(map[string]catalog.UniqueConstraint)
	for _, c := range cs {
		out[strings.ToLower(c.Name)] = c
	}
	return out
}

func diffRoutines(source, target *catalog.Catalog, targetGraph *depgraph.Graph) []Change {
	var changes []Change
	sourceR := make(map[string]catalog.Routine)
	targetR := make(map[string]catalog.Routine)
	for _, r := range source.Routines() {
		sourceR[strings.ToLower(r.FQN.String())] = r
	}
	for _, r := range target.Routines() {
		targetR[strings.ToLower(r.FQN.String())] = r
	}

	var sourceKeys, targetKeys []string
	for k := range sourceR {
		sourceKeys = append(sourceKeys, k)
	}
	for k := range targetR {
		targetKeys = append(targetKeys, k)
	}
	sort.Strings(sourceKeys)
	sort.Strings(targetKeys)

	for _, k := range sourceKeys {
		r := sourceR[k]
		if _, ok := targetR[k]; !ok {
			changes = append(changes, Change{Kind: RoutineAdded, Object: refOfRoutine(r), Risk: RiskNone, Detail: "routine present in source only"})
		}
	}
	for _, k := range targetKeys {
		r := targetR[k]
		if _, ok := sourceR[k]; !ok {
			ref := refOfRoutine(r)
			impact := targetGraph.Impact(ref)
			changes = append(changes, Change{
				Kind: RoutineRemoved, Object: ref, Risk: impactBandRisk(impact.Nodes),
				Affected: impact.Nodes, Detail: "routine present in target only",
			})
		}
	}
	for _, k := range sourceKeys {
		sr, ok1 := sourceR[k]
		tr, ok2 := targetR[k]
		if !ok1 || !ok2 {
			continue
		}
		if normalizeBody(sr.Body) == normalizeBody(tr.Body) {
			continue
		}
		ref := refOfRoutine(tr)
		impact := targetGraph.Impact(ref)
		risk := RiskLow
		if impact.Size() >= 1 {
			risk = RiskMedium
		}
		changes = append(changes, Change{Kind: RoutineBodyChanged, Object: ref, Risk: risk, Affected: impact.Nodes, Detail: "routine body differs after normalization"})
	}

	return changes
}

func refOfRoutine(r catalog.Routine) catalog.ObjectRef {
	kind := catalog.KindProcedure
	if r.Kind == catalog.RoutineFunction {
		kind = catalog.KindFunction
	}
	return catalog.ObjectRef{Kind: kind, FQN: r.FQN}
}

func diffViews(source, target *catalog.Catalog, targetGraph *depgraph.Graph) []Change {
	var changes []Change
	sourceV := make(map[string]catalog.View)
	targetV := make(map[string]catalog.View)
	for _, v := range source.Views() {
		sourceV[strings.ToLower(v.FQN.String())] = v
	}
	for _, v := range target.Views() {
		targetV[strings.ToLower(v.FQN.String())] = v
	}

	var sourceKeys, targetKeys []string
	for k := range sourceV {
		sourceKeys = append(sourceKeys, k)
	}
	for k := range targetV {
		targetKeys = append(targetKeys, k)
	}
	sort.Strings(sourceKeys)
	sort.Strings(targetKeys)

	for _, k := range sourceKeys {
		v := sourceV[k]
		if _, ok := targetV[k]; !ok {
			changes = append(changes, Change{Kind: ViewAdded, Object: catalog.ObjectRef{Kind: catalog.KindView, FQN: v.FQN}, Risk: RiskNone, Detail: "view present in source only"})
		}
	}
	for _, k := range targetKeys {
		v := targetV[k]
		if _, ok := sourceV[k]; !ok {
			ref := catalog.ObjectRef{Kind: catalog.KindView, FQN: v.FQN}
			impact := targetGraph.Impact(ref)
			changes = append(changes, Change{Kind: ViewRemoved, Object: ref, Risk: impactBandRisk(impact.Nodes), Affected: impact.Nodes, Detail: "view present in target only"})
		}
	}
	for _, k := range sourceKeys {
		sv, ok1 := sourceV[k]
		tv, ok2 := targetV[k]
		if !ok1 || !ok2 {
			continue
		}
		if normalizeBody(sv.Body) == normalizeBody(tv.Body) {
			continue
		}
		ref := catalog.ObjectRef{Kind: catalog.KindView, FQN: tv.FQN}
		impact := targetGraph.Impact(ref)
		risk := RiskLow
		if impact.Size() >= 1 {
			risk = RiskMedium
		}
		changes = append(changes, Change{Kind: ViewBodyChanged, Object: ref, Risk: risk, Affected: impact.Nodes, Detail: "view body differs after normalization"})
	}

	return changes
}

func impactBandRisk(affected []catalog.ObjectRef) Risk {
	switch {
	case len(affected) == 0:
		return RiskLow
	case len(affected) <= 2:
		return RiskHigh
	default:
		return RiskCritical
	}
}

var (
	lineComment  = regexp.MustCompile(`--[^\n]*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// normalizeBody strips comments, collapses whitespace and lowercases the
// result, per §4.7 step 3. It is a coarse text normalization, not a parse —
// sufficient to detect semantic no-op formatting changes.
func normalizeBody(body string) string {
	b := lineComment.ReplaceAllString(body, "")
	b = blockComment.ReplaceAllString(b, "")
	b = whitespace.ReplaceAllString(b, " ")
	return strings.ToLower(strings.TrimSpace(b))
}
