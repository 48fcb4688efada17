// Package report assembles the analysis pipeline's outputs into the two
// immutable boundary types consumed by reporters (§6): Report for a single
// catalog analysis, DiffReport for a two-snapshot comparison. Both are
// JSON-serializable with a stable snake_case schema so any reporter --
// console, HTML, Markdown, SQL -- can render them without re-running the
// pipeline.
package report

import (
	"time"

	"github.com/dbforensic/dbforensic/catalog"
	"github.com/dbforensic/dbforensic/depgraph"
	"github.com/dbforensic/dbforensic/diff"
	"github.com/dbforensic/dbforensic/health"
	"github.com/dbforensic/dbforensic/issues"
)

// CatalogSummary is a flat rollup of a catalog's object counts, cheap to
// render at the top of any reporter without walking the full model.
type CatalogSummary struct {
	Provider      catalog.Provider `json:"provider"`
	DefaultSchema string           `json:"default_schema"`
	TableCount    int              `json:"table_count"`
	ViewCount     int              `json:"view_count"`
	RoutineCount  int              `json:"routine_count"`
	TotalRowCount uint64           `json:"total_row_count"`
}

// HealthSummary is the scorer's output in report-friendly shape.
type HealthSummary struct {
	Score   int         `json:"score"`
	Band    health.Band `json:"band"`
	Penalty float64     `json:"penalty"`
	Bonus   float64     `json:"bonus"`
}

// GraphNode is one object in the rendered dependency graph.
type GraphNode struct {
	Kind string `json:"kind"`
	FQN  string `json:"fqn"`
}

// GraphEdge is one rendered dependency edge.
type GraphEdge struct {
	Source     string              `json:"source"`
	Target     string              `json:"target"`
	Kind       depgraph.EdgeKind   `json:"kind"`
	Origin     depgraph.EdgeOrigin `json:"origin"`
	Confidence uint8               `json:"confidence"`
	Annotation string              `json:"annotation,omitempty"`
}

// HotspotEntry is depgraph.Hotspot flattened for serialization.
type HotspotEntry struct {
	Table    string              `json:"table"`
	InDegree int                 `json:"in_degree"`
	Risk     depgraph.HotspotRisk `json:"risk"`
}

// GraphSummary is the dependency graph flattened for serialization, plus
// its precomputed cycles and table hotspots.
type GraphSummary struct {
	Nodes    []GraphNode    `json:"nodes"`
	Edges    []GraphEdge    `json:"edges"`
	Cycles   [][]string     `json:"cycles"`
	Hotspots []HotspotEntry `json:"hotspots"`
}

// RoutineStat is a per-routine rollup used by the `procedures` CLI command
// and by the report's routine_stats section.
type RoutineStat struct {
	FQN                string                     `json:"fqn"`
	Kind               catalog.RoutineKind        `json:"kind"`
	ComplexityScore    float64                    `json:"complexity_score"`
	ComplexityCategory catalog.ComplexityCategory `json:"complexity_category"`
	AntiPatterns       []catalog.AntiPattern      `json:"anti_patterns,omitempty"`
}

// ImpactEntry caches one object's precomputed impact set, so the `impact`
// CLI command and any reporter can answer "what does changing X affect"
// without re-walking the graph.
type ImpactEntry struct {
	Object   string   `json:"object"`
	Affected []string `json:"affected"`
	Count    int      `json:"count"`
}

// Report is the full immutable analysis result for a single catalog
// snapshot. It owns its graph and issue set exclusively; a reporter holds a
// read-only reference and never mutates it.
type Report struct {
	GeneratedAt    time.Time       `json:"generated_at"`
	CatalogSummary CatalogSummary  `json:"catalog_summary"`
	Health         HealthSummary   `json:"health"`
	Issues         []issues.Issue  `json:"issues"`
	Graph          GraphSummary    `json:"graph"`
	RoutineStats   []RoutineStat   `json:"routine_stats"`
	ImpactCache    []ImpactEntry   `json:"impact_cache"`
}

// Assemble builds a Report from a frozen catalog and its already-built
// dependency graph and issue list. now is injected rather than read from the
// clock internally, keeping the assembler a pure function of its inputs.
func Assemble(cat *catalog.Catalog, graph *depgraph.Graph, issueList []issues.Issue, now time.Time) Report {
	score := health.Compute(cat, issueList)

	return Report{
		GeneratedAt: now,
		CatalogSummary: CatalogSummary{
			Provider:      cat.Provider(),
			DefaultSchema: cat.DefaultSchema(),
			TableCount:    len(cat.Tables()),
			ViewCount:     len(cat.Views()),
			RoutineCount:  len(cat.Routines()),
			TotalRowCount: totalRowCount(cat),
		},
		Health: HealthSummary{
			Score:   score.Value,
			Band:    score.Band,
			Penalty: score.Penalty,
			Bonus:   score.Bonus,
		},
		Issues:       issueList,
		Graph:        buildGraphSummary(graph),
		RoutineStats: buildRoutineStats(cat),
		ImpactCache:  buildImpactCache(graph),
	}
}

func totalRowCount(cat *catalog.Catalog) uint64 {
	var total uint64
	for _, t := range cat.Tables() {
		total += t.RowCount
	}
	return total
}

func buildGraphSummary(graph *depgraph.Graph) GraphSummary {
	var nodes []GraphNode
	for _, n := range graph.Nodes() {
		nodes = append(nodes, GraphNode{Kind: n.Kind.String(), FQN: n.FQN.String()})
	}

	var edges []GraphEdge
	for _, e := range graph.Edges() {
		edges = append(edges, GraphEdge{
			Source:     e.Source.String(),
			Target:     e.Target.String(),
			Kind:       e.Kind,
			Origin:     e.Origin,
			Confidence: e.Confidence,
			Annotation: e.Annotation,
		})
	}

	var cycles [][]string
	for _, c := range graph.Cycles() {
		var names []string
		for _, n := range c.Nodes {
			names = append(names, n.String())
		}
		cycles = append(cycles, names)
	}

	var hotspots []HotspotEntry
	for _, h := range graph.Hotspots(10) {
		hotspots = append(hotspots, HotspotEntry{Table: h.Table.String(), InDegree: h.InDegree, Risk: h.Risk})
	}

	return GraphSummary{
		Nodes:    nodes,
		Edges:    edges,
		Cycles:   cycles,
		Hotspots: hotspots,
	}
}

func buildRoutineStats(cat *catalog.Catalog) []RoutineStat {
	var stats []RoutineStat
	for _, r := range cat.Routines() {
		stats = append(stats, RoutineStat{
			FQN:                r.FQN.String(),
			Kind:               r.Kind,
			ComplexityScore:    r.ComplexityScore,
			ComplexityCategory: r.ComplexityCategory,
			AntiPatterns:       r.AntiPatterns,
		})
	}
	return stats
}

// buildImpactCache precomputes impact(node) for every graph node, so the
// `impact --table <name>` CLI command is a cache lookup rather than a BFS.
func buildImpactCache(graph *depgraph.Graph) []ImpactEntry {
	var cache []ImpactEntry
	for _, n := range graph.Nodes() {
		result := graph.Impact(n)
		var affected []string
		for _, a := range result.Nodes {
			affected = append(affected, a.String())
		}
		cache = append(cache, ImpactEntry{Object: n.String(), Affected: affected, Count: result.Size()})
	}
	return cache
}

// SnapshotInfo identifies one side of a DiffReport, since the changes alone
// don't say which catalog was "source" and which was "target".
type SnapshotInfo struct {
	Provider      catalog.Provider `json:"provider"`
	DefaultSchema string           `json:"default_schema"`
	TableCount    int              `json:"table_count"`
}

// DiffChange is diff.Change flattened into FQN strings for serialization.
type DiffChange struct {
	Kind         diff.ChangeKind       `json:"kind"`
	Table        string                `json:"table,omitempty"`
	Object       string                `json:"object,omitempty"`
	Column       string                `json:"column,omitempty"`
	Field        diff.ColumnField      `json:"field,omitempty"`
	TypeChange   diff.TypeChangeClass  `json:"type_change,omitempty"`
	Risk         diff.Risk             `json:"risk"`
	Detail       string                `json:"detail,omitempty"`
	Affected     []string              `json:"affected,omitempty"`
	OrphanCheck  string                `json:"orphan_check,omitempty"`
	ManualReview bool                  `json:"manual_review,omitempty"`
}

// DiffChangeSummary mirrors diff.ChangeSummary with a JSON-friendly
// CountsByKind (map keys must be strings in JSON; ChangeKind already is one).
type DiffChangeSummary struct {
	CountsByKind map[diff.ChangeKind]int `json:"counts_by_kind"`
	OverallRisk  diff.Risk               `json:"overall_risk"`
}

// DiffReport is the full immutable result of comparing two catalog
// snapshots (§6).
type DiffReport struct {
	GeneratedAt time.Time         `json:"generated_at"`
	SourceInfo  SnapshotInfo      `json:"source_info"`
	TargetInfo  SnapshotInfo      `json:"target_info"`
	Changes     []DiffChange      `json:"changes"`
	Summary     DiffChangeSummary `json:"summary"`
	OverallRisk diff.Risk         `json:"overall_risk"`
}

// AssembleDiff builds a DiffReport from a completed ChangeSet plus the two
// source catalogs it was computed from.
func AssembleDiff(source, target *catalog.Catalog, cs diff.ChangeSet, now time.Time) DiffReport {
	var changes []DiffChange
	for _, c := range cs.Changes {
		var affected []string
		for _, a := range c.Affected {
			affected = append(affected, a.String())
		}
		table := ""
		if c.Table != (catalog.FQN{}) {
			table = c.Table.String()
		}
		object := ""
		if c.Object != (catalog.ObjectRef{}) {
			object = c.Object.String()
		}
		changes = append(changes, DiffChange{
			Kind:         c.Kind,
			Table:        table,
			Object:       object,
			Column:       c.Column,
			Field:        c.Field,
			TypeChange:   c.TypeChange,
			Risk:         c.Risk,
			Detail:       c.Detail,
			Affected:     affected,
			OrphanCheck:  c.OrphanCheck,
			ManualReview: c.ManualReview,
		})
	}

	return DiffReport{
		GeneratedAt: now,
		SourceInfo:  snapshotInfo(source),
		TargetInfo:  snapshotInfo(target),
		Changes:     changes,
		Summary: DiffChangeSummary{
			CountsByKind: cs.Summary.CountsByKind,
			OverallRisk:  cs.Summary.OverallRisk,
		},
		OverallRisk: cs.Summary.OverallRisk,
	}
}

func snapshotInfo(cat *catalog.Catalog) SnapshotInfo {
	return SnapshotInfo{
		Provider:      cat.Provider(),
		DefaultSchema: cat.DefaultSchema(),
		TableCount:    len(cat.Tables()),
	}
}
