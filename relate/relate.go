// Package relate implements relationship inference (§4.3): it fuses
// explicit foreign keys, extractor-derived join pairs, column-naming
// heuristics, routine call edges and body references into the typed,
// confidence-scored edge set consumed by the dependency graph.
package relate

import (
	"strings"

	"github.com/dbforensic/dbforensic/catalog"
	"github.com/dbforensic/dbforensic/depgraph"
)

// irregularPlurals is the small built-in list from §4.3 step 3.
var irregularPlurals = map[string]string{
	"person": "people",
	"child":  "children",
}

// Infer builds the full edge set for a catalog whose routines/views already
// carry their computed extraction artifacts (ReferencedTables, Joins,
// CalledRoutines -- populated by the pipeline before this call).
func Infer(cat *catalog.Catalog) []depgraph.Edge {
	var edges []depgraph.Edge

	edges = append(edges, explicitForeignKeyEdges(cat)...)
	edges = append(edges, joinEdges(cat)...)
	edges = append(edges, namingHeuristicEdges(cat)...)
	edges = append(edges, callEdges(cat)...)
	edges = append(edges, referenceEdges(cat)...)

	return edges
}

func tableRef(fqn catalog.FQN) catalog.ObjectRef {
	return catalog.ObjectRef{Kind: catalog.KindTable, FQN: fqn}
}

func routineRef(cat *catalog.Catalog, fqn catalog.FQN) catalog.ObjectRef {
	if r, ok := cat.Routine(fqn); ok {
		if r.Kind == catalog.RoutineFunction {
			return catalog.ObjectRef{Kind: catalog.KindFunction, FQN: fqn}
		}
	}
	return catalog.ObjectRef{Kind: catalog.KindProcedure, FQN: fqn}
}

// explicitForeignKeyEdges adds one ForeignKey-kind edge per FK, confidence 100.
func explicitForeignKeyEdges(cat *catalog.Catalog) []depgraph.Edge {
	var edges []depgraph.Edge
	for _, t := range cat.Tables() {
		for _, fk := range t.ForeignKeys {
			edges = append(edges, depgraph.Edge{
				Source:     tableRef(t.FQN),
				Target:     tableRef(fk.ReferencedTable),
				Kind:       depgraph.EdgeForeignKey,
				Origin:     depgraph.OriginCatalogFK,
				Confidence: depgraph.Confidence(depgraph.OriginCatalogFK, false),
				Annotation: fk.Name,
			})
		}
	}
	return edges
}

// joinEdges adds symmetric Joins-kind edges for every extracted join pair,
// confidence 80, annotated with the originating routine (§4.3 step 2).
func joinEdges(cat *catalog.Catalog) []depgraph.Edge {
	var edges []depgraph.Edge
	addSymmetric := func(joins [][2]catalog.FQN, origin catalog.FQN) {
		for _, pair := range joins {
			t1, t2 := tableRef(pair[0]), tableRef(pair[1])
			edges = append(edges,
				depgraph.Edge{Source: t1, Target: t2, Kind: depgraph.EdgeJoins, Origin: depgraph.OriginBodyJoin,
					Confidence: depgraph.Confidence(depgraph.OriginBodyJoin, false), Annotation: origin.String()},
				depgraph.Edge{Source: t2, Target: t1, Kind: depgraph.EdgeJoins, Origin: depgraph.OriginBodyJoin,
					Confidence: depgraph.Confidence(depgraph.OriginBodyJoin, false), Annotation: origin.String()},
			)
		}
	}
	for _, r := range cat.Routines() {
		addSymmetric(r.Joins, r.FQN)
	}
	return edges
}

// callEdges adds routine->routine Calls edges, confidence 90.
func callEdges(cat *catalog.Catalog) []depgraph.Edge {
	var edges []depgraph.Edge
	for _, r := range cat.Routines() {
		for _, called := range r.CalledRoutines {
			edges = append(edges, depgraph.Edge{
				Source:     routineRef(cat, r.FQN),
				Target:     routineRef(cat, called),
				Kind:       depgraph.EdgeCalls,
				Origin:     depgraph.OriginBodyCall,
				Confidence: depgraph.Confidence(depgraph.OriginBodyCall, false),
			})
		}
	}
	return edges
}

// referenceEdges adds view/routine -> table References edges for every
// referenced table not already covered by a join edge (§4.3 step 5).
func referenceEdges(cat *catalog.Catalog) []depgraph.Edge {
	var edges []depgraph.Edge

	addRefs := func(source catalog.ObjectRef, referenced []catalog.FQN, joinedTables map[string]bool) {
		for _, fqn := range referenced {
			if joinedTables[fqn.String()] {
				continue
			}
			edges = append(edges, depgraph.Edge{
				Source:     source,
				Target:     tableRef(fqn),
				Kind:       depgraph.EdgeReferences,
				Origin:     depgraph.OriginBodyReference,
				Confidence: depgraph.Confidence(depgraph.OriginBodyReference, false),
			})
		}
	}

	for _, r := range cat.Routines() {
		joined := make(map[string]bool)
		for _, pair := range r.Joins {
			joined[pair[0].String()] = true
			joined[pair[1].String()] = true
		}
		addRefs(routineRef(cat, r.FQN), r.ReferencedTables, joined)
	}
	for _, v := range cat.Views() {
		addRefs(catalog.ObjectRef{Kind: catalog.KindView, FQN: v.FQN}, v.References, nil)
	}

	return edges
}

// namingHeuristicEdges implements §4.3 step 3.
func namingHeuristicEdges(cat *catalog.Catalog) []depgraph.Edge {
	var edges []depgraph.Edge
	tables := cat.Tables()

	hasExplicitFK := func(t catalog.Table, column string) bool {
		for _, fk := range t.ForeignKeys {
			for _, c := range fk.LocalColumns {
				if strings.EqualFold(c, column) {
					return true
				}
			}
		}
		return false
	}

	for _, t := range tables {
		for _, col := range t.Columns {
			stem, matched := stemOfIdColumn(col.Name)
			if !matched {
				continue
			}
			if hasExplicitFK(t, col.Name) {
				continue
			}

			var candidates []catalog.Table
			var exactSingular bool
			for _, candidate := range tables {
				if candidate.FQN.Equal(t.FQN) {
					continue
				}
				if match, singular := nameMatchesStem(candidate.FQN.Name, stem); match {
					pk, ok := singleColumnIdPK(candidate)
					if !ok {
						continue
					}
					if !typesCompatible(col, pk) {
						continue
					}
					candidates = append(candidates, candidate)
					exactSingular = singular
				}
			}

			if len(candidates) == 1 {
				strong := exactSingular
				edges = append(edges, depgraph.Edge{
					Source:     tableRef(t.FQN),
					Target:     tableRef(candidates[0].FQN),
					Kind:       depgraph.EdgeNamingImplied,
					Origin:     depgraph.OriginNamingHeuristic,
					Confidence: depgraph.Confidence(depgraph.OriginNamingHeuristic, strong),
					Annotation: col.Name,
				})
			}
		}
	}
	return edges
}

// stemOfIdColumn extracts the stem from a column named <Stem>Id, <Stem>_id
// or <Stem>ID.
func stemOfIdColumn(name string) (stem string, ok bool) {
	for _, suffix := range []string{"_id", "Id", "ID"} {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return name[:len(name)-len(suffix)], true
		}
	}
	return "", false
}

// nameMatchesStem reports whether tableName equals stem or one of its plural
// forms; singular reports an exact, non-pluralized match.
func nameMatchesStem(tableName, stem string) (matched bool, singular bool) {
	if strings.EqualFold(tableName, stem) {
		return true, true
	}
	candidates := []string{stem + "s", stem + "es"}
	if irregular, ok := irregularPlurals[strings.ToLower(stem)]; ok {
		candidates = append(candidates, irregular)
	}
	for _, c := range candidates {
		if strings.EqualFold(tableName, c) {
			return true, false
		}
	}
	return false, false
}

// singleColumnIdPK reports the single PK column if the table has exactly one
// PK column whose name ends with Id/_id/ID.
func singleColumnIdPK(t catalog.Table) (catalog.Column, bool) {
	if len(t.PrimaryKey) != 1 {
		return catalog.Column{}, false
	}
	name := t.PrimaryKey[0]
	if !strings.HasSuffix(name, "Id") && !strings.HasSuffix(name, "_id") && !strings.HasSuffix(name, "ID") {
		return catalog.Column{}, false
	}
	col, ok := t.Column(name)
	return col, ok
}

func typesCompatible(a, b catalog.Column) bool {
	if a.Normalized.Kind == catalog.KindInteger && b.Normalized.Kind == catalog.KindInteger {
		return true
	}
	if a.Normalized.Kind == catalog.KindString && b.Normalized.Kind == catalog.KindString {
		if a.Normalized.Length == nil || b.Normalized.Length == nil {
			return true
		}
		return lengthsCompatible(*a.Normalized.Length, *b.Normalized.Length)
	}
	return false
}

func lengthsCompatible(a, b int) bool {
	const tolerance = 0.25
	if a == b {
		return true
	}
	smaller, larger := a, b
	if smaller > larger {
		smaller, larger = larger, smaller
	}
	return float64(larger)*(1-tolerance) <= float64(smaller)
}
