package connector

import (
	"sort"

	"github.com/dbforensic/dbforensic/catalog"
	"github.com/dbforensic/dbforensic/complexity"
	"github.com/dbforensic/dbforensic/extractor"
)

// RawView and RawRoutine carry the provider-native extraction output before
// the SQL reference extractor and complexity scorer run over their bodies.
type RawView struct {
	FQN  catalog.FQN
	Body string
}

type RawRoutine struct {
	FQN        catalog.FQN
	Kind       catalog.RoutineKind
	Body       string
	Parameters []catalog.Parameter
}

// AssembleCatalog resolves view/routine bodies against the already-extracted
// tables, runs the complexity scorer over routine bodies, and freezes the
// result. Tables must be fully assembled (columns, keys, indexes) before
// this is called: the extractor's resolver needs a tables-only catalog to
// resolve unqualified and cross-schema references (§4.1 step 7).
func AssembleCatalog(provider catalog.Provider, defaultSchema string, tables []catalog.Table, views []RawView, routines []RawRoutine) (*catalog.Catalog, error) {
	tablesOnly := catalog.NewBuilder(provider, defaultSchema)
	for _, t := range tables {
		if err := tablesOnly.AddTable(t); err != nil {
			return nil, err
		}
	}
	resolver, err := tablesOnly.Build()
	if err != nil {
		return nil, err
	}

	final := catalog.NewBuilder(provider, defaultSchema)
	for _, t := range tables {
		if err := final.AddTable(t); err != nil {
			return nil, err
		}
	}

	for _, v := range views {
		res := extractor.Extract(v.Body, defaultSchema, resolver)
		if err := final.AddView(catalog.View{
			FQN:        v.FQN,
			Body:       v.Body,
			References: sortedFQNs(res.Referenced),
			ColumnRefs: res.ColumnRefs,
		}); err != nil {
			return nil, err
		}
	}

	for _, r := range routines {
		res := extractor.Extract(r.Body, defaultSchema, resolver)
		score := complexity.Compute(r.Body)
		if err := final.AddRoutine(catalog.Routine{
			FQN:                r.FQN,
			Kind:               r.Kind,
			Body:               r.Body,
			Parameters:         r.Parameters,
			ComplexityScore:    score.Total,
			ComplexityCategory: score.Category,
			ReferencedTables:   sortedFQNs(res.Referenced),
			Joins:              res.Joins,
			Crud:               res.Crud,
			CalledRoutines:     sortedFQNs(res.CalledRoutines),
			AntiPatterns:       sortedAntiPatterns(res.AntiPatterns),
			ColumnRefs:         res.ColumnRefs,
		}); err != nil {
			return nil, err
		}
	}

	return final.Build()
}

func sortedFQNs(m map[string]catalog.FQN) []catalog.FQN {
	out := make([]catalog.FQN, 0, len(m))
	for _, fqn := range m {
		out = append(out, fqn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}

func sortedAntiPatterns(m map[catalog.AntiPattern]bool) []catalog.AntiPattern {
	out := make([]catalog.AntiPattern, 0, len(m))
	for ap := range m {
		out = append(out, ap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
