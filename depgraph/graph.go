// Package depgraph implements the dependency graph: a directed multigraph
// over schema objects supporting reverse-reachability impact analysis and
// Tarjan strongly-connected-components cycle detection (§4.4).
package depgraph

import (
	"sort"

	"github.com/dbforensic/dbforensic/catalog"
)

// EdgeKind categorizes what relationship an edge represents.
type EdgeKind string

const (
	EdgeForeignKey    EdgeKind = "foreign_key"
	EdgeJoins         EdgeKind = "joins"
	EdgeReferences    EdgeKind = "references"
	EdgeCalls         EdgeKind = "calls"
	EdgeNamingImplied EdgeKind = "naming_implied"
)

// EdgeOrigin records how an edge was derived; it fixes the edge's confidence.
type EdgeOrigin string

const (
	OriginCatalogFK       EdgeOrigin = "catalog_fk"
	OriginBodyJoin        EdgeOrigin = "body_join"
	OriginBodyReference   EdgeOrigin = "body_reference"
	OriginBodyCall        EdgeOrigin = "body_call"
	OriginNamingHeuristic EdgeOrigin = "naming_heuristic"
)

// Confidence returns the fixed confidence for an origin, per §3's invariant.
// strongNameMatch only affects OriginNamingHeuristic (95 vs 60).
func Confidence(origin EdgeOrigin, strongNameMatch bool) uint8 {
	switch origin {
	case OriginCatalogFK:
		return 100
	case OriginBodyCall:
		return 90
	case OriginBodyJoin:
		return 80
	case OriginBodyReference:
		return 70
	case OriginNamingHeuristic:
		if strongNameMatch {
			return 95
		}
		return 60
	default:
		return 0
	}
}

// Edge is one directed dependency edge in the graph.
type Edge struct {
	Source     catalog.ObjectRef
	Target     catalog.ObjectRef
	Kind       EdgeKind
	Confidence uint8
	Origin     EdgeOrigin
	// Annotation carries per-edge context: the originating routine for
	// join-based edges (§4.3 step 2), the constraint name for foreign-key
	// edges and the column name for naming-implied edges.
	Annotation string
}

// Graph is a frozen directed multigraph, built once via Builder.
type Graph struct {
	edges   []Edge
	out     map[string][]int // ObjectRef.Key() -> indices into edges
	in      map[string][]int
	nodeSet map[string]catalog.ObjectRef
}

// Builder constructs a Graph additively.
type Builder struct {
	edges   []Edge
	nodeSet map[string]catalog.ObjectRef
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{nodeSet: make(map[string]catalog.ObjectRef)}
}

// AddEdge registers one directed edge and both of its endpoint nodes.
func (b *Builder) AddEdge(e Edge) {
	b.edges = append(b.edges, e)
	b.nodeSet[e.Source.Key()] = e.Source
	b.nodeSet[e.Target.Key()] = e.Target
}

// AddNode registers a node with no edges, so it still appears in traversals
// (e.g. an isolated table with no FKs and no references).
func (b *Builder) AddNode(ref catalog.ObjectRef) {
	b.nodeSet[ref.Key()] = ref
}

// Build freezes the graph, ordering edges by (source, target, origin) for
// deterministic output (§5 ordering guarantees).
func (b *Builder) Build() *Graph {
	edges := make([]Edge, len(b.edges))
	copy(edges, b.edges)
	sort.Slice(edges, func(i, j int) bool {
		if c := edges[i].Source.Compare(edges[j].Source); c != 0 {
			return c < 0
		}
		if c := edges[i].Target.Compare(edges[j].Target); c != 0 {
			return c < 0
		}
		return edges[i].Origin < edges[j].Origin
	})

	out := make(map[string][]int)
	in := make(map[string][]int)
	for i, e := range edges {
		out[e.Source.Key()] = append(out[e.Source.Key()], i)
		in[e.Target.Key()] = append(in[e.Target.Key()], i)
	}

	nodes := make(map[string]catalog.ObjectRef, len(b.nodeSet))
	for k, v := range b.nodeSet {
		nodes[k] = v
	}

	return &Graph{edges: edges, out: out, in: in, nodeSet: nodes}
}

// Nodes returns every node in the graph, ordered deterministically.
func (g *Graph) Nodes() []catalog.ObjectRef {
	out := make([]catalog.ObjectRef, 0, len(g.nodeSet))
	for _, n := range g.nodeSet {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}

// Edges returns every edge, already ordered by (source, target, origin).
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// NeighborsOut returns edges leaving node.
func (g *Graph) NeighborsOut(node catalog.ObjectRef) []Edge {
	return g.edgesFor(g.out[node.Key()])
}

// NeighborsIn returns edges entering node.
func (g *Graph) NeighborsIn(node catalog.ObjectRef) []Edge {
	return g.edgesFor(g.in[node.Key()])
}

func (g *Graph) edgesFor(indices []int) []Edge {
	out := make([]Edge, len(indices))
	for i, idx := range indices {
		out[i] = g.edges[idx]
	}
	return out
}
