package depgraph

import "github.com/dbforensic/dbforensic/catalog"

// Cycle is one strongly-connected component of size >= 2, or a singleton
// node with a self-loop, rotated so its lexicographically smallest FQN
// comes first for stable output (§4.4).
type Cycle struct {
	Nodes []catalog.ObjectRef
}

// Cycles runs Tarjan's algorithm over the flattened graph (parallel edges
// between the same pair collapse to one adjacency for SCC purposes) and
// returns every SCC that qualifies as a cycle.
func (g *Graph) Cycles() []Cycle {
	t := &tarjan{
		graph:   g,
		index:   make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}

	for _, n := range g.Nodes() {
		if _, visited := t.index[n.Key()]; !visited {
			t.strongConnect(n)
		}
	}

	var cycles []Cycle
	for _, scc := range t.sccs {
		if len(scc) >= 2 || selfLoop(g, scc[0]) {
			cycles = append(cycles, Cycle{Nodes: rotateSmallestFirst(scc)})
		}
	}
	return cycles
}

func selfLoop(g *Graph, node catalog.ObjectRef) bool {
	for _, e := range g.NeighborsOut(node) {
		if e.Target.Key() == node.Key() {
			return true
		}
	}
	return false
}

func rotateSmallestFirst(nodes []catalog.ObjectRef) []catalog.ObjectRef {
	if len(nodes) <= 1 {
		return nodes
	}
	minIdx := 0
	for i := 1; i < len(nodes); i++ {
		if nodes[i].FQN.Compare(nodes[minIdx].FQN) < 0 {
			minIdx = i
		}
	}
	out := make([]catalog.ObjectRef, 0, len(nodes))
	out = append(out, nodes[minIdx:]...)
	out = append(out, nodes[:minIdx]...)
	return out
}

// tarjan carries the mutable state for a single run of Tarjan's SCC algorithm.
type tarjan struct {
	graph   *Graph
	counter int
	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []catalog.ObjectRef
	sccs    [][]catalog.ObjectRef
}

func (t *tarjan) strongConnect(v catalog.ObjectRef) {
	t.index[v.Key()] = t.counter
	t.lowlink[v.Key()] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v.Key()] = true

	seenTargets := make(map[string]bool)
	for _, e := range t.graph.NeighborsOut(v) {
		w := e.Target
		if seenTargets[w.Key()] {
			continue // flatten parallel edges for SCC purposes
		}
		seenTargets[w.Key()] = true

		if _, visited := t.index[w.Key()]; !visited {
			t.strongConnect(w)
			if t.lowlink[w.Key()] < t.lowlink[v.Key()] {
				t.lowlink[v.Key()] = t.lowlink[w.Key()]
			}
		} else if t.onStack[w.Key()] {
			if t.index[w.Key()] < t.lowlink[v.Key()] {
				t.lowlink[v.Key()] = t.index[w.Key()]
			}
		}
	}

	if t.lowlink[v.Key()] == t.index[v.Key()] {
		var scc []catalog.ObjectRef
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w.Key()] = false
			scc = append(scc, w)
			if w.Key() == v.Key() {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}
