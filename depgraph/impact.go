package depgraph

import "github.com/dbforensic/dbforensic/catalog"

// ImpactResult is the reverse-reachable closure of a node: every object that
// transitively depends on it, plus an aggregate count per object kind.
type ImpactResult struct {
	Nodes       []catalog.ObjectRef
	CountByKind map[catalog.ObjectKind]int
}

// Size is the number of objects in the impact set.
func (r ImpactResult) Size() int { return len(r.Nodes) }

// ContainsKind reports whether any impacted object has the given kind.
func (r ImpactResult) ContainsKind(kind catalog.ObjectKind) bool {
	return r.CountByKind[kind] > 0
}

// Impact computes the reverse-reachable closure of node via BFS on reverse
// adjacency (§4.4). The node itself is never included (testable property #4).
func (g *Graph) Impact(node catalog.ObjectRef) ImpactResult {
	visited := map[string]bool{node.Key(): true}
	queue := []catalog.ObjectRef{node}
	var result []catalog.ObjectRef
	counts := make(map[catalog.ObjectKind]int)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.NeighborsIn(cur) {
			if visited[e.Source.Key()] {
				continue
			}
			visited[e.Source.Key()] = true
			result = append(result, e.Source)
			counts[e.Source.Kind]++
			queue = append(queue, e.Source)
		}
	}

	return ImpactResult{Nodes: result, CountByKind: counts}
}

// HotspotRisk labels a table by its incoming-edge count (§4.4).
type HotspotRisk string

const (
	HotspotCritical HotspotRisk = "critical"
	HotspotHigh     HotspotRisk = "high"
	HotspotMedium   HotspotRisk = "medium"
	HotspotLow      HotspotRisk = "low"
)

func hotspotRiskFor(inDegree int) HotspotRisk {
	switch {
	case inDegree >= 20:
		return HotspotCritical
	case inDegree >= 10:
		return HotspotHigh
	case inDegree >= 5:
		return HotspotMedium
	default:
		return HotspotLow
	}
}

// Hotspot pairs a table with its incoming-edge count and risk label.
type Hotspot struct {
	Table    catalog.ObjectRef
	InDegree int
	Risk     HotspotRisk
}

// Hotspots returns the topN tables with the highest in-degree, descending,
// ties broken by FQN (§4.4).
func (g *Graph) Hotspots(topN int) []Hotspot {
	var hotspots []Hotspot
	for _, n := range g.Nodes() {
		if n.Kind != catalog.KindTable {
			continue
		}
		inDegree := len(g.in[n.Key()])
		hotspots = append(hotspots, Hotspot{Table: n, InDegree: inDegree, Risk: hotspotRiskFor(inDegree)})
	}

	for i := 0; i < len(hotspots); i++ {
		for j := i + 1; j < len(hotspots); j++ {
			a, b := hotspots[i], hotspots[j]
			swap := a.InDegree < b.InDegree ||
				(a.InDegree == b.InDegree && a.Table.FQN.Compare(b.Table.FQN) > 0)
			if swap {
				hotspots[i], hotspots[j] = hotspots[j], hotspots[i]
			}
		}
	}

	if topN >= 0 && topN < len(hotspots) {
		hotspots = hotspots[:topN]
	}
	return hotspots
}
