package memegraph

import (
	"sort"

	"github.com/onanski/pmm/internal/types"
)

// ConceptEdge is a lifted concept-to-concept edge (spec.md §4.5). It
// mirrors original_source's ConceptEdge TypedDict but exists only as a
// projection-local value, never persisted to the ledger directly.
type ConceptEdge struct {
	SourceID string  `json:"source_id"`
	TargetID string  `json:"target_id"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
}

// Bindings maps an event id to the concept ids bound to it.
type Bindings map[int64][]string

// LiftConceptEdges rebuilds a fresh graph from log and lifts its edges to
// the concept level via bindings (spec.md §4.5). The result is a
// deduplicated set, sorted lexicographically by (source_id, target_id,
// relation).
func LiftConceptEdges(events []types.Event, bindings Bindings, extractor CommitmentExtractor) []ConceptEdge {
	g := New(extractor)
	g.Rebuild(events)

	nodeIDs := make([]int64, 0, len(g.nodes))
	for id := range g.nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })

	type tupleKey struct{ source, target, relation string }
	seen := make(map[tupleKey]bool)
	var result []ConceptEdge

	for _, u := range nodeIDs {
		cu := sortedUniqueConcepts(bindings[u])
		if len(cu) == 0 {
			continue
		}
		for _, v := range g.neighborsLocked(u, DirBoth, "") {
			cv := sortedUniqueConcepts(bindings[v])
			if len(cv) == 0 {
				continue
			}
			label := edgeLabel(g, u, v)
			for _, c1 := range cu {
				for _, c2 := range cv {
					if c1 == c2 {
						continue
					}
					k := tupleKey{c1, c2, label}
					if seen[k] {
						continue
					}
					seen[k] = true
					result = append(result, ConceptEdge{SourceID: c1, TargetID: c2, Relation: label, Weight: 1.0})
				}
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		if a.TargetID != b.TargetID {
			return a.TargetID < b.TargetID
		}
		return a.Relation < b.Relation
	})
	return result
}

func edgeLabel(g *Graph, u, v int64) string {
	for _, e := range g.out[u] {
		if e.to == v {
			return e.label
		}
	}
	for _, e := range g.out[v] {
		if e.to == u {
			return e.label
		}
	}
	return "related"
}

func sortedUniqueConcepts(ids []string) []string {
	set := make(map[string]bool)
	for _, id := range ids {
		if id != "" {
			set[id] = true
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
