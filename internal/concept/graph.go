// Package concept ships the ConceptGraph sink spec.md §6 names as an
// external collaborator: rebuild_from_projections(concepts, edges,
// projection_version), fully replacing the graph on each call.
package concept

import (
	"sync"

	"github.com/onanski/pmm/internal/memegraph"
)

// Graph is the sink CTLProjection pushes rebuilt concept state into.
type Graph interface {
	// RebuildFromProjections fully replaces the graph's concept nodes and
	// edges. Idempotent under equal inputs (spec.md §6).
	RebuildFromProjections(concepts map[string]interface{}, edges []memegraph.ConceptEdge, projectionVersion int64) error
}

// MemoryGraph is an in-process reference implementation of Graph, for
// tests and single-process use (spec.md §6).
type MemoryGraph struct {
	mu sync.RWMutex

	concepts          map[string]interface{}
	edges             []memegraph.ConceptEdge
	projectionVersion int64
}

// NewMemoryGraph returns an empty MemoryGraph.
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{concepts: map[string]interface{}{}}
}

// RebuildFromProjections replaces concepts, edges, and the projection
// version wholesale.
func (g *MemoryGraph) RebuildFromProjections(concepts map[string]interface{}, edges []memegraph.ConceptEdge, projectionVersion int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if concepts == nil {
		concepts = map[string]interface{}{}
	}
	g.concepts = concepts
	g.edges = append([]memegraph.ConceptEdge(nil), edges...)
	g.projectionVersion = projectionVersion
	return nil
}

// Concepts returns the currently stored concept nodes.
func (g *MemoryGraph) Concepts() map[string]interface{} {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.concepts
}

// Edges returns the currently stored concept edges.
func (g *MemoryGraph) Edges() []memegraph.ConceptEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges
}

// ProjectionVersion returns the monotonic version of the last rebuild.
func (g *MemoryGraph) ProjectionVersion() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.projectionVersion
}

var _ Graph = (*MemoryGraph)(nil)
