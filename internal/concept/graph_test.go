package concept_test

import (
	"testing"

	"github.com/onanski/pmm/internal/concept"
	"github.com/onanski/pmm/internal/memegraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebuildFromProjectionsReplacesWholesale(t *testing.T) {
	g := concept.NewMemoryGraph()

	err := g.RebuildFromProjections(map[string]interface{}{"a": 1}, []memegraph.ConceptEdge{
		{SourceID: "a", TargetID: "b", Relation: "related", Weight: 1.0},
	}, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), g.ProjectionVersion())
	assert.Len(t, g.Edges(), 1)

	err = g.RebuildFromProjections(map[string]interface{}{}, nil, 6)
	require.NoError(t, err)
	assert.Empty(t, g.Edges())
	assert.Equal(t, int64(6), g.ProjectionVersion())
}

func TestRebuildFromProjectionsIsIdempotent(t *testing.T) {
	g := concept.NewMemoryGraph()
	edges := []memegraph.ConceptEdge{{SourceID: "a", TargetID: "b", Relation: "related", Weight: 1.0}}

	require.NoError(t, g.RebuildFromProjections(map[string]interface{}{"a": 1}, edges, 1))
	first := g.Edges()
	require.NoError(t, g.RebuildFromProjections(map[string]interface{}{"a": 1}, edges, 1))
	assert.Equal(t, first, g.Edges())
}
