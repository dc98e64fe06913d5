// Package ctl implements the CTLProjection orchestrator (spec.md §4.6):
// it assembles a full ConceptGraph rebuild from a Mirror's concept
// snapshots and open-commitment table, plus MemeGraph-lifted concept
// edges, and pushes the result into a ConceptGraph sink.
package ctl

import (
	"context"
	"fmt"

	"github.com/onanski/pmm/internal/concept"
	"github.com/onanski/pmm/internal/ledger"
	"github.com/onanski/pmm/internal/memegraph"
	"github.com/onanski/pmm/internal/mirror"
	"github.com/onanski/pmm/internal/types"
)

// RebuildFromProjections opens a non-listening Mirror over log, builds the
// event->concept bindings spec.md §4.6 names, lifts them to concept edges
// via the MemeGraph, and rebuilds sink with the result.
func RebuildFromProjections(ctx context.Context, log ledger.Log, sink concept.Graph) error {
	m := mirror.New(log, false)
	if err := m.Rebuild(ctx); err != nil {
		return fmt.Errorf("ctl: rebuild mirror: %w", err)
	}

	snapshots := m.GetConceptSnapshots()

	events, err := log.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("ctl: read ledger: %w", err)
	}

	bindings := buildBindings(m.OpenCommitments(), events)
	edges := memegraph.LiftConceptEdges(events, bindings, nil)

	projectionVersion := m.LastEventID()
	return sink.RebuildFromProjections(snapshots, edges, projectionVersion)
}

func buildBindings(openCommitments map[string]mirror.CommitmentInfo, events []types.Event) memegraph.Bindings {
	bindings := make(memegraph.Bindings)

	for cid, info := range openCommitments {
		bindings[info.EventID] = append(bindings[info.EventID], "commitment:"+cid)
	}

	for _, ev := range events {
		switch ev.Kind {
		case string(types.KindStabilityMetrics):
			bindings[ev.ID] = append(bindings[ev.ID], "metric:stability_score")
		case string(types.KindCoherenceCheck):
			bindings[ev.ID] = append(bindings[ev.ID], "metric:coherence_score")
		case string(types.KindSummaryUpdate):
			bindings[ev.ID] = append(bindings[ev.ID], "topic:summary_state")
		case string(types.KindReflection):
			source := ev.MetaString("source")
			if source == "" {
				source = "user"
			}
			bindings[ev.ID] = append(bindings[ev.ID], "reflection_source:"+source)
		}
	}

	return bindings
}
