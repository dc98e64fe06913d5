package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onanski/pmm/internal/concept"
	"github.com/onanski/pmm/internal/ctl"
	"github.com/onanski/pmm/internal/migrate"
)

var pmCmd = &cobra.Command{
	Use:   "pm",
	Short: "Project-management style maintenance operations",
}

var pmCheckpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Force a full migrate + meme-graph rebuild + concept-graph projection pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		log, closeLedger, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer closeLedger()

		emitted, err := migrate.Migrate(ctx, log, false)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		sink := concept.NewMemoryGraph()
		if err := ctl.RebuildFromProjections(ctx, log, sink); err != nil {
			return fmt.Errorf("rebuild projections: %w", err)
		}

		fmt.Println(renderHeader("checkpoint"))
		fmt.Printf("  claims_migrated: %d\n", emitted)
		fmt.Printf("  concept_nodes: %d\n", len(sink.Concepts()))
		fmt.Printf("  concept_edges: %d\n", len(sink.Edges()))
		fmt.Printf("  projection_version: %d\n", sink.ProjectionVersion())
		return nil
	},
}

func init() {
	pmCmd.AddCommand(pmCheckpointCmd)
}
