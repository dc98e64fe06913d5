package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onanski/pmm/internal/mirror"
)

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Print the number of open knowledge gaps in the self-model",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		log, closeLedger, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer closeLedger()

		m := mirror.New(log, false)
		defer m.Close()
		if err := m.Rebuild(ctx); err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}

		fmt.Println(m.RSMKnowledgeGaps())
		return nil
	},
}
