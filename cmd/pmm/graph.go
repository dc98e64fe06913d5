package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onanski/pmm/internal/mirror"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Inspect the causal meme-graph",
}

var graphExplainCmd = &cobra.Command{
	Use:   "explain <cid>",
	Short: "Print the commitment thread and its one-hop event subgraph for a commitment id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cid := args[0]

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

		g := m.Graph()
		fmt.Println(renderHeader(fmt.Sprintf("thread_for_cid(%s)", cid)))
		fmt.Println(g.ThreadForCID(cid))
		fmt.Println(renderHeader(fmt.Sprintf("subgraph_for_cid(%s)", cid)))
		fmt.Println(g.SubgraphForCID(cid))
		return nil
	},
}

func init() {
	graphCmd.AddCommand(graphExplainCmd)
}
