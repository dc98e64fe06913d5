package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onanski/pmm/internal/migrate"
)

var migrateForceFlag bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Backfill missing claim_register events from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		log, closeLedger, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer closeLedger()

		emitted, err := migrate.Migrate(ctx, log, migrateForceFlag)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Println(emitted)
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateForceFlag, "force", false, "record force=true in the emitted events' meta (already-registered claims are still skipped)")
}
