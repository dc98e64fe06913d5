package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/onanski/pmm/internal/eventbus"
	"github.com/onanski/pmm/internal/mirror"
	"github.com/onanski/pmm/internal/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a listening Mirror over the configured ledger until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		log, closeLedger, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer closeLedger()

		m := mirror.New(log, true)
		defer m.Close()
		if err := m.Rebuild(ctx); err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}

		bus := eventbus.New()
		if cfg.NATSURL != "" {
			nc, err := nats.Connect(cfg.NATSURL)
			if err != nil {
				return fmt.Errorf("connect nats: %w", err)
			}
			defer nc.Close()
			js, err := nc.JetStream()
			if err != nil {
				return fmt.Errorf("open jetstream: %w", err)
			}
			if err := eventbus.EnsureStream(js); err != nil {
				return fmt.Errorf("ensure stream: %w", err)
			}
			bus.SetJetStream(js)
		}

		fmt.Println(renderHeader("pmm serve"))
		fmt.Printf("  ledger: %s (%s)\n", cfg.LedgerPath, cfg.Backend)
		fmt.Printf("  nats: %v\n", bus.JetStreamEnabled())
		fmt.Println(mutedStyle.Render("listening for ledger events, ctrl-c to stop"))

		unsubscribe := log.Subscribe(func(event types.Event) {
			_ = bus.Dispatch(ctx, event)
		})
		defer unsubscribe()

		<-ctx.Done()
		return nil
	},
}
