package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/onanski/pmm/internal/config"
	"github.com/onanski/pmm/internal/mirror"
)

var (
	rsmAsciiFlag bool
	rsmWatchFlag bool
)

// watchDebounce coalesces the burst of filesystem events a single sqlite
// write produces into one re-render, grounded on the teacher's
// cmd/bd/list.go debounce timer around its issues.jsonl watcher.
const watchDebounce = 150 * time.Millisecond

var rsmCmd = &cobra.Command{
	Use:   "rsm [<id> | diff <a> <b>]",
	Short: "Print a self-model snapshot, or diff two ledger prefixes",
	RunE:  runRSM,
}

func init() {
	rsmCmd.Flags().BoolVar(&rsmAsciiFlag, "ascii", false, "use an ASCII arrow in the diff header")
	rsmCmd.Flags().BoolVar(&rsmWatchFlag, "watch", false, "re-print the snapshot whenever the sqlite ledger file changes")
}

func runRSM(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	log, closeLedger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	m := mirror.New(log, false)
	defer m.Close()

	if len(args) > 0 && args[0] == "diff" {
		if len(args) != 3 {
			return errors.New("usage: pmm rsm diff <a> <b>")
		}
		a, err := parseEventID(args[1])
		if err != nil {
			fmt.Println(err.Error())
			return nil
		}
		b, err := parseEventID(args[2])
		if err != nil {
			fmt.Println(err.Error())
			return nil
		}
		if err := m.Rebuild(ctx); err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}
		diff, err := m.DiffRSM(ctx, a, b)
		if err != nil {
			return fmt.Errorf("diff rsm: %w", err)
		}
		printDiffHeader(a, b)
		printDiff(diff)
		return nil
	}

	if err := m.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	if len(args) == 1 {
		id, err := parseEventID(args[0])
		if err != nil {
			fmt.Println(err.Error())
			return nil
		}
		events, err := log.ReadAll(ctx)
		if err != nil {
			return err
		}
		snap := mirror.SnapshotAtPrefix(ctx, events, id)
		return printSnapshot(snap)
	}

	if rsmWatchFlag {
		return watchSnapshot(ctx, m)
	}

	return printSnapshot(m.RSMSnapshot())
}

// watchSnapshot re-prints the snapshot whenever the sqlite ledger file is
// written to, grounded on the teacher's cmd/bd/list.go fsnotify watch
// loop: watch the file, debounce bursts of writes, rebuild and
// re-render. Only the sqlite backend has a file worth watching.
func watchSnapshot(ctx context.Context, m *mirror.Mirror) error {
	if cfg.Backend != config.BackendSQLite {
		return fmt.Errorf("--watch requires the %s backend", config.BackendSQLite)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("rsm watch: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(cfg.LedgerPath); err != nil {
		return fmt.Errorf("rsm watch: watch %s: %w", cfg.LedgerPath, err)
	}

	sigCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Println(mutedStyle.Render(fmt.Sprintf("watching %s, ctrl-c to stop", cfg.LedgerPath)))
	_ = printSnapshot(m.RSMSnapshot())

	var debounce *time.Timer
	render := func() {
		if err := m.Rebuild(sigCtx); err != nil {
			fmt.Fprintf(os.Stderr, "rsm watch: rebuild: %v\n", err)
			return
		}
		_ = printSnapshot(m.RSMSnapshot())
	}

	for {
		select {
		case <-sigCtx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, render)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "rsm watch: %v\n", err)
		}
	}
}

// parseEventID enforces spec.md §6's exact error strings for malformed
// ledger-prefix ids.
func parseEventID(raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("Event ids must be integers.")
	}
	if n < 0 {
		return 0, errors.New("Event ids must be non-negative integers.")
	}
	return n, nil
}

func printDiffHeader(a, b int64) {
	arrow := "→"
	if rsmAsciiFlag {
		arrow = "->"
	}
	fmt.Println(renderHeader(fmt.Sprintf("RSM Diff (%d %s %d)", a, arrow, b)))
}

func printDiff(d mirror.Diff) {
	keys := make([]string, 0, len(d.TendenciesDelta))
	for k := range d.TendenciesDelta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %+.2f\n", k, d.TendenciesDelta[k])
	}
	sort.Strings(d.GapsAdded)
	sort.Strings(d.GapsResolved)
	for _, g := range d.GapsAdded {
		fmt.Printf("  + gap: %s\n", g)
	}
	for _, g := range d.GapsResolved {
		fmt.Printf("  - gap: %s\n", g)
	}
}

func printSnapshot(snap interface{}) error {
	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
