// Package migrate implements the always-correct historical backfill of
// claim_register events from assistant_message events (spec.md §4.2).
// spec.md §9 open question (c) is resolved here: Migrate always performs
// the unconditional O(n) scan. NeedsMigration exposes the gated
// fast-path predicate separately, as an optional pre-check a caller may
// use to skip invoking Migrate entirely — but Migrate itself never
// consults it, so results converge regardless of which caller gates it.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/onanski/pmm/internal/canonical"
	"github.com/onanski/pmm/internal/claim"
	"github.com/onanski/pmm/internal/ledger"
	"github.com/onanski/pmm/internal/types"
)

// NeedsMigration reports whether the ledger has assistant_message events
// but no claim_register events at all. This is a fast-path optimization
// only (spec.md §9c) — it is never required before calling Migrate.
func NeedsMigration(events []types.Event) bool {
	hasAssistant := false
	hasClaimRegister := false
	for _, ev := range events {
		switch ev.Kind {
		case string(types.KindAssistantMessage):
			hasAssistant = true
		case string(types.KindClaimRegister):
			hasClaimRegister = true
		}
	}
	return hasAssistant && !hasClaimRegister
}

// Migrate scans the entire ledger and appends claim_register events for
// every claim extracted from an assistant_message whose claim_id is not
// already present among existing claim_register events. It returns the
// number of events appended.
//
// Idempotent: re-running on an unchanged ledger returns 0. Convergent
// under partial failure: an aborted run that emitted some events will, on
// re-invocation, emit exactly the missing remainder (spec.md §4.2).
func Migrate(ctx context.Context, log ledger.Log, force bool) (int, error) {
	events, err := log.ReadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("migrate: read ledger: %w", err)
	}

	seen := existingClaimIDs(events)

	var toEmit []types.ClaimRecord
	for i := range events {
		ev := events[i]
		if ev.Kind != string(types.KindAssistantMessage) {
			continue
		}
		for _, c := range claim.Extract(&ev) {
			if seen[c.ClaimID] {
				continue
			}
			toEmit = append(toEmit, c)
			seen[c.ClaimID] = true // guards duplicates within this batch
		}
	}

	emitted := 0
	for _, c := range toEmit {
		content, err := canonical.Marshal(c)
		if err != nil {
			return emitted, fmt.Errorf("migrate: encode claim %s: %w", c.ClaimID, err)
		}
		_, err = log.Append(ctx, string(types.KindClaimRegister), string(content), map[string]interface{}{
			"source":            "claim_migration",
			"migration_version": "1",
			"force":             force,
		})
		if err != nil {
			return emitted, fmt.Errorf("migrate: append claim %s: %w", c.ClaimID, err)
		}
		emitted++
	}

	return emitted, nil
}

// existingClaimIDs collects claim_id values already present among
// claim_register events. Malformed content is ignored rather than
// aborting the scan (spec.md §4.2 failure semantics).
func existingClaimIDs(events []types.Event) map[string]bool {
	seen := make(map[string]bool)
	for _, ev := range events {
		if ev.Kind != string(types.KindClaimRegister) {
			continue
		}
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(ev.Content), &data); err != nil {
			continue
		}
		id, ok := data["claim_id"].(string)
		if !ok || id == "" {
			continue
		}
		seen[id] = true
	}
	return seen
}
