// Package policy implements the sensitive-write gate spec.md §5 and §7
// name as an external collaborator consulted only at the ledger append
// boundary. The core projections (RSM, ClaimMigrator) never originate a
// sensitive kind and never consult this package directly.
package policy

import (
	"context"
	"fmt"

	"github.com/onanski/pmm/internal/ledger"
	"github.com/onanski/pmm/internal/types"
)

// sensitiveKinds are forbidden for the "cli" caller. rsm_update and
// claim_register are deliberately absent — spec.md §5 requires they
// remain permitted regardless of caller.
var sensitiveKinds = map[string]bool{
	string(types.KindConfig):             true,
	string(types.KindCheckpointManifest): true,
	string(types.KindEmbeddingAdd):       true,
	string(types.KindRetrievalSelection): true,
}

// Gate decides whether a caller may append a given event kind.
type Gate struct{}

// NewGate returns the default policy gate.
func NewGate() *Gate {
	return &Gate{}
}

// Allow reports an error when caller "cli" attempts to append a sensitive
// kind. Every other (caller, kind) combination is permitted.
func (g *Gate) Allow(caller string, kind string) error {
	if caller == "cli" && sensitiveKinds[kind] {
		return fmt.Errorf("policy: caller %q may not append kind %q", caller, kind)
	}
	return nil
}

// GatedLog wraps a ledger.Log so every Append is checked against a Gate
// for a fixed caller identity before reaching the underlying log.
type GatedLog struct {
	ledger.Log
	gate   *Gate
	caller string
}

// NewGatedLog returns a Log that enforces gate.Allow(caller, kind) on
// every Append, wrapping rejections in ledger.ErrPermission.
func NewGatedLog(log ledger.Log, gate *Gate, caller string) *GatedLog {
	return &GatedLog{Log: log, gate: gate, caller: caller}
}

func (g *GatedLog) Append(ctx context.Context, kind, content string, meta map[string]interface{}) (int64, error) {
	if err := g.gate.Allow(g.caller, kind); err != nil {
		return 0, fmt.Errorf("%w: %v", ledger.ErrPermission, err)
	}
	return g.Log.Append(ctx, kind, content, meta)
}

var _ ledger.Log = (*GatedLog)(nil)
