package main

import (
	"fmt"

	"github.com/onanski/pmm/internal/config"
	"github.com/onanski/pmm/internal/ledger"
	"github.com/onanski/pmm/internal/policy"
)

// openLedger opens the configured backend, wrapped in a policy.GatedLog
// under the configured caller identity, plus a close func that callers
// must call when done: it closes a SQLite backend and does nothing for
// MemoryLog.
func openLedger(cfg config.Config) (ledger.Log, func(), error) {
	var log ledger.Log
	var closeFn func()

	switch cfg.Backend {
	case config.BackendMemory, "":
		log, closeFn = ledger.NewMemoryLog(), func() {}
	case config.BackendSQLite:
		sqliteLog, err := ledger.OpenSQLiteLog(cfg.LedgerPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open ledger: %w", err)
		}
		log, closeFn = sqliteLog, func() { _ = sqliteLog.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}

	caller := cfg.Caller
	if caller == "" {
		caller = "cli"
	}
	return policy.NewGatedLog(log, policy.NewGate(), caller), closeFn, nil
}
