// Package ledger ships the append-only, content-hashed event log spec.md
// treats as an external collaborator (§6). Two backends are provided:
// SQLiteLog for durable storage and MemoryLog for tests and one-shot
// projections. Both satisfy the same Log interface so every projection in
// this module is storage-agnostic.
package ledger

import (
	"context"
	"errors"

	"github.com/onanski/pmm/internal/types"
)

// ErrPermission is wrapped by policy.GatedLog when an append is rejected
// by a policy gate. Callers must surface it, never swallow it (spec.md §6).
var ErrPermission = errors.New("ledger: append rejected")

// ErrNotFound is returned by Get when no event has the requested id.
var ErrNotFound = errors.New("ledger: event not found")

// Log is the append-only event store every projection in this module
// consumes read-only, and that the claim pipeline appends to.
type Log interface {
	// Append adds a new event and returns its assigned id. Ids are
	// monotonically increasing positive integers assigned by the log.
	Append(ctx context.Context, kind string, content string, meta map[string]interface{}) (int64, error)

	// ReadAll returns every event in ascending id order.
	ReadAll(ctx context.Context) ([]types.Event, error)

	// Get returns a single event by id, or ErrNotFound.
	Get(ctx context.Context, id int64) (*types.Event, error)

	// Subscribe registers fn to be called, in append order, after every
	// successful Append. The returned func removes the subscription.
	// Subscribers run synchronously in the appending goroutine — handlers
	// that need to do real work should hand off rather than block here.
	Subscribe(fn func(types.Event)) (unsubscribe func())
}
