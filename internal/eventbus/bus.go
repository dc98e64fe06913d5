// Package eventbus adapts the teacher's hook-event bus pattern to the
// ledger domain: a Bus dispatches ledger events to registered handlers in
// priority order and, when a JetStream context is attached, publishes
// each event to the LEDGER_EVENTS stream fire-and-forget. It gives the
// ledger an optional distributed tap without making NATS a dependency of
// the core projections — Mirror and RSM never import this package.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"

	"github.com/onanski/pmm/internal/types"
)

// publishMaxElapsed bounds how long a single JetStream publish retries a
// transient NATS error before giving up, grounded on the teacher's
// server-mode retry window in internal/storage/dolt.
const publishMaxElapsed = 5 * time.Second

// Handler reacts to ledger events dispatched through a Bus.
type Handler interface {
	ID() string
	Priority() int
	Handle(ctx context.Context, event types.Event) error
}

// Bus dispatches ledger events to registered handlers and optionally
// publishes them to NATS JetStream.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	js       nats.JetStreamContext
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{}
}

// SetJetStream attaches a JetStream context. Once set, Dispatch also
// publishes events to the LEDGER_EVENTS stream.
func (b *Bus) SetJetStream(js nats.JetStreamContext) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.js = js
}

// JetStreamEnabled reports whether a JetStream context is attached.
func (b *Bus) JetStreamEnabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.js != nil
}

// Register adds a handler. Handlers are sorted by priority on each
// Dispatch call, so registration order does not matter.
func (b *Bus) Register(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Unregister removes a handler by id. Returns true if one was removed.
func (b *Bus) Unregister(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, h := range b.handlers {
		if h.ID() == id {
			b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// Dispatch runs every registered handler, in priority order (lowest
// first), against event. Handler errors are logged but never stop the
// chain. If JetStream is configured, the event is also published,
// fire-and-forget.
func (b *Bus) Dispatch(ctx context.Context, event types.Event) error {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	js := b.js
	b.mu.RUnlock()

	sort.Slice(handlers, func(i, j int) bool { return handlers[i].Priority() < handlers[j].Priority() })

	for _, h := range handlers {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("eventbus: context canceled: %w", err)
		}
		if err := h.Handle(ctx, event); err != nil {
			log.Printf("eventbus: handler %q error for event %d (%s): %v", h.ID(), event.ID, event.Kind, err)
		}
	}

	if js != nil {
		b.publishToJetStream(js, event)
	}
	return nil
}

func (b *Bus) publishToJetStream(js nats.JetStreamContext, event types.Event) {
	subject := SubjectForKind(event.Kind)
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("eventbus: failed to marshal event %d for JetStream: %v", event.ID, err)
		return
	}

	var ack *nats.PubAck
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = publishMaxElapsed
	err = backoff.Retry(func() error {
		var publishErr error
		ack, publishErr = js.Publish(subject, data)
		return publishErr
	}, bo)
	if err != nil {
		log.Printf("eventbus: JetStream publish to %s failed: %v", subject, err)
		return
	}
	log.Printf("eventbus: published event %d to %s (stream=%s seq=%d)", event.ID, subject, ack.Stream, ack.Sequence)
}

// Handlers returns a copy of the registered handlers, for introspection.
func (b *Bus) Handlers() []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Handler, len(b.handlers))
	copy(out, b.handlers)
	return out
}
