package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/onanski/pmm/internal/canonical"
	"github.com/onanski/pmm/internal/hashid"
	"github.com/onanski/pmm/internal/types"
)

// MemoryLog is an in-process Log backend, grounded on the teacher's
// storage/memory conventions: a mutex-protected slice acting as the
// source of truth, with no persistence across process restarts. Used for
// tests and for Mirror's listen=false one-shot rebuilds.
type MemoryLog struct {
	mu       sync.Mutex
	events   []types.Event
	subs     []func(types.Event)
	nowFunc  func() time.Time
}

// NewMemoryLog returns an empty MemoryLog.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{nowFunc: time.Now}
}

func (m *MemoryLog) Append(_ context.Context, kind, content string, meta map[string]interface{}) (int64, error) {
	m.mu.Lock()
	id := int64(len(m.events) + 1)
	var prevHash string
	if len(m.events) > 0 {
		prevHash = m.events[len(m.events)-1].Hash
	}
	metaJSON, err := canonical.Marshal(meta)
	if err != nil {
		m.mu.Unlock()
		return 0, err
	}
	ev := types.Event{
		ID:       id,
		Ts:       m.nowFunc().UTC().Format(time.RFC3339Nano),
		Kind:     kind,
		Content:  content,
		Meta:     meta,
		PrevHash: prevHash,
		Hash:     hashid.EventHash(prevHash, kind, content, string(metaJSON)),
	}
	m.events = append(m.events, ev)
	subs := append([]func(types.Event){}, m.subs...)
	m.mu.Unlock()

	for _, fn := range subs {
		if fn != nil {
			fn(ev)
		}
	}
	return id, nil
}

func (m *MemoryLog) ReadAll(_ context.Context) ([]types.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Event, len(m.events))
	copy(out, m.events)
	return out, nil
}

func (m *MemoryLog) Get(_ context.Context, id int64) (*types.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].ID == id {
			ev := m.events[i]
			return &ev, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryLog) Subscribe(fn func(types.Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
	idx := len(m.subs) - 1
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if idx < len(m.subs) {
			m.subs[idx] = nil
		}
	}
}

var _ Log = (*MemoryLog)(nil)
