// Package mirror implements the long-lived projection facade spec.md
// §4.7 names Mirror: it owns an RSM instance and a MemeGraph instance,
// drives incremental updates from the ledger, and exposes the query
// surface CTLProjection and the CLI consume.
package mirror

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/onanski/pmm/internal/canonical"
	"github.com/onanski/pmm/internal/claim"
	"github.com/onanski/pmm/internal/ledger"
	"github.com/onanski/pmm/internal/memegraph"
	"github.com/onanski/pmm/internal/rsm"
	"github.com/onanski/pmm/internal/types"
)

// CommitmentInfo is the value type of Mirror's open-commitment table.
type CommitmentInfo struct {
	EventID int64  `json:"event_id"`
	Text    string `json:"text"`
}

// Diff is the result of DiffRSM: per-key numeric tendency deltas
// (omitting zero deltas) plus the symmetric difference of knowledge gaps.
type Diff struct {
	TendenciesDelta map[string]float64 `json:"tendencies_delta"`
	GapsAdded       []string           `json:"gaps_added"`
	GapsResolved    []string           `json:"gaps_resolved"`
}

// Mirror owns one RSM model and one MemeGraph, and serializes every
// incremental update through its own mutex (spec.md §5 — RSM itself is
// unsynchronized; Mirror is the caller that serializes observe calls).
type Mirror struct {
	mu sync.Mutex

	log   ledger.Log
	rsmModel *rsm.Model
	graph *memegraph.Graph

	openCommitments map[string]CommitmentInfo
	unsubscribe     func()
}

// New constructs a Mirror over log. When listen is true it subscribes to
// the log's append notifications and drives itself incrementally;
// otherwise it only updates on an explicit Sync or Rebuild call.
func New(log ledger.Log, listen bool) *Mirror {
	m := &Mirror{
		log:             log,
		graph:           memegraph.New(nil),
		openCommitments: make(map[string]CommitmentInfo),
	}
	m.rsmModel = rsm.New(log, m)
	if listen {
		m.unsubscribe = log.Subscribe(func(ev types.Event) {
			// The Mirror's own appends (rsm_update from its RSM sink, and
			// claim_register from Sync's extraction) are delivered here
			// synchronously while m.mu is held; they are already applied,
			// so they are skipped instead of re-entering Sync.
			if ev.Kind == string(types.KindRSMUpdate) ||
				(ev.Kind == string(types.KindClaimRegister) && ev.MetaString("source") == "claim_extractor") {
				return
			}
			m.Sync(context.Background(), ev)
		})
	}
	return m
}

// Close unsubscribes from the ledger, if this Mirror was created with
// listen=true. Safe to call on a non-listening Mirror.
func (m *Mirror) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// ConceptMetrics implements rsm.ConceptMetricsProvider by reporting a
// summary of the MemeGraph's current shape. RSM swallows any error from
// this method and substitutes an empty map; this implementation never
// errors.
func (m *Mirror) ConceptMetrics() (map[string]interface{}, error) {
	stats := m.graph.GraphStats()
	return map[string]interface{}{
		"concept_node_count": stats.Nodes,
		"concept_edge_count": stats.Edges,
	}, nil
}

// Sync is the incremental entry point: it feeds event into the MemeGraph
// and the RSM, and — for assistant messages — runs claim extraction and
// appends any newly discovered claims as claim_register events before
// observing those too (spec.md §2's data flow diagram).
func (m *Mirror) Sync(ctx context.Context, event types.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncLocked(ctx, event)
}

func (m *Mirror) syncLocked(ctx context.Context, event types.Event) {
	m.graph.AddEvent(&event)
	m.trackCommitmentLocked(&event)
	m.rsmModel.Observe(ctx, &event)

	if event.Kind != string(types.KindAssistantMessage) {
		return
	}
	for _, c := range claim.Extract(&event) {
		content, err := canonical.Marshal(c)
		if err != nil {
			continue
		}
		id, err := m.log.Append(ctx, string(types.KindClaimRegister), string(content), map[string]interface{}{
			"source": "claim_extractor",
		})
		if err != nil {
			continue
		}
		registered := types.Event{ID: id, Kind: string(types.KindClaimRegister), Content: string(content)}
		m.graph.AddEvent(&registered)
		m.rsmModel.Observe(ctx, &registered)
	}
}

func (m *Mirror) trackCommitmentLocked(event *types.Event) {
	switch event.Kind {
	case string(types.KindCommitmentOpen):
		cid, _ := event.Meta["cid"].(string)
		if cid == "" {
			return
		}
		text, _ := event.Meta["text"].(string)
		m.openCommitments[cid] = CommitmentInfo{EventID: event.ID, Text: text}
	case string(types.KindCommitmentClose):
		cid, _ := event.Meta["cid"].(string)
		if cid == "" {
			return
		}
		delete(m.openCommitments, cid)
	}
}

// Rebuild performs a full on-demand rebuild from the ledger (listen=false
// mode): it does not re-run claim extraction, since that is expected to
// have already produced claim_register events on the ledger (live, or via
// ClaimMigrator).
// Rebuild replays every ledger event into the graph and RSM from scratch.
// The graph rebuilds concurrently with commitment tracking, which runs on
// the calling goroutine since it mutates Mirror's own map directly. The
// RSM rebuilds after the graph has finished, because its snapshot's
// concept_metrics reads the graph.
func (m *Mirror) Rebuild(ctx context.Context) error {
	events, err := m.log.ReadAll(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		m.graph.Rebuild(events)
		return nil
	})

	m.openCommitments = make(map[string]CommitmentInfo)
	for i := range events {
		m.trackCommitmentLocked(&events[i])
	}

	if err := g.Wait(); err != nil {
		return err
	}
	m.rsmModel.Rebuild(ctx, events)
	return nil
}

// RSMSnapshot returns the current RSM snapshot.
func (m *Mirror) RSMSnapshot() rsm.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rsmModel.Snapshot()
}

// RSMKnowledgeGaps returns the count of currently tracked knowledge gaps.
func (m *Mirror) RSMKnowledgeGaps() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rsmModel.Snapshot().KnowledgeGaps)
}

// GetClaims returns every active claim known to the RSM.
func (m *Mirror) GetClaims() []types.ClaimRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rsmModel.GetClaims()
}

// GetClaimByID looks up a single active claim.
func (m *Mirror) GetClaimByID(id string) (types.ClaimRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rsmModel.GetClaimByID(id)
}

// GetConceptSnapshots returns the concept nodes Mirror currently knows
// about: one entry per open commitment, keyed "commitment:<cid>".
func (m *Mirror) GetConceptSnapshots() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]interface{}, len(m.openCommitments))
	for cid, info := range m.openCommitments {
		out["commitment:"+cid] = map[string]interface{}{
			"event_id": info.EventID,
			"text":     info.Text,
		}
	}
	return out
}

// OpenCommitments returns a copy of the open-commitment table.
func (m *Mirror) OpenCommitments() map[string]CommitmentInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]CommitmentInfo, len(m.openCommitments))
	for k, v := range m.openCommitments {
		out[k] = v
	}
	return out
}

// Graph exposes the underlying MemeGraph for read-only queries (thread
// and frontier lookups used by the CLI and CTLProjection).
func (m *Mirror) Graph() *memegraph.Graph {
	return m.graph
}

// LastEventID returns the highest event id the RSM has observed, used by
// CTLProjection as a monotonic projection version.
func (m *Mirror) LastEventID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rsmModel.LastEventID()
}

// DiffRSM rebuilds RSM over the prefix <= a and <= b and diffs the
// resulting snapshots. When a == b, returns an empty diff without
// rebuilding twice (spec.md §4.7, §8).
func (m *Mirror) DiffRSM(ctx context.Context, a, b int64) (Diff, error) {
	if a == b {
		return Diff{TendenciesDelta: map[string]float64{}, GapsAdded: []string{}, GapsResolved: []string{}}, nil
	}

	events, err := m.log.ReadAll(ctx)
	if err != nil {
		return Diff{}, err
	}

	snapA := SnapshotAtPrefix(ctx, events, a)
	snapB := SnapshotAtPrefix(ctx, events, b)

	return diffSnapshots(snapA, snapB), nil
}

// SnapshotAtPrefix rebuilds an RSM snapshot over the portion of events
// with id <= maxID, without mutating any live Mirror or RSM state. Used
// by DiffRSM and by the CLI's `pmm rsm <id>` form.
func SnapshotAtPrefix(ctx context.Context, events []types.Event, maxID int64) rsm.Snapshot {
	var prefix []types.Event
	for _, ev := range events {
		if ev.ID > maxID {
			break
		}
		prefix = append(prefix, ev)
	}
	m := rsm.New(nil, nil)
	m.Rebuild(ctx, prefix)
	return m.Snapshot()
}

func diffSnapshots(a, b rsm.Snapshot) Diff {
	delta := make(map[string]float64)
	keys := make(map[string]bool)
	for k := range a.BehavioralTendencies {
		keys[k] = true
	}
	for k := range b.BehavioralTendencies {
		keys[k] = true
	}
	for k := range keys {
		d := b.BehavioralTendencies[k] - a.BehavioralTendencies[k]
		if d != 0 {
			delta[k] = d
		}
	}

	aGaps := toSet(a.KnowledgeGaps)
	bGaps := toSet(b.KnowledgeGaps)

	added := make([]string, 0)
	for g := range bGaps {
		if !aGaps[g] {
			added = append(added, g)
		}
	}
	resolved := make([]string, 0)
	for g := range aGaps {
		if !bGaps[g] {
			resolved = append(resolved, g)
		}
	}
	sort.Strings(added)
	sort.Strings(resolved)

	return Diff{TendenciesDelta: delta, GapsAdded: added, GapsResolved: resolved}
}

func toSet(ss []string) map[string]bool {
	out := make(map[string]bool, len(ss))
	for _, s := range ss {
		out[s] = true
	}
	return out
}
