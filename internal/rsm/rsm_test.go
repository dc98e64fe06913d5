package rsm_test

import (
	"context"
	"testing"

	"github.com/onanski/pmm/internal/canonical"
	"github.com/onanski/pmm/internal/claim"
	"github.com/onanski/pmm/internal/hashid"
	"github.com/onanski/pmm/internal/ledger"
	"github.com/onanski/pmm/internal/rsm"
	"github.com/onanski/pmm/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerClaim(t *testing.T, log ledger.Log, c types.ClaimRecord) int64 {
	t.Helper()
	content, err := canonical.Marshal(c)
	require.NoError(t, err)
	id, err := log.Append(context.Background(), "claim_register", string(content), nil)
	require.NoError(t, err)
	return id
}

func TestEmptyModelSnapshotHasZeroActiveClaims(t *testing.T) {
	m := rsm.New(nil, nil)
	snap := m.Snapshot()
	assert.Equal(t, 0, snap.ActiveClaimCount)
	assert.Empty(t, snap.KnowledgeGaps)
	assert.Empty(t, snap.ContradictionEvents)
}

func TestRebuildIsStructurallyEqualAcrossRuns(t *testing.T) {
	mem := ledger.NewMemoryLog()
	registerClaim(t, mem, types.ClaimRecord{
		ClaimID: "aaa", Type: "BELIEF", Subject: "self",
		Predicate: "is_deterministic", Strength: 1.0, Status: types.ClaimStatusActive,
	})
	events, err := mem.ReadAll(context.Background())
	require.NoError(t, err)

	a := rsm.New(nil, nil)
	a.Rebuild(context.Background(), events)
	b := rsm.New(nil, nil)
	b.Rebuild(context.Background(), events)

	assert.True(t, canonical.Equal(a.Snapshot(), b.Snapshot()))
}

func TestContradictionDetection(t *testing.T) {
	stability := "stability"
	novelty := "novelty"
	m := rsm.New(nil, nil)

	id1 := hashid.ClaimID(1, "CLAIM: x")
	id2 := hashid.ClaimID(2, "CLAIM: y")

	mem := ledger.NewMemoryLog()
	registerClaim(t, mem, types.ClaimRecord{
		ClaimID: id1, Type: "CLAIM", Subject: "self",
		Predicate: "prioritizes", Object: &stability, Strength: 1.0, Status: types.ClaimStatusActive,
	})
	registerClaim(t, mem, types.ClaimRecord{
		ClaimID: id2, Type: "CLAIM", Subject: "self",
		Predicate: "prioritizes", Object: &novelty, Strength: 1.0, Status: types.ClaimStatusActive,
	})

	events, err := mem.ReadAll(context.Background())
	require.NoError(t, err)
	m.Rebuild(context.Background(), events)

	snap := m.Snapshot()
	assert.ElementsMatch(t, []string{id1, id2}, snap.ContradictionEvents)
	assert.Contains(t, snap.InteractionMetaPatterns, "contradictions_detected:2")
}

func TestTopTendenciesAggregatesRepeatedPredicate(t *testing.T) {
	mem := ledger.NewMemoryLog()
	registerClaim(t, mem, types.ClaimRecord{
		ClaimID: "id1", Type: "CLAIM", Subject: "self",
		Predicate: "is_deterministic", Strength: 1.0, Status: types.ClaimStatusActive,
	})
	registerClaim(t, mem, types.ClaimRecord{
		ClaimID: "id2", Type: "CLAIM", Subject: "self",
		Predicate: "is_deterministic", Strength: 0.5, Status: types.ClaimStatusActive,
	})

	events, err := mem.ReadAll(context.Background())
	require.NoError(t, err)

	m := rsm.New(nil, nil)
	m.Rebuild(context.Background(), events)

	snap := m.Snapshot()
	require.NotEmpty(t, snap.TopTendencies)
	top := snap.TopTendencies[0]
	assert.Equal(t, "is_deterministic", top.Predicate)
	assert.Equal(t, 1.50, top.Strength)
	assert.Equal(t, 2, top.Sources)

	assert.InDelta(t, 0.75, snap.BehavioralTendencies["determinism_emphasis"], 1e-9)
}

func TestBehavioralTendenciesIncludesPerTypeCounts(t *testing.T) {
	mem := ledger.NewMemoryLog()
	registerClaim(t, mem, types.ClaimRecord{
		ClaimID: "b1", Type: "BELIEF", Subject: "self",
		Predicate: "trusts_replay", Strength: 1.0, Status: types.ClaimStatusActive,
	})
	registerClaim(t, mem, types.ClaimRecord{
		ClaimID: "b2", Type: "BELIEF", Subject: "self",
		Predicate: "trusts_determinism", Strength: 1.0, Status: types.ClaimStatusActive,
	})
	registerClaim(t, mem, types.ClaimRecord{
		ClaimID: "v1", Type: "VALUE", Subject: "self",
		Predicate: "values_consistency", Strength: 1.0, Status: types.ClaimStatusActive,
	})

	events, err := mem.ReadAll(context.Background())
	require.NoError(t, err)

	m := rsm.New(nil, nil)
	m.Rebuild(context.Background(), events)

	snap := m.Snapshot()
	assert.Equal(t, 2.0, snap.BehavioralTendencies["belief_count"])
	assert.Equal(t, 1.0, snap.BehavioralTendencies["value_count"])
	assert.NotContains(t, snap.BehavioralTendencies, "tendency_count")
	assert.NotContains(t, snap.BehavioralTendencies, "identity_count")
}

func TestExtractedBeliefClaimMatchesEndToEndScenario(t *testing.T) {
	mem := ledger.NewMemoryLog()
	id, err := mem.Append(context.Background(), "assistant_message", "BELIEF: I am replay-centric", nil)
	require.NoError(t, err)

	events, err := mem.ReadAll(context.Background())
	require.NoError(t, err)
	claims := claim.Extract(&events[0])
	require.Len(t, claims, 1)

	c := claims[0]
	assert.Equal(t, "BELIEF", c.Type)
	assert.Equal(t, "self", c.Subject)
	assert.Equal(t, "I am replay-centric", c.Predicate)
	assert.Nil(t, c.Object)
	assert.Equal(t, 1.0, c.Strength)
	assert.Equal(t, hashid.ClaimID(id, "BELIEF: I am replay-centric"), c.ClaimID)
	assert.Len(t, c.ClaimID, 16)
}

func TestRsmUpdateEmittedOnlyOnSemanticChange(t *testing.T) {
	mem := ledger.NewMemoryLog()
	m := rsm.New(mem, nil)

	evID, err := mem.Append(context.Background(), "claim_register", "", nil)
	require.NoError(t, err)
	content, _ := canonical.Marshal(types.ClaimRecord{
		ClaimID: "c1", Type: "BELIEF", Subject: "self", Predicate: "is_deterministic",
		Strength: 1.0, Status: types.ClaimStatusActive,
	})
	ev := types.Event{ID: evID, Kind: "claim_register", Content: string(content)}
	m.Observe(context.Background(), &ev)

	events, err := mem.ReadAll(context.Background())
	require.NoError(t, err)
	rsmUpdates := countKind(events, "rsm_update")
	assert.Equal(t, 1, rsmUpdates)

	// Observing a non-tracked event after a stable state must not emit.
	next := types.Event{ID: evID + 100, Kind: "user_message", Content: "hello"}
	m.Observe(context.Background(), &next)

	events, err = mem.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, countKind(events, "rsm_update"))
}

func TestObserveIgnoresOutOfOrderAndOwnUpdates(t *testing.T) {
	m := rsm.New(nil, nil)
	first := types.Event{ID: 10, Kind: "claim_register", Content: `{"claim_id":"a","status":"active","subject":"self","predicate":"p","strength":1}`}
	m.Observe(context.Background(), &first)
	assert.Equal(t, int64(10), m.LastEventID())

	stale := types.Event{ID: 5, Kind: "claim_register", Content: `{"claim_id":"b","status":"active","subject":"self","predicate":"q","strength":1}`}
	m.Observe(context.Background(), &stale)
	assert.Equal(t, int64(10), m.LastEventID())
	_, ok := m.GetClaimByID("b")
	assert.False(t, ok)

	selfUpdate := types.Event{ID: 20, Kind: "rsm_update", Content: "{}"}
	m.Observe(context.Background(), &selfUpdate)
	assert.Equal(t, int64(10), m.LastEventID())
}

func countKind(events []types.Event, kind string) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
