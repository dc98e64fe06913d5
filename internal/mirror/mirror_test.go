package mirror_test

import (
	"context"
	"testing"

	"github.com/onanski/pmm/internal/canonical"
	"github.com/onanski/pmm/internal/ledger"
	"github.com/onanski/pmm/internal/mirror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncExtractsAndRegistersClaims(t *testing.T) {
	mem := ledger.NewMemoryLog()
	m := mirror.New(mem, true)
	defer m.Close()

	_, err := mem.Append(context.Background(), "assistant_message", "BELIEF: I am replay-centric", nil)
	require.NoError(t, err)

	claims := m.GetClaims()
	require.Len(t, claims, 1)
	assert.Equal(t, "I am replay-centric", claims[0].Predicate)

	events, err := mem.ReadAll(context.Background())
	require.NoError(t, err)
	registerCount := 0
	for _, e := range events {
		if e.Kind == "claim_register" {
			registerCount++
		}
	}
	assert.Equal(t, 1, registerCount)
}

func TestDiffRSMSameEventIsEmpty(t *testing.T) {
	mem := ledger.NewMemoryLog()
	m := mirror.New(mem, false)

	diff, err := m.DiffRSM(context.Background(), 5, 5)
	require.NoError(t, err)
	assert.Empty(t, diff.TendenciesDelta)
	assert.Empty(t, diff.GapsAdded)
	assert.Empty(t, diff.GapsResolved)
}

func TestDiffRSMReportsTendencyGrowth(t *testing.T) {
	mem := ledger.NewMemoryLog()
	m := mirror.New(mem, true)
	defer m.Close()

	_, err := mem.Append(context.Background(), "user_message", "hello", nil)
	require.NoError(t, err)
	eventsA, _ := mem.ReadAll(context.Background())
	a := eventsA[len(eventsA)-1].ID

	_, err = mem.Append(context.Background(), "assistant_message", "BELIEF: is_deterministic", nil)
	require.NoError(t, err)
	eventsB, _ := mem.ReadAll(context.Background())
	b := eventsB[len(eventsB)-1].ID

	diff, err := m.DiffRSM(context.Background(), a, b)
	require.NoError(t, err)
	assert.Contains(t, diff.TendenciesDelta, "determinism_emphasis")
}

func TestOpenCommitmentsTracksOpenAndClose(t *testing.T) {
	mem := ledger.NewMemoryLog()
	m := mirror.New(mem, true)
	defer m.Close()

	_, err := mem.Append(context.Background(), "commitment_open", "", map[string]interface{}{"cid": "t1", "text": "ship it"})
	require.NoError(t, err)
	assert.Len(t, m.OpenCommitments(), 1)

	_, err = mem.Append(context.Background(), "commitment_close", "", map[string]interface{}{"cid": "t1"})
	require.NoError(t, err)
	assert.Empty(t, m.OpenCommitments())
}

func TestRebuildParityWithLiveSync(t *testing.T) {
	mem := ledger.NewMemoryLog()
	live := mirror.New(mem, true)
	defer live.Close()

	_, err := mem.Append(context.Background(), "user_message", "who are you?", nil)
	require.NoError(t, err)
	_, err = mem.Append(context.Background(), "assistant_message", "BELIEF: I value determinism.", nil)
	require.NoError(t, err)

	liveSnapshot := live.RSMSnapshot()

	onDemand := mirror.New(mem, false)
	require.NoError(t, onDemand.Rebuild(context.Background()))
	rebuiltSnapshot := onDemand.RSMSnapshot()

	assert.True(t, canonical.Equal(liveSnapshot, rebuiltSnapshot))
}
