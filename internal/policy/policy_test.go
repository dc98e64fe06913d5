package policy_test

import (
	"context"
	"testing"

	"github.com/onanski/pmm/internal/ledger"
	"github.com/onanski/pmm/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateBlocksSensitiveKindsForCLI(t *testing.T) {
	g := policy.NewGate()
	err := g.Allow("cli", "config")
	assert.Error(t, err)
}

func TestGateAllowsSensitiveKindsForNonCLI(t *testing.T) {
	g := policy.NewGate()
	assert.NoError(t, g.Allow("autonomy", "config"))
}

func TestGateAlwaysAllowsCoreKinds(t *testing.T) {
	g := policy.NewGate()
	assert.NoError(t, g.Allow("cli", "rsm_update"))
	assert.NoError(t, g.Allow("cli", "claim_register"))
}

func TestGatedLogRejectsSensitiveAppend(t *testing.T) {
	mem := ledger.NewMemoryLog()
	gated := policy.NewGatedLog(mem, policy.NewGate(), "cli")

	_, err := gated.Append(context.Background(), "config", "{}", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrPermission)

	events, _ := mem.ReadAll(context.Background())
	assert.Empty(t, events, "rejected append must not reach the underlying log")
}

func TestGatedLogAllowsRSMUpdate(t *testing.T) {
	mem := ledger.NewMemoryLog()
	gated := policy.NewGatedLog(mem, policy.NewGate(), "cli")

	_, err := gated.Append(context.Background(), "rsm_update", "{}", nil)
	require.NoError(t, err)
}
