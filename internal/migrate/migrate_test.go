package migrate_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/onanski/pmm/internal/ledger"
	"github.com/onanski/pmm/internal/migrate"
	"github.com/onanski/pmm/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateEmptyLedgerEmitsNothing(t *testing.T) {
	mem := ledger.NewMemoryLog()
	n, err := migrate.Migrate(context.Background(), mem, false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMigrateExtractsClaimsFromAssistantMessages(t *testing.T) {
	mem := ledger.NewMemoryLog()
	_, err := mem.Append(context.Background(), "assistant_message", "BELIEF: replay is deterministic", nil)
	require.NoError(t, err)

	n, err := migrate.Migrate(context.Background(), mem, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	events, _ := mem.ReadAll(context.Background())
	require.Len(t, events, 2)
	assert.Equal(t, "claim_register", events[1].Kind)
	assert.Equal(t, "claim_migration", events[1].Meta["source"])
	assert.Equal(t, "1", events[1].Meta["migration_version"])
	assert.Equal(t, false, events[1].Meta["force"])
}

func TestMigrateIsIdempotent(t *testing.T) {
	mem := ledger.NewMemoryLog()
	_, err := mem.Append(context.Background(), "assistant_message", "BELIEF: replay is deterministic", nil)
	require.NoError(t, err)

	first, err := migrate.Migrate(context.Background(), mem, false)
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := migrate.Migrate(context.Background(), mem, false)
	require.NoError(t, err)
	assert.Equal(t, 0, second, "re-running on an unchanged ledger must emit nothing")
}

func TestMigrateToleratesPreexistingDuplicateClaimRegister(t *testing.T) {
	mem := ledger.NewMemoryLog()
	_, err := mem.Append(context.Background(), "assistant_message", "BELIEF: replay is deterministic", nil)
	require.NoError(t, err)

	// Register the claim once up front via a dry-run migration on a
	// throwaway log sharing the same content, to obtain the real claim id.
	scratch := ledger.NewMemoryLog()
	_, _ = scratch.Append(context.Background(), "assistant_message", "BELIEF: replay is deterministic", nil)
	_, err = migrate.Migrate(context.Background(), scratch, false)
	require.NoError(t, err)
	scratchEvents, err := scratch.ReadAll(context.Background())
	require.NoError(t, err)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(scratchEvents[1].Content), &data))
	claimID, _ := data["claim_id"].(string)
	require.NotEmpty(t, claimID)

	// Inject a pre-existing claim_register for that same claim id before
	// migration ever runs on the real ledger.
	_, err = mem.Append(context.Background(), "claim_register",
		`{"claim_id":"`+claimID+`"}`, nil)
	require.NoError(t, err)

	n, err := migrate.Migrate(context.Background(), mem, false)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "claim already registered must not be re-emitted")
}

func TestMigrateIgnoresMalformedClaimRegisterContent(t *testing.T) {
	mem := ledger.NewMemoryLog()
	_, err := mem.Append(context.Background(), "claim_register", "not json", nil)
	require.NoError(t, err)
	_, err = mem.Append(context.Background(), "assistant_message", "BELIEF: replay is deterministic", nil)
	require.NoError(t, err)

	n, err := migrate.Migrate(context.Background(), mem, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "malformed existing claim_register must not abort the scan")
}

func TestMigrateForceFlagIsRecordedInMeta(t *testing.T) {
	mem := ledger.NewMemoryLog()
	_, err := mem.Append(context.Background(), "assistant_message", "BELIEF: x", nil)
	require.NoError(t, err)

	n, err := migrate.Migrate(context.Background(), mem, true)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	events, _ := mem.ReadAll(context.Background())
	assert.Equal(t, true, events[1].Meta["force"])
}

func TestNeedsMigrationReflectsPresenceOfClaimRegister(t *testing.T) {
	assert.False(t, migrate.NeedsMigration(nil))

	withAssistant := []types.Event{{Kind: "assistant_message"}}
	assert.True(t, migrate.NeedsMigration(withAssistant))

	withBoth := []types.Event{{Kind: "assistant_message"}, {Kind: "claim_register"}}
	assert.False(t, migrate.NeedsMigration(withBoth))
}
