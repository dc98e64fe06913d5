package commitments_test

import (
	"strings"
	"testing"

	"github.com/onanski/pmm/internal/commitments"
	"github.com/stretchr/testify/assert"
)

func TestExtractFindsCommitLines(t *testing.T) {
	content := "Here is my plan.\nCOMMIT: ship the ledger by Friday\nThanks."
	got := commitments.Extract(strings.Split(content, "\n"))
	assert.Equal(t, []string{"ship the ledger by Friday"}, got)
}

func TestExtractIgnoresBlankCommitment(t *testing.T) {
	got := commitments.Extract([]string{"COMMIT:   "})
	assert.Empty(t, got)
}

func TestExtractPreservesOrder(t *testing.T) {
	got := commitments.Extract([]string{"COMMIT: a", "noise", "COMMIT: b"})
	assert.Equal(t, []string{"a", "b"}, got)
}
