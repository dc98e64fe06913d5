package claim

import "github.com/onanski/pmm/internal/types"

// DetectContradictions returns the ids of existing active claims that share
// (subject, predicate) with newClaim but disagree on (object, negated).
// Empty subject or predicate on newClaim yields an empty result (spec.md
// §4.1).
func DetectContradictions(existing []types.ClaimRecord, newClaim types.ClaimRecord) []string {
	if newClaim.Subject == "" || newClaim.Predicate == "" {
		return nil
	}

	var ids []string
	for _, c := range existing {
		if !c.IsActive() {
			continue
		}
		if c.Subject != newClaim.Subject || c.Predicate != newClaim.Predicate {
			continue
		}
		if c.ObjectOrEmpty() != newClaim.ObjectOrEmpty() || c.Negated != newClaim.Negated || (c.Object == nil) != (newClaim.Object == nil) {
			ids = append(ids, c.ClaimID)
		}
	}
	return ids
}
