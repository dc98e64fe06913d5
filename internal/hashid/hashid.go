// Package hashid implements the content-addressed identifiers used by the
// claim pipeline and the shipped ledger. Every id is deterministic: equal
// inputs always produce equal output, with no clock or randomness involved
// (spec.md §9, "content-addressed ids → explicit hash function").
package hashid

import (
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// ClaimIDLength is the number of hex characters kept from the BLAKE3 digest
// (64 bits of the hash — spec.md §3).
const ClaimIDLength = 16

// ClaimID returns the deterministic claim_id for a claim extracted from
// sourceEventID with the given raw line text: the first ClaimIDLength hex
// characters of BLAKE3("{sourceEventID}:{rawText}").
func ClaimID(sourceEventID int64, rawText string) string {
	payload := fmt.Sprintf("%d:%s", sourceEventID, rawText)
	sum := blake3.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])[:ClaimIDLength]
}

// EventHash computes the content address for a ledger event given its
// predecessor hash and canonical fields. Used by the shipped EventLog
// backends to chain events; opaque to every projection in this module
// (spec.md §3: "hash ... opaque to the core").
func EventHash(prevHash, kind, content, canonicalMeta string) string {
	h := blake3.New(32, nil)
	_, _ = h.Write([]byte(prevHash))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(kind))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(content))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(canonicalMeta))
	return hex.EncodeToString(h.Sum(nil))
}
