// Package commitments implements the commitment-line extractor MemeGraph
// consumes as an external collaborator (spec.md §6). Like claim
// extraction, it is prefix-based and deterministic: no heuristics, no
// NLP (spec.md §1 Non-goals).
package commitments

import "strings"

// commitPrefix marks a line in an assistant message as a commitment,
// following the same line-prefix convention as the claim prefixes
// (internal/claim).
const commitPrefix = "COMMIT:"

// Extract returns the trimmed commitment text of every line in lines that
// begins with "COMMIT:", in input order. A commitment_open event's
// meta.text is expected to match one of these verbatim (after trimming)
// for MemeGraph to link it to the assistant message that issued it.
func Extract(lines []string) []string {
	var out []string
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if !strings.HasPrefix(line, commitPrefix) {
			continue
		}
		text := strings.TrimSpace(line[len(commitPrefix):])
		if text == "" {
			continue
		}
		out = append(out, text)
	}
	return out
}
