// Package claim implements the deterministic, prefix-based structured
// claim extractor (spec.md §4.1). It is a pure transform: no I/O, no
// clocks, no randomness, no keyword heuristics.
package claim

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/onanski/pmm/internal/hashid"
	"github.com/onanski/pmm/internal/types"
)

// Extract lifts the claim lines out of an assistant_message event. It
// returns nil unless event.Kind == "assistant_message"; callers that pass
// an event of any other kind get an empty, non-nil-safe result.
func Extract(event *types.Event) []types.ClaimRecord {
	if event == nil || event.Kind != string(types.KindAssistantMessage) {
		return nil
	}

	var claims []types.ClaimRecord
	for _, raw := range strings.Split(event.Content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if rec, ok := parseLine(line, event.ID); ok {
			claims = append(claims, rec)
		}
	}
	return claims
}

// parseLine parses a single trimmed line into a ClaimRecord. It returns
// ok=false when the line doesn't start with one of the recognized claim
// prefixes, or the remainder after the prefix is empty.
func parseLine(line string, sourceEventID int64) (types.ClaimRecord, bool) {
	var (
		claimType types.ClaimType
		remainder string
		matched   bool
	)
	for prefix, ctype := range types.ClaimPrefixes {
		if strings.HasPrefix(line, prefix) {
			claimType = ctype
			remainder = strings.TrimSpace(line[len(prefix):])
			matched = true
			break
		}
	}
	if !matched || remainder == "" {
		return types.ClaimRecord{}, false
	}

	if strings.HasPrefix(remainder, "{") {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(remainder), &obj); err == nil {
			return buildFromJSON(obj, line, sourceEventID, claimType), true
		}
		// Falls through to text form on any JSON error. A remainder that
		// does not start with "{", such as "[1,2,3]", never reaches this
		// branch and is always text form.
	}
	return buildFromText(remainder, line, sourceEventID, claimType), true
}

func buildFromJSON(parsed map[string]interface{}, rawText string, sourceEventID int64, defaultType types.ClaimType) types.ClaimRecord {
	claimType := stringOr(parsed["type"], string(defaultType))
	subject := stringOr(parsed["subject"], "self")
	predicate := stringOr(parsed["predicate"], "")
	negated, _ := parsed["negated"].(bool)

	var object *string
	if v, ok := parsed["object"]; ok && v != nil {
		if s, ok := v.(string); ok {
			object = &s
		} else {
			// Non-string, non-null object values are out of scope for this
			// core's closed record shape; coerce via JSON to keep the field
			// stable rather than dropping the claim.
			if b, err := json.Marshal(v); err == nil {
				s := string(b)
				object = &s
			}
		}
	}

	return types.ClaimRecord{
		ClaimID:       hashid.ClaimID(sourceEventID, rawText),
		SourceEventID: sourceEventID,
		Type:          claimType,
		Subject:       subject,
		Predicate:     predicate,
		Object:        object,
		RawText:       rawText,
		Negated:       negated,
		Strength:      normalizeStrength(parsed["strength"]),
		Status:        types.ClaimStatusActive,
	}
}

func buildFromText(text, rawText string, sourceEventID int64, claimType types.ClaimType) types.ClaimRecord {
	return types.ClaimRecord{
		ClaimID:       hashid.ClaimID(sourceEventID, rawText),
		SourceEventID: sourceEventID,
		Type:          string(claimType),
		Subject:       "self",
		Predicate:     text,
		Object:        nil,
		RawText:       rawText,
		Negated:       false,
		Strength:      1.0,
		Status:        types.ClaimStatusActive,
	}
}

func stringOr(v interface{}, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

// normalizeStrength parses strength as a real in [0,1]; out-of-range
// values clamp, non-numeric values default to 1.0 (spec.md §4.1).
func normalizeStrength(v interface{}) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 1.0
		}
		f = parsed
	default:
		return 1.0
	}
	if f < 0 {
		return 0.0
	}
	if f > 1.0 {
		return 1.0
	}
	return f
}
