package types

// ClaimType enumerates the kinds of structured self-model assertions a
// claim_register event may carry.
type ClaimType string

const (
	ClaimCLAIM    ClaimType = "CLAIM"
	ClaimBELIEF   ClaimType = "BELIEF"
	ClaimVALUE    ClaimType = "VALUE"
	ClaimTENDENCY ClaimType = "TENDENCY"
	ClaimIDENTITY ClaimType = "IDENTITY"
	ClaimONTOLOGY ClaimType = "ONTOLOGY"
)

// ClaimPrefixes maps the recognized line prefixes (including the trailing
// colon) to the claim type they default to when no structured "type" field
// overrides it.
var ClaimPrefixes = map[string]ClaimType{
	"CLAIM:":    ClaimCLAIM,
	"BELIEF:":   ClaimBELIEF,
	"VALUE:":    ClaimVALUE,
	"TENDENCY:": ClaimTENDENCY,
	"IDENTITY:": ClaimIDENTITY,
	"ONTOLOGY:": ClaimONTOLOGY,
}

// ClaimStatusActive is the only status this core ever emits. Other values
// are tolerated on read (spec.md §3, §9 open question b) but never written.
const ClaimStatusActive = "active"

// ClaimRecord is the unit of self-model state, serialized as the canonical
// JSON content of a claim_register event.
type ClaimRecord struct {
	ClaimID        string  `json:"claim_id"`
	SourceEventID  int64   `json:"source_event_id"`
	Type           string  `json:"type"`
	Subject        string  `json:"subject"`
	Predicate      string  `json:"predicate"`
	Object         *string `json:"object"`
	RawText        string  `json:"raw_text"`
	Negated        bool    `json:"negated"`
	Strength       float64 `json:"strength"`
	Status         string  `json:"status"`
}

// IsActive reports whether this record counts as an active claim. This core
// never emits anything but ClaimStatusActive, but the projection must
// tolerate foreign statuses arriving via migration from other writers.
func (c *ClaimRecord) IsActive() bool {
	return c != nil && c.Status == ClaimStatusActive
}

// ObjectOrEmpty returns the dereferenced Object, or "" when nil.
func (c *ClaimRecord) ObjectOrEmpty() string {
	if c == nil || c.Object == nil {
		return ""
	}
	return *c.Object
}
