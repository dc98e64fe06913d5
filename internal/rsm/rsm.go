// Package rsm implements the recursive self-model projection (spec.md
// §4.3): an aggregator over active claim records that derives behavioral
// tendencies, knowledge gaps, and contradiction sets, and emits a
// delta-triggered rsm_update event whenever its snapshot changes
// structurally.
package rsm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/onanski/pmm/internal/canonical"
	"github.com/onanski/pmm/internal/types"
)

// Sink is the capability RSM uses to materialize rsm_update events. A nil
// sink yields a pure in-memory projection — useful for diffing and tests
// (spec.md §9 design note: "inject the sink as a capability").
type Sink interface {
	Append(ctx context.Context, kind string, content string, meta map[string]interface{}) (int64, error)
}

// ConceptMetricsProvider is the external collaborator snapshot() delegates
// to for the concept_metrics field. Any failure is swallowed and an empty
// map substituted (spec.md §4.3, §7).
type ConceptMetricsProvider interface {
	ConceptMetrics() (map[string]interface{}, error)
}

// ReflectionEntry is one element of Snapshot.Reflections.
type ReflectionEntry struct {
	Intent string `json:"intent"`
}

// TendencyEntry is one element of Snapshot.TopTendencies.
type TendencyEntry struct {
	Predicate string  `json:"predicate"`
	Strength  float64 `json:"strength"`
	Sources   int     `json:"sources"`
}

// Snapshot is the fixed-shape materialized view RSM emits as the content
// of an rsm_update event (spec.md §4.3's "Snapshot" subsection).
type Snapshot struct {
	BehavioralTendencies    map[string]float64     `json:"behavioral_tendencies"`
	KnowledgeGaps           []string               `json:"knowledge_gaps"`
	InteractionMetaPatterns []string               `json:"interaction_meta_patterns"`
	Intents                 map[string]interface{} `json:"intents"`
	Reflections             []ReflectionEntry       `json:"reflections"`
	ConceptMetrics          map[string]interface{} `json:"concept_metrics"`
	ActiveClaimCount        int                    `json:"active_claim_count"`
	ContradictionEvents     []string               `json:"contradiction_events"`
	TopTendencies           []TendencyEntry        `json:"top_tendencies"`
}

type synonymGroup struct {
	key        string
	predicates []string
}

// groups is the closed set of predicate-synonym aggregates (spec.md §9
// open question (a), resolved closed).
var groups = []synonymGroup{
	{"determinism_emphasis", []string{"is_deterministic", "deterministic"}},
	{"replay_centricity", []string{"is_replay_centric", "replay"}},
	{"stability_emphasis", []string{"prioritizes_stability", "stability"}},
	{"support_awareness", []string{"support_aware", "support_awareness"}},
}

// Model is the recursive self-model projection. It is single-owner and
// unsynchronized internally; concurrent Observe calls must be serialized
// by the caller (spec.md §5 — Mirror serializes via its own mutex).
type Model struct {
	claims      map[string]types.ClaimRecord
	lastEventID int64

	behavioralTendencies    map[string]float64
	knowledgeGaps           []string
	interactionMetaPatterns []string
	reflectionIntents       []string
	contradictionEvents     []string

	lastSnapshot []byte

	sink    Sink
	metrics ConceptMetricsProvider
}

// New returns an empty Model. Either argument may be nil.
func New(sink Sink, metrics ConceptMetricsProvider) *Model {
	m := &Model{sink: sink, metrics: metrics}
	m.Reset()
	return m
}

// Reset zeros all state.
func (m *Model) Reset() {
	m.claims = make(map[string]types.ClaimRecord)
	m.lastEventID = 0
	m.lastSnapshot = nil
	m.behavioralTendencies = make(map[string]float64)
	m.knowledgeGaps = nil
	m.interactionMetaPatterns = nil
	m.reflectionIntents = nil
	m.contradictionEvents = nil
}

// Rebuild resets, applies every event in order, then recomputes aggregates
// and emits at most once — unlike repeated Observe calls, which recompute
// and may emit after each event.
func (m *Model) Rebuild(ctx context.Context, events []types.Event) {
	m.Reset()
	for i := range events {
		m.applyEvent(&events[i])
	}
	m.recomputeAggregates()
	m.maybeEmit(ctx)
}

// Observe applies a single event, then recomputes aggregates and maybe
// emits an rsm_update. A no-op for nil events, rsm_update events (which
// are never replayed back into the model), and events at or behind the
// current watermark.
func (m *Model) Observe(ctx context.Context, event *types.Event) {
	if !m.applyEvent(event) {
		return
	}
	m.recomputeAggregates()
	m.maybeEmit(ctx)
}

// applyEvent updates claim/reflection state and the watermark, without
// recomputing aggregates or emitting. Returns whether the event advanced
// the watermark at all.
func (m *Model) applyEvent(event *types.Event) bool {
	if event == nil {
		return false
	}
	if event.Kind == string(types.KindRSMUpdate) {
		return false
	}
	if event.ID <= m.lastEventID {
		return false
	}
	m.lastEventID = event.ID

	switch event.Kind {
	case string(types.KindClaimRegister):
		m.observeClaimRegister(event)
	case string(types.KindReflection):
		m.observeReflection(event)
	}
	return true
}

func (m *Model) observeClaimRegister(event *types.Event) {
	var rec types.ClaimRecord
	if err := json.Unmarshal([]byte(event.Content), &rec); err != nil {
		return
	}
	if rec.ClaimID == "" {
		return
	}
	m.claims[rec.ClaimID] = rec
}

func (m *Model) observeReflection(event *types.Event) {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(event.Content), &data); err != nil {
		return
	}
	if intent, ok := data["intent"].(string); ok {
		m.reflectionIntents = append(m.reflectionIntents, intent)
	}
}

func (m *Model) recomputeAggregates() {
	active := m.activeClaims()
	m.behavioralTendencies = computeBehavioralTendencies(active)
	m.knowledgeGaps = computeKnowledgeGaps(active)
	m.contradictionEvents = computeContradictions(active)
	m.interactionMetaPatterns = computeMetaPatterns(m.contradictionEvents)
}

// activeClaims returns active claim records sorted ascending by claim_id,
// so every downstream consumer gets a deterministic ordering.
func (m *Model) activeClaims() []types.ClaimRecord {
	out := make([]types.ClaimRecord, 0, len(m.claims))
	for _, c := range m.claims {
		if c.IsActive() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimID < out[j].ClaimID })
	return out
}

// GetClaims returns every active claim, ascending by claim_id.
func (m *Model) GetClaims() []types.ClaimRecord {
	return m.activeClaims()
}

// GetClaimByID returns an active claim by id, or ok=false if absent or
// inactive.
func (m *Model) GetClaimByID(id string) (types.ClaimRecord, bool) {
	c, ok := m.claims[id]
	if !ok || !c.IsActive() {
		return types.ClaimRecord{}, false
	}
	return c, true
}

// LastEventID returns the watermark: the highest event id observed so far.
func (m *Model) LastEventID() int64 {
	return m.lastEventID
}

// Snapshot builds the current materialized view. concept_metrics failures
// are swallowed and substituted with an empty map (spec.md §7).
func (m *Model) Snapshot() Snapshot {
	reflections := make([]ReflectionEntry, 0, len(m.reflectionIntents))
	for _, intent := range m.reflectionIntents {
		reflections = append(reflections, ReflectionEntry{Intent: intent})
	}

	conceptMetrics := map[string]interface{}{}
	if m.metrics != nil {
		if cm, err := m.metrics.ConceptMetrics(); err == nil && cm != nil {
			conceptMetrics = cm
		}
	}

	active := m.activeClaims()

	return Snapshot{
		BehavioralTendencies:    copyFloatMap(m.behavioralTendencies),
		KnowledgeGaps:           nonNilStrings(m.knowledgeGaps),
		InteractionMetaPatterns: nonNilStrings(m.interactionMetaPatterns),
		Intents:                 map[string]interface{}{},
		Reflections:             reflections,
		ConceptMetrics:          conceptMetrics,
		ActiveClaimCount:        len(active),
		ContradictionEvents:     nonNilStrings(m.contradictionEvents),
		TopTendencies:           computeTopTendencies(active),
	}
}

// LoadSnapshot is a best-effort legacy rehydration of tendencies, gaps,
// meta-patterns, and intents. It does not restore claim records — callers
// that need the full claim set must Rebuild from the ledger instead
// (spec.md §4.3).
func (m *Model) LoadSnapshot(snap Snapshot) {
	m.behavioralTendencies = copyFloatMap(snap.BehavioralTendencies)
	m.knowledgeGaps = append([]string(nil), snap.KnowledgeGaps...)
	m.interactionMetaPatterns = append([]string(nil), snap.InteractionMetaPatterns...)
	m.reflectionIntents = m.reflectionIntents[:0]
	for _, r := range snap.Reflections {
		m.reflectionIntents = append(m.reflectionIntents, r.Intent)
	}
}

func (m *Model) maybeEmit(ctx context.Context) {
	snap := m.Snapshot()
	content, err := canonical.Marshal(snap)
	if err != nil {
		return
	}
	if m.lastSnapshot != nil && bytes.Equal(content, m.lastSnapshot) {
		return
	}
	m.lastSnapshot = content

	if m.sink == nil {
		return
	}
	_, _ = m.sink.Append(ctx, string(types.KindRSMUpdate), string(content), map[string]interface{}{
		"source": "rsm",
	})
}

func computeBehavioralTendencies(active []types.ClaimRecord) map[string]float64 {
	denom := len(active)
	if denom < 1 {
		denom = 1
	}
	out := make(map[string]float64)
	for _, g := range groups {
		sum := 0.0
		present := false
		for _, c := range active {
			pred := strings.ToLower(c.Predicate)
			for _, syn := range g.predicates {
				if pred == syn {
					sum += c.Strength
					present = true
					break
				}
			}
		}
		if !present {
			continue
		}
		v := sum / float64(denom)
		if v > 1.0 {
			v = 1.0
		}
		out[g.key] = v
	}

	typeCounts := map[string]float64{"belief": 0, "value": 0, "tendency": 0, "identity": 0}
	for _, c := range active {
		if n, ok := typeCounts[strings.ToLower(c.Type)]; ok {
			typeCounts[strings.ToLower(c.Type)] = n + 1
		}
	}
	for _, t := range []string{"belief", "value", "tendency", "identity"} {
		if typeCounts[t] > 0 {
			out[t+"_count"] = typeCounts[t]
		}
	}
	return out
}

func computeKnowledgeGaps(active []types.ClaimRecord) []string {
	set := make(map[string]bool)
	for _, c := range active {
		pred := strings.ToLower(c.Predicate)
		if !strings.Contains(pred, "unknown") && !strings.Contains(pred, "gap") {
			continue
		}
		if c.Object == nil {
			continue
		}
		set[*c.Object] = true
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type pairKey struct{ subject, predicate string }

func computeContradictions(active []types.ClaimRecord) []string {
	byPair := make(map[pairKey][]types.ClaimRecord)
	for _, c := range active {
		k := pairKey{c.Subject, c.Predicate}
		byPair[k] = append(byPair[k], c)
	}

	idSet := make(map[string]bool)
	for _, members := range byPair {
		if len(members) < 2 {
			continue
		}
		first := members[0]
		allSame := true
		for _, other := range members[1:] {
			if other.ObjectOrEmpty() != first.ObjectOrEmpty() ||
				(other.Object == nil) != (first.Object == nil) ||
				other.Negated != first.Negated {
				allSame = false
				break
			}
		}
		if allSame {
			continue
		}
		for _, mem := range members {
			idSet[mem.ClaimID] = true
		}
	}

	out := make([]string, 0, len(idSet))
	for id := range idSet {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func computeMetaPatterns(contradictions []string) []string {
	if len(contradictions) == 0 {
		return []string{}
	}
	return []string{fmt.Sprintf("contradictions_detected:%d", len(contradictions))}
}

func computeTopTendencies(active []types.ClaimRecord) []TendencyEntry {
	type agg struct {
		sum   float64
		count int
	}
	byPredicate := make(map[string]*agg)
	for _, c := range active {
		a, ok := byPredicate[c.Predicate]
		if !ok {
			a = &agg{}
			byPredicate[c.Predicate] = a
		}
		a.sum += c.Strength
		a.count++
	}

	entries := make([]TendencyEntry, 0, len(byPredicate))
	for predicate, a := range byPredicate {
		entries = append(entries, TendencyEntry{
			Predicate: predicate,
			Strength:  roundTo2(a.sum),
			Sources:   a.count,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Strength != entries[j].Strength {
			return entries[i].Strength > entries[j].Strength
		}
		return entries[i].Predicate < entries[j].Predicate
	})
	if len(entries) > 10 {
		entries = entries[:10]
	}
	return entries
}

func roundTo2(f float64) float64 {
	return math.Round(f*100) / 100
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func copyFloatMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
