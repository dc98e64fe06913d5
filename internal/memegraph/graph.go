// Package memegraph implements the causal event-level projection
// (spec.md §4.4): a labeled directed graph over tracked event kinds, plus
// the concept-edge lifter (spec.md §4.5) defined purely in terms of a
// graph rebuild.
package memegraph

import (
	"sort"
	"strings"
	"sync"

	"github.com/onanski/pmm/internal/commitments"
	"github.com/onanski/pmm/internal/types"
)

const (
	relRepliesTo  = "replies_to"
	relCommitsTo = "commits_to"
	relCloses    = "closes"
	relReflectsOn = "reflects_on"
)

// trackedKinds are the only event kinds MemeGraph admits as nodes.
var trackedKinds = map[string]bool{
	string(types.KindUserMessage):     true,
	string(types.KindAssistantMessage): true,
	string(types.KindCommitmentOpen):  true,
	string(types.KindCommitmentClose): true,
	string(types.KindReflection):      true,
	string(types.KindSummaryUpdate):   true,
}

type nodeInfo struct {
	kind    string
	content string
	meta    map[string]interface{}
}

type edge struct {
	to    int64
	label string
}

// CommitmentExtractor matches commitments.Extract's shape; MemeGraph takes
// it as an injected collaborator (spec.md §6) rather than importing
// internal/commitments directly into its call sites, so callers can
// substitute a fake in tests.
type CommitmentExtractor func(lines []string) []string

// Graph is the labeled directed event graph. All mutating and reading
// operations take an internal lock; public methods never call one another
// while holding it, since Go has no native reentrant lock (spec.md §5).
type Graph struct {
	mu sync.RWMutex

	nodes map[int64]nodeInfo
	out   map[int64][]edge
	in    map[int64][]edge

	lastUserMessage      int64
	hasLastUserMessage   bool
	commitmentsByCID     map[string]int64 // cid -> commitment_open node id
	extractCommitments   CommitmentExtractor
}

// New returns an empty graph. A nil extractor defaults to
// internal/commitments.Extract.
func New(extractor CommitmentExtractor) *Graph {
	if extractor == nil {
		extractor = commitments.Extract
	}
	return &Graph{
		nodes:              make(map[int64]nodeInfo),
		out:                make(map[int64][]edge),
		in:                 make(map[int64][]edge),
		commitmentsByCID:   make(map[string]int64),
		extractCommitments: extractor,
	}
}

// Rebuild clears the graph and adds every event, in input order.
func (g *Graph) Rebuild(events []types.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = make(map[int64]nodeInfo)
	g.out = make(map[int64][]edge)
	g.in = make(map[int64][]edge)
	g.commitmentsByCID = make(map[string]int64)
	g.lastUserMessage = 0
	g.hasLastUserMessage = false

	for i := range events {
		g.addEventLocked(&events[i])
	}
}

// AddEvent admits a single event if its kind is tracked and it isn't
// already present. No-op otherwise.
func (g *Graph) AddEvent(event *types.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addEventLocked(event)
}

func (g *Graph) addEventLocked(event *types.Event) {
	if event == nil || !trackedKinds[event.Kind] {
		return
	}
	if _, exists := g.nodes[event.ID]; exists {
		return
	}
	g.nodes[event.ID] = nodeInfo{kind: event.Kind, content: event.Content, meta: event.Meta}

	switch event.Kind {
	case string(types.KindUserMessage):
		if !g.hasLastUserMessage || event.ID > g.lastUserMessage {
			g.lastUserMessage = event.ID
			g.hasLastUserMessage = true
		}
	case string(types.KindAssistantMessage):
		if g.hasLastUserMessage {
			g.addEdgeLocked(event.ID, g.lastUserMessage, relRepliesTo)
		}
	case string(types.KindCommitmentOpen):
		cid, _ := event.Meta["cid"].(string)
		if cid != "" {
			g.commitmentsByCID[cid] = event.ID
		}
		text, _ := event.Meta["text"].(string)
		text = strings.TrimSpace(text)
		if text != "" {
			if assistantID, ok := g.findAssistantWithCommitTextLocked(text); ok {
				g.addEdgeLocked(event.ID, assistantID, relCommitsTo)
			}
		}
	case string(types.KindCommitmentClose):
		cid, _ := event.Meta["cid"].(string)
		if cid != "" {
			if openID, ok := g.commitmentsByCID[cid]; ok {
				g.addEdgeLocked(event.ID, openID, relCloses)
			}
		}
	case string(types.KindReflection):
		if aboutID, ok := event.MetaInt("about_event"); ok {
			if _, exists := g.nodes[aboutID]; exists {
				g.addEdgeLocked(event.ID, aboutID, relReflectsOn)
			}
		}
	}
}

func (g *Graph) addEdgeLocked(from, to int64, label string) {
	g.out[from] = append(g.out[from], edge{to: to, label: label})
	g.in[to] = append(g.in[to], edge{to: from, label: label})
}

func (g *Graph) findAssistantWithCommitTextLocked(text string) (int64, bool) {
	var candidates []int64
	for id, n := range g.nodes {
		if n.kind != string(types.KindAssistantMessage) {
			continue
		}
		lines := strings.Split(n.content, "\n")
		for _, c := range g.extractCommitments(lines) {
			if c == text {
				candidates = append(candidates, id)
				break
			}
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	return candidates[0], true
}

// Stats is the graph_stats() return shape.
type Stats struct {
	Nodes        int
	Edges        int
	CountsByKind map[string]int
}

// GraphStats reports node/edge counts and a per-kind node count.
func (g *Graph) GraphStats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	counts := make(map[string]int)
	for _, n := range g.nodes {
		counts[n.kind]++
	}
	edges := 0
	for _, es := range g.out {
		edges += len(es)
	}
	return Stats{Nodes: len(g.nodes), Edges: edges, CountsByKind: counts}
}

// Direction selects which adjacency a Neighbors query traverses.
type Direction string

const (
	DirOut  Direction = "out"
	DirIn   Direction = "in"
	DirBoth Direction = "both"
)

// Neighbors returns the sorted ascending unique neighbor ids of eid in the
// requested direction, optionally filtered to nodes of a given kind.
func (g *Graph) Neighbors(eid int64, direction Direction, kind string) []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.neighborsLocked(eid, direction, kind)
}

func (g *Graph) neighborsLocked(eid int64, direction Direction, kind string) []int64 {
	seen := make(map[int64]bool)
	collect := func(es []edge) {
		for _, e := range es {
			if kind != "" {
				if n, ok := g.nodes[e.to]; !ok || n.kind != kind {
					continue
				}
			}
			seen[e.to] = true
		}
	}
	if direction == DirOut || direction == DirBoth {
		collect(g.out[eid])
	}
	if direction == DirIn || direction == DirBoth {
		collect(g.in[eid])
	}
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SubgraphForCID returns the sorted ascending unique union of
// ThreadForCID(cid) and the one-hop both-direction neighbors of each node
// in that thread.
func (g *Graph) SubgraphForCID(cid string) []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	thread := g.threadForCIDLocked(cid)
	set := make(map[int64]bool)
	for _, id := range thread {
		set[id] = true
		for _, n := range g.neighborsLocked(id, DirBoth, "") {
			set[n] = true
		}
	}
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RecentFrontier returns the `limit` highest event ids (optionally
// filtered to kinds), re-sorted ascending before return.
func (g *Graph) RecentFrontier(limit int, kinds []string) []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var kindSet map[string]bool
	if len(kinds) > 0 {
		kindSet = make(map[string]bool, len(kinds))
		for _, k := range kinds {
			kindSet[k] = true
		}
	}

	ids := make([]int64, 0, len(g.nodes))
	for id, n := range g.nodes {
		if kindSet != nil && !kindSet[n.kind] {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ThreadForCID locates the commitment_open node for cid and returns, in
// order: its commits_to assistant-message successors (ascending), the
// open node itself, its closes predecessors (ascending), then the
// reflects_on predecessors of every assistant node, deduplicated and
// ascending. Empty if no commitment_open node carries cid.
func (g *Graph) ThreadForCID(cid string) []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.threadForCIDLocked(cid)
}

func (g *Graph) threadForCIDLocked(cid string) []int64 {
	openID, ok := g.commitmentsByCID[cid]
	if !ok {
		return nil
	}

	assistantNodes := g.neighborsLocked(openID, DirOut, string(types.KindAssistantMessage))
	closeNodes := g.neighborsLocked(openID, DirIn, string(types.KindCommitmentClose))

	reflectionSet := make(map[int64]bool)
	for _, a := range assistantNodes {
		for _, r := range g.neighborsLocked(a, DirIn, string(types.KindReflection)) {
			reflectionSet[r] = true
		}
	}
	reflectionNodes := make([]int64, 0, len(reflectionSet))
	for id := range reflectionSet {
		reflectionNodes = append(reflectionNodes, id)
	}
	sort.Slice(reflectionNodes, func(i, j int) bool { return reflectionNodes[i] < reflectionNodes[j] })

	out := make([]int64, 0, len(assistantNodes)+1+len(closeNodes)+len(reflectionNodes))
	out = append(out, assistantNodes...)
	out = append(out, openID)
	out = append(out, closeNodes...)
	out = append(out, reflectionNodes...)
	return out
}
