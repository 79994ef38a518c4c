package zettel

import (
	"fmt"
	"sort"

	"github.com/HendryAvila/zettel/internal/knowledge"
)

// ConceptEdgeWeight is the weight of an edge between two notes that share
// a concept.
const ConceptEdgeWeight = 0.7

// Edge directions relative to the node being expanded.
const (
	DirectionOutgoing = "outgoing"
	DirectionIncoming = "incoming"
	DirectionShared   = "shared"
)

// Edge is a graph edge. Semantic edges come from the connection table;
// concept edges are derived from shared concepts and are undirected.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
	Kind   string  `json:"kind"`
}

// Graph is a read-only view of the knowledge base, rebuilt from the store
// on every call and never cached.
type Graph struct {
	Notes map[string]knowledge.Note `json:"-"`
	Edges []Edge                    `json:"edges"`

	adj map[string][]adjacent
}

type adjacent struct {
	id        string
	edge      Edge
	direction string
}

// Graph builds the current graph view.
func (s *Service) Graph() (*Graph, error) {
	notes, err := s.repo.ListNotes(knowledge.NoteFilter{})
	if err != nil {
		return nil, fmt.Errorf("graph: list notes: %w", err)
	}
	conns, err := s.repo.ListConnections()
	if err != nil {
		return nil, fmt.Errorf("graph: list connections: %w", err)
	}

	g := &Graph{
		Notes: make(map[string]knowledge.Note, len(notes)),
		adj:   make(map[string][]adjacent),
	}
	for _, n := range notes {
		g.Notes[n.ID] = n
	}

	for _, c := range conns {
		if _, ok := g.Notes[c.SourceID]; !ok {
			continue
		}
		if _, ok := g.Notes[c.TargetID]; !ok {
			continue
		}
		e := Edge{Source: c.SourceID, Target: c.TargetID, Weight: c.Strength, Kind: c.Kind}
		g.Edges = append(g.Edges, e)
		g.adj[e.Source] = append(g.adj[e.Source], adjacent{id: e.Target, edge: e, direction: DirectionOutgoing})
		g.adj[e.Target] = append(g.adj[e.Target], adjacent{id: e.Source, edge: e, direction: DirectionIncoming})
	}

	// Notes are listed by ID, so each concept's members are already sorted.
	byConcept := map[string][]string{}
	for _, n := range notes {
		for _, c := range n.Concepts {
			byConcept[c] = append(byConcept[c], n.ID)
		}
	}
	seen := map[[2]string]bool{}
	concepts := make([]string, 0, len(byConcept))
	for c := range byConcept {
		concepts = append(concepts, c)
	}
	sort.Strings(concepts)
	for _, c := range concepts {
		ids := byConcept[c]
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				key := [2]string{ids[i], ids[j]}
				if seen[key] {
					continue
				}
				seen[key] = true
				e := Edge{Source: ids[i], Target: ids[j], Weight: ConceptEdgeWeight, Kind: knowledge.KindConcept}
				g.Edges = append(g.Edges, e)
				g.adj[e.Source] = append(g.adj[e.Source], adjacent{id: e.Target, edge: e, direction: DirectionShared})
				g.adj[e.Target] = append(g.adj[e.Target], adjacent{id: e.Source, edge: e, direction: DirectionShared})
			}
		}
	}

	return g, nil
}

// Neighbors returns the IDs adjacent to id in insertion order, semantic
// edges first.
func (g *Graph) Neighbors(id string) []string {
	out := make([]string, 0, len(g.adj[id]))
	seen := map[string]bool{}
	for _, a := range g.adj[id] {
		if !seen[a.id] {
			seen[a.id] = true
			out = append(out, a.id)
		}
	}
	return out
}

// ContextNode is a note reached while traversing from a root note.
type ContextNode struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Domain    string  `json:"domain"`
	Kind      string  `json:"kind"`
	Weight    float64 `json:"weight"`
	Direction string  `json:"direction"`
	Via       string  `json:"via"`
	Depth     int     `json:"depth"`
}

// ContextResult is the output of BuildContext.
type ContextResult struct {
	Root       knowledge.Note `json:"root"`
	Connected  []ContextNode  `json:"connected"`
	TotalNodes int            `json:"total_nodes"`
	MaxDepth   int            `json:"max_depth"`
}

// BuildContext walks the graph breadth-first from id. Depth defaults to 2
// and is capped at 5. Each note is visited once.
func (s *Service) BuildContext(id string, maxDepth int) (*ContextResult, error) {
	if maxDepth <= 0 {
		maxDepth = 2
	}
	if maxDepth > 5 {
		maxDepth = 5
	}

	g, err := s.Graph()
	if err != nil {
		return nil, err
	}
	root, ok := g.Notes[id]
	if !ok {
		return nil, fmt.Errorf("root note %q: %w", id, knowledge.ErrNotFound)
	}

	type queueItem struct {
		id    string
		depth int
	}

	visited := map[string]bool{id: true}
	queue := []queueItem{{id: id, depth: 0}}
	connected := []ContextNode{}
	actualMaxDepth := 0

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= maxDepth {
			continue
		}

		for _, a := range g.adj[current.id] {
			if visited[a.id] {
				continue
			}
			visited[a.id] = true

			n := g.Notes[a.id]
			depth := current.depth + 1
			connected = append(connected, ContextNode{
				ID:        n.ID,
				Title:     n.Title,
				Domain:    n.Domain,
				Kind:      a.edge.Kind,
				Weight:    a.edge.Weight,
				Direction: a.direction,
				Via:       current.id,
				Depth:     depth,
			})
			if depth > actualMaxDepth {
				actualMaxDepth = depth
			}
			queue = append(queue, queueItem{id: a.id, depth: depth})
		}
	}

	return &ContextResult{
		Root:       root,
		Connected:  connected,
		TotalNodes: len(connected),
		MaxDepth:   actualMaxDepth,
	}, nil
}
