package zettel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/zettel/internal/knowledge"
)

// seedGraph stores notes and edges directly, bypassing auto-linking.
func seedGraph(t *testing.T, h *harness, notes map[string][]string, edges [][2]string) {
	t.Helper()
	for id, concepts := range notes {
		require.NoError(t, h.store.PutNote(&knowledge.Note{
			ID: id, Title: "T" + id, Content: id, Domain: "llm", Concepts: concepts,
		}))
	}
	for _, e := range edges {
		require.NoError(t, h.store.PutConnection(e[0], e[1], 0.4, knowledge.KindSemantic))
	}
}

func TestGraph_ConceptAndSemanticEdges(t *testing.T) {
	h := newHarness(t, Options{})
	seedGraph(t, h, map[string][]string{
		"a": {"attention", "token"},
		"b": {"attention", "token"},
		"c": {"planning"},
	}, [][2]string{{"c", "a"}})

	g, err := h.svc.Graph()
	require.NoError(t, err)

	var semantic, conceptEdges []Edge
	for _, e := range g.Edges {
		switch e.Kind {
		case knowledge.KindSemantic:
			semantic = append(semantic, e)
		case knowledge.KindConcept:
			conceptEdges = append(conceptEdges, e)
		}
	}
	require.Len(t, semantic, 1)
	assert.Equal(t, Edge{Source: "c", Target: "a", Weight: 0.4, Kind: knowledge.KindSemantic}, semantic[0])

	require.Len(t, conceptEdges, 1, "two shared concepts still yield one concept edge")
	assert.Equal(t, Edge{Source: "a", Target: "b", Weight: ConceptEdgeWeight, Kind: knowledge.KindConcept}, conceptEdges[0])

	assert.Equal(t, []string{"c", "b"}, g.Neighbors("a"), "semantic neighbors come first")
	assert.Empty(t, g.Neighbors("missing"))
}

func TestGraph_DanglingConnectionIgnored(t *testing.T) {
	h := newHarness(t, Options{})
	seedGraph(t, h, map[string][]string{"a": nil}, [][2]string{{"a", "ghost"}})

	g, err := h.svc.Graph()
	require.NoError(t, err)
	assert.Empty(t, g.Edges)
}

func TestBuildContext_BFSDepth(t *testing.T) {
	h := newHarness(t, Options{})
	// chain: a -> b -> c -> d -> e -> f -> g
	ids := []string{"a", "b", "c", "d", "e", "f", "g"}
	notes := map[string][]string{}
	var edges [][2]string
	for i, id := range ids {
		notes[id] = nil
		if i > 0 {
			edges = append(edges, [2]string{ids[i-1], id})
		}
	}
	seedGraph(t, h, notes, edges)

	tests := []struct {
		depth     int
		wantNodes int
		wantMax   int
	}{
		{0, 2, 2}, // default 2
		{1, 1, 1},
		{3, 3, 3},
		{10, 5, 5}, // capped at 5
	}
	for _, tt := range tests {
		res, err := h.svc.BuildContext("a", tt.depth)
		require.NoError(t, err)
		assert.Equal(t, tt.wantNodes, res.TotalNodes, "depth %d", tt.depth)
		assert.Equal(t, tt.wantMax, res.MaxDepth, "depth %d", tt.depth)
	}

	res, err := h.svc.BuildContext("c", 1)
	require.NoError(t, err)
	require.Len(t, res.Connected, 2)
	assert.Equal(t, "b", res.Connected[0].ID)
	assert.Equal(t, DirectionIncoming, res.Connected[0].Direction)
	assert.Equal(t, "d", res.Connected[1].ID)
	assert.Equal(t, DirectionOutgoing, res.Connected[1].Direction)
	assert.Equal(t, "c", res.Connected[1].Via)
}

func TestBuildContext_CyclesVisitedOnce(t *testing.T) {
	h := newHarness(t, Options{})
	seedGraph(t, h,
		map[string][]string{"a": {"memory"}, "b": {"memory"}, "c": nil},
		[][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}})

	res, err := h.svc.BuildContext("a", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalNodes)
	assert.Equal(t, "a", res.Root.ID)
	for _, n := range res.Connected {
		assert.NotEqual(t, "a", n.ID)
		assert.Equal(t, 1, n.Depth)
	}
}

func TestBuildContext_ConceptOnlyNeighbor(t *testing.T) {
	h := newHarness(t, Options{})
	seedGraph(t, h, map[string][]string{"a": {"retrieval"}, "b": {"retrieval"}}, nil)

	res, err := h.svc.BuildContext("b", 1)
	require.NoError(t, err)
	require.Len(t, res.Connected, 1)
	assert.Equal(t, knowledge.KindConcept, res.Connected[0].Kind)
	assert.Equal(t, DirectionShared, res.Connected[0].Direction)
	assert.Equal(t, ConceptEdgeWeight, res.Connected[0].Weight)
}

func TestBuildContext_UnknownRoot(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.svc.BuildContext("nope", 2)
	assert.ErrorIs(t, err, knowledge.ErrNotFound)
}
