package insight

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HendryAvila/zettel/internal/knowledge"
	"github.com/HendryAvila/zettel/internal/metrics"
)

type stubGenerator struct {
	body  string
	err   error
	calls int
	last  Request
}

func (g *stubGenerator) Generate(_ context.Context, req Request) (string, error) {
	g.calls++
	g.last = req
	return g.body, g.err
}

func newTestStore(t *testing.T) *knowledge.Store {
	t.Helper()
	s, err := knowledge.New(knowledge.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func putNote(t *testing.T, s *knowledge.Store, id, domain string, emergence float64, concepts ...string) {
	t.Helper()
	require.NoError(t, s.PutNote(&knowledge.Note{
		ID:                 id,
		Title:              "Title " + id,
		Content:            "content " + id,
		Domain:             domain,
		Concepts:           concepts,
		EmergencePotential: emergence,
	}))
}

// hubFixture stores a 0.6 emergence llm note linked to the given foreign domains.
func hubFixture(t *testing.T, foreign ...string) *knowledge.Store {
	t.Helper()
	s := newTestStore(t)
	putNote(t, s, "hub", "llm", 0.6, "attention", "planning", "retrieval")
	for i, d := range foreign {
		id := d + "-" + string(rune('a'+i))
		putNote(t, s, id, d, 0.1)
		require.NoError(t, s.PutConnection("hub", id, 0.4, knowledge.KindSemantic))
	}
	return s
}

func TestDiscover_TwoForeignDomainsYieldsOneInsight(t *testing.T) {
	s := hubFixture(t, "agent", "rag", "rag")
	gen := &stubGenerator{body: "narrative"}
	m := metrics.New()
	d := NewDiscoverer(s, gen, zap.NewNop(), m)

	got, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)

	in := got[0]
	assert.True(t, strings.HasPrefix(in.ID, "INSIGHT_"))
	assert.Equal(t, "Cross-domain insight: Title hub", in.Title)
	assert.Equal(t, "hub", in.SourceNoteID)
	assert.Equal(t, []string{"llm", "agent", "rag"}, in.Domains)
	assert.Equal(t, []string{"attention", "planning", "retrieval"}, in.ConnectedConcepts)
	assert.Equal(t, 0.6, in.ConfidenceScore)
	assert.Equal(t, "narrative", in.Body)

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, map[string]int{"agent": 1, "rag": 2}, gen.last.DomainCounts)

	stored, err := s.ListInsights(0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, in.ID, stored[0].ID)
}

func TestDiscover_OneForeignDomainYieldsNothing(t *testing.T) {
	s := hubFixture(t, "agent", "agent")
	d := NewDiscoverer(s, TemplateGenerator{}, nil, nil)

	got, err := d.Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalInsights)
}

func TestDiscover_SameDomainConnectionsIgnored(t *testing.T) {
	s := hubFixture(t, "llm", "llm", "agent")
	d := NewDiscoverer(s, TemplateGenerator{}, nil, nil)

	got, err := d.Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDiscover_EmergenceAtThresholdExcluded(t *testing.T) {
	s := newTestStore(t)
	putNote(t, s, "hub", "llm", 0.5)
	putNote(t, s, "a", "agent", 0)
	putNote(t, s, "r", "rag", 0)
	require.NoError(t, s.PutConnection("hub", "a", 0.5, ""))
	require.NoError(t, s.PutConnection("hub", "r", 0.5, ""))

	got, err := NewDiscoverer(s, nil, nil, nil).Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDiscover_GenerationFailureLeavesEmptyBody(t *testing.T) {
	s := hubFixture(t, "agent", "rag")
	m := metrics.New()
	d := NewDiscoverer(s, &stubGenerator{err: errors.New("model unavailable")}, zap.NewNop(), m)

	got, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Body)

	stored, err := s.GetInsight(got[0].ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Body)
}

func TestDiscover_RepeatedRunsAccumulate(t *testing.T) {
	s := hubFixture(t, "agent", "rag")
	d := NewDiscoverer(s, TemplateGenerator{}, nil, nil)

	first, err := d.Discover(context.Background())
	require.NoError(t, err)
	second, err := d.Discover(context.Background())
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)

	stored, err := s.ListInsights(0)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestDiscover_MissingTargetSkipped(t *testing.T) {
	s := hubFixture(t, "agent", "rag")
	require.NoError(t, s.PutConnection("hub", "ghost", 0.9, ""))

	got, err := NewDiscoverer(s, nil, nil, nil).Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDiscover_OrderByEmergence(t *testing.T) {
	s := newTestStore(t)
	putNote(t, s, "a", "agent", 0)
	putNote(t, s, "r", "rag", 0)
	putNote(t, s, "p", "prompt-engineering", 0)
	putNote(t, s, "low", "llm", 0.55)
	putNote(t, s, "high", "llm", 0.9)
	for _, src := range []string{"low", "high"} {
		require.NoError(t, s.PutConnection(src, "a", 0.5, ""))
		require.NoError(t, s.PutConnection(src, "r", 0.5, ""))
	}

	d := NewDiscoverer(s, nil, nil, nil)
	now := time.Date(2025, 7, 24, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	got, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "high", got[0].SourceNoteID)
	assert.Equal(t, "low", got[1].SourceNoteID)
	assert.True(t, got[0].CreatedAt.Equal(now))
}

// failingRepo wraps a store and rejects every insight write.
type failingRepo struct {
	*knowledge.Store
	err error
}

func (r failingRepo) PutInsight(*knowledge.Insight) error { return r.err }

func TestDiscover_StorageFailureAborts(t *testing.T) {
	s := hubFixture(t, "agent", "rag")
	repo := failingRepo{Store: s, err: &knowledge.StorageError{Op: "put insight", Err: errors.New("disk full")}}

	got, err := NewDiscoverer(repo, nil, nil, nil).Discover(context.Background())
	require.Error(t, err)
	assert.True(t, knowledge.IsStorageFailure(err))
	assert.Empty(t, got)
}

func TestDiscover_CancelledContext(t *testing.T) {
	s := hubFixture(t, "agent", "rag")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDiscoverer(s, nil, nil, nil).Discover(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
