package insight

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var sampleRequest = Request{
	NoteID:         "AI20250724120000abcdef12",
	NoteTitle:      "Attention for planning",
	Concepts:       []string{"attention", "planning"},
	Domain:         "llm",
	ForeignDomains: []string{"agent", "rag"},
	DomainCounts:   map[string]int{"agent": 1, "rag": 1},
}

// =============================================================================
// TemplateGenerator
// =============================================================================

func TestTemplateGenerator_Sections(t *testing.T) {
	body, err := TemplateGenerator{}.Generate(context.Background(), sampleRequest)
	require.NoError(t, err)

	assert.Contains(t, body, "# Emergent insight: AI20250724120000abcdef12")
	assert.Contains(t, body, "attention, planning")
	assert.Contains(t, body, "(agent, rag)")
	assert.Contains(t, body, "Combine attention with agent")
	assert.Contains(t, body, "## Next steps")
}

func TestTemplateGenerator_EmptyConcepts(t *testing.T) {
	body, err := TemplateGenerator{}.Generate(context.Background(), Request{NoteID: "n1"})
	require.NoError(t, err)
	assert.Contains(t, body, "Combine Core concept with related domain")
}

func TestTemplateGenerator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := TemplateGenerator{}.Generate(ctx, sampleRequest)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// FallbackGenerator
// =============================================================================

func TestFallbackGenerator(t *testing.T) {
	ctx := context.Background()
	ok := &stubGenerator{body: "primary"}
	bad := &stubGenerator{err: errors.New("down")}
	second := &stubGenerator{body: "secondary"}

	body, err := FallbackGenerator{Primary: ok, Secondary: second}.Generate(ctx, sampleRequest)
	require.NoError(t, err)
	assert.Equal(t, "primary", body)
	assert.Equal(t, 0, second.calls)

	body, err = FallbackGenerator{Primary: bad, Secondary: second}.Generate(ctx, sampleRequest)
	require.NoError(t, err)
	assert.Equal(t, "secondary", body)

	body, err = FallbackGenerator{Secondary: second}.Generate(ctx, sampleRequest)
	require.NoError(t, err)
	assert.Equal(t, "secondary", body)

	_, err = FallbackGenerator{Primary: bad}.Generate(ctx, sampleRequest)
	assert.Error(t, err)

	_, err = FallbackGenerator{}.Generate(ctx, sampleRequest)
	assert.Error(t, err)
}

// =============================================================================
// AnthropicGenerator
// =============================================================================

func TestNewAnthropicGenerator_RequiresKey(t *testing.T) {
	_, err := NewAnthropicGenerator(AnthropicConfig{APIKey: "  "}, nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestAnthropicGenerator_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req apiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "attention, planning")

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"  ## Insight\nbridges domains  "}]}`))
	}))
	defer srv.Close()

	g, err := NewAnthropicGenerator(AnthropicConfig{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	body, err := g.Generate(context.Background(), sampleRequest)
	require.NoError(t, err)
	assert.Equal(t, "## Insight\nbridges domains", body)
}

func TestAnthropicGenerator_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer srv.Close()

	g, err := NewAnthropicGenerator(AnthropicConfig{APIKey: "k", BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), sampleRequest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestAnthropicGenerator_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	g, err := NewAnthropicGenerator(AnthropicConfig{APIKey: "k", BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), sampleRequest)
	assert.Error(t, err)
}

func TestAnthropicGenerator_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g, err := NewAnthropicGenerator(AnthropicConfig{
		APIKey:           "k",
		BaseURL:          srv.URL,
		FailureThreshold: 2,
		CooldownTimeout:  time.Hour,
	}, nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := g.Generate(context.Background(), sampleRequest)
		require.Error(t, err)
	}

	_, err = g.Generate(context.Background(), sampleRequest)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), hits.Load(), "open breaker must not reach the API")
}
