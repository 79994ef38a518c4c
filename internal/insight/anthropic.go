package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	defaultAnthropicURL   = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel = "claude-sonnet-4-20250514"
	anthropicVersion      = "2023-06-01"
)

// ErrNoAPIKey is returned by NewAnthropicGenerator without an API key.
var ErrNoAPIKey = errors.New("insight: anthropic api key not set")

// AnthropicConfig configures the Messages API generator.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
	// CooldownTimeout is how long the breaker stays open before probing again.
	CooldownTimeout time.Duration
}

func (c *AnthropicConfig) applyDefaults() {
	if c.Model == "" {
		c.Model = defaultAnthropicModel
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultAnthropicURL
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 3
	}
	if c.CooldownTimeout <= 0 {
		c.CooldownTimeout = 60 * time.Second
	}
}

// AnthropicGenerator narrates insights through the Anthropic Messages API.
// Calls go through a circuit breaker so a failing API is not hammered once
// per candidate note.
type AnthropicGenerator struct {
	cfg     AnthropicConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewAnthropicGenerator creates a generator. It fails only when no API key is set.
func NewAnthropicGenerator(cfg AnthropicConfig, logger *zap.Logger) (*AnthropicGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	threshold := cfg.FailureThreshold
	g := &AnthropicGenerator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "anthropic",
		MaxRequests: 1,
		Timeout:     cfg.CooldownTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return g, nil
}

// Generate asks the model for an insight narrative.
func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (string, error) {
	out, err := g.breaker.Execute(func() (any, error) {
		return g.callAPI(ctx, buildPrompt(req))
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}
	return out.(string), nil
}

func buildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("Write a short markdown research insight for a knowledge note that bridges several AI domains.\n\n")
	fmt.Fprintf(&sb, "Note: %s (%s)\n", req.NoteTitle, req.NoteID)
	fmt.Fprintf(&sb, "Home domain: %s\n", req.Domain)
	fmt.Fprintf(&sb, "Connected domains: %s\n", strings.Join(req.ForeignDomains, ", "))
	fmt.Fprintf(&sb, "Concepts: %s\n\n", strings.Join(req.Concepts, ", "))
	sb.WriteString(`Use these sections: "Connected concepts", "Connected domains", "Insight",
"Research proposals" (3 bullets) and "Next steps" (4 numbered items).
Return only the markdown.`)
	return sb.String()
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *AnthropicGenerator) callAPI(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(apiRequest{
		Model:     g.cfg.Model,
		MaxTokens: g.cfg.MaxTokens,
		Messages:  []apiMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("api error: %s", apiResp.Error.Message)
	}

	var text strings.Builder
	for _, c := range apiResp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", errors.New("empty response")
	}
	return strings.TrimSpace(text.String()), nil
}
