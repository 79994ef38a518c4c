package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// ReviewPrompt handles the zk-review MCP prompt.
// It instructs the AI to survey the knowledge base and surface insights.
type ReviewPrompt struct{}

// NewReviewPrompt creates a ReviewPrompt.
func NewReviewPrompt() *ReviewPrompt {
	return &ReviewPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ReviewPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("zk-review",
		mcp.WithPromptDescription(
			"Review the knowledge base: statistics, the most emergent notes, "+
				"and cross-domain insights worth exploring next.",
		),
	)
}

// Handle processes the zk-review prompt request.
func (p *ReviewPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Knowledge Base Review",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please review my knowledge base.\n\n" +
						"1. Run `zk_stats` and summarize it in a short table\n" +
						"2. Run `zk_list_notes` with order_by='emergence' and limit=5\n" +
						"3. Run `zk_list_insights` and, if none are recent, `zk_discover_insights`\n" +
						"4. For the strongest insight, run `zk_build_context` on its source note\n" +
						"5. Suggest one experiment that would connect the domains involved",
				),
			},
		},
	}, nil
}
