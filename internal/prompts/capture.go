// Package prompts implements MCP prompt handlers for the knowledge base.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// CapturePrompt handles the zk-capture MCP prompt.
// It guides the AI to turn the current session's findings into notes.
type CapturePrompt struct{}

// NewCapturePrompt creates a CapturePrompt.
func NewCapturePrompt() *CapturePrompt {
	return &CapturePrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *CapturePrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("zk-capture",
		mcp.WithPromptDescription(
			"Capture what was learned in this session as atomic knowledge notes, "+
				"one idea per note, linked automatically to what is already known.",
		),
		mcp.WithArgument("domain",
			mcp.ArgumentDescription("Domain for the notes (llm, agent, rag, prompt-engineering). Default: ask per note"),
		),
		mcp.WithArgument("experiment_ref",
			mcp.ArgumentDescription("Experiment the findings came from, stored on every note"),
		),
	)
}

// Handle processes the zk-capture prompt request.
func (p *CapturePrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	domain := ""
	ref := ""
	if args := req.Params.Arguments; args != nil {
		domain = args["domain"]
		ref = args["experiment_ref"]
	}

	domainStep := "Pick the best-fitting domain for each note and tell me which one you chose."
	if domain != "" {
		domainStep = fmt.Sprintf("Use domain='%s' for every note.", domain)
	}
	refStep := ""
	if ref != "" {
		refStep = fmt.Sprintf("Pass experiment_ref='%s' on every note.\n", ref)
	}

	return &mcp.GetPromptResult{
		Description: "Capture session findings as knowledge notes",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Please turn what we learned in this session into knowledge notes.\n\n"+
						"1. List the distinct findings, one idea each, and show me the list\n"+
						"2. For each finding, run `zk_extract_concepts` to preview its concepts and scores\n"+
						"3. Create each note with `zk_create_note`, a short title and the evidence in the content\n"+
						"4. Report the connections each new note received\n\n"+
						"%s\n%s",
					domainStep, refStep,
				)),
			},
		},
	}, nil
}
