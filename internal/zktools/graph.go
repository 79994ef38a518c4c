package zktools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/zettel/internal/knowledge"
	"github.com/HendryAvila/zettel/internal/zettel"
)

// ─── zk_connections ─────────────────────────────────────────────────────────

// ConnectionsTool handles the zk_connections MCP tool.
type ConnectionsTool struct {
	svc *zettel.Service
}

// NewConnectionsTool creates a ConnectionsTool.
func NewConnectionsTool(svc *zettel.Service) *ConnectionsTool {
	return &ConnectionsTool{svc: svc}
}

// Definition returns the MCP tool definition for zk_connections.
func (t *ConnectionsTool) Definition() mcp.Tool {
	return mcp.NewTool("zk_connections",
		mcp.WithDescription(
			"Show the current outgoing and incoming connections of a note, including links "+
				"from notes created after it.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The note ID"),
		),
	)
}

// Handle processes the zk_connections tool call.
func (t *ConnectionsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	view, err := t.svc.Connections(id)
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("note %s not found", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to get connections: %v", err)), nil
	}

	if len(view.Outgoing) == 0 && len(view.Incoming) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Note %s has no connections.", id)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Connections of %s\n\n", id)
	if len(view.Outgoing) > 0 {
		fmt.Fprintf(&b, "### Outgoing (%d)\n", len(view.Outgoing))
		for _, c := range view.Outgoing {
			fmt.Fprintf(&b, "- → %s (%s, %.3f)\n", c.TargetID, c.Kind, c.Strength)
		}
		b.WriteString("\n")
	}
	if len(view.Incoming) > 0 {
		fmt.Fprintf(&b, "### Incoming (%d)\n", len(view.Incoming))
		for _, c := range view.Incoming {
			fmt.Fprintf(&b, "- ← %s (%s, %.3f)\n", c.SourceID, c.Kind, c.Strength)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── zk_build_context ───────────────────────────────────────────────────────

// BuildContextTool handles the zk_build_context MCP tool.
type BuildContextTool struct {
	svc *zettel.Service
}

// NewBuildContextTool creates a BuildContextTool.
func NewBuildContextTool(svc *zettel.Service) *BuildContextTool {
	return &BuildContextTool{svc: svc}
}

// Definition returns the MCP tool definition for zk_build_context.
func (t *BuildContextTool) Definition() mcp.Tool {
	return mcp.NewTool("zk_build_context",
		mcp.WithDescription(
			"Traverse the knowledge graph from a note. Follows similarity links in both "+
				"directions and shared-concept links up to the given depth.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The note ID to start from"),
		),
		mcp.WithNumber("depth",
			mcp.Description("How many levels deep to traverse (default: 2, max: 5)"),
		),
	)
}

// Handle processes the zk_build_context tool call.
func (t *BuildContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	result, err := t.svc.BuildContext(id, intArg(req, "depth", 2))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to build context: %v", err)), nil
	}
	return mcp.NewToolResultText(formatContextResult(result)), nil
}

// formatContextResult renders a ContextResult grouped by depth.
func formatContextResult(r *zettel.ContextResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Context Graph for %s: %q\n\n", r.Root.ID, r.Root.Title)
	fmt.Fprintf(&b, "**Domain:** %s\n", r.Root.Domain)
	fmt.Fprintf(&b, "**Concepts:** %s\n\n", joinOrNone(r.Root.Concepts))

	if len(r.Connected) == 0 {
		b.WriteString("No connections found for this note.\n")
		return b.String()
	}

	byDepth := make(map[int][]zettel.ContextNode)
	for _, n := range r.Connected {
		byDepth[n.Depth] = append(byDepth[n.Depth], n)
	}

	for d := 1; d <= r.MaxDepth; d++ {
		nodes, ok := byDepth[d]
		if !ok {
			continue
		}
		label := "Direct Connections"
		if d > 1 {
			label = fmt.Sprintf("Depth %d Connections", d)
		}
		fmt.Fprintf(&b, "## %s (depth %d)\n\n", label, d)

		for _, n := range nodes {
			arrow := "→"
			switch n.Direction {
			case zettel.DirectionIncoming:
				arrow = "←"
			case zettel.DirectionShared:
				arrow = "↔"
			}
			fmt.Fprintf(&b, "- %s %s [%s] %q (%s %.2f)\n", arrow, n.ID, n.Domain, n.Title, n.Kind, n.Weight)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "**Total:** %d connected notes across %d level(s)\n", r.TotalNodes, r.MaxDepth)
	return b.String()
}
