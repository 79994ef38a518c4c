package zktools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/zettel/internal/knowledge"
	"github.com/HendryAvila/zettel/internal/zettel"
)

// ─── zk_discover_insights ───────────────────────────────────────────────────

// DiscoverInsightsTool handles the zk_discover_insights MCP tool.
type DiscoverInsightsTool struct {
	svc *zettel.Service
}

// NewDiscoverInsightsTool creates a DiscoverInsightsTool.
func NewDiscoverInsightsTool(svc *zettel.Service) *DiscoverInsightsTool {
	return &DiscoverInsightsTool{svc: svc}
}

// Definition returns the MCP tool definition for zk_discover_insights.
func (t *DiscoverInsightsTool) Definition() mcp.Tool {
	return mcp.NewTool("zk_discover_insights",
		mcp.WithDescription(
			"Scan for notes with high emergence potential that connect to two or more other "+
				"domains, and store a cross-domain insight for each. Every run creates new insights.",
		),
		mcp.WithString("detail_level",
			mcp.Description("summary (titles only), standard (default) or full (include narrative)"),
			mcp.Enum(detailLevelValues()...),
		),
	)
}

// Handle processes the zk_discover_insights tool call.
func (t *DiscoverInsightsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	detail := parseDetailLevel(req.GetString("detail_level", ""))

	insights, err := t.svc.DiscoverInsights(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("insight discovery failed after %d insights: %v", len(insights), err)), nil
	}
	if len(insights) == 0 {
		return mcp.NewToolResultText("No cross-domain insights found."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Discovered %d insights:\n\n", len(insights))
	writeInsights(&b, insights, detail)
	return mcp.NewToolResultText(b.String()), nil
}

// ─── zk_list_insights ───────────────────────────────────────────────────────

// ListInsightsTool handles the zk_list_insights MCP tool.
type ListInsightsTool struct {
	svc *zettel.Service
}

// NewListInsightsTool creates a ListInsightsTool.
func NewListInsightsTool(svc *zettel.Service) *ListInsightsTool {
	return &ListInsightsTool{svc: svc}
}

// Definition returns the MCP tool definition for zk_list_insights.
func (t *ListInsightsTool) Definition() mcp.Tool {
	return mcp.NewTool("zk_list_insights",
		mcp.WithDescription("List stored insights, most confident first."),
		mcp.WithNumber("min_confidence",
			mcp.Description("Only insights with confidence at or above this value (0-1, default 0)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20, max: 100)"),
		),
		mcp.WithString("detail_level",
			mcp.Description("summary (titles only), standard (default) or full (include narrative)"),
			mcp.Enum(detailLevelValues()...),
		),
	)
}

// Handle processes the zk_list_insights tool call.
func (t *ListInsightsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := intArg(req, "limit", 20)
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	detail := parseDetailLevel(req.GetString("detail_level", ""))

	insights, err := t.svc.ListInsights(floatArg(req, "min_confidence", 0))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list insights: %v", err)), nil
	}
	if len(insights) == 0 {
		return mcp.NewToolResultText("No insights stored."), nil
	}

	total := len(insights)
	if len(insights) > limit {
		insights = insights[:limit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d insights:\n\n", total)
	writeInsights(&b, insights, detail)
	b.WriteString(navigationHint(len(insights), total, "Raise min_confidence to see fewer."))
	return mcp.NewToolResultText(b.String()), nil
}

func writeInsights(b *strings.Builder, insights []knowledge.Insight, detail string) {
	for _, in := range insights {
		fmt.Fprintf(b, "- **%s** %q (confidence %.2f)\n", in.ID, in.Title, in.ConfidenceScore)
		if detail == DetailSummary {
			continue
		}
		fmt.Fprintf(b, "  Source: %s | Domains: %s | Concepts: %s\n",
			in.SourceNoteID, joinOrNone(in.Domains), joinOrNone(in.ConnectedConcepts))
		if detail == DetailFull {
			body := in.Body
			if body == "" {
				body = "(no narrative)"
			}
			fmt.Fprintf(b, "\n%s\n\n", body)
		}
	}
}

// ─── zk_stats ───────────────────────────────────────────────────────────────

// StatsTool handles the zk_stats MCP tool.
type StatsTool struct {
	svc *zettel.Service
}

// NewStatsTool creates a StatsTool.
func NewStatsTool(svc *zettel.Service) *StatsTool {
	return &StatsTool{svc: svc}
}

// Definition returns the MCP tool definition for zk_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("zk_stats",
		mcp.WithDescription(
			"Show knowledge base statistics: notes per domain, high-permanence and high-emergence "+
				"counts, connections and insights.",
		),
	)
}

// Handle processes the zk_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.svc.Stats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("## Knowledge Base Statistics\n\n")
	sb.WriteString(fmt.Sprintf("- **Notes**: %d\n", stats.TotalNotes))
	sb.WriteString(fmt.Sprintf("- **High permanence** (> %.1f): %d\n", knowledge.HighPermanenceThreshold, stats.HighPermanenceCount))
	sb.WriteString(fmt.Sprintf("- **High emergence** (> %.1f): %d\n", knowledge.HighEmergenceThreshold, stats.HighEmergenceCount))
	sb.WriteString(fmt.Sprintf("- **Connections**: %d\n", stats.TotalConnections))
	sb.WriteString(fmt.Sprintf("- **Insights**: %d\n", stats.TotalInsights))

	if len(stats.DomainDistribution) > 0 {
		sb.WriteString("\n### Domains\n")
		for _, d := range sortedKeys(stats.DomainDistribution) {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", d, stats.DomainDistribution[d]))
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}
