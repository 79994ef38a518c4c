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

// ─── zk_create_note ─────────────────────────────────────────────────────────

// CreateNoteTool handles the zk_create_note MCP tool.
type CreateNoteTool struct {
	svc *zettel.Service
}

// NewCreateNoteTool creates a CreateNoteTool.
func NewCreateNoteTool(svc *zettel.Service) *CreateNoteTool {
	return &CreateNoteTool{svc: svc}
}

// Definition returns the MCP tool definition for zk_create_note.
func (t *CreateNoteTool) Definition() mcp.Tool {
	return mcp.NewTool("zk_create_note",
		mcp.WithDescription(
			"Create a permanent knowledge note. Concepts are extracted from the content, "+
				"permanence and emergence scores are computed, and the note is linked to every "+
				"existing note it is similar to or shares two or more concepts with.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Short descriptive title"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Full note content in markdown"),
		),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("Knowledge domain, stored lower-cased (e.g. llm, agent, rag, prompt-engineering)"),
		),
		mcp.WithString("experiment_ref",
			mcp.Description("Optional reference to the experiment this note came from"),
		),
	)
}

// Handle processes the zk_create_note tool call.
func (t *CreateNoteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := zettel.CreateNoteParams{
		Title:   req.GetString("title", ""),
		Content: req.GetString("content", ""),
		Domain:  req.GetString("domain", ""),
	}
	if ref := req.GetString("experiment_ref", ""); ref != "" {
		p.ExperimentRef = &ref
	}

	id, err := t.svc.CreateNote(ctx, p)
	if err != nil {
		if id != "" {
			return mcp.NewToolResultError(fmt.Sprintf("note %s was stored but could not be fully linked: %v", id, err)), nil
		}
		if errors.Is(err, knowledge.ErrInvalidInput) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid note: %v", err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to create note: %v", err)), nil
	}

	note, err := t.svc.GetNote(id)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Note created: %s", id)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Note created: %s\n\n", id)
	fmt.Fprintf(&b, "- **Domain**: %s\n", note.Domain)
	fmt.Fprintf(&b, "- **Concepts**: %s\n", joinOrNone(note.Concepts))
	fmt.Fprintf(&b, "- **Permanence**: %.3f\n", note.PermanenceScore)
	fmt.Fprintf(&b, "- **Emergence**: %.3f\n", note.EmergencePotential)
	fmt.Fprintf(&b, "- **Connections**: %d\n", len(note.Connections))
	for _, c := range note.Connections {
		fmt.Fprintf(&b, "  - [[%s]]\n", c)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── zk_get_note ────────────────────────────────────────────────────────────

// GetNoteTool handles the zk_get_note MCP tool.
type GetNoteTool struct {
	svc *zettel.Service
}

// NewGetNoteTool creates a GetNoteTool.
func NewGetNoteTool(svc *zettel.Service) *GetNoteTool {
	return &GetNoteTool{svc: svc}
}

// Definition returns the MCP tool definition for zk_get_note.
func (t *GetNoteTool) Definition() mcp.Tool {
	return mcp.NewTool("zk_get_note",
		mcp.WithDescription("Get the full content of a knowledge note by ID."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The note ID (e.g. AI20250724120000abcdef12)"),
		),
	)
}

// Handle processes the zk_get_note tool call.
func (t *GetNoteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	n, err := t.svc.GetNote(id)
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("note %s not found", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to get note: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", n.Title)
	fmt.Fprintf(&b, "**ID:** %s\n", n.ID)
	fmt.Fprintf(&b, "**Domain:** %s\n", n.Domain)
	if n.ExperimentRef != nil {
		fmt.Fprintf(&b, "**Experiment:** %s\n", *n.ExperimentRef)
	}
	fmt.Fprintf(&b, "**Concepts:** %s\n", joinOrNone(n.Concepts))
	fmt.Fprintf(&b, "**Scores:** permanence %.3f, emergence %.3f\n", n.PermanenceScore, n.EmergencePotential)
	fmt.Fprintf(&b, "**Created:** %s\n\n", n.CreatedAt.Format("2006-01-02 15:04:05"))
	b.WriteString(n.Content)
	b.WriteString("\n")
	if len(n.Connections) > 0 {
		b.WriteString("\n## Connected at creation\n")
		for _, c := range n.Connections {
			fmt.Fprintf(&b, "- [[%s]]\n", c)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── zk_list_notes ──────────────────────────────────────────────────────────

// ListNotesTool handles the zk_list_notes MCP tool.
type ListNotesTool struct {
	svc *zettel.Service
}

// NewListNotesTool creates a ListNotesTool.
func NewListNotesTool(svc *zettel.Service) *ListNotesTool {
	return &ListNotesTool{svc: svc}
}

// Definition returns the MCP tool definition for zk_list_notes.
func (t *ListNotesTool) Definition() mcp.Tool {
	return mcp.NewTool("zk_list_notes",
		mcp.WithDescription(
			"List knowledge notes, optionally filtered by domain and minimum scores. "+
				"Minimum scores are exclusive.",
		),
		mcp.WithString("domain",
			mcp.Description("Only notes in this domain"),
		),
		mcp.WithNumber("min_permanence",
			mcp.Description("Only notes with permanence score above this value (0-1)"),
		),
		mcp.WithNumber("min_emergence",
			mcp.Description("Only notes with emergence potential above this value (0-1)"),
		),
		mcp.WithString("order_by",
			mcp.Description("Sort order: id (default) or emergence"),
			mcp.Enum("id", "emergence"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20, max: 100)"),
		),
		mcp.WithString("detail_level",
			mcp.Description("summary (titles only), standard (default, content snippets) or full"),
			mcp.Enum(detailLevelValues()...),
		),
	)
}

// Handle processes the zk_list_notes tool call.
func (t *ListNotesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := intArg(req, "limit", 20)
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	detail := parseDetailLevel(req.GetString("detail_level", ""))

	notes, err := t.svc.ListNotes(knowledge.NoteFilter{
		Domain:           req.GetString("domain", ""),
		MinPermanence:    floatArg(req, "min_permanence", 0),
		MinEmergence:     floatArg(req, "min_emergence", 0),
		OrderByEmergence: req.GetString("order_by", "id") == "emergence",
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list notes: %v", err)), nil
	}
	if len(notes) == 0 {
		return mcp.NewToolResultText("No notes found."), nil
	}

	total := len(notes)
	if len(notes) > limit {
		notes = notes[:limit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d notes:\n\n", total)
	for _, n := range notes {
		fmt.Fprintf(&b, "- **%s** %q [%s] permanence %.2f, emergence %.2f\n",
			n.ID, n.Title, n.Domain, n.PermanenceScore, n.EmergencePotential)
		switch detail {
		case DetailStandard:
			fmt.Fprintf(&b, "  %s\n", truncate(strings.ReplaceAll(n.Content, "\n", " "), snippetRunes))
		case DetailFull:
			fmt.Fprintf(&b, "  Concepts: %s\n\n%s\n\n", joinOrNone(n.Concepts), n.Content)
		}
	}
	b.WriteString(navigationHint(len(notes), total, "Use limit or filters to narrow the list."))
	return mcp.NewToolResultText(b.String()), nil
}

// ─── zk_extract_concepts ────────────────────────────────────────────────────

// ExtractConceptsTool handles the zk_extract_concepts MCP tool.
type ExtractConceptsTool struct {
	svc *zettel.Service
}

// NewExtractConceptsTool creates an ExtractConceptsTool.
func NewExtractConceptsTool(svc *zettel.Service) *ExtractConceptsTool {
	return &ExtractConceptsTool{svc: svc}
}

// Definition returns the MCP tool definition for zk_extract_concepts.
func (t *ExtractConceptsTool) Definition() mcp.Tool {
	return mcp.NewTool("zk_extract_concepts",
		mcp.WithDescription(
			"Preview the concepts and scores a note would get, without storing anything.",
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Note content to analyze"),
		),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("Knowledge domain to match domain vocabulary against"),
		),
	)
}

// Handle processes the zk_extract_concepts tool call.
func (t *ExtractConceptsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")
	if strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}
	domain := zettel.NormalizeDomain(req.GetString("domain", ""))
	if domain == "" {
		return mcp.NewToolResultError("'domain' is required"), nil
	}

	a := t.svc.Analyze(content, domain)

	var b strings.Builder
	fmt.Fprintf(&b, "## Analysis (%s)\n\n", domain)
	fmt.Fprintf(&b, "- **Concepts**: %s\n", joinOrNone(a.Concepts))
	fmt.Fprintf(&b, "- **Permanence**: %.3f\n", a.PermanenceScore)
	fmt.Fprintf(&b, "- **Emergence**: %.3f\n", a.EmergencePotential)
	if !contains(t.svc.KnownDomains(), domain) {
		fmt.Fprintf(&b, "\nDomain %q has no vocabulary; only general concepts were matched. Known domains: %s\n",
			domain, strings.Join(t.svc.KnownDomains(), ", "))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func joinOrNone(s []string) string {
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, ", ")
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
