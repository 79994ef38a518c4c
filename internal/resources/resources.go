// Package resources implements MCP resource handlers for the knowledge base.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (zettel://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/zettel/internal/knowledge"
)

// Resource URIs.
const (
	StatsURI  = "zettel://stats"
	ExportURI = "zettel://export"
)

// Source is the read side the resources need.
type Source interface {
	Stats() (*knowledge.Stats, error)
	Export() (*knowledge.ExportData, error)
}

// Handler manages knowledge base resource endpoints.
type Handler struct {
	src Source
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(src Source) *Handler {
	return &Handler{src: src}
}

// StatsResource returns the MCP resource definition for knowledge base statistics.
func (h *Handler) StatsResource() mcp.Resource {
	return mcp.NewResource(
		StatsURI,
		"Knowledge Base Statistics",
		mcp.WithResourceDescription("Note counts per domain, high-score counts, connections and insights"),
		mcp.WithMIMEType("application/json"),
	)
}

// ExportResource returns the MCP resource definition for the full export.
func (h *Handler) ExportResource() mcp.Resource {
	return mcp.NewResource(
		ExportURI,
		"Knowledge Base Export",
		mcp.WithResourceDescription("Every note, connection and insight as one JSON document"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStats returns the current statistics as JSON.
func (h *Handler) HandleStats(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats, err := h.src.Stats()
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, stats)
}

// HandleExport returns the full export as JSON.
func (h *Handler) HandleExport(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := h.src.Export()
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, data)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
