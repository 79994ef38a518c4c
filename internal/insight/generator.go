package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// Request carries what a Generator needs to narrate one insight.
type Request struct {
	NoteID         string
	NoteTitle      string
	Concepts       []string
	Domain         string
	ForeignDomains []string
	// DomainCounts maps each foreign domain to the number of connected notes in it.
	DomainCounts map[string]int
}

// Generator produces the narrative body of an insight.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ─── Template ────────────────────────────────────────────────────────────────

const insightTemplate = `# Emergent insight: {{.NoteID}}

## Connected concepts
{{join .Concepts}}

## Connected domains
{{join .ForeignDomains}}

## Insight
This knowledge note connects to several AI domains ({{join .ForeignDomains}})
and may be a source of new research directions or implementation ideas.

## Research proposals
- Combine {{.LeadConcept}} with {{.LeadDomain}}
- New AI methods that integrate multiple domains
- Proof of concept through an experimental implementation

## Next steps
1. Survey related papers
2. Build a prototype
3. Record experiment results
4. Write new knowledge notes
`

var parsedTemplate = template.Must(template.New("insight").
	Funcs(template.FuncMap{"join": func(s []string) string { return strings.Join(s, ", ") }}).
	Parse(insightTemplate))

// TemplateGenerator renders a fixed markdown narrative. It never calls out.
type TemplateGenerator struct{}

func (TemplateGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data := struct {
		Request
		LeadConcept string
		LeadDomain  string
	}{Request: req, LeadConcept: "Core concept", LeadDomain: "related domain"}
	if len(req.Concepts) > 0 {
		data.LeadConcept = req.Concepts[0]
	}
	if len(req.ForeignDomains) > 0 {
		data.LeadDomain = req.ForeignDomains[0]
	}

	var sb strings.Builder
	if err := parsedTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("insight template: %w", err)
	}
	return sb.String(), nil
}

// ─── Fallback ────────────────────────────────────────────────────────────────

// FallbackGenerator tries Primary and, if it is nil or fails, Secondary.
type FallbackGenerator struct {
	Primary   Generator
	Secondary Generator
}

func (g FallbackGenerator) Generate(ctx context.Context, req Request) (string, error) {
	var primaryErr error
	if g.Primary != nil {
		body, err := g.Primary.Generate(ctx, req)
		if err == nil {
			return body, nil
		}
		primaryErr = err
	}
	if g.Secondary == nil {
		if primaryErr == nil {
			primaryErr = errors.New("insight: no generator configured")
		}
		return "", primaryErr
	}
	body, err := g.Secondary.Generate(ctx, req)
	if err != nil {
		return "", errors.Join(primaryErr, err)
	}
	return body, nil
}
