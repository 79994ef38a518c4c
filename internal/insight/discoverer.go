// Package insight finds notes whose connections span several foreign domains
// and materializes them as Insight records.
package insight

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HendryAvila/zettel/internal/knowledge"
	"github.com/HendryAvila/zettel/internal/metrics"
)

// MinEmergence is the strict lower bound on emergence potential for a note
// to be considered by discovery.
const MinEmergence = 0.5

// minForeignDomains is how many distinct foreign domains a note must reach.
const minForeignDomains = 2

// Repository is the subset of the knowledge store discovery needs.
type Repository interface {
	ListNotes(f knowledge.NoteFilter) ([]knowledge.Note, error)
	GetNote(id string) (*knowledge.Note, error)
	ConnectionsFrom(id string) ([]knowledge.Connection, error)
	PutInsight(in *knowledge.Insight) error
}

// Discoverer runs insight discovery over a Repository.
type Discoverer struct {
	repo    Repository
	gen     Generator
	logger  *zap.Logger
	metrics *metrics.Collector

	newID func() string
	now   func() time.Time
}

// NewDiscoverer creates a Discoverer. gen, logger and m may be nil.
func NewDiscoverer(repo Repository, gen Generator, logger *zap.Logger, m *metrics.Collector) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		repo:    repo,
		gen:     gen,
		logger:  logger,
		metrics: m,
		newID:   func() string { return "INSIGHT_" + uuid.NewString() },
		now:     time.Now,
	}
}

// Discover scans notes with emergence potential above MinEmergence, most
// promising first, and stores one Insight for every note connected to at
// least two foreign domains. It returns the insights created in this run.
//
// Narrative generation failures leave the body empty. Storage failures
// abort the run.
func (d *Discoverer) Discover(ctx context.Context) ([]knowledge.Insight, error) {
	candidates, err := d.repo.ListNotes(knowledge.NoteFilter{
		MinEmergence:     MinEmergence,
		OrderByEmergence: true,
	})
	if err != nil {
		return nil, fmt.Errorf("discover: list candidates: %w", err)
	}

	insights := make([]knowledge.Insight, 0)
	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return insights, err
		}
		note := &candidates[i]

		counts, err := d.foreignDomains(note)
		if err != nil {
			return insights, fmt.Errorf("discover: note %s: %w", note.ID, err)
		}
		if len(counts) < minForeignDomains {
			continue
		}

		foreign := make([]string, 0, len(counts))
		for domain := range counts {
			foreign = append(foreign, domain)
		}
		sort.Strings(foreign)

		in := knowledge.Insight{
			ID:                d.newID(),
			Title:             "Cross-domain insight: " + note.Title,
			SourceNoteID:      note.ID,
			ConnectedConcepts: append([]string{}, note.Concepts...),
			Domains:           append([]string{note.Domain}, foreign...),
			ConfidenceScore:   note.EmergencePotential,
			CreatedAt:         d.now().UTC(),
		}
		in.Body = d.narrate(ctx, Request{
			NoteID:         note.ID,
			NoteTitle:      note.Title,
			Concepts:       in.ConnectedConcepts,
			Domain:         note.Domain,
			ForeignDomains: foreign,
			DomainCounts:   counts,
		})

		if err := d.repo.PutInsight(&in); err != nil {
			return insights, fmt.Errorf("discover: store insight for %s: %w", note.ID, err)
		}
		d.metrics.InsightCreated()
		d.logger.Info("insight created",
			zap.String("insight_id", in.ID),
			zap.String("note_id", note.ID),
			zap.Strings("domains", in.Domains),
			zap.Float64("confidence", in.ConfidenceScore))

		insights = append(insights, in)
	}
	return insights, nil
}

// foreignDomains counts the connected notes per domain other than the
// note's own. Connections to notes that no longer resolve are skipped.
func (d *Discoverer) foreignDomains(note *knowledge.Note) (map[string]int, error) {
	conns, err := d.repo.ConnectionsFrom(note.ID)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, c := range conns {
		target, err := d.repo.GetNote(c.TargetID)
		if errors.Is(err, knowledge.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if target.Domain != note.Domain {
			counts[target.Domain]++
		}
	}
	return counts, nil
}

func (d *Discoverer) narrate(ctx context.Context, req Request) string {
	if d.gen == nil {
		return ""
	}
	body, err := d.gen.Generate(ctx, req)
	if err != nil {
		d.metrics.GenerationFailed()
		d.logger.Warn("insight narrative generation failed",
			zap.String("note_id", req.NoteID),
			zap.Error(err))
		return ""
	}
	return body
}
