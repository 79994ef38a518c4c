// Package zettel implements the note creation workflow: concept extraction,
// scoring, persistence and similarity auto-linking, plus the read views
// built on top of the knowledge store.
package zettel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/HendryAvila/zettel/internal/concept"
	"github.com/HendryAvila/zettel/internal/insight"
	"github.com/HendryAvila/zettel/internal/knowledge"
	"github.com/HendryAvila/zettel/internal/metrics"
	"github.com/HendryAvila/zettel/internal/mirror"
	"github.com/HendryAvila/zettel/internal/similarity"
)

// Linking thresholds. A new note links to an existing one when similarity
// is strictly above SimilarityThreshold or they share at least
// MinConceptOverlap concepts.
const (
	SimilarityThreshold = 0.3
	MinConceptOverlap   = 2
)

const maxIDAttempts = 5

// Repository is the knowledge store as used by the service.
type Repository interface {
	insight.Repository
	PutNote(n *knowledge.Note) error
	NoteExists(id string) (bool, error)
	PutConnection(source, target string, strength float64, kind string) error
	ConnectionsTo(id string) ([]knowledge.Connection, error)
	ListConnections() ([]knowledge.Connection, error)
	ListInsights(minConfidence float64) ([]knowledge.Insight, error)
	Stats() (*knowledge.Stats, error)
	Export() (*knowledge.ExportData, error)
	Import(data *knowledge.ExportData) (*knowledge.ImportResult, error)
}

// Options holds the collaborators of a Service. Only Engine is required.
type Options struct {
	Engine    *concept.Engine
	Scorer    similarity.Scorer
	Generator insight.Generator
	Vault     *mirror.Vault
	Metrics   *metrics.Collector
	Logger    *zap.Logger
}

// Service runs the note workflow against a Repository.
type Service struct {
	repo       Repository
	engine     *concept.Engine
	scorer     similarity.Scorer
	vault      *mirror.Vault
	metrics    *metrics.Collector
	logger     *zap.Logger
	discoverer *insight.Discoverer

	// createMu serializes CreateNote so every new note is compared against
	// all notes created before it.
	createMu sync.Mutex
}

// NewService wires a Service.
func NewService(repo Repository, opts Options) (*Service, error) {
	if repo == nil {
		return nil, errors.New("zettel: nil repository")
	}
	if opts.Engine == nil {
		return nil, errors.New("zettel: nil concept engine")
	}
	if opts.Scorer == nil {
		opts.Scorer = similarity.TFIDF{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		repo:       repo,
		engine:     opts.Engine,
		scorer:     opts.Scorer,
		vault:      opts.Vault,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		discoverer: insight.NewDiscoverer(repo, opts.Generator, opts.Logger, opts.Metrics),
	}, nil
}

// ─── Note creation ───────────────────────────────────────────────────────────

// CreateNoteParams holds the caller-supplied fields of a new note.
// Content may be empty; Domain is trimmed and lower-cased.
type CreateNoteParams struct {
	Title         string `validate:"required"`
	Content       string
	Domain        string `validate:"required"`
	ExperimentRef *string
}

var validate = validator.New()

// NormalizeDomain maps a caller-supplied domain label onto its stored form.
func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

func (p *CreateNoteParams) normalize() error {
	p.Title = strings.TrimSpace(p.Title)
	p.Domain = NormalizeDomain(p.Domain)
	if p.ExperimentRef != nil {
		ref := strings.TrimSpace(*p.ExperimentRef)
		if ref == "" {
			p.ExperimentRef = nil
		} else {
			p.ExperimentRef = &ref
		}
	}
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s failed %q: %w", verrs[0].Field(), verrs[0].Tag(), knowledge.ErrInvalidInput)
		}
		return fmt.Errorf("%v: %w", err, knowledge.ErrInvalidInput)
	}
	return nil
}

// CreateNote extracts concepts, scores and stores a new note, then links it
// to every existing note it resembles. Links run from the new note to the
// existing ones only. It returns the new note's ID.
//
// ctx is only checked before anything is written. Once the note is stored,
// any later failure is returned together with its ID, so the caller can
// tell a partially linked note from one that was never created.
func (s *Service) CreateNote(ctx context.Context, p CreateNoteParams) (string, error) {
	if err := p.normalize(); err != nil {
		return "", fmt.Errorf("create note: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("create note: %w", err)
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	id, err := s.newNoteID(p.Title, p.Content)
	if err != nil {
		return "", fmt.Errorf("create note: %w", err)
	}

	concepts := s.engine.ExtractConcepts(p.Content, p.Domain)
	now := timeNow().UTC()
	note := &knowledge.Note{
		ID:                 id,
		Title:              p.Title,
		Content:            p.Content,
		Domain:             p.Domain,
		ExperimentRef:      p.ExperimentRef,
		Concepts:           concepts,
		Connections:        []string{},
		PermanenceScore:    s.engine.PermanenceScore(p.Content, concepts),
		EmergencePotential: s.engine.EmergencePotential(concepts, p.Domain),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.PutNote(note); err != nil {
		return "", fmt.Errorf("create note: %w", err)
	}

	linked, err := s.link(note)
	if err != nil {
		s.logger.Warn("note stored but linking failed",
			zap.String("note_id", id), zap.Int("connections", linked), zap.Error(err))
		return id, fmt.Errorf("create note %s: link: %w", id, err)
	}

	note.UpdatedAt = timeNow().UTC()
	if err := s.repo.PutNote(note); err != nil {
		return id, fmt.Errorf("create note %s: update connections: %w", id, err)
	}

	s.metrics.NoteCreated()
	s.metrics.ConnectionsCreated(linked)
	s.mirrorNote(note)

	s.logger.Info("note created",
		zap.String("note_id", id),
		zap.String("domain", note.Domain),
		zap.Int("concepts", len(note.Concepts)),
		zap.Int("connections", linked),
		zap.Float64("permanence", note.PermanenceScore),
		zap.Float64("emergence", note.EmergencePotential))

	return id, nil
}

// link compares note against every other stored note and writes an edge
// note→other for each match. It appends the targets to note.Connections.
func (s *Service) link(note *knowledge.Note) (int, error) {
	others, err := s.repo.ListNotes(knowledge.NoteFilter{})
	if err != nil {
		return 0, err
	}

	own := make(map[string]bool, len(note.Concepts))
	for _, c := range note.Concepts {
		own[c] = true
	}

	linked := 0
	for i := range others {
		other := &others[i]
		if other.ID == note.ID {
			continue
		}

		sim := s.scorer.Similarity(note.Content, other.Content)
		overlap := 0
		for _, c := range other.Concepts {
			if own[c] {
				overlap++
			}
		}
		if sim <= SimilarityThreshold && overlap < MinConceptOverlap {
			continue
		}

		if err := s.repo.PutConnection(note.ID, other.ID, sim, knowledge.KindSemantic); err != nil {
			return linked, err
		}
		note.Connections = append(note.Connections, other.ID)
		linked++
	}
	return linked, nil
}

// newNoteID returns AI<yyyymmddhhmmss><8 hex chars> not yet in use.
func (s *Service) newNoteID(title, content string) (string, error) {
	for attempt := range maxIDAttempts {
		now := timeNow()
		sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d", title, content, now.UnixNano(), attempt)))
		id := "AI" + now.UTC().Format("20060102150405") + hex.EncodeToString(sum[:])[:8]

		exists, err := s.repo.NoteExists(id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique note id after %d attempts", maxIDAttempts)
}

// ─── Analysis ────────────────────────────────────────────────────────────────

// Analysis is the derived data of a note, computed without storing it.
type Analysis struct {
	Concepts           []string `json:"concepts"`
	PermanenceScore    float64  `json:"permanence_score"`
	EmergencePotential float64  `json:"emergence_potential"`
}

// Analyze runs extraction and scoring only.
func (s *Service) Analyze(content, domain string) Analysis {
	domain = NormalizeDomain(domain)
	concepts := s.engine.ExtractConcepts(content, domain)
	return Analysis{
		Concepts:           concepts,
		PermanenceScore:    s.engine.PermanenceScore(content, concepts),
		EmergencePotential: s.engine.EmergencePotential(concepts, domain),
	}
}

// KnownDomains returns the domains of the concept vocabulary.
func (s *Service) KnownDomains() []string {
	return s.engine.KnownDomains()
}

// ─── Insights ────────────────────────────────────────────────────────────────

// DiscoverInsights runs insight discovery and mirrors every new insight.
// Insights created before a failure are still returned.
func (s *Service) DiscoverInsights(ctx context.Context) ([]knowledge.Insight, error) {
	insights, err := s.discoverer.Discover(ctx)
	for i := range insights {
		s.mirrorInsight(&insights[i])
	}
	if err != nil {
		return insights, err
	}
	s.logger.Info("insight discovery finished", zap.Int("insights", len(insights)))
	return insights, nil
}

// ListInsights returns stored insights with confidence >= minConfidence.
func (s *Service) ListInsights(minConfidence float64) ([]knowledge.Insight, error) {
	return s.repo.ListInsights(minConfidence)
}

// ─── Reads ───────────────────────────────────────────────────────────────────

// GetNote returns a stored note.
func (s *Service) GetNote(id string) (*knowledge.Note, error) {
	return s.repo.GetNote(id)
}

// ListNotes returns notes matching f.
func (s *Service) ListNotes(f knowledge.NoteFilter) ([]knowledge.Note, error) {
	f.Domain = NormalizeDomain(f.Domain)
	return s.repo.ListNotes(f)
}

// Stats returns the knowledge base statistics.
func (s *Service) Stats() (*knowledge.Stats, error) {
	return s.repo.Stats()
}

// Export dumps every note, connection and insight.
func (s *Service) Export() (*knowledge.ExportData, error) {
	return s.repo.Export()
}

// Import loads a previous export. Existing records with the same keys are
// replaced; concepts and scores are taken as exported, not recomputed.
func (s *Service) Import(data *knowledge.ExportData) (*knowledge.ImportResult, error) {
	s.createMu.Lock()
	defer s.createMu.Unlock()
	return s.repo.Import(data)
}

// ConnectionsView is the live set of edges touching a note.
type ConnectionsView struct {
	NoteID   string                 `json:"note_id"`
	Outgoing []knowledge.Connection `json:"outgoing"`
	Incoming []knowledge.Connection `json:"incoming"`
}

// Connections reads the connection table for id. Unlike Note.Connections,
// which is the snapshot taken when the note was created, it includes edges
// from notes created later.
func (s *Service) Connections(id string) (*ConnectionsView, error) {
	if _, err := s.repo.GetNote(id); err != nil {
		return nil, err
	}
	out, err := s.repo.ConnectionsFrom(id)
	if err != nil {
		return nil, err
	}
	in, err := s.repo.ConnectionsTo(id)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []knowledge.Connection{}
	}
	if in == nil {
		in = []knowledge.Connection{}
	}
	return &ConnectionsView{NoteID: id, Outgoing: out, Incoming: in}, nil
}

// ─── Mirror ──────────────────────────────────────────────────────────────────

func (s *Service) mirrorNote(n *knowledge.Note) {
	if err := s.vault.WriteNote(n); err != nil {
		s.metrics.MirrorFailed()
		s.logger.Warn("mirror note failed", zap.String("note_id", n.ID), zap.Error(err))
	}
}

func (s *Service) mirrorInsight(in *knowledge.Insight) {
	if err := s.vault.WriteInsight(in); err != nil {
		s.metrics.MirrorFailed()
		s.logger.Warn("mirror insight failed", zap.String("insight_id", in.ID), zap.Error(err))
	}
}
