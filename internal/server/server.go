// Package server wires all Zettel components and creates the MCP server.
//
// This is the composition root: it builds the store, engines, generators and
// mirror from a config.Config and injects them into the service, tools,
// prompts and resources.
// No business logic lives here, only wiring.
package server

import (
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/HendryAvila/zettel/internal/concept"
	"github.com/HendryAvila/zettel/internal/config"
	"github.com/HendryAvila/zettel/internal/insight"
	"github.com/HendryAvila/zettel/internal/knowledge"
	"github.com/HendryAvila/zettel/internal/metrics"
	"github.com/HendryAvila/zettel/internal/mirror"
	"github.com/HendryAvila/zettel/internal/prompts"
	"github.com/HendryAvila/zettel/internal/resources"
	"github.com/HendryAvila/zettel/internal/similarity"
	"github.com/HendryAvila/zettel/internal/zettel"
	"github.com/HendryAvila/zettel/internal/zktools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Server bundles the MCP server with the resources it owns.
type Server struct {
	MCP     *server.MCPServer
	Service *zettel.Service

	store   *knowledge.Store
	metrics *metrics.Collector
}

// New resolves every dependency from cfg and registers all tools.
// The caller must Close the returned Server on shutdown.
func New(cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// --- Vocabulary and engines ---

	vocab, err := loadVocabulary(cfg.VocabularyPath)
	if err != nil {
		return nil, err
	}
	engine := concept.NewEngine(vocab)
	scorer := similarity.NewTFIDF(cfg.MaxFeatures)

	// --- Storage ---

	store, err := knowledge.New(knowledge.Config{DataDir: cfg.DataDir})
	if err != nil {
		return nil, fmt.Errorf("server: opening knowledge store: %w", err)
	}

	m := metrics.New()
	vault := mirror.NewVault(cfg.MirrorDir)
	gen := newGenerator(cfg.Anthropic, logger)

	svc, err := zettel.NewService(store, zettel.Options{
		Engine:    engine,
		Scorer:    scorer,
		Generator: gen,
		Vault:     vault,
		Metrics:   m,
		Logger:    logger.Named("zettel"),
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("server: creating service: %w", err)
	}

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"zettel",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)
	registerTools(s, svc)

	// --- Register prompts ---

	capturePrompt := prompts.NewCapturePrompt()
	s.AddPrompt(capturePrompt.Definition(), capturePrompt.Handle)

	reviewPrompt := prompts.NewReviewPrompt()
	s.AddPrompt(reviewPrompt.Definition(), reviewPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(svc)
	s.AddResource(resourceHandler.StatsResource(), resourceHandler.HandleStats)
	s.AddResource(resourceHandler.ExportResource(), resourceHandler.HandleExport)

	logger.Info("zettel server ready",
		zap.String("data_dir", cfg.DataDir),
		zap.Bool("mirror", vault != nil),
		zap.Strings("domains", engine.KnownDomains()),
		zap.Int("max_features", cfg.MaxFeatures))

	return &Server{
		MCP:     s,
		Service: svc,
		store:   store,
		metrics: m,
	}, nil
}

// MetricsHandler serves the Prometheus metrics of this server.
func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

// Close releases the knowledge store.
func (s *Server) Close() error {
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("server: closing knowledge store: %w", err)
	}
	return nil
}

func loadVocabulary(path string) (*concept.Vocabulary, error) {
	if path == "" {
		vocab, err := concept.DefaultVocabulary()
		if err != nil {
			return nil, fmt.Errorf("server: default vocabulary: %w", err)
		}
		return vocab, nil
	}
	vocab, err := concept.LoadVocabulary(path)
	if err != nil {
		return nil, fmt.Errorf("server: loading vocabulary: %w", err)
	}
	return vocab, nil
}

// newGenerator returns the template generator, fronted by the Anthropic
// generator when an API key is configured.
func newGenerator(cfg config.Anthropic, logger *zap.Logger) insight.Generator {
	template := insight.TemplateGenerator{}
	if cfg.APIKey == "" {
		return template
	}
	llm, err := insight.NewAnthropicGenerator(insight.AnthropicConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}, logger.Named("anthropic"))
	if err != nil {
		logger.Warn("anthropic generator disabled", zap.Error(err))
		return template
	}
	return insight.FallbackGenerator{Primary: llm, Secondary: template}
}

// registerTools registers all knowledge base MCP tools with the server.
func registerTools(s *server.MCPServer, svc *zettel.Service) {
	// --- Notes ---
	createNote := zktools.NewCreateNoteTool(svc)
	s.AddTool(createNote.Definition(), createNote.Handle)

	getNote := zktools.NewGetNoteTool(svc)
	s.AddTool(getNote.Definition(), getNote.Handle)

	listNotes := zktools.NewListNotesTool(svc)
	s.AddTool(listNotes.Definition(), listNotes.Handle)

	extract := zktools.NewExtractConceptsTool(svc)
	s.AddTool(extract.Definition(), extract.Handle)

	// --- Graph ---
	connections := zktools.NewConnectionsTool(svc)
	s.AddTool(connections.Definition(), connections.Handle)

	buildCtx := zktools.NewBuildContextTool(svc)
	s.AddTool(buildCtx.Definition(), buildCtx.Handle)

	// --- Insights ---
	discover := zktools.NewDiscoverInsightsTool(svc)
	s.AddTool(discover.Definition(), discover.Handle)

	listInsights := zktools.NewListInsightsTool(svc)
	s.AddTool(listInsights.Definition(), listInsights.Handle)

	// --- Statistics ---
	stats := zktools.NewStatsTool(svc)
	s.AddTool(stats.Definition(), stats.Handle)
}

// serverInstructions returns the system instructions that tell the AI
// how to use Zettel effectively.
func serverInstructions() string {
	return `You have access to Zettel, a knowledge base for AI experiment notes.

## WHEN TO USE Zettel

Save a note with zk_create_note when you or the user:
- Finish an experiment and learn something worth keeping
- Discover how two techniques relate
- Reach a conclusion that should outlive the current session

Each note is one idea. Keep titles short and put the evidence in the content.

## DOMAINS

Use one of the known domains when it fits: llm, agent, rag, prompt-engineering.
Other domains are accepted and stored lower-cased; only general concepts are matched for them.
Call zk_extract_concepts first if you want to preview the concepts and scores.

## LINKING

New notes are linked automatically to existing notes that are textually similar
or share two or more concepts. Use zk_connections to see the links of a note and
zk_build_context to explore its neighbourhood before writing related notes.

## INSIGHTS

Run zk_discover_insights after adding notes across several domains. It stores an
insight for every high-emergence note linked to two or more other domains.
Each run stores new insights; use zk_list_insights to review existing ones first.`
}
