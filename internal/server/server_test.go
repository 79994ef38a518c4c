package server

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/HendryAvila/zettel/internal/config"
	"github.com/HendryAvila/zettel/internal/insight"
	"github.com/HendryAvila/zettel/internal/zettel"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.MirrorDir = filepath.Join(dir, "vault")
	return cfg
}

func TestNew_RegistersTools(t *testing.T) {
	srv, err := New(testConfig(t), zap.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	tools := srv.MCP.ListTools()
	for _, name := range []string{
		"zk_create_note", "zk_get_note", "zk_list_notes", "zk_extract_concepts",
		"zk_connections", "zk_build_context", "zk_discover_insights",
		"zk_list_insights", "zk_stats",
	} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %s not registered", name)
		}
	}
	if len(tools) != 9 {
		t.Errorf("registered %d tools, want 9", len(tools))
	}
}

func TestNew_WiresMirrorAndMetrics(t *testing.T) {
	cfg := testConfig(t)
	srv, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	id, err := srv.Service.CreateNote(context.Background(), zettel.CreateNoteParams{
		Title: "Attention", Content: "transformer attention", Domain: "llm",
	})
	if err != nil {
		t.Fatalf("CreateNote() error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.MirrorDir, "permanent-notes", id+".md")); err != nil {
		t.Errorf("note not mirrored: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "zettel_notes_created_total 1") {
		t.Errorf("metrics missing created counter:\n%s", body)
	}
}

func TestNew_CustomVocabulary(t *testing.T) {
	cfg := testConfig(t)
	cfg.VocabularyPath = filepath.Join(cfg.DataDir, "vocab.yaml")
	if err := os.WriteFile(cfg.VocabularyPath, []byte("domains:\n  cooking:\n    - sourdough\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	srv, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	domains := srv.Service.KnownDomains()
	if len(domains) != 1 || domains[0] != "cooking" {
		t.Errorf("KnownDomains() = %v, want [cooking]", domains)
	}
}

func TestNew_BadVocabulary(t *testing.T) {
	cfg := testConfig(t)
	cfg.VocabularyPath = filepath.Join(cfg.DataDir, "missing.yaml")

	_, err := New(cfg, nil)
	if err == nil {
		t.Fatal("expected error for missing vocabulary file")
	}
	if !strings.Contains(err.Error(), "vocabulary") {
		t.Errorf("error should mention vocabulary, got: %v", err)
	}
}

func TestNewGenerator(t *testing.T) {
	if _, ok := newGenerator(config.Anthropic{}, zap.NewNop()).(insight.TemplateGenerator); !ok {
		t.Error("no api key should give the template generator")
	}

	gen := newGenerator(config.Anthropic{APIKey: "sk-test"}, zap.NewNop())
	fb, ok := gen.(insight.FallbackGenerator)
	if !ok {
		t.Fatalf("api key should enable the fallback chain, got %T", gen)
	}
	if _, ok := fb.Secondary.(insight.TemplateGenerator); !ok {
		t.Errorf("fallback secondary = %T, want TemplateGenerator", fb.Secondary)
	}
}

func TestServerInstructions(t *testing.T) {
	instr := serverInstructions()
	for _, tool := range []string{"zk_create_note", "zk_extract_concepts", "zk_discover_insights"} {
		if !strings.Contains(instr, tool) {
			t.Errorf("instructions should mention %s", tool)
		}
	}
}
