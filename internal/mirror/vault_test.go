package mirror

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/HendryAvila/zettel/internal/knowledge"
)

var created = time.Date(2025, 7, 24, 9, 30, 0, 0, time.UTC)

func sampleNote() *knowledge.Note {
	ref := "EXP_001"
	return &knowledge.Note{
		ID:                 "AI20250724093000deadbeef",
		Title:              "Attention: a primer",
		Content:            "Transformers use attention.\n",
		Domain:             "llm",
		ExperimentRef:      &ref,
		Concepts:           []string{"attention", "transformer"},
		Connections:        []string{"AI1", "AI2"},
		PermanenceScore:    0.41234,
		EmergencePotential: 0.2,
		CreatedAt:          created,
		UpdatedAt:          created,
	}
}

func TestNewVault_EmptyDirDisabled(t *testing.T) {
	if v := NewVault("  "); v != nil {
		t.Fatalf("NewVault(blank) = %+v, want nil", v)
	}
	var v *Vault
	if err := v.WriteNote(sampleNote()); err != nil {
		t.Errorf("nil vault WriteNote: %v", err)
	}
	if err := v.WriteInsight(&knowledge.Insight{ID: "i"}); err != nil {
		t.Errorf("nil vault WriteInsight: %v", err)
	}
}

func TestWriteNote_Document(t *testing.T) {
	v := NewVault(t.TempDir())
	n := sampleNote()
	if err := v.WriteNote(n); err != nil {
		t.Fatalf("WriteNote: %v", err)
	}

	data, err := os.ReadFile(v.NotePath(n.ID))
	if err != nil {
		t.Fatalf("read mirrored note: %v", err)
	}
	doc := string(data)

	for _, want := range []string{
		"---\nid: AI20250724093000deadbeef\n",
		"# Attention: a primer",
		"## Domain: LLM",
		"Transformers use attention.",
		"`attention`, `transformer`",
		"- [[AI1]]\n- [[AI2]]\n",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}
}

func TestWriteNote_FrontMatterRoundTrip(t *testing.T) {
	v := NewVault(t.TempDir())
	n := sampleNote()
	if err := v.WriteNote(n); err != nil {
		t.Fatalf("WriteNote: %v", err)
	}

	fm, err := v.ReadNoteFrontMatter(n.ID)
	if err != nil {
		t.Fatalf("ReadNoteFrontMatter: %v", err)
	}
	if fm.Title != n.Title {
		t.Errorf("title = %q, want %q (colon must survive YAML quoting)", fm.Title, n.Title)
	}
	if fm.ExperimentRef == nil || *fm.ExperimentRef != "EXP_001" {
		t.Errorf("experiment_ref = %v", fm.ExperimentRef)
	}
	if fm.PermanenceScore != 0.412 {
		t.Errorf("permanence_score = %v, want 0.412", fm.PermanenceScore)
	}
	if len(fm.Concepts) != 2 {
		t.Errorf("concepts = %v", fm.Concepts)
	}
	if fm.CreatedAt != "2025-07-24T09:30:00Z" {
		t.Errorf("created_at = %q", fm.CreatedAt)
	}
}

func TestWriteNote_OverwritesAndLeavesNoTempFiles(t *testing.T) {
	v := NewVault(t.TempDir())
	n := sampleNote()
	if err := v.WriteNote(n); err != nil {
		t.Fatalf("first write: %v", err)
	}
	n.Connections = append(n.Connections, "AI3")
	if err := v.WriteNote(n); err != nil {
		t.Fatalf("second write: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(v.Dir, NotesDir))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file, got %d", len(entries))
	}
	data, _ := os.ReadFile(v.NotePath(n.ID))
	if !strings.Contains(string(data), "[[AI3]]") {
		t.Error("second write did not replace the document")
	}
}

func TestReadNoteFrontMatter_Missing(t *testing.T) {
	v := NewVault(t.TempDir())
	_, err := v.ReadNoteFrontMatter("nope")
	if !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReadNoteFrontMatter_Malformed(t *testing.T) {
	v := NewVault(t.TempDir())
	path := v.NotePath("bad")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("# no header\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := v.ReadNoteFrontMatter("bad"); err == nil {
		t.Error("expected error for document without front matter")
	}
}

func TestWriteInsight(t *testing.T) {
	v := NewVault(t.TempDir())
	in := &knowledge.Insight{
		ID:                "INSIGHT_1",
		Title:             "Cross-domain insight: Attention",
		SourceNoteID:      "AI1",
		ConnectedConcepts: []string{"attention"},
		Domains:           []string{"llm", "agent", "rag"},
		Body:              "\n# Emergent insight\n",
		ConfidenceScore:   0.625,
		CreatedAt:         created,
	}
	if err := v.WriteInsight(in); err != nil {
		t.Fatalf("WriteInsight: %v", err)
	}

	data, err := os.ReadFile(v.InsightPath(in.ID))
	if err != nil {
		t.Fatalf("read insight: %v", err)
	}
	doc := string(data)
	for _, want := range []string{"source_note: AI1", "Source: [[AI1]]", "# Emergent insight", "- rag"} {
		if !strings.Contains(doc, want) {
			t.Errorf("insight document missing %q:\n%s", want, doc)
		}
	}
}

func TestWrite_UnwritableDir(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	v := NewVault(blocker)
	if err := v.WriteNote(sampleNote()); err == nil {
		t.Error("expected error when vault root is a file")
	}
}
