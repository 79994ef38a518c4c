// Package mirror writes notes and insights as markdown files for browsing
// in external note-taking apps. The database stays the source of truth;
// the vault is only ever written, never consulted by the service.
package mirror

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/zettel/internal/knowledge"
)

const (
	// NotesDir is the vault subdirectory for permanent notes.
	NotesDir = "permanent-notes"
	// InsightsDir is the vault subdirectory for emergent insights.
	InsightsDir = "emergence"
)

const frontMatterDelim = "---"

// Vault is a directory of markdown files. A nil Vault or one with an empty
// Dir writes nothing.
type Vault struct {
	Dir string
}

// NewVault returns a Vault rooted at dir, or nil when dir is empty.
func NewVault(dir string) *Vault {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	return &Vault{Dir: dir}
}

func (v *Vault) enabled() bool { return v != nil && v.Dir != "" }

// NotePath returns the file path of a note.
func (v *Vault) NotePath(id string) string {
	return filepath.Join(v.Dir, NotesDir, id+".md")
}

// InsightPath returns the file path of an insight.
func (v *Vault) InsightPath(id string) string {
	return filepath.Join(v.Dir, InsightsDir, id+".md")
}

// NoteFrontMatter is the structured header of a mirrored note.
type NoteFrontMatter struct {
	ID                 string   `yaml:"id"`
	Title              string   `yaml:"title"`
	Domain             string   `yaml:"domain"`
	ExperimentRef      *string  `yaml:"experiment_ref"`
	Concepts           []string `yaml:"concepts"`
	PermanenceScore    float64  `yaml:"permanence_score"`
	EmergencePotential float64  `yaml:"emergence_potential"`
	CreatedAt          string   `yaml:"created_at"`
	UpdatedAt          string   `yaml:"updated_at"`
}

// WriteNote renders n to permanent-notes/<id>.md.
func (v *Vault) WriteNote(n *knowledge.Note) error {
	if !v.enabled() {
		return nil
	}

	fm := NoteFrontMatter{
		ID:                 n.ID,
		Title:              n.Title,
		Domain:             n.Domain,
		ExperimentRef:      n.ExperimentRef,
		Concepts:           n.Concepts,
		PermanenceScore:    round3(n.PermanenceScore),
		EmergencePotential: round3(n.EmergencePotential),
		CreatedAt:          n.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          n.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if fm.Concepts == nil {
		fm.Concepts = []string{}
	}

	var body strings.Builder
	fmt.Fprintf(&body, "# %s\n\n", n.Title)
	fmt.Fprintf(&body, "## Domain: %s\n\n", strings.ToUpper(n.Domain))
	body.WriteString(strings.TrimRight(n.Content, "\n"))
	body.WriteString("\n\n## Concepts\n")
	quoted := make([]string, len(n.Concepts))
	for i, c := range n.Concepts {
		quoted[i] = "`" + c + "`"
	}
	body.WriteString(strings.Join(quoted, ", "))
	body.WriteString("\n\n## Connected notes\n")
	for _, id := range n.Connections {
		fmt.Fprintf(&body, "- [[%s]]\n", id)
	}

	return v.write(v.NotePath(n.ID), fm, body.String())
}

// InsightFrontMatter is the structured header of a mirrored insight.
type InsightFrontMatter struct {
	ID              string   `yaml:"id"`
	Title           string   `yaml:"title"`
	SourceNote      string   `yaml:"source_note"`
	Domains         []string `yaml:"domains"`
	Concepts        []string `yaml:"concepts"`
	ConfidenceScore float64  `yaml:"confidence_score"`
	CreatedAt       string   `yaml:"created_at"`
}

// WriteInsight renders in to emergence/<id>.md.
func (v *Vault) WriteInsight(in *knowledge.Insight) error {
	if !v.enabled() {
		return nil
	}

	fm := InsightFrontMatter{
		ID:              in.ID,
		Title:           in.Title,
		SourceNote:      in.SourceNoteID,
		Domains:         in.Domains,
		Concepts:        in.ConnectedConcepts,
		ConfidenceScore: round3(in.ConfidenceScore),
		CreatedAt:       in.CreatedAt.UTC().Format(time.RFC3339),
	}

	var body strings.Builder
	fmt.Fprintf(&body, "# %s\n\n", in.Title)
	if in.SourceNoteID != "" {
		fmt.Fprintf(&body, "Source: [[%s]]\n\n", in.SourceNoteID)
	}
	body.WriteString(strings.TrimSpace(in.Body))
	body.WriteString("\n")

	return v.write(v.InsightPath(in.ID), fm, body.String())
}

// ReadNoteFrontMatter parses the header of a mirrored note.
func (v *Vault) ReadNoteFrontMatter(id string) (*NoteFrontMatter, error) {
	data, err := os.ReadFile(v.NotePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("mirror: note %q: %w", id, knowledge.ErrNotFound)
		}
		return nil, fmt.Errorf("mirror: reading note %q: %w", id, err)
	}
	header, _, err := splitFrontMatter(data)
	if err != nil {
		return nil, fmt.Errorf("mirror: note %q: %w", id, err)
	}
	var fm NoteFrontMatter
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return nil, fmt.Errorf("mirror: parsing front matter of %q: %w", id, err)
	}
	return &fm, nil
}

// write stores header and body through a temp file so readers never see a
// partially written document.
func (v *Vault) write(path string, header any, body string) error {
	fm, err := yaml.Marshal(header)
	if err != nil {
		return fmt.Errorf("mirror: marshaling front matter: %w", err)
	}

	var doc bytes.Buffer
	doc.WriteString(frontMatterDelim + "\n")
	doc.Write(fm)
	doc.WriteString(frontMatterDelim + "\n\n")
	doc.WriteString(body)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mirror: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*.md")
	if err != nil {
		return fmt.Errorf("mirror: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(doc.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("mirror: writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("mirror: writing %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("mirror: moving %s into place: %w", path, err)
	}
	return nil
}

func splitFrontMatter(data []byte) (header, body []byte, err error) {
	text := string(data)
	if !strings.HasPrefix(text, frontMatterDelim+"\n") {
		return nil, nil, errors.New("missing front matter")
	}
	rest := text[len(frontMatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontMatterDelim+"\n")
	if end < 0 {
		return nil, nil, errors.New("unterminated front matter")
	}
	return []byte(rest[:end+1]), []byte(rest[end+len(frontMatterDelim)+2:]), nil
}

func round3(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}
