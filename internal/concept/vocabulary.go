package concept

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// Vocabulary is the static concept table consumed by the Engine.
type Vocabulary struct {
	Domains map[string][]string `yaml:"domains"`
	General []string            `yaml:"general"`
}

// DefaultVocabulary returns the embedded vocabulary.
func DefaultVocabulary() (*Vocabulary, error) {
	return ParseVocabulary(defaultVocabulary)
}

// LoadVocabulary reads a vocabulary from a YAML file.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vocabulary: read %s: %w", path, err)
	}
	return ParseVocabulary(data)
}

// ParseVocabulary decodes YAML and normalizes every term to lower case,
// dropping blanks and duplicates.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("vocabulary: decode: %w", err)
	}

	domains := make(map[string][]string, len(v.Domains))
	for d, terms := range v.Domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			return nil, fmt.Errorf("vocabulary: empty domain name")
		}
		domains[d] = normalizeTerms(append(domains[d], terms...))
	}
	v.Domains = domains
	v.General = normalizeTerms(v.General)
	return &v, nil
}

// KnownDomains returns the sorted domain labels.
func (v *Vocabulary) KnownDomains() []string {
	out := make([]string, 0, len(v.Domains))
	for d := range v.Domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func normalizeTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
