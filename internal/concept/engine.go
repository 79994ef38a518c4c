// Package concept extracts vocabulary concepts from note text and computes
// the permanence and emergence heuristics of a note.
//
// Matching is done with Aho-Corasick automata built once per Engine, so a
// single pass over the content finds every vocabulary term of a domain.
package concept

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// Normalization targets for the score components.
const (
	lengthTarget      = 1000.0
	conceptTarget     = 5.0
	elaborationTarget = 10.0
	referenceTarget   = 5.0
	noveltyTarget     = 10.0
)

// Marker words counted by PermanenceScore. English and Japanese forms are
// both recognized.
var (
	elaborationMarkers = []string{
		"example", "implementation", "implement", "detail", "concrete", "specific",
		"例", "実装", "詳細", "具体", "詳しく",
	}
	referenceMarkers = []string{
		"paper", "research", "experiment", "result",
		"論文", "研究", "実験", "結果",
	}
)

// separatorVariants are the spellings a hyphen in a general concept may take.
var separatorVariants = []string{"-", "_", " ", "\t", "\n", ""}

// matcher finds the canonical vocabulary terms present in a text.
type matcher struct {
	ac    ahocorasick.AhoCorasick
	canon []string // pattern index -> canonical term
}

func newMatcher(patterns, canon []string) *matcher {
	if len(patterns) == 0 {
		return nil
	}
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  false,
		MatchKind:            ahocorasick.StandardMatch,
	})
	return &matcher{ac: builder.Build(patterns), canon: canon}
}

// collect adds every matched term to out. Overlapping matches are reported,
// so a term nested inside a longer one is still found.
func (m *matcher) collect(text string, out map[string]bool) {
	if m == nil {
		return
	}
	iter := m.ac.IterOverlapping(text)
	for match := iter.Next(); match != nil; match = iter.Next() {
		out[m.canon[match.Pattern()]] = true
	}
}

// counter counts leftmost-longest non-overlapping marker occurrences.
type counter struct {
	ac ahocorasick.AhoCorasick
}

func newCounter(markers []string) counter {
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  false,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})
	return counter{ac: builder.Build(markers)}
}

func (c counter) count(text string) int {
	return len(c.ac.FindAll(text))
}

// Engine extracts concepts and scores notes against a fixed Vocabulary.
// It is immutable after construction and safe for concurrent use.
type Engine struct {
	domains     []string
	domainTerms map[string]map[string]bool
	byDomain    map[string]*matcher
	general     *matcher
	elaboration counter
	references  counter
}

// NewEngine builds the matching automata for vocab.
func NewEngine(vocab *Vocabulary) *Engine {
	e := &Engine{
		domains:     vocab.KnownDomains(),
		domainTerms: make(map[string]map[string]bool, len(vocab.Domains)),
		byDomain:    make(map[string]*matcher, len(vocab.Domains)),
		elaboration: newCounter(elaborationMarkers),
		references:  newCounter(referenceMarkers),
	}

	for domain, terms := range vocab.Domains {
		set := make(map[string]bool, len(terms))
		for _, t := range terms {
			set[t] = true
		}
		e.domainTerms[domain] = set
		e.byDomain[domain] = newMatcher(terms, terms)
	}

	var patterns, canon []string
	for _, term := range vocab.General {
		if !strings.Contains(term, "-") {
			patterns = append(patterns, term)
			canon = append(canon, term)
			continue
		}
		for _, sep := range separatorVariants {
			patterns = append(patterns, strings.ReplaceAll(term, "-", sep))
			canon = append(canon, term)
		}
	}
	e.general = newMatcher(patterns, canon)

	return e
}

// KnownDomains returns the sorted domain labels of the vocabulary.
func (e *Engine) KnownDomains() []string {
	return append([]string(nil), e.domains...)
}

// ExtractConcepts returns the sorted set of vocabulary terms found in content:
// the terms of domain plus the general concepts. An unknown domain
// contributes no domain terms.
func (e *Engine) ExtractConcepts(content, domain string) []string {
	found := make(map[string]bool)
	e.byDomain[domain].collect(content, found)
	e.general.collect(content, found)

	out := make([]string, 0, len(found))
	for term := range found {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}

// PermanenceScore is the mean of four capped components: content length,
// concept count, elaboration marker count and reference marker count.
func (e *Engine) PermanenceScore(content string, concepts []string) float64 {
	length := capped(float64(utf8.RuneCountInString(content)) / lengthTarget)
	conceptScore := capped(float64(len(uniq(concepts))) / conceptTarget)
	elaboration := capped(float64(e.elaboration.count(content)) / elaborationTarget)
	references := capped(float64(e.references.count(content)) / referenceTarget)

	return (length + conceptScore + elaboration + references) / 4
}

// EmergencePotential is the mean of concept novelty and the share of known
// domains, other than domain, whose vocabulary overlaps concepts.
func (e *Engine) EmergencePotential(concepts []string, domain string) float64 {
	set := uniq(concepts)
	novelty := capped(float64(len(set)) / noveltyTarget)

	var crossDomain float64
	if len(e.domains) > 0 {
		shared := 0
		for _, d := range e.domains {
			if d == domain {
				continue
			}
			terms := e.domainTerms[d]
			for c := range set {
				if terms[c] {
					shared++
					break
				}
			}
		}
		crossDomain = float64(shared) / float64(len(e.domains))
	}

	return (novelty + crossDomain) / 2
}

func capped(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, 1)
}

func uniq(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		if v != "" {
			out[v] = true
		}
	}
	return out
}
