// Package similarity scores how alike two texts are with a TF-IDF model fit
// on exactly the pair being compared.
package similarity

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/orsinium-labs/stopwords"
)

// DefaultMaxFeatures caps the vocabulary of a fitted pair.
const DefaultMaxFeatures = 1000

var english = stopwords.MustGet("en")

// Scorer computes a similarity in [0,1] for two texts.
type Scorer interface {
	Similarity(a, b string) float64
}

// TFIDF is a two-document vectorizer with smoothed IDF and L2-normalized
// rows. The zero value uses DefaultMaxFeatures.
type TFIDF struct {
	MaxFeatures int
}

// NewTFIDF returns a vectorizer keeping at most maxFeatures terms.
func NewTFIDF(maxFeatures int) *TFIDF {
	return &TFIDF{MaxFeatures: maxFeatures}
}

// Cosine is TFIDF{}.Similarity.
func Cosine(a, b string) float64 {
	return TFIDF{}.Similarity(a, b)
}

// Similarity fits the model on {a, b} and returns the cosine of their
// vectors. Empty input or an empty vocabulary yields 0.
func (v TFIDF) Similarity(a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0
	}

	tfA, tfB := termCounts(a), termCounts(b)
	vocab := v.features(tfA, tfB)
	if len(vocab) == 0 {
		return 0
	}

	const n = 2.0
	vecA := make([]float64, len(vocab))
	vecB := make([]float64, len(vocab))
	for i, term := range vocab {
		df := 0.0
		if tfA[term] > 0 {
			df++
		}
		if tfB[term] > 0 {
			df++
		}
		idf := math.Log((1+n)/(1+df)) + 1
		vecA[i] = float64(tfA[term]) * idf
		vecB[i] = float64(tfB[term]) * idf
	}

	normA, normB := norm(vecA), norm(vecB)
	if normA == 0 || normB == 0 {
		return 0
	}

	var dot float64
	for i := range vecA {
		dot += vecA[i] * vecB[i]
	}
	sim := dot / (normA * normB)

	switch {
	case math.IsNaN(sim) || sim < 0:
		return 0
	case sim > 1:
		return 1
	default:
		return sim
	}
}

// features returns the retained vocabulary: the most frequent terms across
// both documents, ties broken alphabetically.
func (v TFIDF) features(docs ...map[string]int) []string {
	total := map[string]int{}
	for _, tf := range docs {
		for term, c := range tf {
			total[term] += c
		}
	}

	terms := make([]string, 0, len(total))
	for term := range total {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if total[terms[i]] != total[terms[j]] {
			return total[terms[i]] > total[terms[j]]
		}
		return terms[i] < terms[j]
	})

	limit := v.MaxFeatures
	if limit <= 0 {
		limit = DefaultMaxFeatures
	}
	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

// termCounts tokenizes text into lower-cased runs of letters, digits and
// underscores of at least two characters, skipping English stop words.
func termCounts(text string) map[string]int {
	counts := map[string]int{}
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range fields {
		if len([]rune(tok)) < 2 || english.Contains(tok) {
			continue
		}
		counts[tok]++
	}
	return counts
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
