package scoring

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// minTermRunes is the shortest token kept by Terms.
const minTermRunes = 2

// Vector is a sparse, L2-normalised term weight vector.
type Vector map[string]float64

// Vectorizer fits TF-IDF weights over a small corpus. A Vectorizer holds the
// state of one fit and must not be shared between scoring calls.
type Vectorizer struct {
	vocabulary []string
	idf        map[string]float64
}

func NewVectorizer() *Vectorizer {
	return &Vectorizer{}
}

// Terms returns the lowercase runs of letters, digits and underscores of at
// least two runes, without stop words.
func Terms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})

	out := words[:0]
	for _, w := range words {
		if len([]rune(w)) < minTermRunes || IsStopWord(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// FitTransform learns the vocabulary and smoothed idf of docs and returns
// one vector per document. idf is ln((1+n)/(1+df)) + 1.
func (v *Vectorizer) FitTransform(docs ...string) []Vector {
	terms := make([][]string, len(docs))
	df := make(map[string]int)
	for i, doc := range docs {
		terms[i] = Terms(doc)
		seen := make(map[string]struct{}, len(terms[i]))
		for _, t := range terms[i] {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	n := float64(len(docs))
	v.vocabulary = make([]string, 0, len(df))
	v.idf = make(map[string]float64, len(df))
	for t, count := range df {
		v.vocabulary = append(v.vocabulary, t)
		v.idf[t] = math.Log((1+n)/(1+float64(count))) + 1
	}
	sort.Strings(v.vocabulary)

	vectors := make([]Vector, len(docs))
	for i := range docs {
		vectors[i] = v.weigh(terms[i])
	}
	return vectors
}

// Vocabulary returns the fitted terms in sorted order.
func (v *Vectorizer) Vocabulary() []string {
	out := make([]string, len(v.vocabulary))
	copy(out, v.vocabulary)
	return out
}

func (v *Vectorizer) weigh(terms []string) Vector {
	vec := make(Vector, len(terms))
	for _, t := range terms {
		vec[t]++
	}

	var norm float64
	for t, tf := range vec {
		w := tf * v.idf[t]
		vec[t] = w
		norm += w * w
	}
	if norm == 0 {
		return vec
	}

	norm = math.Sqrt(norm)
	for t := range vec {
		vec[t] /= norm
	}
	return vec
}

// Cosine returns the cosine similarity of a and b. A zero vector on either
// side yields 0.
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}

	var dot, na, nb float64
	for t, w := range a {
		dot += w * b[t]
		na += w * w
	}
	for _, w := range b {
		nb += w * w
	}
	if na == 0 || nb == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0
	}
	return sim
}
