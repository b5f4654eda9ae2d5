// Package skills detects entries of a controlled skill vocabulary in résumé
// text.
package skills

import (
	"fmt"
	"sort"
	"strings"
)

// Detector returns the canonical vocabulary entries found in text,
// deduplicated and sorted with Sort.
type Detector interface {
	Name() string
	Detect(text string) []string
}

type Strategy string

const (
	StrategyLexical   Strategy = "lexical"
	StrategyTokenized Strategy = "tokenized"
)

func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StrategyTokenized, nil
	case StrategyLexical, StrategyTokenized:
		return st, nil
	default:
		return "", fmt.Errorf("unknown skill strategy %q", s)
	}
}

// New returns the tokenized detector when a tokenizer is available and the
// lexical one otherwise.
func New(vocab []string, tokenizer Tokenizer) Detector {
	if tokenizer == nil {
		return NewLexical(vocab)
	}
	return NewTokenized(vocab, tokenizer)
}

// ForStrategy builds the detector for a configured strategy.
func ForStrategy(strategy Strategy, vocab []string) (Detector, error) {
	switch strategy {
	case StrategyLexical:
		return New(vocab, nil), nil
	case StrategyTokenized, "":
		return New(vocab, WordTokenizer{}), nil
	default:
		return nil, fmt.Errorf("unknown skill strategy %q", strategy)
	}
}

// Sort orders skills alphabetically ignoring case, falling back to byte
// order so the result is stable across runs.
func Sort(skills []string) {
	sort.Slice(skills, func(i, j int) bool {
		li, lj := strings.ToLower(skills[i]), strings.ToLower(skills[j])
		if li != lj {
			return li < lj
		}
		return skills[i] < skills[j]
	})
}

// Join renders detected skills the way they are stored on a résumé.
func Join(skills []string) string {
	return strings.Join(skills, ", ")
}

// Split is the inverse of Join. Empty entries are dropped.
func Split(joined string) []string {
	parts := strings.Split(joined, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

type found map[string]struct{}

func (f found) add(skill string) {
	f[skill] = struct{}{}
}

func (f found) sorted() []string {
	out := make([]string, 0, len(f))
	for s := range f {
		out = append(out, s)
	}
	Sort(out)
	return out
}
