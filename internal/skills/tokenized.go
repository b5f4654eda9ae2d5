package skills

import (
	"strings"
	"unicode"
)

// lookahead is how many tokens after a cue word are inspected.
const lookahead = 4

var cueWords = map[string]struct{}{
	"proficient":  {},
	"experienced": {},
	"skilled":     {},
	"expert":      {},
	"knowledge":   {},
}

type phrase struct {
	skill  string
	tokens []string
}

// Tokenized phrase-matches vocabulary entries against the token stream.
// After a cue word ("proficient in", "expert with", ...) it also accepts the
// compact spelling of a single-token entry, so "NodeJS" or "PowerBI" right
// after a cue resolve to "Node.js" and "Power BI". A dotted compound such as
// "docker.compose" is matched as a whole and by its parts.
type Tokenized struct {
	tokenizer Tokenizer
	byFirst   map[string][]phrase
	compact   map[string]string
	longest   int
}

func NewTokenized(vocab []string, tokenizer Tokenizer) *Tokenized {
	if tokenizer == nil {
		tokenizer = WordTokenizer{}
	}

	t := &Tokenized{
		tokenizer: tokenizer,
		byFirst:   make(map[string][]phrase),
		compact:   make(map[string]string),
	}

	for _, skill := range vocab {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		tokens := tokenizer.Tokenize(skill)
		if len(tokens) == 0 {
			continue
		}
		t.byFirst[tokens[0]] = append(t.byFirst[tokens[0]], phrase{skill: skill, tokens: tokens})
		if len(tokens) > t.longest {
			t.longest = len(tokens)
		}

		key := compactForm(skill)
		if _, ok := t.compact[key]; key != "" && !ok {
			t.compact[key] = skill
		}
	}

	return t
}

func (t *Tokenized) Name() string { return string(StrategyTokenized) }

func (t *Tokenized) Detect(text string) []string {
	tokens := t.tokenizer.Tokenize(text)
	out := make(found)

	for i := range tokens {
		t.matchAt(tokens, i, out)
		if parts := dotParts(tokens[i]); parts != nil {
			t.matchSplit(tokens, i, parts, out)
		}
	}

	for i, tok := range tokens {
		if _, ok := cueWords[tok]; !ok {
			continue
		}
		for j := i + 1; j <= i+lookahead && j < len(tokens); j++ {
			if t.matchAt(tokens, j, out) {
				continue
			}
			if skill, ok := t.compact[compactForm(tokens[j])]; ok {
				out.add(skill)
			}
		}
	}

	return out.sorted()
}

func (t *Tokenized) matchAt(tokens []string, i int, out found) bool {
	matched := false
	for _, p := range t.byFirst[tokens[i]] {
		if i+len(p.tokens) > len(tokens) {
			continue
		}
		if equalTokens(tokens[i:i+len(p.tokens)], p.tokens) {
			out.add(p.skill)
			matched = true
		}
	}
	return matched
}

// matchSplit matches phrases over the window around tokens[i] with the
// compound replaced by its dot-split parts.
func (t *Tokenized) matchSplit(tokens []string, i int, parts []string, out found) {
	from := max(0, i-t.longest+1)
	to := min(len(tokens), i+t.longest)

	window := make([]string, 0, to-from+len(parts))
	window = append(window, tokens[from:i]...)
	window = append(window, parts...)
	window = append(window, tokens[i+1:to]...)

	for j := range window {
		t.matchAt(window, j, out)
	}
}

func equalTokens(a, b []string) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// compactForm lowercases s and drops everything except letters, digits,
// "+" and "#".
func compactForm(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
