package skills

import (
	"strings"
	"unicode"
)

// Tokenizer splits free text into lowercase tokens.
type Tokenizer interface {
	Tokenize(text string) []string
}

// WordTokenizer keeps technology names intact: a run of "+" and "#" ending a
// word stays attached as its suffix (c++, c#) and "." stays inside a word
// when a word rune follows it (node.js). A suffix run followed by a word rune
// is punctuation, so "python+django" gives "python", "+", "django". Any other
// non-space rune becomes a token of its own.
type WordTokenizer struct{}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func isSuffixRune(r rune) bool {
	return r == '+' || r == '#'
}

// suffixEnds reports whether the "+"/"#" run starting at i ends the word.
func suffixEnds(runes []rune, i int) bool {
	for i < len(runes) && isSuffixRune(runes[i]) {
		i++
	}
	return i == len(runes) || !isWordRune(runes[i])
}

func (WordTokenizer) Tokenize(text string) []string {
	runes := []rune(text)
	tokens := make([]string, 0, len(runes)/4)

	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}

	suffix := false
	for i, r := range runes {
		r = unicode.ToLower(r)
		switch {
		case isWordRune(r):
			if suffix {
				flush()
				suffix = false
			}
			word.WriteRune(r)
		case isSuffixRune(r) && (suffix || word.Len() > 0 && suffixEnds(runes, i)):
			suffix = true
			word.WriteRune(r)
		case r == '.' && word.Len() > 0 && !suffix && i+1 < len(runes) && isWordRune(runes[i+1]):
			word.WriteRune(r)
		case unicode.IsSpace(r):
			flush()
			suffix = false
		default:
			flush()
			suffix = false
			tokens = append(tokens, string(r))
		}
	}
	flush()

	return tokens
}

// TokenSet returns the distinct word tokens of text; punctuation tokens are
// dropped. A dotted compound adds both itself and its parts.
func TokenSet(tokenizer Tokenizer, text string) map[string]struct{} {
	if tokenizer == nil {
		tokenizer = WordTokenizer{}
	}

	set := make(map[string]struct{})
	for _, tok := range tokenizer.Tokenize(text) {
		if !hasWordRune(tok) {
			continue
		}
		set[tok] = struct{}{}
		for _, part := range dotParts(tok) {
			set[part] = struct{}{}
		}
	}
	return set
}

// dotParts splits a dotted compound ("docker.compose") into its parts. It
// returns nil for a token without an inner dot.
func dotParts(tok string) []string {
	if len(tok) < 3 || !strings.Contains(tok[1:len(tok)-1], ".") {
		return nil
	}
	var parts []string
	for _, part := range strings.Split(tok, ".") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func hasWordRune(s string) bool {
	return strings.IndexFunc(s, isWordRune) >= 0
}
