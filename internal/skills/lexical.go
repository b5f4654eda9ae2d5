package skills

import (
	"regexp"
	"strings"
)

const boundary = `[^\p{L}\p{N}_]`

type lexicalPattern struct {
	skill string
	re    *regexp.Regexp
}

// Lexical matches every vocabulary entry as a whole word, ignoring case.
// A word boundary is the text edge or any rune that is not a letter, digit
// or underscore, so entries ending in symbols (C++, C#) match as well.
type Lexical struct {
	patterns []lexicalPattern
}

func NewLexical(vocab []string) *Lexical {
	patterns := make([]lexicalPattern, 0, len(vocab))
	for _, skill := range vocab {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		expr := `(?i)(?:^|` + boundary + `)` + regexp.QuoteMeta(skill) + `(?:$|` + boundary + `)`
		patterns = append(patterns, lexicalPattern{skill: skill, re: regexp.MustCompile(expr)})
	}
	return &Lexical{patterns: patterns}
}

func (l *Lexical) Name() string { return string(StrategyLexical) }

func (l *Lexical) Detect(text string) []string {
	out := make(found)
	for _, p := range l.patterns {
		if p.re.MatchString(text) {
			out.add(p.skill)
		}
	}
	return out.sorted()
}
