// Package resume splits résumé plain text into labeled sections.
package resume

import (
	"regexp"
	"strings"

	"github.com/spigell/cv-matcher/internal/skills"
	"github.com/spigell/cv-matcher/internal/vocabulary"
)

// titleLines is how many leading lines InferTitle looks at.
const titleLines = 5

type CVSections struct {
	Skills     string `json:"skills"`
	Education  string `json:"education"`
	Experience string `json:"experience"`
	RawText    string `json:"raw_text"`
}

// SkillsList returns the comma-joined Skills as a slice.
func (s CVSections) SkillsList() []string {
	return skills.Split(s.Skills)
}

type anchor struct {
	keyword string
	re      *regexp.Regexp
}

// Segmenter captures the education and experience sections. For each list
// the first anchor present in the text wins, and the section runs from that
// anchor up to the next blank line or the end of the text.
type Segmenter struct {
	education  []anchor
	experience []anchor
}

func NewSegmenter(anchors vocabulary.Anchors) *Segmenter {
	return &Segmenter{
		education:  compileAnchors(anchors.Education),
		experience: compileAnchors(anchors.Experience),
	}
}

func compileAnchors(keywords []string) []anchor {
	out := make([]anchor, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		out = append(out, anchor{
			keyword: kw,
			re:      regexp.MustCompile(`(?is)(` + regexp.QuoteMeta(kw) + `.*?)(?:\n\s*\n|\z)`),
		})
	}
	return out
}

// Segment never fails. Skills is left empty for the skill detector to fill.
func (s *Segmenter) Segment(text string) CVSections {
	lower := strings.ToLower(text)
	return CVSections{
		Education:  capture(text, lower, s.education),
		Experience: capture(text, lower, s.experience),
		RawText:    text,
	}
}

func capture(text, lower string, anchors []anchor) string {
	for _, a := range anchors {
		if !strings.Contains(lower, a.keyword) {
			continue
		}
		if m := a.re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
		return ""
	}
	return ""
}

// InferTitle returns the first of the leading lines that mentions a title
// hint such as "developer" or "engineer".
func InferTitle(text string, hints []string) string {
	lines := strings.SplitN(text, "\n", titleLines+1)
	if len(lines) > titleLines {
		lines = lines[:titleLines]
	}

	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, hint := range hints {
			if hint != "" && strings.Contains(lower, strings.ToLower(hint)) {
				return strings.TrimSpace(line)
			}
		}
	}
	return ""
}
