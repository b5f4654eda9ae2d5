// Package scoring ranks job postings against a parsed résumé. The score
// blends TF-IDF cosine similarity with a bonus for skills named in the
// posting requirements.
package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/spigell/cv-matcher/internal/jobsearch"
	"github.com/spigell/cv-matcher/internal/resume"
)

const (
	MaxScore = 100.0
	// DefaultLimit is used by Rank when no positive limit is given.
	DefaultLimit = 10

	bonusPerSkill = 2.0
	maxBonus      = 20.0
)

type ScoredPosting struct {
	jobsearch.JobPosting
	MatchScore float64 `json:"match_score"`
}

// Breakdown explains how a score was composed.
type Breakdown struct {
	Similarity    float64
	Bonus         float64
	Score         float64
	MatchedSkills []string
}

// Scorer is stateless; every call fits its own vectorizer, so a Scorer is
// safe for concurrent use.
type Scorer struct{}

func New() *Scorer {
	return &Scorer{}
}

func (s *Scorer) Score(cv resume.CVSections, job jobsearch.JobPosting) float64 {
	return s.Evaluate(cv, job).Score
}

func (s *Scorer) Evaluate(cv resume.CVSections, job jobsearch.JobPosting) Breakdown {
	cvDoc := strings.Join([]string{cv.RawText, cv.Skills, cv.Education, cv.Experience}, " ")
	jobDoc := strings.Join([]string{job.Title, job.Description, job.Requirements}, " ")

	similarity := Similarity(cvDoc, jobDoc)
	matched := MatchedSkills(cv.Skills, job.Requirements)
	bonus := SkillBonus(len(matched))

	return Breakdown{
		Similarity:    similarity,
		Bonus:         bonus,
		Score:         clamp(similarity+bonus, 0, MaxScore),
		MatchedSkills: matched,
	}
}

// Similarity returns the TF-IDF cosine similarity of the two documents as a
// percentage rounded to two decimals. Documents without terms score 0.
func Similarity(a, b string) float64 {
	vectors := NewVectorizer().FitTransform(a, b)
	return round2(Cosine(vectors[0], vectors[1]) * MaxScore)
}

// MatchedSkills returns the lowercased entries of the comma-joined skills
// that occur as substrings of requirements. Short entries such as "r" can
// match inside unrelated words.
func MatchedSkills(skills, requirements string) []string {
	if strings.TrimSpace(skills) == "" || strings.TrimSpace(requirements) == "" {
		return nil
	}

	req := strings.ToLower(requirements)
	var matched []string
	for _, skill := range strings.Split(skills, ",") {
		skill = strings.ToLower(strings.TrimSpace(skill))
		if skill != "" && strings.Contains(req, skill) {
			matched = append(matched, skill)
		}
	}
	return matched
}

func SkillBonus(matches int) float64 {
	if matches <= 0 {
		return 0
	}
	return math.Min(bonusPerSkill*float64(matches), maxBonus)
}

// Rank sorts postings by score, highest first, keeping fetch order on ties,
// and truncates the result to limit.
func Rank(postings []ScoredPosting, limit int) []ScoredPosting {
	if limit <= 0 {
		limit = DefaultLimit
	}

	ranked := make([]ScoredPosting, len(postings))
	copy(ranked, postings)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MatchScore > ranked[j].MatchScore
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// ScoreAll scores every posting against cv, preserving input order.
func (s *Scorer) ScoreAll(cv resume.CVSections, postings []jobsearch.JobPosting) []ScoredPosting {
	scored := make([]ScoredPosting, 0, len(postings))
	for _, p := range postings {
		scored = append(scored, ScoredPosting{JobPosting: p, MatchScore: s.Score(cv, p)})
	}
	return scored
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
