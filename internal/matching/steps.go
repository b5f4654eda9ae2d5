package matching

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/jobsearch"
)

// Step is a single pass over the fetched postings before scoring.
type Step interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Apply(ctx context.Context, postings []jobsearch.JobPosting) ([]jobsearch.JobPosting, StepStats, error)
}

// StepStats describes the result of executing a step.
type StepStats struct {
	Initial int
	Dropped int
	Left    int
}

// DisableByName marks a step with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Step, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// RunSteps executes the supplied steps sequentially.
func RunSteps(ctx context.Context, logger *zap.Logger, steps []Step, postings []jobsearch.JobPosting) ([]jobsearch.JobPosting, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			logger.Debug("step disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, postings)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		logger.Info("posting step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		postings = next
	}

	return postings, nil
}

type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

// keep returns the postings for which fn is true, and the ids of the rest.
func keep(postings []jobsearch.JobPosting, fn func(jobsearch.JobPosting) bool) ([]jobsearch.JobPosting, []string) {
	out := make([]jobsearch.JobPosting, 0, len(postings))
	var dropped []string
	for _, p := range postings {
		if fn(p) {
			out = append(out, p)
			continue
		}
		dropped = append(dropped, p.ID)
	}
	return out, dropped
}

type dedupeStep struct {
	toggle
}

// NewDedupe creates a step that keeps the first posting of every id. The
// provider returns overlapping results across pages and queries.
func NewDedupe() Step {
	return &dedupeStep{}
}

func (s *dedupeStep) Name() string { return "dedupe" }

// Disable is a no-op: duplicates would be scored and stored twice.
func (s *dedupeStep) Disable(string) {}

func (s *dedupeStep) Apply(_ context.Context, postings []jobsearch.JobPosting) ([]jobsearch.JobPosting, StepStats, error) {
	seen := make(map[string]struct{}, len(postings))
	out, dropped := keep(postings, func(p jobsearch.JobPosting) bool {
		if _, ok := seen[p.ID]; ok {
			return false
		}
		seen[p.ID] = struct{}{}
		return true
	})

	return out, StepStats{Initial: len(postings), Dropped: len(dropped), Left: len(out)}, nil
}

type companiesStep struct {
	toggle
	logger    *zap.Logger
	companies map[string]struct{}
}

// NewExcludedCompanies creates a step that removes postings of the listed
// companies. Names are compared case-insensitively.
func NewExcludedCompanies(companies []string, logger *zap.Logger) Step {
	if logger == nil {
		logger = zap.NewNop()
	}
	set := make(map[string]struct{}, len(companies))
	for _, c := range companies {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			set[c] = struct{}{}
		}
	}
	return &companiesStep{logger: logger, companies: set}
}

func (s *companiesStep) Name() string { return "excluded_companies" }

func (s *companiesStep) Apply(_ context.Context, postings []jobsearch.JobPosting) ([]jobsearch.JobPosting, StepStats, error) {
	initial := len(postings)
	if len(s.companies) == 0 {
		return postings, StepStats{Initial: initial, Left: initial}, nil
	}

	out, dropped := keep(postings, func(p jobsearch.JobPosting) bool {
		_, excluded := s.companies[strings.ToLower(strings.TrimSpace(p.Company))]
		return !excluded
	})
	if len(dropped) > 0 {
		s.logger.Info("excluding postings by companies",
			zap.Strings("excluded_postings", dropped),
			zap.Int("postings_left", len(out)),
		)
	}

	return out, StepStats{Initial: initial, Dropped: len(dropped), Left: len(out)}, nil
}

type excludeFileStep struct {
	toggle
	logger *zap.Logger
	path   string
}

// NewExcludeFile creates a step that removes postings listed in an exclude
// file. An empty path keeps every posting.
func NewExcludeFile(path string, logger *zap.Logger) Step {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &excludeFileStep{logger: logger, path: strings.TrimSpace(path)}
}

func (s *excludeFileStep) Name() string { return "exclude_file" }

func (s *excludeFileStep) Apply(_ context.Context, postings []jobsearch.JobPosting) ([]jobsearch.JobPosting, StepStats, error) {
	initial := len(postings)
	if s.path == "" {
		return postings, StepStats{Initial: initial, Left: initial}, nil
	}

	excluded, err := jobsearch.ExcludedFromFile(s.path)
	if err != nil {
		return nil, StepStats{}, fmt.Errorf("getting excluded postings from file: %w", err)
	}

	ids := make(map[string]struct{}, len(excluded.Items))
	for _, id := range excluded.IDs() {
		ids[id] = struct{}{}
	}

	out, dropped := keep(postings, func(p jobsearch.JobPosting) bool {
		_, ok := ids[p.ID]
		return !ok
	})
	if len(dropped) > 0 {
		s.logger.Info("excluding postings based on exclude file",
			zap.String("path", s.path),
			zap.Strings("excluded_postings", dropped),
			zap.Int("postings_left", len(out)),
		)
	}

	return out, StepStats{Initial: initial, Dropped: len(dropped), Left: len(out)}, nil
}
