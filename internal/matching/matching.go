// Package matching runs the résumé to job postings pipeline: extract,
// segment, detect skills, route to categories, fetch, filter, score and rank.
package matching

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/document"
	"github.com/spigell/cv-matcher/internal/jobsearch"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/metrics"
	"github.com/spigell/cv-matcher/internal/resume"
	"github.com/spigell/cv-matcher/internal/scoring"
	"github.com/spigell/cv-matcher/internal/skills"
	"github.com/spigell/cv-matcher/internal/storage"
	"github.com/spigell/cv-matcher/internal/vocabulary"
)

const (
	defaultPages         = 1
	defaultTimeout       = 10 * time.Second
	defaultTopCategories = 3
	defaultGeneralQuery  = "software"
	previewLength        = 200
)

var ErrNoStore = errors.New("storage is not configured")

// Fetcher returns the postings of one search unit. Errors are isolated to
// that unit by the pipeline.
type Fetcher interface {
	Fetch(ctx context.Context, q jobsearch.Query) ([]jobsearch.JobPosting, error)
}

// Store persists a résumé together with its matches.
type Store interface {
	SaveMatches(ctx context.Context, resume *storage.Resume, matches []storage.JobMatch) error
}

type Config struct {
	Limit            int           `mapstructure:"limit" validate:"gte=0,lte=100"`
	TopCategories    int           `mapstructure:"top-categories" validate:"gte=0"`
	SkillStrategy    string        `mapstructure:"skill-strategy" validate:"omitempty,oneof=lexical tokenized"`
	VocabularyFile   string        `mapstructure:"vocabulary-file"`
	GeneralQuery     string        `mapstructure:"general-query"`
	ExcludeFile      string        `mapstructure:"exclude-file"`
	ExcludeCompanies []string      `mapstructure:"exclude-companies"`
	Pages            int           `mapstructure:"-"`
	Timeout          time.Duration `mapstructure:"-"`
	Location         string        `mapstructure:"-"`
}

// Deps aggregates the components shared by every match run. Vocabulary,
// Detector and Fetcher are required.
type Deps struct {
	Logger     *zap.Logger
	Vocabulary *vocabulary.Data
	Detector   skills.Detector
	Tokenizer  skills.Tokenizer
	Fetcher    Fetcher
	Steps      []Step
	Store      Store
	Metrics    *metrics.Metrics
}

// Preferences are the per-request search settings.
type Preferences struct {
	JobTitle string `json:"job_title" validate:"max=255"`
	Location string `json:"location" validate:"max=255"`
	Limit    int    `json:"limit" validate:"gte=0,lte=100"`
}

type Result struct {
	Sections   resume.CVSections       `json:"sections"`
	Categories []string                `json:"categories"`
	Queries    []string                `json:"queries"`
	Jobs       []scoring.ScoredPosting `json:"jobs"`
}

type Service struct {
	cfg       Config
	logger    *zap.Logger
	extractor *document.Extractor
	segmenter *resume.Segmenter
	vocab     *vocabulary.Data
	detector  skills.Detector
	tokenizer skills.Tokenizer
	fetcher   Fetcher
	scorer    *scoring.Scorer
	steps     []Step
	store     Store
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(cfg Config, deps Deps) (*Service, error) {
	if deps.Vocabulary == nil {
		return nil, errors.New("vocabulary is required")
	}
	if deps.Detector == nil {
		return nil, errors.New("skill detector is required")
	}
	if deps.Fetcher == nil {
		return nil, errors.New("job fetcher is required")
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	tokenizer := deps.Tokenizer
	if tokenizer == nil {
		tokenizer = skills.WordTokenizer{}
	}

	if cfg.Pages <= 0 {
		cfg.Pages = defaultPages
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.TopCategories <= 0 {
		cfg.TopCategories = defaultTopCategories
	}
	if cfg.Limit <= 0 {
		cfg.Limit = scoring.DefaultLimit
	}
	if strings.TrimSpace(cfg.GeneralQuery) == "" {
		cfg.GeneralQuery = defaultGeneralQuery
	}

	steps := append([]Step{NewDedupe()}, deps.Steps...)

	return &Service{
		cfg:       cfg,
		logger:    log,
		extractor: document.NewExtractor(log),
		segmenter: resume.NewSegmenter(deps.Vocabulary.Anchors),
		vocab:     deps.Vocabulary,
		detector:  deps.Detector,
		tokenizer: tokenizer,
		fetcher:   deps.Fetcher,
		scorer:    scoring.New(),
		steps:     steps,
		store:     deps.Store,
		metrics:   deps.Metrics,
		now:       time.Now,
	}, nil
}

// Match runs the pipeline for one résumé. Extraction errors are returned
// with their kind preserved; fetch errors are logged and skipped, so a run
// without postings succeeds with an empty Jobs list.
func (s *Service) Match(ctx context.Context, raw document.Raw, prefs Preferences) (*Result, error) {
	start := s.now()
	result, err := s.match(ctx, raw, prefs)

	ranked := 0
	if result != nil {
		ranked = len(result.Jobs)
	}
	s.metrics.RecordMatch(err, time.Since(start), ranked)

	return result, err
}

func (s *Service) match(ctx context.Context, raw document.Raw, prefs Preferences) (*Result, error) {
	log := logger.WithMatchFields(s.logger, raw.Filename, s.detector.Name())

	text, err := s.extractor.Extract(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("extracting %q: %w", raw.Filename, err)
	}
	log.Debug("text extracted",
		zap.Int("length", len(text)),
		zap.String("preview", logger.TruncateForLog(text, previewLength)),
	)

	sections := s.segmenter.Segment(text)
	sections.Skills = skills.Join(s.detector.Detect(text))

	categories := s.vocab.Route(skills.TokenSet(s.tokenizer, text), s.cfg.TopCategories)
	queries := s.queries(prefs.JobTitle, categories, text)

	log.Info("résumé parsed",
		zap.Strings("skills", sections.SkillsList()),
		zap.Strings("categories", categories),
		zap.Strings("queries", queries),
	)

	location := strings.TrimSpace(prefs.Location)
	if location == "" {
		location = s.cfg.Location
	}

	postings := s.fetch(ctx, log, queries, location)

	postings, err = RunSteps(ctx, log, s.steps, postings)
	if err != nil {
		return nil, fmt.Errorf("processing postings: %w", err)
	}

	limit := prefs.Limit
	if limit <= 0 {
		limit = s.cfg.Limit
	}
	jobs := scoring.Rank(s.scorer.ScoreAll(sections, postings), limit)

	log.Info("postings ranked", zap.Int("scored", len(postings)), zap.Int("returned", len(jobs)))

	return &Result{
		Sections:   sections,
		Categories: categories,
		Queries:    queries,
		Jobs:       jobs,
	}, nil
}

// queries turns the routed categories into search queries. An explicit job
// title wins; the General sentinel becomes the title inferred from the
// résumé or the configured generic query.
func (s *Service) queries(title string, categories []string, text string) []string {
	if title = strings.TrimSpace(title); title != "" {
		return []string{title}
	}

	seen := make(map[string]struct{}, len(categories))
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		q := c
		if c == vocabulary.GeneralCategory {
			q = resume.InferTitle(text, s.vocab.TitleHints)
			if q == "" {
				q = s.cfg.GeneralQuery
			}
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}

// fetch runs every (query, page) unit with its own timeout. A failed unit
// is logged and skipped.
func (s *Service) fetch(ctx context.Context, log *zap.Logger, queries []string, location string) []jobsearch.JobPosting {
	var postings []jobsearch.JobPosting

	for _, q := range queries {
		for page := 0; page < s.cfg.Pages; page++ {
			if ctx.Err() != nil {
				log.Warn("search interrupted", zap.Error(ctx.Err()))
				return postings
			}

			unitCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
			found, err := s.fetcher.Fetch(unitCtx, jobsearch.Query{Text: q, Location: location, Page: page})
			cancel()

			s.metrics.RecordFetch(err, len(found))
			if err != nil {
				log.Warn("search failed, skipping",
					zap.String(logger.FieldQuery, q),
					zap.Int(logger.FieldPage, page),
					zap.Error(err),
				)
				continue
			}

			log.Debug("search done",
				zap.String(logger.FieldQuery, q),
				zap.Int(logger.FieldPage, page),
				zap.Int("postings", len(found)),
			)
			postings = append(postings, found...)
		}
	}

	return postings
}

// MatchAndStore runs Match and persists the résumé with its ranked jobs.
// Nothing is written when the match fails.
func (s *Service) MatchAndStore(ctx context.Context, raw document.Raw, prefs Preferences) (*Result, *storage.Resume, error) {
	if s.store == nil {
		return nil, nil, ErrNoStore
	}

	result, err := s.Match(ctx, raw, prefs)
	if err != nil {
		return nil, nil, err
	}

	row, err := s.Save(ctx, raw, prefs, result)
	if err != nil {
		return nil, nil, err
	}
	return result, row, nil
}

// Save persists a successful match result in one transaction.
func (s *Service) Save(ctx context.Context, raw document.Raw, prefs Preferences, result *Result) (*storage.Resume, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	if result == nil {
		return nil, errors.New("match result is required")
	}

	row, matches := s.rows(raw, prefs, result)
	if err := s.store.SaveMatches(ctx, row, matches); err != nil {
		return nil, fmt.Errorf("saving matches: %w", err)
	}

	s.logger.Info("matches saved",
		zap.String(logger.FieldResumeID, row.ID.String()),
		zap.Int("matches", len(matches)),
	)

	return row, nil
}

// HasStore reports whether results can be persisted.
func (s *Service) HasStore() bool {
	return s.store != nil
}

func (s *Service) rows(raw document.Raw, prefs Preferences, result *Result) (*storage.Resume, []storage.JobMatch) {
	now := s.now().UTC()
	id := uuid.New()
	original := filepath.Base(raw.Filename)

	row := &storage.Resume{
		ID:               id,
		Filename:         id.String() + "_" + original,
		OriginalFilename: original,
		UploadedAt:       now,
		RawText:          result.Sections.RawText,
		Skills:           result.Sections.Skills,
		Education:        result.Sections.Education,
		Experience:       result.Sections.Experience,
		JobTitle:         strings.TrimSpace(prefs.JobTitle),
		Location:         strings.TrimSpace(prefs.Location),
	}

	matches := make([]storage.JobMatch, 0, len(result.Jobs))
	for _, job := range result.Jobs {
		matches = append(matches, storage.JobMatch{
			ID:          uuid.New(),
			ResumeID:    id,
			JobID:       job.ID,
			JobTitle:    job.Title,
			Company:     job.Company,
			Location:    job.Location,
			Description: job.Description,
			URL:         job.URL,
			Score:       job.MatchScore,
			CreatedAt:   now,
		})
	}

	return row, matches
}
