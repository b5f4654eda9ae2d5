package matching

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/cv-matcher/internal/document"
	"github.com/spigell/cv-matcher/internal/jobsearch"
	"github.com/spigell/cv-matcher/internal/metrics"
	"github.com/spigell/cv-matcher/internal/scoring"
	"github.com/spigell/cv-matcher/internal/skills"
	"github.com/spigell/cv-matcher/internal/storage"
	"github.com/spigell/cv-matcher/internal/vocabulary"
)

const backendResume = "Jane Doe\nBackend Developer\nPython, SQL\n\nEducation\nBSc Computer Science, MIT\n\nExperience\nAcme Corp, Python developer"

type fakeFetcher struct {
	mu      sync.Mutex
	queries []jobsearch.Query
	fn      func(ctx context.Context, q jobsearch.Query) ([]jobsearch.JobPosting, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, q jobsearch.Query) ([]jobsearch.JobPosting, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(ctx, q)
}

func (f *fakeFetcher) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.queries))
	for _, q := range f.queries {
		out = append(out, q.Text)
	}
	return out
}

type fakeStore struct {
	calls   int
	resume  *storage.Resume
	matches []storage.JobMatch
	err     error
}

func (s *fakeStore) SaveMatches(_ context.Context, resume *storage.Resume, matches []storage.JobMatch) error {
	s.calls++
	s.resume = resume
	s.matches = matches
	return s.err
}

func docx(t *testing.T, text string) document.Raw {
	t.Helper()

	var body strings.Builder
	for _, line := range strings.Split(text, "\n") {
		body.WriteString("<w:p><w:r><w:t>")
		body.WriteString(line)
		body.WriteString("</w:t></w:r></w:p>")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return document.Raw{Data: buf.Bytes(), Format: document.FormatDOCX, Filename: "cv.docx"}
}

func newService(t *testing.T, cfg Config, fetcher Fetcher, deps Deps) *Service {
	t.Helper()

	data, err := vocabulary.Default()
	require.NoError(t, err)

	deps.Vocabulary = data
	deps.Fetcher = fetcher
	if deps.Detector == nil {
		deps.Detector = skills.New(data.SkillList(), skills.WordTokenizer{})
	}

	s, err := NewService(cfg, deps)
	require.NoError(t, err)
	return s
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	t.Parallel()

	data, err := vocabulary.Default()
	require.NoError(t, err)
	detector := skills.New(data.SkillList(), nil)

	_, err = NewService(Config{}, Deps{Detector: detector, Fetcher: &fakeFetcher{}})
	assert.Error(t, err)
	_, err = NewService(Config{}, Deps{Vocabulary: data, Fetcher: &fakeFetcher{}})
	assert.Error(t, err)
	_, err = NewService(Config{}, Deps{Vocabulary: data, Detector: detector})
	assert.Error(t, err)
}

func TestMatchRanksPostings(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{fn: func(_ context.Context, _ jobsearch.Query) ([]jobsearch.JobPosting, error) {
		return []jobsearch.JobPosting{
			{ID: "painter", Title: "Painter", Description: "Watercolor murals", Requirements: "Watercolor murals"},
			{ID: "backend", Title: "Python Developer", Description: "Backend role", Requirements: "Strong Python and SQL skills"},
		}, nil
	}}
	s := newService(t, Config{}, fetcher, Deps{})

	result, err := s.Match(context.Background(), docx(t, backendResume), Preferences{})
	require.NoError(t, err)

	assert.Equal(t, "Python, SQL", result.Sections.Skills)
	assert.Equal(t, "Education\nBSc Computer Science, MIT", result.Sections.Education)
	assert.Equal(t, backendResume, result.Sections.RawText)
	require.NotEmpty(t, result.Categories)
	assert.Equal(t, "Software Development", result.Categories[0])
	assert.Equal(t, result.Categories, result.Queries)
	assert.Equal(t, result.Queries, fetcher.texts())

	require.Len(t, result.Jobs, 2, "duplicates across queries must be dropped")
	assert.Equal(t, "backend", result.Jobs[0].ID)
	assert.Greater(t, result.Jobs[0].MatchScore, 4.0)
	assert.Equal(t, 0.0, result.Jobs[1].MatchScore)
}

func TestMatchHonoursLimitAndTitle(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{fn: func(_ context.Context, q jobsearch.Query) ([]jobsearch.JobPosting, error) {
		return []jobsearch.JobPosting{
			{ID: q.Text + "-1", Title: "Python Developer", Requirements: "Python"},
			{ID: q.Text + "-2", Title: "SQL Analyst", Requirements: "SQL"},
		}, nil
	}}
	s := newService(t, Config{Pages: 2, Location: "Berlin"}, fetcher, Deps{})

	result, err := s.Match(context.Background(), docx(t, backendResume), Preferences{JobTitle: " Go Engineer ", Limit: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"Go Engineer"}, result.Queries)
	assert.Len(t, result.Jobs, 1)
	require.Len(t, fetcher.queries, 2)
	assert.Equal(t, 0, fetcher.queries[0].Page)
	assert.Equal(t, 1, fetcher.queries[1].Page)
	assert.Equal(t, "Berlin", fetcher.queries[0].Location)
}

func TestMatchGeneralCategory(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	s := newService(t, Config{}, fetcher, Deps{})

	result, err := s.Match(context.Background(), docx(t, "Jane Doe\nWatercolor painter\nMurals and portraits"), Preferences{})
	require.NoError(t, err)

	assert.Equal(t, []string{vocabulary.GeneralCategory}, result.Categories)
	assert.Equal(t, []string{defaultGeneralQuery}, result.Queries)
	assert.Empty(t, result.Jobs)
}

func TestMatchGeneralCategoryUsesInferredTitle(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	s := newService(t, Config{}, fetcher, Deps{})

	result, err := s.Match(context.Background(), docx(t, "Jane Doe\n  Sound Engineer  \nStudio recordings"), Preferences{})
	require.NoError(t, err)

	assert.Equal(t, []string{vocabulary.GeneralCategory}, result.Categories)
	assert.Equal(t, []string{"Sound Engineer"}, fetcher.texts())
}

func TestMatchCorruptDocumentWritesNothing(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	store := &fakeStore{}
	s := newService(t, Config{}, fetcher, Deps{Store: store})

	raw := document.Raw{Data: []byte("definitely not a pdf"), Format: document.FormatPDF, Filename: "cv.pdf"}
	_, _, err := s.MatchAndStore(context.Background(), raw, Preferences{})

	require.ErrorIs(t, err, document.ErrCorruptDocument)
	assert.Zero(t, store.calls)
	assert.Empty(t, fetcher.queries)
}

func TestMatchUnsupportedFormat(t *testing.T) {
	t.Parallel()

	s := newService(t, Config{}, &fakeFetcher{}, Deps{})
	_, err := s.Match(context.Background(), document.Raw{Data: []byte("x"), Format: "odt"}, Preferences{})
	require.ErrorIs(t, err, document.ErrUnsupportedFormat)
}

func TestMatchIsolatesFetchFailures(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	fetcher := &fakeFetcher{fn: func(_ context.Context, q jobsearch.Query) ([]jobsearch.JobPosting, error) {
		if q.Text == "DevOps" {
			return nil, jobsearch.ErrFetch
		}
		return []jobsearch.JobPosting{{ID: "web-1", Title: "Frontend Developer", Requirements: "React, HTML, CSS"}}, nil
	}}
	s := newService(t, Config{}, fetcher, Deps{Logger: zap.New(core), Metrics: metrics.New()})

	text := "Skills: Docker, Kubernetes, AWS. HTML CSS JavaScript React"
	result, err := s.Match(context.Background(), docx(t, text), Preferences{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Web Development", "DevOps"}, result.Categories)
	require.Len(t, result.Jobs, 1)
	assert.Equal(t, "web-1", result.Jobs[0].ID)

	failures := logs.FilterMessage("search failed, skipping").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "DevOps", failures[0].ContextMap()["query"])
}

func TestMatchIsolatesFailingQueryWithSearchClient(t *testing.T) {
	t.Parallel()

	var webCalls, opsCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") == "Web Development" {
			webCalls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		opsCalls.Add(1)
		fmt.Fprintf(w, `{"jobs_results": [{"job_id": "ops-%s", "title": "DevOps Engineer", "description": "Docker and Kubernetes on AWS"}]}`, q.Get("start"))
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	client := jobsearch.New(nil, jobsearch.Config{URL: srv.URL, Retries: 1}, "secret")
	s := newService(t, Config{Pages: 3, Timeout: 5 * time.Second}, client, Deps{Logger: zap.New(core), Metrics: metrics.New()})

	text := "Skills: Docker, Kubernetes, AWS. HTML CSS JavaScript React"
	result, err := s.Match(context.Background(), docx(t, text), Preferences{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Web Development", "DevOps"}, result.Queries)
	assert.EqualValues(t, 3, opsCalls.Load(), "every DevOps page must reach the server")
	assert.GreaterOrEqual(t, webCalls.Load(), int32(5))

	ids := make([]string, 0, len(result.Jobs))
	for _, job := range result.Jobs {
		ids = append(ids, job.ID)
	}
	assert.ElementsMatch(t, []string{"ops-", "ops-10", "ops-20"}, ids)
	assert.Len(t, logs.FilterMessage("search failed, skipping").All(), 3)
}

func TestMatchTimesOutEachUnit(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{fn: func(ctx context.Context, q jobsearch.Query) ([]jobsearch.JobPosting, error) {
		if q.Page == 0 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []jobsearch.JobPosting{{ID: "late", Title: "Python Developer"}}, nil
	}}
	s := newService(t, Config{Pages: 2, Timeout: 20 * time.Millisecond}, fetcher, Deps{})

	result, err := s.Match(context.Background(), docx(t, backendResume), Preferences{JobTitle: "python"})
	require.NoError(t, err)
	require.Len(t, result.Jobs, 1)
	assert.Equal(t, "late", result.Jobs[0].ID)
}

func TestMatchStepErrorAborts(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "exclude.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	fetcher := &fakeFetcher{fn: func(context.Context, jobsearch.Query) ([]jobsearch.JobPosting, error) {
		return []jobsearch.JobPosting{{ID: "1"}}, nil
	}}
	s := newService(t, Config{}, fetcher, Deps{Steps: []Step{NewExcludeFile(path, nil)}})

	_, err := s.Match(context.Background(), docx(t, backendResume), Preferences{JobTitle: "python"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exclude_file")
}

func TestMatchAndStore(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{fn: func(context.Context, jobsearch.Query) ([]jobsearch.JobPosting, error) {
		return []jobsearch.JobPosting{
			{ID: "1", Title: "Python Developer", Company: "Acme", URL: "https://acme.example/1", Requirements: "Python"},
		}, nil
	}}
	store := &fakeStore{}
	s := newService(t, Config{}, fetcher, Deps{Store: store})
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	result, row, err := s.MatchAndStore(context.Background(), docx(t, backendResume), Preferences{JobTitle: "python", Location: "Remote"})
	require.NoError(t, err)
	require.Equal(t, 1, store.calls)

	assert.Same(t, row, store.resume)
	assert.Equal(t, "cv.docx", row.OriginalFilename)
	assert.True(t, strings.HasSuffix(row.Filename, "_cv.docx"))
	assert.Equal(t, "Python, SQL", row.Skills)
	assert.Equal(t, "Remote", row.Location)
	require.Len(t, store.matches, len(result.Jobs))
	assert.Equal(t, row.ID, store.matches[0].ResumeID)
	assert.Equal(t, "1", store.matches[0].JobID)
	assert.Equal(t, result.Jobs[0].MatchScore, store.matches[0].Score)
}

func TestMatchAndStoreErrors(t *testing.T) {
	t.Parallel()

	s := newService(t, Config{}, &fakeFetcher{}, Deps{})
	_, _, err := s.MatchAndStore(context.Background(), docx(t, backendResume), Preferences{})
	require.ErrorIs(t, err, ErrNoStore)

	failing := &fakeStore{err: errors.New("db down")}
	s = newService(t, Config{}, &fakeFetcher{}, Deps{Store: failing})
	_, _, err = s.MatchAndStore(context.Background(), docx(t, backendResume), Preferences{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "saving matches")
}

func TestSaveExistingResult(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	s := newService(t, Config{}, &fakeFetcher{}, Deps{Store: store})
	require.True(t, s.HasStore())

	_, err := s.Save(context.Background(), document.Raw{Filename: "cv.pdf"}, Preferences{}, nil)
	require.Error(t, err)

	result := &Result{Jobs: []scoring.ScoredPosting{{JobPosting: jobsearch.JobPosting{ID: "x"}, MatchScore: 12}}}
	row, err := s.Save(context.Background(), document.Raw{Filename: "/tmp/uploads/cv.pdf"}, Preferences{}, result)
	require.NoError(t, err)
	assert.Equal(t, "cv.pdf", row.OriginalFilename)
	require.Len(t, store.matches, 1)
	assert.Equal(t, 12.0, store.matches[0].Score)

	assert.False(t, newService(t, Config{}, &fakeFetcher{}, Deps{}).HasStore())
}
