// Package jobsearch fetches job postings from a Google Jobs compatible search
// API (SerpApi).
package jobsearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/utils"
)

const (
	apiURL          = "https://serpapi.com/search"
	defaultEngine   = "google_jobs"
	defaultLanguage = "en"
	userAgent       = "spigell/cv-matcher (spigelly@gmail.com)"
	// Google Jobs returns ten results per page.
	defaultPageSize = 10

	breakerFailures = 5
	breakerTimeout  = 30 * time.Second
	retryBackoff    = 500 * time.Millisecond
	maxRetryBackoff = 5 * time.Second
)

// ErrFetch wraps every failure of a single search call: transport errors,
// non-200 responses, malformed bodies and an open circuit.
var ErrFetch = errors.New("job search failed")

type Config struct {
	URL        string        `mapstructure:"url" validate:"omitempty,url"`
	Engine     string        `mapstructure:"engine"`
	Language   string        `mapstructure:"language"`
	APIKeyFile string        `mapstructure:"api-key-file"`
	Location   string        `mapstructure:"location"`
	Pages      int           `mapstructure:"pages" validate:"gte=0,lte=10"`
	PageSize   int           `mapstructure:"page-size" validate:"gte=0"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Rate       float64       `mapstructure:"rate" validate:"gte=0"`
	Burst      int           `mapstructure:"burst" validate:"gte=0"`
	Retries    int           `mapstructure:"retries" validate:"gte=0,lte=5"`
}

// Query is one (text, location, page) search unit.
type Query struct {
	Text     string
	Location string
	Page     int
}

type Client struct {
	logger     *zap.Logger
	apiKey     string
	engine     string
	language   string
	pageSize   int
	retries    int
	backoff    time.Duration
	limiter    *rate.Limiter
	mu         sync.Mutex
	breakers   map[Query]*gobreaker.CircuitBreaker[[]JobPosting]
	newID      func() string
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(logger *zap.Logger, cfg Config, apiKey string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		logger:   logger,
		apiKey:   apiKey,
		engine:   valueOr(cfg.Engine, defaultEngine),
		language: valueOr(cfg.Language, defaultLanguage),
		pageSize: cfg.PageSize,
		retries:  cfg.Retries,
		backoff:  retryBackoff,
		limiter:  rate.NewLimiter(rate.Inf, 0),
		breakers: make(map[Query]*gobreaker.CircuitBreaker[[]JobPosting]),
		newID:    uuid.NewString,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		UserAgent: userAgent,
		APIURL:    valueOr(cfg.URL, apiURL),
	}

	if c.pageSize <= 0 {
		c.pageSize = defaultPageSize
	}
	if cfg.Timeout > 0 {
		c.HTTPClient.Timeout = cfg.Timeout
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}

	return c
}

// breakerFor returns the circuit breaker of a single search unit. Units never
// share a breaker, so a failing query can not cut off the others.
func (c *Client) breakerFor(q Query) *gobreaker.CircuitBreaker[[]JobPosting] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[q]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker[[]JobPosting](gobreaker.Settings{
		Name:    fmt.Sprintf("job-search:%s:%s:%d", q.Text, q.Location, q.Page),
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	c.breakers[q] = cb
	return cb
}

// Fetch runs one search unit, retrying failed attempts with a doubling
// backoff. An open circuit is not retried.
func (c *Client) Fetch(ctx context.Context, q Query) ([]JobPosting, error) {
	log := c.logger.With(zap.String(logger.FieldQuery, q.Text), zap.Int(logger.FieldPage, q.Page))

	breaker := c.breakerFor(q)

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			wait := utils.Backoff(c.backoff, attempt, maxRetryBackoff)
			log.Debug("retrying search", zap.Int("attempt", attempt), zap.Duration("backoff", wait), zap.Error(lastErr))
			if err := utils.WaitFor(ctx, wait); err != nil {
				return nil, lastErr
			}
		}

		postings, err := breaker.Execute(func() ([]JobPosting, error) {
			return c.search(ctx, q)
		})
		if err == nil {
			return postings, nil
		}

		if IsCircuitOpen(err) {
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
