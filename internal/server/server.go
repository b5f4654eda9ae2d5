// Package server exposes the matching pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/document"
	"github.com/spigell/cv-matcher/internal/matching"
	"github.com/spigell/cv-matcher/internal/metrics"
	"github.com/spigell/cv-matcher/internal/storage"
)

const (
	defaultAddr          = ":8080"
	defaultMaxUploadSize = 16 << 20
	// multipart framing on top of the file itself
	bodyOverhead = 64 << 10
)

type Config struct {
	Addr          string `mapstructure:"addr"`
	MaxUploadSize int64  `mapstructure:"max-upload-size" validate:"gte=0"`
}

// Matcher is the part of matching.Service the handlers use.
type Matcher interface {
	Match(ctx context.Context, raw document.Raw, prefs matching.Preferences) (*matching.Result, error)
	MatchAndStore(ctx context.Context, raw document.Raw, prefs matching.Preferences) (*matching.Result, *storage.Resume, error)
}

// Reader loads stored résumés and their matches.
type Reader interface {
	FindResume(ctx context.Context, id uuid.UUID) (*storage.Resume, error)
	ListMatches(ctx context.Context, resumeID uuid.UUID) ([]storage.JobMatch, error)
}

type Server struct {
	app       *fiber.App
	addr      string
	maxUpload int64
	logger    *zap.Logger
	matcher   Matcher
	reader    Reader
	metrics   *metrics.Metrics
	validate  *validator.Validate
}

// New builds the fiber application. reader and m may be nil: stored résumés
// are then unavailable and /metrics is not registered.
func New(cfg Config, logger *zap.Logger, matcher Matcher, reader Reader, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = defaultMaxUploadSize
	}

	s := &Server{
		addr:      cfg.Addr,
		maxUpload: cfg.MaxUploadSize,
		logger:    logger,
		matcher:   matcher,
		reader:    reader,
		metrics:   m,
		validate:  validator.New(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "cv-matcher",
		BodyLimit:             int(cfg.MaxUploadSize + bodyOverhead),
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          2 * time.Minute,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Output: zap.NewStdLog(logger.Named("http")).Writer(),
		Format: "${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New())
	app.Use(s.instrument)

	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	api := app.Group("/api/v1")
	api.Get("/health", s.health)
	api.Post("/match", s.match)
	api.Post("/resumes", s.createResume)
	api.Get("/resumes/:id/matches", s.resumeMatches)

	s.app = app
	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen() error {
	s.logger.Info("starting http server", zap.String("addr", s.addr))
	return s.app.Listen(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) instrument(c *fiber.Ctx) error {
	start := time.Now()
	s.metrics.RequestStarted()

	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = statusFor(err)
	}
	s.metrics.RequestFinished(c.Method(), c.Route().Path, status, time.Since(start))

	return err
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, document.ErrUnsupportedFormat):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, document.ErrCorruptDocument):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, matching.ErrNoStore):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
