package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/jobsearch"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/matching"
	"github.com/spigell/cv-matcher/internal/metrics"
	"github.com/spigell/cv-matcher/internal/secrets"
	"github.com/spigell/cv-matcher/internal/skills"
	"github.com/spigell/cv-matcher/internal/storage"
	"github.com/spigell/cv-matcher/internal/vocabulary"
)

// application holds everything a command needs after start.
type application struct {
	config  *Config
	logger  *zap.Logger
	service *matching.Service
	repo    storage.Repository
	metrics *metrics.Metrics
}

// newApplication builds the logger, reads the config and wires the matching
// service. Any failure here is fatal for the command.
func newApplication() (*application, error) {
	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}

	config, err := getConfig()
	if err != nil {
		return nil, fmt.Errorf("getting a config: %w", err)
	}

	log.Info("starting the cv-matcher", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	log.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	vocab, err := loadVocabulary(config.Match.VocabularyFile)
	if err != nil {
		return nil, err
	}

	strategy, err := skills.ParseStrategy(config.Match.SkillStrategy)
	if err != nil {
		return nil, err
	}
	detector, err := skills.ForStrategy(strategy, vocab.SkillList())
	if err != nil {
		return nil, err
	}

	apiKey := resolveAPIKey(config.Search, log)
	client := jobsearch.New(log.Named("jobsearch"), *config.Search, apiKey)

	m := metrics.New()

	app := &application{
		config:  config,
		logger:  log,
		metrics: m,
	}

	var store matching.Store
	if strings.TrimSpace(config.Database.DSN) != "" {
		db, err := storage.Open(*config.Database)
		if err != nil {
			return nil, err
		}
		app.repo = storage.NewRepository(db)
		store = app.repo
		log.Info("database connected")
	} else {
		log.Info("database is not configured, results will not be persisted",
			zap.String("hint", "set DATABASE_DSN environment variable or the 'database.dsn' key in the configuration file"),
		)
	}

	matchCfg := *config.Match
	matchCfg.Pages = config.Search.Pages
	matchCfg.Timeout = config.Search.Timeout
	matchCfg.Location = config.Search.Location

	service, err := matching.NewService(matchCfg, matching.Deps{
		Logger:     log,
		Vocabulary: vocab,
		Detector:   detector,
		Tokenizer:  skills.WordTokenizer{},
		Fetcher:    client,
		Steps:      prepareSteps(config.Match, log),
		Store:      store,
		Metrics:    m,
	})
	if err != nil {
		return nil, fmt.Errorf("building matching service: %w", err)
	}
	app.service = service

	return app, nil
}

func loadVocabulary(path string) (*vocabulary.Data, error) {
	if strings.TrimSpace(path) == "" {
		return vocabulary.Default()
	}
	return vocabulary.Load(path)
}

// resolveAPIKey reads the search API key from the configured file or the
// JOB_API_KEY environment variable. Searching without a key is allowed for
// self-hosted endpoints, so a missing key is only a warning.
func resolveAPIKey(cfg *jobsearch.Config, log *zap.Logger) string {
	key, err := secrets.Load(secrets.Source{
		Name: "job search api key",
		Env:  "JOB_API_KEY",
		File: cfg.APIKeyFile,
	})
	if err != nil {
		log.Warn("searching without an api key",
			zap.Error(err),
			zap.String("hint", "set JOB_API_KEY_FILE or JOB_API_KEY environment variable or the 'search.api-key-file' key in the configuration file"),
		)
		return ""
	}
	return key
}

func prepareSteps(cfg *matching.Config, log *zap.Logger) []matching.Step {
	return []matching.Step{
		matching.NewExcludedCompanies(cfg.ExcludeCompanies, log),
		matching.NewExcludeFile(cfg.ExcludeFile, log),
	}
}

// redacted hides the database credentials before the config is logged.
func redacted(config *Config) *Config {
	c := *config
	if c.Database != nil && c.Database.DSN != "" {
		db := *c.Database
		db.DSN = "<redacted>"
		c.Database = &db
	}
	return &c
}
