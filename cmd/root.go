package cmd

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/cv-matcher/internal/jobsearch"
	"github.com/spigell/cv-matcher/internal/matching"
	"github.com/spigell/cv-matcher/internal/server"
	"github.com/spigell/cv-matcher/internal/storage"
)

const (
	app = "cv-matcher"
)

type Config struct {
	Search   *jobsearch.Config `mapstructure:"search" validate:"required"`
	Match    *matching.Config  `mapstructure:"match" validate:"required"`
	Database *storage.Config   `mapstructure:"database"`
	Server   *server.Config    `mapstructure:"server"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-matcher parses a résumé and ranks job postings by relevance to it",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	for key, env := range map[string]string{
		"search.api-key-file": "JOB_API_KEY_FILE",
		"database.dsn":        "DATABASE_DSN",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("search.engine", "google_jobs")
	viper.SetDefault("search.language", "en")
	viper.SetDefault("search.pages", 1)
	viper.SetDefault("search.page-size", 10)
	viper.SetDefault("search.timeout", 10*time.Second)
	viper.SetDefault("search.retries", 1)
	viper.SetDefault("match.limit", 10)
	viper.SetDefault("match.top-categories", 3)
	viper.SetDefault("match.skill-strategy", "tokenized")
	viper.SetDefault("match.general-query", "software")
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.max-upload-size", 16<<20)
}

func initConfig() {
	// version does not need a config.
	if matchCmd.CalledAs() == "" && serveCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Without an explicit --config the defaults are enough to start.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		return nil, errors.New("config is empty")
	}
	if config.Database == nil {
		config.Database = &storage.Config{}
	}
	if config.Server == nil {
		config.Server = &server.Config{}
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}
