package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/document"
	"github.com/spigell/cv-matcher/internal/jobsearch"
	"github.com/spigell/cv-matcher/internal/matching"
	"github.com/spigell/cv-matcher/internal/scoring"
)

const (
	PromptSave                = "Save to database"
	PromptResultToFile        = "Dump result to file"
	PromptReportByCompanies   = "Report by companies"
	PromptReview              = "Review postings"
	PromptAppendToExcludeFile = "Append all postings to exclude file"
	PromptExit                = "Exit"
	PromptBack                = "back"
)

var errExit = errors.New("exit requested")

var matchCmd = &cobra.Command{
	Use:   "match <resume.pdf|resume.docx>",
	Short: "Parse a résumé and rank job postings against it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		match(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("title", "t", "", "job title to search for instead of the routed categories")
	matchCmd.Flags().StringP("location", "l", "", "location to search in (default is search.location)")
	matchCmd.Flags().IntP("limit", "n", 0, "maximum number of ranked postings (default is match.limit)")
	matchCmd.Flags().BoolP("auto-approve", "y", false, "do not ask what to do with the result, save it if a database is configured")
	matchCmd.Flags().StringP("exclude-file", "e", "", "special file with postings to exclude. Default is unset.")

	viper.BindPFlag("match.exclude-file", matchCmd.Flags().Lookup("exclude-file"))
}

// match is the main command for the cli.
func match(cmd *cobra.Command, path string) {
	ctx := context.Background()

	app, err := newApplication()
	if err != nil {
		log.Fatal(err)
	}
	logger := app.logger

	raw, err := readResume(path, app.config.Server.MaxUploadSize)
	if err != nil {
		logger.Fatal("reading a résumé", zap.Error(err))
	}

	limit, _ := cmd.Flags().GetInt("limit")
	prefs := matching.Preferences{
		JobTitle: cmd.Flag("title").Value.String(),
		Location: cmd.Flag("location").Value.String(),
		Limit:    limit,
	}

	result, err := app.service.Match(ctx, raw, prefs)
	if err != nil {
		logger.Fatal("matching failed", zap.Error(err))
	}

	logger.Info("résumé matched",
		zap.Strings("skills", result.Sections.SkillsList()),
		zap.Strings("categories", result.Categories),
		zap.Strings("queries", result.Queries),
		zap.Int("jobs", len(result.Jobs)),
	)
	for i, job := range result.Jobs {
		logger.Info(fmt.Sprintf("#%d %s", i+1, job.Title),
			zap.Float64("score", job.MatchScore),
			zap.String("company", job.Company),
			zap.String("url", job.URL),
		)
	}

	if len(result.Jobs) == 0 {
		logger.Info("exiting", zap.String("reason", "no postings found"))
		return
	}

	if cmd.Flag("auto-approve").Value.String() == "true" {
		if app.service.HasStore() {
			if _, err := app.service.Save(ctx, raw, prefs, result); err != nil {
				logger.Fatal("saving matches", zap.Error(err))
			}
		}
		return
	}

	prompt := promptui.Select{
		Label: "What next?",
		Items: actions(app.service.HasStore(), viper.GetString("match.exclude-file") != ""),
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(ctx, action, app, raw, prefs, result); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func actions(hasStore, hasExcludeFile bool) []string {
	items := make([]string, 0, 6)
	if hasStore {
		items = append(items, PromptSave)
	}
	items = append(items, PromptResultToFile, PromptReportByCompanies, PromptReview)
	if hasExcludeFile {
		items = append(items, PromptAppendToExcludeFile)
	}
	return append(items, PromptExit)
}

func handleAction(ctx context.Context, action string, app *application, raw document.Raw, prefs matching.Preferences, result *matching.Result) error {
	logger := app.logger
	postings := toPostings(result.Jobs)

	switch action {
	case PromptSave:
		row, err := app.service.Save(ctx, raw, prefs, result)
		if err != nil {
			return err
		}
		logger.Info("stored", zap.String("resume_id", row.ID.String()))
		return nil
	case PromptResultToFile:
		filename, err := dumpToTmpFile(result)
		if err != nil {
			return fmt.Errorf("dump result to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptReportByCompanies:
		pretty, _ := json.MarshalIndent(postings.ReportByCompany(), "", "  ")
		logger.Info(string(pretty), zap.Int("postings count", postings.Len()))
		return nil
	case PromptReview:
		return review(logger, result.Jobs, postings)
	case PromptAppendToExcludeFile:
		return appendToExcludeFile(logger, viper.GetString("match.exclude-file"), postings)
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// review shows ranked postings one at a time until back is selected.
func review(logger *zap.Logger, jobs []scoring.ScoredPosting, postings *jobsearch.Postings) error {
	items := make([]string, 0, len(jobs)+1)
	for _, job := range jobs {
		items = append(items, fmt.Sprintf("%s %.2f / %s / %s", job.ID, job.MatchScore, job.Title, job.Company))
	}

	postingPrompt := promptui.Select{
		Label: "Choose a posting and press ENTER",
		Items: append(items, PromptBack),
		Size:  10,
	}

	for {
		_, selected, err := postingPrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		id := strings.Split(selected, " ")[0]
		posting := postings.FindByID(id)
		if posting == nil {
			return fmt.Errorf("there is no such posting id %s", id)
		}

		fmt.Printf("\n%s\n%s, %s (%s)\n%s\n\n%s\n\n", posting.Title, posting.Company, posting.Location,
			posting.PostedTime, posting.URL, jobsearch.FlattenHTML(posting.Description))
	}
}

func appendToExcludeFile(logger *zap.Logger, excludeFile string, postings *jobsearch.Postings) error {
	excluded, err := jobsearch.ExcludedFromFile(excludeFile)
	if err != nil {
		return err
	}

	excluded.Append(postings.ToExcluded(time.Now()))

	if err := excluded.ToFile(excludeFile); err != nil {
		return err
	}

	logger.Info("appended to exclude file", zap.String("filename", excludeFile), zap.Int("postings", postings.Len()))
	return nil
}

// readResume loads a résumé from disk and detects its format by extension.
func readResume(path string, maxSize int64) (document.Raw, error) {
	format, err := document.FormatFromFilename(path)
	if err != nil {
		return document.Raw{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return document.Raw{}, err
	}
	if maxSize > 0 && info.Size() > maxSize {
		return document.Raw{}, fmt.Errorf("file too large: %d bytes, max size: %d bytes", info.Size(), maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return document.Raw{}, err
	}

	return document.Raw{Data: data, Format: format, Filename: filepath.Base(path)}, nil
}

func toPostings(jobs []scoring.ScoredPosting) *jobsearch.Postings {
	items := make([]jobsearch.JobPosting, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, job.JobPosting)
	}
	return &jobsearch.Postings{Items: items}
}

func dumpToTmpFile(result *matching.Result) (string, error) {
	file, err := os.CreateTemp("", "cv-matcher-*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return "", err
	}
	return file.Name(), nil
}
