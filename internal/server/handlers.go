package server

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spigell/cv-matcher/internal/document"
	"github.com/spigell/cv-matcher/internal/matching"
	"github.com/spigell/cv-matcher/internal/scoring"
	"github.com/spigell/cv-matcher/internal/storage"
)

const uploadField = "file"

type matchResponse struct {
	Jobs []scoring.ScoredPosting `json:"jobs"`
}

type resumeResponse struct {
	ResumeID   string                  `json:"resume_id"`
	Skills     []string                `json:"skills"`
	Categories []string                `json:"categories"`
	Jobs       []scoring.ScoredPosting `json:"jobs"`
}

type matchesResponse struct {
	Resume  *storage.Resume    `json:"resume"`
	Skills  []string           `json:"skills"`
	Matches []storage.JobMatch `json:"matches"`
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// match is the single-shot endpoint: nothing is persisted.
func (s *Server) match(c *fiber.Ctx) error {
	raw, prefs, err := s.readUpload(c)
	if err != nil {
		return err
	}

	result, err := s.matcher.Match(c.UserContext(), raw, prefs)
	if err != nil {
		return err
	}

	return c.JSON(matchResponse{Jobs: nonNil(result.Jobs)})
}

func (s *Server) createResume(c *fiber.Ctx) error {
	raw, prefs, err := s.readUpload(c)
	if err != nil {
		return err
	}

	result, row, err := s.matcher.MatchAndStore(c.UserContext(), raw, prefs)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(resumeResponse{
		ResumeID:   row.ID.String(),
		Skills:     nonNilStrings(result.Sections.SkillsList()),
		Categories: result.Categories,
		Jobs:       nonNil(result.Jobs),
	})
}

func (s *Server) resumeMatches(c *fiber.Ctx) error {
	if s.reader == nil {
		return matching.ErrNoStore
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid resume id")
	}

	resume, err := s.reader.FindResume(c.UserContext(), id)
	if err != nil {
		return err
	}

	matches, err := s.reader.ListMatches(c.UserContext(), id)
	if err != nil {
		return err
	}
	if matches == nil {
		matches = []storage.JobMatch{}
	}

	return c.JSON(matchesResponse{
		Resume:  resume,
		Skills:  nonNilStrings(resume.SkillsList()),
		Matches: matches,
	})
}

// readUpload validates the multipart form and reads the uploaded file.
func (s *Server) readUpload(c *fiber.Ctx) (document.Raw, matching.Preferences, error) {
	fh, err := c.FormFile(uploadField)
	if err != nil {
		return document.Raw{}, matching.Preferences{}, fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	if fh.Filename == "" {
		return document.Raw{}, matching.Preferences{}, fiber.NewError(fiber.StatusBadRequest, "no file selected")
	}
	if fh.Size > s.maxUpload {
		return document.Raw{}, matching.Preferences{}, fiber.NewError(fiber.StatusRequestEntityTooLarge,
			fmt.Sprintf("file too large, max size: %d bytes", s.maxUpload))
	}

	format, err := document.FormatFromFilename(fh.Filename)
	if err != nil {
		return document.Raw{}, matching.Preferences{}, err
	}

	prefs := matching.Preferences{
		JobTitle: strings.TrimSpace(c.FormValue("job_title")),
		Location: strings.TrimSpace(c.FormValue("location")),
	}
	if v := strings.TrimSpace(c.FormValue("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return document.Raw{}, matching.Preferences{}, fiber.NewError(fiber.StatusBadRequest, "limit must be an integer")
		}
		prefs.Limit = limit
	}
	if err := s.validate.Struct(prefs); err != nil {
		return document.Raw{}, matching.Preferences{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	f, err := fh.Open()
	if err != nil {
		return document.Raw{}, matching.Preferences{}, fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload+1))
	if err != nil {
		return document.Raw{}, matching.Preferences{}, fmt.Errorf("reading upload: %w", err)
	}

	return document.Raw{Data: data, Format: format, Filename: fh.Filename}, prefs, nil
}

func nonNil(jobs []scoring.ScoredPosting) []scoring.ScoredPosting {
	if jobs == nil {
		return []scoring.ScoredPosting{}
	}
	return jobs
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
