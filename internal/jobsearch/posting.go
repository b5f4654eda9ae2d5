package jobsearch

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

type JobPosting struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Company      string `json:"company"`
	Location     string `json:"location"`
	Description  string `json:"description"`
	Requirements string `json:"requirements"`
	URL          string `json:"url"`
	PostedTime   string `json:"posted_time"`
}

type Postings struct {
	Items []JobPosting `json:"items"`
}

func (p *Postings) Len() int {
	return len(p.Items)
}

func (p *Postings) FindByID(id string) *JobPosting {
	for i := range p.Items {
		if p.Items[i].ID == id {
			return &p.Items[i]
		}
	}
	return nil
}

// ReportByCompany groups postings by company for log output.
func (p *Postings) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, posting := range p.Items {
		report[posting.Company] = append(report[posting.Company], map[string]string{
			"title":    posting.Title,
			"url":      posting.URL,
			"location": posting.Location,
			"posted":   posting.PostedTime,
		})
	}
	return report
}

func (p *Postings) ToExcluded(now time.Time) *ExcludedPostings {
	excluded := &ExcludedPostings{}
	for _, posting := range p.Items {
		excluded.Items = append(excluded.Items, &ExcludedPosting{
			ID:         posting.ID,
			URL:        posting.URL,
			Company:    posting.Company,
			ExcludedAt: now.UTC(),
		})
	}
	return excluded
}

type ExcludedPostings struct {
	Items []*ExcludedPosting `json:"items"`
}

type ExcludedPosting struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Company    string    `json:"company"`
	ExcludedAt time.Time `json:"excluded_at"`
}

// ExcludedFromFile reads an exclude file. A missing or empty file yields an
// empty list.
func ExcludedFromFile(path string) (*ExcludedPostings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &ExcludedPostings{}, nil
	}
	if err != nil {
		return nil, err
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return &ExcludedPostings{}, nil
	}

	var excluded ExcludedPostings
	if err := json.Unmarshal(data, &excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

func (e *ExcludedPostings) Append(s *ExcludedPostings) {
	e.Items = append(e.Items, s.Items...)
}

func (e *ExcludedPostings) IDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, posting := range e.Items {
		ids = append(ids, posting.ID)
	}
	return ids
}

func (e *ExcludedPostings) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

// FlattenHTML returns the visible text of an HTML fragment. Plain text is
// returned trimmed.
func FlattenHTML(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "<") {
		return s
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, li, div").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	lines := strings.Split(doc.Text(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
