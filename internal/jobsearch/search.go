package jobsearch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const (
	unknownTitle   = "Unknown Position"
	unknownCompany = "Unknown Company"
	// Highlight block holding the requirements of a posting.
	qualificationsHighlight = "qualifications"
)

type result struct {
	JobID         string `json:"job_id"`
	Title         string `json:"title"`
	CompanyName   string `json:"company_name"`
	Location      string `json:"location"`
	Description   string `json:"description"`
	JobHighlights []struct {
		Title string   `json:"title"`
		Items []string `json:"items"`
	} `json:"job_highlights"`
	ApplyLink    string `json:"apply_link"`
	ApplyOptions []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
	} `json:"apply_options"`
	DetectedExtensions struct {
		PostedAt string `json:"posted_at"`
	} `json:"detected_extensions"`
}

func (c *Client) search(ctx context.Context, q Query) ([]JobPosting, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	items, err := c.GetItems(ctx, c.buildParams(q))
	if err != nil {
		return nil, err
	}

	var results []*result
	cfg := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           &results,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("%w: malformed jobs_results: %w", ErrFetch, err)
	}

	postings := make([]JobPosting, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		postings = append(postings, c.toPosting(r))
	}

	c.logger.Debug("got response from search API", zap.Int("postings", len(postings)))

	return postings, nil
}

func (c *Client) buildParams(q Query) url.Values {
	params := url.Values{}
	params.Set("engine", c.engine)
	params.Set("q", q.Text)
	params.Set("hl", c.language)
	if q.Location != "" {
		params.Set("location", q.Location)
	}
	if q.Page > 0 {
		params.Set("start", strconv.Itoa(q.Page*c.pageSize))
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	return params
}

func (c *Client) toPosting(r *result) JobPosting {
	p := JobPosting{
		ID:          strings.TrimSpace(r.JobID),
		Title:       valueOr(strings.TrimSpace(r.Title), unknownTitle),
		Company:     valueOr(strings.TrimSpace(r.CompanyName), unknownCompany),
		Location:    strings.TrimSpace(r.Location),
		Description: FlattenHTML(r.Description),
		URL:         r.ApplyLink,
		PostedTime:  r.DetectedExtensions.PostedAt,
	}

	if p.ID == "" {
		p.ID = c.newID()
	}

	if p.URL == "" && len(r.ApplyOptions) > 0 {
		p.URL = r.ApplyOptions[0].Link
	}

	var requirements []string
	for _, h := range r.JobHighlights {
		if strings.EqualFold(strings.TrimSpace(h.Title), qualificationsHighlight) {
			requirements = append(requirements, h.Items...)
		}
	}
	p.Requirements = strings.Join(requirements, "\n")
	if p.Requirements == "" {
		p.Requirements = p.Description
	}

	return p
}
