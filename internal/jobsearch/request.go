package jobsearch

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
)

type ItemResponse struct {
	Items []Item `json:"jobs_results"`
	// Error is set by the provider when a query has no results.
	Error string `json:"error"`
}

type Item interface{}

// GetItems makes a GET request to the search API and returns the raw
// jobs_results items.
func (c *Client) GetItems(ctx context.Context, q url.Values) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	req = c.setHeaders(req)
	req.URL.RawQuery = q.Encode()

	resp, err := c.request(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	response, err := c.parseItemResponse(resp)
	if err != nil {
		return nil, err
	}

	if response.Error != "" {
		c.logger.Debug("search API reported an error", zap.String("error", response.Error))
	}

	return response.Items, nil
}

func (c *Client) parseItemResponse(resp *http.Response) (*ItemResponse, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: bad status: %s", ErrFetch, resp.Status)
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		defer gz.Close()
		body = gz
	}

	var response ItemResponse
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return nil, fmt.Errorf("%w: malformed body: %w", ErrFetch, err)
	}

	return &response, nil
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", redact(req.URL)))
	return c.HTTPClient.Do(req)
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

// redact hides the API key in logged URLs.
func redact(u *url.URL) string {
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "***")
	}
	clone := *u
	clone.RawQuery = q.Encode()
	return clone.String()
}
