package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quantbrief/quantbrief-backend/internal/platform/httpx"
	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
)

const urlsPerQuery = 3

// Client queries the external search endpoint and keeps the first few result
// URLs per query. Union, sort and dedup across queries happen in the stage.
type Client interface {
	Search(ctx context.Context, query string) ([]string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client

	maxRetries  int
	backoffBase time.Duration
}

func NewClient(baseLog *logger.Logger, baseURL string, maxRetries int, backoffBase time.Duration) Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	return &client{
		log:         baseLog.With("service", "SearchClient"),
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
	}
}

type searchHTTPError struct {
	StatusCode int
	Body       string
}

func (e *searchHTTPError) Error() string {
	return fmt.Sprintf("search http %d: %s", e.StatusCode, e.Body)
}

func (e *searchHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

type searchResponse struct {
	Results []struct {
		URL string `json:"url"`
	} `json:"results"`
}

func (c *client) Search(ctx context.Context, query string) ([]string, error) {
	u := fmt.Sprintf("%s/search?q=%s&format=json&pageno=1", c.baseURL, url.QueryEscape(query))

	var raw []byte
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		body, err := c.doOnce(ctx, u)
		if err == nil {
			raw = body
			break
		}

		if attempt >= c.maxRetries-1 || !httpx.IsRetryable(err) {
			return nil, err
		}

		sleepFor := httpx.Backoff(attempt, c.backoffBase)
		c.log.Warn("Search request retrying",
			"query", query,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleepFor):
		}
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("search decode error: %w", err)
	}

	out := make([]string, 0, urlsPerQuery)
	for _, r := range parsed.Results {
		link := strings.TrimSpace(r.URL)
		if link == "" {
			continue
		}
		out = append(out, link)
		if len(out) == urlsPerQuery {
			break
		}
	}
	return out, nil
}

func (c *client) doOnce(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &searchHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
