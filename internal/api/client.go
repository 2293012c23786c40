// Package api provides the HTTP client for the chat backend's session
// history endpoints.
//
// The client is deliberately forgiving: a non-2xx status or a response body
// that does not have the expected shape is logged and surfaced as an empty
// result rather than an error, so a flaky backend degrades the UI to an
// empty list instead of breaking it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/webollama/chat-resume/pkg/models"
)

// ErrEmptyQuery is returned by SearchSessions for an empty or
// whitespace-only query. Callers are expected to fall back to
// FetchSessionList instead of searching.
var ErrEmptyQuery = errors.New("search query is empty")

// Config holds client configuration options.
type Config struct {
	// BaseURL is the session API base URL, e.g. http://127.0.0.1:8080/api/sessions
	BaseURL string

	// Timeout for a single request (default: 15s)
	Timeout time.Duration

	// PageLimit is the list page size. The client always requests one
	// generous page; sorting and filtering happen client-side afterward.
	// (default: 100)
	PageLimit int

	// RequestsPerSecond caps the request rate during rapid re-sorts and
	// filter changes (default: 10, burst 5).
	RequestsPerSecond float64
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "http://127.0.0.1:8080/api/sessions",
		Timeout:           15 * time.Second,
		PageLimit:         100,
		RequestsPerSecond: 10,
	}
}

// Client talks to the session history API. Safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewClient creates a client with the given configuration. A nil config
// uses defaults; a nil logger discards output.
func NewClient(config *Config, logger *log.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.PageLimit <= 0 {
		config.PageLimit = DefaultConfig().PageLimit
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 5),
		logger:     logger,
	}
}

// PageLimit returns the configured list page size.
func (c *Client) PageLimit() int {
	return c.config.PageLimit
}

// FetchSessionList fetches one page of session summaries, ordered by the
// backend. dateFrom and dateTo are inclusive ISO date bounds and may be
// empty. A bad status or malformed body yields an empty slice, not an error.
func (c *Client) FetchSessionList(ctx context.Context, sortKey, sortDir, dateFrom, dateTo string) ([]models.SessionSummary, error) {
	params := url.Values{}
	params.Set("sort_by", sortKey)
	params.Set("sort_order", sortDir)
	params.Set("limit", fmt.Sprintf("%d", c.config.PageLimit))
	if dateFrom != "" {
		params.Set("date_from", dateFrom)
	}
	if dateTo != "" {
		params.Set("date_to", dateTo)
	}

	body, err := c.get(ctx, "/history?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var sessions []models.SessionSummary
	if err := json.Unmarshal(body, &sessions); err != nil {
		c.logger.Warn("session list response is not an array, treating as empty", "err", err)
		return []models.SessionSummary{}, nil
	}
	return sessions, nil
}

// SearchSessions runs a full-text search over sessions. An empty or
// whitespace-only query returns ErrEmptyQuery; callers must use
// FetchSessionList for the no-search case.
func (c *Client) SearchSessions(ctx context.Context, query string, limit int) ([]models.SessionSummary, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = c.config.PageLimit
	}

	payload := struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}{Query: query, Limit: limit}

	body, err := c.post(ctx, "/search", payload)
	if err != nil {
		return nil, err
	}

	var results []models.SessionSummary
	if err := json.Unmarshal(body, &results); err != nil {
		c.logger.Warn("search response is not an array, treating as empty", "err", err)
		return []models.SessionSummary{}, nil
	}
	return results, nil
}

// FetchDetails fetches the entity and message details for one session.
// The client does not cache; detail caching belongs to the UI session so
// cache lifetime is not tied to a client instance.
func (c *Client) FetchDetails(ctx context.Context, sessionID string) (*models.SessionDetails, error) {
	body, err := c.get(ctx, "/"+url.PathEscape(sessionID)+"/details")
	if err != nil {
		return nil, err
	}

	var details models.SessionDetails
	if err := json.Unmarshal(body, &details); err != nil {
		c.logger.Warn("details response malformed, treating as empty", "session", sessionID, "err", err)
		return &models.SessionDetails{}, nil
	}
	return &details, nil
}

// FetchSimilar fetches sessions similar to the given one, each carrying a
// relevance score.
func (c *Client) FetchSimilar(ctx context.Context, sessionID string, limit int) ([]models.SessionSummary, error) {
	if limit <= 0 {
		limit = 5
	}
	path := fmt.Sprintf("/%s/similar?limit=%d", url.PathEscape(sessionID), limit)
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var similar []models.SessionSummary
	if err := json.Unmarshal(body, &similar); err != nil {
		c.logger.Warn("similar response is not an array, treating as empty", "session", sessionID, "err", err)
		return []models.SessionSummary{}, nil
	}
	return similar, nil
}

// ResumeSession asks the backend to make the session active and returns the
// resumed session ID. Unlike the list fetches this is a command, not a
// query, so a failed status is a real error rather than an empty result.
func (c *Client) ResumeSession(ctx context.Context, sessionID string) (string, error) {
	body, status, err := c.do(ctx, http.MethodPost, "/"+url.PathEscape(sessionID)+"/resume", strings.NewReader("{}"))
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("resume failed with status %d", status)
	}

	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("resume response malformed: %w", err)
	}
	if resp.SessionID == "" {
		resp.SessionID = sessionID
	}
	return resp.SessionID, nil
}

// FetchStats fetches the aggregate session counts.
func (c *Client) FetchStats(ctx context.Context) (*models.StatsSummary, error) {
	body, err := c.get(ctx, "/stats/summary")
	if err != nil {
		return nil, err
	}

	var stats models.StatsSummary
	if err := json.Unmarshal(body, &stats); err != nil {
		c.logger.Warn("stats response malformed, treating as empty", "err", err)
		return &models.StatsSummary{}, nil
	}
	return &stats, nil
}

// get issues a GET and softens non-2xx statuses into a JSON "null" body, so
// shape-tolerant callers decode them into their zero values.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	data, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		c.logger.Warn("backend returned error status", "method", http.MethodGet, "path", path, "status", status)
		return []byte("null"), nil
	}
	return data, nil
}

// post issues a POST with a JSON body, with the same soft status handling
// as get.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	data, status, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		c.logger.Warn("backend returned error status", "method", http.MethodPost, "path", path, "status", status)
		return []byte("null"), nil
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, resp.StatusCode, nil
}
