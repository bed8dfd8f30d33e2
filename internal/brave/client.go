// Package brave is a rate-limited client for the Brave web search API.
package brave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/scriptoria/deepresearch/internal/config"
)

const (
	defaultCount      = 5
	maxResultCount    = 20
	maxQueryWords     = 50
	maxErrorBodyBytes = 8 * 1024
	requestTimeout    = 15 * time.Second
	userAgent         = "deepresearch/1.0"
)

var ErrMissingAPIKey = errors.New("brave api key is not configured")

// APIError is a non-2xx answer from the search endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e APIError) Error() string {
	return fmt.Sprintf("brave returned %d: %s", e.StatusCode, e.Body)
}

// Client is safe for concurrent use. All searches share one limiter, so
// parallel research runs together stay under the provider quota.
type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
}

func NewClient(cfg config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	every := rate.Inf
	if cfg.SearchMinInterval > 0 {
		every = rate.Every(cfg.SearchMinInterval)
	}
	return &Client{
		apiKey:   strings.TrimSpace(cfg.BraveAPIKey),
		endpoint: strings.TrimRight(strings.TrimSpace(cfg.BraveBaseURL), "/") + "/web/search",
		http:     httpClient,
		limiter:  rate.NewLimiter(every, 1),
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Search returns up to count distinct web results. An empty query is not
// sent upstream and yields no results.
func (c *Client) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	if !c.Configured() {
		return nil, ErrMissingAPIKey
	}
	query = normalizeQuery(query)
	if query == "" {
		return nil, nil
	}
	count = clampCount(count)

	req, err := c.newRequest(ctx, query, count)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for brave rate limit: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request brave: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload webResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode brave response: %w", err)
	}
	return payload.collect(count), nil
}

func (c *Client) newRequest(ctx context.Context, query string, count int) (*http.Request, error) {
	target, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse brave endpoint: %w", err)
	}
	target.RawQuery = url.Values{
		"q":                {query},
		"count":            {strconv.Itoa(count)},
		"result_filter":    {"web"},
		"safesearch":       {"moderate"},
		"spellcheck":       {"0"},
		"text_decorations": {"0"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build brave request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Subscription-Token", c.apiKey)
	return req, nil
}

// normalizeQuery collapses whitespace and keeps the first maxQueryWords
// words, the most the endpoint accepts.
func normalizeQuery(query string) string {
	words := strings.Fields(query)
	if len(words) > maxQueryWords {
		words = words[:maxQueryWords]
	}
	return strings.Join(words, " ")
}

func clampCount(count int) int {
	if count <= 0 {
		return defaultCount
	}
	return min(count, maxResultCount)
}
