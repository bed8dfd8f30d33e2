package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/scriptoria/deepresearch/internal/brave"
	"github.com/scriptoria/deepresearch/internal/metrics"
	"github.com/scriptoria/deepresearch/internal/retry"
	"github.com/scriptoria/deepresearch/internal/validation"
)

const (
	defaultSearchResults = 5
	maxSearchResults     = 10
	maxTitleRunes        = 200
	maxDescriptionRunes  = 300

	msgNoSearchResults = "No search results found for this query. Try rephrasing or using different keywords."
)

type Searcher interface {
	Configured() bool
	Search(ctx context.Context, query string, count int) ([]brave.SearchResult, error)
}

// ResultCache stores search hits; cache.RedisCache satisfies it.
type ResultCache interface {
	Key(parts ...string) string
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, value any) error
}

type WebSearch struct {
	searcher Searcher
	cache    ResultCache
	policy   retry.Policy
	logger   *zap.Logger
}

// NewWebSearch builds the web_search tool. cache may be nil.
func NewWebSearch(searcher Searcher, cache ResultCache, policy retry.Policy, logger *zap.Logger) *WebSearch {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy.Retryable = isTransient
	policy.Logger = logger
	return &WebSearch{searcher: searcher, cache: cache, policy: policy, logger: logger}
}

func (t *WebSearch) Name() string { return NameWebSearch }

func (t *WebSearch) Spec() mcp.Tool {
	return mcp.NewTool(NameWebSearch,
		mcp.WithDescription("Search the web for up-to-date information. Returns titles, urls and descriptions."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query (1-500 characters)"),
			mcp.MinLength(1),
			mcp.MaxLength(validation.MaxQueryRunes),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Number of results to return"),
			mcp.DefaultNumber(defaultSearchResults),
			mcp.Min(1),
			mcp.Max(maxSearchResults),
		),
	)
}

func (t *WebSearch) Invoke(ctx context.Context, args Args) Result {
	query, err := validation.SearchQuery(args.String("query"))
	if err != nil {
		return failure(NameWebSearch, KindValidation, "Search parameter error: "+err.Error())
	}
	count := clamp(args.Int("max_results", defaultSearchResults), 1, maxSearchResults)

	if t.searcher == nil || !t.searcher.Configured() {
		return failure(NameWebSearch, KindConfiguration,
			"Search configuration error: API key not found. Please set BRAVE_API_KEY environment variable.")
	}

	var key string
	if t.cache != nil {
		key = t.cache.Key(NameWebSearch, query, strconv.Itoa(count))
		var cached []SourceHit
		hit, err := t.cache.GetJSON(ctx, key, &cached)
		switch {
		case err != nil:
			metrics.SearchCacheLookups.WithLabelValues("error").Inc()
			t.logger.Warn("search cache lookup failed", zap.Error(err))
		case hit:
			metrics.SearchCacheLookups.WithLabelValues("hit").Inc()
			return searchResult(cached)
		default:
			metrics.SearchCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	results, err := retry.Do(ctx, t.policy, NameWebSearch, func(ctx context.Context) ([]brave.SearchResult, error) {
		results, err := t.searcher.Search(ctx, query, count)
		if err != nil {
			return nil, classifySearchError(err)
		}
		return results, nil
	})
	if err != nil {
		kind, message := describeSearchError(err)
		return failure(NameWebSearch, kind, message)
	}

	hits := make([]SourceHit, 0, len(results))
	for _, r := range results {
		if _, err := validation.HTTPURL(r.URL); err != nil {
			continue
		}
		hits = append(hits, SourceHit{
			Title:       truncateRunes(r.Title, maxTitleRunes),
			URL:         r.URL,
			Description: truncateRunes(r.Snippet, maxDescriptionRunes),
			Provenance:  provenanceFor(r.URL),
		})
		if len(hits) == count {
			break
		}
	}

	if t.cache != nil && len(hits) > 0 {
		if err := t.cache.SetJSON(ctx, key, hits); err != nil {
			t.logger.Warn("search cache store failed", zap.Error(err))
		}
	}
	return searchResult(hits)
}

func searchResult(hits []SourceHit) Result {
	if len(hits) == 0 {
		return Result{Tool: NameWebSearch, OK: true, Message: msgNoSearchResults, Sources: []SourceHit{}}
	}
	blocks := make([]string, 0, len(hits))
	for _, h := range hits {
		blocks = append(blocks, fmt.Sprintf("Title: %s\nURL: %s\nDescription: %s\n", h.Title, h.URL, h.Description))
	}
	return Result{Tool: NameWebSearch, OK: true, Message: strings.Join(blocks, "\n"), Sources: hits}
}

func classifySearchError(err error) error {
	if errors.Is(err, brave.ErrMissingAPIKey) {
		return &Error{Kind: KindConfiguration, Op: NameWebSearch, Err: err}
	}
	var apiErr brave.APIError
	if errors.As(err, &apiErr) {
		kind := KindValidation
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError:
			kind = KindTransient
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			kind = KindConfiguration
		}
		return &Error{Kind: kind, Op: NameWebSearch, Status: apiErr.StatusCode, Err: err}
	}
	if kind, _, ok := networkKind(err); ok {
		return &Error{Kind: kind, Op: NameWebSearch, Err: err}
	}
	return &Error{Kind: KindUnexpected, Op: NameWebSearch, Err: err}
}

func describeSearchError(err error) (Kind, string) {
	if errors.Is(err, brave.ErrMissingAPIKey) {
		return KindConfiguration, "Search configuration error: API key not found. Please set BRAVE_API_KEY environment variable."
	}
	var apiErr brave.APIError
	if errors.As(err, &apiErr) {
		kind := KindOf(err)
		switch apiErr.StatusCode {
		case http.StatusUnprocessableEntity:
			return kind, "Search parameter error: " + apiErr.Body
		case http.StatusTooManyRequests:
			return kind, "Rate limit reached. Please wait a moment and try again."
		case http.StatusUnauthorized:
			return kind, "Search authentication error: Invalid API key."
		case http.StatusForbidden:
			return kind, "Search authorization error: API key lacks necessary permissions."
		default:
			return kind, fmt.Sprintf("Search service error: HTTP %d", apiErr.StatusCode)
		}
	}
	if kind, timeout, ok := networkKind(err); ok {
		if timeout {
			return kind, "Search timeout: The search request took too long. Please try again."
		}
		return kind, "Search connection error: Unable to connect to search service. Check your internet connection."
	}
	return KindUnexpected, "Unexpected search error: " + cause(err).Error()
}

func provenanceFor(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ProvenanceWeb
	}
	host := strings.ToLower(parsed.Hostname())
	if strings.HasSuffix(host, ".edu") || strings.Contains(host, ".ac.") || strings.HasSuffix(host, ".ac") {
		return ProvenanceAcademic
	}
	return ProvenanceWeb
}

func truncateRunes(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
