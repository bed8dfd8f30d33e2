package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/scriptoria/deepresearch/internal/fetch"
	"github.com/scriptoria/deepresearch/internal/retry"
	"github.com/scriptoria/deepresearch/internal/validation"
)

type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (fetch.Page, error)
}

type FetchContent struct {
	fetcher PageFetcher
	policy  retry.Policy
	logger  *zap.Logger
}

func NewFetchContent(fetcher PageFetcher, policy retry.Policy, logger *zap.Logger) *FetchContent {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy.Retryable = isTransient
	policy.Logger = logger
	return &FetchContent{fetcher: fetcher, policy: policy, logger: logger}
}

func (t *FetchContent) Name() string { return NameFetchContent }

func (t *FetchContent) Spec() mcp.Tool {
	return mcp.NewTool(NameFetchContent,
		mcp.WithDescription("Fetch a web page and return its main text, truncated to about 2000 characters."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("http or https url of the page"),
		),
	)
}

func (t *FetchContent) Invoke(ctx context.Context, args Args) Result {
	rawURL := args.String("url")
	if _, err := validation.HTTPURL(rawURL); err != nil {
		return failure(NameFetchContent, KindValidation, "Invalid URL format")
	}

	page, err := retry.Do(ctx, t.policy, NameFetchContent, func(ctx context.Context) (fetch.Page, error) {
		page, err := t.fetcher.Fetch(ctx, rawURL)
		if err != nil {
			return page, classifyFetchError(err)
		}
		return page, nil
	})
	if err != nil {
		kind, message := describeFetchError(err)
		return failure(NameFetchContent, kind, message)
	}

	return Result{Tool: NameFetchContent, OK: true, Message: page.Text, Data: page}
}

func classifyFetchError(err error) error {
	var statusErr fetch.StatusError
	switch {
	case errors.Is(err, validation.ErrInvalidURL):
		return &Error{Kind: KindValidation, Op: NameFetchContent, Err: err}
	case errors.Is(err, validation.ErrBlockedHost), errors.Is(err, validation.ErrBlockedPort):
		return &Error{Kind: KindValidation, Op: NameFetchContent, Err: err}
	case errors.Is(err, fetch.ErrInsufficientContent), errors.Is(err, fetch.ErrUnsupportedContentType):
		return &Error{Kind: KindContent, Op: NameFetchContent, Err: err}
	case errors.As(err, &statusErr):
		kind := KindValidation
		if statusErr.StatusCode >= http.StatusInternalServerError || statusErr.StatusCode == http.StatusTooManyRequests {
			kind = KindTransient
		}
		return &Error{Kind: kind, Op: NameFetchContent, Status: statusErr.StatusCode, Err: err}
	}
	if kind, _, ok := networkKind(err); ok {
		return &Error{Kind: kind, Op: NameFetchContent, Err: err}
	}
	return &Error{Kind: KindUnexpected, Op: NameFetchContent, Err: err}
}

func describeFetchError(err error) (Kind, string) {
	var statusErr fetch.StatusError
	switch {
	case errors.Is(err, validation.ErrInvalidURL):
		return KindValidation, "Invalid URL format"
	case errors.Is(err, validation.ErrBlockedHost), errors.Is(err, validation.ErrBlockedPort):
		return KindValidation, "Blocked URL: " + cause(err).Error()
	case errors.Is(err, fetch.ErrInsufficientContent):
		return KindContent, "Insufficient content extracted from page"
	case errors.Is(err, fetch.ErrUnsupportedContentType):
		return KindContent, "Unsupported content type"
	case errors.As(err, &statusErr):
		return KindOf(err), fmt.Sprintf("HTTP error: %d", statusErr.StatusCode)
	}
	if kind, timeout, ok := networkKind(err); ok {
		if timeout {
			return kind, "Request timeout"
		}
		return kind, "Connection error"
	}
	return KindUnexpected, "Unexpected fetch error: " + cause(err).Error()
}
