package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/scriptoria/deepresearch/internal/validation"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultCheckTimeout   = 10 * time.Second
	defaultRedirects      = 5
	defaultMaxTextRunes   = 2000
	defaultMinTextRunes   = 50
	defaultMaxBodyBytes   = int64(1_500_000)
	defaultUserAgent      = "deepresearch-bot/1.0"
	maxURLLength          = 2048

	TruncationMarker = "[Content truncated]"
)

var ErrInsufficientContent = errors.New("insufficient content extracted")

// StatusError reports a non-success HTTP status from the fetched page.
type StatusError struct {
	StatusCode int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

type Config struct {
	RequestTimeout time.Duration
	CheckTimeout   time.Duration
	MaxBytes       int64
	MaxRedirects   int
	MaxTextRunes   int
	MinTextRunes   int
	// AllowPrivateHosts disables the private-address guard; tests only.
	AllowPrivateHosts bool
}

type Page struct {
	URL         string
	FinalURL    string
	Title       string
	ContentType string
	StatusCode  int
	Text        string
	Truncated   bool
	FetchedAt   time.Time
}

type URLCheck struct {
	URL         string `json:"url"`
	FinalURL    string `json:"final_url"`
	Accessible  bool   `json:"accessible"`
	StatusCode  int    `json:"status_code,omitempty"`
	ContentType string `json:"content_type"`
	Error       string `json:"error,omitempty"`
}

type Fetcher struct {
	cfg        Config
	httpClient *http.Client
}

func NewFetcher(cfg Config, httpClient *http.Client) *Fetcher {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = defaultCheckTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBodyBytes
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultRedirects
	}
	if cfg.MaxTextRunes <= 0 {
		cfg.MaxTextRunes = defaultMaxTextRunes
	}
	if cfg.MinTextRunes <= 0 {
		cfg.MinTextRunes = defaultMinTextRunes
	}

	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if !cfg.AllowPrivateHosts {
			transport.DialContext = validation.SecureDialContext(&net.Dialer{Timeout: cfg.RequestTimeout})
		}
		httpClient = &http.Client{Transport: transport}
	}

	f := &Fetcher{cfg: cfg, httpClient: httpClient}
	httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= cfg.MaxRedirects {
			return fmt.Errorf("too many redirects")
		}
		if _, err := f.validate(req.URL.String()); err != nil {
			return err
		}
		return nil
	}
	return f
}

func (f *Fetcher) validate(rawURL string) (string, error) {
	if len(rawURL) > maxURLLength {
		return "", fmt.Errorf("%w: url too long", validation.ErrInvalidURL)
	}
	if f.cfg.AllowPrivateHosts {
		parsed, err := validation.HTTPURL(rawURL)
		if err != nil {
			return "", err
		}
		return parsed.String(), nil
	}
	parsed, err := validation.PublicHTTPURL(rawURL)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// Fetch downloads rawURL and returns its main text, whitespace-collapsed
// and bounded to MaxTextRunes with TruncationMarker appended when cut.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	target, err := f.validate(rawURL)
	if err != nil {
		return Page{URL: rawURL}, err
	}

	requestCtx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, target, nil)
	if err != nil {
		return Page{URL: target}, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain,text/markdown,application/json,application/pdf;q=0.9,*/*;q=0.2")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Page{URL: target}, err
	}
	defer resp.Body.Close()

	page := Page{
		URL:         target,
		FinalURL:    finalURL(resp, target),
		StatusCode:  resp.StatusCode,
		ContentType: mediaType(resp.Header.Get("Content-Type")),
		FetchedAt:   time.Now().UTC(),
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		return page, StatusError{StatusCode: resp.StatusCode}
	}

	payload, _, err := readBoundedBody(resp.Body, f.cfg.MaxBytes)
	if err != nil {
		return page, err
	}

	title, text, err := extractContent(page.ContentType, payload)
	if err != nil {
		return page, err
	}
	page.Title = title
	if len([]rune(text)) < f.cfg.MinTextRunes {
		page.Text = text
		return page, ErrInsufficientContent
	}
	if len([]rune(text)) > f.cfg.MaxTextRunes {
		text = strings.TrimSpace(trimToRunes(text, f.cfg.MaxTextRunes)) + "... " + TruncationMarker
		page.Truncated = true
	}
	page.Text = text
	return page, nil
}

// Check performs a lightweight existence probe: HEAD first, then GET when
// the server errors or refuses HEAD. It never returns an error; failures
// are reported through URLCheck.Error.
func (f *Fetcher) Check(ctx context.Context, rawURL string) URLCheck {
	check := URLCheck{URL: rawURL, FinalURL: rawURL, ContentType: "unknown"}
	target, err := f.validate(rawURL)
	if err != nil {
		if errors.Is(err, validation.ErrInvalidURL) {
			check.Error = "Invalid URL format"
		} else {
			check.Error = "Blocked URL: " + err.Error()
		}
		return check
	}

	checkCtx, cancel := context.WithTimeout(ctx, f.cfg.CheckTimeout)
	defer cancel()

	resp, err := f.probe(checkCtx, http.MethodHead, target)
	if err == nil && (resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusMethodNotAllowed) {
		resp, err = f.probe(checkCtx, http.MethodGet, target)
	}
	if err != nil {
		check.Error = describeNetworkError(err)
		return check
	}

	check.StatusCode = resp.StatusCode
	check.FinalURL = finalURL(resp, target)
	if ct := strings.TrimSpace(resp.Header.Get("Content-Type")); ct != "" {
		check.ContentType = ct
	}
	check.Accessible = resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
	return check
}

func (f *Fetcher) probe(ctx context.Context, method, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()
	return resp, nil
}

// IsTimeout reports whether err came from a deadline rather than a refused
// or broken connection.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func describeNetworkError(err error) string {
	if IsTimeout(err) {
		return "Request timeout"
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.Is(err, validation.ErrBlockedHost) {
		return "Connection error"
	}
	return err.Error()
}

func finalURL(resp *http.Response, fallback string) string {
	if resp != nil && resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return fallback
}

func mediaType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = parsed
	}
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}

func readBoundedBody(r io.Reader, maxBytes int64) ([]byte, bool, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	payload, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(payload)) > maxBytes {
		return payload[:maxBytes], true, nil
	}
	return payload, false, nil
}
