package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap/zaptest"

	"github.com/scriptoria/deepresearch/internal/config"
	"github.com/scriptoria/deepresearch/internal/research"
	"github.com/scriptoria/deepresearch/internal/tools"
)

type stubRegistry struct {
	results  map[string]tools.Result
	lastArgs tools.Args
}

func (s *stubRegistry) Specs() []mcp.Tool {
	specs := make([]mcp.Tool, 0, len(s.results))
	for _, name := range []string{tools.NameWebSearch, tools.NameValidateURL} {
		if _, ok := s.results[name]; ok {
			specs = append(specs, mcp.NewTool(name, mcp.WithDescription("stub "+name)))
		}
	}
	return specs
}

func (s *stubRegistry) Tool(name string) (tools.Tool, bool) {
	_, ok := s.results[name]
	return nil, ok
}

func (s *stubRegistry) Dispatch(_ context.Context, name string, args tools.Args) tools.Result {
	s.lastArgs = args
	result := s.results[name]
	result.Tool = name
	return result
}

type stubHealth struct {
	report tools.HealthReport
}

func (s stubHealth) Run(context.Context) tools.HealthReport {
	return s.report
}

type stubResearcher struct {
	progress []research.Progress
	outcome  research.Outcome
	err      error
	goal     research.Goal
}

func (s *stubResearcher) Run(_ context.Context, goal research.Goal, onProgress func(research.Progress)) (research.Outcome, error) {
	s.goal = goal
	for _, p := range s.progress {
		if onProgress != nil {
			onProgress(p)
		}
	}
	return s.outcome, s.err
}

func newTestHandler(t *testing.T, researcher *stubResearcher) (Handler, *stubRegistry) {
	t.Helper()
	registry := &stubRegistry{results: map[string]tools.Result{
		tools.NameWebSearch:   {OK: true, Message: "Found 1 results"},
		tools.NameValidateURL: {OK: false, Kind: tools.KindValidation, Message: "Invalid URL"},
	}}
	health := stubHealth{report: tools.HealthReport{OverallStatus: tools.HealthHealthy}}
	cfg := config.Config{AllowedOrigins: []string{"http://localhost:3000"}}
	return NewHandler(cfg, registry, health, researcher, zaptest.NewLogger(t)), registry
}

func decodeJSONBody(t *testing.T, resp *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), target); err != nil {
		t.Fatalf("decode response body: %v (%s)", err, resp.Body.String())
	}
}

func TestHealthzReturnsOK(t *testing.T) {
	handler, _ := newTestHandler(t, &stubResearcher{})
	resp := httptest.NewRecorder()

	NewRouter(handler).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", resp.Body.String())
	}
}

func TestHealthReturnsServiceUnavailableWhenUnhealthy(t *testing.T) {
	handler, _ := newTestHandler(t, &stubResearcher{})
	handler.health = stubHealth{report: tools.HealthReport{
		OverallStatus: tools.HealthUnhealthy,
		Services:      map[string]tools.CheckResult{"storage": {Status: tools.HealthUnhealthy, Error: "disk full"}},
	}}
	resp := httptest.NewRecorder()

	NewRouter(handler).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, resp.Code)
	}
	var report tools.HealthReport
	decodeJSONBody(t, resp, &report)
	if report.Services["storage"].Error != "disk full" {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestHealthTreatsDegradedAsOK(t *testing.T) {
	handler, _ := newTestHandler(t, &stubResearcher{})
	handler.health = stubHealth{report: tools.HealthReport{OverallStatus: tools.HealthDegraded}}
	resp := httptest.NewRecorder()

	NewRouter(handler).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
}

func TestListToolsReturnsSpecs(t *testing.T) {
	handler, _ := newTestHandler(t, &stubResearcher{})
	resp := httptest.NewRecorder()

	NewRouter(handler).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/v1/tools", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d (%s)", http.StatusOK, resp.Code, resp.Body.String())
	}
	var body struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	decodeJSONBody(t, resp, &body)
	if len(body.Tools) != 2 || body.Tools[0].Name != tools.NameWebSearch || body.Tools[1].Name != tools.NameValidateURL {
		t.Fatalf("unexpected tools: %+v", body.Tools)
	}
}

func TestInvokeToolPassesArguments(t *testing.T) {
	handler, registry := newTestHandler(t, &stubResearcher{})
	req := httptest.NewRequest(http.MethodPost, "/v1/tools/web_search", strings.NewReader(`{"query":"Genesis 1","count":3}`))
	resp := httptest.NewRecorder()

	NewRouter(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d (%s)", http.StatusOK, resp.Code, resp.Body.String())
	}
	if registry.lastArgs.String("query") != "Genesis 1" || registry.lastArgs.Int("count", 0) != 3 {
		t.Fatalf("unexpected args: %+v", registry.lastArgs)
	}
	var result tools.Result
	decodeJSONBody(t, resp, &result)
	if !result.OK || result.Tool != tools.NameWebSearch {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestInvokeToolAcceptsEmptyBody(t *testing.T) {
	handler, registry := newTestHandler(t, &stubResearcher{})
	resp := httptest.NewRecorder()

	NewRouter(handler).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/v1/tools/web_search", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d (%s)", http.StatusOK, resp.Code, resp.Body.String())
	}
	if len(registry.lastArgs) != 0 {
		t.Fatalf("expected empty args, got %+v", registry.lastArgs)
	}
}

func TestInvokeToolRejectsMalformedBody(t *testing.T) {
	handler, _ := newTestHandler(t, &stubResearcher{})
	req := httptest.NewRequest(http.MethodPost, "/v1/tools/web_search", strings.NewReader(`{"query":`))
	resp := httptest.NewRecorder()

	NewRouter(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
}

func TestInvokeToolUnknownNameIsNotFound(t *testing.T) {
	handler, _ := newTestHandler(t, &stubResearcher{})
	resp := httptest.NewRecorder()

	NewRouter(handler).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/v1/tools/summon_oracle", nil))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.Code)
	}
	var body errorResponse
	decodeJSONBody(t, resp, &body)
	if body.Error.Code != "tool_not_found" {
		t.Fatalf("unexpected error code: %q", body.Error.Code)
	}
}

func TestInvokeToolMapsFailureKindToStatus(t *testing.T) {
	handler, _ := newTestHandler(t, &stubResearcher{})
	req := httptest.NewRequest(http.MethodPost, "/v1/tools/validate_url", strings.NewReader(`{"url":"ftp://nope"}`))
	resp := httptest.NewRecorder()

	NewRouter(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
	var result tools.Result
	decodeJSONBody(t, resp, &result)
	if result.OK || result.Message != "Invalid URL" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestToolStatus(t *testing.T) {
	tests := []struct {
		result tools.Result
		want   int
	}{
		{tools.Result{OK: true}, http.StatusOK},
		{tools.Result{Kind: tools.KindValidation}, http.StatusBadRequest},
		{tools.Result{Kind: tools.KindConfiguration}, http.StatusServiceUnavailable},
		{tools.Result{Kind: tools.KindTransient}, http.StatusBadGateway},
		{tools.Result{Kind: tools.KindContent}, http.StatusUnprocessableEntity},
		{tools.Result{Kind: tools.KindUnexpected}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := toolStatus(tt.result); got != tt.want {
			t.Fatalf("toolStatus(%+v) = %d, want %d", tt.result, got, tt.want)
		}
	}
}

func TestMetricsRouteFollowsConfig(t *testing.T) {
	handler, _ := newTestHandler(t, &stubResearcher{})

	resp := httptest.NewRecorder()
	NewRouter(handler).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected metrics to be hidden, got %d", resp.Code)
	}

	handler.cfg.MetricsEnabled = true
	resp = httptest.NewRecorder()
	NewRouter(handler).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected metrics to be served, got %d", resp.Code)
	}
}
