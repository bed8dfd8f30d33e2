package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scriptoria/deepresearch/internal/research"
)

func TestResearchReturnsOutcome(t *testing.T) {
	researcher := &stubResearcher{outcome: research.Outcome{
		RunID:      "run-1",
		Complete:   true,
		Report:     "# Enhanced Research Report: Genesis 1",
		StopReason: research.StopReasonComplete,
	}}
	handler, _ := newTestHandler(t, researcher)
	req := httptest.NewRequest(http.MethodPost, "/v1/research", strings.NewReader(`{"topic":"Genesis 1","research_mandate":"Trace creation","min_sources":3}`))
	resp := httptest.NewRecorder()

	NewRouter(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d (%s)", http.StatusOK, resp.Code, resp.Body.String())
	}
	if researcher.goal.Topic() != "Genesis 1" || researcher.goal.MinSources() != 3 || researcher.goal.Mandate() != "Trace creation" {
		t.Fatalf("unexpected goal: %+v", researcher.goal)
	}

	var body struct {
		RunID      string `json:"run_id"`
		Complete   bool   `json:"research_complete"`
		Report     string `json:"final_report"`
		StopReason string `json:"stop_reason"`
	}
	decodeJSONBody(t, resp, &body)
	if body.RunID != "run-1" || !body.Complete || body.StopReason != "complete" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if !strings.HasPrefix(body.Report, "# Enhanced Research Report") {
		t.Fatalf("unexpected report: %q", body.Report)
	}
}

func TestResearchRejectsInvalidGoals(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "empty topic", body: `{"topic":"   "}`, code: "invalid_goal"},
		{name: "threshold out of range", body: `{"topic":"Genesis 1","quality_threshold":1.5}`, code: "invalid_goal"},
		{name: "unknown criterion", body: `{"topic":"Genesis 1","completion_criteria":["vibes"]}`, code: "invalid_goal"},
		{name: "unknown field", body: `{"topic":"Genesis 1","deepResearch":true}`, code: "invalid_request"},
		{name: "no body", body: ``, code: "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			researcher := &stubResearcher{}
			handler, _ := newTestHandler(t, researcher)
			req := httptest.NewRequest(http.MethodPost, "/v1/research", strings.NewReader(tt.body))
			resp := httptest.NewRecorder()

			NewRouter(handler).ServeHTTP(resp, req)

			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
			}
			var body errorResponse
			decodeJSONBody(t, resp, &body)
			if body.Error.Code != tt.code {
				t.Fatalf("expected error code %q, got %q", tt.code, body.Error.Code)
			}
			if researcher.goal.Topic() != "" {
				t.Fatal("researcher should not run for an invalid request")
			}
		})
	}
}

func TestResearchStreamsProgressEvents(t *testing.T) {
	researcher := &stubResearcher{
		progress: []research.Progress{
			{Phase: research.PhaseInitializing, Title: "Planning the investigation", MaxIterations: 25},
			{Phase: research.PhaseIterating, Action: "web_search", Iteration: 1, Sources: 3, Quality: 0.4},
		},
		outcome: research.Outcome{RunID: "run-2", StopReason: research.StopReasonComplete},
	}
	handler, _ := newTestHandler(t, researcher)
	req := httptest.NewRequest(http.MethodPost, "/v1/research", strings.NewReader(`{"topic":"Genesis 1","stream":true}`))
	resp := httptest.NewRecorder()

	NewRouter(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}

	events := decodeSSEEvents(t, resp.Body.String())
	types := make([]string, 0, len(events))
	for _, event := range events {
		types = append(types, event["type"].(string))
	}
	if strings.Join(types, ",") != "metadata,progress,progress,report,done" {
		t.Fatalf("unexpected event order: %v", types)
	}
	if events[2]["action"] != "web_search" || events[2]["iteration"] != float64(1) {
		t.Fatalf("unexpected progress event: %+v", events[2])
	}
	outcome, _ := events[3]["outcome"].(map[string]any)
	if outcome["run_id"] != "run-2" {
		t.Fatalf("unexpected report event: %+v", events[3])
	}
}

func TestResearchStreamReportsTimeout(t *testing.T) {
	researcher := &stubResearcher{
		outcome: research.Outcome{RunID: "run-3", StopReason: research.StopReasonCanceled},
		err:     context.DeadlineExceeded,
	}
	handler, _ := newTestHandler(t, researcher)
	req := httptest.NewRequest(http.MethodPost, "/v1/research", strings.NewReader(`{"topic":"Genesis 1","stream":true}`))
	resp := httptest.NewRecorder()

	NewRouter(handler).ServeHTTP(resp, req)

	events := decodeSSEEvents(t, resp.Body.String())
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(events), events)
	}
	if events[2]["type"] != "error" || events[2]["message"] != "research timed out" {
		t.Fatalf("unexpected error event: %+v", events[2])
	}
	if events[3]["type"] != "done" {
		t.Fatalf("expected done event last, got %+v", events[3])
	}
}

func TestProgressEventDataOmitsEmptyFields(t *testing.T) {
	event := progressEventData(research.Progress{Phase: research.PhaseReporting, Message: "  ", Sources: 2, Quality: 0.5})

	if event["type"] != "progress" || event["phase"] != research.PhaseReporting {
		t.Fatalf("unexpected event: %+v", event)
	}
	for _, key := range []string{"message", "iteration", "maxIterations", "action", "title", "detail"} {
		if _, ok := event[key]; ok {
			t.Fatalf("expected %q to be omitted: %+v", key, event)
		}
	}
	if event["sources"] != 2 || event["quality"] != 0.5 {
		t.Fatalf("unexpected counters: %+v", event)
	}
}

func decodeSSEEvents(t *testing.T, body string) []map[string]any {
	t.Helper()
	var events []map[string]any
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		lines := strings.Split(block, "\n")
		if len(lines) != 2 || lines[0] != "event: message" || !strings.HasPrefix(lines[1], "data: ") {
			t.Fatalf("malformed event block: %q", block)
		}
		var event map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		events = append(events, event)
	}
	return events
}
