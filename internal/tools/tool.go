package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// The closed set of tool names a Registry accepts.
const (
	NameWebSearch     = "web_search"
	NamePodcastSearch = "podcast_search"
	NameFetchContent  = "fetch_content"
	NameValidateURL   = "validate_url"
	NameSaveNote      = "save_note"
	NameHealthCheck   = "health_check"
)

var knownNames = map[string]bool{
	NameWebSearch:     true,
	NamePodcastSearch: true,
	NameFetchContent:  true,
	NameValidateURL:   true,
	NameSaveNote:      true,
	NameHealthCheck:   true,
}

const (
	ProvenanceWeb      = "web"
	ProvenanceAcademic = "academic"
	ProvenancePodcast  = "podcast"
)

// Tool is one named operation. Invoke never panics on bad input and never
// returns a Go error: failures are described in the Result.
type Tool interface {
	Name() string
	Spec() mcp.Tool
	Invoke(ctx context.Context, args Args) Result
}

// SourceHit is a search result in the shape the orchestrator consumes.
type SourceHit struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Description string  `json:"description"`
	Provenance  string  `json:"provenance"`
	Podcast     string  `json:"podcast,omitempty"`
	Credibility float64 `json:"credibility,omitempty"`
}

type Result struct {
	Tool    string      `json:"tool"`
	OK      bool        `json:"ok"`
	Kind    Kind        `json:"kind,omitempty"`
	Message string      `json:"message"`
	Sources []SourceHit `json:"sources,omitempty"`
	Data    any         `json:"data,omitempty"`
}

func success(tool, message string) Result {
	return Result{Tool: tool, OK: true, Message: message}
}

func failure(tool string, kind Kind, message string) Result {
	return Result{Tool: tool, OK: false, Kind: kind, Message: message}
}

// Args holds loosely typed call arguments as they arrive from json or
// from an LLM function call.
type Args map[string]any

func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func (a Args) Int(key string, def int) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return def
		}
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
