package research

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/scriptoria/deepresearch/internal/tools"
)

const maxExcerptRunes = 1000

// SourceValidation is the accessibility record attached by validate_sources.
type SourceValidation struct {
	Accessible  bool    `json:"accessible"`
	StatusCode  int     `json:"status_code,omitempty"`
	ContentType string  `json:"content_type,omitempty"`
	FinalURL    string  `json:"final_url,omitempty"`
	Error       string  `json:"error,omitempty"`
	Credibility float64 `json:"credibility_score"`
}

// SourceInsights is what content analysis found in one fetched page.
type SourceInsights struct {
	BiblicalReferences []string `json:"biblical_references,omitempty"`
	Themes             []string `json:"theological_themes,omitempty"`
	Perspective        string   `json:"author_perspective"`
}

type Source struct {
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Description string            `json:"description"`
	Provenance  string            `json:"provenance"`
	Podcast     string            `json:"podcast_name,omitempty"`
	Credibility float64           `json:"credibility,omitempty"`
	Excerpt     string            `json:"content,omitempty"`
	Insights    *SourceInsights   `json:"insights,omitempty"`
	Validation  *SourceValidation `json:"validation,omitempty"`
}

// Processed reports whether page content has been analysed for this source.
func (s Source) Processed() bool {
	return s.Insights != nil
}

func sourceFromHit(hit tools.SourceHit) Source {
	provenance := hit.Provenance
	if provenance == "" {
		provenance = tools.ProvenanceWeb
	}
	return Source{
		Title:       strings.TrimSpace(hit.Title),
		URL:         strings.TrimSpace(hit.URL),
		Description: strings.TrimSpace(hit.Description),
		Provenance:  provenance,
		Podcast:     hit.Podcast,
		Credibility: hit.Credibility,
	}
}

// sourceKey is the dedupe key: scheme and host lowercased, fragment and
// trailing slash dropped. The query string is kept since it often selects
// the document.
func sourceKey(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return trimmed
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawPath = ""
	return parsed.String()
}

// usable reports whether a discovered source carries enough to be kept.
func usable(s Source) bool {
	return s.URL != "" && s.Title != ""
}

func mergeSource(existing, incoming Source) Source {
	out := existing
	if len(incoming.Title) > len(out.Title) {
		out.Title = incoming.Title
	}
	if len(incoming.Description) > len(out.Description) {
		out.Description = incoming.Description
	}
	if out.Provenance == tools.ProvenanceWeb && incoming.Provenance != "" {
		out.Provenance = incoming.Provenance
	}
	if out.Podcast == "" {
		out.Podcast = incoming.Podcast
	}
	if incoming.Credibility > out.Credibility {
		out.Credibility = incoming.Credibility
	}
	return out
}

func trimToRunes(raw string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(raw) <= limit {
		return raw
	}
	return string([]rune(raw)[:limit])
}
