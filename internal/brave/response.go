package brave

import "strings"

type SearchResult struct {
	URL     string
	Title   string
	Snippet string
	Age     string
}

type webResponse struct {
	Web struct {
		Results []webResult `json:"results"`
	} `json:"web"`
}

type webResult struct {
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Snippet       string   `json:"snippet"`
	Age           string   `json:"age"`
	ExtraSnippets []string `json:"extra_snippets"`
}

// collect keeps the first hit per url, up to limit. A missing title falls
// back to the url; a missing description to the first other snippet.
func (r webResponse) collect(limit int) []SearchResult {
	out := make([]SearchResult, 0, min(limit, len(r.Web.Results)))
	seen := make(map[string]bool, len(r.Web.Results))
	for _, hit := range r.Web.Results {
		if len(out) == limit {
			break
		}
		link := strings.TrimSpace(hit.URL)
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true

		snippets := append([]string{hit.Description, hit.Snippet}, hit.ExtraSnippets...)
		out = append(out, SearchResult{
			URL:     link,
			Title:   firstNonEmpty(hit.Title, link),
			Snippet: firstNonEmpty(snippets...),
			Age:     strings.TrimSpace(hit.Age),
		})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
