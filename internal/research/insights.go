package research

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/scriptoria/deepresearch/internal/tools"
)

const (
	maxBiblicalReferences = 10
	perspectiveUnknown    = "unknown"
)

var (
	biblicalBooks = []string{
		"genesis", "exodus", "leviticus", "numbers", "deuteronomy",
		"joshua", "judges", "ruth", "samuel", "kings", "chronicles",
		"ezra", "nehemiah", "esther", "job", "psalms", "proverbs",
		"ecclesiastes", "song of songs", "isaiah", "jeremiah",
		"lamentations", "ezekiel", "daniel", "hosea", "joel", "amos",
		"obadiah", "jonah", "micah", "nahum", "habakkuk", "zephaniah",
		"haggai", "zechariah", "malachi", "matthew", "mark", "luke",
		"john", "acts", "romans", "corinthians", "galatians",
		"ephesians", "philippians", "colossians", "thessalonians",
		"timothy", "titus", "philemon", "hebrews", "james", "peter",
		"jude", "revelation",
	}
	biblicalTerms = []string{
		"bible", "biblical", "scripture", "gospel", "testament",
		"jesus", "christ", "god", "lord", "christian", "christianity",
		"church", "faith", "theology", "biblical studies", "exegesis",
		"hermeneutics", "apostle", "disciple", "prophet", "messiah",
	}

	biblicalWordPattern = wordAlternation(append(append([]string{}, biblicalBooks...), biblicalTerms...))
	versePattern        = regexp.MustCompile(`\b\d+:\d+\b`)
	chapterPattern      = regexp.MustCompile(`(?i)\bchapter\s+\d+\b`)
	referencePattern    = regexp.MustCompile(`\b(?:[1-3]\s*)?[A-Za-z]+\s+\d+:\d+(?:-\d+)?\b`)

	theologicalThemes = []string{
		"salvation", "grace", "redemption", "atonement", "justification",
		"sanctification", "eschatology", "christology", "pneumatology",
		"creation", "covenant", "trinity", "incarnation", "resurrection",
	}
	themePattern = wordAlternation(theologicalThemes)

	// Checked in order; the first perspective with a keyword hit wins.
	perspectiveKeywords = []struct {
		perspective string
		keywords    []string
	}{
		{"orthodox", []string{"orthodox", "traditional", "catholic", "patristic"}},
		{"progressive", []string{"progressive", "liberal", "historical-critical", "contextual"}},
		{"evangelical", []string{"evangelical", "conservative", "reformed", "biblical inerrancy"}},
		{"academic", []string{"peer-reviewed", "peer reviewed", "journal", "university", "scholarly"}},
	}

	// Description keywords used for sources whose content was never fetched.
	descriptionThemes = []struct {
		theme   string
		keyword string
	}{
		{"historical_context", "context"},
		{"theological_implications", "theolog"},
		{"scholarly_consensus", "scholar"},
	}
)

func wordAlternation(words []string) *regexp.Regexp {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`))
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// IsBiblicalQuery reports whether a topic names a biblical book or term as a
// whole word, or carries a verse or chapter reference.
func IsBiblicalQuery(query string) bool {
	if biblicalWordPattern.MatchString(query) {
		return true
	}
	return versePattern.MatchString(query) || chapterPattern.MatchString(query)
}

// ExtractInsights analyses fetched page text.
func ExtractInsights(content string) SourceInsights {
	insights := SourceInsights{Perspective: perspectiveUnknown}

	seenRefs := make(map[string]bool)
	for _, ref := range referencePattern.FindAllString(content, -1) {
		ref = strings.Join(strings.Fields(ref), " ")
		if !seenRefs[ref] {
			seenRefs[ref] = true
			insights.BiblicalReferences = append(insights.BiblicalReferences, ref)
		}
	}

	seenThemes := make(map[string]bool)
	for _, match := range themePattern.FindAllString(content, -1) {
		theme := strings.ToLower(match)
		if !seenThemes[theme] {
			seenThemes[theme] = true
			insights.Themes = append(insights.Themes, theme)
		}
	}
	sort.Strings(insights.Themes)

	lower := strings.ToLower(content)
	for _, group := range perspectiveKeywords {
		if containsAny(lower, group.keywords) {
			insights.Perspective = group.perspective
			break
		}
	}
	return insights
}

// synthesize folds per-source analysis into run-level insights. Sources
// without fetched content contribute description keyword themes.
func synthesize(sources []Source) Insights {
	out := Insights{
		KeyThemes:    make(map[string]int),
		Perspectives: make(map[string]int),
	}
	seenRefs := make(map[string]bool)
	for _, s := range sources {
		if s.Processed() {
			out.ContentAnalyzed++
			for _, theme := range s.Insights.Themes {
				out.KeyThemes[theme]++
			}
			if p := s.Insights.Perspective; p != "" && p != perspectiveUnknown {
				out.Perspectives[p]++
			}
			for _, ref := range s.Insights.BiblicalReferences {
				if len(out.BiblicalReferences) < maxBiblicalReferences && !seenRefs[ref] {
					seenRefs[ref] = true
					out.BiblicalReferences = append(out.BiblicalReferences, ref)
				}
			}
			continue
		}
		lower := strings.ToLower(s.Title + " " + s.Description)
		for _, dt := range descriptionThemes {
			if strings.Contains(lower, dt.keyword) {
				out.KeyThemes[dt.theme]++
			}
		}
	}
	if len(out.KeyThemes) == 0 {
		out.KeyThemes = nil
	}
	if len(out.Perspectives) == 0 {
		out.Perspectives = nil
	}
	return out
}

// perspectivesFound returns the required perspectives evidenced by the
// sources, in the goal's order.
func perspectivesFound(required []string, sources []Source) []string {
	found := make(map[string]bool)
	for _, s := range sources {
		if s.Insights != nil && s.Insights.Perspective != perspectiveUnknown {
			found[s.Insights.Perspective] = true
		}
		if s.Provenance == tools.ProvenanceAcademic {
			found["academic"] = true
		}
		lower := strings.ToLower(s.Description)
		for _, p := range required {
			if strings.Contains(lower, p) {
				found[p] = true
			}
		}
	}
	out := make([]string, 0, len(required))
	for _, p := range required {
		if found[p] {
			out = append(out, p)
		}
	}
	return out
}

// Credibility scores a source in [0, 1] from its provenance and host.
func Credibility(s Source) float64 {
	switch s.Provenance {
	case tools.ProvenancePodcast:
		if s.Credibility > 0 {
			return clampUnit(s.Credibility)
		}
		return 0.6
	case tools.ProvenanceAcademic:
		return 0.9
	}
	parsed, err := url.Parse(s.URL)
	if err == nil {
		host := strings.ToLower(parsed.Hostname())
		if strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".org") {
			return 0.9
		}
	}
	return 0.5
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
