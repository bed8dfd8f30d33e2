package citation

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/scriptoria/deepresearch/internal/fetch"
)

const (
	// MaxContentBytes bounds the text a single check will scan.
	MaxContentBytes = 1 << 20

	PassThreshold     = 0.3
	FailedCheckRisk   = 0.5
	supportWindow     = 500
	minClaimLength    = 20
	lowConfidence     = 0.5
	minTitleWordMatch = 2

	KindAuthorYear = "citation"
	KindURL        = "url"
)

var (
	authorYearPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\(([^)]+\d{4})\)`),
		regexp.MustCompile(`(\w+(?:\s+et\s+al\.?)?\s*\(\d{4}\))`),
		regexp.MustCompile(`(\w+(?:\s+and\s+\w+)?\s*\(\d{4}\))`),
	}
	urlPattern       = regexp.MustCompile(`https?://[^\s\)\]]+`)
	sentenceBoundary = regexp.MustCompile(`[.!?]+`)
	wordPattern      = regexp.MustCompile(`\w+`)
	factualPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(is|was|are|were|has|had|shows|demonstrates|proves|indicates)\b.*\b(that|how|why)\b`),
		regexp.MustCompile(`(?i)\baccording to\b`),
		regexp.MustCompile(`(?i)\bstudies?\s+show\b`),
		regexp.MustCompile(`(?i)\bresearch\s+(indicates|shows|demonstrates)\b`),
		regexp.MustCompile(`(?i)\b\d{4}\b.*\bfound\b`),
	}
)

// URLChecker probes a url without failing; fetch.Fetcher satisfies it.
type URLChecker interface {
	Check(ctx context.Context, rawURL string) fetch.URLCheck
}

type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Citation struct {
	Kind       string          `json:"type"`
	Text       string          `json:"text"`
	Start      int             `json:"start"`
	End        int             `json:"end"`
	Validated  bool            `json:"validated"`
	SourceURL  string          `json:"source_url,omitempty"`
	MatchType  string          `json:"match_type,omitempty"`
	Confidence float64         `json:"confidence"`
	URLCheck   *fetch.URLCheck `json:"url_validation,omitempty"`
}

type Claim struct {
	Text     string `json:"text"`
	Position int    `json:"position"`
}

type Result struct {
	GraphID           string     `json:"graph_id"`
	Citations         []Citation `json:"citations"`
	Claims            []Claim    `json:"claims"`
	UnsupportedClaims []Claim    `json:"unsupported_claims"`
	HallucinationRisk float64    `json:"hallucination_risk"`
	Passed            bool       `json:"validation_passed"`
	Recommendations   []string   `json:"recommendations"`
	Error             string     `json:"error,omitempty"`
}

// ValidatedCitations counts citations that resolved to a source or a live url.
func (r Result) ValidatedCitations() int {
	n := 0
	for _, c := range r.Citations {
		if c.Validated {
			n++
		}
	}
	return n
}

// FailedResult is what a check reports when it could not run at all.
func FailedResult(graphID string, err error) Result {
	return Result{
		GraphID:           graphID,
		Citations:         []Citation{},
		Claims:            []Claim{},
		UnsupportedClaims: []Claim{},
		HallucinationRisk: FailedCheckRisk,
		Recommendations:   []string{"Hallucination check failed - manual review required"},
		Error:             err.Error(),
	}
}

type Validator struct {
	checker URLChecker
	store   *Store
	logger  *zap.Logger
}

// NewValidator builds a validator. store may be nil to skip persistence.
func NewValidator(checker URLChecker, store *Store, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{checker: checker, store: store, logger: logger}
}

// Check scores content for unsupported claims against sources and stores
// the outcome under graphID. The returned Result is always usable; err is
// non-nil only when the check itself could not run.
func (v *Validator) Check(ctx context.Context, graphID, content string, sources []Source) (result Result, err error) {
	if strings.TrimSpace(graphID) == "" {
		graphID = "unknown"
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("hallucination check panicked: %v", recovered)
			v.logger.Error("hallucination check failed", zap.String("graph_id", graphID), zap.Error(err))
			result = FailedResult(graphID, err)
		}
	}()

	if len(content) > MaxContentBytes {
		err = fmt.Errorf("content too large for validation (max 1MB)")
		v.logger.Error("hallucination check failed", zap.String("graph_id", graphID), zap.Error(err))
		return FailedResult(graphID, err), err
	}

	result = v.detect(ctx, content, sources)
	result.GraphID = graphID

	if v.store != nil {
		if saveErr := v.store.Save(ctx, result); saveErr != nil {
			v.logger.Warn("failed to save validation result", zap.String("graph_id", graphID), zap.Error(saveErr))
		}
	}
	return result, nil
}

func (v *Validator) detect(ctx context.Context, content string, sources []Source) Result {
	claims := ExtractClaims(content)
	citations := ExtractCitations(content)

	for i := range citations {
		c := &citations[i]
		if c.Kind == KindURL {
			if v.checker == nil {
				continue
			}
			check := v.checker.Check(ctx, c.Text)
			c.URLCheck = &check
			c.Validated = check.Accessible
			continue
		}
		matchAgainstSources(c, sources)
	}

	unsupported := make([]Claim, 0)
	for _, claim := range claims {
		if !hasSupport(claim, citations) {
			unsupported = append(unsupported, claim)
		}
	}

	risk := hallucinationRisk(citations, len(unsupported), len(claims))
	return Result{
		Citations:         citations,
		Claims:            claims,
		UnsupportedClaims: unsupported,
		HallucinationRisk: risk,
		Passed:            risk < PassThreshold,
		Recommendations:   recommendations(citations, len(unsupported)),
	}
}

// ExtractCitations finds author-year and url citations. Spans matched by
// more than one author-year pattern are reported once.
func ExtractCitations(text string) []Citation {
	citations := make([]Citation, 0)
	seen := make(map[[2]int]bool)

	for _, pattern := range authorYearPatterns {
		for _, loc := range pattern.FindAllStringSubmatchIndex(text, -1) {
			span := [2]int{loc[0], loc[1]}
			if seen[span] {
				continue
			}
			seen[span] = true
			citations = append(citations, Citation{
				Kind:  KindAuthorYear,
				Text:  text[loc[2]:loc[3]],
				Start: loc[0],
				End:   loc[1],
			})
		}
	}

	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		citations = append(citations, Citation{
			Kind:       KindURL,
			Text:       raw,
			Start:      loc[0],
			End:        loc[1],
			SourceURL:  raw,
			Confidence: 1,
		})
	}
	return citations
}

// ExtractClaims returns sentences that read as factual statements and so
// should carry a nearby citation.
func ExtractClaims(text string) []Claim {
	claims := make([]Claim, 0)
	start := 0
	bounds := append(sentenceBoundary.FindAllStringIndex(text, -1), []int{len(text), len(text)})
	for _, b := range bounds {
		raw := text[start:b[0]]
		offset := start
		start = b[1]

		sentence := strings.TrimSpace(raw)
		if len(sentence) < minClaimLength {
			continue
		}
		for _, pattern := range factualPatterns {
			if pattern.MatchString(sentence) {
				claims = append(claims, Claim{
					Text:     sentence,
					Position: offset + strings.Index(raw, sentence),
				})
				break
			}
		}
	}
	return claims
}

func matchAgainstSources(c *Citation, sources []Source) {
	citationWords := wordSet(strings.ToLower(c.Text))
	for _, source := range sources {
		titleWords := wordPattern.FindAllString(strings.ToLower(source.Title), -1)
		if len(titleWords) == 0 {
			continue
		}
		matches := 0
		counted := make(map[string]bool)
		for _, w := range titleWords {
			if citationWords[w] && !counted[w] {
				counted[w] = true
				matches++
			}
		}
		if matches >= minTitleWordMatch {
			c.Validated = true
			c.SourceURL = source.URL
			c.MatchType = "title_match"
			c.Confidence = math.Min(float64(matches)/float64(len(titleWords)), 1)
			return
		}
	}
	c.Validated = false
	c.MatchType = "no_match"
	c.Confidence = 0
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(text, -1) {
		set[w] = true
	}
	return set
}

func hasSupport(claim Claim, citations []Citation) bool {
	for _, c := range citations {
		if !c.Validated {
			continue
		}
		distance := c.Start - claim.Position
		if distance < 0 {
			distance = -distance
		}
		if distance < supportWindow {
			return true
		}
	}
	return false
}

func hallucinationRisk(citations []Citation, unsupported, totalClaims int) float64 {
	if totalClaims == 0 {
		return 0
	}
	invalid := 0
	for _, c := range citations {
		if !c.Validated {
			invalid++
		}
	}
	unsupportedRatio := float64(unsupported) / float64(totalClaims)
	invalidRatio := float64(invalid) / float64(max(len(citations), 1))
	coverage := float64(len(citations)) / float64(totalClaims)

	risk := unsupportedRatio*0.5 + invalidRatio*0.3 + math.Max(1-coverage, 0)*0.2
	return math.Min(risk, 1)
}

func recommendations(citations []Citation, unsupported int) []string {
	out := make([]string, 0)
	invalidURLs, lowMatch := 0, 0
	for _, c := range citations {
		if c.Kind == KindURL && !c.Validated {
			invalidURLs++
		}
		if c.Confidence < lowConfidence {
			lowMatch++
		}
	}
	if invalidURLs > 0 {
		out = append(out, fmt.Sprintf("Fix %d invalid URLs", invalidURLs))
	}
	if unsupported > 0 {
		out = append(out, fmt.Sprintf("Add citations for %d unsupported claims", unsupported))
	}
	if lowMatch > 0 {
		out = append(out, fmt.Sprintf("Improve citation matching for %d citations", lowMatch))
	}
	return out
}
