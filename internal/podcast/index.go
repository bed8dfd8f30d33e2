package podcast

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	defaultFeedTimeout = 15 * time.Second
	maxSummaryRunes    = 500
	defaultCredibility = 0.6
)

var ErrAllFeedsFailed = errors.New("all podcast feeds failed")

type Feed struct {
	Name        string
	URL         string
	Credibility float64
}

// DefaultFeeds are the biblical-studies shows searched when no feed list is
// configured.
var DefaultFeeds = []Feed{
	{Name: "Bible Project", URL: "https://bibleproject.com/podcasts/the-bible-project-podcast/feed/", Credibility: 0.8},
	{Name: "Bema", URL: "https://feeds.buzzsprout.com/1024493.rss", Credibility: 0.7},
	{Name: "OnScript", URL: "https://feeds.buzzsprout.com/1208346.rss", Credibility: 0.9},
	{Name: "Naked Bible Podcast", URL: "https://nakedbiblepodcast.com/feed/podcast/", Credibility: 0.9},
	{Name: "Bible for Normal People", URL: "https://feeds.buzzsprout.com/418204.rss", Credibility: 0.7},
}

type Episode struct {
	Podcast     string
	Title       string
	URL         string
	Summary     string
	Published   time.Time
	Credibility float64
}

// RSSIndex searches episode titles and summaries across a fixed set of
// podcast RSS feeds. Feeds are fetched on every search.
type RSSIndex struct {
	feeds      []Feed
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

func NewRSSIndex(feeds []Feed, httpClient *http.Client, logger *zap.Logger) *RSSIndex {
	if len(feeds) == 0 {
		feeds = DefaultFeeds
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultFeedTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RSSIndex{feeds: feeds, httpClient: httpClient, timeout: defaultFeedTimeout, logger: logger}
}

func (i *RSSIndex) Feeds() []Feed {
	return append([]Feed(nil), i.feeds...)
}

// Search returns matching episodes in feed order. A feed that fails is
// logged and skipped; an error is returned only when every feed failed.
func (i *RSSIndex) Search(ctx context.Context, query string) ([]Episode, error) {
	matcher := newQueryMatcher(query)
	if matcher.empty() {
		return nil, nil
	}

	parser := gofeed.NewParser()
	parser.Client = i.httpClient
	parser.UserAgent = "deepresearch-podcast/1.0"

	var (
		episodes []Episode
		failures int
		lastErr  error
	)
	for _, feed := range i.feeds {
		found, err := i.searchFeed(ctx, parser, feed, matcher)
		if err != nil {
			failures++
			lastErr = err
			i.logger.Warn("podcast feed failed", zap.String("podcast", feed.Name), zap.Error(err))
			continue
		}
		episodes = append(episodes, found...)
	}
	if failures == len(i.feeds) && failures > 0 {
		return nil, fmt.Errorf("%w: %v", ErrAllFeedsFailed, lastErr)
	}
	return episodes, nil
}

func (i *RSSIndex) searchFeed(ctx context.Context, parser *gofeed.Parser, feed Feed, matcher queryMatcher) ([]Episode, error) {
	feedCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	parsed, err := parser.ParseURLWithContext(feed.URL, feedCtx)
	if err != nil {
		return nil, err
	}

	var out []Episode
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		title := strings.TrimSpace(item.Title)
		summary := plainText(item.Description)
		if summary == "" {
			summary = plainText(item.Content)
		}
		if !matcher.matches(title, summary) {
			continue
		}
		episode := Episode{
			Podcast:     feed.Name,
			Title:       title,
			URL:         strings.TrimSpace(item.Link),
			Summary:     truncateRunes(summary, maxSummaryRunes),
			Credibility: credibility(feed, title),
		}
		if item.PublishedParsed != nil {
			episode.Published = item.PublishedParsed.UTC()
		}
		if episode.URL == "" {
			continue
		}
		out = append(out, episode)
	}
	return out, nil
}

func credibility(feed Feed, title string) float64 {
	score := feed.Credibility
	if score <= 0 {
		score = defaultCredibility
	}
	lower := strings.ToLower(title)
	for _, term := range []string{"study", "analysis", "commentary", "exegesis"} {
		if strings.Contains(lower, term) {
			score += 0.1
			break
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "into": {}, "about": {}, "what": {}, "that": {},
}

// queryMatcher accepts text containing the whole query, or every
// significant query term.
type queryMatcher struct {
	phrase string
	terms  []string
}

func newQueryMatcher(query string) queryMatcher {
	phrase := strings.ToLower(strings.Join(strings.Fields(query), " "))
	m := queryMatcher{phrase: phrase}
	for _, word := range strings.Fields(phrase) {
		word = strings.Trim(word, ".,;:!?()[]'\"")
		if len(word) < 3 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		m.terms = append(m.terms, word)
	}
	return m
}

func (m queryMatcher) empty() bool {
	return m.phrase == ""
}

func (m queryMatcher) matches(title, summary string) bool {
	haystack := strings.ToLower(title + " " + summary)
	if strings.Contains(haystack, m.phrase) {
		return true
	}
	if len(m.terms) == 0 {
		return false
	}
	for _, term := range m.terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

func plainText(raw string) string {
	if !strings.ContainsAny(raw, "<&") {
		return strings.Join(strings.Fields(raw), " ")
	}
	tokenizer := html.NewTokenizer(strings.NewReader(raw))
	var b strings.Builder
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(tokenizer.Text())
			b.WriteByte(' ')
		}
	}
}

func truncateRunes(raw string, limit int) string {
	runes := []rune(raw)
	if len(runes) <= limit {
		return raw
	}
	return string(runes[:limit])
}
