package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/scriptoria/deepresearch/internal/podcast"
	"github.com/scriptoria/deepresearch/internal/retry"
	"github.com/scriptoria/deepresearch/internal/validation"
)

const (
	maxPodcastResults    = 10
	maxPodcastSummary    = 500
	msgNoPodcastEpisodes = "No podcast episodes found for this query."
)

type PodcastIndex interface {
	Search(ctx context.Context, query string) ([]podcast.Episode, error)
}

type PodcastSearch struct {
	index  PodcastIndex
	policy retry.Policy
	logger *zap.Logger
}

func NewPodcastSearch(index PodcastIndex, policy retry.Policy, logger *zap.Logger) *PodcastSearch {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy.Retryable = isTransient
	policy.Logger = logger
	return &PodcastSearch{index: index, policy: policy, logger: logger}
}

func (t *PodcastSearch) Name() string { return NamePodcastSearch }

func (t *PodcastSearch) Spec() mcp.Tool {
	return mcp.NewTool(NamePodcastSearch,
		mcp.WithDescription("Search biblical-studies podcast feeds for episodes matching a query."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query (1-500 characters)"),
			mcp.MinLength(1),
			mcp.MaxLength(validation.MaxQueryRunes),
		),
	)
}

func (t *PodcastSearch) Invoke(ctx context.Context, args Args) Result {
	query, err := validation.SearchQuery(args.String("query"))
	if err != nil {
		return failure(NamePodcastSearch, KindValidation, "Podcast search parameter error: "+err.Error())
	}
	if t.index == nil {
		return failure(NamePodcastSearch, KindConfiguration, "Podcast search configuration error: no podcast index configured.")
	}

	episodes, err := retry.Do(ctx, t.policy, NamePodcastSearch, func(ctx context.Context) ([]podcast.Episode, error) {
		episodes, err := t.index.Search(ctx, query)
		if err == nil {
			return episodes, nil
		}
		if errors.Is(err, podcast.ErrAllFeedsFailed) {
			return nil, &Error{Kind: KindTransient, Op: NamePodcastSearch, Err: err}
		}
		if kind, _, ok := networkKind(err); ok {
			return nil, &Error{Kind: kind, Op: NamePodcastSearch, Err: err}
		}
		return nil, &Error{Kind: KindUnexpected, Op: NamePodcastSearch, Err: err}
	})
	if err != nil {
		if errors.Is(err, podcast.ErrAllFeedsFailed) {
			return failure(NamePodcastSearch, KindTransient, "Podcast search connection error: no podcast feed could be reached.")
		}
		return failure(NamePodcastSearch, KindOf(err), "Unexpected podcast search error: "+cause(err).Error())
	}

	hits := make([]SourceHit, 0, min(len(episodes), maxPodcastResults))
	blocks := make([]string, 0, cap(hits))
	for _, ep := range episodes {
		if len(hits) == maxPodcastResults {
			break
		}
		hit := SourceHit{
			Title:       truncateRunes(ep.Title, maxTitleRunes),
			URL:         ep.URL,
			Description: truncateRunes(ep.Summary, maxPodcastSummary),
			Provenance:  ProvenancePodcast,
			Podcast:     ep.Podcast,
			Credibility: ep.Credibility,
		}
		hits = append(hits, hit)
		blocks = append(blocks, fmt.Sprintf("Podcast: %s\nTitle: %s\nURL: %s\nDescription: %s\n", hit.Podcast, hit.Title, hit.URL, hit.Description))
	}
	if len(hits) == 0 {
		return Result{Tool: NamePodcastSearch, OK: true, Message: msgNoPodcastEpisodes, Sources: []SourceHit{}}
	}
	return Result{Tool: NamePodcastSearch, OK: true, Message: strings.Join(blocks, "\n"), Sources: hits}
}
