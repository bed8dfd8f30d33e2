package citation

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/scriptoria/deepresearch/internal/config"
	"github.com/scriptoria/deepresearch/internal/db"
	"github.com/scriptoria/deepresearch/internal/fetch"
)

type fakeChecker struct {
	accessible bool
	calls      []string
}

func (f *fakeChecker) Check(_ context.Context, rawURL string) fetch.URLCheck {
	f.calls = append(f.calls, rawURL)
	return fetch.URLCheck{URL: rawURL, FinalURL: rawURL, Accessible: f.accessible, StatusCode: 200, ContentType: "text/html"}
}

const genesisContent = `According to recent scholarship (Smith, 2023), the Genesis 1 creation narrative
demonstrates significant parallels with ancient Near Eastern cosmologies.
Studies show that the Priestly author was influenced by Babylonian traditions.
This can be seen at https://example.com/genesis-study.`

var genesisSources = []Source{
	{Title: "Genesis 1 and Ancient Cosmology", URL: "https://example.com/genesis-study"},
	{Title: "Smith, J. (2023). Creation Narratives in Context", URL: "https://example.com/smith"},
}

func newStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Open(context.Background(), config.Config{ValidationDBURL: "file:" + filepath.Join(t.TempDir(), "v.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return NewStore(database)
}

func TestExtractCitations(t *testing.T) {
	citations := ExtractCitations(genesisContent)
	require.Len(t, citations, 2)

	assert.Equal(t, KindAuthorYear, citations[0].Kind)
	assert.Equal(t, "Smith, 2023", citations[0].Text)
	assert.Equal(t, KindURL, citations[1].Kind)
	assert.True(t, strings.HasPrefix(citations[1].Text, "https://example.com/genesis-study"))
}

func TestExtractCitationsReportsSharedSpanOnce(t *testing.T) {
	citations := ExtractCitations("As Brueggemann (1982) argued.")
	require.Len(t, citations, 1)
	assert.Equal(t, "Brueggemann (1982)", citations[0].Text)
}

func TestExtractClaims(t *testing.T) {
	claims := ExtractClaims(genesisContent)
	require.Len(t, claims, 2)
	assert.Equal(t, 0, claims[0].Position)
	assert.True(t, strings.HasPrefix(claims[1].Text, "Studies show that"))
	assert.Equal(t, strings.Index(genesisContent, "Studies show"), claims[1].Position)

	assert.Empty(t, ExtractClaims("Short. Also short!"))
}

func TestCheckPassesWhenClaimsAreCited(t *testing.T) {
	checker := &fakeChecker{accessible: true}
	v := NewValidator(checker, newStore(t), zaptest.NewLogger(t))

	result, err := v.Check(context.Background(), "graph-1", genesisContent, genesisSources)
	require.NoError(t, err)

	assert.Equal(t, "graph-1", result.GraphID)
	assert.True(t, result.Passed)
	assert.InDelta(t, 0.0, result.HallucinationRisk, 1e-9)
	assert.Empty(t, result.UnsupportedClaims)
	assert.Equal(t, 2, result.ValidatedCitations())
	assert.Len(t, checker.calls, 1)

	authorYear := result.Citations[0]
	assert.Equal(t, "title_match", authorYear.MatchType)
	assert.Equal(t, "https://example.com/smith", authorYear.SourceURL)
	assert.InDelta(t, 2.0/7.0, authorYear.Confidence, 1e-9)
	assert.Equal(t, []string{"Improve citation matching for 1 citations"}, result.Recommendations)
}

func TestCheckPenalizesDeadURLs(t *testing.T) {
	v := NewValidator(&fakeChecker{accessible: false}, nil, zaptest.NewLogger(t))

	result, err := v.Check(context.Background(), "graph-2", genesisContent, genesisSources)
	require.NoError(t, err)
	assert.InDelta(t, 0.15, result.HallucinationRisk, 1e-9)
	assert.True(t, result.Passed)
	assert.Contains(t, result.Recommendations, "Fix 1 invalid URLs")
}

func TestCheckFlagsUnsupportedClaims(t *testing.T) {
	v := NewValidator(&fakeChecker{accessible: true}, nil, zaptest.NewLogger(t))

	result, err := v.Check(context.Background(), "", "Research shows that the covenant motif is central to the narrative.", nil)
	require.NoError(t, err)
	assert.Equal(t, "unknown", result.GraphID)
	assert.InDelta(t, 0.7, result.HallucinationRisk, 1e-9)
	assert.False(t, result.Passed)
	assert.Equal(t, []string{"Add citations for 1 unsupported claims"}, result.Recommendations)
}

func TestCheckWithoutClaimsHasNoRisk(t *testing.T) {
	v := NewValidator(nil, nil, nil)
	result, err := v.Check(context.Background(), "g", "# Research on Ruth\n\n## Sources\n", nil)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Zero(t, result.HallucinationRisk)
}

func TestCheckRejectsOversizedContent(t *testing.T) {
	v := NewValidator(nil, nil, zaptest.NewLogger(t))
	result, err := v.Check(context.Background(), "g", strings.Repeat("x", MaxContentBytes+1), nil)
	require.Error(t, err)
	assert.False(t, result.Passed)
	assert.Equal(t, FailedCheckRisk, result.HallucinationRisk)
	assert.Equal(t, []string{"Hallucination check failed - manual review required"}, result.Recommendations)
	assert.NotEmpty(t, result.Error)
}

func TestStoreUpsertsPerGraph(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, found, err := store.Load(ctx, "graph-9")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Save(ctx, Result{GraphID: "graph-9", HallucinationRisk: 0.4}))
	require.NoError(t, store.Save(ctx, Result{GraphID: "graph-9", HallucinationRisk: 0.1, Passed: true}))

	loaded, found, err := store.Load(ctx, "graph-9")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, loaded.Passed)
	assert.InDelta(t, 0.1, loaded.HallucinationRisk, 1e-9)

	require.Error(t, store.Save(ctx, Result{}))
}

func TestCheckPersistsResult(t *testing.T) {
	store := newStore(t)
	v := NewValidator(&fakeChecker{accessible: true}, store, zaptest.NewLogger(t))

	_, err := v.Check(context.Background(), "graph-3", genesisContent, genesisSources)
	require.NoError(t, err)

	loaded, found, err := store.Load(context.Background(), "graph-3")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, loaded.ValidatedCitations())
}
