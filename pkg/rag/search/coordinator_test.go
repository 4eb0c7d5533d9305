package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-docchat-be/pkg/store"
)

type stubSearcher struct {
	results  []Result
	err      error
	failOnce bool
	calls    int
}

func (s *stubSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	s.calls++
	if s.failOnce && s.calls == 1 {
		return nil, errors.New("transient failure")
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func testConfig() Config {
	return Config{
		SimilarityThreshold: 0.0,
		TopK:                5,
		CollaboratorTimeout: time.Second,
		CacheTTL:            0, // no caching unless a test opts in
	}
}

func profileWith(semWeight float64) store.QueryProfile {
	return store.QueryProfile{
		Intent:         store.IntentGeneric,
		SemanticWeight: semWeight,
		KeywordWeight:  1 - semWeight,
	}
}

func TestRetrieveMergesBothSides(t *testing.T) {
	semantic := &stubSearcher{results: []Result{
		{SourceID: "a", Text: "alpha", Score: 0.9},
		{SourceID: "b", Text: "beta", Score: 0.5},
		{SourceID: "d", Text: "delta", Score: 0.1},
	}}
	lexical := &stubSearcher{results: []Result{
		{SourceID: "b", Text: "beta", Score: 12.0},
		{SourceID: "c", Text: "gamma", Score: 4.0},
	}}

	c := NewCoordinator(semantic, lexical, testConfig(), nil)
	passages := c.Retrieve(context.Background(), "query", profileWith(0.5))

	require.Len(t, passages, 4)
	byID := map[string]store.Passage{}
	for _, p := range passages {
		byID[p.SourceID] = p
	}
	// "a" appears only semantically: lexical side contributes zero
	assert.Equal(t, 0.0, byID["a"].LexicalScore)
	// "b" got both scores
	assert.Greater(t, byID["b"].SemanticScore, 0.0)
	assert.Greater(t, byID["b"].LexicalScore, 0.0)
	// "c" appears only lexically
	assert.Equal(t, 0.0, byID["c"].SemanticScore)
}

func TestIncreasingSemanticWeightPromotesSemanticHits(t *testing.T) {
	// "sem" is strong semantically, weak lexically; "lex" is the reverse.
	semantic := &stubSearcher{results: []Result{
		{SourceID: "sem", Score: 1.0},
		{SourceID: "lex", Score: 0.1},
		{SourceID: "mid", Score: 0.5},
	}}
	lexical := &stubSearcher{results: []Result{
		{SourceID: "lex", Score: 1.0},
		{SourceID: "sem", Score: 0.1},
		{SourceID: "mid", Score: 0.5},
	}}

	rankOf := func(semWeight float64, id string) int {
		c := NewCoordinator(semantic, lexical, testConfig(), nil)
		passages := c.Retrieve(context.Background(), "q", profileWith(semWeight))
		for i, p := range passages {
			if p.SourceID == id {
				return i
			}
		}
		return -1
	}

	assert.Less(t, rankOf(0.9, "sem"), rankOf(0.9, "lex"))
	assert.Less(t, rankOf(0.1, "lex"), rankOf(0.1, "sem"))
}

func TestThresholdFiltersWeakPassages(t *testing.T) {
	semantic := &stubSearcher{results: []Result{
		{SourceID: "strong", Score: 1.0},
		{SourceID: "weak", Score: 0.0},
	}}
	lexical := &stubSearcher{}

	cfg := testConfig()
	cfg.SimilarityThreshold = 0.5

	c := NewCoordinator(semantic, lexical, cfg, nil)
	passages := c.Retrieve(context.Background(), "q", profileWith(1.0))

	require.Len(t, passages, 1)
	assert.Equal(t, "strong", passages[0].SourceID)
}

func TestTopKTruncation(t *testing.T) {
	var results []Result
	for i := 0; i < 20; i++ {
		results = append(results, Result{SourceID: string(rune('a' + i)), Score: float64(20 - i)})
	}
	semantic := &stubSearcher{results: results}
	lexical := &stubSearcher{}

	cfg := testConfig()
	cfg.TopK = 3

	c := NewCoordinator(semantic, lexical, cfg, nil)
	passages := c.Retrieve(context.Background(), "q", profileWith(1.0))
	assert.Len(t, passages, 3)
}

func TestTieBreakBySemanticRankThenFirstSeen(t *testing.T) {
	// All scores equal: normalization yields 1.0 everywhere, so combined
	// scores tie and ordering falls back to semantic rank.
	semantic := &stubSearcher{results: []Result{
		{SourceID: "first", Score: 0.7},
		{SourceID: "second", Score: 0.7},
		{SourceID: "third", Score: 0.7},
	}}
	lexical := &stubSearcher{}

	c := NewCoordinator(semantic, lexical, testConfig(), nil)
	for i := 0; i < 5; i++ {
		passages := c.Retrieve(context.Background(), "q", profileWith(1.0))
		require.Len(t, passages, 3)
		assert.Equal(t, "first", passages[0].SourceID)
		assert.Equal(t, "second", passages[1].SourceID)
		assert.Equal(t, "third", passages[2].SourceID)
	}
}

func TestBothCollaboratorsFailingYieldsEmpty(t *testing.T) {
	semantic := &stubSearcher{err: errors.New("index down")}
	lexical := &stubSearcher{err: errors.New("index down")}

	c := NewCoordinator(semantic, lexical, testConfig(), nil)
	passages := c.Retrieve(context.Background(), "q", profileWith(0.5))
	assert.Empty(t, passages)
}

func TestOneFailingSideDegradesGracefully(t *testing.T) {
	semantic := &stubSearcher{err: errors.New("index down")}
	lexical := &stubSearcher{results: []Result{{SourceID: "a", Score: 3.0}}}

	c := NewCoordinator(semantic, lexical, testConfig(), nil)
	passages := c.Retrieve(context.Background(), "q", profileWith(0.5))

	require.Len(t, passages, 1)
	assert.Equal(t, 0.0, passages[0].SemanticScore)
	assert.Equal(t, 1.0, passages[0].LexicalScore)
}

func TestTransientFailureIsRetriedOnce(t *testing.T) {
	semantic := &stubSearcher{
		failOnce: true,
		results:  []Result{{SourceID: "a", Score: 1.0}},
	}
	lexical := &stubSearcher{}

	c := NewCoordinator(semantic, lexical, testConfig(), nil)
	passages := c.Retrieve(context.Background(), "q", profileWith(1.0))

	assert.Equal(t, 2, semantic.calls)
	require.Len(t, passages, 1)
}

func TestHardFailureStopsAfterOneRetry(t *testing.T) {
	semantic := &stubSearcher{err: errors.New("down")}
	lexical := &stubSearcher{}

	c := NewCoordinator(semantic, lexical, testConfig(), nil)
	c.Retrieve(context.Background(), "q", profileWith(1.0))
	assert.Equal(t, 2, semantic.calls)
}

func TestIdenticalQueriesServedFromCache(t *testing.T) {
	semantic := &stubSearcher{results: []Result{{SourceID: "a", Score: 1.0}}}
	lexical := &stubSearcher{}

	cfg := testConfig()
	cfg.CacheTTL = time.Minute

	c := NewCoordinator(semantic, lexical, cfg, nil)
	first := c.Retrieve(context.Background(), "q", profileWith(0.7))
	second := c.Retrieve(context.Background(), "q", profileWith(0.7))

	assert.Equal(t, 1, semantic.calls)
	assert.Equal(t, first, second)

	// Different weights miss the cache
	c.Retrieve(context.Background(), "q", profileWith(0.5))
	assert.Equal(t, 2, semantic.calls)
}

func TestCancelledContextReturnsNothing(t *testing.T) {
	semantic := &stubSearcher{results: []Result{{SourceID: "a", Score: 1.0}}}
	lexical := &stubSearcher{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCoordinator(semantic, lexical, testConfig(), nil)
	assert.Empty(t, c.Retrieve(ctx, "q", profileWith(0.5)))
}
