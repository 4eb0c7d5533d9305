package search

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"ai-docchat-be/pkg/store"
)

// Config encapsulates retrieval parameters
type Config struct {
	SimilarityThreshold float64       // combined-score cutoff
	TopK                int           // max passages returned
	CollaboratorTimeout time.Duration // per attempt, per collaborator
	CacheTTL            time.Duration // reuse window for identical queries
}

// DefaultConfig returns default retrieval configuration
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.35,
		TopK:                5,
		CollaboratorTimeout: 10 * time.Second,
		CacheTTL:            30 * time.Second,
	}
}

// Coordinator queries the semantic and lexical collaborators, normalizes
// both score lists, and merges them into a single deterministic ranking.
type Coordinator struct {
	semantic SemanticSearcher
	lexical  LexicalSearcher
	cfg      Config
	logger   *log.Logger
	cache    *gocache.Cache
}

// NewCoordinator creates a retrieval coordinator.
func NewCoordinator(semantic SemanticSearcher, lexical LexicalSearcher, cfg Config, logger *log.Logger) *Coordinator {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	if cfg.CollaboratorTimeout <= 0 {
		cfg.CollaboratorTimeout = DefaultConfig().CollaboratorTimeout
	}

	var resultCache *gocache.Cache
	if cfg.CacheTTL > 0 {
		resultCache = gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}

	return &Coordinator{
		semantic: semantic,
		lexical:  lexical,
		cfg:      cfg,
		logger:   logger,
		cache:    resultCache,
	}
}

// merged carries one passage through scoring. semanticRank and firstSeen
// are the deterministic tie-breakers.
type merged struct {
	passage      store.Passage
	semanticRank int
	firstSeen    int
}

// Retrieve returns at most TopK passages ranked by the hybrid score.
// Collaborator failures degrade: one side missing contributes zero scores,
// both sides failing yields an empty result, never an error.
func (c *Coordinator) Retrieve(ctx context.Context, query string, profile store.QueryProfile) []store.Passage {
	cacheKey := fmt.Sprintf("%s|%.3f|%.3f", query, profile.SemanticWeight, profile.KeywordWeight)
	if c.cache != nil {
		if hit, found := c.cache.Get(cacheKey); found {
			return clonePassages(hit.([]store.Passage))
		}
	}

	// Query both collaborators concurrently; each gets its own timeout
	// and at most one retry.
	var semResults, lexResults []Result
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		semResults = c.searchWithRetry(ctx, c.semantic.Search, query, "semantic")
	}()
	go func() {
		defer wg.Done()
		lexResults = c.searchWithRetry(ctx, c.lexical.Search, query, "lexical")
	}()
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}

	passages := c.merge(semResults, lexResults, profile)

	if c.cache != nil {
		c.cache.Set(cacheKey, clonePassages(passages), gocache.DefaultExpiration)
	}
	return passages
}

func (c *Coordinator) searchWithRetry(
	ctx context.Context,
	search func(ctx context.Context, query string, limit int) ([]Result, error),
	query string,
	label string,
) []Result {
	for tries := 0; tries < 2; tries++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.CollaboratorTimeout)
		results, err := search(attemptCtx, query, c.cfg.TopK)
		cancel()

		if err == nil {
			return results
		}
		if ctx.Err() != nil {
			// Parent cancelled; retrying would be pointless.
			return nil
		}
		if c.logger != nil {
			c.logger.Printf("[WARN] %s search attempt %d failed: %v", label, tries+1, err)
		}
	}
	return nil
}

// merge normalizes both score lists, unions them by source, applies the
// weighted combination, filters by threshold, and sorts deterministically.
func (c *Coordinator) merge(semResults, lexResults []Result, profile store.QueryProfile) []store.Passage {
	semScores := normalize(semResults)
	lexScores := normalize(lexResults)

	byID := make(map[string]*merged)
	var order []*merged

	for i, res := range semResults {
		m := &merged{
			passage: store.Passage{
				SourceID:      res.SourceID,
				Title:         res.Title,
				Text:          res.Text,
				SemanticScore: semScores[i],
				Metadata:      res.Metadata,
			},
			semanticRank: i,
			firstSeen:    len(order),
		}
		byID[res.SourceID] = m
		order = append(order, m)
	}

	for i, res := range lexResults {
		if m, ok := byID[res.SourceID]; ok {
			m.passage.LexicalScore = lexScores[i]
			continue
		}
		m := &merged{
			passage: store.Passage{
				SourceID:     res.SourceID,
				Title:        res.Title,
				Text:         res.Text,
				LexicalScore: lexScores[i],
				Metadata:     res.Metadata,
			},
			semanticRank: len(semResults), // absent from semantic list: ranks last
			firstSeen:    len(order),
		}
		byID[res.SourceID] = m
		order = append(order, m)
	}

	var kept []*merged
	for _, m := range order {
		m.passage.CombinedScore = profile.SemanticWeight*m.passage.SemanticScore +
			profile.KeywordWeight*m.passage.LexicalScore
		if m.passage.CombinedScore >= c.cfg.SimilarityThreshold {
			kept = append(kept, m)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.passage.CombinedScore != b.passage.CombinedScore {
			return a.passage.CombinedScore > b.passage.CombinedScore
		}
		if a.semanticRank != b.semanticRank {
			return a.semanticRank < b.semanticRank
		}
		return a.firstSeen < b.firstSeen
	})

	if len(kept) > c.cfg.TopK {
		kept = kept[:c.cfg.TopK]
	}

	passages := make([]store.Passage, len(kept))
	for i, m := range kept {
		passages[i] = m.passage
	}
	return passages
}

// normalize maps a result list's scores into [0,1] with min-max scaling.
// Degenerate lists (single element, or all scores equal) normalize to 1.0
// so a lone strong hit is not zeroed out.
func normalize(results []Result) []float64 {
	scores := make([]float64, len(results))
	if len(results) == 0 {
		return scores
	}

	min, max := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}

	if max == min {
		for i := range scores {
			scores[i] = 1.0
		}
		return scores
	}

	for i, r := range results {
		scores[i] = (r.Score - min) / (max - min)
	}
	return scores
}

func clonePassages(passages []store.Passage) []store.Passage {
	cloned := make([]store.Passage, len(passages))
	copy(cloned, passages)
	return cloned
}
