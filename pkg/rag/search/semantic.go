package search

import (
	"context"
	"fmt"

	"ai-docchat-be/internal/repository/contract"
	"ai-docchat-be/pkg/embedding"
)

// ChunkSemanticSearcher performs vector search over document chunks.
type ChunkSemanticSearcher struct {
	embeddingProvider embedding.EmbeddingProvider
	chunkRepository   contract.DocumentChunkRepository
}

func NewChunkSemanticSearcher(embeddingProvider embedding.EmbeddingProvider, chunkRepository contract.DocumentChunkRepository) *ChunkSemanticSearcher {
	return &ChunkSemanticSearcher{
		embeddingProvider: embeddingProvider,
		chunkRepository:   chunkRepository,
	}
}

func (s *ChunkSemanticSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	resp, err := s.embeddingProvider.Generate(query, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored, err := s.chunkRepository.SearchSimilarWithScore(ctx, resp.Embedding.Values, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	return scoredChunksToResults(scored), nil
}

// ChunkLexicalSearcher performs full-text search over document chunks.
type ChunkLexicalSearcher struct {
	chunkRepository contract.DocumentChunkRepository
}

func NewChunkLexicalSearcher(chunkRepository contract.DocumentChunkRepository) *ChunkLexicalSearcher {
	return &ChunkLexicalSearcher{chunkRepository: chunkRepository}
}

func (s *ChunkLexicalSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	scored, err := s.chunkRepository.SearchLexicalWithScore(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}
	return scoredChunksToResults(scored), nil
}

func scoredChunksToResults(scored []*contract.ScoredChunk) []Result {
	results := make([]Result, 0, len(scored))
	for _, sc := range scored {
		if sc.Chunk == nil {
			continue
		}
		results = append(results, Result{
			SourceID: sc.Chunk.Id.String(),
			Title:    sc.Title,
			Text:     sc.Chunk.Content,
			Score:    sc.Score,
			Metadata: sc.Chunk.Metadata,
		})
	}
	return results
}
