package contract

import (
	"context"

	"ai-docchat-be/internal/entity"
	"ai-docchat-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ScoredChunk wraps DocumentChunk with its retrieval score
type ScoredChunk struct {
	Chunk *entity.DocumentChunk
	Title string  // parent document title, joined in
	Score float64 // semantic: cosine similarity, lexical: ts_rank
}

type DocumentChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.DocumentChunk) error
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DocumentChunk, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchSimilarWithScore returns chunks ranked by cosine similarity against embedding
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int) ([]*ScoredChunk, error)
	// SearchLexicalWithScore returns chunks ranked by full-text relevance against query
	SearchLexicalWithScore(ctx context.Context, query string, limit int) ([]*ScoredChunk, error)
}
