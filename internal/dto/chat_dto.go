package dto

import (
	"time"
)

type SendChatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// PassageDTO is one retrieved excerpt included in the reply diagnostics.
type PassageDTO struct {
	SourceID      string  `json:"source_id"`
	Title         string  `json:"title"`
	Excerpt       string  `json:"excerpt"`
	CombinedScore float64 `json:"combined_score"`
}

// ChatDiagnosticsDTO surfaces how the answer was produced.
type ChatDiagnosticsDTO struct {
	Intent          string       `json:"intent"`
	SemanticWeight  float64      `json:"semantic_weight"`
	KeywordWeight   float64      `json:"keyword_weight"`
	UsedHistory     bool         `json:"used_history"`
	RewrittenQuery  string       `json:"rewritten_query,omitempty"`
	RetrievedCount  int          `json:"retrieved_count"`
	Passages        []PassageDTO `json:"passages,omitempty"`
	EstimatedTokens int          `json:"estimated_tokens"`
	UsedFallback    bool         `json:"used_fallback"`
}

type SendChatResponse struct {
	Answer       string             `json:"answer"`
	CreatedAt    time.Time          `json:"created_at"`
	Diagnostics  ChatDiagnosticsDTO `json:"diagnostics"`
	MessageCount int                `json:"message_count"`
}

type ChatHistoryTurnDTO struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type GetChatHistoryResponse struct {
	Turns      []ChatHistoryTurnDTO `json:"turns"`
	UsageToday int                  `json:"usage_today"`
}

// ChatAnalyticsMessage is the payload published to the analytics topic
// after each answered question.
type ChatAnalyticsMessage struct {
	UserID       string    `json:"user_id"`
	Intent       string    `json:"intent"`
	PassageCount int       `json:"passage_count"`
	UsedFallback bool      `json:"used_fallback"`
	AskedAt      time.Time `json:"asked_at"`
}

// --- Limit Exceeded Error Types ---

// LimitExceededError is a custom error that carries usage details
type LimitExceededError struct {
	Limit      int       `json:"limit"`
	Used       int       `json:"used"`
	ResetAfter time.Time `json:"reset_after"`
}

func (e *LimitExceededError) Error() string {
	return "daily chat usage limit exceeded"
}

// LimitExceededData is the data payload for 429 responses
type LimitExceededData struct {
	Limit      int       `json:"limit"`
	Used       int       `json:"used"`
	ResetAfter time.Time `json:"reset_after"`
}

// LimitExceededResponse is the full 429 response structure
type LimitExceededResponse struct {
	Success bool              `json:"success"`
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    LimitExceededData `json:"data"`
}
