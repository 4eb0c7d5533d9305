package store

import "time"

// Roles for conversation turns
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn represents one message in a conversation. Turns are immutable once
// recorded: the pipeline only ever appends new ones.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Passage is a corpus excerpt retrieved for a single request.
// It lives only for the duration of that request and is never persisted.
type Passage struct {
	SourceID      string                 `json:"source_id"`
	Title         string                 `json:"title"`
	Text          string                 `json:"text"`
	SemanticScore float64                `json:"semantic_score"`
	LexicalScore  float64                `json:"lexical_score"`
	CombinedScore float64                `json:"combined_score"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Intent is the coarse classification of a question, used to pick
// retrieval weights.
type Intent string

const (
	IntentFactual    Intent = "factual"
	IntentConceptual Intent = "conceptual"
	IntentTemporal   Intent = "temporal"
	IntentLocational Intent = "locational"
	IntentGeneric    Intent = "generic"
)

// QueryProfile drives retrieval for one request. SemanticWeight and
// KeywordWeight always sum to 1.0.
type QueryProfile struct {
	Intent         Intent   `json:"intent"`
	SemanticWeight float64  `json:"semantic_weight"`
	KeywordWeight  float64  `json:"keyword_weight"`
	NeedsContext   bool     `json:"needs_context"`
	Entities       []string `json:"entities,omitempty"`
}
