package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-docchat-be/pkg/store"
)

func turns(texts ...string) []store.Turn {
	var result []store.Turn
	for i, text := range texts {
		role := store.RoleUser
		if i%2 == 1 {
			role = store.RoleAssistant
		}
		result = append(result, store.Turn{Role: role, Text: text})
	}
	return result
}

func passages(texts ...string) []store.Passage {
	var result []store.Passage
	for i, text := range texts {
		result = append(result, store.Passage{
			SourceID:      fmt.Sprintf("src-%d", i),
			Text:          text,
			CombinedScore: 1.0 - float64(i)*0.1,
		})
	}
	return result
}

func TestEstimateTokensIsMonotonic(t *testing.T) {
	prev := 0
	for _, s := range []string{"", "a", "abcd", "abcdefgh", strings.Repeat("x", 100)} {
		est := EstimateTokens(s)
		assert.GreaterOrEqual(t, est, prev)
		prev = est
	}
}

func TestBudgetNeverExceeded(t *testing.T) {
	cfg := Config{MaxContextTokens: 100, ReservedMargin: 20}
	a := NewAssembler(cfg)

	// Wildly oversized inputs
	var history []store.Turn
	for i := 0; i < 50; i++ {
		history = append(history, store.Turn{Role: store.RoleUser, Text: strings.Repeat("word ", 30)})
	}
	big := passages(
		strings.Repeat("passage text ", 40),
		strings.Repeat("other text ", 40),
		"short one",
	)

	assembled := a.Assemble(history, big)
	assert.LessOrEqual(t, assembled.EstimatedTokens, cfg.MaxContextTokens-cfg.ReservedMargin)
}

func TestHistoryIncludedNewestFirst(t *testing.T) {
	a := NewAssembler(Config{MaxContextTokens: 20, ReservedMargin: 0})

	history := turns(
		strings.Repeat("old ", 40), // ~42 tokens, will not fit after newer ones
		"recent answer",
		"newest question",
	)

	assembled := a.Assemble(history, nil)
	require.Len(t, assembled.HistoryTurns, 2)
	assert.Equal(t, "recent answer", assembled.HistoryTurns[0].Text)
	assert.Equal(t, "newest question", assembled.HistoryTurns[1].Text)
}

func TestTurnsAreNeverTruncatedMidText(t *testing.T) {
	a := NewAssembler(Config{MaxContextTokens: 10, ReservedMargin: 0})

	history := turns(strings.Repeat("toolong ", 20))
	assembled := a.Assemble(history, nil)

	// The turn does not fit, so it is dropped whole
	assert.Empty(t, assembled.HistoryTurns)
	assert.Equal(t, 0, assembled.EstimatedTokens)
}

func TestPassagesFillLeftoverBudget(t *testing.T) {
	a := NewAssembler(Config{MaxContextTokens: 40, ReservedMargin: 0})

	history := turns("short question", "short answer")
	ps := passages(
		"first ranked passage text",
		strings.Repeat("huge passage ", 50),
		"third small passage",
	)

	assembled := a.Assemble(history, ps)
	require.Len(t, assembled.HistoryTurns, 2)
	// The huge passage is skipped whole; smaller ones around it fit
	var ids []string
	for _, p := range assembled.Passages {
		ids = append(ids, p.SourceID)
	}
	assert.NotContains(t, ids, "src-1")
	assert.Contains(t, ids, "src-0")
}

func TestEmptyInputsYieldEmptyContext(t *testing.T) {
	a := NewAssembler(DefaultConfig())

	assembled := a.Assemble(nil, nil)
	assert.Equal(t, 0, assembled.EstimatedTokens)
	assert.False(t, assembled.UsedContext())
	assert.Empty(t, assembled.RenderHistory())
	assert.Empty(t, assembled.RenderPassages())
}

func TestRenderHistoryLabelsRoles(t *testing.T) {
	a := NewAssembler(DefaultConfig())

	assembled := a.Assemble(turns("hello", "hi there"), nil)
	rendered := assembled.RenderHistory()
	assert.Contains(t, rendered, "User: hello")
	assert.Contains(t, rendered, "Assistant: hi there")
}

func TestRenderPassagesMarksSources(t *testing.T) {
	a := NewAssembler(DefaultConfig())

	ps := []store.Passage{{SourceID: "doc-1", Title: "Project Plan", Text: "milestones"}}
	assembled := a.Assemble(nil, ps)
	rendered := assembled.RenderPassages()
	assert.Contains(t, rendered, "--- SOURCE: Project Plan ---")
	assert.Contains(t, rendered, "milestones")
}
