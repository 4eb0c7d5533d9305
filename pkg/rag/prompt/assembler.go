package prompt

import (
	"fmt"
	"strings"

	"ai-docchat-be/pkg/store"
)

// Config encapsulates context assembly parameters
type Config struct {
	MaxContextTokens int // hard ceiling for the assembled context
	ReservedMargin   int // held back for system instructions + the question
}

// DefaultConfig returns default assembly configuration
func DefaultConfig() Config {
	return Config{
		MaxContextTokens: 2000,
		ReservedMargin:   300,
	}
}

// EstimateTokens is the deterministic size heuristic used everywhere a
// token budget is enforced: one token per 4 runes, rounded up, plus a
// small per-block overhead. Monotonic in text length.
func EstimateTokens(text string) int {
	runes := len([]rune(text))
	return (runes+3)/4 + 2
}

// Assembled is a size-bounded context ready for prompt rendering.
// HistoryTurns are oldest-first; Passages keep their ranking order.
type Assembled struct {
	HistoryTurns    []store.Turn
	Passages        []store.Passage
	EstimatedTokens int
}

// UsedContext reports whether any conversation history made it in.
func (a Assembled) UsedContext() bool {
	return len(a.HistoryTurns) > 0
}

// Assembler builds token-bounded prompt contexts.
type Assembler struct {
	cfg Config
}

// NewAssembler creates a context assembler.
func NewAssembler(cfg Config) *Assembler {
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = DefaultConfig().MaxContextTokens
	}
	if cfg.ReservedMargin < 0 {
		cfg.ReservedMargin = 0
	}
	return &Assembler{cfg: cfg}
}

// Assemble fills the available budget with conversation history first
// (most recent backward, whole turns only), then retrieved passages
// (highest combined score first, whole passages only). The estimated size
// of the result never exceeds MaxContextTokens minus the reserved margin.
func (a *Assembler) Assemble(history []store.Turn, passages []store.Passage) Assembled {
	budget := a.cfg.MaxContextTokens - a.cfg.ReservedMargin
	if budget < 0 {
		budget = 0
	}

	assembled := Assembled{}

	// History: walk newest to oldest, stop at the first turn that does
	// not fit. Turns are never cut mid-text.
	included := 0
	for i := len(history) - 1; i >= 0; i-- {
		cost := EstimateTokens(history[i].Text)
		if assembled.EstimatedTokens+cost > budget {
			break
		}
		assembled.EstimatedTokens += cost
		included++
	}
	if included > 0 {
		assembled.HistoryTurns = append(assembled.HistoryTurns, history[len(history)-included:]...)
	}

	// Passages: best first, fill whatever budget remains. A passage that
	// does not fit is skipped entirely; later (smaller) ones may still fit.
	for _, p := range passages {
		cost := EstimateTokens(p.Text)
		if assembled.EstimatedTokens+cost > budget {
			continue
		}
		assembled.EstimatedTokens += cost
		assembled.Passages = append(assembled.Passages, p)
	}

	return assembled
}

// RenderHistory formats the included turns as a labeled transcript block.
// Empty string when no history was included.
func (a Assembled) RenderHistory() string {
	if len(a.HistoryTurns) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("<conversation_history>\n")
	for _, turn := range a.HistoryTurns {
		label := "User"
		if turn.Role == store.RoleAssistant {
			label = "Assistant"
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", label, turn.Text))
	}
	sb.WriteString("</conversation_history>\n")
	return sb.String()
}

// RenderPassages formats the included passages as a reference block with
// source separators. Empty string when nothing was retrieved or fit.
func (a Assembled) RenderPassages() string {
	if len(a.Passages) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("<reference_material>\n")
	for _, p := range a.Passages {
		title := p.Title
		if title == "" {
			title = p.SourceID
		}
		sb.WriteString(fmt.Sprintf("--- SOURCE: %s ---\n", title))
		sb.WriteString(p.Text)
		sb.WriteString("\n")
	}
	sb.WriteString("</reference_material>\n")
	return sb.String()
}
