package response

import (
	"context"
	"log"
	"strings"
	"time"

	"ai-docchat-be/pkg/llm"
	"ai-docchat-be/pkg/rag/prompt"
)

// TruncationMarker is appended whenever an answer is cut to the configured
// maximum response length.
const TruncationMarker = " [truncated]"

// Config encapsulates generation parameters
type Config struct {
	MaxResponseChars int
	Timeout          time.Duration // per attempt
}

// DefaultConfig returns default generation configuration
func DefaultConfig() Config {
	return Config{
		MaxResponseChars: 2000,
		Timeout:          30 * time.Second,
	}
}

// Output is the result of one generation, successful or degraded
type Output struct {
	Answer       string
	UsedFallback bool
}

// Generator creates answers from assembled context. When the completion
// collaborator fails it degrades to a deterministic templated answer, so
// callers never receive an error from this path.
type Generator struct {
	llmProvider llm.LLMProvider
	cfg         Config
	logger      *log.Logger
}

// NewGenerator creates a new response generator
func NewGenerator(llmProvider llm.LLMProvider, cfg Config, logger *log.Logger) *Generator {
	if cfg.MaxResponseChars <= 0 {
		cfg.MaxResponseChars = DefaultConfig().MaxResponseChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Generator{
		llmProvider: llmProvider,
		cfg:         cfg,
		logger:      logger,
	}
}

// Generate produces the answer for query given the assembled context.
// One retry on failure; after that the fallback answer is returned with
// UsedFallback set.
func (g *Generator) Generate(ctx context.Context, query string, assembled prompt.Assembled) Output {
	promptText := g.buildGroundedPrompt(query, assembled)

	var answer string
	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		answer, err = g.llmProvider.Generate(attemptCtx, promptText)
		cancel()

		if err == nil {
			g.logf("[GENERATION] Answer generated from %d passages (history: %d turns)",
				len(assembled.Passages), len(assembled.HistoryTurns))
			return Output{Answer: g.truncate(strings.TrimSpace(answer))}
		}
		if ctx.Err() != nil {
			break
		}
		g.logf("[WARN] LLM generation attempt %d failed: %v", attempt, err)
	}

	g.logf("[ERROR] LLM generation failed, serving fallback: %v", err)
	return Output{Answer: g.fallbackAnswer(assembled), UsedFallback: true}
}

func (g *Generator) logf(format string, args ...interface{}) {
	if g.logger != nil {
		g.logger.Printf(format, args...)
	}
}

func (g *Generator) buildGroundedPrompt(query string, assembled prompt.Assembled) string {
	var builder strings.Builder

	// 1. Conversation history first so the model reads the dialogue in order
	if history := assembled.RenderHistory(); history != "" {
		builder.WriteString(history)
		builder.WriteString("\n")
	}

	// 2. Grounded reference material (the actual data)
	if passages := assembled.RenderPassages(); passages != "" {
		builder.WriteString(passages)
		builder.WriteString("\n")
	}

	// 3. Task description
	builder.WriteString("<task_instructions>\n")
	builder.WriteString("You are a diligent assistant answering questions about the user's documents.\n\n")

	builder.WriteString("GROUNDING RULES:\n")
	if len(assembled.Passages) > 0 {
		builder.WriteString("1. Answer ONLY using the text in <reference_material>. Do NOT use outside knowledge.\n")
		builder.WriteString("2. If the material does not contain the answer, say so plainly.\n")
		builder.WriteString("3. If the user asks for 'all' or 'every', be EXHAUSTIVE.\n")
	} else {
		builder.WriteString("1. No reference material matched this question. Say so honestly.\n")
		builder.WriteString("2. You may still answer from the conversation history above if it contains the answer.\n")
	}
	builder.WriteString("\nRESPONSE STYLE:\n")
	builder.WriteString("1. ANSWER DIRECTLY if sufficient data exists. Never ask 'Do you want me to...'.\n")
	builder.WriteString("2. Match your tone and format to the user's question style.\n")
	builder.WriteString("3. Keep the answer concise and lead with the most relevant information.\n")
	builder.WriteString("</task_instructions>\n\n")

	// User query
	builder.WriteString("<user_question>\n")
	builder.WriteString(query)
	builder.WriteString("\n</user_question>\n\n")

	builder.WriteString("Answer:")

	return builder.String()
}

// fallbackAnswer is deterministic so degraded behavior stays testable.
// When passages were found it lists their titles so the user still gets
// something actionable.
func (g *Generator) fallbackAnswer(assembled prompt.Assembled) string {
	var builder strings.Builder

	if len(assembled.Passages) > 0 {
		builder.WriteString("I couldn't compose a full answer right now, but these documents look relevant to your question:\n")
		for _, p := range assembled.Passages {
			title := p.Title
			if title == "" {
				title = p.SourceID
			}
			builder.WriteString("- ")
			builder.WriteString(title)
			builder.WriteString("\n")
		}
		builder.WriteString("\nPlease try again in a moment.")
		return builder.String()
	}

	builder.WriteString("Sorry, I couldn't find relevant information in the documents for this question")
	if len(assembled.HistoryTurns) > 0 {
		builder.WriteString(", even considering our earlier conversation")
	}
	builder.WriteString(".\n\nYou can try:\n")
	builder.WriteString("- rephrasing the question with different keywords\n")
	builder.WriteString("- asking about a more specific or a broader topic\n")
	builder.WriteString("- checking that the source documents cover this subject")
	return builder.String()
}

func (g *Generator) truncate(answer string) string {
	runes := []rune(answer)
	if len(runes) <= g.cfg.MaxResponseChars {
		return answer
	}
	return string(runes[:g.cfg.MaxResponseChars]) + TruncationMarker
}
