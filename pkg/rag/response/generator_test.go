package response

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-docchat-be/pkg/llm"
	"ai-docchat-be/pkg/rag/prompt"
	"ai-docchat-be/pkg/store"
)

type stubLLM struct {
	answer     string
	failFirstN int
	calls      int
	lastPrompt string
}

func (s *stubLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

func (s *stubLLM) Generate(ctx context.Context, promptText string, options ...llm.Option) (string, error) {
	s.calls++
	s.lastPrompt = promptText
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.calls <= s.failFirstN {
		return "", errors.New("model unavailable")
	}
	return s.answer, nil
}

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", log.LstdFlags)
}

func someAssembled() prompt.Assembled {
	return prompt.Assembled{
		HistoryTurns: []store.Turn{
			{Role: store.RoleUser, Text: "tell me about the migration plan", Timestamp: time.Now()},
			{Role: store.RoleAssistant, Text: "the plan has three phases", Timestamp: time.Now()},
		},
		Passages: []store.Passage{
			{SourceID: "doc-1", Title: "Migration Plan", Text: "phase one is discovery"},
			{SourceID: "doc-2", Title: "", Text: "phase two is execution"},
		},
	}
}

func TestGenerateSuccess(t *testing.T) {
	stub := &stubLLM{answer: "  The plan has three phases.  "}
	gen := NewGenerator(stub, DefaultConfig(), testLogger())

	out := gen.Generate(context.Background(), "what is the plan?", someAssembled())

	assert.False(t, out.UsedFallback)
	assert.Equal(t, "The plan has three phases.", out.Answer)
	assert.Equal(t, 1, stub.calls)
}

func TestGeneratePromptContainsContextAndQuestion(t *testing.T) {
	stub := &stubLLM{answer: "ok"}
	gen := NewGenerator(stub, DefaultConfig(), testLogger())

	gen.Generate(context.Background(), "what is phase one?", someAssembled())

	require.NotEmpty(t, stub.lastPrompt)
	assert.Contains(t, stub.lastPrompt, "<conversation_history>")
	assert.Contains(t, stub.lastPrompt, "<reference_material>")
	assert.Contains(t, stub.lastPrompt, "what is phase one?")
	// history must come before reference material, and the question last
	histIdx := strings.Index(stub.lastPrompt, "<conversation_history>")
	refIdx := strings.Index(stub.lastPrompt, "<reference_material>")
	qIdx := strings.Index(stub.lastPrompt, "<user_question>")
	assert.Less(t, histIdx, refIdx)
	assert.Less(t, refIdx, qIdx)
}

func TestGenerateRetriesOnce(t *testing.T) {
	stub := &stubLLM{answer: "recovered", failFirstN: 1}
	gen := NewGenerator(stub, DefaultConfig(), testLogger())

	out := gen.Generate(context.Background(), "question", someAssembled())

	assert.False(t, out.UsedFallback)
	assert.Equal(t, "recovered", out.Answer)
	assert.Equal(t, 2, stub.calls)
}

func TestGenerateFallbackListsSources(t *testing.T) {
	stub := &stubLLM{failFirstN: 10}
	gen := NewGenerator(stub, DefaultConfig(), testLogger())

	out := gen.Generate(context.Background(), "question", someAssembled())

	require.True(t, out.UsedFallback)
	assert.Equal(t, 2, stub.calls)
	assert.Contains(t, out.Answer, "Migration Plan")
	// untitled passage falls back to its source id
	assert.Contains(t, out.Answer, "doc-2")
}

func TestGenerateFallbackWithoutPassages(t *testing.T) {
	stub := &stubLLM{failFirstN: 10}
	gen := NewGenerator(stub, DefaultConfig(), testLogger())

	out := gen.Generate(context.Background(), "question", prompt.Assembled{})

	require.True(t, out.UsedFallback)
	assert.Contains(t, out.Answer, "rephrasing the question")
	assert.NotContains(t, out.Answer, "earlier conversation")
}

func TestGenerateFallbackIsDeterministic(t *testing.T) {
	stub := &stubLLM{failFirstN: 10}
	gen := NewGenerator(stub, DefaultConfig(), testLogger())

	first := gen.Generate(context.Background(), "question", someAssembled())
	second := gen.Generate(context.Background(), "question", someAssembled())

	assert.Equal(t, first.Answer, second.Answer)
}

func TestGenerateCancelledContextSkipsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &stubLLM{failFirstN: 10}
	gen := NewGenerator(stub, DefaultConfig(), testLogger())

	out := gen.Generate(ctx, "question", someAssembled())

	assert.True(t, out.UsedFallback)
	assert.Equal(t, 1, stub.calls)
}

func TestGenerateWithNilLoggerDoesNotPanic(t *testing.T) {
	gen := NewGenerator(&stubLLM{answer: "fine"}, Config{Timeout: time.Second}, nil)

	out := gen.Generate(context.Background(), "question", someAssembled())
	assert.Equal(t, "fine", out.Answer)

	// the fallback path logs too; it must also tolerate a nil logger
	gen = NewGenerator(&stubLLM{failFirstN: 10}, Config{Timeout: time.Second}, nil)
	out = gen.Generate(context.Background(), "question", someAssembled())
	assert.True(t, out.UsedFallback)
}

func TestGenerateTruncatesLongAnswers(t *testing.T) {
	long := strings.Repeat("a", 100)
	stub := &stubLLM{answer: long}
	gen := NewGenerator(stub, Config{MaxResponseChars: 40, Timeout: time.Second}, testLogger())

	out := gen.Generate(context.Background(), "question", someAssembled())

	require.False(t, out.UsedFallback)
	assert.True(t, strings.HasSuffix(out.Answer, TruncationMarker))
	assert.Equal(t, strings.Repeat("a", 40)+TruncationMarker, out.Answer)
}
