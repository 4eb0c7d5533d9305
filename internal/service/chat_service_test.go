package service

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-docchat-be/internal/dto"
	"ai-docchat-be/internal/pkg/serverutils"
	"ai-docchat-be/pkg/llm"
	"ai-docchat-be/pkg/rag/access"
	"ai-docchat-be/pkg/rag/analyzer"
	"ai-docchat-be/pkg/rag/prompt"
	"ai-docchat-be/pkg/rag/response"
	"ai-docchat-be/pkg/rag/search"
	"ai-docchat-be/pkg/session"
	"ai-docchat-be/pkg/store"
)

type fakeSearcher struct {
	results []search.Result
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeLLM struct {
	answer string
	fail   bool
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeLLM) Generate(ctx context.Context, promptText string, options ...llm.Option) (string, error) {
	if f.fail {
		return "", errors.New("model unavailable")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.answer, nil
}

func newTestChatService(t *testing.T, model *fakeLLM, semantic, lexical search.Result) (IChatService, *session.Store) {
	t.Helper()
	testLogger := log.New(os.Stderr, "[test] ", log.LstdFlags)

	sessionStore := session.NewStore(session.Config{
		MaxConversationLength: 20,
		SessionTimeout:        30 * time.Minute,
		SweepInterval:         0, // no background sweeper in tests
	}, testLogger)
	t.Cleanup(sessionStore.Close)

	coordCfg := search.DefaultConfig()
	coordCfg.CacheTTL = 0 // every retrieval hits the fakes
	coordinator := search.NewCoordinator(
		&fakeSearcher{results: []search.Result{semantic}},
		&fakeSearcher{results: []search.Result{lexical}},
		coordCfg,
		testLogger,
	)

	svc := NewChatService(
		sessionStore,
		analyzer.NewAnalyzer(analyzer.DefaultLexicon()),
		coordinator,
		prompt.NewAssembler(prompt.DefaultConfig()),
		response.NewGenerator(model, response.Config{MaxResponseChars: 2000, Timeout: time.Second}, testLogger),
		access.NewVerifier(nil, -1, testLogger),
		nil,
		nil,
	)
	return svc, sessionStore
}

func someResults() (search.Result, search.Result) {
	semantic := search.Result{SourceID: "doc-1", Title: "Road Map", Text: "the launch happens in May", Score: 0.9}
	lexical := search.Result{SourceID: "doc-2", Title: "Meeting Notes", Text: "launch date was discussed", Score: 3.2}
	return semantic, lexical
}

func TestSendChatRecordsExchange(t *testing.T) {
	semantic, lexical := someResults()
	svc, sessionStore := newTestChatService(t, &fakeLLM{answer: "The launch is in May."}, semantic, lexical)

	res, err := svc.SendChat(context.Background(), "user-1", &dto.SendChatRequest{Message: "when is the launch?"})

	require.NoError(t, err)
	assert.Equal(t, "The launch is in May.", res.Answer)
	assert.False(t, res.Diagnostics.UsedFallback)
	assert.Equal(t, 2, res.MessageCount)

	turns := sessionStore.Snapshot("user-1")
	require.Len(t, turns, 2)
	assert.Equal(t, store.RoleUser, turns[0].Role)
	assert.Equal(t, "when is the launch?", turns[0].Text)
	assert.Equal(t, store.RoleAssistant, turns[1].Role)
	assert.Equal(t, "The launch is in May.", turns[1].Text)
}

func TestSendChatFollowUpUsesHistory(t *testing.T) {
	semantic, lexical := someResults()
	svc, _ := newTestChatService(t, &fakeLLM{answer: "ok"}, semantic, lexical)

	_, err := svc.SendChat(context.Background(), "user-1", &dto.SendChatRequest{Message: "tell me about the launch plan"})
	require.NoError(t, err)

	res, err := svc.SendChat(context.Background(), "user-1", &dto.SendChatRequest{Message: "what about that one?"})
	require.NoError(t, err)

	assert.True(t, res.Diagnostics.UsedHistory)
	assert.Contains(t, res.Diagnostics.RewrittenQuery, "Current question:")
}

func TestSendChatFallbackStillRecorded(t *testing.T) {
	semantic, lexical := someResults()
	svc, sessionStore := newTestChatService(t, &fakeLLM{fail: true}, semantic, lexical)

	res, err := svc.SendChat(context.Background(), "user-1", &dto.SendChatRequest{Message: "when is the launch?"})

	require.NoError(t, err)
	assert.True(t, res.Diagnostics.UsedFallback)
	assert.NotEmpty(t, res.Answer)

	// degraded answers are part of the conversation too
	turns := sessionStore.Snapshot("user-1")
	require.Len(t, turns, 2)
	assert.Equal(t, res.Answer, turns[1].Text)
}

func TestSendChatCancelledContextLeavesNoTrace(t *testing.T) {
	semantic, lexical := someResults()
	svc, sessionStore := newTestChatService(t, &fakeLLM{answer: "ok"}, semantic, lexical)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.SendChat(ctx, "user-1", &dto.SendChatRequest{Message: "when is the launch?"})

	require.Error(t, err)
	assert.Empty(t, sessionStore.Snapshot("user-1"))
}

func TestSendChatRejectsEmptyMessage(t *testing.T) {
	semantic, lexical := someResults()
	svc, sessionStore := newTestChatService(t, &fakeLLM{answer: "ok"}, semantic, lexical)

	for _, message := range []string{"", "   ", "\n\t "} {
		_, err := svc.SendChat(context.Background(), "user-1", &dto.SendChatRequest{Message: message})

		require.Error(t, err)
		// a blank message is the caller's mistake, not a server failure
		var verr *serverutils.ValidationError
		assert.ErrorAs(t, err, &verr)
	}
	assert.Empty(t, sessionStore.Snapshot("user-1"))
}

func TestSendChatDiagnosticsCarryPassages(t *testing.T) {
	semantic, lexical := someResults()
	svc, _ := newTestChatService(t, &fakeLLM{answer: "ok"}, semantic, lexical)

	res, err := svc.SendChat(context.Background(), "user-1", &dto.SendChatRequest{Message: "when is the launch?"})

	require.NoError(t, err)
	require.NotEmpty(t, res.Diagnostics.Passages)
	ids := make([]string, len(res.Diagnostics.Passages))
	for i, p := range res.Diagnostics.Passages {
		ids[i] = p.SourceID
	}
	assert.Contains(t, ids, "doc-1")
	assert.Contains(t, ids, "doc-2")
	assert.Equal(t, 2, res.Diagnostics.RetrievedCount)
	assert.Greater(t, res.Diagnostics.EstimatedTokens, 0)
}

func TestSendChatRetrievedCountSurvivesBudgetDrop(t *testing.T) {
	semantic, lexical := someResults()
	testLogger := log.New(os.Stderr, "[test] ", log.LstdFlags)

	sessionStore := session.NewStore(session.Config{
		MaxConversationLength: 20,
		SessionTimeout:        30 * time.Minute,
		SweepInterval:         0,
	}, testLogger)
	t.Cleanup(sessionStore.Close)

	coordCfg := search.DefaultConfig()
	coordCfg.CacheTTL = 0
	coordinator := search.NewCoordinator(
		&fakeSearcher{results: []search.Result{semantic}},
		&fakeSearcher{results: []search.Result{lexical}},
		coordCfg,
		testLogger,
	)

	// A budget too small for any passage; the retrieved count must still
	// reflect what retrieval found, not what assembly kept
	svc := NewChatService(
		sessionStore,
		analyzer.NewAnalyzer(analyzer.DefaultLexicon()),
		coordinator,
		prompt.NewAssembler(prompt.Config{MaxContextTokens: 1, ReservedMargin: 0}),
		response.NewGenerator(&fakeLLM{answer: "ok"}, response.Config{MaxResponseChars: 2000, Timeout: time.Second}, testLogger),
		access.NewVerifier(nil, -1, testLogger),
		nil,
		nil,
	)

	res, err := svc.SendChat(context.Background(), "user-1", &dto.SendChatRequest{Message: "when is the launch?"})

	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics.Passages)
	assert.Equal(t, 2, res.Diagnostics.RetrievedCount)
}

func TestGetChatHistoryAndClear(t *testing.T) {
	semantic, lexical := someResults()
	svc, _ := newTestChatService(t, &fakeLLM{answer: "ok"}, semantic, lexical)

	_, err := svc.SendChat(context.Background(), "user-1", &dto.SendChatRequest{Message: "when is the launch?"})
	require.NoError(t, err)

	history, err := svc.GetChatHistory(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, history.Turns, 2)
	assert.Equal(t, "user", history.Turns[0].Role)
	assert.Equal(t, 0, history.UsageToday) // counters disabled in tests

	assert.True(t, svc.ClearHistory(context.Background(), "user-1"))

	history, err = svc.GetChatHistory(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, history.Turns)
}
