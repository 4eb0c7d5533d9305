// FILE: internal/service/chat_service.go
package service

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ai-docchat-be/internal/dto"
	"ai-docchat-be/internal/pkg/serverutils"
	"ai-docchat-be/pkg/events"
	pktNats "ai-docchat-be/pkg/nats"
	"ai-docchat-be/pkg/rag/access"
	"ai-docchat-be/pkg/rag/analyzer"
	"ai-docchat-be/pkg/rag/prompt"
	"ai-docchat-be/pkg/rag/response"
	"ai-docchat-be/pkg/rag/search"
	"ai-docchat-be/pkg/session"
	"ai-docchat-be/pkg/store"
)

// IChatService defines the conversational Q&A interface
type IChatService interface {
	SendChat(ctx context.Context, userID string, request *dto.SendChatRequest) (*dto.SendChatResponse, error)
	GetChatHistory(ctx context.Context, userID string) (*dto.GetChatHistoryResponse, error)
	ClearHistory(ctx context.Context, userID string) bool
}

// chatService coordinates the per-question pipeline: analyze the question,
// retrieve passages, assemble a bounded prompt, generate the answer, then
// record the exchange.
type chatService struct {
	sessionStore       *session.Store
	queryAnalyzer      *analyzer.Analyzer
	coordinator        *search.Coordinator
	assembler          *prompt.Assembler
	generator          *response.Generator
	accessVerifier     *access.Verifier
	eventPublisher     *pktNats.Publisher
	analyticsPublisher IPublisherService
	llmLogger          *log.Logger

	// recentHistoryTurns is how many trailing turns feed query analysis
	recentHistoryTurns int
}

// NewChatService creates a new chat service with all domain components
func NewChatService(
	sessionStore *session.Store,
	queryAnalyzer *analyzer.Analyzer,
	coordinator *search.Coordinator,
	assembler *prompt.Assembler,
	generator *response.Generator,
	accessVerifier *access.Verifier,
	eventPublisher *pktNats.Publisher,
	analyticsPublisher IPublisherService,
) IChatService {
	return &chatService{
		sessionStore:       sessionStore,
		queryAnalyzer:      queryAnalyzer,
		coordinator:        coordinator,
		assembler:          assembler,
		generator:          generator,
		accessVerifier:     accessVerifier,
		eventPublisher:     eventPublisher,
		analyticsPublisher: analyticsPublisher,
		llmLogger:          initLLMLogger(),
		recentHistoryTurns: 4,
	}
}

func initLLMLogger() *log.Logger {
	logPath := filepath.Join(".", "logs", "llm_rag.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[LLM-RAG] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}

// SendChat answers one question inside the user's conversation.
func (cs *chatService) SendChat(ctx context.Context, userID string, request *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	question := strings.TrimSpace(request.Message)
	if question == "" {
		// The required tag lets whitespace-only input through; reject it
		// here so it still surfaces as a 400, not a server error
		return nil, &serverutils.ValidationError{Fields: map[string]string{
			"Message": "must not be empty",
		}}
	}

	// 1. Daily quota
	if err := cs.accessVerifier.VerifyChatLimit(ctx, userID); err != nil {
		return nil, err
	}

	// 2. Snapshot the conversation once; the same view feeds analysis and
	// assembly so a concurrent append cannot skew this request
	history := cs.sessionStore.Snapshot(userID)

	// 3. Analyze
	recent := history
	if len(recent) > cs.recentHistoryTurns {
		recent = recent[len(recent)-cs.recentHistoryTurns:]
	}
	analysis := cs.queryAnalyzer.Analyze(question, recent)
	cs.llmLogger.Printf("[ANALYZE] user=%s intent=%s needs_context=%t query=%q",
		userID, analysis.Profile.Intent, analysis.Profile.NeedsContext, analysis.RewrittenQuery)

	// 4. Retrieve
	passages := cs.coordinator.Retrieve(ctx, analysis.RewrittenQuery, analysis.Profile)

	// 5. Assemble bounded context
	assembled := cs.assembler.Assemble(history, passages)

	// 6. Generate (degrades to fallback internally, never errors)
	output := cs.generator.Generate(ctx, question, assembled)

	if err := ctx.Err(); err != nil {
		// Client went away mid-generation; do not record the exchange
		return nil, err
	}

	// 7. Record the full exchange atomically so readers never see a user
	// turn without its answer
	now := time.Now()
	cs.sessionStore.Append(userID,
		store.Turn{Role: store.RoleUser, Text: question, Timestamp: now},
		store.Turn{Role: store.RoleAssistant, Text: output.Answer, Timestamp: now},
	)

	if err := cs.accessVerifier.IncrementUsage(ctx, userID); err != nil {
		cs.llmLogger.Printf("[WARN] Failed to increment usage for %s: %v", userID, err)
	}

	cs.publishChatEvents(ctx, userID, analysis, len(passages), output.UsedFallback)

	return &dto.SendChatResponse{
		Answer:       output.Answer,
		CreatedAt:    now,
		MessageCount: cs.sessionStore.MessageCount(userID),
		Diagnostics: dto.ChatDiagnosticsDTO{
			Intent:          string(analysis.Profile.Intent),
			SemanticWeight:  analysis.Profile.SemanticWeight,
			KeywordWeight:   analysis.Profile.KeywordWeight,
			UsedHistory:     assembled.UsedContext(),
			RewrittenQuery:  analysis.RewrittenQuery,
			RetrievedCount:  len(passages),
			Passages:        toPassageDTOs(assembled.Passages),
			EstimatedTokens: assembled.EstimatedTokens,
			UsedFallback:    output.UsedFallback,
		},
	}, nil
}

func (cs *chatService) GetChatHistory(ctx context.Context, userID string) (*dto.GetChatHistoryResponse, error) {
	turns := cs.sessionStore.Snapshot(userID)

	used, err := cs.accessVerifier.Usage(ctx, userID)
	if err != nil {
		cs.llmLogger.Printf("[WARN] Failed to read usage for %s: %v", userID, err)
		used = 0
	}

	res := &dto.GetChatHistoryResponse{
		Turns:      make([]dto.ChatHistoryTurnDTO, len(turns)),
		UsageToday: used,
	}
	for i, t := range turns {
		res.Turns[i] = dto.ChatHistoryTurnDTO{
			Role:      string(t.Role),
			Text:      t.Text,
			Timestamp: t.Timestamp,
		}
	}
	return res, nil
}

func (cs *chatService) ClearHistory(ctx context.Context, userID string) bool {
	return cs.sessionStore.Clear(userID)
}

// publishChatEvents emits the answered event to NATS and the analytics
// payload to the in-process bus. Both are auxiliary: failures are logged,
// never surfaced to the user.
func (cs *chatService) publishChatEvents(ctx context.Context, userID string, analysis analyzer.Result, passageCount int, usedFallback bool) {
	if cs.eventPublisher != nil {
		evt := events.BaseEvent{
			Type: "CHAT_MESSAGE_ANSWERED",
			Data: map[string]interface{}{
				"user_id":       userID,
				"intent":        string(analysis.Profile.Intent),
				"passage_count": passageCount,
				"used_fallback": usedFallback,
			},
			OccurredAt: time.Now(),
		}
		if err := cs.eventPublisher.Publish(ctx, evt); err != nil {
			cs.llmLogger.Printf("[WARN] Failed to publish CHAT_MESSAGE_ANSWERED event: %v", err)
		}
	}

	if cs.analyticsPublisher != nil {
		payload, err := json.Marshal(dto.ChatAnalyticsMessage{
			UserID:       userID,
			Intent:       string(analysis.Profile.Intent),
			PassageCount: passageCount,
			UsedFallback: usedFallback,
			AskedAt:      time.Now(),
		})
		if err == nil {
			if err := cs.analyticsPublisher.Publish(ctx, payload); err != nil {
				cs.llmLogger.Printf("[WARN] Failed to publish chat analytics: %v", err)
			}
		}
	}
}

func toPassageDTOs(passages []store.Passage) []dto.PassageDTO {
	dtos := make([]dto.PassageDTO, len(passages))
	for i, p := range passages {
		excerpt := p.Text
		if runes := []rune(excerpt); len(runes) > 200 {
			excerpt = string(runes[:200])
		}
		dtos[i] = dto.PassageDTO{
			SourceID:      p.SourceID,
			Title:         p.Title,
			Excerpt:       excerpt,
			CombinedScore: p.CombinedScore,
		}
	}
	return dtos
}
