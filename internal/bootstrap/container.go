package bootstrap

import (
	"context"
	"log"

	"ai-docchat-be/internal/config"
	"ai-docchat-be/internal/controller"
	"ai-docchat-be/internal/pkg/logger"
	"ai-docchat-be/internal/pkg/serverutils"
	"ai-docchat-be/internal/repository/implementation"
	"ai-docchat-be/internal/repository/unitofwork"
	"ai-docchat-be/internal/service"
	"ai-docchat-be/pkg/embedding"
	"ai-docchat-be/pkg/embedding/jina"
	"ai-docchat-be/pkg/llm/factory"
	"ai-docchat-be/pkg/rag/access"
	"ai-docchat-be/pkg/rag/analyzer"
	"ai-docchat-be/pkg/rag/prompt"
	"ai-docchat-be/pkg/rag/response"
	"ai-docchat-be/pkg/rag/search"
	"ai-docchat-be/pkg/session"

	pktNats "ai-docchat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController     controller.IChatController
	DocumentController controller.IDocumentController
	AdminController    controller.IAdminController

	// Background Services (Exposed for main.go to run)
	ConsumerService          service.IConsumerService
	AnalyticsConsumerService service.IAnalyticsConsumerService
	AuditConsumerService     service.IAuditConsumerService

	// Shared resources that need shutdown
	SessionStore *session.Store
	NatsPub      *pktNats.Publisher
	NatsSub      *pktNats.Subscriber
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	serverutils.InitAuth(cfg.Auth.JWTSecret)
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else if cfg.Ai.EmbeddingProvider == "jina" {
		embeddingProvider = jina.NewJinaProvider(cfg.Keys.Jina)
		log.Printf("[INFO] Using Embedding Provider: JINA AI")
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.LLMBaseURL,
		cfg.Keys.HuggingFace,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// 5. Conversation pipeline components
	sessionLogger := log.Default()
	sessionStore := session.NewStore(session.Config{
		MaxConversationLength: cfg.Chat.MaxConversationLength,
		SessionTimeout:        cfg.Chat.SessionTimeout,
		SweepInterval:         cfg.Chat.SweepInterval,
	}, sessionLogger)

	chunkRepo := implementation.NewDocumentChunkRepository(db)
	coordinator := search.NewCoordinator(
		search.NewChunkSemanticSearcher(embeddingProvider, chunkRepo),
		search.NewChunkLexicalSearcher(chunkRepo),
		search.Config{
			SimilarityThreshold: cfg.Chat.SimilarityThreshold,
			TopK:                cfg.Chat.TopK,
			CollaboratorTimeout: cfg.Chat.CollaboratorTimeout,
			CacheTTL:            cfg.Chat.RetrievalCacheTTL,
		},
		sessionLogger,
	)

	generator := response.NewGenerator(llmProvider, response.Config{
		MaxResponseChars: cfg.Chat.MaxResponseChars,
		Timeout:          cfg.Chat.GenerationTimeout,
	}, sessionLogger)

	accessVerifier := access.NewVerifier(rdb, cfg.Chat.DailyChatLimit, sessionLogger)

	// 6. Services
	publisherService := service.NewPublisherService("EMBED_DOCUMENT_CONTENT", pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		"EMBED_DOCUMENT_CONTENT",
		uowFactory,
		embeddingProvider,
	)

	analyticsPublisher := service.NewPublisherService(cfg.Keys.AnalyticsTopic, pubSub)
	analyticsLogger := logger.NewIsolatedLogger("logs/chat_analytics.log")
	analyticsConsumerService := service.NewAnalyticsConsumerService(
		pubSub,
		cfg.Keys.AnalyticsTopic,
		analyticsLogger,
	)

	chatService := service.NewChatService(
		sessionStore,
		analyzer.NewAnalyzer(analyzer.DefaultLexicon()),
		coordinator,
		prompt.NewAssembler(prompt.Config{
			MaxContextTokens: cfg.Chat.MaxContextTokens,
			ReservedMargin:   cfg.Chat.ReservedMargin,
		}),
		generator,
		accessVerifier,
		natsPub,
		analyticsPublisher,
	)

	auditConsumerService := service.NewAuditConsumerService(natsSub, sysLogger)

	documentService := service.NewDocumentService(uowFactory, publisherService, natsPub)
	adminService := service.NewAdminService(sessionStore, sysLogger)

	// 7. Controllers
	return &Container{
		ChatController:     controller.NewChatController(chatService),
		DocumentController: controller.NewDocumentController(documentService),
		AdminController:    controller.NewAdminController(adminService),

		ConsumerService:          consumerService,
		AnalyticsConsumerService: analyticsConsumerService,
		AuditConsumerService:     auditConsumerService,

		SessionStore: sessionStore,
		NatsPub:      natsPub,
		NatsSub:      natsSub,
	}
}
