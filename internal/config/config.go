package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Keys     APIKeys
	Ai       AIConfig
	Chat     ChatConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type AuthConfig struct {
	JWTSecret string
}

type APIKeys struct {
	GoogleGemini   string
	Jina           string
	HuggingFace    string
	AnalyticsTopic string // chat analytics topic
}

type AIConfig struct {
	EmbeddingProvider string // "gemini", "ollama" or "jina"
	OllamaBaseURL     string
	OllamaModel       string
	LLMProvider       string // "ollama" or "huggingface"
	LLMBaseURL        string
	LLMModel          string // e.g. "llama3", "qwen2.5"
}

// ChatConfig holds the conversation and retrieval tuning knobs.
type ChatConfig struct {
	MaxConversationLength int
	SessionTimeout        time.Duration
	SweepInterval         time.Duration
	SimilarityThreshold   float64
	TopK                  int
	CollaboratorTimeout   time.Duration
	RetrievalCacheTTL     time.Duration
	MaxContextTokens      int
	ReservedMargin        int
	MaxResponseChars      int
	GenerationTimeout     time.Duration
	DailyChatLimit        int // negative disables the limit
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Keys: APIKeys{
			GoogleGemini:   getEnv("GOOGLE_GEMINI_API_KEY", ""),
			Jina:           getEnv("JINA_API_KEY", ""),
			HuggingFace:    getEnv("HUGGINGFACE_API_KEY", ""),
			AnalyticsTopic: getEnv("CHAT_ANALYTICS_TOPIC_NAME", "CHAT_ANALYTICS"),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
		},
		Chat: ChatConfig{
			MaxConversationLength: getEnvAsInt("CHAT_MAX_CONVERSATION_LENGTH", 20),
			SessionTimeout:        getEnvAsDuration("CHAT_SESSION_TIMEOUT", 30*time.Minute),
			SweepInterval:         getEnvAsDuration("CHAT_SWEEP_INTERVAL", 5*time.Minute),
			SimilarityThreshold:   getEnvAsFloat("CHAT_SIMILARITY_THRESHOLD", 0.35),
			TopK:                  getEnvAsInt("CHAT_TOP_K", 5),
			CollaboratorTimeout:   getEnvAsDuration("CHAT_COLLABORATOR_TIMEOUT", 10*time.Second),
			RetrievalCacheTTL:     getEnvAsDuration("CHAT_RETRIEVAL_CACHE_TTL", 30*time.Second),
			MaxContextTokens:      getEnvAsInt("CHAT_MAX_CONTEXT_TOKENS", 2000),
			ReservedMargin:        getEnvAsInt("CHAT_RESERVED_MARGIN", 300),
			MaxResponseChars:      getEnvAsInt("CHAT_MAX_RESPONSE_CHARS", 2000),
			GenerationTimeout:     getEnvAsDuration("CHAT_GENERATION_TIMEOUT", 30*time.Second),
			DailyChatLimit:        getEnvAsInt("CHAT_DAILY_LIMIT", 200),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
