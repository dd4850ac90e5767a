package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Ai         AIConfig
	Retrieval  RetrievalConfig
	Agent      AgentConfig
	Checkpoint CheckpointConfig
	Search     SearchConfig
	WhatsApp   WhatsAppConfig
}

type AppConfig struct {
	Port               string `validate:"required,numeric"`
	Environment        string `validate:"oneof=development staging production test"`
	LogFilePath        string `validate:"required"`
	StreamLogFilePath  string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
	OtelEnabled        bool
	OtelEndpoint       string
	IngestTopic        string `validate:"required"`
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	LLMProvider       string  `validate:"oneof=openai ollama"`
	LLMModel          string  `validate:"required"`
	CriticModel       string  `validate:"required"`
	Temperature       float64 `validate:"gte=0,lte=2"`
	OpenAIKey         string  `validate:"required_if=LLMProvider openai"`
	OllamaBaseURL     string
	EmbeddingProvider string `validate:"oneof=openai ollama hash"`
	EmbeddingModel    string `validate:"required"`
}

type RetrievalConfig struct {
	Collection      string  `validate:"required"`
	K               int     `validate:"gt=0"`
	SemanticWeight  float64 `validate:"gte=0"`
	LexicalWeight   float64 `validate:"gte=0"`
	ChunkSize       int     `validate:"gt=0"`
	ChunkOverlap    int     `validate:"gte=0,ltfield=ChunkSize"`
	EmbeddingTTL    time.Duration
	EmbeddingMaxLen int
}

type AgentConfig struct {
	OrganizationName        string `validate:"required"`
	WebsiteURL              string `validate:"required,url"`
	IterationCeiling        int    `validate:"gt=0"`
	UsageLimit              int    `validate:"gt=0"`
	UsageAction             string `validate:"oneof=warn reject"`
	StallPolicy             string `validate:"oneof=sufficient continue"`
	StallMinEvidence        int    `validate:"gte=0"`
	SkipResearchOnEmptyPlan bool
	LiveSearchFallback      bool
	ComposerEvidenceChars   int `validate:"gt=0"`
	PlannerPreviewChars     int `validate:"gt=0"`
	LockTTL                 time.Duration
}

type CheckpointConfig struct {
	Backend    string `validate:"oneof=postgres sqlite memory"`
	SQLitePath string `validate:"required_if=Backend sqlite"`
}

type SearchConfig struct {
	TavilyKey         string
	MaxResults        int     `validate:"gt=0"`
	RequestsPerSecond float64 `validate:"gt=0"`
}

type WhatsAppConfig struct {
	PhoneNumberID string
	AccessToken   string
	VerifyToken   string
	APIVersion    string
	BaseURL       string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			StreamLogFilePath:  getEnv("STREAM_LOG_FILE_PATH", "logs/stream.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			IngestTopic:        getEnv("INGEST_TOPIC", "site.ingest"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "openai"),
			LLMModel:          getEnv("LLM_MODEL", "gpt-4o"),
			CriticModel:       getEnv("CRITIC_MODEL", "gpt-4o-mini"),
			Temperature:       getEnvAsFloat("LLM_TEMPERATURE", 0),
			OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "openai"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Retrieval: RetrievalConfig{
			Collection:      getEnv("COLLECTION_NAME", "site_docs"),
			K:               getEnvAsInt("RETRIEVAL_K", 5),
			SemanticWeight:  getEnvAsFloat("RETRIEVAL_SEMANTIC_WEIGHT", 0.6),
			LexicalWeight:   getEnvAsFloat("RETRIEVAL_LEXICAL_WEIGHT", 0.4),
			ChunkSize:       getEnvAsInt("CHUNK_SIZE", 1000),
			ChunkOverlap:    getEnvAsInt("CHUNK_OVERLAP", 200),
			EmbeddingTTL:    getEnvAsDuration("EMBEDDING_CACHE_TTL", time.Hour),
			EmbeddingMaxLen: getEnvAsInt("EMBEDDING_CACHE_MAX_QUERY_LEN", 2000),
		},
		Agent: AgentConfig{
			OrganizationName:        getEnv("ORGANIZATION_NAME", "the organization"),
			WebsiteURL:              getEnv("WEBSITE_URL", "https://example.com"),
			IterationCeiling:        getEnvAsInt("AGENT_ITERATION_CEILING", 5),
			UsageLimit:              getEnvAsInt("AGENT_USAGE_LIMIT", 20),
			UsageAction:             getEnv("AGENT_USAGE_ACTION", "warn"),
			StallPolicy:             getEnv("AGENT_STALL_POLICY", "sufficient"),
			StallMinEvidence:        getEnvAsInt("AGENT_STALL_MIN_EVIDENCE", 0),
			SkipResearchOnEmptyPlan: getEnvAsBool("AGENT_SKIP_RESEARCH_ON_EMPTY_PLAN", true),
			LiveSearchFallback:      getEnvAsBool("AGENT_LIVE_SEARCH_FALLBACK", false),
			ComposerEvidenceChars:   getEnvAsInt("AGENT_COMPOSER_EVIDENCE_CHARS", 8000),
			PlannerPreviewChars:     getEnvAsInt("AGENT_PLANNER_PREVIEW_CHARS", 300),
			LockTTL:                 getEnvAsDuration("AGENT_LOCK_TTL", 5*time.Minute),
		},
		Checkpoint: CheckpointConfig{
			Backend:    getEnv("CHECKPOINT_BACKEND", "sqlite"),
			SQLitePath: getEnv("CHECKPOINT_SQLITE_PATH", "checkpoints.sqlite"),
		},
		Search: SearchConfig{
			TavilyKey:         getEnv("TAVILY_API_KEY", ""),
			MaxResults:        getEnvAsInt("SEARCH_MAX_RESULTS", 5),
			RequestsPerSecond: getEnvAsFloat("SEARCH_RPS", 1),
		},
		WhatsApp: WhatsAppConfig{
			PhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			AccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			VerifyToken:   getEnv("WEBHOOK_VERIFY_TOKEN", ""),
			APIVersion:    getEnv("WHATSAPP_API_VERSION", "v17.0"),
			BaseURL:       getEnv("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
		},
	}
}

// Validate checks field constraints declared in struct tags.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
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

func getEnvAsBool(key string, fallback bool) bool {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if value, err := strconv.ParseBool(strValue); err == nil {
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
