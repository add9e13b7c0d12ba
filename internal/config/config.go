// Package config loads runtime configuration from environment variables.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider names a generative model backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderBedrock   Provider = "bedrock"
)

// Store backends.
const (
	StoreMemory    = "memory"
	StoreSQLite    = "sqlite"
	StoreSurrealDB = "surrealdb"
)

// De-duplication backends.
const (
	DedupMemory = "memory"
	DedupRedis  = "redis"
)

// Config holds all configuration values.
type Config struct {
	// Generative model
	LLMProvider     Provider
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	AWSRegion       string

	// Conversation store
	StoreBackend string
	SQLitePath   string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Inbound de-duplication
	DedupBackend string
	RedisURL     string
	DedupTTL     time.Duration

	// Collaborators
	ResearchURL         string
	ResearchTimeout     time.Duration
	ResearchConcurrency int
	VoiceURL            string
	VoiceAPIKey         string
	VoiceTimeout        time.Duration
	AudioDir            string
	DocumentDir         string

	// Classification
	LexiconFile         string
	ChitchatMaxWords    int
	ShortReplyMaxWords  int
	SubstantiveMinWords int
	ScriptThreshold     float64
	ClassifyTimeout     time.Duration

	// HTTP surface
	ServerAddr  string
	VerifyToken string
	AppSecret   string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		LLMProvider:     Provider(strings.ToLower(getEnv("LEGALCHAT_LLM_PROVIDER", string(ProviderOllama)))),
		LLMModel:        getEnv("LEGALCHAT_LLM_MODEL", "llama3.2"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		StoreBackend: strings.ToLower(getEnv("LEGALCHAT_STORE", StoreSQLite)),
		SQLitePath:   getEnv("LEGALCHAT_SQLITE_PATH", "legalchat.db"),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "legalchat"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "conversations"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		DedupBackend: strings.ToLower(getEnv("LEGALCHAT_DEDUP", DedupMemory)),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DedupTTL:     getEnvDuration("LEGALCHAT_DEDUP_TTL", time.Hour),

		ResearchURL:         getEnv("LEGALCHAT_RESEARCH_URL", "http://localhost:8090/research"),
		ResearchTimeout:     getEnvDuration("LEGALCHAT_RESEARCH_TIMEOUT", 180*time.Second),
		ResearchConcurrency: getEnvInt("LEGALCHAT_RESEARCH_CONCURRENCY", 10),
		VoiceURL:            getEnv("LEGALCHAT_VOICE_URL", ""),
		VoiceAPIKey:         getEnv("LEGALCHAT_VOICE_API_KEY", ""),
		VoiceTimeout:        getEnvDuration("LEGALCHAT_VOICE_TIMEOUT", 60*time.Second),
		AudioDir:            getEnv("LEGALCHAT_AUDIO_DIR", os.TempDir()),
		DocumentDir:         getEnv("LEGALCHAT_DOCUMENT_DIR", "reports"),

		LexiconFile:         getEnv("LEGALCHAT_LEXICON_FILE", ""),
		ChitchatMaxWords:    getEnvInt("LEGALCHAT_CHITCHAT_MAX_WORDS", 4),
		ShortReplyMaxWords:  getEnvInt("LEGALCHAT_SHORT_REPLY_MAX_WORDS", 5),
		SubstantiveMinWords: getEnvInt("LEGALCHAT_SUBSTANTIVE_MIN_WORDS", 6),
		ScriptThreshold:     getEnvFloat("LEGALCHAT_SCRIPT_THRESHOLD", 0.2),
		ClassifyTimeout:     getEnvDuration("LEGALCHAT_CLASSIFY_TIMEOUT", 8*time.Second),

		ServerAddr:  getEnv("LEGALCHAT_ADDR", ":8484"),
		VerifyToken: getEnv("LEGALCHAT_VERIFY_TOKEN", ""),
		AppSecret:   getEnv("LEGALCHAT_APP_SECRET", ""),

		LogFile:  getEnv("LEGALCHAT_LOG_FILE", "/tmp/legalchat.log"),
		LogLevel: parseLogLevel(getEnv("LEGALCHAT_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
