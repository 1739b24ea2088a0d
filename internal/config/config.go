package config

import (
	"os"
	"strconv"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	// Visitor token signing.
	JWTSecret string

	// Session blob storage backend: "redis", "sql" or "memory".
	StorageBackend string

	DBDriver string // "sqlite" or "mysql"
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Session store limits.
	SessionMaxBytes      int64
	MaxThreads           int
	MaxMessagesPerThread int
	ContextWindowSize    int

	// Language-model backend.
	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64

	// Capability collaborators.
	SearchBaseURL   string
	WebsiteBaseURL  string
	DocumentBaseURL string
	SpeechBaseURL   string

	// Lead event queue.
	RabbitURL   string
	RabbitQueue string
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func Load() Config {
	maxBytes := int64(5 * 1024 * 1024)
	if v := os.Getenv("SESSION_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			maxBytes = n
		}
	}

	temperature := 0.7
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			temperature = f
		}
	}

	return Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),

		StorageBackend: getEnv("STORAGE_BACKEND", "sql"),

		DBDriver: getEnv("DB_DRIVER", "sqlite"),
		DBDSN:    getEnv("DB_DSN", "concierge.db"),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		SessionMaxBytes:      maxBytes,
		MaxThreads:           getEnvInt("MAX_THREADS", 10),
		MaxMessagesPerThread: getEnvInt("MAX_MESSAGES_PER_THREAD", 50),
		ContextWindowSize:    getEnvInt("CONTEXT_WINDOW_SIZE", 10),

		LLMBaseURL:     getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:      os.Getenv("LLM_API_KEY"),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 600),
		LLMTemperature: temperature,

		SearchBaseURL:   getEnv("SEARCH_BASE_URL", "http://localhost:9100"),
		WebsiteBaseURL:  getEnv("WEBSITE_ANALYZER_URL", "http://localhost:9101"),
		DocumentBaseURL: getEnv("DOCUMENT_ANALYZER_URL", "http://localhost:9102"),
		SpeechBaseURL:   getEnv("SPEECH_TRANSCRIBER_URL", "http://localhost:9103"),

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: getEnv("RABBIT_QUEUE", "lead_events"),
	}
}
