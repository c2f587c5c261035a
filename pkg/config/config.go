package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	AppEnv      string
	LogLevel    string
	FrontendURL string

	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	GoogleClientID     string
	GoogleClientSecret string
	RedirectURI        string

	// AI providers
	AIProvider    string // "openai", "ollama", "gemini" or "auto"
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	OllamaBaseURL string
	OllamaModel   string
	GeminiAPIKey  string
	AICallTimeout time.Duration

	// Digest / clustering batch knobs
	DigestLookback   time.Duration
	DigestMaxEmails  int
	ClusterMaxEmails int
	AIConcurrency    int

	// Storage
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	SummaryCacheTTL time.Duration

	// Mail source: "sample", "gmail" or "imap"
	EmailSource  string
	IMAPAddr     string
	IMAPUsername string
	IMAPPassword string

	// Gmail push notifications
	GoogleProjectID   string
	GooglePubSubTopic string
	GoogleCredentials string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		AppEnv:      getEnv("APP_ENV", "production"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		SessionSecret: getEnv("SESSION_SECRET", "mailsync-dev-session-secret-change-me"),
		SessionTTL:    getDuration("SESSION_TTL", 168*time.Hour),
		CookieSecure:  getBool("COOKIE_SECURE", false),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		RedirectURI:        getEnv("REDIRECT_URI", "http://localhost:8080/api/auth/callback"),

		AIProvider:    getEnv("AI_PROVIDER", "auto"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		AICallTimeout: getDuration("AI_CALL_TIMEOUT", 10*time.Second),

		DigestLookback:   getDuration("DIGEST_LOOKBACK", 24*time.Hour),
		DigestMaxEmails:  getPositiveInt("DIGEST_MAX_EMAILS", 10),
		ClusterMaxEmails: getPositiveInt("CLUSTER_MAX_EMAILS", 30),
		AIConcurrency:    getPositiveInt("AI_CONCURRENCY", 10),

		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getInt("REDIS_DB", 0),
		SummaryCacheTTL: getDuration("SUMMARY_CACHE_TTL", 24*time.Hour),

		EmailSource:  getEnv("EMAIL_SOURCE", "sample"),
		IMAPAddr:     getEnv("IMAP_ADDR", ""),
		IMAPUsername: getEnv("IMAP_USERNAME", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),

		GoogleProjectID:   getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic: getEnv("GOOGLE_PUBSUB_TOPIC", ""),
		GoogleCredentials: getEnv("GOOGLE_CREDENTIALS", ""),
	}
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev" || c.AppEnv == "local"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getPositiveInt is getInt for counts; zero or negative values use the default.
func getPositiveInt(key string, defaultValue int) int {
	if n := getInt(key, defaultValue); n > 0 {
		return n
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}
