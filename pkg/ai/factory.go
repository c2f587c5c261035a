package ai

import (
	"fmt"

	"go.uber.org/zap"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType // "openai", "gemini", "ollama" or "auto"

	OpenAIAPIKey   string
	OpenAIBaseURL  string
	GetOpenAIModel func() string

	GeminiAPIKey string
	GeminiModel  string

	GetOllamaBaseURL func() string
	GetOllamaModel   func() string

	Breaker BreakerConfig
	Logger  *zap.Logger
}

// NewCompleter builds the provider stack for cfg.Provider.
// Every provider sits behind its own circuit breaker; "auto" chains the hosted
// provider (OpenAI, else Gemini) with Ollama as the fallback.
func NewCompleter(cfg Config) (Completer, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker = DefaultBreakerConfig()
	}
	if cfg.GetOpenAIModel == nil {
		cfg.GetOpenAIModel = func() string { return "gpt-4o-mini" }
	}
	if cfg.GetOllamaBaseURL == nil {
		cfg.GetOllamaBaseURL = func() string { return "http://localhost:11434" }
	}
	if cfg.GetOllamaModel == nil {
		cfg.GetOllamaModel = func() string { return "llama3" }
	}

	openai := func() Completer {
		return NewBreakerService("openai", NewOpenAIServiceWithGetters(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.GetOpenAIModel), cfg.Breaker, log)
	}
	gemini := func() Completer {
		return NewBreakerService("gemini", NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel), cfg.Breaker, log)
	}
	ollama := func() Completer {
		return NewBreakerService("ollama", NewOllamaServiceWithGetters(cfg.GetOllamaBaseURL, cfg.GetOllamaModel), cfg.Breaker, log)
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return openai(), nil

	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return gemini(), nil

	case ProviderOllama:
		return ollama(), nil

	default:
		var primary Completer
		switch {
		case cfg.OpenAIAPIKey != "":
			primary = openai()
		case cfg.GeminiAPIKey != "":
			primary = gemini()
		}
		if primary == nil {
			return ollama(), nil
		}
		return NewFallbackService(primary, ollama(), log.Named("fallback")), nil
	}
}
