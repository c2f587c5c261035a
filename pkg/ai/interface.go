package ai

import (
	"context"
)

// JSONSchema constrains a completion to a JSON document of the given shape.
type JSONSchema struct {
	Name   string
	Schema map[string]interface{}
}

// CompletionRequest is a single prompt sent to a language model.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	Schema      *JSONSchema
}

// Completer is the interface every AI provider implements
// (OpenAI, Ollama, Gemini, and the fallback/breaker wrappers).
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)
