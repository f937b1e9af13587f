// Package llm generates answers from a chat-style conversation.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultOllamaURL is where a local Ollama listens by default.
const DefaultOllamaURL = "http://localhost:11434"

// Roles used in Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider names accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

var (
	ErrUnknownProvider = errors.New("unknown chat provider")
	ErrEmptyResponse   = errors.New("model returned no content")
)

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces the assistant's reply to a conversation.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
	Model() string
}

// Config selects a chat provider.
type Config struct {
	Provider  string
	Model     string
	OllamaURL string
	APIKey    string
}

// New builds the configured generator.
func New(ctx context.Context, cfg Config) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOllama:
		return NewOllamaChat(cfg.OllamaURL, cfg.Model), nil
	case ProviderGemini:
		return NewGeminiChat(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}
