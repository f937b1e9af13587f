package embedder

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and tunes an embedding provider.
type Config struct {
	Provider    string
	Model       string
	OllamaURL   string
	APIKey      string
	BatchSize   int
	Concurrency int
}

// New builds the configured provider wrapped in Batched.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	var (
		base Embedder
		err  error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOllama:
		base = NewOllamaEmbedder(cfg.OllamaURL, cfg.Model)
	case ProviderGemini:
		base, err = NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
	return NewBatched(base, cfg.BatchSize, cfg.Concurrency), nil
}
