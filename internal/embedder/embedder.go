// Package embedder turns chunk text and search queries into vectors.
//
// Providers talk to a single backend. Batched wraps any provider to split
// large inputs into bounded requests while keeping the output order.
package embedder

import (
	"context"
	"errors"
	"strings"

	"coderag/internal/chunker"
)

// Provider names accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

var (
	// ErrUnknownProvider is returned by New for an unrecognized provider name.
	ErrUnknownProvider = errors.New("unknown embedding provider")
	// ErrCountMismatch is returned when a backend answers with a different
	// number of vectors than texts were sent.
	ErrCountMismatch = errors.New("embedding count mismatch")
)

// Embedder produces one vector per input text.
type Embedder interface {
	// Embed returns vectors in the same order as texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Model returns the model name recorded alongside the index.
	Model() string
}

// SearchableText is the text embedded for a chunk: a short description of
// what the chunk is followed by its content.
func SearchableText(c chunker.Chunk) string {
	parts := []string{"This is a " + string(c.Kind)}
	if c.Name != "" {
		parts = append(parts, "named "+c.Name)
	}
	parts = append(parts, "from file "+c.FilePath, c.Content)
	return strings.Join(parts, " ")
}
