// Package rag answers questions about an indexed codebase: it retrieves the
// chunks closest to a query and hands them to a generator as context.
package rag

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"coderag/internal/embedder"
	"coderag/internal/llm"
	"coderag/internal/store"

	lru "github.com/hashicorp/golang-lru/v2"
)

const systemPrompt = `You are a code intelligence assistant. You answer questions about a codebase using the retrieved source code context provided below.

Focus on answering how, why, and where questions about the code. Explain architecture, data flow, and relationships between components. Reference specific file paths and line numbers when relevant.

Do not generate new code unless explicitly asked. Keep answers concise and grounded in the provided context. If the context doesn't contain enough information to answer, say so.`

// DefaultCacheSize is the number of query embeddings a Retriever keeps.
const DefaultCacheSize = 256

// ErrNoContext is returned by Answer when retrieval found nothing.
var ErrNoContext = errors.New("no indexed code matches the question")

// Retriever embeds queries and looks up the nearest chunks.
type Retriever struct {
	store    store.Store
	embedder embedder.Embedder
	cache    *lru.Cache[string, []float32]
}

// NewRetriever creates a retriever caching up to cacheSize query embeddings.
func NewRetriever(st store.Store, emb embedder.Embedder, cacheSize int) *Retriever {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		cache, _ = lru.New[string, []float32](DefaultCacheSize)
	}
	return &Retriever{store: st, embedder: emb, cache: cache}
}

// Search returns up to k chunks nearest to query, nearest first.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]store.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	vec, ok := r.cache.Get(query)
	if !ok {
		var err error
		vec, err = r.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		r.cache.Add(query, slices.Clone(vec))
	}

	results, err := r.store.Query(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return results, nil
}

// BuildMessages constructs the message list for the LLM from retrieved chunks,
// conversation history, and the current question.
func BuildMessages(results []store.SearchResult, history []llm.Message, question string) []llm.Message {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}

	if len(results) > 0 {
		var ctx strings.Builder
		ctx.WriteString("Here is the relevant source code context:\n\n")
		for i, r := range results {
			c := r.Chunk
			fmt.Fprintf(&ctx, "--- Chunk %d: %s [%s] (lines %d-%d) ---\n",
				i+1, c.FilePath, c.Type(), c.StartLine, c.EndLine)
			ctx.WriteString(c.Content)
			ctx.WriteString("\n\n")
		}
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: ctx.String()},
			llm.Message{Role: llm.RoleAssistant, Content: "I've reviewed the code context. What would you like to know?"},
		)
	}

	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: question})
	return msgs
}

// Answer asks gen to answer question from the retrieved results.
func Answer(ctx context.Context, gen llm.Generator, question string, results []store.SearchResult) (string, error) {
	if len(results) == 0 {
		return "", ErrNoContext
	}
	answer, err := gen.Generate(ctx, BuildMessages(results, nil, question))
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}
