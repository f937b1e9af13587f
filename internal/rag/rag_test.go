package rag

import (
	"context"
	"errors"
	"testing"

	"coderag/internal/chunker"
	"coderag/internal/llm"
	"coderag/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (c *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return []float32{float32(len(text)), 0}, nil
}

func (c *countingEmbedder) Model() string { return "counting" }

// queryStore answers every query with a fixed result list.
type queryStore struct {
	store.Store
	results []store.SearchResult
	lastVec []float32
	lastK   int
}

func (q *queryStore) Query(ctx context.Context, vec []float32, k int) ([]store.SearchResult, error) {
	q.lastVec, q.lastK = vec, k
	if k < len(q.results) {
		return q.results[:k], nil
	}
	return q.results, nil
}

type stubGenerator struct {
	got []llm.Message
	err error
}

func (s *stubGenerator) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	s.got = messages
	return "answer", s.err
}

func (s *stubGenerator) Model() string { return "stub" }

func sampleResults() []store.SearchResult {
	return []store.SearchResult{
		{Chunk: chunker.Chunk{FilePath: "auth.py", Content: "def login(): pass", StartLine: 1, EndLine: 2, Kind: chunker.KindFunction, Name: "login"}, Distance: 0.1},
		{Chunk: chunker.Chunk{FilePath: "auth.py", Content: "import os", StartLine: 5, EndLine: 5, Kind: chunker.KindImport}, Distance: 0.4},
	}
}

func TestRetriever_SearchCachesQueryEmbedding(t *testing.T) {
	emb := &countingEmbedder{}
	st := &queryStore{results: sampleResults()}
	r := NewRetriever(st, emb, 4)

	res, err := r.Search(context.Background(), "login", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "login", res[0].Chunk.Name)
	assert.Equal(t, []float32{5, 0}, st.lastVec)
	assert.Equal(t, 1, st.lastK)

	_, err = r.Search(context.Background(), "  login ", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls)

	_, err = r.Search(context.Background(), "logout", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, emb.calls)
}

func TestRetriever_EmptyQuery(t *testing.T) {
	emb := &countingEmbedder{}
	r := NewRetriever(&queryStore{}, emb, 0)
	res, err := r.Search(context.Background(), "   ", 3)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.Zero(t, emb.calls)
}

func TestBuildMessages(t *testing.T) {
	history := []llm.Message{
		{Role: llm.RoleUser, Content: "earlier"},
		{Role: llm.RoleAssistant, Content: "reply"},
	}
	msgs := BuildMessages(sampleResults(), history, "how does login work?")

	require.Len(t, msgs, 6)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[1].Content, "--- Chunk 1: auth.py [function:login] (lines 1-2) ---")
	assert.Contains(t, msgs[1].Content, "--- Chunk 2: auth.py [import] (lines 5-5) ---")
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)
	assert.Equal(t, history, msgs[3:5])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "how does login work?"}, msgs[5])
}

func TestBuildMessages_NoResults(t *testing.T) {
	msgs := BuildMessages(nil, nil, "q")
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, "q", msgs[1].Content)
}

func TestAnswer(t *testing.T) {
	gen := &stubGenerator{}
	out, err := Answer(context.Background(), gen, "q", sampleResults())
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Len(t, gen.got, 4)

	_, err = Answer(context.Background(), gen, "q", nil)
	assert.True(t, errors.Is(err, ErrNoContext))

	gen.err = errors.New("offline")
	_, err = Answer(context.Background(), gen, "q", sampleResults())
	assert.ErrorContains(t, err, "offline")
}
