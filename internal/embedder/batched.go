package embedder

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Batched splits Embed calls into fixed-size requests to the wrapped
// embedder and runs up to Concurrency of them at once. Results keep the
// input order; the first failing batch fails the call.
type Batched struct {
	Embedder
	BatchSize   int
	Concurrency int
}

// NewBatched wraps e. Non-positive values fall back to 32 texts per request
// and one request at a time.
func NewBatched(e Embedder, batchSize, concurrency int) *Batched {
	if batchSize <= 0 {
		batchSize = 32
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Batched{Embedder: e, BatchSize: batchSize, Concurrency: concurrency}
}

func (b *Batched) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) <= b.BatchSize {
		return b.Embedder.Embed(ctx, texts)
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.Concurrency)

	for start := 0; start < len(texts); start += b.BatchSize {
		end := min(start+b.BatchSize, len(texts))
		g.Go(func() error {
			vecs, err := b.Embedder.Embed(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed texts %d-%d: %w", start, end-1, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("%w: expected %d embeddings, got %d", ErrCountMismatch, end-start, len(vecs))
			}
			// Batches write disjoint ranges.
			copy(out[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
