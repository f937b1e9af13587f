// Package index keeps the vector store in step with a source tree.
//
// A run scans the tree, diffs it against the ledger, re-extracts and
// re-embeds only the files whose content changed, removes the chunks of
// files that are gone, and persists the ledger last. A run that fails
// leaves the ledger on disk as it was, so the next run redoes the work.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"coderag/internal/chunker"
	"coderag/internal/embedder"
	"coderag/internal/ledger"
	"coderag/internal/store"
	"coderag/internal/walker"

	"github.com/google/uuid"
)

// MetaEmbeddingModel is the store metadata key holding the model the
// stored vectors were produced with.
const MetaEmbeddingModel = "embedding_model"

// ErrNoFiles is returned when the scan finds nothing to index.
var ErrNoFiles = errors.New("no indexable files found")

// Progress stages reported through ProgressFunc.
const (
	StageExtract = "Extracting chunks"
	StageEmbed   = "Embedding chunks"
	StageStore   = "Storing chunks"
)

// ProgressFunc receives the current stage and how far it has got.
type ProgressFunc func(stage string, done, total int)

// Extractor splits one file into chunks. A nil result with a nil error
// means the file type is not supported.
type Extractor interface {
	Extract(path string, src []byte) ([]chunker.Chunk, error)
}

// Config wires a Coordinator to its collaborators.
type Config struct {
	Store      store.Store
	Embedder   embedder.Embedder
	Extractor  Extractor
	LedgerPath string
	Scan       walker.Options
	Logger     *slog.Logger
}

// Options tune a single run.
type Options struct {
	// Force discards the store and ledger and indexes every file.
	Force      bool
	OnProgress ProgressFunc
	// Files is the result of a scan the caller already made of root. When
	// nil, Run scans root itself.
	Files []walker.FileInfo
}

// FileError records a file that could not be indexed.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e FileError) Unwrap() error { return e.Err }

// Result summarizes a run.
type Result struct {
	FilesScanned   int
	FilesProcessed int
	FilesRemoved   int
	FilesUnchanged int
	ChunksAdded    int
	Errors         []FileError
}

// Coordinator runs incremental indexing. Runs must not overlap.
type Coordinator struct {
	store     store.Store
	embedder  embedder.Embedder
	extractor Extractor
	ledger    string
	scan      walker.Options
	log       *slog.Logger
}

// New creates a Coordinator. A nil Logger means slog.Default().
func New(cfg Config) *Coordinator {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		store:     cfg.Store,
		embedder:  cfg.Embedder,
		extractor: cfg.Extractor,
		ledger:    cfg.LedgerPath,
		scan:      cfg.Scan,
		log:       log,
	}
}

// Run brings the store up to date with the tree at root.
func (c *Coordinator) Run(ctx context.Context, root string, opts Options) (*Result, error) {
	log := c.log.With("run", uuid.NewString(), "root", root)
	progress := opts.OnProgress
	if progress == nil {
		progress = func(string, int, int) {}
	}

	files := opts.Files
	if files == nil {
		var err error
		files, err = walker.Scan(root, c.scan)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", root, err)
		}
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	res := &Result{FilesScanned: len(files)}

	absPath := make(map[string]string, len(files))
	rels := make([]string, len(files))
	for i, f := range files {
		absPath[f.RelPath] = f.Path
		rels[i] = f.RelPath
	}
	digest := func(rel string) (string, error) {
		return ledger.FileDigest(absPath[rel])
	}

	led, err := ledger.Load(c.ledger)
	if err != nil {
		if !errors.Is(err, ledger.ErrCorrupt) {
			return nil, err
		}
		log.Warn("ledger unreadable, reindexing everything", "err", err)
		opts.Force = true
	}

	force, err := c.needsFullReindex(ctx, log, led, opts.Force)
	if err != nil {
		return nil, err
	}

	var diff ledger.Diff
	if force {
		if err := c.store.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clear store: %w", err)
		}
		// The ledger on disk must never list files the store lacks.
		if err := ledger.New(c.ledger).Persist(); err != nil {
			return nil, fmt.Errorf("reset ledger: %w", err)
		}
		entries := make(map[string]string, len(rels))
		for _, rel := range rels {
			sum, err := digest(rel)
			if err != nil {
				continue
			}
			entries[rel] = sum
			diff.Changed = append(diff.Changed, rel)
		}
		led.Replace(entries)
	} else {
		diff = led.Diff(rels, digest)
	}
	res.FilesUnchanged = len(diff.Unchanged)
	res.FilesRemoved = len(diff.Removed)

	log.Info("diffed tree",
		"files", len(files),
		"changed", len(diff.Changed),
		"removed", len(diff.Removed),
		"unchanged", len(diff.Unchanged),
		"force", force,
	)
	if diff.Empty() {
		return res, nil
	}

	if len(diff.Removed) > 0 {
		n, err := c.store.DeleteByFilePaths(ctx, diff.Removed)
		if err != nil {
			return nil, fmt.Errorf("delete removed files: %w", err)
		}
		log.Debug("deleted chunks of removed files", "files", len(diff.Removed), "chunks", n)
	}

	var chunks []chunker.Chunk
	for i, rel := range diff.Changed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		progress(StageExtract, i+1, len(diff.Changed))

		fileChunks, err := c.extract(absPath[rel], rel)
		if err != nil {
			log.Warn("skipping file", "path", rel, "err", err)
			res.Errors = append(res.Errors, FileError{Path: rel, Err: err})
			led.Forget(rel)
			continue
		}
		res.FilesProcessed++
		chunks = append(chunks, fileChunks...)
	}

	var vectors [][]float32
	if len(chunks) > 0 {
		progress(StageEmbed, 0, len(chunks))
		texts := make([]string, len(chunks))
		for i, ch := range chunks {
			texts[i] = embedder.SearchableText(ch)
		}
		vectors, err = c.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(chunks) {
			return nil, fmt.Errorf("%w: expected %d embeddings, got %d", embedder.ErrCountMismatch, len(chunks), len(vectors))
		}
		progress(StageEmbed, len(chunks), len(chunks))
	}

	// Failed files are included so their stale chunks go too.
	progress(StageStore, 0, len(chunks))
	if _, err := c.store.DeleteByFilePaths(ctx, diff.Changed); err != nil {
		return nil, fmt.Errorf("delete changed files: %w", err)
	}
	if err := c.store.Upsert(ctx, chunks, vectors); err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}
	res.ChunksAdded = len(chunks)
	progress(StageStore, len(chunks), len(chunks))

	if err := c.store.SetMeta(ctx, MetaEmbeddingModel, c.embedder.Model()); err != nil {
		return nil, fmt.Errorf("record embedding model: %w", err)
	}
	if err := led.Persist(); err != nil {
		return nil, fmt.Errorf("persist ledger: %w", err)
	}

	log.Info("indexed",
		"processed", res.FilesProcessed,
		"removed", res.FilesRemoved,
		"chunks", res.ChunksAdded,
		"errors", len(res.Errors),
	)
	return res, nil
}

// needsFullReindex decides whether the stored vectors can be reused.
func (c *Coordinator) needsFullReindex(ctx context.Context, log *slog.Logger, led *ledger.Ledger, force bool) (bool, error) {
	if force {
		return true, nil
	}
	stored, err := c.store.GetMeta(ctx, MetaEmbeddingModel)
	if err != nil {
		return false, fmt.Errorf("read embedding model: %w", err)
	}
	model := c.embedder.Model()
	switch {
	case stored != "" && stored != model:
		log.Info("embedding model changed, reindexing everything", "from", stored, "to", model)
		return true, nil
	case stored == "" && led.Len() > 0:
		// The ledger outlived the store it described.
		log.Info("ledger has no matching store, reindexing everything")
		return true, nil
	}
	return false, nil
}

func (c *Coordinator) extract(path, rel string) ([]chunker.Chunk, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return c.extractor.Extract(rel, src)
}

// Clear empties the store and the ledger.
func (c *Coordinator) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	if err := ledger.New(c.ledger).Persist(); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	c.log.Info("cleared index")
	return nil
}

// Status describes what is currently indexed.
type Status struct {
	Chunks         int
	Files          []store.FileSummary
	LedgerEntries  int
	EmbeddingModel string
}

// Status reads the store and ledger without changing them.
func (c *Coordinator) Status(ctx context.Context) (*Status, error) {
	n, err := c.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	files, err := c.store.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	model, err := c.store.GetMeta(ctx, MetaEmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("read embedding model: %w", err)
	}
	led, err := ledger.Load(c.ledger)
	if err != nil && !errors.Is(err, ledger.ErrCorrupt) {
		return nil, err
	}
	return &Status{
		Chunks:         n,
		Files:          files,
		LedgerEntries:  led.Len(),
		EmbeddingModel: model,
	}, nil
}
