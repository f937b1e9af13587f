package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"coderag/internal/chunker"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

const (
	metaEmbeddingDims = "embedding_dims"
	// deleteBatch bounds the number of bound parameters per statement.
	deleteBatch = 500
	// maxK is the largest k sqlite-vec accepts in a KNN query.
	maxK = 4096
)

// ErrDimensionMismatch is returned when a vector's width differs from the
// width the index was created with.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Store provides persistence for chunks and their embeddings.
type Store interface {
	// Upsert writes chunks with their vectors. Writing a chunk id that
	// already exists replaces its content, metadata and vector.
	Upsert(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) error
	// DeleteByFilePaths removes every chunk whose file path is in paths and
	// returns how many were removed.
	DeleteByFilePaths(ctx context.Context, paths []string) (int, error)
	// Clear removes all chunks and vectors.
	Clear(ctx context.Context) error
	// Query returns the k chunks closest to vector, nearest first.
	Query(ctx context.Context, vector []float32, k int) ([]SearchResult, error)
	// GetMeta returns a metadata value by key, or "" if not set.
	GetMeta(ctx context.Context, key string) (string, error)
	// SetMeta sets a metadata key-value pair.
	SetMeta(ctx context.Context, key, value string) error
	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
	// ListFiles returns each stored file path with its chunk count.
	ListFiles(ctx context.Context) ([]FileSummary, error)
	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite + sqlite-vec.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// Open creates or opens a SQLite database at the given path and initializes the schema.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; runs are serialized anyway.
	db.SetMaxOpenConns(1)
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatched chunks (%d) and vectors (%d)", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}
	dims := len(vectors[0])
	if dims == 0 {
		return fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), dims)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := ensureVecTable(ctx, tx, dims); err != nil {
		return err
	}

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, file_path, kind, name, start_line, end_line, content)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_path = excluded.file_path,
			kind = excluded.kind,
			name = excluded.name,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			content = excluded.content`)
	if err != nil {
		return err
	}
	defer upsert.Close()

	seqStmt, err := tx.PrepareContext(ctx, "SELECT seq FROM chunks WHERE id = ?")
	if err != nil {
		return err
	}
	defer seqStmt.Close()

	delVec, err := tx.PrepareContext(ctx, "DELETE FROM vec_chunks WHERE chunk_seq = ?")
	if err != nil {
		return err
	}
	defer delVec.Close()

	insVec, err := tx.PrepareContext(ctx, "INSERT INTO vec_chunks (chunk_seq, embedding) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer insVec.Close()

	for i, c := range chunks {
		id := c.ID()
		if _, err := upsert.ExecContext(ctx, id, c.FilePath, string(c.Kind), c.Name, c.StartLine, c.EndLine, c.Content); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", id, err)
		}
		var seq int64
		if err := seqStmt.QueryRowContext(ctx, id).Scan(&seq); err != nil {
			return fmt.Errorf("lookup chunk %s: %w", id, err)
		}
		blob, err := sqlite_vec.SerializeFloat32(vectors[i])
		if err != nil {
			return fmt.Errorf("serialize embedding for chunk %s: %w", id, err)
		}
		if _, err := delVec.ExecContext(ctx, seq); err != nil {
			return fmt.Errorf("replace embedding for chunk %s: %w", id, err)
		}
		if _, err := insVec.ExecContext(ctx, seq, blob); err != nil {
			return fmt.Errorf("insert embedding for chunk %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// ensureVecTable creates the vector table on first use and rejects vectors
// whose width differs from the recorded one.
func ensureVecTable(ctx context.Context, q querier, dims int) error {
	stored, err := getMeta(ctx, q, metaEmbeddingDims)
	if err != nil {
		return err
	}
	if stored != "" {
		n, err := strconv.Atoi(stored)
		if err != nil {
			return fmt.Errorf("parse stored embedding dims %q: %w", stored, err)
		}
		if n != dims {
			return fmt.Errorf("%w: index has %d dimensions, got %d", ErrDimensionMismatch, n, dims)
		}
	}
	if err := createVecTable(ctx, q, dims); err != nil {
		return fmt.Errorf("create vector table: %w", err)
	}
	if stored == "" {
		return setMeta(ctx, q, metaEmbeddingDims, strconv.Itoa(dims))
	}
	return nil
}

func (s *SQLiteStore) DeleteByFilePaths(ctx context.Context, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	hasVec, err := hasVecTable(ctx, tx)
	if err != nil {
		return 0, err
	}

	total := 0
	for start := 0; start < len(paths); start += deleteBatch {
		batch := paths[start:min(start+deleteBatch, len(paths))]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		args := make([]any, len(batch))
		for i, p := range batch {
			args[i] = p
		}

		if hasVec {
			seqs, err := chunkSeqs(ctx, tx, "SELECT seq FROM chunks WHERE file_path IN ("+placeholders+")", args...)
			if err != nil {
				return 0, err
			}
			for _, seq := range seqs {
				if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks WHERE chunk_seq = ?", seq); err != nil {
					return 0, fmt.Errorf("delete embedding %d: %w", seq, err)
				}
			}
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE file_path IN ("+placeholders+")", args...)
		if err != nil {
			return 0, fmt.Errorf("delete chunks: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func chunkSeqs(ctx context.Context, q querier, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seqs []int64
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		seqs = append(seqs, seq)
	}
	return seqs, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return err
	}
	// Dropping the table lets the next upsert pick a new width.
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS vec_chunks"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM meta WHERE key = ?", metaEmbeddingDims); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Query(ctx context.Context, vector []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	k = min(k, maxK)

	hasVec, err := hasVecTable(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if !hasVec {
		return nil, nil
	}

	stored, err := getMeta(ctx, s.db, metaEmbeddingDims)
	if err != nil {
		return nil, err
	}
	if stored != "" && stored != strconv.Itoa(len(vector)) {
		return nil, fmt.Errorf("%w: index has %s dimensions, query has %d", ErrDimensionMismatch, stored, len(vector))
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		WITH knn AS (
			SELECT chunk_seq, distance
			FROM vec_chunks
			WHERE embedding MATCH ? AND k = ?
		)
		SELECT c.file_path, c.kind, c.name, c.start_line, c.end_line, c.content, knn.distance
		FROM knn
		JOIN chunks c ON c.seq = knn.chunk_seq
		ORDER BY knn.distance, c.id
	`, blob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var kind string
		err := rows.Scan(
			&r.Chunk.FilePath, &kind, &r.Chunk.Name,
			&r.Chunk.StartLine, &r.Chunk.EndLine, &r.Chunk.Content,
			&r.Distance,
		)
		if err != nil {
			return nil, err
		}
		r.Chunk.Kind = chunker.Kind(kind)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, error) {
	return getMeta(ctx, s.db, key)
}

func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	return setMeta(ctx, s.db, key, value)
}

func getMeta(ctx context.Context, q querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func setMeta(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

func (s *SQLiteStore) ListFiles(ctx context.Context) ([]FileSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT file_path, COUNT(*) FROM chunks GROUP BY file_path ORDER BY file_path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []FileSummary
	for rows.Next() {
		var f FileSummary
		if err := rows.Scan(&f.Path, &f.Chunks); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
