package store

import (
	"context"
	"database/sql"
	"fmt"
)

const ddl = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS chunks (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT NOT NULL UNIQUE,
    file_path  TEXT NOT NULL,
    kind       TEXT NOT NULL,
    name       TEXT NOT NULL DEFAULT '',
    start_line INTEGER NOT NULL,
    end_line   INTEGER NOT NULL,
    content    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON chunks(file_path);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// The vector table is created on first upsert, once the embedding width is
// known. Its rowid is the chunk's seq.
const vecTableDDL = `CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    chunk_seq INTEGER PRIMARY KEY,
    embedding float[%d]
)`

// Init creates the schema tables if they don't exist.
func Init(db *sql.DB) error {
	_, err := db.Exec(ddl)
	return err
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func hasVecTable(ctx context.Context, q querier) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'vec_chunks'").Scan(&n)
	return n > 0, err
}

func createVecTable(ctx context.Context, q querier, dims int) error {
	_, err := q.ExecContext(ctx, fmt.Sprintf(vecTableDDL, dims))
	return err
}
