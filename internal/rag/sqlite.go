package rag

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// SQLiteStore is a VectorStore persisted in a local SQLite file. Similarity
// is computed in process by cosine distance over every candidate row, which
// is adequate for a single user's local corpus.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB

	// path is the database location, kept for logging.
	path string
}

// DefaultDBPath returns the default location of the local knowledge store,
// ~/.kbai/knowledge.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("rag: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".kbai")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("rag: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "knowledge.db"), nil
}

// OpenSQLite opens (or creates) a SQLiteStore at path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStoreUnavailable, path, err)
	}
	// One connection: single writer, and ":memory:" databases are per-connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return s, nil
}

// Path returns the database location.
func (s *SQLiteStore) Path() string { return s.path }

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS chunks (
    id          TEXT    PRIMARY KEY,
    kind        TEXT    NOT NULL,
    content     TEXT    NOT NULL,
    payload     TEXT    NOT NULL,  -- JSON object of string metadata
    embedding   BLOB    NOT NULL,  -- little-endian float32 vector
    created_at  INTEGER NOT NULL   -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_chunks_kind ON chunks (kind);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("rag: sqlite migrate: %w", err)
	}
	return nil
}

// Add inserts docs in a single transaction. Existing IDs are ignored so a
// stored chunk is never rewritten.
func (s *SQLiteStore) Add(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("rag: sqlite add: %d documents but %d embeddings", len(docs), len(embeddings))
	}
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rag: sqlite add: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT OR IGNORE INTO chunks (id, kind, content, payload, embedding, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("rag: sqlite add: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for i := range docs {
		payload, err := json.Marshal(docs[i].Payload())
		if err != nil {
			return fmt.Errorf("rag: sqlite add: encode payload for %s: %w", docs[i].ID, err)
		}
		if _, err := stmt.ExecContext(ctx, docs[i].ID, string(docs[i].Kind), docs[i].Content,
			string(payload), encodeVector(embeddings[i]), now); err != nil {
			return fmt.Errorf("rag: sqlite add %s: %w", docs[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rag: sqlite add: commit: %w", err)
	}
	return nil
}

// IDs returns every stored chunk ID.
func (s *SQLiteStore) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("rag: sqlite ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("rag: sqlite ids scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rag: sqlite ids rows: %w", err)
	}
	return ids, nil
}

// Query scores every row that satisfies filter and returns the topK most
// similar by cosine similarity, highest first.
func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, topK int, filter *Filter) ([]Document, error) {
	q := `SELECT id, content, payload, embedding FROM chunks`
	var args []any
	if filter != nil && filter.Field == MetaType {
		q += ` WHERE kind = ?`
		args = append(args, filter.Value)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("rag: sqlite query: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id, content, rawPayload string
		var blob []byte
		if err := rows.Scan(&id, &content, &rawPayload, &blob); err != nil {
			return nil, fmt.Errorf("rag: sqlite query scan: %w", err)
		}
		payload := map[string]string{}
		if err := json.Unmarshal([]byte(rawPayload), &payload); err != nil {
			return nil, fmt.Errorf("rag: sqlite query: decode payload for %s: %w", id, err)
		}
		if !filter.Matches(payload) {
			continue
		}
		doc := documentFromPayload(id, content, payload)
		doc.Score = cosine(embedding, decodeVector(blob))
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rag: sqlite query rows: %w", err)
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
	if topK > 0 && len(docs) > topK {
		docs = docs[:topK]
	}
	return docs, nil
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("rag: sqlite count: %w", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("rag: sqlite ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("rag: sqlite close: %w", err)
	}
	return nil
}

// encodeVector packs v as little-endian float32 values.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeVector is the inverse of encodeVector. Trailing bytes are ignored.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

// cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the dimensions differ.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
