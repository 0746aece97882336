package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const sqliteFileName = "index.db"

// SQLiteIndex is an embedded vector index persisted as a SQLite database
// under a local directory. Similarity is brute-force cosine distance, which
// is adequate for single-user document sets.
type SQLiteIndex struct {
	db        *sql.DB
	dir       string
	model     string
	dimension int
}

// OpenSQLite opens the index stored under dir, creating the directory and
// schema when absent. If the stored data was embedded with a different
// model or dimension than requested, opening fails rather than serving
// garbage-ranked results later.
func OpenSQLite(dir, model string, dimension int) (*SQLiteIndex, error) {
	if dir == "" {
		dir = "./index_db"
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, sqliteFileName))
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}

	idx := &SQLiteIndex{
		db:        db,
		dir:       dir,
		model:     model,
		dimension: dimension,
	}

	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize index schema: %w", err)
	}

	if err := idx.checkMeta(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return idx, nil
}

func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
	CREATE TABLE IF NOT EXISTS index_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		model TEXT NOT NULL,
		dimension INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// checkMeta compares the pinned model and dimension against this index
// instance. The pin is written on first Add and removed by Clear.
func (s *SQLiteIndex) checkMeta(ctx context.Context) error {
	var model string
	var dimension int
	err := s.db.QueryRowContext(ctx, "SELECT model, dimension FROM index_meta WHERE id = 1").Scan(&model, &dimension)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read index metadata: %w", err)
	}

	if model != s.model {
		return fmt.Errorf("index at %s was built with model %q, configured model is %q: %w", s.dir, model, s.model, ErrModelMismatch)
	}
	if dimension != s.dimension {
		return fmt.Errorf("index at %s has dimension %d, configured dimension is %d: %w", s.dir, dimension, s.dimension, ErrDimensionMismatch)
	}
	return nil
}

func (s *SQLiteIndex) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, entry := range entries {
		if len(entry.Vector) != s.dimension {
			return fmt.Errorf("add chunk for %s: expected dimension %d, got %d: %w", entry.Source, s.dimension, len(entry.Vector), ErrDimensionMismatch)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO index_meta (id, model, dimension) VALUES (1, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, s.model, s.dimension); err != nil {
		return fmt.Errorf("pin index metadata: %w", err)
	}

	// Re-ingesting a source replaces its previous chunks.
	seen := make(map[string]struct{}, 1)
	for _, entry := range entries {
		if _, ok := seen[entry.Source]; ok {
			continue
		}
		seen[entry.Source] = struct{}{}
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source = ?", entry.Source); err != nil {
			return fmt.Errorf("replace chunks for %s: %w", entry.Source, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source, chunk_index, content, embedding)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	counters := make(map[string]int, len(seen))
	for _, entry := range entries {
		embedding, err := json.Marshal(entry.Vector)
		if err != nil {
			return fmt.Errorf("encode embedding: %w", err)
		}

		idx := counters[entry.Source]
		counters[entry.Source] = idx + 1

		if _, err := stmt.ExecContext(ctx, uuid.NewString(), entry.Source, idx, entry.Content, embedding); err != nil {
			return fmt.Errorf("insert chunk %d of %s: %w", idx, entry.Source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Search(ctx context.Context, vector []float32, k int) ([]Result, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query vector has dimension %d, index expects %d: %w", len(vector), s.dimension, ErrDimensionMismatch)
	}
	if k <= 0 {
		k = 5
	}

	rows, err := s.db.QueryContext(ctx, "SELECT content, source, embedding FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		var content, source string
		var embedding []byte
		if err := rows.Scan(&content, &source, &embedding); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}

		var stored []float32
		if err := json.Unmarshal(embedding, &stored); err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", source, err)
		}

		results = append(results, Result{
			Content:  content,
			Source:   source,
			Distance: cosineDistance(vector, stored),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *SQLiteIndex) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM index_meta"); err != nil {
		return fmt.Errorf("clear index metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Stats(ctx context.Context) (Stats, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return Stats{}, fmt.Errorf("count chunks: %w", err)
	}

	return Stats{
		Count:     count,
		Location:  s.dir,
		Model:     s.model,
		Dimension: s.dimension,
		Metric:    "cosine",
	}, nil
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// cosineDistance is 1 - cosine similarity, so identical directions score 0
// and orthogonal vectors score 1. Zero vectors are treated as maximally
// distant.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

var _ Index = (*SQLiteIndex)(nil)
