package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/tusiim3/RAG-Document-System/database"
)

// PostgresIndex stores chunk embeddings in Postgres with the pgvector
// extension. Distance is L2 via the `<->` operator, served by an ivfflat
// index.
type PostgresIndex struct {
	pool      *pgxpool.Pool
	location  string
	model     string
	dimension int
}

// OpenPostgres connects to the database, ensures the schema exists, and
// verifies any pinned model metadata against the requested model.
func OpenPostgres(ctx context.Context, dsn, model string, dimension int) (*PostgresIndex, error) {
	pool, err := database.NewPostgresPool(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := database.EnsureIndexSchema(ctx, pool, dimension); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure index schema: %w", err)
	}

	idx := &PostgresIndex{
		pool:      pool,
		location:  describeDSN(dsn),
		model:     model,
		dimension: dimension,
	}

	if err := idx.checkMeta(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return idx, nil
}

func (p *PostgresIndex) checkMeta(ctx context.Context) error {
	var model string
	var dimension int
	err := p.pool.QueryRow(ctx, "SELECT model, dimension FROM rag_index_meta WHERE id = 1").Scan(&model, &dimension)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read index metadata: %w", err)
	}

	if model != p.model {
		return fmt.Errorf("index was built with model %q, configured model is %q: %w", model, p.model, ErrModelMismatch)
	}
	if dimension != p.dimension {
		return fmt.Errorf("index has dimension %d, configured dimension is %d: %w", dimension, p.dimension, ErrDimensionMismatch)
	}
	return nil
}

func (p *PostgresIndex) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, entry := range entries {
		if len(entry.Vector) != p.dimension {
			return fmt.Errorf("add chunk for %s: expected dimension %d, got %d: %w", entry.Source, p.dimension, len(entry.Vector), ErrDimensionMismatch)
		}
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO rag_index_meta (id, model, dimension) VALUES (1, $1, $2)
		ON CONFLICT (id) DO NOTHING
	`, p.model, p.dimension); err != nil {
		return fmt.Errorf("pin index metadata: %w", err)
	}

	// Re-ingesting a source replaces its previous chunks.
	seen := make(map[string]struct{}, 1)
	for _, entry := range entries {
		if _, ok := seen[entry.Source]; ok {
			continue
		}
		seen[entry.Source] = struct{}{}
		if _, err := tx.Exec(ctx, "DELETE FROM rag_chunks WHERE source = $1", entry.Source); err != nil {
			return fmt.Errorf("replace chunks for %s: %w", entry.Source, err)
		}
	}

	counters := make(map[string]int, len(seen))
	for _, entry := range entries {
		idx := counters[entry.Source]
		counters[entry.Source] = idx + 1

		if _, err := tx.Exec(ctx, `
			INSERT INTO rag_chunks (id, source, chunk_index, content, embedding)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New(), entry.Source, idx, entry.Content, pgvector.NewVector(entry.Vector)); err != nil {
			return fmt.Errorf("insert chunk %d of %s: %w", idx, entry.Source, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (p *PostgresIndex) Search(ctx context.Context, vector []float32, k int) ([]Result, error) {
	if len(vector) != p.dimension {
		return nil, fmt.Errorf("query vector has dimension %d, index expects %d: %w", len(vector), p.dimension, ErrDimensionMismatch)
	}
	if k <= 0 {
		k = 5
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	probes := k * 10
	if probes < 10 {
		probes = 10
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET ivfflat.probes = %d", probes)); err != nil {
		return nil, fmt.Errorf("set ivfflat probes: %w", err)
	}

	rows, err := conn.Query(ctx, `
		SELECT content, source, (embedding <-> $1::vector) AS distance
		FROM rag_chunks
		ORDER BY embedding <-> $1::vector
		LIMIT $2
	`, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		var item Result
		if err := rows.Scan(&item.Content, &item.Source, &item.Distance); err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		results = append(results, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return results, nil
}

func (p *PostgresIndex) Clear(ctx context.Context) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE rag_chunks"); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM rag_index_meta"); err != nil {
		return fmt.Errorf("clear index metadata: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (p *PostgresIndex) Stats(ctx context.Context) (Stats, error) {
	var count int
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM rag_chunks").Scan(&count); err != nil {
		return Stats{}, fmt.Errorf("count chunks: %w", err)
	}

	return Stats{
		Count:     count,
		Location:  p.location,
		Model:     p.model,
		Dimension: p.dimension,
		Metric:    "l2",
	}, nil
}

// describeDSN reduces a connection string to host, port, and database for
// display. Stats flow into system info and the HTTP API, so credentials
// embedded in the DSN must not appear there.
func describeDSN(dsn string) string {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return "postgres"
	}
	return fmt.Sprintf("postgres://%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
}

func (p *PostgresIndex) Close() error {
	p.pool.Close()
	return nil
}

var _ Index = (*PostgresIndex)(nil)
