// Package index stores chunk embeddings and serves nearest-neighbor
// searches over them. Two backends exist: an embedded SQLite index persisted
// under a local directory, and a Postgres index using the pgvector
// extension. Both pin the embedding model and dimension to the stored data
// and refuse to mix vectors from a different model.
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/tusiim3/RAG-Document-System/config"
)

var (
	// ErrDimensionMismatch reports a vector whose length differs from the
	// dimension the index was built with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrModelMismatch reports an index previously populated by a different
	// embedding model.
	ErrModelMismatch = errors.New("embedding model mismatch")
)

// Entry is one indexed chunk: its vector, original text, and the source
// document it came from.
type Entry struct {
	Vector  []float32
	Content string
	Source  string
}

// Result is a search hit. Distance is in the index's metric; results are
// ordered by ascending distance, nearest first.
type Result struct {
	Content  string
	Source   string
	Distance float64
}

// Stats describes the current state of an index.
type Stats struct {
	Count     int
	Location  string
	Model     string
	Dimension int
	Metric    string
}

// Index persists chunk embeddings and answers nearest-neighbor queries.
//
// Add is all-or-nothing: either every entry in the batch is stored or none
// is. Entries whose source already exists in the index replace that source's
// previous chunks within the same transaction. Search on an empty index
// returns an empty slice, not an error. Clear is idempotent and also
// releases the model pin, so a cleared index accepts a new embedding model.
type Index interface {
	Add(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, vector []float32, k int) ([]Result, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Open builds the index backend selected by the configuration, pinned to
// the given embedding model and dimension. Opening an existing index that
// was populated by a different model fails.
func Open(ctx context.Context, cfg config.Config, model string, dimension int) (Index, error) {
	switch cfg.IndexBackend {
	case config.BackendSQLite:
		return OpenSQLite(cfg.IndexDir, model, dimension)
	case config.BackendPostgres:
		return OpenPostgres(ctx, cfg.PostgresDSN, model, dimension)
	default:
		return nil, fmt.Errorf("unknown index backend: %s", cfg.IndexBackend)
	}
}
