package index

import (
	"context"
	"errors"
	"testing"
)

func openTestIndex(t *testing.T, dir string) *SQLiteIndex {
	t.Helper()
	idx, err := OpenSQLite(dir, "test-model", 3)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestSQLiteSearchOrdersByDistance(t *testing.T) {
	idx := openTestIndex(t, t.TempDir())
	ctx := context.Background()

	entries := []Entry{
		{Vector: []float32{1, 0, 0}, Content: "exact match", Source: "a.txt"},
		{Vector: []float32{0.9, 0.1, 0}, Content: "near match", Source: "a.txt"},
		{Vector: []float32{0, 1, 0}, Content: "orthogonal", Source: "a.txt"},
	}
	if err := idx.Add(ctx, entries); err != nil {
		t.Fatalf("add: %v", err)
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Content != "exact match" {
		t.Fatalf("expected nearest first, got %q", results[0].Content)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Fatalf("results not ordered by ascending distance: %v", results)
		}
	}
}

func TestSQLiteSearchClipsToK(t *testing.T) {
	idx := openTestIndex(t, t.TempDir())
	ctx := context.Background()

	entries := make([]Entry, 10)
	for i := range entries {
		entries[i] = Entry{Vector: []float32{float32(i + 1), 1, 0}, Content: "chunk", Source: "a.txt"}
	}
	if err := idx.Add(ctx, entries); err != nil {
		t.Fatalf("add: %v", err)
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 4)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
}

func TestSQLiteSearchEmptyIndex(t *testing.T) {
	idx := openTestIndex(t, t.TempDir())

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results on empty index, got %d", len(results))
	}
}

func TestSQLiteDimensionMismatch(t *testing.T) {
	idx := openTestIndex(t, t.TempDir())
	ctx := context.Background()

	err := idx.Add(ctx, []Entry{{Vector: []float32{1, 0}, Content: "short", Source: "a.txt"}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch on add, got %v", err)
	}

	_, err = idx.Search(ctx, []float32{1, 0, 0, 0}, 5)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch on search, got %v", err)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx := openTestIndex(t, dir)
	entries := []Entry{
		{Vector: []float32{1, 0, 0}, Content: "first", Source: "a.txt"},
		{Vector: []float32{0, 1, 0}, Content: "second", Source: "a.txt"},
	}
	if err := idx.Add(ctx, entries); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openTestIndex(t, dir)
	stats, err := reopened.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Count != 2 {
		t.Fatalf("expected 2 chunks after reopen, got %d", stats.Count)
	}

	results, err := reopened.Search(ctx, []float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Content != "first" {
		t.Fatalf("unexpected search result after reopen: %v", results)
	}
}

func TestSQLiteModelPin(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx := openTestIndex(t, dir)
	if err := idx.Add(ctx, []Entry{{Vector: []float32{1, 0, 0}, Content: "pinned", Source: "a.txt"}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	idx.Close()

	_, err := OpenSQLite(dir, "other-model", 3)
	if !errors.Is(err, ErrModelMismatch) {
		t.Fatalf("expected ErrModelMismatch, got %v", err)
	}

	_, err = OpenSQLite(dir, "test-model", 4)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSQLiteClearReleasesModelPin(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx := openTestIndex(t, dir)
	if err := idx.Add(ctx, []Entry{{Vector: []float32{1, 0, 0}, Content: "pinned", Source: "a.txt"}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := idx.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	// Clearing an already empty index is fine.
	if err := idx.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	stats, err := idx.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Count != 0 {
		t.Fatalf("expected empty index after clear, got %d chunks", stats.Count)
	}
	idx.Close()

	// A cleared index accepts a different model.
	reopened, err := OpenSQLite(dir, "other-model", 3)
	if err != nil {
		t.Fatalf("reopen with new model after clear: %v", err)
	}
	reopened.Close()
}

func TestSQLiteReingestReplacesSource(t *testing.T) {
	idx := openTestIndex(t, t.TempDir())
	ctx := context.Background()

	first := []Entry{
		{Vector: []float32{1, 0, 0}, Content: "old version", Source: "doc.txt"},
		{Vector: []float32{0, 1, 0}, Content: "old tail", Source: "doc.txt"},
	}
	if err := idx.Add(ctx, first); err != nil {
		t.Fatalf("first add: %v", err)
	}

	second := []Entry{
		{Vector: []float32{0, 0, 1}, Content: "new version", Source: "doc.txt"},
	}
	if err := idx.Add(ctx, second); err != nil {
		t.Fatalf("second add: %v", err)
	}

	stats, err := idx.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Count != 1 {
		t.Fatalf("expected replacement to leave 1 chunk, got %d", stats.Count)
	}

	results, err := idx.Search(ctx, []float32{0, 0, 1}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Content != "new version" {
		t.Fatalf("expected only the new version, got %v", results)
	}
}

func TestSQLiteAddKeepsOtherSources(t *testing.T) {
	idx := openTestIndex(t, t.TempDir())
	ctx := context.Background()

	if err := idx.Add(ctx, []Entry{{Vector: []float32{1, 0, 0}, Content: "a", Source: "a.txt"}}); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if err := idx.Add(ctx, []Entry{{Vector: []float32{0, 1, 0}, Content: "b", Source: "b.txt"}}); err != nil {
		t.Fatalf("add b: %v", err)
	}

	stats, err := idx.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Count != 2 {
		t.Fatalf("expected chunks from both sources, got %d", stats.Count)
	}
}

func TestCosineDistance(t *testing.T) {
	if d := cosineDistance([]float32{1, 0}, []float32{1, 0}); d > 1e-9 {
		t.Fatalf("identical vectors should have distance 0, got %f", d)
	}
	if d := cosineDistance([]float32{1, 0}, []float32{0, 1}); d != 1 {
		t.Fatalf("orthogonal vectors should have distance 1, got %f", d)
	}
	if d := cosineDistance([]float32{0, 0}, []float32{1, 0}); d != 1 {
		t.Fatalf("zero vector should be maximally distant, got %f", d)
	}
}
