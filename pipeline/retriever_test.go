package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/tusiim3/RAG-Document-System/index"
)

func TestRetrieverReturnsKNearest(t *testing.T) {
	idx := &stubIndex{}
	for i := 0; i < 10; i++ {
		idx.entries = append(idx.entries, index.Entry{
			Vector:  []float32{1, 0, 0},
			Content: fmt.Sprintf("chunk %d", i),
			Source:  "doc.txt",
		})
	}

	r := NewRetriever(&stubEmbedder{dimension: 3}, idx, 3)
	results, err := r.Retrieve(context.Background(), "question?")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Fatalf("results not in ascending distance order: %v", results)
		}
	}
}

func TestRetrieverDefaultsK(t *testing.T) {
	r := NewRetriever(&stubEmbedder{dimension: 3}, &stubIndex{}, 0)
	if r.k != defaultRetrievalK {
		t.Fatalf("expected default k %d, got %d", defaultRetrievalK, r.k)
	}
}

func TestRetrieverEmbedFailure(t *testing.T) {
	embedder := &stubEmbedder{dimension: 3, err: fmt.Errorf("unreachable")}
	r := NewRetriever(embedder, &stubIndex{}, 5)

	if _, err := r.Retrieve(context.Background(), "question?"); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}
