package pipeline

import (
	"context"
	"fmt"

	"github.com/tusiim3/RAG-Document-System/embeddings"
	"github.com/tusiim3/RAG-Document-System/index"
)

const defaultRetrievalK = 5

// Retriever embeds a question and returns the k nearest chunks from the
// index, in the index's own distance order. No re-ranking is applied.
type Retriever struct {
	embedder embeddings.Embedder
	index    index.Index
	k        int
}

func NewRetriever(embedder embeddings.Embedder, idx index.Index, k int) *Retriever {
	if k <= 0 {
		k = defaultRetrievalK
	}
	return &Retriever{embedder: embedder, index: idx, k: k}
}

func (r *Retriever) Retrieve(ctx context.Context, question string) ([]index.Result, error) {
	vector, err := embeddings.EmbedOne(ctx, r.embedder, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	results, err := r.index.Search(ctx, vector, r.k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return results, nil
}
