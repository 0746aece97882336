// Package pipeline wires the chunker, embedder, vector index, and
// completion model into the ingest/ask lifecycle. The pipeline is stateless
// across calls apart from the persisted index: it is empty until a first
// successful ingest, ready afterwards, and empty again after a clear.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/tusiim3/RAG-Document-System/config"
	"github.com/tusiim3/RAG-Document-System/document"
	"github.com/tusiim3/RAG-Document-System/embeddings"
	"github.com/tusiim3/RAG-Document-System/index"
	"github.com/tusiim3/RAG-Document-System/llm"
)

// NoDocumentMessage is returned by Ask while nothing has been ingested.
// It is a precondition response, not an error: no model call is made.
const NoDocumentMessage = "Please provide a document first before asking questions."

// ErrEmptyQuestion reports an Ask call with a blank question. It is a
// caller error, distinct from the storage and model failures Ask can hit.
var ErrEmptyQuestion = errors.New("question cannot be empty")

// Answer carries the generated text and the chunks it was grounded in.
type Answer struct {
	Text    string
	Sources []index.Result
}

// IngestStats summarizes one ingest for display.
type IngestStats struct {
	Chunks     int
	TotalChars int
	MinChunk   int
	MaxChunk   int
	AvgChunk   int
}

// SystemInfo is a snapshot of configuration, component state, and index
// stats.
type SystemInfo struct {
	ChunkSize          int
	ChunkOverlap       int
	EmbeddingProvider  string
	EmbeddingModel     string
	EmbeddingDimension int
	LLMProvider        string
	LLMModel           string
	Temperature        float32
	RetrievalK         int
	Ready              bool
	Components         map[string]bool
	Index              index.Stats
}

type Pipeline struct {
	cfg       config.Config
	embedder  embeddings.Embedder
	index     index.Index
	retriever *Retriever
	generator *Generator
	logger    *log.Logger
}

// New validates the configuration and constructs every component. Any
// failure here is fatal: a half-configured pipeline must not be usable.
func New(ctx context.Context, cfg config.Config, logger *log.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedder setup: %w", err)
	}

	idx, err := index.Open(ctx, cfg, embedder.Model(), embedder.Dimension())
	if err != nil {
		return nil, fmt.Errorf("index setup: %w", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("llm setup: %w", err)
	}

	return newPipeline(cfg, embedder, idx, llmClient, logger), nil
}

func newPipeline(cfg config.Config, embedder embeddings.Embedder, idx index.Index, llmClient llm.Client, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}

	return &Pipeline{
		cfg:       cfg,
		embedder:  embedder,
		index:     idx,
		retriever: NewRetriever(embedder, idx, cfg.RetrievalK),
		generator: NewGenerator(llmClient),
		logger:    logger,
	}
}

// Ingest chunks the content, embeds every chunk, and stores the batch in
// the index. The stages short-circuit: the first failure aborts the whole
// ingest, and the index's transactional Add prevents partial indexing.
// Ingesting a source that already exists replaces its previous chunks.
func (p *Pipeline) Ingest(ctx context.Context, content, source string) (IngestStats, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return IngestStats{}, fmt.Errorf("source identifier cannot be empty")
	}

	doc := document.Document{Source: source, Content: content}
	chunks := document.SplitDocument(doc, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return IngestStats{}, fmt.Errorf("document %s produced no chunks", source)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return IngestStats{}, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return IngestStats{}, fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(chunks), len(vectors))
	}

	entries := make([]index.Entry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = index.Entry{
			Vector:  vectors[i],
			Content: chunk.Content,
			Source:  chunk.Source,
		}
	}

	if err := p.index.Add(ctx, entries); err != nil {
		return IngestStats{}, fmt.Errorf("add to index: %w", err)
	}

	stats := summarizeChunks(chunks)
	p.logger.Printf("ingested %s (%d chunks, %d chars)", source, stats.Chunks, stats.TotalChars)
	return stats, nil
}

// IngestFile loads a document from disk and ingests it.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (IngestStats, error) {
	doc, err := document.LoadFile(path)
	if err != nil {
		return IngestStats{}, err
	}
	return p.Ingest(ctx, doc.Content, doc.Source)
}

// Ask answers a question from the indexed documents. Before any ingest it
// returns the fixed precondition message without calling the model. A
// failing model call degrades to an error-describing answer with no
// sources; conversational flow is never interrupted by a model hiccup.
func (p *Pipeline) Ask(ctx context.Context, question string) (Answer, error) {
	return p.ask(ctx, question, nil)
}

// AskStream behaves like Ask but delivers the answer text incrementally
// through fn: completion deltas when the model streams, otherwise the whole
// text in one call. The precondition message and degraded error answers go
// through fn too, so callers render every outcome the same way.
func (p *Pipeline) AskStream(ctx context.Context, question string, fn func(string) error) (Answer, error) {
	return p.ask(ctx, question, fn)
}

func (p *Pipeline) ask(ctx context.Context, question string, fn func(string) error) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}

	stats, err := p.index.Stats(ctx)
	if err != nil {
		return Answer{}, fmt.Errorf("index stats: %w", err)
	}
	if stats.Count == 0 {
		if fn != nil {
			if err := fn(NoDocumentMessage); err != nil {
				return Answer{}, err
			}
		}
		return Answer{Text: NoDocumentMessage}, nil
	}

	results, err := p.retriever.Retrieve(ctx, question)
	if err != nil {
		return Answer{}, err
	}

	text, err := p.generator.AnswerStream(ctx, question, results, fn)
	if err != nil {
		p.logger.Printf("generate answer: %v", err)
		text = fmt.Sprintf("Error generating answer: %v", err)
		if fn != nil {
			if fnErr := fn(text); fnErr != nil {
				return Answer{}, fnErr
			}
		}
		return Answer{Text: text}, nil
	}

	return Answer{Text: text, Sources: results}, nil
}

// Clear removes every indexed chunk. The next Ask returns the precondition
// message again.
func (p *Pipeline) Clear(ctx context.Context) error {
	if err := p.index.Clear(ctx); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	p.logger.Printf("knowledge base cleared")
	return nil
}

// SystemInfo reports the active configuration and index state.
func (p *Pipeline) SystemInfo(ctx context.Context) (SystemInfo, error) {
	stats, err := p.index.Stats(ctx)
	if err != nil {
		return SystemInfo{}, fmt.Errorf("index stats: %w", err)
	}

	return SystemInfo{
		ChunkSize:          p.cfg.ChunkSize,
		ChunkOverlap:       p.cfg.ChunkOverlap,
		EmbeddingProvider:  p.cfg.Embeddings.Provider,
		EmbeddingModel:     p.embedder.Model(),
		EmbeddingDimension: p.embedder.Dimension(),
		LLMProvider:        p.cfg.LLM.Provider,
		LLMModel:           p.cfg.LLM.Model,
		Temperature:        p.cfg.LLM.Temperature,
		RetrievalK:         p.cfg.RetrievalK,
		Ready:              stats.Count > 0,
		Components: map[string]bool{
			"embedder":  p.embedder != nil,
			"index":     p.index != nil,
			"retriever": p.retriever != nil,
			"generator": p.generator != nil,
		},
		Index: stats,
	}, nil
}

// Close releases the index's underlying storage.
func (p *Pipeline) Close() error {
	return p.index.Close()
}

func summarizeChunks(chunks []document.Chunk) IngestStats {
	stats := IngestStats{Chunks: len(chunks)}
	if len(chunks) == 0 {
		return stats
	}

	stats.MinChunk = len(chunks[0].Content)
	for _, chunk := range chunks {
		size := len(chunk.Content)
		stats.TotalChars += size
		if size < stats.MinChunk {
			stats.MinChunk = size
		}
		if size > stats.MaxChunk {
			stats.MaxChunk = size
		}
	}
	stats.AvgChunk = stats.TotalChars / len(chunks)
	return stats
}
