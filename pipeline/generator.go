package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/tusiim3/RAG-Document-System/index"
	"github.com/tusiim3/RAG-Document-System/llm"
)

// Generator composes a single prompt from the retrieved chunks and the
// question, and asks the completion model for an answer grounded only in
// that context.
type Generator struct {
	llm llm.Client
}

func NewGenerator(client llm.Client) *Generator {
	return &Generator{llm: client}
}

func (g *Generator) Answer(ctx context.Context, question string, chunks []index.Result) (string, error) {
	return g.AnswerStream(ctx, question, chunks, nil)
}

// AnswerStream behaves like Answer but forwards completion deltas to fn as
// they arrive when the underlying client supports streaming. A client
// without streaming support delivers the whole answer in a single fn call.
// A nil fn falls back to blocking generation.
func (g *Generator) AnswerStream(ctx context.Context, question string, chunks []index.Result, fn func(string) error) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt()},
		{Role: llm.RoleUser, Content: formatUserPrompt(question, chunks)},
	}

	if fn == nil {
		answer, err := g.llm.Generate(ctx, messages)
		if err != nil {
			return "", fmt.Errorf("llm generate: %w", err)
		}
		return strings.TrimSpace(answer), nil
	}

	if streamClient, ok := g.llm.(llm.StreamClient); ok {
		var builder strings.Builder
		err := streamClient.GenerateStream(ctx, messages, func(delta string) error {
			if delta == "" {
				return nil
			}
			builder.WriteString(delta)
			return fn(delta)
		})
		if err != nil {
			return "", fmt.Errorf("llm stream generate: %w", err)
		}
		return strings.TrimSpace(builder.String()), nil
	}

	answer, err := g.llm.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("llm generate: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if err := fn(answer); err != nil {
		return "", err
	}
	return answer, nil
}

func systemPrompt() string {
	return "You are a document question answering assistant. Answer using only the provided context. If the context does not contain the answer, say that the documents do not cover it. Do not use outside knowledge."
}

// formatUserPrompt stuffs every retrieved chunk verbatim into one prompt,
// numbered so answers can cite their sources.
func formatUserPrompt(question string, chunks []index.Result) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for i, chunk := range chunks {
		sb.WriteString(fmt.Sprintf("Source %d (%s):\n", i+1, chunk.Source))
		sb.WriteString(chunk.Content)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer from the context above only, citing Source numbers in brackets (e.g., [Source 1]) where relevant.")
	return sb.String()
}
