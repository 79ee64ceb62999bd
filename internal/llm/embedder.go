package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// EmbeddingDimension is the vector size of text-embedding-004.
const EmbeddingDimension = 768

// Embedder turns text into vectors for similarity search.
type Embedder interface {
	// EmbedQuery embeds a search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// EmbedDocuments embeds content to be stored, preserving order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// GeminiEmbedder implements Embedder with a Gemini embedding model.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates an embedder for model.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		model = DefaultConfig().EmbeddingModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: model}, nil
}

// EmbedQuery embeds text with the retrieval-query task type.
func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	em := e.client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeRetrievalQuery

	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, &APICallError{Model: e.model, Message: "embed query", Retryable: true, Cause: err}
	}
	if res == nil || res.Embedding == nil {
		return nil, &APICallError{Model: e.model, Message: "empty embedding"}
	}
	return res.Embedding.Values, nil
}

// EmbedDocuments embeds texts in one batch request.
func (e *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	em := e.client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeRetrievalDocument

	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, &APICallError{Model: e.model, Message: "embed documents", Retryable: true, Cause: err}
	}
	if res == nil || len(res.Embeddings) != len(texts) {
		return nil, &APICallError{Model: e.model, Message: "embedding count does not match input"}
	}

	out := make([][]float32, len(texts))
	for i, emb := range res.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

// Dimension returns the vector size.
func (e *GeminiEmbedder) Dimension() int {
	return EmbeddingDimension
}

// Close releases the underlying client.
func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}
