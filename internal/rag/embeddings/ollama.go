package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/ollama/ollama/api"

	"github.com/KOO-96/chatbot-study/internal/rag/interfaces"
)

// E5-family models expect an instruction prefix that differs between the
// indexed side and the query side.
const (
	passagePrefix = "passage: "
	queryPrefix   = "query: "
)

// ErrNoEmbeddings reports that the embedding server returned an empty
// response for a non-empty input.
var ErrNoEmbeddings = errors.New("no embeddings returned")

// OllamaEmbedder produces dense vectors through an Ollama embedding model.
type OllamaEmbedder struct {
	client    *ollama.Client
	model     string
	dimension int
}

var _ interfaces.Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an embedder for the given model and probes the
// server once to learn the vector dimension.
func NewOllamaEmbedder(ctx context.Context, model, baseURL string) (*OllamaEmbedder, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	hc := &http.Client{
		Timeout: 120 * time.Second,
	}

	e := &OllamaEmbedder{
		client: ollama.NewClient(parsedURL, hc),
		model:  model,
	}

	probe, err := e.embed(ctx, []string{queryPrefix + "dimension probe"})
	if err != nil {
		return nil, fmt.Errorf("failed to probe embedding dimension: %w", err)
	}
	e.dimension = len(probe[0])

	return e, nil
}

// Dimension returns the vector size produced by the model.
func (e *OllamaEmbedder) Dimension() int {
	return e.dimension
}

// EmbedPassages embeds document chunks for indexing. Input order is
// preserved in the output.
func (e *OllamaEmbedder) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts to embed")
	}

	prefixed := make([]string, len(texts))
	for i, text := range texts {
		prefixed[i] = passagePrefix + text
	}

	vectors, err := e.embed(ctx, prefixed)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery embeds a user question for retrieval.
func (e *OllamaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{queryPrefix + text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OllamaEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.Embed(ctx, &ollama.EmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get embeddings from ollama: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, ErrNoEmbeddings
	}
	return resp.Embeddings, nil
}
