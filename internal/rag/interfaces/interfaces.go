package interfaces

import (
	"context"

	"github.com/KOO-96/chatbot-study/internal/rag/schema"
)

// Loader is the interface for extracting the text of a source document
// (file path or URL) into markdown-structured text.
type Loader interface {
	Load(ctx context.Context, path string) (string, error)
}

// Splitter is the interface for partitioning markdown-structured text into
// bounded chunk texts.
type Splitter interface {
	Split(text string) []string
}

// Embedder is the interface for a text embedding model. Implementations
// must fail if called before initialization or with an empty input list.
type Embedder interface {
	// EmbedPassages embeds texts for storage.
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension reports the vector dimensionality of the model.
	Dimension() int
}

// VectorStore is the interface for persisting chunks with their vectors and
// searching them by similarity. Implementations are bound to a fixed
// collection, metric, and vector dimensionality at construction time.
type VectorStore interface {
	Upsert(ctx context.Context, chunks []schema.Chunk, vectors [][]float32) error
	// Search returns up to topK results ordered by descending similarity.
	Search(ctx context.Context, vector []float32, topK int) ([]schema.SearchResult, error)
	ListDocuments(ctx context.Context) ([]schema.DocumentInfo, error)
	// Delete removes every chunk of a document. It reports false when no
	// chunk matched.
	Delete(ctx context.Context, documentID string) (bool, error)
}

// GenerateOptions bound one generation call.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// ChatMessage is a single turn in a chat-style generation request.
type ChatMessage struct {
	Role    string
	Content string
}

// Generator is the interface for a text generation model. Implementations
// must fail clearly on an empty prompt or when the underlying model cannot
// be loaded.
type Generator interface {
	// Warmup verifies the model is available, loading it if needed. It is
	// safe to call concurrently and idempotent once it has succeeded.
	Warmup(ctx context.Context) error
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	GenerateChat(ctx context.Context, messages []ChatMessage) (string, error)
}
