package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/KOO-96/chatbot-study/internal/rag/interfaces"
	"github.com/KOO-96/chatbot-study/internal/rag/schema"
	"github.com/KOO-96/chatbot-study/pkg/logger"
)

// embedBatchSize bounds the texts per embedding call; batches are embedded
// concurrently.
const embedBatchSize = 32

// ErrNoChunks reports that a document produced no indexable text.
var ErrNoChunks = errors.New("document produced no chunks")

// IndexingPipeline turns one extracted document into stored, searchable
// chunks: split, embed, upsert.
type IndexingPipeline struct {
	splitter interfaces.Splitter
	embedder interfaces.Embedder
	store    interfaces.VectorStore
	log      *logger.Logger
}

// NewIndexingPipeline creates a new IndexingPipeline.
func NewIndexingPipeline(
	splitter interfaces.Splitter,
	embedder interfaces.Embedder,
	store interfaces.VectorStore,
	log *logger.Logger,
) *IndexingPipeline {
	return &IndexingPipeline{
		splitter: splitter,
		embedder: embedder,
		store:    store,
		log:      log,
	}
}

// Run chunks the markdown text of one document, embeds the chunks in
// passage mode, and upserts them into the vector store. It returns the
// stored chunks. Documents without any indexable text fail with
// ErrNoChunks.
func (p *IndexingPipeline) Run(ctx context.Context, markdown, documentID, filename, fileType string) ([]schema.Chunk, error) {
	p.log.Info(fmt.Sprintf("starting indexing for document %s (%s)", documentID, filename))

	texts := p.splitter.Split(markdown)
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoChunks, filename)
	}
	p.log.Info(fmt.Sprintf("split document %s into %d chunks", documentID, len(texts)))

	chunks := make([]schema.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = schema.Chunk{
			Text:       text,
			DocumentID: documentID,
			ChunkIndex: i,
			Filename:   filename,
			FileType:   fileType,
		}
	}

	vectors, err := p.embedAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	if err := p.store.Upsert(ctx, chunks, vectors); err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	p.log.Info(fmt.Sprintf("finished indexing document %s, chunks stored: %d", documentID, len(chunks)))
	return chunks, nil
}

// embedAll embeds texts in concurrent batches, preserving input order.
func (p *IndexingPipeline) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(4)

	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		eg.Go(func() error {
			batch, err := p.embedder.EmbedPassages(gCtx, texts[start:end])
			if err != nil {
				return err
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
