package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/KOO-96/chatbot-study/internal/rag/interfaces"
	"github.com/KOO-96/chatbot-study/internal/rag/loaders"
	"github.com/KOO-96/chatbot-study/internal/rag/pipeline"
	"github.com/KOO-96/chatbot-study/internal/rag/schema"
	"github.com/KOO-96/chatbot-study/pkg/logger"
)

// DocumentService manages the document side of the knowledge base:
// ingesting files and URLs, listing what is stored, and deleting documents.
type DocumentService struct {
	indexer *pipeline.IndexingPipeline
	store   interfaces.VectorStore
	log     *logger.Logger
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(indexer *pipeline.IndexingPipeline, store interfaces.VectorStore, log *logger.Logger) *DocumentService {
	return &DocumentService{
		indexer: indexer,
		store:   store,
		log:     log,
	}
}

// Ingest loads a document file, chunks it, and indexes the chunks. The
// stored document keeps the caller-facing filename, not the temp path.
func (s *DocumentService) Ingest(ctx context.Context, path, filename string) (*schema.DocumentInfo, error) {
	loader, err := loaders.ForFile(filename)
	if err != nil {
		return nil, err
	}

	markdown, err := loader.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", filename, err)
	}

	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return s.index(ctx, markdown, filename, fileType)
}

// IngestURL fetches a web page and indexes its content. The URL itself is
// recorded as the document's filename.
func (s *DocumentService) IngestURL(ctx context.Context, url string) (*schema.DocumentInfo, error) {
	markdown, err := loaders.NewWebLoader().Load(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return s.index(ctx, markdown, url, "web")
}

func (s *DocumentService) index(ctx context.Context, markdown, filename, fileType string) (*schema.DocumentInfo, error) {
	documentID := uuid.New().String()

	chunks, err := s.indexer.Run(ctx, markdown, documentID, filename, fileType)
	if err != nil {
		return nil, err
	}

	return &schema.DocumentInfo{
		DocumentID:  documentID,
		Filename:    filename,
		FileType:    fileType,
		ChunksCount: len(chunks),
	}, nil
}

// List returns one entry per stored document.
func (s *DocumentService) List(ctx context.Context) ([]schema.DocumentInfo, error) {
	return s.store.ListDocuments(ctx)
}

// Delete removes a document and all its chunks. It reports whether the
// document existed.
func (s *DocumentService) Delete(ctx context.Context, documentID string) (bool, error) {
	return s.store.Delete(ctx, documentID)
}
