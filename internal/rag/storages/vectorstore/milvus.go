package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/KOO-96/chatbot-study/internal/rag/interfaces"
	"github.com/KOO-96/chatbot-study/internal/rag/schema"
	"github.com/KOO-96/chatbot-study/pkg/logger"
)

// Collection field names.
const (
	FieldID         = "id"
	FieldText       = "text"
	FieldDocumentID = "document_id"
	FieldChunkIndex = "chunk_index"
	FieldFilename   = "filename"
	FieldFileType   = "file_type"
	FieldEmbedding  = "embedding"
)

const (
	maxTextLength = 8192
	maxIDLength   = 256
	listLimit     = 10000
)

// MilvusStore persists document chunks and their embeddings in a Milvus
// collection using COSINE similarity.
type MilvusStore struct {
	log        *logger.Logger
	client     client.Client
	collection string
	dimension  int
}

var _ interfaces.VectorStore = (*MilvusStore)(nil)

// NewMilvusStore connects to Milvus and ensures the collection exists with
// the expected schema. An existing collection whose embedding dimension
// differs from dim fails construction rather than corrupting searches later.
func NewMilvusStore(ctx context.Context, address, collectionName string, dim int, log *logger.Logger) (*MilvusStore, error) {
	c, err := client.NewClient(ctx, client.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	s := &MilvusStore{
		log:        log,
		client:     c,
		collection: collectionName,
		dimension:  dim,
	}

	if err := s.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the Milvus connection.
func (s *MilvusStore) Close() error {
	return s.client.Close()
}

func (s *MilvusStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", s.collection, err)
	}

	if exists {
		desc, err := s.client.DescribeCollection(ctx, s.collection)
		if err != nil {
			return fmt.Errorf("failed to describe collection %s: %w", s.collection, err)
		}
		for _, field := range desc.Schema.Fields {
			if field.Name != FieldEmbedding {
				continue
			}
			existing := field.TypeParams[entity.TypeParamDim]
			if existing != fmt.Sprintf("%d", s.dimension) {
				return fmt.Errorf("collection %s has embedding dim %s, embedder produces %d",
					s.collection, existing, s.dimension)
			}
		}
	} else {
		collSchema := entity.NewSchema().
			WithName(s.collection).
			WithDescription("document chunks for retrieval").
			WithField(entity.NewField().WithName(FieldID).
				WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxIDLength).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(FieldText).
				WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxTextLength)).
			WithField(entity.NewField().WithName(FieldDocumentID).
				WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxIDLength)).
			WithField(entity.NewField().WithName(FieldChunkIndex).
				WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(FieldFilename).
				WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxIDLength)).
			WithField(entity.NewField().WithName(FieldFileType).
				WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxIDLength)).
			WithField(entity.NewField().WithName(FieldEmbedding).
				WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dimension)))

		if err := s.client.CreateCollection(ctx, collSchema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
		}

		idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 96)
		if err != nil {
			return fmt.Errorf("failed to build index: %w", err)
		}
		if err := s.client.CreateIndex(ctx, s.collection, FieldEmbedding, idx, false); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", FieldEmbedding, err)
		}
		s.log.Info(fmt.Sprintf("created milvus collection %s (dim=%d)", s.collection, s.dimension))
	}

	if err := s.client.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("failed to load collection %s: %w", s.collection, err)
	}
	return nil
}

// Upsert inserts chunks with their embeddings. Each chunk gets a fresh
// random id.
func (s *MilvusStore) Upsert(ctx context.Context, chunks []schema.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatch between chunks (%d) and vectors (%d)", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	documentIDs := make([]string, len(chunks))
	chunkIndexes := make([]int64, len(chunks))
	filenames := make([]string, len(chunks))
	fileTypes := make([]string, len(chunks))

	for i, chunk := range chunks {
		ids[i] = uuid.New().String()
		texts[i] = chunk.Text
		documentIDs[i] = chunk.DocumentID
		chunkIndexes[i] = int64(chunk.ChunkIndex)
		filenames[i] = chunk.Filename
		fileTypes[i] = chunk.FileType
	}

	_, err := s.client.Insert(ctx, s.collection, "",
		entity.NewColumnVarChar(FieldID, ids),
		entity.NewColumnVarChar(FieldText, texts),
		entity.NewColumnVarChar(FieldDocumentID, documentIDs),
		entity.NewColumnInt64(FieldChunkIndex, chunkIndexes),
		entity.NewColumnVarChar(FieldFilename, filenames),
		entity.NewColumnVarChar(FieldFileType, fileTypes),
		entity.NewColumnFloatVector(FieldEmbedding, s.dimension, vectors),
	)
	if err != nil {
		return fmt.Errorf("failed to insert data into milvus: %w", err)
	}

	if err := s.client.Flush(ctx, s.collection, false); err != nil {
		return fmt.Errorf("failed to flush collection %s: %w", s.collection, err)
	}
	return nil
}

// Search returns the topK chunks most similar to the query vector, ordered
// by descending similarity.
func (s *MilvusStore) Search(ctx context.Context, vector []float32, topK int) ([]schema.SearchResult, error) {
	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	outputFields := []string{FieldText, FieldDocumentID, FieldChunkIndex, FieldFilename, FieldFileType}

	searchResults, err := s.client.Search(
		ctx, s.collection, []string{}, "", outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		FieldEmbedding, entity.COSINE, topK, sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search in milvus: %w", err)
	}

	var results []schema.SearchResult
	for _, res := range searchResults {
		texts := varCharData(res.Fields, FieldText)
		documentIDs := varCharData(res.Fields, FieldDocumentID)
		filenames := varCharData(res.Fields, FieldFilename)
		fileTypes := varCharData(res.Fields, FieldFileType)
		chunkIndexes := int64Data(res.Fields, FieldChunkIndex)

		for i := 0; i < res.ResultCount; i++ {
			r := schema.SearchResult{Score: float64(res.Scores[i])}
			if i < len(texts) {
				r.Text = texts[i]
			}
			if i < len(documentIDs) {
				r.DocumentID = documentIDs[i]
			}
			if i < len(chunkIndexes) {
				r.ChunkIndex = int(chunkIndexes[i])
			}
			if i < len(filenames) {
				r.Filename = filenames[i]
			}
			if i < len(fileTypes) {
				r.FileType = fileTypes[i]
			}
			results = append(results, r)
		}
	}
	return results, nil
}

// ListDocuments aggregates stored chunks by document and returns one entry
// per document with its chunk count.
func (s *MilvusStore) ListDocuments(ctx context.Context) ([]schema.DocumentInfo, error) {
	resultSet, err := s.client.Query(ctx, s.collection, []string{},
		fmt.Sprintf(`%s != ""`, FieldDocumentID),
		[]string{FieldDocumentID, FieldFilename, FieldFileType},
		client.WithLimit(listLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	documentIDs := varCharData(resultSet, FieldDocumentID)
	filenames := varCharData(resultSet, FieldFilename)
	fileTypes := varCharData(resultSet, FieldFileType)

	byID := make(map[string]*schema.DocumentInfo)
	var order []string
	for i, id := range documentIDs {
		info, ok := byID[id]
		if !ok {
			info = &schema.DocumentInfo{DocumentID: id}
			if i < len(filenames) {
				info.Filename = filenames[i]
			}
			if i < len(fileTypes) {
				info.FileType = fileTypes[i]
			}
			byID[id] = info
			order = append(order, id)
		}
		info.ChunksCount++
	}

	infos := make([]schema.DocumentInfo, 0, len(order))
	for _, id := range order {
		infos = append(infos, *byID[id])
	}
	return infos, nil
}

// Delete removes every chunk of a document. It reports whether the document
// existed. Document ids are minted as UUIDs at ingestion, so anything else
// cannot exist and is rejected before it reaches the filter expression.
func (s *MilvusStore) Delete(ctx context.Context, documentID string) (bool, error) {
	if _, err := uuid.Parse(documentID); err != nil {
		return false, nil
	}

	expr := fmt.Sprintf(`%s == "%s"`, FieldDocumentID, documentID)

	resultSet, err := s.client.Query(ctx, s.collection, []string{}, expr,
		[]string{FieldID}, client.WithLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to look up document %s: %w", documentID, err)
	}
	if len(varCharData(resultSet, FieldID)) == 0 {
		return false, nil
	}

	if err := s.client.Delete(ctx, s.collection, "", expr); err != nil {
		return false, fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}

	s.log.Info(fmt.Sprintf("deleted document %s from collection %s", documentID, s.collection))
	return true, nil
}

func varCharData(columns []entity.Column, name string) []string {
	for _, col := range columns {
		if col.Name() != name {
			continue
		}
		if vc, ok := col.(*entity.ColumnVarChar); ok {
			return vc.Data()
		}
	}
	return nil
}

func int64Data(columns []entity.Column, name string) []int64 {
	for _, col := range columns {
		if col.Name() != name {
			continue
		}
		if ic, ok := col.(*entity.ColumnInt64); ok {
			return ic.Data()
		}
	}
	return nil
}
