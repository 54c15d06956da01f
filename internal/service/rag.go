package service

import (
	"context"
	"fmt"

	"github.com/KOO-96/chatbot-study/internal/rag/pipeline"
	"github.com/KOO-96/chatbot-study/internal/rag/schema"
	"github.com/KOO-96/chatbot-study/pkg/logger"
)

// DocumentScore aggregates retrieval scores per source document for the
// debug endpoint.
type DocumentScore struct {
	DocumentID  string  `json:"document_id"`
	Filename    string  `json:"filename"`
	ChunksFound int     `json:"chunks_found"`
	AvgScore    float64 `json:"avg_score"`
	MaxScore    float64 `json:"max_score"`
	MinScore    float64 `json:"min_score"`
}

// DebugInfo summarizes the sources behind one answer, grouped by document.
type DebugInfo struct {
	SearchedDocuments   []DocumentScore `json:"searched_documents"`
	TotalDocumentsFound int             `json:"total_documents_found"`
}

// DebugResult is a full pipeline result extended with per-document score
// aggregates over its sources.
type DebugResult struct {
	schema.PipelineResult
	Debug DebugInfo `json:"debug_info"`
}

// RAGService answers questions over the indexed documents.
type RAGService struct {
	query *pipeline.QueryPipeline
	log   *logger.Logger
}

// NewRAGService creates a new RAGService.
func NewRAGService(query *pipeline.QueryPipeline, log *logger.Logger) *RAGService {
	return &RAGService{
		query: query,
		log:   log,
	}
}

// Query runs the full retrieval and answering pipeline for one question.
func (s *RAGService) Query(ctx context.Context, query string, topK int, opts pipeline.Options) (*schema.PipelineResult, error) {
	return s.query.Run(ctx, query, topK, opts)
}

// Debug runs the pipeline with the generator off and attaches per-document
// score aggregates computed over the result's sources, so the contexts the
// template answer was built from can be inspected.
func (s *RAGService) Debug(ctx context.Context, query string, topK int) (*DebugResult, error) {
	s.log.Info(fmt.Sprintf("running debug query: %s, top_k: %d", query, topK))

	result, err := s.query.Run(ctx, query, topK, pipeline.Options{UseGenerator: false})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*DocumentScore)
	var order []string
	for _, r := range result.Sources {
		agg, ok := byID[r.DocumentID]
		if !ok {
			agg = &DocumentScore{
				DocumentID: r.DocumentID,
				Filename:   r.Filename,
				MinScore:   r.Score,
				MaxScore:   r.Score,
			}
			byID[r.DocumentID] = agg
			order = append(order, r.DocumentID)
		}
		agg.ChunksFound++
		agg.AvgScore += r.Score
		if r.Score > agg.MaxScore {
			agg.MaxScore = r.Score
		}
		if r.Score < agg.MinScore {
			agg.MinScore = r.Score
		}
	}

	documents := make([]DocumentScore, 0, len(order))
	for _, id := range order {
		agg := byID[id]
		agg.AvgScore /= float64(agg.ChunksFound)
		documents = append(documents, *agg)
	}

	return &DebugResult{
		PipelineResult: *result,
		Debug: DebugInfo{
			SearchedDocuments:   documents,
			TotalDocumentsFound: len(documents),
		},
	}, nil
}
