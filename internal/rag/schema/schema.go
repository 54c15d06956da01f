package schema

// Chunk is a bounded unit of document text, the atomic item that gets
// embedded and stored. It is produced once during ingestion and never
// mutated afterwards.
type Chunk struct {
	Text       string `json:"text"`
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	Filename   string `json:"filename,omitempty"`
	FileType   string `json:"file_type,omitempty"`
}

// SearchResult is a per-query candidate returned by the vector store,
// ordered by descending similarity score. It is consumed and filtered by
// the query pipeline and never persisted.
type SearchResult struct {
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Filename   string  `json:"filename,omitempty"`
	FileType   string  `json:"file_type,omitempty"`
}

// PipelineResult is the structured outcome of one query pipeline run.
// Contexts and Sources are index-aligned: Contexts[i] == Sources[i].Text
// whenever both are non-empty, and Answer is always non-empty.
type PipelineResult struct {
	Query    string         `json:"query"`
	Answer   string         `json:"answer"`
	Contexts []string       `json:"contexts"`
	Sources  []SearchResult `json:"sources"`
	TopK     int            `json:"top_k"`
}

// QualityVerdict is the outcome of an answer quality check. It drives the
// pipeline's fallback decisions and is never surfaced as an error.
type QualityVerdict struct {
	IsValid bool
	Reason  string
}

// DocumentInfo summarizes one stored document, aggregated over its chunks.
type DocumentInfo struct {
	DocumentID  string `json:"document_id"`
	Filename    string `json:"filename"`
	FileType    string `json:"file_type"`
	ChunksCount int    `json:"chunks_count"`
}
