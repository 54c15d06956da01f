package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/KOO-96/chatbot-study/internal/rag/loaders"
	"github.com/KOO-96/chatbot-study/internal/rag/pipeline"
	"github.com/KOO-96/chatbot-study/internal/service"
	"github.com/KOO-96/chatbot-study/pkg/logger"
)

const defaultTopK = 5

// API provides the HTTP handlers for the chatbot service.
type API struct {
	documents *service.DocumentService
	rag       *service.RAGService
	log       *logger.Logger
}

// NewAPI creates a new API handler.
func NewAPI(documents *service.DocumentService, rag *service.RAGService, log *logger.Logger) *API {
	return &API{
		documents: documents,
		rag:       rag,
		log:       log,
	}
}

type chatRequest struct {
	Question     string `json:"question" binding:"required"`
	TopK         int    `json:"top_k"`
	UseGenerator *bool  `json:"use_generator"`
	SystemPrompt string `json:"system_prompt"`
}

// ChatHandler answers a question over the indexed documents.
func (a *API) ChatHandler(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if req.TopK == 0 {
		req.TopK = defaultTopK
	}

	opts := pipeline.Options{
		UseGenerator: true,
		SystemPrompt: req.SystemPrompt,
	}
	if req.UseGenerator != nil {
		opts.UseGenerator = *req.UseGenerator
	}

	result, err := a.rag.Query(c.Request.Context(), req.Question, req.TopK, opts)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyQuery) || errors.Is(err, pipeline.ErrInvalidTopK) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		a.log.Error(fmt.Sprintf("chat request failed: %v", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to answer question"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ChatDebugHandler answers a question with the generator off and attaches
// per-document score aggregates to the result.
func (a *API) ChatDebugHandler(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if req.TopK == 0 {
		req.TopK = defaultTopK
	}

	info, err := a.rag.Debug(c.Request.Context(), req.Question, req.TopK)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyQuery) || errors.Is(err, pipeline.ErrInvalidTopK) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		a.log.Error(fmt.Sprintf("debug request failed: %v", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to inspect retrieval"})
		return
	}

	c.JSON(http.StatusOK, info)
}

// UploadDocumentHandler ingests an uploaded file, or a web page when the
// "url" form field is set instead.
func (a *API) UploadDocumentHandler(c *gin.Context) {
	if url := c.PostForm("url"); url != "" {
		info, err := a.documents.IngestURL(c.Request.Context(), url)
		if err != nil {
			a.log.Error(fmt.Sprintf("failed to ingest url %s: %v", url, err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest url"})
			return
		}
		c.JSON(http.StatusOK, info)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file or url is required"})
		return
	}

	tmpPath := filepath.Join(os.TempDir(), uuid.New().String()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		a.log.Error(fmt.Sprintf("failed to save upload: %v", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save upload"})
		return
	}
	defer os.Remove(tmpPath)

	info, err := a.documents.Ingest(c.Request.Context(), tmpPath, file.Filename)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoChunks) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "document contains no indexable text"})
			return
		}
		if errors.Is(err, loaders.ErrUnsupportedFileType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		a.log.Error(fmt.Sprintf("failed to ingest %s: %v", file.Filename, err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest document"})
		return
	}

	c.JSON(http.StatusOK, info)
}

// ListDocumentsHandler returns one entry per stored document.
func (a *API) ListDocumentsHandler(c *gin.Context) {
	infos, err := a.documents.List(c.Request.Context())
	if err != nil {
		a.log.Error(fmt.Sprintf("failed to list documents: %v", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list documents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": infos, "count": len(infos)})
}

// DeleteDocumentHandler removes a document and all its chunks.
func (a *API) DeleteDocumentHandler(c *gin.Context) {
	documentID := c.Param("document_id")

	found, err := a.documents.Delete(c.Request.Context(), documentID)
	if err != nil {
		a.log.Error(fmt.Sprintf("failed to delete document %s: %v", documentID, err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete document"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"document_id": documentID, "deleted": true})
}

// HealthHandler reports liveness.
func (a *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
