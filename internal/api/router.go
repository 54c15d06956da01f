package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all routes for the chatbot service.
func RegisterRoutes(router *gin.Engine, api *API) {
	router.GET("/health", api.HealthHandler)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/chat", api.ChatHandler)
		v1.POST("/chat/document", api.ChatDebugHandler)

		documents := v1.Group("/document")
		{
			documents.POST("", api.UploadDocumentHandler)
			documents.GET("/info", api.ListDocumentsHandler)
			documents.DELETE("/:document_id", api.DeleteDocumentHandler)
		}
	}
}
