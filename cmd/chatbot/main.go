package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KOO-96/chatbot-study/internal/api"
	"github.com/KOO-96/chatbot-study/internal/config"
	"github.com/KOO-96/chatbot-study/internal/rag/embeddings"
	"github.com/KOO-96/chatbot-study/internal/rag/interfaces"
	"github.com/KOO-96/chatbot-study/internal/rag/llms"
	"github.com/KOO-96/chatbot-study/internal/rag/pipeline"
	"github.com/KOO-96/chatbot-study/internal/rag/quality"
	"github.com/KOO-96/chatbot-study/internal/rag/splitters"
	"github.com/KOO-96/chatbot-study/internal/rag/storages/vectorstore"
	"github.com/KOO-96/chatbot-study/internal/service"
	"github.com/KOO-96/chatbot-study/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	serviceLogger := logger.New("ChatbotService")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The embedder probe also tells us the collection dimension.
	embedder, err := embeddings.NewOllamaEmbedder(ctx, cfg.Embedding.Model, cfg.Embedding.BaseURL)
	if err != nil {
		serviceLogger.Fatal(fmt.Sprintf("Failed to initialize embedder: %v", err))
	}
	serviceLogger.Info(fmt.Sprintf("Embedding model %s ready (dim=%d)", cfg.Embedding.Model, embedder.Dimension()))

	store, err := vectorstore.NewMilvusStore(ctx, cfg.Milvus.Address, cfg.Milvus.CollectionName, embedder.Dimension(), serviceLogger)
	if err != nil {
		serviceLogger.Fatal(fmt.Sprintf("Failed to initialize vector store: %v", err))
	}
	defer store.Close()

	generator, err := llms.NewOllamaGenerator(cfg.LLM.Model, cfg.LLM.BaseURL, interfaces.GenerateOptions{
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
	})
	if err != nil {
		serviceLogger.Fatal(fmt.Sprintf("Failed to initialize generator: %v", err))
	}

	splitter, err := splitters.NewMarkdownSplitter(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		serviceLogger.Fatal(fmt.Sprintf("Failed to initialize splitter: %v", err))
	}

	validator := quality.NewValidator(quality.Thresholds{
		SentenceSimilarity: cfg.Pipeline.SentenceSimilarity,
		DuplicateRatio:     cfg.Pipeline.DuplicateRatio,
		WordDominance:      cfg.Pipeline.WordDominance,
		ContextOverlap:     cfg.Pipeline.ContextOverlap,
	})

	indexer := pipeline.NewIndexingPipeline(splitter, embedder, store, serviceLogger)
	query := pipeline.NewQueryPipeline(embedder, store, generator, validator, cfg.Pipeline, serviceLogger)

	documentService := service.NewDocumentService(indexer, store, serviceLogger)
	ragService := service.NewRAGService(query, serviceLogger)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	apiHandler := api.NewAPI(documentService, ragService, serviceLogger)
	api.RegisterRoutes(router, apiHandler)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		serviceLogger.Info("Starting HTTP server on " + srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serviceLogger.Fatal(fmt.Sprintf("HTTP server failed to start: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	serviceLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		serviceLogger.Error(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	serviceLogger.Info("Server gracefully stopped")
}
