package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AppInfo holds basic application information.
type AppInfo struct {
	Name        string `yaml:"name"`        // application name
	Environment string `yaml:"environment"` // e.g. "development", "production"
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"` // bind host (e.g. "0.0.0.0")
	Port int    `yaml:"port"` // bind port
}

// LoggerConfig holds the logger settings.
type LoggerConfig struct {
	Level string `yaml:"level"` // log level (e.g. "info", "debug", "warn", "error")
}

// MilvusConfig holds the Milvus connection and collection settings.
type MilvusConfig struct {
	Address        string `yaml:"address"`        // Milvus service address
	CollectionName string `yaml:"collectionName"` // collection holding the chunk vectors
}

// EmbeddingConfig holds the embedding model settings.
type EmbeddingConfig struct {
	Model   string `yaml:"model"`   // Ollama embedding model name (an E5-family model)
	BaseURL string `yaml:"baseURL"` // Ollama service URL, empty for the local default
}

// LLMConfig holds the generation model settings.
type LLMConfig struct {
	Model       string  `yaml:"model"`       // Ollama generation model name (e.g. "qwen2.5:1.5b")
	BaseURL     string  `yaml:"baseURL"`     // Ollama service URL, empty for the local default
	MaxTokens   int     `yaml:"maxTokens"`   // maximum output tokens per generation call
	Temperature float64 `yaml:"temperature"` // sampling temperature
	TopP        float64 `yaml:"topP"`        // nucleus sampling parameter
}

// ChunkingConfig holds the document splitting settings.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunkSize"`    // maximum chunk length in characters
	ChunkOverlap int `yaml:"chunkOverlap"` // repeated characters between adjacent chunks
}

// PipelineConfig holds the retrieval and answer quality thresholds.
//
// The score and overlap thresholds are tuned against a particular embedding
// model's similarity distribution. Changing the embedding model requires
// re-validating them.
type PipelineConfig struct {
	TopK               int     `yaml:"topK"`               // default number of search candidates
	ScoreThreshold     float64 `yaml:"scoreThreshold"`     // minimum similarity score for a candidate
	MinContextLength   int     `yaml:"minContextLength"`   // minimum trimmed context length in characters
	ContextOverlap     float64 `yaml:"contextOverlap"`     // minimum answer/context word overlap ratio
	SentenceSimilarity float64 `yaml:"sentenceSimilarity"` // adjacent-sentence word overlap that counts as repetition
	DuplicateRatio     float64 `yaml:"duplicateRatio"`     // Jaccard similarity that counts as a duplicate sentence
	WordDominance      float64 `yaml:"wordDominance"`      // single-word share that counts as degenerate text
	MinAnswerLength    int     `yaml:"minAnswerLength"`    // minimum accepted answer length in characters
	MaxAnswerLength    int     `yaml:"maxAnswerLength"`    // maximum accepted answer length in characters
	MaxContextLength   int     `yaml:"maxContextLength"`   // maximum combined context length in a prompt
}

// AppConfig is the root of the YAML configuration file.
type AppConfig struct {
	App       AppInfo         `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Logger    LoggerConfig    `yaml:"logger"`
	Milvus    MilvusConfig    `yaml:"milvus"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// Default returns a configuration populated with the built-in defaults.
func Default() *AppConfig {
	return &AppConfig{
		App:    AppInfo{Name: "chatbot-study", Environment: "development"},
		Server: ServerConfig{Host: "0.0.0.0", Port: 8000},
		Logger: LoggerConfig{Level: "info"},
		Milvus: MilvusConfig{
			Address:        "localhost:19530",
			CollectionName: "rag_documents",
		},
		Embedding: EmbeddingConfig{Model: "zylonai/multilingual-e5-large"},
		LLM: LLMConfig{
			Model:       "qwen2.5:1.5b",
			MaxTokens:   500,
			Temperature: 0.7,
			TopP:        0.9,
		},
		Chunking: ChunkingConfig{ChunkSize: 500, ChunkOverlap: 50},
		Pipeline: PipelineConfig{
			TopK:               5,
			ScoreThreshold:     0.5,
			MinContextLength:   20,
			ContextOverlap:     0.2,
			SentenceSimilarity: 0.7,
			DuplicateRatio:     0.8,
			WordDominance:      0.3,
			MinAnswerLength:    10,
			MaxAnswerLength:    2000,
			MaxContextLength:   3000,
		},
	}
}

// LoadConfig reads and parses the YAML configuration file at path, applying
// defaults for omitted fields and validating the result.
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the system relies on.
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be in (0, 65535], got %d", c.Server.Port)
	}
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunkSize must be greater than 0, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 {
		return fmt.Errorf("chunkOverlap must be non-negative, got %d", c.Chunking.ChunkOverlap)
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunkOverlap (%d) must be less than chunkSize (%d)",
			c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}
	if c.Pipeline.TopK <= 0 {
		return fmt.Errorf("topK must be greater than 0, got %d", c.Pipeline.TopK)
	}
	for name, v := range map[string]float64{
		"scoreThreshold":     c.Pipeline.ScoreThreshold,
		"contextOverlap":     c.Pipeline.ContextOverlap,
		"sentenceSimilarity": c.Pipeline.SentenceSimilarity,
		"duplicateRatio":     c.Pipeline.DuplicateRatio,
		"wordDominance":      c.Pipeline.WordDominance,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %v", name, v)
		}
	}
	if c.Pipeline.MinAnswerLength < 0 || c.Pipeline.MaxAnswerLength < c.Pipeline.MinAnswerLength {
		return fmt.Errorf("answer length bounds are inconsistent: min=%d max=%d",
			c.Pipeline.MinAnswerLength, c.Pipeline.MaxAnswerLength)
	}
	return nil
}
