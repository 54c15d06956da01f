package llms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	ollama "github.com/ollama/ollama/api"

	"github.com/KOO-96/chatbot-study/internal/rag/interfaces"
)

const repeatPenalty = 1.3

// OllamaGenerator produces answers through an Ollama chat model. The model
// is loaded lazily: construction never touches the server, Warmup does.
type OllamaGenerator struct {
	client   *ollama.Client
	model    string
	defaults interfaces.GenerateOptions

	mu     sync.Mutex
	loaded bool
}

var _ interfaces.Generator = (*OllamaGenerator)(nil)

// NewOllamaGenerator creates a generator for the given model. defaults fill
// in any GenerateOptions field a caller leaves at zero.
func NewOllamaGenerator(model, baseURL string, defaults interfaces.GenerateOptions) (*OllamaGenerator, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	hc := &http.Client{
		Timeout: 300 * time.Second,
	}

	return &OllamaGenerator{
		client:   ollama.NewClient(parsedURL, hc),
		model:    model,
		defaults: defaults,
	}, nil
}

// Warmup loads the model into server memory on first use. It is safe for
// concurrent callers and retryable: a failed attempt leaves the generator
// unloaded so the next call tries again.
func (g *OllamaGenerator) Warmup(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.loaded {
		return nil
	}

	// An empty prompt makes the server load the model without generating.
	stream := false
	err := g.client.Generate(ctx, &ollama.GenerateRequest{
		Model:  g.model,
		Stream: &stream,
	}, func(ollama.GenerateResponse) error { return nil })
	if err != nil {
		return fmt.Errorf("failed to load model %s: %w", g.model, err)
	}

	g.loaded = true
	return nil
}

// Generate completes a single prompt without conversation state.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, opts interfaces.GenerateOptions) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt cannot be empty")
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = g.defaults.MaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = g.defaults.Temperature
	}
	if opts.TopP == 0 {
		opts.TopP = g.defaults.TopP
	}

	var sb strings.Builder
	stream := false

	err := g.client.Generate(ctx, &ollama.GenerateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"num_predict":    opts.MaxTokens,
			"temperature":    opts.Temperature,
			"top_p":          opts.TopP,
			"repeat_penalty": repeatPenalty,
		},
	}, func(resp ollama.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate with ollama: %w", err)
	}

	return strings.TrimSpace(sb.String()), nil
}

// GenerateChat completes a multi-turn conversation.
func (g *OllamaGenerator) GenerateChat(ctx context.Context, messages []interfaces.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("messages cannot be empty")
	}

	chat := make([]ollama.Message, len(messages))
	for i, m := range messages {
		chat[i] = ollama.Message{Role: m.Role, Content: m.Content}
	}

	var sb strings.Builder
	stream := false

	err := g.client.Chat(ctx, &ollama.ChatRequest{
		Model:    g.model,
		Messages: chat,
		Stream:   &stream,
	}, func(resp ollama.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to chat with ollama: %w", err)
	}

	return strings.TrimSpace(sb.String()), nil
}
