package loaders

import (
	"context"
	"fmt"
	"io"
	"net/http"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/KOO-96/chatbot-study/internal/rag/interfaces"
)

// WebLoader fetches a web page and converts the HTML to markdown, which
// preserves the heading structure the chunker splits on.
type WebLoader struct {
	client *http.Client
}

// NewWebLoader creates a new WebLoader.
func NewWebLoader() *WebLoader {
	return &WebLoader{client: http.DefaultClient}
}

// Load fetches the URL and returns its content as markdown.
func (l *WebLoader) Load(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	markdown, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return "", fmt.Errorf("failed to convert html: %w", err)
	}
	return markdown, nil
}

var _ interfaces.Loader = (*WebLoader)(nil)
