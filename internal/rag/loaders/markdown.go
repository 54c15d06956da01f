package loaders

import (
	"context"
	"os"

	"github.com/KOO-96/chatbot-study/internal/rag/interfaces"
)

// MarkdownLoader reads markdown files. The text is passed through as-is;
// the chunker understands markdown structure.
type MarkdownLoader struct{}

// NewMarkdownLoader creates a new MarkdownLoader.
func NewMarkdownLoader() *MarkdownLoader {
	return &MarkdownLoader{}
}

// Load reads a markdown file from the given path.
func (l *MarkdownLoader) Load(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

var _ interfaces.Loader = (*MarkdownLoader)(nil)
