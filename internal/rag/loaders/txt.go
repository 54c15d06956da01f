package loaders

import (
	"context"
	"os"

	"github.com/KOO-96/chatbot-study/internal/rag/interfaces"
)

// TxtLoader reads plain text files.
type TxtLoader struct{}

// NewTxtLoader creates a new TxtLoader.
func NewTxtLoader() *TxtLoader {
	return &TxtLoader{}
}

// Load reads a text file from the given path.
func (l *TxtLoader) Load(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

var _ interfaces.Loader = (*TxtLoader)(nil)
