// Package loaders extracts markdown-ish text from document files so the
// chunker can work on a single uniform format.
package loaders

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KOO-96/chatbot-study/internal/rag/interfaces"
)

// ErrUnsupportedFileType is returned when no loader handles the extension.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// ForFile picks a loader by file extension.
func ForFile(path string) (interfaces.Loader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return NewTxtLoader(), nil
	case ".md", ".markdown":
		return NewMarkdownLoader(), nil
	case ".pdf":
		return NewPDFLoader(), nil
	case ".xlsx":
		return NewXlsxLoader(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, filepath.Ext(path))
	}
}
