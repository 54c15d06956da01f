package splitters

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/KOO-96/chatbot-study/internal/rag/interfaces"
)

// ErrInvalidChunking reports an invalid chunk size / overlap relationship.
// It is fatal at construction and never retried.
var ErrInvalidChunking = errors.New("invalid chunking configuration")

// headingRegex matches lines that open a markdown heading (# .. ######).
var headingRegex = regexp.MustCompile(`^#{1,6}\s+`)

// MarkdownSplitter partitions markdown-structured text into chunks of at
// most ChunkSize characters, with ChunkOverlap characters repeated between
// adjacent chunks of the same section. Splitting is deterministic and pure.
type MarkdownSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewMarkdownSplitter creates a new MarkdownSplitter. It enforces
// 0 <= chunkOverlap < chunkSize.
func NewMarkdownSplitter(chunkSize, chunkOverlap int) (*MarkdownSplitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be greater than 0, got %d", ErrInvalidChunking, chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must be non-negative, got %d", ErrInvalidChunking, chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap (%d) must be less than chunk size (%d)",
			ErrInvalidChunking, chunkOverlap, chunkSize)
	}
	return &MarkdownSplitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}, nil
}

// Split partitions markdown text into chunk texts. Empty or whitespace-only
// input yields an empty slice. Sizes are measured in characters (runes) so
// multi-byte text is never severed mid-character.
func (s *MarkdownSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []string
	for _, section := range s.splitIntoSections(text) {
		chunks = append(chunks, s.chunkSection(section)...)
	}
	return chunks
}

// splitIntoSections cuts the text at heading lines and "---" rule lines.
// Each section keeps its leading heading or rule line.
func (s *MarkdownSplitter) splitIntoSections(text string) []string {
	var sections []string
	var current []string

	for _, line := range strings.Split(text, "\n") {
		if headingRegex.MatchString(line) || strings.TrimSpace(line) == "---" {
			if len(current) > 0 {
				sections = append(sections, strings.Join(current, "\n"))
				current = current[:0]
			}
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n"))
	}
	return sections
}

// chunkSection slides a window of ChunkSize characters over one section,
// preferring to cut at the nearest sentence terminator or line break before
// the window end. The start pointer is clamped so it always advances,
// guaranteeing termination on any input.
func (s *MarkdownSplitter) chunkSection(section string) []string {
	runes := []rune(section)
	if len(runes) <= s.ChunkSize {
		trimmed := strings.TrimSpace(section)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			// Search backward for a boundary inside the window so a
			// sentence is not severed mid-way.
			if cut := lastBoundary(runes, start, end); cut > start {
				end = cut + 1
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := end - s.ChunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// lastBoundary returns the index of the last sentence terminator or line
// break in runes[start:end), or -1 if there is none.
func lastBoundary(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		switch runes[i] {
		case '.', '!', '?', '\n':
			return i
		}
	}
	return -1
}

var _ interfaces.Splitter = (*MarkdownSplitter)(nil)
