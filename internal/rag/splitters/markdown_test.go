package splitters

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewMarkdownSplitterValidation(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
		wantErr   bool
	}{
		{name: "valid", chunkSize: 500, overlap: 50, wantErr: false},
		{name: "zero overlap", chunkSize: 100, overlap: 0, wantErr: false},
		{name: "zero chunk size", chunkSize: 0, overlap: 0, wantErr: true},
		{name: "negative chunk size", chunkSize: -1, overlap: 0, wantErr: true},
		{name: "negative overlap", chunkSize: 100, overlap: -1, wantErr: true},
		{name: "overlap equals size", chunkSize: 100, overlap: 100, wantErr: true},
		{name: "overlap exceeds size", chunkSize: 100, overlap: 200, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMarkdownSplitter(tt.chunkSize, tt.overlap)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidChunking) {
					t.Fatalf("expected ErrInvalidChunking, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSplitEmptyInput(t *testing.T) {
	s, err := NewMarkdownSplitter(100, 10)
	if err != nil {
		t.Fatal(err)
	}

	for _, text := range []string{"", "   ", "\n\n\t  \n"} {
		if got := s.Split(text); len(got) != 0 {
			t.Errorf("Split(%q) = %v, want empty", text, got)
		}
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	s, err := NewMarkdownSplitter(50, 10)
	if err != nil {
		t.Fatal(err)
	}

	texts := []string{
		strings.Repeat("가", 500),
		strings.Repeat("문장입니다. ", 100),
		"# 제목\n" + strings.Repeat("내용 문단. ", 40) + "\n## 소제목\n" + strings.Repeat("다른 내용. ", 40),
	}

	for _, text := range texts {
		for i, chunk := range s.Split(text) {
			if n := utf8.RuneCountInString(chunk); n > 50 {
				t.Errorf("chunk %d has %d characters, want <= 50", i, n)
			}
			if strings.TrimSpace(chunk) == "" {
				t.Errorf("chunk %d is blank", i)
			}
		}
	}
}

func TestSplitTerminatesWithoutBoundaries(t *testing.T) {
	// A long run of a single character has no sentence boundary; the
	// window must still advance and cover the whole input.
	s, err := NewMarkdownSplitter(50, 10)
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("가", 500)
	chunks := s.Split(text)
	if len(chunks) == 0 {
		t.Fatal("expected chunks, got none")
	}

	total := 0
	for _, chunk := range chunks {
		total += utf8.RuneCountInString(chunk)
	}
	// With 10 characters of overlap the chunks together must cover at
	// least the input length.
	if total < 500 {
		t.Errorf("chunks cover %d characters, want >= 500", total)
	}
}

func TestSplitExactChunkSize(t *testing.T) {
	s, err := NewMarkdownSplitter(20, 5)
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("a", 20)
	chunks := s.Split(text)
	if len(chunks) != 1 || chunks[0] != text {
		t.Errorf("Split of exact-size input = %v, want one unmodified chunk", chunks)
	}
}

func TestSplitSectionBoundaries(t *testing.T) {
	s, err := NewMarkdownSplitter(500, 50)
	if err != nil {
		t.Fatal(err)
	}

	text := "# 개요\n첫 번째 섹션의 내용입니다.\n## 설치\n두 번째 섹션의 내용입니다.\n---\n세 번째 섹션의 내용입니다."
	chunks := s.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3: %v", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[0], "# 개요") {
		t.Errorf("first chunk should start with its heading, got %q", chunks[0])
	}
	if !strings.HasPrefix(chunks[1], "## 설치") {
		t.Errorf("second chunk should start with its heading, got %q", chunks[1])
	}
	if !strings.HasPrefix(chunks[2], "---") {
		t.Errorf("third chunk should start with its rule line, got %q", chunks[2])
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	s, err := NewMarkdownSplitter(30, 0)
	if err != nil {
		t.Fatal(err)
	}

	text := "첫 번째 문장입니다. 두 번째 문장은 조금 더 길게 이어집니다. 세 번째 문장입니다."
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %v", chunks)
	}
	// Every chunk except possibly the last should end on a terminator,
	// because the window cuts at the nearest one.
	for i, chunk := range chunks[:len(chunks)-1] {
		last := chunk[len(chunk)-1]
		if last != '.' && last != '!' && last != '?' {
			t.Errorf("chunk %d does not end at a sentence boundary: %q", i, chunk)
		}
	}
}

func TestSplitOverlapRepeatsCharacters(t *testing.T) {
	s, err := NewMarkdownSplitter(50, 10)
	if err != nil {
		t.Fatal(err)
	}

	chunks := s.Split(strings.Repeat("가나다라마바사아자차", 30))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		tail := string(prev[len(prev)-10:])
		if !strings.HasPrefix(chunks[i], tail) {
			t.Errorf("chunk %d does not repeat the previous chunk's tail", i)
		}
	}
}
