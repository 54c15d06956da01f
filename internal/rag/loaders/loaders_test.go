package loaders

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		path    string
		want    any
		wantErr bool
	}{
		{path: "doc.txt", want: &TxtLoader{}},
		{path: "doc.md", want: &MarkdownLoader{}},
		{path: "DOC.MD", want: &MarkdownLoader{}},
		{path: "doc.markdown", want: &MarkdownLoader{}},
		{path: "doc.pdf", want: &PDFLoader{}},
		{path: "doc.xlsx", want: &XlsxLoader{}},
		{path: "doc.exe", wantErr: true},
		{path: "doc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			loader, err := ForFile(tt.path)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFileType) {
					t.Fatalf("error = %v, want ErrUnsupportedFileType", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if loader == nil {
				t.Fatal("nil loader")
			}
		})
	}
}

func TestTxtLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	content := "첫 줄입니다.\n둘째 줄입니다.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := NewTxtLoader().Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if got != content {
		t.Errorf("Load = %q, want file content unchanged", got)
	}

	if _, err := NewTxtLoader().Load(context.Background(), filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMarkdownLoaderPreservesStructure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	content := "# 제목\n\n본문 내용입니다.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := NewMarkdownLoader().Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if got != content {
		t.Errorf("Load = %q, want markdown unchanged", got)
	}
}

func TestXlsxLoaderRendersSheetsAsMarkdown(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	f.SetCellValue(sheet, "A1", "항목")
	f.SetCellValue(sheet, "B1", "값")
	f.SetCellValue(sheet, "A2", "포트")
	f.SetCellValue(sheet, "B2", 8000)

	path := filepath.Join(t.TempDir(), "doc.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	got, err := NewXlsxLoader().Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "# "+sheet) {
		t.Errorf("sheet heading missing: %q", got)
	}
	if !strings.Contains(got, "| 항목 | 값 |") {
		t.Errorf("header row missing: %q", got)
	}
	if !strings.Contains(got, "| 포트 | 8000 |") {
		t.Errorf("data row missing: %q", got)
	}
}
