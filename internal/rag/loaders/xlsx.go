package loaders

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/KOO-96/chatbot-study/internal/rag/interfaces"
)

// XlsxLoader converts Excel workbooks into markdown tables, one section per
// sheet, so the chunker can split them at sheet boundaries.
type XlsxLoader struct{}

// NewXlsxLoader creates a new XlsxLoader.
func NewXlsxLoader() *XlsxLoader {
	return &XlsxLoader{}
}

// Load reads an .xlsx file and renders each sheet as a markdown table under
// a sheet heading.
func (l *XlsxLoader) Load(ctx context.Context, path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil || len(rows) == 0 {
			continue
		}

		sb.WriteString(fmt.Sprintf("# %s\n\n", sheetName))
		sb.WriteString("| " + strings.Join(rows[0], " | ") + " |\n")
		sb.WriteString("|" + strings.Repeat(" --- |", len(rows[0])) + "\n")
		for _, row := range rows[1:] {
			sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

var _ interfaces.Loader = (*XlsxLoader)(nil)
