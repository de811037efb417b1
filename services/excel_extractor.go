package services

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExcelExtractor flattens supplementary tabular forms (compliance checklists,
// prescriptive tables) into a single pseudo-document for chunking.
type ExcelExtractor struct{}

// NewExcelExtractor creates a new Excel extractor
func NewExcelExtractor() *ExcelExtractor {
	return &ExcelExtractor{}
}

// ExtractText concatenates every cell of every sheet into one page of text.
// Tabular forms have no meaningful pagination, so the whole file becomes a
// single locator unit.
func (e *ExcelExtractor) ExtractText(path string) ([]Page, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open form %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			for _, cell := range row {
				cell = strings.TrimSpace(cell)
				if cell == "" {
					continue
				}
				sb.WriteString(cell)
				sb.WriteString("\n")
			}
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, fmt.Errorf("no cell text extracted from %s", path)
	}
	return []Page{{Number: 1, Text: text}}, nil
}
