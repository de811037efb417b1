package services

import (
	"fmt"

	"eebc-advisor/internal/logger"

	"github.com/ledongthuc/pdf"
)

// Page is one locator unit of a source document: a page number and its raw
// extracted text.
type Page struct {
	Number int
	Text   string
}

// PDFExtractor extracts paginated plain text from the primary code document.
type PDFExtractor struct{}

// NewPDFExtractor creates a new PDF extractor
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractPages returns the ordered (page number, text) sequence of the PDF.
// Pages that fail text extraction are skipped with a warning; the page
// numbering of the remaining pages is preserved.
func (e *PDFExtractor) ExtractPages(path string) ([]Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([]Page, 0, numPages)

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract text from page", "page", i, "error", err)
			continue
		}

		pages = append(pages, Page{Number: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no text extracted from %s", path)
	}
	return pages, nil
}
