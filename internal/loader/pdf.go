// ABOUTME: PDF extraction through github.com/ledongthuc/pdf
// ABOUTME: Only the plain text layer is read; scanned pages yield no text
package loader

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

func loadPDF(path string) (string, map[string]any, error) {
	f, rdr, err := pdf.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	b, err := rdr.GetPlainText()
	if err != nil {
		return "", nil, fmt.Errorf("failed to extract text from %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", nil, fmt.Errorf("failed to read text from %s: %w", path, err)
	}

	return cleanText(buf.String()), map[string]any{
		"parser":     "pdf",
		"page_count": rdr.NumPage(),
	}, nil
}
