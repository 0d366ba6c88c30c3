package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

// Extractor reads the text layer and page tree of in-memory PDFs.
type Extractor struct {
	maxChars int
}

// NewExtractor limits extracted text to maxChars bytes; zero means unlimited.
func NewExtractor(maxChars int) *Extractor {
	return &Extractor{maxChars: maxChars}
}

func (e *Extractor) CountPages(content []byte) (pages int, err error) {
	defer recoverMalformed(&err)

	reader, err := open(content)
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}

func (e *Extractor) Extract(ctx context.Context, doc domain.Document) (text string, err error) {
	defer recoverMalformed(&err)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	reader, err := open(doc.Content)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", doc.Name, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", doc.Name, err)
	}
	var src io.Reader = plain
	if e.maxChars > 0 {
		src = io.LimitReader(plain, int64(e.maxChars)+1)
	}
	raw, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", doc.Name, err)
	}
	text = string(raw)
	if e.maxChars > 0 {
		text = cutAtRune(text, e.maxChars)
	}
	return strings.TrimSpace(text), nil
}

// cutAtRune shortens s to at most n bytes without splitting a UTF-8 sequence.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func open(content []byte) (*pdf.Reader, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("empty pdf")
	}
	return pdf.NewReader(bytes.NewReader(content), int64(len(content)))
}

func recoverMalformed(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("malformed pdf: %v", r)
	}
}
