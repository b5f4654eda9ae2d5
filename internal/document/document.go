// Package document turns uploaded résumé files into plain text.
package document

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrCorruptDocument   = errors.New("corrupt document")
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Raw is an uploaded document. Data is never modified by the extractor.
type Raw struct {
	Data     []byte
	Format   Format
	Filename string
}

// ParseFormat normalizes a format tag such as "PDF" or ".docx".
func ParseFormat(tag string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(tag)), ".")); f {
	case FormatPDF, FormatDOCX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, tag)
	}
}

// FormatFromFilename derives the format from the file extension.
func FormatFromFilename(name string) (Format, error) {
	return ParseFormat(filepath.Ext(name))
}

type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract returns the flattened text of the document. Pages or paragraphs
// without extractable text contribute an empty string, so an image-only
// document yields "" rather than an error.
func (e *Extractor) Extract(ctx context.Context, doc Raw) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	switch doc.Format {
	case FormatPDF:
		text, err = e.extractPDF(doc.Data)
	case FormatDOCX:
		text, err = extractDOCX(doc.Data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, doc.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Debug("document extracted",
		zap.String("format", string(doc.Format)),
		zap.String("filename", doc.Filename),
		zap.Int("bytes", len(doc.Data)),
		zap.Int("chars", len(text)),
	)

	return text, nil
}

func corrupt(format Format, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCorruptDocument, format, err)
}
