package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

var errNoPages = errors.New("document has no pages")

// pageSource abstracts the parsed PDF so page assembly can be tested without
// real PDF fixtures.
type pageSource interface {
	NumPage() int
	PageText(index int) (string, error)
}

type pdfPages struct {
	reader *pdf.Reader
}

func (p pdfPages) NumPage() int {
	return p.reader.NumPage()
}

// PageText pages are 1-based. The pdf library panics on some malformed
// content streams; that is reported as a page error.
func (p pdfPages) PageText(index int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", index, r)
		}
	}()

	page := p.reader.Page(index)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func (e *Extractor) extractPDF(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", corrupt(FormatPDF, errors.New("empty input"))
	}

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = corrupt(FormatPDF, fmt.Errorf("%v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", corrupt(FormatPDF, err)
	}

	return joinPages(pdfPages{reader: reader}, e.logger)
}

func joinPages(src pageSource, logger *zap.Logger) (string, error) {
	total := src.NumPage()
	if total <= 0 {
		return "", corrupt(FormatPDF, errNoPages)
	}

	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		text, err := src.PageText(i)
		if err != nil {
			logger.Debug("page text is not extractable", zap.Int("page", i), zap.Error(err))
			text = ""
		}
		pages = append(pages, text)
	}

	return strings.Join(pages, "\n"), nil
}
