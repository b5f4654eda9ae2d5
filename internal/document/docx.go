package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	docxBody    = "word/document.xml"
	wordprocess = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
)

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", corrupt(FormatDOCX, errors.New("empty input"))
	}

	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", corrupt(FormatDOCX, err)
	}

	var body *zip.File
	for _, f := range archive.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return "", corrupt(FormatDOCX, fmt.Errorf("%s not found", docxBody))
	}

	rc, err := body.Open()
	if err != nil {
		return "", corrupt(FormatDOCX, err)
	}
	defer rc.Close()

	paragraphs, err := readParagraphs(rc)
	if err != nil {
		return "", corrupt(FormatDOCX, err)
	}

	return strings.Join(paragraphs, "\n"), nil
}

// readParagraphs walks w:p elements in document order. Text of paragraphs
// nested inside another paragraph (text boxes) is folded into the outer one.
func readParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		depth      int
		inText     bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordprocess {
				continue
			}
			switch t.Name.Local {
			case "p":
				if depth == 0 {
					current.Reset()
				}
				depth++
			case "t":
				inText = true
			case "tab":
				if depth > 0 {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if depth > 0 {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if t.Name.Space != wordprocess {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if depth == 0 {
					continue
				}
				depth--
				if depth == 0 {
					paragraphs = append(paragraphs, current.String())
				}
			}
		case xml.CharData:
			if inText && depth > 0 {
				current.Write(t)
			}
		}
	}

	return paragraphs, nil
}
