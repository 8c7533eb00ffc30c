package index

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"go.uber.org/zap"
)

// page is extracted text with its 1-based page number, 0 when the format has no pages.
type page struct {
	Number int
	Text   string
}

var (
	reMultiNewlines = regexp.MustCompile(`\n{3,}`)
	reDocxParagraph = regexp.MustCompile(`</w:p>`)
	reXMLTag        = regexp.MustCompile(`<[^>]+>`)
)

// extract returns the text of a document by extension.
func extract(ext string, data []byte, logger *zap.Logger) ([]page, error) {
	switch ext {
	case ".pdf":
		return extractPDF(data, logger)
	case ".docx":
		return extractDOCX(data)
	case ".txt", ".md":
		return []page{{Text: cleanText(string(data))}}, nil
	default:
		return nil, fmt.Errorf("no parser for %s", ext)
	}
}

func extractPDF(data []byte, logger *zap.Logger) ([]page, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var pages []page
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			logger.Warn("pdf page unreadable", zap.Int("page", i), zap.Error(err))
			continue
		}
		if text = cleanText(text); text != "" {
			pages = append(pages, page{Number: i, Text: text})
		}
	}
	return pages, nil
}

func extractDOCX(data []byte) ([]page, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	xml := r.Editable().GetContent()
	xml = reDocxParagraph.ReplaceAllString(xml, "\n")
	text := reXMLTag.ReplaceAllString(xml, "")
	return []page{{Text: cleanText(unescapeXML(text))}}, nil
}

var xmlEntities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'")

func unescapeXML(s string) string { return xmlEntities.Replace(s) }

func cleanText(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(reMultiNewlines.ReplaceAllString(s, "\n\n"))
}
