package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

// ContentKind buckets a Drive file into the pipeline path that handles it.
type ContentKind string

const (
	KindImage  ContentKind = "image"
	KindVideo  ContentKind = "video"
	KindAudio  ContentKind = "audio"
	KindPDF    ContentKind = "pdf"
	KindOffice ContentKind = "office"
	KindText   ContentKind = "text"
)

const (
	// maxPromptTextBytes caps extracted text so prompts stay within model
	// context limits.
	maxPromptTextBytes = 20_000
	maxPDFPages        = 25
)

var officeExtensions = map[string]string{
	".docx": "word",
	".pptx": "slides",
	".xlsx": "sheet",
}

// Content is what the extractor hands to the AI provider: either raw bytes
// (image/audio/video) or text pulled out of the document.
type Content struct {
	Kind      ContentKind
	MIME      string
	Data      []byte
	Text      string
	PageCount int
}

type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// ClassifyMIME maps a Drive MIME type (with a filename fallback) to a
// pipeline content kind. Unsupported types return an error so the caller
// can fail the file with a clear message.
func ClassifyMIME(mimeType, name string) (ContentKind, error) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return KindImage, nil
	case strings.HasPrefix(mt, "video/"):
		return KindVideo, nil
	case strings.HasPrefix(mt, "audio/"):
		return KindAudio, nil
	case mt == "application/pdf":
		return KindPDF, nil
	case strings.HasPrefix(mt, "text/"), mt == "application/json", mt == "application/xml":
		return KindText, nil
	}

	if _, ok := officeExtensions[strings.ToLower(filepath.Ext(name))]; ok {
		return KindOffice, nil
	}
	switch mt {
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return KindOffice, nil
	}

	return "", fmt.Errorf("unsupported mime type %q for file %q", mimeType, name)
}

// Extract turns downloaded bytes into provider-ready content. Media files
// pass through untouched; documents are reduced to text.
func (e *Extractor) Extract(name, mimeType string, data []byte) (Content, error) {
	kind, err := ClassifyMIME(mimeType, name)
	if err != nil {
		return Content{}, err
	}

	content := Content{Kind: kind, MIME: mimeType, Data: data}

	switch kind {
	case KindImage, KindVideo, KindAudio:
		return content, nil

	case KindText:
		content.Text = capText(string(data))
		content.Data = nil
		return content, nil

	case KindPDF:
		text, pages, err := e.extractPDF(data)
		if err != nil {
			return Content{}, fmt.Errorf("extract pdf %s: %w", name, err)
		}
		content.Text = text
		content.PageCount = pages
		return content, nil

	case KindOffice:
		text, err := extractOfficeText(name, mimeType, data)
		if err != nil {
			return Content{}, fmt.Errorf("extract office document %s: %w", name, err)
		}
		content.Text = text
		content.Data = nil
		return content, nil
	}

	return Content{}, fmt.Errorf("unhandled content kind %q", kind)
}

// extractPDF validates the document and scrapes literal text strings from
// its page content streams. The PDF bytes are kept as well so providers
// that accept documents natively can use them directly.
func (e *Extractor) extractPDF(data []byte) (string, int, error) {
	conf := model.NewDefaultConfiguration()

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return "", 0, fmt.Errorf("parse pdf: %w", err)
	}

	pages := ctx.PageCount
	if pages > maxPDFPages {
		return "", pages, fmt.Errorf("pdf has %d pages, above the %d page limit", pages, maxPDFPages)
	}

	var sb strings.Builder
	for page := 1; page <= pages; page++ {
		r, err := pdfcpu.ExtractPageContent(ctx, page)
		if err != nil {
			e.logger.Warn("skipping unreadable pdf page", zap.Int("page", page), zap.Error(err))
			continue
		}
		if r == nil {
			continue
		}
		raw, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		scrapeContentStream(raw, &sb)
		if sb.Len() > maxPromptTextBytes {
			break
		}
	}

	return capText(sb.String()), pages, nil
}

// scrapeContentStream collects the literal strings of a PDF content stream.
// It understands balanced parentheses and backslash escapes; anything else
// in the stream is operator noise and is dropped.
func scrapeContentStream(raw []byte, sb *strings.Builder) {
	depth := 0
	escaped := false
	var current []byte

	for _, b := range raw {
		if depth == 0 {
			if b == '(' {
				depth = 1
				current = current[:0]
			}
			continue
		}

		if escaped {
			switch b {
			case 'n':
				current = append(current, '\n')
			case 't':
				current = append(current, '\t')
			case '(', ')', '\\':
				current = append(current, b)
			}
			escaped = false
			continue
		}

		switch b {
		case '\\':
			escaped = true
		case '(':
			depth++
			current = append(current, b)
		case ')':
			depth--
			if depth == 0 {
				if text := strings.TrimSpace(string(current)); text != "" {
					sb.WriteString(text)
					sb.WriteByte(' ')
				}
			} else {
				current = append(current, b)
			}
		default:
			current = append(current, b)
		}
	}
}

// extractOfficeText pulls the readable text out of an OOXML container.
func extractOfficeText(name, mimeType string, data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open ooxml container: %w", err)
	}

	var targets []string
	switch officeVariant(name, mimeType) {
	case "word":
		targets = []string{"word/document.xml"}
	case "sheet":
		targets = []string{"xl/sharedStrings.xml"}
	case "slides":
		for _, f := range zr.File {
			if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
				targets = append(targets, f.Name)
			}
		}
	default:
		// Unknown variant; try the docx layout.
		targets = []string{"word/document.xml"}
	}

	var sb strings.Builder
	for _, target := range targets {
		entry := findZipEntry(zr, target)
		if entry == nil {
			continue
		}
		if err := appendXMLText(entry, &sb); err != nil {
			return "", err
		}
		if sb.Len() > maxPromptTextBytes {
			break
		}
	}

	text := capText(sb.String())
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no readable text in %s", name)
	}
	return text, nil
}

func officeVariant(name, mimeType string) string {
	if variant, ok := officeExtensions[strings.ToLower(filepath.Ext(name))]; ok {
		return variant
	}
	switch strings.ToLower(mimeType) {
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "word"
	case "application/vnd.openxmlformats-officedocument.presentationml.presentation":
		return "slides"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "sheet"
	}
	return ""
}

func findZipEntry(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func appendXMLText(entry *zip.File, sb *strings.Builder) error {
	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Name, err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode %s: %w", entry.Name, err)
		}
		if cd, ok := tok.(xml.CharData); ok {
			if text := strings.TrimSpace(string(cd)); text != "" {
				sb.WriteString(text)
				sb.WriteByte(' ')
			}
		}
	}
}

func capText(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= maxPromptTextBytes {
		return text
	}
	capped := text[:maxPromptTextBytes]
	for len(capped) > 0 && capped[len(capped)-1]&0xC0 == 0x80 {
		capped = capped[:len(capped)-1]
	}
	return capped
}
