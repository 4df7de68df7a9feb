package extractor

import (
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
)

var _ port.Extractor = (*Extractor)(nil)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeZIP  = "application/zip"
)

// Extractor dispatches on the file extension.
type Extractor struct {
	log logger.Logger
}

func New(log logger.Logger) *Extractor {
	if log == nil {
		log = logger.Default()
	}
	return &Extractor{log: log}
}

// Sniff rejects content whose detected type contradicts the extension.
func (e *Extractor) Sniff(ext string, data []byte) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	mt := mimetype.Detect(data)

	switch ext {
	case "pdf":
		if !mt.Is(mimePDF) {
			return mt.String(), fmt.Errorf("%w: content of .pdf file is %s", domain.ErrExtraction, mt.String())
		}
	case "docx":
		if !isA(mt, mimeDOCX, mimeZIP) {
			return mt.String(), fmt.Errorf("%w: content of .docx file is %s", domain.ErrExtraction, mt.String())
		}
	case "txt":
		// anything decodes as text; invalid UTF-8 is replaced on extraction
	default:
		return mt.String(), domain.Invalid(domain.ErrUnsupportedType, "Unsupported file type: "+ext)
	}
	return mt.String(), nil
}

// isA walks the detected type and its parents. A docx is a zip, and some
// writers produce archives mimetype only recognises as the parent.
func isA(mt *mimetype.MIME, types ...string) bool {
	for m := mt; m != nil; m = m.Parent() {
		for _, t := range types {
			if m.Is(t) {
				return true
			}
		}
	}
	return false
}

func (e *Extractor) Extract(path string) ([]string, error) {
	ext := domain.FileType(path)
	switch ext {
	case "pdf":
		return e.extractPDF(path)
	case "docx":
		return extractDOCX(path)
	case "txt":
		return extractTXT(path)
	default:
		return nil, domain.Invalid(domain.ErrUnsupportedType, "Unsupported file type: "+ext)
	}
}

func extractTXT(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	return []string{strings.ToValidUTF8(string(data), "�")}, nil
}
