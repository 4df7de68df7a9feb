package extractor

import (
	"fmt"

	"github.com/ledongthuc/pdf"

	"docqa/internal/domain"
)

// extractPDF returns the plain text of every page. A page that fails to
// decode becomes an empty string; only an unreadable file is an error.
func (e *Extractor) extractPDF(path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("%w: malformed pdf: %v", domain.ErrExtraction, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	defer f.Close()

	n := r.NumPage()
	pages = make([]string, n)
	for i := 1; i <= n; i++ {
		text, perr := pageText(r, i)
		if perr != nil {
			e.log.Warn("Failed to extract pdf page", "path", path, "page", i, "error", perr)
			continue
		}
		pages[i-1] = text
	}
	return pages, nil
}

func pageText(r *pdf.Reader, i int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: %v", i, rec)
		}
	}()

	p := r.Page(i)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}
