package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFFactory opens PDF documents.
//
// PDFs carry no chapter structure the engine can use directly, so each page
// is treated as one chapter. Content is a page reference the rendering
// surface resolves itself; the engine only needs stable chapter indices and
// page counts for windowing.
type PDFFactory struct{}

// Name returns "pdf".
func (PDFFactory) Name() string { return "pdf" }

// CanHandle reports whether path looks like a PDF file.
func (PDFFactory) CanHandle(path string) bool {
	return pathExt(path) == ".pdf"
}

// Open validates the PDF and counts its pages.
func (PDFFactory) Open(path string) (Provider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", ErrParse, err)
	}
	defer f.Close()

	pageCount, err := api.PageCount(f, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: count pdf pages: %v", ErrParse, err)
	}
	if pageCount == 0 {
		return nil, fmt.Errorf("%w: pdf has no pages", ErrParse)
	}

	return &pdfProvider{path: path, pageCount: pageCount}, nil
}

// pdfProvider exposes one PDF page per chapter.
type pdfProvider struct {
	path      string
	pageCount int
}

func (p *pdfProvider) Name() string { return "pdf" }

// ChapterCount returns the PDF's page count.
func (p *pdfProvider) ChapterCount(ctx context.Context) (int, error) {
	return p.pageCount, nil
}

// ChapterContent returns a page reference for chapter i. Page numbers in
// the emitted markup are 1-indexed, matching PDF conventions.
func (p *pdfProvider) ChapterContent(ctx context.Context, i int) (Content, error) {
	if i < 0 || i >= p.pageCount {
		return Content{}, fmt.Errorf("%w: page %d of %d", ErrInvalidChapter, i, p.pageCount)
	}
	pageNum := i + 1
	return Content{
		Text: fmt.Sprintf("Page %d", pageNum),
		HTML: fmt.Sprintf(`<section class="pdf-page" data-src=%q data-page="%d"></section>`, p.path, pageNum),
	}, nil
}

// TableOfContents returns nil: PDF outline extraction is not supported, so
// navigation falls back to generated page titles.
func (p *pdfProvider) TableOfContents(ctx context.Context) ([]TOCEntry, error) {
	return nil, nil
}

// Close is a no-op; the file is not held open between reads.
func (p *pdfProvider) Close() error { return nil }
