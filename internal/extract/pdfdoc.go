package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/doc-extractor/internal/ocr"
)

// PDFDocument is the page-level view of a PDF. Pages are numbered from 1.
type PDFDocument interface {
	NumPages() int
	PageText(n int) (string, error)
	PageHasImages(n int) bool
}

// PDFOpener opens the text layer of a PDF.
type PDFOpener func(f File) (PDFDocument, error)

// OpenPDF parses f with the pure-Go PDF reader. Malformed files make that reader panic,
// so every call into it is guarded.
func OpenPDF(f File) (doc PDFDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("pdf parser panic: %v", r)
		}
	}()
	r, err := pdf.NewReader(f, f.Size())
	if err != nil {
		return nil, err
	}
	d := &parsedPDF{r: r}
	if d.NumPages() == 0 {
		return nil, fmt.Errorf("pdf has no readable pages")
	}
	return d, nil
}

type parsedPDF struct {
	r *pdf.Reader
}

func (d *parsedPDF) NumPages() (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	return d.r.NumPage()
}

func (d *parsedPDF) PageText(n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("page %d: pdf parser panic: %v", n, r)
		}
	}()
	p := d.r.Page(n)
	if p.V.IsNull() {
		return "", fmt.Errorf("page %d: missing page object", n)
	}
	return p.GetPlainText(nil)
}

// PageHasImages reports whether the page resources declare an image XObject.
func (d *parsedPDF) PageHasImages(n int) (found bool) {
	defer func() {
		if recover() != nil {
			found = false
		}
	}()
	p := d.r.Page(n)
	if p.V.IsNull() {
		return false
	}
	xobjects := p.Resources().Key("XObject")
	for _, name := range xobjects.Keys() {
		if xobjects.Key(name).Key("Subtype").Name() == "Image" {
			return true
		}
	}
	return false
}

// textPages is a PDFDocument over already extracted page texts.
type textPages []string

func (t textPages) NumPages() int { return len(t) }

func (t textPages) PageText(n int) (string, error) {
	if n < 1 || n > len(t) {
		return "", fmt.Errorf("page %d out of range", n)
	}
	return t[n-1], nil
}

func (t textPages) PageHasImages(int) bool { return false }

// pdftotextPages runs pdftotext and splits its output on form feeds, one per page.
func pdftotextPages(ctx context.Context, r ocr.Runner, logger *slog.Logger, bin, path string) (textPages, error) {
	out, errb, err := r.Run(ctx, bin, logger, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %s", bin, err, ocr.Truncate(string(errb), 512))
	}
	pages := strings.Split(string(out), "\f")
	// pdftotext terminates the last page with a form feed too
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return textPages(pages), nil
}
