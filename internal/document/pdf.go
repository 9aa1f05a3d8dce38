package document

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"strings"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
)

const MIMEPDF = "application/pdf"

var ErrNotPDF = errors.New("document is not a pdf")

// IsPDF reports whether d was sniffed as a PDF.
func (d *Document) IsPDF() bool { return d.MIME == MIMEPDF }

// PageCount returns the number of pages. Images count as a single page.
func PageCount(d *Document) (int, error) {
	if strings.HasPrefix(d.MIME, "image/") {
		return 1, nil
	}
	if !d.IsPDF() {
		return 0, fmt.Errorf("%w: %s", ErrNotPDF, d.MIME)
	}
	n, err := api.PageCount(bytes.NewReader(d.Data), nil)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}

// PageTexts extracts the text of every page with MuPDF. Index i holds page i+1.
func PageTexts(d *Document) ([]string, error) {
	if !d.IsPDF() {
		return nil, fmt.Errorf("%w: %s", ErrNotPDF, d.MIME)
	}
	doc, err := fitz.NewFromMemory(d.Data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := make([]string, doc.NumPage())
	for i := range pages {
		text, err := doc.Text(i)
		if err != nil {
			log.Warn().Err(err).Int("page", i+1).Str("ref", d.Ref).Msg("failed to extract page text")
			continue
		}
		pages[i] = strings.TrimSpace(text)
	}
	return pages, nil
}

// RenderPNG renders each page at dpi and returns PNG bytes in page order.
func RenderPNG(d *Document, dpi float64) ([][]byte, error) {
	if !d.IsPDF() {
		return nil, fmt.Errorf("%w: %s", ErrNotPDF, d.MIME)
	}
	if dpi <= 0 {
		dpi = 300
	}
	doc, err := fitz.NewFromMemory(d.Data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	out := make([][]byte, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i+1, err)
		}
		out = append(out, buf.Bytes())
	}
	log.Debug().Str("ref", d.Ref).Int("pages", len(out)).Float64("dpi", dpi).Msg("rendered pdf pages")
	return out, nil
}
