// Package parsers extracts text from documents locally, without an AI backend.
package parsers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/local/docuglean/internal/document"
)

// ErrUnsupported is returned for formats no local parser can read.
var ErrUnsupported = errors.New("unsupported file type")

// Result is the text of a document, split into pages where the format has them
// (PDF pages, slides, sheets).
type Result struct {
	Text  string
	Pages []string
	MIME  string
	Kind  Kind
}

type Parser struct {
	// Converter handles legacy formats. Nil disables them.
	Converter *Converter
}

func New() *Parser {
	return &Parser{Converter: NewConverter(2)}
}

// ParseFile reads and parses the file at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.Parse(ctx, filepath.Base(path), data)
}

// Parse extracts the text of data, named name.
func (p *Parser) Parse(ctx context.Context, name string, data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, errors.New("file is empty")
	}
	info := Detect(name, data)
	log.Debug().Str("file", name).Str("mime", info.MIME).Str("kind", string(info.Kind)).Msg("parsing document locally")

	pages, err := p.pages(ctx, name, data, info)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:  strings.TrimSpace(strings.Join(pages, "\n\n")),
		Pages: pages,
		MIME:  info.MIME,
		Kind:  info.Kind,
	}, nil
}

func (p *Parser) pages(ctx context.Context, name string, data []byte, info Info) ([]string, error) {
	switch info.Kind {
	case KindPDF:
		return pdfPages(name, data)
	case KindDOCX:
		return parseDOCX(data)
	case KindPPTX:
		return parsePPTX(data)
	case KindXLSX:
		return parseXLSX(data)
	case KindODT:
		return parseODF(data, odtRules)
	case KindODP:
		return parseODF(data, odpRules)
	case KindODS:
		return parseODF(data, odsRules)
	case KindCSV:
		return parseCSV(data)
	case KindText:
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%w: %s is not valid utf-8", ErrUnsupported, info.MIME)
		}
		return []string{string(data)}, nil
	case KindLegacy:
		if p.Converter == nil {
			return nil, fmt.Errorf("%w: %s needs conversion", ErrUnsupported, info.MIME)
		}
		pdf, err := p.Converter.ConvertToPDF(ctx, name, data)
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", name, err)
		}
		return pdfPages(name, pdf)
	case KindImage:
		return nil, fmt.Errorf("%w: %s needs an OCR backend", ErrUnsupported, info.MIME)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, info.MIME)
}

func pdfPages(name string, data []byte) ([]string, error) {
	return document.PageTexts(&document.Document{Ref: name, Name: name, MIME: document.MIMEPDF, Data: data})
}
