package docuglean

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"


	"github.com/local/docuglean/internal/ai"
	"github.com/local/docuglean/internal/document"
	logpkg "github.com/local/docuglean/internal/logger"
	"github.com/local/docuglean/internal/metrics"
	"github.com/local/docuglean/internal/parsers"
)

const defaultOCRPrompt = "Extract and format all text content from this document."

// ErrUnsupportedFormat is returned when a local parser cannot read a document.
var ErrUnsupportedFormat = parsers.ErrUnsupported

type OCRConfig struct {
	FilePath string
	APIKey   string
	// Backend defaults to Mistral. Local needs no API key and reads PDFs only.
	Backend Backend
	Model   string
	// Prompt is sent to multimodal backends; the dedicated OCR endpoint
	// ignores it.
	Prompt    string
	MaxTokens int
	// IncludeImages asks the Mistral OCR endpoint for the images embedded in
	// each page.
	IncludeImages bool
	// Sampling options for multimodal backends. OpenAI ignores TopK.
	Temperature *float64
	TopP        *float64
	TopK        *int
}

// OCRImage is an image cut out of a page, with its bounding box in pixels.
type OCRImage struct {
	ID           string `json:"id"`
	TopLeftX     int    `json:"topLeftX"`
	TopLeftY     int    `json:"topLeftY"`
	BottomRightX int    `json:"bottomRightX"`
	BottomRightY int    `json:"bottomRightY"`
	Base64       string `json:"imageBase64,omitempty"`
}

type OCRPage struct {
	Index    int        `json:"index"`
	Markdown string     `json:"markdown"`
	Images   []OCRImage `json:"images,omitempty"`
}

type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

func usageOf(u ai.Usage) Usage {
	return Usage{InputTokens: u.InputTokens, OutputTokens: u.OutputTokens}
}

type OCRResult struct {
	Text    string    `json:"text"`
	Pages   []OCRPage `json:"pages,omitempty"`
	Backend Backend   `json:"backend"`
	Model   string    `json:"model,omitempty"`
	Usage   Usage     `json:"usage"`
}

// OCR extracts the text of a document using the default client.
func OCR(ctx context.Context, cfg OCRConfig) (*OCRResult, error) {
	return defaultClient.OCR(ctx, cfg)
}

// OCR extracts the text of the document at cfg.FilePath. Mistral uses its
// dedicated OCR endpoint, the other AI backends receive the document inline
// with a prompt, and Local parses the PDF text layer on this machine.
func (c *Client) OCR(ctx context.Context, cfg OCRConfig) (*OCRResult, error) {
	b, err := resolveBackend(cfg.FilePath, cfg.APIKey, cfg.Backend, true)
	if err != nil {
		return nil, err
	}
	logger := logpkg.Request("ocr", b.String(), cfg.Model).With().Str("file", cfg.FilePath).Logger()

	doc, err := c.document(ctx, cfg.FilePath)
	if err != nil {
		return nil, err
	}

	if b == Local {
		return c.ocrLocal(ctx, doc)
	}

	client, err := c.backendClient(b, cfg.APIKey)
	if err != nil {
		return nil, invalidArgument("%v", err)
	}

	start := time.Now()
	var res *OCRResult
	if oc, ok := client.(ai.OCRClient); ok {
		res, err = c.ocrEndpoint(ctx, oc, b, cfg, doc)
	} else {
		res, err = c.ocrPrompt(ctx, client, b, cfg, doc)
	}

	model := cfg.Model
	if res != nil {
		model = res.Model
	}
	metrics.ObserveBackend(b.String(), model, "ocr", ai.Classify(err), time.Since(start))
	if err != nil {
		logger.Error().Err(err).Msg("ocr failed")
		return nil, err
	}
	logger.Info().Int("chars", len(res.Text)).Int("pages", len(res.Pages)).Dur("duration", time.Since(start)).Msg("ocr complete")
	return res, nil
}

func (c *Client) ocrEndpoint(ctx context.Context, oc ai.OCRClient, b Backend, cfg OCRConfig, doc *document.Document) (*OCRResult, error) {
	model := cfg.Model
	if model == "" {
		model = b.DefaultOCRModel()
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := oc.OCR(ctx, ai.OCRRequest{
		Model:         model,
		Document:      *attachment(doc),
		IncludeImages: cfg.IncludeImages,
	})
	if err != nil {
		return nil, err
	}

	pages := make([]OCRPage, 0, len(resp.Pages))
	parts := make([]string, 0, len(resp.Pages))
	for _, p := range resp.Pages {
		page := OCRPage{Index: p.Index, Markdown: p.Markdown}
		for _, img := range p.Images {
			page.Images = append(page.Images, OCRImage(img))
		}
		pages = append(pages, page)
		if md := strings.TrimSpace(p.Markdown); md != "" {
			parts = append(parts, md)
		}
	}
	if len(parts) == 0 {
		return nil, ai.ErrEmptyResponse
	}
	if resp.Model != "" {
		model = resp.Model
	}
	return &OCRResult{
		Text:    strings.Join(parts, "\n\n"),
		Pages:   pages,
		Backend: b,
		Model:   model,
		Usage:   usageOf(resp.Usage),
	}, nil
}

func (c *Client) ocrPrompt(ctx context.Context, client ai.Client, b Backend, cfg OCRConfig, doc *document.Document) (*OCRResult, error) {
	model := cfg.Model
	if model == "" {
		model = b.DefaultOCRModel()
	}
	prompt := cfg.Prompt
	if strings.TrimSpace(prompt) == "" {
		prompt = defaultOCRPrompt
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := client.Complete(ctx, ai.Request{
		Model:       model,
		Prompt:      prompt,
		Attachment:  attachment(doc),
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		TopK:        cfg.TopK,
	})
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, ai.ErrEmptyResponse
	}
	if resp.Model != "" {
		model = resp.Model
	}
	return &OCRResult{Text: text, Backend: b, Model: model, Usage: usageOf(resp.Usage)}, nil
}

func (c *Client) ocrLocal(ctx context.Context, doc *document.Document) (*OCRResult, error) {
	if !doc.IsPDF() {
		return nil, fmt.Errorf("%w: local OCR reads PDF documents only, got %s", ErrUnsupportedFormat, doc.MIME)
	}
	parsed, err := c.parser.Parse(ctx, doc.Name, doc.Data)
	if err != nil {
		return nil, err
	}
	if parsed.Text == "" {
		return nil, errors.New("pdf has no text layer; use an AI backend")
	}
	pages := make([]OCRPage, len(parsed.Pages))
	for i, p := range parsed.Pages {
		pages[i] = OCRPage{Index: i, Markdown: p}
	}
	return &OCRResult{Text: parsed.Text, Pages: pages, Backend: Local}, nil
}

// ParseResult is the locally extracted text of a document.
type ParseResult struct {
	Text  string   `json:"text"`
	Pages []string `json:"pages"`
	MIME  string   `json:"mime"`
}

// ParseDocument extracts text without an AI backend using the default client.
func ParseDocument(ctx context.Context, ref string) (*ParseResult, error) {
	return defaultClient.ParseDocument(ctx, ref)
}

// ParseDocument extracts text from PDF, office, spreadsheet, CSV and plain
// text documents on this machine.
func (c *Client) ParseDocument(ctx context.Context, ref string) (*ParseResult, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, invalidArgument("valid file path is required")
	}
	doc, err := c.document(ctx, ref)
	if err != nil {
		return nil, err
	}
	res, err := c.parser.Parse(ctx, doc.Name, doc.Data)
	if err != nil {
		return nil, err
	}
	return &ParseResult{Text: res.Text, Pages: res.Pages, MIME: res.MIME}, nil
}

// PDFToImages renders every page of a PDF to PNG using the default client.
func PDFToImages(ctx context.Context, ref string, dpi float64) ([][]byte, error) {
	return defaultClient.PDFToImages(ctx, ref, dpi)
}

// PDFToImages renders every page of the PDF at ref to PNG at dpi (default 300).
func (c *Client) PDFToImages(ctx context.Context, ref string, dpi float64) ([][]byte, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, invalidArgument("valid file path is required")
	}
	doc, err := c.document(ctx, ref)
	if err != nil {
		return nil, err
	}
	return document.RenderPNG(doc, dpi)
}
