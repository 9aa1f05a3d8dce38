package docuglean

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/local/docuglean/internal/ai"
	"github.com/local/docuglean/internal/document"
	"github.com/local/docuglean/internal/parsers"
)

// Client runs classification, OCR and extraction requests. The zero value is
// not usable; construct with New. A Client is safe for concurrent use.
type Client struct {
	fetcher    *document.Fetcher
	parser     *parsers.Parser
	httpClient *http.Client
	timeout    time.Duration
	baseURLs   map[Backend]string

	newClient     ai.Factory
	newSource     func(ref string) Source
	newClassifier func(client ai.Client) PageClassifier
}

type Option func(*Client)

// WithHTTPClient sets the HTTP client used for backend calls and downloads.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
		c.fetcher.HTTP = h
	}
}

// WithTimeout bounds every backend call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithBaseURL points a backend at a different endpoint, e.g. a proxy.
func WithBaseURL(b Backend, url string) Option {
	return func(c *Client) { c.baseURLs[b] = url }
}

// WithAWS configures credentials for s3:// document references.
func WithAWS(region, accessKeyID, secretAccessKey string) Option {
	return func(c *Client) {
		c.fetcher.AWS = document.AWSOptions{Region: region, AccessKeyID: accessKeyID, SecretAccessKey: secretAccessKey}
	}
}

// WithMaxDocumentBytes rejects documents larger than n bytes.
func WithMaxDocumentBytes(n int64) Option {
	return func(c *Client) { c.fetcher.MaxBytes = n }
}

// WithConverter sets the office suite binary used for legacy formats and
// bounds conversions to maxWorkers at a time.
func WithConverter(binary string, maxWorkers int, timeout time.Duration) Option {
	return func(c *Client) {
		conv := parsers.NewConverter(maxWorkers)
		conv.Binary = binary
		conv.Timeout = timeout
		c.parser.Converter = conv
	}
}

// WithSource replaces document loading, e.g. to serve documents from memory.
func WithSource(fn func(ref string) Source) Option {
	return func(c *Client) { c.newSource = fn }
}

// WithClassifier replaces the per-chunk classifier.
func WithClassifier(fn func(client ai.Client) PageClassifier) Option {
	return func(c *Client) { c.newClassifier = fn }
}

func New(opts ...Option) *Client {
	c := &Client{
		fetcher:   document.NewFetcher(document.AWSOptions{}),
		parser:    parsers.New(),
		baseURLs:  map[Backend]string{},
		newClient: ai.New,
		newClassifier: func(client ai.Client) PageClassifier {
			return NewLLMClassifier(client)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.newSource == nil {
		c.newSource = func(ref string) Source { return newCachedSource(c.fetcher, ref) }
	}
	return c
}

var defaultClient = New()

func (c *Client) backendClient(b Backend, apiKey string) (ai.Client, error) {
	return c.newClient(b, ai.Config{
		APIKey:     apiKey,
		BaseURL:    c.baseURLs[b],
		HTTPClient: c.httpClient,
		Timeout:    c.timeout,
	})
}

// callContext applies the configured per-call timeout.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return ctx, func() {}
}

func (c *Client) document(ctx context.Context, ref string) (*document.Document, error) {
	doc, err := c.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return doc, nil
}

func attachment(doc *document.Document) *ai.Attachment {
	return &ai.Attachment{Name: doc.Name, MIME: doc.MIME, Data: doc.Data}
}

// resolveBackend validates the fields shared by OCR and extraction. An empty
// backend selects Mistral.
func resolveBackend(ref, apiKey string, backend Backend, allowLocal bool) (Backend, error) {
	if backend == "" {
		backend = Mistral
	}
	b, err := ai.ParseBackend(string(backend))
	if err != nil || (b == Local && !allowLocal) {
		return "", invalidArgument("provider %s not supported", backend)
	}
	if b != Local && strings.TrimSpace(apiKey) == "" {
		return "", invalidArgument("valid API key is required")
	}
	if strings.TrimSpace(ref) == "" {
		return "", invalidArgument("valid file path is required")
	}
	return b, nil
}
