package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Attachment is a document or image sent inline with a request.
type Attachment struct {
	Name string
	MIME string
	Data []byte
}

// Base64 returns the attachment payload encoded with standard base64.
func (a Attachment) Base64() string { return base64.StdEncoding.EncodeToString(a.Data) }

// DataURL returns the attachment as a data: URL.
func (a Attachment) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", a.MIME, a.Base64())
}

// IsImage reports whether the attachment is an image.
func (a Attachment) IsImage() bool { return len(a.MIME) > 6 && a.MIME[:6] == "image/" }

// Request represents a single completion request to a backend.
type Request struct {
	Model        string
	SystemPrompt string
	Prompt       string
	// JSON asks the backend for a single JSON object response.
	JSON       bool
	Attachment *Attachment
	MaxTokens  int

	// Sampling overrides; nil leaves the backend default.
	Temperature *float64
	TopP        *float64
	TopK        *int
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Client is implemented by every AI backend.
type Client interface {
	Backend() Backend
	Complete(ctx context.Context, req Request) (Response, error)
}

// OCRRequest asks a dedicated OCR endpoint to read one document.
type OCRRequest struct {
	Model    string
	Document Attachment
	// IncludeImages returns the embedded images of each page as base64.
	IncludeImages bool
}

// OCRImage is an image found on a page, with its bounding box in pixels.
type OCRImage struct {
	ID           string
	TopLeftX     int
	TopLeftY     int
	BottomRightX int
	BottomRightY int
	Base64       string
}

// OCRPage is one page of markdown returned by a dedicated OCR endpoint.
type OCRPage struct {
	Index    int
	Markdown string
	Images   []OCRImage
}

type OCRResponse struct {
	Model string
	Pages []OCRPage
	Usage Usage
}

// OCRClient is implemented by backends with a dedicated OCR endpoint.
type OCRClient interface {
	OCR(ctx context.Context, req OCRRequest) (OCRResponse, error)
}

// Config carries credentials and transport settings for a backend client.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.Timeout}
}

var (
	ErrRateLimited    = errors.New("rate_limited")
	ErrEmptyResponse  = errors.New("empty response")
	ErrMissingAPIKey  = errors.New("missing api key")
	ErrUnsupported    = errors.New("unsupported backend")
	ErrContentRefused = errors.New("content_refused")
)

func IsRateLimited(err error) bool    { return errors.Is(err, ErrRateLimited) }
func IsContentRefused(err error) bool { return errors.Is(err, ErrContentRefused) }
