package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

const mistralBaseURL = "https://api.mistral.ai"

// MistralClient calls the Mistral REST API directly.
type MistralClient struct {
	http    *http.Client
	apiKey  string
	baseURL string
}

func NewMistralClient(cfg Config) *MistralClient {
	base := cfg.BaseURL
	if base == "" {
		base = mistralBaseURL
	}
	return &MistralClient{http: cfg.httpClient(), apiKey: cfg.APIKey, baseURL: strings.TrimRight(base, "/")}
}

func (c *MistralClient) Backend() Backend { return Mistral }

type mistralMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type mistralChatReq struct {
	Model          string            `json:"model"`
	Messages       []mistralMessage  `json:"messages"`
	Temperature    float64           `json:"temperature"`
	TopP           *float64          `json:"top_p,omitempty"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type mistralChatResp struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *MistralClient) Complete(ctx context.Context, req Request) (Response, error) {
	var messages []mistralMessage
	if req.SystemPrompt != "" {
		messages = append(messages, mistralMessage{Role: "system", Content: req.SystemPrompt})
	}

	if req.Attachment == nil {
		messages = append(messages, mistralMessage{Role: "user", Content: req.Prompt})
	} else {
		content := []map[string]any{{"type": "text", "text": req.Prompt}}
		if req.Attachment.IsImage() {
			content = append(content, map[string]any{"type": "image_url", "image_url": req.Attachment.DataURL()})
		} else {
			content = append(content, map[string]any{"type": "document_url", "document_url": req.Attachment.DataURL()})
		}
		messages = append(messages, mistralMessage{Role: "user", Content: content})
	}

	payload := mistralChatReq{
		Model:     req.Model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
		TopP:      req.TopP,
	}
	if req.Temperature != nil {
		payload.Temperature = *req.Temperature
	}
	if req.JSON {
		payload.ResponseFormat = map[string]string{"type": "json_object"}
	}

	var r mistralChatResp
	if err := c.post(ctx, "/v1/chat/completions", payload, &r); err != nil {
		return Response{}, err
	}
	if len(r.Choices) == 0 || r.Choices[0].Message.Content == "" {
		return Response{}, fmt.Errorf("mistral: %w", ErrEmptyResponse)
	}

	return Response{
		Text:  r.Choices[0].Message.Content,
		Model: r.Model,
		Usage: Usage{InputTokens: r.Usage.PromptTokens, OutputTokens: r.Usage.CompletionTokens},
	}, nil
}

type mistralOCRImage struct {
	ID           string `json:"id"`
	TopLeftX     *int   `json:"top_left_x"`
	TopLeftY     *int   `json:"top_left_y"`
	BottomRightX *int   `json:"bottom_right_x"`
	BottomRightY *int   `json:"bottom_right_y"`
	ImageBase64  string `json:"image_base64"`
}

type mistralOCRResp struct {
	Model string `json:"model"`
	Pages []struct {
		Index    int               `json:"index"`
		Markdown string            `json:"markdown"`
		Images   []mistralOCRImage `json:"images"`
	} `json:"pages"`
	UsageInfo struct {
		PagesProcessed int `json:"pages_processed"`
	} `json:"usage_info"`
}

// OCR runs the dedicated OCR endpoint. Pages are returned in index order.
func (c *MistralClient) OCR(ctx context.Context, req OCRRequest) (OCRResponse, error) {
	doc := req.Document
	document := map[string]string{"type": "document_url", "document_url": doc.DataURL()}
	if doc.IsImage() {
		document = map[string]string{"type": "image_url", "image_url": doc.DataURL()}
	}
	payload := map[string]any{
		"model":    req.Model,
		"document": document,
	}
	if req.IncludeImages {
		payload["include_image_base64"] = true
	}

	var r mistralOCRResp
	if err := c.post(ctx, "/v1/ocr", payload, &r); err != nil {
		return OCRResponse{}, err
	}
	if len(r.Pages) == 0 {
		return OCRResponse{}, fmt.Errorf("mistral ocr: %w", ErrEmptyResponse)
	}

	out := OCRResponse{Model: r.Model}
	for _, p := range r.Pages {
		page := OCRPage{Index: p.Index, Markdown: p.Markdown}
		for _, img := range p.Images {
			page.Images = append(page.Images, OCRImage{
				ID:           img.ID,
				TopLeftX:     deref(img.TopLeftX),
				TopLeftY:     deref(img.TopLeftY),
				BottomRightX: deref(img.BottomRightX),
				BottomRightY: deref(img.BottomRightY),
				Base64:       img.ImageBase64,
			})
		}
		out.Pages = append(out.Pages, page)
	}
	sort.Slice(out.Pages, func(i, j int) bool { return out.Pages[i].Index < out.Pages[j].Index })
	return out, nil
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func (c *MistralClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mistral: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("mistral: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(Mistral, resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("mistral: decode response: %w", err)
	}
	return nil
}
