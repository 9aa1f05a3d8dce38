package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// GeminiClient talks to the Gemini API. The SDK client is created lazily
// because genai.NewClient needs a context.
type GeminiClient struct {
	cfg Config

	once   sync.Once
	client *genai.Client
	err    error
}

func NewGeminiClient(cfg Config) *GeminiClient {
	return &GeminiClient{cfg: cfg}
}

func (c *GeminiClient) Backend() Backend { return Gemini }

func (c *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		cc := &genai.ClientConfig{
			APIKey:     c.cfg.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: c.cfg.httpClient(),
		}
		if c.cfg.BaseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.cfg.BaseURL}
		}
		c.client, c.err = genai.NewClient(ctx, cc)
	})
	return c.client, c.err
}

func (c *GeminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	client, err := c.sdk(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("gemini: %w", err)
	}

	var parts []*genai.Part
	if a := req.Attachment; a != nil {
		parts = append(parts, genai.NewPartFromBytes(a.Data, a.MIME))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.TopP != nil {
		config.TopP = genai.Ptr(float32(*req.TopP))
	}
	if req.TopK != nil {
		config.TopK = genai.Ptr(float32(*req.TopK))
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return Response{}, statusError(Gemini, apiErr.Code, apiErr.Message)
		}
		var apiErrPtr *genai.APIError
		if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
			return Response{}, statusError(Gemini, apiErrPtr.Code, apiErrPtr.Message)
		}
		return Response{}, fmt.Errorf("gemini: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return Response{}, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	out := Response{Text: text, Model: req.Model}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}
