package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicClient struct {
	client anthropic.Client
}

func NewAnthropicClient(cfg Config) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(cfg.httpClient()),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicClient{client: anthropic.NewClient(opts...)}
}

func (c *AnthropicClient) Backend() Backend { return Anthropic }

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
	}

	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(*req.TopP)
	}
	if req.TopK != nil {
		params.TopK = anthropic.Int(int64(*req.TopK))
	}

	system := req.SystemPrompt
	if req.JSON {
		// no native JSON mode; the instruction rides on the system prompt
		system = strings.TrimSpace(system + "\n\nRespond with a single JSON object and nothing else.")
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	var blocks []anthropic.ContentBlockParamUnion
	if a := req.Attachment; a != nil {
		switch {
		case a.IsImage():
			blocks = append(blocks, anthropic.NewImageBlockBase64(a.MIME, a.Base64()))
		case a.MIME == "application/pdf":
			block := anthropic.DocumentBlockParam{
				Source: anthropic.DocumentBlockParamSourceUnion{
					OfBase64: &anthropic.Base64PDFSourceParam{Data: a.Base64()},
				},
			}
			blocks = append(blocks, anthropic.ContentBlockParamUnion{OfDocument: &block})
		default:
			return Response{}, fmt.Errorf("anthropic: unsupported attachment type %q", a.MIME)
		}
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.Prompt))
	params.Messages = []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return Response{}, statusError(Anthropic, apiErr.StatusCode, apiErr.Error())
		}
		return Response{}, fmt.Errorf("anthropic: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if t := block.AsText(); t.Text != "" {
			text.WriteString(t.Text)
		}
	}
	if text.Len() == 0 {
		return Response{}, fmt.Errorf("anthropic: %w", ErrEmptyResponse)
	}

	return Response{
		Text:  text.String(),
		Model: string(message.Model),
		Usage: Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		},
	}, nil
}
