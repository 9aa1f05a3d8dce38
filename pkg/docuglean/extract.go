package docuglean

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/local/docuglean/internal/ai"
	logpkg "github.com/local/docuglean/internal/logger"
	"github.com/local/docuglean/internal/metrics"
)

const defaultExtractPrompt = "Extract information from this document."

type ExtractConfig struct {
	FilePath string
	APIKey   string
	// Backend defaults to Mistral. Local is not supported.
	Backend      Backend
	Model        string
	Prompt       string
	SystemPrompt string
	// Schema is the JSON Schema the extracted object must satisfy.
	Schema    json.RawMessage
	MaxTokens int
}

type ExtractResult struct {
	Raw    string         `json:"raw"`
	Parsed map[string]any `json:"parsed"`
}

// Extract pulls structured data out of a document using the default client.
func Extract(ctx context.Context, cfg ExtractConfig) (*ExtractResult, error) {
	return defaultClient.Extract(ctx, cfg)
}

// Extract asks the backend for a JSON object describing the document and
// validates it against cfg.Schema. Output that is not a JSON object or does
// not satisfy the schema is an error wrapping ErrMalformedPayload.
func (c *Client) Extract(ctx context.Context, cfg ExtractConfig) (*ExtractResult, error) {
	b, err := resolveBackend(cfg.FilePath, cfg.APIKey, cfg.Backend, false)
	if err != nil {
		return nil, err
	}
	schema, err := compileSchema(cfg.Schema)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = b.DefaultModel()
	}
	logger := logpkg.Request("extract", b.String(), model).With().Str("file", cfg.FilePath).Logger()

	client, err := c.backendClient(b, cfg.APIKey)
	if err != nil {
		return nil, invalidArgument("%v", err)
	}
	doc, err := c.document(ctx, cfg.FilePath)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	callCtx, cancel := c.callContext(ctx)
	resp, err := client.Complete(callCtx, ai.Request{
		Model:        model,
		SystemPrompt: cfg.SystemPrompt,
		Prompt:       buildExtractPrompt(cfg.Prompt, cfg.Schema),
		JSON:         true,
		Attachment:   attachment(doc),
		MaxTokens:    cfg.MaxTokens,
	})
	cancel()

	var res *ExtractResult
	if err == nil {
		res, err = parseExtraction(resp.Text, schema)
	}
	metrics.ObserveBackend(b.String(), model, "extract", ai.Classify(err), time.Since(start))
	if err != nil {
		logger.Error().Err(err).Msg("extraction failed")
		return nil, err
	}
	logger.Info().Int("fields", len(res.Parsed)).Dur("duration", time.Since(start)).Msg("extraction complete")
	return res, nil
}

func compileSchema(raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, invalidArgument("response schema is required")
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, invalidArgument("add schema: %v", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, invalidArgument("compile schema: %v", err)
	}
	return schema, nil
}

func buildExtractPrompt(prompt string, schema json.RawMessage) string {
	if strings.TrimSpace(prompt) == "" {
		prompt = defaultExtractPrompt
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, schema); err != nil {
		compact.Reset()
		compact.Write(schema)
	}
	return prompt + "\n\nRespond with a single JSON object that conforms to this JSON Schema:\n" + compact.String()
}

func parseExtraction(raw string, schema *jsonschema.Schema) (*ExtractResult, error) {
	body, err := firstJSON(raw)
	if err != nil {
		return nil, err
	}
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if parsed == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedPayload)
	}
	if err := schema.Validate(parsed); err != nil {
		return nil, fmt.Errorf("%w: does not match schema: %v", ErrMalformedPayload, err)
	}
	return &ExtractResult{Raw: string(body), Parsed: parsed}, nil
}
