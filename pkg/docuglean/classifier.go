package docuglean

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/docuglean/internal/ai"
)

// ChunkRequest is the input for classifying one page range.
type ChunkRequest struct {
	Source     Source
	Range      PageRange
	TotalPages int
	Categories []Category
	Model      string
}

// PageClassifier assigns a category to each page of one range.
type PageClassifier interface {
	ClassifyChunk(ctx context.Context, req ChunkRequest) ([]PageClassification, error)
}

// LLMClassifier classifies pages by prompting an AI backend for JSON.
type LLMClassifier struct {
	client ai.Client
}

func NewLLMClassifier(client ai.Client) *LLMClassifier {
	return &LLMClassifier{client: client}
}

const classifySystemPrompt = `You are a document classification engine. You assign every page of a document to exactly one of the categories you are given. You answer with a single JSON object and nothing else.`

func (c *LLMClassifier) ClassifyChunk(ctx context.Context, req ChunkRequest) ([]PageClassification, error) {
	text, err := req.Source.RangeText(ctx, req.Range.Start, req.Range.End)
	if err != nil {
		log.Debug().Err(err).Str("range", req.Range.String()).Msg("page text unavailable, attaching document")
		text = ""
	}

	aiReq := ai.Request{
		Model:        req.Model,
		SystemPrompt: classifySystemPrompt,
		Prompt:       BuildClassifyPrompt(req.Categories, req.Range, req.TotalPages, text),
		JSON:         true,
	}
	if text == "" {
		file, err := req.Source.File(ctx)
		if err != nil {
			return nil, fmt.Errorf("load document: %w", err)
		}
		aiReq.Attachment = &ai.Attachment{Name: file.Name, MIME: file.MIME, Data: file.Data}
	}

	resp, err := c.client.Complete(ctx, aiReq)
	if err != nil {
		return nil, err
	}
	return ParseClassifications(resp.Text, req.Range, req.Categories)
}

// BuildClassifyPrompt renders the instruction for one page range. When text is
// empty the document is expected to be attached to the request.
func BuildClassifyPrompt(categories []Category, r PageRange, totalPages int, text string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Classify every page from %d to %d", r.Start, r.End)
	if totalPages > 0 {
		fmt.Fprintf(&b, " of a %d-page document", totalPages)
	}
	b.WriteString(" into exactly one of these categories:\n\n")
	for _, c := range categories {
		fmt.Fprintf(&b, "- %q: %s", c.Name, c.Description)
		if c.PartitionKey != "" {
			fmt.Fprintf(&b, " (group its pages by %s and report that value as \"partition\")", c.PartitionKey)
		}
		b.WriteString("\n")
	}

	b.WriteString(`
Respond with a JSON object of this shape:
{"classifications": [{"page": <page number>, "category": "<category name>", "confidence": <number between 0 and 1>, "partition": "<partition value, only for categories that ask for one>"}]}

Rules:
`)
	fmt.Fprintf(&b, "- Include each page from %d to %d exactly once.\n", r.Start, r.End)
	b.WriteString("- Use category names exactly as listed.\n")
	b.WriteString("- confidence is how certain you are of the assignment.\n")

	if text != "" {
		b.WriteString("\nDocument text:\n")
		b.WriteString(text)
	} else {
		fmt.Fprintf(&b, "\nThe document is attached. Only classify pages %d to %d.\n", r.Start, r.End)
	}
	return b.String()
}

// ParseClassifications decodes a backend reply. Output without a JSON value is
// an error wrapping ErrMalformedPayload. Entries without an integer page inside
// r, without a known category name, or of the wrong shape are dropped. A
// missing confidence defaults to DefaultConfidence; partitions are kept only
// for categories with a PartitionKey.
func ParseClassifications(raw string, r PageRange, categories []Category) ([]PageClassification, error) {
	body, err := firstJSON(raw)
	if err != nil {
		return nil, err
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var entries []any
	switch v := payload.(type) {
	case map[string]any:
		entries, _ = v["classifications"].([]any)
	case []any:
		entries = v
	}

	known := make(map[string]Category, len(categories))
	for _, c := range categories {
		known[c.Name] = c
	}

	out := make([]PageClassification, 0, len(entries))
	dropped := 0
	for _, e := range entries {
		pc, ok := parseEntry(e, r, known)
		if !ok {
			dropped++
			continue
		}
		out = append(out, pc)
	}
	if dropped > 0 {
		log.Debug().Int("dropped", dropped).Int("kept", len(out)).Str("range", r.String()).Msg("dropped invalid classification entries")
	}
	return out, nil
}

func parseEntry(e any, r PageRange, known map[string]Category) (PageClassification, bool) {
	m, ok := e.(map[string]any)
	if !ok {
		return PageClassification{}, false
	}

	num, ok := m["page"].(float64)
	if !ok || num != math.Trunc(num) {
		return PageClassification{}, false
	}
	page := int(num)
	if !r.Contains(page) {
		return PageClassification{}, false
	}

	name, _ := m["category"].(string)
	name = strings.TrimSpace(name)
	cat, ok := known[name]
	if name == "" || !ok {
		return PageClassification{}, false
	}

	conf := DefaultConfidence
	if v, ok := m["confidence"].(float64); ok && !math.IsNaN(v) {
		conf = math.Max(0, math.Min(1, v))
	}

	pc := PageClassification{Page: page, Category: cat.Name, Confidence: conf}
	if cat.PartitionKey != "" {
		switch v := m["partition"].(type) {
		case string:
			pc.Partition = strings.TrimSpace(v)
		case float64:
			pc.Partition = fmt.Sprint(v)
		}
	}
	return pc, true
}

// maxJSONStarts bounds how many opening brackets firstJSON tries.
const maxJSONStarts = 16

// firstJSON returns the first complete JSON object or array in a reply.
// Markdown fences, leading prose and anything after the value are ignored.
func firstJSON(raw string) (json.RawMessage, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, ai.ErrEmptyResponse)
	}

	var firstErr error
	tries := 0
	for i := 0; i < len(s) && tries < maxJSONStarts; i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		tries++
		var v json.RawMessage
		err := json.NewDecoder(strings.NewReader(s[i:])).Decode(&v)
		if err == nil {
			return v, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		if strings.Trim(strings.ReplaceAll(s, "```json", ""), "` \n\t") == "" {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, ai.ErrEmptyResponse)
		}
		return nil, fmt.Errorf("%w: no JSON value in reply", ErrMalformedPayload)
	}
	return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, firstErr)
}
