package docuglean

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/docuglean/internal/ai"
)

var parseCategories = []Category{
	{Name: "Invoice", Description: "a bill", PartitionKey: "invoice number"},
	{Name: "Letter", Description: "correspondence"},
}

func TestParseClassifications(t *testing.T) {
	r := PageRange{Start: 1, End: 5}

	tests := []struct {
		name string
		raw  string
		want []PageClassification
	}{
		{
			name: "object",
			raw:  `{"classifications":[{"page":1,"category":"Letter","confidence":0.93},{"page":2,"category":"Invoice","confidence":0.4,"partition":"INV-7"}]}`,
			want: []PageClassification{
				{Page: 1, Category: "Letter", Confidence: 0.93},
				{Page: 2, Category: "Invoice", Confidence: 0.4, Partition: "INV-7"},
			},
		},
		{
			name: "code fence",
			raw:  "```json\n{\"classifications\":[{\"page\":3,\"category\":\"Letter\",\"confidence\":1}]}\n```",
			want: []PageClassification{{Page: 3, Category: "Letter", Confidence: 1}},
		},
		{
			name: "surrounding prose",
			raw:  "Here you go: {\"classifications\":[{\"page\":3,\"category\":\"Letter\",\"confidence\":0.9}]} Thanks!",
			want: []PageClassification{{Page: 3, Category: "Letter", Confidence: 0.9}},
		},
		{
			name: "fence then commentary",
			raw:  "```json\n{\"classifications\":[{\"page\":1,\"category\":\"Letter\",\"confidence\":0.9}]}\n```\nI classified every page.",
			want: []PageClassification{{Page: 1, Category: "Letter", Confidence: 0.9}},
		},
		{
			name: "trailing note",
			raw:  "{\"classifications\":[{\"page\":2,\"category\":\"Letter\",\"confidence\":0.9}]}\nNote: page 2 is blank.",
			want: []PageClassification{{Page: 2, Category: "Letter", Confidence: 0.9}},
		},
		{
			name: "brackets in trailing prose",
			raw:  `Here you go: {"classifications":[{"page":1,"category":"Letter","confidence":0.9}]} (pages [1-2])`,
			want: []PageClassification{{Page: 1, Category: "Letter", Confidence: 0.9}},
		},
		{
			name: "bracket in leading prose",
			raw:  `Pages [1-2] follow: {"classifications":[{"page":2,"category":"Letter","confidence":0.9}]}`,
			want: []PageClassification{{Page: 2, Category: "Letter", Confidence: 0.9}},
		},
		{
			name: "bare array",
			raw:  `[{"page":4,"category":"Letter","confidence":0.85}]`,
			want: []PageClassification{{Page: 4, Category: "Letter", Confidence: 0.85}},
		},
		{
			name: "missing confidence defaults",
			raw:  `{"classifications":[{"page":1,"category":"Letter"}]}`,
			want: []PageClassification{{Page: 1, Category: "Letter", Confidence: DefaultConfidence}},
		},
		{
			name: "confidence clamped",
			raw:  `{"classifications":[{"page":1,"category":"Letter","confidence":7},{"page":2,"category":"Letter","confidence":-1}]}`,
			want: []PageClassification{
				{Page: 1, Category: "Letter", Confidence: 1},
				{Page: 2, Category: "Letter", Confidence: 0},
			},
		},
		{
			name: "unknown category dropped",
			raw:  `{"classifications":[{"page":1,"category":"Memo","confidence":0.99},{"page":2,"category":"Letter","confidence":0.9}]}`,
			want: []PageClassification{{Page: 2, Category: "Letter", Confidence: 0.9}},
		},
		{
			name: "category name trimmed",
			raw:  `{"classifications":[{"page":2,"category":" Letter ","confidence":0.9}]}`,
			want: []PageClassification{{Page: 2, Category: "Letter", Confidence: 0.9}},
		},
		{
			name: "out of range dropped",
			raw:  `{"classifications":[{"page":0,"category":"Letter"},{"page":6,"category":"Letter"},{"page":5,"category":"Letter","confidence":0.9}]}`,
			want: []PageClassification{{Page: 5, Category: "Letter", Confidence: 0.9}},
		},
		{
			name: "malformed entries dropped",
			raw:  `{"classifications":["x",{"page":"1","category":"Letter"},{"page":1.5,"category":"Letter"},{"category":"Letter"},{"page":2,"category":"Letter","confidence":0.8}]}`,
			want: []PageClassification{{Page: 2, Category: "Letter", Confidence: 0.8}},
		},
		{
			name: "partition ignored without key",
			raw:  `{"classifications":[{"page":1,"category":"Letter","confidence":0.9,"partition":"A"}]}`,
			want: []PageClassification{{Page: 1, Category: "Letter", Confidence: 0.9}},
		},
		{
			name: "numeric partition",
			raw:  `{"classifications":[{"page":1,"category":"Invoice","confidence":0.9,"partition":42}]}`,
			want: []PageClassification{{Page: 1, Category: "Invoice", Confidence: 0.9, Partition: "42"}},
		},
		{
			name: "no classifications key",
			raw:  `{"pages":[]}`,
			want: []PageClassification{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClassifications(tt.raw, r, parseCategories)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseClassificationsErrors(t *testing.T) {
	r := PageRange{Start: 1, End: 2}

	for name, raw := range map[string]string{
		"empty":         "",
		"whitespace":    "  \n ",
		"not json":      "I could not read the document.",
		"broken json":   `{"classifications":[{"page":1,`,
		"empty fences":  "```json\n```",
		"only brackets": "see [ and {",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseClassifications(raw, r, parseCategories)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}

	_, err := ParseClassifications("", r, parseCategories)
	assert.ErrorIs(t, err, ai.ErrEmptyResponse)
}

func TestBuildClassifyPrompt(t *testing.T) {
	p := BuildClassifyPrompt(parseCategories, PageRange{Start: 76, End: 150}, 150, "=== Page 76 ===\nDear Sir")

	assert.Contains(t, p, "from 76 to 150")
	assert.Contains(t, p, "of a 150-page document")
	assert.Contains(t, p, `"Invoice": a bill`)
	assert.Contains(t, p, `"Letter": correspondence`)
	assert.Contains(t, p, "group its pages by invoice number")
	assert.Contains(t, p, `"classifications"`)
	assert.Contains(t, p, "Dear Sir")
	assert.NotContains(t, p, "attached")

	attached := BuildClassifyPrompt(parseCategories, PageRange{Start: 1, End: 3}, 0, "")
	assert.Contains(t, attached, "The document is attached")
	assert.NotContains(t, attached, "-page document")
}

type stubSource struct {
	pages   int
	text    string
	textErr error
	file    File
	fileErr error
}

func (s stubSource) PageCount(context.Context) (int, error) {
	if s.pages <= 0 {
		return 0, errors.New("no page count")
	}
	return s.pages, nil
}

func (s stubSource) RangeText(context.Context, int, int) (string, error) { return s.text, s.textErr }
func (s stubSource) File(context.Context) (File, error)                  { return s.file, s.fileErr }

type recordingClient struct {
	reply string
	err   error
	got   []ai.Request
}

func (c *recordingClient) Backend() ai.Backend { return ai.OpenAI }

func (c *recordingClient) Complete(_ context.Context, req ai.Request) (ai.Response, error) {
	c.got = append(c.got, req)
	return ai.Response{Text: c.reply}, c.err
}

func TestLLMClassifierUsesText(t *testing.T) {
	client := &recordingClient{reply: `{"classifications":[{"page":1,"category":"Letter","confidence":0.9}]}`}
	cls := NewLLMClassifier(client)

	got, err := cls.ClassifyChunk(context.Background(), ChunkRequest{
		Source:     stubSource{text: "=== Page 1 ===\nhello"},
		Range:      PageRange{Start: 1, End: 1},
		TotalPages: 1,
		Categories: parseCategories,
		Model:      "m",
	})
	require.NoError(t, err)
	assert.Equal(t, []PageClassification{{Page: 1, Category: "Letter", Confidence: 0.9}}, got)

	require.Len(t, client.got, 1)
	req := client.got[0]
	assert.True(t, req.JSON)
	assert.Equal(t, "m", req.Model)
	assert.Nil(t, req.Attachment)
	assert.Contains(t, req.Prompt, "hello")
}

func TestLLMClassifierAttachesWithoutText(t *testing.T) {
	client := &recordingClient{reply: `{"classifications":[]}`}
	cls := NewLLMClassifier(client)

	_, err := cls.ClassifyChunk(context.Background(), ChunkRequest{
		Source:     stubSource{textErr: errors.New("no text"), file: File{Name: "a.pdf", MIME: "application/pdf", Data: []byte("%PDF")}},
		Range:      PageRange{Start: 1, End: 2},
		Categories: parseCategories,
	})
	require.NoError(t, err)
	require.Len(t, client.got, 1)
	require.NotNil(t, client.got[0].Attachment)
	assert.Equal(t, "a.pdf", client.got[0].Attachment.Name)
}

func TestLLMClassifierFileError(t *testing.T) {
	client := &recordingClient{}
	cls := NewLLMClassifier(client)

	_, err := cls.ClassifyChunk(context.Background(), ChunkRequest{
		Source:     stubSource{fileErr: errors.New("404")},
		Range:      PageRange{Start: 1, End: 2},
		Categories: parseCategories,
	})
	require.Error(t, err)
	assert.Empty(t, client.got, "backend must not be called without a document")
}

func TestLLMClassifierPropagatesBackendError(t *testing.T) {
	client := &recordingClient{err: ai.ErrRateLimited}
	cls := NewLLMClassifier(client)

	_, err := cls.ClassifyChunk(context.Background(), ChunkRequest{
		Source:     stubSource{text: "x"},
		Range:      PageRange{Start: 1, End: 1},
		Categories: parseCategories,
	})
	assert.ErrorIs(t, err, ai.ErrRateLimited)
	assert.Len(t, client.got, 1)
}
