package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anthropicServer(t *testing.T, status int, body string, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropicComplete(t *testing.T) {
	var got map[string]any
	srv := anthropicServer(t, http.StatusOK,
		`{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5","content":[{"type":"text","text":"{\"ok\":true}"}],"stop_reason":"end_turn","usage":{"input_tokens":9,"output_tokens":4}}`,
		&got)

	topK := 20
	c := NewAnthropicClient(Config{APIKey: "secret", BaseURL: srv.URL})
	resp, err := c.Complete(context.Background(), Request{
		Model:        "claude-sonnet-4-5",
		SystemPrompt: "sys",
		Prompt:       "classify",
		JSON:         true,
		TopK:         &topK,
		Attachment:   &Attachment{Name: "a.pdf", MIME: "application/pdf", Data: []byte("%PDF")},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Text)
	assert.Equal(t, "claude-sonnet-4-5", resp.Model)
	assert.Equal(t, Usage{InputTokens: 9, OutputTokens: 4}, resp.Usage)

	assert.EqualValues(t, 8192, got["max_tokens"])
	assert.EqualValues(t, 20, got["top_k"])
	system := got["system"].([]any)
	require.Len(t, system, 1)
	assert.Contains(t, system[0].(map[string]any)["text"], "sys")
	assert.Contains(t, system[0].(map[string]any)["text"], "single JSON object")

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 1)
	blocks := msgs[0].(map[string]any)["content"].([]any)
	require.Len(t, blocks, 2)
	assert.Equal(t, "document", blocks[0].(map[string]any)["type"])
	assert.Equal(t, "text", blocks[1].(map[string]any)["type"])
}

func TestAnthropicRejectsUnsupportedAttachment(t *testing.T) {
	c := NewAnthropicClient(Config{APIKey: "secret", BaseURL: "http://127.0.0.1:1"})
	_, err := c.Complete(context.Background(), Request{
		Model:      "claude-sonnet-4-5",
		Prompt:     "p",
		Attachment: &Attachment{MIME: "application/zip", Data: []byte("PK")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported attachment")
}

func TestAnthropicErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrRateLimited)
				assert.Equal(t, ResultRateLimited, Classify(err))
			},
		},
		{
			name:   "overloaded",
			status: 529,
			body:   `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`,
			check: func(t *testing.T, err error) {
				var herr *HTTPError
				require.ErrorAs(t, err, &herr)
				assert.Equal(t, 529, herr.StatusCode)
				assert.Equal(t, ResultTransient, Classify(err))
			},
		},
		{
			name:   "empty content",
			status: http.StatusOK,
			body:   `{"id":"msg_2","type":"message","role":"assistant","model":"claude-sonnet-4-5","content":[],"usage":{"input_tokens":1,"output_tokens":0}}`,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrEmptyResponse) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := anthropicServer(t, tt.status, tt.body, nil)
			c := NewAnthropicClient(Config{APIKey: "secret", BaseURL: srv.URL})
			_, err := c.Complete(context.Background(), Request{Model: "claude-sonnet-4-5", Prompt: "p"})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}
