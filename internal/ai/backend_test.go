package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{in: "openai", want: OpenAI},
		{in: " Mistral ", want: Mistral},
		{in: "GEMINI", want: Gemini},
		{in: "anthropic", want: Anthropic},
		{in: "local", want: Local},
		{in: "", wantErr: true},
		{in: "cohere", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackend(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupported)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBackendDefaults(t *testing.T) {
	assert.Equal(t, "gpt-4.1-mini", OpenAI.DefaultModel())
	assert.Equal(t, "mistral-ocr-latest", Mistral.DefaultOCRModel())
	assert.Equal(t, "gemini-2.5-flash", Gemini.DefaultModel())
	assert.False(t, Local.IsAI())
	for _, b := range AIBackends() {
		assert.True(t, b.IsAI(), b)
		assert.NotEmpty(t, b.DefaultModel(), b)
	}
}

func TestNewDispatch(t *testing.T) {
	for _, b := range AIBackends() {
		c, err := New(b, Config{APIKey: "k"})
		require.NoError(t, err)
		assert.Equal(t, b, c.Backend())
	}

	_, err := New(Local, Config{APIKey: "k"})
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = New(OpenAI, Config{})
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestAttachment(t *testing.T) {
	a := Attachment{Name: "x.png", MIME: "image/png", Data: []byte("hi")}
	assert.True(t, a.IsImage())
	assert.Equal(t, "data:image/png;base64,aGk=", a.DataURL())

	pdf := Attachment{MIME: "application/pdf"}
	assert.False(t, pdf.IsImage())
}
