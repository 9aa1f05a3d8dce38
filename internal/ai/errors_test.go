package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ResultOK},
		{"canceled", fmt.Errorf("wrap: %w", context.Canceled), ResultCanceled},
		{"deadline", context.DeadlineExceeded, ResultTransient},
		{"429", statusError(OpenAI, 429, "slow down"), ResultRateLimited},
		{"503", statusError(Mistral, 503, "unavailable"), ResultTransient},
		{"401", statusError(Gemini, 401, "bad key"), ResultFatal},
		{"missing key", ErrMissingAPIKey, ResultFatal},
		{"refused", fmt.Errorf("openai: %w: policy", ErrContentRefused), ResultFatal},
		{"reset", errors.New("read: connection reset by peer"), ResultTransient},
		{"other", errors.New("boom"), ResultUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestStatusErrorTruncatesBody(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	err := statusError(Anthropic, 500, string(long))

	var herr *HTTPError
	if assert.ErrorAs(t, err, &herr) {
		assert.Len(t, herr.Body, 512)
		assert.Equal(t, Anthropic, herr.Backend)
	}
}
