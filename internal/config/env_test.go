package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"CHUNK_SIZE", "MAX_CONCURRENT", "PORT", "REDIS_URL", "DEFAULT_PROVIDER", "OPENAI_API_KEY", "AXIOM_DATASET", "ENVIRONMENT", "LOG_PRETTY"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	assert.Equal(t, 75, cfg.Classify.ChunkSize)
	assert.Equal(t, 5, cfg.Classify.MaxConcurrent)
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "mistral", cfg.Providers.Default)
	assert.Equal(t, "dev_docuglean", cfg.Axiom.Dataset)
	assert.Equal(t, "info", cfg.Axiom.Level)
	assert.Equal(t, 24*time.Hour, cfg.Store.ResultTTL)
	assert.Empty(t, cfg.Store.RedisURL)
	assert.False(t, cfg.Logging.Pretty)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "20")
	t.Setenv("MAX_CONCURRENT", "-3")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("UPLOAD_MAX_AGE", "not-a-duration")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("DEFAULT_PROVIDER", "OpenAI")
	t.Setenv("ENVIRONMENT", "dev")

	cfg := FromEnv()
	assert.Equal(t, 20, cfg.Classify.ChunkSize)
	assert.Equal(t, 5, cfg.Classify.MaxConcurrent, "non-positive limits fall back")
	assert.Equal(t, 5*time.Second, cfg.Providers.RequestTimeout)
	assert.Equal(t, time.Hour, cfg.Server.UploadMaxAge)
	assert.Equal(t, "openai", cfg.Providers.Default)
	assert.True(t, cfg.Logging.Pretty)

	p, ok := cfg.Providers.Get("OPENAI")
	require.True(t, ok)
	assert.Equal(t, ProviderConfig{APIKey: "sk-test", Model: "gpt-4o"}, p)

	_, ok = cfg.Providers.Get("local")
	assert.False(t, ok)
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", " on "} {
		assert.True(t, parseBool(v), v)
	}
	for _, v := range []string{"", "0", "off", "nope"} {
		assert.False(t, parseBool(v), v)
	}
}
