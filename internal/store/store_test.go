package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySaveGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)

	job := Job{
		ID:      "j1",
		Status:  StatusDone,
		File:    "a.pdf",
		Backend: "openai",
		Result:  json.RawMessage(`{"splits":[]}`),
		Created: time.Now(),
	}
	require.NoError(t, m.Save(ctx, job))

	got, ok, err := m.Get(ctx, "j1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, job, got)

	_, ok, err = m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Save(ctx, Job{ID: "old", Status: StatusFailed}))
	now = now.Add(2 * time.Minute)

	_, ok, _ := m.Get(ctx, "old")
	assert.False(t, ok)

	require.NoError(t, m.Save(ctx, Job{ID: "new"}))
	m.mu.RLock()
	_, kept := m.jobs["old"]
	m.mu.RUnlock()
	assert.False(t, kept, "expired jobs are swept on save")
}

func TestOpenWithoutRedisUsesMemory(t *testing.T) {
	r, err := Open("", time.Minute)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, r)
	assert.NoError(t, r.Close())
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open("not a url", time.Minute)
	assert.Error(t, err)
}

func TestRedisKey(t *testing.T) {
	s := newRedisWithClient(nil, time.Minute)
	assert.Equal(t, "job:abc:result", s.key("abc"))
}
