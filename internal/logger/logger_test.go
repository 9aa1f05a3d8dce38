package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesJSONToFileAndStdout(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var out bytes.Buffer
	file := filepath.Join(t.TempDir(), "nested", "app.log")
	require.NoError(t, Init(Options{Level: "warn", File: file, MaxSizeMB: 1, Stdout: &out}))

	log.Info().Msg("dropped by level")
	log.Warn().Str("backend", "openai").Msg("kept")

	var ev map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &ev))
	assert.Equal(t, "kept", ev["message"])
	assert.Equal(t, "openai", ev["backend"])
	assert.Equal(t, service, ev["service"])

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"kept"`)
	assert.NotContains(t, string(data), "dropped by level")
}

type captureSink struct{ events []axiom.Event }

func (c *captureSink) Send(ev axiom.Event) { c.events = append(c.events, ev) }

func TestAxiomWriterHonoursMinLevel(t *testing.T) {
	sink := &captureSink{}
	w := &axiomWriter{sink: sink, min: zerolog.WarnLevel}
	l := zerolog.New(zerolog.MultiLevelWriter(w))

	l.Info().Msg("noise")
	l.Error().Str("backend", "gemini").Msg("boom")
	l.Log().Msg("unlevelled")
	_, err := w.Write([]byte("not json"))
	require.NoError(t, err)

	require.Len(t, sink.events, 3)
	assert.Equal(t, "boom", sink.events[0]["message"])
	assert.Equal(t, "gemini", sink.events[0]["backend"])
	assert.Equal(t, service, sink.events[0]["service"])
	assert.Equal(t, "unlevelled", sink.events[1]["message"])
	assert.Equal(t, "not json", sink.events[2]["message"])
	assert.Equal(t, "info", sink.events[2]["level"])
}

func TestRequestLoggerFields(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var out bytes.Buffer
	log.Logger = zerolog.New(&out)

	l := Request("classify", "mistral", "mistral-small-latest")
	l.Info().Msg("one")
	l.Info().Msg("two")
	Request("ocr", "openai", "").Info().Msg("three")

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	var first, second, third map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))
	require.NoError(t, json.Unmarshal(lines[2], &third))

	assert.Equal(t, "classify", first["op"])
	assert.Equal(t, "mistral", first["backend"])
	assert.Equal(t, "mistral-small-latest", first["model"])
	assert.NotEmpty(t, first["request_id"])
	assert.Equal(t, first["request_id"], second["request_id"])
	assert.NotEqual(t, first["request_id"], third["request_id"])
	assert.NotContains(t, third, "model")
}

type fakeIngester struct {
	mu      sync.Mutex
	batches [][]axiom.Event
	err     error
}

func (f *fakeIngester) IngestEvents(_ context.Context, _ string, events []axiom.Event, _ ...ingest.Option) (*ingest.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]axiom.Event(nil), events...))
	return &ingest.Status{}, f.err
}

func TestAxiomClientBatchesAndDrainsOnClose(t *testing.T) {
	ing := &fakeIngester{}
	ac := startAxiom(ing, Options{AxiomBatch: 2, AxiomFlush: time.Hour})

	for i := 0; i < 5; i++ {
		ac.Send(axiom.Event{"n": i})
	}
	require.NoError(t, ac.Close())

	ing.mu.Lock()
	defer ing.mu.Unlock()
	total := 0
	for _, b := range ing.batches {
		assert.LessOrEqual(t, len(b), 2)
		total += len(b)
	}
	assert.Equal(t, 5, total)
}

func TestAxiomClientReportsLostEvents(t *testing.T) {
	ing := &fakeIngester{err: errors.New("unauthorized")}
	ac := startAxiom(ing, Options{AxiomFlush: time.Hour})
	ac.Send(axiom.Event{"message": "lost"})
	ac.Send(axiom.Event{"message": "also lost"})

	err := ac.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 events failed to ingest")
}
