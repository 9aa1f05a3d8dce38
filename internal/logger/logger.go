package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const service = "docuglean"

const (
	defaultBatch  = 200
	defaultBuffer = 1000
)

// Options defines logger initialization parameters.
type Options struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Axiom
	SendToAxiom  bool
	AxiomAPIKey  string
	AxiomOrgID   string
	AxiomDataset string
	AxiomFlush   time.Duration
	// AxiomLevel is the lowest level forwarded to Axiom. Defaults to info.
	AxiomLevel  string
	AxiomBatch  int
	AxiomBuffer int

	// Stdout replaces os.Stdout as the console sink.
	Stdout io.Writer
}

var ax *axiomClient

// Init sets up the global logger: rotated file, console and optional Axiom
// forwarding. Every event carries the service name.
func Init(opts Options) error {
	writers, err := localWriters(opts)
	if err != nil {
		return err
	}

	if opts.SendToAxiom && opts.AxiomAPIKey != "" {
		client, err := newAxiomClient(opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
		} else {
			ax = client
			writers = append(writers, &axiomWriter{sink: client, min: parseLevel(opts.AxiomLevel, zerolog.InfoLevel)})
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseLevel(opts.Level, zerolog.InfoLevel)).
		With().Timestamp().Str("service", service).
		Logger()
	return nil
}

func localWriters(opts Options) ([]io.Writer, error) {
	var writers []io.Writer
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("create logs dir: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		})
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	if opts.Pretty {
		writers = append(writers, zerolog.ConsoleWriter{Out: stdout, TimeFormat: time.RFC3339})
	} else {
		writers = append(writers, stdout)
	}
	return writers, nil
}

func parseLevel(s string, fallback zerolog.Level) zerolog.Level {
	if s == "" {
		return fallback
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return fallback
	}
	return lvl
}

// Request returns a logger for one public operation. The request id ties
// together the per-chunk lines a single classify, extract or OCR call emits.
func Request(op, backend, model string) zerolog.Logger {
	ctx := log.With().
		Str("request_id", uuid.NewString()).
		Str("op", op).
		Str("backend", backend)
	if model != "" {
		ctx = ctx.Str("model", model)
	}
	return ctx.Logger()
}

// Close flushes buffered Axiom events and reports anything lost.
func Close() {
	if ax == nil {
		return
	}
	if err := ax.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Axiom: %v\n", err)
	}
	ax = nil
}

type eventSink interface {
	Send(ev axiom.Event)
}

// axiomWriter forwards zerolog JSON lines at or above min to Axiom.
type axiomWriter struct {
	sink eventSink
	min  zerolog.Level
}

func (w *axiomWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

func (w *axiomWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l != zerolog.NoLevel && l < w.min {
		return len(p), nil
	}
	var ev map[string]any
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = map[string]any{"message": string(p), "level": zerolog.InfoLevel.String()}
	}
	ev["service"] = service
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}
	w.sink.Send(axiom.Event(ev))
	return len(p), nil
}

type ingester interface {
	IngestEvents(ctx context.Context, dataset string, events []axiom.Event, options ...ingest.Option) (*ingest.Status, error)
}

// axiomClient batches events and ingests them on a timer or when full.
type axiomClient struct {
	client  ingester
	dataset string
	batch   int
	ch      chan axiom.Event
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	dropped atomic.Int64
	failed  atomic.Int64
}

func newAxiomClient(opts Options) (*axiomClient, error) {
	axOpts := []axiom.Option{axiom.SetToken(opts.AxiomAPIKey)}
	if opts.AxiomOrgID != "" {
		axOpts = append(axOpts, axiom.SetOrganizationID(opts.AxiomOrgID))
	}
	c, err := axiom.NewClient(axOpts...)
	if err != nil {
		return nil, err
	}
	return startAxiom(c, opts), nil
}

func startAxiom(c ingester, opts Options) *axiomClient {
	dataset := opts.AxiomDataset
	if dataset == "" {
		dataset = "dev_" + service
	}
	batch := opts.AxiomBatch
	if batch <= 0 {
		batch = defaultBatch
	}
	buffer := opts.AxiomBuffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	flushEvery := opts.AxiomFlush
	if flushEvery <= 0 {
		flushEvery = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	ac := &axiomClient{
		client:  c,
		dataset: dataset,
		batch:   batch,
		ch:      make(chan axiom.Event, buffer),
		ctx:     ctx,
		cancel:  cancel,
	}
	ac.wg.Add(1)
	go ac.loop(flushEvery)
	return ac
}

// Send enqueues ev, dropping it when the buffer is full.
func (a *axiomClient) Send(ev axiom.Event) {
	select {
	case a.ch <- ev:
	default:
		a.dropped.Add(1)
	}
}

func (a *axiomClient) loop(flushEvery time.Duration) {
	defer a.wg.Done()
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()
	batch := make([]axiom.Event, 0, a.batch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if _, err := a.client.IngestEvents(ctx, a.dataset, batch); err != nil {
			a.failed.Add(int64(len(batch)))
		}
		cancel()
		batch = batch[:0]
	}
	for {
		select {
		case <-a.ctx.Done():
			for {
				select {
				case ev := <-a.ch:
					batch = append(batch, ev)
					if len(batch) >= a.batch {
						flush()
					}
				default:
					flush()
					return
				}
			}
		case <-ticker.C:
			flush()
		case ev := <-a.ch:
			batch = append(batch, ev)
			if len(batch) >= a.batch {
				flush()
			}
		}
	}
}

// Close drains the buffer, ingests what is left and returns an error naming
// how many events never reached Axiom.
func (a *axiomClient) Close() error {
	a.cancel()
	a.wg.Wait()
	var errs []error
	if n := a.dropped.Load(); n > 0 {
		errs = append(errs, fmt.Errorf("%d events dropped on a full buffer", n))
	}
	if n := a.failed.Load(); n > 0 {
		errs = append(errs, fmt.Errorf("%d events failed to ingest", n))
	}
	return errors.Join(errs...)
}
