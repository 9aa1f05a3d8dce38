package docuglean

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/local/docuglean/internal/limiter"
	"github.com/local/docuglean/internal/metrics"
)

// BatchResult is the outcome of one item of a batch. Failed items carry the
// error text and the file they were for.
type BatchResult[T any] struct {
	Success bool   `json:"success"`
	Result  *T     `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	File    string `json:"file,omitempty"`
}

// BatchOCR runs OCR over configs using the default client.
func BatchOCR(ctx context.Context, configs []OCRConfig, maxConcurrent int) []BatchResult[OCRResult] {
	return defaultClient.BatchOCR(ctx, configs, maxConcurrent)
}

// BatchOCR runs OCR for every config with at most maxConcurrent in flight
// (default 5). A failing item never stops the others. Results are in input
// order.
func (c *Client) BatchOCR(ctx context.Context, configs []OCRConfig, maxConcurrent int) []BatchResult[OCRResult] {
	return runBatch(ctx, "ocr", configs, maxConcurrent,
		func(cfg OCRConfig) string { return cfg.FilePath },
		c.OCR)
}

// BatchExtract runs Extract over configs using the default client.
func BatchExtract(ctx context.Context, configs []ExtractConfig, maxConcurrent int) []BatchResult[ExtractResult] {
	return defaultClient.BatchExtract(ctx, configs, maxConcurrent)
}

// BatchExtract is the extraction counterpart of BatchOCR.
func (c *Client) BatchExtract(ctx context.Context, configs []ExtractConfig, maxConcurrent int) []BatchResult[ExtractResult] {
	return runBatch(ctx, "extract", configs, maxConcurrent,
		func(cfg ExtractConfig) string { return cfg.FilePath },
		c.Extract)
}

func runBatch[C, R any](ctx context.Context, op string, items []C, maxConcurrent int, file func(C) string, fn func(context.Context, C) (*R, error)) []BatchResult[R] {
	results := make([]BatchResult[R], len(items))
	lim := limiter.New(maxConcurrent)
	lim.OnAcquire = metrics.IncInFlight
	lim.OnRelease = metrics.DecInFlight

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var res *R
			err := lim.Do(ctx, func(ctx context.Context) error {
				var err error
				res, err = fn(ctx, item)
				return err
			})
			metrics.IncBatchItem(op, err == nil)
			if err != nil {
				log.Warn().Err(err).Str("op", op).Str("file", file(item)).Int("index", i).Msg("batch item failed")
				results[i] = BatchResult[R]{Error: err.Error(), File: file(item)}
				return
			}
			results[i] = BatchResult[R]{Success: true, Result: res}
		}()
	}
	wg.Wait()

	log.Info().Str("op", op).Int("items", len(items)).Int("peak_concurrency", lim.Peak()).Msg("batch complete")
	return results
}
