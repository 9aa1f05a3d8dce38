package docuglean

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/local/docuglean/internal/ai"
	"github.com/local/docuglean/internal/limiter"
	logpkg "github.com/local/docuglean/internal/logger"
	"github.com/local/docuglean/internal/metrics"
)

// FallbackPageCount is assumed when the page count cannot be determined, so
// that large documents still get chunked.
const FallbackPageCount = 100

type ClassifyOptions struct {
	// Model overrides the backend's default model.
	Model string
	// ChunkSize is the maximum number of pages per backend call (default 75).
	ChunkSize int
	// MaxConcurrent caps simultaneous backend calls (default 5).
	MaxConcurrent int
}

// Classify assigns the pages of the document at ref to categories using the
// default client.
func Classify(ctx context.Context, ref string, categories []Category, apiKey string, backend Backend, opts ClassifyOptions) (*ClassifyResult, error) {
	return defaultClient.Classify(ctx, ref, categories, apiKey, backend, opts)
}

func validateClassify(ref string, categories []Category, apiKey string, backend Backend) (Backend, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", invalidArgument("valid API key is required")
	}
	if strings.TrimSpace(ref) == "" {
		return "", invalidArgument("valid file path is required")
	}
	if len(categories) == 0 {
		return "", invalidArgument("at least one category is required")
	}
	seen := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		if strings.TrimSpace(c.Name) == "" {
			return "", invalidArgument("category name is required")
		}
		if _, dup := seen[c.Name]; dup {
			return "", invalidArgument("duplicate category %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	b, err := ai.ParseBackend(string(backend))
	if err != nil || !b.IsAI() {
		return "", invalidArgument("provider %s not supported for classification", backend)
	}
	return b, nil
}

// Classify splits the document into page ranges, classifies the ranges
// concurrently and merges the results. It fails as a whole if any range
// fails; the returned error is then a *BackendError naming the range.
func (c *Client) Classify(ctx context.Context, ref string, categories []Category, apiKey string, backend Backend, opts ClassifyOptions) (*ClassifyResult, error) {
	b, err := validateClassify(ref, categories, apiKey, backend)
	if err != nil {
		return nil, err
	}

	model := opts.Model
	if model == "" {
		model = b.DefaultModel()
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	logger := logpkg.Request("classify", b.String(), model)
	start := time.Now()

	client, err := c.backendClient(b, apiKey)
	if err != nil {
		return nil, invalidArgument("%v", err)
	}
	classifier := c.newClassifier(client)
	src := c.newSource(ref)

	total, err := src.PageCount(ctx)
	if err != nil || total <= 0 {
		logger.Warn().Err(err).Int("assumed_pages", FallbackPageCount).Msg("page count unavailable, using fallback")
		metrics.IncPageCountFallback()
		total = FallbackPageCount
	}

	chunks := ChunkPages(total, chunkSize)
	logger.Info().Int("pages", total).Int("chunks", len(chunks)).Int("chunk_size", chunkSize).Msg("classifying document")

	run := func(ctx context.Context, r PageRange) (ClassifyResult, error) {
		return c.classifyChunk(ctx, logger, classifier, b, ChunkRequest{
			Source:     src,
			Range:      r,
			TotalPages: total,
			Categories: categories,
			Model:      model,
		})
	}

	var result ClassifyResult
	if len(chunks) == 1 {
		result, err = run(ctx, chunks[0])
	} else {
		result, err = classifyChunks(ctx, chunks, opts.MaxConcurrent, categories, run)
	}
	if err != nil {
		metrics.IncClassify(b.String(), ai.Classify(err))
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("classification failed")
		return nil, err
	}

	metrics.IncClassify(b.String(), ai.ResultOK)
	logger.Info().Int("splits", len(result.Splits)).Dur("duration", time.Since(start)).Msg("classification complete")
	return &result, nil
}

// classifyChunks fans chunks out under the limiter. The first failure cancels
// the remaining chunks and is returned; no partial result is produced.
func classifyChunks(ctx context.Context, chunks []PageRange, maxConcurrent int, categories []Category, run func(context.Context, PageRange) (ClassifyResult, error)) (ClassifyResult, error) {
	lim := limiter.New(maxConcurrent)
	lim.OnAcquire = metrics.IncInFlight
	lim.OnRelease = metrics.DecInFlight

	results := make([]ClassifyResult, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range chunks {
		g.Go(func() error {
			return lim.Do(gctx, func(ctx context.Context) error {
				res, err := run(ctx, r)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return ClassifyResult{}, err
	}
	return MergeSplits(categories, results...), nil
}

func (c *Client) classifyChunk(ctx context.Context, logger zerolog.Logger, classifier PageClassifier, b Backend, req ChunkRequest) (ClassifyResult, error) {
	start := time.Now()
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	pages, err := classifier.ClassifyChunk(ctx, req)
	result := ai.Classify(err)
	metrics.ObserveBackend(b.String(), req.Model, "classify", result, time.Since(start))
	metrics.IncChunk(b.String(), result)
	if err != nil {
		logger.Warn().Err(err).Str("range", req.Range.String()).Str("result", result).Msg("chunk classification failed")
		var be *BackendError
		if errors.As(err, &be) {
			return ClassifyResult{}, err
		}
		return ClassifyResult{}, &BackendError{Backend: b, Range: req.Range, Err: err}
	}

	logger.Debug().Str("range", req.Range.String()).Int("assignments", len(pages)).Dur("duration", time.Since(start)).Msg("chunk classified")
	return ReduceChunk(req.Categories, pages), nil
}
