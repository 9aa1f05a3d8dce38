package docuglean

import (
	"context"

	"github.com/local/docuglean/internal/document"
)

// File is a document payload that can be sent inline to a backend.
type File struct {
	Name string
	MIME string
	Data []byte
}

// Source gives read-only access to one document for the duration of one
// request. Implementations must be safe for concurrent use.
type Source interface {
	// PageCount returns the number of pages in the document.
	PageCount(ctx context.Context) (int, error)
	// RangeText returns the text of pages start..end with page markers, or ""
	// when those pages carry no usable text layer.
	RangeText(ctx context.Context, start, end int) (string, error)
	// File returns the raw document.
	File(ctx context.Context) (File, error)
}

// cachedSource serves a Source from a per-request document.Cache.
type cachedSource struct {
	cache *document.Cache
}

func newCachedSource(f *document.Fetcher, ref string) Source {
	return cachedSource{cache: document.NewCache(f, ref)}
}

func (s cachedSource) PageCount(ctx context.Context) (int, error) {
	return s.cache.PageCount(ctx)
}

func (s cachedSource) RangeText(ctx context.Context, start, end int) (string, error) {
	return s.cache.RangeText(ctx, start, end)
}

func (s cachedSource) File(ctx context.Context) (File, error) {
	doc, err := s.cache.Document(ctx)
	if err != nil {
		return File{}, err
	}
	return File{Name: doc.Name, MIME: doc.MIME, Data: doc.Data}, nil
}
