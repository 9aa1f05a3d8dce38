package document

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Cache is a read-through view of one document for the lifetime of one request.
// Each value is computed at most once; afterwards it is only read.
type Cache struct {
	fetcher *Fetcher
	ref     string

	docOnce sync.Once
	doc     *Document
	docErr  error

	countOnce sync.Once
	count     int
	countErr  error

	textOnce sync.Once
	texts    []string
	textErr  error
}

func NewCache(f *Fetcher, ref string) *Cache {
	return &Cache{fetcher: f, ref: ref}
}

// Document fetches the document on first use.
func (c *Cache) Document(ctx context.Context) (*Document, error) {
	c.docOnce.Do(func() {
		c.doc, c.docErr = c.fetcher.Fetch(ctx, c.ref)
	})
	return c.doc, c.docErr
}

func (c *Cache) PageCount(ctx context.Context) (int, error) {
	c.countOnce.Do(func() {
		doc, err := c.Document(ctx)
		if err != nil {
			c.countErr = err
			return
		}
		c.count, c.countErr = PageCount(doc)
	})
	return c.count, c.countErr
}

// PageTexts returns per-page text. The slice is shared and must not be modified.
func (c *Cache) PageTexts(ctx context.Context) ([]string, error) {
	c.textOnce.Do(func() {
		doc, err := c.Document(ctx)
		if err != nil {
			c.textErr = err
			return
		}
		c.texts, c.textErr = PageTexts(doc)
	})
	return c.texts, c.textErr
}

// RangeText returns the text of pages start..end (1-based, inclusive), each
// preceded by a page marker. Pages past the end of the document are skipped.
// It returns "" when those pages have no usable text layer.
func (c *Cache) RangeText(ctx context.Context, start, end int) (string, error) {
	texts, err := c.PageTexts(ctx)
	if err != nil {
		return "", err
	}
	lo, hi := max(start-1, 0), min(end, len(texts))
	if lo >= hi || !HasTextLayer(texts[lo:hi], 0).HasText {
		return "", nil
	}
	return JoinPages(texts, start, end), nil
}

// JoinPages formats texts[start-1:end] with "=== Page N ===" separators.
func JoinPages(texts []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(texts) {
		end = len(texts)
	}
	var b strings.Builder
	for p := start; p <= end; p++ {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "=== Page %d ===\n", p)
		b.WriteString(texts[p-1])
	}
	return b.String()
}
