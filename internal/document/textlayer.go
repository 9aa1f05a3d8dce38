package document

import (
	"regexp"
	"sort"
	"unicode/utf8"
)

// DefaultTextThreshold is the minimum number of non-whitespace characters a
// sample must contain for a document to count as having a text layer.
const DefaultTextThreshold = 300

var whitespaceRegex = regexp.MustCompile(`\s+`)

// TextLayerReport describes a text-layer sampling run.
type TextLayerReport struct {
	TotalPages   int   `json:"total_pages"`
	SampledPages []int `json:"sampled_pages"`
	Chars        int   `json:"chars"`
	Threshold    int   `json:"threshold"`
	HasText      bool  `json:"has_text"`
}

// HasTextLayer samples page texts and reports whether they carry enough text
// to skip OCR. The threshold is capped at 50 characters per page so that
// short documents can qualify.
func HasTextLayer(texts []string, threshold int) TextLayerReport {
	if threshold <= 0 {
		threshold = DefaultTextThreshold
	}
	rep := TextLayerReport{TotalPages: len(texts), Threshold: threshold}
	if len(texts) == 0 {
		rep.SampledPages = []int{}
		return rep
	}
	if perPage := 50 * len(texts); perPage < rep.Threshold {
		rep.Threshold = perPage
	}

	rep.SampledPages = sampleIndices(len(texts))
	for _, idx := range rep.SampledPages {
		rep.Chars += utf8.RuneCountInString(whitespaceRegex.ReplaceAllString(texts[idx], ""))
		if rep.Chars >= rep.Threshold {
			break
		}
	}
	rep.HasText = rep.Chars >= rep.Threshold
	return rep
}

// sampleIndices picks up to five 0-based page indices: all pages for short
// documents, otherwise first, quartiles, middle and last.
func sampleIndices(total int) []int {
	if total <= 5 {
		idx := make([]int, total)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	set := map[int]struct{}{0: {}, total / 4: {}, total / 2: {}, (3 * total) / 4: {}, total - 1: {}}
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
