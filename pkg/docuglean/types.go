// Package docuglean classifies, OCRs and extracts structured data from
// documents through a choice of AI backends or local parsers.
package docuglean

import (
	"fmt"

	"github.com/local/docuglean/internal/ai"
)

// Backend selects the service that processes a document.
type Backend = ai.Backend

const (
	Mistral   = ai.Mistral
	OpenAI    = ai.OpenAI
	Gemini    = ai.Gemini
	Anthropic = ai.Anthropic
	Local     = ai.Local
)

// Category is a caller-supplied classification label.
type Category struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// PartitionKey, when set, asks the backend to group pages of this
	// category into named partitions (e.g. one per invoice number).
	PartitionKey string `json:"partitionKey,omitempty"`
}

// PageRange is an inclusive range of 1-based page numbers.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r PageRange) Len() int               { return r.End - r.Start + 1 }
func (r PageRange) Contains(page int) bool { return page >= r.Start && page <= r.End }
func (r PageRange) String() string         { return fmt.Sprintf("%d-%d", r.Start, r.End) }

// PageClassification assigns one page to a category within one chunk.
type PageClassification struct {
	Page       int     `json:"page"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Partition  string  `json:"partition,omitempty"`
}

// Confidence is the coarse trust label of a Split or Partition.
type Confidence string

const (
	Low  Confidence = "low"
	High Confidence = "high"
)

// LowConfidenceThreshold is the score below which a page assignment is low.
const LowConfidenceThreshold = 0.8

// DefaultConfidence is used when the backend omits a confidence score.
const DefaultConfidence = 0.5

// ConfidenceOf maps a score to its label.
func ConfidenceOf(score float64) Confidence {
	if score < LowConfidenceThreshold {
		return Low
	}
	return High
}

type Partition struct {
	Name       string     `json:"name"`
	Pages      []int      `json:"pages"`
	Confidence Confidence `json:"confidence"`
}

// Split is the set of pages assigned to one category across a document.
type Split struct {
	Name       string      `json:"name"`
	Pages      []int       `json:"pages"`
	Confidence Confidence  `json:"confidence"`
	Partitions []Partition `json:"partitions,omitempty"`
}

type ClassifyResult struct {
	Splits []Split `json:"splits"`
}

// Split returns the split named name, if any.
func (r ClassifyResult) Split(name string) (Split, bool) {
	for _, s := range r.Splits {
		if s.Name == name {
			return s, true
		}
	}
	return Split{}, false
}
