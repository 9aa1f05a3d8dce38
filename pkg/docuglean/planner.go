package docuglean

// DefaultChunkSize is the number of pages classified per backend call.
const DefaultChunkSize = 75

// ChunkPages divides totalPages into contiguous ranges of at most chunkSize
// pages. A non-positive chunkSize uses DefaultChunkSize; a non-positive
// totalPages yields no ranges.
func ChunkPages(totalPages, chunkSize int) []PageRange {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if totalPages <= 0 {
		return nil
	}

	chunks := make([]PageRange, 0, (totalPages+chunkSize-1)/chunkSize)
	for start := 1; start <= totalPages; start += chunkSize {
		end := start + chunkSize - 1
		if end > totalPages {
			end = totalPages
		}
		chunks = append(chunks, PageRange{Start: start, End: end})
	}
	return chunks
}
