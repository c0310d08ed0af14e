package extraction_engine

// RawChunk is one positional slice of the document handed to a completion call.
//
// Index: zero-based position of the chunk inside the document.
// Total: number of chunks the document was split into.
type RawChunk struct {
	Index int
	Total int
	Text  string
}

// Chunk splits text into consecutive, non-overlapping pieces of at most
// maxChunkSize characters. Boundaries are positional and can fall mid-word.
// A non-positive maxChunkSize returns the whole text as one chunk.
func Chunk(text string, maxChunkSize int) []string {
	if text == "" {
		return nil
	}
	if maxChunkSize <= 0 {
		return []string{text}
	}

	var (
		out   []string
		start int
		n     int
	)
	// range over a string walks runes; an invalid byte counts as one character
	// and the byte slices below keep the original bytes intact.
	for i := range text {
		if n == maxChunkSize {
			out = append(out, text[start:i])
			start, n = i, 0
		}
		n++
	}
	return append(out, text[start:])
}

func chunkDocument(text string, maxChunkSize int) []RawChunk {
	parts := Chunk(text, maxChunkSize)
	out := make([]RawChunk, len(parts))
	for i, p := range parts {
		out[i] = RawChunk{Index: i, Total: len(parts), Text: p}
	}
	return out
}
