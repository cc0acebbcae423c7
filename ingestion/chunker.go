package ingestion

import (
	"strings"

	"github.com/poiesic/sibyl/core"
)

// Chunk splits text into windows of size words, each sharing overlap words
// with its predecessor. Start and End are word offsets into the text.
func Chunk(doc core.DocumentID, text string, size, overlap int) []core.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 || size <= 0 {
		return nil
	}
	if overlap >= size {
		overlap = size - 1
	}
	if overlap < 0 {
		overlap = 0
	}

	stride := size - overlap
	var chunks []core.Chunk
	for start := 0; start < len(words); start += stride {
		end := min(start+size, len(words))
		chunks = append(chunks, core.Chunk{
			DocumentID: doc,
			Index:      len(chunks),
			Text:       strings.Join(words[start:end], " "),
			Start:      start,
			End:        end,
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}
