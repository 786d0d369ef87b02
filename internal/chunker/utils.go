package chunker

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// idNamespace scopes chunk IDs to this application.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("local_rag/chunk"))

// ChunkID returns the stable record ID of the index-th chunk of source.
// Re-ingesting a document therefore overwrites its records instead of
// duplicating them.
func ChunkID(source string, index int) string {
	return uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("%s#%d", source, index))).String()
}

// CreateChunk builds a chunk with its ID and base metadata filled in.
func CreateChunk(text, source, section string, index, start int, metadata map[string]string) Chunk {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	metadata["chunk_index"] = strconv.Itoa(index)

	return Chunk{
		ID:       ChunkID(source, index),
		Text:     text,
		Source:   source,
		Index:    index,
		Start:    start,
		Section:  section,
		Metadata: metadata,
	}
}

// window returns the [start, end) rune bounds of the windows covering n runes.
// The last window is the first one that reaches n, so no window is ever
// fully contained in its predecessor.
func window(n int, cfg Config) [][2]int {
	if n == 0 {
		return nil
	}
	step := cfg.Step()
	bounds := make([][2]int, 0, n/step+1)
	for start := 0; ; start += step {
		end := start + cfg.ChunkSize
		if end > n {
			end = n
		}
		bounds = append(bounds, [2]int{start, end})
		if end >= n {
			break
		}
	}
	return bounds
}
