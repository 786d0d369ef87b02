package chunker

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration is returned for chunking parameters that cannot
// produce a valid chunk sequence.
var ErrInvalidConfiguration = errors.New("invalid chunking configuration")

// Chunk is one overlapping window of a document.
type Chunk struct {
	ID       string            // Deterministic identifier derived from source and index
	Text     string            // Chunk text, exactly as it appears in the document
	Source   string            // Source identifier of the document
	Index    int               // Sequence index within the document, from 0
	Start    int               // Rune offset of the first rune in the document text
	Section  string            // Heading the chunk belongs to (markdown only)
	Metadata map[string]string // Extra metadata
}

// Chunker splits document content into chunks.
type Chunker interface {
	// Chunk splits content into chunks attributed to source.
	Chunk(content, source string) ([]Chunk, error)

	// Name is used for logging.
	Name() string
}

// Config holds the window parameters shared by all chunkers.
type Config struct {
	ChunkSize int // Window size in runes
	Overlap   int // Runes shared by consecutive windows
}

// Step is the distance between the starts of two consecutive chunks.
func (c Config) Step() int {
	return c.ChunkSize - c.Overlap
}

func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfiguration, c.ChunkSize)
	}
	if c.Overlap <= 0 {
		return fmt.Errorf("%w: overlap must be positive, got %d", ErrInvalidConfiguration, c.Overlap)
	}
	if c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfiguration, c.Overlap, c.ChunkSize)
	}
	return nil
}
