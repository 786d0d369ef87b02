package chunker

import (
	"log"
)

// TextChunker splits plain text into fixed-size windows with overlap.
// Chunk i starts Step() runes after chunk i-1; only the final chunk may be
// shorter than ChunkSize. Text is never trimmed, so the chunks reconstruct
// the document once overlaps are removed.
type TextChunker struct {
	config Config
}

// NewTextChunker validates config and returns a text chunker.
func NewTextChunker(config Config) (*TextChunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &TextChunker{config: config}, nil
}

func (s *TextChunker) Name() string {
	return "text"
}

func (s *TextChunker) Chunk(content, source string) ([]Chunk, error) {
	chunks := s.chunkRunes([]rune(content), source, "", 0, 0)
	log.Printf("✅ [%s] %s: created %d chunks", s.Name(), source, len(chunks))
	return chunks, nil
}

// chunkRunes windows runes, numbering chunks from firstIndex and offsetting
// Start by base. Used by the markdown chunker for each section.
func (s *TextChunker) chunkRunes(runes []rune, source, section string, firstIndex, base int) []Chunk {
	bounds := window(len(runes), s.config)
	chunks := make([]Chunk, 0, len(bounds))
	for i, b := range bounds {
		metadata := map[string]string{"method": s.Name()}
		if section != "" {
			metadata["section"] = section
		}
		chunks = append(chunks, CreateChunk(string(runes[b[0]:b[1]]), source, section, firstIndex+i, base+b[0], metadata))
	}
	return chunks
}

// Reconstruct joins chunks produced with overlap back into the original
// text by dropping the overlapping prefix of every chunk after the first.
func Reconstruct(chunks []Chunk, overlap int) string {
	var out []rune
	for i, ch := range chunks {
		runes := []rune(ch.Text)
		if i > 0 {
			runes = runes[min(overlap, len(runes)):]
		}
		out = append(out, runes...)
	}
	return string(out)
}
