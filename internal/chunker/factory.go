package chunker

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MethodAuto selects the chunker by file extension.
const MethodAuto = "auto"

// Factory creates chunkers for a method or file type.
type Factory struct {
	config Config
}

// NewFactory validates config once so that every chunker it hands out is
// valid.
func NewFactory(config Config) (*Factory, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Factory{config: config}, nil
}

// Config returns the window parameters of the factory.
func (f *Factory) Config() Config {
	return f.config
}

// GetChunker returns the chunker for filePath. An explicit method wins over
// the file extension.
func (f *Factory) GetChunker(filePath, method string) (Chunker, error) {
	switch strings.ToLower(method) {
	case "", MethodAuto:
	default:
		return f.GetChunkerByMethod(method)
	}

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".md", ".markdown":
		return NewMarkdownChunker(f.config)
	default:
		return NewTextChunker(f.config)
	}
}

// GetChunkerByMethod returns the chunker registered under method.
func (f *Factory) GetChunkerByMethod(method string) (Chunker, error) {
	switch strings.ToLower(method) {
	case "markdown", "md":
		return NewMarkdownChunker(f.config)
	case "text", "simple", "txt":
		return NewTextChunker(f.config)
	default:
		return nil, fmt.Errorf("unknown chunking method: %s", method)
	}
}

// ValidMethod reports whether method is accepted by GetChunker.
func ValidMethod(method string) bool {
	switch strings.ToLower(method) {
	case "", MethodAuto, "markdown", "md", "text", "simple", "txt":
		return true
	}
	return false
}
