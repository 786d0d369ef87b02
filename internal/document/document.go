// Package document loads the input documents of the ingestion pipeline from a
// directory tree.
package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ledongthuc/pdf"
)

// DefaultInclude matches every supported file type.
var DefaultInclude = []string{"**/*.txt", "**/*.md", "**/*.pdf", "**/*.docx"}

// Document is the raw text of one input file.
type Document struct {
	Source  string    // Slash path relative to the loader root
	Path    string    // Path on disk
	Content string    // Extracted text
	ModTime time.Time // Modification time at load
	Size    int64     // Size in bytes at load
}

// LoadError reports a file that could not be read.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader walks Root and loads the files matching Include and not Exclude.
type Loader struct {
	Root    string
	Include []string
	Exclude []string
}

// NewLoader returns a loader for root. Empty include falls back to
// DefaultInclude. Patterns are validated up front.
func NewLoader(root string, include, exclude []string) (*Loader, error) {
	if len(include) == 0 {
		include = DefaultInclude
	}
	for _, p := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid pattern: %q", p)
		}
	}
	return &Loader{Root: root, Include: include, Exclude: exclude}, nil
}

// Match reports whether the root-relative slash path rel is selected.
func (l *Loader) Match(rel string) bool {
	for _, p := range l.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	for _, p := range l.Include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Rel returns the source identifier of path, or false if path lies outside
// the root.
func (l *Loader) Rel(path string) (string, bool) {
	rel, err := filepath.Rel(l.Root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Sources lists the root-relative paths of all matching files in lexical
// order without reading them.
func (l *Loader) Sources(ctx context.Context) ([]string, error) {
	var sources []string
	err := filepath.WalkDir(l.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, ok := l.Rel(path)
		if !ok || !l.Match(rel) {
			return nil
		}
		sources = append(sources, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", l.Root, err)
	}
	sort.Strings(sources)
	return sources, nil
}

// Load reads every matching file. Files that cannot be read are returned as
// LoadErrors and do not stop the walk.
func (l *Loader) Load(ctx context.Context) ([]Document, []error, error) {
	sources, err := l.Sources(ctx)
	if err != nil {
		return nil, nil, err
	}

	var docs []Document
	var failures []error
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		doc, err := l.LoadSource(src)
		if err != nil {
			log.Printf("⚠️  %v", err)
			failures = append(failures, err)
			continue
		}
		docs = append(docs, doc)
	}

	log.Printf("📄 Loaded %d documents from %s", len(docs), l.Root)
	return docs, failures, nil
}

// LoadSource reads the file with the given root-relative source identifier.
func (l *Loader) LoadSource(source string) (Document, error) {
	path := filepath.Join(l.Root, filepath.FromSlash(source))
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, &LoadError{Source: source, Err: err}
	}
	content, err := ReadText(path)
	if err != nil {
		return Document{}, &LoadError{Source: source, Err: err}
	}
	return Document{
		Source:  source,
		Path:    path,
		Content: content,
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}, nil
}

// ReadText extracts the text of a file by extension. Markdown is returned
// raw; the markdown chunker parses it.
func ReadText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return readPDF(path)
	case ".docx":
		return readDOCX(path)
	default:
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(bytes.ToValidUTF8(b, []byte("�"))), nil
	}
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to read pdf buffer: %w", err)
	}
	return buf.String(), nil
}
