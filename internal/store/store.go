// Package store persists vector records and answers nearest-neighbour
// queries by cosine similarity.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrWriteFailure wraps every error raised while persisting a record.
	ErrWriteFailure = errors.New("store write failure")

	// ErrEmptyStore is reported by callers that treat querying an empty
	// store as an error.
	ErrEmptyStore = errors.New("vector store is empty")

	// ErrInvalidTopK is returned for a non-positive result count.
	ErrInvalidTopK = errors.New("topK must be positive")
)

// Metadata keys shared by both backends.
const (
	MetaSource     = "source"
	MetaChunkIndex = "chunk_index"
	MetaStart      = "start"
	MetaSection    = "section"
)

// Record is one embedded chunk.
type Record struct {
	ID        string
	Embedding []float32
	Content   string
	Metadata  map[string]string
}

// Source returns the source identifier stored in the record metadata.
func (r Record) Source() string {
	return r.Metadata[MetaSource]
}

// Match is a record returned by a query together with its similarity.
type Match struct {
	ID       string
	Content  string
	Metadata map[string]string
	Score    float32
	Seq      int64 // Insertion sequence, lower is older
}

// Store is the vector database used by the pipelines. The ingestion
// pipeline is its only writer.
type Store interface {
	// Upsert writes rec. Writing an existing ID replaces its content and
	// embedding but keeps its insertion sequence.
	Upsert(ctx context.Context, rec Record) error

	// Query returns up to topK records ordered by descending cosine
	// similarity, ties by ascending insertion sequence. An empty store
	// yields an empty result.
	Query(ctx context.Context, embedding []float32, topK int) ([]Match, error)

	// Count returns the number of records.
	Count(ctx context.Context) (int, error)

	// DeleteSource removes every record of source.
	DeleteSource(ctx context.Context, source string) error

	// Reset removes every record.
	Reset(ctx context.Context) error

	Close() error
}

const (
	BackendChromem = "chromem"
	BackendSQLite  = "sqlite"
)

// DefaultCollection is used when Options.Collection is empty.
const DefaultCollection = "documents"

var namespacePattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

// Options selects and configures a backend.
type Options struct {
	Backend    string
	Path       string // Directory holding the store files
	Collection string
	Namespace  string // Isolates the records of one user; empty for none
	Compress   bool   // chromem only
}

// ValidNamespace reports whether ns can name a namespace. The empty
// namespace is valid.
func ValidNamespace(ns string) bool {
	return namespacePattern.MatchString(ns)
}

// CollectionName returns the collection holding the records of namespace.
// Every namespace gets its own collection, so no query, count or reset can
// see records of another one.
func CollectionName(collection, namespace string) string {
	if collection == "" {
		collection = DefaultCollection
	}
	if namespace == "" {
		return collection
	}
	return collection + "_" + namespace
}

// Open opens the configured backend, creating it if needed.
func Open(opts Options) (Store, error) {
	if !ValidNamespace(opts.Namespace) {
		return nil, fmt.Errorf("invalid namespace %q: use letters, digits and underscores", opts.Namespace)
	}
	collection := CollectionName(opts.Collection, opts.Namespace)
	switch strings.ToLower(opts.Backend) {
	case "", BackendChromem:
		return OpenChromem(opts.Path, collection, opts.Compress)
	case BackendSQLite:
		return OpenSQLite(opts.Path, collection)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", opts.Backend)
	}
}

// ValidBackend reports whether Open accepts backend.
func ValidBackend(backend string) bool {
	switch strings.ToLower(backend) {
	case BackendChromem, BackendSQLite:
		return true
	}
	return false
}

// rank orders matches by descending score, ties by ascending sequence, and
// truncates to topK.
func rank(matches []Match, topK int) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Seq < matches[j].Seq
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

func writeErr(id string, err error) error {
	return fmt.Errorf("%w: record %s: %w", ErrWriteFailure, id, err)
}
