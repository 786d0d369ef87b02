package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"local_rag/internal/embedding"
)

const metaSeq = "seq"

// errNoEmbeddingFunc guards the collection's embedding function: records
// always arrive with their embedding, so chromem must never compute one.
var errNoEmbeddingFunc = errors.New("store: collection has no embedding function")

// ChromemStore keeps records in a persistent chromem-go collection. The
// insertion sequence lives in the document metadata.
type ChromemStore struct {
	db         *chromem.DB
	collection string

	mu      sync.Mutex // serialises writers and guards lastSeq
	coll    *chromem.Collection
	lastSeq int64
	seeded  bool // lastSeq covers every stored record
}

// OpenChromem opens or creates the chromem database in dir.
func OpenChromem(dir, collection string, compress bool) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(dir, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database at %s: %w", dir, err)
	}
	s := &ChromemStore{db: db, collection: collection}
	if err := s.openCollection(); err != nil {
		return nil, err
	}
	log.Printf("Opened collection %q with %d records", collection, s.coll.Count())
	return s, nil
}

func (s *ChromemStore) openCollection() error {
	coll, err := s.db.GetOrCreateCollection(s.collection, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("failed to open collection %s: %w", s.collection, err)
	}
	s.coll = coll
	return nil
}

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

// seedSeq raises lastSeq to the highest sequence in the collection. It runs
// on the first write after opening: chromem can only enumerate documents by
// ranking them against an embedding of the stored dimension.
func (s *ChromemStore) seedSeq(ctx context.Context, query []float32) error {
	if s.seeded {
		return nil
	}
	if n := s.coll.Count(); n > 0 {
		results, err := s.coll.QueryEmbedding(ctx, normalized(query), n, nil, nil)
		if err != nil {
			return fmt.Errorf("failed to read insertion sequence: %w", err)
		}
		for _, r := range results {
			s.lastSeq = max(s.lastSeq, parseSeq(r.Metadata))
		}
	}
	s.seeded = true
	return nil
}

// nextSeq returns a sequence strictly greater than every stored one.
func (s *ChromemStore) nextSeq() int64 {
	s.lastSeq++
	return s.lastSeq
}

func (s *ChromemStore) Upsert(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return writeErr(rec.ID, errors.New("empty id"))
	}
	if len(rec.Embedding) == 0 {
		return writeErr(rec.ID, errors.New("empty embedding"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.seedSeq(ctx, rec.Embedding); err != nil {
		return writeErr(rec.ID, err)
	}
	seq := int64(0)
	if existing, err := s.coll.GetByID(ctx, rec.ID); err == nil {
		seq = parseSeq(existing.Metadata)
	}
	if seq == 0 {
		seq = s.nextSeq()
	}

	metadata := make(map[string]string, len(rec.Metadata)+1)
	for k, v := range rec.Metadata {
		metadata[k] = v
	}
	metadata[metaSeq] = strconv.FormatInt(seq, 10)

	doc := chromem.Document{
		ID:        rec.ID,
		Metadata:  metadata,
		Embedding: normalized(rec.Embedding),
		Content:   rec.Content,
	}
	if err := s.coll.AddDocument(ctx, doc); err != nil {
		return writeErr(rec.ID, err)
	}
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, query []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}
	s.mu.Lock()
	coll := s.coll
	s.mu.Unlock()

	n := coll.Count()
	if n == 0 {
		return []Match{}, nil
	}

	// chromem's heap does not order ties, so rank the whole collection
	results, err := coll.QueryEmbedding(ctx, normalized(query), n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		metadata := make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			if k != metaSeq {
				metadata[k] = v
			}
		}
		matches = append(matches, Match{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: metadata,
			Score:    r.Similarity,
			Seq:      parseSeq(r.Metadata),
		})
	}
	return rank(matches, topK), nil
}

func (s *ChromemStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coll.Count(), nil
}

func (s *ChromemStore) DeleteSource(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coll.Count() == 0 {
		return nil
	}
	if err := s.coll.Delete(ctx, map[string]string{MetaSource: source}, nil); err != nil {
		return fmt.Errorf("failed to delete records of %s: %w", source, err)
	}
	return nil
}

func (s *ChromemStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DeleteCollection(s.collection); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", s.collection, err)
	}
	s.lastSeq, s.seeded = 0, true
	return s.openCollection()
}

// Close is a no-op: the persistent database writes every change through.
func (s *ChromemStore) Close() error {
	return nil
}

// normalized returns a unit-length copy of v; chromem scores by dot product.
func normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return embedding.Normalize(out)
}

func parseSeq(metadata map[string]string) int64 {
	seq, _ := strconv.ParseInt(metadata[metaSeq], 10, 64)
	return seq
}

var _ Store = (*ChromemStore)(nil)
