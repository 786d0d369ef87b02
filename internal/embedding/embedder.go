// Package embedding maps text to fixed-dimension vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrEmbeddingFailure wraps every error produced while embedding a text.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrEmptyText is returned for empty or whitespace-only input.
	ErrEmptyText = fmt.Errorf("%w: cannot embed empty text", ErrEmbeddingFailure)
)

// Embedder maps a text to a vector. Implementations return vectors of a
// fixed dimensionality and are deterministic for identical input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// checked wraps an embedder with input and output validation so that every
// provider reports failures the same way.
type checked struct {
	next Embedder
}

// Checked rejects empty input, wraps provider errors in ErrEmbeddingFailure
// and rejects empty or zero vectors, which have no direction to compare.
func Checked(e Embedder) Embedder {
	if c, ok := e.(*checked); ok {
		return c
	}
	return &checked{next: e}
}

func (c *checked) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, ErrEmbeddingFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: provider returned an empty vector", ErrEmbeddingFailure)
	}
	if norm(vec) == 0 {
		return nil, fmt.Errorf("%w: provider returned a zero vector", ErrEmbeddingFailure)
	}
	return vec, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when the
// dimensions differ or either vector has zero magnitude.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		va, vb := float64(a[i]), float64(b[i])
		dot += va * vb
		na += va * va
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Normalize scales v to unit length in place and returns it.
func Normalize(v []float32) []float32 {
	n := norm(v)
	if n == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
	return v
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
