// Package index defines the persistent vector store contract: insert with
// duplicate protection and nearest-neighbor search over note embeddings.
//
// The similarity metric is cosine similarity, fixed for the life of an index.
// Changing the metric invalidates score comparability across index versions.
package index

import (
	"context"
	"math"

	"github.com/cortexnotes/cortex/internal/domain"
)

// Hit pairs a stored note with its similarity to the query vector.
type Hit struct {
	Note  domain.Note
	Score float64
}

// Index is a persistent store of (note, vector) pairs.
//
// Store is durable once it returns successfully. Duplicate ids are rejected
// unless replace is set. Search returns up to k hits ordered by descending
// cosine similarity; an empty index yields an empty slice, not an error.
type Index interface {
	Store(ctx context.Context, note domain.Note, vector domain.EmbeddingVector, replace bool) error
	Search(ctx context.Context, vector []float32, k int, filters map[string]string) ([]Hit, error)
	Count(ctx context.Context) (int, error)
	Dimensions() int
	Close() error
}

// Cosine computes the cosine similarity between two vectors.
// Returns 0 for mismatched or zero-length inputs.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MatchesFilters reports whether metadata satisfies every filter key/value.
func MatchesFilters(metadata, filters map[string]string) bool {
	for k, v := range filters {
		if metadata[k] != v {
			return false
		}
	}
	return true
}
