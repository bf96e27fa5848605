package notes

import (
	"context"

	"github.com/cortexnotes/cortex/internal/domain"
	"github.com/cortexnotes/cortex/internal/index"
)

// Vectorizer turns note text into a validated embedding vector.
type Vectorizer interface {
	Embed(ctx context.Context, noteID, text string) (domain.EmbeddingVector, error)
}

// Indexer is the persistent note store.
type Indexer interface {
	Store(ctx context.Context, note domain.Note, vector domain.EmbeddingVector, replace bool) error
	Search(ctx context.Context, vector []float32, k int, filters map[string]string) ([]index.Hit, error)
	Count(ctx context.Context) (int, error)
}
