package process

import (
	"context"

	"github.com/cortexnotes/cortex/internal/backend"
	"github.com/cortexnotes/cortex/internal/domain"
)

// Renderer resolves a task name to a fully substituted prompt.
type Renderer interface {
	Render(task string, inputs map[string]string) (string, error)
}

// Generator produces completions over the configured backend chain.
type Generator interface {
	Generate(ctx context.Context, prompt string) (backend.Generation, error)
}

// Vectorizer turns note text into a validated embedding vector.
type Vectorizer interface {
	Embed(ctx context.Context, noteID, text string) (domain.EmbeddingVector, error)
}

// Indexer persists a note with its vector.
type Indexer interface {
	Store(ctx context.Context, note domain.Note, vector domain.EmbeddingVector, replace bool) error
}
