// Package backend abstracts over interchangeable inference services: the
// local model server and an optional cloud fallback. Backends are stateless
// between calls; the chain tries them in configured order with a bounded
// retry per backend.
package backend

import (
	"context"

	"github.com/cortexnotes/cortex/internal/domain"
)

// Backend is one inference service that turns a prompt into text and text
// into an embedding vector. Implementations map their transport failures to
// the domain error taxonomy: ErrBackendTimeout, ErrBackendUnavailable,
// ErrInvalidResponse, ErrAuthRejected.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	Kind() domain.BackendKind
	EmbeddingModel() string
}

// Generation is the outcome of a chain completion call.
type Generation struct {
	Text string
	Used domain.BackendKind
}

// Embedding is the outcome of a chain embedding call.
type Embedding struct {
	Vector []float32
	Model  string
	Used   domain.BackendKind
}
