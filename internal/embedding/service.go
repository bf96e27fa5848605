// Package embedding converts note text into fixed-dimension vectors through
// the backend chain, enforcing the input size and dimensionality contracts
// the vector index depends on.
package embedding

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/cortexnotes/cortex/internal/backend"
	"github.com/cortexnotes/cortex/internal/domain"
)

// Embedder is the vectorization contract shared by the service, the cache
// decorator, and their consumers.
type Embedder interface {
	Embed(ctx context.Context, text string) (backend.Embedding, error)
}

// Service computes embeddings via the backend chain.
//
// Oversized input is rejected with ErrInputTooLarge rather than silently
// truncated: a truncated embedding would quietly degrade search quality.
type Service struct {
	chain     Embedder
	dims      int
	maxTokens int
	encoder   *tiktoken.Tiktoken
	logger    *zap.Logger
}

// NewService creates an embedding service. dims is the dimensionality the
// vector index expects; maxTokens bounds the input length.
func NewService(chain Embedder, dims, maxTokens int, logger *zap.Logger) *Service {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		// Offline or missing encoding data; fall back to a byte estimate.
		logger.Warn("tiktoken encoding unavailable, using byte estimate", zap.Error(err))
		enc = nil
	}
	return &Service{
		chain:     chain,
		dims:      dims,
		maxTokens: maxTokens,
		encoder:   enc,
		logger:    logger,
	}
}

// Embed vectorizes text for the given note id and validates the result
// against the index dimensionality.
func (s *Service) Embed(ctx context.Context, noteID, text string) (domain.EmbeddingVector, error) {
	if tokens := s.countTokens(text); tokens > s.maxTokens {
		return domain.EmbeddingVector{}, fmt.Errorf(
			"%d tokens exceeds limit of %d: %w", tokens, s.maxTokens, domain.ErrInputTooLarge,
		)
	}

	emb, err := s.chain.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingVector{}, fmt.Errorf("embed note %q: %w", noteID, err)
	}

	if len(emb.Vector) != s.dims {
		return domain.EmbeddingVector{}, domain.NewDimensionMismatch(len(emb.Vector), s.dims)
	}

	return domain.EmbeddingVector{
		NoteID:    noteID,
		Dims:      emb.Vector,
		ModelName: emb.Model,
	}, nil
}

// Dimensions returns the expected vector dimensionality.
func (s *Service) Dimensions() int { return s.dims }

func (s *Service) countTokens(text string) int {
	if s.encoder != nil {
		return len(s.encoder.Encode(text, nil, nil))
	}
	// Rough heuristic: ~4 bytes per token for English text.
	return len(text) / 4
}
