// Package notes exposes the externally callable vector operations: store a
// note with its embedding and search the index by semantic similarity.
package notes

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cortexnotes/cortex/internal/domain"
)

const snippetMaxRunes = 200

// SearchHit is one semantic search result.
type SearchHit struct {
	NoteID      string  `json:"note_id"`
	TextSnippet string  `json:"text_snippet"`
	Score       float64 `json:"score"`
}

// Service handles note storage and semantic search.
type Service struct {
	vectorizer  Vectorizer
	indexer     Indexer
	defaultTopK int
	maxTopK     int
}

// New creates a notes service.
func New(vectorizer Vectorizer, indexer Indexer) *Service {
	return &Service{
		vectorizer:  vectorizer,
		indexer:     indexer,
		defaultTopK: 10,
		maxTopK:     100,
	}
}

// WithTopK configures the search result limits.
func (s *Service) WithTopK(defaultTopK, maxTopK int) *Service {
	if defaultTopK > 0 {
		s.defaultTopK = defaultTopK
	}
	if maxTopK > 0 {
		s.maxTopK = maxTopK
	}
	return s
}

// Store embeds and persists a note, returning its id. An empty id on the
// incoming note gets a generated one.
func (s *Service) Store(ctx context.Context, text string, metadata map[string]string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("note text is empty: %w", domain.ErrMissingInput)
	}

	note := domain.NewNote("", text, metadata)

	vec, err := s.vectorizer.Embed(ctx, note.ID, note.Text)
	if err != nil {
		return "", fmt.Errorf("vectorize note: %w", err)
	}

	if err := s.indexer.Store(ctx, note, vec, false); err != nil {
		return "", fmt.Errorf("store note: %w", err)
	}
	return note.ID, nil
}

// Search embeds the query and returns the top-k most similar notes.
func (s *Service) Search(
	ctx context.Context, query string, k int, filters map[string]string,
) ([]SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query is empty: %w", domain.ErrMissingInput)
	}
	if k <= 0 {
		k = s.defaultTopK
	}
	if k > s.maxTopK {
		k = s.maxTopK
	}

	vec, err := s.vectorizer.Embed(ctx, "", query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	hits, err := s.indexer.Search(ctx, vec.Dims, k, filters)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	results := make([]SearchHit, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchHit{
			NoteID:      h.Note.ID,
			TextSnippet: snippet(h.Note.Text),
			Score:       h.Score,
		})
	}
	return results, nil
}

// Count returns the number of stored notes.
func (s *Service) Count(ctx context.Context) (int, error) {
	count, err := s.indexer.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count notes: %w", err)
	}
	return count, nil
}

// snippet truncates text to a bounded rune count on a rune boundary.
func snippet(text string) string {
	if utf8.RuneCountInString(text) <= snippetMaxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:snippetMaxRunes]) + "…"
}
