package domain

import (
	"time"

	"github.com/google/uuid"
)

// Note is a free-form text note captured by a front-end.
// Notes are immutable once stored; reprocessing produces a new
// ProcessingResult, never a mutated Note.
type Note struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewNote creates a note, generating an id when none is supplied.
func NewNote(id, text string, metadata map[string]string) Note {
	if id == "" {
		id = uuid.NewString()
	}
	return Note{
		ID:        id,
		Text:      text,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
}
