// Package process orchestrates one note-processing request: render the task
// prompt, invoke the backend chain, and optionally embed and index the
// outcome. Storage failures after a successful completion are reported as
// warnings, never as request failures.
package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cortexnotes/cortex/internal/domain"
	"github.com/cortexnotes/cortex/internal/logger"
)

// EmbedSource selects which text is embedded when a result is stored.
type EmbedSource string

const (
	// EmbedOutput embeds the generated output text.
	EmbedOutput EmbedSource = "output"
	// EmbedNote embeds the original note text.
	EmbedNote EmbedSource = "note"
)

// Options tune one Process call.
type Options struct {
	// StoreResult indexes the note after a successful completion.
	StoreResult bool
	// Source selects the text to embed when StoreResult is set.
	Source EmbedSource
	// Replace overwrites an existing entry with the same note id.
	Replace bool
}

// Service is the processing orchestrator.
type Service struct {
	renderer   Renderer
	generator  Generator
	vectorizer Vectorizer
	indexer    Indexer
}

// New creates a processing service.
func New(renderer Renderer, generator Generator, vectorizer Vectorizer, indexer Indexer) *Service {
	return &Service{
		renderer:   renderer,
		generator:  generator,
		vectorizer: vectorizer,
		indexer:    indexer,
	}
}

// Process runs the full pipeline for one note.
//
// Template errors (unknown task, missing inputs) are caller mistakes and are
// returned as errors with no result. A backend failure yields a result with
// Success=false and the error recorded on it. A storage failure after a
// successful completion yields Success=true with a warning.
func (s *Service) Process(
	ctx context.Context, note domain.Note, task string, opts Options,
) (domain.ProcessingResult, error) {
	log := logger.FromContext(ctx)

	prompt, err := s.renderer.Render(task, renderInputs(note))
	if err != nil {
		return domain.ProcessingResult{}, fmt.Errorf("render task %q: %w", task, err)
	}

	start := time.Now()
	gen, err := s.generator.Generate(ctx, prompt)
	latency := time.Since(start).Milliseconds()

	result := domain.ProcessingResult{
		NoteID:    note.ID,
		TaskName:  task,
		LatencyMS: latency,
	}

	if err != nil {
		result.Error = failureMessage(err)
		log.Warn("Processing failed",
			zap.String("note_id", note.ID),
			zap.String("task", task),
			zap.Int64("latency_ms", latency),
			zap.Error(err),
		)
		return result, nil
	}

	result.OutputText = gen.Text
	result.BackendUsed = gen.Used
	result.Success = true

	if opts.StoreResult {
		if warn := s.store(ctx, note, gen.Text, opts); warn != "" {
			result.Warnings = append(result.Warnings, warn)
		}
	}

	log.Info("Processed note",
		zap.String("note_id", note.ID),
		zap.String("task", task),
		zap.String("backend", string(result.BackendUsed)),
		zap.Int64("latency_ms", latency),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

// store embeds and indexes the note. Any failure here is best-effort: the
// completion already succeeded, so the caller gets a warning string rather
// than an error.
func (s *Service) store(ctx context.Context, note domain.Note, output string, opts Options) string {
	text := note.Text
	if opts.Source == EmbedOutput {
		text = output
	}

	vec, err := s.vectorizer.Embed(ctx, note.ID, text)
	if err != nil {
		return fmt.Sprintf("embedding failed, result not stored: %v", err)
	}

	if err := s.indexer.Store(ctx, note, vec, opts.Replace); err != nil {
		return fmt.Sprintf("storage failed, result not stored: %v", err)
	}
	return ""
}

// renderInputs builds the substitution map: the note body under "content",
// plus every metadata entry under its own key. Metadata cannot shadow the
// note body.
func renderInputs(note domain.Note) map[string]string {
	inputs := make(map[string]string, len(note.Metadata)+1)
	for k, v := range note.Metadata {
		inputs[k] = v
	}
	inputs["content"] = note.Text
	return inputs
}

// failureMessage maps a backend error to the result's error string.
func failureMessage(err error) string {
	if errors.Is(err, domain.ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrCancelled.Error()
	}
	return err.Error()
}
