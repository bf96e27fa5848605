package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/cortexnotes/cortex/internal/backend"
	"github.com/cortexnotes/cortex/internal/domain"
)

type fakeEmbedder struct {
	vector []float32
	model  string
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (backend.Embedding, error) {
	f.calls++
	if f.err != nil {
		return backend.Embedding{}, f.err
	}
	return backend.Embedding{Vector: f.vector, Model: f.model, Used: domain.BackendLocal}, nil
}

func TestServiceEmbed(t *testing.T) {
	chain := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}, model: "nomic-embed-text"}
	svc := NewService(chain, 3, 8192, zap.NewNop())

	vec, err := svc.Embed(context.Background(), "n1", "short note")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if vec.NoteID != "n1" {
		t.Errorf("NoteID = %q, want n1", vec.NoteID)
	}
	if vec.ModelName != "nomic-embed-text" {
		t.Errorf("ModelName = %q, want nomic-embed-text", vec.ModelName)
	}
	if len(vec.Dims) != 3 {
		t.Errorf("len(Dims) = %d, want 3", len(vec.Dims))
	}
}

func TestServiceEmbedInputTooLarge(t *testing.T) {
	chain := &fakeEmbedder{vector: []float32{0.1}}
	svc := NewService(chain, 1, 10, zap.NewNop())

	_, err := svc.Embed(context.Background(), "n1", strings.Repeat("word ", 500))
	if !errors.Is(err, domain.ErrInputTooLarge) {
		t.Fatalf("Embed() error = %v, want ErrInputTooLarge", err)
	}
	if chain.calls != 0 {
		t.Errorf("backend called %d times for oversized input, want 0", chain.calls)
	}
}

func TestServiceEmbedDimensionMismatch(t *testing.T) {
	chain := &fakeEmbedder{vector: []float32{0.1, 0.2}, model: "m"}
	svc := NewService(chain, 3, 8192, zap.NewNop())

	_, err := svc.Embed(context.Background(), "n1", "hello")
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("Embed() error = %v, want ErrDimensionMismatch", err)
	}

	var mismatch *domain.DimensionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatal("error is not a *DimensionMismatchError")
	}
	if mismatch.Got != 2 || mismatch.Want != 3 {
		t.Errorf("mismatch = got %d want %d, expected got 2 want 3", mismatch.Got, mismatch.Want)
	}
}

func TestServiceEmbedBackendError(t *testing.T) {
	chain := &fakeEmbedder{err: domain.ErrBackendUnavailable}
	svc := NewService(chain, 3, 8192, zap.NewNop())

	_, err := svc.Embed(context.Background(), "n1", "hello")
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("Embed() error = %v, want ErrBackendUnavailable", err)
	}
}

func TestServiceDimensions(t *testing.T) {
	svc := NewService(&fakeEmbedder{}, 768, 8192, zap.NewNop())
	if svc.Dimensions() != 768 {
		t.Errorf("Dimensions() = %d, want 768", svc.Dimensions())
	}
}
