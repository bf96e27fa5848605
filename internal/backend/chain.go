package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cortexnotes/cortex/internal/domain"
	"github.com/cortexnotes/cortex/internal/metrics"
)

// Candidate pairs a backend with its per-call timeout.
type Candidate struct {
	Backend Backend
	Timeout time.Duration
}

// Chain tries an ordered sequence of backends with a stop-on-success rule.
// Each backend gets exactly one retry on Timeout/Unavailable before the chain
// fails over to the next candidate. AuthRejected and InvalidResponse surface
// immediately: retrying a rejected key or a malformed payload cannot succeed.
type Chain struct {
	candidates []Candidate
	logger     *zap.Logger
}

// NewChain creates a backend chain. Order of candidates is the failover order.
func NewChain(logger *zap.Logger, candidates ...Candidate) (*Chain, error) {
	if len(candidates) == 0 {
		return nil, errors.New("at least one backend candidate is required")
	}
	return &Chain{candidates: candidates, logger: logger}, nil
}

// Generate renders a completion through the first backend that succeeds.
func (c *Chain) Generate(ctx context.Context, prompt string) (Generation, error) {
	var text string
	used, err := c.run(ctx, "generate", func(ctx context.Context, b Backend) error {
		out, err := b.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		return Generation{}, err
	}
	return Generation{Text: text, Used: used}, nil
}

// Embed computes an embedding through the first backend that succeeds.
func (c *Chain) Embed(ctx context.Context, text string) (Embedding, error) {
	var vec []float32
	var model string
	used, err := c.run(ctx, "embed", func(ctx context.Context, b Backend) error {
		out, err := b.Embed(ctx, text)
		if err != nil {
			return err
		}
		vec = out
		model = b.EmbeddingModel()
		return nil
	})
	if err != nil {
		return Embedding{}, err
	}
	return Embedding{Vector: vec, Model: model, Used: used}, nil
}

// attemptsPerBackend is one initial call plus exactly one retry.
const attemptsPerBackend = 2

func (c *Chain) run(
	ctx context.Context, op string, call func(context.Context, Backend) error,
) (domain.BackendKind, error) {
	var lastErr error

	for i, cand := range c.candidates {
		kind := cand.Backend.Kind()

		for attempt := 1; attempt <= attemptsPerBackend; attempt++ {
			if ctx.Err() != nil {
				return "", fmt.Errorf("%s: %w", op, domain.ErrCancelled)
			}

			err := c.attempt(ctx, op, cand, call)
			if err == nil {
				return kind, nil
			}

			// Caller gave up; never retry or fail over on cancellation.
			if ctx.Err() != nil {
				return "", fmt.Errorf("%s: %w", op, domain.ErrCancelled)
			}

			lastErr = err
			if !isRetryable(err) {
				return "", fmt.Errorf("%s via %s: %w", op, kind, err)
			}

			c.logger.Warn("backend attempt failed",
				zap.String("operation", op),
				zap.String("backend", string(kind)),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}

		if i < len(c.candidates)-1 {
			metrics.BackendFailoversTotal.WithLabelValues(string(kind)).Inc()
			c.logger.Info("failing over to next backend",
				zap.String("operation", op),
				zap.String("from", string(kind)),
			)
		}
	}

	return "", fmt.Errorf("%s: all backends exhausted: %w", op, lastErr)
}

func (c *Chain) attempt(
	ctx context.Context, op string, cand Candidate, call func(context.Context, Backend) error,
) error {
	actx := ctx
	if cand.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, cand.Timeout)
		defer cancel()
	}

	kind := string(cand.Backend.Kind())
	start := time.Now()
	err := call(actx, cand.Backend)
	duration := time.Since(start)

	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(kind, op, "error").Inc()
		return err
	}

	metrics.BackendRequestsTotal.WithLabelValues(kind, op, "success").Inc()
	metrics.BackendRequestDuration.WithLabelValues(kind, op).Observe(duration.Seconds())
	return nil
}

// isRetryable reports whether the error warrants the one-shot retry and,
// after that, failover to the next backend.
func isRetryable(err error) bool {
	return errors.Is(err, domain.ErrBackendTimeout) ||
		errors.Is(err, domain.ErrBackendUnavailable)
}
