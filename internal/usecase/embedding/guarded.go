package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/kailas-cloud/hybridex/internal/domain"
)

// GuardedEmbedder bounds every provider call: requests are rate limited, each call
// gets its own deadline, and failures are translated into domain errors.
//
//   - deadline exceeded (ours, not the caller's) -> domain.ErrDependencyTimeout
//   - any other provider failure -> domain.ErrEmbeddingUnavailable
//   - vector of the wrong dimension -> domain.ErrShapeMismatch
//
// Caller cancellation is returned as the context error, untranslated.
type GuardedEmbedder struct {
	inner     domain.Embedder
	timeout   time.Duration
	limiter   *rate.Limiter
	dimension int
}

// GuardOptions configures a GuardedEmbedder. Zero values disable the corresponding guard.
type GuardOptions struct {
	Timeout   time.Duration
	RPS       float64
	Burst     int
	Dimension int
}

// NewGuardedEmbedder wraps inner with the given guards.
func NewGuardedEmbedder(inner domain.Embedder, opts GuardOptions) *GuardedEmbedder {
	g := &GuardedEmbedder{inner: inner, timeout: opts.Timeout, dimension: opts.Dimension}
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return g
}

// Embed vectorizes one text within the configured bounds.
func (g *GuardedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var res domain.EmbeddingResult
	err := g.call(ctx, func(ctx context.Context) error {
		var err error
		res, err = g.inner.Embed(ctx, text)
		return err
	})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	if err := g.checkShape(res.Embedding); err != nil {
		return domain.EmbeddingResult{}, err
	}
	return res, nil
}

// BatchEmbed vectorizes texts in one bounded call.
func (g *GuardedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	var res domain.BatchEmbeddingResult
	err := g.call(ctx, func(ctx context.Context) error {
		var err error
		res, err = domain.EmbedAll(ctx, g.inner, texts)
		return err
	})
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	for i, v := range res.Embeddings {
		if err := g.checkShape(v); err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("text %d: %w", i, err)
		}
	}
	return res, nil
}

// HealthCheck delegates to the inner embedder within the timeout.
func (g *GuardedEmbedder) HealthCheck(ctx context.Context) error {
	hc, ok := g.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	return g.call(ctx, hc.HealthCheck)
}

func (g *GuardedEmbedder) call(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // caller cancellation passes through
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(callCtx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err() //nolint:wrapcheck // caller cancellation passes through
			}
			return fmt.Errorf("embedding rate limit: %w: %w", domain.ErrDependencyTimeout, err)
		}
	}

	if err := fn(callCtx); err != nil {
		return g.translate(ctx, callCtx, err)
	}
	return nil
}

func (g *GuardedEmbedder) translate(parent, callCtx context.Context, err error) error {
	switch {
	case parent.Err() != nil:
		return parent.Err() //nolint:wrapcheck // caller cancellation passes through
	case callCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("embedding provider after %s: %w", g.timeout, domain.ErrDependencyTimeout)
	case errors.Is(err, domain.ErrEmbeddingUnavailable), errors.Is(err, domain.ErrDependencyTimeout):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
}

func (g *GuardedEmbedder) checkShape(v []float32) error {
	if g.dimension > 0 && len(v) != g.dimension {
		return fmt.Errorf("%w: provider returned %d dimensions, index expects %d",
			domain.ErrShapeMismatch, len(v), g.dimension)
	}
	return nil
}
