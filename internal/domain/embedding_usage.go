package domain

import (
	"context"
	"sync"
)

type embeddingUsageKey struct{}

// EmbeddingUsage tallies provider calls made while serving one request.
// Handlers attach it to the context and report it in response headers.
type EmbeddingUsage struct {
	mu     sync.Mutex
	calls  int
	tokens int
}

// NewContextWithUsage attaches a fresh tally to ctx.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext returns the tally in ctx, or nil.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// Record counts one provider call that charged tokens. A nil tally ignores it.
func (u *EmbeddingUsage) Record(tokens int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.calls++
	u.tokens += tokens
	u.mu.Unlock()
}

// Tokens returns the tokens charged so far.
func (u *EmbeddingUsage) Tokens() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.tokens
}

// Calls returns the number of provider calls. Providers without usage
// reporting still count here with zero tokens.
func (u *EmbeddingUsage) Calls() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}
