// Package index groups the lexical and semantic indices into a snapshot that is
// published atomically. Readers load the current Set once per request and never
// observe a half-built pair.
package index

import (
	"sync/atomic"
	"time"

	"github.com/kailas-cloud/hybridex/internal/index/lexical"
	"github.com/kailas-cloud/hybridex/internal/index/semantic"
)

// Set is one generation of both indices.
type Set struct {
	Lexical    *lexical.Index
	Semantic   *semantic.Index
	Generation uint64
	BuiltAt    time.Time
}

// Holder publishes the current Set and a content version.
//
// Generation changes only when a rebuilt pair is swapped in. Version changes on
// every swap and every incremental mutation, so anything derived from index
// contents (cached results) can be keyed by it.
type Holder struct {
	cur     atomic.Pointer[Set]
	gen     atomic.Uint64
	version atomic.Uint64
}

// NewHolder creates a holder with an initial generation.
func NewHolder(lex *lexical.Index, sem *semantic.Index) *Holder {
	h := &Holder{}
	h.Swap(lex, sem)
	return h
}

// Load returns the current Set.
func (h *Holder) Load() *Set { return h.cur.Load() }

// Swap publishes a new generation and returns it.
func (h *Holder) Swap(lex *lexical.Index, sem *semantic.Index) *Set {
	s := &Set{
		Lexical:    lex,
		Semantic:   sem,
		Generation: h.gen.Add(1),
		BuiltAt:    time.Now().UTC(),
	}
	h.cur.Store(s)
	h.version.Add(1)
	return s
}

// Version returns the content version.
func (h *Holder) Version() uint64 { return h.version.Load() }

// Bump records an incremental mutation and returns the new version.
func (h *Holder) Bump() uint64 { return h.version.Add(1) }
