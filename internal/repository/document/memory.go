package document

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kailas-cloud/hybridex/internal/domain"
	domdoc "github.com/kailas-cloud/hybridex/internal/domain/document"
)

// Memory is a map-backed store. Contents are lost on restart.
type Memory struct {
	mu         sync.RWMutex
	docs       map[string]domdoc.Document
	embeddings map[string]Embedding
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs:       map[string]domdoc.Document{},
		embeddings: map[string]Embedding{},
	}
}

// Create inserts doc. Fails with ErrDuplicateID if the id exists.
func (m *Memory) Create(_ context.Context, doc domdoc.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID()]; ok {
		return fmt.Errorf("document %s: %w", doc.ID(), domain.ErrDuplicateID)
	}
	m.docs[doc.ID()] = cloneDoc(doc)
	return nil
}

// Put inserts or replaces doc.
func (m *Memory) Put(_ context.Context, doc domdoc.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID()] = cloneDoc(doc)
	return nil
}

// Get returns the document with id.
func (m *Memory) Get(_ context.Context, id string) (domdoc.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok {
		return domdoc.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return cloneDoc(d), nil
}

// Delete removes the document and its embedding.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	delete(m.docs, id)
	delete(m.embeddings, id)
	return nil
}

// List returns limit documents starting at offset, in creation order.
func (m *Memory) List(ctx context.Context, offset, limit int) (Page, error) {
	all, err := m.All(ctx)
	if err != nil {
		return Page{}, err
	}
	lo, hi := pageBounds(len(all), offset, limit)
	return Page{Documents: all[lo:hi], Total: len(all)}, nil
}

// All returns every document in creation order.
func (m *Memory) All(_ context.Context) ([]domdoc.Document, error) {
	m.mu.RLock()
	out := make([]domdoc.Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, cloneDoc(d))
	}
	m.mu.RUnlock()
	sortDocuments(out)
	return out, nil
}

// Count returns the number of stored documents.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

// PutEmbedding stores the embedding of id.
func (m *Memory) PutEmbedding(_ context.Context, id string, e Embedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	m.embeddings[id] = Embedding{Hash: e.Hash, Vector: slices.Clone(e.Vector)}
	return nil
}

// GetEmbedding returns the stored embedding of id.
func (m *Memory) GetEmbedding(_ context.Context, id string) (Embedding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.embeddings[id]
	if !ok {
		return Embedding{}, fmt.Errorf("embedding %s: %w", id, domain.ErrNotFound)
	}
	return Embedding{Hash: e.Hash, Vector: slices.Clone(e.Vector)}, nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }

func cloneDoc(d domdoc.Document) domdoc.Document {
	return domdoc.Reconstruct(d.ID(), d.Title(), d.Body(), d.Metadata().Clone(), d.CreatedAt(), d.UpdatedAt())
}
