// Package document persists documents and their embeddings.
// Two backends share the contract: an in-memory map and SQLite.
package document

import (
	"cmp"
	"slices"

	domdoc "github.com/kailas-cloud/hybridex/internal/domain/document"
)

// Embedding is a stored vector together with the content hash it was computed from.
type Embedding struct {
	Hash   string
	Vector []float32
}

// Page is one page of a listing.
type Page struct {
	Documents []domdoc.Document
	Total     int
}

// sortDocuments orders by creation time, then id.
func sortDocuments(docs []domdoc.Document) {
	slices.SortFunc(docs, func(a, b domdoc.Document) int {
		if c := a.CreatedAt().Compare(b.CreatedAt()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})
}

func pageBounds(total, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return offset, end
}
