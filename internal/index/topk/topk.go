// Package topk keeps the k best scored ids seen so far.
package topk

import (
	"cmp"
	"container/heap"
	"slices"
)

// Scored is an id with its similarity score.
type Scored struct {
	ID    string
	Score float64
}

// better reports whether a ranks before b: higher score first, then lower id.
func better(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

// minHeap keeps the worst retained candidate at the root.
type minHeap []Scored

var _ heap.Interface = (*minHeap)(nil)

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap) Push(x any) {
	s, _ := x.(Scored)
	*h = append(*h, s)
}

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Collector is a bounded heap of size k. Not safe for concurrent use.
type Collector struct {
	k int
	h minHeap
}

// New creates a collector that retains at most k candidates.
func New(k int) *Collector {
	if k < 0 {
		k = 0
	}
	return &Collector{k: k, h: make(minHeap, 0, min(k, 1024))}
}

// Push offers a candidate.
func (c *Collector) Push(id string, score float64) {
	if c.k == 0 {
		return
	}
	s := Scored{ID: id, Score: score}
	if len(c.h) < c.k {
		heap.Push(&c.h, s)
		return
	}
	if better(s, c.h[0]) {
		c.h[0] = s
		heap.Fix(&c.h, 0)
	}
}

// Len returns the number of retained candidates.
func (c *Collector) Len() int { return len(c.h) }

// Sorted returns the retained candidates best first.
func (c *Collector) Sorted() []Scored {
	out := make([]Scored, len(c.h))
	copy(out, c.h)
	SortScored(out)
	return out
}

// SortScored orders by score descending, ties by id ascending.
func SortScored(s []Scored) {
	slices.SortFunc(s, func(a, b Scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
