package search

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// minSuggestPrefix is the shortest prefix that yields suggestions.
const minSuggestPrefix = 2

// suggestions counts successful queries. The least recently seen query is
// forgotten once capacity is reached.
type suggestions struct {
	mu     sync.Mutex
	counts *simplelru.LRU[string, int]
}

func newSuggestions(capacity int) *suggestions {
	if capacity <= 0 {
		capacity = 1000
	}
	lru, _ := simplelru.NewLRU[string, int](capacity, nil)
	return &suggestions{counts: lru}
}

func (s *suggestions) record(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, _ := s.counts.Peek(query)
	s.counts.Add(query, n+1)
}

// match returns up to limit recorded queries containing fragment (case-insensitive),
// most frequent first, ties alphabetical.
func (s *suggestions) match(fragment string, limit int) []string {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if len(fragment) < minSuggestPrefix || limit <= 0 {
		return []string{}
	}

	type entry struct {
		q string
		n int
	}
	s.mu.Lock()
	var found []entry
	for _, q := range s.counts.Keys() {
		if strings.Contains(q, fragment) {
			n, _ := s.counts.Peek(q)
			found = append(found, entry{q, n})
		}
	}
	s.mu.Unlock()

	slices.SortFunc(found, func(a, b entry) int {
		if c := cmp.Compare(b.n, a.n); c != 0 {
			return c
		}
		return cmp.Compare(a.q, b.q)
	})
	out := make([]string, 0, min(limit, len(found)))
	for _, e := range found {
		if len(out) == limit {
			break
		}
		out = append(out, e.q)
	}
	return out
}
