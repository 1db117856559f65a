package search

import (
	"github.com/kailas-cloud/hybridex/internal/domain/search/result"
	"github.com/kailas-cloud/hybridex/internal/index/topk"
)

// fuse merges semantic and keyword candidates by document id.
// A document missing from one side scores 0 there; it is not excluded.
// fused = alpha*semantic + (1-alpha)*keyword, sorted descending, ties by id, truncated to k.
func fuse(sem, kw []topk.Scored, alpha float64, k int) ([]result.Hit, int) {
	byID := make(map[string]*result.Hit, len(sem)+len(kw))
	for _, s := range sem {
		byID[s.ID] = &result.Hit{DocID: s.ID, SemanticScore: s.Score}
	}
	for _, s := range kw {
		if h, ok := byID[s.ID]; ok {
			h.KeywordScore = s.Score
			continue
		}
		byID[s.ID] = &result.Hit{DocID: s.ID, KeywordScore: s.Score}
	}

	hits := make([]result.Hit, 0, len(byID))
	for _, h := range byID {
		h.Score = clamp01(alpha*h.SemanticScore + (1-alpha)*h.KeywordScore)
		hits = append(hits, *h)
	}
	result.Sort(hits)
	unique := len(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, unique
}

// single converts one side's candidates into hits, scored by that side alone.
func single(cands []topk.Scored, semantic bool) []result.Hit {
	hits := make([]result.Hit, len(cands))
	for i, c := range cands {
		h := result.Hit{DocID: c.ID, Score: clamp01(c.Score)}
		if semantic {
			h.SemanticScore = c.Score
		} else {
			h.KeywordScore = c.Score
		}
		hits[i] = h
	}
	return hits
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
