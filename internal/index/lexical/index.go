// Package lexical implements an in-memory TF-IDF index with cosine scoring.
//
// The vocabulary and IDF weights are fitted by Index over the whole corpus.
// Add and Remove update term vectors without refitting: a document added after
// the last Index is projected onto the existing vocabulary, so terms unseen at
// fit time contribute nothing until the next Index call.
package lexical

import (
	"cmp"
	"math"
	"slices"
	"sync"

	"github.com/kailas-cloud/hybridex/internal/index/topk"
)

// Config controls analysis and vocabulary selection.
type Config struct {
	NGramMin    int
	NGramMax    int
	MaxFeatures int     // vocabulary cap, most frequent terms kept; 0 = unbounded
	MinDF       int     // minimum document frequency
	MaxDF       float64 // maximum document frequency as a corpus fraction, (0, 1]
	StopWords   bool    // drop English stop words
}

// DefaultConfig returns unigrams+bigrams, 10000 features, English stop words.
func DefaultConfig() Config {
	return Config{NGramMin: 1, NGramMax: 2, MaxFeatures: 10000, MinDF: 1, MaxDF: 1.0, StopWords: true}
}

func (c Config) normalized() Config {
	if c.NGramMin <= 0 {
		c.NGramMin = 1
	}
	if c.NGramMax < c.NGramMin {
		c.NGramMax = c.NGramMin
	}
	if c.MinDF <= 0 {
		c.MinDF = 1
	}
	if c.MaxDF <= 0 || c.MaxDF > 1 {
		c.MaxDF = 1
	}
	return c
}

// Doc is a document to index.
type Doc struct {
	ID   string
	Text string
}

// Term is a vocabulary term with its weight in a vector.
type Term struct {
	Term   string
	Weight float64
}

type entry struct {
	term int
	w    float64
}

// Index is a TF-IDF index. Safe for concurrent use.
type Index struct {
	cfg      Config
	analyzer *Analyzer

	mu       sync.RWMutex
	vocab    map[string]int
	terms    []string
	idf      []float64
	docs     map[string][]entry
	postings map[int]map[string]float64
}

// New creates an empty index.
func New(cfg Config) *Index {
	cfg = cfg.normalized()
	return &Index{
		cfg:      cfg,
		analyzer: NewAnalyzer(cfg.NGramMin, cfg.NGramMax, cfg.StopWords),
		vocab:    map[string]int{},
		docs:     map[string][]entry{},
		postings: map[int]map[string]float64{},
	}
}

// Config returns the effective configuration.
func (x *Index) Config() Config { return x.cfg }

// Index fits the vocabulary and IDF on docs and replaces all term vectors.
// Later duplicates of an id replace earlier ones.
func (x *Index) Index(docs []Doc) {
	uniq := make(map[string]int, len(docs))
	corpus := make([]Doc, 0, len(docs))
	for _, d := range docs {
		if i, ok := uniq[d.ID]; ok {
			corpus[i] = d
			continue
		}
		uniq[d.ID] = len(corpus)
		corpus = append(corpus, d)
	}

	counts := make([]map[string]int, len(corpus))
	df := map[string]int{}
	tf := map[string]int{}
	for i, d := range corpus {
		c := termCounts(x.analyzer.Terms(d.Text))
		counts[i] = c
		for term, n := range c {
			df[term]++
			tf[term] += n
		}
	}

	n := len(corpus)
	maxDocs := int(math.Floor(x.cfg.MaxDF * float64(n)))
	if x.cfg.MaxDF >= 1 {
		maxDocs = n
	}
	kept := make([]string, 0, len(df))
	for term, f := range df {
		if f >= x.cfg.MinDF && f <= maxDocs {
			kept = append(kept, term)
		}
	}
	if x.cfg.MaxFeatures > 0 && len(kept) > x.cfg.MaxFeatures {
		slices.SortFunc(kept, func(a, b string) int {
			if c := cmp.Compare(tf[b], tf[a]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
		kept = kept[:x.cfg.MaxFeatures]
	}
	slices.Sort(kept)

	vocab := make(map[string]int, len(kept))
	idf := make([]float64, len(kept))
	for i, term := range kept {
		vocab[term] = i
		idf[i] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}

	vectors := make(map[string][]entry, n)
	postings := make(map[int]map[string]float64, len(kept))
	for i, d := range corpus {
		vec := project(counts[i], vocab, idf)
		vectors[d.ID] = vec
		addPostings(postings, d.ID, vec)
	}

	x.mu.Lock()
	x.vocab, x.terms, x.idf = vocab, kept, idf
	x.docs, x.postings = vectors, postings
	x.mu.Unlock()
}

// Add projects doc onto the current vocabulary and inserts or replaces it.
func (x *Index) Add(doc Doc) {
	counts := termCounts(x.analyzer.Terms(doc.Text))

	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeLocked(doc.ID)
	vec := project(counts, x.vocab, x.idf)
	x.docs[doc.ID] = vec
	addPostings(x.postings, doc.ID, vec)
}

// Remove deletes id. Reports whether it was present.
func (x *Index) Remove(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.removeLocked(id)
}

func (x *Index) removeLocked(id string) bool {
	vec, ok := x.docs[id]
	if !ok {
		return false
	}
	for _, e := range vec {
		if p := x.postings[e.term]; p != nil {
			delete(p, id)
			if len(p) == 0 {
				delete(x.postings, e.term)
			}
		}
	}
	delete(x.docs, id)
	return true
}

// Query returns up to k documents sharing at least one term with text,
// ordered by cosine similarity descending, ties by id ascending.
// An empty index or k <= 0 yields an empty result.
func (x *Index) Query(text string, k int) []topk.Scored {
	if k <= 0 {
		return []topk.Scored{}
	}
	counts := termCounts(x.analyzer.Terms(text))

	x.mu.RLock()
	defer x.mu.RUnlock()

	q := project(counts, x.vocab, x.idf)
	if len(q) == 0 || len(x.docs) == 0 {
		return []topk.Scored{}
	}

	scores := make(map[string]float64)
	for _, e := range q {
		for id, w := range x.postings[e.term] {
			scores[id] += e.w * w
		}
	}

	c := topk.New(k)
	for id, s := range scores {
		if s <= 0 {
			continue
		}
		c.Push(id, math.Min(s, 1))
	}
	return c.Sorted()
}

// Has reports whether id is indexed.
func (x *Index) Has(id string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.docs[id]
	return ok
}

// Len returns the number of indexed documents.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// VocabularySize returns the number of fitted terms.
func (x *Index) VocabularySize() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.terms)
}

// Terms returns the k highest-weighted terms of a document. Nil if id is unknown.
func (x *Index) Terms(id string, k int) []Term {
	x.mu.RLock()
	defer x.mu.RUnlock()
	vec, ok := x.docs[id]
	if !ok {
		return nil
	}
	return x.topTerms(vec, k)
}

// QueryTerms returns the k highest-weighted vocabulary terms of a query.
func (x *Index) QueryTerms(text string, k int) []Term {
	counts := termCounts(x.analyzer.Terms(text))
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.topTerms(project(counts, x.vocab, x.idf), k)
}

func (x *Index) topTerms(vec []entry, k int) []Term {
	out := make([]Term, 0, len(vec))
	for _, e := range vec {
		out = append(out, Term{Term: x.terms[e.term], Weight: e.w})
	}
	slices.SortFunc(out, func(a, b Term) int {
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		return cmp.Compare(a.Term, b.Term)
	})
	if k >= 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

func termCounts(terms []string) map[string]int {
	c := make(map[string]int, len(terms))
	for _, t := range terms {
		c[t]++
	}
	return c
}

// project builds an L2-normalized TF-IDF vector over the vocabulary, sorted by term id.
func project(counts map[string]int, vocab map[string]int, idf []float64) []entry {
	vec := make([]entry, 0, len(counts))
	var norm float64
	for term, n := range counts {
		id, ok := vocab[term]
		if !ok {
			continue
		}
		w := float64(n) * idf[id]
		vec = append(vec, entry{term: id, w: w})
		norm += w * w
	}
	if norm == 0 {
		return nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i].w /= norm
	}
	slices.SortFunc(vec, func(a, b entry) int { return cmp.Compare(a.term, b.term) })
	return vec
}

func addPostings(postings map[int]map[string]float64, id string, vec []entry) {
	for _, e := range vec {
		p := postings[e.term]
		if p == nil {
			p = make(map[string]float64)
			postings[e.term] = p
		}
		p[id] = e.w
	}
}
