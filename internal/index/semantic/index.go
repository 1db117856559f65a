// Package semantic implements an in-memory vector index over L2-normalized embeddings.
//
// Similarity is the inner product of normalized vectors, reported as (dot+1)/2 so
// every score lies in [0, 1]. Two layouts are supported:
//
//   - flat: exhaustive scan, exact top-k.
//   - ivf: inverted file. Index trains NList centroids with spherical k-means and
//     Query scans only the NProbe lists closest to the query. With NProbe >= NList
//     the result is exact; otherwise only vectors in probed lists are candidates.
//     Below MinTrainSize vectors the index stays untrained and scans exhaustively.
//
// Removal marks a slot in a tombstone bitmap. Slots are compacted once tombstones
// exceed CompactionRatio of all slots.
package semantic

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/index/topk"
)

// Type is the index layout.
type Type string

// Index layouts.
const (
	Flat Type = "flat"
	IVF  Type = "ivf"
)

// Config controls the index layout.
type Config struct {
	Dimension       int
	Type            Type
	NList           int     // ivf: number of centroids
	NProbe          int     // ivf: lists scanned per query
	MinTrainSize    int     // ivf: minimum corpus size to train centroids
	TrainIterations int     // ivf: k-means iterations
	CompactionRatio float64 // tombstone fraction that triggers compaction
}

// DefaultConfig returns a flat index of the given dimension.
func DefaultConfig(dim int) Config {
	return Config{
		Dimension:       dim,
		Type:            Flat,
		NList:           64,
		NProbe:          8,
		MinTrainSize:    1024,
		TrainIterations: 10,
		CompactionRatio: 0.25,
	}
}

func (c Config) normalized() Config {
	if c.Type == "" {
		c.Type = Flat
	}
	if c.NList <= 0 {
		c.NList = 64
	}
	if c.NProbe <= 0 {
		c.NProbe = 8
	}
	if c.MinTrainSize <= 0 {
		c.MinTrainSize = c.NList * 16
	}
	if c.TrainIterations <= 0 {
		c.TrainIterations = 10
	}
	if c.CompactionRatio <= 0 || c.CompactionRatio > 1 {
		c.CompactionRatio = 0.25
	}
	return c
}

// Index is a vector index. Safe for concurrent use.
type Index struct {
	cfg Config

	mu      sync.RWMutex
	vectors [][]float32 // slot -> normalized vector
	ids     []string    // slot -> id
	slots   map[string]uint32
	deleted *roaring.Bitmap

	centroids [][]float32 // nil while untrained
	lists     [][]uint32  // centroid -> slots
}

// New creates an empty index.
func New(cfg Config) (*Index, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("semantic index: dimension must be positive, got %d", cfg.Dimension)
	}
	cfg = cfg.normalized()
	if cfg.Type != Flat && cfg.Type != IVF {
		return nil, fmt.Errorf("semantic index: unknown type %q", cfg.Type)
	}
	return &Index{
		cfg:     cfg,
		slots:   map[string]uint32{},
		deleted: roaring.New(),
	}, nil
}

// Dimension returns the fixed vector dimension.
func (x *Index) Dimension() int { return x.cfg.Dimension }

// Type returns the index layout.
func (x *Index) Type() Type { return x.cfg.Type }

// Config returns the effective configuration.
func (x *Index) Config() Config { return x.cfg }

// Index replaces the contents with the given vectors. ids and embeddings are parallel.
// Nothing changes if any vector is invalid.
func (x *Index) Index(ids []string, embeddings [][]float32) error {
	if len(ids) != len(embeddings) {
		return fmt.Errorf("semantic index: %d ids for %d embeddings", len(ids), len(embeddings))
	}

	vectors := make([][]float32, 0, len(ids))
	order := make([]string, 0, len(ids))
	slots := make(map[string]uint32, len(ids))
	for i, id := range ids {
		v, err := x.prepare(embeddings[i])
		if err != nil {
			return fmt.Errorf("document %s: %w", id, err)
		}
		if s, dup := slots[id]; dup {
			vectors[s] = v
			continue
		}
		slots[id] = uint32(len(vectors))
		vectors = append(vectors, v)
		order = append(order, id)
	}

	var centroids [][]float32
	var lists [][]uint32
	if x.cfg.Type == IVF && len(vectors) >= x.cfg.MinTrainSize {
		centroids = trainKMeans(vectors, order, x.cfg.NList, x.cfg.TrainIterations)
		lists = make([][]uint32, len(centroids))
		for s, v := range vectors {
			c := nearest(centroids, v)
			lists[c] = append(lists[c], uint32(s))
		}
	}

	x.mu.Lock()
	x.vectors, x.ids, x.slots = vectors, order, slots
	x.deleted = roaring.New()
	x.centroids, x.lists = centroids, lists
	x.mu.Unlock()
	return nil
}

// Add inserts or replaces the vector for id.
func (x *Index) Add(id string, embedding []float32) error {
	v, err := x.prepare(embedding)
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if old, ok := x.slots[id]; ok {
		x.deleted.Add(old)
	}
	s := uint32(len(x.vectors))
	x.vectors = append(x.vectors, v)
	x.ids = append(x.ids, id)
	x.slots[id] = s
	if x.centroids != nil {
		c := nearest(x.centroids, v)
		x.lists[c] = append(x.lists[c], s)
	}
	x.maybeCompactLocked()
	return nil
}

// Remove tombstones id. Reports whether it was present.
func (x *Index) Remove(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	s, ok := x.slots[id]
	if !ok {
		return false
	}
	delete(x.slots, id)
	x.deleted.Add(s)
	x.maybeCompactLocked()
	return true
}

// Query returns up to k ids ordered by similarity descending, ties by id ascending.
func (x *Index) Query(query []float32, k int) ([]topk.Scored, error) {
	q, err := x.prepare(query)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return []topk.Scored{}, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	c := topk.New(k)
	visit := func(s uint32) {
		if x.deleted.Contains(s) {
			return
		}
		c.Push(x.ids[s], Similarity(dot(q, x.vectors[s])))
	}

	if x.centroids == nil || x.cfg.NProbe >= len(x.centroids) {
		for s := range x.vectors {
			visit(uint32(s))
		}
		return c.Sorted(), nil
	}

	for _, list := range probe(x.centroids, q, x.cfg.NProbe) {
		for _, s := range x.lists[list] {
			visit(s)
		}
	}
	return c.Sorted(), nil
}

// Similarity maps an inner product of unit vectors from [-1, 1] to [0, 1].
func Similarity(dot float32) float64 {
	s := (float64(dot) + 1) / 2
	return math.Max(0, math.Min(1, s))
}

// Has reports whether id is live.
func (x *Index) Has(id string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.slots[id]
	return ok
}

// Vector returns a copy of the normalized vector for id.
func (x *Index) Vector(id string) ([]float32, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s, ok := x.slots[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(x.vectors[s]), true
}

// Len returns the number of live vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.slots)
}

// Tombstones returns the number of removed slots awaiting compaction.
func (x *Index) Tombstones() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return int(x.deleted.GetCardinality())
}

// Trained reports whether ivf centroids are in use.
func (x *Index) Trained() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.centroids != nil
}

// Compact drops tombstoned slots and renumbers the rest.
func (x *Index) Compact() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.compactLocked()
}

func (x *Index) maybeCompactLocked() {
	dead := float64(x.deleted.GetCardinality())
	if dead > 0 && dead >= x.cfg.CompactionRatio*float64(len(x.vectors)) {
		x.compactLocked()
	}
}

func (x *Index) compactLocked() {
	if x.deleted.IsEmpty() {
		return
	}
	remap := make(map[uint32]uint32, len(x.slots))
	vectors := make([][]float32, 0, len(x.slots))
	ids := make([]string, 0, len(x.slots))
	for s := range x.vectors {
		if x.deleted.Contains(uint32(s)) {
			continue
		}
		remap[uint32(s)] = uint32(len(vectors))
		x.slots[x.ids[s]] = uint32(len(vectors))
		vectors = append(vectors, x.vectors[s])
		ids = append(ids, x.ids[s])
	}
	for c, list := range x.lists {
		kept := list[:0]
		for _, s := range list {
			if ns, ok := remap[s]; ok {
				kept = append(kept, ns)
			}
		}
		x.lists[c] = kept
	}
	x.vectors, x.ids = vectors, ids
	x.deleted = roaring.New()
}

// prepare checks the dimension and returns a normalized copy.
func (x *Index) prepare(v []float32) ([]float32, error) {
	if len(v) != x.cfg.Dimension {
		return nil, fmt.Errorf("%w: expected %d dimensions, got %d", domain.ErrShapeMismatch, x.cfg.Dimension, len(v))
	}
	out, ok := normalize(v)
	if !ok {
		return nil, fmt.Errorf("%w: vector has zero or non-finite norm", domain.ErrShapeMismatch)
	}
	return out, nil
}

func normalize(v []float32) ([]float32, bool) {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, false
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) * inv)
	}
	return out, true
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
