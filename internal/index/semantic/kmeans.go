package semantic

import (
	"cmp"
	"slices"
)

// trainKMeans runs spherical k-means over unit vectors and returns up to k unit centroids.
// Seeds are spread evenly over the vectors in id order so training is deterministic.
func trainKMeans(vectors [][]float32, ids []string, k, iterations int) [][]float32 {
	n := len(vectors)
	if k > n {
		k = n
	}
	if k == 0 {
		return nil
	}

	byID := make([]int, n)
	for i := range byID {
		byID[i] = i
	}
	slices.SortFunc(byID, func(a, b int) int { return cmp.Compare(ids[a], ids[b]) })

	dim := len(vectors[0])
	centroids := make([][]float32, k)
	for c := range centroids {
		centroids[c] = slices.Clone(vectors[byID[c*n/k]])
	}

	assign := make([]int, n)
	for it := 0; it < iterations; it++ {
		changed := false
		for i, v := range vectors {
			c := nearest(centroids, v)
			if it == 0 || assign[i] != c {
				changed = true
			}
			assign[i] = c
		}
		if !changed {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, v := range vectors {
			c := assign[i]
			counts[c]++
			for d, f := range v {
				sums[c][d] += float64(f)
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue // keep the previous centroid for an empty cluster
			}
			mean := make([]float32, dim)
			for d := range mean {
				mean[d] = float32(sums[c][d] / float64(counts[c]))
			}
			if unit, ok := normalize(mean); ok {
				centroids[c] = unit
			}
		}
	}
	return centroids
}

// nearest returns the centroid with the highest inner product, lowest index on ties.
func nearest(centroids [][]float32, v []float32) int {
	best, bestDot := 0, dot(centroids[0], v)
	for c := 1; c < len(centroids); c++ {
		if d := dot(centroids[c], v); d > bestDot {
			best, bestDot = c, d
		}
	}
	return best
}

// probe returns the n centroids closest to q.
func probe(centroids [][]float32, q []float32, n int) []int {
	type cand struct {
		c int
		d float32
	}
	cands := make([]cand, len(centroids))
	for c := range centroids {
		cands[c] = cand{c: c, d: dot(centroids[c], q)}
	}
	slices.SortFunc(cands, func(a, b cand) int {
		if r := cmp.Compare(b.d, a.d); r != 0 {
			return r
		}
		return cmp.Compare(a.c, b.c)
	})
	if n > len(cands) {
		n = len(cands)
	}
	out := make([]int, n)
	for i := range out {
		out[i] = cands[i].c
	}
	return out
}
