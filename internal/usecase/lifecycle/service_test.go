package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/hybridex/internal/domain"
	dombatch "github.com/kailas-cloud/hybridex/internal/domain/batch"
	"github.com/kailas-cloud/hybridex/internal/domain/document/metadata"
	"github.com/kailas-cloud/hybridex/internal/domain/document/patch"
	"github.com/kailas-cloud/hybridex/internal/index/semantic"
	"github.com/kailas-cloud/hybridex/internal/index/topk"
	"github.com/kailas-cloud/hybridex/internal/repository/document"
)

func scoredIDs(s []topk.Scored) []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = r.ID
	}
	return out
}

func TestAdd_IndexesAndPersists(t *testing.T) {
	f := newFixture(t)
	v0 := f.holder.Version()

	doc, err := f.svc.Add(context.Background(), Input{ID: "A", Title: "ML", Body: "machine learning basics"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if doc.ID() != "A" || doc.CreatedAt().IsZero() {
		t.Errorf("doc = %+v", doc)
	}

	set := f.holder.Load()
	if !set.Lexical.Has("A") || !set.Semantic.Has("A") {
		t.Error("document missing from an index")
	}
	if _, err := f.store.Get(context.Background(), "A"); err != nil {
		t.Errorf("store.Get: %v", err)
	}
	e, err := f.store.GetEmbedding(context.Background(), "A")
	if err != nil || e.Hash != doc.ContentHash() {
		t.Errorf("stored embedding = %+v, %v", e, err)
	}
	if f.holder.Version() <= v0 {
		t.Error("version was not bumped")
	}
	if f.results.count() != 1 {
		t.Errorf("result cache invalidations = %d, want 1", f.results.count())
	}
}

func TestAdd_GeneratesID(t *testing.T) {
	f := newFixture(t)
	doc, err := f.svc.Add(context.Background(), Input{Body: "no id given"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(doc.ID()) != 36 {
		t.Errorf("generated id %q is not a UUID", doc.ID())
	}
}

func TestAdd_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.mustAdd(t, "A", "", "first body")

	_, err := f.svc.Add(context.Background(), Input{ID: "A", Body: "second body"})
	if !errors.Is(err, domain.ErrDuplicateID) {
		t.Fatalf("error = %v, want ErrDuplicateID", err)
	}
	got, _ := f.store.Get(context.Background(), "A")
	if got.Body() != "first body" {
		t.Errorf("original document was overwritten: %q", got.Body())
	}
}

func TestAdd_InvalidDocument(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Add(context.Background(), Input{ID: "bad id!", Body: "x"})
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Errorf("error = %v, want ErrInvalidDocument", err)
	}
	_, err = f.svc.Add(context.Background(), Input{ID: "ok"})
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Errorf("empty body: error = %v, want ErrInvalidDocument", err)
	}
}

func TestAdd_EmbeddingFailureLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	f.emb.err = domain.ErrEmbeddingUnavailable

	_, err := f.svc.Add(context.Background(), Input{ID: "A", Body: "machine learning"})
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("error = %v, want ErrEmbeddingUnavailable", err)
	}
	assertAbsent(t, f, "A")
}

func TestAdd_WrongDimension(t *testing.T) {
	f := newFixture(t)
	f.emb.dim = testDim + 1

	_, err := f.svc.Add(context.Background(), Input{ID: "A", Body: "machine learning"})
	if !errors.Is(err, domain.ErrShapeMismatch) {
		t.Fatalf("error = %v, want ErrShapeMismatch", err)
	}
	assertAbsent(t, f, "A")
}

func TestAdd_RollsBackOnStoreFailure(t *testing.T) {
	mem := document.NewMemory()
	f := newFixtureWithStore(t, &flakyStore{Memory: mem, failPutEmbedding: true}, mem)

	_, err := f.svc.Add(context.Background(), Input{ID: "A", Body: "machine learning"})
	if !errors.Is(err, errStore) {
		t.Fatalf("error = %v, want store failure", err)
	}
	assertAbsent(t, f, "A")
}

func assertAbsent(t *testing.T, f *fixture, id string) {
	t.Helper()
	if _, err := f.store.Get(context.Background(), id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("store still holds %s: %v", id, err)
	}
	set := f.holder.Load()
	if set.Lexical.Has(id) || set.Semantic.Has(id) {
		t.Errorf("%s is still indexed", id)
	}
}

func TestAddDelete_RoundTrip(t *testing.T) {
	f := newFixture(t)
	f.mustAdd(t, "A", "", "machine learning basics")
	f.mustAdd(t, "B", "", "deep learning networks")
	if _, err := f.svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	set := f.holder.Load()
	query := f.emb.vector("learning")
	beforeLex := set.Lexical.Query("learning", 10)
	beforeSem, _ := set.Semantic.Query(query, 10)
	beforeStats := f.svc.Stats()

	f.mustAdd(t, "C", "", "learning to cook")
	if err := f.svc.Delete(context.Background(), "C"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	afterLex := set.Lexical.Query("learning", 10)
	afterSem, _ := set.Semantic.Query(query, 10)
	if !reflect.DeepEqual(beforeLex, afterLex) {
		t.Errorf("lexical results changed: %v -> %v", beforeLex, afterLex)
	}
	if !reflect.DeepEqual(scoredIDs(beforeSem), scoredIDs(afterSem)) {
		t.Errorf("semantic results changed: %v -> %v", scoredIDs(beforeSem), scoredIDs(afterSem))
	}
	after := f.svc.Stats()
	if after.CorpusSize != beforeStats.CorpusSize || after.VocabularySize != beforeStats.VocabularySize {
		t.Errorf("stats changed: %+v -> %+v", beforeStats, after)
	}
	assertAbsent(t, f, "C")
}

func TestDelete_NotFound(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.Delete(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if f.results.count() != 0 {
		t.Error("failed delete must not invalidate caches")
	}
}

func TestDelete_SurfacesIndexDrift(t *testing.T) {
	for _, side := range []string{"lexical", "semantic"} {
		t.Run(side, func(t *testing.T) {
			f := newFixture(t)
			f.mustAdd(t, "A", "", "machine learning basics")
			set := f.holder.Load()
			if side == "lexical" {
				set.Lexical.Remove("A")
			} else {
				set.Semantic.Remove("A")
			}
			before := f.results.count()

			err := f.svc.Delete(context.Background(), "A")
			if !errors.Is(err, domain.ErrIndexCorrupt) {
				t.Fatalf("error = %v, want ErrIndexCorrupt", err)
			}
			var corrupt *domain.IndexCorruptError
			if !errors.As(err, &corrupt) || corrupt.Component != "lifecycle" {
				t.Errorf("error = %#v, want an IndexCorruptError from lifecycle", err)
			}
			assertAbsent(t, f, "A")
			if f.results.count() <= before {
				t.Error("delete must still invalidate the result cache")
			}
		})
	}
}

func TestUpdate_ReembedsOnContentChange(t *testing.T) {
	f := newFixture(t)
	f.mustAdd(t, "A", "Intro", "machine learning basics")
	if _, err := f.svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	calls, batches := f.emb.counts()

	body := "cooking recipes basics"
	p, _ := patch.New(nil, &body, nil)
	next, err := f.svc.Update(context.Background(), "A", p)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if next.Body() != body || next.Title() != "Intro" {
		t.Errorf("updated doc = %q/%q", next.Title(), next.Body())
	}
	if c, b := f.emb.counts(); c+b != calls+batches+1 {
		t.Errorf("provider calls %d -> %d, want one more", calls+batches, c+b)
	}

	set := f.holder.Load()
	got, _ := set.Semantic.Vector("A")
	want, _ := normalizedVector(f.emb.vector(next.Text()))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("semantic vector not replaced")
	}
	stored, _ := f.store.GetEmbedding(context.Background(), "A")
	if stored.Hash != next.ContentHash() {
		t.Error("stored embedding hash is stale")
	}
	if r := set.Lexical.Query("machine", 10); len(r) != 0 {
		t.Errorf("old terms still match: %v", r)
	}
}

// normalizedVector returns v as the semantic index stores it.
func normalizedVector(v []float32) ([]float32, bool) {
	idx, err := semantic.New(semantic.DefaultConfig(len(v)))
	if err != nil || idx.Add("x", v) != nil {
		return nil, false
	}
	return idx.Vector("x")
}

func TestUpdate_MetadataOnlySkipsEmbedding(t *testing.T) {
	f := newFixture(t)
	f.mustAdd(t, "A", "", "machine learning basics")
	calls, batches := f.emb.counts()
	invalidations := f.results.count()

	var md metadata.Map
	md.Set("lang", metadata.String("en"))
	p, _ := patch.New(nil, nil, &md)
	next, err := f.svc.Update(context.Background(), "A", p)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if v, ok := next.Metadata().Get("lang"); !ok || v.Render() != "en" {
		t.Errorf("metadata = %v", next.Metadata())
	}
	if c, b := f.emb.counts(); c != calls || b != batches {
		t.Error("unchanged content was re-embedded")
	}
	if f.results.count() != invalidations+1 {
		t.Error("metadata update must still invalidate cached results")
	}
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(t)
	body := "x"
	p, _ := patch.New(nil, &body, nil)
	if _, err := f.svc.Update(context.Background(), "ghost", p); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestUpdate_EmbeddingFailureKeepsOldVersion(t *testing.T) {
	f := newFixture(t)
	f.mustAdd(t, "A", "", "machine learning basics")
	f.emb.err = domain.ErrDependencyTimeout

	body := "something else"
	p, _ := patch.New(nil, &body, nil)
	if _, err := f.svc.Update(context.Background(), "A", p); !errors.Is(err, domain.ErrDependencyTimeout) {
		t.Fatalf("error = %v, want ErrDependencyTimeout", err)
	}
	got, _ := f.store.Get(context.Background(), "A")
	if got.Body() != "machine learning basics" {
		t.Errorf("body = %q, want the original", got.Body())
	}
}

func TestAddBatch(t *testing.T) {
	f := newFixture(t)
	f.mustAdd(t, "existing", "", "already here")

	res := f.svc.AddBatch(context.Background(), []Input{
		{ID: "a", Body: "alpha document"},
		{ID: "b", Body: "beta document"},
		{ID: "bad id!", Body: "invalid"},
		{ID: "existing", Body: "duplicate"},
		{ID: "a", Body: "repeated in batch"},
		{ID: "c", Body: "gamma document"},
	})

	want := []dombatch.ItemStatus{
		dombatch.StatusOK, dombatch.StatusOK, dombatch.StatusError,
		dombatch.StatusError, dombatch.StatusError, dombatch.StatusOK,
	}
	for i, r := range res {
		if r.Status() != want[i] {
			t.Errorf("[%d] %s status = %s (%v), want %s", i, r.DocID(), r.Status(), r.Err(), want[i])
		}
	}
	if !errors.Is(res[3].Err(), domain.ErrDuplicateID) || !errors.Is(res[4].Err(), domain.ErrDuplicateID) {
		t.Errorf("duplicate errors = %v / %v", res[3].Err(), res[4].Err())
	}
	// Four valid documents in batches of two; "existing" is only rejected at insert.
	if _, batches := f.emb.counts(); batches != 2 {
		t.Errorf("batch provider calls = %d, want 2", batches)
	}
	for _, id := range []string{"a", "b", "c"} {
		if !f.holder.Load().Semantic.Has(id) {
			t.Errorf("%s not indexed", id)
		}
	}
}

func TestAddBatch_TooLarge(t *testing.T) {
	f := newFixture(t)
	items := make([]Input, MaxBatchSize+1)
	for i := range items {
		items[i] = Input{ID: fmt.Sprintf("d%d", i), Body: "text"}
	}
	for _, r := range f.svc.AddBatch(context.Background(), items) {
		if r.Status() != dombatch.StatusError {
			t.Fatalf("%s accepted in an oversized batch", r.DocID())
		}
	}
	if c, b := f.emb.counts(); c+b != 0 {
		t.Error("oversized batch reached the provider")
	}
}

func TestAddBatch_ProviderFailureFailsPendingItems(t *testing.T) {
	f := newFixture(t)
	f.emb.err = domain.ErrEmbeddingUnavailable
	res := f.svc.AddBatch(context.Background(), []Input{{ID: "a", Body: "x"}, {ID: "b", Body: "y"}})
	for _, r := range res {
		if !errors.Is(r.Err(), domain.ErrEmbeddingUnavailable) {
			t.Errorf("%s: error = %v", r.DocID(), r.Err())
		}
	}
	assertAbsent(t, f, "a")
}

func TestRebuild_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.mustAdd(t, "A", "", "machine learning basics")
	f.mustAdd(t, "B", "", "deep learning networks")
	f.mustAdd(t, "C", "", "cooking recipes")

	first, err := f.svc.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	set1 := f.holder.Load()
	lex1 := set1.Lexical.Query("machine learning", 10)
	sem1, _ := set1.Semantic.Query(f.emb.vector("machine learning"), 10)

	second, err := f.svc.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	set2 := f.holder.Load()
	lex2 := set2.Lexical.Query("machine learning", 10)
	sem2, _ := set2.Semantic.Query(f.emb.vector("machine learning"), 10)

	if !reflect.DeepEqual(lex1, lex2) || !reflect.DeepEqual(sem1, sem2) {
		t.Errorf("results differ across rebuilds:\n%v\n%v", lex1, lex2)
	}
	if first.DocumentsIndexed != 3 || second.DocumentsIndexed != 3 {
		t.Errorf("documents indexed = %d/%d", first.DocumentsIndexed, second.DocumentsIndexed)
	}
	if first.VocabularySize != second.VocabularySize {
		t.Errorf("vocabulary %d vs %d", first.VocabularySize, second.VocabularySize)
	}
	if first.Reembedded != 0 || second.Reembedded != 0 {
		t.Errorf("stored embeddings should be reused, reembedded %d/%d", first.Reembedded, second.Reembedded)
	}
	if set2.Generation != set1.Generation+1 {
		t.Errorf("generation %d -> %d", set1.Generation, set2.Generation)
	}
}

func TestWarmup_EmbedsOnlyMissingVectors(t *testing.T) {
	mem := document.NewMemory()
	f := newFixtureWithStore(t, mem, mem)

	a, _ := f.svc.NewDocument(Input{ID: "A", Body: "machine learning"})
	b, _ := f.svc.NewDocument(Input{ID: "B", Body: "deep learning"})
	if err := mem.Create(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if err := mem.Create(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	if err := mem.PutEmbedding(context.Background(), "A", embedding(a, f.emb.vector(a.Text()))); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Warmup(context.Background()); err != nil {
		t.Fatalf("Warmup: %v", err)
	}
	set := f.holder.Load()
	if set.Lexical.Len() != 2 || set.Semantic.Len() != 2 {
		t.Errorf("indexed %d/%d documents, want 2/2", set.Lexical.Len(), set.Semantic.Len())
	}
	f.emb.mu.Lock()
	texts := f.emb.texts
	f.emb.mu.Unlock()
	if len(texts) != 1 || texts[0] != b.Text() {
		t.Errorf("embedded texts = %q, want only B", texts)
	}
	if _, err := mem.GetEmbedding(context.Background(), "B"); err != nil {
		t.Errorf("fresh embedding not written back: %v", err)
	}
}

func TestRebuild_FailureKeepsLiveIndices(t *testing.T) {
	f := newFixture(t)
	f.mustAdd(t, "A", "", "machine learning basics")
	gen := f.holder.Load().Generation

	c, _ := f.svc.NewDocument(Input{ID: "C", Body: "not yet embedded"})
	if err := f.store.Create(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	f.emb.err = domain.ErrEmbeddingUnavailable

	if _, err := f.svc.Rebuild(context.Background()); !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("error = %v, want ErrEmbeddingUnavailable", err)
	}
	set := f.holder.Load()
	if set.Generation != gen || !set.Lexical.Has("A") || set.Lexical.Has("C") {
		t.Error("failed rebuild replaced the live indices")
	}
}

func TestList(t *testing.T) {
	f := newFixture(t)
	for i := 1; i <= 5; i++ {
		f.mustAdd(t, fmt.Sprintf("d%d", i), "", fmt.Sprintf("body %d", i))
	}

	res, err := f.svc.List(context.Background(), 2, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var got []string
	for _, d := range res.Documents {
		got = append(got, d.ID())
	}
	if ids(got) != "d3,d4" || res.Total != 5 || res.TotalPages != 3 || res.Page != 2 {
		t.Errorf("page = %v total=%d pages=%d", got, res.Total, res.TotalPages)
	}

	res, _ = f.svc.List(context.Background(), 0, 0)
	if res.Page != 1 || res.PerPage != DefaultPerPage || len(res.Documents) != 5 {
		t.Errorf("defaults = %+v", res)
	}
	if _, err := f.svc.List(context.Background(), 1, MaxPerPage+1); !errors.Is(err, domain.ErrInvalidLimit) {
		t.Errorf("error = %v, want ErrInvalidLimit", err)
	}
}

func TestKeywords(t *testing.T) {
	f := newFixture(t)
	f.mustAdd(t, "A", "", "machine learning basics")
	f.mustAdd(t, "C", "", "cooking recipes")
	if _, err := f.svc.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}

	terms, err := f.svc.Keywords(context.Background(), "C", 0)
	if err != nil {
		t.Fatalf("Keywords: %v", err)
	}
	var got []string
	for _, term := range terms {
		got = append(got, term.Term)
	}
	if len(got) != 3 || !strings.Contains(ids(got), "cooking") {
		t.Errorf("terms = %v", got)
	}
	if _, err := f.svc.Keywords(context.Background(), "ghost", 5); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.mustAdd(t, "A", "", "machine learning basics")
	if _, err := f.svc.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}
	st := f.svc.Stats()
	if st.CorpusSize != 1 || st.EmbeddingDimension != testDim || st.IndexType != "flat" {
		t.Errorf("stats = %+v", st)
	}
	if st.NGramRange != [2]int{1, 2} || st.VocabularySize == 0 || st.BuiltAt.IsZero() {
		t.Errorf("stats = %+v", st)
	}
}

func TestConcurrentWriters(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("doc%d", i%10)
			_, _ = f.svc.Add(context.Background(), Input{ID: id, Body: "concurrent body " + id})
			if i%3 == 0 {
				_, _ = f.svc.Rebuild(context.Background())
			}
		}()
	}
	wg.Wait()

	set := f.holder.Load()
	if set.Lexical.Len() != 10 || set.Semantic.Len() != 10 {
		t.Errorf("indexed %d/%d, want 10/10", set.Lexical.Len(), set.Semantic.Len())
	}
	if f.svc.ids.size() != 0 {
		t.Errorf("%d per-id locks leaked", f.svc.ids.size())
	}
}

func TestNew_RequiresDimension(t *testing.T) {
	if _, err := New(document.NewMemory(), emptyHolder(t), newTextEmbedder(), Options{}); err == nil {
		t.Error("expected an error for a zero dimension")
	}
}
