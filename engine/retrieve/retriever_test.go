package retrieve

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/NyayaAI/nyaya-core/engine/domain"
	"github.com/NyayaAI/nyaya-core/engine/semantic"
	"github.com/NyayaAI/nyaya-core/pkg/mlclient"
)

type stubEmbedder struct {
	calls int32
	err   error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) (mlclient.Embedding, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return mlclient.Embedding{}, s.err
	}
	return mlclient.Embedding{
		Dense:         []float32{0.1, 0.2},
		SparseIndices: []uint32{4, 9},
		SparseValues:  []float32{1.1, 0.3},
	}, nil
}

type searchCall struct {
	kind   string
	limit  uint64
	filter semantic.Filter
}

type stubSearcher struct {
	mu     sync.Mutex
	calls  []searchCall
	dense  []semantic.Hit
	sparse []semantic.Hit
	err    error
}

func (s *stubSearcher) SearchDense(_ context.Context, _ string, _ []float32, limit uint64, f semantic.Filter) ([]semantic.Hit, error) {
	s.mu.Lock()
	s.calls = append(s.calls, searchCall{"dense", limit, f})
	s.mu.Unlock()
	return s.dense, s.err
}

func (s *stubSearcher) SearchSparse(_ context.Context, _ string, _ []uint32, _ []float32, limit uint64, f semantic.Filter) ([]semantic.Hit, error) {
	s.mu.Lock()
	s.calls = append(s.calls, searchCall{"sparse", limit, f})
	s.mu.Unlock()
	return s.sparse, s.err
}

type stubReranker struct {
	scores []float64
	err    error
	calls  int
	gotLen int
	// raw returns scores as-is, even when the count is wrong.
	raw bool
}

func (s *stubReranker) Rerank(_ context.Context, _ string, passages []string) ([]float64, error) {
	s.calls++
	s.gotLen = len(passages)
	if s.err != nil {
		return nil, s.err
	}
	if s.raw {
		return s.scores, nil
	}
	return s.scores[:len(passages)], nil
}

func eraHits(era domain.Era, ids ...string) []semantic.Hit {
	out := make([]semantic.Hit, len(ids))
	for i, id := range ids {
		out[i] = semantic.Hit{ID: id, Payload: semantic.Payload{Era: era, Content: "p" + id}}
	}
	return out
}

func TestRetrieveEmbedsExactlyOnce(t *testing.T) {
	emb := &stubEmbedder{}
	search := &stubSearcher{dense: eraHits(domain.EraCurrent, "a"), sparse: eraHits(domain.EraCurrent, "b")}
	r := New(emb, search, nil, Options{}, nil)

	_, err := r.Retrieve(context.Background(), semantic.CollectionSections, "murder punishment", 5, semantic.Filter{Era: domain.EraCurrent})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got := atomic.LoadInt32(&emb.calls); got != 1 {
		t.Fatalf("embed calls = %d, want exactly 1", got)
	}
}

func TestRetrieveCandidateWidthAndFilters(t *testing.T) {
	search := &stubSearcher{}
	r := New(&stubEmbedder{}, search, nil, Options{}, nil)

	_, err := r.Retrieve(context.Background(), semantic.CollectionSections, "cheating", 10, semantic.Filter{Era: domain.EraCurrent})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(search.calls) != 2 {
		t.Fatalf("calls = %d, want dense+sparse", len(search.calls))
	}
	for _, c := range search.calls {
		if c.limit != 50 {
			t.Fatalf("%s limit = %d, want topK*5", c.kind, c.limit)
		}
		if c.filter.Era != domain.EraCurrent {
			t.Fatalf("%s filter era = %s", c.kind, c.filter.Era)
		}
	}
}

func TestRetrieveFansOutOverErasWhenUnpinned(t *testing.T) {
	search := &stubSearcher{}
	r := New(&stubEmbedder{}, search, nil, Options{}, nil)

	_, err := r.Retrieve(context.Background(), semantic.CollectionSections, "theft", 5, semantic.Filter{})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(search.calls) != 4 {
		t.Fatalf("calls = %d, want dense+sparse per era", len(search.calls))
	}
	eras := map[domain.Era]int{}
	for _, c := range search.calls {
		eras[c.filter.Era]++
	}
	if eras[domain.EraLegacy] != 2 || eras[domain.EraCurrent] != 2 {
		t.Fatalf("era spread = %v", eras)
	}
}

func TestRetrieveRerankOrdersAndCuts(t *testing.T) {
	search := &stubSearcher{
		dense:  eraHits(domain.EraCurrent, "a", "b", "c"),
		sparse: eraHits(domain.EraCurrent, "c", "d"),
	}
	// c fuses highest; rerank inverts that.
	rr := &stubReranker{scores: []float64{0.1, 0.9, 0.5, 0.2, 0.3}}
	r := New(&stubEmbedder{}, search, rr, Options{}, nil)

	got, err := r.Retrieve(context.Background(), semantic.CollectionSections, "robbery", 2, semantic.Filter{Era: domain.EraCurrent})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if rr.calls != 1 {
		t.Fatalf("rerank calls = %d", rr.calls)
	}
	if rr.gotLen != 4 {
		t.Fatalf("reranked %d candidates, want min(topK*2, fused)", rr.gotLen)
	}
	if len(got) != 2 {
		t.Fatalf("returned %d, want topK", len(got))
	}
	if got[0].Score != 0.9 {
		t.Fatalf("top score = %v", got[0].Score)
	}
	if got[0].Score < got[1].Score {
		t.Fatal("results not ordered by rerank score")
	}
	if got[0].FusedScore == 0 {
		t.Fatal("fused score should be preserved alongside rerank score")
	}
}

func TestRetrieveRerankFailureFallsBackToFusedOrder(t *testing.T) {
	search := &stubSearcher{
		dense:  eraHits(domain.EraCurrent, "a", "b"),
		sparse: eraHits(domain.EraCurrent, "a"),
	}
	rr := &stubReranker{err: errors.New("worker down")}
	r := New(&stubEmbedder{}, search, rr, Options{}, nil)

	got, err := r.Retrieve(context.Background(), semantic.CollectionSections, "assault", 2, semantic.Filter{Era: domain.EraCurrent})
	if err != nil {
		t.Fatalf("rerank failure must not fail retrieval: %v", err)
	}
	if got[0].ID != "a" {
		t.Fatalf("top = %s, want fused leader", got[0].ID)
	}
	if got[0].Score != got[0].FusedScore {
		t.Fatal("fallback should keep fused scores")
	}
}

func TestRetrieveRerankCountMismatchFallsBackToFusedOrder(t *testing.T) {
	search := &stubSearcher{
		dense:  eraHits(domain.EraCurrent, "a", "b"),
		sparse: eraHits(domain.EraCurrent, "a"),
	}
	rr := &stubReranker{scores: []float64{0.9}, raw: true}
	r := New(&stubEmbedder{}, search, rr, Options{}, nil)

	got, err := r.Retrieve(context.Background(), semantic.CollectionSections, "extortion", 2, semantic.Filter{Era: domain.EraCurrent})
	if err != nil {
		t.Fatalf("score count mismatch must not fail retrieval: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" {
		t.Fatalf("got %+v, want fused order", got)
	}
	if got[0].Score != got[0].FusedScore || got[1].Score != got[1].FusedScore {
		t.Fatal("mismatched rerank must keep fused scores")
	}
}

func TestRetrieveDeterministicAcrossRuns(t *testing.T) {
	search := &stubSearcher{
		dense:  eraHits(domain.EraCurrent, "x", "y", "z"),
		sparse: eraHits(domain.EraCurrent, "z", "x"),
	}
	r := New(&stubEmbedder{}, search, nil, Options{}, nil)

	var first []RankedPassage
	for i := 0; i < 5; i++ {
		got, err := r.Retrieve(context.Background(), semantic.CollectionSections, "kidnapping", 3, semantic.Filter{Era: domain.EraCurrent})
		if err != nil {
			t.Fatalf("retrieve: %v", err)
		}
		if first == nil {
			first = got
			continue
		}
		for j := range got {
			if got[j].ID != first[j].ID {
				t.Fatalf("run %d order differs at %d: %s vs %s", i, j, got[j].ID, first[j].ID)
			}
		}
	}
}

func TestRetrieveRejectsShortQuery(t *testing.T) {
	r := New(&stubEmbedder{}, &stubSearcher{}, nil, Options{}, nil)
	_, err := r.Retrieve(context.Background(), semantic.CollectionSections, "ab", 5, semantic.Filter{})
	if !errors.Is(err, domain.ErrQueryTooShort) {
		t.Fatalf("err = %v", err)
	}
}

func TestRetrieveEmptyIndex(t *testing.T) {
	r := New(&stubEmbedder{}, &stubSearcher{}, nil, Options{}, nil)
	got, err := r.Retrieve(context.Background(), semantic.CollectionSections, "arson", 5, semantic.Filter{Era: domain.EraCurrent})
	if err != nil || got != nil {
		t.Fatalf("got %v %v", got, err)
	}
}
