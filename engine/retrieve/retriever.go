package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/NyayaAI/nyaya-core/engine/domain"
	"github.com/NyayaAI/nyaya-core/engine/semantic"
	"github.com/NyayaAI/nyaya-core/pkg/fn"
	"github.com/NyayaAI/nyaya-core/pkg/mlclient"
)

// Embedder produces both query representations in one call.
type Embedder interface {
	Embed(ctx context.Context, text string) (mlclient.Embedding, error)
}

// Searcher is the slice of the vector store the retriever needs.
type Searcher interface {
	SearchDense(ctx context.Context, collection string, vector []float32, limit uint64, f semantic.Filter) ([]semantic.Hit, error)
	SearchSparse(ctx context.Context, collection string, indices []uint32, values []float32, limit uint64, f semantic.Filter) ([]semantic.Hit, error)
}

// Reranker scores passages against the query pairwise. Implementations
// must return exactly one score per passage, in input order.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []string) ([]float64, error)
}

// Options tune the candidate funnel.
type Options struct {
	// CandidateMultiplier widens each candidate query to topK*N so the
	// fusion has enough overlap to work with.
	CandidateMultiplier int
	// RerankMultiplier bounds how many fused candidates reach the
	// cross-encoder.
	RerankMultiplier int
}

// DefaultOptions match the funnel the engine was tuned with.
var DefaultOptions = Options{
	CandidateMultiplier: 5,
	RerankMultiplier:    2,
}

// RankedPassage is one retrieval result after fusion and reranking.
type RankedPassage struct {
	ID         string           `json:"id"`
	Score      float64          `json:"score"`
	FusedScore float64          `json:"fused_score"`
	Payload    semantic.Payload `json:"payload"`
}

// Retriever runs the hybrid retrieval funnel over one collection.
type Retriever struct {
	embedder Embedder
	searcher Searcher
	reranker Reranker
	opts     Options
	log      *slog.Logger
}

// New builds a Retriever. reranker may be nil, in which case fused
// order is final.
func New(embedder Embedder, searcher Searcher, reranker Reranker, opts Options, log *slog.Logger) *Retriever {
	if opts.CandidateMultiplier <= 0 {
		opts.CandidateMultiplier = DefaultOptions.CandidateMultiplier
	}
	if opts.RerankMultiplier <= 0 {
		opts.RerankMultiplier = DefaultOptions.RerankMultiplier
	}
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{embedder: embedder, searcher: searcher, reranker: reranker, opts: opts, log: log}
}

// Retrieve runs the full funnel: one embed call, dense and sparse
// candidate queries under identical filters, reciprocal rank fusion,
// cross-encoder rerank, top-K cut. When the filter pins no era the
// candidate queries fan out over both statute eras so legacy and
// current provisions compete in the same fused list.
func (r *Retriever) Retrieve(ctx context.Context, collection, query string, topK int, filter semantic.Filter) ([]RankedPassage, error) {
	if err := domain.ValidateQuery(query); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}

	// Both representations come from the same invocation; mixing
	// embeddings from separate calls skews the sparse/dense balance.
	embRes := fn.Retry(ctx, fn.ReadRetry, func(ctx context.Context) fn.Result[mlclient.Embedding] {
		return fn.FromPair(r.embedder.Embed(ctx, query))
	})
	emb, err := embRes.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("retrieve: embed query: %w", err)
	}

	filters := []semantic.Filter{filter}
	if filter.Era == "" {
		filters = []semantic.Filter{
			filter.WithEra(domain.EraLegacy),
			filter.WithEra(domain.EraCurrent),
		}
	}

	limit := uint64(topK * r.opts.CandidateMultiplier)
	var queries []func() fn.Result[[]semantic.Hit]
	for _, f := range filters {
		f := f
		queries = append(queries,
			func() fn.Result[[]semantic.Hit] {
				return fn.Retry(ctx, fn.ReadRetry, func(ctx context.Context) fn.Result[[]semantic.Hit] {
					return fn.FromPair(r.searcher.SearchDense(ctx, collection, emb.Dense, limit, f))
				})
			},
			func() fn.Result[[]semantic.Hit] {
				return fn.Retry(ctx, fn.ReadRetry, func(ctx context.Context) fn.Result[[]semantic.Hit] {
					return fn.FromPair(r.searcher.SearchSparse(ctx, collection, emb.SparseIndices, emb.SparseValues, limit, f))
				})
			},
		)
	}

	lists, err := fn.FanOutResult(queries...).Unwrap()
	if err != nil {
		return nil, fmt.Errorf("retrieve: candidate search: %w", err)
	}

	fused := Fuse(RRFK, lists...)
	if len(fused) == 0 {
		return nil, nil
	}

	rerankN := topK * r.opts.RerankMultiplier
	if rerankN > len(fused) {
		rerankN = len(fused)
	}
	candidates := fused[:rerankN]

	passages := r.rerank(ctx, query, candidates)
	if len(passages) > topK {
		passages = passages[:topK]
	}
	return passages, nil
}

// rerank orders candidates by cross-encoder score. A rerank failure is
// not fatal: the fused ordering is already usable, so we log and fall
// back to it.
func (r *Retriever) rerank(ctx context.Context, query string, candidates []Fused) []RankedPassage {
	out := make([]RankedPassage, len(candidates))
	for i, c := range candidates {
		out[i] = RankedPassage{
			ID:         c.Hit.ID,
			Score:      c.Score,
			FusedScore: c.Score,
			Payload:    c.Hit.Payload,
		}
	}
	if r.reranker == nil {
		return out
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Hit.Payload.Content
	}
	scores, err := r.reranker.Rerank(ctx, query, texts)
	if err != nil {
		r.log.Warn("rerank failed, keeping fused order", "error", err)
		return out
	}
	if len(scores) != len(out) {
		r.log.Warn("rerank score count mismatch, keeping fused order",
			"want", len(out), "got", len(scores))
		return out
	}

	for i := range out {
		out[i].Score = scores[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
