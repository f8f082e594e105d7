// Package pipeline wires the full question path: resolve cited
// provisions, retrieve supporting passages, draft an answer, then
// verify every citation and gate what survives. An unverified citation
// never reaches the caller; if too little survives, the pipeline
// refuses rather than guessing.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/NyayaAI/nyaya-core/engine/domain"
	"github.com/NyayaAI/nyaya-core/engine/retrieve"
	"github.com/NyayaAI/nyaya-core/engine/semantic"
	"github.com/NyayaAI/nyaya-core/engine/statute"
	"github.com/NyayaAI/nyaya-core/pkg/fn"
	"github.com/NyayaAI/nyaya-core/pkg/metrics"
)

// RefusalText is the only answer text a gated-out response may carry.
// It is deliberately constant so downstream consumers can detect
// refusals without parsing.
const RefusalText = "I cannot answer this reliably: the supporting legal provisions could not be verified against the statute database. Please consult the cited acts directly or rephrase the question."

// ConfidenceFloor is the minimum aggregate confidence for releasing an
// answer.
const ConfidenceFloor = 0.5

// Query is one incoming question.
type Query struct {
	Text string `json:"text"`
	// Citations the asker already has in hand; resolved before retrieval
	// so the answer speaks in current-code terms.
	Citations []domain.Citation `json:"citations,omitempty"`
	// AsOf pins the question to the law in force on a given date.
	AsOf *time.Time `json:"as_of,omitempty"`
	TopK int        `json:"top_k,omitempty"`
}

// Draft is the reasoner's raw output before citation gating. Text
// embeds citation markers (see domain.Citation.Marker) at the points
// each provision is relied on.
type Draft struct {
	Text      string            `json:"text"`
	Citations []domain.Citation `json:"citations"`
}

// Reasoner produces a draft answer from the query and its evidence.
type Reasoner interface {
	Reason(ctx context.Context, q Query, resolutions []statute.Resolution, passages []retrieve.RankedPassage) (Draft, error)
}

// Retriever is the slice of the hybrid retriever the pipeline needs.
type Retriever interface {
	Retrieve(ctx context.Context, collection, query string, topK int, f semantic.Filter) ([]retrieve.RankedPassage, error)
}

// CitationVerifier checks draft citations through both tiers.
type CitationVerifier interface {
	VerifyAll(ctx context.Context, citations []domain.Citation) []domain.VerificationResult
}

// Response is the gated answer.
type Response struct {
	Answer      string                      `json:"answer"`
	Refused     bool                        `json:"refused"`
	Confidence  float64                     `json:"confidence"`
	Citations   []domain.VerificationResult `json:"citations,omitempty"`
	Resolutions []statute.Resolution        `json:"resolutions,omitempty"`
	Passages    []retrieve.RankedPassage    `json:"passages,omitempty"`
}

// Pipeline runs the four stages in strict order.
type Pipeline struct {
	resolver  *statute.Resolver
	retriever Retriever
	reasoner  Reasoner
	verifier  CitationVerifier
	floor     float64
	log       *slog.Logger
	reg       *metrics.Registry
}

// New builds a Pipeline. reg may be nil to disable metrics.
func New(resolver *statute.Resolver, retriever Retriever, reasoner Reasoner, verifier CitationVerifier, log *slog.Logger, reg *metrics.Registry) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		resolver:  resolver,
		retriever: retriever,
		reasoner:  reasoner,
		verifier:  verifier,
		floor:     ConfidenceFloor,
		log:       log,
		reg:       reg,
	}
}

// SetConfidenceFloor overrides the release floor. Must be called before
// the pipeline starts serving.
func (p *Pipeline) SetConfidenceFloor(floor float64) {
	if floor > 0 {
		p.floor = floor
	}
}

type drafted struct {
	query       Query
	resolutions []statute.Resolution
	passages    []retrieve.RankedPassage
	draft       Draft
}

// Run answers one query. Stage order is fixed: resolve, retrieve,
// reason, verify-and-gate. Verification always runs last so it judges
// the citations the draft actually used, not the ones we hoped it
// would use.
func (p *Pipeline) Run(ctx context.Context, q Query) (Response, error) {
	if err := domain.ValidateQuery(q.Text); err != nil {
		return Response{}, err
	}
	if q.TopK <= 0 {
		q.TopK = 10
	}

	stage := fn.Then(
		fn.TracedStage("pipeline.resolve", p.resolveStage()),
		fn.Then(
			fn.TracedStage("pipeline.retrieve", p.retrieveStage()),
			fn.TracedStage("pipeline.reason", p.reasonStage()),
		),
	)

	d, err := stage(ctx, q).Unwrap()
	if err != nil {
		return Response{}, err
	}
	return p.gate(ctx, d), nil
}

func (p *Pipeline) resolveStage() fn.Stage[Query, drafted] {
	return func(_ context.Context, q Query) fn.Result[drafted] {
		resolutions := make([]statute.Resolution, 0, len(q.Citations))
		for _, c := range q.Citations {
			resolutions = append(resolutions, p.resolver.Resolve(c, q.AsOf))
		}
		return fn.Ok(drafted{query: q, resolutions: resolutions})
	}
}

func (p *Pipeline) retrieveStage() fn.Stage[drafted, drafted] {
	return func(ctx context.Context, d drafted) fn.Result[drafted] {
		filter := semantic.Filter{OnDate: d.query.AsOf}
		// A pinned historical date means only legacy law can answer.
		if d.query.AsOf != nil && d.query.AsOf.Before(statute.DefaultEffectiveDate) {
			filter.Era = domain.EraLegacy
		}
		passages, err := p.retriever.Retrieve(ctx, semantic.CollectionSections, d.query.Text, d.query.TopK, filter)
		if err != nil {
			return fn.Err[drafted](fmt.Errorf("pipeline: retrieve: %w", err))
		}
		d.passages = passages
		return fn.Ok(d)
	}
}

func (p *Pipeline) reasonStage() fn.Stage[drafted, drafted] {
	return func(ctx context.Context, d drafted) fn.Result[drafted] {
		draft, err := p.reasoner.Reason(ctx, d.query, d.resolutions, d.passages)
		if err != nil {
			return fn.Err[drafted](fmt.Errorf("pipeline: reason: %w", err))
		}
		d.draft = draft
		return fn.Ok(d)
	}
}

// gate verifies every draft citation, silently removes the markers of
// unverified ones, computes the aggregate confidence, and refuses when
// nothing trustworthy survives.
func (p *Pipeline) gate(ctx context.Context, d drafted) Response {
	results := p.verifier.VerifyAll(ctx, d.draft.Citations)

	text := d.draft.Text
	var survivors []domain.VerificationResult
	for i, r := range results {
		if r.Verified() {
			survivors = append(survivors, r)
			continue
		}
		// The draft embeds markers for the citation as written, which
		// may predate canonicalization.
		text = strings.ReplaceAll(text, d.draft.Citations[i].Marker(), "")
		text = strings.ReplaceAll(text, r.Citation.Marker(), "")
		p.log.Info("removed unverified citation",
			"citation", r.Citation.String(), "reason", r.Meta["reason"])
	}
	text = strings.Join(strings.Fields(text), " ")

	confidence := p.confidence(d.passages, len(survivors), len(results))

	if len(d.draft.Citations) > 0 && len(survivors) == 0 {
		return p.refuse(confidence, d, results)
	}
	if confidence < p.floor {
		return p.refuse(confidence, d, results)
	}

	p.count("released")
	return Response{
		Answer:      text,
		Confidence:  confidence,
		Citations:   survivors,
		Resolutions: d.resolutions,
		Passages:    d.passages,
	}
}

// confidence blends retrieval quality with citation survival, each
// weighted half. Retrieval quality is the top passage's score clamped
// to [0,1]; rerank scores are already calibrated probabilities.
func (p *Pipeline) confidence(passages []retrieve.RankedPassage, survived, total int) float64 {
	var retrieval float64
	if len(passages) > 0 {
		retrieval = passages[0].Score
		if retrieval > 1 {
			retrieval = 1
		}
		if retrieval < 0 {
			retrieval = 0
		}
	}
	survival := 1.0
	if total > 0 {
		survival = float64(survived) / float64(total)
	}
	return 0.5*retrieval + 0.5*survival
}

func (p *Pipeline) refuse(confidence float64, d drafted, results []domain.VerificationResult) Response {
	p.count("refused")
	p.log.Info("refusing answer",
		"confidence", confidence,
		"citations", len(results),
		"passages", len(d.passages))
	return Response{
		Answer:     RefusalText,
		Refused:    true,
		Confidence: confidence,
	}
}

func (p *Pipeline) count(outcome string) {
	if p.reg == nil {
		return
	}
	p.reg.Counter(metrics.WithLabels("pipeline_answers_total", "outcome", outcome)).Inc()
}
