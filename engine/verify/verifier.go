// Package verify checks that every citation in a draft answer points at
// a provision that actually exists. The vector index payload is the
// fast path; the relational store is the authoritative fallback; a miss
// on both tiers is a terminal NOT_FOUND, never an error.
package verify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/NyayaAI/nyaya-core/engine/domain"
	"github.com/NyayaAI/nyaya-core/engine/semantic"
	"github.com/NyayaAI/nyaya-core/engine/statute"
	"github.com/NyayaAI/nyaya-core/pkg/fn"
	"github.com/NyayaAI/nyaya-core/pkg/metrics"
	"github.com/NyayaAI/nyaya-core/pkg/resilience"
)

// ExistenceChecker is the index-side existence probe.
type ExistenceChecker interface {
	Exists(ctx context.Context, collection, actCode, sectionNumber string) (bool, error)
}

// SectionStore is the relational fallback tier.
type SectionStore interface {
	GetSection(ctx context.Context, actCode, sectionNumber string) (domain.Section, error)
}

// Options bound the verification fan-out.
type Options struct {
	// Workers caps concurrent citation checks within one request.
	Workers int
	// Timeout bounds each citation check end to end.
	Timeout time.Duration
}

// DefaultOptions keep a stray slow check from stalling a whole answer.
var DefaultOptions = Options{
	Workers: 8,
	Timeout: 2 * time.Second,
}

// Verifier checks citations concurrently through both tiers.
type Verifier struct {
	index   ExistenceChecker
	store   SectionStore
	aliases *statute.AliasTable
	breaker *resilience.Breaker
	opts    Options
	log     *slog.Logger
	reg     *metrics.Registry
}

// New builds a Verifier. reg may be nil to disable metrics.
func New(index ExistenceChecker, store SectionStore, aliases *statute.AliasTable, opts Options, log *slog.Logger, reg *metrics.Registry) *Verifier {
	if aliases == nil {
		aliases = statute.DefaultAliasTable()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions.Workers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions.Timeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Verifier{
		index:   index,
		store:   store,
		aliases: aliases,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		opts:    opts,
		log:     log,
		reg:     reg,
	}
}

// VerifyAll checks every citation concurrently, preserving input order.
func (v *Verifier) VerifyAll(ctx context.Context, citations []domain.Citation) []domain.VerificationResult {
	return fn.ParMap(citations, v.opts.Workers, func(c domain.Citation) domain.VerificationResult {
		return v.Verify(ctx, c)
	})
}

// Verify checks one citation: index existence probe first, relational
// lookup when the index misses or is unavailable. A relational hit is
// authoritative even when the index missed; the result is flagged
// PendingIndex so callers can surface the lag.
func (v *Verifier) Verify(ctx context.Context, c domain.Citation) domain.VerificationResult {
	ctx, cancel := context.WithTimeout(ctx, v.opts.Timeout)
	defer cancel()

	if err := domain.ValidateCitation(c); err != nil {
		return v.notFound(c, "invalid citation")
	}
	code, ok := v.aliases.Normalize(c.Act)
	if !ok {
		return v.notFound(c, "unknown act")
	}
	canonical := domain.Citation{Act: code, Section: c.Section}

	var exists bool
	err := v.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		exists, err = v.index.Exists(ctx, semantic.CollectionSections, code, c.Section)
		return err
	})
	switch {
	case err == nil && exists:
		return v.verified(canonical, domain.SourceIndex, false)
	case err != nil && !errors.Is(err, resilience.ErrCircuitOpen):
		v.log.Warn("index existence probe failed, degrading to store",
			"citation", canonical.String(), "error", err)
	}
	indexMissed := err == nil

	// Second tier. pgx maps a missing row to domain.ErrNotFound.
	_, serr := v.store.GetSection(ctx, code, c.Section)
	switch {
	case serr == nil:
		return v.verified(canonical, domain.SourceRelational, indexMissed)
	case errors.Is(serr, domain.ErrNotFound):
		return v.notFound(canonical, "no such provision")
	default:
		v.log.Error("relational lookup failed",
			"citation", canonical.String(), "error", serr)
		return v.notFound(canonical, "verification unavailable")
	}
}

func (v *Verifier) verified(c domain.Citation, src domain.VerificationSource, pending bool) domain.VerificationResult {
	v.count(domain.StatusVerified, src)
	return domain.VerificationResult{
		Citation:     c,
		Status:       domain.StatusVerified,
		Source:       src,
		PendingIndex: pending && src == domain.SourceRelational,
	}
}

func (v *Verifier) notFound(c domain.Citation, reason string) domain.VerificationResult {
	v.count(domain.StatusNotFound, "")
	return domain.VerificationResult{
		Citation: c,
		Status:   domain.StatusNotFound,
		Meta:     map[string]string{"reason": reason},
	}
}

func (v *Verifier) count(status domain.VerificationStatus, src domain.VerificationSource) {
	if v.reg == nil {
		return
	}
	v.reg.Counter(metrics.WithLabels("citation_verify_total",
		"status", string(status), "source", string(src))).Inc()
}
