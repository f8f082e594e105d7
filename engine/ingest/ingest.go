// Package ingest processes statute sections through validation,
// chunking, embedding, and storage stages, consumed from NATS with
// retry and dead-letter support. Re-ingesting a section is idempotent:
// point IDs derive from the section identity, so amended text
// overwrites the old points.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"golang.org/x/time/rate"

	"github.com/NyayaAI/nyaya-core/engine/domain"
	"github.com/NyayaAI/nyaya-core/engine/graph"
	"github.com/NyayaAI/nyaya-core/engine/semantic"
	"github.com/NyayaAI/nyaya-core/pkg/fn"
	"github.com/NyayaAI/nyaya-core/pkg/mlclient"
)

const (
	// SectionSubject carries section rows to ingest.
	SectionSubject = "statute.sections.ingest"
	// SectionDLQSubject receives sections that exhausted their retries.
	SectionDLQSubject = "statute.sections.ingest.dlq"
	// MappingsUpdatedSubject announces transition mapping changes so
	// resolvers reload their snapshot.
	MappingsUpdatedSubject = "statute.mappings.updated"
	// MaxRetries before a message goes to the DLQ.
	MaxRetries = 3
)

// Embedder produces chunk embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (mlclient.Embedding, error)
}

// VectorWriter is the slice of the vector store ingestion needs.
type VectorWriter interface {
	Upsert(ctx context.Context, collection string, records []semantic.Record) error
	DeleteBySection(ctx context.Context, collection, actCode, sectionNumber string) error
}

// GraphWriter mirrors sections and transitions into the statute graph.
type GraphWriter interface {
	SaveProvision(ctx context.Context, p graph.Provision) error
	SaveTransition(ctx context.Context, e graph.TransitionEdge) error
}

// Deps holds the external dependencies of the ingestion pipeline.
type Deps struct {
	Embedder Embedder
	Vectors  VectorWriter
	Graph    GraphWriter
	// Limiter paces embedding calls; the ML worker saturates quickly
	// during backfills.
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

type chunkedSection struct {
	section domain.Section
	chunks  []Chunk
}

type embeddedSection struct {
	chunkedSection
	embeddings []mlclient.Embedding
}

// Validate gates malformed producer output out of the pipeline.
var Validate fn.Stage[domain.Section, domain.Section] = func(_ context.Context, s domain.Section) fn.Result[domain.Section] {
	if err := domain.ValidateSection(s); err != nil {
		return fn.Err[domain.Section](err)
	}
	return fn.Ok(s)
}

// ChunkSection splits the section into embeddable units.
var ChunkSection fn.Stage[domain.Section, chunkedSection] = func(_ context.Context, s domain.Section) fn.Result[chunkedSection] {
	chunks := chunkSection(s, DefaultChunkSize, DefaultOverlap)
	if len(chunks) == 0 {
		return fn.Errf[chunkedSection]("section %s produced no chunks", s.Key())
	}
	return fn.Ok(chunkedSection{section: s, chunks: chunks})
}

// NewEmbed creates the embedding stage. Each chunk is embedded once,
// paced by the limiter.
func NewEmbed(embedder Embedder, limiter *rate.Limiter) fn.Stage[chunkedSection, embeddedSection] {
	return func(ctx context.Context, cs chunkedSection) fn.Result[embeddedSection] {
		embeddings := make([]mlclient.Embedding, len(cs.chunks))
		for i, c := range cs.chunks {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return fn.Err[embeddedSection](err)
				}
			}
			emb, err := embedder.Embed(ctx, c.Text)
			if err != nil {
				return fn.Err[embeddedSection](fmt.Errorf("embed chunk %d of %s: %w", c.Index, cs.section.Key(), err))
			}
			embeddings[i] = emb
		}
		return fn.Ok(embeddedSection{chunkedSection: cs, embeddings: embeddings})
	}
}

// NewStore creates the storage stage: graph node first, then vector
// points, replacing any previous points for the section.
func NewStore(vectors VectorWriter, gw GraphWriter) fn.Stage[embeddedSection, string] {
	return func(ctx context.Context, es embeddedSection) fn.Result[string] {
		s := es.section

		if err := gw.SaveProvision(ctx, graph.NewProvision(s)); err != nil {
			return fn.Err[string](fmt.Errorf("graph save %s: %w", s.Key(), err))
		}

		byCollection := map[string][]semantic.Record{}
		for i, c := range es.chunks {
			collection := semantic.CollectionSections
			if c.SubSection != "" {
				collection = semantic.CollectionSubSections
			}
			byCollection[collection] = append(byCollection[collection], semantic.Record{
				ID:            PointID(s, c),
				Dense:         es.embeddings[i].Dense,
				SparseIndices: es.embeddings[i].SparseIndices,
				SparseValues:  es.embeddings[i].SparseValues,
				Payload:       chunkPayload(s, c),
			})
		}

		for _, collection := range []string{semantic.CollectionSections, semantic.CollectionSubSections} {
			records, ok := byCollection[collection]
			if !ok {
				continue
			}
			if err := vectors.DeleteBySection(ctx, collection, s.ActCode, s.SectionNumber); err != nil {
				return fn.Err[string](fmt.Errorf("clear old points %s: %w", s.Key(), err))
			}
			if err := vectors.Upsert(ctx, collection, records); err != nil {
				return fn.Err[string](fmt.Errorf("vector upsert %s: %w", s.Key(), err))
			}
		}
		return fn.Ok(s.Key())
	}
}

// PointID derives the deterministic point UUID for one chunk.
func PointID(s domain.Section, c Chunk) string {
	key := fmt.Sprintf("%s:%s:%s:%s:%d", s.ActCode, s.SectionNumber, s.Era, c.SubSection, c.Index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func chunkPayload(s domain.Section, c Chunk) map[string]any {
	p := map[string]any{
		"act_code":       s.ActCode,
		"section_number": s.SectionNumber,
		"era":            string(s.Era),
		"title":          s.Title,
		"content":        c.Text,
		"chunk_index":    c.Index,
		"is_offence":     s.IsOffence,
		"is_cognizable":  s.IsCognizable,
		"is_bailable":    s.IsBailable,
	}
	if c.SubSection != "" {
		p["sub_section"] = c.SubSection
	}
	if s.TriableBy != "" {
		p["triable_by"] = s.TriableBy
	}
	// Window bounds are always written; missing dates get the open
	// sentinels so dated range filters still match the point.
	from := semantic.WindowOpenStart
	if s.ApplicableFrom != nil {
		from = s.ApplicableFrom.Unix()
	}
	until := semantic.WindowOpenEnd
	if s.ApplicableUntil != nil {
		until = s.ApplicableUntil.Unix()
	}
	p["applicable_from"] = from
	p["applicable_until"] = until
	return p
}

// loggedTap logs entry and duration of a stage.
func loggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(_ context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline composes validate, chunk, embed, and store.
func NewPipeline(deps Deps) fn.Stage[domain.Section, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	validated := fn.Then(loggedTap[domain.Section]("validate", log), Validate)
	chunked := fn.Then(validated, fn.Then(loggedTap[domain.Section]("chunk", log), ChunkSection))
	embedded := fn.Then(chunked, fn.Then(loggedTap[chunkedSection]("embed", log), NewEmbed(deps.Embedder, deps.Limiter)))
	return fn.Then(embedded, fn.Then(loggedTap[embeddedSection]("store", log), NewStore(deps.Vectors, deps.Graph)))
}

// IngestMapping mirrors an approved transition mapping: its note is
// embedded into the transition_notes collection and the graph edge is
// written. Deleted-kind mappings only get the note, there is no
// successor node to link.
func IngestMapping(ctx context.Context, deps Deps, m domain.TransitionMapping) error {
	if m.Note != "" {
		if deps.Limiter != nil {
			if err := deps.Limiter.Wait(ctx); err != nil {
				return err
			}
		}
		emb, err := deps.Embedder.Embed(ctx, m.Note)
		if err != nil {
			return fmt.Errorf("ingest: embed transition note %s:%s: %w", m.OldAct, m.OldSection, err)
		}
		key := fmt.Sprintf("note:%s:%s:%s:%s", m.OldAct, m.OldSection, m.NewAct, m.NewSection)
		rec := semantic.Record{
			ID:            uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String(),
			Dense:         emb.Dense,
			SparseIndices: emb.SparseIndices,
			SparseValues:  emb.SparseValues,
			Payload: map[string]any{
				"act_code":         m.OldAct,
				"section_number":   m.OldSection,
				"era":              string(domain.EraLegacy),
				"content":          m.Note,
				"chunk_index":      0,
				"applicable_from":  semantic.WindowOpenStart,
				"applicable_until": semantic.WindowOpenEnd,
			},
		}
		if err := deps.Vectors.Upsert(ctx, semantic.CollectionTransitionNotes, []semantic.Record{rec}); err != nil {
			return fmt.Errorf("ingest: store transition note: %w", err)
		}
	}

	edge, err := graph.NewTransitionEdge(m)
	if err != nil {
		return nil // deleted mapping, nothing to link
	}
	return deps.Graph.SaveTransition(ctx, edge)
}

type dlqMessage struct {
	Section domain.Section `json:"section"`
	Error   string         `json:"error"`
	Retries int            `json:"retries"`
}

// StartConsumer subscribes the ingestion pipeline to the section
// subject with retry and DLQ handling.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(SectionSubject, func(msg *nats.Msg) {
		var section domain.Section
		if err := json.Unmarshal(msg.Data, &section); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		ctx := context.Background()

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		result := pipeline(ctx, section)
		if result.IsErr() {
			_, pipeErr := result.Unwrap()
			retries++
			log.Error("ingest: pipeline failed",
				"error", pipeErr,
				"section", section.Key(),
				"retry", retries)

			if retries >= MaxRetries {
				data, _ := json.Marshal(dlqMessage{Section: section, Error: pipeErr.Error(), Retries: retries})
				if err := nc.Publish(SectionDLQSubject, data); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
				return
			}
			retryMsg := nats.NewMsg(SectionSubject)
			retryMsg.Data = msg.Data
			retryMsg.Header = nats.Header{}
			retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
			if err := nc.PublishMsg(retryMsg); err != nil {
				log.Error("ingest: retry publish failed", "error", err)
			}
			return
		}

		key, _ := result.Unwrap()
		log.Info("ingest: stored", "section", key)
	})
}
