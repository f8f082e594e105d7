package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/NyayaAI/nyaya-core/engine/domain"
	"github.com/NyayaAI/nyaya-core/engine/graph"
	"github.com/NyayaAI/nyaya-core/engine/semantic"
	"github.com/NyayaAI/nyaya-core/pkg/mlclient"
)

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (mlclient.Embedding, error) {
	f.calls++
	return mlclient.Embedding{
		Dense:         []float32{0.1},
		SparseIndices: []uint32{1},
		SparseValues:  []float32{0.5},
	}, nil
}

type fakeVectors struct {
	upserts map[string][]semantic.Record
	deletes []string
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{upserts: map[string][]semantic.Record{}}
}

func (f *fakeVectors) Upsert(_ context.Context, collection string, records []semantic.Record) error {
	f.upserts[collection] = append(f.upserts[collection], records...)
	return nil
}

func (f *fakeVectors) DeleteBySection(_ context.Context, collection, actCode, sectionNumber string) error {
	f.deletes = append(f.deletes, collection+"/"+actCode+":"+sectionNumber)
	return nil
}

type fakeGraph struct {
	provisions  []graph.Provision
	transitions []graph.TransitionEdge
}

func (f *fakeGraph) SaveProvision(_ context.Context, p graph.Provision) error {
	f.provisions = append(f.provisions, p)
	return nil
}

func (f *fakeGraph) SaveTransition(_ context.Context, e graph.TransitionEdge) error {
	f.transitions = append(f.transitions, e)
	return nil
}

func murderSection() domain.Section {
	return domain.Section{
		ActCode:       "BNS_2023",
		SectionNumber: "103",
		Title:         "Punishment for murder",
		LegalText:     "Whoever commits murder shall be punished with death or imprisonment for life, and shall also be liable to fine.",
		IsOffence:     true,
		IsCognizable:  true,
		Era:           domain.EraCurrent,
		SubSections: []domain.SubSection{
			{Label: "(1)", LegalText: "Whoever commits murder shall be punished with death or imprisonment for life."},
			{Label: "(2)", LegalText: "When a group of five or more persons acting in concert commits murder on certain grounds, each member shall be punished with death or with imprisonment for life."},
		},
	}
}

func TestChunkSectionNeverCrossesSubSectionBoundaries(t *testing.T) {
	chunks := chunkSection(murderSection(), DefaultChunkSize, DefaultOverlap)

	if len(chunks) < 3 {
		t.Fatalf("chunks = %d, want main text plus one per sub-section", len(chunks))
	}
	for _, c := range chunks {
		if c.SubSection == "(1)" && strings.Contains(c.Text, "group of five") {
			t.Fatalf("chunk of (1) contains (2) text: %q", c.Text)
		}
		if c.SubSection == "(2)" && strings.Contains(c.Text, "liable to fine") {
			t.Fatalf("chunk of (2) contains main text: %q", c.Text)
		}
	}
	seen := map[int]bool{}
	for _, c := range chunks {
		if seen[c.Index] {
			t.Fatalf("duplicate chunk index %d", c.Index)
		}
		seen[c.Index] = true
	}
}

func TestChunkUnitSplitsLongText(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("This sentence pads the provision with procedural detail. ")
	}
	chunks := chunkUnit(b.String(), "", 40, 5)
	if len(chunks) < 2 {
		t.Fatalf("long text should split, got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if wordCount(c.Text) == 0 {
			t.Fatal("empty chunk")
		}
	}
}

func TestPointIDDeterministic(t *testing.T) {
	s := murderSection()
	c := Chunk{Text: "x", Index: 0, SubSection: "(1)"}

	if PointID(s, c) != PointID(s, c) {
		t.Fatal("point ID must be stable across runs")
	}
	if PointID(s, c) == PointID(s, Chunk{Text: "x", Index: 1, SubSection: "(1)"}) {
		t.Fatal("different chunks must get different IDs")
	}
	other := s
	other.SectionNumber = "104"
	if PointID(s, c) == PointID(other, c) {
		t.Fatal("different sections must get different IDs")
	}
}

func TestPipelineStoresSectionAndSubSections(t *testing.T) {
	emb := &fakeEmbedder{}
	vectors := newFakeVectors()
	g := &fakeGraph{}

	pipeline := NewPipeline(Deps{Embedder: emb, Vectors: vectors, Graph: g})
	key, err := pipeline(context.Background(), murderSection()).Unwrap()
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if key != "BNS_2023:103" {
		t.Fatalf("key = %s", key)
	}

	if len(g.provisions) != 1 || g.provisions[0].ID != "BNS_2023:103" {
		t.Fatalf("provisions = %+v", g.provisions)
	}
	main := vectors.upserts[semantic.CollectionSections]
	subs := vectors.upserts[semantic.CollectionSubSections]
	if len(main) == 0 || len(subs) == 0 {
		t.Fatalf("main = %d, subs = %d", len(main), len(subs))
	}
	if emb.calls != len(main)+len(subs) {
		t.Fatalf("embed calls = %d for %d chunks", emb.calls, len(main)+len(subs))
	}
	for _, r := range subs {
		if r.Payload["sub_section"] == "" || r.Payload["sub_section"] == nil {
			t.Fatalf("sub-section record missing label: %+v", r.Payload)
		}
	}
	if len(vectors.deletes) != 2 {
		t.Fatalf("old points not cleared: %v", vectors.deletes)
	}
}

func TestChunkPayloadAlwaysCarriesApplicabilityWindow(t *testing.T) {
	// Dated queries filter with must-ranges on both bounds, and a point
	// missing either field never matches. A section with no recorded
	// dates, the normal state for in-force law, must still get both.
	s := murderSection()
	p := chunkPayload(s, Chunk{Text: "x", Index: 0})

	if p["applicable_from"] != semantic.WindowOpenStart {
		t.Fatalf("applicable_from = %v, want open sentinel", p["applicable_from"])
	}
	if p["applicable_until"] != semantic.WindowOpenEnd {
		t.Fatalf("applicable_until = %v, want open sentinel", p["applicable_until"])
	}

	from := time.Date(1862, time.January, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)
	s.ApplicableFrom = &from
	s.ApplicableUntil = &until
	p = chunkPayload(s, Chunk{Text: "x", Index: 0})

	if p["applicable_from"] != from.Unix() || p["applicable_until"] != until.Unix() {
		t.Fatalf("recorded dates not carried: from=%v until=%v", p["applicable_from"], p["applicable_until"])
	}
}

func TestPipelineReingestIsIdempotent(t *testing.T) {
	vectors := newFakeVectors()
	pipeline := NewPipeline(Deps{Embedder: &fakeEmbedder{}, Vectors: vectors, Graph: &fakeGraph{}})

	if _, err := pipeline(context.Background(), murderSection()).Unwrap(); err != nil {
		t.Fatal(err)
	}
	first := append([]semantic.Record(nil), vectors.upserts[semantic.CollectionSections]...)

	if _, err := pipeline(context.Background(), murderSection()).Unwrap(); err != nil {
		t.Fatal(err)
	}
	second := vectors.upserts[semantic.CollectionSections][len(first):]

	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("re-ingest changed point ID: %s vs %s", first[i].ID, second[i].ID)
		}
	}
}

func TestPipelineRejectsInvalidSection(t *testing.T) {
	pipeline := NewPipeline(Deps{Embedder: &fakeEmbedder{}, Vectors: newFakeVectors(), Graph: &fakeGraph{}})

	bad := murderSection()
	bad.LegalText = ""
	if res := pipeline(context.Background(), bad); res.IsOk() {
		t.Fatal("empty legal text must not ingest")
	}
}

func TestIngestMappingWritesNoteAndEdge(t *testing.T) {
	vectors := newFakeVectors()
	g := &fakeGraph{}
	deps := Deps{Embedder: &fakeEmbedder{}, Vectors: vectors, Graph: g}

	m := domain.TransitionMapping{
		OldAct: "IPC_1860", OldSection: "302",
		NewAct: "BNS_2023", NewSection: "103",
		Kind: domain.KindEquivalent, Confidence: 0.98,
		Note: "Punishment for murder, renumbered.",
	}
	if err := IngestMapping(context.Background(), deps, m); err != nil {
		t.Fatalf("ingest mapping: %v", err)
	}
	notes := vectors.upserts[semantic.CollectionTransitionNotes]
	if len(notes) != 1 {
		t.Fatal("transition note not stored")
	}
	if notes[0].Payload["applicable_from"] != semantic.WindowOpenStart ||
		notes[0].Payload["applicable_until"] != semantic.WindowOpenEnd {
		t.Fatalf("note missing window bounds: %+v", notes[0].Payload)
	}
	if len(g.transitions) != 1 || g.transitions[0].ToID != "BNS_2023:103" {
		t.Fatalf("transitions = %+v", g.transitions)
	}
}

func TestIngestMappingDeletedKindSkipsEdge(t *testing.T) {
	g := &fakeGraph{}
	deps := Deps{Embedder: &fakeEmbedder{}, Vectors: newFakeVectors(), Graph: g}

	m := domain.TransitionMapping{
		OldAct: "IPC_1860", OldSection: "309",
		Kind: domain.KindDeleted, Note: "Omitted from the new code.",
	}
	if err := IngestMapping(context.Background(), deps, m); err != nil {
		t.Fatalf("ingest mapping: %v", err)
	}
	if len(g.transitions) != 0 {
		t.Fatal("deleted mapping must not create an edge")
	}
}
