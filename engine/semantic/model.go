package semantic

import (
	"time"

	"github.com/NyayaAI/nyaya-core/engine/domain"
)

// Collection names, one per semantic domain.
const (
	CollectionSections        = "statute_sections"
	CollectionSubSections     = "statute_subsections"
	CollectionPrecedents      = "precedents"
	CollectionTransitionNotes = "transition_notes"
)

// Named vector slots inside each collection.
const (
	DenseVector  = "dense"
	SparseVector = "sparse"
)

// Applicability window sentinels. Every point carries both bounds,
// because a Qdrant must-range never matches a point missing the field:
// an in-force section with no recorded dates would otherwise vanish
// from every dated query.
const (
	// WindowOpenStart stands in for an unknown enactment date.
	WindowOpenStart int64 = 0
	// WindowOpenEnd is 9999-12-31T23:59:59Z, the upper bound for
	// sections still in force.
	WindowOpenEnd int64 = 253402300799
)

// Collections lists every collection the engine owns.
var Collections = []string{
	CollectionSections,
	CollectionSubSections,
	CollectionPrecedents,
	CollectionTransitionNotes,
}

// Record is one point to store: both vector representations plus the
// flat filterable payload. Payload values must be primitives; nested
// objects cannot be payload-indexed.
type Record struct {
	ID            string
	Dense         []float32
	SparseIndices []uint32
	SparseValues  []float32
	Payload       map[string]any
}

// Hit is one search result with its decoded payload.
type Hit struct {
	ID      string  `json:"id"`
	Score   float32 `json:"score"`
	Payload Payload `json:"payload"`
}

// Payload mirrors the filterable Section attributes, flattened.
// Applicability dates are unix seconds so they index as ranges.
type Payload struct {
	ActCode         string     `json:"act_code"`
	SectionNumber   string     `json:"section_number"`
	Era             domain.Era `json:"era"`
	Title           string     `json:"title"`
	Content         string     `json:"content"`
	ChunkIndex      int        `json:"chunk_index"`
	SubSection      string     `json:"sub_section,omitempty"`
	IsOffence       bool       `json:"is_offence"`
	IsCognizable    bool       `json:"is_cognizable"`
	IsBailable      bool       `json:"is_bailable"`
	TriableBy       string     `json:"triable_by,omitempty"`
	ApplicableFrom  int64      `json:"applicable_from,omitempty"`
	ApplicableUntil int64      `json:"applicable_until,omitempty"`
}

// Filter is the structured filter applied identically to the dense and
// sparse candidate queries. All matches are exact or range, never fuzzy.
type Filter struct {
	ActCode       string
	SectionNumber string
	Era           domain.Era
	IsOffence     *bool
	IsCognizable  *bool
	// OnDate restricts to sections applicable at the given instant.
	OnDate *time.Time
}

// WithEra returns a copy of the filter pinned to one era.
func (f Filter) WithEra(era domain.Era) Filter {
	f.Era = era
	return f
}
