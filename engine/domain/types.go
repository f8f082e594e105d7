// Package domain defines the core types, constants, and validation for the
// statute resolution engine. It acts as the validation gate at pipeline
// entry points.
package domain

import (
	"fmt"
	"time"
)

// Era is the coarse temporal category of a statute: the pre-2024 codes
// ("legacy") or their 2024 replacements ("current").
type Era string

const (
	EraLegacy  Era = "legacy"
	EraCurrent Era = "current"
)

// Citation identifies one provision by act and section number. Act may be
// an alias ("IPC") or a canonical code ("IPC_1860"); section numbers are
// strings because they may be alphanumeric ("53A").
type Citation struct {
	Act     string `json:"act"`
	Section string `json:"section"`
}

// Marker returns the inline citation marker used in draft answers,
// e.g. "[BNS_2023 §103]". The gating stage removes markers for
// citations that fail verification.
func (c Citation) Marker() string {
	return fmt.Sprintf("[%s §%s]", c.Act, c.Section)
}

func (c Citation) String() string {
	return c.Act + " s." + c.Section
}

// TransitionKind classifies how a provision changed across the 2024 code
// replacement.
type TransitionKind string

const (
	KindEquivalent TransitionKind = "equivalent"
	KindModified   TransitionKind = "modified"
	KindSplitInto  TransitionKind = "split_into"
	KindMergedFrom TransitionKind = "merged_from"
	KindDeleted    TransitionKind = "deleted"
	KindNew        TransitionKind = "new"
)

// ValidTransitionKinds is the set of recognised transition kinds.
var ValidTransitionKinds = map[TransitionKind]bool{
	KindEquivalent: true, KindModified: true, KindSplitInto: true,
	KindMergedFrom: true, KindDeleted: true, KindNew: true,
}

// TransitionMapping is one deterministic fact about how a citation moved
// across the code replacement. Rows are created by an offline extraction
// process and become usable by the resolver only once a human reviewer
// approves them and the confidence score clears the activation floor.
// A one-to-many split is multiple rows sharing the same old section.
type TransitionMapping struct {
	ID             int64          `json:"id"`
	OldAct         string         `json:"old_act"`
	OldSection     string         `json:"old_section"`
	NewAct         string         `json:"new_act"`     // empty = deleted
	NewSection     string         `json:"new_section"` // empty = deleted
	Kind           TransitionKind `json:"transition_kind"`
	Confidence     float64        `json:"confidence_score"`
	SemanticScore  float64        `json:"semantic_score"` // auxiliary signal, not authoritative
	ApprovedBy     string         `json:"approved_by"`    // empty = unreviewed
	ApprovedAt     *time.Time     `json:"approved_at,omitempty"`
	EffectiveDate  time.Time      `json:"effective_date"`
	Note           string         `json:"note"` // human-readable transition explanation
	Active         bool           `json:"active"`
}

// Usable reports whether the resolver may rely on this mapping given the
// activation floor. Unapproved or demoted rows never resolve.
func (m TransitionMapping) Usable(floor float64) bool {
	return m.Active && m.ApprovedBy != "" && m.Confidence >= floor
}

// Section is the canonical unit of law held in the relational store.
// LegalText carries only operative statute text; the upstream extraction
// pipeline strips commentary and page furniture before rows reach us.
type Section struct {
	ActCode         string       `json:"act_code"`
	SectionNumber   string       `json:"section_number"`
	Title           string       `json:"title"`
	LegalText       string       `json:"legal_text"`
	IsOffence       bool         `json:"is_offence"`
	IsCognizable    bool         `json:"is_cognizable"`
	IsBailable      bool         `json:"is_bailable"`
	TriableBy       string       `json:"triable_by,omitempty"`
	ApplicableFrom  *time.Time   `json:"applicable_from,omitempty"`
	ApplicableUntil *time.Time   `json:"applicable_until,omitempty"`
	Era             Era          `json:"era"`
	Confidence      float64      `json:"extraction_confidence"`
	SubSections     []SubSection `json:"sub_sections,omitempty"`
}

// SubSection is a child unit of a Section, e.g. 103(2).
type SubSection struct {
	Label     string `json:"label"`
	LegalText string `json:"legal_text"`
}

// Key returns the unique (act code, section number) identity.
func (s Section) Key() string {
	return s.ActCode + ":" + s.SectionNumber
}

// VerificationStatus is the terminal state of a citation check.
type VerificationStatus string

const (
	StatusVerified VerificationStatus = "VERIFIED"
	StatusNotFound VerificationStatus = "NOT_FOUND"
)

// VerificationSource records which tier confirmed a citation.
type VerificationSource string

const (
	// SourceIndex means the citation was found in the vector index payload.
	SourceIndex VerificationSource = "index"
	// SourceRelational means the index missed but the relational section
	// table had the row; the section is validated but not yet indexed.
	SourceRelational VerificationSource = "relational"
)

// VerificationResult is produced per citation per request and never
// persisted beyond audit logging.
type VerificationResult struct {
	Citation Citation           `json:"citation"`
	Status   VerificationStatus `json:"status"`
	Source   VerificationSource `json:"source,omitempty"`
	// PendingIndex is set on relational-fallback hits so callers can show
	// a lower-confidence badge.
	PendingIndex bool              `json:"pending_index,omitempty"`
	Meta         map[string]string `json:"meta,omitempty"`
}

// Verified is a convenience accessor.
func (r VerificationResult) Verified() bool { return r.Status == StatusVerified }
