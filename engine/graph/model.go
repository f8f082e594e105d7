// Package graph maintains the statute knowledge graph in Neo4j:
// provision nodes linked by transition and cross-reference edges. The
// graph answers structural questions the vector index cannot, e.g.
// "which current provisions descend from IPC 376".
package graph

import (
	"fmt"

	"github.com/NyayaAI/nyaya-core/engine/domain"
)

// Provision is one section node. ID is "ACT:SECTION".
type Provision struct {
	ID            string     `json:"id"`
	ActCode       string     `json:"act_code"`
	SectionNumber string     `json:"section_number"`
	Title         string     `json:"title"`
	Era           domain.Era `json:"era"`
	IsOffence     bool       `json:"is_offence"`
}

// ProvisionID builds the graph identity for a citation.
func ProvisionID(actCode, sectionNumber string) string {
	return actCode + ":" + sectionNumber
}

// NewProvision builds a Provision node from a section row.
func NewProvision(s domain.Section) Provision {
	return Provision{
		ID:            ProvisionID(s.ActCode, s.SectionNumber),
		ActCode:       s.ActCode,
		SectionNumber: s.SectionNumber,
		Title:         s.Title,
		Era:           s.Era,
		IsOffence:     s.IsOffence,
	}
}

// TransitionEdge is one TRANSITIONED_TO relationship between a legacy
// and a current provision.
type TransitionEdge struct {
	FromID     string                `json:"from_id"`
	ToID       string                `json:"to_id"`
	Kind       domain.TransitionKind `json:"kind"`
	Confidence float64               `json:"confidence"`
}

// NewTransitionEdge builds the edge for one usable mapping. Deleted
// mappings have no target node and produce an error.
func NewTransitionEdge(m domain.TransitionMapping) (TransitionEdge, error) {
	if m.Kind == domain.KindDeleted || m.NewAct == "" {
		return TransitionEdge{}, fmt.Errorf("mapping %s:%s has no successor: %w",
			m.OldAct, m.OldSection, domain.ErrInvalidCitation)
	}
	return TransitionEdge{
		FromID:     ProvisionID(m.OldAct, m.OldSection),
		ToID:       ProvisionID(m.NewAct, m.NewSection),
		Kind:       m.Kind,
		Confidence: m.Confidence,
	}, nil
}

// ReferenceEdge is one REFERS_TO relationship: a provision citing
// another in its text.
type ReferenceEdge struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
}
