package graph

import (
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/NyayaAI/nyaya-core/engine/domain"
)

func TestNewProvision(t *testing.T) {
	p := NewProvision(domain.Section{
		ActCode:       "BNS_2023",
		SectionNumber: "103",
		Title:         "Punishment for murder",
		Era:           domain.EraCurrent,
		IsOffence:     true,
	})
	if p.ID != "BNS_2023:103" {
		t.Fatalf("id = %s", p.ID)
	}
	if !p.IsOffence || p.Era != domain.EraCurrent {
		t.Fatalf("provision = %+v", p)
	}
}

func TestNewTransitionEdge(t *testing.T) {
	e, err := NewTransitionEdge(domain.TransitionMapping{
		OldAct: "IPC_1860", OldSection: "302",
		NewAct: "BNS_2023", NewSection: "103",
		Kind: domain.KindEquivalent, Confidence: 0.98,
	})
	if err != nil {
		t.Fatalf("edge: %v", err)
	}
	if e.FromID != "IPC_1860:302" || e.ToID != "BNS_2023:103" {
		t.Fatalf("edge = %+v", e)
	}
}

func TestNewTransitionEdgeRejectsDeleted(t *testing.T) {
	_, err := NewTransitionEdge(domain.TransitionMapping{
		OldAct: "IPC_1860", OldSection: "309",
		Kind: domain.KindDeleted,
	})
	if !errors.Is(err, domain.ErrInvalidCitation) {
		t.Fatalf("err = %v", err)
	}
}

func TestProvisionMapRoundTrip(t *testing.T) {
	in := Provision{
		ID: "IPC_1860:420", ActCode: "IPC_1860", SectionNumber: "420",
		Title: "Cheating", Era: domain.EraLegacy, IsOffence: true,
	}
	out := provisionFromNode(dbtype.Node{Props: provisionToMap(in)})
	if out != in {
		t.Fatalf("round trip: %+v != %+v", out, in)
	}
}
