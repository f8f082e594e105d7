package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/NyayaAI/nyaya-core/engine/domain"
	"github.com/NyayaAI/nyaya-core/pkg/repo"
)

// StatuteGraph provides statute graph operations on top of the generic
// Neo4j repository.
type StatuteGraph struct {
	driver     neo4j.DriverWithContext
	provisions *repo.Neo4jRepo[Provision, string]
}

// New creates a StatuteGraph.
func New(driver neo4j.DriverWithContext) *StatuteGraph {
	return &StatuteGraph{
		driver: driver,
		provisions: repo.NewNeo4jRepo[Provision, string](
			driver, "Provision", "id", provisionToMap, provisionFromRecord),
	}
}

// GetProvision returns one provision node.
func (g *StatuteGraph) GetProvision(ctx context.Context, actCode, sectionNumber string) (Provision, error) {
	return g.provisions.Get(ctx, ProvisionID(actCode, sectionNumber))
}

// SaveProvision creates or updates a provision node.
func (g *StatuteGraph) SaveProvision(ctx context.Context, p Provision) error {
	return g.provisions.Save(ctx, p)
}

// SaveTransition links a legacy provision to its successor. Both nodes
// must already exist; ingestion writes nodes before edges.
func (g *StatuteGraph) SaveTransition(ctx context.Context, e TransitionEdge) error {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (a:Provision {id: $from}), (b:Provision {id: $to})
		MERGE (a)-[r:TRANSITIONED_TO]->(b)
		SET r.kind = $kind, r.confidence = $confidence`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"from":       e.FromID,
		"to":         e.ToID,
		"kind":       string(e.Kind),
		"confidence": e.Confidence,
	})
	if err != nil {
		return fmt.Errorf("graph: save transition %s->%s: %w", e.FromID, e.ToID, err)
	}
	return nil
}

// SaveReference links a provision to one it cites in its text.
func (g *StatuteGraph) SaveReference(ctx context.Context, e ReferenceEdge) error {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (a:Provision {id: $from}), (b:Provision {id: $to})
		MERGE (a)-[:REFERS_TO]->(b)`
	_, err := sess.Run(ctx, cypher, map[string]any{"from": e.FromID, "to": e.ToID})
	if err != nil {
		return fmt.Errorf("graph: save reference %s->%s: %w", e.FromID, e.ToID, err)
	}
	return nil
}

// Successors returns the current provisions a legacy provision
// transitioned into, in section order.
func (g *StatuteGraph) Successors(ctx context.Context, actCode, sectionNumber string) ([]Provision, error) {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (:Provision {id: $id})-[:TRANSITIONED_TO]->(n:Provision)
		RETURN n ORDER BY n.id`
	res, err := sess.Run(ctx, cypher, map[string]any{"id": ProvisionID(actCode, sectionNumber)})
	if err != nil {
		return nil, fmt.Errorf("graph: successors of %s:%s: %w", actCode, sectionNumber, err)
	}
	return collectProvisions(ctx, res)
}

// Ancestors returns the legacy provisions that transitioned into a
// current provision.
func (g *StatuteGraph) Ancestors(ctx context.Context, actCode, sectionNumber string) ([]Provision, error) {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (n:Provision)-[:TRANSITIONED_TO]->(:Provision {id: $id})
		RETURN n ORDER BY n.id`
	res, err := sess.Run(ctx, cypher, map[string]any{"id": ProvisionID(actCode, sectionNumber)})
	if err != nil {
		return nil, fmt.Errorf("graph: ancestors of %s:%s: %w", actCode, sectionNumber, err)
	}
	return collectProvisions(ctx, res)
}

// Related returns provisions within the given traversal depth over any
// edge type, excluding the start node.
func (g *StatuteGraph) Related(ctx context.Context, actCode, sectionNumber string, depth int) ([]Provision, error) {
	if depth <= 0 {
		depth = 1
	}
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		`MATCH (start:Provision {id: $id})-[*1..%d]-(n:Provision)
		 WHERE n.id <> $id
		 RETURN DISTINCT n ORDER BY n.id`, depth)
	res, err := sess.Run(ctx, cypher, map[string]any{"id": ProvisionID(actCode, sectionNumber)})
	if err != nil {
		return nil, fmt.Errorf("graph: related to %s:%s: %w", actCode, sectionNumber, err)
	}
	return collectProvisions(ctx, res)
}

func provisionToMap(p Provision) map[string]any {
	return map[string]any{
		"id":             p.ID,
		"act_code":       p.ActCode,
		"section_number": p.SectionNumber,
		"title":          p.Title,
		"era":            string(p.Era),
		"is_offence":     p.IsOffence,
	}
}

func provisionFromRecord(rec *neo4j.Record) (Provision, error) {
	raw, ok := rec.Get("n")
	if !ok {
		return Provision{}, fmt.Errorf("graph: record has no node")
	}
	node, ok := raw.(dbtype.Node)
	if !ok {
		return Provision{}, fmt.Errorf("graph: unexpected record type %T", raw)
	}
	return provisionFromNode(node), nil
}

func provisionFromNode(node dbtype.Node) Provision {
	p := Provision{}
	if v, ok := node.Props["id"].(string); ok {
		p.ID = v
	}
	if v, ok := node.Props["act_code"].(string); ok {
		p.ActCode = v
	}
	if v, ok := node.Props["section_number"].(string); ok {
		p.SectionNumber = v
	}
	if v, ok := node.Props["title"].(string); ok {
		p.Title = v
	}
	if v, ok := node.Props["era"].(string); ok {
		p.Era = domain.Era(v)
	}
	if v, ok := node.Props["is_offence"].(bool); ok {
		p.IsOffence = v
	}
	return p
}

func collectProvisions(ctx context.Context, res neo4j.ResultWithContext) ([]Provision, error) {
	var out []Provision
	for res.Next(ctx) {
		p, err := provisionFromRecord(res.Record())
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, res.Err()
}
