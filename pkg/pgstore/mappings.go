package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NyayaAI/nyaya-core/engine/domain"
)

// MappingRepo owns the transition_mappings table. The resolver never
// reads this table directly; it consumes the snapshot ActiveMappings
// builds.
type MappingRepo struct {
	pool *pgxpool.Pool
}

// NewMappingRepo creates a MappingRepo.
func NewMappingRepo(pool *pgxpool.Pool) *MappingRepo {
	return &MappingRepo{pool: pool}
}

const mappingColumns = `id, old_act, old_section, new_act, new_section,
	transition_kind, confidence_score, semantic_score,
	approved_by, approved_at, effective_date, note, active`

// ActiveMappings loads every row usable at the given confidence floor,
// the input for one resolver snapshot.
func (r *MappingRepo) ActiveMappings(ctx context.Context, floor float64) ([]domain.TransitionMapping, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+mappingColumns+` FROM transition_mappings
		 WHERE active AND approved_by <> '' AND confidence_score >= $1
		 ORDER BY old_act, old_section, new_act, new_section`, floor)
	if err != nil {
		return nil, fmt.Errorf("pgstore: load active mappings: %w", err)
	}
	defer rows.Close()

	var out []domain.TransitionMapping
	for rows.Next() {
		var m domain.TransitionMapping
		if err := rows.Scan(
			&m.ID, &m.OldAct, &m.OldSection, &m.NewAct, &m.NewSection,
			&m.Kind, &m.Confidence, &m.SemanticScore,
			&m.ApprovedBy, &m.ApprovedAt, &m.EffectiveDate, &m.Note, &m.Active,
		); err != nil {
			return nil, fmt.Errorf("pgstore: scan mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MappingsFor lists every mapping recorded for one legacy provision,
// active or not, for review tooling. Resolution itself never calls
// this; it reads the in-memory snapshot.
func (r *MappingRepo) MappingsFor(ctx context.Context, oldAct, oldSection string) ([]domain.TransitionMapping, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+mappingColumns+` FROM transition_mappings
		 WHERE old_act = $1 AND old_section = $2
		 ORDER BY id`, oldAct, oldSection)
	if err != nil {
		return nil, fmt.Errorf("pgstore: load mappings for %s:%s: %w", oldAct, oldSection, err)
	}
	defer rows.Close()

	var out []domain.TransitionMapping
	for rows.Next() {
		var m domain.TransitionMapping
		if err := rows.Scan(
			&m.ID, &m.OldAct, &m.OldSection, &m.NewAct, &m.NewSection,
			&m.Kind, &m.Confidence, &m.SemanticScore,
			&m.ApprovedBy, &m.ApprovedAt, &m.EffectiveDate, &m.Note, &m.Active,
		); err != nil {
			return nil, fmt.Errorf("pgstore: scan mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Insert stores an extracted mapping as unapproved and inactive until
// review.
func (r *MappingRepo) Insert(ctx context.Context, m domain.TransitionMapping) (int64, error) {
	if !domain.ValidTransitionKinds[m.Kind] {
		return 0, fmt.Errorf("pgstore: %w: transition kind %q", domain.ErrInvalidCitation, m.Kind)
	}
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO transition_mappings
			(old_act, old_section, new_act, new_section, transition_kind,
			 confidence_score, semantic_score, effective_date, note, active)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,false)
		 RETURNING id`,
		m.OldAct, m.OldSection, m.NewAct, m.NewSection, m.Kind,
		m.Confidence, m.SemanticScore, m.EffectiveDate, m.Note,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("pgstore: insert mapping %s:%s: %w", m.OldAct, m.OldSection, err)
	}
	return id, nil
}

// Approve records the reviewer sign-off and activates the row.
func (r *MappingRepo) Approve(ctx context.Context, id int64, reviewer string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE transition_mappings
		 SET approved_by = $2, approved_at = now(), active = true
		 WHERE id = $1`, id, reviewer)
	if err != nil {
		return fmt.Errorf("pgstore: approve mapping %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mapping %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Deactivate soft-deletes a mapping. Rows are never hard-deleted; the
// audit trail of past resolutions depends on them.
func (r *MappingRepo) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE transition_mappings SET active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgstore: deactivate mapping %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mapping %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Get fetches one mapping by ID.
func (r *MappingRepo) Get(ctx context.Context, id int64) (domain.TransitionMapping, error) {
	var m domain.TransitionMapping
	err := r.pool.QueryRow(ctx,
		`SELECT `+mappingColumns+` FROM transition_mappings WHERE id = $1`, id,
	).Scan(
		&m.ID, &m.OldAct, &m.OldSection, &m.NewAct, &m.NewSection,
		&m.Kind, &m.Confidence, &m.SemanticScore,
		&m.ApprovedBy, &m.ApprovedAt, &m.EffectiveDate, &m.Note, &m.Active,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TransitionMapping{}, fmt.Errorf("mapping %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.TransitionMapping{}, fmt.Errorf("pgstore: get mapping %d: %w", id, err)
	}
	return m, nil
}
