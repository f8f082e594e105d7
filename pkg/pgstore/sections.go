package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NyayaAI/nyaya-core/engine/domain"
)

// SectionRepo owns the sections and sub_sections tables.
type SectionRepo struct {
	pool *pgxpool.Pool
}

// NewSectionRepo creates a SectionRepo.
func NewSectionRepo(pool *pgxpool.Pool) *SectionRepo {
	return &SectionRepo{pool: pool}
}

const sectionColumns = `act_code, section_number, title, legal_text,
	is_offence, is_cognizable, is_bailable, triable_by,
	applicable_from, applicable_until, era, extraction_confidence`

// GetSection fetches one section with its sub-sections. A missing row
// is domain.ErrNotFound, not an infrastructure error.
func (r *SectionRepo) GetSection(ctx context.Context, actCode, sectionNumber string) (domain.Section, error) {
	var s domain.Section
	err := r.pool.QueryRow(ctx,
		`SELECT `+sectionColumns+` FROM sections
		 WHERE act_code = $1 AND section_number = $2`,
		actCode, sectionNumber,
	).Scan(
		&s.ActCode, &s.SectionNumber, &s.Title, &s.LegalText,
		&s.IsOffence, &s.IsCognizable, &s.IsBailable, &s.TriableBy,
		&s.ApplicableFrom, &s.ApplicableUntil, &s.Era, &s.Confidence,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Section{}, fmt.Errorf("section %s:%s: %w", actCode, sectionNumber, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Section{}, fmt.Errorf("pgstore: get section %s:%s: %w", actCode, sectionNumber, err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT label, legal_text FROM sub_sections
		 WHERE act_code = $1 AND section_number = $2
		 ORDER BY position`,
		actCode, sectionNumber)
	if err != nil {
		return domain.Section{}, fmt.Errorf("pgstore: get sub-sections %s:%s: %w", actCode, sectionNumber, err)
	}
	defer rows.Close()

	for rows.Next() {
		var ss domain.SubSection
		if err := rows.Scan(&ss.Label, &ss.LegalText); err != nil {
			return domain.Section{}, fmt.Errorf("pgstore: scan sub-section: %w", err)
		}
		s.SubSections = append(s.SubSections, ss)
	}
	return s, rows.Err()
}

// ListSections streams every section of one era, for backfill runs.
func (r *SectionRepo) ListSections(ctx context.Context, era domain.Era) ([]domain.Section, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sectionColumns+` FROM sections
		 WHERE era = $1 ORDER BY act_code, section_number`, era)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list sections era=%s: %w", era, err)
	}
	defer rows.Close()

	var out []domain.Section
	for rows.Next() {
		var s domain.Section
		if err := rows.Scan(
			&s.ActCode, &s.SectionNumber, &s.Title, &s.LegalText,
			&s.IsOffence, &s.IsCognizable, &s.IsBailable, &s.TriableBy,
			&s.ApplicableFrom, &s.ApplicableUntil, &s.Era, &s.Confidence,
		); err != nil {
			return nil, fmt.Errorf("pgstore: scan section: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertSection writes a section and replaces its sub-sections in one
// transaction.
func (r *SectionRepo) UpsertSection(ctx context.Context, s domain.Section) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgstore: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO sections (`+sectionColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		 ON CONFLICT (act_code, section_number) DO UPDATE SET
			title = EXCLUDED.title,
			legal_text = EXCLUDED.legal_text,
			is_offence = EXCLUDED.is_offence,
			is_cognizable = EXCLUDED.is_cognizable,
			is_bailable = EXCLUDED.is_bailable,
			triable_by = EXCLUDED.triable_by,
			applicable_from = EXCLUDED.applicable_from,
			applicable_until = EXCLUDED.applicable_until,
			era = EXCLUDED.era,
			extraction_confidence = EXCLUDED.extraction_confidence,
			updated_at = now()`,
		s.ActCode, s.SectionNumber, s.Title, s.LegalText,
		s.IsOffence, s.IsCognizable, s.IsBailable, s.TriableBy,
		s.ApplicableFrom, s.ApplicableUntil, s.Era, s.Confidence)
	if err != nil {
		return fmt.Errorf("pgstore: upsert section %s: %w", s.Key(), err)
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM sub_sections WHERE act_code = $1 AND section_number = $2`,
		s.ActCode, s.SectionNumber)
	if err != nil {
		return fmt.Errorf("pgstore: clear sub-sections %s: %w", s.Key(), err)
	}
	for i, ss := range s.SubSections {
		_, err = tx.Exec(ctx,
			`INSERT INTO sub_sections (act_code, section_number, position, label, legal_text)
			 VALUES ($1,$2,$3,$4,$5)`,
			s.ActCode, s.SectionNumber, i, ss.Label, ss.LegalText)
		if err != nil {
			return fmt.Errorf("pgstore: insert sub-section %s(%s): %w", s.Key(), ss.Label, err)
		}
	}
	return tx.Commit(ctx)
}
