package statute

import (
	"sort"

	"github.com/NyayaAI/nyaya-core/engine/domain"
)

// DefaultConfidenceFloor is the activation floor below which a mapping
// is never used for resolution, regardless of approval.
const DefaultConfidenceFloor = 0.65

// Table is an immutable snapshot of the active transition mappings,
// keyed by (old act, old section). Snapshots are built by the store
// loader and swapped atomically into the resolver, so a resolution in
// flight always sees one consistent table.
type Table struct {
	rows  map[string][]domain.TransitionMapping
	floor float64
}

func tableKey(act, section string) string {
	return act + ":" + section
}

// NewTable filters mappings down to usable rows (approved, active,
// confidence at or above floor) and indexes them. Split cases keep
// deterministic order by new section number.
func NewTable(mappings []domain.TransitionMapping, floor float64) *Table {
	if floor <= 0 {
		floor = DefaultConfidenceFloor
	}
	t := &Table{rows: make(map[string][]domain.TransitionMapping), floor: floor}
	for _, m := range mappings {
		if !m.Usable(floor) {
			continue
		}
		k := tableKey(m.OldAct, m.OldSection)
		t.rows[k] = append(t.rows[k], m)
	}
	for k := range t.rows {
		rows := t.rows[k]
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].NewAct != rows[j].NewAct {
				return rows[i].NewAct < rows[j].NewAct
			}
			return rows[i].NewSection < rows[j].NewSection
		})
	}
	return t
}

// Lookup returns all active mappings for an old citation. Multiple rows
// mean a split; the caller must surface every row, never pick one.
func (t *Table) Lookup(actCode, section string) []domain.TransitionMapping {
	return t.rows[tableKey(actCode, section)]
}

// Len returns the number of distinct old citations with mappings.
func (t *Table) Len() int {
	return len(t.rows)
}
