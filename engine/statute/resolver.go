package statute

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/NyayaAI/nyaya-core/engine/domain"
)

// DefaultEffectiveDate is when the replacement codes came into force.
var DefaultEffectiveDate = time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)

// ResolutionStatus is the terminal state of a resolve call.
type ResolutionStatus string

const (
	// StatusResolved means one or more active mappings applied.
	StatusResolved ResolutionStatus = "resolved"
	// StatusLegacy means the as-of date predates the replacement codes:
	// the input citation applies unchanged under the law then in force.
	StatusLegacy ResolutionStatus = "legacy"
	// StatusUnresolved means no deterministic mapping exists. This is a
	// valid outcome, not an error; the caller falls back to the input
	// citation with its era tag.
	StatusUnresolved ResolutionStatus = "unresolved"
)

// ResolvedCitation is one normalized output citation.
type ResolvedCitation struct {
	Citation         domain.Citation       `json:"citation"`
	Kind             domain.TransitionKind `json:"transition_kind,omitempty"`
	Era              domain.Era            `json:"era"`
	Note             string                `json:"note,omitempty"`
	CollisionWarning string                `json:"collision_warning,omitempty"`
}

// Resolution is the full result of a resolve call. A split produces
// multiple citations; callers must not silently pick one.
type Resolution struct {
	Status    ResolutionStatus   `json:"status"`
	Input     domain.Citation    `json:"input"`
	Citations []ResolvedCitation `json:"citations"`
	Note      string             `json:"note"`
}

// Resolver maps citations across the code replacement using pure
// in-memory lookups. It performs no network or embedding calls.
type Resolver struct {
	aliases    *AliasTable
	collisions *CollisionList
	table      atomic.Pointer[Table]
	effective  time.Time
}

// NewResolver creates a Resolver over the given snapshot. effective is
// the replacement codes' in-force date; zero means the default.
func NewResolver(aliases *AliasTable, collisions *CollisionList, table *Table, effective time.Time) *Resolver {
	if aliases == nil {
		aliases = DefaultAliasTable()
	}
	if collisions == nil {
		collisions = DefaultCollisionList()
	}
	if table == nil {
		table = NewTable(nil, 0)
	}
	if effective.IsZero() {
		effective = DefaultEffectiveDate
	}
	r := &Resolver{aliases: aliases, collisions: collisions, effective: effective}
	r.table.Store(table)
	return r
}

// SetTable swaps in a new mapping snapshot. Safe for concurrent use
// with Resolve.
func (r *Resolver) SetTable(t *Table) {
	if t != nil {
		r.table.Store(t)
	}
}

// Aliases exposes the alias table so the verifier normalizes acts the
// same way the resolver does.
func (r *Resolver) Aliases() *AliasTable {
	return r.aliases
}

// Resolve maps a raw citation to its applicable normalized citation(s).
//
// When asOf predates the replacement codes' effective date the input is
// returned as-is tagged legacy, regardless of mapping existence: a
// historical case is always tried under the law in force at the time.
func (r *Resolver) Resolve(c domain.Citation, asOf *time.Time) Resolution {
	section := strings.TrimSpace(c.Section)

	actCode, ok := r.aliases.Normalize(c.Act)
	if !ok {
		return Resolution{
			Status: StatusUnresolved,
			Input:  c,
			Note:   fmt.Sprintf("unknown act alias %q", c.Act),
		}
	}
	input := domain.Citation{Act: actCode, Section: section}
	warning := r.collisions.Warning(actCode, section)

	if asOf != nil && asOf.Before(r.effective) {
		return Resolution{
			Status: StatusLegacy,
			Input:  input,
			Citations: []ResolvedCitation{{
				Citation:         input,
				Era:              domain.EraLegacy,
				Note:             fmt.Sprintf("law in force on %s applies; no remapping", asOf.Format("2006-01-02")),
				CollisionWarning: warning,
			}},
			Note: fmt.Sprintf("%s applies as it stood on %s", input, asOf.Format("2006-01-02")),
		}
	}

	rows := r.table.Load().Lookup(actCode, section)
	if len(rows) == 0 {
		era := r.aliases.EraOf(actCode)
		note := fmt.Sprintf("no active transition mapping for %s", input)
		if era == domain.EraCurrent {
			note = fmt.Sprintf("%s is already a current-code citation", input)
		}
		return Resolution{Status: StatusUnresolved, Input: input, Note: note}
	}

	out := make([]ResolvedCitation, 0, len(rows))
	for _, m := range rows {
		rc := ResolvedCitation{
			Kind: m.Kind,
			Era:  domain.EraCurrent,
			Note: m.Note,
		}
		if m.Kind == domain.KindDeleted || m.NewAct == "" {
			rc.Era = domain.EraLegacy
			rc.Citation = input
			if rc.Note == "" {
				rc.Note = fmt.Sprintf("%s was repealed without a successor provision", input)
			}
		} else {
			rc.Citation = domain.Citation{Act: m.NewAct, Section: m.NewSection}
			if rc.Note == "" {
				rc.Note = fmt.Sprintf("%s became %s (%s)", input, rc.Citation, m.Kind)
			}
			rc.CollisionWarning = r.collisions.Warning(m.NewAct, m.NewSection)
		}
		if warning != "" && rc.CollisionWarning == "" {
			rc.CollisionWarning = warning
		}
		out = append(out, rc)
	}

	note := out[0].Note
	if len(out) > 1 {
		targets := make([]string, len(out))
		for i, rc := range out {
			targets[i] = rc.Citation.String()
		}
		note = fmt.Sprintf("%s split into %s", input, strings.Join(targets, ", "))
	}

	return Resolution{
		Status:    StatusResolved,
		Input:     input,
		Citations: out,
		Note:      note,
	}
}
