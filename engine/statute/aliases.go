// Package statute implements deterministic citation resolution across
// the 2024 code replacement. The resolver is a pure lookup over an
// in-memory snapshot: it never touches the network, and its only
// failure mode is an Unresolved status.
package statute

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/NyayaAI/nyaya-core/engine/domain"
)

// AliasTable maps act aliases ("IPC") to canonical act codes
// ("IPC_1860") and records each act's era. This table is the single
// place in the system allowed to hardcode act names; everything else
// is data-driven.
type AliasTable struct {
	codes map[string]string
	eras  map[string]domain.Era
}

// aliasEntry is the on-disk shape of one alias row.
type aliasEntry struct {
	Alias string     `json:"alias"`
	Code  string     `json:"code"`
	Era   domain.Era `json:"era"`
}

// NewAliasTable builds a table from entries. Aliases are matched
// case-insensitively after trimming.
func NewAliasTable(entries []aliasEntry) *AliasTable {
	t := &AliasTable{
		codes: make(map[string]string, len(entries)),
		eras:  make(map[string]domain.Era),
	}
	for _, e := range entries {
		t.codes[normalizeAlias(e.Alias)] = e.Code
		t.codes[normalizeAlias(e.Code)] = e.Code
		t.eras[e.Code] = e.Era
	}
	return t
}

// DefaultAliasTable covers the three legacy criminal codes and their
// 2023/2024 replacements.
func DefaultAliasTable() *AliasTable {
	return NewAliasTable([]aliasEntry{
		{Alias: "IPC", Code: "IPC_1860", Era: domain.EraLegacy},
		{Alias: "Indian Penal Code", Code: "IPC_1860", Era: domain.EraLegacy},
		{Alias: "CrPC", Code: "CRPC_1973", Era: domain.EraLegacy},
		{Alias: "Code of Criminal Procedure", Code: "CRPC_1973", Era: domain.EraLegacy},
		{Alias: "IEA", Code: "IEA_1872", Era: domain.EraLegacy},
		{Alias: "Indian Evidence Act", Code: "IEA_1872", Era: domain.EraLegacy},
		{Alias: "BNS", Code: "BNS_2023", Era: domain.EraCurrent},
		{Alias: "Bharatiya Nyaya Sanhita", Code: "BNS_2023", Era: domain.EraCurrent},
		{Alias: "BNSS", Code: "BNSS_2023", Era: domain.EraCurrent},
		{Alias: "Bharatiya Nagarik Suraksha Sanhita", Code: "BNSS_2023", Era: domain.EraCurrent},
		{Alias: "BSA", Code: "BSA_2023", Era: domain.EraCurrent},
		{Alias: "Bharatiya Sakshya Adhiniyam", Code: "BSA_2023", Era: domain.EraCurrent},
	})
}

// LoadAliasTable reads alias rows from a JSON file so new acts are a
// data change, not a code change.
func LoadAliasTable(path string) (*AliasTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []aliasEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return NewAliasTable(entries), nil
}

// Normalize resolves an alias to its canonical act code.
func (t *AliasTable) Normalize(alias string) (string, bool) {
	code, ok := t.codes[normalizeAlias(alias)]
	return code, ok
}

// EraOf returns the era of a canonical act code.
func (t *AliasTable) EraOf(code string) domain.Era {
	return t.eras[code]
}

func normalizeAlias(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
