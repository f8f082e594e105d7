package statute

import (
	"encoding/json"
	"os"
)

// Collision records a section number that exists under both a legacy
// act and its replacement with a substantively different meaning.
// Citing the number without the act is dangerous in these cases, so
// the resolver attaches the warning to every resolution that touches
// one. The list is data-driven, never inferred.
type Collision struct {
	Section    string `json:"section"`
	LegacyAct  string `json:"legacy_act"`
	CurrentAct string `json:"current_act"`
	Warning    string `json:"warning"`
}

// CollisionList supports exact lookup by (act, section) pair.
type CollisionList struct {
	bySection map[string][]Collision
}

// NewCollisionList builds a lookup over the given collisions.
func NewCollisionList(collisions []Collision) *CollisionList {
	l := &CollisionList{bySection: make(map[string][]Collision)}
	for _, c := range collisions {
		l.bySection[c.Section] = append(l.bySection[c.Section], c)
	}
	return l
}

// DefaultCollisionList carries the known IPC/BNS number collisions.
func DefaultCollisionList() *CollisionList {
	return NewCollisionList([]Collision{
		{
			Section: "302", LegacyAct: "IPC_1860", CurrentAct: "BNS_2023",
			Warning: "Section 302 is murder under IPC_1860 but snatching under BNS_2023; always cite the act.",
		},
		{
			Section: "303", LegacyAct: "IPC_1860", CurrentAct: "BNS_2023",
			Warning: "Section 303 is murder by a life convict under IPC_1860 but theft under BNS_2023; always cite the act.",
		},
		{
			Section: "304", LegacyAct: "IPC_1860", CurrentAct: "BNS_2023",
			Warning: "Section 304 is culpable homicide not amounting to murder under IPC_1860 but snatching under BNS_2023; always cite the act.",
		},
	})
}

// LoadCollisionList reads collisions from a JSON file.
func LoadCollisionList(path string) (*CollisionList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var collisions []Collision
	if err := json.Unmarshal(data, &collisions); err != nil {
		return nil, err
	}
	return NewCollisionList(collisions), nil
}

// Warning returns the collision warning for an (act, section) pair, or
// "" when the pair is not on the list.
func (l *CollisionList) Warning(actCode, section string) string {
	for _, c := range l.bySection[section] {
		if c.LegacyAct == actCode || c.CurrentAct == actCode {
			return c.Warning
		}
	}
	return ""
}
