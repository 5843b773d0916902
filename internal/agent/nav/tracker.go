package nav

import (
	"blocksworld.ai/internal/agent/worldstate"
	"blocksworld.ai/internal/protocol"
)

// StateTracker keeps the navigation view of the latest snapshot: where the
// agent stands and which tiles can be entered.
type StateTracker struct {
	agentID string

	loc     protocol.Loc
	located bool
	width   int
	height  int
	blocked map[protocol.Loc]bool
}

func NewStateTracker(agentID string) *StateTracker {
	return &StateTracker{agentID: agentID, blocked: map[protocol.Loc]bool{}}
}

func (t *StateTracker) AgentID() string { return t.agentID }

func (t *StateTracker) Update(s *worldstate.State) {
	t.blocked = map[protocol.Loc]bool{}
	t.located = false
	t.width, t.height = s.Bounds()
	for _, o := range s.Values() {
		if o.ObjID == t.agentID {
			t.loc = o.Location
			t.located = true
			continue
		}
		if o.CarriedBy != "" || o.IsTraversable {
			continue
		}
		t.blocked[o.Location] = true
	}
}

func (t *StateTracker) Location() (protocol.Loc, bool) { return t.loc, t.located }

func (t *StateTracker) Passable(l protocol.Loc) bool {
	if l[0] < 0 || l[1] < 0 || l[0] >= t.width || l[1] >= t.height {
		return false
	}
	return !t.blocked[l]
}
