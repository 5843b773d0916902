// Package worldstate wraps the per-tick object map an agent receives and
// answers the queries the decision loop needs.
package worldstate

import (
	"sort"

	"blocksworld.ai/internal/protocol"
)

// DropZoneRoom is the room name carried by drop zone tiles.
const DropZoneRoom = "drop_zone"

// State is a read-only snapshot. Iteration order is by object id so that
// every query is deterministic.
type State struct {
	agentID string
	tick    uint64
	team    []string

	objs map[string]protocol.ObjectObs
	ids  []string
}

func New(agentID string, tick uint64, objs map[string]protocol.ObjectObs, team []string) *State {
	ids := make([]string, 0, len(objs))
	for id := range objs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if objs == nil {
		objs = map[string]protocol.ObjectObs{}
	}
	return &State{
		agentID: agentID,
		tick:    tick,
		team:    append([]string(nil), team...),
		objs:    objs,
		ids:     ids,
	}
}

func FromObs(obs protocol.ObsMsg) *State {
	return New(obs.AgentID, obs.Tick, obs.State, obs.TeamMembers)
}

func (s *State) AgentID() string       { return s.agentID }
func (s *State) Tick() uint64          { return s.tick }
func (s *State) TeamMembers() []string { return s.team }
func (s *State) Len() int              { return len(s.ids) }

func (s *State) Get(id string) (protocol.ObjectObs, bool) {
	o, ok := s.objs[id]
	return o, ok
}

// Self returns the agent's own body.
func (s *State) Self() (protocol.ObjectObs, bool) {
	return s.Get(s.agentID)
}

// Values returns every object ordered by id.
func (s *State) Values() []protocol.ObjectObs {
	out := make([]protocol.ObjectObs, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.objs[id])
	}
	return out
}

// Filter returns the objects matching pred, ordered by id.
func (s *State) Filter(pred func(protocol.ObjectObs) bool) []protocol.ObjectObs {
	var out []protocol.ObjectObs
	for _, id := range s.ids {
		if o := s.objs[id]; pred(o) {
			out = append(out, o)
		}
	}
	return out
}

func (s *State) WithClass(class string) []protocol.ObjectObs {
	return s.Filter(func(o protocol.ObjectObs) bool { return o.HasClass(class) })
}

// AllRoomNames lists the named rooms (drop zone excluded), sorted.
func (s *State) AllRoomNames() []string {
	seen := map[string]bool{}
	for _, id := range s.ids {
		o := s.objs[id]
		if o.RoomName == "" || o.RoomName == DropZoneRoom || o.IsDropZone {
			continue
		}
		if !o.HasClass(protocol.ClassAreaTile) && !o.HasClass(protocol.ClassDoor) {
			continue
		}
		seen[o.RoomName] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *State) RoomObjects(room string) []protocol.ObjectObs {
	return s.Filter(func(o protocol.ObjectObs) bool { return o.RoomName == room })
}

func (s *State) ClosedDoors() []protocol.ObjectObs {
	return s.Filter(func(o protocol.ObjectObs) bool {
		return o.HasClass(protocol.ClassDoor) && !o.IsOpen
	})
}

// DoorOf returns the first door (by id) belonging to room.
func (s *State) DoorOf(room string) (protocol.ObjectObs, bool) {
	for _, id := range s.ids {
		o := s.objs[id]
		if o.RoomName == room && o.HasClass(protocol.ClassDoor) {
			return o, true
		}
	}
	return protocol.ObjectObs{}, false
}

// ClosestWith returns every object matching pred at the minimum Chebyshev
// distance from the agent. It returns nil when the agent body is missing.
func (s *State) ClosestWith(pred func(protocol.ObjectObs) bool) []protocol.ObjectObs {
	self, ok := s.Self()
	if !ok {
		return nil
	}
	best := -1
	var out []protocol.ObjectObs
	for _, id := range s.ids {
		if id == s.agentID {
			continue
		}
		o := s.objs[id]
		if !pred(o) {
			continue
		}
		d := self.Location.Chebyshev(o.Location)
		switch {
		case best < 0 || d < best:
			best = d
			out = append(out[:0], o)
		case d == best:
			out = append(out, o)
		}
	}
	return out
}

// Bounds returns the grid size implied by the furthest object.
func (s *State) Bounds() (width, height int) {
	for _, id := range s.ids {
		l := s.objs[id].Location
		if l.X()+1 > width {
			width = l.X() + 1
		}
		if l.Y()+1 > height {
			height = l.Y() + 1
		}
	}
	return width, height
}
