package world

import (
	"blocksworld.ai/internal/agent/worldstate"
	"blocksworld.ai/internal/protocol"
)

// Observe builds the OBS an in-process agent sees before the current tick
// and hands over its pending action results.
func (w *World) Observe(agentID string) (protocol.ObsMsg, bool) {
	a := w.agents[agentID]
	if a == nil {
		return protocol.ObsMsg{}, false
	}
	obs := w.buildObs(a, w.tick.Load())
	a.TakeEvents()
	return obs, true
}

func (w *World) buildObs(a *agent, nowTick uint64) protocol.ObsMsg {
	state := make(map[string]protocol.ObjectObs, len(w.tiles)+len(w.blocks)+len(w.agents))

	for l, t := range w.tiles {
		o := protocol.ObjectObs{ObjID: t.ID, Location: l, RoomName: t.Room}
		switch t.Kind {
		case tileFloor:
			o.ClassInheritance = []string{protocol.ClassAreaTile}
			o.IsTraversable = true
		case tileRoom:
			o.ClassInheritance = []string{protocol.ClassAreaTile}
			o.IsTraversable = true
		case tileDropZone:
			o.ClassInheritance = []string{protocol.ClassAreaTile}
			o.IsTraversable = true
			o.IsDropZone = true
		case tileWall:
			o.ClassInheritance = []string{protocol.ClassWall}
		case tileDoor:
			d := w.doors[t.ID]
			o.ClassInheritance = []string{protocol.ClassDoor}
			o.IsOpen = d.Open
			o.IsTraversable = d.Open
		}
		state[o.ObjID] = o
	}

	for _, g := range w.ghosts {
		state[g.ID] = protocol.ObjectObs{
			ObjID:            g.ID,
			ClassInheritance: []string{protocol.ClassGhostBlock},
			Location:         g.Loc,
			IsTraversable:    true,
			RoomName:         worldstate.DropZoneRoom,
			Visualization:    w.visualize(a, g.Shape, g.Colour),
		}
	}

	for _, b := range w.blocks {
		if b.CarriedBy != a.ID && a.Loc.Chebyshev(b.Loc) > w.cfg.ObsRadius {
			continue
		}
		state[b.ID] = protocol.ObjectObs{
			ObjID:            b.ID,
			ClassInheritance: []string{protocol.ClassCollectableBlock},
			Location:         b.Loc,
			IsTraversable:    true,
			IsCollectable:    true,
			RoomName:         w.roomAt(b.Loc),
			Visualization:    w.visualize(a, b.Shape, b.Colour),
			CarriedBy:        b.CarriedBy,
		}
	}

	team := w.AgentIDs()
	for _, id := range team {
		o := w.agents[id]
		state[id] = protocol.ObjectObs{
			ObjID:            id,
			Name:             o.Name,
			ClassInheritance: []string{protocol.ClassAgentBody},
			Location:         o.Loc,
			IsTraversable:    true,
			IsCarrying:       append([]string(nil), o.Carrying...),
			AgentKind:        o.Kind,
		}
	}

	events := append([]protocol.Event(nil), a.Events...)

	return protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		AgentID:         a.ID,
		State:           state,
		TeamMembers:     team,
		Messages:        append([]protocol.ChatMsg(nil), w.messages...),
		Events:          events,
	}
}

// visualize strips the colour for colour-blind observers.
func (w *World) visualize(a *agent, shape protocol.Shape, colour string) *protocol.Visualization {
	v := &protocol.Visualization{Shape: shape, Colour: colour}
	if a.Colorblind {
		v.Colour = ""
	}
	return v
}

func (w *World) roomAt(l protocol.Loc) string {
	if t := w.tiles[l]; t != nil && t.Kind != tileWall {
		return t.Room
	}
	return ""
}
