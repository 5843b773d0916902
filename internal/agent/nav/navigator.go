// Package nav plans movement for a single agent: a waypoint queue walked with
// A* over the passable tiles of the latest snapshot.
package nav

import "blocksworld.ai/internal/protocol"

type Navigator struct {
	waypoints []protocol.Loc
	next      int
	skipped   int
}

func NewNavigator() *Navigator { return &Navigator{} }

// ResetFull drops every waypoint.
func (n *Navigator) ResetFull() {
	n.waypoints = nil
	n.next = 0
}

func (n *Navigator) AddWaypoints(locs []protocol.Loc) {
	n.waypoints = append(n.waypoints, locs...)
}

// Remaining returns the waypoints not reached yet.
func (n *Navigator) Remaining() []protocol.Loc {
	return append([]protocol.Loc(nil), n.waypoints[n.next:]...)
}

// Skipped counts waypoints abandoned because no path led to them.
func (n *Navigator) Skipped() int { return n.skipped }

// GetMoveAction returns the next move toward the current waypoint, or ""
// once every waypoint is reached or abandoned.
func (n *Navigator) GetMoveAction(t *StateTracker) string {
	at, ok := t.Location()
	if !ok {
		return ""
	}
	for n.next < len(n.waypoints) {
		wp := n.waypoints[n.next]
		if wp == at {
			n.next++
			continue
		}
		path := AStar(at, wp, t.Passable)
		if len(path) == 0 {
			n.next++
			n.skipped++
			continue
		}
		return MoveToward(at, path[0])
	}
	return ""
}
