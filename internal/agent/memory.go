package agent

import (
	"sort"

	"blocksworld.ai/internal/protocol"
)

// DesiredObject is a target marker: a block of Shape (and Colour, when set)
// has to end up at Location.
type DesiredObject struct {
	Shape    protocol.Shape
	Colour   string
	Location protocol.Loc
}

// MemoryEntry is a matching block seen but not collected yet.
type MemoryEntry struct {
	Visualization protocol.Visualization
	Location      protocol.Loc
	DropOff       protocol.Loc
}

// DropOff pairs a held object with the tile it has to be dropped on.
type DropOff struct {
	ObjectID string
	Location protocol.Loc
}

// sortDescending orders by location, largest first.
func sortDescending[T any](xs []T, loc func(T) protocol.Loc) {
	sort.SliceStable(xs, func(i, j int) bool { return loc(xs[j]).Less(loc(xs[i])) })
}

func (c *Controller) remember(e MemoryEntry) {
	c.memory = append(c.memory, e)
	sortDescending(c.memory, func(m MemoryEntry) protocol.Loc { return m.Location })
}

func (c *Controller) inMemory(shape protocol.Shape, at protocol.Loc) bool {
	for _, m := range c.memory {
		if m.Visualization.Shape == shape && m.Location == at {
			return true
		}
	}
	return false
}

// forget removes the entries recorded at a tile, optionally only for one shape.
func (c *Controller) forget(at protocol.Loc, shape protocol.Shape) {
	kept := c.memory[:0]
	for _, m := range c.memory {
		if m.Location == at && (shape == "" || m.Visualization.Shape == shape) {
			continue
		}
		kept = append(kept, m)
	}
	c.memory = kept
}

func (c *Controller) isDesiredLocation(l protocol.Loc) bool {
	for _, d := range c.desired {
		if d.Location == l {
			return true
		}
	}
	return false
}
