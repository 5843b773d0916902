package world

import "blocksworld.ai/internal/protocol"

// GoalStatus reports, per target marker in drop zone order, whether a
// matching block lies on it.
func (w *World) GoalStatus() []bool {
	out := make([]bool, len(w.ghosts))
	for i, g := range w.ghosts {
		out[i] = w.goalMet(g)
	}
	return out
}

// Done reports whether every target marker holds a matching block.
func (w *World) Done() bool {
	for _, g := range w.ghosts {
		if !w.goalMet(g) {
			return false
		}
	}
	return true
}

func (w *World) goalMet(g *ghost) bool {
	for _, b := range w.blocks {
		if b.CarriedBy != "" || b.Loc != g.Loc || b.Shape != g.Shape {
			continue
		}
		if g.Colour != "" && b.Colour != g.Colour {
			continue
		}
		return true
	}
	return false
}

// BlockAt lists the loose blocks lying on l.
func (w *World) BlockAt(l protocol.Loc) []string {
	var out []string
	for _, id := range sortedKeys(w.blocks) {
		if b := w.blocks[id]; b.CarriedBy == "" && b.Loc == l {
			out = append(out, id)
		}
	}
	return out
}
