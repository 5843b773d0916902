package world

import "blocksworld.ai/internal/protocol"

// Cell kinds in a GridView.
const (
	CellFloor    = "floor"
	CellRoom     = "room"
	CellWall     = "wall"
	CellDoor     = "door"
	CellDropZone = "drop_zone"
)

type BlockView struct {
	ID     string
	Shape  protocol.Shape
	Colour string
}

type CellView struct {
	Kind     string
	DoorOpen bool
	// Goal is set on drop zone tiles that hold a target marker.
	Goal    *BlockView
	GoalMet bool
	Blocks  []BlockView
	// Agent is the id of the agent standing here, if any; Carrying counts
	// the blocks it holds.
	Agent    string
	Carrying int
}

// GridView is a full-information copy of the world for display. Rows are
// indexed [y][x].
type GridView struct {
	Tick   uint64
	Width  int
	Height int
	Cells  [][]CellView
	Done   bool
}

// View copies the current state. Like the Debug helpers it must not be
// called concurrently with Run.
func (w *World) View() GridView {
	v := GridView{
		Tick:   w.CurrentTick(),
		Width:  w.layout.Width,
		Height: w.layout.Height,
		Cells:  make([][]CellView, w.layout.Height),
		Done:   w.Done(),
	}
	for y := range v.Cells {
		v.Cells[y] = make([]CellView, w.layout.Width)
	}
	at := func(l protocol.Loc) *CellView {
		if l.X() < 0 || l.Y() < 0 || l.X() >= v.Width || l.Y() >= v.Height {
			return nil
		}
		return &v.Cells[l.Y()][l.X()]
	}

	for l, t := range w.tiles {
		c := at(l)
		if c == nil {
			continue
		}
		switch t.Kind {
		case tileRoom:
			c.Kind = CellRoom
		case tileWall:
			c.Kind = CellWall
		case tileDoor:
			c.Kind = CellDoor
			c.DoorOpen = w.doors[t.ID] != nil && w.doors[t.ID].Open
		case tileDropZone:
			c.Kind = CellDropZone
		default:
			c.Kind = CellFloor
		}
	}
	for _, g := range w.ghosts {
		if c := at(g.Loc); c != nil {
			c.Goal = &BlockView{ID: g.ID, Shape: g.Shape, Colour: g.Colour}
			c.GoalMet = w.goalMet(g)
		}
	}
	for _, id := range sortedKeys(w.blocks) {
		b := w.blocks[id]
		if b.CarriedBy != "" {
			continue
		}
		if c := at(b.Loc); c != nil {
			c.Blocks = append(c.Blocks, BlockView{ID: b.ID, Shape: b.Shape, Colour: b.Colour})
		}
	}
	for _, id := range w.AgentIDs() {
		a := w.agents[id]
		if c := at(a.Loc); c != nil && c.Agent == "" {
			c.Agent = a.ID
			c.Carrying = len(a.Carrying)
		}
	}
	return v
}
