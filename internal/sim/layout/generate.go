package layout

import (
	"fmt"
	"strings"

	opensimplex "github.com/ojrac/opensimplex-go"

	"blocksworld.ai/internal/protocol"
)

type GenOptions struct {
	Rooms      int
	RoomWidth  int
	RoomHeight int
	Goals      int
	Agents     int
	// Density is the share of interior tiles (0..1) that receive a block.
	Density float64
}

func (o *GenOptions) applyDefaults() {
	if o.Rooms <= 0 {
		o.Rooms = 3
	}
	if o.RoomWidth < 3 {
		o.RoomWidth = 5
	}
	if o.RoomHeight < 3 {
		o.RoomHeight = 4
	}
	if o.Goals <= 0 {
		o.Goals = 2
	}
	if o.Agents <= 0 {
		o.Agents = 2
	}
	if o.Density <= 0 || o.Density > 1 {
		o.Density = 0.25
	}
}

var (
	genShapes  = []protocol.Shape{protocol.ShapeSquare, protocol.ShapeTriangle, protocol.ShapeCircle}
	genColours = []string{"red", "green", "blue", "yellow"}
)

func pick[T any](xs []T, v float64) T {
	i := int(v * float64(len(xs)))
	if i >= len(xs) {
		i = len(xs) - 1
	}
	return xs[i]
}

// Generate builds a row of rooms above a corridor with the drop zone on the
// right edge. Noise decides where blocks lie and what they look like; goals
// copy the first generated blocks so every layout is solvable.
func Generate(seed int64, opts GenOptions) *Layout {
	opts.applyDefaults()

	place := opensimplex.NewNormalized(seed)
	shape := opensimplex.NewNormalized(seed + 1)
	colour := opensimplex.NewNormalized(seed + 2)

	l := &Layout{
		Name:   fmt.Sprintf("generated-%d", seed),
		Width:  1 + opts.Rooms*(opts.RoomWidth+1) + 2,
		Height: 1 + opts.RoomHeight + 2 + opts.Goals + 1,
	}
	for i := 0; i < opts.Rooms; i++ {
		l.Rooms = append(l.Rooms, Room{
			Name:   fmt.Sprintf("room_%d", i),
			X:      1 + i*(opts.RoomWidth+1),
			Y:      1,
			Width:  opts.RoomWidth,
			Height: opts.RoomHeight,
		})
	}
	l.DropZone = DropZone{X: l.Width - 2, Y: opts.RoomHeight + 2, Height: opts.Goals}

	for _, r := range l.Rooms {
		for _, t := range r.Interior() {
			fx, fy := float64(t.X())*0.73, float64(t.Y())*0.73
			if place.Eval2(fx, fy) < 1-opts.Density {
				continue
			}
			l.Blocks = append(l.Blocks, Block{
				Shape:  pick(genShapes, shape.Eval2(fx, fy)),
				Colour: pick(genColours, colour.Eval2(fx, fy)),
				X:      t.X(),
				Y:      t.Y(),
			})
		}
	}

	// Top up so that each goal has a block to match.
	occupied := map[protocol.Loc]bool{}
	for _, b := range l.Blocks {
		occupied[protocol.Loc{b.X, b.Y}] = true
	}
	for i := 0; len(l.Blocks) < opts.Goals; i++ {
		r := l.Rooms[i%len(l.Rooms)]
		for _, t := range r.Interior() {
			if occupied[t] {
				continue
			}
			occupied[t] = true
			l.Blocks = append(l.Blocks, Block{Shape: genShapes[len(l.Blocks)%len(genShapes)], X: t.X(), Y: t.Y()})
			break
		}
	}
	for i := 0; i < opts.Goals; i++ {
		l.Goals = append(l.Goals, Goal{Shape: l.Blocks[i].Shape})
	}

	corridor := opts.RoomHeight + 1
	for i := 0; i < opts.Agents && 1+i < l.Width-1; i++ {
		l.Spawns = append(l.Spawns, Spawn{X: 1 + i, Y: corridor})
	}
	return l
}

// LoadOrGenerate loads path, or generates a default layout from seed when
// path is empty.
func LoadOrGenerate(path string, seed int64) (*Layout, error) {
	if strings.TrimSpace(path) == "" {
		return Generate(seed, GenOptions{}), nil
	}
	return Load(path)
}
