// Package layout describes a BW4T map: rooms with one door each, a drop zone
// column holding the target markers, loose blocks and agent spawn points.
package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"blocksworld.ai/internal/protocol"
)

type Layout struct {
	Name   string `yaml:"name" json:"name"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`

	Rooms    []Room   `yaml:"rooms" json:"rooms"`
	DropZone DropZone `yaml:"drop_zone" json:"drop_zone"`
	// Goals are placed on the drop zone bottom-up: Goals[0] on its last tile.
	Goals  []Goal  `yaml:"goals" json:"goals"`
	Blocks []Block `yaml:"blocks" json:"blocks"`
	Spawns []Spawn `yaml:"spawns" json:"spawns"`
}

// Room is a walled rectangle; X/Y is its top-left wall corner and Width/Height
// include the walls. The door sits in the bottom wall at X+DoorOffset.
type Room struct {
	Name       string `yaml:"name" json:"name"`
	X          int    `yaml:"x" json:"x"`
	Y          int    `yaml:"y" json:"y"`
	Width      int    `yaml:"width" json:"width"`
	Height     int    `yaml:"height" json:"height"`
	DoorOffset int    `yaml:"door_offset,omitempty" json:"door_offset,omitempty"`
	NoDoor     bool   `yaml:"no_door,omitempty" json:"no_door,omitempty"`
}

// DropZone is a vertical column of tiles starting at (X, Y).
type DropZone struct {
	X      int `yaml:"x" json:"x"`
	Y      int `yaml:"y" json:"y"`
	Height int `yaml:"height" json:"height"`
}

type Goal struct {
	Shape  protocol.Shape `yaml:"shape" json:"shape"`
	Colour string         `yaml:"colour,omitempty" json:"colour,omitempty"`
}

type Block struct {
	Shape  protocol.Shape `yaml:"shape" json:"shape"`
	Colour string         `yaml:"colour,omitempty" json:"colour,omitempty"`
	X      int            `yaml:"x" json:"x"`
	Y      int            `yaml:"y" json:"y"`
}

type Spawn struct {
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	X    int    `yaml:"x" json:"x"`
	Y    int    `yaml:"y" json:"y"`
}

// Door returns the door tile of a room.
func (r Room) Door() protocol.Loc {
	off := r.DoorOffset
	if off <= 0 {
		off = r.Width / 2
	}
	return protocol.Loc{r.X + off, r.Y + r.Height - 1}
}

// Interior lists the floor tiles inside the walls, row by row.
func (r Room) Interior() []protocol.Loc {
	var out []protocol.Loc
	for y := r.Y + 1; y < r.Y+r.Height-1; y++ {
		for x := r.X + 1; x < r.X+r.Width-1; x++ {
			out = append(out, protocol.Loc{x, y})
		}
	}
	return out
}

// Walls lists the perimeter tiles, door excluded.
func (r Room) Walls() []protocol.Loc {
	door := r.Door()
	var out []protocol.Loc
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			onEdge := x == r.X || x == r.X+r.Width-1 || y == r.Y || y == r.Y+r.Height-1
			if !onEdge {
				continue
			}
			if !r.NoDoor && (protocol.Loc{x, y}) == door {
				continue
			}
			out = append(out, protocol.Loc{x, y})
		}
	}
	return out
}

func (r Room) Contains(l protocol.Loc) bool {
	return l.X() >= r.X && l.X() < r.X+r.Width && l.Y() >= r.Y && l.Y() < r.Y+r.Height
}

// GoalTiles returns the drop zone tile of every goal, in goal order.
func (l *Layout) GoalTiles() []protocol.Loc {
	out := make([]protocol.Loc, len(l.Goals))
	for i := range l.Goals {
		out[i] = protocol.Loc{l.DropZone.X, l.DropZone.Y + l.DropZone.Height - 1 - i}
	}
	return out
}

func (l *Layout) DropZoneTiles() []protocol.Loc {
	out := make([]protocol.Loc, 0, l.DropZone.Height)
	for i := 0; i < l.DropZone.Height; i++ {
		out = append(out, protocol.Loc{l.DropZone.X, l.DropZone.Y + i})
	}
	return out
}

func (l *Layout) inBounds(p protocol.Loc) bool {
	return p.X() >= 0 && p.Y() >= 0 && p.X() < l.Width && p.Y() < l.Height
}

func (l *Layout) Validate() error {
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("layout %q: non-positive size %dx%d", l.Name, l.Width, l.Height)
	}
	names := map[string]bool{}
	for _, r := range l.Rooms {
		if r.Name == "" {
			return fmt.Errorf("layout %q: room without name", l.Name)
		}
		if names[r.Name] {
			return fmt.Errorf("layout %q: duplicate room %q", l.Name, r.Name)
		}
		names[r.Name] = true
		if r.Width < 3 || r.Height < 3 {
			return fmt.Errorf("layout %q: room %q smaller than 3x3", l.Name, r.Name)
		}
		if !l.inBounds(protocol.Loc{r.X, r.Y}) || !l.inBounds(protocol.Loc{r.X + r.Width - 1, r.Y + r.Height - 1}) {
			return fmt.Errorf("layout %q: room %q out of bounds", l.Name, r.Name)
		}
		if d := r.Door(); d.X() <= r.X || d.X() >= r.X+r.Width-1 {
			return fmt.Errorf("layout %q: room %q door in a corner", l.Name, r.Name)
		}
	}
	if len(l.Goals) > l.DropZone.Height {
		return fmt.Errorf("layout %q: %d goals on a drop zone of height %d", l.Name, len(l.Goals), l.DropZone.Height)
	}
	for _, t := range l.DropZoneTiles() {
		if !l.inBounds(t) {
			return fmt.Errorf("layout %q: drop zone out of bounds", l.Name)
		}
	}
	for i, g := range l.Goals {
		if !g.Shape.Valid() {
			return fmt.Errorf("layout %q: goal %d: unknown shape %q", l.Name, i, g.Shape)
		}
	}
	for i, b := range l.Blocks {
		if !b.Shape.Valid() {
			return fmt.Errorf("layout %q: block %d: unknown shape %q", l.Name, i, b.Shape)
		}
		if !l.inBounds(protocol.Loc{b.X, b.Y}) {
			return fmt.Errorf("layout %q: block %d out of bounds", l.Name, i)
		}
	}
	for i, s := range l.Spawns {
		if !l.inBounds(protocol.Loc{s.X, s.Y}) {
			return fmt.Errorf("layout %q: spawn %d out of bounds", l.Name, i)
		}
	}
	return nil
}

// Load reads a layout from YAML (.yaml/.yml) or JSON with comments (.json/.jsonc).
func Load(path string) (*Layout, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var l Layout
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(raw), &l); err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	default:
		if err := yaml.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	if l.Name == "" {
		l.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}
