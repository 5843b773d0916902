// Package render draws a world GridView as a terminal map.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"blocksworld.ai/internal/protocol"
	"blocksworld.ai/internal/sim/world"
)

// Glyphs used on the map.
const (
	GlyphWall       = '#'
	GlyphFloor      = '.'
	GlyphRoom       = ' '
	GlyphDoorClosed = '+'
	GlyphDoorOpen   = '/'
	GlyphDropZone   = '_'
	GlyphAgent      = '@'
)

var shapeGlyph = map[protocol.Shape]rune{
	protocol.ShapeSquare:   'S',
	protocol.ShapeTriangle: 'T',
	protocol.ShapeCircle:   'C',
}

// colourCodes maps block colour names to 256-colour palette indexes.
var colourCodes = map[string]string{
	"red":    "9",
	"green":  "10",
	"yellow": "11",
	"blue":   "12",
	"purple": "13",
	"pink":   "13",
	"cyan":   "14",
	"white":  "15",
	"orange": "208",
}

type Renderer struct {
	plain bool

	wall     lipgloss.Style
	floor    lipgloss.Style
	door     lipgloss.Style
	dropZone lipgloss.Style
	goal     lipgloss.Style
	goalMet  lipgloss.Style
	agent    lipgloss.Style
	header   lipgloss.Style
}

// New returns a renderer. A plain renderer emits no escape sequences.
func New(plain bool) *Renderer {
	return &Renderer{
		plain:    plain,
		wall:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		floor:    lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		door:     lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		dropZone: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		goal:     lipgloss.NewStyle().Faint(true),
		goalMet:  lipgloss.NewStyle().Bold(true).Underline(true),
		agent:    lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true),
		header:   lipgloss.NewStyle().Bold(true),
	}
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if r.plain {
		return text
	}
	return s.Render(text)
}

func blockStyle(colour string) lipgloss.Style {
	st := lipgloss.NewStyle().Bold(true)
	if code, ok := colourCodes[strings.ToLower(colour)]; ok {
		return st.Foreground(lipgloss.Color(code))
	}
	if strings.HasPrefix(colour, "#") {
		return st.Foreground(lipgloss.Color(colour))
	}
	return st
}

// Cell renders one map cell. Agents draw over blocks, blocks over target
// markers, markers over the tile.
func (r *Renderer) Cell(c world.CellView) string {
	switch {
	case c.Agent != "":
		g := string(GlyphAgent)
		if c.Carrying > 0 && c.Carrying < 10 {
			g = fmt.Sprint(c.Carrying)
		}
		return r.style(r.agent, g)
	case len(c.Blocks) > 0:
		b := c.Blocks[0]
		g := string(shapeGlyph[b.Shape])
		if c.Goal != nil && c.GoalMet {
			return r.style(blockStyle(b.Colour).Inherit(r.goalMet), g)
		}
		return r.style(blockStyle(b.Colour), g)
	case c.Goal != nil:
		g := strings.ToLower(string(shapeGlyph[c.Goal.Shape]))
		return r.style(blockStyle(c.Goal.Colour).Inherit(r.goal), g)
	}
	switch c.Kind {
	case world.CellWall:
		return r.style(r.wall, string(GlyphWall))
	case world.CellDoor:
		if c.DoorOpen {
			return r.style(r.door, string(GlyphDoorOpen))
		}
		return r.style(r.door, string(GlyphDoorClosed))
	case world.CellDropZone:
		return r.style(r.dropZone, string(GlyphDropZone))
	case world.CellRoom:
		return string(GlyphRoom)
	default:
		return r.style(r.floor, string(GlyphFloor))
	}
}

// Grid renders the whole map, one line per row, under a tick header.
func (r *Renderer) Grid(v world.GridView) string {
	rows := make([]string, 0, v.Height+1)
	status := "in progress"
	if v.Done {
		status = "done"
	}
	rows = append(rows, r.style(r.header, fmt.Sprintf("tick %d (%s)", v.Tick, status)))
	for _, row := range v.Cells {
		var sb strings.Builder
		for _, c := range row {
			sb.WriteString(r.Cell(c))
		}
		rows = append(rows, sb.String())
	}
	return strings.Join(rows, "\n")
}

// Frame is the map with the legend below it.
func (r *Renderer) Frame(v world.GridView) string {
	return lipgloss.JoinVertical(lipgloss.Left, r.Grid(v), "", r.Legend())
}

// Legend explains the glyphs.
func (r *Renderer) Legend() string {
	items := []string{
		string(GlyphWall) + " wall",
		string(GlyphDoorClosed) + "/" + string(GlyphDoorOpen) + " door",
		string(GlyphDropZone) + " drop zone",
		"S/T/C block",
		"s/t/c target",
		string(GlyphAgent) + " agent (digit: carrying)",
	}
	return strings.Join(items, "  ")
}
