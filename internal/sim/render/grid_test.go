package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"blocksworld.ai/internal/protocol"
	"blocksworld.ai/internal/sim/layout"
	"blocksworld.ai/internal/sim/world"
)

func TestGrid_SingleRoomPlain(t *testing.T) {
	lay, err := layout.Load("../../../configs/layouts/single_room.yaml")
	require.NoError(t, err)
	w, err := world.New(world.WorldConfig{ID: "W_render"}, lay)
	require.NoError(t, err)

	resp := make(chan world.JoinResponse, 1)
	w.StepOnce([]world.JoinRequest{{Name: "agent_0", Resp: resp}}, nil, nil)
	require.NotEmpty(t, (<-resp).Welcome.AgentID)

	lines := strings.Split(New(true).Grid(w.View()), "\n")
	require.Equal(t, []string{
		"tick 1 (in progress)",
		".......",
		".#####.",
		".#   #.",
		".#  S#.",
		".##+##.",
		".......",
		"...@.s.",
		".......",
	}, lines)
}

func TestCell_Precedence(t *testing.T) {
	r := New(true)
	square := world.BlockView{Shape: protocol.ShapeSquare, Colour: "red"}

	require.Equal(t, "S", r.Cell(world.CellView{Kind: world.CellDropZone, Goal: &square, GoalMet: true, Blocks: []world.BlockView{square}}))
	require.Equal(t, "s", r.Cell(world.CellView{Kind: world.CellDropZone, Goal: &square}))
	require.Equal(t, "2", r.Cell(world.CellView{Kind: world.CellFloor, Agent: "A1", Carrying: 2, Blocks: []world.BlockView{square}}))
	require.Equal(t, "@", r.Cell(world.CellView{Kind: world.CellFloor, Agent: "A1"}))
	require.Equal(t, "/", r.Cell(world.CellView{Kind: world.CellDoor, DoorOpen: true}))
	require.Equal(t, "+", r.Cell(world.CellView{Kind: world.CellDoor}))
}

func TestFrame_IncludesLegend(t *testing.T) {
	lay := layout.Generate(7, layout.GenOptions{})
	w, err := world.New(world.WorldConfig{}, lay)
	require.NoError(t, err)

	out := New(true).Frame(w.View())
	require.Contains(t, out, "tick 0")
	require.Contains(t, out, "drop zone")
}
