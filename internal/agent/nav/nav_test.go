package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocksworld.ai/internal/agent/worldstate"
	"blocksworld.ai/internal/protocol"
)

// grid builds a snapshot from rows; '#' is a wall, '@' the agent, '.' floor.
func grid(rows ...string) *worldstate.State {
	objs := map[string]protocol.ObjectObs{}
	for y, row := range rows {
		for x, c := range row {
			l := protocol.Loc{x, y}
			switch c {
			case '#':
				id := "wall_" + string(rune('a'+x)) + string(rune('a'+y))
				objs[id] = protocol.ObjectObs{ObjID: id, ClassInheritance: []string{protocol.ClassWall}, Location: l}
			case '@':
				objs["A1"] = protocol.ObjectObs{ObjID: "A1", ClassInheritance: []string{protocol.ClassAgentBody}, Location: l, IsTraversable: true}
			}
			tid := "tile_" + string(rune('a'+x)) + string(rune('a'+y))
			objs[tid] = protocol.ObjectObs{ObjID: tid, ClassInheritance: []string{protocol.ClassAreaTile}, Location: l, IsTraversable: true}
		}
	}
	return worldstate.New("A1", 0, objs, nil)
}

func TestAStar_AroundWall(t *testing.T) {
	tr := NewStateTracker("A1")
	tr.Update(grid(
		".....",
		".###.",
		"..@..",
	))
	start, ok := tr.Location()
	require.True(t, ok)
	assert.Equal(t, protocol.Loc{2, 2}, start)

	path := AStar(start, protocol.Loc{2, 0}, tr.Passable)
	require.Len(t, path, 6)
	assert.Equal(t, protocol.Loc{2, 0}, path[len(path)-1])
	for i, l := range path {
		prev := start
		if i > 0 {
			prev = path[i-1]
		}
		assert.NotEmpty(t, MoveToward(prev, l), "non-adjacent step %v -> %v", prev, l)
		assert.True(t, tr.Passable(l))
	}
}

func TestAStar_Unreachable(t *testing.T) {
	tr := NewStateTracker("A1")
	tr.Update(grid(
		"..#..",
		"@.#..",
		"..#..",
	))
	assert.Nil(t, AStar(protocol.Loc{0, 1}, protocol.Loc{4, 1}, tr.Passable))
	assert.Nil(t, AStar(protocol.Loc{0, 1}, protocol.Loc{2, 1}, tr.Passable), "wall goal")
	assert.Empty(t, AStar(protocol.Loc{0, 1}, protocol.Loc{0, 1}, tr.Passable))
}

func TestNavigator_WalksWaypointsAndSkipsUnreachable(t *testing.T) {
	st := grid(
		"..#..",
		"@.#..",
		"..#..",
	)
	tr := NewStateTracker("A1")
	tr.Update(st)

	n := NewNavigator()
	n.AddWaypoints([]protocol.Loc{{0, 1}, {4, 1}, {1, 1}})
	assert.Equal(t, protocol.ActMoveEast, n.GetMoveAction(tr))
	assert.Equal(t, 1, n.Skipped())
	assert.Equal(t, []protocol.Loc{{1, 1}}, n.Remaining())

	n.ResetFull()
	assert.Empty(t, n.Remaining())
	assert.Equal(t, "", n.GetMoveAction(tr))
}

func TestMoveDeltaInverse(t *testing.T) {
	for _, a := range []string{protocol.ActMoveNorth, protocol.ActMoveEast, protocol.ActMoveSouth, protocol.ActMoveWest} {
		d, ok := Delta(a)
		require.True(t, ok)
		assert.Equal(t, a, MoveToward(protocol.Loc{5, 5}, protocol.Loc{5 + d[0], 5 + d[1]}))
	}
	_, ok := Delta(protocol.ActGrab)
	assert.False(t, ok)
}
