package worldstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocksworld.ai/internal/protocol"
)

func sample() *State {
	objs := map[string]protocol.ObjectObs{
		"A1": {ObjID: "A1", ClassInheritance: []string{protocol.ClassAgentBody}, Location: protocol.Loc{3, 5}, IsTraversable: true},
		"door_b": {ObjID: "door_b", ClassInheritance: []string{protocol.ClassDoor}, Location: protocol.Loc{8, 4}, RoomName: "room_b", IsOpen: true, IsTraversable: true},
		"door_a": {ObjID: "door_a", ClassInheritance: []string{protocol.ClassDoor}, Location: protocol.Loc{3, 4}, RoomName: "room_a"},
		"tile_a": {ObjID: "tile_a", ClassInheritance: []string{protocol.ClassAreaTile}, Location: protocol.Loc{3, 3}, RoomName: "room_a", IsTraversable: true},
		"tile_b": {ObjID: "tile_b", ClassInheritance: []string{protocol.ClassAreaTile}, Location: protocol.Loc{8, 3}, RoomName: "room_b", IsTraversable: true},
		"drop":   {ObjID: "drop", ClassInheritance: []string{protocol.ClassAreaTile}, Location: protocol.Loc{10, 9}, RoomName: DropZoneRoom, IsDropZone: true, IsTraversable: true},
		"b1":     {ObjID: "b1", ClassInheritance: []string{protocol.ClassCollectableBlock}, Location: protocol.Loc{4, 4}, IsCollectable: true, IsTraversable: true},
		"b2":     {ObjID: "b2", ClassInheritance: []string{protocol.ClassCollectableBlock}, Location: protocol.Loc{2, 6}, IsCollectable: true, IsTraversable: true},
		"b3":     {ObjID: "b3", ClassInheritance: []string{protocol.ClassCollectableBlock}, Location: protocol.Loc{6, 6}, IsCollectable: true, IsTraversable: true},
	}
	return New("A1", 7, objs, []string{"A1", "A2"})
}

func TestState_Queries(t *testing.T) {
	s := sample()

	assert.Equal(t, []string{"room_a", "room_b"}, s.AllRoomNames())

	closed := s.ClosedDoors()
	require.Len(t, closed, 1)
	assert.Equal(t, "door_a", closed[0].ObjID)

	d, ok := s.DoorOf("room_b")
	require.True(t, ok)
	assert.Equal(t, "door_b", d.ObjID)
	_, ok = s.DoorOf("room_c")
	assert.False(t, ok)

	room := s.RoomObjects("room_a")
	require.Len(t, room, 2)
	assert.Equal(t, "door_a", room[0].ObjID)

	w, h := s.Bounds()
	assert.Equal(t, 11, w)
	assert.Equal(t, 10, h)
}

func TestState_ClosestWith(t *testing.T) {
	s := sample()
	closest := s.ClosestWith(func(o protocol.ObjectObs) bool { return o.IsCollectable })
	require.Len(t, closest, 2)
	assert.Equal(t, "b1", closest[0].ObjID)
	assert.Equal(t, "b2", closest[1].ObjID)

	none := New("ghost", 0, nil, nil).ClosestWith(func(protocol.ObjectObs) bool { return true })
	assert.Nil(t, none)
}
