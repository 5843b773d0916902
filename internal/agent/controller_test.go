package agent

import (
	"bytes"
	"fmt"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocksworld.ai/internal/agent/worldstate"
	"blocksworld.ai/internal/protocol"
)

type objs map[string]protocol.ObjectObs

func body(id string, x, y int) protocol.ObjectObs {
	return protocol.ObjectObs{ObjID: id, ClassInheritance: []string{protocol.ClassAgentBody}, Location: protocol.Loc{x, y}, IsTraversable: true}
}

func block(id string, shape protocol.Shape, x, y int) protocol.ObjectObs {
	return protocol.ObjectObs{
		ObjID:            id,
		ClassInheritance: []string{protocol.ClassCollectableBlock},
		Location:         protocol.Loc{x, y},
		IsTraversable:    true,
		IsCollectable:    true,
		Visualization:    &protocol.Visualization{Shape: shape},
	}
}

func ghost(id string, shape protocol.Shape, x, y int) protocol.ObjectObs {
	return protocol.ObjectObs{
		ObjID:            id,
		ClassInheritance: []string{protocol.ClassGhostBlock},
		Location:         protocol.Loc{x, y},
		IsTraversable:    true,
		Visualization:    &protocol.Visualization{Shape: shape},
	}
}

func door(id, room string, x, y int, open bool) protocol.ObjectObs {
	return protocol.ObjectObs{ObjID: id, ClassInheritance: []string{protocol.ClassDoor}, Location: protocol.Loc{x, y}, RoomName: room, IsOpen: open, IsTraversable: open}
}

func tile(id, room string, x, y int) protocol.ObjectObs {
	return protocol.ObjectObs{ObjID: id, ClassInheritance: []string{protocol.ClassAreaTile}, Location: protocol.Loc{x, y}, RoomName: room, IsTraversable: true}
}

func snapshot(o objs, team ...string) *worldstate.State {
	return worldstate.New("A1", 0, o, append([]string{"A1"}, team...))
}

type recorder struct{ edges [][2]Phase }

func (r *recorder) hook(from, to Phase) { r.edges = append(r.edges, [2]Phase{from, to}) }

func newTestController(t *testing.T, settings Settings, opts ...Option) (*Controller, *Outbox) {
	t.Helper()
	out := &Outbox{}
	var buf bytes.Buffer
	opts = append([]Option{WithMessenger(out), WithLogger(log.New(&buf, "", 0))}, opts...)
	return New("A1", settings, opts...), out
}

func TestDecide_NoDoorsNoRoomsIdles(t *testing.T) {
	c, out := newTestController(t, DefaultSettings())
	s := snapshot(objs{"A1": body("A1", 1, 1)})
	for i := 0; i < 3; i++ {
		a, err := c.Decide(s, nil)
		require.NoError(t, err)
		assert.True(t, a.IsNull())
		assert.Equal(t, PlanPathToClosedDoor, c.Phase())
	}
	assert.Empty(t, out.Drain())
}

func TestDecide_PlansToClosedDoor(t *testing.T) {
	rec := &recorder{}
	c, out := newTestController(t, DefaultSettings(), WithTransitionHook(rec.hook))
	s := snapshot(objs{
		"A1":     body("A1", 3, 6),
		"door_a": door("door_a", "room_a", 3, 4, false),
		"tile_a": tile("tile_a", "room_a", 3, 3),
	})

	a, err := c.Decide(s, nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.ActMoveNorth, a.Name)
	assert.Equal(t, FollowPathToClosedDoor, c.Phase())
	assert.Equal(t, []string{"Moving to door of room_a"}, out.Drain())
	assert.Equal(t, [][2]Phase{{PlanPathToClosedDoor, FollowPathToClosedDoor}}, rec.edges)
}

func TestDecide_RoomWithoutDoorIdlesThenMovesOn(t *testing.T) {
	c, out := newTestController(t, DefaultSettings())
	s := snapshot(objs{
		"A1":     body("A1", 3, 6),
		"tile_a": tile("tile_a", "room_a", 3, 3),
		"tile_b": tile("tile_b", "room_b", 6, 3),
		"door_b": door("door_b", "room_b", 6, 4, true),
	})

	a, err := c.Decide(s, nil)
	require.NoError(t, err)
	assert.True(t, a.IsNull(), "room_a has no door")
	assert.Equal(t, PlanPathToClosedDoor, c.Phase())

	a, err = c.Decide(s, nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.ActMoveNorth, a.Name)
	assert.Equal(t, FollowPathToClosedDoor, c.Phase())
	assert.Equal(t, []string{"Moving to door of room_b"}, out.Drain())
}

func TestTrust_FoundWithoutColourPenalizedOnce(t *testing.T) {
	c, _ := newTestController(t, DefaultSettings())
	s := snapshot(objs{"A1": body("A1", 1, 1)}, "A2", "A3")
	inbox := []protocol.ChatMsg{
		{ID: "M1", Tick: 1, From: "A2", Content: "Found square"},
		{ID: "M2", Tick: 1, From: "A3", Content: "Found circle colour red"},
		{ID: "M3", Tick: 1, From: "A1", Content: "Found triangle"},
		{ID: "M4", Tick: 1, From: "A3", Content: "Moving to door of room_0"},
	}

	for i := 0; i < 4; i++ {
		_, err := c.Decide(s, inbox)
		require.NoError(t, err)
	}
	trust := c.Trust()
	assert.InDelta(t, 0.4, trust["A2"], 1e-9)
	assert.InDelta(t, 0.5, trust["A3"], 1e-9)
	_, self := trust["A1"]
	assert.False(t, self)

	inbox = append(inbox, protocol.ChatMsg{ID: "M5", Tick: 2, From: "A2", Content: "Found square"})
	_, err := c.Decide(s, inbox)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, c.Trust()["A2"], 1e-9)

	reports := c.Reports()
	require.Len(t, reports, 3)
	assert.Equal(t, TeammateReport{From: "A2", Tick: 1, Shape: protocol.ShapeSquare}, reports[0])
	assert.Equal(t, TeammateReport{From: "A3", Tick: 1, Shape: protocol.ShapeCircle, Colour: "red"}, reports[1])
}

func TestTrust_EveryFoundWithoutColourCosts(t *testing.T) {
	c, _ := newTestController(t, DefaultSettings())
	s := snapshot(objs{"A1": body("A1", 1, 1)}, "A2")

	var inbox []protocol.ChatMsg
	prev := c.settings.TrustDefault
	for i := 1; i <= 7; i++ {
		inbox = append(inbox, protocol.ChatMsg{ID: fmt.Sprintf("M%d", i), Tick: uint64(i), From: "A2", Content: "Found square"})
		_, err := c.Decide(s, inbox)
		require.NoError(t, err)
		got := c.Trust()["A2"]
		assert.InDelta(t, 0.1, prev-got, 1e-9, "message %d", i)
		prev = got
	}
	assert.InDelta(t, -0.2, c.Trust()["A2"], 1e-9)
}

func TestFollowPathToDropOff_DequeuesOnArrival(t *testing.T) {
	rec := &recorder{}
	c, _ := newTestController(t, Settings{Kind: KindStrong}, WithTransitionHook(rec.hook))
	c.phase = FollowPathToDropOffLocation
	c.held = 2
	c.dropOffs = []DropOff{
		{ObjectID: "b1", Location: protocol.Loc{5, 6}},
		{ObjectID: "b2", Location: protocol.Loc{5, 5}},
	}
	self := body("A1", 5, 6)
	self.IsCarrying = []string{"b1", "b2"}
	s := snapshot(objs{"A1": self})

	a, err := c.Decide(s, nil)
	require.NoError(t, err)
	assert.Equal(t, Action{Name: protocol.ActDrop, Params: protocol.ActionParams{ObjectID: "b1"}}, a)
	assert.Equal(t, []DropOff{{ObjectID: "b2", Location: protocol.Loc{5, 5}}}, c.DropOffs())
	assert.Equal(t, 1, c.Held())
	assert.Equal(t, FollowPathToDropOffLocation, c.Phase())
	assert.Equal(t, [][2]Phase{
		{FollowPathToDropOffLocation, DropObject},
		{DropObject, FollowPathToDropOffLocation},
	}, rec.edges)
}

func TestFollowPathToDropOff_ResumesFromMemory(t *testing.T) {
	c, _ := newTestController(t, DefaultSettings())
	c.phase = FollowPathToDropOffLocation
	c.remember(MemoryEntry{Visualization: protocol.Visualization{Shape: protocol.ShapeSquare}, Location: protocol.Loc{1, 3}, DropOff: protocol.Loc{9, 9}})
	s := snapshot(objs{
		"A1": body("A1", 1, 1),
		"t":  tile("t", "room_a", 1, 3),
	})

	a, err := c.Decide(s, nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.ActMoveSouth, a.Name)
	assert.Equal(t, TraverseRoom, c.Phase())
}

func TestDropObject_WithoutObjectIsFatal(t *testing.T) {
	c, _ := newTestController(t, DefaultSettings())
	c.phase = DropObject
	_, err := c.Decide(snapshot(objs{"A1": body("A1", 1, 1)}), nil)
	require.ErrorIs(t, err, ErrNoObjectToDrop)
}

func TestMemory_StaysSortedDescending(t *testing.T) {
	c, _ := newTestController(t, DefaultSettings())
	for _, l := range []protocol.Loc{{3, 1}, {7, 2}, {3, 5}, {0, 9}, {7, 0}} {
		c.remember(MemoryEntry{Visualization: protocol.Visualization{Shape: protocol.ShapeCircle}, Location: l})
		mem := c.Memory()
		for i := 1; i < len(mem); i++ {
			assert.False(t, mem[i-1].Location.Less(mem[i].Location), "memory out of order: %v", mem)
		}
	}
	assert.Equal(t, protocol.Loc{7, 2}, c.Memory()[0].Location)
	assert.Equal(t, protocol.Loc{0, 9}, c.Memory()[4].Location)
}

func TestInitialize_RunsOnce(t *testing.T) {
	c, _ := newTestController(t, DefaultSettings())
	first := snapshot(objs{
		"A1": body("A1", 1, 1),
		"g1": ghost("g1", protocol.ShapeSquare, 5, 6),
		"g2": ghost("g2", protocol.ShapeCircle, 5, 7),
	})
	second := snapshot(objs{
		"A1": body("A1", 1, 1),
		"g3": ghost("g3", protocol.ShapeTriangle, 2, 2),
	})

	for i := 0; i < 5; i++ {
		_, err := c.Decide(first, nil)
		require.NoError(t, err)
		_, err = c.Decide(second, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, c.inits)
	assert.Equal(t, []DesiredObject{
		{Shape: protocol.ShapeCircle, Location: protocol.Loc{5, 7}},
		{Shape: protocol.ShapeSquare, Location: protocol.Loc{5, 6}},
	}, c.Desired())
}

func TestTraverse_RecordsAndAnnouncesMatches(t *testing.T) {
	c, out := newTestController(t, DefaultSettings())
	c.phase = TraverseRoom
	c.held = 1 // full: scan only
	c.nav.AddWaypoints([]protocol.Loc{{2, 3}})
	s := snapshot(objs{
		"A1": body("A1", 2, 2),
		"b1": block("b1", protocol.ShapeSquare, 3, 2),
		"b2": block("b2", protocol.ShapeTriangle, 1, 2),
		"g1": ghost("g1", protocol.ShapeSquare, 9, 9),
	})

	a, err := c.Decide(s, nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.ActMoveSouth, a.Name)
	assert.Equal(t, []MemoryEntry{{
		Visualization: protocol.Visualization{Shape: protocol.ShapeSquare},
		Location:      protocol.Loc{3, 2},
		DropOff:       protocol.Loc{9, 9},
	}}, c.Memory())
	assert.Equal(t, []string{"Found square"}, out.Drain())

	_, err = c.Decide(s, nil)
	require.NoError(t, err)
	assert.Len(t, c.Memory(), 1)
	assert.Empty(t, out.Drain(), "already recorded")
}

func TestTraverse_GrabsMatchWithinRange(t *testing.T) {
	rec := &recorder{}
	c, _ := newTestController(t, DefaultSettings(), WithTransitionHook(rec.hook))
	c.phase = TraverseRoom
	c.nav.AddWaypoints([]protocol.Loc{{2, 3}})
	s := snapshot(objs{
		"A1": body("A1", 2, 2),
		"b1": block("b1", protocol.ShapeSquare, 3, 3),
		"b0": block("b0", protocol.ShapeSquare, 9, 9), // already delivered
		"g1": ghost("g1", protocol.ShapeSquare, 9, 9),
	})

	a, err := c.Decide(s, nil)
	require.NoError(t, err)
	assert.Equal(t, Action{Name: protocol.ActGrab, Params: protocol.ActionParams{ObjectID: "b1"}}, a)
	assert.Equal(t, 1, c.Held())
	assert.Equal(t, []DropOff{{ObjectID: "b1", Location: protocol.Loc{9, 9}}}, c.DropOffs())
	assert.Equal(t, DeliverItem, c.Phase())
	assert.Equal(t, [][2]Phase{{TraverseRoom, DeliverItem}}, rec.edges)
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, CanTransition(PlanPathToClosedDoor, FollowPathToClosedDoor))
	assert.True(t, CanTransition(FollowPathToDropOffLocation, DropObject))
	assert.True(t, CanTransition(DropObject, FollowPathToDropOffLocation))
	assert.False(t, CanTransition(PlanPathToClosedDoor, DropObject))
	assert.False(t, CanTransition(TraverseRoom, DropObject))
	assert.False(t, CanTransition(OpenDoor, TraverseRoom))
	assert.Equal(t, "TRAVERSE_ROOM", TraverseRoom.String())
	assert.Equal(t, "UNKNOWN", Phase(0).String())
}

func TestTraverse_RejectedGrabIsReleased(t *testing.T) {
	rec := &recorder{}
	c, _ := newTestController(t, DefaultSettings(), WithTransitionHook(rec.hook))
	c.phase = TraverseRoom
	c.nav.AddWaypoints([]protocol.Loc{{2, 3}})
	before := snapshot(objs{
		"A1": body("A1", 2, 2),
		"b1": block("b1", protocol.ShapeSquare, 3, 3),
		"g1": ghost("g1", protocol.ShapeSquare, 9, 9),
	}, "A2")

	a, err := c.Decide(before, nil)
	require.NoError(t, err)
	require.Equal(t, Action{Name: protocol.ActGrab, Params: protocol.ActionParams{ObjectID: "b1"}}, a)
	require.Equal(t, DeliverItem, c.Phase())

	// A teammate got b1 first; another square lies next to us.
	other := body("A2", 3, 3)
	other.IsCarrying = []string{"b1"}
	taken := block("b1", protocol.ShapeSquare, 3, 3)
	taken.CarriedBy = "A2"
	after := snapshot(objs{
		"A1": body("A1", 2, 2),
		"A2": other,
		"b1": taken,
		"b2": block("b2", protocol.ShapeSquare, 1, 2),
		"g1": ghost("g1", protocol.ShapeSquare, 9, 9),
	}, "A2")

	a, err = c.Decide(after, nil)
	require.NoError(t, err)
	assert.Equal(t, Action{Name: protocol.ActGrab, Params: protocol.ActionParams{ObjectID: "b2"}}, a)
	assert.Equal(t, 1, c.Held())
	assert.Equal(t, []DropOff{{ObjectID: "b2", Location: protocol.Loc{9, 9}}}, c.DropOffs())
	assert.Equal(t, map[protocol.Loc]bool{{9, 9}: true}, c.claimed)
	assert.False(t, c.grabbed["b1"])
	assert.Equal(t, DeliverItem, c.Phase())
	assert.Equal(t, [][2]Phase{
		{TraverseRoom, DeliverItem},
		{DeliverItem, TraverseRoom},
		{TraverseRoom, DeliverItem},
	}, rec.edges)
}

func TestTraverse_ConfirmedGrabIsKept(t *testing.T) {
	c, _ := newTestController(t, Settings{Kind: KindStrong})
	c.phase = TraverseRoom
	c.nav.AddWaypoints([]protocol.Loc{{2, 3}, {2, 4}})
	s := snapshot(objs{
		"A1": body("A1", 2, 2),
		"b1": block("b1", protocol.ShapeSquare, 3, 3),
		"g1": ghost("g1", protocol.ShapeSquare, 9, 9),
		"g2": ghost("g2", protocol.ShapeCircle, 9, 8),
	})
	a, err := c.Decide(s, nil)
	require.NoError(t, err)
	require.Equal(t, protocol.ActGrab, a.Name)
	require.Equal(t, TraverseRoom, c.Phase(), "capacity 2 keeps traversing")

	self := body("A1", 2, 2)
	self.IsCarrying = []string{"b1"}
	held := block("b1", protocol.ShapeSquare, 2, 2)
	held.CarriedBy = "A1"
	a, err = c.Decide(snapshot(objs{
		"A1": self,
		"b1": held,
		"g1": ghost("g1", protocol.ShapeSquare, 9, 9),
		"g2": ghost("g2", protocol.ShapeCircle, 9, 8),
	}), nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.ActMoveSouth, a.Name)
	assert.Equal(t, 1, c.Held())
	assert.Equal(t, []DropOff{{ObjectID: "b1", Location: protocol.Loc{9, 9}}}, c.DropOffs())
	assert.True(t, c.claimed[protocol.Loc{9, 9}])
}

func TestEnterRoom_RouteSkipsDropZoneAndSorts(t *testing.T) {
	tests := []struct {
		name  string
		tiles objs
		want  []protocol.Loc
	}{
		{
			name: "sorted by x then y",
			tiles: objs{
				"t1": tile("t1", "room_a", 3, 2),
				"t2": tile("t2", "room_a", 2, 3),
				"t3": tile("t3", "room_a", 2, 2),
				"t4": tile("t4", "room_a", 3, 3),
				"tb": tile("tb", "room_b", 1, 1),
			},
			want: []protocol.Loc{{2, 2}, {2, 3}, {3, 2}, {3, 3}},
		},
		{
			name: "drop zone tiles excluded",
			tiles: func() objs {
				dz := tile("dz", "room_a", 2, 2)
				dz.IsDropZone = true
				return objs{
					"dz": dz,
					"t1": tile("t1", "room_a", 4, 1),
					"t2": tile("t2", "room_a", 3, 3),
				}
			}(),
			want: []protocol.Loc{{3, 3}, {4, 1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestController(t, DefaultSettings())
			c.phase = EnterRoom
			c.door = door("door_a", "room_a", 3, 4, true)
			o := objs{"A1": body("A1", 3, 6), "door_a": c.door}
			for id, tl := range tt.tiles {
				o[id] = tl
			}

			a, err := c.Decide(snapshot(o), nil)
			require.NoError(t, err)
			assert.False(t, a.IsNull())
			assert.Equal(t, TraverseRoom, c.Phase())
			assert.Equal(t, tt.want, c.nav.Remaining())
		})
	}
}

func TestDeliverItem_RouteDescending(t *testing.T) {
	c, _ := newTestController(t, Settings{Kind: KindStrong})
	c.phase = DeliverItem
	c.held = 2
	c.dropOffs = []DropOff{
		{ObjectID: "b1", Location: protocol.Loc{5, 6}},
		{ObjectID: "b2", Location: protocol.Loc{5, 7}},
	}
	self := body("A1", 2, 2)
	self.IsCarrying = []string{"b1", "b2"}

	a, err := c.Decide(snapshot(objs{"A1": self, "dz": tile("dz", "", 6, 8)}), nil)
	require.NoError(t, err)
	assert.False(t, a.IsNull())
	assert.Equal(t, FollowPathToDropOffLocation, c.Phase())
	assert.Equal(t, []protocol.Loc{{5, 7}, {5, 6}}, c.nav.Remaining())
}
