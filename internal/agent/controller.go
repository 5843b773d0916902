// Package agent implements the colour-blind BW4T agent: a phase machine that
// opens doors, sweeps rooms for blocks matching the target markers, carries
// them to the drop zone and drops them there.
package agent

import (
	"errors"
	"io"
	"log"
	"math/rand"
	"sort"

	"blocksworld.ai/internal/agent/nav"
	"blocksworld.ai/internal/agent/worldstate"
	"blocksworld.ai/internal/protocol"
)

// ErrNoObjectToDrop means DROP_OBJECT was reached with nothing flagged for
// dropping. The controller cannot recover; drivers stop the process.
var ErrNoObjectToDrop = errors.New("agent: drop phase without an object to drop")

// Action is the single decision of a tick. The zero value is the null action.
type Action struct {
	Name   string
	Params protocol.ActionParams
}

// IsNull reports whether a is the null action.
func (a Action) IsNull() bool { return a.Name == "" }

// Option configures a Controller at construction.
type Option func(*Controller)

// WithLogger routes decision logs to l.
func WithLogger(l *log.Logger) Option { return func(c *Controller) { c.log = l } }

// WithMessenger replaces the default Outbox.
func WithMessenger(m Messenger) Option { return func(c *Controller) { c.msgr = m } }

// WithTransitionHook is called on every phase change.
func WithTransitionHook(fn func(from, to Phase)) Option {
	return func(c *Controller) { c.onTransition = fn }
}

// Controller decides one action per tick for a single agent. It is not safe
// for concurrent use.
type Controller struct {
	id       string
	settings Settings
	log      *log.Logger
	rng      *rand.Rand

	nav     *nav.Navigator
	tracker *nav.StateTracker
	msgr    Messenger

	onTransition func(from, to Phase)

	phase       Phase
	door        protocol.ObjectObs
	initialized bool
	inits       int

	rooms   []string
	desired []DesiredObject
	memory  []MemoryEntry

	dropOffs     []DropOff
	held         int
	objectToDrop string
	claimed      map[protocol.Loc]bool
	grabbed      map[string]bool

	team      []string
	teamSet   map[string]bool
	trust     map[string]float64
	processed map[string]bool
	reports   []TeammateReport
}

// New returns a controller for agentID starting in PLAN_PATH_TO_CLOSED_DOOR.
func New(agentID string, settings Settings, opts ...Option) *Controller {
	settings.applyDefaults()
	c := &Controller{
		id:        agentID,
		settings:  settings,
		log:       log.New(io.Discard, "", 0),
		rng:       rand.New(rand.NewSource(settings.Seed)),
		nav:       nav.NewNavigator(),
		tracker:   nav.NewStateTracker(agentID),
		msgr:      &Outbox{},
		phase:     PlanPathToClosedDoor,
		claimed:   map[protocol.Loc]bool{},
		grabbed:   map[string]bool{},
		teamSet:   map[string]bool{},
		trust:     map[string]float64{},
		processed: map[string]bool{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) ID() string         { return c.id }
func (c *Controller) Phase() Phase       { return c.phase }
func (c *Controller) Held() int          { return c.held }
func (c *Controller) Settings() Settings { return c.settings }

func (c *Controller) Memory() []MemoryEntry {
	return append([]MemoryEntry(nil), c.memory...)
}

func (c *Controller) DropOffs() []DropOff {
	return append([]DropOff(nil), c.dropOffs...)
}

func (c *Controller) Desired() []DesiredObject {
	return append([]DesiredObject(nil), c.desired...)
}

func (c *Controller) Reports() []TeammateReport {
	return append([]TeammateReport(nil), c.reports...)
}

func (c *Controller) TeamMembers() []string {
	return append([]string(nil), c.team...)
}

// Trust returns a copy of the per-teammate trust scores.
func (c *Controller) Trust() map[string]float64 {
	out := make(map[string]float64, len(c.trust))
	for k, v := range c.trust {
		out[k] = v
	}
	return out
}

// Act wraps Decide for wire drivers: it reads an OBS and produces the ACT,
// including the texts buffered by an Outbox messenger.
func (c *Controller) Act(obs protocol.ObsMsg) (protocol.ActMsg, error) {
	a, err := c.Decide(worldstate.FromObs(obs), obs.Messages)
	if err != nil {
		return protocol.ActMsg{}, err
	}
	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            obs.Tick,
		AgentID:         c.id,
		Action:          a.Name,
		Params:          a.Params,
	}
	if d, ok := c.msgr.(interface{ Drain() []string }); ok {
		act.Messages = d.Drain()
	}
	return act, nil
}

// Decide runs one tick: team and inbox bookkeeping, one-shot initialization,
// then phases until one yields an action.
func (c *Controller) Decide(s *worldstate.State, inbox []protocol.ChatMsg) (Action, error) {
	c.registerTeam(s.TeamMembers())
	c.processInbox(inbox)
	if !c.initialized {
		c.initialize(s)
	}
	c.confirmGrabs(s)
	c.tracker.Update(s)

	for i := 0; i < c.settings.MaxPhaseSteps; i++ {
		a, done, err := c.step(s)
		if err != nil {
			return Action{}, err
		}
		if done {
			return a, nil
		}
	}
	c.log.Printf("agent %s: no action after %d phase steps (phase=%s)", c.id, c.settings.MaxPhaseSteps, c.phase)
	return Action{}, nil
}

func (c *Controller) initialize(s *worldstate.State) {
	c.initialized = true
	c.inits++
	c.rooms = s.AllRoomNames()

	c.desired = c.desired[:0]
	for _, o := range s.WithClass(protocol.ClassGhostBlock) {
		if o.Visualization == nil {
			continue
		}
		c.desired = append(c.desired, DesiredObject{
			Shape:    o.Visualization.Shape,
			Colour:   o.Visualization.Colour,
			Location: o.Location,
		})
	}
	sortDescending(c.desired, func(d DesiredObject) protocol.Loc { return d.Location })
}

// confirmGrabs checks booked grabs against the agent's own body. A queued
// pair whose object is not carried was rejected by the world or lost: its
// target is released and the held count falls back.
func (c *Controller) confirmGrabs(s *worldstate.State) {
	self, ok := s.Self()
	if !ok || len(c.dropOffs) == 0 {
		return
	}
	carrying := make(map[string]bool, len(self.IsCarrying))
	for _, id := range self.IsCarrying {
		carrying[id] = true
	}

	kept := c.dropOffs[:0]
	released := 0
	for _, d := range c.dropOffs {
		if carrying[d.ObjectID] {
			kept = append(kept, d)
			continue
		}
		delete(c.claimed, d.Location)
		delete(c.grabbed, d.ObjectID)
		released++
		c.log.Printf("agent %s: %s not carried, releasing target %v", c.id, d.ObjectID, d.Location)
	}
	if released == 0 {
		return
	}
	c.dropOffs = kept
	c.held -= released
	if c.held < 0 {
		c.held = 0
	}
	if c.phase == DeliverItem && c.held < c.settings.Capacity {
		c.setPhase(TraverseRoom)
	}
}

func (c *Controller) setPhase(next Phase) {
	prev := c.phase
	if !CanTransition(prev, next) {
		c.log.Printf("agent %s: unexpected transition %s -> %s", c.id, prev, next)
	}
	c.phase = next
	if c.onTransition != nil {
		c.onTransition(prev, next)
	}
}

func move(name string) Action { return Action{Name: name} }

// step evaluates the current phase once. done reports that a (possibly
// null) action was produced for this tick.
func (c *Controller) step(s *worldstate.State) (a Action, done bool, err error) {
	switch c.phase {
	case PlanPathToClosedDoor:
		return c.planPathToClosedDoor(s)

	case FollowPathToClosedDoor:
		if name := c.nav.GetMoveAction(c.tracker); name != "" {
			return move(name), true, nil
		}
		c.setPhase(OpenDoor)
		return Action{}, false, nil

	case OpenDoor:
		c.setPhase(EnterRoom)
		return Action{Name: protocol.ActOpenDoor, Params: protocol.ActionParams{ObjectID: c.door.ObjID}}, true, nil

	case EnterRoom:
		c.enterRoom(s)
		return Action{}, false, nil

	case TraverseRoom:
		return c.traverseRoom(s)

	case DeliverItem:
		locs := make([]protocol.Loc, 0, len(c.dropOffs))
		for _, d := range c.dropOffs {
			locs = append(locs, d.Location)
		}
		sortDescending(locs, func(l protocol.Loc) protocol.Loc { return l })
		c.nav.ResetFull()
		c.nav.AddWaypoints(locs)
		c.setPhase(FollowPathToDropOffLocation)
		return Action{}, false, nil

	case FollowPathToDropOffLocation:
		return c.followPathToDropOff()

	case DropObject:
		if c.objectToDrop == "" {
			return Action{}, true, ErrNoObjectToDrop
		}
		obj := c.objectToDrop
		c.objectToDrop = ""
		c.held--
		c.setPhase(FollowPathToDropOffLocation)
		c.log.Printf("agent %s: dropping %s", c.id, obj)
		return Action{Name: protocol.ActDrop, Params: protocol.ActionParams{ObjectID: obj}}, true, nil
	}
	return Action{}, true, nil
}

func (c *Controller) planPathToClosedDoor(s *worldstate.State) (Action, bool, error) {
	c.nav.ResetFull()

	closed := s.ClosedDoors()
	if len(closed) == 0 {
		if len(c.rooms) == 0 {
			return Action{}, true, nil
		}
		room := c.rooms[0]
		c.rooms = c.rooms[1:]
		door, ok := s.DoorOf(room)
		if !ok {
			c.log.Printf("agent %s: room %s has no door", c.id, room)
			return Action{}, true, nil
		}
		c.door = door
	} else {
		c.door = closed[c.rng.Intn(len(closed))]
	}

	// The door sits in the bottom wall; its front tile is one step south.
	front := protocol.Loc{c.door.Location.X(), c.door.Location.Y() + 1}
	c.msgr.Send("Moving to door of " + c.door.RoomName)
	c.nav.AddWaypoints([]protocol.Loc{front})
	c.setPhase(FollowPathToClosedDoor)
	return Action{}, false, nil
}

func (c *Controller) enterRoom(s *worldstate.State) {
	var area []protocol.Loc
	for _, o := range s.RoomObjects(c.door.RoomName) {
		if !o.HasClass(protocol.ClassAreaTile) || o.IsDropZone {
			continue
		}
		area = append(area, o.Location)
	}
	sort.SliceStable(area, func(i, j int) bool { return area[i].Less(area[j]) })

	c.nav.ResetFull()
	c.nav.AddWaypoints(area)
	c.setPhase(TraverseRoom)
}

func (c *Controller) traverseRoom(s *worldstate.State) (Action, bool, error) {
	if a, ok := c.tryGrab(s); ok {
		return a, true, nil
	}
	if name := c.nav.GetMoveAction(c.tracker); name != "" {
		c.scan(s)
		return move(name), true, nil
	}
	if c.held > 0 {
		c.setPhase(DeliverItem)
		return Action{}, false, nil
	}
	if at, ok := c.tracker.Location(); ok {
		c.forget(at, "")
	}
	c.setPhase(PlanPathToClosedDoor)
	return Action{}, false, nil
}

// candidate reports whether o is a loose block that still needs delivering.
func (c *Controller) candidate(o protocol.ObjectObs) bool {
	return o.IsCollectable &&
		!o.HasClass(protocol.ClassGhostBlock) &&
		o.CarriedBy == "" &&
		o.Visualization != nil &&
		!c.grabbed[o.ObjID] &&
		!c.isDesiredLocation(o.Location)
}

// scan records matching blocks closest to the agent and announces new ones.
func (c *Controller) scan(s *worldstate.State) {
	for _, o := range s.ClosestWith(c.candidate) {
		for _, d := range c.desired {
			if o.Visualization.Shape != d.Shape || c.inMemory(d.Shape, o.Location) {
				continue
			}
			c.msgr.Send("Found " + string(o.Visualization.Shape))
			c.remember(MemoryEntry{
				Visualization: protocol.Visualization{Shape: d.Shape},
				Location:      o.Location,
				DropOff:       d.Location,
			})
		}
	}
}

// tryGrab picks up a matching block within range while capacity remains.
func (c *Controller) tryGrab(s *worldstate.State) (Action, bool) {
	if c.held >= c.settings.Capacity {
		return Action{}, false
	}
	self, ok := s.Self()
	if !ok {
		return Action{}, false
	}
	for _, o := range s.Filter(c.candidate) {
		if self.Location.Chebyshev(o.Location) > c.settings.GrabRange {
			continue
		}
		for _, d := range c.desired {
			if c.claimed[d.Location] || d.Shape != o.Visualization.Shape {
				continue
			}
			if d.Colour != "" && o.Visualization.Colour != "" && d.Colour != o.Visualization.Colour {
				continue
			}
			c.claimed[d.Location] = true
			c.grabbed[o.ObjID] = true
			c.dropOffs = append(c.dropOffs, DropOff{ObjectID: o.ObjID, Location: d.Location})
			c.held++
			c.forget(o.Location, d.Shape)
			if c.held >= c.settings.Capacity {
				c.setPhase(DeliverItem)
			}
			return Action{Name: protocol.ActGrab, Params: protocol.ActionParams{ObjectID: o.ObjID}}, true
		}
	}
	return Action{}, false
}

func (c *Controller) followPathToDropOff() (Action, bool, error) {
	if at, ok := c.tracker.Location(); ok {
		for i, d := range c.dropOffs {
			if d.Location != at {
				continue
			}
			c.objectToDrop = d.ObjectID
			c.dropOffs = append(c.dropOffs[:i], c.dropOffs[i+1:]...)
			c.setPhase(DropObject)
			return Action{}, false, nil
		}
	}

	if name := c.nav.GetMoveAction(c.tracker); name != "" {
		return move(name), true, nil
	}
	if len(c.memory) > 0 {
		c.nav.ResetFull()
		c.nav.AddWaypoints([]protocol.Loc{c.memory[0].Location})
		c.setPhase(TraverseRoom)
		return Action{}, false, nil
	}
	c.setPhase(PlanPathToClosedDoor)
	return Action{}, false, nil
}
