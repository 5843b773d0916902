// Package world is the reference BW4T environment: a grid of rooms with
// doors, loose coloured blocks and a drop zone holding the target markers.
package world

import (
	"fmt"
	"sort"
	"sync/atomic"

	"blocksworld.ai/internal/agent/worldstate"
	"blocksworld.ai/internal/protocol"
	"blocksworld.ai/internal/sim/layout"
)

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg    WorldConfig
	layout *layout.Layout

	tick atomic.Uint64

	tiles  map[protocol.Loc]*tile
	doors  map[string]*door
	ghosts []*ghost
	blocks map[string]*block

	agents  map[string]*agent
	clients map[string]chan []byte

	// messages is the cumulative broadcast inbox.
	messages []protocol.ChatMsg

	inbox chan ActionEnvelope
	join  chan JoinRequest
	leave chan string
	stop  chan struct{}

	nextAgentNum atomic.Uint64
	nextMsgNum   atomic.Uint64

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger
}

func New(cfg WorldConfig, lay *layout.Layout) (*World, error) {
	if lay == nil {
		return nil, fmt.Errorf("world: nil layout")
	}
	if err := lay.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	w := &World{
		cfg:     cfg,
		layout:  lay,
		tiles:   map[protocol.Loc]*tile{},
		doors:   map[string]*door{},
		blocks:  map[string]*block{},
		agents:  map[string]*agent{},
		clients: map[string]chan []byte{},
		inbox:   make(chan ActionEnvelope, 1024),
		join:    make(chan JoinRequest, 64),
		leave:   make(chan string, 64),
		stop:    make(chan struct{}),
	}

	for y := 0; y < lay.Height; y++ {
		for x := 0; x < lay.Width; x++ {
			w.tiles[protocol.Loc{x, y}] = &tile{ID: fmt.Sprintf("floor_%d_%d", x, y), Kind: tileFloor}
		}
	}
	for _, r := range lay.Rooms {
		for _, l := range r.Walls() {
			w.tiles[l] = &tile{ID: fmt.Sprintf("wall_%d_%d", l.X(), l.Y()), Kind: tileWall, Room: r.Name}
		}
		for _, l := range r.Interior() {
			w.tiles[l] = &tile{ID: fmt.Sprintf("%s_tile_%d_%d", r.Name, l.X(), l.Y()), Kind: tileRoom, Room: r.Name}
		}
		if r.NoDoor {
			continue
		}
		d := &door{ID: "door_" + r.Name, Room: r.Name, Loc: r.Door()}
		w.doors[d.ID] = d
		w.tiles[d.Loc] = &tile{ID: d.ID, Kind: tileDoor, Room: r.Name}
	}
	for i, l := range lay.DropZoneTiles() {
		w.tiles[l] = &tile{ID: fmt.Sprintf("drop_zone_%d", i), Kind: tileDropZone, Room: worldstate.DropZoneRoom}
	}
	for i, l := range lay.GoalTiles() {
		g := lay.Goals[i]
		w.ghosts = append(w.ghosts, &ghost{ID: fmt.Sprintf("ghost_%d", i), Shape: g.Shape, Colour: g.Colour, Loc: l})
	}
	for i, b := range lay.Blocks {
		id := fmt.Sprintf("block_%03d", i)
		w.blocks[id] = &block{ID: id, Shape: b.Shape, Colour: b.Colour, Loc: protocol.Loc{b.X, b.Y}}
	}
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }

func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- string         { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

func (w *World) Layout() *layout.Layout { return w.layout }

func (w *World) joinAgent(req JoinRequest) JoinResponse {
	kind := req.Kind
	if kind == "" {
		kind = "colorblind"
	}
	k, ok := w.cfg.Kinds[kind]
	if !ok {
		return JoinResponse{Code: protocol.ErrBadRequest}
	}

	n := w.nextAgentNum.Add(1)
	id := fmt.Sprintf("A%d", n)
	a := &agent{
		ID:         id,
		Name:       req.Name,
		Kind:       kind,
		Capacity:   k.Capacity,
		Colorblind: k.Colorblind,
		Loc:        w.spawnFor(int(n - 1)),
	}
	if a.Capacity <= 0 {
		a.Capacity = 1
	}
	w.agents[id] = a
	if req.Out != nil {
		w.clients[id] = req.Out
	}
	return JoinResponse{Welcome: w.buildWelcome(a)}
}

func (w *World) spawnFor(i int) protocol.Loc {
	sp := w.layout.Spawns
	if len(sp) == 0 {
		return protocol.Loc{0, w.layout.Height - 1}
	}
	s := sp[i%len(sp)]
	return protocol.Loc{s.X, s.Y}
}

func (w *World) handleLeave(agentID string) {
	a := w.agents[agentID]
	if a == nil {
		return
	}
	// Carried blocks fall where the agent stood.
	for _, id := range a.Carrying {
		if b := w.blocks[id]; b != nil {
			b.CarriedBy = ""
			b.Loc = a.Loc
		}
	}
	delete(w.agents, agentID)
	delete(w.clients, agentID)
}

func (w *World) buildWelcome(a *agent) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		AgentID:         a.ID,
		AgentKind:       a.Kind,
		WorldParams: protocol.WorldParams{
			TickRateHz: w.cfg.TickRateHz,
			Width:      w.layout.Width,
			Height:     w.layout.Height,
			ObsRadius:  w.cfg.ObsRadius,
			Capacity:   a.Capacity,
			Seed:       w.cfg.Seed,
			Layout:     w.layout.Name,
		},
	}
}

// AgentIDs returns the joined agents in id order.
func (w *World) AgentIDs() []string {
	ids := make([]string, 0, len(w.agents))
	for id := range w.agents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return agentLess(ids[i], ids[j]) })
	return ids
}

// agentLess orders "A2" before "A10".
func agentLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func (w *World) passable(l protocol.Loc) bool {
	t := w.tiles[l]
	if t == nil {
		return false
	}
	switch t.Kind {
	case tileWall:
		return false
	case tileDoor:
		return w.doors[t.ID].Open
	}
	return true
}
