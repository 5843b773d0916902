package world

import "blocksworld.ai/internal/protocol"

type JoinRequest struct {
	Name string
	Kind string
	// Out receives OBS JSON once per tick. It may be nil for in-process
	// drivers that call Observe instead.
	Out  chan []byte
	Resp chan JoinResponse
}

// JoinResponse carries the WELCOME. An empty AgentID means the join was
// refused; Code tells why.
type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	Code    string
}

type ActionEnvelope struct {
	AgentID string
	Act     protocol.ActMsg
}

type RecordedJoin struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
}

type RecordedAction struct {
	AgentID string          `json:"agent_id"`
	Act     protocol.ActMsg `json:"act"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick     uint64             `json:"tick"`
	Joins    []RecordedJoin     `json:"joins,omitempty"`
	Leaves   []string           `json:"leaves,omitempty"`
	Actions  []RecordedAction   `json:"actions,omitempty"`
	Messages []protocol.ChatMsg `json:"messages,omitempty"`
	Digest   string             `json:"digest"`
	Done     bool               `json:"done,omitempty"`
}

// AuditEntry records a successful state change on an object.
type AuditEntry struct {
	Tick     uint64       `json:"tick"`
	Actor    string       `json:"actor"`
	Action   string       `json:"action"` // e.g. "GrabObject"
	ObjectID string       `json:"object_id"`
	Loc      protocol.Loc `json:"loc"`
}

type agent struct {
	ID         string
	Name       string
	Kind       string
	Capacity   int
	Colorblind bool
	Loc        protocol.Loc
	Carrying   []string

	Events []protocol.Event
}

func (a *agent) AddEvent(e protocol.Event) { a.Events = append(a.Events, e) }

func (a *agent) TakeEvents() []protocol.Event {
	ev := a.Events
	a.Events = nil
	return ev
}

func (a *agent) carries(objID string) int {
	for i, id := range a.Carrying {
		if id == objID {
			return i
		}
	}
	return -1
}

type block struct {
	ID        string
	Shape     protocol.Shape
	Colour    string
	Loc       protocol.Loc
	CarriedBy string
}

type door struct {
	ID   string
	Room string
	Loc  protocol.Loc
	Open bool
}

type ghost struct {
	ID     string
	Shape  protocol.Shape
	Colour string
	Loc    protocol.Loc
}

type tileKind uint8

const (
	tileFloor tileKind = iota
	tileRoom
	tileWall
	tileDoor
	tileDropZone
)

// tile is a static grid cell. Doors keep their open flag on the door entity.
type tile struct {
	ID   string
	Kind tileKind
	Room string
}
