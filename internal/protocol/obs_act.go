package protocol

// Loc is a grid tile as (x, y). y grows downwards (south).
type Loc [2]int

func (l Loc) X() int { return l[0] }
func (l Loc) Y() int { return l[1] }

// Less orders locations by x, then y.
func (l Loc) Less(o Loc) bool {
	if l[0] != o[0] {
		return l[0] < o[0]
	}
	return l[1] < o[1]
}

// Chebyshev returns the king-move distance between two tiles.
func (l Loc) Chebyshev(o Loc) int {
	dx := l[0] - o[0]
	if dx < 0 {
		dx = -dx
	}
	dy := l[1] - o[1]
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

type Shape string

const (
	ShapeSquare   Shape = "square"
	ShapeTriangle Shape = "triangle"
	ShapeCircle   Shape = "circle"
)

func (s Shape) Valid() bool {
	switch s {
	case ShapeSquare, ShapeTriangle, ShapeCircle:
		return true
	}
	return false
}

// Object classes as reported in class_inheritance.
const (
	ClassAreaTile         = "AreaTile"
	ClassWall             = "Wall"
	ClassDoor             = "Door"
	ClassGhostBlock       = "GhostBlock"
	ClassCollectableBlock = "CollectableBlock"
	ClassAgentBody        = "AgentBody"
)

// Action names.
const (
	ActMoveNorth = "MoveNorth"
	ActMoveEast  = "MoveEast"
	ActMoveSouth = "MoveSouth"
	ActMoveWest  = "MoveWest"
	ActOpenDoor  = "OpenDoorAction"
	ActGrab      = "GrabObject"
	ActDrop      = "DropObject"
)

// OBS (server -> client)
type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	AgentID         string `json:"agent_id"`

	State       map[string]ObjectObs `json:"state"`
	TeamMembers []string             `json:"team_members"`
	// Messages is the cumulative inbox: every message broadcast so far.
	Messages []ChatMsg `json:"messages"`
	Events   []Event   `json:"events"`
}

type ObjectObs struct {
	ObjID            string   `json:"obj_id"`
	Name             string   `json:"name,omitempty"`
	ClassInheritance []string `json:"class_inheritance"`
	Location         Loc      `json:"location"`
	IsTraversable    bool     `json:"is_traversable"`
	IsCollectable    bool     `json:"is_collectable,omitempty"`
	IsOpen           bool     `json:"is_open,omitempty"`
	RoomName         string   `json:"room_name,omitempty"`
	IsDropZone       bool     `json:"is_drop_zone,omitempty"`

	Visualization *Visualization `json:"visualization,omitempty"`

	CarriedBy  string   `json:"carried_by,omitempty"`
	IsCarrying []string `json:"is_carrying,omitempty"`
	AgentKind  string   `json:"agent_kind,omitempty"`
}

type Visualization struct {
	Shape  Shape  `json:"shape"`
	Colour string `json:"colour,omitempty"`
}

// HasClass reports whether class appears in the object's class_inheritance.
func (o ObjectObs) HasClass(class string) bool {
	for _, c := range o.ClassInheritance {
		if c == class {
			return true
		}
	}
	return false
}

type ChatMsg struct {
	ID      string `json:"id"`
	Tick    uint64 `json:"tick"`
	From    string `json:"from"`
	Content string `json:"content"`
}

type Event map[string]interface{}

// ACT (client -> server)
type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	AgentID         string       `json:"agent_id"`
	Action          string       `json:"action,omitempty"`
	Params          ActionParams `json:"params,omitempty"`
	Messages        []string     `json:"messages,omitempty"`
}

type ActionParams struct {
	ObjectID string `json:"object_id,omitempty"`
}
