package agent

// Phase is a state of the decision table.
type Phase int

const (
	PlanPathToClosedDoor Phase = iota + 1
	FollowPathToClosedDoor
	OpenDoor
	EnterRoom
	TraverseRoom
	DeliverItem
	FollowPathToDropOffLocation
	DropObject
)

var phaseNames = map[Phase]string{
	PlanPathToClosedDoor:        "PLAN_PATH_TO_CLOSED_DOOR",
	FollowPathToClosedDoor:      "FOLLOW_PATH_TO_CLOSED_DOOR",
	OpenDoor:                    "OPEN_DOOR",
	EnterRoom:                   "ENTER_ROOM",
	TraverseRoom:                "TRAVERSE_ROOM",
	DeliverItem:                 "DELIVER_ITEM",
	FollowPathToDropOffLocation: "FOLLOW_PATH_TO_DROP_OFF_LOCATION",
	DropObject:                  "DROP_OBJECT",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "UNKNOWN"
}

// transitions lists every edge of the decision table.
var transitions = map[Phase][]Phase{
	PlanPathToClosedDoor:        {FollowPathToClosedDoor},
	FollowPathToClosedDoor:      {OpenDoor},
	OpenDoor:                    {EnterRoom},
	EnterRoom:                   {TraverseRoom},
	TraverseRoom:                {PlanPathToClosedDoor, DeliverItem},
	DeliverItem:                 {FollowPathToDropOffLocation, TraverseRoom},
	FollowPathToDropOffLocation: {DropObject, TraverseRoom, PlanPathToClosedDoor},
	DropObject:                  {FollowPathToDropOffLocation},
}

// CanTransition reports whether from -> to is an edge of the decision table.
func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}
