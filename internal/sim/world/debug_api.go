package world

import (
	"fmt"

	"blocksworld.ai/internal/protocol"
)

// ---- Debug/Test Helpers ----
//
// These helpers let black-box tests in sibling packages (e.g. internal/sim/worldtest)
// set up deterministic preconditions without reaching into world internals.
//
// They are NOT safe to call concurrently with Run(). Use them only from a single
// goroutine driving the world via StepOnce().

func (w *World) DebugSetAgentLoc(agentID string, l protocol.Loc) error {
	a := w.agents[agentID]
	if a == nil {
		return fmt.Errorf("unknown agent: %s", agentID)
	}
	a.Loc = l
	for _, id := range a.Carrying {
		w.blocks[id].Loc = l
	}
	return nil
}

func (w *World) DebugAgentLoc(agentID string) (protocol.Loc, bool) {
	a := w.agents[agentID]
	if a == nil {
		return protocol.Loc{}, false
	}
	return a.Loc, true
}

func (w *World) DebugCarrying(agentID string) []string {
	a := w.agents[agentID]
	if a == nil {
		return nil
	}
	return append([]string(nil), a.Carrying...)
}

func (w *World) DebugDoorOpen(doorID string) bool {
	d := w.doors[doorID]
	return d != nil && d.Open
}

func (w *World) DebugMessages() []protocol.ChatMsg {
	return append([]protocol.ChatMsg(nil), w.messages...)
}
