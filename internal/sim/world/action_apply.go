package world

import (
	"fmt"

	"blocksworld.ai/internal/agent/nav"
	"blocksworld.ai/internal/protocol"
)

// maxMessageLen caps a broadcast text.
const maxMessageLen = 256

func (w *World) applyAct(a *agent, act protocol.ActMsg, nowTick uint64) {
	// Staleness check: accept only [now-2, now].
	if act.Tick+2 < nowTick || act.Tick > nowTick {
		a.AddEvent(actionResult(nowTick, "ACT", false, protocol.ErrStale, "act tick out of range"))
		return
	}

	for _, text := range act.Messages {
		if text == "" {
			continue
		}
		if len(text) > maxMessageLen {
			text = text[:maxMessageLen]
		}
		w.broadcast(nowTick, a.ID, text)
	}

	if act.Action == "" {
		return
	}
	if h := actionDispatch[act.Action]; h != nil {
		h(w, a, act.Params, nowTick)
		return
	}
	a.AddEvent(actionResult(nowTick, act.Action, false, protocol.ErrUnknownAction, "unknown action"))
}

type actionHandler func(w *World, a *agent, p protocol.ActionParams, nowTick uint64)

var actionDispatch = map[string]actionHandler{
	protocol.ActMoveNorth: handleMove(protocol.ActMoveNorth),
	protocol.ActMoveEast:  handleMove(protocol.ActMoveEast),
	protocol.ActMoveSouth: handleMove(protocol.ActMoveSouth),
	protocol.ActMoveWest:  handleMove(protocol.ActMoveWest),
	protocol.ActOpenDoor:  handleOpenDoor,
	protocol.ActGrab:      handleGrab,
	protocol.ActDrop:      handleDrop,
}

func handleMove(name string) actionHandler {
	return func(w *World, a *agent, _ protocol.ActionParams, nowTick uint64) {
		d, _ := nav.Delta(name)
		to := protocol.Loc{a.Loc.X() + d.X(), a.Loc.Y() + d.Y()}
		if !w.passable(to) {
			a.AddEvent(actionResult(nowTick, name, false, protocol.ErrBlocked, fmt.Sprintf("cannot enter %v", to)))
			return
		}
		a.Loc = to
		for _, id := range a.Carrying {
			if b := w.blocks[id]; b != nil {
				b.Loc = to
			}
		}
		a.AddEvent(actionResult(nowTick, name, true, "", ""))
	}
}

func handleOpenDoor(w *World, a *agent, p protocol.ActionParams, nowTick uint64) {
	var d *door
	if p.ObjectID != "" {
		d = w.doors[p.ObjectID]
		if d == nil {
			a.AddEvent(actionResult(nowTick, protocol.ActOpenDoor, false, protocol.ErrInvalidTarget, "no such door"))
			return
		}
	} else {
		d = w.nearestDoor(a.Loc)
		if d == nil {
			a.AddEvent(actionResult(nowTick, protocol.ActOpenDoor, false, protocol.ErrOutOfRange, "no door in range"))
			return
		}
	}
	if a.Loc.Chebyshev(d.Loc) > w.cfg.GrabRange {
		a.AddEvent(actionResult(nowTick, protocol.ActOpenDoor, false, protocol.ErrOutOfRange, "door out of range"))
		return
	}
	if !d.Open {
		d.Open = true
		w.audit(nowTick, a.ID, protocol.ActOpenDoor, d.ID, d.Loc)
	}
	a.AddEvent(actionResult(nowTick, protocol.ActOpenDoor, true, "", ""))
}

func (w *World) nearestDoor(at protocol.Loc) *door {
	var best *door
	for _, id := range sortedKeys(w.doors) {
		d := w.doors[id]
		if at.Chebyshev(d.Loc) > w.cfg.GrabRange {
			continue
		}
		if best == nil || at.Chebyshev(d.Loc) < at.Chebyshev(best.Loc) {
			best = d
		}
	}
	return best
}

func handleGrab(w *World, a *agent, p protocol.ActionParams, nowTick uint64) {
	b := w.blocks[p.ObjectID]
	switch {
	case b == nil:
		a.AddEvent(actionResult(nowTick, protocol.ActGrab, false, protocol.ErrInvalidTarget, "no such block"))
		return
	case b.CarriedBy != "":
		a.AddEvent(actionResult(nowTick, protocol.ActGrab, false, protocol.ErrConflict, "block already carried by "+b.CarriedBy))
		return
	case a.Loc.Chebyshev(b.Loc) > w.cfg.GrabRange:
		a.AddEvent(actionResult(nowTick, protocol.ActGrab, false, protocol.ErrOutOfRange, "block out of range"))
		return
	case len(a.Carrying) >= a.Capacity:
		a.AddEvent(actionResult(nowTick, protocol.ActGrab, false, protocol.ErrCapacity, "carrying capacity reached"))
		return
	}
	b.CarriedBy = a.ID
	b.Loc = a.Loc
	a.Carrying = append(a.Carrying, b.ID)
	w.audit(nowTick, a.ID, protocol.ActGrab, b.ID, b.Loc)
	a.AddEvent(actionResult(nowTick, protocol.ActGrab, true, "", ""))
}

func handleDrop(w *World, a *agent, p protocol.ActionParams, nowTick uint64) {
	if len(a.Carrying) == 0 {
		a.AddEvent(actionResult(nowTick, protocol.ActDrop, false, protocol.ErrInvalidTarget, "not carrying anything"))
		return
	}
	i := len(a.Carrying) - 1
	if p.ObjectID != "" {
		if i = a.carries(p.ObjectID); i < 0 {
			a.AddEvent(actionResult(nowTick, protocol.ActDrop, false, protocol.ErrInvalidTarget, "not carrying "+p.ObjectID))
			return
		}
	}
	b := w.blocks[a.Carrying[i]]
	a.Carrying = append(a.Carrying[:i], a.Carrying[i+1:]...)
	b.CarriedBy = ""
	b.Loc = a.Loc
	w.audit(nowTick, a.ID, protocol.ActDrop, b.ID, b.Loc)
	a.AddEvent(actionResult(nowTick, protocol.ActDrop, true, "", ""))
}

func (w *World) broadcast(tick uint64, from, text string) {
	n := w.nextMsgNum.Add(1)
	w.messages = append(w.messages, protocol.ChatMsg{
		ID:      fmt.Sprintf("M%06d", n),
		Tick:    tick,
		From:    from,
		Content: text,
	})
}

func (w *World) audit(tick uint64, actor, action, objID string, at protocol.Loc) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(AuditEntry{Tick: tick, Actor: actor, Action: action, ObjectID: objID, Loc: at})
}

func actionResult(tick uint64, ref string, ok bool, code string, message string) protocol.Event {
	if !protocol.IsKnownCode(code) {
		code = protocol.ErrInternal
		if message == "" {
			message = "unknown error code"
		}
	}
	e := protocol.Event{
		"t":    tick,
		"type": "ACTION_RESULT",
		"ref":  ref,
		"ok":   ok,
	}
	if code != "" {
		e["code"] = code
	}
	if message != "" {
		e["message"] = message
	}
	return e
}
