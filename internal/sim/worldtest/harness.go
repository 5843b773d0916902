package worldtest

import (
	"encoding/json"
	"testing"

	"blocksworld.ai/internal/protocol"
	"blocksworld.ai/internal/sim/layout"
	world "blocksworld.ai/internal/sim/world"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - Join() issues JoinRequest via StepOnce()
// - Step()/StepMulti() issue ACT via StepOnce()
// - Per-agent Out channels carry OBS JSON
//
// It avoids touching world internals so tests can live outside the world package.
type Harness struct {
	T *testing.T
	W *world.World

	DefaultAgentID string

	sessions map[string]*session
	order    []string
}

func NewHarness(t *testing.T, cfg world.WorldConfig, lay *layout.Layout) *Harness {
	t.Helper()

	w, err := world.New(cfg, lay)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return &Harness{
		T:        t,
		W:        w,
		sessions: map[string]*session{},
	}
}

type session struct {
	AgentID string
	Welcome protocol.WelcomeMsg
	Out     chan []byte
	lastObs protocol.ObsMsg
}

func (h *Harness) Join(agentName, kind string) string {
	h.T.Helper()

	out := make(chan []byte, 16)
	resp := make(chan world.JoinResponse, 1)
	_, _ = h.W.StepOnce([]world.JoinRequest{{
		Name: agentName,
		Kind: kind,
		Out:  out,
		Resp: resp,
	}}, nil, nil)
	jr := <-resp
	if jr.Welcome.AgentID == "" {
		h.T.Fatalf("join returned empty agent id (code=%s)", jr.Code)
	}
	s := &session{AgentID: jr.Welcome.AgentID, Welcome: jr.Welcome, Out: out}
	h.sessions[s.AgentID] = s
	h.order = append(h.order, s.AgentID)
	if h.DefaultAgentID == "" {
		h.DefaultAgentID = s.AgentID
	}
	h.drainAllObs()
	return s.AgentID
}

func (h *Harness) Welcome(agentID string) protocol.WelcomeMsg {
	return h.sessions[agentID].Welcome
}

// AgentIDs lists joined agents in join order.
func (h *Harness) AgentIDs() []string { return append([]string(nil), h.order...) }

func (h *Harness) LastObs() protocol.ObsMsg {
	return h.LastObsFor(h.DefaultAgentID)
}

func (h *Harness) LastObsFor(agentID string) protocol.ObsMsg {
	h.T.Helper()
	s := h.sessions[agentID]
	if s == nil {
		h.T.Fatalf("unknown agent id: %q", agentID)
	}
	return s.lastObs
}

func (h *Harness) Step(action string, params protocol.ActionParams) protocol.ObsMsg {
	h.T.Helper()
	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            h.W.CurrentTick(),
		AgentID:         h.DefaultAgentID,
		Action:          action,
		Params:          params,
	}
	h.StepMulti([]world.ActionEnvelope{{AgentID: h.DefaultAgentID, Act: act}})
	return h.LastObs()
}

func (h *Harness) StepMulti(actions []world.ActionEnvelope) string {
	h.T.Helper()
	_, digest := h.W.StepOnce(nil, nil, actions)
	h.drainAllObs()
	return digest
}

func (h *Harness) StepNoop() protocol.ObsMsg {
	h.T.Helper()
	_, _ = h.W.StepOnce(nil, nil, nil)
	h.drainAllObs()
	return h.LastObs()
}

func (h *Harness) drainAllObs() {
	h.T.Helper()
	for _, s := range h.sessions {
		for {
			select {
			case b := <-s.Out:
				var obs protocol.ObsMsg
				if err := json.Unmarshal(b, &obs); err != nil {
					h.T.Fatalf("unmarshal obs: %v", err)
				}
				s.lastObs = obs
				continue
			default:
			}
			break
		}
	}
}
