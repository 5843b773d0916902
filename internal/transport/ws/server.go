package ws

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"blocksworld.ai/internal/protocol"
	"blocksworld.ai/internal/sim/world"
)

const (
	handshakeTimeout = 5 * time.Second
	idleTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
	defaultQueue     = 8
	maxQueue         = 64
)

// Server joins one agent per websocket connection. A non-empty token must be
// presented in HELLO auth.
type Server struct {
	world    *world.World
	log      *log.Logger
	token    string
	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger, token string) *Server {
	return &Server{
		world:    w,
		log:      logger,
		token:    strings.TrimSpace(token),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		hello, reason := s.readHello(conn)
		if reason != "" {
			refuse(conn, reason)
			return
		}
		out := make(chan []byte, queueSize(hello.Capabilities.MaxQueue))
		resp := s.join(hello, out)
		if resp.Welcome.AgentID == "" {
			refuse(conn, "join refused: "+resp.Code)
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(resp.Welcome); err != nil {
			s.world.Leave() <- resp.Welcome.AgentID
			return
		}

		id := resp.Welcome.AgentID
		s.log.Printf("agent %s (%s) connected from %s", id, resp.Welcome.AgentKind, r.RemoteAddr)
		ctx, cancel := context.WithCancel(r.Context())
		go pumpObs(ctx, cancel, conn, out)
		s.readActs(ctx, conn, id)
		cancel()
		s.world.Leave() <- id
		s.log.Printf("agent %s disconnected", id)
	}
}

// readHello returns the HELLO or the close reason to refuse it with.
func (s *Server) readHello(conn *websocket.Conn) (protocol.HelloMsg, string) {
	var hello protocol.HelloMsg
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return hello, "no HELLO"
	}
	if base, err := protocol.DecodeBase(msg); err != nil || base.Type != protocol.TypeHello {
		return hello, "expected HELLO"
	}
	if err := json.Unmarshal(msg, &hello); err != nil {
		return hello, "malformed HELLO"
	}
	if hello.ProtocolVersion != protocol.Version {
		return hello, "bad protocol_version"
	}
	if s.token != "" {
		var got string
		if hello.Auth != nil {
			got = strings.TrimSpace(hello.Auth.Token)
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			return hello, "bad token"
		}
	}
	if hello.AgentName == "" {
		hello.AgentName = "agent"
	}
	return hello, ""
}

func (s *Server) join(hello protocol.HelloMsg, out chan []byte) world.JoinResponse {
	resp := make(chan world.JoinResponse, 1)
	s.world.Join() <- world.JoinRequest{Name: hello.AgentName, Kind: hello.AgentKind, Out: out, Resp: resp}
	return <-resp
}

// readActs forwards ACT frames to the world until the connection drops.
// Frames of any other type or protocol version are ignored.
func (s *Server) readActs(ctx context.Context, conn *websocket.Conn, agentID string) {
	for ctx.Err() == nil {
		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if base, err := protocol.DecodeBase(msg); err != nil || base.Type != protocol.TypeAct {
			continue
		}
		var act protocol.ActMsg
		if err := json.Unmarshal(msg, &act); err != nil || act.ProtocolVersion != protocol.Version {
			continue
		}
		s.world.Inbox() <- world.ActionEnvelope{AgentID: agentID, Act: act}
	}
}

// pumpObs writes queued OBS frames; a failed write ends the session.
func pumpObs(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan []byte) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-out:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func queueSize(n int) int {
	switch {
	case n <= 0:
		return defaultQueue
	case n > maxQueue:
		return maxQueue
	}
	return n
}

func refuse(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
