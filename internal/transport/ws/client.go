package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"blocksworld.ai/internal/protocol"
)

// Client is the agent side of the connection.
type Client struct {
	conn    *websocket.Conn
	Welcome protocol.WelcomeMsg
}

// Dial connects, sends HELLO and waits for WELCOME.
func Dial(ctx context.Context, url string, hello protocol.HelloMsg) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	hello.Type = protocol.TypeHello
	if hello.ProtocolVersion == "" {
		hello.ProtocolVersion = protocol.Version
	}
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read WELCOME: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	var w protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &w); err != nil || w.Type != protocol.TypeWelcome {
		_ = conn.Close()
		return nil, fmt.Errorf("expected WELCOME, got %q", msg)
	}
	return &Client{conn: conn, Welcome: w}, nil
}

// ReadObs blocks until the next OBS, skipping other message types.
func (c *Client) ReadObs() (protocol.ObsMsg, error) {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return protocol.ObsMsg{}, err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != protocol.TypeObs {
			continue
		}
		var obs protocol.ObsMsg
		if err := json.Unmarshal(msg, &obs); err != nil {
			return protocol.ObsMsg{}, err
		}
		return obs, nil
	}
}

func (c *Client) SendAct(act protocol.ActMsg) error {
	act.Type = protocol.TypeAct
	if act.ProtocolVersion == "" {
		act.ProtocolVersion = protocol.Version
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(act)
}

func (c *Client) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}
