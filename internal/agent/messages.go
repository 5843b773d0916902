package agent

import (
	"fmt"
	"strings"

	"blocksworld.ai/internal/protocol"
)

// Messenger broadcasts a text to every teammate. The transport attaches the
// sender id.
type Messenger interface {
	Send(content string)
}

// Outbox is a Messenger that buffers texts until the driver drains them into
// the next ACT.
type Outbox struct {
	pending []string
}

func (o *Outbox) Send(content string) { o.pending = append(o.pending, content) }

func (o *Outbox) Drain() []string {
	out := o.pending
	o.pending = nil
	return out
}

// TeammateReport is a parsed "Found <shape> [colour <c>]" message.
type TeammateReport struct {
	From   string
	Tick   uint64
	Shape  protocol.Shape
	Colour string
}

func messageKey(m protocol.ChatMsg) string {
	if m.ID != "" {
		return m.ID
	}
	return fmt.Sprintf("%s|%d|%s", m.From, m.Tick, m.Content)
}

func (c *Controller) registerTeam(members []string) {
	for _, m := range members {
		if m == c.id || c.teamSet[m] {
			continue
		}
		c.teamSet[m] = true
		c.team = append(c.team, m)
		c.trust[m] = c.settings.TrustDefault
	}
}

// processInbox handles every message of the cumulative inbox exactly once.
func (c *Controller) processInbox(inbox []protocol.ChatMsg) {
	for _, m := range inbox {
		key := messageKey(m)
		if c.processed[key] {
			continue
		}
		c.processed[key] = true
		if m.From == c.id {
			continue
		}
		c.parseMessage(m)
		c.updateTrust(m)
	}
}

func (c *Controller) parseMessage(m protocol.ChatMsg) {
	fields := strings.Fields(m.Content)
	for i, f := range fields {
		if f != "Found" || i+1 >= len(fields) {
			continue
		}
		r := TeammateReport{From: m.From, Tick: m.Tick, Shape: protocol.Shape(fields[i+1])}
		for j := i + 2; j+1 < len(fields); j++ {
			if fields[j] == "colour" {
				r.Colour = fields[j+1]
				break
			}
		}
		c.reports = append(c.reports, r)
		return
	}
}

// updateTrust lowers the score of a teammate reporting a find without a
// colour qualifier.
func (c *Controller) updateTrust(m protocol.ChatMsg) {
	if !c.teamSet[m.From] {
		return
	}
	if !strings.Contains(m.Content, "Found") || strings.Contains(m.Content, "colour") {
		return
	}
	c.trust[m.From] -= c.settings.TrustPenalty
}
