package world

import "blocksworld.ai/internal/sim/tuning"

type WorldConfig struct {
	ID         string
	TickRateHz int
	ObsRadius  int
	Seed       int64
	// GrabRange is the Chebyshev distance for GrabObject and OpenDoorAction.
	GrabRange int

	Kinds map[string]tuning.AgentKind
}

// ConfigFromTuning maps a tuning file onto a world config.
func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:         id,
		TickRateHz: t.TickRateHz,
		ObsRadius:  t.ObsRadius,
		Seed:       t.Seed,
		GrabRange:  t.Agent.GrabRange,
		Kinds:      t.AgentKinds,
	}
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "W1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 5
	}
	if c.ObsRadius <= 0 {
		c.ObsRadius = 1
	}
	if c.GrabRange <= 0 {
		c.GrabRange = 1
	}
	if len(c.Kinds) == 0 {
		c.Kinds = tuning.Defaults().AgentKinds
	}
}
