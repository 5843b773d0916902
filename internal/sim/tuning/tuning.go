package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int   `yaml:"tick_rate_hz"`
	ObsRadius  int   `yaml:"obs_radius"`
	MaxTicks   int   `yaml:"max_ticks"`
	Seed       int64 `yaml:"seed"`

	AgentKinds map[string]AgentKind `yaml:"agent_kinds"`
	Agent      AgentTuning          `yaml:"agent"`
}

type AgentKind struct {
	Capacity   int  `yaml:"capacity"`
	Colorblind bool `yaml:"colorblind"`
}

// AgentTuning feeds the controller settings.
type AgentTuning struct {
	GrabRange     int     `yaml:"grab_range"`
	TrustDefault  float64 `yaml:"trust_default"`
	TrustPenalty  float64 `yaml:"trust_penalty"`
	MaxPhaseSteps int     `yaml:"max_phase_steps"`
}

func Defaults() Tuning {
	t := Tuning{}
	t.applyDefaults()
	return t
}

func (t *Tuning) applyDefaults() {
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = "1.0"
	}
	if t.TickRateHz <= 0 {
		t.TickRateHz = 5
	}
	if t.ObsRadius <= 0 {
		t.ObsRadius = 1
	}
	if t.MaxTicks <= 0 {
		t.MaxTicks = 2000
	}
	if t.AgentKinds == nil {
		t.AgentKinds = map[string]AgentKind{}
	}
	for name, k := range map[string]AgentKind{
		"normal":     {Capacity: 1},
		"strong":     {Capacity: 2},
		"colorblind": {Capacity: 1, Colorblind: true},
	} {
		if _, ok := t.AgentKinds[name]; !ok {
			t.AgentKinds[name] = k
		}
	}
	if t.Agent.GrabRange <= 0 {
		t.Agent.GrabRange = 1
	}
	if t.Agent.TrustDefault == 0 {
		t.Agent.TrustDefault = 0.5
	}
	if t.Agent.TrustPenalty == 0 {
		t.Agent.TrustPenalty = 0.1
	}
	if t.Agent.MaxPhaseSteps <= 0 {
		t.Agent.MaxPhaseSteps = 32
	}
}

// Kind looks up an agent kind, reporting whether it is configured.
func (t Tuning) Kind(name string) (AgentKind, bool) {
	k, ok := t.AgentKinds[name]
	return k, ok
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	for name, k := range t.AgentKinds {
		if k.Capacity < 0 {
			return t, fmt.Errorf("tuning.yaml: agent kind %q: negative capacity", name)
		}
	}
	return t, nil
}
