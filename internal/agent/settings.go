package agent

// Agent kinds and their carrying capacity.
const (
	KindNormal     = "normal"
	KindStrong     = "strong"
	KindColorblind = "colorblind"
)

// CapacityFor returns the default carrying limit of an agent kind.
func CapacityFor(kind string) int {
	if kind == KindStrong {
		return 2
	}
	return 1
}

// Settings is handed to the controller once, at construction.
type Settings struct {
	Kind     string
	Capacity int

	// GrabRange is the Chebyshev distance within which a block can be picked up.
	GrabRange int

	TrustDefault float64
	TrustPenalty float64

	// Seed drives the random closed-door choice.
	Seed int64

	// MaxPhaseSteps bounds the phase transitions evaluated in one tick.
	MaxPhaseSteps int
}

// DefaultSettings returns the settings of a colour-blind agent with the
// default trust values.
func DefaultSettings() Settings {
	s := Settings{}
	s.applyDefaults()
	return s
}

func (s *Settings) applyDefaults() {
	if s.Kind == "" {
		s.Kind = KindColorblind
	}
	if s.Capacity <= 0 {
		s.Capacity = CapacityFor(s.Kind)
	}
	if s.GrabRange <= 0 {
		s.GrabRange = 1
	}
	if s.TrustDefault == 0 {
		s.TrustDefault = 0.5
	}
	if s.TrustPenalty == 0 {
		s.TrustPenalty = 0.1
	}
	if s.MaxPhaseSteps <= 0 {
		s.MaxPhaseSteps = 32
	}
}
