package tuning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RepoConfig(t *testing.T) {
	tu, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5, tu.TickRateHz)
	assert.Equal(t, 1, tu.ObsRadius)
	k, ok := tu.Kind("strong")
	require.True(t, ok)
	assert.Equal(t, 2, k.Capacity)
	cb, ok := tu.Kind("colorblind")
	require.True(t, ok)
	assert.True(t, cb.Colorblind)
	assert.InDelta(t, 0.1, tu.Agent.TrustPenalty, 1e-9)
}

func TestLoad_PartialFileGetsDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(p, []byte("tick_rate_hz: 20\nagent_kinds:\n  heavy: {capacity: 3}\n"), 0o644))

	tu, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 20, tu.TickRateHz)
	assert.Equal(t, 2000, tu.MaxTicks)
	assert.Equal(t, 3, tu.AgentKinds["heavy"].Capacity)
	assert.Equal(t, 1, tu.AgentKinds["normal"].Capacity)
	assert.Equal(t, 32, tu.Agent.MaxPhaseSteps)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, os.IsNotExist(err))

	p := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(p, []byte("agent_kinds:\n  weak: {capacity: -1}\n"), 0o644))
	_, err = Load(p)
	assert.ErrorContains(t, err, "negative capacity")
}
