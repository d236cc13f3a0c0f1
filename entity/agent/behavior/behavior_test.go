package behavior_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity/agent/behavior"
	"gopkg.in/yaml.v2"
)

func TestLookupTable(t *testing.T) {
	cases := []struct {
		style string
		want  behavior.Profile
	}{
		{"cautious", behavior.Profile{40, 6, 12, 3, 12, 6, -1, 0}},
		{"normal", behavior.Profile{50, 3, 10, 3, 10, 5, 0, 0}},
		{"aggressive", behavior.Profile{70, 1, 8, 3, 8, 4, 0, -1}},
	}
	for _, c := range cases {
		t.Run(c.style, func(t *testing.T) {
			p, err := behavior.Lookup(c.style)
			require.NoError(t, err)
			assert.Equal(t, c.want, p)
			assert.NoError(t, p.Validate())
		})
	}
}

func TestLookupIdempotent(t *testing.T) {
	for _, s := range behavior.Styles() {
		a, err := behavior.Lookup(string(s))
		require.NoError(t, err)
		b, err := s.Profile()
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestRiskOrdering(t *testing.T) {
	c, _ := behavior.Lookup("cautious")
	n, _ := behavior.Lookup("normal")
	a, _ := behavior.Lookup("aggressive")

	assert.Less(t, c.MaxSpeed, n.MaxSpeed)
	assert.Less(t, n.MaxSpeed, a.MaxSpeed)
	assert.Greater(t, c.MinProximityThreshold, n.MinProximityThreshold)
	assert.Greater(t, n.MinProximityThreshold, a.MinProximityThreshold)
	assert.GreaterOrEqual(t, c.BrakingDistance, n.BrakingDistance)
	assert.GreaterOrEqual(t, n.BrakingDistance, a.BrakingDistance)
	assert.GreaterOrEqual(t, c.SpeedLimDist, n.SpeedLimDist)
	assert.GreaterOrEqual(t, n.SpeedLimDist, a.SpeedLimDist)
	// 谨慎风格从不超车
	assert.Negative(t, c.OvertakeCounter)
}

func TestLookupUnknownStyle(t *testing.T) {
	for _, name := range []string{"reckless", "", "Normal", " normal"} {
		p, err := behavior.Lookup(name)
		assert.ErrorIs(t, err, behavior.ErrUnknownStyle, name)
		assert.Equal(t, behavior.Profile{}, p, name)
	}
}

func TestProfilesAreIndependent(t *testing.T) {
	first, err := behavior.Lookup("normal")
	require.NoError(t, err)
	second, err := behavior.Lookup("normal")
	require.NoError(t, err)

	first.MaxSpeed = 120
	first.OvertakeCounter = 200

	assert.Equal(t, 50.0, second.MaxSpeed)
	assert.Equal(t, 0, second.OvertakeCounter)
	third, _ := behavior.Lookup("normal")
	assert.Equal(t, behavior.NewNormal(), third)
}

func TestStyleUnmarshalYAML(t *testing.T) {
	var ok struct {
		Behavior behavior.Style `yaml:"behavior"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("behavior: aggressive\n"), &ok))
	assert.Equal(t, behavior.Aggressive, ok.Behavior)

	var bad struct {
		Behavior behavior.Style `yaml:"behavior"`
	}
	err := yaml.Unmarshal([]byte("behavior: reckless\n"), &bad)
	assert.ErrorIs(t, err, behavior.ErrUnknownStyle)
}

func TestValidateCustomProfile(t *testing.T) {
	p := behavior.NewNormal()
	p.MaxSpeed = 0
	assert.Error(t, p.Validate())

	p = behavior.NewNormal()
	p.BrakingDistance = -1
	assert.Error(t, p.Validate())

	p = behavior.NewCautious()
	p.MaxSpeed = 30
	assert.NoError(t, p.Validate())
}
