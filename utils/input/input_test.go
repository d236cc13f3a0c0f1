package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/config"
)

const scenarioYAML = `
name: two-lane
road:
  id: 7
  length: 500
  lane_count: 2
  lane_width: 3.5
  speed_limit: 50
traffic_lights:
  - {s: 200, junction_length: 15, green: 10, yellow: 2, red: 8}
walkers:
  - {s: 350, speed: 1.0}
spawn_points:
  - {lane: 1, s: 10}
  - {lane: 2, s: 450}
`

func TestDefaultScenarioValid(t *testing.T) {
	s := Default()
	assert.NoError(t, s.Validate())
	assert.NotEmpty(t, s.SpawnPoints)
}

func TestInitFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0o644))

	s, err := Init(config.Input{Scenario: config.InputPath{File: path}})
	require.NoError(t, err)
	assert.Equal(t, "two-lane", s.Name)
	assert.Equal(t, int32(7), s.Road.ID)
	assert.Len(t, s.TrafficLights, 1)
	assert.Equal(t, SpawnPoint{Lane: 2, S: 450}, s.SpawnPoints[1])
}

func TestInitDefault(t *testing.T) {
	s, err := Init(config.Input{})
	require.NoError(t, err)
	assert.Equal(t, Default().Name, s.Name)
}

func TestInitMissingFile(t *testing.T) {
	_, err := Init(config.Input{Scenario: config.InputPath{File: "/nonexistent/scenario.yaml"}})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	bad := []func(s *Scenario){
		func(s *Scenario) { s.Road.LaneCount = 0 },
		func(s *Scenario) { s.SpawnPoints = append(s.SpawnPoints, SpawnPoint{Lane: 4, S: 10}) },
		func(s *Scenario) { s.SpawnPoints = append(s.SpawnPoints, SpawnPoint{Lane: 1, S: 1e6}) },
		func(s *Scenario) { s.TrafficLights[0].S = 995 },
		func(s *Scenario) {
			s.TrafficLights[0].Green, s.TrafficLights[0].Yellow, s.TrafficLights[0].Red = 0, 0, 0
		},
		func(s *Scenario) { s.SpeedZones[0].To = s.SpeedZones[0].From },
		func(s *Scenario) { s.Walkers[0].Speed = 0 },
	}
	for i, mutate := range bad {
		s := Default()
		mutate(s)
		assert.Error(t, s.Validate(), i)
	}
}

func TestParseStrict(t *testing.T) {
	_, err := Parse([]byte("name: x\nroads: {}\n"))
	assert.Error(t, err)
}
