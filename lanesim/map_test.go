package lanesim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/input"
)

func TestWaypointNeighbours(t *testing.T) {
	m := newMap(input.Default())
	wp, err := m.Waypoint(entity.Location{X: 50, Y: m.laneCenter(2)})
	require.NoError(t, err)
	assert.Equal(t, int32(2), wp.LaneID())
	assert.Equal(t, entity.LaneChangeBoth, wp.LaneChange())
	require.NotNil(t, wp.LeftLane())
	require.NotNil(t, wp.RightLane())
	assert.Equal(t, int32(1), wp.LeftLane().LaneID())
	assert.Equal(t, int32(3), wp.RightLane().LaneID())

	left := wp.LeftLane()
	assert.Nil(t, left.LeftLane())
	assert.Equal(t, entity.LaneChangeRight, left.LaneChange())
	right := wp.RightLane()
	assert.Nil(t, right.RightLane())
	assert.Equal(t, entity.LaneChangeLeft, right.LaneChange())

	next := wp.Next(10)
	require.Len(t, next, 1)
	assert.InDelta(t, 60, next[0].S(), 1e-9)
	assert.Empty(t, wp.Next(2000))
}

func TestJunctionAndSpeedLimit(t *testing.T) {
	m := newMap(input.Default())
	assert.True(t, m.waypoint(1, 310).IsJunction())
	assert.False(t, m.waypoint(1, 330).IsJunction())
	assert.Equal(t, entity.LaneChangeNone, m.waypoint(2, 310).LaneChange())
	assert.Equal(t, 60.0, m.speedLimit(100))
	assert.Equal(t, 30.0, m.speedLimit(650))
}

func TestSpawnPoints(t *testing.T) {
	s := input.Default()
	m := newMap(s)
	points := m.SpawnPoints()
	require.Len(t, points, len(s.SpawnPoints))
	assert.InDelta(t, 20, points[0].Location.X, 1e-9)
	assert.InDelta(t, 1.75, points[0].Location.Y, 1e-9)
}

func TestRouteLaneFollow(t *testing.T) {
	m := newMap(input.Default())
	route, err := m.Route(entity.Location{X: 20, Y: m.laneCenter(2)}, entity.Location{X: 120, Y: m.laneCenter(2)})
	require.NoError(t, err)
	require.NotEmpty(t, route)
	for _, step := range route {
		assert.Equal(t, int32(2), step.Waypoint.LaneID())
		assert.Equal(t, entity.RoadOptionLaneFollow, step.Option)
	}
	assert.InDelta(t, 120, route[len(route)-1].Waypoint.S(), 1e-9)
}

func TestRouteLaneChange(t *testing.T) {
	m := newMap(input.Default())
	route, err := m.Route(entity.Location{X: 20, Y: m.laneCenter(3)}, entity.Location{X: 200, Y: m.laneCenter(1)})
	require.NoError(t, err)
	changes := 0
	for _, step := range route {
		if step.Option == entity.RoadOptionChangeLaneLeft {
			changes++
		}
		assert.NotEqual(t, entity.RoadOptionChangeLaneRight, step.Option)
	}
	assert.Equal(t, 2, changes)
	assert.Equal(t, int32(1), route[len(route)-1].Waypoint.LaneID())
}

func TestRouteThroughJunction(t *testing.T) {
	m := newMap(input.Default())
	route, err := m.Route(entity.Location{X: 280, Y: m.laneCenter(1)}, entity.Location{X: 340, Y: m.laneCenter(1)})
	require.NoError(t, err)
	straight := 0
	for _, step := range route {
		if step.Option == entity.RoadOptionStraight {
			assert.True(t, step.Waypoint.IsJunction())
			straight++
		}
	}
	assert.Positive(t, straight)
}

func TestRouteBackwards(t *testing.T) {
	m := newMap(input.Default())
	_, err := m.Route(entity.Location{X: 200, Y: 1}, entity.Location{X: 100, Y: 1})
	assert.Error(t, err)
}
