package entity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

type velocityActor struct {
	IActor
	v Vector3D
}

func (a velocityActor) Velocity() Vector3D { return a.v }

func TestSpeed(t *testing.T) {
	assert.InDelta(t, 36.0, Speed(velocityActor{v: Vector3D{X: 6, Y: 8}}), 1e-9)
	assert.Equal(t, 0.0, Speed(velocityActor{}))
}

func TestForwardVector(t *testing.T) {
	f := Transform{Rotation: Rotation{Yaw: 90}}.ForwardVector()
	assert.InDelta(t, 0, f.X, 1e-9)
	assert.InDelta(t, 1, f.Y, 1e-9)
	assert.InDelta(t, 1, f.Length(), 1e-9)
}

func TestIsWithinDistance(t *testing.T) {
	ref := Transform{Location: Location{X: 10}}
	ahead := Transform{Location: Location{X: 20}}
	behind := Transform{Location: Location{X: 0}}
	side := Transform{Location: Location{X: 9.99, Y: 5}}

	assert.True(t, IsWithinDistance(ahead, ref, 15, 0, 90))
	assert.False(t, IsWithinDistance(ahead, ref, 5, 0, 90))
	assert.False(t, IsWithinDistance(behind, ref, 15, 0, 90))
	assert.True(t, IsWithinDistance(behind, ref, 15, 160, 180.1))
	// 侧后方夹角略大于90度，不在区间[0, 90)内
	assert.False(t, IsWithinDistance(side, ref, 15, 0, 90))
	assert.True(t, IsWithinDistance(ref, ref, 1, 0, 90))
}

func TestDistanceToTarget(t *testing.T) {
	d, angle := DistanceToTarget(Location{X: 3, Y: 3}, Transform{})
	assert.InDelta(t, math.Sqrt(18), d, 1e-9)
	assert.InDelta(t, 45, angle, 1e-9)
}

func TestLaneChange(t *testing.T) {
	assert.True(t, LaneChangeBoth.AllowLeft())
	assert.True(t, LaneChangeBoth.AllowRight())
	assert.False(t, LaneChangeRight.AllowLeft())
	assert.False(t, LaneChangeNone.AllowRight())
}

func TestBlueprintAttribute(t *testing.T) {
	var bp Blueprint
	bp.SetAttribute("color", "0,0,0")
	v, ok := bp.Attribute("color")
	assert.True(t, ok)
	assert.Equal(t, "0,0,0", v)
}
