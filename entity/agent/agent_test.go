package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity/agent/behavior"
	"github.com/tsinghua-fib-lab/behavior-agent-go/lanesim"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/input"
)

// openRoad 1公里三车道直道，没有信号灯与行人
func openRoad() *input.Scenario {
	return &input.Scenario{
		Name: "open",
		Road: input.Road{ID: 1, Length: 1000, LaneCount: 3, LaneWidth: 3.5, SpeedLimit: 60},
	}
}

func laneCenter(lane int32) float64 {
	return (float64(lane) - 0.5) * 3.5
}

func spawn(t *testing.T, w *lanesim.World, lane int32, s float64) entity.IVehicle {
	bp, err := w.BlueprintLibrary().Find("vehicle.lincoln.mkz2017")
	require.NoError(t, err)
	a, err := w.SpawnActor(context.Background(), bp, entity.Transform{Location: entity.Location{X: s, Y: laneCenter(lane)}})
	require.NoError(t, err)
	return a.(entity.IVehicle)
}

// drive 按照运行脚本的顺序驱动智能体，until返回true或走完路径时停止，返回执行的步数
func drive(t *testing.T, w *lanesim.World, a *BehaviorAgent, maxSteps int, until func() bool) int {
	for i := 0; i < maxSteps; i++ {
		a.UpdateInformation()
		_, err := w.Tick(context.Background())
		require.NoError(t, err)
		if a.Done() || (until != nil && until()) {
			return i
		}
		control, err := a.RunStep(false)
		require.NoError(t, err)
		a.Vehicle().ApplyControl(control)
	}
	return maxSteps
}

func TestNewUnknownStyle(t *testing.T) {
	w := lanesim.NewWorld(openRoad(), 1)
	v := spawn(t, w, 2, 20)
	a, err := New(v, w, "reckless")
	assert.ErrorIs(t, err, behavior.ErrUnknownStyle)
	assert.Nil(t, a)

	a, err = New(v, w, "Normal")
	assert.ErrorIs(t, err, behavior.ErrUnknownStyle)
	assert.Nil(t, a)
}

func TestNewCopiesProfile(t *testing.T) {
	w := lanesim.NewWorld(openRoad(), 1)
	cautious, err := New(spawn(t, w, 1, 20), w, "cautious")
	require.NoError(t, err)
	aggressive, err := New(spawn(t, w, 2, 20), w, "aggressive")
	require.NoError(t, err)

	assert.Equal(t, behavior.NewCautious(), cautious.Profile())
	assert.Equal(t, behavior.NewAggressive(), aggressive.Profile())
	overtake, tailgate := cautious.Counters()
	assert.Equal(t, -1, overtake)
	assert.Equal(t, 0, tailgate)
	overtake, tailgate = aggressive.Counters()
	assert.Equal(t, 0, overtake)
	assert.Equal(t, -1, tailgate)
	assert.Equal(t, "aggressive", aggressive.Style())
}

func TestNewWithProfile(t *testing.T) {
	w := lanesim.NewWorld(openRoad(), 1)
	v := spawn(t, w, 2, 20)
	p := behavior.NewNormal()
	p.MaxSpeed = -1
	_, err := NewWithProfile(v, w, p)
	assert.Error(t, err)

	p.MaxSpeed = 30
	a, err := NewWithProfile(v, w, p)
	require.NoError(t, err)
	assert.Equal(t, "custom", a.Style())
	assert.Equal(t, 30.0, a.Profile().MaxSpeed)
}

func TestEmergencyStop(t *testing.T) {
	w := lanesim.NewWorld(openRoad(), 1)
	a, err := New(spawn(t, w, 2, 20), w, "normal")
	require.NoError(t, err)
	assert.Equal(t, entity.VehicleControl{Brake: 0.5}, a.EmergencyStop())

	b, err := New(spawn(t, w, 1, 20), w, "normal", WithMaxBrake(0.8))
	require.NoError(t, err)
	assert.Equal(t, entity.VehicleControl{Brake: 0.8}, b.EmergencyStop())
}

func TestFollowSpeed(t *testing.T) {
	a := &BehaviorAgent{profile: behavior.NewNormal(), speedLimit: 60}
	cases := []struct {
		name                  string
		speed, lead, distance float64
		want                  float64
	}{
		{"inside safety time", 50, 20, 10, 10},
		{"between one and two safety times", 50, 45, 5, 45},
		{"minimum follow speed", 3, 2, 4, 5},
		{"far enough", 50, 40, 25, 50},
		// 同速时delta_v取1，ttc等于车距
		{"ttc just below safety time", 40, 40, 2.999, 30},
		{"ttc equals safety time", 40, 40, 3, 40},
		{"ttc just below twice safety time", 40, 40, 5.999, 40},
		{"ttc equals twice safety time", 40, 40, 6, 50},
		{"zero distance", 40, 40, 0, 50},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a.speed = c.speed
			assert.InDelta(t, c.want, a.followSpeed(c.lead, c.distance), 1e-9)
		})
	}
}

func TestCountersCooldown(t *testing.T) {
	w := lanesim.NewWorld(openRoad(), 1)
	v := spawn(t, w, 2, 20)
	p := behavior.NewNormal()
	p.OvertakeCounter = 3
	p.TailgateCounter = -1
	a, err := NewWithProfile(v, w, p)
	require.NoError(t, err)
	require.NoError(t, a.SetDestination(v.Location(), entity.Location{X: 500, Y: laneCenter(2)}, true))

	for i := 0; i < 5; i++ {
		a.UpdateInformation()
		_, err := a.RunStep(false)
		require.NoError(t, err)
	}
	overtake, tailgate := a.Counters()
	assert.Equal(t, 0, overtake)
	assert.Equal(t, -1, tailgate)
	// 自定义参数不影响目录中的参数
	assert.Equal(t, 0, behavior.NewNormal().OvertakeCounter)
}

func TestDrivesToDestination(t *testing.T) {
	w := lanesim.NewWorld(openRoad(), 1)
	v := spawn(t, w, 2, 20)
	a, err := New(v, w, "normal")
	require.NoError(t, err)
	require.NoError(t, a.SetDestination(v.Location(), entity.Location{X: 200, Y: laneCenter(2)}, true))
	assert.False(t, a.Done())

	steps := drive(t, w, a, 2000, nil)
	assert.Less(t, steps, 2000)
	assert.True(t, a.Done())
	assert.InDelta(t, 200, v.Location().X, 10)
	assert.InDelta(t, laneCenter(2), v.Location().Y, 0.5)
	assert.Equal(t, StateCruise, a.State())
	assert.LessOrEqual(t, a.Speed(), a.Profile().MaxSpeed+5)

	control, err := a.RunStep(false)
	require.NoError(t, err)
	assert.Equal(t, StateArrived, a.State())
	assert.Equal(t, 1.0, control.Brake)
}

func TestStopsAtRedLight(t *testing.T) {
	s := openRoad()
	s.TrafficLights = []input.TrafficLight{{S: 100, JunctionLength: 10, Red: 1000}}
	w := lanesim.NewWorld(s, 1)
	v := spawn(t, w, 1, 20)
	a, err := New(v, w, "aggressive")
	require.NoError(t, err)
	require.NoError(t, a.SetDestination(v.Location(), entity.Location{X: 300, Y: laneCenter(1)}, true))

	sawRed := false
	drive(t, w, a, 1200, func() bool {
		sawRed = sawRed || a.State() == StateRedLight
		return false
	})
	assert.True(t, sawRed)
	assert.False(t, a.Done())
	assert.Less(t, v.Location().X+v.BoundingBox().Extent.X, 100.0)
	assert.Greater(t, v.Location().X, 80.0)
}

func TestIgnoreTrafficLights(t *testing.T) {
	s := openRoad()
	s.TrafficLights = []input.TrafficLight{{S: 100, JunctionLength: 10, Red: 1000}}
	w := lanesim.NewWorld(s, 1)
	v := spawn(t, w, 1, 20)
	a, err := New(v, w, "normal", WithIgnoreTrafficLights(true))
	require.NoError(t, err)
	require.NoError(t, a.SetDestination(v.Location(), entity.Location{X: 200, Y: laneCenter(1)}, true))
	drive(t, w, a, 2000, nil)
	assert.True(t, a.Done())
	assert.Greater(t, v.Location().X, 150.0)
}

func TestOvertakeSlowVehicle(t *testing.T) {
	w := lanesim.NewWorld(openRoad(), 1)
	spawn(t, w, 2, 70) // 静止的前车
	v := spawn(t, w, 2, 20)
	a, err := New(v, w, "normal")
	require.NoError(t, err)
	require.NoError(t, a.SetDestination(v.Location(), entity.Location{X: 900, Y: laneCenter(2)}, true))

	drive(t, w, a, 1000, func() bool {
		overtake, _ := a.Counters()
		return overtake > 0
	})
	overtake, _ := a.Counters()
	require.Positive(t, overtake)
	wp, _ := a.LocalPlanner().IncomingWaypointAndDirection(incomingSteps)
	require.NotNil(t, wp)
	assert.Equal(t, int32(1), wp.LaneID())
}

func TestCautiousNeverOvertakes(t *testing.T) {
	w := lanesim.NewWorld(openRoad(), 1)
	spawn(t, w, 2, 70)
	v := spawn(t, w, 2, 20)
	a, err := New(v, w, "cautious")
	require.NoError(t, err)
	require.NoError(t, a.SetDestination(v.Location(), entity.Location{X: 900, Y: laneCenter(2)}, true))

	drive(t, w, a, 600, nil)
	overtake, _ := a.Counters()
	assert.Equal(t, -1, overtake)
	// 停在前车后方
	assert.Less(t, v.Location().X, 70.0)
	assert.InDelta(t, laneCenter(2), v.Location().Y, 0.5)
	assert.True(t, a.State() == StateVehicleStop || a.State() == StateCarFollowing, a.State().String())
}

func TestTailgatingMovesRight(t *testing.T) {
	w := lanesim.NewWorld(openRoad(), 1)
	npc := spawn(t, w, 2, 20)
	npc.SetAutopilot(true)
	v := spawn(t, w, 2, 60)
	// 本车慢于自动驾驶车辆
	p := behavior.NewNormal()
	p.MaxSpeed = 20
	a, err := NewWithProfile(v, w, p)
	require.NoError(t, err)
	require.NoError(t, a.SetDestination(v.Location(), entity.Location{X: 950, Y: laneCenter(2)}, true))

	drive(t, w, a, 1500, func() bool {
		_, tailgate := a.Counters()
		return tailgate > 0
	})
	_, tailgate := a.Counters()
	require.Positive(t, tailgate)
	wp, _ := a.LocalPlanner().IncomingWaypointAndDirection(incomingSteps)
	require.NotNil(t, wp)
	assert.Equal(t, int32(3), wp.LaneID())
}

func TestWalkerStop(t *testing.T) {
	w := lanesim.NewWorld(openRoad(), 1)
	bp, err := w.BlueprintLibrary().Find("walker.pedestrian.0001")
	require.NoError(t, err)
	_, err = w.SpawnActor(context.Background(), bp, entity.Transform{Location: entity.Location{X: 40, Y: laneCenter(2)}})
	require.NoError(t, err)

	v := spawn(t, w, 2, 20)
	a, err := New(v, w, "normal")
	require.NoError(t, err)
	require.NoError(t, a.SetDestination(v.Location(), entity.Location{X: 300, Y: laneCenter(2)}, true))
	a.UpdateInformation()
	_, err = a.RunStep(false)
	require.NoError(t, err)
	// 行人距离20米，去除包围盒后仍大于刹车距离
	assert.Equal(t, StateCruise, a.State())

	v.SetTransform(entity.Transform{Location: entity.Location{X: 33, Y: laneCenter(2)}})
	a.UpdateInformation()
	control, err := a.RunStep(false)
	require.NoError(t, err)
	assert.Equal(t, StateWalkerStop, a.State())
	assert.Equal(t, a.EmergencyStop(), control)
}

func TestVehicleStopInsideBrakingDistance(t *testing.T) {
	w := lanesim.NewWorld(openRoad(), 1)
	lead := spawn(t, w, 2, 30) // 静止的前车
	v := spawn(t, w, 2, 20)
	a, err := New(v, w, "cautious")
	require.NoError(t, err)
	require.NoError(t, a.SetDestination(v.Location(), entity.Location{X: 300, Y: laneCenter(2)}, true))

	// 车距10米，去除包围盒后5.1米，小于刹车距离6米
	a.UpdateInformation()
	control, err := a.RunStep(false)
	require.NoError(t, err)
	assert.Equal(t, StateVehicleStop, a.State())
	assert.Equal(t, a.EmergencyStop(), control)

	// 车距18米：跟车
	lead.SetTransform(entity.Transform{Location: entity.Location{X: 38, Y: laneCenter(2)}})
	a.UpdateInformation()
	_, err = a.RunStep(false)
	require.NoError(t, err)
	assert.Equal(t, StateCarFollowing, a.State())
}

func TestJunctionTurnSlowsDown(t *testing.T) {
	s := openRoad()
	s.TrafficLights = []input.TrafficLight{{S: 30, JunctionLength: 20, Green: 1000, Red: 1}}
	w := lanesim.NewWorld(s, 1)
	v := spawn(t, w, 2, 20)
	a, err := New(v, w, "aggressive")
	require.NoError(t, err)

	route, err := w.Map().Route(v.Location(), entity.Location{X: 200, Y: laneCenter(2)})
	require.NoError(t, err)
	for i := range route {
		if route[i].Waypoint.IsJunction() {
			route[i].Option = entity.RoadOptionLeft
		}
	}
	a.LocalPlanner().SetGlobalPlan(route, true)

	// 限速60，前看6个路点（s=32）位于路口内
	a.UpdateInformation()
	_, err = a.RunStep(false)
	require.NoError(t, err)
	assert.Equal(t, StateJunctionTurn, a.State())
	assert.InDelta(t, 55, a.LocalPlanner().TargetSpeed(), 1e-9)

	// 直行穿过路口时按正常行驶：min(70, 60-1)
	for i := range route {
		if route[i].Waypoint.IsJunction() {
			route[i].Option = entity.RoadOptionStraight
		}
	}
	a.LocalPlanner().SetGlobalPlan(route, true)
	a.UpdateInformation()
	_, err = a.RunStep(false)
	require.NoError(t, err)
	assert.Equal(t, StateCruise, a.State())
	assert.InDelta(t, 59, a.LocalPlanner().TargetSpeed(), 1e-9)
}
