package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity/agent/behavior"
	"github.com/tsinghua-fib-lab/behavior-agent-go/lanesim"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/config"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/input"
)

// shortRoad 500米三车道直道，出生点均在道路前半段
func shortRoad() *input.Scenario {
	return &input.Scenario{
		Name: "short",
		Road: input.Road{ID: 1, Length: 500, LaneCount: 3, LaneWidth: 3.5, SpeedLimit: 60},
		SpawnPoints: []input.SpawnPoint{
			{Lane: 2, S: 20},
			{Lane: 2, S: 200},
			{Lane: 1, S: 40},
			{Lane: 3, S: 40},
		},
	}
}

func index(i int) *int {
	return &i
}

func runtimeConfig(t *testing.T, total int32, agents ...config.Agent) *config.RuntimeConfig {
	c, err := config.NewRuntimeConfig(config.Config{
		Control: config.Control{Step: config.ControlStep{Total: total, Interval: 0.05}, Seed: 7},
		World:   config.World{SynchronousMode: true},
		Agents:  agents,
	})
	require.NoError(t, err)
	return c
}

func TestRunArrives(t *testing.T) {
	w := lanesim.NewWorld(shortRoad(), 1)
	origin := w.Settings()
	c := runtimeConfig(t, 2000, config.Agent{Behavior: behavior.Normal, SpawnPoint: index(0), Destination: index(1)})

	ctx := NewContext(c, lanesim.NewClient(w), nil, nil)
	require.NoError(t, ctx.Run(context.Background()))
	defer ctx.Close()

	agents := ctx.Agents()
	require.Len(t, agents, 1)
	assert.True(t, agents[0].Done())
	assert.Equal(t, "normal", agents[0].Style())
	assert.Less(t, ctx.Clock().Step(), int32(2000))
	assert.Positive(t, ctx.Clock().Frame)

	// 退出后恢复设置并销毁车辆
	assert.Equal(t, origin, w.Settings())
	assert.Empty(t, w.Vehicles())
}

func TestRunStepBudget(t *testing.T) {
	w := lanesim.NewWorld(shortRoad(), 1)
	c := runtimeConfig(t, 10, config.Agent{Behavior: behavior.Aggressive, SpawnPoint: index(0)})
	c.All.NPC.Count = 2
	c.All.Spectator.Mode = "follow"

	ctx := NewContext(c, lanesim.NewClient(w), nil, nil)
	require.NoError(t, ctx.Run(context.Background()))

	assert.Equal(t, int32(10), ctx.Clock().Step())
	assert.InDelta(t, 0.5, ctx.Clock().Time(), 1e-9)
	require.Len(t, ctx.Agents(), 1)
	assert.False(t, ctx.Agents()[0].Done())
	assert.Len(t, ctx.NPCs(), 2)
	assert.Empty(t, w.Vehicles())
	// 观察者视角跟随在车辆后上方
	assert.Equal(t, float64(followPitch), w.Spectator().Transform().Rotation.Pitch)
}

func TestRunSynchronousSettings(t *testing.T) {
	w := lanesim.NewWorld(shortRoad(), 1)
	c := runtimeConfig(t, 1, config.Agent{Behavior: behavior.Cautious, SpawnPoint: index(0), Destination: index(1)})
	c.C.Step.Interval = 0.1
	c.All.Control.Step.Interval = 0.1

	ctx := NewContext(c, lanesim.NewClient(w), nil, nil)
	require.NoError(t, ctx.Init(context.Background()))
	s := w.Settings()
	assert.True(t, s.SynchronousMode)
	assert.Equal(t, 0.1, s.FixedDeltaSeconds)
	assert.Len(t, w.Vehicles(), 1)

	ctx.cleanup()
	assert.False(t, w.Settings().SynchronousMode)
	assert.Empty(t, w.Vehicles())
}

func TestRunUnknownStyleCleansUp(t *testing.T) {
	w := lanesim.NewWorld(shortRoad(), 1)
	origin := w.Settings()
	// 直接构造运行时配置（不经过NewRuntimeConfig），创建智能体时仍会拒绝未知风格
	cfg := config.Config{
		Control: config.Control{Step: config.ControlStep{Total: 100, Interval: 0.05}},
		World:   config.World{SynchronousMode: true, Timeout: 1},
		Agents: []config.Agent{{
			Blueprint:  config.DefaultBlueprint,
			Behavior:   behavior.Style("reckless"),
			SpawnPoint: index(0),
		}},
	}
	ctx := NewContext(&config.RuntimeConfig{All: cfg, C: cfg.Control}, lanesim.NewClient(w), nil, nil)
	err := ctx.Run(context.Background())
	assert.ErrorIs(t, err, behavior.ErrUnknownStyle)
	assert.Equal(t, int32(0), ctx.Clock().Step())
	assert.Equal(t, origin, w.Settings())
	assert.Empty(t, w.Vehicles())
}

func TestRunCustomProfile(t *testing.T) {
	w := lanesim.NewWorld(shortRoad(), 1)
	p := behavior.NewCautious()
	p.MaxSpeed = 20
	c := runtimeConfig(t, 50, config.Agent{Profile: &p, SpawnPoint: index(0), Destination: index(1)})

	ctx := NewContext(c, lanesim.NewClient(w), nil, nil)
	require.NoError(t, ctx.Run(context.Background()))
	require.Len(t, ctx.Agents(), 1)
	assert.Equal(t, 20.0, ctx.Agents()[0].Profile().MaxSpeed)
	assert.Equal(t, "custom", ctx.Agents()[0].Style())
}

func TestRunDestinationErrors(t *testing.T) {
	w := lanesim.NewWorld(shortRoad(), 1)
	c := runtimeConfig(t, 10, config.Agent{Behavior: behavior.Normal, SpawnPoint: index(1), Destination: index(1)})
	ctx := NewContext(c, lanesim.NewClient(w), nil, nil)
	assert.Error(t, ctx.Run(context.Background()))
	assert.Empty(t, w.Vehicles())

	// 最前方的出生点没有可达的目的地
	w = lanesim.NewWorld(shortRoad(), 1)
	c = runtimeConfig(t, 10, config.Agent{Behavior: behavior.Normal, SpawnPoint: index(1)})
	ctx = NewContext(c, lanesim.NewClient(w), nil, nil)
	assert.ErrorIs(t, ctx.Run(context.Background()), ErrNoDestination)
	assert.Empty(t, w.Vehicles())
}

func TestFixedSpawnPointReservedFirst(t *testing.T) {
	for k := range shortRoad().SpawnPoints {
		w := lanesim.NewWorld(shortRoad(), 1)
		c := runtimeConfig(t, 10,
			config.Agent{Behavior: behavior.Normal},
			config.Agent{Behavior: behavior.Cautious, SpawnPoint: index(k)},
		)
		ctx := NewContext(c, lanesim.NewClient(w), nil, nil)
		world, err := ctx.client.World(context.Background())
		require.NoError(t, err)
		ctx.world = world
		spawnPoints := world.Map().SpawnPoints()

		// 随机出生点的智能体排在前面，也不会占用后面智能体指定的出生点
		require.NoError(t, ctx.spawnEgos(context.Background(), spawnPoints), "spawn point %d", k)
		require.Len(t, ctx.egos, 2)
		assert.Equal(t, 0, ctx.egos[0].index)
		assert.Equal(t, 1, ctx.egos[1].index)
		got := ctx.egos[1].vehicle.Transform().Location
		assert.InDelta(t, spawnPoints[k].Location.X, got.X, 1e-6)
		assert.InDelta(t, spawnPoints[k].Location.Y, got.Y, 1e-6)
		assert.True(t, ctx.usedSpawns[k])
		assert.Len(t, ctx.usedSpawns, 2)
		ctx.cleanup()
		assert.Empty(t, w.Vehicles())
	}
}

func TestRunSpawnPointOutOfRange(t *testing.T) {
	w := lanesim.NewWorld(shortRoad(), 1)
	c := runtimeConfig(t, 10, config.Agent{Behavior: behavior.Normal, SpawnPoint: index(9)})
	ctx := NewContext(c, lanesim.NewClient(w), nil, nil)
	assert.Error(t, ctx.Run(context.Background()))
	assert.Empty(t, w.Vehicles())
}

func TestRunCancelled(t *testing.T) {
	w := lanesim.NewWorld(shortRoad(), 1)
	c := runtimeConfig(t, 10, config.Agent{Behavior: behavior.Normal})
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	ctx := NewContext(c, lanesim.NewClient(w), nil, nil)
	assert.ErrorIs(t, ctx.Run(cancelled), entity.ErrTimeout)
	assert.Empty(t, w.Vehicles())
}

func TestSpectatorTransform(t *testing.T) {
	target := entity.Transform{
		Location: entity.Location{X: 100, Y: 5, Z: 1},
		Rotation: entity.Rotation{Yaw: 0},
	}
	top, ok := spectatorTransform("top", 40, target)
	require.True(t, ok)
	assert.Equal(t, entity.Location{X: 100, Y: 5, Z: 41}, top.Location)
	assert.Equal(t, -90.0, top.Rotation.Pitch)

	follow, ok := spectatorTransform("follow", 40, target)
	require.True(t, ok)
	assert.InDelta(t, 100-followDistance, follow.Location.X, 1e-9)
	assert.InDelta(t, 5, follow.Location.Y, 1e-9)
	assert.InDelta(t, 1+followHeight, follow.Location.Z, 1e-9)
	assert.Equal(t, 0.0, follow.Rotation.Yaw)

	_, ok = spectatorTransform("none", 40, target)
	assert.False(t, ok)
}
