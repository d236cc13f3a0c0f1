package task

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/behavior-agent-go/clock"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity/agent"
	"github.com/tsinghua-fib-lab/behavior-agent-go/output"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/config"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/randengine"
)

const (
	// 退出时恢复设置、销毁Actor使用的超时
	cleanupTimeout = 10 * time.Second
	// 随机出生点发生碰撞时的最多尝试次数
	maxSpawnRetry = 10
)

var ErrNoDestination = errors.New("no reachable destination")

// ego 受行为智能体控制的车辆
type ego struct {
	index   int // 在配置agents中的下标
	cfg     config.Agent
	vehicle entity.IVehicle
	agent   *agent.BehaviorAgent
	control entity.VehicleControl
	arrived bool
}

// Context 仿真任务上下文
// 功能：包含一次运行的所有变量和状态，包括仿真器连接、时钟、智能体、输出
// 说明：sidecar为空时以独立模式运行，不与syncer同步
type Context struct {
	// 关闭指令
	closed atomic.Bool

	// 时钟
	clock *clock.Clock

	// 辅助程序，处理与syncer的步进同步，对外提供RPC
	sidecar *syncer.Sidecar
	// sidecar close channel
	sidecarCloseCh chan struct{}

	// 仿真器客户端与当前世界
	client entity.IClient
	world  entity.IWorld

	// 运行时配置文件
	runtimeConfig *config.RuntimeConfig
	// 随机数引擎（出生点与目的地选择）
	generator *randengine.Engine
	// 运行记录输出
	recorder *output.Recorder

	// 运行前的世界设置，退出时恢复
	originSettings  entity.WorldSettings
	settingsApplied bool

	egos []*ego
	npcs []entity.IVehicle
	// 本次运行生成的全部Actor，退出时批量销毁
	spawned []int32
	// 已占用的出生点下标
	usedSpawns map[int]bool
}

// NewContext 创建新的仿真任务上下文
// 参数：
//   - c: 运行时配置
//   - client: 仿真器客户端
//   - recorder: 运行记录输出，为nil时不输出
//   - sidecar: syncer辅助程序，为nil时以独立模式运行
//
// 算法说明：
// 1. 根据配置创建时钟与随机数引擎
// 2. 注册时钟RPC服务并启动sidecar服务协程（如果有sidecar）
func NewContext(c *config.RuntimeConfig, client entity.IClient, recorder *output.Recorder, sidecar *syncer.Sidecar) *Context {
	if recorder == nil {
		recorder = &output.Recorder{}
	}
	ctx := &Context{
		clock:          clock.New(c.C.Step),
		sidecar:        sidecar,
		sidecarCloseCh: make(chan struct{}),
		client:         client,
		runtimeConfig:  c,
		generator:      randengine.New(c.C.Seed),
		recorder:       recorder,
		usedSpawns:     make(map[int]bool),
	}
	if ctx.sidecar != nil {
		ctx.clock.Register(ctx.sidecar)
		// sidecar协程，用于提供RPC服务
		go func() {
			err := ctx.sidecar.Serve()
			if err != nil {
				log.Panicf("failed to serve: %v", err)
			}
			ctx.sidecarCloseCh <- struct{}{}
		}()
	}
	return ctx
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) World() entity.IWorld {
	return ctx.world
}

// Agents 所有行为智能体，顺序与配置一致
func (ctx *Context) Agents() []*agent.BehaviorAgent {
	return lo.FilterMap(ctx.egos, func(e *ego, _ int) (*agent.BehaviorAgent, bool) {
		return e.agent, e.agent != nil
	})
}

// NPCs 背景车辆
func (ctx *Context) NPCs() []entity.IVehicle {
	return ctx.npcs
}

// Init 初始化仿真世界与智能体
// 算法说明：
// 1. 连接世界，记录原始设置后切换为同步模式，步长与时钟一致，设置天气
// 2. 生成受控车辆（配置的出生点或随机出生点），再生成自动驾驶的背景车辆
// 3. Tick一次，让新车辆进入世界
// 4. 按风格或自定义参数创建智能体，风格不存在时在此返回错误
// 5. 为每个智能体规划到目的地的路径
func (ctx *Context) Init(c context.Context) error {
	ctx.clock.Init()
	cfg := ctx.runtimeConfig.All

	ctx.client.SetTimeout(time.Duration(cfg.World.Timeout * float64(time.Second)))
	world, err := ctx.client.World(c)
	if err != nil {
		return fmt.Errorf("task: get world: %w", err)
	}
	ctx.world = world

	ctx.originSettings = world.Settings()
	settings := ctx.originSettings
	settings.SynchronousMode = cfg.World.SynchronousMode
	settings.FixedDeltaSeconds = ctx.clock.DT
	settings.NoRenderingMode = cfg.World.NoRendering
	if err := world.ApplySettings(c, settings); err != nil {
		return fmt.Errorf("task: apply settings: %w", err)
	}
	ctx.settingsApplied = true
	world.SetWeather(cfg.World.Weather)

	spawnPoints := world.Map().SpawnPoints()
	if len(spawnPoints) == 0 {
		return entity.ErrNoSpawnPoints
	}
	log.Infof("map: %d spawn points", len(spawnPoints))

	if err := ctx.spawnEgos(c, spawnPoints); err != nil {
		return err
	}
	ctx.spawnNPCs(c, spawnPoints)

	if _, err := world.Tick(c); err != nil {
		return fmt.Errorf("task: first tick: %w", err)
	}

	for _, e := range ctx.egos {
		if e.agent, err = ctx.newAgent(e); err != nil {
			return fmt.Errorf("task: agents[%d]: %w", e.index, err)
		}
		if err := ctx.setDestination(e, spawnPoints); err != nil {
			return fmt.Errorf("task: agents[%d]: %w", e.index, err)
		}
		log.Infof("agent %v: %d waypoints to %v", e.agent, e.agent.LocalPlanner().Len(), e.agent.Destination())
	}
	log.Infof("init complete: %d agents, %d npcs", len(ctx.egos), len(ctx.npcs))
	return nil
}

// spawnEgos 按配置生成全部受控车辆，egos保持配置中的顺序
func (ctx *Context) spawnEgos(c context.Context, spawnPoints []entity.Transform) error {
	cfg := ctx.runtimeConfig.All
	// 先生成指定出生点的车辆，随机出生点避开已占用的出生点
	fixed, random := lo.FilterReject(lo.Range(len(cfg.Agents)), func(i int, _ int) bool {
		return cfg.Agents[i].SpawnPoint != nil
	})
	egos := make([]*ego, len(cfg.Agents))
	for _, i := range append(fixed, random...) {
		a := cfg.Agents[i]
		v, err := ctx.spawnEgo(c, i, a, spawnPoints)
		if err != nil {
			return err
		}
		egos[i] = &ego{index: i, cfg: a, vehicle: v}
	}
	ctx.egos = egos
	return nil
}

// spawnEgo 生成受控车辆
// 说明：指定了出生点时只尝试一次；随机出生点遇到碰撞时换一个出生点重试
func (ctx *Context) spawnEgo(c context.Context, index int, a config.Agent, spawnPoints []entity.Transform) (entity.IVehicle, error) {
	bp, err := ctx.world.BlueprintLibrary().Find(a.Blueprint)
	if err != nil {
		return nil, fmt.Errorf("task: agents[%d]: %w", index, err)
	}
	bp.SetAttribute("role_name", "hero")
	if a.Color != "" {
		bp.SetAttribute("color", a.Color)
	}
	if a.SpawnPoint != nil {
		i := *a.SpawnPoint
		if i < 0 || i >= len(spawnPoints) {
			return nil, fmt.Errorf("task: agents[%d]: spawn point %d out of range [0, %d)", index, i, len(spawnPoints))
		}
		v, err := ctx.spawnVehicle(c, bp, i, spawnPoints[i])
		if err != nil {
			return nil, fmt.Errorf("task: agents[%d]: %w", index, err)
		}
		return v, nil
	}
	tries := 0
	for _, i := range ctx.generator.Permutation(len(spawnPoints)) {
		if ctx.usedSpawns[i] {
			continue
		}
		v, err := ctx.spawnVehicle(c, bp, i, spawnPoints[i])
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, entity.ErrSpawnCollision) {
			return nil, fmt.Errorf("task: agents[%d]: %w", index, err)
		}
		log.Warnf("agents[%d]: %v, retry", index, err)
		if tries++; tries >= maxSpawnRetry {
			break
		}
	}
	return nil, fmt.Errorf("task: agents[%d]: %w", index, entity.ErrSpawnCollision)
}

// spawnNPCs 在剩余出生点中随机生成背景车辆，生成失败的跳过
func (ctx *Context) spawnNPCs(c context.Context, spawnPoints []entity.Transform) {
	n := ctx.runtimeConfig.All.NPC
	if n.Count == 0 {
		return
	}
	bp, err := ctx.world.BlueprintLibrary().Find(n.Blueprint)
	if err != nil {
		log.Warnf("skip npcs: %v", err)
		return
	}
	for _, i := range ctx.generator.Permutation(len(spawnPoints)) {
		if len(ctx.npcs) >= n.Count {
			break
		}
		if ctx.usedSpawns[i] {
			continue
		}
		v, err := ctx.spawnVehicle(c, bp, i, spawnPoints[i])
		if err != nil {
			log.Warnf("skip npc at spawn point %d: %v", i, err)
			continue
		}
		v.SetAutopilot(true)
		ctx.npcs = append(ctx.npcs, v)
	}
	if len(ctx.npcs) < n.Count {
		log.Warnf("only %d of %d npcs spawned", len(ctx.npcs), n.Count)
	}
}

func (ctx *Context) spawnVehicle(c context.Context, bp entity.Blueprint, index int, t entity.Transform) (entity.IVehicle, error) {
	actor, err := ctx.world.SpawnActor(c, bp, t)
	if err != nil {
		return nil, err
	}
	ctx.spawned = append(ctx.spawned, actor.ID())
	v, ok := actor.(entity.IVehicle)
	if !ok {
		return nil, fmt.Errorf("task: actor %d of blueprint %s is not a vehicle", actor.ID(), bp.ID)
	}
	ctx.usedSpawns[index] = true
	return v, nil
}

func (ctx *Context) newAgent(e *ego) (*agent.BehaviorAgent, error) {
	opts := []agent.Option{agent.WithDeltaSeconds(ctx.clock.DT)}
	if e.cfg.Profile != nil {
		return agent.NewWithProfile(e.vehicle, ctx.world, *e.cfg.Profile, opts...)
	}
	return agent.New(e.vehicle, ctx.world, string(e.cfg.Behavior), opts...)
}

// setDestination 设置目的地
// 算法说明：
// 1. 配置了目的地下标时直接使用，不能与出生点相同
// 2. 否则打乱出生点，取第一个不同于当前位置且可达的出生点
func (ctx *Context) setDestination(e *ego, spawnPoints []entity.Transform) error {
	start := e.vehicle.Location()
	if e.cfg.Destination != nil {
		i := *e.cfg.Destination
		if i < 0 || i >= len(spawnPoints) {
			return fmt.Errorf("destination %d out of range [0, %d)", i, len(spawnPoints))
		}
		if e.cfg.SpawnPoint != nil && *e.cfg.SpawnPoint == i {
			return fmt.Errorf("destination %d is the spawn point", i)
		}
		return e.agent.SetDestination(start, spawnPoints[i].Location, true)
	}
	for _, i := range ctx.generator.Permutation(len(spawnPoints)) {
		end := spawnPoints[i].Location
		if end.Distance(start) < 1 {
			continue
		}
		if err := e.agent.SetDestination(start, end, true); err != nil {
			log.Debugf("destination %d rejected: %v", i, err)
			continue
		}
		return nil
	}
	return fmt.Errorf("%w from %v", ErrNoDestination, start)
}

// cleanup 恢复世界设置并销毁本次运行生成的全部Actor
func (ctx *Context) cleanup() {
	c, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if ctx.settingsApplied {
		if err := ctx.world.ApplySettings(c, ctx.originSettings); err != nil {
			log.Warnf("restore settings: %v", err)
		}
		ctx.settingsApplied = false
	}
	if len(ctx.spawned) > 0 {
		cmds := lo.Map(ctx.spawned, func(id int32, _ int) entity.Command {
			return entity.Command{DestroyActor: id}
		})
		if err := ctx.client.ApplyBatch(c, cmds); err != nil {
			log.Warnf("destroy actors: %v", err)
		}
		log.Infof("destroyed %d actors", len(cmds))
		ctx.spawned = nil
	}
	if err := ctx.recorder.Close(c); err != nil {
		log.Warnf("close output: %v", err)
	}
}

// Close 关闭sidecar服务并等待退出
func (ctx *Context) Close() {
	if ctx.closed.Load() {
		return
	}
	ctx.closed.Store(true)
	if ctx.sidecar == nil {
		return
	}
	ctx.sidecar.Close()
	// wait for graceful stop
	<-ctx.sidecarCloseCh
}
