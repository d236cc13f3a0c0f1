package task

import (
	"context"
	"flag"
	"fmt"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity"
	"github.com/tsinghua-fib-lab/behavior-agent-go/output"
)

const (
	SelfName = "behavior-agent" // 本程序在模拟任务集群中的名字

	followDistance = 8 // follow视角在车后的距离（米）
	followHeight   = 4 // follow视角的高度（米）
	followPitch    = -15
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
	debug             = flag.Bool("agent.debug", false, "输出智能体决策调试日志")
)

// active 尚未到达目的地的智能体
func (ctx *Context) active() []*ego {
	return lo.Filter(ctx.egos, func(e *ego, _ int) bool { return !e.arrived })
}

// prepare 准备阶段，每步执行一次
// 算法说明：
// 1. 所有智能体并行更新车速、限速与前方路点
// 2. Tick推进仿真器，推进时钟
// 3. 心跳日志
func (ctx *Context) prepare(c context.Context, egos []*ego) error {
	parallel.GoFor(egos, func(e *ego) { e.agent.UpdateInformation() })
	frame, err := ctx.world.Tick(c)
	if err != nil {
		return fmt.Errorf("task: tick at step %d: %w", ctx.clock.Step(), err)
	}
	ctx.clock.Advance(frame)
	if step := ctx.clock.Step(); step%int32(*heartBeatInterval) == 0 {
		log.Infof("STEP: %d(%v) frame %d, active agents: %d", step, ctx.clock, frame, len(egos))
	}
	return nil
}

// update 更新阶段，每步执行一次
// 算法说明：
// 1. 已经走完路径的智能体标记为到达，此后保持紧急停车
// 2. 观察者视角跟随第一个未到达的智能体
// 3. 局部规划器目标速度设为限速，智能体并行执行一步行为规划并下发控制
// 4. 记录本步状态
// 返回：是否全部到达
func (ctx *Context) update(c context.Context, egos []*ego) bool {
	for _, e := range egos {
		if e.agent.Done() {
			e.arrived = true
			e.control = e.agent.EmergencyStop()
			e.vehicle.ApplyControl(e.control)
			log.Infof("agent %v: the target has been reached at step %d", e.agent, ctx.clock.Step())
		}
	}
	running := lo.Filter(egos, func(e *ego, _ int) bool { return !e.arrived })
	if len(running) == 0 {
		ctx.record(c)
		return true
	}
	ctx.updateSpectator(running[0].vehicle.Transform())

	parallel.GoFor(running, func(e *ego) {
		e.agent.LocalPlanner().SetSpeed(e.vehicle.SpeedLimit())
		control, err := e.agent.RunStep(*debug)
		if err != nil {
			log.Warnf("agent %v: run step: %v, emergency stop", e.agent, err)
			control = e.agent.EmergencyStop()
		}
		e.control = control
		e.vehicle.ApplyControl(control)
	})
	ctx.record(c)
	return false
}

// updateSpectator 按配置移动观察者视角
func (ctx *Context) updateSpectator(target entity.Transform) {
	s := ctx.runtimeConfig.All.Spectator
	if t, ok := spectatorTransform(s.Mode, s.Height, target); ok {
		ctx.world.Spectator().SetTransform(t)
	}
}

// spectatorTransform 计算观察者视角位置
// 参数：mode-top俯视，follow车后跟随，none不控制；height-俯视高度；target-跟随车辆的位置姿态
func spectatorTransform(mode string, height float64, target entity.Transform) (entity.Transform, bool) {
	switch mode {
	case "top":
		loc := target.Location
		loc.Z += height
		return entity.Transform{Location: loc, Rotation: entity.Rotation{Pitch: -90}}, true
	case "follow":
		f := target.ForwardVector()
		loc := target.Location
		loc.X -= f.X * followDistance
		loc.Y -= f.Y * followDistance
		loc.Z += followHeight
		return entity.Transform{
			Location: loc,
			Rotation: entity.Rotation{Pitch: followPitch, Yaw: target.Rotation.Yaw},
		}, true
	default:
		return entity.Transform{}, false
	}
}

// record 记录所有智能体本步的状态与控制
func (ctx *Context) record(c context.Context) {
	if !ctx.recorder.Enabled() {
		return
	}
	step, t, frame := ctx.clock.Step(), ctx.clock.Time(), ctx.clock.Frame
	records := lo.Map(ctx.egos, func(e *ego, _ int) output.Record {
		a := e.agent
		tf := e.vehicle.Transform()
		overtake, tailgate := a.Counters()
		return output.Record{
			Step:            step,
			T:               t,
			Frame:           frame,
			VehicleID:       e.vehicle.ID(),
			Style:           a.Style(),
			State:           a.State().String(),
			X:               tf.Location.X,
			Y:               tf.Location.Y,
			Yaw:             tf.Rotation.Yaw,
			Speed:           a.Speed(),
			SpeedLimit:      a.SpeedLimit(),
			TargetSpeed:     a.LocalPlanner().TargetSpeed(),
			Throttle:        e.control.Throttle,
			Steer:           e.control.Steer,
			Brake:           e.control.Brake,
			OvertakeCounter: overtake,
			TailgateCounter: tailgate,
			Stopped:         a.State().IsStop(),
			Done:            e.arrived,
		}
	})
	ctx.recorder.Add(records...)
	if err := ctx.recorder.StepDone(c); err != nil {
		log.Warnf("output at step %d: %v", step, err)
	}
}

// Run 运行
// 功能：初始化后逐步推进，直到全部智能体到达、达到最大步数、syncer要求关闭或ctx取消
// 说明：无论以何种方式退出，都会恢复世界设置并销毁生成的Actor
func (ctx *Context) Run(c context.Context) error {
	defer ctx.cleanup()
	// 初始化
	if err := ctx.Init(c); err != nil {
		return err
	}
	// init syncer
	if ctx.sidecar != nil {
		ctx.sidecar.Step(false)
	}
	for {
		if err := c.Err(); err != nil {
			log.Infof("interrupted at step %d: %v", ctx.clock.Step(), err)
			return err
		}
		egos := ctx.active()
		if err := ctx.prepare(c, egos); err != nil {
			if c.Err() != nil {
				log.Infof("interrupted at step %d: %v", ctx.clock.Step(), err)
				return c.Err()
			}
			return err
		}
		// 通知准备阶段完成
		if ctx.sidecar != nil {
			ctx.sidecar.NotifyStepReady()
		}
		if ctx.update(c, egos) {
			log.Infof("all agents arrived at step %d (%v)", ctx.clock.Step(), ctx.clock)
			break
		}
		if ctx.clock.Ended() {
			log.Infof("step budget reached at step %d", ctx.clock.Step())
			break
		}
		close := false
		if ctx.sidecar != nil {
			close = ctx.sidecar.Step(ctx.clock.Step()+1 >= ctx.clock.END_STEP)
		}
		if close || ctx.closed.Load() {
			break
		}
	}
	log.Infof("engine complete")
	return nil
}
