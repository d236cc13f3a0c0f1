package lanesim

import (
	"fmt"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/input"
)

// newProgram 由场景描述生成固定相位信号灯程序（绿-黄-红三相位，所有车道同相）
func newProgram(id int32, laneCount int, tl input.TrafficLight) *mapv2.TrafficLight {
	phase := func(duration float64, state mapv2.LightState) *mapv2.Phase {
		states := make([]mapv2.LightState, laneCount)
		for i := range states {
			states[i] = state
		}
		return &mapv2.Phase{Duration: duration, States: states}
	}
	return &mapv2.TrafficLight{
		JunctionId: id,
		Phases: []*mapv2.Phase{
			phase(tl.Green, mapv2.LightState_LIGHT_STATE_GREEN),
			phase(tl.Yellow, mapv2.LightState_LIGHT_STATE_YELLOW),
			phase(tl.Red, mapv2.LightState_LIGHT_STATE_RED),
		},
	}
}

// TrafficLight 固定相位信号灯
// 功能：按照程序循环切换相位，控制路口停止线处所有车道的通行
type TrafficLight struct {
	w  *World
	id int32
	s  float64 // 停止线位置

	tl        *mapv2.TrafficLight
	step      int     // 当前相位
	remaining float64 // 当前相位剩余时间
	ok        bool    // false表示信号灯失效（全绿灯）
	alive     bool
}

func newTrafficLight(w *World, id int32, tl input.TrafficLight) *TrafficLight {
	l := &TrafficLight{
		w:     w,
		id:    id,
		s:     tl.S,
		tl:    newProgram(id, w.m.road.LaneCount, tl),
		ok:    true,
		alive: true,
	}
	l.step = 0
	l.remaining = l.tl.Phases[0].Duration
	// 初始偏移
	l.update(tl.Offset)
	return l
}

// update 推进信号灯时间
// 功能：扣减剩余时间，跨越相位时按程序顺序切换（单步可跨越多个相位）
func (l *TrafficLight) update(dt float64) {
	l.remaining -= dt
	for l.remaining <= 0 {
		l.step = (l.step + 1) % len(l.tl.Phases)
		l.remaining += l.tl.Phases[l.step].Duration
	}
}

// state 当前相位下的灯色（调用方持有世界锁）
func (l *TrafficLight) state() mapv2.LightState {
	if !l.ok {
		return mapv2.LightState_LIGHT_STATE_GREEN
	}
	return l.tl.Phases[l.step].States[0]
}

func (l *TrafficLight) String() string {
	return fmt.Sprintf("TrafficLight{id=%d, s=%.1f, state=%v}", l.id, l.s, l.State())
}

func (l *TrafficLight) ID() int32 {
	return l.id
}

func (l *TrafficLight) TypeID() string {
	return "traffic.traffic_light"
}

func (l *TrafficLight) Transform() entity.Transform {
	return entity.Transform{Location: entity.Location{X: l.s, Y: -2, Z: 5}}
}

func (l *TrafficLight) Location() entity.Location {
	return l.Transform().Location
}

func (l *TrafficLight) Velocity() entity.Vector3D {
	return entity.Vector3D{}
}

func (l *TrafficLight) BoundingBox() entity.BoundingBox {
	return entity.BoundingBox{Extent: entity.Vector3D{X: 0.5, Y: 0.5, Z: 3}}
}

func (l *TrafficLight) SetTransform(entity.Transform) {
	log.Warnf("traffic light %d cannot be moved", l.id)
}

func (l *TrafficLight) IsAlive() bool {
	l.w.mtx.RLock()
	defer l.w.mtx.RUnlock()
	return l.alive
}

func (l *TrafficLight) Destroy() error {
	return fmt.Errorf("lanesim: traffic light %d belongs to the map and cannot be destroyed", l.id)
}

// State 当前灯色
func (l *TrafficLight) State() entity.LightState {
	l.w.mtx.RLock()
	defer l.w.mtx.RUnlock()
	return l.state()
}

// Remaining 当前灯色的剩余时间
func (l *TrafficLight) Remaining() float64 {
	l.w.mtx.RLock()
	defer l.w.mtx.RUnlock()
	return l.remaining
}

// StopWaypoints 各车道停止线处的路点
func (l *TrafficLight) StopWaypoints() []entity.IWaypoint {
	wps := make([]entity.IWaypoint, 0, l.w.m.road.LaneCount)
	for lane := int32(1); lane <= int32(l.w.m.road.LaneCount); lane++ {
		wps = append(wps, l.w.m.waypoint(lane, l.s))
	}
	return wps
}

// set 替换信号灯程序，从第一个相位开始执行（调用方持有世界锁）
// 说明：程序的每个相位必须为每条车道给出灯色，且总时长为正
func (l *TrafficLight) set(tl *mapv2.TrafficLight) error {
	if tl.JunctionId != l.id {
		return fmt.Errorf("set traffic light %d with wrong id %d", l.id, tl.JunctionId)
	}
	if len(tl.Phases) == 0 {
		return fmt.Errorf("set with empty traffic light")
	}
	total := 0.0
	for _, p := range tl.Phases {
		if len(p.States) != l.w.m.road.LaneCount {
			return fmt.Errorf("number of lanes %d and traffic light states %d does not match", l.w.m.road.LaneCount, len(p.States))
		}
		if p.Duration < 0 {
			return fmt.Errorf("negative phase duration %v", p.Duration)
		}
		total += p.Duration
	}
	if total <= 0 {
		return fmt.Errorf("traffic light %d has no positive phase duration", l.id)
	}
	l.tl = tl
	l.step = 0
	l.remaining = tl.Phases[0].Duration
	l.update(0)
	return nil
}

// setPhase 设置当前相位与剩余时间（调用方持有世界锁）
func (l *TrafficLight) setPhase(index int32, remaining float64) error {
	if index < 0 || int(index) >= len(l.tl.Phases) {
		return fmt.Errorf("phase index %d out of range [0, %d)", index, len(l.tl.Phases))
	}
	l.step = int(index)
	l.remaining = remaining
	l.update(0)
	return nil
}
