package lanesim

import (
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/randengine"
)

const (
	idmTheta      = 4
	viewDistance  = 100.0 // 信号灯与行人的观察距离（米）
	stopMargin    = 1.0   // 停止线前的停车余量（米）
	walkerMargin  = 4.0   // 行人前的停车余量（米）
	defaultNPCMax = 50 / 3.6
)

// autopilot 仿真器内置的自动驾驶（只跟驰，不变道）
type autopilot struct {
	maxA          float64 // 最大加速度（正数）
	usualBrakingA float64 // 常用制动加速度（负数）
	maxBrakingA   float64 // 最大制动加速度（负数）
	maxV          float64 // 最大速度（米/秒）
	minGap        float64 // 最小车距（米）
	headway       float64 // 安全车头时距（秒）
	laneMaxVRatio float64 // 对车道限速的遵守程度，服从截断正态分布
}

func newAutopilot(generator *randengine.Engine) *autopilot {
	return &autopilot{
		maxA:          2,
		usualBrakingA: -4.5,
		maxBrakingA:   -10,
		maxV:          defaultNPCMax,
		minGap:        2,
		headway:       1.5,
		laneMaxVRatio: lo.Clamp(1+0.1*generator.NormFloat64Safe(), 0.8, 1.2),
	}
}

// followImpl 跟车模型核心实现
// 功能：智能驾驶模型(IDM)
// 参数：selfV-本车速度，targetV-目标速度，aheadV-前车速度，distance-车距，minGap-最小车距，headway-安全车头时距
// 返回：加速度（米/秒²）
// 算法说明：
// 1. 距离小于等于0视为碰撞，紧急制动
// 2. 期望车距：s_star = minGap + max(0, v*headway + v*(v-v_ahead)/(2*sqrt(a*b)))
// 3. 加速度：a = maxA * (1 - (v/targetV)^4 - (s_star/distance)^2)
func (p *autopilot) followImpl(selfV, targetV, aheadV, distance, minGap, headway float64) float64 {
	var acc float64
	if distance <= 0 {
		acc = -mathutil.INF
	} else {
		sStar := minGap + math.Max(
			0,
			selfV*headway+selfV*(selfV-aheadV)/2/math.Sqrt(-p.usualBrakingA*p.maxA),
		)
		acc = p.maxA * (1 - math.Pow(selfV/targetV, idmTheta) - math.Pow(sStar/distance, 2))
	}
	return lo.Clamp(acc, p.maxBrakingA, p.maxA)
}

// acceleration 自动驾驶车辆本步的加速度
// 功能：综合前车、信号灯与横穿行人，取最保守的加速度
// 算法说明：
// 1. 目标速度为车道限速乘以遵守程度与最大速度的较小值
// 2. 前车：IDM跟车
// 3. 红灯：在停止线前刹停；黄灯：能以常用制动加速度停下时刹停
// 4. 本车道上的行人：在行人前刹停，停车时以时间步长作为预判时间
func (p *autopilot) acceleration(v *Vehicle, dt float64) float64 {
	w := v.w
	targetV := math.Min(p.maxV, w.m.speedLimit(v.x)/3.6*p.laneMaxVRatio)
	front := v.x + v.extent.X
	stop := func(distance float64) float64 {
		return p.followImpl(v.v, targetV, 0, distance, 0, dt)
	}

	acc := p.followImpl(v.v, targetV, 0, mathutil.INF, p.minGap, p.headway)
	if v.node != nil {
		if next := v.node.Next(); next != nil {
			ahead := next.Value
			acc = math.Min(acc, p.followImpl(
				v.v, targetV, ahead.v, next.S-ahead.extent.X-front, p.minGap, p.headway,
			))
		}
	}
	for _, l := range w.lights {
		d := l.s - front
		if d <= 0 || d > viewDistance {
			continue
		}
		switch l.state() {
		case mapv2.LightState_LIGHT_STATE_RED:
			acc = math.Min(acc, stop(d-stopMargin))
		case mapv2.LightState_LIGHT_STATE_YELLOW:
			if v.v*v.v/2/-p.usualBrakingA < d {
				acc = math.Min(acc, stop(d-stopMargin))
			}
		}
	}
	for _, walker := range w.walkers {
		d := walker.s - front
		if !walker.alive || !walker.onRoad() || d <= 0 || d > viewDistance {
			continue
		}
		if mathutil.Abs(walker.y-v.y) < w.m.road.LaneWidth {
			acc = math.Min(acc, stop(d-walkerMargin))
		}
	}
	return acc
}
