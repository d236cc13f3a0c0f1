package agent

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity"
)

const (
	baseMinDistance = 3.0 // 路点到达判定的基础距离（米）
	distanceRatio   = 0.5 // 到达判定距离随车速（米/秒）增加的比例
	lastMinDistance = 1.0 // 最后一个路点的到达判定距离（米）
)

// LocalPlanner 局部规划器
// 功能：跟踪全局路径的路点队列，用PID控制器输出控制指令
// 说明：不做轨迹规划，只沿仿真器地图给出的路点行驶
type LocalPlanner struct {
	vehicle    entity.IVehicle
	queue      []entity.RouteStep
	controller *vehicleController

	targetSpeed      float64 // 目标速度（km/h）
	targetWaypoint   entity.IWaypoint
	targetRoadOption entity.RoadOption
	minDistance      float64
}

// NewLocalPlanner 创建局部规划器
// 参数：vehicle-被控车辆，dt-控制周期（秒）
func NewLocalPlanner(vehicle entity.IVehicle, dt float64) *LocalPlanner {
	return &LocalPlanner{
		vehicle:          vehicle,
		controller:       newVehicleController(dt, defaultLateral, defaultLongitudinal, vehicle.Control().Steer),
		targetSpeed:      vehicle.SpeedLimit(),
		targetRoadOption: entity.RoadOptionVoid,
		minDistance:      baseMinDistance,
	}
}

// SetSpeed 设置目标速度（km/h），负数按0处理
func (p *LocalPlanner) SetSpeed(speed float64) {
	p.targetSpeed = max(speed, 0)
}

// TargetSpeed 目标速度（km/h）
func (p *LocalPlanner) TargetSpeed() float64 {
	return p.targetSpeed
}

// SetGlobalPlan 载入全局路径
// 参数：route-路点序列，clean-是否丢弃尚未走完的旧路点
func (p *LocalPlanner) SetGlobalPlan(route []entity.RouteStep, clean bool) {
	if clean {
		p.queue = p.queue[:0]
	}
	p.queue = append(p.queue, route...)
}

// Done 路点队列是否已经走完
func (p *LocalPlanner) Done() bool {
	return len(p.queue) == 0
}

// Len 剩余路点个数
func (p *LocalPlanner) Len() int {
	return len(p.queue)
}

// TargetWaypoint 上一次控制所跟踪的路点，尚未控制时为nil
func (p *LocalPlanner) TargetWaypoint() entity.IWaypoint {
	return p.targetWaypoint
}

// TargetRoadOption 上一次控制所跟踪路点的行驶意图，尚未控制时为RoadOptionVoid
func (p *LocalPlanner) TargetRoadOption() entity.RoadOption {
	return p.targetRoadOption
}

// IncomingWaypointAndDirection 前方第steps个路点及其行驶意图
// 说明：剩余路点不足时返回最后一个，队列为空时返回nil与RoadOptionVoid
func (p *LocalPlanner) IncomingWaypointAndDirection(steps int) (entity.IWaypoint, entity.RoadOption) {
	if len(p.queue) == 0 {
		return nil, entity.RoadOptionVoid
	}
	step := p.queue[lo.Clamp(steps, 0, len(p.queue)-1)]
	return step.Waypoint, step.Option
}

// RunStep 执行一步局部规划
// 功能：清理已经到达的路点，向队首路点行驶
// 参数：debug-是否输出跟踪路点
// 返回：控制指令，路点走完时刹车
// 算法说明：
// 1. 到达判定距离随车速增加：baseMinDistance + distanceRatio * v
// 2. 从队首开始移除距离小于判定距离或已在车后方的路点，遇到第一个未到达的路点即停止
// 3. 最后一个路点只有足够接近（或已在车后方）时才移除
func (p *LocalPlanner) RunStep(debug bool) entity.VehicleControl {
	t := p.vehicle.Transform()
	speed := entity.Speed(p.vehicle)
	p.minDistance = baseMinDistance + distanceRatio*speed/3.6

	removed := 0
	for i, step := range p.queue {
		minDistance := lo.Ternary(i == len(p.queue)-1, lastMinDistance, p.minDistance)
		distance, angle := entity.DistanceToTarget(step.Waypoint.Transform().Location, t)
		if distance >= minDistance && angle <= 90 {
			break
		}
		removed++
	}
	p.queue = p.queue[removed:]

	if len(p.queue) == 0 {
		return entity.VehicleControl{Brake: 1}
	}
	p.targetWaypoint, p.targetRoadOption = p.queue[0].Waypoint, p.queue[0].Option
	control := p.controller.step(p.targetSpeed, speed, p.targetWaypoint.Transform().Location, t)
	if debug {
		log.Debugf("vehicle %d: target %v (%v) at %.1f km/h, control %+v",
			p.vehicle.ID(), p.targetWaypoint.Transform().Location, p.targetRoadOption, p.targetSpeed, control)
	}
	return control
}
