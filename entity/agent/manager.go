package agent

import (
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity"
)

// sameLane 目标路点是否位于参考路点所在车道偏移laneOffset后的车道（-1为左侧，1为右侧）
func sameLane(target, ref entity.IWaypoint, laneOffset int32) bool {
	return target.RoadID() == ref.RoadID() && target.LaneID() == ref.LaneID()+laneOffset
}

// detect 障碍物检测
// 功能：在给定车道上、给定角度范围与距离内查找最近的Actor
// 参数：egoT-本车位姿，egoWP-本车路点，actors-候选Actor，proximity-检测距离（米），
// lowAngle/upAngle-相对车头朝向的夹角范围（度），laneOffset-目标车道相对本车车道的偏移
// 返回：最近的Actor、距离以及是否找到
// 算法说明：
// 1. 跳过本车以及不在车道范围内的Actor（如人行道上的行人）
// 2. Actor所在车道须为本车车道偏移后的车道，或前方incomingSteps个路点所在车道偏移后的车道
// 3. 在满足距离与角度条件的Actor中取距离最近者
func (a *BehaviorAgent) detect(
	egoT entity.Transform, egoWP entity.IWaypoint, actors []entity.IActor,
	proximity, lowAngle, upAngle float64, laneOffset int32,
) (found entity.IActor, distance float64, ok bool) {
	next, _ := a.planner.IncomingWaypointAndDirection(incomingSteps)
	for _, actor := range actors {
		if actor.ID() == a.vehicle.ID() {
			continue
		}
		t := actor.Transform()
		wp, err := a.m.Waypoint(t.Location)
		if err != nil {
			continue
		}
		if lateral, _ := entity.DistanceToTarget(t.Location, wp.Transform()); lateral > wp.LaneWidth()/2 {
			continue
		}
		if !sameLane(wp, egoWP, laneOffset) && (next == nil || !sameLane(wp, next, laneOffset)) {
			continue
		}
		if !entity.IsWithinDistance(t, egoT, proximity, lowAngle, upAngle) {
			continue
		}
		if d, _ := entity.DistanceToTarget(t.Location, egoT); !ok || d < distance {
			found, distance, ok = actor, d, true
		}
	}
	return
}

func vehiclesAsActors(vs []entity.IVehicle) []entity.IActor {
	return lo.Map(vs, func(v entity.IVehicle, _ int) entity.IActor { return v })
}

// trafficLightManager 信号灯处理
// 功能：本车车道前方检测距离内的停止线为红灯或黄灯时要求停车
// 说明：已经驶入路口的车辆不再因信号灯停车
func (a *BehaviorAgent) trafficLightManager(egoT entity.Transform, egoWP entity.IWaypoint) bool {
	if a.opts.ignoreTrafficLights || egoWP.IsJunction() {
		return false
	}
	maxDistance := a.opts.lightBaseDistance + a.opts.lightSpeedRatio*a.speed/3.6
	for _, light := range a.world.TrafficLights() {
		state := light.State()
		if state != mapv2.LightState_LIGHT_STATE_RED && state != mapv2.LightState_LIGHT_STATE_YELLOW {
			continue
		}
		for _, wp := range light.StopWaypoints() {
			if !sameLane(wp, egoWP, 0) {
				continue
			}
			if entity.IsWithinDistance(wp.Transform(), egoT, maxDistance, 0, 90) {
				return true
			}
		}
	}
	return false
}

// pedestrianAvoidManager 行人检测
// 说明：变道时检测目标车道，检测距离为max(min_proximity_threshold, 限速/2)
func (a *BehaviorAgent) pedestrianAvoidManager(egoT entity.Transform, egoWP entity.IWaypoint) (entity.IActor, float64, bool) {
	if a.opts.ignoreWalkers {
		return nil, 0, false
	}
	walkers := a.world.Walkers()
	proximity := max(a.profile.MinProximityThreshold, a.speedLimit/2)
	switch a.direction {
	case entity.RoadOptionChangeLaneLeft:
		return a.detect(egoT, egoWP, walkers, proximity, 0, 90, -1)
	case entity.RoadOptionChangeLaneRight:
		return a.detect(egoT, egoWP, walkers, proximity, 0, 90, 1)
	default:
		return a.detect(egoT, egoWP, walkers, proximity, 0, 60, 0)
	}
}

// collisionAndCarAvoidManager 周边车辆检测
// 功能：检测前车，并在条件满足时尝试超车或避让后车
// 算法说明：
// 1. 变道时检测目标车道max(min_proximity_threshold, 限速/2)内的车辆
// 2. 否则检测本车道前方max(min_proximity_threshold, 限速/3)内的车辆
// 3. 有更慢的前车、车道保持、不在路口、车速大于10且超车计数器为0时尝试超车
// 4. 没有前车、车道保持、不在路口、车速大于10且避让计数器为0时检查后车
func (a *BehaviorAgent) collisionAndCarAvoidManager(egoT entity.Transform, egoWP entity.IWaypoint) (entity.IActor, float64, bool) {
	if a.opts.ignoreVehicles {
		return nil, 0, false
	}
	vehicles := vehiclesAsActors(a.world.Vehicles())
	switch a.direction {
	case entity.RoadOptionChangeLaneLeft:
		return a.detect(egoT, egoWP, vehicles, max(a.profile.MinProximityThreshold, a.speedLimit/2), 0, 180, -1)
	case entity.RoadOptionChangeLaneRight:
		return a.detect(egoT, egoWP, vehicles, max(a.profile.MinProximityThreshold, a.speedLimit/2), 0, 180, 1)
	}

	vehicle, distance, ok := a.detect(egoT, egoWP, vehicles, max(a.profile.MinProximityThreshold, a.speedLimit/3), 0, 30, 0)
	cruising := a.direction == entity.RoadOptionLaneFollow && !egoWP.IsJunction() && a.speed > 10
	switch {
	case ok && cruising && a.overtakeCounter == 0 && a.speed > entity.Speed(vehicle):
		a.overtake(egoT, egoWP, vehicles)
	case !ok && cruising && a.tailgateCounter == 0:
		a.tailgating(egoT, egoWP, vehicles)
	}
	return vehicle, distance, ok
}

// changeLane 变道到side所在车道，重新规划到终点的路径
func (a *BehaviorAgent) changeLane(side entity.IWaypoint) bool {
	if err := a.SetDestination(side.Transform().Location, a.destination, true); err != nil {
		log.Warnf("vehicle %d: lane change to %v failed: %v", a.vehicle.ID(), side, err)
		return false
	}
	return true
}

func drivable(wp entity.IWaypoint) bool {
	return wp != nil && wp.LaneType() == mapv2.LaneType_LANE_TYPE_DRIVING
}

// overtake 超车
// 功能：左侧（其次右侧）车道允许变道且相应范围内没有车辆时变道超车
func (a *BehaviorAgent) overtake(egoT entity.Transform, egoWP entity.IWaypoint, vehicles []entity.IActor) {
	proximity := max(a.profile.MinProximityThreshold, a.speedLimit/3)
	if left := egoWP.LeftLane(); egoWP.LaneChange().AllowLeft() && drivable(left) {
		if _, _, busy := a.detect(egoT, egoWP, vehicles, proximity, 0, 180, -1); !busy && a.changeLane(left) {
			log.Infof("vehicle %d: overtaking to the left", a.vehicle.ID())
			a.overtakeCounter = maneuverCooldown
			return
		}
	}
	if right := egoWP.RightLane(); egoWP.LaneChange().AllowRight() && drivable(right) {
		if _, _, busy := a.detect(egoT, egoWP, vehicles, proximity, 0, 180, 1); !busy && a.changeLane(right) {
			log.Infof("vehicle %d: overtaking to the right", a.vehicle.ID())
			a.overtakeCounter = maneuverCooldown
		}
	}
}

// tailgating 避让后车
// 功能：正后方有更快的车辆时，右侧（其次左侧）车道允许变道且没有车辆则变道让行
func (a *BehaviorAgent) tailgating(egoT entity.Transform, egoWP entity.IWaypoint, vehicles []entity.IActor) {
	proximity := max(a.profile.MinProximityThreshold, a.speedLimit/2)
	behind, _, ok := a.detect(egoT, egoWP, vehicles, proximity, 160, 181, 0)
	if !ok || a.speed >= entity.Speed(behind) {
		return
	}
	if right := egoWP.RightLane(); egoWP.LaneChange().AllowRight() && drivable(right) {
		if _, _, busy := a.detect(egoT, egoWP, vehicles, proximity, 0, 180, 1); !busy && a.changeLane(right) {
			log.Infof("vehicle %d: tailgating, moving to the right", a.vehicle.ID())
			a.tailgateCounter = maneuverCooldown
			return
		}
	}
	if left := egoWP.LeftLane(); egoWP.LaneChange().AllowLeft() && drivable(left) {
		if _, _, busy := a.detect(egoT, egoWP, vehicles, proximity, 0, 180, -1); !busy && a.changeLane(left) {
			log.Infof("vehicle %d: tailgating, moving to the left", a.vehicle.ID())
			a.tailgateCounter = maneuverCooldown
		}
	}
}

// followSpeed 跟车目标速度（km/h）
// 参数：leadSpeed-前车速度（km/h），distance-去除包围盒后的车距（米）
// 算法说明：
// 1. 相对速度delta_v = max(1, (本车速度-前车速度)/3.6)，碰撞时间ttc = distance/delta_v
// 2. ttc < safety_time：比前车慢speed_decrease
// 3. safety_time <= ttc < 2*safety_time：跟随前车速度（不低于minSpeed）
// 4. 其余情况按正常行驶的目标速度
func (a *BehaviorAgent) followSpeed(leadSpeed, distance float64) float64 {
	normal := min(a.profile.MaxSpeed, a.speedLimit-a.profile.SpeedLimDist)
	deltaV := max(1, (a.speed-leadSpeed)/3.6)
	ttc := distance / deltaV
	switch {
	case ttc > 0 && ttc < a.profile.SafetyTime:
		return min(max(0, leadSpeed-a.profile.SpeedDecrease), normal)
	case ttc >= a.profile.SafetyTime && ttc < 2*a.profile.SafetyTime:
		return min(max(minSpeed, leadSpeed), normal)
	default:
		return normal
	}
}

// carFollowingManager 跟车
func (a *BehaviorAgent) carFollowingManager(vehicle entity.IActor, distance float64, debug bool) entity.VehicleControl {
	a.planner.SetSpeed(a.followSpeed(entity.Speed(vehicle), distance))
	return a.planner.RunStep(debug)
}
