// 行为智能体：按照驾驶风格对信号灯、行人与周边车辆做出反应，并沿全局路径行驶
package agent

import (
	"fmt"

	"github.com/tsinghua-fib-lab/behavior-agent-go/entity"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity/agent/behavior"
)

const (
	minSpeed         = 5.0 // 跟车时的最低目标速度（km/h）
	junctionSlowdown = 5.0 // 路口转弯时低于限速的幅度（km/h）
	maneuverCooldown = 200 // 完成变道后再次变道前的冷却步数
	incomingSteps    = 5   // 检查前方路径上障碍物时向前看的路点数
)

type options struct {
	maxBrake            float64
	dt                  float64
	lightBaseDistance   float64
	lightSpeedRatio     float64
	ignoreTrafficLights bool
	ignoreVehicles      bool
	ignoreWalkers       bool
}

// Option 智能体选项
type Option func(*options)

// WithMaxBrake 紧急停车时的刹车量，默认0.5
func WithMaxBrake(brake float64) Option {
	return func(o *options) { o.maxBrake = brake }
}

// WithDeltaSeconds 控制周期（秒），默认0.05
func WithDeltaSeconds(dt float64) Option {
	return func(o *options) { o.dt = dt }
}

// WithTrafficLightDistance 信号灯的检测距离：base + ratio * 车速（米/秒），默认5 + 2v
func WithTrafficLightDistance(base, ratio float64) Option {
	return func(o *options) { o.lightBaseDistance, o.lightSpeedRatio = base, ratio }
}

// WithIgnoreTrafficLights 忽略信号灯
func WithIgnoreTrafficLights(ignore bool) Option {
	return func(o *options) { o.ignoreTrafficLights = ignore }
}

// WithIgnoreVehicles 忽略其他车辆
func WithIgnoreVehicles(ignore bool) Option {
	return func(o *options) { o.ignoreVehicles = ignore }
}

// WithIgnoreWalkers 忽略行人
func WithIgnoreWalkers(ignore bool) Option {
	return func(o *options) { o.ignoreWalkers = ignore }
}

// BehaviorAgent 行为智能体
// 功能：每步依次处理信号灯、行人、周边车辆、路口与正常行驶，输出控制指令
// 说明：
// 1. 驾驶风格参数在创建时复制，智能体之间互不影响
// 2. 超车与避让后车的计数器属于智能体自身状态：为0时允许变道，变道后置为冷却步数并逐步减到0，负数永不允许
// 3. 同一个智能体的方法不可并发调用，不同智能体可以并发执行
type BehaviorAgent struct {
	vehicle entity.IVehicle
	world   entity.IWorld
	m       entity.IMap
	style   string
	profile behavior.Profile
	planner *LocalPlanner
	opts    options

	// UpdateInformation中更新的信息
	speed             float64
	speedLimit        float64
	direction         entity.RoadOption
	incomingDirection entity.RoadOption
	incomingWaypoint  entity.IWaypoint
	lookAheadSteps    int

	destination     entity.Location
	overtakeCounter int
	tailgateCounter int
	state           State
}

// New 按驾驶风格名称创建智能体
// 参数：vehicle-被控车辆，world-所在世界，style-cautious/normal/aggressive（区分大小写）
// 返回：智能体，风格未知时返回包装了behavior.ErrUnknownStyle的错误且不返回智能体
func New(vehicle entity.IVehicle, world entity.IWorld, style string, opts ...Option) (*BehaviorAgent, error) {
	profile, err := behavior.Lookup(style)
	if err != nil {
		return nil, fmt.Errorf("create behavior agent for vehicle %d: %w", vehicle.ID(), err)
	}
	a := newAgent(vehicle, world, profile, opts)
	a.style = style
	return a, nil
}

// NewWithProfile 使用自定义驾驶风格参数创建智能体
func NewWithProfile(vehicle entity.IVehicle, world entity.IWorld, profile behavior.Profile, opts ...Option) (*BehaviorAgent, error) {
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("create behavior agent for vehicle %d: %w", vehicle.ID(), err)
	}
	a := newAgent(vehicle, world, profile, opts)
	a.style = "custom"
	return a, nil
}

func newAgent(vehicle entity.IVehicle, world entity.IWorld, profile behavior.Profile, opts []Option) *BehaviorAgent {
	o := options{
		maxBrake:          0.5,
		dt:                0.05,
		lightBaseDistance: 5,
		lightSpeedRatio:   2,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &BehaviorAgent{
		vehicle:           vehicle,
		world:             world,
		m:                 world.Map(),
		profile:           profile,
		planner:           NewLocalPlanner(vehicle, o.dt),
		opts:              o,
		direction:         entity.RoadOptionLaneFollow,
		incomingDirection: entity.RoadOptionLaneFollow,
		overtakeCounter:   profile.OvertakeCounter,
		tailgateCounter:   profile.TailgateCounter,
	}
}

func (a *BehaviorAgent) String() string {
	return fmt.Sprintf("BehaviorAgent{vehicle=%d, style=%s, state=%v}", a.vehicle.ID(), a.style, a.state)
}

// Vehicle 被控车辆
func (a *BehaviorAgent) Vehicle() entity.IVehicle { return a.vehicle }

// Style 驾驶风格名称，自定义参数时为custom
func (a *BehaviorAgent) Style() string { return a.style }

// Profile 驾驶风格参数的副本
func (a *BehaviorAgent) Profile() behavior.Profile { return a.profile }

// LocalPlanner 局部规划器
func (a *BehaviorAgent) LocalPlanner() *LocalPlanner { return a.planner }

// State 上一步决策所走的分支
func (a *BehaviorAgent) State() State { return a.state }

// Speed 最近一次更新时的车速（km/h）
func (a *BehaviorAgent) Speed() float64 { return a.speed }

// SpeedLimit 最近一次更新时的道路限速（km/h）
func (a *BehaviorAgent) SpeedLimit() float64 { return a.speedLimit }

// Counters 超车与避让后车计数器的当前值
func (a *BehaviorAgent) Counters() (overtake, tailgate int) {
	return a.overtakeCounter, a.tailgateCounter
}

// Destination 终点
func (a *BehaviorAgent) Destination() entity.Location { return a.destination }

// Done 是否已经走完全局路径
func (a *BehaviorAgent) Done() bool {
	return a.planner.Done()
}

// SetDestination 规划从start到end的全局路径并载入局部规划器
// 参数：start-起点，end-终点，clean-是否丢弃尚未走完的旧路径
func (a *BehaviorAgent) SetDestination(start, end entity.Location, clean bool) error {
	route, err := a.m.Route(start, end)
	if err != nil {
		return fmt.Errorf("vehicle %d: plan route: %w", a.vehicle.ID(), err)
	}
	a.destination = end
	a.planner.SetGlobalPlan(route, clean)
	log.Debugf("vehicle %d: route with %d waypoints from %v to %v", a.vehicle.ID(), len(route), start, end)
	return nil
}

// UpdateInformation 更新车速、限速、行驶意图与前方路点
// 算法说明：
// 1. 局部规划器的目标速度先设为min(限速, max_speed)
// 2. 前看路点数为int(限速/10)
// 3. 行驶意图未知时按LANEFOLLOW处理
func (a *BehaviorAgent) UpdateInformation() {
	a.speed = entity.Speed(a.vehicle)
	a.speedLimit = a.vehicle.SpeedLimit()
	a.planner.SetSpeed(min(a.speedLimit, a.profile.MaxSpeed))
	a.direction = a.planner.TargetRoadOption()
	if a.direction == entity.RoadOptionVoid {
		a.direction = entity.RoadOptionLaneFollow
	}
	a.lookAheadSteps = int(a.speedLimit / 10)
	a.incomingWaypoint, a.incomingDirection = a.planner.IncomingWaypointAndDirection(a.lookAheadSteps)
	if a.incomingDirection == entity.RoadOptionVoid {
		a.incomingDirection = entity.RoadOptionLaneFollow
	}
}

// EmergencyStop 紧急停车：油门为0，刹车为最大刹车量，不拉手刹
func (a *BehaviorAgent) EmergencyStop() entity.VehicleControl {
	return entity.VehicleControl{Throttle: 0, Brake: a.opts.maxBrake, HandBrake: false}
}

// RunStep 执行一步行为规划
// 功能：按优先级依次处理信号灯、行人、周边车辆、路口与正常行驶
// 参数：debug-是否输出调试日志
// 返回：控制指令
// 算法说明：
// 1. 为正数的变道计数器减1
// 2. 红灯（黄灯）：紧急停车
// 3. 行人：去除包围盒后的距离小于刹车距离时紧急停车
// 4. 前车：去除包围盒后的距离小于刹车距离时紧急停车，否则跟车
// 5. 路口转弯：目标速度min(max_speed, 限速-5)
// 6. 正常行驶：目标速度min(max_speed, 限速-speed_lim_dist)
func (a *BehaviorAgent) RunStep(debug bool) (entity.VehicleControl, error) {
	if a.tailgateCounter > 0 {
		a.tailgateCounter--
	}
	if a.overtakeCounter > 0 {
		a.overtakeCounter--
	}
	if a.planner.Done() {
		a.state = StateArrived
		return a.planner.RunStep(debug), nil
	}

	egoT := a.vehicle.Transform()
	egoWP, err := a.m.Waypoint(egoT.Location)
	if err != nil {
		return a.EmergencyStop(), fmt.Errorf("vehicle %d: locate ego waypoint: %w", a.vehicle.ID(), err)
	}
	egoExtent := a.vehicle.BoundingBox().MaxHalfExtent()

	// 1: 信号灯
	if a.trafficLightManager(egoT, egoWP) {
		return a.stop(StateRedLight, debug), nil
	}

	// 2.1: 行人
	if walker, distance, ok := a.pedestrianAvoidManager(egoT, egoWP); ok {
		distance -= walker.BoundingBox().MaxHalfExtent() + egoExtent
		if distance < a.profile.BrakingDistance {
			return a.stop(StateWalkerStop, debug), nil
		}
	}

	// 2.2: 周边车辆
	if vehicle, distance, ok := a.collisionAndCarAvoidManager(egoT, egoWP); ok {
		distance -= vehicle.BoundingBox().MaxHalfExtent() + egoExtent
		if distance < a.profile.BrakingDistance {
			return a.stop(StateVehicleStop, debug), nil
		}
		a.state = StateCarFollowing
		return a.carFollowingManager(vehicle, distance, debug), nil
	}

	// 3: 路口转弯
	if a.incomingWaypoint != nil && a.incomingWaypoint.IsJunction() &&
		(a.incomingDirection == entity.RoadOptionLeft || a.incomingDirection == entity.RoadOptionRight) {
		a.state = StateJunctionTurn
		a.planner.SetSpeed(min(a.profile.MaxSpeed, a.speedLimit-junctionSlowdown))
		return a.planner.RunStep(debug), nil
	}

	// 4: 正常行驶
	a.state = StateCruise
	a.planner.SetSpeed(min(a.profile.MaxSpeed, a.speedLimit-a.profile.SpeedLimDist))
	return a.planner.RunStep(debug), nil
}

func (a *BehaviorAgent) stop(state State, debug bool) entity.VehicleControl {
	a.state = state
	if debug {
		log.Debugf("vehicle %d: emergency stop (%v)", a.vehicle.ID(), state)
	}
	return a.EmergencyStop()
}
