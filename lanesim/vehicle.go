package lanesim

import (
	"fmt"
	"math"
	"sync"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/container"
)

const (
	maxBrakeA     = 9.0                // 刹车踩满时的减速度（米/秒²）
	rollingA      = 0.2                // 滚动阻力带来的减速度（米/秒²）
	maxSteerAngle = 30 * math.Pi / 180 // 方向盘打满时的前轮转角
	maxYaw        = math.Pi / 3        // 航向角限制
)

// computeVAndDistance 计算本时刻的速度与移动距离
// v(t)=v(t-1)+acc*dt, ds=v(t-1)*dt+acc*dt*dt/2
func computeVAndDistance(v, a, dt float64) (float64, float64) {
	dv := a * dt
	if v+dv < 0 {
		// 刹车到停止
		return 0, v * v / 2 / -a
	}
	return v + dv, (v + dv/2) * dt
}

// Vehicle 车辆
// 功能：按照控制指令（或内置自动驾驶）运动的自行车模型车辆
// 说明：运动状态只在World.Tick中修改，读取需持有世界读锁；控制指令由车辆自身的锁保护
type Vehicle struct {
	w         *World
	id        int32
	bp        entity.Blueprint
	extent    entity.Vector3D
	wheelbase float64
	maxA      float64

	x, y, yaw, v float64
	alive        bool
	node         *container.ListNode[*Vehicle]

	// 本步计算结果
	acc, steer float64
	piloted    bool

	mtx       sync.Mutex
	control   entity.VehicleControl
	autopilot bool
	pilot     *autopilot
}

func (v *Vehicle) String() string {
	return fmt.Sprintf("Vehicle{id=%d, type=%s, x=%.2f, y=%.2f, v=%.2f}", v.id, v.bp.ID, v.x, v.y, v.v)
}

func (v *Vehicle) ID() int32 {
	return v.id
}

func (v *Vehicle) TypeID() string {
	return v.bp.ID
}

func (v *Vehicle) transform() entity.Transform {
	return entity.Transform{
		Location: entity.Location{X: v.x, Y: v.y, Z: v.extent.Z},
		Rotation: entity.Rotation{Yaw: v.yaw * 180 / math.Pi},
	}
}

func (v *Vehicle) Transform() entity.Transform {
	v.w.mtx.RLock()
	defer v.w.mtx.RUnlock()
	return v.transform()
}

func (v *Vehicle) Location() entity.Location {
	return v.Transform().Location
}

func (v *Vehicle) Velocity() entity.Vector3D {
	v.w.mtx.RLock()
	defer v.w.mtx.RUnlock()
	return entity.Vector3D{X: v.v * math.Cos(v.yaw), Y: v.v * math.Sin(v.yaw)}
}

func (v *Vehicle) BoundingBox() entity.BoundingBox {
	return entity.BoundingBox{Extent: v.extent}
}

func (v *Vehicle) SetTransform(t entity.Transform) {
	v.w.mtx.Lock()
	defer v.w.mtx.Unlock()
	v.x, v.y = t.Location.X, t.Location.Y
	v.yaw = t.Rotation.Yaw * math.Pi / 180
}

func (v *Vehicle) IsAlive() bool {
	v.w.mtx.RLock()
	defer v.w.mtx.RUnlock()
	return v.alive
}

func (v *Vehicle) Destroy() error {
	return v.w.destroy(v.id)
}

// ApplyControl 下发控制指令，超出范围的分量被截断
func (v *Vehicle) ApplyControl(c entity.VehicleControl) {
	c.Throttle = lo.Clamp(c.Throttle, 0, 1)
	c.Brake = lo.Clamp(c.Brake, 0, 1)
	c.Steer = lo.Clamp(c.Steer, -1, 1)
	v.mtx.Lock()
	defer v.mtx.Unlock()
	v.control = c
}

func (v *Vehicle) Control() entity.VehicleControl {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return v.control
}

func (v *Vehicle) SetAutopilot(enabled bool) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	v.autopilot = enabled
	if enabled && v.pilot == nil {
		v.pilot = newAutopilot(v.w.generator)
	}
}

func (v *Vehicle) SpeedLimit() float64 {
	v.w.mtx.RLock()
	defer v.w.mtx.RUnlock()
	return v.w.m.speedLimit(v.x)
}

// prepare 计算本步的加速度与转向
// 说明：只读取其他车辆的状态，可并行执行
func (v *Vehicle) prepare(dt float64) {
	v.mtx.Lock()
	c, pilot := v.control, lo.Ternary(v.autopilot, v.pilot, nil)
	v.mtx.Unlock()

	v.piloted = pilot != nil
	if pilot != nil {
		v.acc = pilot.acceleration(v, dt)
		v.steer = 0
		return
	}
	if c.HandBrake {
		v.acc = -maxBrakeA
	} else {
		v.acc = c.Throttle*v.maxA - c.Brake*maxBrakeA
		if v.v > 0 {
			v.acc -= rollingA
		}
	}
	v.steer = c.Steer
}

// update 更新运动状态
// 算法说明：
// 1. 纵向：匀加速运动学，刹车到停止时不倒车
// 2. 航向：自行车模型，yawRate = v * tan(steer * maxSteerAngle) / wheelbase
// 3. 自动驾驶车辆保持航向为0并逐渐回到车道中心线
// 4. 车辆被约束在道路边缘之内
func (v *Vehicle) update(dt float64) {
	speed, ds := computeVAndDistance(v.v, v.acc, dt)
	if v.piloted {
		v.yaw = 0
		center := v.w.m.laneCenter(v.w.m.laneOf(v.y))
		v.y += lo.Clamp(center-v.y, -dt, dt)
	} else {
		meanV := (v.v + speed) / 2
		v.yaw += meanV * math.Tan(v.steer*maxSteerAngle) / v.wheelbase * dt
		v.yaw = lo.Clamp(v.yaw, -maxYaw, maxYaw)
	}
	v.x += ds * math.Cos(v.yaw)
	v.y += ds * math.Sin(v.yaw)
	v.v = speed

	width := v.w.m.road.LaneWidth * float64(v.w.m.road.LaneCount)
	if v.y < v.extent.Y || v.y > width-v.extent.Y {
		v.y = lo.Clamp(v.y, v.extent.Y, width-v.extent.Y)
		v.yaw = 0
	}
}
