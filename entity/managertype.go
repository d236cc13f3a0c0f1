package entity

// 仿真器中各类Actor的依赖倒置

// IActor 仿真世界中的对象（车辆、行人、信号灯、观察者视角）
type IActor interface {
	ID() int32                // Actor ID
	TypeID() string           // 蓝图ID，如vehicle.lincoln.mkz2017
	Transform() Transform     // 当前位置与姿态
	Location() Location       // 当前位置
	Velocity() Vector3D       // 当前速度（米/秒）
	BoundingBox() BoundingBox // 包围盒
	SetTransform(t Transform) // 设置位置与姿态
	IsAlive() bool            // 是否仍存在于仿真中
	Destroy() error           // 销毁
}

// IVehicle 车辆
type IVehicle interface {
	IActor

	ApplyControl(c VehicleControl) // 下发控制指令，在下一次Tick时生效
	Control() VehicleControl       // 最近一次下发的控制指令
	SetAutopilot(enabled bool)     // 交由仿真器自动驾驶
	SpeedLimit() float64           // 当前位置的道路限速（km/h）
}

// ITrafficLight 信号灯
type ITrafficLight interface {
	IActor

	State() LightState          // 当前灯色
	StopWaypoints() []IWaypoint // 受该灯控制的停车线位置
}

// IWaypoint 道路上的路点
type IWaypoint interface {
	Transform() Transform
	RoadID() int32
	LaneID() int32              // 车道编号，同向车道同号，向右递增
	S() float64                 // 沿道路的纵向坐标（米）
	LaneWidth() float64         // 车道宽度（米）
	IsJunction() bool           // 是否位于路口内
	LaneType() LaneType         // 车道类型
	LaneChange() LaneChange     // 车道线允许的变道方向
	LeftLane() IWaypoint        // 左侧相邻车道上的对应路点，不存在时为nil
	RightLane() IWaypoint       // 右侧相邻车道上的对应路点，不存在时为nil
	Next(d float64) []IWaypoint // 前方d米处的路点
}
