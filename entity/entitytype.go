package entity

import (
	"fmt"
	"math"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
)

// Vector3D 三维向量（米或米/秒）
type Vector3D struct {
	X float64 `yaml:"x" bson:"x"`
	Y float64 `yaml:"y" bson:"y"`
	Z float64 `yaml:"z" bson:"z"`
}

// Length 向量长度
func (v Vector3D) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Location 仿真世界中的位置（米），与Vector3D共用运算
type Location = Vector3D

// Add 向量相加
func (v Vector3D) Add(o Vector3D) Vector3D {
	return Vector3D{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub 向量相减
func (v Vector3D) Sub(o Vector3D) Vector3D {
	return Vector3D{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Distance 两点间的欧氏距离
func (v Vector3D) Distance(o Vector3D) float64 {
	return v.Sub(o).Length()
}

func (v Vector3D) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", v.X, v.Y, v.Z)
}

// Rotation 姿态角（度）
type Rotation struct {
	Pitch float64 `yaml:"pitch" bson:"pitch"`
	Yaw   float64 `yaml:"yaw" bson:"yaw"`
	Roll  float64 `yaml:"roll" bson:"roll"`
}

// Transform 位置与姿态
type Transform struct {
	Location Location `yaml:"location" bson:"location"`
	Rotation Rotation `yaml:"rotation" bson:"rotation"`
}

// ForwardVector 朝向的单位向量
// 功能：根据俯仰角与航向角计算车头方向
// 返回：单位方向向量
func (t Transform) ForwardVector() Vector3D {
	pitch := t.Rotation.Pitch * math.Pi / 180
	yaw := t.Rotation.Yaw * math.Pi / 180
	return Vector3D{
		X: math.Cos(pitch) * math.Cos(yaw),
		Y: math.Cos(pitch) * math.Sin(yaw),
		Z: math.Sin(pitch),
	}
}

func (t Transform) String() string {
	return fmt.Sprintf("Transform{%v, yaw=%.1f}", t.Location, t.Rotation.Yaw)
}

// BoundingBox 包围盒，Extent为半长/半宽/半高
type BoundingBox struct {
	Extent Vector3D
}

// MaxHalfExtent 水平方向上的最大半边长，用于从中心距离中扣除车身
func (b BoundingBox) MaxHalfExtent() float64 {
	return math.Max(b.Extent.X, b.Extent.Y)
}

// VehicleControl 车辆控制指令
type VehicleControl struct {
	Throttle  float64 // 油门 [0, 1]
	Steer     float64 // 转向 [-1, 1]，正值向右
	Brake     float64 // 刹车 [0, 1]
	HandBrake bool    // 手刹
	Reverse   bool    // 倒车
}

// WorldSettings 仿真世界运行设置
type WorldSettings struct {
	SynchronousMode   bool    // 同步模式：客户端调用Tick才推进仿真
	FixedDeltaSeconds float64 // 固定步长（秒），0表示可变步长
	NoRenderingMode   bool    // 关闭渲染
}

// WeatherParameters 天气参数
type WeatherParameters struct {
	Cloudiness    float64 `yaml:"cloudiness"`
	Precipitation float64 `yaml:"precipitation"`
	FogDensity    float64 `yaml:"fog_density"`
}

// Blueprint 待生成Actor的蓝图
type Blueprint struct {
	ID         string
	Attributes map[string]string
}

// SetAttribute 设置蓝图属性（如颜色"0,0,0"）
func (b *Blueprint) SetAttribute(key, value string) {
	if b.Attributes == nil {
		b.Attributes = make(map[string]string)
	}
	b.Attributes[key] = value
}

// Attribute 读取蓝图属性
func (b Blueprint) Attribute(key string) (string, bool) {
	v, ok := b.Attributes[key]
	return v, ok
}

// RoadOption 路径上每一步的行驶意图
type RoadOption int

const (
	RoadOptionVoid RoadOption = iota - 1
	RoadOptionLeft
	RoadOptionRight
	RoadOptionStraight
	RoadOptionLaneFollow
	RoadOptionChangeLaneLeft
	RoadOptionChangeLaneRight
)

func (o RoadOption) String() string {
	switch o {
	case RoadOptionLeft:
		return "LEFT"
	case RoadOptionRight:
		return "RIGHT"
	case RoadOptionStraight:
		return "STRAIGHT"
	case RoadOptionLaneFollow:
		return "LANEFOLLOW"
	case RoadOptionChangeLaneLeft:
		return "CHANGELANELEFT"
	case RoadOptionChangeLaneRight:
		return "CHANGELANERIGHT"
	default:
		return "VOID"
	}
}

// LaneChange 车道线允许的变道方向
type LaneChange int

const (
	LaneChangeNone LaneChange = iota
	LaneChangeRight
	LaneChangeLeft
	LaneChangeBoth
)

// AllowLeft 是否允许向左变道
func (c LaneChange) AllowLeft() bool {
	return c == LaneChangeLeft || c == LaneChangeBoth
}

// AllowRight 是否允许向右变道
func (c LaneChange) AllowRight() bool {
	return c == LaneChangeRight || c == LaneChangeBoth
}

// RouteStep 全局路径中的一步
type RouteStep struct {
	Waypoint IWaypoint
	Option   RoadOption
}

// Command 批量执行的指令
type Command struct {
	DestroyActor int32 // 需要销毁的Actor ID
}

// LightState 信号灯状态，复用地图协议中的定义
type LightState = mapv2.LightState

// LaneType 车道类型，复用地图协议中的定义
type LaneType = mapv2.LaneType
