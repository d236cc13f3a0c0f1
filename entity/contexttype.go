package entity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoSpawnPoints  = errors.New("map has no spawn points")
	ErrActorNotFound  = errors.New("actor not found")
	ErrBlueprint      = errors.New("blueprint not found")
	ErrSpawnCollision = errors.New("spawn failed because of a collision at spawn point")
	ErrTimeout        = errors.New("simulator request timed out")
)

// 仿真器客户端接口
// 仿真器本身（物理、渲染、交通管理、网络传输）不在本仓库内，这里只约定调用方式

// IClient 仿真器客户端
type IClient interface {
	SetTimeout(d time.Duration)                           // 设置单次请求超时
	World(ctx context.Context) (IWorld, error)            // 获取当前运行的世界
	ApplyBatch(ctx context.Context, cmds []Command) error // 批量执行指令
}

// IWorld 仿真世界
type IWorld interface {
	Settings() WorldSettings
	ApplySettings(ctx context.Context, s WorldSettings) error
	SetWeather(w WeatherParameters)
	BlueprintLibrary() IBlueprintLibrary
	Map() IMap

	// 在指定位置生成Actor，失败返回错误
	SpawnActor(ctx context.Context, bp Blueprint, t Transform) (IActor, error)
	// 推进一步仿真（同步模式），返回帧号
	Tick(ctx context.Context) (uint64, error)

	Spectator() IActor
	Actor(id int32) (IActor, error)
	Vehicles() []IVehicle
	Walkers() []IActor
	TrafficLights() []ITrafficLight
}

// IBlueprintLibrary 蓝图库
type IBlueprintLibrary interface {
	Find(id string) (Blueprint, error)
}

// IMap 道路地图
type IMap interface {
	SpawnPoints() []Transform
	// 将位置投影到最近的行车道路点
	Waypoint(loc Location) (IWaypoint, error)
	// 全局路径规划由仿真器地图提供
	Route(from, to Location) ([]RouteStep, error)
}
