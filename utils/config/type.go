package config

import (
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity/agent/behavior"
)

// InputPath 指定输入数据来源的配置（MongoDB、文件系统）
// 说明：File优先级高于MongoDB
type InputPath struct {
	DB   string `yaml:"db,omitempty"`   // 数据库名
	Col  string `yaml:"col,omitempty"`  // 集合名
	ID   string `yaml:"id,omitempty"`   // 场景文档的name字段
	File string `yaml:"file,omitempty"` // 文件路径（优先级高于MongoDB）
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// Input 场景输入配置
type Input struct {
	URI      string    `yaml:"uri,omitempty"` // MongoDB连接字符串
	Scenario InputPath `yaml:"scenario"`      // 场景（道路、信号灯、行人、出生点）
}

// ControlStep 指定模拟时间范围和间隔的配置项
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 最大步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔（秒），同步模式下即fixed_delta_seconds
}

// Control 运行控制配置
type Control struct {
	Step ControlStep `yaml:"step"`
	Seed uint64      `yaml:"seed,omitempty"` // 随机数种子
}

// World 仿真世界配置
type World struct {
	SynchronousMode bool                     `yaml:"synchronous_mode"`
	NoRendering     bool                     `yaml:"no_rendering,omitempty"`
	Weather         entity.WeatherParameters `yaml:"weather,omitempty"`
	Timeout         float64                  `yaml:"timeout,omitempty"` // 单次请求超时（秒）
}

// Spectator 观察者视角配置
type Spectator struct {
	Mode   string  `yaml:"mode"`             // top: 俯视跟随；follow: 车顶跟随；none: 不控制
	Height float64 `yaml:"height,omitempty"` // 视角相对车辆的高度（米）
}

// Agent 受行为智能体控制的车辆
type Agent struct {
	Blueprint   string            `yaml:"blueprint,omitempty"`   // 车辆蓝图
	Color       string            `yaml:"color,omitempty"`       // 车辆颜色，如"0,0,0"
	Behavior    behavior.Style    `yaml:"behavior"`              // 驾驶风格，加载时校验
	Profile     *behavior.Profile `yaml:"profile,omitempty"`     // 自定义参数，设置后覆盖behavior
	SpawnPoint  *int              `yaml:"spawn_point,omitempty"` // 出生点下标，为空则随机
	Destination *int              `yaml:"destination,omitempty"` // 目的地出生点下标，为空则随机且不同于出生点
}

// NPC 背景车辆（交由仿真器自动驾驶）
type NPC struct {
	Count     int    `yaml:"count"`
	Blueprint string `yaml:"blueprint,omitempty"`
}

// Output 运行记录输出配置，URI为空时不输出
type Output struct {
	URI           string `yaml:"uri,omitempty"`
	DB            string `yaml:"db,omitempty"`
	Col           string `yaml:"col,omitempty"`
	FlushInterval int32  `yaml:"flush_interval,omitempty"` // 每隔多少步写一次数据库
}

// Config YAML配置文件的根结构
type Config struct {
	Input     Input     `yaml:"input"`
	Control   Control   `yaml:"control"`
	World     World     `yaml:"world"`
	Spectator Spectator `yaml:"spectator,omitempty"`
	Agents    []Agent   `yaml:"agents"`
	NPC       NPC       `yaml:"npc,omitempty"`
	Output    Output    `yaml:"output,omitempty"`
}
