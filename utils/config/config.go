package config

import (
	"fmt"

	"github.com/tsinghua-fib-lab/behavior-agent-go/entity/agent/behavior"
	"gopkg.in/yaml.v2"
)

const (
	DefaultBlueprint       = "vehicle.lincoln.mkz2017"
	DefaultNPCBlueprint    = "vehicle.tesla.model3"
	DefaultSpectatorHeight = 40
	DefaultFlushInterval   = 100
	DefaultTimeout         = 2.0
)

// RuntimeConfig 运行时配置
// 功能：存储补全默认值、通过校验后的配置
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置
}

// Load 解析并校验YAML配置
// 功能：严格模式解析（未知字段报错），补全默认值并校验
// 参数：data-YAML数据
// 返回：运行时配置，驾驶风格不存在等配置错误在此处直接返回
func Load(data []byte) (*RuntimeConfig, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return NewRuntimeConfig(c)
}

// NewRuntimeConfig 根据配置生成运行时配置
// 算法说明：
// 1. 补全蓝图、视角高度、输出间隔、超时等默认值
// 2. 校验步长、智能体列表（驾驶风格必须存在）、视角模式与自定义参数
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	if config.Control.Step.Interval <= 0 {
		return nil, fmt.Errorf("config: control.step.interval must be positive, got %v", config.Control.Step.Interval)
	}
	if config.Control.Step.Total <= 0 {
		return nil, fmt.Errorf("config: control.step.total must be positive, got %v", config.Control.Step.Total)
	}
	if len(config.Agents) == 0 {
		return nil, fmt.Errorf("config: at least one agent is required")
	}
	for i := range config.Agents {
		a := &config.Agents[i]
		if a.Blueprint == "" {
			a.Blueprint = DefaultBlueprint
		}
		if a.Profile != nil {
			if err := a.Profile.Validate(); err != nil {
				return nil, fmt.Errorf("config: agents[%d]: %w", i, err)
			}
		} else if a.Behavior == "" {
			return nil, fmt.Errorf("config: agents[%d]: behavior is required", i)
		} else if _, err := behavior.ParseStyle(string(a.Behavior)); err != nil {
			return nil, fmt.Errorf("config: agents[%d]: %w", i, err)
		}
	}
	if config.NPC.Count < 0 {
		return nil, fmt.Errorf("config: npc.count must not be negative")
	}
	if config.NPC.Blueprint == "" {
		config.NPC.Blueprint = DefaultNPCBlueprint
	}
	switch config.Spectator.Mode {
	case "":
		config.Spectator.Mode = "top"
	case "top", "follow", "none":
	default:
		return nil, fmt.Errorf("config: spectator.mode must be one of top/follow/none, got %q", config.Spectator.Mode)
	}
	if config.Spectator.Height == 0 {
		config.Spectator.Height = DefaultSpectatorHeight
	}
	if config.Output.FlushInterval <= 0 {
		config.Output.FlushInterval = DefaultFlushInterval
	}
	if config.World.Timeout <= 0 {
		config.World.Timeout = DefaultTimeout
	}
	return &RuntimeConfig{All: config, C: config.Control}, nil
}
