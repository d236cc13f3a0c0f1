// 驾驶风格参数表，为行为智能体提供谨慎/普通/激进三组驾驶参数
package behavior

import (
	"errors"
	"fmt"
)

// ErrUnknownStyle 驾驶风格名不在参数表中
var ErrUnknownStyle = errors.New("unknown behavior style")

// Style 驾驶风格名
type Style string

const (
	Cautious   Style = "cautious"   // 谨慎
	Normal     Style = "normal"     // 普通
	Aggressive Style = "aggressive" // 激进
)

// Profile 驾驶风格参数
// 功能：描述一种驾驶风格下的限速、跟车安全时间、最小安全距离以及超车/让行倾向
// 说明：值类型，每次查表都返回新的副本，智能体之间互不影响
type Profile struct {
	MaxSpeed              float64 `yaml:"max_speed" bson:"max_speed"`                             // 最高车速（km/h）
	SpeedLimDist          float64 `yaml:"speed_lim_dist" bson:"speed_lim_dist"`                   // 目标速度相对道路限速的余量（km/h）
	SpeedDecrease         float64 `yaml:"speed_decrease" bson:"speed_decrease"`                   // 前方有慢车时的减速量（km/h）
	SafetyTime            float64 `yaml:"safety_time" bson:"safety_time"`                         // 与前车保持的安全时间（基于TTC，秒）
	MinProximityThreshold float64 `yaml:"min_proximity_threshold" bson:"min_proximity_threshold"` // 判定为"靠近"的最小距离（米）
	BrakingDistance       float64 `yaml:"braking_distance" bson:"braking_distance"`               // 与前车最小安全距离，低于该值紧急制动（米）
	OvertakeCounter       int     `yaml:"overtake_counter" bson:"overtake_counter"`               // 超车计数，负数表示不超车
	TailgateCounter       int     `yaml:"tailgate_counter" bson:"tailgate_counter"`               // 让行计数，负数表示不为后方跟车让道
}

// String 生成参数的字符串表示
func (p Profile) String() string {
	return fmt.Sprintf(
		"Profile{max_speed=%v, speed_lim_dist=%v, speed_decrease=%v, safety_time=%v, min_proximity_threshold=%v, braking_distance=%v, overtake_counter=%v, tailgate_counter=%v}",
		p.MaxSpeed, p.SpeedLimDist, p.SpeedDecrease, p.SafetyTime,
		p.MinProximityThreshold, p.BrakingDistance, p.OvertakeCounter, p.TailgateCounter,
	)
}

// Validate 检查自定义参数是否可用
// 功能：供调用方自行构造参数时使用，内置的三组参数总是有效
// 返回：参数无效时返回错误
func (p Profile) Validate() error {
	if p.MaxSpeed <= 0 {
		return fmt.Errorf("behavior: max_speed must be positive, got %v", p.MaxSpeed)
	}
	if p.SafetyTime <= 0 {
		return fmt.Errorf("behavior: safety_time must be positive, got %v", p.SafetyTime)
	}
	for name, v := range map[string]float64{
		"speed_lim_dist":          p.SpeedLimDist,
		"speed_decrease":          p.SpeedDecrease,
		"min_proximity_threshold": p.MinProximityThreshold,
		"braking_distance":        p.BrakingDistance,
	} {
		if v < 0 {
			return fmt.Errorf("behavior: %s must not be negative, got %v", name, v)
		}
	}
	return nil
}

// NewCautious 谨慎驾驶：车速低、跟车远、从不超车
func NewCautious() Profile {
	return Profile{
		MaxSpeed:              40,
		SpeedLimDist:          6,
		SpeedDecrease:         12,
		SafetyTime:            3,
		MinProximityThreshold: 12,
		BrakingDistance:       6,
		OvertakeCounter:       -1,
		TailgateCounter:       0,
	}
}

// NewNormal 普通驾驶
func NewNormal() Profile {
	return Profile{
		MaxSpeed:              50,
		SpeedLimDist:          3,
		SpeedDecrease:         10,
		SafetyTime:            3,
		MinProximityThreshold: 10,
		BrakingDistance:       5,
		OvertakeCounter:       0,
		TailgateCounter:       0,
	}
}

// NewAggressive 激进驾驶：相对普通车速更快，跟车更近，不为后车让道
func NewAggressive() Profile {
	return Profile{
		MaxSpeed:              70,
		SpeedLimDist:          1,
		SpeedDecrease:         8,
		SafetyTime:            3,
		MinProximityThreshold: 8,
		BrakingDistance:       4,
		OvertakeCounter:       0,
		TailgateCounter:       -1,
	}
}

// catalog 风格名到参数构造函数的映射
// 存放构造函数而不是参数值，保证每次查表都得到独立的副本
var catalog = map[Style]func() Profile{
	Cautious:   NewCautious,
	Normal:     NewNormal,
	Aggressive: NewAggressive,
}

// Styles 返回所有内置驾驶风格，按风险偏好从低到高排列
func Styles() []Style {
	return []Style{Cautious, Normal, Aggressive}
}

// ParseStyle 将字符串解析为驾驶风格
// 功能：校验风格名是否在参数表中
// 参数：s-风格名，大小写敏感
// 返回：风格名，不存在时返回包装了ErrUnknownStyle的错误
func ParseStyle(s string) (Style, error) {
	style := Style(s)
	if _, ok := catalog[style]; !ok {
		return "", fmt.Errorf("%w: %q (must be one of %v)", ErrUnknownStyle, s, Styles())
	}
	return style, nil
}

// Lookup 按风格名查表获取驾驶参数
// 功能：返回对应风格的参数副本，不存在的风格直接报错，不回退到默认值
// 参数：style-风格名
// 返回：参数副本；风格不存在时返回零值与包装了ErrUnknownStyle的错误
func Lookup(style string) (Profile, error) {
	s, err := ParseStyle(style)
	if err != nil {
		return Profile{}, err
	}
	return catalog[s](), nil
}

// Profile 获取风格对应的参数
func (s Style) Profile() (Profile, error) {
	return Lookup(string(s))
}

// UnmarshalYAML 解析YAML时校验风格名，配置错误在加载阶段暴露
func (s *Style) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	style, err := ParseStyle(raw)
	if err != nil {
		return err
	}
	*s = style
	return nil
}
