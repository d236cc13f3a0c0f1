package lanesim

import (
	"fmt"
	"math"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/input"
)

const (
	routeResolution    = 2.0  // 全局路径的路点间隔（米）
	laneChangeDistance = 20.0 // 每次变道占用的纵向距离（米）
)

// Map 直道地图
// 功能：提供出生点、路点投影、路点邻接关系、限速查询与全局路径
type Map struct {
	road   input.Road
	zones  []input.SpeedZone
	lights []input.TrafficLight
	spawns []input.SpawnPoint
}

func newMap(s *input.Scenario) *Map {
	return &Map{
		road:   s.Road,
		zones:  s.SpeedZones,
		lights: s.TrafficLights,
		spawns: s.SpawnPoints,
	}
}

// laneCenter 车道中心线的横向坐标
func (m *Map) laneCenter(lane int32) float64 {
	return (float64(lane) - 0.5) * m.road.LaneWidth
}

// laneOf 横向坐标所在的车道（越界时取最近的车道）
func (m *Map) laneOf(y float64) int32 {
	lane := int32(math.Floor(y/m.road.LaneWidth)) + 1
	return lo.Clamp(lane, 1, int32(m.road.LaneCount))
}

// speedLimit S处的限速（km/h）
func (m *Map) speedLimit(s float64) float64 {
	for _, z := range m.zones {
		if z.From <= s && s < z.To {
			return z.Limit
		}
	}
	return m.road.SpeedLimit
}

// inJunction S处是否位于路口内
func (m *Map) inJunction(s float64) bool {
	for _, tl := range m.lights {
		if tl.S <= s && s < tl.S+tl.JunctionLength {
			return true
		}
	}
	return false
}

func (m *Map) waypoint(lane int32, s float64) *Waypoint {
	return &Waypoint{m: m, lane: lane, s: lo.Clamp(s, 0, m.road.Length)}
}

// SpawnPoints 所有出生点
func (m *Map) SpawnPoints() []entity.Transform {
	return lo.Map(m.spawns, func(p input.SpawnPoint, _ int) entity.Transform {
		return m.waypoint(p.Lane, p.S).Transform()
	})
}

// Waypoint 将位置投影到最近的行车道路点
func (m *Map) Waypoint(loc entity.Location) (entity.IWaypoint, error) {
	if loc.X < -m.road.Length || loc.X > 2*m.road.Length {
		return nil, fmt.Errorf("lanesim: location %v is far away from road %d", loc, m.road.ID)
	}
	return m.waypoint(m.laneOf(loc.Y), loc.X), nil
}

// Route 全局路径规划
// 功能：生成从起点到终点、间隔为routeResolution的路点序列
// 参数：from-起点，to-终点
// 返回：路点与行驶意图序列
// 算法说明：
// 1. 起终点投影到路点，道路单向通行，终点必须在起点前方
// 2. 沿起点车道前进，在终点前预留每次变道laneChangeDistance米的距离，逐条车道变道
// 3. 路口内的路点标记为STRAIGHT，变道路点标记为CHANGELANELEFT/CHANGELANERIGHT，其余为LANEFOLLOW
func (m *Map) Route(from, to entity.Location) ([]entity.RouteStep, error) {
	start := m.waypoint(m.laneOf(from.Y), from.X)
	end := m.waypoint(m.laneOf(to.Y), to.X)
	if end.s <= start.s {
		return nil, fmt.Errorf("lanesim: no route from %v to %v on one-way road", start, end)
	}
	diff := end.lane - start.lane
	changes := lo.Ternary(diff < 0, -diff, diff)
	changeStart := math.Max(start.s, end.s-float64(changes+1)*laneChangeDistance)
	lastChange := math.Inf(-1)

	steps := make([]entity.RouteStep, 0, int((end.s-start.s)/routeResolution)+2)
	lane := start.lane
	for s := start.s; s < end.s; s += routeResolution {
		option := entity.RoadOptionLaneFollow
		if lane != end.lane && s >= changeStart && s-lastChange >= laneChangeDistance && !m.inJunction(s) {
			if diff < 0 {
				lane--
				option = entity.RoadOptionChangeLaneLeft
			} else {
				lane++
				option = entity.RoadOptionChangeLaneRight
			}
			lastChange = s
		} else if m.inJunction(s) {
			option = entity.RoadOptionStraight
		}
		steps = append(steps, entity.RouteStep{Waypoint: m.waypoint(lane, s), Option: option})
	}
	// 终点
	option := entity.RoadOptionLaneFollow
	if lane != end.lane {
		option = lo.Ternary(diff < 0, entity.RoadOptionChangeLaneLeft, entity.RoadOptionChangeLaneRight)
	}
	steps = append(steps, entity.RouteStep{Waypoint: end, Option: option})
	return steps, nil
}

// Waypoint 路点
type Waypoint struct {
	m    *Map
	lane int32
	s    float64
}

func (w *Waypoint) String() string {
	return fmt.Sprintf("Waypoint{lane=%d, s=%.2f}", w.lane, w.s)
}

func (w *Waypoint) Transform() entity.Transform {
	return entity.Transform{Location: entity.Location{X: w.s, Y: w.m.laneCenter(w.lane)}}
}

func (w *Waypoint) RoadID() int32 {
	return w.m.road.ID
}

func (w *Waypoint) LaneID() int32 {
	return w.lane
}

func (w *Waypoint) S() float64 {
	return w.s
}

func (w *Waypoint) LaneWidth() float64 {
	return w.m.road.LaneWidth
}

func (w *Waypoint) IsJunction() bool {
	return w.m.inJunction(w.s)
}

func (w *Waypoint) LaneType() entity.LaneType {
	return mapv2.LaneType_LANE_TYPE_DRIVING
}

// LaneChange 车道线允许的变道方向，路口内禁止变道
func (w *Waypoint) LaneChange() entity.LaneChange {
	if w.IsJunction() || w.m.road.LaneCount == 1 {
		return entity.LaneChangeNone
	}
	switch w.lane {
	case 1:
		return entity.LaneChangeRight
	case int32(w.m.road.LaneCount):
		return entity.LaneChangeLeft
	default:
		return entity.LaneChangeBoth
	}
}

func (w *Waypoint) LeftLane() entity.IWaypoint {
	if w.lane <= 1 {
		return nil
	}
	return w.m.waypoint(w.lane-1, w.s)
}

func (w *Waypoint) RightLane() entity.IWaypoint {
	if int(w.lane) >= w.m.road.LaneCount {
		return nil
	}
	return w.m.waypoint(w.lane+1, w.s)
}

func (w *Waypoint) Next(d float64) []entity.IWaypoint {
	if w.s+d > w.m.road.Length {
		return nil
	}
	return []entity.IWaypoint{w.m.waypoint(w.lane, w.s+d)}
}
