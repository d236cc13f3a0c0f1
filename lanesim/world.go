package lanesim

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/container"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/input"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/randengine"
)

const (
	defaultDeltaSeconds = 0.05 // 可变步长模式下每次Tick推进的时间
	spawnClearance      = 0.5  // 出生时与其他车辆的最小纵向间隙（米）
)

// World 单条多车道直道上的仿真世界
// 功能：管理车辆、行人、信号灯与观察者，按照固定步长推进仿真
// 说明：所有Actor的运动状态由mtx保护，Tick持有写锁，查询持有读锁
type World struct {
	mtx sync.RWMutex

	scenario *input.Scenario
	m        *Map
	library  *blueprintLibrary
	settings entity.WorldSettings

	frame  uint64
	t      float64
	nextID int32

	actors    map[int32]entity.IActor
	vehicles  *container.IncrementalArray[*Vehicle]
	lanes     []*container.List[*Vehicle] // 下标为车道编号-1
	lights    []*TrafficLight
	walkers   []*Walker
	spectator *Spectator
	generator *randengine.Engine
}

// NewWorld 由场景创建仿真世界
// 参数：s-已校验的场景，seed-随机数种子（影响自动驾驶车辆的限速遵守程度）
func NewWorld(s *input.Scenario, seed uint64) *World {
	w := &World{
		scenario:  s,
		m:         newMap(s),
		library:   newBlueprintLibrary(),
		settings:  entity.WorldSettings{FixedDeltaSeconds: defaultDeltaSeconds},
		actors:    make(map[int32]entity.IActor),
		vehicles:  container.NewIncrementalArray[*Vehicle](),
		generator: randengine.New(seed),
		nextID:    1,
	}
	w.spectator = &Spectator{w: w}
	for i := 0; i < s.Road.LaneCount; i++ {
		w.lanes = append(w.lanes, &container.List[*Vehicle]{ID: fmt.Sprintf("lane-%d", i+1)})
	}
	for _, tl := range s.TrafficLights {
		l := newTrafficLight(w, w.newID(), tl)
		w.lights = append(w.lights, l)
		w.actors[l.id] = l
	}
	for _, in := range s.Walkers {
		p := newWalker(w, w.newID(), in)
		w.walkers = append(w.walkers, p)
		w.actors[p.id] = p
	}
	log.Infof("world %q created: %d lanes, %d traffic lights, %d walkers",
		s.Name, len(w.lanes), len(w.lights), len(w.walkers))
	return w
}

func (w *World) newID() int32 {
	id := w.nextID
	w.nextID++
	return id
}

// Settings 当前运行设置
func (w *World) Settings() entity.WorldSettings {
	w.mtx.RLock()
	defer w.mtx.RUnlock()
	return w.settings
}

// ApplySettings 修改运行设置
func (w *World) ApplySettings(ctx context.Context, s entity.WorldSettings) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrTimeout, err)
	}
	if s.FixedDeltaSeconds < 0 {
		return fmt.Errorf("lanesim: negative fixed delta seconds %v", s.FixedDeltaSeconds)
	}
	w.mtx.Lock()
	defer w.mtx.Unlock()
	w.settings = s
	log.Debugf("apply settings %+v", s)
	return nil
}

// SetWeather 设置天气，只记录日志，不影响动力学
func (w *World) SetWeather(p entity.WeatherParameters) {
	log.Infof("weather: %+v", p)
}

func (w *World) BlueprintLibrary() entity.IBlueprintLibrary {
	return w.library
}

func (w *World) Map() entity.IMap {
	return w.m
}

// Time 仿真时间（秒）
func (w *World) Time() float64 {
	w.mtx.RLock()
	defer w.mtx.RUnlock()
	return w.t
}

// SpawnActor 在指定位置生成Actor
// 功能：根据蓝图类型生成车辆或行人，车辆在下一次Tick时加入车道
// 返回：生成的Actor，蓝图未知返回ErrBlueprint，与已有车辆重叠返回ErrSpawnCollision
func (w *World) SpawnActor(ctx context.Context, bp entity.Blueprint, t entity.Transform) (entity.IActor, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrTimeout, err)
	}
	w.mtx.Lock()
	defer w.mtx.Unlock()
	switch {
	case strings.HasPrefix(bp.ID, "vehicle."):
		spec, ok := w.library.specs[bp.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", entity.ErrBlueprint, bp.ID)
		}
		if _, err := w.m.Waypoint(t.Location); err != nil {
			return nil, err
		}
		lane := w.m.laneOf(t.Location.Y)
		for _, a := range w.actors {
			other, ok := a.(*Vehicle)
			if !ok || !other.alive || w.m.laneOf(other.y) != lane {
				continue
			}
			if gap := other.x - t.Location.X; gap < other.extent.X+spec.extent.X+spawnClearance &&
				-gap < other.extent.X+spec.extent.X+spawnClearance {
				return nil, fmt.Errorf("%w: %v overlaps %v", entity.ErrSpawnCollision, t.Location, other)
			}
		}
		v := &Vehicle{
			w:         w,
			id:        w.newID(),
			bp:        bp,
			extent:    spec.extent,
			wheelbase: spec.wheelbase,
			maxA:      spec.maxA,
			x:         t.Location.X,
			y:         t.Location.Y,
			alive:     true,
		}
		w.actors[v.id] = v
		w.vehicles.Add(v)
		log.Debugf("spawn %v", v)
		return v, nil
	case strings.HasPrefix(bp.ID, "walker."):
		p := newWalker(w, w.newID(), input.Walker{S: t.Location.X, Speed: defaultWalkerSpeed})
		p.y = t.Location.Y
		w.walkers = append(w.walkers, p)
		w.actors[p.id] = p
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %s", entity.ErrBlueprint, bp.ID)
	}
}

// destroy 销毁Actor，车辆立即离开车道
func (w *World) destroy(id int32) error {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	a, ok := w.actors[id]
	if !ok {
		return fmt.Errorf("%w: %d", entity.ErrActorNotFound, id)
	}
	switch a := a.(type) {
	case *Vehicle:
		a.alive = false
		if a.node != nil {
			a.node.Parent().Remove(a.node)
			a.node = nil
		}
		w.vehicles.Remove(a)
	case *Walker:
		a.alive = false
	default:
		return fmt.Errorf("lanesim: actor %d cannot be destroyed", id)
	}
	delete(w.actors, id)
	log.Debugf("destroy actor %d", id)
	return nil
}

// Tick 推进一步仿真
// 算法说明：
// 1. 生效上一步之后的增删车辆，新车辆按位置插入车道链表
// 2. prepare：所有车辆并行计算加速度与转向（只读）
// 3. update：所有车辆并行更新运动状态
// 4. 处理驶出道路的车辆（自动驾驶车辆回到道路起点，其余车辆停在终点），更新车道归属并恢复链表有序
// 5. 推进信号灯与行人
func (w *World) Tick(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", entity.ErrTimeout, err)
	}
	w.mtx.Lock()
	defer w.mtx.Unlock()
	dt := lo.Ternary(w.settings.FixedDeltaSeconds > 0, w.settings.FixedDeltaSeconds, defaultDeltaSeconds)

	w.vehicles.Prepare()
	active := lo.Filter(w.vehicles.Data(), func(v *Vehicle, _ int) bool {
		if !v.alive {
			w.vehicles.Remove(v)
		}
		return v.alive
	})
	for _, v := range active {
		if v.node == nil {
			v.node = &container.ListNode[*Vehicle]{S: v.x, Value: v}
			w.lanes[w.m.laneOf(v.y)-1].Insert(v.node)
		}
	}
	parallel.GoFor(active, func(v *Vehicle) { v.prepare(dt) })
	parallel.GoFor(active, func(v *Vehicle) { v.update(dt) })
	for _, v := range active {
		if v.x >= w.m.road.Length {
			if v.piloted {
				v.x -= w.m.road.Length
			} else {
				v.x, v.v = w.m.road.Length, 0
			}
		}
		v.node.S = v.x
		if lane := w.lanes[w.m.laneOf(v.y)-1]; v.node.Parent() != lane {
			v.node.Parent().Remove(v.node)
			lane.Insert(v.node)
		}
	}
	for _, lane := range w.lanes {
		lane.Resort()
	}
	for _, l := range w.lights {
		l.update(dt)
	}
	for _, p := range w.walkers {
		if p.alive {
			p.update(dt)
		}
	}
	w.t += dt
	w.frame++
	return w.frame, nil
}

// Spectator 观察者相机
func (w *World) Spectator() entity.IActor {
	return w.spectator
}

// Actor 按ID查找Actor
func (w *World) Actor(id int32) (entity.IActor, error) {
	w.mtx.RLock()
	defer w.mtx.RUnlock()
	if a, ok := w.actors[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %d", entity.ErrActorNotFound, id)
}

// Vehicles 所有存活车辆，按ID排序
func (w *World) Vehicles() []entity.IVehicle {
	w.mtx.RLock()
	defer w.mtx.RUnlock()
	vs := make([]entity.IVehicle, 0, len(w.actors))
	for _, a := range w.actors {
		if v, ok := a.(*Vehicle); ok {
			vs = append(vs, v)
		}
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i].ID() < vs[j].ID() })
	return vs
}

// Walkers 所有存活行人
func (w *World) Walkers() []entity.IActor {
	w.mtx.RLock()
	defer w.mtx.RUnlock()
	return lo.FilterMap(w.walkers, func(p *Walker, _ int) (entity.IActor, bool) {
		return p, p.alive
	})
}

// TrafficLights 所有信号灯
func (w *World) TrafficLights() []entity.ITrafficLight {
	return lo.Map(w.lights, func(l *TrafficLight, _ int) entity.ITrafficLight { return l })
}
