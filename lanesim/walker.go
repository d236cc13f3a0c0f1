package lanesim

import (
	"fmt"

	"github.com/tsinghua-fib-lab/behavior-agent-go/entity"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/input"
)

const (
	curbOffset = 1.0  // 人行道到道路边缘的距离（米）
	walkerWait = 10.0 // 到达对侧后的停留时间（秒）
)

// Walker 横穿道路的行人
// 功能：在道路S处于两侧人行道之间往返横穿
type Walker struct {
	w     *World
	id    int32
	s     float64
	speed float64
	y     float64
	dir   float64 // 1: 向右横穿，-1: 向左横穿
	wait  float64 // 开始移动前的剩余等待时间
	alive bool
}

func newWalker(w *World, id int32, in input.Walker) *Walker {
	return &Walker{
		w:     w,
		id:    id,
		s:     in.S,
		speed: in.Speed,
		y:     -curbOffset,
		dir:   1,
		wait:  in.Delay,
		alive: true,
	}
}

// update 推进行人位置
func (p *Walker) update(dt float64) {
	if p.wait > 0 {
		p.wait -= dt
		return
	}
	far := p.w.m.road.LaneWidth*float64(p.w.m.road.LaneCount) + curbOffset
	p.y += p.dir * p.speed * dt
	switch {
	case p.dir > 0 && p.y >= far:
		p.y, p.dir, p.wait = far, -1, walkerWait
	case p.dir < 0 && p.y <= -curbOffset:
		p.y, p.dir, p.wait = -curbOffset, 1, walkerWait
	}
}

// onRoad 行人是否在行车道范围内
func (p *Walker) onRoad() bool {
	return p.y >= 0 && p.y <= p.w.m.road.LaneWidth*float64(p.w.m.road.LaneCount)
}

func (p *Walker) String() string {
	return fmt.Sprintf("Walker{id=%d, s=%.1f, y=%.2f}", p.id, p.s, p.y)
}

func (p *Walker) ID() int32 {
	return p.id
}

func (p *Walker) TypeID() string {
	return "walker.pedestrian.0001"
}

func (p *Walker) Transform() entity.Transform {
	p.w.mtx.RLock()
	defer p.w.mtx.RUnlock()
	return entity.Transform{
		Location: entity.Location{X: p.s, Y: p.y},
		Rotation: entity.Rotation{Yaw: p.dir * 90},
	}
}

func (p *Walker) Location() entity.Location {
	return p.Transform().Location
}

func (p *Walker) Velocity() entity.Vector3D {
	p.w.mtx.RLock()
	defer p.w.mtx.RUnlock()
	if p.wait > 0 {
		return entity.Vector3D{}
	}
	return entity.Vector3D{Y: p.dir * p.speed}
}

func (p *Walker) BoundingBox() entity.BoundingBox {
	return entity.BoundingBox{Extent: entity.Vector3D{X: 0.3, Y: 0.3, Z: 0.9}}
}

func (p *Walker) SetTransform(t entity.Transform) {
	p.w.mtx.Lock()
	defer p.w.mtx.Unlock()
	p.s, p.y = t.Location.X, t.Location.Y
}

func (p *Walker) IsAlive() bool {
	p.w.mtx.RLock()
	defer p.w.mtx.RUnlock()
	return p.alive
}

func (p *Walker) Destroy() error {
	return p.w.destroy(p.id)
}

// Spectator 观察者相机
type Spectator struct {
	w *World
	t entity.Transform
}

func (s *Spectator) ID() int32 {
	return 0
}

func (s *Spectator) TypeID() string {
	return "spectator"
}

func (s *Spectator) Transform() entity.Transform {
	s.w.mtx.RLock()
	defer s.w.mtx.RUnlock()
	return s.t
}

func (s *Spectator) Location() entity.Location {
	return s.Transform().Location
}

func (s *Spectator) Velocity() entity.Vector3D {
	return entity.Vector3D{}
}

func (s *Spectator) BoundingBox() entity.BoundingBox {
	return entity.BoundingBox{}
}

func (s *Spectator) SetTransform(t entity.Transform) {
	s.w.mtx.Lock()
	defer s.w.mtx.Unlock()
	s.t = t
}

func (s *Spectator) IsAlive() bool {
	return true
}

func (s *Spectator) Destroy() error {
	return fmt.Errorf("lanesim: spectator cannot be destroyed")
}
