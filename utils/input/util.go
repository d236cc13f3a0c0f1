package input

import (
	"fmt"
)

// Validate 检查场景数据的有效性
// 功能：验证道路参数以及限速区段、信号灯、行人、出生点都位于道路范围内
// 返回：第一个发现的错误
func (s *Scenario) Validate() error {
	r := s.Road
	if r.Length <= 0 || r.LaneCount <= 0 || r.LaneWidth <= 0 || r.SpeedLimit <= 0 {
		return fmt.Errorf("scenario %q: bad road %+v", s.Name, r)
	}
	for i, z := range s.SpeedZones {
		if z.From < 0 || z.To > r.Length || z.From >= z.To || z.Limit <= 0 {
			return fmt.Errorf("scenario %q: bad speed zone %d %+v", s.Name, i, z)
		}
	}
	for i, tl := range s.TrafficLights {
		if tl.S <= 0 || tl.S+tl.JunctionLength > r.Length || tl.JunctionLength <= 0 {
			return fmt.Errorf("scenario %q: traffic light %d out of road %+v", s.Name, i, tl)
		}
		if tl.Green < 0 || tl.Yellow < 0 || tl.Red < 0 || tl.Green+tl.Yellow+tl.Red <= 0 {
			return fmt.Errorf("scenario %q: traffic light %d has bad timing %+v", s.Name, i, tl)
		}
	}
	for i, w := range s.Walkers {
		if w.S < 0 || w.S > r.Length || w.Speed <= 0 {
			return fmt.Errorf("scenario %q: bad walker %d %+v", s.Name, i, w)
		}
	}
	for i, p := range s.SpawnPoints {
		if p.Lane < 1 || int(p.Lane) > r.LaneCount || p.S < 0 || p.S > r.Length {
			return fmt.Errorf("scenario %q: spawn point %d out of road %+v", s.Name, i, p)
		}
	}
	return nil
}

// Default 内置示例场景
// 说明：1公里三车道直道，两个路口信号灯，一处学校限速区段与一个横穿行人
func Default() *Scenario {
	s := &Scenario{
		Name: "straight-3lane",
		Road: Road{
			ID:         1,
			Length:     1000,
			LaneCount:  3,
			LaneWidth:  3.5,
			SpeedLimit: 60,
		},
		SpeedZones: []SpeedZone{
			{From: 600, To: 700, Limit: 30},
		},
		TrafficLights: []TrafficLight{
			{S: 300, JunctionLength: 20, Green: 20, Yellow: 3, Red: 15},
			{S: 800, JunctionLength: 20, Green: 25, Yellow: 3, Red: 10, Offset: 12},
		},
		Walkers: []Walker{
			{S: 500, Speed: 1.2, Delay: 15},
		},
	}
	for _, lane := range []int32{1, 2, 3} {
		for _, sp := range []float64{20, 60, 100, 140, 880, 920, 960} {
			s.SpawnPoints = append(s.SpawnPoints, SpawnPoint{Lane: lane, S: sp})
		}
	}
	return s
}
