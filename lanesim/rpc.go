package lanesim

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"git.fiblab.net/sim/protos/v2/go/city/map/v2/mapv2connect"
	"git.fiblab.net/sim/syncer/v3"
	"google.golang.org/protobuf/proto"
)

var errNoTrafficLight = errors.New("traffic light id does not exist")

// trafficLightService 信号灯RPC服务，JunctionId即信号灯的Actor ID
type trafficLightService struct {
	mapv2connect.UnimplementedTrafficLightServiceHandler

	w *World
}

// Register 将信号灯服务注册到sidecar
func (w *World) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(
		mapv2connect.TrafficLightServiceName,
		func(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
			return w.TrafficLightHandler(opts...)
		},
	)
}

// TrafficLightHandler 信号灯服务的HTTP处理器
func (w *World) TrafficLightHandler(opts ...connect.HandlerOption) (string, http.Handler) {
	return mapv2connect.NewTrafficLightServiceHandler(&trafficLightService{w: w}, opts...)
}

// light 按ID查找信号灯（调用方持有世界锁）
func (s *trafficLightService) light(id int32) (*TrafficLight, error) {
	for _, l := range s.w.lights {
		if l.id == id {
			return l, nil
		}
	}
	return nil, connect.NewError(connect.CodeInvalidArgument, errNoTrafficLight)
}

// GetTrafficLight 获取信号灯程序、当前相位与剩余时间，信号灯失效时返回空程序
func (s *trafficLightService) GetTrafficLight(
	ctx context.Context, in *connect.Request[mapv2.GetTrafficLightRequest],
) (*connect.Response[mapv2.GetTrafficLightResponse], error) {
	s.w.mtx.RLock()
	defer s.w.mtx.RUnlock()
	l, err := s.light(in.Msg.JunctionId)
	if err != nil {
		return nil, err
	}
	if !l.ok {
		return connect.NewResponse(&mapv2.GetTrafficLightResponse{}), nil
	}
	return connect.NewResponse(&mapv2.GetTrafficLightResponse{
		TrafficLight:  proto.Clone(l.tl).(*mapv2.TrafficLight),
		PhaseIndex:    int32(l.step),
		TimeRemaining: l.remaining,
	}), nil
}

// SetTrafficLight 替换信号灯程序并设置相位；程序为空时信号灯失效（全绿灯）
func (s *trafficLightService) SetTrafficLight(
	ctx context.Context, in *connect.Request[mapv2.SetTrafficLightRequest],
) (*connect.Response[mapv2.SetTrafficLightResponse], error) {
	req := in.Msg
	if req.TrafficLight == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("traffic light is required"))
	}
	s.w.mtx.Lock()
	defer s.w.mtx.Unlock()
	l, err := s.light(req.TrafficLight.JunctionId)
	if err != nil {
		return nil, err
	}
	if len(req.TrafficLight.Phases) == 0 {
		l.ok = false
		return connect.NewResponse(&mapv2.SetTrafficLightResponse{}), nil
	}
	if req.TimeRemaining < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid remaining time"))
	}
	if n := len(req.TrafficLight.Phases); req.PhaseIndex < 0 || int(req.PhaseIndex) >= n {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("phase index %d out of range [0, %d)", req.PhaseIndex, n))
	}
	if err := l.set(proto.Clone(req.TrafficLight).(*mapv2.TrafficLight)); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err := l.setPhase(req.PhaseIndex, req.TimeRemaining); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	l.ok = true
	log.Infof("traffic light %d: program set with %d phases", l.id, len(req.TrafficLight.Phases))
	return connect.NewResponse(&mapv2.SetTrafficLightResponse{}), nil
}

// SetTrafficLightPhase 只修改当前相位与剩余时间
func (s *trafficLightService) SetTrafficLightPhase(
	ctx context.Context, in *connect.Request[mapv2.SetTrafficLightPhaseRequest],
) (*connect.Response[mapv2.SetTrafficLightPhaseResponse], error) {
	req := in.Msg
	if req.TimeRemaining < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid remaining time"))
	}
	s.w.mtx.Lock()
	defer s.w.mtx.Unlock()
	l, err := s.light(req.JunctionId)
	if err != nil {
		return nil, err
	}
	if err := l.setPhase(req.PhaseIndex, req.TimeRemaining); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return connect.NewResponse(&mapv2.SetTrafficLightPhaseResponse{}), nil
}

// SetTrafficLightStatus 设置信号灯是否正常工作，false表示失效（全绿灯）
func (s *trafficLightService) SetTrafficLightStatus(
	ctx context.Context, in *connect.Request[mapv2.SetTrafficLightStatusRequest],
) (*connect.Response[mapv2.SetTrafficLightStatusResponse], error) {
	s.w.mtx.Lock()
	defer s.w.mtx.Unlock()
	l, err := s.light(in.Msg.JunctionId)
	if err != nil {
		return nil, err
	}
	l.ok = in.Msg.Ok
	return connect.NewResponse(&mapv2.SetTrafficLightStatusResponse{}), nil
}
