package agent

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity"
)

const pidWindow = 10 // 积分项使用的历史误差个数

// errorWindow 最近pidWindow个误差
type errorWindow struct {
	errs []float64
}

func (w *errorWindow) push(e float64) {
	w.errs = append(w.errs, e)
	if len(w.errs) > pidWindow {
		w.errs = w.errs[1:]
	}
}

// terms 微分项与积分项，误差不足两个时均为0
func (w *errorWindow) terms(dt float64) (de, ie float64) {
	n := len(w.errs)
	if n < 2 {
		return 0, 0
	}
	de = (w.errs[n-1] - w.errs[n-2]) / dt
	ie = lo.Sum(w.errs) * dt
	return
}

// PIDParams PID参数
type PIDParams struct {
	KP, KI, KD float64
}

var (
	defaultLateral      = PIDParams{KP: 1.95, KI: 0.05, KD: 0.2}
	defaultLongitudinal = PIDParams{KP: 1.0, KI: 0.05, KD: 0}
)

// longitudinalController 纵向PID，输入速度误差（km/h），输出[-1, 1]的加速需求
type longitudinalController struct {
	PIDParams
	dt  float64
	win errorWindow
}

func (c *longitudinalController) step(targetSpeed, currentSpeed float64) float64 {
	e := targetSpeed - currentSpeed
	c.win.push(e)
	de, ie := c.win.terms(c.dt)
	return lo.Clamp(c.KP*e+c.KD*de+c.KI*ie, -1, 1)
}

// lateralController 横向PID，输入车头朝向与指向目标路点方向的夹角（弧度，右偏为正）
type lateralController struct {
	PIDParams
	dt  float64
	win errorWindow
}

func (c *lateralController) step(target entity.Location, vehicle entity.Transform) float64 {
	fwd := vehicle.ForwardVector()
	wx, wy := target.X-vehicle.Location.X, target.Y-vehicle.Location.Y
	var angle float64
	if norm := math.Hypot(wx, wy) * math.Hypot(fwd.X, fwd.Y); norm > 0 {
		angle = math.Acos(lo.Clamp((fwd.X*wx+fwd.Y*wy)/norm, -1, 1))
		if fwd.X*wy-fwd.Y*wx < 0 {
			angle = -angle
		}
	}
	c.win.push(angle)
	de, ie := c.win.terms(c.dt)
	return lo.Clamp(c.KP*angle+c.KD*de+c.KI*ie, -1, 1)
}

// vehicleController 纵向与横向PID的组合
// 功能：由目标速度与目标路点计算油门、刹车与方向盘
// 说明：方向盘每步变化不超过steerRate，绝对值不超过maxSteer
type vehicleController struct {
	lon         longitudinalController
	lat         lateralController
	maxThrottle float64
	maxBrake    float64
	maxSteer    float64
	pastSteer   float64
}

const steerRate = 0.1

func newVehicleController(dt float64, lat, lon PIDParams, pastSteer float64) *vehicleController {
	return &vehicleController{
		lon:         longitudinalController{PIDParams: lon, dt: dt},
		lat:         lateralController{PIDParams: lat, dt: dt},
		maxThrottle: 0.75,
		maxBrake:    0.3,
		maxSteer:    0.8,
		pastSteer:   pastSteer,
	}
}

func (c *vehicleController) step(targetSpeed, speed float64, target entity.Location, vehicle entity.Transform) entity.VehicleControl {
	acc := c.lon.step(targetSpeed, speed)
	steer := c.lat.step(target, vehicle)

	var control entity.VehicleControl
	if acc >= 0 {
		control.Throttle = math.Min(acc, c.maxThrottle)
	} else {
		control.Brake = math.Min(-acc, c.maxBrake)
	}
	steer = lo.Clamp(steer, c.pastSteer-steerRate, c.pastSteer+steerRate)
	steer = lo.Clamp(steer, -c.maxSteer, c.maxSteer)
	control.Steer = steer
	c.pastSteer = steer
	return control
}
