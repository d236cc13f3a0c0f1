package clock

import (
	"fmt"
	"sync"

	"git.fiblab.net/sim/protos/v2/go/city/clock/v1/clockv1connect"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/config"
)

// Clock 同步模式下的仿真时钟
// 功能：记录当前步数、仿真时间与仿真器帧号，每次World.Tick后推进一步
// 说明：运行循环推进时钟，RPC并发读取，由读写锁保护
type Clock struct {
	clockv1connect.UnimplementedClockServiceHandler

	DT         float64 // 每步时间间隔（秒），与仿真器的fixed_delta_seconds一致
	START_STEP int32   // 起始步
	END_STEP   int32   // 结束步，模拟区间[START, END)

	mtx          sync.RWMutex
	T            float64 // 当前时间（秒）
	InternalStep int32   // 当前步数
	Frame        uint64  // 最近一次Tick返回的仿真器帧号
}

// New 根据控制步配置创建时钟
func New(stepConfig config.ControlStep) *Clock {
	c := &Clock{
		DT:         stepConfig.Interval,
		START_STEP: stepConfig.Start,
		END_STEP:   stepConfig.Start + stepConfig.Total,
	}
	c.Init()
	return c
}

// Init 重置为起始步
func (c *Clock) Init() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.InternalStep = c.START_STEP
	c.T = float64(c.InternalStep) * c.DT
	c.Frame = 0
}

// Advance 推进一步
// 参数：frame-仿真器Tick返回的帧号
func (c *Clock) Advance(frame uint64) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.InternalStep++
	c.T = float64(c.InternalStep) * c.DT
	c.Frame = frame
}

// Step 当前步数
func (c *Clock) Step() int32 {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.InternalStep
}

// Time 当前时间（秒）
func (c *Clock) Time() float64 {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.T
}

// Ended 是否已经到达结束步
func (c *Clock) Ended() bool {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.InternalStep >= c.END_STEP
}

// String 当前时间，格式为HH:MM:SS
func (c *Clock) String() string {
	h, m, s := c.GetHourMinuteSecond()
	return fmt.Sprintf("%02d:%02d:%02d", h, m, int(s))
}

// GetHourMinuteSecond 获取当前时间的小时、分钟、秒（秒为浮点数）
func (c *Clock) GetHourMinuteSecond() (int, int, float64) {
	t := c.Time()
	hour := int(t) / 3600
	minute := int(t) % 3600 / 60
	second := t - float64(hour*3600+minute*60)
	return hour, minute, second
}
