package lanesim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/behavior-agent-go/entity"
)

const defaultWalkerSpeed = 1.4

// vehicleSpec 车辆蓝图的物理参数
type vehicleSpec struct {
	extent    entity.Vector3D // 包围盒半长宽高
	wheelbase float64         // 轴距（米）
	maxA      float64         // 油门踩满时的加速度（米/秒²）
}

// blueprintLibrary 蓝图库
type blueprintLibrary struct {
	specs map[string]vehicleSpec
}

func newBlueprintLibrary() *blueprintLibrary {
	return &blueprintLibrary{specs: map[string]vehicleSpec{
		"vehicle.lincoln.mkz2017": {extent: entity.Vector3D{X: 2.45, Y: 1.05, Z: 0.75}, wheelbase: 2.9, maxA: 4},
		"vehicle.tesla.model3":    {extent: entity.Vector3D{X: 2.4, Y: 1.0, Z: 0.75}, wheelbase: 2.9, maxA: 5},
		"vehicle.mercedes.coupe":  {extent: entity.Vector3D{X: 2.5, Y: 1.05, Z: 0.7}, wheelbase: 2.8, maxA: 4},
		"vehicle.audi.a2":         {extent: entity.Vector3D{X: 1.9, Y: 0.9, Z: 0.8}, wheelbase: 2.5, maxA: 3},
	}}
}

// IDs 所有蓝图ID（排序）
func (b *blueprintLibrary) IDs() []string {
	ids := append(lo.Keys(b.specs), "walker.pedestrian.0001")
	sort.Strings(ids)
	return ids
}

// Find 按ID查找蓝图
func (b *blueprintLibrary) Find(id string) (entity.Blueprint, error) {
	if _, ok := b.specs[id]; !ok && id != "walker.pedestrian.0001" {
		return entity.Blueprint{}, fmt.Errorf("%w: %s (available: %v)", entity.ErrBlueprint, id, b.IDs())
	}
	bp := entity.Blueprint{ID: id}
	bp.SetAttribute("role_name", "autopilot")
	return bp, nil
}

// Client 进程内仿真器客户端
type Client struct {
	world   *World
	mtx     sync.Mutex
	timeout time.Duration
}

// NewClient 创建连接到给定世界的客户端
func NewClient(w *World) *Client {
	return &Client{world: w, timeout: 10 * time.Second}
}

// SetTimeout 设置单次请求超时
func (c *Client) SetTimeout(d time.Duration) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.timeout = d
}

// Timeout 单次请求超时
func (c *Client) Timeout() time.Duration {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.timeout
}

// request 为单次请求附加超时，超时为0时不限制
func (c *Client) request(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := c.Timeout(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return ctx, func() {}
}

// World 获取当前运行的世界
func (c *Client) World(ctx context.Context) (entity.IWorld, error) {
	ctx, cancel := c.request(ctx)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrTimeout, err)
	}
	return c.world, nil
}

// ApplyBatch 批量执行指令，单条指令失败不影响其余指令，超时后剩余指令不再执行
func (c *Client) ApplyBatch(ctx context.Context, cmds []entity.Command) error {
	ctx, cancel := c.request(ctx)
	defer cancel()
	var errs []error
	for i, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %d of %d commands not applied: %v", entity.ErrTimeout, len(cmds)-i, len(cmds), err))
			break
		}
		if err := c.world.destroy(cmd.DestroyActor); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
