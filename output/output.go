// 运行记录输出：每步每个智能体一条记录，缓存后批量写入MongoDB
package output

import (
	"context"
	"fmt"
	"sync"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var log = logrus.WithField("module", "output")

// Record 单个智能体在一步中的状态与决策
type Record struct {
	Step            int32   `bson:"step"`
	T               float64 `bson:"t"`
	Frame           uint64  `bson:"frame"`
	VehicleID       int32   `bson:"vehicle_id"`
	Style           string  `bson:"style"`
	State           string  `bson:"state"`
	X               float64 `bson:"x"`
	Y               float64 `bson:"y"`
	Yaw             float64 `bson:"yaw"`
	Speed           float64 `bson:"speed"`       // km/h
	SpeedLimit      float64 `bson:"speed_limit"` // km/h
	TargetSpeed     float64 `bson:"target_speed"`
	Throttle        float64 `bson:"throttle"`
	Steer           float64 `bson:"steer"`
	Brake           float64 `bson:"brake"`
	OvertakeCounter int     `bson:"overtake_counter"`
	TailgateCounter int     `bson:"tailgate_counter"`
	Stopped         bool    `bson:"stopped"` // 处于紧急停车分支
	Done            bool    `bson:"done"`
}

// defaultMaxBuffer 写入失败时最多保留的记录条数
const defaultMaxBuffer = 100000

// sink 批量写入接口，*mongo.Collection实现了该接口
type sink interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// Recorder 运行记录缓存
// 功能：缓存每步的记录，每flushInterval步批量写入一次
// 说明：未配置URI时Recorder处于关闭状态，所有方法都是空操作
type Recorder struct {
	client        *mongo.Client
	sink          sink
	flushInterval int32
	maxBuffer     int

	mtx     sync.Mutex
	buffer  []Record
	steps   int32
	written int
}

// New 根据配置创建Recorder
// 参数：cfg-输出配置，URI为空时返回关闭状态的Recorder
func New(cfg config.Output) (*Recorder, error) {
	if cfg.URI == "" {
		log.Info("no output uri, telemetry disabled")
		return &Recorder{}, nil
	}
	if cfg.DB == "" || cfg.Col == "" {
		return nil, fmt.Errorf("output: db and col are required when uri is set")
	}
	client := mongoutil.NewClient(cfg.URI)
	r := newRecorder(client.Database(cfg.DB).Collection(cfg.Col), cfg.FlushInterval)
	r.client = client
	log.Infof("telemetry to %s.%s every %d steps", cfg.DB, cfg.Col, r.flushInterval)
	return r, nil
}

func newRecorder(s sink, flushInterval int32) *Recorder {
	return &Recorder{
		sink:          s,
		flushInterval: max(flushInterval, 1),
		maxBuffer:     defaultMaxBuffer,
	}
}

// Enabled 是否输出
func (r *Recorder) Enabled() bool {
	return r.sink != nil
}

// Written 已经写入的记录条数
func (r *Recorder) Written() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.written
}

// Add 缓存记录（可并发调用）
func (r *Recorder) Add(records ...Record) {
	if !r.Enabled() {
		return
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.buffer = append(r.buffer, records...)
}

// StepDone 一步结束，达到写入间隔时写入数据库
func (r *Recorder) StepDone(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}
	r.mtx.Lock()
	r.steps++
	due := r.steps%r.flushInterval == 0
	r.mtx.Unlock()
	if due {
		return r.Flush(ctx)
	}
	return nil
}

// Flush 写入所有缓存的记录
// 说明：写入失败时丢弃已经写入的前缀（有序写入），其余记录留待下次写入；
// 保留的记录超过maxBuffer时丢弃最旧的记录
func (r *Recorder) Flush(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if len(r.buffer) == 0 {
		return nil
	}
	docs := make([]interface{}, len(r.buffer))
	for i := range r.buffer {
		docs[i] = r.buffer[i]
	}
	res, err := r.sink.InsertMany(ctx, docs)
	if err != nil {
		inserted := 0
		if res != nil {
			inserted = min(len(res.InsertedIDs), len(r.buffer))
		}
		r.written += inserted
		r.buffer = append(r.buffer[:0], r.buffer[inserted:]...)
		if over := len(r.buffer) - r.maxBuffer; over > 0 {
			log.Warnf("output buffer full, drop %d oldest records", over)
			r.buffer = append(r.buffer[:0], r.buffer[over:]...)
		}
		return fmt.Errorf("output: insert %d records (%d inserted): %w", len(docs), inserted, err)
	}
	r.written += len(docs)
	r.buffer = r.buffer[:0]
	return nil
}

// Buffered 尚未写入的记录条数
func (r *Recorder) Buffered() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.buffer)
}

// Close 写入剩余记录并断开数据库连接
func (r *Recorder) Close(ctx context.Context) error {
	err := r.Flush(ctx)
	if r.client != nil {
		if derr := r.client.Disconnect(ctx); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}
