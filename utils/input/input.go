package input

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/yaml.v2"
)

// ErrNoScenario MongoDB中不存在指定场景
var ErrNoScenario = errors.New("scenario not found")

const loadTimeout = 30 * time.Second

// Init 加载场景
// 功能：根据配置加载场景数据
// 参数：in-输入配置
// 返回：通过校验的场景
// 算法说明：
// 1. 指定了文件则从YAML文件加载（优先级高于MongoDB）
// 2. 否则指定了MongoDB连接与集合则从数据库加载
// 3. 都未指定时使用内置示例场景
// 4. 校验场景数据
func Init(in config.Input) (*Scenario, error) {
	var (
		s   *Scenario
		err error
	)
	switch {
	case in.Scenario.File != "":
		s, err = LoadFile(in.Scenario.File)
	case in.URI != "" && in.Scenario.GetColl() != "":
		client := mongoutil.NewClient(in.URI)
		defer client.Disconnect(context.Background())
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		s, err = LoadMongo(ctx, client.Database(in.Scenario.GetDb()).Collection(in.Scenario.GetColl()), in.Scenario.ID)
	default:
		log.Info("no scenario input configured, use built-in scenario")
		s = Default()
	}
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	log.Infof("scenario %q: road %+v, %d traffic lights, %d walkers, %d spawn points",
		s.Name, s.Road, len(s.TrafficLights), len(s.Walkers), len(s.SpawnPoints))
	return s, nil
}

// LoadFile 从YAML文件加载场景
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario from file: %w", err)
	}
	return Parse(data)
}

// Parse 解析YAML场景数据（严格模式）
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	return &s, nil
}

// LoadMongo 从MongoDB集合加载场景
// 参数：col-场景集合，name-场景名，为空时取集合中第一个场景
func LoadMongo(ctx context.Context, col *mongo.Collection, name string) (*Scenario, error) {
	filter := bson.M{}
	if name != "" {
		filter = bson.M{"name": name}
	}
	var s Scenario
	if err := col.FindOne(ctx, filter).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %q in %s", ErrNoScenario, name, col.Name())
		}
		return nil, fmt.Errorf("failed to load scenario from mongo: %w", err)
	}
	return &s, nil
}
