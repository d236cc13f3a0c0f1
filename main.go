package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"git.fiblab.net/sim/syncer/v3"
	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/behavior-agent-go/lanesim"
	"github.com/tsinghua-fib-lab/behavior-agent-go/output"
	"github.com/tsinghua-fib-lab/behavior-agent-go/task"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/config"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/input"
)

var (
	// 分布式模式syncer地址，如果设置为空则激活独立部署模式
	// 独立部署：不需要syncer，不向其他服务提供受保护的RPC访问
	syncerAddr = flag.String("syncer", "", "syncer address (empty means standalone mode), e.g. http://localhost:53001")
	// 本程序监听的gRPC地址
	grpcAddr = flag.String("listen", ":51102", "gRPC listening address")
	// 配置文件路径
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// 随机数种子，非0时覆盖配置文件中的control.seed
	seed = flag.Uint64("seed", 0, "random seed (0 means use control.seed in config)")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "main")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
	// 获取配置
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	} else {
		log.Panic("config file or config data must be specified")
	}
	c, err := config.Load(file)
	if err != nil {
		log.Panicf("config file load err: %v", err)
	}
	if *seed != 0 {
		c.C.Seed = *seed
		c.All.Control.Seed = *seed
	}
	log.Infof("%+v", c.All)

	// 场景与仿真世界
	scenario, err := input.Init(c.All.Input)
	if err != nil {
		log.Panicf("scenario load err: %v", err)
	}
	world := lanesim.NewWorld(scenario, c.C.Seed)
	client := lanesim.NewClient(world)

	recorder, err := output.New(c.All.Output)
	if err != nil {
		log.Panicf("output init err: %v", err)
	}

	sidecar := syncer.NewSidecar(task.SelfName, *grpcAddr, *syncerAddr)
	world.Register(sidecar)
	t := task.NewContext(c, client, recorder, sidecar)
	defer t.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := t.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("run failed: %v", err)
		t.Close()
		os.Exit(1)
	}
}
