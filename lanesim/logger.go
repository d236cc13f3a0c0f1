package lanesim

import "github.com/sirupsen/logrus"

// log 仿真器模块的日志记录器
var log = logrus.WithField("module", "lanesim")
