// 随机数引擎，包装了golang.org/x/exp/rand，提供出生点选择、目的地打乱等常用方法
package randengine

import (
	"flag"
	"sync"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：可复现的随机数生成，非Safe方法不可并发调用
type Engine struct {
	*rand.Rand
	mtx sync.Mutex
}

// New 创建随机数引擎
// 参数：seed-随机数种子，实际种子会加上命令行指定的偏移量
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// Permutation 返回[0, n)的随机排列
func (e *Engine) Permutation(n int) []int {
	return e.Perm(n)
}

// NormFloat64Safe 标准正态分布随机数（线程安全）
func (e *Engine) NormFloat64Safe() float64 {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.NormFloat64()
}
