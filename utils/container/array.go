package container

import (
	"sync"
)

// IncrementalArray 增量数组
// 功能：仿真步内的增删请求先缓存，等到Prepare时统一生效，保证一步之内遍历的数据不变
// 说明：增删请求可以并发提交，Prepare必须在单线程中调用
type IncrementalArray[T comparable] struct {
	data   []T
	index  map[T]int
	add    []T
	remove []T
	mtx    sync.Mutex
}

// NewIncrementalArray 创建增量数组
func NewIncrementalArray[T comparable]() *IncrementalArray[T] {
	return &IncrementalArray[T]{
		data:  make([]T, 0),
		index: make(map[T]int),
	}
}

// Len 当前生效的元素个数
func (a *IncrementalArray[T]) Len() int {
	return len(a.data)
}

// Data 当前生效的元素，调用方不应修改
func (a *IncrementalArray[T]) Data() []T {
	return a.data
}

// Contains 元素是否已经生效
func (a *IncrementalArray[T]) Contains(value T) bool {
	_, ok := a.index[value]
	return ok
}

// Add 增加元素（等到Prepare时才会真正增加）
func (a *IncrementalArray[T]) Add(value T) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	a.add = append(a.add, value)
}

// Remove 删除元素（等到Prepare时才会真正删除）
func (a *IncrementalArray[T]) Remove(value T) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	a.remove = append(a.remove, value)
}

// Prepare 执行缓存的增删操作
// 算法说明：
// 1. 删除：用数组末尾元素填补被删元素的位置，保持O(1)删除
// 2. 增加：追加到末尾，已存在的元素忽略
// 3. 清空缓存
func (a *IncrementalArray[T]) Prepare() {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	for _, x := range a.remove {
		ind, ok := a.index[x]
		if !ok {
			continue
		}
		last := len(a.data) - 1
		a.data[ind] = a.data[last]
		a.index[a.data[ind]] = ind
		a.data = a.data[:last]
		delete(a.index, x)
	}
	for _, x := range a.add {
		if _, ok := a.index[x]; ok {
			continue
		}
		a.index[x] = len(a.data)
		a.data = append(a.data, x)
	}
	a.add = a.add[:0]
	a.remove = a.remove[:0]
}
