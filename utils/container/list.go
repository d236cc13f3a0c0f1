package container

import (
	"fmt"
	"log"
	"sort"
)

// ListNode 有序链表节点
// 功能：记录对象在车道上的纵向位置S，链表按S升序排列（从车道起点到终点）
type ListNode[T any] struct {
	parent     *List[T]
	prev, next *ListNode[T]
	S          float64 // 键值（车道上的位置）
	Value      T
}

func (n *ListNode[T]) String() string {
	return fmt.Sprintf("Node{S:%v, Value:%+v}", n.S, n.Value)
}

// Prev 后方（S更小）的节点
func (n *ListNode[T]) Prev() *ListNode[T] {
	return n.prev
}

// Next 前方（S更大）的节点
func (n *ListNode[T]) Next() *ListNode[T] {
	return n.next
}

// Parent 节点所在链表
func (n *ListNode[T]) Parent() *List[T] {
	return n.parent
}

// List 按S升序排列的双向链表
// 功能：维护一条车道上的所有车辆，支持有序插入、删除与移动后的增量重排
type List[T any] struct {
	ID         string
	head, tail *ListNode[T]
	length     int
}

func (l *List[T]) String() string {
	return fmt.Sprintf("List{ID:%v, Len:%v}", l.ID, l.length)
}

// Len 链表长度
func (l *List[T]) Len() int {
	return l.length
}

// First 车道起点处的第一个节点
func (l *List[T]) First() *ListNode[T] {
	return l.head
}

// Last 车道终点处的最后一个节点
func (l *List[T]) Last() *ListNode[T] {
	return l.tail
}

// Keys 所有节点的S
func (l *List[T]) Keys() []float64 {
	keys := make([]float64, 0, l.length)
	for node := l.head; node != nil; node = node.next {
		keys = append(keys, node.S)
	}
	return keys
}

// Values 所有节点的值
func (l *List[T]) Values() []T {
	values := make([]T, 0, l.length)
	for node := l.head; node != nil; node = node.next {
		values = append(values, node.Value)
	}
	return values
}

func (l *List[T]) insertBefore(at, add *ListNode[T]) {
	add.parent = l
	add.next = at
	add.prev = at.prev
	if at.prev != nil {
		at.prev.next = add
	} else {
		l.head = add
	}
	at.prev = add
	l.length++
}

func (l *List[T]) pushBack(add *ListNode[T]) {
	add.parent = l
	add.prev = l.tail
	add.next = nil
	if l.tail != nil {
		l.tail.next = add
	} else {
		l.head = add
	}
	l.tail = add
	l.length++
}

// Insert 按S有序插入节点
// 功能：从链表头向后找到第一个S不小于新节点的位置并插入
// 参数：add-新节点，不能已经属于某个链表
func (l *List[T]) Insert(add *ListNode[T]) {
	if add.parent != nil {
		log.Panic("insert node who already in list")
	}
	node := l.head
	for node != nil && node.S < add.S {
		node = node.next
	}
	if node != nil {
		l.insertBefore(node, add)
	} else {
		l.pushBack(add)
	}
}

// Remove 删除节点
func (l *List[T]) Remove(node *ListNode[T]) {
	if node.parent != l {
		log.Panic("remove node from wrong list")
	}
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	node.parent = nil
	l.length--
}

// PopUnsorted 移除逆序节点
// 功能：移除S小于其前驱的节点，剩余链表保持有序
// 返回：被移除的节点
func (l *List[T]) PopUnsorted() (unsorted []*ListNode[T]) {
	for node := l.head; node != nil; {
		next := node.next
		if node.prev != nil && node.prev.S > node.S {
			l.Remove(node)
			unsorted = append(unsorted, node)
		}
		node = next
	}
	return unsorted
}

// Merge 批量有序插入节点
func (l *List[T]) Merge(adds []*ListNode[T]) {
	sort.SliceStable(adds, func(i, j int) bool { return adds[i].S < adds[j].S })
	node := l.head
	for _, add := range adds {
		if add.parent != nil {
			log.Panic("merge node who already in list")
		}
		for node != nil && node.S < add.S {
			node = node.next
		}
		if node != nil {
			l.insertBefore(node, add)
		} else {
			l.pushBack(add)
		}
	}
}

// Resort 节点S被修改后恢复有序
// 说明：每步车辆移动距离有限，逆序节点很少，采用移除后归并的增量方式
func (l *List[T]) Resort() {
	l.Merge(l.PopUnsorted())
}

// Ahead 第一个S严格大于s的节点（前车），不存在时返回nil
func (l *List[T]) Ahead(s float64) *ListNode[T] {
	for node := l.head; node != nil; node = node.next {
		if node.S > s {
			return node
		}
	}
	return nil
}

// Behind 最后一个S严格小于s的节点（后车），不存在时返回nil
func (l *List[T]) Behind(s float64) *ListNode[T] {
	for node := l.tail; node != nil; node = node.prev {
		if node.S < s {
			return node
		}
	}
	return nil
}
