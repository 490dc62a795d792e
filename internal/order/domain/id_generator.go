package domain

import "sync/atomic"

// IDGenerator 订单 ID 生成器
// 注入式原子计数器：算法线程与券商回报线程可能并发申请 ID，
// 测试可构造独立实例以保证确定性
type IDGenerator struct {
	counter atomic.Int64
}

// NewIDGenerator 创建生成器，下一个分配的 ID 为 start
func NewIDGenerator(start int64) *IDGenerator {
	g := &IDGenerator{}
	g.counter.Store(start - 1)
	return g
}

// Next 原子分配下一个 ID
func (g *IDGenerator) Next() int64 {
	return g.counter.Add(1)
}

// Current 最近分配的 ID（未分配过时为 start-1）
func (g *IDGenerator) Current() int64 {
	return g.counter.Load()
}
