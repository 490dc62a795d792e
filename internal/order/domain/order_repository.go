package domain

import (
	"context"
	"errors"
)

// ErrOrderNotFound 订单不存在
var ErrOrderNotFound = errors.New("order not found")

// OrderRepository 订单仓储接口
type OrderRepository interface {
	// Save 保存或更新订单
	Save(ctx context.Context, order *Order) error
	// Get 根据订单 ID 获取订单，不存在返回 ErrOrderNotFound
	Get(ctx context.Context, orderID int64) (*Order, error)
	// ListBySymbol 获取证券的订单列表
	ListBySymbol(ctx context.Context, symbol string, limit, offset int) ([]*Order, int64, error)
	// ListOpen 获取所有非终态订单
	ListOpen(ctx context.Context) ([]*Order, error)
	// MaxOrderID 当前最大订单 ID，服务重启时恢复 ID 计数器
	MaxOrderID(ctx context.Context) (int64, error)
}

// OrderReadRepository 订单读缓存接口（Redis 实现），miss 不算错误
type OrderReadRepository interface {
	// Get 读取缓存中的订单，miss 返回 (nil, nil)
	Get(ctx context.Context, orderID int64) (*Order, error)
	// Save 回填缓存
	Save(ctx context.Context, order *Order) error
	// Delete 主动失效
	Delete(ctx context.Context, orderID int64) error
}

// EventPublisher 订单事件发布接口（outbox 实现）
type EventPublisher interface {
	// Publish 在当前事务内登记事件，由 relay 异步投递
	Publish(ctx context.Context, eventType string, key string, payload interface{}) error
}
