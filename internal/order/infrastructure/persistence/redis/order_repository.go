// Package redis 提供订单读缓存的 Redis 实现。
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/tradingcore/internal/order/domain"
	"github.com/wyfcoding/tradingcore/pkg/cache"
	"github.com/wyfcoding/tradingcore/pkg/logger"
)

const orderCacheTTL = 5 * time.Minute

// orderReadRepositoryImpl 是 domain.OrderReadRepository 的 Redis 实现，
// 缓存序列化后的订单快照，miss 不算错误。
type orderReadRepositoryImpl struct {
	cache *cache.RedisCache
}

// NewOrderReadRepository 创建订单读缓存实例
func NewOrderReadRepository(c *cache.RedisCache) domain.OrderReadRepository {
	return &orderReadRepositoryImpl{cache: c}
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order:%d", orderID)
}

// Get 读取缓存中的订单，miss 返回 (nil, nil)
func (r *orderReadRepositoryImpl) Get(ctx context.Context, orderID int64) (*domain.Order, error) {
	var serialized domain.SerializedOrder
	hit, err := r.cache.GetJSON(ctx, orderKey(orderID), &serialized)
	if err != nil {
		logger.Warn(ctx, "order cache read failed", "order_id", orderID, "error", err)
		return nil, nil
	}
	if !hit {
		return nil, nil
	}

	order, err := domain.FromSerialized(&serialized)
	if err != nil {
		// 缓存内容不可用时直接失效，走数据库回源
		_ = r.cache.Delete(ctx, orderKey(orderID))
		return nil, nil
	}
	return order, nil
}

// Save 回填缓存
func (r *orderReadRepositoryImpl) Save(ctx context.Context, order *domain.Order) error {
	return r.cache.SetJSON(ctx, orderKey(order.ID), order.Serialize(), orderCacheTTL)
}

// Delete 主动失效
func (r *orderReadRepositoryImpl) Delete(ctx context.Context, orderID int64) error {
	return r.cache.Delete(ctx, orderKey(orderID))
}
