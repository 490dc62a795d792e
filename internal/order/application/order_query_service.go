package application

import (
	"context"

	"github.com/wyfcoding/tradingcore/internal/order/domain"
)

// OrderQueryService 处理所有订单查询操作（Queries），
// 读路径先走缓存，miss 回源数据库并回填。
type OrderQueryService struct {
	repo     domain.OrderRepository
	readRepo domain.OrderReadRepository
}

// NewOrderQueryService 构造函数，readRepo 可为 nil（直连数据库）
func NewOrderQueryService(repo domain.OrderRepository, readRepo domain.OrderReadRepository) *OrderQueryService {
	return &OrderQueryService{repo: repo, readRepo: readRepo}
}

// GetOrder 查询单个订单
func (s *OrderQueryService) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	if s.readRepo != nil {
		if cached, err := s.readRepo.Get(ctx, orderID); err == nil && cached != nil {
			return cached, nil
		}
	}
	ord, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.readRepo != nil {
		_ = s.readRepo.Save(ctx, ord)
	}
	return ord, nil
}

// ListOrders 按证券分页查询订单
func (s *OrderQueryService) ListOrders(ctx context.Context, symbol string, limit, offset int) ([]*domain.Order, int64, error) {
	return s.repo.ListBySymbol(ctx, symbol, limit, offset)
}

// ListOpenOrders 查询全部非终态订单
func (s *OrderQueryService) ListOpenOrders(ctx context.Context) ([]*domain.Order, error) {
	return s.repo.ListOpen(ctx)
}
