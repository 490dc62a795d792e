// Package mysql 提供订单仓储接口的 MySQL GORM 实现。
package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/tradingcore/internal/order/domain"
	"github.com/wyfcoding/tradingcore/pkg/db"
	"github.com/wyfcoding/tradingcore/pkg/logger"
)

// OrderModel 订单数据库模型，直接映射 orders 表。
// 价格与数量列用 decimal 字符串表示，避免浮点精度损失。
type OrderModel struct {
	gorm.Model
	OrderID         int64  `gorm:"column:order_id;uniqueIndex;not null;comment:订单唯一标识"`
	Symbol          string `gorm:"column:symbol;type:varchar(20);index;not null;comment:证券代码"`
	Type            string `gorm:"column:type;type:varchar(20);not null;comment:订单类型"`
	Status          string `gorm:"column:status;type:varchar(20);index;not null;comment:当前订单状态"`
	Quantity        string `gorm:"column:quantity;type:decimal(32,18);not null;comment:带符号委托数量"`
	FilledQuantity  string `gorm:"column:filled_quantity;type:decimal(32,18);default:'0';not null;comment:累计成交数量"`
	Price           string `gorm:"column:price;type:decimal(32,18);not null;comment:参考价格"`
	PriceCurrency   string `gorm:"column:price_currency;type:varchar(10);comment:计价币种"`
	LimitPrice      string `gorm:"column:limit_price;type:decimal(32,18);comment:限价"`
	StopPrice       string `gorm:"column:stop_price;type:decimal(32,18);comment:止损触发价"`
	TriggerPrice    string `gorm:"column:trigger_price;type:decimal(32,18);comment:触碰价"`
	CreatedTime     int64  `gorm:"column:created_time;not null;comment:下单时间(unix秒,UTC)"`
	LastFillTime    *int64 `gorm:"column:last_fill_time;comment:最近成交时间"`
	LastUpdateTime  *int64 `gorm:"column:last_update_time;comment:最近改单时间"`
	CanceledTime    *int64 `gorm:"column:canceled_time;comment:撤单时间"`
	Tag             string `gorm:"column:tag;type:varchar(255);comment:订单备注"`
	BrokerIDs       string `gorm:"column:broker_ids;type:text;comment:券商回执ID列表(JSON)"`
	ContingentID    int64  `gorm:"column:contingent_id;comment:关联条件单ID"`
	TimeInForceType string `gorm:"column:time_in_force_type;type:varchar(20);comment:有效期策略"`
	TIFExpiry       int64  `gorm:"column:time_in_force_expiry;comment:有效期截止(unix秒)"`
	SubmissionBid   string `gorm:"column:submission_bid;type:decimal(32,18);comment:提交时买一价"`
	SubmissionAsk   string `gorm:"column:submission_ask;type:decimal(32,18);comment:提交时卖一价"`
	SubmissionLast  string `gorm:"column:submission_last;type:decimal(32,18);comment:提交时最新价"`
}

// TableName 指定表名
func (OrderModel) TableName() string {
	return "orders"
}

// orderRepositoryImpl 是 domain.OrderRepository 接口的 GORM 实现。
type orderRepositoryImpl struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储实例
func NewOrderRepository(gormDB *gorm.DB) domain.OrderRepository {
	return &orderRepositoryImpl{db: gormDB}
}

// Save 实现 domain.OrderRepository.Save，按 order_id 幂等 upsert
func (r *orderRepositoryImpl) Save(ctx context.Context, order *domain.Order) error {
	model, err := toModel(order)
	if err != nil {
		return err
	}

	tx := db.TxFromContext(ctx, r.db)
	err = tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "quantity", "filled_quantity", "limit_price", "stop_price",
			"last_fill_time", "last_update_time", "canceled_time", "tag", "broker_ids",
		}),
	}).Create(model).Error
	if err != nil {
		logger.Error(ctx, "order_repository.save failed", "order_id", order.ID, "error", err)
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// Get 实现 domain.OrderRepository.Get
func (r *orderRepositoryImpl) Get(ctx context.Context, orderID int64) (*domain.Order, error) {
	var model OrderModel
	tx := db.TxFromContext(ctx, r.db)
	if err := tx.WithContext(ctx).Where("order_id = ?", orderID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		logger.Error(ctx, "order_repository.get failed", "order_id", orderID, "error", err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return r.toDomain(ctx, &model)
}

// ListBySymbol 实现 domain.OrderRepository.ListBySymbol
func (r *orderRepositoryImpl) ListBySymbol(ctx context.Context, symbol string, limit, offset int) ([]*domain.Order, int64, error) {
	var models []OrderModel
	var total int64

	query := r.db.WithContext(ctx).Model(&OrderModel{}).Where("symbol = ?", symbol)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("order_id desc").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		logger.Error(ctx, "order_repository.list_by_symbol failed", "symbol", symbol, "error", err)
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := make([]*domain.Order, 0, len(models))
	for i := range models {
		order, err := r.toDomain(ctx, &models[i])
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	return orders, total, nil
}

// ListOpen 实现 domain.OrderRepository.ListOpen
func (r *orderRepositoryImpl) ListOpen(ctx context.Context) ([]*domain.Order, error) {
	var models []OrderModel
	terminal := []string{
		domain.StatusFilled.String(),
		domain.StatusCanceled.String(),
		domain.StatusInvalid.String(),
	}
	if err := r.db.WithContext(ctx).Where("status NOT IN ?", terminal).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list open orders: %w", err)
	}

	orders := make([]*domain.Order, 0, len(models))
	for i := range models {
		order, err := r.toDomain(ctx, &models[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// MaxOrderID 实现 domain.OrderRepository.MaxOrderID
func (r *orderRepositoryImpl) MaxOrderID(ctx context.Context) (int64, error) {
	var max int64
	err := r.db.WithContext(ctx).Model(&OrderModel{}).
		Select("COALESCE(MAX(order_id), 0)").Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("failed to query max order id: %w", err)
	}
	return max, nil
}

func toModel(order *domain.Order) (*OrderModel, error) {
	s := order.Serialize()

	brokerIDs := ""
	if len(s.BrokerIDs) > 0 {
		data, err := json.Marshal(s.BrokerIDs)
		if err != nil {
			return nil, err
		}
		brokerIDs = string(data)
	}

	return &OrderModel{
		OrderID:         s.ID,
		Symbol:          s.Symbol,
		Type:            s.Type,
		Status:          s.Status,
		Quantity:        s.Quantity.String(),
		FilledQuantity:  s.FilledQuantity.String(),
		Price:           s.Price.String(),
		PriceCurrency:   s.PriceCurrency,
		LimitPrice:      s.LimitPrice.String(),
		StopPrice:       s.StopPrice.String(),
		TriggerPrice:    s.TriggerPrice.String(),
		CreatedTime:     s.CreatedTime,
		LastFillTime:    s.LastFillTime,
		LastUpdateTime:  s.LastUpdateTime,
		CanceledTime:    s.CanceledTime,
		Tag:             s.Tag,
		BrokerIDs:       brokerIDs,
		ContingentID:    s.ContingentID,
		TimeInForceType: s.TimeInForceType,
		TIFExpiry:       s.TIFExpiry,
		SubmissionBid:   s.SubmissionBid.String(),
		SubmissionAsk:   s.SubmissionAsk.String(),
		SubmissionLast:  s.SubmissionLast.String(),
	}, nil
}

func (r *orderRepositoryImpl) toDomain(ctx context.Context, model *OrderModel) (*domain.Order, error) {
	s := &domain.SerializedOrder{
		ID:              model.OrderID,
		Symbol:          model.Symbol,
		Type:            model.Type,
		Status:          model.Status,
		CreatedTime:     model.CreatedTime,
		LastFillTime:    model.LastFillTime,
		LastUpdateTime:  model.LastUpdateTime,
		CanceledTime:    model.CanceledTime,
		Tag:             model.Tag,
		ContingentID:    model.ContingentID,
		PriceCurrency:   model.PriceCurrency,
		TimeInForceType: model.TimeInForceType,
		TIFExpiry:       model.TIFExpiry,
	}

	var err error
	if s.Quantity, err = parseDecimal(model.Quantity); err != nil {
		return nil, fmt.Errorf("order %d: bad quantity: %w", model.OrderID, err)
	}
	if s.FilledQuantity, err = parseDecimal(model.FilledQuantity); err != nil {
		return nil, fmt.Errorf("order %d: bad filled quantity: %w", model.OrderID, err)
	}
	if s.Price, err = parseDecimal(model.Price); err != nil {
		return nil, fmt.Errorf("order %d: bad price: %w", model.OrderID, err)
	}
	if s.LimitPrice, err = parseDecimal(model.LimitPrice); err != nil {
		return nil, fmt.Errorf("order %d: bad limit price: %w", model.OrderID, err)
	}
	if s.StopPrice, err = parseDecimal(model.StopPrice); err != nil {
		return nil, fmt.Errorf("order %d: bad stop price: %w", model.OrderID, err)
	}
	if s.TriggerPrice, err = parseDecimal(model.TriggerPrice); err != nil {
		return nil, fmt.Errorf("order %d: bad trigger price: %w", model.OrderID, err)
	}
	if s.SubmissionBid, err = parseDecimal(model.SubmissionBid); err != nil {
		return nil, fmt.Errorf("order %d: bad submission bid: %w", model.OrderID, err)
	}
	if s.SubmissionAsk, err = parseDecimal(model.SubmissionAsk); err != nil {
		return nil, fmt.Errorf("order %d: bad submission ask: %w", model.OrderID, err)
	}
	if s.SubmissionLast, err = parseDecimal(model.SubmissionLast); err != nil {
		return nil, fmt.Errorf("order %d: bad submission last: %w", model.OrderID, err)
	}

	if model.BrokerIDs != "" {
		if err := json.Unmarshal([]byte(model.BrokerIDs), &s.BrokerIDs); err != nil {
			return nil, fmt.Errorf("order %d: bad broker ids: %w", model.OrderID, err)
		}
	}

	order, err := domain.FromSerialized(s)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", model.OrderID, err)
	}
	if order.Properties.TimeInForce == nil {
		logger.Warn(ctx, "unrecognized time in force, order treated as good til canceled",
			"order_id", model.OrderID, "time_in_force_type", model.TimeInForceType)
	}
	return order, nil
}

func parseDecimal(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}
