// Package domain 包含订单服务的领域模型：订单实体、状态机、工厂与序列化
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	refdomain "github.com/wyfcoding/tradingcore/internal/referencedata/domain"
)

var (
	// ErrZeroQuantity 订单数量不能为零
	ErrZeroQuantity = errors.New("order quantity must not be zero")
	// ErrWrongOrderUpdate 更新请求与订单 ID 不匹配
	ErrWrongOrderUpdate = errors.New("update order request applied to wrong order")
	// ErrInvalidOrderType 订单类型超出枚举范围
	ErrInvalidOrderType = errors.New("order type out of range")
	// ErrInvalidTransition 订单状态只能单向推进
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// OrderStatus 订单状态
type OrderStatus int8

const (
	StatusNew             OrderStatus = 0 // 新建，未提交
	StatusSubmitted       OrderStatus = 1 // 已提交
	StatusPartiallyFilled OrderStatus = 2 // 部分成交
	StatusFilled          OrderStatus = 3 // 全部成交（终态）
	StatusCanceled        OrderStatus = 4 // 已取消（终态）
	StatusInvalid         OrderStatus = 5 // 无效（终态）
)

func (s OrderStatus) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusSubmitted:
		return "SUBMITTED"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCanceled:
		return "CANCELED"
	case StatusInvalid:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal 是否终态
func (s OrderStatus) IsTerminal() bool {
	return s == StatusFilled || s == StatusCanceled || s == StatusInvalid
}

// canTransition 状态推进规则：一旦离开 New 不可回退，终态不可再变
func canTransition(from, to OrderStatus) bool {
	if from == to {
		// PartiallyFilled 允许自环（连续部分成交）
		return from == StatusPartiallyFilled
	}
	switch from {
	case StatusNew:
		return to == StatusSubmitted || to == StatusCanceled || to == StatusInvalid
	case StatusSubmitted:
		return to == StatusPartiallyFilled || to == StatusFilled || to == StatusCanceled || to == StatusInvalid
	case StatusPartiallyFilled:
		return to == StatusFilled || to == StatusCanceled
	default:
		return false
	}
}

// OrderDirection 订单方向，由数量符号推导
type OrderDirection int8

const (
	DirectionBuy  OrderDirection = 1
	DirectionSell OrderDirection = -1
)

func (d OrderDirection) String() string {
	if d == DirectionSell {
		return "SELL"
	}
	return "BUY"
}

// SubmissionData 订单提交时刻的行情快照
type SubmissionData struct {
	BidPrice  decimal.Decimal `json:"bid_price"`
	AskPrice  decimal.Decimal `json:"ask_price"`
	LastPrice decimal.Decimal `json:"last_price"`
}

// Clone 深拷贝
func (sd *SubmissionData) Clone() *SubmissionData {
	if sd == nil {
		return nil
	}
	c := *sd
	return &c
}

// Order 订单实体
// 数量为带符号数，符号即方向；状态只能单向推进
type Order struct {
	// 订单 ID，由 IDGenerator 单调分配
	ID int64
	// 证券代码
	Symbol string
	// 带符号委托数量，创建后仅可经 ApplyUpdateOrderRequest 修改
	Quantity decimal.Decimal
	// 已成交数量（绝对值口径与 Quantity 同号）
	FilledQuantity decimal.Decimal
	// 订单类型
	Type OrderType
	// 当前状态
	Status OrderStatus
	// 成交均价或最近成交价
	Price decimal.Decimal
	// 价格币种
	PriceCurrency string
	// 限价（限价类订单）
	LimitPrice decimal.Decimal
	// 触发价（止损类订单）
	StopPrice decimal.Decimal
	// 触碰价（LimitIfTouched）
	TriggerPrice decimal.Decimal
	// 创建时间（UTC）
	Time time.Time
	// 最近成交时间
	LastFillTime *time.Time
	// 最近修改时间
	LastUpdateTime *time.Time
	// 取消时间
	CanceledTime *time.Time
	// 自由备注
	Tag string
	// 券商回报的订单 ID 列表，只增不减，仅显式重置时清空
	BrokerIDs []string
	// 关联的条件单 ID，0 表示无
	ContingentID int64
	// 订单属性（有效期等）
	Properties *OrderProperties
	// 提交时刻行情快照
	SubmissionData *SubmissionData
}

// Direction 订单方向
func (o *Order) Direction() OrderDirection {
	if o.Quantity.IsNegative() {
		return DirectionSell
	}
	return DirectionBuy
}

// AbsQuantity 数量绝对值
func (o *Order) AbsQuantity() decimal.Decimal {
	return o.Quantity.Abs()
}

// RemainingQuantity 剩余未成交数量（带符号）
func (o *Order) RemainingQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// SetStatus 推进状态，违反单向规则时返回 ErrInvalidTransition
func (o *Order) SetStatus(to OrderStatus) error {
	if !canTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	return nil
}

// AddBrokerID 追加券商订单 ID
func (o *Order) AddBrokerID(id string) {
	o.BrokerIDs = append(o.BrokerIDs, id)
}

// ResetBrokerIDs 显式清空券商订单 ID（仅限重建场景）
func (o *Order) ResetBrokerIDs() {
	o.BrokerIDs = nil
}

// ApplyFill 应用一笔成交，推进状态并更新成交量/价
// fillQuantity 与订单同号；成交后剩余为零则转为 Filled
func (o *Order) ApplyFill(fillQuantity, fillPrice decimal.Decimal, utcTime time.Time) error {
	if fillQuantity.IsZero() {
		return ErrZeroQuantity
	}
	if fillQuantity.Sign() != o.Quantity.Sign() {
		return fmt.Errorf("fill quantity sign mismatch for order %d", o.ID)
	}

	newFilled := o.FilledQuantity.Add(fillQuantity)
	if newFilled.Abs().GreaterThan(o.Quantity.Abs()) {
		return fmt.Errorf("fill exceeds order quantity for order %d", o.ID)
	}

	target := StatusPartiallyFilled
	if newFilled.Equal(o.Quantity) {
		target = StatusFilled
	}
	if err := o.SetStatus(target); err != nil {
		return err
	}

	o.FilledQuantity = newFilled
	o.Price = fillPrice
	t := utcTime.UTC()
	o.LastFillTime = &t
	return nil
}

// ApplyUpdateOrderRequest 应用修改请求，仅允许修改数量/备注/限价/触发价
// 请求 ID 不匹配时返回 ErrWrongOrderUpdate 且不做任何修改
func (o *Order) ApplyUpdateOrderRequest(req *UpdateOrderRequest) error {
	if req.OrderID != o.ID {
		return fmt.Errorf("%w: order %d, request %d", ErrWrongOrderUpdate, o.ID, req.OrderID)
	}
	if req.Quantity != nil && req.Quantity.IsZero() {
		return ErrZeroQuantity
	}

	if req.Quantity != nil {
		o.Quantity = *req.Quantity
	}
	if req.Tag != nil {
		o.Tag = *req.Tag
	}
	if req.LimitPrice != nil {
		o.LimitPrice = *req.LimitPrice
	}
	if req.StopPrice != nil {
		o.StopPrice = *req.StopPrice
	}
	t := req.Time.UTC()
	o.LastUpdateTime = &t
	return nil
}

// Clone 深拷贝订单，供并发读取方持有快照
func (o *Order) Clone() *Order {
	c := *o
	if o.BrokerIDs != nil {
		c.BrokerIDs = make([]string, len(o.BrokerIDs))
		copy(c.BrokerIDs, o.BrokerIDs)
	}
	if o.LastFillTime != nil {
		t := *o.LastFillTime
		c.LastFillTime = &t
	}
	if o.LastUpdateTime != nil {
		t := *o.LastUpdateTime
		c.LastUpdateTime = &t
	}
	if o.CanceledTime != nil {
		t := *o.CanceledTime
		c.CanceledTime = &t
	}
	c.Properties = o.Properties.Clone()
	c.SubmissionData = o.SubmissionData.Clone()
	return &c
}

// Value 订单在账户本位币下的名义价值
// = 类型相关单位价值 × 报价币种换算率 × 合约乘数
func (o *Order) Value(sec *refdomain.Security) decimal.Decimal {
	return o.unitValue(sec).
		Mul(sec.ConversionRate()).
		Mul(sec.Multiplier())
}

// unitValue 类型相关单位价值：市价类用市场价，限价类用限价，止损市价用触发价
func (o *Order) unitValue(sec *refdomain.Security) decimal.Decimal {
	switch o.Type {
	case TypeLimit, TypeStopLimit, TypeLimitIfTouched:
		return o.Quantity.Mul(o.LimitPrice)
	case TypeStopMarket:
		return o.Quantity.Mul(o.StopPrice)
	default:
		// Market / MarketOnOpen / MarketOnClose / OptionExercise
		return o.Quantity.Mul(sec.MarketPrice())
	}
}
