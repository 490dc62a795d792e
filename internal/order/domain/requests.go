package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubmitOrderRequest 下单请求
type SubmitOrderRequest struct {
	// 订单 ID，由订单服务在受理时分配
	OrderID int64
	// 订单类型
	Type OrderType
	// 证券代码
	Symbol string
	// 带符号数量
	Quantity decimal.Decimal
	// 限价（限价类订单）
	LimitPrice decimal.Decimal
	// 触发价（止损类订单）
	StopPrice decimal.Decimal
	// 触碰价（LimitIfTouched）
	TriggerPrice decimal.Decimal
	// 请求时间（UTC）
	Time time.Time
	// 备注
	Tag string
	// 关联条件单 ID
	ContingentID int64
	// 每单属性，nil 时使用默认
	Properties *OrderProperties
}

// UpdateOrderRequest 修改请求，指针字段为 nil 表示不修改
type UpdateOrderRequest struct {
	OrderID    int64
	Quantity   *decimal.Decimal
	Tag        *string
	LimitPrice *decimal.Decimal
	StopPrice  *decimal.Decimal
	Time       time.Time
}

// CancelOrderRequest 取消请求
type CancelOrderRequest struct {
	OrderID int64
	Tag     string
	Time    time.Time
}

// OrderResponseErrorCode 操作结果错误码
type OrderResponseErrorCode int

const (
	ErrorCodeNone                  OrderResponseErrorCode = 0
	ErrorCodeInvalidRequest        OrderResponseErrorCode = 1
	ErrorCodeBrokerageModelRefused OrderResponseErrorCode = 2
	ErrorCodeUnableToFindOrder     OrderResponseErrorCode = 3
	ErrorCodeInvalidOrderStatus    OrderResponseErrorCode = 4
	ErrorCodeOrderCrossesZero      OrderResponseErrorCode = 5
	ErrorCodeProcessingError       OrderResponseErrorCode = 6
)

// OrderResponse 操作结果，策略性拒绝以消息形式返回而非错误
type OrderResponse struct {
	OrderID      int64                  `json:"order_id"`
	ErrorCode    OrderResponseErrorCode `json:"error_code"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// IsSuccess 是否成功
func (r OrderResponse) IsSuccess() bool {
	return r.ErrorCode == ErrorCodeNone
}

// SuccessResponse 成功结果
func SuccessResponse(orderID int64) OrderResponse {
	return OrderResponse{OrderID: orderID}
}

// ErrorResponse 失败结果
func ErrorResponse(orderID int64, code OrderResponseErrorCode, message string) OrderResponse {
	return OrderResponse{OrderID: orderID, ErrorCode: code, ErrorMessage: message}
}

// OrderTicket 请求与结果的组合凭据，持有订单快照（非拥有）
type OrderTicket struct {
	Order    *Order        `json:"order,omitempty"`
	Response OrderResponse `json:"response"`
}

// CreateOrder 订单工厂：按枚举类型构造订单，状态为 New，ID 取自请求
// 未识别的类型返回 ErrInvalidOrderType
func CreateOrder(req *SubmitOrderRequest) (*Order, error) {
	if !req.Type.Valid() {
		return nil, ErrInvalidOrderType
	}
	if req.Quantity.IsZero() {
		return nil, ErrZeroQuantity
	}

	props := req.Properties
	if props == nil {
		props = DefaultOrderProperties()
	}

	o := &Order{
		ID:           req.OrderID,
		Symbol:       req.Symbol,
		Quantity:     req.Quantity,
		Type:         req.Type,
		Status:       StatusNew,
		Time:         req.Time.UTC(),
		Tag:          req.Tag,
		ContingentID: req.ContingentID,
		Properties:   props,
	}

	switch req.Type {
	case TypeLimit:
		o.LimitPrice = req.LimitPrice
	case TypeStopMarket:
		o.StopPrice = req.StopPrice
	case TypeStopLimit:
		o.LimitPrice = req.LimitPrice
		o.StopPrice = req.StopPrice
	case TypeLimitIfTouched:
		o.LimitPrice = req.LimitPrice
		o.TriggerPrice = req.TriggerPrice
	}

	return o, nil
}
