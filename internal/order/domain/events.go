package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSubmittedEvent 订单提交事件
type OrderSubmittedEvent struct {
	OrderID  int64           `json:"order_id"`
	Symbol   string          `json:"symbol"`
	Type     string          `json:"type"`
	Quantity decimal.Decimal `json:"quantity"`
	Time     time.Time       `json:"time"`
}

// OrderFilledEvent 订单成交事件（含部分成交），portfolio 服务消费后更新持仓与现金
type OrderFilledEvent struct {
	OrderID      int64           `json:"order_id"`
	Symbol       string          `json:"symbol"`
	FillQuantity decimal.Decimal `json:"fill_quantity"`
	FillPrice    decimal.Decimal `json:"fill_price"`
	Currency     string          `json:"currency"`
	Fee          decimal.Decimal `json:"fee"`
	FeeCurrency  string          `json:"fee_currency"`
	Status       string          `json:"status"`
	Time         time.Time       `json:"time"`
}

// OrderCanceledEvent 订单取消事件
type OrderCanceledEvent struct {
	OrderID int64     `json:"order_id"`
	Symbol  string    `json:"symbol"`
	Tag     string    `json:"tag"`
	Time    time.Time `json:"time"`
}

// OrderUpdatedEvent 订单修改事件
type OrderUpdatedEvent struct {
	OrderID  int64            `json:"order_id"`
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
	Tag      *string          `json:"tag,omitempty"`
	Time     time.Time        `json:"time"`
}

// 事件类型名，outbox 与 Kafka 消息共用
const (
	EventTypeOrderSubmitted = "OrderSubmittedEvent"
	EventTypeOrderFilled    = "OrderFilledEvent"
	EventTypeOrderCanceled  = "OrderCanceledEvent"
	EventTypeOrderUpdated   = "OrderUpdatedEvent"
)
