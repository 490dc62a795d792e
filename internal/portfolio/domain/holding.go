package domain

import "github.com/shopspring/decimal"

// Holding 单只证券的持仓。
// 数量带符号，正为多头，负为空头。
type Holding struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
}

// NewHolding 创建空持仓
func NewHolding(symbol string) *Holding {
	return &Holding{Symbol: symbol}
}

// IsLong 是否为多头持仓
func (h *Holding) IsLong() bool { return h.Quantity.IsPositive() }

// IsShort 是否为空头持仓
func (h *Holding) IsShort() bool { return h.Quantity.IsNegative() }

// AbsoluteQuantity 持仓数量的绝对值
func (h *Holding) AbsoluteQuantity() decimal.Decimal { return h.Quantity.Abs() }

// ApplyFill 按成交更新持仓数量与持仓均价。
// 加仓时按数量加权更新均价；减仓不动均价；
// 穿越零点反向开仓时均价重置为本次成交价。
func (h *Holding) ApplyFill(fillQuantity, fillPrice decimal.Decimal) {
	if fillQuantity.IsZero() {
		return
	}
	next := h.Quantity.Add(fillQuantity)
	switch {
	case h.Quantity.IsZero() || h.Quantity.Sign() == fillQuantity.Sign():
		// 开仓或加仓
		total := h.AveragePrice.Mul(h.Quantity.Abs()).Add(fillPrice.Mul(fillQuantity.Abs()))
		h.AveragePrice = total.Div(next.Abs())
	case next.IsZero():
		h.AveragePrice = decimal.Zero
	case next.Sign() != h.Quantity.Sign():
		// 反向穿仓，剩余部分视作新开仓
		h.AveragePrice = fillPrice
	}
	h.Quantity = next
}
