package domain

import "github.com/shopspring/decimal"

// OrderCrossesZero 判断订单成交后持仓是否会穿越零点，即从严格多头
// 变为严格空头或反之。恰好平到零、持仓为零、同向加仓均不算穿越。
// 穿越零点的订单需要先平后开两段执行，此处只提供判定。
func OrderCrossesZero(holdingQuantity, orderQuantity decimal.Decimal) bool {
	if holdingQuantity.IsPositive() && orderQuantity.IsNegative() {
		return holdingQuantity.Add(orderQuantity).IsNegative()
	}
	if holdingQuantity.IsNegative() && orderQuantity.IsPositive() {
		return holdingQuantity.Add(orderQuantity).IsPositive()
	}
	return false
}

// ClosingQuantity 返回先平仓一段所需的订单数量（持仓的相反数）。
// 仅在 OrderCrossesZero 为真时有意义。
func ClosingQuantity(holdingQuantity decimal.Decimal) decimal.Decimal {
	return holdingQuantity.Neg()
}
