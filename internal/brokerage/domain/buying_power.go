package domain

import (
	"github.com/shopspring/decimal"

	order "github.com/wyfcoding/tradingcore/internal/order/domain"
	referencedata "github.com/wyfcoding/tradingcore/internal/referencedata/domain"
)

// BuyingPowerModel 购买力计算模型
type BuyingPowerModel interface {
	// RequiredFunds 返回该订单需要冻结的账户本位币资金
	RequiredFunds(security *referencedata.Security, ord *order.Order) decimal.Decimal
	// Leverage 返回模型允许的杠杆倍数
	Leverage() decimal.Decimal
}

// LeveragedBuyingPowerModel 按固定杠杆折算保证金：
// 冻结资金 = 订单名义价值 / 杠杆。
type LeveragedBuyingPowerModel struct {
	leverage decimal.Decimal
}

// NewLeveragedBuyingPowerModel 创建固定杠杆模型，leverage 须大于 0
func NewLeveragedBuyingPowerModel(leverage decimal.Decimal) *LeveragedBuyingPowerModel {
	if leverage.LessThanOrEqual(decimal.Zero) {
		leverage = decimal.NewFromInt(1)
	}
	return &LeveragedBuyingPowerModel{leverage: leverage}
}

func (m *LeveragedBuyingPowerModel) RequiredFunds(security *referencedata.Security, ord *order.Order) decimal.Decimal {
	return ord.Value(security).Abs().Div(m.leverage)
}

func (m *LeveragedBuyingPowerModel) Leverage() decimal.Decimal {
	return m.leverage
}
