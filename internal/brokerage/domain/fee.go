package domain

import (
	"github.com/shopspring/decimal"

	order "github.com/wyfcoding/tradingcore/internal/order/domain"
	referencedata "github.com/wyfcoding/tradingcore/internal/referencedata/domain"
)

// FeeModel 手续费计算模型
type FeeModel interface {
	// GetOrderFee 返回订单预估手续费及计费币种
	GetOrderFee(security *referencedata.Security, ord *order.Order) (decimal.Decimal, string)
}

// FlatFeeModel 每单固定费用
type FlatFeeModel struct {
	Fee      decimal.Decimal
	Currency string
}

// NewFlatFeeModel 创建固定费用模型
func NewFlatFeeModel(fee decimal.Decimal, currency string) *FlatFeeModel {
	return &FlatFeeModel{Fee: fee, Currency: currency}
}

func (m *FlatFeeModel) GetOrderFee(*referencedata.Security, *order.Order) (decimal.Decimal, string) {
	return m.Fee, m.Currency
}

// FeeTier 按名义金额分档的费率档位
type FeeTier struct {
	// NotionalThreshold 达到该名义金额后适用此档费率
	NotionalThreshold decimal.Decimal
	Rate              decimal.Decimal
}

// TieredFeeModel 按订单名义金额分档计费，费用以证券计价币种收取
type TieredFeeModel struct {
	// tiers 按 NotionalThreshold 升序
	tiers []FeeTier
}

// NewTieredFeeModel 创建分档费率模型，tiers 须按阈值升序给出
func NewTieredFeeModel(tiers []FeeTier) *TieredFeeModel {
	return &TieredFeeModel{tiers: tiers}
}

func (m *TieredFeeModel) GetOrderFee(security *referencedata.Security, ord *order.Order) (decimal.Decimal, string) {
	notional := ord.Value(security).Abs()
	rate := decimal.Zero
	for _, tier := range m.tiers {
		if notional.GreaterThanOrEqual(tier.NotionalThreshold) {
			rate = tier.Rate
		}
	}
	return notional.Mul(rate), security.QuoteCurrency
}
