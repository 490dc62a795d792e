package domain

import "github.com/shopspring/decimal"

// Cash 单一币种的现金条目。
// 数量带符号，负数表示透支；汇率为折算到账户基准货币的比率。
type Cash struct {
	Symbol         string          `json:"symbol"`
	Quantity       decimal.Decimal `json:"quantity"`
	ConversionRate decimal.Decimal `json:"conversion_rate"`
}

// ValueInBaseCurrency 返回该条目折算成基准货币后的价值
func (c Cash) ValueInBaseCurrency() decimal.Decimal {
	return c.Quantity.Mul(c.ConversionRate)
}
