package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	order "github.com/wyfcoding/tradingcore/internal/order/domain"
	referencedata "github.com/wyfcoding/tradingcore/internal/referencedata/domain"
)

// CryptoExchangeModel 加密货币交易所策略：
// 只接受加密货币证券，不支持改单，按名义金额分档收取费率。
type CryptoExchangeModel struct {
	name     string
	feeModel *TieredFeeModel
}

// NewCryptoExchangeModel 创建加密货币交易所模型
func NewCryptoExchangeModel() *CryptoExchangeModel {
	return &CryptoExchangeModel{
		name: "CryptoExchange",
		feeModel: NewTieredFeeModel([]FeeTier{
			{NotionalThreshold: decimal.Zero, Rate: decimal.NewFromFloat(0.001)},
			{NotionalThreshold: decimal.NewFromInt(100_000), Rate: decimal.NewFromFloat(0.0008)},
			{NotionalThreshold: decimal.NewFromInt(1_000_000), Rate: decimal.NewFromFloat(0.0005)},
		}),
	}
}

func (m *CryptoExchangeModel) CanSubmitOrder(security *referencedata.Security, ord *order.Order) (bool, string) {
	if security.Type != referencedata.SecurityTypeCrypto {
		return false, fmt.Sprintf("%s only supports CRYPTO securities, got %s", m.name, security.Type)
	}
	switch ord.Type {
	case order.TypeMarket, order.TypeLimit, order.TypeStopMarket, order.TypeStopLimit:
		return true, ""
	default:
		return false, fmt.Sprintf("%s does not support %s orders", m.name, ord.Type)
	}
}

func (m *CryptoExchangeModel) CanUpdateOrder(*referencedata.Security, *order.Order, *order.UpdateOrderRequest) (bool, string) {
	return false, fmt.Sprintf("%s does not support updating orders, cancel and resubmit instead", m.name)
}

func (m *CryptoExchangeModel) GetLeverage(*referencedata.Security) decimal.Decimal {
	// 现货账户不加杠杆
	return decimal.NewFromInt(1)
}

func (m *CryptoExchangeModel) GetBuyingPowerModel(security *referencedata.Security) BuyingPowerModel {
	return NewLeveragedBuyingPowerModel(m.GetLeverage(security))
}

func (m *CryptoExchangeModel) GetFeeModel(*referencedata.Security) FeeModel {
	return m.feeModel
}
