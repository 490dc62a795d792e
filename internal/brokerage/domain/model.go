package domain

import (
	"github.com/shopspring/decimal"

	order "github.com/wyfcoding/tradingcore/internal/order/domain"
	referencedata "github.com/wyfcoding/tradingcore/internal/referencedata/domain"
)

// Model 券商策略接口。
// 订单与组合层只消费该接口，拒绝时携带给调用方的说明文案，
// 返回 false 即阻断提交，不做自动重试。
type Model interface {
	// CanSubmitOrder 判定订单是否允许提交
	CanSubmitOrder(security *referencedata.Security, ord *order.Order) (bool, string)
	// CanUpdateOrder 判定在途订单是否允许改单
	CanUpdateOrder(security *referencedata.Security, ord *order.Order, request *order.UpdateOrderRequest) (bool, string)
	// GetLeverage 返回该证券可用的最大杠杆
	GetLeverage(security *referencedata.Security) decimal.Decimal
	// GetBuyingPowerModel 返回购买力计算模型
	GetBuyingPowerModel(security *referencedata.Security) BuyingPowerModel
	// GetFeeModel 返回手续费计算模型
	GetFeeModel(security *referencedata.Security) FeeModel
}
