package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	order "github.com/wyfcoding/tradingcore/internal/order/domain"
	referencedata "github.com/wyfcoding/tradingcore/internal/referencedata/domain"
)

// SecurityPolicy 某一证券类型在该券商下的策略参数
type SecurityPolicy struct {
	// MaxLeverage 该类型允许的最大杠杆
	MaxLeverage decimal.Decimal
	// AllowedOrderTypes 允许的订单类型，空表示全部允许
	AllowedOrderTypes []order.OrderType
}

// DefaultModel 表驱动的通用券商模型。
// 策略表按证券类型给出杠杆与订单类型白名单，未登记的类型直接拒绝。
type DefaultModel struct {
	name         string
	policies     map[referencedata.SecurityType]SecurityPolicy
	allowUpdates bool
	feeModel     FeeModel
}

// NewDefaultModel 创建表驱动模型
func NewDefaultModel(name string, policies map[referencedata.SecurityType]SecurityPolicy, allowUpdates bool, feeModel FeeModel) *DefaultModel {
	return &DefaultModel{
		name:         name,
		policies:     policies,
		allowUpdates: allowUpdates,
		feeModel:     feeModel,
	}
}

// Name 券商名称
func (m *DefaultModel) Name() string { return m.name }

func (m *DefaultModel) CanSubmitOrder(security *referencedata.Security, ord *order.Order) (bool, string) {
	policy, ok := m.policies[security.Type]
	if !ok {
		return false, fmt.Sprintf("%s does not support %s securities", m.name, security.Type)
	}
	if len(policy.AllowedOrderTypes) == 0 {
		return true, ""
	}
	for _, t := range policy.AllowedOrderTypes {
		if t == ord.Type {
			return true, ""
		}
	}
	return false, fmt.Sprintf("%s does not support %s orders for %s securities", m.name, ord.Type, security.Type)
}

func (m *DefaultModel) CanUpdateOrder(security *referencedata.Security, ord *order.Order, _ *order.UpdateOrderRequest) (bool, string) {
	if !m.allowUpdates {
		return false, fmt.Sprintf("%s does not support updating orders, cancel and resubmit instead", m.name)
	}
	if ord.Status.IsTerminal() {
		return false, fmt.Sprintf("order %d is already %s", ord.ID, ord.Status)
	}
	return true, ""
}

func (m *DefaultModel) GetLeverage(security *referencedata.Security) decimal.Decimal {
	if policy, ok := m.policies[security.Type]; ok {
		return policy.MaxLeverage
	}
	return decimal.NewFromInt(1)
}

func (m *DefaultModel) GetBuyingPowerModel(security *referencedata.Security) BuyingPowerModel {
	return NewLeveragedBuyingPowerModel(m.GetLeverage(security))
}

func (m *DefaultModel) GetFeeModel(*referencedata.Security) FeeModel {
	return m.feeModel
}

// NewEquityModel 面向股票与期权的缺省券商：股票两倍杠杆、
// 期权不加杠杆，支持改单，每单固定 1 USD 费用。
func NewEquityModel() *DefaultModel {
	return NewDefaultModel(
		"EquityBrokerage",
		map[referencedata.SecurityType]SecurityPolicy{
			referencedata.SecurityTypeEquity: {MaxLeverage: decimal.NewFromInt(2)},
			referencedata.SecurityTypeOption: {MaxLeverage: decimal.NewFromInt(1)},
		},
		true,
		NewFlatFeeModel(decimal.NewFromInt(1), "USD"),
	)
}
