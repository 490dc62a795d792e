package domain

// OrderType 订单类型，闭集枚举
type OrderType int8

const (
	TypeMarket         OrderType = 0 // 市价单
	TypeLimit          OrderType = 1 // 限价单
	TypeStopMarket     OrderType = 2 // 止损市价单
	TypeStopLimit      OrderType = 3 // 止损限价单
	TypeLimitIfTouched OrderType = 4 // 触价限价单
	TypeMarketOnOpen   OrderType = 5 // 开盘市价单
	TypeMarketOnClose  OrderType = 6 // 收盘市价单
	TypeOptionExercise OrderType = 7 // 期权行权单
)

// orderTypeNames 类型名映射，序列化使用
var orderTypeNames = map[OrderType]string{
	TypeMarket:         "MARKET",
	TypeLimit:          "LIMIT",
	TypeStopMarket:     "STOP_MARKET",
	TypeStopLimit:      "STOP_LIMIT",
	TypeLimitIfTouched: "LIMIT_IF_TOUCHED",
	TypeMarketOnOpen:   "MARKET_ON_OPEN",
	TypeMarketOnClose:  "MARKET_ON_CLOSE",
	TypeOptionExercise: "OPTION_EXERCISE",
}

func (t OrderType) String() string {
	if name, ok := orderTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Valid 是否在枚举范围内
func (t OrderType) Valid() bool {
	_, ok := orderTypeNames[t]
	return ok
}

// ParseOrderType 按名称解析订单类型
func ParseOrderType(name string) (OrderType, error) {
	for t, n := range orderTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, ErrInvalidOrderType
}
