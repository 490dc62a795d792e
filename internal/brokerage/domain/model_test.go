package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	order "github.com/wyfcoding/tradingcore/internal/order/domain"
	referencedata "github.com/wyfcoding/tradingcore/internal/referencedata/domain"
)

func newLimitOrder(t *testing.T, symbol string, quantity, limitPrice int64) *order.Order {
	t.Helper()
	ord, err := order.CreateOrder(&order.SubmitOrderRequest{
		OrderID:    1,
		Type:       order.TypeLimit,
		Symbol:     symbol,
		Quantity:   decimal.NewFromInt(quantity),
		LimitPrice: decimal.NewFromInt(limitPrice),
		Time:       time.Now().UTC(),
	})
	require.NoError(t, err)
	return ord
}

func TestEquityModelSubmit(t *testing.T) {
	m := NewEquityModel()
	equity := referencedata.NewSecurity("AAPL", referencedata.SecurityTypeEquity, "USD")
	crypto := referencedata.NewSecurity("BTCUSD", referencedata.SecurityTypeCrypto, "USD")
	ord := newLimitOrder(t, "AAPL", 100, 10)

	ok, _ := m.CanSubmitOrder(equity, ord)
	assert.True(t, ok)

	// 未登记的证券类型直接拒绝，并附带说明
	ok, msg := m.CanSubmitOrder(crypto, ord)
	assert.False(t, ok)
	assert.Contains(t, msg, "CRYPTO")
}

func TestEquityModelUpdate(t *testing.T) {
	m := NewEquityModel()
	equity := referencedata.NewSecurity("AAPL", referencedata.SecurityTypeEquity, "USD")
	ord := newLimitOrder(t, "AAPL", 100, 10)

	ok, _ := m.CanUpdateOrder(equity, ord, &order.UpdateOrderRequest{OrderID: 1})
	assert.True(t, ok)

	// 终态订单不可改
	require.NoError(t, ord.SetStatus(order.StatusSubmitted))
	require.NoError(t, ord.SetStatus(order.StatusCanceled))
	ok, msg := m.CanUpdateOrder(equity, ord, &order.UpdateOrderRequest{OrderID: 1})
	assert.False(t, ok)
	assert.Contains(t, msg, "CANCELED")
}

func TestEquityModelLeverageAndFunds(t *testing.T) {
	m := NewEquityModel()
	equity := referencedata.NewSecurity("AAPL", referencedata.SecurityTypeEquity, "USD")
	option := referencedata.NewSecurity("AAPL240621C", referencedata.SecurityTypeOption, "USD")

	assert.True(t, m.GetLeverage(equity).Equal(decimal.NewFromInt(2)))
	assert.True(t, m.GetLeverage(option).Equal(decimal.NewFromInt(1)))

	// 两倍杠杆下冻结资金为名义价值的一半
	ord := newLimitOrder(t, "AAPL", 100, 10)
	funds := m.GetBuyingPowerModel(equity).RequiredFunds(equity, ord)
	assert.True(t, funds.Equal(decimal.NewFromInt(500)))
}

func TestEquityModelFlatFee(t *testing.T) {
	m := NewEquityModel()
	equity := referencedata.NewSecurity("AAPL", referencedata.SecurityTypeEquity, "USD")
	ord := newLimitOrder(t, "AAPL", 100, 10)

	fee, currency := m.GetFeeModel(equity).GetOrderFee(equity, ord)
	assert.True(t, fee.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "USD", currency)
}

func TestCryptoExchangeModel(t *testing.T) {
	m := NewCryptoExchangeModel()
	crypto := referencedata.NewSecurity("BTCUSD", referencedata.SecurityTypeCrypto, "USD")
	equity := referencedata.NewSecurity("AAPL", referencedata.SecurityTypeEquity, "USD")
	ord := newLimitOrder(t, "BTCUSD", 2, 50000)

	ok, _ := m.CanSubmitOrder(crypto, ord)
	assert.True(t, ok)

	ok, msg := m.CanSubmitOrder(equity, ord)
	assert.False(t, ok)
	assert.Contains(t, msg, "only supports CRYPTO")

	// 一律拒绝改单
	ok, msg = m.CanUpdateOrder(crypto, ord, &order.UpdateOrderRequest{OrderID: 1})
	assert.False(t, ok)
	assert.Contains(t, msg, "cancel and resubmit")

	assert.True(t, m.GetLeverage(crypto).Equal(decimal.NewFromInt(1)))
}

func TestCryptoExchangeTieredFee(t *testing.T) {
	m := NewCryptoExchangeModel()
	crypto := referencedata.NewSecurity("BTCUSD", referencedata.SecurityTypeCrypto, "USD")

	// 名义 100000，落在 8bp 档
	ord := newLimitOrder(t, "BTCUSD", 2, 50000)
	fee, currency := m.GetFeeModel(crypto).GetOrderFee(crypto, ord)
	assert.Equal(t, "USD", currency)
	assert.True(t, fee.Equal(decimal.NewFromInt(100000).Mul(decimal.NewFromFloat(0.0008))))

	// 名义 5000，落在最低档 10bp
	small := newLimitOrder(t, "BTCUSD", 1, 5000)
	fee, _ = m.GetFeeModel(crypto).GetOrderFee(crypto, small)
	assert.True(t, fee.Equal(decimal.NewFromInt(5)))
}
