package domain

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	referencedata "github.com/wyfcoding/tradingcore/internal/referencedata/domain"
	settlement "github.com/wyfcoding/tradingcore/internal/settlement/domain"
)

func newTestManager(model settlement.Model) (*Manager, *referencedata.Registry) {
	registry := referencedata.NewRegistry()
	return NewManager("USD", model, registry), registry
}

func TestManagerProcessFillImmediate(t *testing.T) {
	m, _ := newTestManager(settlement.NewImmediate())

	// 买入 100 股 @ 10，手续费 1
	m.ProcessFill(Fill{
		OrderID:      1,
		Symbol:       "AAPL",
		FillQuantity: decimal.NewFromInt(100),
		FillPrice:    decimal.NewFromInt(10),
		Currency:     "USD",
		Fee:          decimal.NewFromInt(1),
		FeeCurrency:  "USD",
		UTCTime:      time.Now().UTC(),
	})

	assert.True(t, m.HoldingQuantity("AAPL").Equal(decimal.NewFromInt(100)))
	cash, err := m.CashBook().Get("USD")
	require.NoError(t, err)
	assert.True(t, cash.Quantity.Equal(decimal.NewFromInt(-1001)))
}

func TestManagerSellProceedsDelayed(t *testing.T) {
	m, _ := newTestManager(settlement.NewDelayed(3, 8*time.Hour))

	monday := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	// 卖出 100 股 @ 10：所得 1000 进入在途
	m.ProcessFill(Fill{
		OrderID:      2,
		Symbol:       "AAPL",
		FillQuantity: decimal.NewFromInt(-100),
		FillPrice:    decimal.NewFromInt(10),
		Currency:     "USD",
		UTCTime:      monday,
	})

	assert.True(t, m.HoldingQuantity("AAPL").Equal(decimal.NewFromInt(-100)))
	cash, err := m.CashBook().Get("USD")
	require.NoError(t, err)
	assert.True(t, cash.Quantity.IsZero())
	unsettled, err := m.UnsettledCashBook().Get("USD")
	require.NoError(t, err)
	assert.True(t, unsettled.Quantity.Equal(decimal.NewFromInt(1000)))

	// 到期扫描后转入可用现金，再次扫描不重复
	thursday8 := time.Date(2024, 6, 6, 8, 0, 0, 0, time.UTC)
	m.ScanForCashSettlement(thursday8)
	m.ScanForCashSettlement(thursday8)
	cash, err = m.CashBook().Get("USD")
	require.NoError(t, err)
	assert.True(t, cash.Quantity.Equal(decimal.NewFromInt(1000)))
	unsettled, err = m.UnsettledCashBook().Get("USD")
	require.NoError(t, err)
	assert.True(t, unsettled.Quantity.IsZero())
}

func TestManagerBuyNotDelayed(t *testing.T) {
	m, _ := newTestManager(settlement.NewDelayed(3, 8*time.Hour))

	// 买入支出不进在途，立即扣减可用现金
	m.ProcessFill(Fill{
		OrderID:      3,
		Symbol:       "AAPL",
		FillQuantity: decimal.NewFromInt(50),
		FillPrice:    decimal.NewFromInt(20),
		Currency:     "USD",
		UTCTime:      time.Now().UTC(),
	})

	cash, err := m.CashBook().Get("USD")
	require.NoError(t, err)
	assert.True(t, cash.Quantity.Equal(decimal.NewFromInt(-1000)))
	unsettled, err := m.UnsettledCashBook().Get("USD")
	require.NoError(t, err)
	assert.True(t, unsettled.Quantity.IsZero())
}

func TestManagerTotalPortfolioValue(t *testing.T) {
	m, registry := newTestManager(settlement.NewImmediate())

	sec := referencedata.NewSecurity("AAPL", referencedata.SecurityTypeEquity, "USD")
	sec.UpdateMarketPrice(decimal.NewFromInt(12), decimal.NewFromInt(11), decimal.NewFromInt(13))
	registry.Register(sec)

	m.CashBook().Add("USD", decimal.NewFromInt(500), decimal.Zero)
	m.ProcessFill(Fill{
		OrderID:      4,
		Symbol:       "AAPL",
		FillQuantity: decimal.NewFromInt(100),
		FillPrice:    decimal.NewFromInt(10),
		Currency:     "USD",
		UTCTime:      time.Now().UTC(),
	})

	// 现金 500 - 1000 = -500，持仓 100 * 12 = 1200
	got := m.TotalPortfolioValue(context.Background())
	assert.True(t, got.Equal(decimal.NewFromInt(700)))
}

func TestHoldingApplyFillAveragePrice(t *testing.T) {
	h := NewHolding("AAPL")

	h.ApplyFill(decimal.NewFromInt(100), decimal.NewFromInt(10))
	h.ApplyFill(decimal.NewFromInt(100), decimal.NewFromInt(20))
	assert.True(t, h.AveragePrice.Equal(decimal.NewFromInt(15)))
	assert.True(t, h.Quantity.Equal(decimal.NewFromInt(200)))

	// 减仓不动均价
	h.ApplyFill(decimal.NewFromInt(-150), decimal.NewFromInt(30))
	assert.True(t, h.AveragePrice.Equal(decimal.NewFromInt(15)))

	// 平仓归零
	h.ApplyFill(decimal.NewFromInt(-50), decimal.NewFromInt(30))
	assert.True(t, h.Quantity.IsZero())
	assert.True(t, h.AveragePrice.IsZero())

	// 反向穿仓：均价重置为成交价
	h.ApplyFill(decimal.NewFromInt(100), decimal.NewFromInt(40))
	h.ApplyFill(decimal.NewFromInt(-300), decimal.NewFromInt(35))
	assert.True(t, h.Quantity.Equal(decimal.NewFromInt(-200)))
	assert.True(t, h.AveragePrice.Equal(decimal.NewFromInt(35)))
	assert.True(t, h.IsShort())
}
