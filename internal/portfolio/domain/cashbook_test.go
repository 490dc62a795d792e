package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCashBookInitialState(t *testing.T) {
	book := NewCashBook("usd")

	// 构造后有且仅有基准货币一个条目：数量 0、汇率 1
	require.Equal(t, 1, book.Len())
	assert.Equal(t, "USD", book.BaseCurrency())

	base, err := book.Get("USD")
	require.NoError(t, err)
	assert.True(t, base.Quantity.IsZero())
	assert.True(t, base.ConversionRate.Equal(decimal.NewFromInt(1)))
}

func TestCashBookCaseInsensitive(t *testing.T) {
	book := NewCashBook("USD")
	book.Add("jpy", decimal.NewFromInt(10000), decimal.NewFromFloat(0.007))

	lower, err := book.Get("jpy")
	require.NoError(t, err)
	upper, err := book.Get("JPY")
	require.NoError(t, err)
	assert.True(t, lower.Quantity.Equal(upper.Quantity))

	// 同一币种不同大小写累加到同一条目
	book.Add("Jpy", decimal.NewFromInt(5000), decimal.Zero)
	entry, err := book.Get("JPY")
	require.NoError(t, err)
	assert.True(t, entry.Quantity.Equal(decimal.NewFromInt(15000)))
	assert.Equal(t, 2, book.Len())
}

func TestCashBookGetUnknownCurrency(t *testing.T) {
	book := NewCashBook("USD")
	_, err := book.Get("EUR")
	assert.ErrorIs(t, err, ErrCurrencyNotFound)
}

func TestCashBookValueCrossCheck(t *testing.T) {
	book := NewCashBook("USD")
	book.Add("USD", decimal.NewFromInt(1000), decimal.Zero)
	book.Add("EUR", decimal.NewFromInt(200), decimal.NewFromFloat(1.1))
	book.Add("JPY", decimal.NewFromInt(-30000), decimal.NewFromFloat(0.007))

	// 总值必须等于逐条目价值之和
	sum := decimal.Zero
	for _, entry := range book.Snapshot() {
		sum = sum.Add(entry.ValueInBaseCurrency())
	}
	assert.True(t, book.TotalValueInBaseCurrency().Equal(sum))

	expected := decimal.NewFromInt(1000).
		Add(decimal.NewFromInt(200).Mul(decimal.NewFromFloat(1.1))).
		Add(decimal.NewFromInt(-30000).Mul(decimal.NewFromFloat(0.007)))
	assert.True(t, book.TotalValueInBaseCurrency().Equal(expected))
}

func TestCashBookValueNotCached(t *testing.T) {
	book := NewCashBook("USD")
	book.Add("EUR", decimal.NewFromInt(100), decimal.NewFromInt(1))
	before := book.TotalValueInBaseCurrency()

	// 汇率变动后总值必须立即反映新汇率
	require.NoError(t, book.SetConversionRate("EUR", decimal.NewFromInt(2)))
	after := book.TotalValueInBaseCurrency()
	assert.True(t, after.Equal(before.Add(decimal.NewFromInt(100))))
}

func TestCashBookEntriesNeverRemoved(t *testing.T) {
	book := NewCashBook("USD")
	book.Add("EUR", decimal.NewFromInt(100), decimal.NewFromInt(1))
	book.ApplyAmount("EUR", decimal.NewFromInt(-100))

	entry, err := book.Get("EUR")
	require.NoError(t, err)
	assert.True(t, entry.Quantity.IsZero())
	assert.Equal(t, 2, book.Len())
}

func TestCashBookApplyAmountUnknownCurrency(t *testing.T) {
	book := NewCashBook("USD")
	book.ApplyAmount("GBP", decimal.NewFromInt(50))

	entry, err := book.Get("GBP")
	require.NoError(t, err)
	assert.True(t, entry.Quantity.Equal(decimal.NewFromInt(50)))
	// 汇率待行情刷新
	assert.True(t, entry.ConversionRate.IsZero())
}
