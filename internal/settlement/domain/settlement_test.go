package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ledger 记录结算落账的测试替身
type ledger struct {
	settled   map[string]decimal.Decimal
	unsettled map[string]decimal.Decimal
}

func newLedger() *ledger {
	return &ledger{
		settled:   map[string]decimal.Decimal{},
		unsettled: map[string]decimal.Decimal{},
	}
}

func (l *ledger) ApplySettledCash(currency string, amount decimal.Decimal) {
	l.settled[currency] = l.settled[currency].Add(amount)
}

func (l *ledger) ApplyUnsettledCash(currency string, amount decimal.Decimal) {
	l.unsettled[currency] = l.unsettled[currency].Add(amount)
}

func TestImmediateSettlement(t *testing.T) {
	l := newLedger()
	m := NewImmediate()

	m.ApplyFunds(l, time.Now(), "USD", decimal.NewFromInt(1000))
	assert.True(t, l.settled["USD"].Equal(decimal.NewFromInt(1000)))
	assert.True(t, l.unsettled["USD"].IsZero())
}

func TestDelayedSettlementEndToEnd(t *testing.T) {
	l := newLedger()
	// T+3，结算日 8:00 生效
	m := NewDelayed(3, 8*time.Hour)

	// 周一中午卖出所得 1000
	monday := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	require.Equal(t, time.Monday, monday.Weekday())
	m.ApplyFunds(l, monday, "USD", decimal.NewFromInt(1000))

	assert.True(t, l.settled["USD"].IsZero())
	assert.True(t, l.unsettled["USD"].Equal(decimal.NewFromInt(1000)))

	// 周一至周四 7:55 之间任何时刻扫描都不释放
	for _, at := range []time.Time{
		monday,
		monday.Add(6 * time.Hour),
		time.Date(2024, 6, 4, 12, 0, 0, 0, time.UTC), // 周二
		time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC), // 周三
		time.Date(2024, 6, 6, 7, 55, 0, 0, time.UTC), // 周四 7:55
	} {
		m.Scan(l, at)
		assert.True(t, l.settled["USD"].IsZero(), "must not settle at %s", at)
		assert.True(t, l.unsettled["USD"].Equal(decimal.NewFromInt(1000)))
	}

	// 周四 8:00 整释放
	thursday8 := time.Date(2024, 6, 6, 8, 0, 0, 0, time.UTC)
	m.Scan(l, thursday8)
	assert.True(t, l.settled["USD"].Equal(decimal.NewFromInt(1000)))
	assert.True(t, l.unsettled["USD"].IsZero())

	// 幂等：再次扫描不得重复入账
	m.Scan(l, thursday8)
	m.Scan(l, thursday8.Add(time.Hour))
	assert.True(t, l.settled["USD"].Equal(decimal.NewFromInt(1000)))
	assert.True(t, l.unsettled["USD"].IsZero())
	assert.Empty(t, m.Pending())
}

func TestDelayedSettlementNegativeAmountImmediate(t *testing.T) {
	l := newLedger()
	m := NewDelayed(3, 8*time.Hour)

	// 买入支出不受延迟约束
	m.ApplyFunds(l, time.Now(), "USD", decimal.NewFromInt(-500))
	assert.True(t, l.settled["USD"].Equal(decimal.NewFromInt(-500)))
	assert.True(t, l.unsettled["USD"].IsZero())
	assert.Empty(t, m.Pending())
}

func TestDelayedSettlementPartialDue(t *testing.T) {
	l := newLedger()
	m := NewDelayed(1, 8*time.Hour)

	day1 := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 6, 4, 10, 0, 0, 0, time.UTC)
	m.ApplyFunds(l, day1, "USD", decimal.NewFromInt(100))
	m.ApplyFunds(l, day2, "EUR", decimal.NewFromInt(200))

	// day1 的记录到期，day2 的未到
	m.Scan(l, time.Date(2024, 6, 4, 8, 0, 0, 0, time.UTC))
	assert.True(t, l.settled["USD"].Equal(decimal.NewFromInt(100)))
	assert.True(t, l.unsettled["USD"].IsZero())
	assert.True(t, l.settled["EUR"].IsZero())
	assert.True(t, l.unsettled["EUR"].Equal(decimal.NewFromInt(200)))

	require.Len(t, m.Pending(), 1)
	assert.Equal(t, "EUR", m.Pending()[0].Currency)
}

func TestDelayedRestore(t *testing.T) {
	l := newLedger()
	m := NewDelayed(3, 8*time.Hour)

	records := []UnsettledCashAmount{
		{Currency: "USD", Amount: decimal.NewFromInt(300), EligibleAt: time.Date(2024, 6, 6, 8, 0, 0, 0, time.UTC)},
	}
	m.Restore(records)

	m.Scan(l, time.Date(2024, 6, 6, 8, 0, 0, 0, time.UTC))
	assert.True(t, l.settled["USD"].Equal(decimal.NewFromInt(300)))
}
