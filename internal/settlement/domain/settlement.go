// Package domain 包含现金结算的领域模型：结算模型接口与延迟结算实现
package domain

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// CashApplier 结算资金的落账接口，由 portfolio 侧实现
// 两个方法都以增量方式记账，负数表示扣减
type CashApplier interface {
	// ApplySettledCash 已结算（可动用）现金增量
	ApplySettledCash(currency string, amount decimal.Decimal)
	// ApplyUnsettledCash 未结算现金增量
	ApplyUnsettledCash(currency string, amount decimal.Decimal)
}

// Model 结算模型接口
// 卖出所得何时成为可动用现金由具体模型决定
type Model interface {
	// ApplyFunds 入账一笔资金；正数所得可能被延迟，负数支出立即生效
	ApplyFunds(applier CashApplier, utcTime time.Time, currency string, amount decimal.Decimal)
	// Scan 释放所有已到期的未结算资金；未到期时为廉价空转，可重复调用
	Scan(applier CashApplier, utcTime time.Time)
}

// Immediate 即时结算模型：资金入账立即可动用
type Immediate struct{}

// NewImmediate 创建即时结算模型
func NewImmediate() *Immediate {
	return &Immediate{}
}

// ApplyFunds 实现 Model.ApplyFunds
func (m *Immediate) ApplyFunds(applier CashApplier, _ time.Time, currency string, amount decimal.Decimal) {
	applier.ApplySettledCash(currency, amount)
}

// Scan 实现 Model.Scan，即时模型无事可做
func (m *Immediate) Scan(CashApplier, time.Time) {}

// UnsettledCashAmount 一笔未结算资金记录
type UnsettledCashAmount struct {
	// 币种
	Currency string
	// 金额，恒为正
	Amount decimal.Decimal
	// 可结算时刻（UTC）
	EligibleAt time.Time
}

// Delayed 延迟结算模型（T+N）
// 卖出所得在成交日自然日加 N 天、当日 timeOfDay 时刻后才可动用；
// 支出（负数）不受延迟约束，立即生效
type Delayed struct {
	numberOfDays int
	timeOfDay    time.Duration

	mu      sync.Mutex
	pending []UnsettledCashAmount
}

// NewDelayed 创建延迟结算模型
// numberOfDays 为自然日数，timeOfDay 为结算日内的生效时刻偏移
func NewDelayed(numberOfDays int, timeOfDay time.Duration) *Delayed {
	return &Delayed{
		numberOfDays: numberOfDays,
		timeOfDay:    timeOfDay,
	}
}

// ApplyFunds 实现 Model.ApplyFunds
func (m *Delayed) ApplyFunds(applier CashApplier, utcTime time.Time, currency string, amount decimal.Decimal) {
	if amount.Sign() > 0 {
		// 卖出所得进入未结算账，到期后由 Scan 释放
		eligibleAt := m.eligibleTime(utcTime)

		m.mu.Lock()
		m.pending = append(m.pending, UnsettledCashAmount{
			Currency:   currency,
			Amount:     amount,
			EligibleAt: eligibleAt,
		})
		m.mu.Unlock()

		applier.ApplyUnsettledCash(currency, amount)
		return
	}

	// 支出立即落账
	applier.ApplySettledCash(currency, amount)
}

// Scan 实现 Model.Scan
// 单条记录整体迁移：从未结算账原子转入已结算账并删除记录，
// 不存在部分结算；重复扫描不会二次入账
func (m *Delayed) Scan(applier CashApplier, utcTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 {
		return
	}

	remaining := m.pending[:0]
	for _, record := range m.pending {
		if record.EligibleAt.After(utcTime) {
			remaining = append(remaining, record)
			continue
		}
		applier.ApplySettledCash(record.Currency, record.Amount)
		applier.ApplyUnsettledCash(record.Currency, record.Amount.Neg())
	}
	m.pending = remaining
}

// Pending 未结算记录快照，供持久化与指标上报
func (m *Delayed) Pending() []UnsettledCashAmount {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]UnsettledCashAmount, len(m.pending))
	copy(out, m.pending)
	return out
}

// Restore 从持久化快照恢复未结算记录（服务重启时使用）
func (m *Delayed) Restore(records []UnsettledCashAmount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending[:0], records...)
}

// eligibleTime 结算到期时刻 = 成交日（UTC 零点）+ N 自然日 + timeOfDay
func (m *Delayed) eligibleTime(utcTime time.Time) time.Time {
	u := utcTime.UTC()
	date := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return date.AddDate(0, 0, m.numberOfDays).Add(m.timeOfDay)
}
