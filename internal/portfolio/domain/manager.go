package domain

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	referencedata "github.com/wyfcoding/tradingcore/internal/referencedata/domain"
	settlement "github.com/wyfcoding/tradingcore/internal/settlement/domain"
)

// Fill 一笔成交对组合的影响
type Fill struct {
	OrderID      int64
	Symbol       string
	FillQuantity decimal.Decimal
	FillPrice    decimal.Decimal
	Currency     string
	Fee          decimal.Decimal
	FeeCurrency  string
	UTCTime      time.Time
}

// Manager 组合管理器，聚合已结算现金、在途现金与持仓，
// 并驱动结算模型完成资金落账与定时扫描。
type Manager struct {
	mu              sync.RWMutex
	cash            *CashBook
	unsettledCash   *CashBook
	holdings        map[string]*Holding
	settlementModel settlement.Model
	securities      referencedata.SecurityProvider
}

// NewManager 创建组合管理器
func NewManager(baseCurrency string, model settlement.Model, securities referencedata.SecurityProvider) *Manager {
	return &Manager{
		cash:            NewCashBook(baseCurrency),
		unsettledCash:   NewCashBook(baseCurrency),
		holdings:        make(map[string]*Holding),
		settlementModel: model,
		securities:      securities,
	}
}

// CashBook 已结算现金账簿
func (m *Manager) CashBook() *CashBook { return m.cash }

// UnsettledCashBook 在途现金账簿
func (m *Manager) UnsettledCashBook() *CashBook { return m.unsettledCash }

// ApplySettledCash 实现结算落账：直接计入可用现金
func (m *Manager) ApplySettledCash(currency string, amount decimal.Decimal) {
	m.cash.ApplyAmount(currency, amount)
}

// ApplyUnsettledCash 实现结算落账：计入在途现金
func (m *Manager) ApplyUnsettledCash(currency string, amount decimal.Decimal) {
	m.unsettledCash.ApplyAmount(currency, amount)
}

// ApplyFunds 将一笔资金变动交给结算模型分派落账
func (m *Manager) ApplyFunds(utcTime time.Time, currency string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settlementModel.ApplyFunds(m, utcTime, currency, amount)
}

// ScanForCashSettlement 释放已到期的在途现金。
// 幂等，可随时钟脉冲反复调用。
func (m *Manager) ScanForCashSettlement(utcTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settlementModel.Scan(m, utcTime)
}

// ProcessFill 按成交更新持仓并结转资金：
// 成交金额按方向带符号入账（卖出进钱走结算模型，买入出钱即时扣减），
// 手续费一律即时扣减。
func (m *Manager) ProcessFill(fill Fill) {
	m.mu.Lock()
	defer m.mu.Unlock()

	holding, ok := m.holdings[fill.Symbol]
	if !ok {
		holding = NewHolding(fill.Symbol)
		m.holdings[fill.Symbol] = holding
	}
	holding.ApplyFill(fill.FillQuantity, fill.FillPrice)

	proceeds := fill.FillQuantity.Neg().Mul(fill.FillPrice)
	m.settlementModel.ApplyFunds(m, fill.UTCTime, fill.Currency, proceeds)

	if !fill.Fee.IsZero() {
		feeCurrency := fill.FeeCurrency
		if feeCurrency == "" {
			feeCurrency = m.cash.BaseCurrency()
		}
		m.cash.ApplyAmount(feeCurrency, fill.Fee.Neg())
	}
}

// RestoreHolding 从持久化快照恢复持仓，服务重启时调用
func (m *Manager) RestoreHolding(holding Holding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := holding
	m.holdings[h.Symbol] = &h
}

// HoldingQuantity 返回指定证券的带符号持仓数量，无持仓返回 0
func (m *Manager) HoldingQuantity(symbol string) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if holding, ok := m.holdings[symbol]; ok {
		return holding.Quantity
	}
	return decimal.Zero
}

// Holding 返回指定证券持仓的快照
func (m *Manager) Holding(symbol string) (Holding, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if holding, ok := m.holdings[symbol]; ok {
		return *holding, true
	}
	return Holding{}, false
}

// Holdings 返回全部持仓的快照
func (m *Manager) Holdings() []Holding {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Holding, 0, len(m.holdings))
	for _, holding := range m.holdings {
		out = append(out, *holding)
	}
	return out
}

// TotalPortfolioValue 组合总值 = 可用现金 + 在途现金 + 持仓市值，
// 全部折算到基准货币。持仓按最新行情估值，未登记的证券跳过。
func (m *Manager) TotalPortfolioValue(ctx context.Context) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := m.cash.TotalValueInBaseCurrency().Add(m.unsettledCash.TotalValueInBaseCurrency())
	for symbol, holding := range m.holdings {
		sec, err := m.securities.Get(ctx, symbol)
		if err != nil {
			continue
		}
		value := holding.Quantity.Mul(sec.MarketPrice()).Mul(sec.ConversionRate()).Mul(sec.Multiplier())
		total = total.Add(value)
	}
	return total
}
