package application

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/tradingcore/internal/portfolio/domain"
	"github.com/wyfcoding/tradingcore/internal/portfolio/infrastructure/persistence/mysql"
	referencedata "github.com/wyfcoding/tradingcore/internal/referencedata/domain"
	settlement "github.com/wyfcoding/tradingcore/internal/settlement/domain"
	"github.com/wyfcoding/tradingcore/pkg/logger"
	"github.com/wyfcoding/tradingcore/pkg/metrics"
)

type memoryBalanceRepo struct {
	saved map[string]map[string]domain.Cash
}

func newMemoryBalanceRepo() *memoryBalanceRepo {
	return &memoryBalanceRepo{saved: map[string]map[string]domain.Cash{}}
}

func (r *memoryBalanceRepo) SaveBalance(_ context.Context, book string, cash domain.Cash) error {
	if r.saved[book] == nil {
		r.saved[book] = map[string]domain.Cash{}
	}
	r.saved[book][cash.Symbol] = cash
	return nil
}

func (r *memoryBalanceRepo) ListBalances(_ context.Context, book string) ([]domain.Cash, error) {
	var out []domain.Cash
	for _, cash := range r.saved[book] {
		out = append(out, cash)
	}
	return out, nil
}

type memoryHoldingRepo struct {
	saved map[string]domain.Holding
}

func newMemoryHoldingRepo() *memoryHoldingRepo {
	return &memoryHoldingRepo{saved: map[string]domain.Holding{}}
}

func (r *memoryHoldingRepo) SaveHolding(_ context.Context, holding domain.Holding) error {
	r.saved[holding.Symbol] = holding
	return nil
}

func (r *memoryHoldingRepo) ListHoldings(_ context.Context) ([]domain.Holding, error) {
	var out []domain.Holding
	for _, holding := range r.saved {
		out = append(out, holding)
	}
	return out, nil
}

type memoryUnsettledRepo struct {
	records []settlement.UnsettledCashAmount
}

func (r *memoryUnsettledRepo) Replace(_ context.Context, records []settlement.UnsettledCashAmount) error {
	r.records = records
	return nil
}

func (r *memoryUnsettledRepo) List(_ context.Context) ([]settlement.UnsettledCashAmount, error) {
	return r.records, nil
}

// memoryLedger 内存版冻结台账，与 MySQL 实现同样的状态语义
type memoryLedger struct {
	rows map[int64]mysql.Reservation
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{rows: map[int64]mysql.Reservation{}}
}

func (l *memoryLedger) Reserve(_ *sql.Tx, r mysql.Reservation) error {
	if _, ok := l.rows[r.OrderID]; ok {
		return nil
	}
	r.Status = "reserved"
	l.rows[r.OrderID] = r
	return nil
}

func (l *memoryLedger) Release(_ *sql.Tx, orderID int64) (mysql.Reservation, bool, error) {
	r, ok := l.rows[orderID]
	if !ok || r.Status != "reserved" {
		return r, false, nil
	}
	r.Status = "released"
	l.rows[orderID] = r
	return r, true, nil
}

type serviceFixture struct {
	service *PortfolioService
	manager *domain.Manager
	ledger  *memoryLedger
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	registry := referencedata.NewRegistry()
	sec := referencedata.NewSecurity("AAPL", referencedata.SecurityTypeEquity, "USD")
	sec.UpdateMarketPrice(decimal.NewFromInt(100), decimal.NewFromInt(99), decimal.NewFromInt(101))
	registry.Register(sec)

	manager := domain.NewManager("USD", settlement.NewImmediate(), registry)
	ledger := newMemoryLedger()
	service := NewPortfolioService(
		manager,
		nil,
		newMemoryBalanceRepo(),
		newMemoryHoldingRepo(),
		&memoryUnsettledRepo{},
		ledger,
		nil,
		metrics.New("portfolio_test"),
		logger.Get(),
	)
	return &serviceFixture{service: service, manager: manager, ledger: ledger}
}

// 冻结过的订单成交时必须先整笔回补冻结金额再按成交扣款，
// 否则同一笔资金被冻结与成交双重扣除。
func TestApplyFillConsumesReservation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.manager.ApplySettledCash("USD", decimal.NewFromInt(2000))

	// 下单冻结 500（1000 名义 / 2 倍杠杆）
	require.NoError(t, f.ledger.Reserve(nil, mysql.Reservation{
		OrderID:  7,
		Currency: "USD",
		Amount:   "500",
	}))
	f.manager.ApplySettledCash("USD", decimal.NewFromInt(-500))

	require.NoError(t, f.service.ApplyFill(ctx, domain.Fill{
		OrderID:      7,
		Symbol:       "AAPL",
		FillQuantity: decimal.NewFromInt(10),
		FillPrice:    decimal.NewFromInt(100),
		Currency:     "USD",
		Fee:          decimal.NewFromInt(1),
		FeeCurrency:  "USD",
		UTCTime:      time.Now().UTC(),
	}))

	// 2000 - 1000 名义 - 1 手续费，冻结的 500 已回补
	cash, err := f.manager.CashBook().Get("USD")
	require.NoError(t, err)
	assert.True(t, cash.Quantity.Equal(decimal.NewFromInt(999)), "got %s", cash.Quantity)
	assert.Equal(t, "released", f.ledger.rows[7].Status)
	assert.True(t, f.manager.HoldingQuantity("AAPL").Equal(decimal.NewFromInt(10)))
}

// 首笔成交核销冻结后，后续部分成交不得再次回补
func TestApplyFillReleasesReservationOnce(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.manager.ApplySettledCash("USD", decimal.NewFromInt(5000))
	require.NoError(t, f.ledger.Reserve(nil, mysql.Reservation{OrderID: 9, Currency: "USD", Amount: "1000"}))
	f.manager.ApplySettledCash("USD", decimal.NewFromInt(-1000))

	fill := domain.Fill{
		OrderID:      9,
		Symbol:       "AAPL",
		FillQuantity: decimal.NewFromInt(5),
		FillPrice:    decimal.NewFromInt(100),
		Currency:     "USD",
		UTCTime:      time.Now().UTC(),
	}
	require.NoError(t, f.service.ApplyFill(ctx, fill))
	require.NoError(t, f.service.ApplyFill(ctx, fill))

	// 5000 - 2*500 名义，冻结的 1000 只回补一次
	cash, err := f.manager.CashBook().Get("USD")
	require.NoError(t, err)
	assert.True(t, cash.Quantity.Equal(decimal.NewFromInt(4000)), "got %s", cash.Quantity)
}

// 撤单路径：解冻一次生效，重复解冻为空操作
func TestReleaseReservationIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.Reserve(nil, mysql.Reservation{OrderID: 11, Currency: "USD", Amount: "300"}))
	f.manager.ApplySettledCash("USD", decimal.NewFromInt(-300))

	require.NoError(t, f.service.ReleaseReservation(ctx, 11))
	require.NoError(t, f.service.ReleaseReservation(ctx, 11))

	cash, err := f.manager.CashBook().Get("USD")
	require.NoError(t, err)
	assert.True(t, cash.Quantity.IsZero(), "got %s", cash.Quantity)

	// 从未冻结过的订单解冻也是空操作
	require.NoError(t, f.service.ReleaseReservation(ctx, 404))
}
