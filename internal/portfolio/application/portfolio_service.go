package application

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/tradingcore/internal/portfolio/domain"
	"github.com/wyfcoding/tradingcore/internal/portfolio/infrastructure/persistence/mysql"
	settlement "github.com/wyfcoding/tradingcore/internal/settlement/domain"
	"github.com/wyfcoding/tradingcore/pkg/metrics"
)

// ReservationLedger 资金冻结台账。tx 由调用方的本地事务提供，
// 可为 nil（无持久化台账的单机模式）。
type ReservationLedger interface {
	Reserve(tx *sql.Tx, r mysql.Reservation) error
	Release(tx *sql.Tx, orderID int64) (mysql.Reservation, bool, error)
}

// PortfolioService 组合应用服务。
// 内存中的 Manager 是运行时权威状态，仓储保存快照供重启恢复。
type PortfolioService struct {
	manager      *domain.Manager
	delayedModel *settlement.Delayed
	balances     domain.BalanceRepository
	holdings     domain.HoldingRepository
	unsettled    domain.UnsettledCashRepository
	reservations ReservationLedger
	sqlDB        *sql.DB
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewPortfolioService 构造函数，delayedModel 在即时结算模式下为 nil
func NewPortfolioService(
	manager *domain.Manager,
	delayedModel *settlement.Delayed,
	balances domain.BalanceRepository,
	holdings domain.HoldingRepository,
	unsettled domain.UnsettledCashRepository,
	reservations ReservationLedger,
	sqlDB *sql.DB,
	m *metrics.Metrics,
	logger *slog.Logger,
) *PortfolioService {
	return &PortfolioService{
		manager:      manager,
		delayedModel: delayedModel,
		balances:     balances,
		holdings:     holdings,
		unsettled:    unsettled,
		reservations: reservations,
		sqlDB:        sqlDB,
		metrics:      m,
		logger:       logger.With("module", "portfolio_service"),
	}
}

// Manager 暴露底层组合管理器，Saga 分支处理器需要直接落账
func (s *PortfolioService) Manager() *domain.Manager { return s.manager }

// Reservations 资金冻结台账
func (s *PortfolioService) Reservations() ReservationLedger { return s.reservations }

// SQLDB 原生连接，DTM 子事务屏障使用
func (s *PortfolioService) SQLDB() *sql.DB { return s.sqlDB }

// Restore 服务启动时从快照恢复余额、持仓与在途台账
func (s *PortfolioService) Restore(ctx context.Context) error {
	for _, book := range []string{domain.BookSettled, domain.BookUnsettled} {
		cashes, err := s.balances.ListBalances(ctx, book)
		if err != nil {
			return fmt.Errorf("restore balances: %w", err)
		}
		target := s.manager.CashBook()
		if book == domain.BookUnsettled {
			target = s.manager.UnsettledCashBook()
		}
		for _, cash := range cashes {
			target.Add(cash.Symbol, cash.Quantity, cash.ConversionRate)
		}
	}

	holdings, err := s.holdings.ListHoldings(ctx)
	if err != nil {
		return fmt.Errorf("restore holdings: %w", err)
	}
	for _, holding := range holdings {
		s.manager.RestoreHolding(holding)
	}

	if s.delayedModel != nil {
		records, err := s.unsettled.List(ctx)
		if err != nil {
			return fmt.Errorf("restore unsettled ledger: %w", err)
		}
		s.delayedModel.Restore(records)
		s.metrics.UnsettledRecords.Set(float64(len(records)))
	}

	s.logger.InfoContext(ctx, "portfolio state restored",
		"holdings", len(holdings),
		"base_currency", s.manager.CashBook().BaseCurrency())
	return nil
}

// ApplyFill 应用一笔成交：先核销下单时的资金冻结，再更新持仓与现金，
// 最后持久化快照。冻结金额整笔回补，实际成交按名义金额扣款，
// 否则冻结与成交双重扣款。首笔成交之后的核销是空操作。
func (s *PortfolioService) ApplyFill(ctx context.Context, fill domain.Fill) error {
	if err := s.ReleaseReservation(ctx, fill.OrderID); err != nil {
		return fmt.Errorf("consume reservation for order %d: %w", fill.OrderID, err)
	}
	s.manager.ProcessFill(fill)
	s.metrics.FillsApplied.Inc()

	if err := s.persistSnapshot(ctx, fill.Symbol); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "fill applied to portfolio",
		"order_id", fill.OrderID, "symbol", fill.Symbol,
		"fill_quantity", fill.FillQuantity, "fill_price", fill.FillPrice)
	return nil
}

// ReleaseReservation 解除订单的资金冻结（撤单与成交核销路径），
// 台账状态翻转与现金回补在同一本地事务语义下完成。
// 无冻结记录或已解除时为空操作，重复调用不会重复回补。
func (s *PortfolioService) ReleaseReservation(ctx context.Context, orderID int64) error {
	var tx *sql.Tx
	if s.sqlDB != nil {
		var err error
		if tx, err = s.sqlDB.BeginTx(ctx, nil); err != nil {
			return err
		}
	}

	reservation, released, err := s.reservations.Release(tx, orderID)
	if err != nil {
		if tx != nil {
			_ = tx.Rollback()
		}
		return err
	}
	if tx != nil {
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	if !released {
		return nil
	}

	amount, err := decimal.NewFromString(reservation.Amount)
	if err != nil {
		return fmt.Errorf("reservation for order %d: bad amount: %w", orderID, err)
	}
	s.manager.ApplySettledCash(reservation.Currency, amount)
	if err := s.persistBalances(ctx); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "fund reservation released",
		"order_id", orderID, "currency", reservation.Currency, "amount", reservation.Amount)
	return nil
}

// ScanOnce 执行一轮结算扫描并持久化结果
func (s *PortfolioService) ScanOnce(ctx context.Context, utcTime time.Time) error {
	start := time.Now()
	before := 0
	if s.delayedModel != nil {
		before = len(s.delayedModel.Pending())
	}

	s.manager.ScanForCashSettlement(utcTime)
	s.metrics.SettlementScanDuration.Observe(time.Since(start).Seconds())

	if s.delayedModel == nil {
		return nil
	}

	pending := s.delayedModel.Pending()
	settled := before - len(pending)
	s.metrics.UnsettledRecords.Set(float64(len(pending)))
	if settled <= 0 {
		return nil
	}

	s.metrics.CashSettlementsTotal.Add(float64(settled))
	if err := s.unsettled.Replace(ctx, pending); err != nil {
		return fmt.Errorf("persist unsettled ledger: %w", err)
	}
	if err := s.persistBalances(ctx); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "cash settlement scan released funds",
		"records_settled", settled, "records_pending", len(pending), "scan_time", utcTime)
	return nil
}

// RunSettlementScanner 周期性扫描直到 ctx 取消
func (s *PortfolioService) RunSettlementScanner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "settlement scanner started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("settlement scanner stopped")
			return
		case <-ticker.C:
			if err := s.ScanOnce(ctx, time.Now().UTC()); err != nil {
				s.logger.ErrorContext(ctx, "settlement scan failed", "error", err)
			}
		}
	}
}

// persistSnapshot 保存指定证券的持仓与全部余额快照
func (s *PortfolioService) persistSnapshot(ctx context.Context, symbol string) error {
	if holding, ok := s.manager.Holding(symbol); ok {
		if err := s.holdings.SaveHolding(ctx, holding); err != nil {
			return err
		}
	}
	if s.delayedModel != nil {
		if err := s.unsettled.Replace(ctx, s.delayedModel.Pending()); err != nil {
			return err
		}
		s.metrics.UnsettledRecords.Set(float64(len(s.delayedModel.Pending())))
	}
	return s.persistBalances(ctx)
}

func (s *PortfolioService) persistBalances(ctx context.Context) error {
	for _, cash := range s.manager.CashBook().Snapshot() {
		if err := s.balances.SaveBalance(ctx, domain.BookSettled, cash); err != nil {
			return err
		}
	}
	for _, cash := range s.manager.UnsettledCashBook().Snapshot() {
		if err := s.balances.SaveBalance(ctx, domain.BookUnsettled, cash); err != nil {
			return err
		}
	}
	return nil
}
