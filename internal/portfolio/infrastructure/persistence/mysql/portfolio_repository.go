// Package mysql 提供组合快照仓储的 MySQL GORM 实现。
package mysql

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/tradingcore/internal/portfolio/domain"
	settlement "github.com/wyfcoding/tradingcore/internal/settlement/domain"
	"github.com/wyfcoding/tradingcore/pkg/logger"
)

// BalanceModel 现金余额快照，映射 cash_balances 表
type BalanceModel struct {
	gorm.Model
	Book           string `gorm:"column:book;type:varchar(20);uniqueIndex:uk_book_currency;not null;comment:账簿(settled/unsettled)"`
	Currency       string `gorm:"column:currency;type:varchar(10);uniqueIndex:uk_book_currency;not null;comment:币种"`
	Quantity       string `gorm:"column:quantity;type:decimal(32,18);not null;comment:带符号余额"`
	ConversionRate string `gorm:"column:conversion_rate;type:decimal(32,18);not null;comment:对本位币汇率"`
}

// TableName 指定表名
func (BalanceModel) TableName() string {
	return "cash_balances"
}

// HoldingModel 持仓快照，映射 holdings 表
type HoldingModel struct {
	gorm.Model
	Symbol       string `gorm:"column:symbol;type:varchar(20);uniqueIndex;not null;comment:证券代码"`
	Quantity     string `gorm:"column:quantity;type:decimal(32,18);not null;comment:带符号持仓数量"`
	AveragePrice string `gorm:"column:average_price;type:decimal(32,18);not null;comment:持仓均价"`
}

// TableName 指定表名
func (HoldingModel) TableName() string {
	return "holdings"
}

// UnsettledCashModel 在途现金台账，映射 unsettled_cash 表
type UnsettledCashModel struct {
	gorm.Model
	Currency   string    `gorm:"column:currency;type:varchar(10);index;not null;comment:币种"`
	Amount     string    `gorm:"column:amount;type:decimal(32,18);not null;comment:待结算金额"`
	EligibleAt time.Time `gorm:"column:eligible_at;index;not null;comment:可结算时间(UTC)"`
}

// TableName 指定表名
func (UnsettledCashModel) TableName() string {
	return "unsettled_cash"
}

type portfolioRepositoryImpl struct {
	db *gorm.DB
}

// NewPortfolioRepository 创建组合快照仓储，
// 同时实现 BalanceRepository、HoldingRepository 与 UnsettledCashRepository。
func NewPortfolioRepository(gormDB *gorm.DB) *portfolioRepositoryImpl {
	return &portfolioRepositoryImpl{db: gormDB}
}

// SaveBalance 实现 domain.BalanceRepository.SaveBalance
func (r *portfolioRepositoryImpl) SaveBalance(ctx context.Context, book string, cash domain.Cash) error {
	model := &BalanceModel{
		Book:           book,
		Currency:       cash.Symbol,
		Quantity:       cash.Quantity.String(),
		ConversionRate: cash.ConversionRate.String(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "book"}, {Name: "currency"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "conversion_rate"}),
	}).Create(model).Error
	if err != nil {
		logger.Error(ctx, "portfolio_repository.save_balance failed", "book", book, "currency", cash.Symbol, "error", err)
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

// ListBalances 实现 domain.BalanceRepository.ListBalances
func (r *portfolioRepositoryImpl) ListBalances(ctx context.Context, book string) ([]domain.Cash, error) {
	var models []BalanceModel
	if err := r.db.WithContext(ctx).Where("book = ?", book).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}

	out := make([]domain.Cash, 0, len(models))
	for _, model := range models {
		quantity, err := decimal.NewFromString(model.Quantity)
		if err != nil {
			return nil, fmt.Errorf("balance %s/%s: bad quantity: %w", book, model.Currency, err)
		}
		rate, err := decimal.NewFromString(model.ConversionRate)
		if err != nil {
			return nil, fmt.Errorf("balance %s/%s: bad conversion rate: %w", book, model.Currency, err)
		}
		out = append(out, domain.Cash{Symbol: model.Currency, Quantity: quantity, ConversionRate: rate})
	}
	return out, nil
}

// SaveHolding 实现 domain.HoldingRepository.SaveHolding
func (r *portfolioRepositoryImpl) SaveHolding(ctx context.Context, holding domain.Holding) error {
	model := &HoldingModel{
		Symbol:       holding.Symbol,
		Quantity:     holding.Quantity.String(),
		AveragePrice: holding.AveragePrice.String(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "average_price"}),
	}).Create(model).Error
	if err != nil {
		logger.Error(ctx, "portfolio_repository.save_holding failed", "symbol", holding.Symbol, "error", err)
		return fmt.Errorf("failed to save holding: %w", err)
	}
	return nil
}

// ListHoldings 实现 domain.HoldingRepository.ListHoldings
func (r *portfolioRepositoryImpl) ListHoldings(ctx context.Context) ([]domain.Holding, error) {
	var models []HoldingModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}

	out := make([]domain.Holding, 0, len(models))
	for _, model := range models {
		quantity, err := decimal.NewFromString(model.Quantity)
		if err != nil {
			return nil, fmt.Errorf("holding %s: bad quantity: %w", model.Symbol, err)
		}
		price, err := decimal.NewFromString(model.AveragePrice)
		if err != nil {
			return nil, fmt.Errorf("holding %s: bad average price: %w", model.Symbol, err)
		}
		out = append(out, domain.Holding{Symbol: model.Symbol, Quantity: quantity, AveragePrice: price})
	}
	return out, nil
}

// Replace 实现 domain.UnsettledCashRepository.Replace，
// 在单个事务内整体覆盖台账，与内存待结算状态保持一致。
func (r *portfolioRepositoryImpl) Replace(ctx context.Context, records []settlement.UnsettledCashAmount) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&UnsettledCashModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear unsettled ledger: %w", err)
		}
		for _, record := range records {
			model := &UnsettledCashModel{
				Currency:   record.Currency,
				Amount:     record.Amount.String(),
				EligibleAt: record.EligibleAt,
			}
			if err := tx.Create(model).Error; err != nil {
				return fmt.Errorf("failed to save unsettled record: %w", err)
			}
		}
		return nil
	})
}

// List 实现 domain.UnsettledCashRepository.List
func (r *portfolioRepositoryImpl) List(ctx context.Context) ([]settlement.UnsettledCashAmount, error) {
	var models []UnsettledCashModel
	if err := r.db.WithContext(ctx).Order("eligible_at").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list unsettled records: %w", err)
	}

	out := make([]settlement.UnsettledCashAmount, 0, len(models))
	for _, model := range models {
		amount, err := decimal.NewFromString(model.Amount)
		if err != nil {
			return nil, fmt.Errorf("unsettled %s: bad amount: %w", model.Currency, err)
		}
		out = append(out, settlement.UnsettledCashAmount{
			Currency:   model.Currency,
			Amount:     amount,
			EligibleAt: model.EligibleAt.UTC(),
		})
	}
	return out, nil
}
