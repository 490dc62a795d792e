// Package domain 包含证券主数据的领域模型
package domain

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrSecurityNotFound 证券未登记
var ErrSecurityNotFound = errors.New("security not found")

// SecurityType 证券类型
type SecurityType int8

const (
	SecurityTypeEquity SecurityType = 1 // 股票
	SecurityTypeOption SecurityType = 2 // 期权
	SecurityTypeFuture SecurityType = 3 // 期货
	SecurityTypeForex  SecurityType = 4 // 外汇
	SecurityTypeCrypto SecurityType = 5 // 加密货币
)

func (t SecurityType) String() string {
	switch t {
	case SecurityTypeEquity:
		return "EQUITY"
	case SecurityTypeOption:
		return "OPTION"
	case SecurityTypeFuture:
		return "FUTURE"
	case SecurityTypeForex:
		return "FOREX"
	case SecurityTypeCrypto:
		return "CRYPTO"
	default:
		return "UNKNOWN"
	}
}

// Security 证券快照
// 报价币种换算率（quote 币种对账户本位币）随行情持续更新
type Security struct {
	mu sync.RWMutex

	// 证券代码
	Symbol string
	// 证券类型
	Type SecurityType
	// 报价币种（如 USD、USDT）
	QuoteCurrency string
	// 报价币种对账户本位币的换算率
	QuoteConversionRate decimal.Decimal
	// 合约乘数，现货为 1
	ContractMultiplier decimal.Decimal
	// 最新成交价
	LastPrice decimal.Decimal
	// 最新买一价
	BidPrice decimal.Decimal
	// 最新卖一价
	AskPrice decimal.Decimal
}

// NewSecurity 创建证券快照，乘数与换算率默认 1
func NewSecurity(symbol string, secType SecurityType, quoteCurrency string) *Security {
	return &Security{
		Symbol:              strings.ToUpper(symbol),
		Type:                secType,
		QuoteCurrency:       strings.ToUpper(quoteCurrency),
		QuoteConversionRate: decimal.NewFromInt(1),
		ContractMultiplier:  decimal.NewFromInt(1),
	}
}

// UpdateMarketPrice 更新行情价格
func (s *Security) UpdateMarketPrice(last, bid, ask decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastPrice = last
	s.BidPrice = bid
	s.AskPrice = ask
}

// UpdateQuoteConversionRate 更新报价币种换算率
func (s *Security) UpdateQuoteConversionRate(rate decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QuoteConversionRate = rate
}

// MarketPrice 当前市场价（最新成交价）
func (s *Security) MarketPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastPrice
}

// ConversionRate 报价币种对账户本位币的换算率
func (s *Security) ConversionRate() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.QuoteConversionRate
}

// Multiplier 合约乘数
func (s *Security) Multiplier() decimal.Decimal {
	return s.ContractMultiplier
}

// SubmissionPrices 提交时刻的行情快照 (bid, ask, last)
func (s *Security) SubmissionPrices() (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.BidPrice, s.AskPrice, s.LastPrice
}

// SecurityProvider 证券查询接口
type SecurityProvider interface {
	// Get 根据代码获取证券，未登记返回 ErrSecurityNotFound
	Get(ctx context.Context, symbol string) (*Security, error)
}

// Registry 进程内证券登记表，实现 SecurityProvider
type Registry struct {
	mu         sync.RWMutex
	securities map[string]*Security
}

// NewRegistry 创建空登记表
func NewRegistry() *Registry {
	return &Registry{securities: make(map[string]*Security)}
}

// Register 登记证券，重复登记以新值覆盖
func (r *Registry) Register(sec *Security) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.securities[strings.ToUpper(sec.Symbol)] = sec
}

// Get 实现 SecurityProvider.Get
func (r *Registry) Get(_ context.Context, symbol string) (*Security, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sec, ok := r.securities[strings.ToUpper(symbol)]
	if !ok {
		return nil, ErrSecurityNotFound
	}
	return sec, nil
}
