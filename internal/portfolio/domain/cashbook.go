package domain

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrCurrencyNotFound 币种从未入账
var ErrCurrencyNotFound = errors.New("currency not found in cash book")

// CashBook 多币种现金账簿。
// 币种键大小写不敏感，统一按大写规范化存储。
// 构造时即为基准货币建立唯一条目：数量 0、汇率 1；条目只增不删，
// 余额归零的币种仍然保留。
type CashBook struct {
	mu           sync.RWMutex
	baseCurrency string
	entries      map[string]*Cash
}

// NewCashBook 创建以 baseCurrency 为基准货币的账簿
func NewCashBook(baseCurrency string) *CashBook {
	base := canonical(baseCurrency)
	return &CashBook{
		baseCurrency: base,
		entries: map[string]*Cash{
			base: {Symbol: base, Quantity: decimal.Zero, ConversionRate: decimal.NewFromInt(1)},
		},
	}
}

// BaseCurrency 返回基准货币代码
func (b *CashBook) BaseCurrency() string {
	return b.baseCurrency
}

// Add 新增或累加一个币种条目。
// 已存在时数量累加；rate 非零时同时刷新汇率。
func (b *CashBook) Add(currency string, quantity, conversionRate decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.upsert(currency, quantity, conversionRate)
}

// ApplyAmount 对指定币种累加现金变动。
// 币种不存在时自动建立条目，汇率待行情刷新（基准货币恒为 1）。
func (b *CashBook) ApplyAmount(currency string, amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.upsert(currency, amount, decimal.Zero)
}

func (b *CashBook) upsert(currency string, quantity, conversionRate decimal.Decimal) {
	key := canonical(currency)
	if entry, ok := b.entries[key]; ok {
		entry.Quantity = entry.Quantity.Add(quantity)
		if !conversionRate.IsZero() {
			entry.ConversionRate = conversionRate
		}
		return
	}
	rate := conversionRate
	if key == b.baseCurrency {
		rate = decimal.NewFromInt(1)
	}
	b.entries[key] = &Cash{Symbol: key, Quantity: quantity, ConversionRate: rate}
}

// SetConversionRate 刷新指定币种的折算汇率
func (b *CashBook) SetConversionRate(currency string, rate decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.entries[canonical(currency)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCurrencyNotFound, currency)
	}
	entry.ConversionRate = rate
	return nil
}

// Get 返回指定币种条目的快照，未入账返回 ErrCurrencyNotFound
func (b *CashBook) Get(currency string) (Cash, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.entries[canonical(currency)]
	if !ok {
		return Cash{}, fmt.Errorf("%w: %s", ErrCurrencyNotFound, currency)
	}
	return *entry, nil
}

// TotalValueInBaseCurrency 按当前汇率汇总全部条目的基准货币价值。
// 汇率随行情持续变动，每次调用现算，不做缓存。
func (b *CashBook) TotalValueInBaseCurrency() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := decimal.Zero
	for _, entry := range b.entries {
		total = total.Add(entry.ValueInBaseCurrency())
	}
	return total
}

// Snapshot 返回全部条目的拷贝，供查询接口使用
func (b *CashBook) Snapshot() []Cash {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Cash, 0, len(b.entries))
	for _, entry := range b.entries {
		out = append(out, *entry)
	}
	return out
}

// Len 返回条目数
func (b *CashBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

func canonical(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}
