package domain

import (
	"context"

	settlement "github.com/wyfcoding/tradingcore/internal/settlement/domain"
)

// 账簿类型，区分可用现金与在途现金的持久化快照
const (
	BookSettled   = "settled"
	BookUnsettled = "unsettled"
)

// BalanceRepository 现金余额快照仓储
type BalanceRepository interface {
	// SaveBalance 保存或更新某一账簿下的币种余额
	SaveBalance(ctx context.Context, book string, cash Cash) error
	// ListBalances 加载某一账簿的全部余额
	ListBalances(ctx context.Context, book string) ([]Cash, error)
}

// HoldingRepository 持仓快照仓储
type HoldingRepository interface {
	// SaveHolding 保存或更新持仓
	SaveHolding(ctx context.Context, holding Holding) error
	// ListHoldings 加载全部持仓
	ListHoldings(ctx context.Context) ([]Holding, error)
}

// UnsettledCashRepository 在途现金台账仓储，
// 重启后恢复延迟结算模型的待结算记录。
type UnsettledCashRepository interface {
	// Replace 以当前待结算记录整体覆盖台账
	Replace(ctx context.Context, records []settlement.UnsettledCashAmount) error
	// List 加载全部待结算记录
	List(ctx context.Context) ([]settlement.UnsettledCashAmount, error)
}
