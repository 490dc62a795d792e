package db

import (
	"context"

	"gorm.io/gorm"
)

type txContextKey struct{}

// WithTxContext 将事务句柄注入 context，供仓储层跨方法共享事务
func WithTxContext(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext 取出 context 中的事务句柄，不存在时返回 fallback
func TxFromContext(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return fallback
}
