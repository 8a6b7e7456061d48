package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/repository"
	domainErrors "github.com/ngoclaw/ngoclaw/iafleet/pkg/errors"
)

type txKey struct{}

// GormTxManager 基于 gorm 的事务管理器，事务句柄通过 context 传递给仓储
type GormTxManager struct {
	db *gorm.DB
}

// NewTxManager 创建事务管理器
func NewTxManager(db *gorm.DB) repository.TxManager {
	return &GormTxManager{db: db}
}

// WithinTx 在事务中执行 fn；ctx 已携带事务时直接加入外层事务
func (m *GormTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	if err == nil {
		return nil
	}

	// 领域错误原样返回，其余视为事务失败（已回滚）
	switch domainErrors.CodeOf(err) {
	case "", domainErrors.CodeInternal:
		return domainErrors.NewTransactionError("transaction rolled back", err)
	default:
		return err
	}
}

// conn 返回当前 ctx 上的事务句柄，没有事务时返回基础连接
func conn(ctx context.Context, base *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return base.WithContext(ctx)
}
