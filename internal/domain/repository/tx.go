package repository

import "context"

// TxManager 事务边界
// fn 内通过 ctx 访问同一事务；嵌套调用加入外层事务，任一步失败整体回滚
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
