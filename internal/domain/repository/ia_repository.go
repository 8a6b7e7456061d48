package repository

import (
	"context"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/entity"
)

// IARepository 助手仓储接口（遵循依赖倒置原则）
// 定义在领域层，实现在基础设施层
type IARepository interface {
	// Create 创建助手；in.Config 非空时在同一事务内创建配置
	Create(ctx context.Context, in CreateIAInput) (*entity.IA, error)

	// FindByID 根据ID查找助手（预加载提示词与配置）
	FindByID(ctx context.Context, id uint) (*entity.IA, error)

	// FindAll 查找所有助手（预加载提示词与配置）
	FindAll(ctx context.Context) ([]*entity.IA, error)

	// Update 部分更新助手字段
	Update(ctx context.Context, id uint, patch IAPatch) (*entity.IA, error)

	// Delete 删除助手，并在同一事务内级联删除提示词、配置与线索
	Delete(ctx context.Context, id uint) error
}
