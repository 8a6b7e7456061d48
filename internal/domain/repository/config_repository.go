package repository

import (
	"context"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/entity"
)

// ConfigRepository 助手配置仓储接口，凭据在此边界加密
type ConfigRepository interface {
	// GetOrCreate 返回 IA 的配置，不存在时原子地创建一个空配置（幂等）
	GetOrCreate(ctx context.Context, iaID uint) (*entity.IAConfig, error)

	// FindByIAID 查找 IA 的配置，不存在时返回 NOT_FOUND
	FindByIAID(ctx context.Context, iaID uint) (*entity.IAConfig, error)

	// Update 部分更新 IA 的配置
	Update(ctx context.Context, iaID uint, patch ConfigPatch) (*entity.IAConfig, error)
}
