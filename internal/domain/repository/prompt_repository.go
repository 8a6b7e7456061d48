package repository

import (
	"context"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/entity"
)

// PromptRepository 提示词仓储接口
// 所有写入路径都保证同一 IA 下至多一个激活提示词
type PromptRepository interface {
	Create(ctx context.Context, in CreatePromptInput) (*entity.Prompt, error)
	FindByID(ctx context.Context, id uint) (*entity.Prompt, error)

	// FindByIAID 按 ID 升序返回 IA 的全部提示词，IA 不存在时返回空列表
	FindByIAID(ctx context.Context, iaID uint) ([]*entity.Prompt, error)

	// FindAll 返回全部提示词（按 IA、ID 排序）
	FindAll(ctx context.Context) ([]*entity.Prompt, error)

	Update(ctx context.Context, id uint, patch PromptPatch) (*entity.Prompt, error)
	Delete(ctx context.Context, id uint) error

	// SetActive 在单个事务内清除该 IA 其他提示词的激活状态并激活目标提示词
	SetActive(ctx context.Context, iaID, promptID uint) (*entity.Prompt, error)
}
