package repository

import (
	"context"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/entity"
)

// LeadRepository 线索仓储接口
// 手机号全局唯一：重复时在写入前返回 ALREADY_EXISTS
type LeadRepository interface {
	Create(ctx context.Context, in CreateLeadInput) (*entity.Lead, error)
	FindByID(ctx context.Context, id uint) (*entity.Lead, error)

	// FindByIAID 按 ID 升序返回 IA 的线索，IA 不存在时返回空列表
	FindByIAID(ctx context.Context, iaID uint) ([]*entity.Lead, error)

	Update(ctx context.Context, id uint, patch LeadPatch) (*entity.Lead, error)
	Delete(ctx context.Context, id uint) error
}
