package persistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/entity"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/repository"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/persistence/models"
	domainErrors "github.com/ngoclaw/ngoclaw/iafleet/pkg/errors"
)

// GormPromptRepository GORM 实现的提示词仓储
type GormPromptRepository struct {
	db *gorm.DB
	tx repository.TxManager
}

// NewGormPromptRepository 创建 GORM 提示词仓储
func NewGormPromptRepository(db *gorm.DB, tx repository.TxManager) repository.PromptRepository {
	return &GormPromptRepository{
		db: db,
		tx: tx,
	}
}

// Create 创建提示词；激活时同一事务内取消同 IA 其他提示词的激活状态
func (r *GormPromptRepository) Create(ctx context.Context, in repository.CreatePromptInput) (*entity.Prompt, error) {
	if err := repository.Validate(in); err != nil {
		return nil, err
	}
	prompt, err := entity.NewPrompt(in.IAID, in.Text, in.Active)
	if err != nil {
		return nil, domainErrors.NewInvalidInputErrorWithCause(err.Error(), err)
	}

	model := models.PromptModel{
		IAID:       prompt.IAID(),
		PromptText: prompt.Text(),
		IsActive:   prompt.IsActive(),
		Version:    1,
	}

	err = r.tx.WithinTx(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.db)
		if err := requireIA(db, model.IAID); err != nil {
			return err
		}
		if model.IsActive {
			if err := deactivateOthers(db, model.IAID, 0); err != nil {
				return err
			}
		}
		return translateError(db.Create(&model).Error, "prompt")
	})
	if err != nil {
		return nil, err
	}
	return toPromptEntity(&model), nil
}

// FindByID 根据ID查找提示词
func (r *GormPromptRepository) FindByID(ctx context.Context, id uint) (*entity.Prompt, error) {
	var model models.PromptModel
	if err := conn(ctx, r.db).First(&model, id).Error; err != nil {
		return nil, translateError(err, "prompt")
	}
	return toPromptEntity(&model), nil
}

// FindByIAID 查找 IA 的提示词
func (r *GormPromptRepository) FindByIAID(ctx context.Context, iaID uint) ([]*entity.Prompt, error) {
	var modelList []models.PromptModel
	if err := conn(ctx, r.db).Where("ia_id = ?", iaID).Order("id ASC").Find(&modelList).Error; err != nil {
		return nil, translateError(err, "prompts")
	}
	return toPromptEntities(modelList), nil
}

// FindAll 查找全部提示词
func (r *GormPromptRepository) FindAll(ctx context.Context) ([]*entity.Prompt, error) {
	var modelList []models.PromptModel
	if err := conn(ctx, r.db).Order("ia_id ASC, id ASC").Find(&modelList).Error; err != nil {
		return nil, translateError(err, "prompts")
	}
	return toPromptEntities(modelList), nil
}

// Update 部分更新提示词
func (r *GormPromptRepository) Update(ctx context.Context, id uint, patch repository.PromptPatch) (*entity.Prompt, error) {
	if err := repository.Validate(patch); err != nil {
		return nil, err
	}

	var result *entity.Prompt
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.db)

		var current models.PromptModel
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, id).Error; err != nil {
			return translateError(err, "prompt")
		}
		if err := checkVersion(patch.ExpectedVersion, current.Version, "prompt"); err != nil {
			return err
		}

		if !patch.IsEmpty() {
			updates := map[string]any{}
			if patch.Text != nil {
				updates["prompt_text"] = *patch.Text
			}
			if patch.Active != nil {
				if *patch.Active {
					if err := deactivateOthers(db, current.IAID, current.ID); err != nil {
						return err
					}
				}
				updates["is_active"] = *patch.Active
			}
			if err := updateVersioned(db, &models.PromptModel{}, id, current.Version, updates, "prompt"); err != nil {
				return err
			}
		}

		var reloaded models.PromptModel
		if err := db.First(&reloaded, id).Error; err != nil {
			return translateError(err, "prompt")
		}
		result = toPromptEntity(&reloaded)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete 删除提示词
func (r *GormPromptRepository) Delete(ctx context.Context, id uint) error {
	result := conn(ctx, r.db).Delete(&models.PromptModel{}, id)
	if result.Error != nil {
		return translateError(result.Error, "prompt")
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("prompt not found")
	}
	return nil
}

// SetActive 激活指定提示词，保证同一 IA 下只有它处于激活状态
func (r *GormPromptRepository) SetActive(ctx context.Context, iaID, promptID uint) (*entity.Prompt, error) {
	var result *entity.Prompt
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.db)

		var target models.PromptModel
		err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND ia_id = ?", promptID, iaID).
			First(&target).Error
		if err != nil {
			return translateError(err, "prompt")
		}

		if err := deactivateOthers(db, iaID, promptID); err != nil {
			return err
		}
		if err := updateVersioned(db, &models.PromptModel{}, target.ID, target.Version, map[string]any{"is_active": true}, "prompt"); err != nil {
			return err
		}

		var reloaded models.PromptModel
		if err := db.First(&reloaded, promptID).Error; err != nil {
			return translateError(err, "prompt")
		}
		result = toPromptEntity(&reloaded)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// deactivateOthers 取消 IA 下除 keepID 以外所有提示词的激活状态
func deactivateOthers(db *gorm.DB, iaID, keepID uint) error {
	err := db.Model(&models.PromptModel{}).
		Where("ia_id = ? AND id <> ? AND is_active = ?", iaID, keepID, true).
		Updates(map[string]any{
			"is_active":  false,
			"version":    gorm.Expr("version + 1"),
			"updated_at": db.NowFunc(),
		}).Error
	return translateError(err, "prompts")
}

func toPromptEntities(modelList []models.PromptModel) []*entity.Prompt {
	prompts := make([]*entity.Prompt, 0, len(modelList))
	for i := range modelList {
		prompts = append(prompts, toPromptEntity(&modelList[i]))
	}
	return prompts
}
