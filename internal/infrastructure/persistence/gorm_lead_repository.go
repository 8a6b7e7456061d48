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

// GormLeadRepository GORM 实现的线索仓储
type GormLeadRepository struct {
	db *gorm.DB
	tx repository.TxManager
}

// NewGormLeadRepository 创建 GORM 线索仓储
func NewGormLeadRepository(db *gorm.DB, tx repository.TxManager) repository.LeadRepository {
	return &GormLeadRepository{
		db: db,
		tx: tx,
	}
}

// Create 创建线索，手机号重复时在写入前失败
func (r *GormLeadRepository) Create(ctx context.Context, in repository.CreateLeadInput) (*entity.Lead, error) {
	if err := repository.Validate(in); err != nil {
		return nil, err
	}
	lead, err := entity.NewLead(in.IAID, in.Name, in.Phone, in.Message, in.Resume)
	if err != nil {
		return nil, domainErrors.NewInvalidInputErrorWithCause(err.Error(), err)
	}
	message, err := encodeMessage(lead.Message())
	if err != nil {
		return nil, err
	}

	model := models.LeadModel{
		IAID:    lead.IAID(),
		Name:    lead.Name(),
		Phone:   lead.Phone(),
		Message: message,
		Resume:  lead.Resume(),
	}

	err = r.tx.WithinTx(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.db)
		if err := requireIA(db, model.IAID); err != nil {
			return err
		}
		if err := ensurePhoneAvailable(db, model.Phone, 0); err != nil {
			return err
		}
		return translateError(db.Create(&model).Error, "lead")
	})
	if err != nil {
		return nil, err
	}
	return toLeadEntity(&model)
}

// FindByID 根据ID查找线索
func (r *GormLeadRepository) FindByID(ctx context.Context, id uint) (*entity.Lead, error) {
	var model models.LeadModel
	if err := conn(ctx, r.db).First(&model, id).Error; err != nil {
		return nil, translateError(err, "lead")
	}
	return toLeadEntity(&model)
}

// FindByIAID 查找 IA 的线索
func (r *GormLeadRepository) FindByIAID(ctx context.Context, iaID uint) ([]*entity.Lead, error) {
	var modelList []models.LeadModel
	if err := conn(ctx, r.db).Where("ia_id = ?", iaID).Order("id ASC").Find(&modelList).Error; err != nil {
		return nil, translateError(err, "leads")
	}

	leads := make([]*entity.Lead, 0, len(modelList))
	for i := range modelList {
		lead, err := toLeadEntity(&modelList[i])
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// Update 部分更新线索
func (r *GormLeadRepository) Update(ctx context.Context, id uint, patch repository.LeadPatch) (*entity.Lead, error) {
	var result *entity.Lead
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.db)

		var current models.LeadModel
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, id).Error; err != nil {
			return translateError(err, "lead")
		}

		if !patch.IsEmpty() {
			updates := map[string]any{}
			if patch.Name != nil {
				updates["name"] = entity.NormalizeOptional(patch.Name)
			}
			if patch.Phone != nil {
				phone := entity.NormalizeOptional(patch.Phone)
				if err := ensurePhoneAvailable(db, phone, id); err != nil {
					return err
				}
				updates["phone"] = phone
			}
			if patch.Resume != nil {
				updates["resume"] = entity.NormalizeOptional(patch.Resume)
			}
			if patch.Message != nil {
				message, err := encodeMessage(patch.Message)
				if err != nil {
					return err
				}
				updates["message"] = message
			}
			updates["updated_at"] = db.NowFunc()

			if err := db.Model(&models.LeadModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return translateError(err, "lead")
			}
		}

		var reloaded models.LeadModel
		if err := db.First(&reloaded, id).Error; err != nil {
			return translateError(err, "lead")
		}
		lead, err := toLeadEntity(&reloaded)
		if err != nil {
			return err
		}
		result = lead
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete 删除线索
func (r *GormLeadRepository) Delete(ctx context.Context, id uint) error {
	result := conn(ctx, r.db).Delete(&models.LeadModel{}, id)
	if result.Error != nil {
		return translateError(result.Error, "lead")
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("lead not found")
	}
	return nil
}

// ensurePhoneAvailable 检查手机号未被其他线索占用
func ensurePhoneAvailable(db *gorm.DB, phone *string, selfID uint) error {
	if phone == nil {
		return nil
	}

	var count int64
	err := db.Model(&models.LeadModel{}).
		Where("phone = ? AND id <> ?", *phone, selfID).
		Count(&count).Error
	if err != nil {
		return translateError(err, "leads")
	}
	if count > 0 {
		return domainErrors.NewAlreadyExistsError("lead phone already registered: " + *phone)
	}
	return nil
}
