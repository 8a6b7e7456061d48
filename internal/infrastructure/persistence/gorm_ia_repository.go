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

// GormIARepository GORM 实现的助手仓储
type GormIARepository struct {
	db     *gorm.DB
	tx     repository.TxManager
	cipher entity.CredentialCipher
}

// NewGormIARepository 创建 GORM 助手仓储
func NewGormIARepository(db *gorm.DB, tx repository.TxManager, cipher entity.CredentialCipher) repository.IARepository {
	return &GormIARepository{
		db:     db,
		tx:     tx,
		cipher: cipher,
	}
}

// Create 创建助手，初始配置与助手在同一事务内写入
func (r *GormIARepository) Create(ctx context.Context, in repository.CreateIAInput) (*entity.IA, error) {
	if err := repository.Validate(in); err != nil {
		return nil, err
	}
	ia, err := entity.NewIA(in.Name, in.PhoneNumber, in.IsEnabled())
	if err != nil {
		return nil, domainErrors.NewInvalidInputErrorWithCause(err.Error(), err)
	}

	var cfg *models.IAConfigModel
	if in.Config != nil {
		token, err := r.cipher.Encrypt(in.Config.Credentials)
		if err != nil {
			return nil, err
		}
		cfg = &models.IAConfigModel{
			Channel:              in.Config.Channel,
			AIAPI:                in.Config.Provider,
			EncryptedCredentials: token,
			Version:              1,
		}
	}

	model := models.IAModel{
		Name:        ia.Name(),
		PhoneNumber: ia.PhoneNumber(),
		Status:      ia.Enabled(),
		Version:     1,
	}

	err = r.tx.WithinTx(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.db)
		if err := db.Create(&model).Error; err != nil {
			return translateError(err, "ia")
		}
		if cfg != nil {
			cfg.IAID = model.ID
			if err := db.Create(cfg).Error; err != nil {
				return translateError(err, "ia config")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	model.Prompts = []models.PromptModel{}
	model.Config = cfg
	return toIAEntity(&model), nil
}

// FindByID 根据ID查找助手
func (r *GormIARepository) FindByID(ctx context.Context, id uint) (*entity.IA, error) {
	var model models.IAModel
	if err := withAggregate(conn(ctx, r.db)).First(&model, id).Error; err != nil {
		return nil, translateError(err, "ia")
	}
	return toIAEntity(&model), nil
}

// FindAll 查找所有助手
func (r *GormIARepository) FindAll(ctx context.Context) ([]*entity.IA, error) {
	var modelList []models.IAModel
	if err := withAggregate(conn(ctx, r.db)).Order("id ASC").Find(&modelList).Error; err != nil {
		return nil, translateError(err, "ias")
	}

	ias := make([]*entity.IA, 0, len(modelList))
	for i := range modelList {
		ias = append(ias, toIAEntity(&modelList[i]))
	}
	return ias, nil
}

// Update 部分更新助手
func (r *GormIARepository) Update(ctx context.Context, id uint, patch repository.IAPatch) (*entity.IA, error) {
	if err := repository.Validate(patch); err != nil {
		return nil, err
	}

	var result *entity.IA
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.db)

		var current models.IAModel
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, id).Error; err != nil {
			return translateError(err, "ia")
		}
		if err := checkVersion(patch.ExpectedVersion, current.Version, "ia"); err != nil {
			return err
		}

		if !patch.IsEmpty() {
			name, phone := current.Name, current.PhoneNumber
			if patch.Name != nil {
				name = *patch.Name
			}
			if patch.PhoneNumber != nil {
				phone = *patch.PhoneNumber
			}
			// 复用实体校验与规整
			next, err := entity.NewIA(name, phone, current.Status)
			if err != nil {
				return domainErrors.NewInvalidInputErrorWithCause(err.Error(), err)
			}

			updates := map[string]any{
				"name":         next.Name(),
				"phone_number": next.PhoneNumber(),
			}
			if patch.Enabled != nil {
				updates["status"] = *patch.Enabled
			}
			if err := updateVersioned(db, &models.IAModel{}, id, current.Version, updates, "ia"); err != nil {
				return err
			}
		}

		var reloaded models.IAModel
		if err := withAggregate(db).First(&reloaded, id).Error; err != nil {
			return translateError(err, "ia")
		}
		result = toIAEntity(&reloaded)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete 删除助手并级联删除线索、提示词与配置
func (r *GormIARepository) Delete(ctx context.Context, id uint) error {
	return r.tx.WithinTx(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.db)

		var current models.IAModel
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, id).Error; err != nil {
			return translateError(err, "ia")
		}

		children := []struct {
			model any
			what  string
		}{
			{&models.LeadModel{}, "leads"},
			{&models.PromptModel{}, "prompts"},
			{&models.IAConfigModel{}, "ia config"},
		}
		for _, child := range children {
			if err := db.Where("ia_id = ?", id).Delete(child.model).Error; err != nil {
				return translateError(err, child.what)
			}
		}

		result := db.Delete(&models.IAModel{}, id)
		if result.Error != nil {
			return translateError(result.Error, "ia")
		}
		if result.RowsAffected == 0 {
			return domainErrors.NewNotFoundError("ia not found")
		}
		return nil
	})
}

// withAggregate 预加载提示词（按 ID 升序）与配置
func withAggregate(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Prompts", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("Config")
}

// checkVersion 校验调用方期望的版本号
func checkVersion(expected *int, current int, what string) error {
	if expected != nil && *expected != current {
		return domainErrors.NewConflictError(what + " was modified concurrently")
	}
	return nil
}

// updateVersioned 带版本守卫的更新，版本号与 updated_at 一并推进
func updateVersioned(db *gorm.DB, model any, id uint, version int, updates map[string]any, what string) error {
	updates["version"] = version + 1
	updates["updated_at"] = db.NowFunc()

	result := db.Model(model).Where("id = ? AND version = ?", id, version).Updates(updates)
	if result.Error != nil {
		return translateError(result.Error, what)
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewConflictError(what + " was modified concurrently")
	}
	return nil
}

// exists 判断记录是否存在
func exists(db *gorm.DB, model any, id uint) (bool, error) {
	var count int64
	if err := db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// requireIA 确认 IA 存在，否则返回 NOT_FOUND
func requireIA(db *gorm.DB, iaID uint) error {
	ok, err := exists(db, &models.IAModel{}, iaID)
	if err != nil {
		return translateError(err, "ia")
	}
	if !ok {
		return domainErrors.NewNotFoundError("ia not found")
	}
	return nil
}
