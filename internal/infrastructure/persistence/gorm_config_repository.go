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

// GormConfigRepository GORM 实现的配置仓储
// 凭据明文只在本仓储边界内出现，入库前经 cipher 加密
type GormConfigRepository struct {
	db     *gorm.DB
	tx     repository.TxManager
	cipher entity.CredentialCipher
}

// NewGormConfigRepository 创建 GORM 配置仓储
func NewGormConfigRepository(db *gorm.DB, tx repository.TxManager, cipher entity.CredentialCipher) repository.ConfigRepository {
	return &GormConfigRepository{
		db:     db,
		tx:     tx,
		cipher: cipher,
	}
}

// GetOrCreate 返回已有配置或原子地创建空配置。
// 插入带 ON CONFLICT DO NOTHING，并发调用方先写入时在同一事务内读取其行，外层事务保持可用
func (r *GormConfigRepository) GetOrCreate(ctx context.Context, iaID uint) (*entity.IAConfig, error) {
	var result *entity.IAConfig
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.db)

		var model models.IAConfigModel
		err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("ia_id = ?", iaID).Take(&model).Error
		if err == nil {
			result = toConfigEntity(&model)
			return nil
		}
		if err := translateError(err, "ia config"); !domainErrors.IsNotFound(err) {
			return err
		}

		if err := requireIA(db, iaID); err != nil {
			return err
		}

		token, err := r.cipher.Encrypt(map[string]string{})
		if err != nil {
			return err
		}
		model = models.IAConfigModel{
			IAID:                 iaID,
			EncryptedCredentials: token,
			Version:              1,
		}
		created := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ia_id"}},
			DoNothing: true,
		}).Create(&model)
		if created.Error != nil {
			return translateError(created.Error, "ia config")
		}

		if created.RowsAffected == 0 {
			var winner models.IAConfigModel
			if err := db.Where("ia_id = ?", iaID).Take(&winner).Error; err != nil {
				return translateError(err, "ia config")
			}
			model = winner
		}
		result = toConfigEntity(&model)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FindByIAID 查找 IA 的配置
func (r *GormConfigRepository) FindByIAID(ctx context.Context, iaID uint) (*entity.IAConfig, error) {
	var model models.IAConfigModel
	if err := conn(ctx, r.db).Where("ia_id = ?", iaID).Take(&model).Error; err != nil {
		return nil, translateError(err, "ia config")
	}
	return toConfigEntity(&model), nil
}

// Update 部分更新配置，凭据重新加密
func (r *GormConfigRepository) Update(ctx context.Context, iaID uint, patch repository.ConfigPatch) (*entity.IAConfig, error) {
	if err := repository.Validate(patch); err != nil {
		return nil, err
	}

	var token string
	if patch.Credentials != nil {
		var err error
		if token, err = r.cipher.Encrypt(patch.Credentials); err != nil {
			return nil, err
		}
	}

	var result *entity.IAConfig
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.db)

		var current models.IAConfigModel
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("ia_id = ?", iaID).Take(&current).Error; err != nil {
			return translateError(err, "ia config")
		}
		if err := checkVersion(patch.ExpectedVersion, current.Version, "ia config"); err != nil {
			return err
		}

		if !patch.IsEmpty() {
			updates := map[string]any{}
			if patch.Channel != nil {
				updates["channel"] = *patch.Channel
			}
			if patch.Provider != nil {
				updates["ai_api"] = *patch.Provider
			}
			if patch.Credentials != nil {
				updates["encrypted_credentials"] = token
			}
			if err := updateVersioned(db, &models.IAConfigModel{}, current.ID, current.Version, updates, "ia config"); err != nil {
				return err
			}
		}

		var reloaded models.IAConfigModel
		if err := db.First(&reloaded, current.ID).Error; err != nil {
			return translateError(err, "ia config")
		}
		result = toConfigEntity(&reloaded)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
