package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/entity"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/repository"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/eventbus"
)

// 编辑表单写入的凭据键
const (
	CredentialAPIKey = "api_key"
	CredentialModel  = "ai_model"
)

// EditIAInput 编辑表单：IA 字段与配置字段一次提交
type EditIAInput struct {
	repository.IAPatch
	Channel  *string `json:"channel,omitempty" validate:"omitempty,notblank"`
	Provider *string `json:"ai_api,omitempty" validate:"omitempty,notblank"`
	APIKey   *string `json:"api_key,omitempty"`
	Model    *string `json:"ai_model,omitempty"`
}

// hasConfig 判断是否涉及配置字段
func (in EditIAInput) hasConfig() bool {
	return in.Channel != nil || in.Provider != nil || in.APIKey != nil || in.Model != nil
}

// EditIA 在一个事务内更新 IA 并创建或更新其配置。
// api_key 与 ai_model 去除首尾空白后合并进现有凭据，其余凭据键保持不变
func (s *FleetService) EditIA(ctx context.Context, id uint, in EditIAInput) (ia *entity.IA, err error) {
	defer s.observe("EditIA", time.Now(), &err)

	if err = repository.Validate(in); err != nil {
		return nil, err
	}

	var cfg *entity.IAConfig
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if !in.IAPatch.IsEmpty() || in.ExpectedVersion != nil {
			if _, err := s.ias.Update(ctx, id, in.IAPatch); err != nil {
				return err
			}
		}

		if in.hasConfig() {
			current, err := s.configs.GetOrCreate(ctx, id)
			if err != nil {
				return err
			}

			patch := repository.ConfigPatch{
				Channel:  trimmed(in.Channel),
				Provider: trimmed(in.Provider),
			}
			if in.APIKey != nil || in.Model != nil {
				creds, err := current.Credentials(s.cipher)
				if err != nil {
					return err
				}
				if in.APIKey != nil {
					creds[CredentialAPIKey] = strings.TrimSpace(*in.APIKey)
				}
				if in.Model != nil {
					creds[CredentialModel] = strings.TrimSpace(*in.Model)
				}
				patch.Credentials = creds
			}

			if cfg, err = s.configs.Update(ctx, id, patch); err != nil {
				return err
			}
		}

		var err error
		ia, err = s.ias.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("IA edited", zap.Uint("ia_id", id), zap.Bool("config_changed", cfg != nil))
	s.publish(ctx, eventbus.EventTypeIAUpdated, eventbus.ChangePayload{Entity: "ia", ID: ia.ID(), IAID: ia.ID(), Version: ia.Version()})
	if cfg != nil {
		s.publish(ctx, eventbus.EventTypeConfigUpdated, configPayload(cfg))
	}
	return ia, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
