package persistence

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/entity"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/persistence/models"
	domainErrors "github.com/ngoclaw/ngoclaw/iafleet/pkg/errors"
)

// 转换方法

func toIAEntity(model *models.IAModel) *entity.IA {
	ia := entity.ReconstructIA(
		model.ID,
		model.Name,
		model.PhoneNumber,
		model.Status,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)

	if model.Prompts != nil {
		prompts := make([]*entity.Prompt, 0, len(model.Prompts))
		for i := range model.Prompts {
			prompts = append(prompts, toPromptEntity(&model.Prompts[i]))
		}
		ia.AttachPrompts(prompts)
	}
	if model.Config != nil {
		ia.AttachConfig(toConfigEntity(model.Config))
	}
	return ia
}

func toPromptEntity(model *models.PromptModel) *entity.Prompt {
	return entity.ReconstructPrompt(
		model.ID,
		model.IAID,
		model.PromptText,
		model.IsActive,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func toConfigEntity(model *models.IAConfigModel) *entity.IAConfig {
	return entity.ReconstructIAConfig(
		model.ID,
		model.IAID,
		model.Channel,
		model.AIAPI,
		model.EncryptedCredentials,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func toLeadEntity(model *models.LeadModel) (*entity.Lead, error) {
	message := map[string]any{}
	if len(model.Message) > 0 {
		if err := json.Unmarshal(model.Message, &message); err != nil {
			return nil, domainErrors.NewInternalErrorWithCause("decode lead message", err)
		}
	}

	return entity.ReconstructLead(
		model.ID,
		model.IAID,
		model.Name,
		model.Phone,
		message,
		model.Resume,
		model.CreatedAt,
		model.UpdatedAt,
	), nil
}

func encodeMessage(message map[string]any) (datatypes.JSON, error) {
	raw, err := json.Marshal(message)
	if err != nil {
		return nil, domainErrors.NewInvalidInputErrorWithCause("lead message is not valid JSON", err)
	}
	return datatypes.JSON(raw), nil
}
