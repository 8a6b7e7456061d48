package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/repository"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/eventbus"
	domainErrors "github.com/ngoclaw/ngoclaw/iafleet/pkg/errors"
)

// SeedFile 批量导入文件（YAML）
//
//	ias:
//	  - name: Sales Bot
//	    phone_number: "+15550100"
//	    config:
//	      channel: whatsapp
//	      ai_api: openai
//	      credentials: {api_key: sk-..., ai_model: gpt-4o}
//	    prompts:
//	      - text: You are a helpful sales assistant.
//	        active: true
type SeedFile struct {
	IAs []SeedIA `yaml:"ias"`
}

// SeedIA 单个 IA 的导入项
type SeedIA struct {
	Name        string                  `yaml:"name"`
	PhoneNumber string                  `yaml:"phone_number"`
	Enabled     *bool                   `yaml:"status"`
	Config      *repository.ConfigInput `yaml:"config"`
	Prompts     []SeedPrompt            `yaml:"prompts"`
}

// SeedPrompt 导入的提示词
type SeedPrompt struct {
	Text   string `yaml:"text"`
	Active bool   `yaml:"active"`
}

// SeedReport 导入结果
type SeedReport struct {
	IAs     int
	Prompts int
}

// ParseSeed 解析导入文件，未知字段视为错误
func ParseSeed(r io.Reader) (*SeedFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file SeedFile
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return &file, nil
		}
		return nil, domainErrors.NewInvalidInputErrorWithCause("invalid seed file", err)
	}
	for i, item := range file.IAs {
		active := 0
		for _, p := range item.Prompts {
			if p.Active {
				active++
			}
		}
		if active > 1 {
			return nil, domainErrors.NewInvalidInputError(fmt.Sprintf("ias[%d] %q: more than one active prompt", i, item.Name))
		}
	}
	return &file, nil
}

// Seed 逐个导入 IA；每个 IA 及其配置、提示词在独立事务中写入。
// 出错时停止，已导入的 IA 保留，报告中给出已完成的数量
func (s *FleetService) Seed(ctx context.Context, file *SeedFile) (report SeedReport, err error) {
	defer s.observe("Seed", time.Now(), &err)

	for i, item := range file.IAs {
		var iaID uint
		err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
			ia, err := s.ias.Create(ctx, repository.CreateIAInput{
				Name:        item.Name,
				PhoneNumber: item.PhoneNumber,
				Enabled:     item.Enabled,
				Config:      item.Config,
			})
			if err != nil {
				return err
			}
			iaID = ia.ID()

			for _, p := range item.Prompts {
				if _, err := s.prompts.Create(ctx, repository.CreatePromptInput{
					IAID:   ia.ID(),
					Text:   p.Text,
					Active: p.Active,
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return report, fmt.Errorf("seed ias[%d] %q: %w", i, item.Name, err)
		}

		report.IAs++
		report.Prompts += len(item.Prompts)
		s.publish(ctx, eventbus.EventTypeIACreated, eventbus.ChangePayload{Entity: "ia", ID: iaID, IAID: iaID, Version: 1})
	}

	s.logger.Info("Fleet seeded", zap.Int("ias", report.IAs), zap.Int("prompts", report.Prompts))
	return report, nil
}
