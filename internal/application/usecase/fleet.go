package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/entity"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/domain/repository"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/eventbus"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/monitoring"
	domainErrors "github.com/ngoclaw/ngoclaw/iafleet/pkg/errors"
)

// FleetDeps FleetService 的依赖
type FleetDeps struct {
	IAs     repository.IARepository
	Prompts repository.PromptRepository
	Configs repository.ConfigRepository
	Leads   repository.LeadRepository
	Tx      repository.TxManager
	Cipher  entity.CredentialCipher

	// 可选
	Events  eventbus.Publisher
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// FleetService IA 管理的应用服务。
// HTTP 与 CLI 只通过它访问仓储，写操作成功后发布变更事件并记录指标
type FleetService struct {
	ias     repository.IARepository
	prompts repository.PromptRepository
	configs repository.ConfigRepository
	leads   repository.LeadRepository
	tx      repository.TxManager
	cipher  entity.CredentialCipher
	events  eventbus.Publisher
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewFleetService 创建 FleetService
func NewFleetService(deps FleetDeps) *FleetService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FleetService{
		ias:     deps.IAs,
		prompts: deps.Prompts,
		configs: deps.Configs,
		leads:   deps.Leads,
		tx:      deps.Tx,
		cipher:  deps.Cipher,
		events:  deps.Events,
		metrics: deps.Metrics,
		logger:  logger.With(zap.String("component", "fleet")),
	}
}

// ─── IA ───

// CreateIA 创建 IA，可同时创建初始配置
func (s *FleetService) CreateIA(ctx context.Context, in repository.CreateIAInput) (ia *entity.IA, err error) {
	defer s.observe("CreateIA", time.Now(), &err)

	ia, err = s.ias.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("IA created", zap.Uint("ia_id", ia.ID()), zap.String("name", ia.Name()))
	s.publish(ctx, eventbus.EventTypeIACreated, eventbus.ChangePayload{Entity: "ia", ID: ia.ID(), IAID: ia.ID(), Version: ia.Version()})
	if ia.Config() != nil {
		s.publish(ctx, eventbus.EventTypeConfigUpdated, eventbus.ChangePayload{Entity: "config", ID: ia.Config().ID(), IAID: ia.ID(), Version: ia.Config().Version()})
	}
	return ia, nil
}

// GetIA 获取 IA（含提示词与配置）
func (s *FleetService) GetIA(ctx context.Context, id uint) (ia *entity.IA, err error) {
	defer s.observe("GetIA", time.Now(), &err)
	return s.ias.FindByID(ctx, id)
}

// ListIAs 列出全部 IA（含提示词与配置）
func (s *FleetService) ListIAs(ctx context.Context) (ias []*entity.IA, err error) {
	defer s.observe("ListIAs", time.Now(), &err)
	return s.ias.FindAll(ctx)
}

// UpdateIA 部分更新 IA
func (s *FleetService) UpdateIA(ctx context.Context, id uint, patch repository.IAPatch) (ia *entity.IA, err error) {
	defer s.observe("UpdateIA", time.Now(), &err)

	ia, err = s.ias.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, eventbus.EventTypeIAUpdated, eventbus.ChangePayload{Entity: "ia", ID: ia.ID(), IAID: ia.ID(), Version: ia.Version()})
	return ia, nil
}

// DeleteIA 删除 IA 及其提示词、配置与线索
func (s *FleetService) DeleteIA(ctx context.Context, id uint) (err error) {
	defer s.observe("DeleteIA", time.Now(), &err)

	if err = s.ias.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("IA deleted", zap.Uint("ia_id", id))
	s.publish(ctx, eventbus.EventTypeIADeleted, eventbus.ChangePayload{Entity: "ia", ID: id, IAID: id})
	return nil
}

// ─── Prompt ───

// CreatePrompt 创建提示词，激活时同时取消其他提示词的激活状态
func (s *FleetService) CreatePrompt(ctx context.Context, in repository.CreatePromptInput) (p *entity.Prompt, err error) {
	defer s.observe("CreatePrompt", time.Now(), &err)

	p, err = s.prompts.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, eventbus.EventTypePromptCreated, promptPayload(p))
	if p.IsActive() {
		s.publish(ctx, eventbus.EventTypePromptActivated, promptPayload(p))
	}
	return p, nil
}

// GetPrompt 获取提示词
func (s *FleetService) GetPrompt(ctx context.Context, id uint) (p *entity.Prompt, err error) {
	defer s.observe("GetPrompt", time.Now(), &err)
	return s.prompts.FindByID(ctx, id)
}

// ListPromptsForIA 按 ID 升序列出 IA 的提示词
func (s *FleetService) ListPromptsForIA(ctx context.Context, iaID uint) (prompts []*entity.Prompt, err error) {
	defer s.observe("ListPromptsForIA", time.Now(), &err)
	return s.prompts.FindByIAID(ctx, iaID)
}

// UpdatePrompt 部分更新提示词
func (s *FleetService) UpdatePrompt(ctx context.Context, id uint, patch repository.PromptPatch) (p *entity.Prompt, err error) {
	defer s.observe("UpdatePrompt", time.Now(), &err)

	p, err = s.prompts.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, eventbus.EventTypePromptUpdated, promptPayload(p))
	if patch.Active != nil && *patch.Active {
		s.publish(ctx, eventbus.EventTypePromptActivated, promptPayload(p))
	}
	return p, nil
}

// DeletePrompt 删除提示词
func (s *FleetService) DeletePrompt(ctx context.Context, id uint) (err error) {
	defer s.observe("DeletePrompt", time.Now(), &err)

	p, err := s.prompts.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err = s.prompts.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, eventbus.EventTypePromptDeleted, promptPayload(p))
	return nil
}

// SetActivePrompt 激活提示词，同一 IA 下其余提示词全部取消激活
func (s *FleetService) SetActivePrompt(ctx context.Context, iaID, promptID uint) (p *entity.Prompt, err error) {
	defer s.observe("SetActivePrompt", time.Now(), &err)

	p, err = s.prompts.SetActive(ctx, iaID, promptID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Prompt activated", zap.Uint("ia_id", iaID), zap.Uint("prompt_id", promptID))
	s.publish(ctx, eventbus.EventTypePromptActivated, promptPayload(p))
	return p, nil
}

// ─── Config ───

// GetOrCreateConfig 返回 IA 的配置，不存在时创建空配置
func (s *FleetService) GetOrCreateConfig(ctx context.Context, iaID uint) (cfg *entity.IAConfig, err error) {
	defer s.observe("GetOrCreateConfig", time.Now(), &err)
	return s.configs.GetOrCreate(ctx, iaID)
}

// FindConfig 查找 IA 的配置
func (s *FleetService) FindConfig(ctx context.Context, iaID uint) (cfg *entity.IAConfig, err error) {
	defer s.observe("FindConfig", time.Now(), &err)
	return s.configs.FindByIAID(ctx, iaID)
}

// UpdateConfig 部分更新配置，凭据重新加密
func (s *FleetService) UpdateConfig(ctx context.Context, iaID uint, patch repository.ConfigPatch) (cfg *entity.IAConfig, err error) {
	defer s.observe("UpdateConfig", time.Now(), &err)

	cfg, err = s.configs.Update(ctx, iaID, patch)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, eventbus.EventTypeConfigUpdated, configPayload(cfg))
	return cfg, nil
}

// UpsertConfig 在一个事务内创建（如不存在）并更新配置，校验先于任何写入。
// mergeCredentials 为 true 时 patch.Credentials 合并进现有凭据而不是整体替换；
// 任一步失败时新建的空配置一并回滚
func (s *FleetService) UpsertConfig(ctx context.Context, iaID uint, patch repository.ConfigPatch, mergeCredentials bool) (cfg *entity.IAConfig, err error) {
	defer s.observe("UpsertConfig", time.Now(), &err)

	if err = repository.Validate(patch); err != nil {
		return nil, err
	}

	changed := false
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.configs.GetOrCreate(ctx, iaID)
		if err != nil {
			return err
		}
		cfg = current

		if mergeCredentials && patch.Credentials != nil {
			existing, err := current.Credentials(s.cipher)
			if err != nil {
				return err
			}
			for k, v := range patch.Credentials {
				existing[k] = v
			}
			patch.Credentials = existing
		}

		if patch.IsEmpty() && patch.ExpectedVersion == nil {
			return nil
		}
		if cfg, err = s.configs.Update(ctx, iaID, patch); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.publish(ctx, eventbus.EventTypeConfigUpdated, configPayload(cfg))
	}
	return cfg, nil
}

// ─── Lead ───

// CreateLead 创建线索
func (s *FleetService) CreateLead(ctx context.Context, in repository.CreateLeadInput) (lead *entity.Lead, err error) {
	defer s.observe("CreateLead", time.Now(), &err)

	lead, err = s.leads.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, eventbus.EventTypeLeadCreated, leadPayload(lead))
	return lead, nil
}

// GetLead 获取线索
func (s *FleetService) GetLead(ctx context.Context, id uint) (lead *entity.Lead, err error) {
	defer s.observe("GetLead", time.Now(), &err)
	return s.leads.FindByID(ctx, id)
}

// ListLeadsForIA 按 ID 升序列出 IA 的线索
func (s *FleetService) ListLeadsForIA(ctx context.Context, iaID uint) (leads []*entity.Lead, err error) {
	defer s.observe("ListLeadsForIA", time.Now(), &err)
	return s.leads.FindByIAID(ctx, iaID)
}

// UpdateLead 部分更新线索
func (s *FleetService) UpdateLead(ctx context.Context, id uint, patch repository.LeadPatch) (lead *entity.Lead, err error) {
	defer s.observe("UpdateLead", time.Now(), &err)

	lead, err = s.leads.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, eventbus.EventTypeLeadUpdated, leadPayload(lead))
	return lead, nil
}

// DeleteLead 删除线索
func (s *FleetService) DeleteLead(ctx context.Context, id uint) (err error) {
	defer s.observe("DeleteLead", time.Now(), &err)

	lead, err := s.leads.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err = s.leads.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, eventbus.EventTypeLeadDeleted, leadPayload(lead))
	return nil
}

// ─── helpers ───

// observe 记录操作指标；非预期错误额外打日志
func (s *FleetService) observe(op string, start time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, start, err)
	}

	switch domainErrors.CodeOf(err) {
	case "", domainErrors.CodeInternal, domainErrors.CodeTransactionFailed, domainErrors.CodeDecryption:
		if err != nil {
			s.logger.Error("Fleet operation failed", zap.String("operation", op), zap.Error(err))
		}
	default:
		s.logger.Debug("Fleet operation rejected", zap.String("operation", op), zap.Error(err))
	}
}

func (s *FleetService) publish(ctx context.Context, eventType string, payload eventbus.ChangePayload) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, eventbus.NewEvent(eventType, payload))
	if s.metrics != nil {
		s.metrics.EventsPublished.WithLabelValues(eventType).Inc()
	}
}

func promptPayload(p *entity.Prompt) eventbus.ChangePayload {
	return eventbus.ChangePayload{Entity: "prompt", ID: p.ID(), IAID: p.IAID(), Version: p.Version()}
}

func configPayload(c *entity.IAConfig) eventbus.ChangePayload {
	return eventbus.ChangePayload{Entity: "config", ID: c.ID(), IAID: c.IAID(), Version: c.Version()}
}

func leadPayload(l *entity.Lead) eventbus.ChangePayload {
	return eventbus.ChangePayload{Entity: "lead", ID: l.ID(), IAID: l.IAID()}
}
